package vfs

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// memFS is an in-memory FS implementation for deterministic tests that
// should not touch the OS filesystem (WAL/recovery tests in particular).
type memFS struct {
	mu    sync.Mutex
	files map[string]*memFileData
	dirs  map[string]bool
	locks map[string]bool
}

// memFileData holds the shared, mutable backing store for a file. Every
// open handle to the same name observes writes made through any other
// handle, matching os.File semantics for a shared inode.
type memFileData struct {
	mu   sync.Mutex
	data []byte
}

// NewMemFS returns an in-memory FS rooted at "/". Paths are not required
// to correspond to any real filesystem location.
func NewMemFS() FS {
	return &memFS{
		files: make(map[string]*memFileData),
		dirs:  map[string]bool{"/": true, ".": true},
		locks: make(map[string]bool),
	}
}

func (m *memFS) ensureParentDirs(name string) {
	dir := filepath.Dir(name)
	for dir != "." && dir != "/" && dir != "" {
		m.dirs[dir] = true
		dir = filepath.Dir(dir)
	}
}

func (m *memFS) Create(name string) (WritableFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fd := &memFileData{}
	m.files[name] = fd
	m.ensureParentDirs(name)
	return &memWritableFile{fd: fd}, nil
}

func (m *memFS) Open(name string) (SequentialFile, error) {
	m.mu.Lock()
	fd, ok := m.files[name]
	m.mu.Unlock()
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return &memSequentialFile{fd: fd}, nil
}

func (m *memFS) OpenRandomAccess(name string) (RandomAccessFile, error) {
	m.mu.Lock()
	fd, ok := m.files[name]
	m.mu.Unlock()
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return &memRandomAccessFile{fd: fd}, nil
}

func (m *memFS) Rename(oldname, newname string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	fd, ok := m.files[oldname]
	if !ok {
		return &fs.PathError{Op: "rename", Path: oldname, Err: fs.ErrNotExist}
	}
	delete(m.files, oldname)
	m.files[newname] = fd
	m.ensureParentDirs(newname)
	return nil
}

func (m *memFS) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.files[name]; !ok {
		return &fs.PathError{Op: "remove", Path: name, Err: fs.ErrNotExist}
	}
	delete(m.files, name)
	return nil
}

func (m *memFS) RemoveAll(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prefix := strings.TrimSuffix(path, "/") + "/"
	for name := range m.files {
		if name == path || strings.HasPrefix(name, prefix) {
			delete(m.files, name)
		}
	}
	for dir := range m.dirs {
		if dir == path || strings.HasPrefix(dir, prefix) {
			delete(m.dirs, dir)
		}
	}
	return nil
}

func (m *memFS) MkdirAll(path string, perm os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	dir := path
	for dir != "." && dir != "/" && dir != "" {
		m.dirs[dir] = true
		dir = filepath.Dir(dir)
	}
	return nil
}

func (m *memFS) Stat(name string) (os.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if fd, ok := m.files[name]; ok {
		fd.mu.Lock()
		size := int64(len(fd.data))
		fd.mu.Unlock()
		return &memFileInfo{name: filepath.Base(name), size: size}, nil
	}
	if m.dirs[name] {
		return &memFileInfo{name: filepath.Base(name), isDir: true}, nil
	}
	return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
}

func (m *memFS) Exists(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, fileOK := m.files[name]
	return fileOK || m.dirs[name]
}

func (m *memFS) ListDir(path string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prefix := strings.TrimSuffix(path, "/") + "/"
	seen := make(map[string]bool)
	for name := range m.files {
		if rest, ok := strings.CutPrefix(name, prefix); ok && rest != "" {
			seen[strings.SplitN(rest, "/", 2)[0]] = true
		}
	}
	for dir := range m.dirs {
		if rest, ok := strings.CutPrefix(dir, prefix); ok && rest != "" {
			seen[strings.SplitN(rest, "/", 2)[0]] = true
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *memFS) Lock(name string) (io.Closer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.locks[name] {
		return nil, &fs.PathError{Op: "lock", Path: name, Err: fs.ErrExist}
	}
	m.locks[name] = true
	return &memLock{fs: m, name: name}, nil
}

func (m *memFS) SyncDir(path string) error {
	return nil
}

type memLock struct {
	fs   *memFS
	name string
}

func (l *memLock) Close() error {
	l.fs.mu.Lock()
	defer l.fs.mu.Unlock()
	delete(l.fs.locks, l.name)
	return nil
}

// memFileInfo implements os.FileInfo for in-memory entries.
type memFileInfo struct {
	name  string
	size  int64
	isDir bool
}

func (fi *memFileInfo) Name() string       { return fi.name }
func (fi *memFileInfo) Size() int64        { return fi.size }
func (fi *memFileInfo) Mode() os.FileMode  { return 0644 }
func (fi *memFileInfo) ModTime() time.Time { return time.Time{} }
func (fi *memFileInfo) IsDir() bool        { return fi.isDir }
func (fi *memFileInfo) Sys() any           { return nil }

// memWritableFile implements WritableFile over a memFileData buffer.
type memWritableFile struct {
	fd *memFileData
}

func (wf *memWritableFile) Write(p []byte) (int, error) {
	wf.fd.mu.Lock()
	defer wf.fd.mu.Unlock()
	wf.fd.data = append(wf.fd.data, p...)
	return len(p), nil
}

func (wf *memWritableFile) Close() error { return nil }
func (wf *memWritableFile) Sync() error  { return nil }

func (wf *memWritableFile) Append(data []byte) error {
	_, err := wf.Write(data)
	return err
}

func (wf *memWritableFile) Truncate(size int64) error {
	wf.fd.mu.Lock()
	defer wf.fd.mu.Unlock()
	if int64(len(wf.fd.data)) <= size {
		return nil
	}
	wf.fd.data = wf.fd.data[:size]
	return nil
}

func (wf *memWritableFile) Size() (int64, error) {
	wf.fd.mu.Lock()
	defer wf.fd.mu.Unlock()
	return int64(len(wf.fd.data)), nil
}

// memSequentialFile implements SequentialFile over a memFileData buffer.
type memSequentialFile struct {
	fd  *memFileData
	pos int64
}

func (sf *memSequentialFile) Read(p []byte) (int, error) {
	sf.fd.mu.Lock()
	defer sf.fd.mu.Unlock()

	if sf.pos >= int64(len(sf.fd.data)) {
		return 0, io.EOF
	}
	n := copy(p, sf.fd.data[sf.pos:])
	sf.pos += int64(n)
	return n, nil
}

func (sf *memSequentialFile) Close() error { return nil }

func (sf *memSequentialFile) Skip(n int64) error {
	sf.pos += n
	return nil
}

// memRandomAccessFile implements RandomAccessFile over a memFileData buffer.
type memRandomAccessFile struct {
	fd *memFileData
}

func (rf *memRandomAccessFile) ReadAt(p []byte, off int64) (int, error) {
	rf.fd.mu.Lock()
	defer rf.fd.mu.Unlock()

	if off >= int64(len(rf.fd.data)) {
		return 0, io.EOF
	}
	n := copy(p, rf.fd.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (rf *memRandomAccessFile) Close() error { return nil }

func (rf *memRandomAccessFile) Size() int64 {
	rf.fd.mu.Lock()
	defer rf.fd.mu.Unlock()
	return int64(len(rf.fd.data))
}
