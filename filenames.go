package core

import (
	"fmt"
	"strconv"
	"strings"
)

// filenames.go names and parses the on-disk files a CORE instance owns
// within its database directory: the write-ahead log, the CURRENT/LOCK
// marker files, and MANIFEST descriptor files.
//
// Reference: LevelDB/RocksDB db/filename.cc, ported from filename.rs.

// FileKind identifies the purpose of a file within a database directory.
type FileKind int

const (
	// KindLogFile is a write-ahead log segment ("000001.log").
	KindLogFile FileKind = iota
	// KindLockFile is the database directory lock ("LOCK").
	KindLockFile
	// KindTableFile is a sorted table file ("000001.sst" or "000001.ldb").
	KindTableFile
	// KindDescriptorFile is a MANIFEST file ("MANIFEST-000001").
	KindDescriptorFile
	// KindCurrentFile points at the active MANIFEST ("CURRENT").
	KindCurrentFile
	// KindTempFile is a temporary file used while writing CURRENT atomically.
	KindTempFile
	// KindInfoLogFile is a human-readable log file ("LOG" or "LOG.old").
	KindInfoLogFile
)

// LogFileName returns the name of a log file with the given number.
func LogFileName(dbname string, number uint64) string {
	if number == 0 {
		panic("core: file number must be > 0")
	}
	return fmt.Sprintf("%s/%06d.log", dbname, number)
}

// TableFileName returns the name of a table file with the given number.
func TableFileName(dbname string, number uint64) string {
	if number == 0 {
		panic("core: file number must be > 0")
	}
	return fmt.Sprintf("%s/%06d.ldb", dbname, number)
}

// SSTTableFileName returns the RocksDB-style ".sst" spelling of a table
// file name, accepted on parse alongside the LevelDB ".ldb" spelling.
func SSTTableFileName(dbname string, number uint64) string {
	if number == 0 {
		panic("core: file number must be > 0")
	}
	return fmt.Sprintf("%s/%06d.sst", dbname, number)
}

// DescriptorFileName returns the name of a MANIFEST file with the given number.
func DescriptorFileName(dbname string, number uint64) string {
	if number == 0 {
		panic("core: file number must be > 0")
	}
	return fmt.Sprintf("%s/MANIFEST-%d", dbname, number)
}

// CurrentFileName returns the name of the CURRENT file.
func CurrentFileName(dbname string) string {
	return dbname + "/CURRENT"
}

// LockFileName returns the name of the LOCK file.
func LockFileName(dbname string) string {
	return dbname + "/LOCK"
}

// TempFileName returns the name of a temporary file with the given number.
func TempFileName(dbname string, number uint64) string {
	if number == 0 {
		panic("core: file number must be > 0")
	}
	return fmt.Sprintf("%s/%06d.dbtmp", dbname, number)
}

// InfoLogFileName returns the name of the human-readable LOG file.
func InfoLogFileName(dbname string) string {
	return dbname + "/LOG"
}

// OldInfoLogFileName returns the name of the rotated-out LOG.old file.
func OldInfoLogFileName(dbname string) string {
	return dbname + "/LOG.old"
}

// ParseFileName parses the base name of a file (no directory component) and
// returns its file number (0 for files that aren't numbered) and kind. It
// reports false if filename does not match any recognized form.
func ParseFileName(filename string) (number uint64, kind FileKind, ok bool) {
	switch filename {
	case "CURRENT":
		return 0, KindCurrentFile, true
	case "LOCK":
		return 0, KindLockFile, true
	case "LOG", "LOG.old":
		return 0, KindInfoLogFile, true
	}

	if rest, found := strings.CutPrefix(filename, "MANIFEST-"); found {
		num, err := strconv.ParseUint(rest, 10, 64)
		if err != nil {
			return 0, 0, false
		}
		return num, KindDescriptorFile, true
	}

	index := strings.IndexFunc(filename, func(r rune) bool {
		return r < '0' || r > '9'
	})
	if index == -1 {
		index = len(filename)
	}
	if index == 0 {
		return 0, 0, false
	}

	num, err := strconv.ParseUint(filename[:index], 10, 64)
	if err != nil {
		return 0, 0, false
	}

	var k FileKind
	switch filename[index:] {
	case ".log":
		k = KindLogFile
	case ".sst", ".ldb":
		k = KindTableFile
	case ".dbtmp":
		k = KindTempFile
	default:
		return 0, 0, false
	}
	return num, k, true
}
