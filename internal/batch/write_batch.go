// Package batch implements the WriteBatch format for atomic writes.
//
// WriteBatch Format:
//
//	Header (12 bytes):
//	  - 8 bytes: sequence number (little-endian uint64)
//	  - 4 bytes: count (little-endian uint32)
//	Records (repeated):
//	  - 1 byte: tag (dbformat.TypeValue or dbformat.TypeDeletion)
//	  - length-prefixed key
//	  - (Put only): length-prefixed value
//
// Reference: spec.md §4.6, rebeldb src/db/write_batch.rs
package batch

import (
	"encoding/binary"
	"errors"

	"github.com/ledgerdb/core/internal/dbformat"
	"github.com/ledgerdb/core/internal/encoding"
	"github.com/ledgerdb/core/internal/memtable"
)

// HeaderSize is the size in bytes of the WriteBatch header (8 bytes
// sequence + 4 bytes count).
const HeaderSize = 12

var (
	// ErrTooSmall is returned when the batch is smaller than the header.
	ErrTooSmall = errors.New("malformed WriteBatch (too small)")

	// ErrBadPut is returned when a Put record's key or value is truncated.
	ErrBadPut = errors.New("bad WriteBatch Put")

	// ErrBadDelete is returned when a Delete record's key is truncated.
	ErrBadDelete = errors.New("bad WriteBatch Delete")

	// ErrUnknownTag is returned when a record tag is neither Put nor Delete.
	ErrUnknownTag = errors.New("unknown WriteBatch tag")

	// ErrWrongCount is returned when the number of records decoded during
	// Iterate does not match the header's count field.
	ErrWrongCount = errors.New("WriteBatch has wrong count")
)

// WriteBatch is a sequence of Put/Delete operations that are applied to a
// memtable as a single atomic unit, and logged to the WAL as a single
// record.
type WriteBatch struct {
	data []byte // header followed by records
}

// New creates a new empty WriteBatch.
func New() *WriteBatch {
	return &WriteBatch{data: make([]byte, HeaderSize)}
}

// NewFromData wraps existing batch data (as read back from the WAL).
func NewFromData(data []byte) (*WriteBatch, error) {
	if len(data) < HeaderSize {
		return nil, ErrTooSmall
	}
	return &WriteBatch{data: data}, nil
}

// Clear resets the batch to the empty state, with sequence and count both
// reset to zero.
func (wb *WriteBatch) Clear() {
	wb.data = wb.data[:HeaderSize]
	clear(wb.data)
}

// Data returns the raw batch contents, header included.
func (wb *WriteBatch) Data() []byte {
	return wb.data
}

// Clone returns a deep copy of the batch.
func (wb *WriteBatch) Clone() *WriteBatch {
	clone := &WriteBatch{data: make([]byte, len(wb.data))}
	copy(clone.data, wb.data)
	return clone
}

// Size returns the size of the batch's encoded contents.
func (wb *WriteBatch) Size() int {
	return len(wb.data)
}

// Count returns the number of Put/Delete records in the batch.
func (wb *WriteBatch) Count() uint32 {
	return binary.LittleEndian.Uint32(wb.data[8:12])
}

// SetCount overwrites the record count in the header.
func (wb *WriteBatch) SetCount(count uint32) {
	binary.LittleEndian.PutUint32(wb.data[8:12], count)
}

// Sequence returns the sequence number assigned to the first record in
// the batch.
func (wb *WriteBatch) Sequence() dbformat.SequenceNumber {
	return dbformat.SequenceNumber(binary.LittleEndian.Uint64(wb.data[0:8]))
}

// SetSequence overwrites the batch's base sequence number.
func (wb *WriteBatch) SetSequence(seq dbformat.SequenceNumber) {
	binary.LittleEndian.PutUint64(wb.data[0:8], uint64(seq))
}

// Put appends a Put record.
func (wb *WriteBatch) Put(key, value []byte) {
	wb.SetCount(wb.Count() + 1)
	wb.data = append(wb.data, byte(dbformat.TypeValue))
	wb.data = encoding.AppendLengthPrefixedSlice(wb.data, key)
	wb.data = encoding.AppendLengthPrefixedSlice(wb.data, value)
}

// Delete appends a Delete record.
func (wb *WriteBatch) Delete(key []byte) {
	wb.SetCount(wb.Count() + 1)
	wb.data = append(wb.data, byte(dbformat.TypeDeletion))
	wb.data = encoding.AppendLengthPrefixedSlice(wb.data, key)
}

// Append concatenates src's records onto wb. src's own sequence number is
// ignored; its records inherit wb's base sequence and count.
func (wb *WriteBatch) Append(src *WriteBatch) {
	wb.SetCount(wb.Count() + src.Count())
	wb.data = append(wb.data, src.data[HeaderSize:]...)
}

// Handler receives the decoded records of a WriteBatch during Iterate.
type Handler interface {
	Put(key, value []byte) error
	Delete(key []byte) error
}

// Iterate decodes each record in the batch and dispatches it to handler,
// in the order the records were appended. It returns ErrWrongCount if the
// number of decoded records does not match the header's count field.
func (wb *WriteBatch) Iterate(handler Handler) error {
	if len(wb.data) < HeaderSize {
		return ErrTooSmall
	}

	data := wb.data[HeaderSize:]
	var found uint32

	for len(data) > 0 {
		tag := dbformat.ValueType(data[0])
		data = data[1:]
		found++

		switch tag {
		case dbformat.TypeValue:
			key, rest, ok := decodeLengthPrefixed(data)
			if !ok {
				return ErrBadPut
			}
			data = rest
			value, rest, ok := decodeLengthPrefixed(data)
			if !ok {
				return ErrBadPut
			}
			data = rest
			if err := handler.Put(key, value); err != nil {
				return err
			}

		case dbformat.TypeDeletion:
			key, rest, ok := decodeLengthPrefixed(data)
			if !ok {
				return ErrBadDelete
			}
			data = rest
			if err := handler.Delete(key); err != nil {
				return err
			}

		default:
			return ErrUnknownTag
		}
	}

	if found != wb.Count() {
		return ErrWrongCount
	}
	return nil
}

func decodeLengthPrefixed(data []byte) (value, rest []byte, ok bool) {
	length, n, err := encoding.DecodeVarint32(data)
	if err != nil {
		return nil, nil, false
	}
	data = data[n:]
	if uint32(len(data)) < length {
		return nil, nil, false
	}
	return data[:length], data[length:], true
}

// memTableInserter replays a WriteBatch's records into a memtable,
// assigning each record the next sequence number after the batch's base.
type memTableInserter struct {
	sequence dbformat.SequenceNumber
	mem      *memtable.MemTable
}

func (m *memTableInserter) Put(key, value []byte) error {
	m.mem.Add(m.sequence, dbformat.TypeValue, key, value)
	m.sequence++
	return nil
}

func (m *memTableInserter) Delete(key []byte) error {
	m.mem.Add(m.sequence, dbformat.TypeDeletion, key, nil)
	m.sequence++
	return nil
}

// InsertInto replays wb's records into mem, assigning sequence numbers
// starting at wb.Sequence().
func (wb *WriteBatch) InsertInto(mem *memtable.MemTable) error {
	inserter := &memTableInserter{sequence: wb.Sequence(), mem: mem}
	return wb.Iterate(inserter)
}
