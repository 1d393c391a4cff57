package wal

import (
	"errors"
	"io"

	"github.com/ledgerdb/core/internal/checksum"
	"github.com/ledgerdb/core/internal/encoding"
	"github.com/ledgerdb/core/internal/mempool"
)

// SequentialSource is the minimal surface the reader needs from an open
// log file: sequential reads plus the ability to skip forward without
// buffering the skipped bytes. vfs.SequentialFile satisfies this
// interface.
type SequentialSource interface {
	Read(p []byte) (int, error)
	Skip(n int64) error
}

var (
	// ErrUnknownRecordType is the sentinel for a physical record whose type
	// byte does not match any RecordType. Reader does not return it: it
	// reports such records to its Reporter with the message
	// "unknown record type".
	ErrUnknownRecordType = errors.New("wal: unknown record type")

	errEOF       = errors.New("wal: eof")
	errBadRecord = errors.New("wal: bad record")
)

// Reporter receives corruption notifications while reading.
type Reporter interface {
	// Corruption is called when bytes are dropped due to corruption. msg
	// describes the reason.
	Corruption(bytes int, msg string)
}

// Reader reads logical records from a WAL file, reassembling records that
// were fragmented across block boundaries by the Writer.
type Reader struct {
	src      SequentialSource
	reporter Reporter
	checksum bool

	backingStore []byte // BlockSize-capacity buffer recycled from mempool
	buffer       []byte // unconsumed valid bytes within backingStore
	eof          bool

	scratch           []byte // accumulates fragments of a multi-part record
	lastRecordOffset  int64
	endOfBufferOffset int64
	initialOffset     int64
	resyncing         bool
}

// NewReader creates a Reader that starts at the beginning of src.
func NewReader(src SequentialSource, reporter Reporter, verifyChecksum bool) *Reader {
	return NewReaderAt(src, reporter, verifyChecksum, 0)
}

// NewReaderAt creates a Reader that starts delivering records at or after
// initialOffset, skipping whole blocks that lie entirely before it and
// silently resyncing past any fragment tail straddling the skip point.
// Use this to resume reading a log from a previously recorded offset.
func NewReaderAt(src SequentialSource, reporter Reporter, verifyChecksum bool, initialOffset int64) *Reader {
	return &Reader{
		src:           src,
		reporter:      reporter,
		checksum:      verifyChecksum,
		backingStore:  mempool.GlobalPool.Get(BlockSize)[:BlockSize],
		initialOffset: initialOffset,
		resyncing:     initialOffset > 0,
	}
}

// Close returns the reader's backing buffer to the shared pool. The
// Reader must not be used after Close.
func (r *Reader) Close() {
	if r.backingStore != nil {
		mempool.GlobalPool.Put(r.backingStore)
		r.backingStore = nil
	}
}

// LastRecordOffset returns the file offset of the last record returned by
// ReadRecord.
func (r *Reader) LastRecordOffset() int64 {
	return r.lastRecordOffset
}

// ReadRecord reads the next logical record from the log. It returns
// (nil, false) at EOF. The returned slice is valid until the next call to
// ReadRecord.
func (r *Reader) ReadRecord() ([]byte, bool) {
	if r.lastRecordOffset < r.initialOffset {
		if !r.skipToInitialBlock() {
			return nil, false
		}
	}

	r.scratch = r.scratch[:0]
	inFragmentedRecord := false
	var prospectiveRecordOffset int64

	for {
		recordType, fragment, err := r.readPhysicalRecord()
		physicalRecordOffset := r.endOfBufferOffset - int64(len(r.buffer)) - HeaderSize - int64(len(fragment))

		if err == nil && r.resyncing {
			switch recordType {
			case MiddleType:
				continue
			case LastType:
				r.resyncing = false
				continue
			default:
				r.resyncing = false
			}
		}

		switch {
		case err == nil && recordType == FullType:
			if inFragmentedRecord && len(r.scratch) > 0 {
				r.reportCorruption(len(r.scratch), "partial record without end(1)")
			}
			prospectiveRecordOffset = physicalRecordOffset
			r.scratch = r.scratch[:0]
			r.lastRecordOffset = prospectiveRecordOffset
			return fragment, true

		case err == nil && recordType == FirstType:
			if inFragmentedRecord && len(r.scratch) > 0 {
				r.reportCorruption(len(r.scratch), "partial record without end(2)")
			}
			prospectiveRecordOffset = physicalRecordOffset
			r.scratch = append(r.scratch[:0], fragment...)
			inFragmentedRecord = true

		case err == nil && recordType == MiddleType:
			if !inFragmentedRecord {
				r.reportCorruption(len(fragment), "missing start of fragmented record(1)")
			} else {
				r.scratch = append(r.scratch, fragment...)
			}

		case err == nil && recordType == LastType:
			if !inFragmentedRecord {
				r.reportCorruption(len(fragment), "missing start of fragmented record(2)")
			} else {
				r.scratch = append(r.scratch, fragment...)
				r.lastRecordOffset = prospectiveRecordOffset
				return r.scratch, true
			}

		case errors.Is(err, errEOF):
			// The writer may have died between physical records; treat a
			// dangling fragment at EOF as absence, not corruption.
			r.scratch = r.scratch[:0]
			return nil, false

		case errors.Is(err, errBadRecord):
			if inFragmentedRecord {
				r.reportCorruption(len(r.scratch), "error in middle of record")
				inFragmentedRecord = false
				r.scratch = r.scratch[:0]
			}

		default:
			dropSize := len(fragment)
			if inFragmentedRecord {
				dropSize = len(r.scratch) + len(fragment)
			}
			r.reportCorruption(dropSize, "unknown record type")
			inFragmentedRecord = false
			r.scratch = r.scratch[:0]
		}
	}
}

// skipToInitialBlock skips whole blocks that lie entirely before
// initialOffset. The remainder of a block is skipped too when it is too
// small to hold anything but a trailer.
func (r *Reader) skipToInitialBlock() bool {
	offsetInBlock := r.initialOffset % BlockSize
	blockStart := r.initialOffset - offsetInBlock
	if offsetInBlock > BlockSize-6 {
		blockStart += BlockSize
	}
	r.endOfBufferOffset = blockStart

	if blockStart > 0 {
		if err := r.src.Skip(blockStart); err != nil {
			r.reportDrop(int(blockStart), "seek: "+err.Error())
			return false
		}
	}
	return true
}

// readPhysicalRecord reads a single physical record, returning its type
// and payload. On failure it returns errEOF or errBadRecord; the caller
// inspects the error with errors.Is, not the zero RecordType.
func (r *Reader) readPhysicalRecord() (RecordType, []byte, error) {
	for {
		if len(r.buffer) < HeaderSize {
			if r.eof {
				r.buffer = nil
				return 0, nil, errEOF
			}

			n, err := r.src.Read(r.backingStore)
			r.buffer = r.backingStore[:n]
			r.endOfBufferOffset += int64(len(r.buffer))
			// io.EOF is a clean end of file, not a dropped block.
			if err != nil && !errors.Is(err, io.EOF) {
				r.buffer = nil
				r.reportDrop(BlockSize, err.Error())
				r.eof = true
				return 0, nil, errEOF
			}
			if n < BlockSize {
				r.eof = true
			}
			continue
		}

		header := r.buffer[:HeaderSize]
		crcStored := encoding.DecodeFixed32(header[0:4])
		length := int(encoding.DecodeFixed16(header[4:6]))
		recordType := RecordType(header[6])

		if HeaderSize+length > len(r.buffer) {
			dropSize := len(r.buffer)
			r.buffer = nil
			if !r.eof {
				r.reportCorruption(dropSize, "bad record length")
				return 0, nil, errBadRecord
			}
			// The writer likely died mid-record; not a corruption.
			return 0, nil, errEOF
		}

		if recordType == ZeroType && length == 0 {
			// Zero-length Zero records come from preallocated file
			// regions; skip without reporting a drop.
			r.buffer = nil
			return 0, nil, errBadRecord
		}

		if r.checksum {
			crc := checksum.Value([]byte{byte(recordType)})
			crc = checksum.Extend(crc, r.buffer[HeaderSize:HeaderSize+length])
			crc = checksum.Mask(crc)
			if crc != crcStored {
				dropSize := len(r.buffer)
				r.buffer = nil
				r.reportCorruption(dropSize, "checksum mismatch")
				return 0, nil, errBadRecord
			}
		}

		payload := r.buffer[HeaderSize : HeaderSize+length]
		r.buffer = r.buffer[HeaderSize+length:]

		// A physical record that started before initialOffset belongs to
		// a prior sub-stream; drop it silently.
		if r.endOfBufferOffset-int64(len(r.buffer))-HeaderSize-int64(length) < r.initialOffset {
			return 0, nil, errBadRecord
		}

		return recordType, payload, nil
	}
}

func (r *Reader) reportCorruption(bytes int, msg string) {
	r.reportDrop(bytes, msg)
}

// reportDrop suppresses any drop whose byte range falls entirely before
// initialOffset, so seeking past a record does not count it as lost.
func (r *Reader) reportDrop(bytes int, msg string) {
	if r.reporter == nil {
		return
	}
	if r.endOfBufferOffset-int64(len(r.buffer))-int64(bytes) >= r.initialOffset {
		r.reporter.Corruption(bytes, msg)
	}
}

// IsEOF returns true if the reader has reached end of file.
func (r *Reader) IsEOF() bool {
	return r.eof
}
