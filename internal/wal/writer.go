package wal

import (
	"io"

	"github.com/ledgerdb/core/internal/checksum"
	"github.com/ledgerdb/core/internal/encoding"
)

// Writer writes records to a WAL file, fragmenting logical records across
// block boundaries as needed.
type Writer struct {
	dest        io.Writer
	blockOffset int // bytes written into the current block

	typeCRC   [MaxRecordType + 1]uint32 // precomputed CRC32C(type_byte) per type
	headerBuf [HeaderSize]byte          // reusable header scratch space
}

// NewWriter creates a Writer that appends to an empty dest, starting at
// block offset 0.
func NewWriter(dest io.Writer) *Writer {
	return newWriter(dest, 0)
}

// NewWriterAt creates a Writer that resumes appending to dest, a file
// that already holds fileLen bytes. The writer's block offset is derived
// from fileLen so that AddRecord continues fragmenting from the correct
// position within the existing final block instead of rewriting it.
func NewWriterAt(dest io.Writer, fileLen int64) *Writer {
	return newWriter(dest, int(fileLen%BlockSize))
}

func newWriter(dest io.Writer, blockOffset int) *Writer {
	w := &Writer{dest: dest, blockOffset: blockOffset}
	for i := 0; i <= int(MaxRecordType); i++ {
		w.typeCRC[i] = checksum.Value([]byte{byte(i)})
	}
	return w
}

// AddRecord writes a complete logical record to the log, fragmenting it
// across block boundaries if it does not fit in the current block. An
// empty payload still produces exactly one Full record of length 0.
//
// Returns the number of bytes written, including headers and padding.
func (w *Writer) AddRecord(data []byte) (int, error) {
	ptr := data
	left := len(data)
	totalWritten := 0
	begin := true

	for {
		leftover := BlockSize - w.blockOffset

		if leftover < HeaderSize {
			if leftover > 0 {
				padding := make([]byte, leftover)
				n, err := w.dest.Write(padding)
				totalWritten += n
				if err != nil {
					return totalWritten, err
				}
			}
			w.blockOffset = 0
		}

		avail := BlockSize - w.blockOffset - HeaderSize
		fragmentLength := min(left, avail)

		end := left == fragmentLength
		var recordType RecordType
		switch {
		case begin && end:
			recordType = FullType
		case begin:
			recordType = FirstType
		case end:
			recordType = LastType
		default:
			recordType = MiddleType
		}

		n, err := w.emitPhysicalRecord(recordType, ptr[:fragmentLength])
		totalWritten += n
		if err != nil {
			return totalWritten, err
		}

		ptr = ptr[fragmentLength:]
		left -= fragmentLength
		begin = false

		if left == 0 {
			break
		}
	}

	return totalWritten, nil
}

func (w *Writer) emitPhysicalRecord(t RecordType, payload []byte) (int, error) {
	n := len(payload)
	if n > 0xFFFF {
		panic("wal: record payload too large")
	}

	w.headerBuf[4] = byte(n & 0xFF)
	w.headerBuf[5] = byte(n >> 8)
	w.headerBuf[6] = byte(t)

	crc := w.typeCRC[t]
	crc = checksum.Extend(crc, payload)
	crc = checksum.Mask(crc)
	encoding.EncodeFixed32(w.headerBuf[:], crc)

	totalWritten := 0
	written, err := w.dest.Write(w.headerBuf[:])
	totalWritten += written
	if err != nil {
		return totalWritten, err
	}

	written, err = w.dest.Write(payload)
	totalWritten += written
	if err != nil {
		return totalWritten, err
	}

	w.blockOffset += HeaderSize + n
	return totalWritten, nil
}

// BlockOffset returns the current offset within the current block.
func (w *Writer) BlockOffset() int {
	return w.blockOffset
}

// Sync flushes the underlying writer if it supports it.
func (w *Writer) Sync() error {
	if syncer, ok := w.dest.(interface{ Sync() error }); ok {
		return syncer.Sync()
	}
	return nil
}
