// Package dbformat implements the internal-key format: a user key followed
// by an 8-byte trailer packing a sequence number and a value kind.
//
// Reference: rebeldb src/dbformat.rs
package dbformat

import (
	"errors"
	"fmt"

	"github.com/ledgerdb/core/internal/encoding"
)

// SequenceNumber orders writes within a memtable; larger sorts newer.
type SequenceNumber uint64

// MaxSequenceNumber is the maximum valid sequence number (2^56 - 1); the
// trailer reserves its low 8 bits for the value kind.
const MaxSequenceNumber SequenceNumber = (1 << 56) - 1

// NumInternalBytes is the size of the internal key trailer (sequence + kind).
const NumInternalBytes = 8

// ValueType is the kind of a key-value record. These values are embedded
// in the on-disk format and MUST NOT change.
type ValueType uint8

const (
	// TypeDeletion marks a key as deleted.
	TypeDeletion ValueType = 0x00
	// TypeValue marks a live value.
	TypeValue ValueType = 0x01
)

// ValueTypeForSeek is used when constructing a LookupKey: seeking to the
// largest possible tag for a user key lands on the newest record (Value
// or Deletion) at or before the target sequence.
const ValueTypeForSeek = TypeValue

var (
	// ErrKeyTooSmall is returned when an internal key is smaller than the trailer.
	ErrKeyTooSmall = errors.New("dbformat: internal key too small")

	// ErrInvalidValueType is returned when the value kind is not recognized.
	ErrInvalidValueType = errors.New("dbformat: invalid value type")
)

// IsValueType reports whether t is one of the two recognized value kinds.
func IsValueType(t ValueType) bool {
	return t == TypeDeletion || t == TypeValue
}

// PackSequenceAndType packs a sequence number and value kind into a
// 64-bit trailer: sequence in the upper 56 bits, kind in the lower 8.
func PackSequenceAndType(seq SequenceNumber, t ValueType) uint64 {
	return (uint64(seq) << 8) | uint64(t)
}

// UnpackSequenceAndType extracts the sequence number and value kind from
// a packed trailer.
func UnpackSequenceAndType(packed uint64) (SequenceNumber, ValueType) {
	return SequenceNumber(packed >> 8), ValueType(packed & 0xFF)
}

// ParsedInternalKey is an internal key split into its user key, sequence,
// and kind.
type ParsedInternalKey struct {
	UserKey  []byte
	Sequence SequenceNumber
	Type     ValueType
}

// String returns a human-readable representation.
func (p *ParsedInternalKey) String() string {
	return fmt.Sprintf("%q @ %d : %d", p.UserKey, p.Sequence, p.Type)
}

// EncodedLength returns the length of the encoded internal key.
func (p *ParsedInternalKey) EncodedLength() int {
	return len(p.UserKey) + NumInternalBytes
}

// AppendInternalKey appends the serialization of key to dst and returns
// the extended slice.
func AppendInternalKey(dst []byte, key *ParsedInternalKey) []byte {
	dst = append(dst, key.UserKey...)
	return encoding.AppendFixed64(dst, PackSequenceAndType(key.Sequence, key.Type))
}

// ParseInternalKey parses an internal key out of data. It returns
// ErrKeyTooSmall if data is shorter than the trailer, or
// ErrInvalidValueType if the trailer names an unrecognized kind.
func ParseInternalKey(data []byte) (*ParsedInternalKey, error) {
	n := len(data)
	if n < NumInternalBytes {
		return nil, ErrKeyTooSmall
	}

	seq, t := UnpackSequenceAndType(encoding.DecodeFixed64(data[n-NumInternalBytes:]))
	result := &ParsedInternalKey{
		UserKey:  data[:n-NumInternalBytes],
		Sequence: seq,
		Type:     t,
	}
	if !IsValueType(t) {
		return result, ErrInvalidValueType
	}
	return result, nil
}

// ExtractUserKey returns the user key portion of an internal key.
// REQUIRES: len(internalKey) >= NumInternalBytes.
func ExtractUserKey(internalKey []byte) []byte {
	if len(internalKey) < NumInternalBytes {
		panic("dbformat: internal key shorter than trailer")
	}
	return internalKey[:len(internalKey)-NumInternalBytes]
}

// ExtractValueType returns the value kind from an internal key.
// REQUIRES: len(internalKey) >= NumInternalBytes.
func ExtractValueType(internalKey []byte) ValueType {
	n := len(internalKey)
	packed := encoding.DecodeFixed64(internalKey[n-NumInternalBytes:])
	return ValueType(packed & 0xFF)
}

// ExtractSequenceNumber returns the sequence number from an internal key.
// REQUIRES: len(internalKey) >= NumInternalBytes.
func ExtractSequenceNumber(internalKey []byte) SequenceNumber {
	n := len(internalKey)
	packed := encoding.DecodeFixed64(internalKey[n-NumInternalBytes:])
	return SequenceNumber(packed >> 8)
}

// InternalKey is an encoded internal key.
type InternalKey []byte

// NewInternalKey creates a new internal key from a user key, sequence,
// and kind.
func NewInternalKey(userKey []byte, seq SequenceNumber, t ValueType) InternalKey {
	return AppendInternalKey(nil, &ParsedInternalKey{UserKey: userKey, Sequence: seq, Type: t})
}

// UserKey returns the user key portion.
func (k InternalKey) UserKey() []byte { return ExtractUserKey(k) }

// Sequence returns the sequence number.
func (k InternalKey) Sequence() SequenceNumber { return ExtractSequenceNumber(k) }

// Type returns the value kind.
func (k InternalKey) Type() ValueType { return ExtractValueType(k) }

// UpdateInternalKey rewrites an internal key's trailer in place.
// REQUIRES: len(key) >= NumInternalBytes.
func UpdateInternalKey(key InternalKey, seq SequenceNumber, t ValueType) {
	n := len(key)
	encoding.EncodeFixed64(key[n-NumInternalBytes:], PackSequenceAndType(seq, t))
}

// UserKeyComparer compares two user keys. Returns negative if a < b,
// positive if a > b, zero if equal.
type UserKeyComparer func(a, b []byte) int

// BytewiseCompare is the default user key comparer (lexicographic order).
func BytewiseCompare(a, b []byte) int {
	minLen := min(len(a), len(b))
	for i := range minLen {
		if a[i] < b[i] {
			return -1
		}
		if a[i] > b[i] {
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// InternalKeyComparator composes a user key comparer into the tagged
// internal-key order: user key ascending, then the 8-byte trailer
// descending (larger sequence, then larger kind, sorts first).
type InternalKeyComparator struct {
	userCompare UserKeyComparer
}

// NewInternalKeyComparator creates an InternalKeyComparator wrapping
// userCompare (BytewiseCompare if nil).
func NewInternalKeyComparator(userCompare UserKeyComparer) *InternalKeyComparator {
	if userCompare == nil {
		userCompare = BytewiseCompare
	}
	return &InternalKeyComparator{userCompare: userCompare}
}

// DefaultInternalKeyComparator uses bytewise user key ordering.
var DefaultInternalKeyComparator = NewInternalKeyComparator(BytewiseCompare)

// Compare compares two internal keys.
func (c *InternalKeyComparator) Compare(a, b []byte) int {
	cmp := c.userCompare(ExtractUserKey(a), ExtractUserKey(b))
	if cmp != 0 {
		return cmp
	}
	trailerA := encoding.DecodeFixed64(a[len(a)-NumInternalBytes:])
	trailerB := encoding.DecodeFixed64(b[len(b)-NumInternalBytes:])
	switch {
	case trailerA > trailerB:
		return -1
	case trailerA < trailerB:
		return 1
	default:
		return 0
	}
}

// CompareUserKey compares just the user key portion of two internal keys.
func (c *InternalKeyComparator) CompareUserKey(a, b []byte) int {
	return c.userCompare(ExtractUserKey(a), ExtractUserKey(b))
}

// UserCompare returns the wrapped user key comparer.
func (c *InternalKeyComparator) UserCompare() UserKeyComparer {
	return c.userCompare
}

// FindShortestSeparator finds a short internal key separating start from
// limit (start <= result < limit) by shortening start's user key portion
// where possible and, when shortened, re-tagging the result with the
// largest possible tag for that user key so it still sorts correctly
// against any internal key sharing that shortened user key.
func (c *InternalKeyComparator) FindShortestSeparator(start, limit []byte) []byte {
	userStart := ExtractUserKey(start)
	userLimit := ExtractUserKey(limit)

	shortened := findShortestSeparator(c.userCompare, userStart, userLimit)
	if len(shortened) < len(userStart) && c.userCompare(userStart, shortened) < 0 {
		return AppendInternalKey(nil, &ParsedInternalKey{
			UserKey:  shortened,
			Sequence: MaxSequenceNumber,
			Type:     ValueTypeForSeek,
		})
	}
	return append([]byte(nil), start...)
}

// FindShortSuccessor finds a short internal key >= key, shortened where
// possible with the same re-tagging rule as FindShortestSeparator.
func (c *InternalKeyComparator) FindShortSuccessor(key []byte) []byte {
	userKey := ExtractUserKey(key)
	shortened := findShortSuccessor(userKey)
	if len(shortened) < len(userKey) && c.userCompare(userKey, shortened) < 0 {
		return AppendInternalKey(nil, &ParsedInternalKey{
			UserKey:  shortened,
			Sequence: MaxSequenceNumber,
			Type:     ValueTypeForSeek,
		})
	}
	return append([]byte(nil), key...)
}

// CompareInternalKeys compares two internal keys using the default
// bytewise comparator.
func CompareInternalKeys(a, b []byte) int {
	return DefaultInternalKeyComparator.Compare(a, b)
}

// findShortestSeparator and findShortSuccessor implement the plain
// user-key-level algorithm described in spec.md §4.4; kept unexported
// here to avoid an import cycle with the root package's Comparator
// (which implements the same algorithm for top-level user key use).
func findShortestSeparator(cmp UserKeyComparer, start, limit []byte) []byte {
	minLen := min(len(start), len(limit))
	diffIndex := 0
	for diffIndex < minLen && start[diffIndex] == limit[diffIndex] {
		diffIndex++
	}
	if diffIndex >= minLen {
		return append([]byte(nil), start...)
	}
	diffByte := start[diffIndex]
	if diffByte < 0xff && diffByte+1 < limit[diffIndex] {
		result := append([]byte(nil), start[:diffIndex+1]...)
		result[diffIndex]++
		if cmp(result, limit) < 0 {
			return result
		}
	}
	return append([]byte(nil), start...)
}

func findShortSuccessor(key []byte) []byte {
	for i := 0; i < len(key); i++ {
		if b := key[i]; b != 0xff {
			result := append([]byte(nil), key[:i+1]...)
			result[i] = b + 1
			return result
		}
	}
	return append([]byte(nil), key...)
}

// LookupKey packages a (user_key, sequence) pair into the byte layout the
// memtable's skiplist seeks on, exposing three overlapping views into one
// backing buffer.
//
// Layout: varint32(user_key_len + 8) || user_key || fixed64(seq<<8|kind)
//
// Reference: rebeldb src/dbformat.rs LookupKey
type LookupKey struct {
	buf       []byte // memtable_key view: varint length prefix + internal key
	userKeyAt int    // offset of user key within buf
}

// NewLookupKey builds a LookupKey for userKey at seq, tagged with
// ValueTypeForSeek so the seek lands on the newest record at or before
// seq for that user key.
func NewLookupKey(userKey []byte, seq SequenceNumber) *LookupKey {
	internalKeyLen := len(userKey) + NumInternalBytes
	buf := make([]byte, 0, encoding.MaxVarint32Length+internalKeyLen)
	buf = encoding.AppendVarint32(buf, uint32(internalKeyLen))
	userKeyAt := len(buf)
	buf = append(buf, userKey...)
	buf = encoding.AppendFixed64(buf, PackSequenceAndType(seq, ValueTypeForSeek))
	return &LookupKey{buf: buf, userKeyAt: userKeyAt}
}

// MemtableKey returns the view the skiplist seeks on: the varint length
// prefix followed by the internal key.
func (lk *LookupKey) MemtableKey() []byte {
	return lk.buf
}

// InternalKey returns the view without the varint length prefix.
func (lk *LookupKey) InternalKey() []byte {
	return lk.buf[lk.userKeyAt:]
}

// UserKey returns the user key, without the trailer.
func (lk *LookupKey) UserKey() []byte {
	return lk.buf[lk.userKeyAt : len(lk.buf)-NumInternalBytes]
}
