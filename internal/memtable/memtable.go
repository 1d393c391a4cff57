package memtable

import (
	"sync"
	"sync/atomic"

	"github.com/ledgerdb/core/internal/arena"
	"github.com/ledgerdb/core/internal/dbformat"
	"github.com/ledgerdb/core/internal/encoding"
)

// MemTable is the versioned, skiplist-backed in-memory key/value store
// writes land in before eventually being handed off for durable storage
// elsewhere. Every encoded entry lives in the MemTable's Arena; dropping
// the MemTable drops every entry at once.
//
// Entry format stored in the skiplist (see spec.md §3):
//
//	internal_key_size : varint32 (length of internal_key)
//	internal_key      : internal_key_size bytes (user_key + 8-byte trailer)
//	value_size        : varint32 (length of value)
//	value             : value_size bytes
//
// Reference: spec.md §4.7, rebeldb src/memtable/memtable.rs
type MemTable struct {
	skiplist *SkipList
	compare  Comparator
	arena    *arena.Arena

	firstSeqno    dbformat.SequenceNumber
	earliestSeqno dbformat.SequenceNumber

	refs int32

	mu sync.Mutex
}

// NewMemTable creates an empty MemTable using cmp as the user key
// comparator (BytewiseComparator if nil) and seed as the skiplist's
// deterministic height source.
func NewMemTable(cmp Comparator, seed uint32) *MemTable {
	return NewMemTableWithParams(cmp, DefaultMaxHeight, DefaultBranchingFactor, seed)
}

// NewMemTableWithParams is like NewMemTable but lets the caller override
// the skiplist's maximum height and branching factor, e.g. from
// Options.SkiplistHeight/BranchingFactor. A zero value for either falls
// back to its default.
func NewMemTableWithParams(cmp Comparator, maxHeight, branchingFactor int, seed uint32) *MemTable {
	if cmp == nil {
		cmp = BytewiseComparator
	}
	internalCmp := func(a, b []byte) int {
		return compareMemTableEntries(a, b, cmp)
	}

	return &MemTable{
		skiplist:      NewSkipListWithParams(internalCmp, maxHeight, branchingFactor, seed),
		compare:       cmp,
		arena:         arena.New(),
		refs:          1,
		earliestSeqno: ^dbformat.SequenceNumber(0),
	}
}

// extractInternalKey extracts the internal key from a memtable entry.
// Entry format: [keyLen:varint][internalKey][valueLen:varint][value]
func extractInternalKey(entry []byte) []byte {
	keyLen, n, err := encoding.DecodeVarint32(entry)
	if err != nil || int(keyLen) > len(entry)-n {
		return nil
	}
	return entry[n : n+int(keyLen)]
}

// compareMemTableEntries compares two memtable entries by decoding each
// side's internal key and deferring to the internal-key order: user key
// ascending, then the 8-byte trailer descending.
func compareMemTableEntries(a, b []byte, userCmp Comparator) int {
	aKey := extractInternalKey(a)
	bKey := extractInternalKey(b)
	if aKey == nil || bKey == nil {
		return userCmp(a, b)
	}
	return dbformat.NewInternalKeyComparator(dbformat.UserKeyComparer(userCmp)).Compare(aKey, bKey)
}

// Ref increments the reference count.
func (mt *MemTable) Ref() {
	atomic.AddInt32(&mt.refs, 1)
}

// Unref decrements the reference count and reports whether it reached zero.
func (mt *MemTable) Unref() bool {
	return atomic.AddInt32(&mt.refs, -1) == 0
}

// Add allocates a single contiguous encoded entry in the Arena, populates
// it per the memtable entry layout, and inserts it into the skiplist.
func (mt *MemTable) Add(seq dbformat.SequenceNumber, typ dbformat.ValueType, key, value []byte) {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	internalKeyLen := len(key) + dbformat.NumInternalBytes
	encodedLen := encoding.VarintLength(uint64(internalKeyLen)) + internalKeyLen +
		encoding.VarintLength(uint64(len(value))) + len(value)

	entry := mt.arena.Allocate(encodedLen)[:0]
	entry = encoding.AppendVarint32(entry, uint32(internalKeyLen))
	entry = append(entry, key...)
	entry = encoding.AppendFixed64(entry, dbformat.PackSequenceAndType(seq, typ))
	entry = encoding.AppendVarint32(entry, uint32(len(value)))
	entry = append(entry, value...)

	mt.skiplist.Insert(entry)

	if seq < mt.earliestSeqno {
		mt.earliestSeqno = seq
	}
	if seq > mt.firstSeqno {
		mt.firstSeqno = seq
	}
}

// Get looks up lk in the memtable.
//
//   - found=false: no entry for this user key exists here; the caller
//     should fall through to deeper levels.
//   - found=true, err=nil: value holds the live value.
//   - found=true, err=ErrNotFound: the newest visible record for
//     this user key is a deletion.
func (mt *MemTable) Get(lk *dbformat.LookupKey) (value []byte, found bool, err error) {
	iter := mt.skiplist.NewIterator()
	iter.Seek(lk.MemtableKey())

	if !iter.Valid() {
		return nil, false, nil
	}

	entryKey, entryValue, _, entryType, ok := parseEntry(iter.Key())
	if !ok || mt.compare(lk.UserKey(), entryKey) != 0 {
		return nil, false, nil
	}

	switch entryType {
	case dbformat.TypeValue:
		return entryValue, true, nil
	case dbformat.TypeDeletion:
		return nil, true, ErrNotFound
	default:
		return nil, false, nil
	}
}

// buildLookupEntry wraps an internal key with the varint length prefix
// the skiplist's entries are seeked on.
func buildLookupEntry(internalKey []byte) []byte {
	entry := make([]byte, 0, encoding.MaxVarint32Length+len(internalKey))
	entry = encoding.AppendVarint32(entry, uint32(len(internalKey)))
	entry = append(entry, internalKey...)
	return entry
}

// parseEntry decodes a memtable entry into its user key, value, sequence,
// and kind.
func parseEntry(entry []byte) (key, value []byte, seq dbformat.SequenceNumber, typ dbformat.ValueType, ok bool) {
	keyLen, n, err := encoding.DecodeVarint32(entry)
	if err != nil || int(keyLen) > len(entry)-n || keyLen < dbformat.NumInternalBytes {
		return nil, nil, 0, 0, false
	}
	entry = entry[n:]

	internalKey := entry[:keyLen]
	entry = entry[keyLen:]

	key = internalKey[:keyLen-dbformat.NumInternalBytes]
	seq, typ = dbformat.UnpackSequenceAndType(encoding.DecodeFixed64(internalKey[keyLen-dbformat.NumInternalBytes:]))

	valueLen, n, err := encoding.DecodeVarint32(entry)
	if err != nil || int(valueLen) > len(entry)-n {
		return nil, nil, 0, 0, false
	}
	entry = entry[n:]
	value = entry[:valueLen]

	return key, value, seq, typ, true
}

// ApproximateMemoryUsage returns the Arena's reported memory usage.
func (mt *MemTable) ApproximateMemoryUsage() int {
	return mt.arena.MemoryUsage()
}

// Count returns the number of entries in the memtable.
func (mt *MemTable) Count() int64 {
	return mt.skiplist.Count()
}

// Empty returns true if the memtable has no entries.
func (mt *MemTable) Empty() bool {
	return mt.Count() == 0
}

// NewIterator returns an iterator over the memtable's entries in
// internal-key order.
func (mt *MemTable) NewIterator() *MemTableIterator {
	return &MemTableIterator{
		iter:    mt.skiplist.NewIterator(),
		compare: mt.compare,
	}
}

// MemTableIterator iterates over memtable entries.
type MemTableIterator struct {
	iter    *Iterator
	compare Comparator

	userKey []byte
	value   []byte
	seq     dbformat.SequenceNumber
	typ     dbformat.ValueType
	valid   bool
}

// Valid returns true if the iterator is positioned at a valid entry.
func (it *MemTableIterator) Valid() bool {
	return it.valid && it.iter.Valid()
}

// SeekToFirst positions the iterator at the first entry.
func (it *MemTableIterator) SeekToFirst() {
	it.iter.SeekToFirst()
	it.parseCurrentEntry()
}

// SeekToLast positions the iterator at the last entry.
func (it *MemTableIterator) SeekToLast() {
	it.iter.SeekToLast()
	it.parseCurrentEntry()
}

// Seek positions the iterator at the first entry whose internal key is
// >= target, re-encoding target with the varint length prefix the
// skiplist entries carry.
func (it *MemTableIterator) Seek(target []byte) {
	it.iter.Seek(buildLookupEntry(target))
	it.parseCurrentEntry()
}

// Next advances to the next entry.
func (it *MemTableIterator) Next() {
	it.iter.Next()
	it.parseCurrentEntry()
}

// Prev moves to the previous entry.
func (it *MemTableIterator) Prev() {
	it.iter.Prev()
	it.parseCurrentEntry()
}

// UserKey returns the user key (without the internal-key trailer).
func (it *MemTableIterator) UserKey() []byte {
	return it.userKey
}

// Key returns the full internal key (user key plus trailer), decoded
// from the entry's length prefix.
func (it *MemTableIterator) Key() []byte {
	return dbformat.AppendInternalKey(nil, &dbformat.ParsedInternalKey{
		UserKey:  it.userKey,
		Sequence: it.seq,
		Type:     it.typ,
	})
}

// Value returns the value at the current position.
func (it *MemTableIterator) Value() []byte {
	return it.value
}

// Error returns any error encountered during iteration. MemTable
// iteration over an in-memory skiplist never fails.
func (it *MemTableIterator) Error() error {
	return nil
}

// Sequence returns the sequence number at the current position.
func (it *MemTableIterator) Sequence() dbformat.SequenceNumber {
	return it.seq
}

// Type returns the value kind at the current position.
func (it *MemTableIterator) Type() dbformat.ValueType {
	return it.typ
}

func (it *MemTableIterator) parseCurrentEntry() {
	if !it.iter.Valid() {
		it.valid = false
		it.userKey = nil
		it.value = nil
		return
	}
	var ok bool
	it.userKey, it.value, it.seq, it.typ, ok = parseEntry(it.iter.Key())
	it.valid = ok
}
