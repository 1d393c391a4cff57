package memtable

import "errors"

// ErrNotFound is returned by MemTable.Get when the newest visible record
// for the looked-up key is a deletion tombstone.
var ErrNotFound = errors.New("memtable: key deleted")
