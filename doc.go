/*
Package core provides the storage-engine CORE of an embedded, ordered
key/value store: a write-ahead log codec, an in-memory skiplist-backed
memtable over an arena allocator, an internal-key/sequence-number model,
and a write-batch codec. Its on-disk WAL format and internal-key layout
are bit-compatible with the LSM-tree design popularized by LevelDB and
RocksDB.

This package does not assemble those pieces into a full database facade
(no SSTable format, compaction, manifest log, block cache, or public
CLI): it specifies and implements the pieces such a facade composes.

# Concurrency

A MemTable is safe for any number of concurrent readers alongside exactly
one writer. A WAL Writer and Reader are each owned by a single goroutine.

# Components

  - internal/arena — bump allocator backing memtable entries
  - internal/prng — deterministic Park-Miller random source
  - internal/dbformat — internal-key / lookup-key encoding
  - internal/memtable — skiplist and memtable
  - internal/batch — write-batch codec and replay
  - internal/wal — write-ahead log writer/reader
  - internal/vfs — environment (file system) abstraction
  - internal/logging — structured diagnostics
*/
package core
