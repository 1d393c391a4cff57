package core

import (
	"github.com/ledgerdb/core/internal/logging"
	"github.com/ledgerdb/core/internal/memtable"
	"github.com/ledgerdb/core/internal/vfs"
)

// options.go carries the tunables a CORE instance needs at construction
// time. It mirrors the teacher's Options-struct-with-sane-defaults
// pattern, trimmed to the knobs this engine's WAL/memtable/write-batch
// scope actually consumes.

// Options configures a database instance.
type Options struct {
	// Comparator orders user keys. Defaults to DefaultComparator() (bytewise).
	Comparator Comparator

	// Logger receives operational log messages. Defaults to
	// logging.NewDefaultLogger(logging.LevelWarn), or to a
	// logging.NewZapLogger when Production is set and Logger is unset.
	Logger logging.Logger

	// FS is the filesystem the database reads and writes through.
	// Defaults to vfs.Default().
	FS vfs.FS

	// WriteBufferSize is the target size, in bytes, a memtable is allowed
	// to grow to before it is considered full.
	WriteBufferSize int

	// SkiplistHeight overrides the memtable skiplist's maximum node
	// height. Zero uses memtable.DefaultMaxHeight.
	SkiplistHeight int

	// BranchingFactor overrides the memtable skiplist's level branching
	// factor. Zero uses memtable.DefaultBranchingFactor.
	BranchingFactor int

	// RandomSeed seeds the memtable skiplist's level generator. Zero is a
	// valid, deterministic seed (not randomized) — set explicitly for
	// reproducible tests; vary it across memtables in production to avoid
	// correlated level distributions.
	RandomSeed uint32

	// Production selects a zap-backed Logger by default instead of the
	// DefaultLogger, when Logger is unset.
	Production bool
}

// DefaultWriteBufferSize is the default memtable size threshold (4 MiB,
// matching LevelDB/RocksDB's conventional default).
const DefaultWriteBufferSize = 4 << 20

// WithDefaults returns a copy of o with every unset field filled in.
func (o Options) WithDefaults() Options {
	if o.Comparator == nil {
		o.Comparator = DefaultComparator()
	}
	if o.FS == nil {
		o.FS = vfs.Default()
	}
	if o.WriteBufferSize <= 0 {
		o.WriteBufferSize = DefaultWriteBufferSize
	}
	if o.Logger == nil {
		if o.Production {
			o.Logger = logging.NewZapLogger(nil)
		} else {
			o.Logger = logging.NewDefaultLogger(logging.LevelWarn)
		}
	}
	return o
}

// NewMemTable builds a memtable.MemTable configured from o, adapting
// o.Comparator (or DefaultComparator if unset) to the function signature
// the memtable package expects.
func (o Options) NewMemTable() *memtable.MemTable {
	cmp := o.Comparator
	if cmp == nil {
		cmp = DefaultComparator()
	}
	return memtable.NewMemTableWithParams(cmp.Compare, o.SkiplistHeight, o.BranchingFactor, o.RandomSeed)
}
