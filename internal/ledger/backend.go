package ledger

import (
	"fmt"
	"path/filepath"
)

// Backend names.
const (
	BackendSQLite  = "sqlite"
	BackendLevelDB = "leveldb"
	BackendMemory  = "memory"
)

// Metadata names stored alongside the world state.
const (
	metaSequence = "sequence"
	metaHeight   = "height"
	metaAppHash  = "apphash"
)

// VersionedValue is a committed value together with the commit sequence
// number that produced it. Absent keys have version 0.
type VersionedValue struct {
	Value   []byte
	Version uint64
}

// KV is a single versioned write in a batch.
type KV struct {
	Key     string
	Value   []byte
	Version uint64
}

// Batch is the unit of atomic application to a backend.
type Batch struct {
	Writes []KV
	Meta   map[string][]byte
}

// Backend is durable storage for the committed world state.
type Backend interface {
	// Get returns the committed value for key. It returns nil for both the
	// value and the error when the key is absent.
	Get(key string) (*VersionedValue, error)

	// Meta returns the metadata value for name, or nil when absent.
	Meta(name string) ([]byte, error)

	// Apply writes the batch atomically: either every write and metadata
	// entry becomes durable or none does.
	Apply(batch *Batch) error

	// Scan calls fn for every committed key with the given prefix in
	// ascending key order. Returning an error from fn stops the scan.
	Scan(prefix string, fn func(key string, vv VersionedValue) error) error

	Close() error
}

// Open opens (or creates) the named backend under dataDir.
func Open(kind, dataDir string) (Backend, error) {
	switch kind {
	case BackendSQLite:
		return OpenSQLite(filepath.Join(dataDir, "worldstate.db"))
	case BackendLevelDB:
		return OpenLevelDB(filepath.Join(dataDir, "worldstate.ldb"))
	case BackendMemory:
		return OpenMemory()
	default:
		return nil, makeError(ErrUnknownBackend, fmt.Sprintf("unknown backend %q", kind))
	}
}
