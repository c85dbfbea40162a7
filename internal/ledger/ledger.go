// Package ledger provides the versioned world state the marketplace runs on.
//
// Each invocation executes inside a TxContext that records the version of
// every key it reads and buffers every key it writes. Committing validates
// the read set against the current committed versions (optimistic
// concurrency control): a transaction whose reads were invalidated by a
// concurrently committed write fails with ErrConflict and none of its writes
// become visible. Committed transactions are grouped into blocks; each block
// is flushed atomically to the storage backend and folded into the app hash.
package ledger

import (
	"time"

	"github.com/decred/slog"
)

// Ledger is the key access surface handed to business logic. Every call is
// scoped to the transaction that is currently executing.
type Ledger interface {
	// GetState returns the value stored at key, or nil when absent.
	GetState(key string) ([]byte, error)

	// PutState stores value at key when the transaction commits.
	PutState(key string, value []byte) error
}

// Event is a named notification emitted by a committed transaction.
type Event struct {
	Name    string `json:"name"`
	TxID    string `json:"tx_id"`
	Payload []byte `json:"payload"`
}

// TxInfo describes the invocation a TxContext runs for.
type TxInfo struct {
	ID        string
	Caller    string
	Timestamp time.Time
}

// log is a logger that is initialized with no output filters.  This
// means the package will not perform any logging by default until the caller
// requests it.
var log = slog.Disabled

// UseLogger uses a specified Logger to output package logging info.
func UseLogger(logger slog.Logger) {
	log = logger
}
