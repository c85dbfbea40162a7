package ledger

import (
	"sort"
	"time"
)

// TxContext is the ledger handle of a single executing invocation. It is
// not safe for concurrent use.
type TxContext struct {
	state  *WorldState
	info   TxInfo
	reads  map[string]uint64
	writes map[string][]byte
	events []Event
	closed bool

	// flushedOnly marks a query transaction (see BeginQuery).
	flushedOnly bool
}

// Ensure TxContext implements the Ledger interface.
var _ Ledger = (*TxContext)(nil)

// GetState returns the value at key as seen by this transaction: its own
// buffered write if any, otherwise the current committed value. The
// version observed on the first read of a key joins the read set.
func (tx *TxContext) GetState(key string) ([]byte, error) {
	if tx.closed {
		return nil, makeError(ErrTxClosed, "transaction already closed")
	}
	if value, ok := tx.writes[key]; ok {
		return cloneBytes(value), nil
	}

	read := tx.state.read
	if tx.flushedOnly {
		read = tx.state.readFlushed
	}
	tx.state.mu.RLock()
	vv, err := read(key)
	tx.state.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	if _, seen := tx.reads[key]; !seen {
		tx.reads[key] = vv.Version
	}
	return cloneBytes(vv.Value), nil
}

// PutState buffers a write that becomes visible when the transaction
// commits.
func (tx *TxContext) PutState(key string, value []byte) error {
	if tx.closed {
		return makeError(ErrTxClosed, "transaction already closed")
	}
	if key == "" {
		return makeError(ErrKeyRequired, "put requires a non-empty key")
	}
	tx.writes[key] = cloneBytes(value)
	return nil
}

// SetEvent records a named event to publish once the transaction commits.
func (tx *TxContext) SetEvent(name string, payload []byte) error {
	if tx.closed {
		return makeError(ErrTxClosed, "transaction already closed")
	}
	tx.events = append(tx.events, Event{Name: name, TxID: tx.info.ID, Payload: cloneBytes(payload)})
	return nil
}

// CallerID returns the identity that signed the invocation.
func (tx *TxContext) CallerID() string {
	return tx.info.Caller
}

// TxID returns the transaction id.
func (tx *TxContext) TxID() string {
	return tx.info.ID
}

// Timestamp returns the time the invocation executes at.
func (tx *TxContext) Timestamp() time.Time {
	return tx.info.Timestamp
}

// Events returns the events recorded so far.
func (tx *TxContext) Events() []Event {
	return tx.events
}

// WriteSet returns the keys written by the transaction in ascending order.
func (tx *TxContext) WriteSet() []string {
	keys := make([]string, 0, len(tx.writes))
	for key := range tx.writes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// ReadSet returns the keys read by the transaction in ascending order.
func (tx *TxContext) ReadSet() []string {
	keys := make([]string, 0, len(tx.reads))
	for key := range tx.reads {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
