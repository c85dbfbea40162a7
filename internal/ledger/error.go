package ledger

// ErrorKind identifies a kind of error.  It has full support for errors.Is and
// errors.As, so the caller can directly check against an error kind when
// determining the reason for an error.
type ErrorKind string

// These constants are used to identify a specific ledger Error.
const (
	// ErrConflict indicates a transaction read a key whose committed
	// version changed before the transaction committed.  The transaction
	// must be re-executed from scratch.
	ErrConflict = ErrorKind("ErrConflict")

	// ErrTxClosed indicates an attempt was made to use, commit or discard a
	// transaction that has already had one of those operations performed.
	ErrTxClosed = ErrorKind("ErrTxClosed")

	// ErrReadOnly indicates an attempt to commit a query transaction.
	ErrReadOnly = ErrorKind("ErrReadOnly")

	// ErrKeyRequired indicates an attempt to write a zero-length key.
	ErrKeyRequired = ErrorKind("ErrKeyRequired")

	// ErrBackend indicates a failure in the storage backend.
	ErrBackend = ErrorKind("ErrBackend")

	// ErrCorruption indicates stored data could not be decoded.
	ErrCorruption = ErrorKind("ErrCorruption")

	// ErrUnknownBackend indicates an unsupported backend name.
	ErrUnknownBackend = ErrorKind("ErrUnknownBackend")
)

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}

// Error identifies an error related to the world state. It has full support
// for errors.Is and errors.As, so the caller can ascertain the specific
// reason for the error by checking the underlying error.
type Error struct {
	Err         error
	RawErr      error
	Description string
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	return e.Description
}

// Unwrap returns the underlying wrapped error.
func (e Error) Unwrap() error {
	return e.Err
}

// makeError creates an Error given a set of arguments.
func makeError(kind ErrorKind, desc string) Error {
	return Error{Err: kind, Description: desc}
}

// backendError wraps a raw storage error.
func backendError(kind ErrorKind, desc string, raw error) Error {
	return Error{Err: kind, RawErr: raw, Description: desc + ": " + raw.Error()}
}
