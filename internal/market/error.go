package market

import "fmt"

// ErrorKind identifies a kind of error.  It has full support for errors.Is and
// errors.As, so the caller can directly check against an error kind when
// determining the reason for an error.
type ErrorKind string

// These constants are used to identify a specific market Error.
const (
	// ------------------------------------------
	// Errors related to record lookup.
	// ------------------------------------------

	// ErrNotFound indicates the referenced proposal, auction or sale does
	// not exist.
	ErrNotFound = ErrorKind("ErrNotFound")

	// ErrNotInitialized indicates an administrative operation was invoked
	// before the government profile was written.
	ErrNotInitialized = ErrorKind("ErrNotInitialized")

	// ------------------------------------------
	// Errors related to proposals.
	// ------------------------------------------

	// ErrAlreadyApproved indicates an attempt to approve a proposal twice.
	ErrAlreadyApproved = ErrorKind("ErrAlreadyApproved")

	// ErrNotApproved indicates an attempt to issue credits for a proposal
	// that has not been approved.
	ErrNotApproved = ErrorKind("ErrNotApproved")

	// ErrAlreadyIssued indicates an attempt to issue the credits of a
	// proposal a second time.
	ErrAlreadyIssued = ErrorKind("ErrAlreadyIssued")

	// ------------------------------------------
	// Errors related to auctions.
	// ------------------------------------------

	// ErrAuctionEnded indicates a bid arrived after the auction end time or
	// after the auction was settled.
	ErrAuctionEnded = ErrorKind("ErrAuctionEnded")

	// ErrStillOngoing indicates an attempt to settle an auction before its
	// end time.
	ErrStillOngoing = ErrorKind("ErrStillOngoing")

	// ErrAlreadyEnded indicates an attempt to settle an auction twice.
	ErrAlreadyEnded = ErrorKind("ErrAlreadyEnded")

	// ErrBidTooLow indicates a bid that does not exceed the highest bid or
	// is below the starting bid.
	ErrBidTooLow = ErrorKind("ErrBidTooLow")

	// ------------------------------------------
	// Errors related to sales and credit accounts.
	// ------------------------------------------

	// ErrAlreadySold indicates a purchase against a sale with no credits
	// left.
	ErrAlreadySold = ErrorKind("ErrAlreadySold")

	// ErrInsufficientCredits indicates a credit account or sale does not
	// hold enough credits for the requested amount.
	ErrInsufficientCredits = ErrorKind("ErrInsufficientCredits")

	// ------------------------------------------
	// Errors related to the invocation itself.
	// ------------------------------------------

	// ErrUnauthorized indicates the caller is not allowed to perform the
	// operation.
	ErrUnauthorized = ErrorKind("ErrUnauthorized")

	// ErrInvalidArgument indicates malformed or out of range arguments.
	ErrInvalidArgument = ErrorKind("ErrInvalidArgument")

	// ErrUnknownMethod indicates the method name is not part of the
	// invocation surface.
	ErrUnknownMethod = ErrorKind("ErrUnknownMethod")

	// ErrDuplicateTx indicates a transaction id that was already executed.
	ErrDuplicateTx = ErrorKind("ErrDuplicateTx")

	// ErrMalformedRecord indicates a stored record could not be decoded.
	ErrMalformedRecord = ErrorKind("ErrMalformedRecord")
)

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}

// Error identifies a marketplace rule violation.  It has full support for
// errors.Is and errors.As, so the caller can ascertain the specific reason
// for the error by checking the underlying error.
type Error struct {
	Err         error
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

// errorf creates an Error with a formatted description.
func errorf(kind ErrorKind, format string, args ...interface{}) Error {
	return makeError(kind, fmt.Sprintf(format, args...))
}
