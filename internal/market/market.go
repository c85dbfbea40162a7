// Package market implements the state-transition rules of the carbon-credit
// marketplace: project proposals, credit issuance, auctions and secondary
// sales.
//
// Every operation runs against a Context scoped to one ledger transaction.
// Operations read the records they need, validate preconditions, and buffer
// the new records; an error aborts the whole invocation and the caller is
// expected to discard the transaction so none of its writes persist.
package market

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/decred/slog"

	"carbonex.market/cmx/internal/ledger"
)

// Context is the environment of a single invocation.
type Context interface {
	ledger.Ledger

	// CallerID returns the identity that signed the invocation.
	CallerID() string

	// TxID returns the unique id of the executing transaction.
	TxID() string

	// Timestamp returns the time the invocation executes at.
	Timestamp() time.Time

	// SetEvent records an event published when the transaction commits.
	SetEvent(name string, payload []byte) error
}

// Config holds the marketplace policy settings.
type Config struct {
	// GovernmentID, when set, is the only identity allowed to run the first
	// Initialize.
	GovernmentID string
}

// Market executes marketplace operations. It holds no state of its own and
// is safe for concurrent use.
type Market struct {
	cfg Config
}

// New returns a Market with the given policy.
func New(cfg Config) *Market {
	return &Market{cfg: cfg}
}

// Result is the outcome of a successful operation.
type Result struct {
	// Message is a human-readable confirmation.
	Message string `json:"message"`

	// ID is the id of the record created by the operation, if any.
	ID string `json:"id,omitempty"`

	// Data holds the JSON answer of a query.
	Data json.RawMessage `json:"data,omitempty"`
}

// Event names.
const (
	EventGovernmentInitialized = "GovernmentInitialized"
	EventProposalSubmitted     = "ProposalSubmitted"
	EventProjectApproved       = "ProjectApproved"
	EventCreditsIssued         = "CreditsIssued"
	EventAuctionCreated        = "AuctionCreated"
	EventBidPlaced             = "BidPlaced"
	EventAuctionEnded          = "AuctionEnded"
	EventSaleCreated           = "SaleCreated"
	EventCreditsPurchased      = "CreditsPurchased"
)

// log is a logger that is initialized with no output filters.  This
// means the package will not perform any logging by default until the caller
// requests it.
var log = slog.Disabled

// UseLogger uses a specified Logger to output package logging info.
func UseLogger(logger slog.Logger) {
	log = logger
}

// getRecord decodes the record at key into v. It reports false when the key
// is absent.
func getRecord(ctx Context, key string, v interface{}) (bool, error) {
	data, err := ctx.GetState(key)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	if data == nil {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, errorf(ErrMalformedRecord, "record %s: %v", key, err)
	}
	return true, nil
}

// putRecord encodes v and buffers it at key.
func putRecord(ctx Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := ctx.PutState(key, data); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// emit records event name with v as its JSON payload.
func emit(ctx Context, name string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", name, err)
	}
	return ctx.SetEvent(name, payload)
}

// now returns the invocation time in unix seconds.
func now(ctx Context) int64 {
	return ctx.Timestamp().Unix()
}
