// Package abci contains the ABCI application that connects the marketplace
// to the Tendermint consensus engine. It validates signed invocations
// (CheckTx), executes them against the world state (DeliverTx), and folds
// each block into the app hash (Commit). Signatures are verified here and
// state transitions are applied here.
package abci

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/decred/slog"
	abci "github.com/tendermint/tendermint/abci/types"

	"carbonex.market/cmx/internal/ledger"
	"carbonex.market/cmx/internal/market"
	"carbonex.market/cmx/internal/types"
)

// log is a logger that is initialized with no output filters.  This
// means the package will not perform any logging by default until the caller
// requests it.
var log = slog.Disabled

// UseLogger uses a specified Logger to output package logging info.
func UseLogger(logger slog.Logger) {
	log = logger
}

// Notifier receives the events of every flushed block.
type Notifier interface {
	Notify(height int64, events []ledger.Event)
}

// ABCIApplication implements the ABCI interface.
type ABCIApplication struct {
	abci.BaseApplication

	state  *ledger.WorldState
	market *market.Market

	mu          sync.Mutex
	notifier    Notifier
	blockTime   time.Time
	blockHeight int64
	blockEvents []ledger.Event
}

// Ensure ABCIApplication implements the Application interface.
var _ abci.Application = (*ABCIApplication)(nil)

// NewABCIApplication creates an ABCI application over state. notifier may be
// nil.
func NewABCIApplication(state *ledger.WorldState, mkt *market.Market, notifier Notifier) *ABCIApplication {
	return &ABCIApplication{
		state:    state,
		market:   mkt,
		notifier: notifier,
	}
}

// State returns the world state the application executes against.
func (app *ABCIApplication) State() *ledger.WorldState {
	return app.state
}

func (app *ABCIApplication) Info(req abci.RequestInfo) abci.ResponseInfo {
	return abci.ResponseInfo{
		Data:             "cmx",
		Version:          types.Version,
		AppVersion:       1,
		LastBlockHeight:  app.state.Height(),
		LastBlockAppHash: app.state.AppHash(),
	}
}

// Query serves read-only methods. The path names the method ("/GetSale")
// and Data carries its JSON arguments. "/list/<kind>" lists records, and
// Data "open" restricts the listing to open records.
func (app *ABCIApplication) Query(req abci.RequestQuery) abci.ResponseQuery {
	var (
		res    *market.Result
		err    error
		method = types.Method(strings.TrimPrefix(req.Path, "/"))
	)
	switch {
	case strings.HasPrefix(req.Path, "/list/"):
		res, err = app.ListMarket(strings.TrimPrefix(req.Path, "/list/"), string(req.Data) == "open")
	case method.IsQuery():
		res, err = app.QueryMarket(method, req.Data)
	default:
		return abci.ResponseQuery{
			Code:      CodeTypeInvalidTx,
			Codespace: Codespace,
			Log:       "unknown query path " + req.Path,
		}
	}
	if err != nil {
		return abci.ResponseQuery{
			Code:      ResponseCode(err),
			Codespace: Codespace,
			Log:       err.Error(),
			Height:    app.state.Height(),
		}
	}
	return abci.ResponseQuery{
		Code:   CodeTypeOK,
		Key:    []byte(strings.TrimPrefix(req.Path, "/")),
		Value:  res.Data,
		Height: app.state.Height(),
	}
}

// QueryMarket runs a read-only method in a transaction that is always
// discarded. Queries only see flushed blocks, so in consensus mode a query
// served between DeliverTx and Commit never observes the block in progress.
func (app *ABCIApplication) QueryMarket(method types.Method, args json.RawMessage) (*market.Result, error) {
	if !method.IsQuery() {
		return nil, market.Error{
			Err:         market.ErrUnknownMethod,
			Description: "not a query method: " + string(method),
		}
	}
	tx := app.state.BeginQuery(ledger.TxInfo{ID: "query", Timestamp: time.Now()})
	defer app.state.Discard(tx)
	return app.market.Dispatch(tx, method, args)
}

// ListMarket lists the flushed records of kind (see market.List).
func (app *ABCIApplication) ListMarket(kind string, openOnly bool) (*market.Result, error) {
	return app.market.List(app.state, kind, openOnly)
}

func (app *ABCIApplication) CheckTx(req abci.RequestCheckTx) abci.ResponseCheckTx {
	_, tx, code, err := decodeSigned(req.Tx)
	if err != nil {
		return abci.ResponseCheckTx{Code: code, Codespace: Codespace, Log: err.Error()}
	}
	if tx.Method.IsQuery() {
		return abci.ResponseCheckTx{
			Code:      CodeTypeInvalidTx,
			Codespace: Codespace,
			Log:       "query methods cannot be submitted as transactions",
		}
	}
	return abci.ResponseCheckTx{Code: CodeTypeOK, GasWanted: 1}
}

func (app *ABCIApplication) BeginBlock(req abci.RequestBeginBlock) abci.ResponseBeginBlock {
	app.mu.Lock()
	app.blockTime = req.Header.Time
	app.blockHeight = req.Header.Height
	app.blockEvents = nil
	app.mu.Unlock()
	return abci.ResponseBeginBlock{}
}

func (app *ABCIApplication) DeliverTx(req abci.RequestDeliverTx) abci.ResponseDeliverTx {
	stx, tx, code, err := decodeSigned(req.Tx)
	if err != nil {
		return abci.ResponseDeliverTx{Code: code, Codespace: Codespace, Log: err.Error()}
	}
	if tx.Method.IsQuery() {
		return abci.ResponseDeliverTx{
			Code:      CodeTypeInvalidTx,
			Codespace: Codespace,
			Log:       "query methods cannot be submitted as transactions",
		}
	}

	app.mu.Lock()
	timestamp := app.blockTime
	app.mu.Unlock()
	// Without a block header (tests, replays) fall back to the signed
	// timestamp, which every replica sees identically.
	if timestamp.IsZero() {
		timestamp = tx.Timestamp
	}

	info := ledger.TxInfo{ID: TxHash(req.Tx), Caller: stx.SignerID(), Timestamp: timestamp}
	res, events, err := app.execute(info, tx)
	if err != nil {
		log.Debugf("Tx %s (%s) rejected: %v", info.ID, tx.Method, err)
		return abci.ResponseDeliverTx{Code: ResponseCode(err), Codespace: Codespace, Log: err.Error()}
	}

	app.mu.Lock()
	app.blockEvents = append(app.blockEvents, events...)
	app.mu.Unlock()

	data, err := json.Marshal(res)
	if err != nil {
		return abci.ResponseDeliverTx{Code: CodeTypeInternal, Codespace: Codespace, Log: err.Error()}
	}
	log.Debugf("Tx %s (%s) by %s: %s", info.ID, tx.Method, info.Caller, res.Message)
	return abci.ResponseDeliverTx{
		Code:   CodeTypeOK,
		Data:   data,
		Log:    res.Message,
		Events: toABCIEvents(events),
	}
}

// Commit flushes the block's writes and returns the new app hash.
func (app *ABCIApplication) Commit() abci.ResponseCommit {
	app.mu.Lock()
	height := app.blockHeight
	events := app.blockEvents
	app.blockEvents = nil
	app.mu.Unlock()

	if height == 0 {
		height = app.state.Height() + 1
	}
	appHash, err := app.state.CommitBlock(height)
	if err != nil {
		// A block that cannot be persisted leaves this replica diverged.
		log.Criticalf("Failed to commit block %d: %v", height, err)
		panic(err)
	}

	if app.notifier != nil && len(events) > 0 {
		app.notifier.Notify(height, events)
	}
	return abci.ResponseCommit{Data: appHash}
}

// execute runs tx in its own ledger transaction and commits it to the
// pending block.
func (app *ABCIApplication) execute(info ledger.TxInfo, tx *types.Transaction) (*market.Result, []ledger.Event, error) {
	txc, res, err := app.simulate(info, tx)
	if err != nil {
		return nil, nil, err
	}
	if err := app.state.Commit(txc); err != nil {
		return nil, nil, err
	}
	return res, txc.Events(), nil
}

// simulate dispatches tx in a fresh transaction context and returns the
// context unpublished. A rejected invocation is discarded.
func (app *ABCIApplication) simulate(info ledger.TxInfo, tx *types.Transaction) (*ledger.TxContext, *market.Result, error) {
	txc := app.state.Begin(info)
	res, err := app.market.Dispatch(txc, tx.Method, tx.Args)
	if err != nil {
		app.state.Discard(txc)
		return nil, nil, err
	}
	return txc, res, nil
}
