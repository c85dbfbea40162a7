package abci

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"carbonex.market/cmx/internal/ledger"
	"carbonex.market/cmx/internal/types"
)

// LocalExecutor runs signed invocations directly against the application's
// world state, without a consensus engine. Invocations execute
// concurrently; an invocation whose reads were invalidated by a concurrent
// commit is re-executed from scratch up to the configured number of times.
// Publishing and flushing happen together, so every successful invocation
// is exactly one block.
type LocalExecutor struct {
	app     *ABCIApplication
	retries int

	// flushMtx covers both the read-set validation of an invocation and
	// the flush of its block.
	flushMtx sync.Mutex

	now func() time.Time
}

// NewLocalExecutor returns an executor for app that retries conflicted
// invocations up to retries times.
func NewLocalExecutor(app *ABCIApplication, retries int) *LocalExecutor {
	if retries < 0 {
		retries = 0
	}
	return &LocalExecutor{app: app, retries: retries, now: time.Now}
}

// Submit executes the signed transaction in raw and flushes its writes. A
// rejected transaction is reported through the result code, not the error.
func (e *LocalExecutor) Submit(ctx context.Context, raw []byte) (*types.TxResult, error) {
	hash := TxHash(raw)
	stx, tx, code, err := decodeSigned(raw)
	if err != nil {
		return &types.TxResult{Hash: hash, Code: code, Log: err.Error()}, nil
	}
	if tx.Method.IsQuery() {
		return &types.TxResult{
			Hash: hash,
			Code: CodeTypeInvalidTx,
			Log:  "query methods cannot be submitted as transactions",
		}, nil
	}

	info := ledger.TxInfo{ID: hash, Caller: stx.SignerID()}
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		info.Timestamp = e.now()
		txc, res, err := e.app.simulate(info, tx)
		if err != nil {
			return &types.TxResult{Hash: hash, Code: ResponseCode(err), Log: err.Error()}, nil
		}

		height, err := e.commitBlock(txc)
		if errors.Is(err, ledger.ErrConflict) {
			if attempt < e.retries {
				log.Debugf("Tx %s conflicted (attempt %d), retrying", hash, attempt+1)
				continue
			}
			return &types.TxResult{Hash: hash, Code: ResponseCode(err), Log: err.Error()}, nil
		}
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(res)
		if err != nil {
			return nil, err
		}
		return &types.TxResult{
			Hash:   hash,
			Code:   CodeTypeOK,
			Log:    res.Message,
			Height: height,
			Data:   data,
		}, nil
	}
}

// commitBlock publishes txc and flushes it as the next block, then notifies
// subscribers of its events. Nothing else can be published in between, so
// the block holds exactly txc's writes.
func (e *LocalExecutor) commitBlock(txc *ledger.TxContext) (int64, error) {
	e.flushMtx.Lock()
	defer e.flushMtx.Unlock()

	state := e.app.state
	if err := state.Commit(txc); err != nil {
		return 0, err
	}
	height := state.Height() + 1
	if _, err := state.CommitBlock(height); err != nil {
		return 0, err
	}
	if events := txc.Events(); e.app.notifier != nil && len(events) > 0 {
		e.app.notifier.Notify(height, events)
	}
	return height, nil
}
