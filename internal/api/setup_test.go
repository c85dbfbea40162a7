package api

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"carbonex.market/cmx/internal/abci"
	"carbonex.market/cmx/internal/identity"
	"carbonex.market/cmx/internal/ledger"
	"carbonex.market/cmx/internal/logger"
	"carbonex.market/cmx/internal/market"
	"carbonex.market/cmx/internal/types"
)

// failingSubmitter implements Submitter for a node that cannot be reached.
type failingSubmitter struct{}

func (failingSubmitter) Submit(context.Context, []byte) (*types.TxResult, error) {
	return nil, errors.New("connection refused")
}

// setupTest creates an in-memory ledger, an application on top of it and a
// service submitting through a local executor.
func setupTest(t *testing.T) (*Service, *logger.Logger) {
	t.Helper()
	backend, err := ledger.OpenMemory()
	if err != nil {
		t.Fatalf("Failed to open ledger: %v", err)
	}
	state, err := ledger.NewWorldState(backend, 64)
	if err != nil {
		t.Fatalf("Failed to create world state: %v", err)
	}
	t.Cleanup(func() { state.Close() })

	app := abci.NewABCIApplication(state, market.New(market.Config{}), nil)
	l := logger.New(100)
	svc := NewService(abci.NewLocalExecutor(app, 3), app, state, l, "standalone")
	return svc, l
}

func newIdentity(t *testing.T) *identity.Identity {
	t.Helper()
	id, err := identity.Generate()
	if err != nil {
		t.Fatalf("Failed to generate identity: %v", err)
	}
	return id
}

// signedTx builds the request body for a signed invocation.
func signedTx(t *testing.T, signer *identity.Identity, method types.Method, args interface{}) []byte {
	t.Helper()
	tx, err := types.NewTransaction(method, args)
	if err != nil {
		t.Fatalf("Failed to build tx: %v", err)
	}
	stx, err := tx.Sign(signer)
	if err != nil {
		t.Fatalf("Failed to sign tx: %v", err)
	}
	b, err := json.Marshal(stx)
	if err != nil {
		t.Fatalf("Failed to marshal tx: %v", err)
	}
	return b
}
