package main

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carbonex.market/cmx/internal/abci"
	"carbonex.market/cmx/internal/api"
	"carbonex.market/cmx/internal/identity"
	"carbonex.market/cmx/internal/ledger"
	"carbonex.market/cmx/internal/logger"
	"carbonex.market/cmx/internal/market"
	"carbonex.market/cmx/internal/types"
	"carbonex.market/cmx/internal/web"
)

func gateway(t *testing.T) *client {
	t.Helper()
	backend, err := ledger.OpenMemory()
	require.NoError(t, err)
	state, err := ledger.NewWorldState(backend, 0)
	require.NoError(t, err)
	t.Cleanup(func() { state.Close() })

	app := abci.NewABCIApplication(state, market.New(market.Config{}), nil)
	svc := api.NewService(abci.NewLocalExecutor(app, 3), app, state, logger.New(10), "standalone")
	s, err := web.NewServer(0, svc, nil, nil, nil)
	require.NoError(t, err)

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return newClient(srv.URL + "/")
}

func TestSubmitAndQuery(t *testing.T) {
	c := gateway(t)
	ctx := context.Background()
	gov, err := identity.Generate()
	require.NoError(t, err)

	res, err := c.submit(ctx, gov, types.MethodInitialize,
		json.RawMessage(`{"government_name":"Republic","country":"Kenya","dept_name":"Environment"}`))
	require.NoError(t, err)
	require.True(t, res.OK(), res.Log)

	res, err = c.submit(ctx, gov, types.MethodSubmitProposal, json.RawMessage(`{"description":"Kelp","target":3}`))
	require.NoError(t, err)
	require.True(t, res.OK(), res.Log)
	var result market.Result
	require.NoError(t, json.Unmarshal(res.Data, &result))

	out, err := c.query(ctx, types.MethodGetProposal, json.RawMessage(`{"proposal_id":"`+result.ID+`"}`))
	require.NoError(t, err)
	var proposal types.Proposal
	require.NoError(t, json.Unmarshal(out, &proposal))
	assert.Equal(t, "Kelp", proposal.Description)

	out, err = c.query(ctx, types.MethodGetGovernment, nil)
	require.NoError(t, err)
	assert.Contains(t, string(out), "Republic")

	out, err = c.query(ctx, types.MethodGetCreditBalance, json.RawMessage(`{"identity":"`+gov.ID()+`"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"owner":"`+gov.ID()+`","balance":0}`, string(out))
}

func TestSubmitRejection(t *testing.T) {
	c := gateway(t)
	signer, err := identity.Generate()
	require.NoError(t, err)

	res, err := c.submit(context.Background(), signer, types.MethodApproveProject,
		json.RawMessage(`{"proposal_id":"x","credits":1}`))
	require.NoError(t, err)
	assert.False(t, res.OK())
	assert.Equal(t, abci.CodeTypeNotInitialized, res.Code)

	_, err = c.submit(context.Background(), signer, types.MethodGetSale, nil)
	assert.Error(t, err)
}

func TestQueryErrors(t *testing.T) {
	c := gateway(t)
	ctx := context.Background()

	_, err := c.query(ctx, types.MethodGetSale, json.RawMessage(`{"sale_id":"missing"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")

	_, err = c.query(ctx, types.MethodGetSale, nil)
	assert.ErrorContains(t, err, "sale_id")

	_, err = c.query(ctx, types.MethodPlaceBid, nil)
	assert.Error(t, err)
}

func TestRawArgs(t *testing.T) {
	args, err := rawArgs("")
	require.NoError(t, err)
	assert.Nil(t, args)

	_, err = rawArgs("{not json")
	assert.Error(t, err)
}

func TestList(t *testing.T) {
	c := gateway(t)
	ctx := context.Background()
	alice, err := identity.Generate()
	require.NoError(t, err)

	res, err := c.submit(ctx, alice, types.MethodSubmitProposal, json.RawMessage(`{"description":"Seagrass","target":4}`))
	require.NoError(t, err)
	require.True(t, res.OK(), res.Log)

	out, err := c.list(ctx, "proposals", true)
	require.NoError(t, err)
	var proposals []types.Proposal
	require.NoError(t, json.Unmarshal(out, &proposals))
	require.Len(t, proposals, 1)
	assert.Equal(t, "Seagrass", proposals[0].Description)

	out, err = c.list(ctx, "sales", false)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(out))

	_, err = c.list(ctx, "widgets", false)
	assert.Error(t, err)
}
