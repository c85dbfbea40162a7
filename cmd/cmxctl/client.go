package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"carbonex.market/cmx/internal/types"
)

// queryRoutes maps query methods onto gateway routes and the argument
// field carried as the id parameter.
var queryRoutes = map[types.Method]struct {
	path  string
	param string
}{
	types.MethodGetCreditBalance: {"/api/balance", "identity"},
	types.MethodGetProceeds:      {"/api/proceeds", "identity"},
	types.MethodGetGovernment:    {"/api/government", ""},
	types.MethodGetProposal:      {"/api/proposal", "proposal_id"},
	types.MethodGetAuction:       {"/api/auction", "auction_id"},
	types.MethodGetSale:          {"/api/sale", "sale_id"},
}

// client talks to a cmx HTTP gateway.
type client struct {
	node string
	http *http.Client
}

func newClient(node string) *client {
	return &client{
		node: strings.TrimRight(node, "/"),
		http: &http.Client{Timeout: 60 * time.Second},
	}
}

// submit signs an invocation of method with args and posts it to the
// gateway.
func (c *client) submit(ctx context.Context, signer types.Signer, method types.Method, args json.RawMessage) (*types.TxResult, error) {
	if method.IsQuery() || !method.IsKnown() {
		return nil, fmt.Errorf("%s is not an invoke method", method)
	}
	var payload interface{}
	if len(args) > 0 {
		payload = args
	}
	tx, err := types.NewTransaction(method, payload)
	if err != nil {
		return nil, err
	}
	stx, err := tx.Sign(signer)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(stx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.node+"/api/tx", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var res types.TxResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("gateway returned %s: %w", resp.Status, err)
	}
	if res.Hash == "" && resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway returned %s", resp.Status)
	}
	return &res, nil
}

// query evaluates a read-only method through the gateway and returns the
// JSON answer.
func (c *client) query(ctx context.Context, method types.Method, args json.RawMessage) (json.RawMessage, error) {
	route, ok := queryRoutes[method]
	if !ok {
		return nil, fmt.Errorf("%s is not a query method", method)
	}

	target := c.node + route.path
	if route.param != "" {
		fields := map[string]string{}
		if len(args) > 0 {
			if err := json.Unmarshal(args, &fields); err != nil {
				return nil, fmt.Errorf("invalid arguments: %w", err)
			}
		}
		if fields[route.param] == "" {
			return nil, fmt.Errorf("%s requires %q", method, route.param)
		}
		target += "?id=" + url.QueryEscape(fields[route.param])
	}

	return c.get(ctx, target)
}

// list fetches the gateway listing of kind ("proposals", "auctions" or
// "sales").
func (c *client) list(ctx context.Context, kind string, openOnly bool) (json.RawMessage, error) {
	target := c.node + "/api/" + url.PathEscape(kind)
	if openOnly {
		target += "?open=true"
	}
	return c.get(ctx, target)
}

func (c *client) get(ctx context.Context, target string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("%s: %s", resp.Status, apiErr.Error)
		}
		return nil, fmt.Errorf("gateway returned %s", resp.Status)
	}
	return body, nil
}
