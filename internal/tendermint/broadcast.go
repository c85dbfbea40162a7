package tendermint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"carbonex.market/cmx/internal/types"
)

// BroadcastClient submits transactions through the Tendermint JSON-RPC
// endpoint.
type BroadcastClient struct {
	rpcAddr string
	client  *http.Client
}

// NewBroadcastClient creates a client for the Tendermint RPC endpoint at
// rpcAddr (e.g. "http://localhost:26657").
func NewBroadcastClient(rpcAddr string) *BroadcastClient {
	if rpcAddr == "" {
		rpcAddr = "http://localhost:26657"
	}
	return &BroadcastClient{
		rpcAddr: rpcAddr,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int         `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s (%s)", e.Code, e.Message, e.Data)
}

type txOutcome struct {
	Code      uint32 `json:"code"`
	Data      []byte `json:"data"`
	Log       string `json:"log"`
	Codespace string `json:"codespace"`
}

type commitResult struct {
	CheckTx   txOutcome `json:"check_tx"`
	DeliverTx txOutcome `json:"deliver_tx"`
	Hash      string    `json:"hash"`
	Height    string    `json:"height"`
}

type syncResult struct {
	Code uint32 `json:"code"`
	Data []byte `json:"data"`
	Log  string `json:"log"`
	Hash string `json:"hash"`
}

// Submit broadcasts raw and waits until it is committed in a block. A
// transaction rejected by CheckTx or DeliverTx is reported through the
// result code, not the error.
func (bc *BroadcastClient) Submit(ctx context.Context, raw []byte) (*types.TxResult, error) {
	var res commitResult
	if err := bc.call(ctx, "broadcast_tx_commit", map[string][]byte{"tx": raw}, &res); err != nil {
		return nil, err
	}

	if res.CheckTx.Code != 0 {
		return &types.TxResult{Hash: res.Hash, Code: res.CheckTx.Code, Log: res.CheckTx.Log}, nil
	}
	height, err := strconv.ParseInt(res.Height, 10, 64)
	if err != nil && res.Height != "" {
		return nil, fmt.Errorf("bad height %q in RPC response: %w", res.Height, err)
	}
	log.Debugf("Tx %s committed at height %d (code %d)", res.Hash, height, res.DeliverTx.Code)
	return &types.TxResult{
		Hash:   res.Hash,
		Code:   res.DeliverTx.Code,
		Log:    res.DeliverTx.Log,
		Height: height,
		Data:   res.DeliverTx.Data,
	}, nil
}

// BroadcastTxSync broadcasts raw and returns once CheckTx passes.
func (bc *BroadcastClient) BroadcastTxSync(ctx context.Context, raw []byte) (*types.TxResult, error) {
	var res syncResult
	if err := bc.call(ctx, "broadcast_tx_sync", map[string][]byte{"tx": raw}, &res); err != nil {
		return nil, err
	}
	return &types.TxResult{Hash: res.Hash, Code: res.Code, Log: res.Log, Data: res.Data}, nil
}

// Status returns the raw status document of the Tendermint node.
func (bc *BroadcastClient) Status(ctx context.Context) (json.RawMessage, error) {
	var res json.RawMessage
	if err := bc.call(ctx, "status", map[string]string{}, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// call performs one JSON-RPC request and decodes its result into out.
func (bc *BroadcastClient) call(ctx context.Context, method string, params, out interface{}) error {
	// []byte params encode as base64, which is what the broadcast_tx_*
	// endpoints expect in a JSON-RPC body.
	reqBytes, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("failed to marshal RPC request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, bc.rpcAddr, bytes.NewReader(reqBytes))
	if err != nil {
		return fmt.Errorf("failed to build RPC request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := bc.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send RPC request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read RPC response: %w", err)
	}

	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.Unmarshal(respBytes, &rpcResp); err != nil {
		return fmt.Errorf("failed to parse RPC response: %w (body: %s)", err, string(respBytes))
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return nil
}
