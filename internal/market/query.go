package market

import (
	"encoding/json"
	"fmt"
)

// GetCreditBalance returns the credit account of identity, or of the caller
// when identity is empty.
func (m *Market) GetCreditBalance(ctx Context, identity string) (*Result, error) {
	if identity == "" {
		identity = ctx.CallerID()
	}
	acct, err := loadCreditAccount(ctx, identity)
	if err != nil {
		return nil, err
	}
	return queryResult(acct)
}

// GetProceeds returns the proceeds account of identity, or of the caller
// when identity is empty.
func (m *Market) GetProceeds(ctx Context, identity string) (*Result, error) {
	if identity == "" {
		identity = ctx.CallerID()
	}
	acct, err := loadProceedsAccount(ctx, identity)
	if err != nil {
		return nil, err
	}
	return queryResult(acct)
}

func queryResult(v interface{}) (*Result, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode query result: %w", err)
	}
	return &Result{Message: "ok", Data: data}, nil
}
