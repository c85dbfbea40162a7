package market

import (
	"bytes"
	"encoding/json"
	"io"

	"carbonex.market/cmx/internal/types"
)

// Receipt marks a transaction id as executed so a replayed invocation is
// rejected.
type Receipt struct {
	TxID      string       `json:"tx_id"`
	Method    types.Method `json:"method"`
	Caller    string       `json:"caller"`
	Timestamp int64        `json:"timestamp"`
}

// Dispatch decodes args for method and runs the matching operation.
// State-changing methods also record a receipt for the transaction id.
func (m *Market) Dispatch(ctx Context, method types.Method, args json.RawMessage) (*Result, error) {
	if !method.IsKnown() {
		return nil, errorf(ErrUnknownMethod, "unknown method %q", method)
	}
	if method.IsQuery() {
		return m.query(ctx, method, args)
	}

	var receipt Receipt
	seen, err := getRecord(ctx, receiptKey(ctx.TxID()), &receipt)
	if err != nil {
		return nil, err
	}
	if seen {
		return nil, errorf(ErrDuplicateTx, "transaction %s was already executed", ctx.TxID())
	}

	res, err := m.invoke(ctx, method, args)
	if err != nil {
		return nil, err
	}

	receipt = Receipt{
		TxID:      ctx.TxID(),
		Method:    method,
		Caller:    ctx.CallerID(),
		Timestamp: now(ctx),
	}
	if err := putRecord(ctx, receiptKey(receipt.TxID), &receipt); err != nil {
		return nil, err
	}
	return res, nil
}

func (m *Market) invoke(ctx Context, method types.Method, args json.RawMessage) (*Result, error) {
	switch method {
	case types.MethodInitialize:
		var a types.InitializeArgs
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return m.Initialize(ctx, a.GovernmentName, a.Country, a.DeptName)

	case types.MethodSubmitProposal:
		var a types.SubmitProposalArgs
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return m.SubmitProposal(ctx, a.Description, a.Target)

	case types.MethodApproveProject:
		var a types.ApproveProjectArgs
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return m.ApproveProject(ctx, a.ProposalID, a.Credits)

	case types.MethodIssueCarbonCredits:
		var a types.ProposalRef
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return m.IssueCarbonCredits(ctx, a.ProposalID)

	case types.MethodCreateAuction:
		var a types.CreateAuctionArgs
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return m.CreateAuction(ctx, a.TotalCredits, a.StartingBid, a.DurationSeconds)

	case types.MethodPlaceBid:
		var a types.PlaceBidArgs
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return m.PlaceBid(ctx, a.AuctionID, a.Amount)

	case types.MethodEndAuction:
		var a types.AuctionRef
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return m.EndAuction(ctx, a.AuctionID)

	case types.MethodCreateSale:
		var a types.CreateSaleArgs
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return m.CreateSale(ctx, a.CreditsForSale, a.PricePerCredit)

	case types.MethodBuyCredits:
		var a types.BuyCreditsArgs
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return m.BuyCredits(ctx, a.SaleID, a.CreditsToBuy)
	}
	return nil, errorf(ErrUnknownMethod, "unknown method %q", method)
}

func (m *Market) query(ctx Context, method types.Method, args json.RawMessage) (*Result, error) {
	switch method {
	case types.MethodGetCreditBalance, types.MethodGetProceeds:
		var a types.AccountRef
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		if method == types.MethodGetProceeds {
			return m.GetProceeds(ctx, a.Identity)
		}
		return m.GetCreditBalance(ctx, a.Identity)

	case types.MethodGetGovernment:
		return m.GetGovernment(ctx)

	case types.MethodGetProposal:
		var a types.ProposalRef
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return m.GetProposal(ctx, a.ProposalID)

	case types.MethodGetAuction:
		var a types.AuctionRef
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return m.GetAuction(ctx, a.AuctionID)

	case types.MethodGetSale:
		var a types.SaleRef
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return m.GetSale(ctx, a.SaleID)
	}
	return nil, errorf(ErrUnknownMethod, "unknown method %q", method)
}

// decodeArgs strictly decodes a single JSON object into v. Empty args decode
// as an empty object.
func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(bytes.TrimSpace(args)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(args))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errorf(ErrInvalidArgument, "malformed arguments: %v", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return errorf(ErrInvalidArgument, "malformed arguments: trailing data after object")
	}
	return nil
}
