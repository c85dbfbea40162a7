package abci

import (
	"encoding/json"
	"errors"
	"fmt"

	abci "github.com/tendermint/tendermint/abci/types"
	"github.com/tendermint/tendermint/crypto/tmhash"

	"carbonex.market/cmx/internal/ledger"
	"carbonex.market/cmx/internal/market"
	"carbonex.market/cmx/internal/types"
)

// Codespace qualifies the response codes returned by this application.
const Codespace = "cmx"

// Response codes. Codes from 10 up map one to one onto market error kinds.
const (
	CodeTypeOK            uint32 = 0
	CodeTypeEncodingError uint32 = 1
	CodeTypeAuthError     uint32 = 2
	CodeTypeInvalidTx     uint32 = 3
	CodeTypeConflict      uint32 = 4
	CodeTypeInternal      uint32 = 5

	CodeTypeNotFound            uint32 = 10
	CodeTypeNotInitialized      uint32 = 11
	CodeTypeAlreadyApproved     uint32 = 12
	CodeTypeNotApproved         uint32 = 13
	CodeTypeAlreadyIssued       uint32 = 14
	CodeTypeAuctionEnded        uint32 = 15
	CodeTypeStillOngoing        uint32 = 16
	CodeTypeAlreadyEnded        uint32 = 17
	CodeTypeBidTooLow           uint32 = 18
	CodeTypeAlreadySold         uint32 = 19
	CodeTypeInsufficientCredits uint32 = 20
	CodeTypeUnauthorized        uint32 = 21
	CodeTypeInvalidArgument     uint32 = 22
	CodeTypeUnknownMethod       uint32 = 23
	CodeTypeDuplicateTx         uint32 = 24
	CodeTypeMalformedRecord     uint32 = 25
)

var kindCodes = map[market.ErrorKind]uint32{
	market.ErrNotFound:            CodeTypeNotFound,
	market.ErrNotInitialized:      CodeTypeNotInitialized,
	market.ErrAlreadyApproved:     CodeTypeAlreadyApproved,
	market.ErrNotApproved:         CodeTypeNotApproved,
	market.ErrAlreadyIssued:       CodeTypeAlreadyIssued,
	market.ErrAuctionEnded:        CodeTypeAuctionEnded,
	market.ErrStillOngoing:        CodeTypeStillOngoing,
	market.ErrAlreadyEnded:        CodeTypeAlreadyEnded,
	market.ErrBidTooLow:           CodeTypeBidTooLow,
	market.ErrAlreadySold:         CodeTypeAlreadySold,
	market.ErrInsufficientCredits: CodeTypeInsufficientCredits,
	market.ErrUnauthorized:        CodeTypeUnauthorized,
	market.ErrInvalidArgument:     CodeTypeInvalidArgument,
	market.ErrUnknownMethod:       CodeTypeUnknownMethod,
	market.ErrDuplicateTx:         CodeTypeDuplicateTx,
	market.ErrMalformedRecord:     CodeTypeMalformedRecord,
}

var codeKinds = func() map[uint32]market.ErrorKind {
	m := make(map[uint32]market.ErrorKind, len(kindCodes))
	for kind, code := range kindCodes {
		m[code] = kind
	}
	return m
}()

// ResponseCode maps an execution error onto its response code.
func ResponseCode(err error) uint32 {
	if err == nil {
		return CodeTypeOK
	}
	var kind market.ErrorKind
	if errors.As(err, &kind) {
		if code, ok := kindCodes[kind]; ok {
			return code
		}
	}
	if errors.Is(err, ledger.ErrConflict) {
		return CodeTypeConflict
	}
	return CodeTypeInternal
}

// KindForCode returns the market error kind a response code stands for.
func KindForCode(code uint32) (market.ErrorKind, bool) {
	kind, ok := codeKinds[code]
	return kind, ok
}

// TxHash returns the hex transaction id of raw transaction bytes, the same
// hash Tendermint reports for the transaction.
func TxHash(tx []byte) string {
	return fmt.Sprintf("%X", tmhash.Sum(tx))
}

// decodeSigned decodes and authenticates a signed transaction. On failure
// it returns the response code to report.
func decodeSigned(raw []byte) (*types.SignedTransaction, *types.Transaction, uint32, error) {
	var stx types.SignedTransaction
	if err := json.Unmarshal(raw, &stx); err != nil {
		return nil, nil, CodeTypeEncodingError, fmt.Errorf("failed to decode signed tx: %w", err)
	}
	if !stx.Verify() {
		return nil, nil, CodeTypeAuthError, errors.New("invalid signature")
	}
	tx, err := stx.GetTransaction()
	if err != nil {
		return nil, nil, CodeTypeEncodingError, fmt.Errorf("failed to decode inner tx: %w", err)
	}
	if !tx.Method.IsKnown() {
		return nil, nil, CodeTypeInvalidTx, fmt.Errorf("unknown method %q", tx.Method)
	}
	return &stx, tx, CodeTypeOK, nil
}

// toABCIEvents converts ledger events into indexed ABCI events.
func toABCIEvents(events []ledger.Event) []abci.Event {
	out := make([]abci.Event, 0, len(events))
	for _, e := range events {
		out = append(out, abci.Event{
			Type: e.Name,
			Attributes: []abci.EventAttribute{
				{Key: []byte("tx_id"), Value: []byte(e.TxID), Index: true},
				{Key: []byte("payload"), Value: e.Payload},
			},
		})
	}
	return out
}

