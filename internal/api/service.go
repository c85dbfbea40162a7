// Package api exposes the marketplace over HTTP: signed transaction
// submission, read-only queries and node status.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/decred/slog"

	"carbonex.market/cmx/internal/abci"
	"carbonex.market/cmx/internal/logger"
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

// Submitter delivers signed transactions to the ledger, either directly or
// through a consensus node.
type Submitter interface {
	Submit(ctx context.Context, raw []byte) (*types.TxResult, error)
}

// Querier evaluates read-only marketplace methods and listings against the
// last flushed block.
type Querier interface {
	QueryMarket(method types.Method, args json.RawMessage) (*market.Result, error)
	ListMarket(kind string, openOnly bool) (*market.Result, error)
}

// ChainState reports the last flushed block.
type ChainState interface {
	Height() int64
	AppHash() []byte
}

// Service handles API requests
type Service struct {
	submitter Submitter
	querier   Querier
	chain     ChainState
	logger    *logger.Logger
	mode      string
}

// NewService creates a new API service
func NewService(submitter Submitter, querier Querier, chain ChainState, logger *logger.Logger, mode string) *Service {
	return &Service{
		submitter: submitter,
		querier:   querier,
		chain:     chain,
		logger:    logger,
		mode:      mode,
	}
}

// writeJSON writes a JSON response
func (s *Service) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Debugf("Failed to write response: %v", err)
	}
}

// writeError writes a JSON error response
func (s *Service) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// writeMarketError writes err with the HTTP status of its market error kind.
func (s *Service) writeMarketError(w http.ResponseWriter, err error) {
	s.writeJSON(w, statusForCode(abci.ResponseCode(err)), map[string]interface{}{
		"error": err.Error(),
		"code":  abci.ResponseCode(err),
	})
}

var kindStatus = map[market.ErrorKind]int{
	market.ErrNotFound:            http.StatusNotFound,
	market.ErrUnauthorized:        http.StatusForbidden,
	market.ErrInvalidArgument:     http.StatusBadRequest,
	market.ErrUnknownMethod:       http.StatusBadRequest,
	market.ErrMalformedRecord:     http.StatusInternalServerError,
	market.ErrNotInitialized:      http.StatusConflict,
	market.ErrAlreadyApproved:     http.StatusConflict,
	market.ErrNotApproved:         http.StatusConflict,
	market.ErrAlreadyIssued:       http.StatusConflict,
	market.ErrAuctionEnded:        http.StatusConflict,
	market.ErrStillOngoing:        http.StatusConflict,
	market.ErrAlreadyEnded:        http.StatusConflict,
	market.ErrBidTooLow:           http.StatusConflict,
	market.ErrAlreadySold:         http.StatusConflict,
	market.ErrInsufficientCredits: http.StatusConflict,
	market.ErrDuplicateTx:         http.StatusConflict,
}

// statusForCode maps a response code onto an HTTP status.
func statusForCode(code uint32) int {
	switch code {
	case abci.CodeTypeOK:
		return http.StatusOK
	case abci.CodeTypeEncodingError, abci.CodeTypeInvalidTx:
		return http.StatusBadRequest
	case abci.CodeTypeAuthError:
		return http.StatusUnauthorized
	case abci.CodeTypeConflict:
		return http.StatusConflict
	}
	if kind, ok := abci.KindForCode(code); ok {
		if status, ok := kindStatus[kind]; ok {
			return status
		}
	}
	return http.StatusInternalServerError
}
