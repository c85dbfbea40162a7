package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"carbonex.market/cmx/internal/market"
	"carbonex.market/cmx/internal/types"
)

// query runs method with args and writes the query answer.
func (s *Service) query(w http.ResponseWriter, r *http.Request, method types.Method, args interface{}) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	raw, err := json.Marshal(args)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to encode query")
		return
	}
	res, err := s.querier.QueryMarket(method, raw)
	if err != nil {
		s.writeMarketError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(res.Data)
}

// requireParam returns the named query parameter, writing a 400 when it is
// missing.
func (s *Service) requireParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		s.writeError(w, http.StatusBadRequest, "Missing "+name+" parameter")
		return "", false
	}
	return v, true
}

// @Title: Get Credit Balance
// @Route: GET /api/balance?id=<identity>
// @Description: Returns the carbon credits held by an identity. Unknown identities hold zero.
// @Response: {"owner": "...", "balance": 100}
func (s *Service) HandleBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireParam(w, r, "id")
	if !ok {
		return
	}
	s.query(w, r, types.MethodGetCreditBalance, types.AccountRef{Identity: id})
}

// @Title: Get Proceeds
// @Route: GET /api/proceeds?id=<identity>
// @Description: Returns the total sale proceeds owed to a seller.
// @Response: {"owner": "...", "amount": 500}
func (s *Service) HandleProceeds(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireParam(w, r, "id")
	if !ok {
		return
	}
	s.query(w, r, types.MethodGetProceeds, types.AccountRef{Identity: id})
}

// @Title: Get Government
// @Route: GET /api/government
// @Description: Returns the government profile that administers the marketplace.
// @Response: {"admin": "...", "name": "...", "country": "...", "department": "..."}
func (s *Service) HandleGovernment(w http.ResponseWriter, r *http.Request) {
	s.query(w, r, types.MethodGetGovernment, struct{}{})
}

// @Title: Get Proposal
// @Route: GET /api/proposal?id=<proposal id>
// @Description: Returns a project proposal and its approval state.
// @Response: Proposal object
func (s *Service) HandleProposal(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireParam(w, r, "id")
	if !ok {
		return
	}
	s.query(w, r, types.MethodGetProposal, types.ProposalRef{ProposalID: id})
}

// @Title: Get Auction
// @Route: GET /api/auction?id=<auction id>
// @Description: Returns an auction with its status (open, closing or ended).
// @Response: Auction object with a status field
func (s *Service) HandleAuction(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireParam(w, r, "id")
	if !ok {
		return
	}
	s.query(w, r, types.MethodGetAuction, types.AuctionRef{AuctionID: id})
}

// @Title: Get Sale
// @Route: GET /api/sale?id=<sale id>
// @Description: Returns a fixed-price sale listing and the credits left on it.
// @Response: Sale object
func (s *Service) HandleSale(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireParam(w, r, "id")
	if !ok {
		return
	}
	s.query(w, r, types.MethodGetSale, types.SaleRef{SaleID: id})
}

// list writes the listing of kind. ?open=true keeps open records only.
func (s *Service) list(w http.ResponseWriter, r *http.Request, kind string) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	openOnly := false
	if v := r.URL.Query().Get("open"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "Invalid open parameter")
			return
		}
		openOnly = b
	}

	res, err := s.querier.ListMarket(kind, openOnly)
	if err != nil {
		s.writeMarketError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(res.Data)
}

// @Title: List Proposals
// @Route: GET /api/proposals?open=<bool>
// @Description: Lists project proposals. With open=true only proposals whose credits are not issued yet.
// @Response: [Proposal, ...]
func (s *Service) HandleProposals(w http.ResponseWriter, r *http.Request) {
	s.list(w, r, market.ListProposals)
}

// @Title: List Auctions
// @Route: GET /api/auctions?open=<bool>
// @Description: Lists auctions. With open=true only auctions that have not been ended.
// @Response: [Auction, ...]
func (s *Service) HandleAuctions(w http.ResponseWriter, r *http.Request) {
	s.list(w, r, market.ListAuctions)
}

// @Title: List Sales
// @Route: GET /api/sales?open=<bool>
// @Description: Lists fixed-price sales. With open=true only sales with credits left.
// @Response: [Sale, ...]
func (s *Service) HandleSales(w http.ResponseWriter, r *http.Request) {
	s.list(w, r, market.ListSales)
}
