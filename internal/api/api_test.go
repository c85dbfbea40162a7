package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"carbonex.market/cmx/internal/identity"
	"carbonex.market/cmx/internal/logger"
	"carbonex.market/cmx/internal/market"
	"carbonex.market/cmx/internal/types"
)

func submit(t *testing.T, svc *Service, body []byte) (*http.Response, types.TxResult) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/tx", bytes.NewReader(body))
	w := httptest.NewRecorder()
	svc.HandleSubmit(w, req)

	resp := w.Result()
	var res types.TxResult
	json.NewDecoder(resp.Body).Decode(&res)
	return resp, res
}

func get(svc *Service, handler http.HandlerFunc, target string) *http.Response {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	handler(w, req)
	return w.Result()
}

// issueCredits runs the whole issuance flow over HTTP and returns the
// proposal id.
func issueCredits(t *testing.T, svc *Service, gov, owner *identity.Identity, credits uint64) string {
	t.Helper()
	resp, res := submit(t, svc, signedTx(t, gov, types.MethodInitialize, types.InitializeArgs{
		GovernmentName: "Republic", Country: "Kenya", DeptName: "Environment",
	}))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Initialize: expected 200, got %d (%s)", resp.StatusCode, res.Log)
	}

	resp, res = submit(t, svc, signedTx(t, owner, types.MethodSubmitProposal, types.SubmitProposalArgs{
		Description: "Mangrove restoration", Target: 500,
	}))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("SubmitProposal: expected 200, got %d (%s)", resp.StatusCode, res.Log)
	}
	var result market.Result
	if err := json.Unmarshal(res.Data, &result); err != nil {
		t.Fatalf("Failed to decode result: %v", err)
	}
	if result.ID == "" {
		t.Fatal("SubmitProposal returned no proposal id")
	}

	resp, res = submit(t, svc, signedTx(t, gov, types.MethodApproveProject, types.ApproveProjectArgs{
		ProposalID: result.ID, Credits: credits,
	}))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ApproveProject: expected 200, got %d (%s)", resp.StatusCode, res.Log)
	}
	resp, res = submit(t, svc, signedTx(t, owner, types.MethodIssueCarbonCredits, types.ProposalRef{
		ProposalID: result.ID,
	}))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("IssueCarbonCredits: expected 200, got %d (%s)", resp.StatusCode, res.Log)
	}
	return result.ID
}

func TestSubmitAndQuery(t *testing.T) {
	svc, _ := setupTest(t)
	gov, owner := newIdentity(t), newIdentity(t)
	proposalID := issueCredits(t, svc, gov, owner, 100)

	resp := get(svc, svc.HandleBalance, "/api/balance?id="+owner.ID())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status OK, got %v", resp.Status)
	}
	var acct market.CreditAccount
	if err := json.NewDecoder(resp.Body).Decode(&acct); err != nil {
		t.Fatalf("Failed to decode balance: %v", err)
	}
	if acct.Balance != 100 || acct.Owner != owner.ID() {
		t.Errorf("Unexpected account %+v", acct)
	}

	resp = get(svc, svc.HandleProposal, "/api/proposal?id="+proposalID)
	var proposal types.Proposal
	if err := json.NewDecoder(resp.Body).Decode(&proposal); err != nil {
		t.Fatalf("Failed to decode proposal: %v", err)
	}
	if !proposal.Approved || !proposal.Issued || proposal.AllocatedCredits != 100 {
		t.Errorf("Unexpected proposal %+v", proposal)
	}

	resp = get(svc, svc.HandleGovernment, "/api/government")
	var profile types.GovernmentProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		t.Fatalf("Failed to decode government: %v", err)
	}
	if profile.Admin != gov.ID() || profile.Name != "Republic" {
		t.Errorf("Unexpected government %+v", profile)
	}
}

func TestSaleOverHTTP(t *testing.T) {
	svc, _ := setupTest(t)
	gov, seller, buyer := newIdentity(t), newIdentity(t), newIdentity(t)
	issueCredits(t, svc, gov, seller, 10)

	resp, res := submit(t, svc, signedTx(t, seller, types.MethodCreateSale, types.CreateSaleArgs{
		CreditsForSale: 10, PricePerCredit: 5,
	}))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("CreateSale: expected 200, got %d (%s)", resp.StatusCode, res.Log)
	}
	var result market.Result
	json.Unmarshal(res.Data, &result)

	resp, res = submit(t, svc, signedTx(t, buyer, types.MethodBuyCredits, types.BuyCreditsArgs{
		SaleID: result.ID, CreditsToBuy: 4,
	}))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("BuyCredits: expected 200, got %d (%s)", resp.StatusCode, res.Log)
	}

	resp = get(svc, svc.HandleSale, "/api/sale?id="+result.ID)
	var sale types.Sale
	json.NewDecoder(resp.Body).Decode(&sale)
	if sale.CreditsForSale != 6 || sale.Sold {
		t.Errorf("Unexpected sale %+v", sale)
	}

	resp = get(svc, svc.HandleProceeds, "/api/proceeds?id="+seller.ID())
	var proceeds market.ProceedsAccount
	json.NewDecoder(resp.Body).Decode(&proceeds)
	if proceeds.Amount != 20 {
		t.Errorf("Expected proceeds 20, got %d", proceeds.Amount)
	}

	resp, res = submit(t, svc, signedTx(t, buyer, types.MethodBuyCredits, types.BuyCreditsArgs{
		SaleID: result.ID, CreditsToBuy: 7,
	}))
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected 409 for over-purchase, got %d (%s)", resp.StatusCode, res.Log)
	}
}

func TestSubmitErrorStatus(t *testing.T) {
	svc, _ := setupTest(t)
	gov, other := newIdentity(t), newIdentity(t)
	issueCredits(t, svc, gov, other, 1)

	tests := []struct {
		name   string
		body   []byte
		status int
	}{
		{"garbage", []byte("not json"), http.StatusBadRequest},
		{"unauthorized", signedTx(t, other, types.MethodCreateAuction, types.CreateAuctionArgs{
			TotalCredits: 10, StartingBid: 1, DurationSeconds: 60,
		}), http.StatusForbidden},
		{"missing proposal", signedTx(t, gov, types.MethodApproveProject, types.ApproveProjectArgs{
			ProposalID: "nope", Credits: 5,
		}), http.StatusNotFound},
		{"query method", signedTx(t, gov, types.MethodGetGovernment, nil), http.StatusBadRequest},
		{"unknown method", signedTx(t, gov, types.Method("Mint"), nil), http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, res := submit(t, svc, tc.body)
			if resp.StatusCode != tc.status {
				t.Errorf("Expected %d, got %d (%s)", tc.status, resp.StatusCode, res.Log)
			}
			if res.OK() {
				t.Error("Expected a non-zero result code")
			}
		})
	}
}

func TestSubmitBadSignature(t *testing.T) {
	svc, _ := setupTest(t)
	body := signedTx(t, newIdentity(t), types.MethodSubmitProposal, types.SubmitProposalArgs{
		Description: "x", Target: 1,
	})
	var stx types.SignedTransaction
	if err := json.Unmarshal(body, &stx); err != nil {
		t.Fatal(err)
	}
	stx.Signature[0] ^= 0xff
	body, _ = json.Marshal(stx)

	resp, _ := submit(t, svc, body)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", resp.StatusCode)
	}
}

func TestSubmitReplay(t *testing.T) {
	svc, _ := setupTest(t)
	body := signedTx(t, newIdentity(t), types.MethodSubmitProposal, types.SubmitProposalArgs{
		Description: "Solar farm", Target: 10,
	})

	if resp, res := submit(t, svc, body); resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d (%s)", resp.StatusCode, res.Log)
	}
	if resp, _ := submit(t, svc, body); resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected 409 for a replayed tx, got %d", resp.StatusCode)
	}
}

func TestSubmitRequestValidation(t *testing.T) {
	svc, _ := setupTest(t)

	req := httptest.NewRequest(http.MethodGet, "/api/tx", nil)
	w := httptest.NewRecorder()
	svc.HandleSubmit(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", w.Code)
	}

	resp, _ := submit(t, svc, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty body, got %d", resp.StatusCode)
	}

	resp, _ = submit(t, svc, bytes.Repeat([]byte("a"), maxTxBytes+1))
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected 413, got %d", resp.StatusCode)
	}
}

func TestSubmitNodeUnavailable(t *testing.T) {
	svc, _ := setupTest(t)
	svc.submitter = failingSubmitter{}

	resp, _ := submit(t, svc, []byte(`{}`))
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("Expected 502, got %d", resp.StatusCode)
	}
}

func TestQueryErrors(t *testing.T) {
	svc, _ := setupTest(t)

	resp := get(svc, svc.HandleAuction, "/api/auction")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 without id, got %d", resp.StatusCode)
	}

	resp = get(svc, svc.HandleAuction, "/api/auction?id=missing")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for a missing auction, got %d", resp.StatusCode)
	}

	resp = get(svc, svc.HandleGovernment, "/api/government")
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected 409 before initialization, got %d", resp.StatusCode)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/sale?id=x", nil)
	w := httptest.NewRecorder()
	svc.HandleSale(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", w.Code)
	}

	// Unknown identities hold nothing.
	resp = get(svc, svc.HandleBalance, "/api/balance?id=ab12")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
}

func TestHandleHealth(t *testing.T) {
	svc, _ := setupTest(t)
	issueCredits(t, svc, newIdentity(t), newIdentity(t), 5)

	resp := get(svc, svc.HandleHealth, "/api/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status OK, got %v", resp.Status)
	}
	var body struct {
		Status  string `json:"status"`
		Mode    string `json:"mode"`
		Height  int64  `json:"height"`
		AppHash string `json:"app_hash"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode health: %v", err)
	}
	if body.Status != "ok" || body.Mode != "standalone" {
		t.Errorf("Unexpected health %+v", body)
	}
	if body.Height != 4 {
		t.Errorf("Expected height 4 after four transactions, got %d", body.Height)
	}
	if len(body.AppHash) != 64 {
		t.Errorf("Expected a 32-byte hex app hash, got %q", body.AppHash)
	}
}

func TestHandleVersion(t *testing.T) {
	svc, _ := setupTest(t)

	resp := get(svc, svc.HandleVersion, "/api/version")
	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)
	if body["version"] != types.Version {
		t.Errorf("Expected version %s, got %s", types.Version, body["version"])
	}
}

func TestHandleLogs(t *testing.T) {
	svc, l := setupTest(t)
	l.Info("first")
	l.Error("second")

	resp := get(svc, svc.HandleLogs, "/api/logs?n=1")
	var msgs []logger.Message
	if err := json.NewDecoder(resp.Body).Decode(&msgs); err != nil {
		t.Fatalf("Failed to decode logs: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Text != "second" {
		t.Errorf("Unexpected logs %+v", msgs)
	}

	resp = get(svc, svc.HandleLogs, "/api/logs?n=zero")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}
}

func TestStatusForCode(t *testing.T) {
	svc, _ := setupTest(t)
	w := httptest.NewRecorder()
	svc.writeMarketError(w, market.Error{Err: market.ErrInsufficientCredits, Description: "short"})
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "short") {
		t.Errorf("Expected description in body, got %s", w.Body.String())
	}
	if got := statusForCode(999); got != http.StatusInternalServerError {
		t.Errorf("Expected 500 for an unknown code, got %d", got)
	}
}

func TestListings(t *testing.T) {
	svc, _ := setupTest(t)
	gov, owner := newIdentity(t), newIdentity(t)
	issued := issueCredits(t, svc, gov, owner, 10)

	resp, res := submit(t, svc, signedTx(t, owner, types.MethodSubmitProposal, types.SubmitProposalArgs{
		Description: "Peatland rewetting", Target: 40,
	}))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("SubmitProposal: expected 200, got %d (%s)", resp.StatusCode, res.Log)
	}

	decode := func(resp *http.Response) []types.Proposal {
		t.Helper()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Expected status OK, got %v", resp.Status)
		}
		var proposals []types.Proposal
		if err := json.NewDecoder(resp.Body).Decode(&proposals); err != nil {
			t.Fatalf("Failed to decode listing: %v", err)
		}
		return proposals
	}

	if all := decode(get(svc, svc.HandleProposals, "/api/proposals")); len(all) != 2 {
		t.Errorf("Expected 2 proposals, got %d", len(all))
	}
	open := decode(get(svc, svc.HandleProposals, "/api/proposals?open=true"))
	if len(open) != 1 || open[0].ID == issued || open[0].Description != "Peatland rewetting" {
		t.Errorf("Unexpected open proposals %+v", open)
	}

	resp = get(svc, svc.HandleSales, "/api/sales?open=1")
	body := new(bytes.Buffer)
	body.ReadFrom(resp.Body)
	if resp.StatusCode != http.StatusOK || strings.TrimSpace(body.String()) != "[]" {
		t.Errorf("Expected empty sale listing, got %d %s", resp.StatusCode, body)
	}

	if resp := get(svc, svc.HandleAuctions, "/api/auctions?open=maybe"); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid open flag, got %d", resp.StatusCode)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/sales", nil)
	w := httptest.NewRecorder()
	svc.HandleSales(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", w.Code)
	}
}
