// Package types tests exercise the invocation envelope: signing, signature
// verification and method classification.
package types

import (
	"encoding/json"
	"testing"

	"carbonex.market/cmx/internal/identity"
)

func TestTransactionSigning(t *testing.T) {
	id, err := identity.Generate()
	if err != nil {
		t.Fatalf("Failed to create test identity: %v", err)
	}

	tx, err := NewTransaction(MethodSubmitProposal, SubmitProposalArgs{
		Description: "mangrove restoration",
		Target:      1200,
	})
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}

	signedTx, err := tx.Sign(id)
	if err != nil {
		t.Fatalf("Failed to sign transaction: %v", err)
	}

	if !signedTx.Verify() {
		t.Error("Failed to verify transaction signature")
	}
	if signedTx.SignerID() != id.ID() {
		t.Errorf("SignerID mismatch. Got %s, want %s", signedTx.SignerID(), id.ID())
	}

	extractedTx, err := signedTx.GetTransaction()
	if err != nil {
		t.Fatalf("Failed to extract transaction: %v", err)
	}
	if extractedTx.Method != MethodSubmitProposal {
		t.Errorf("Method mismatch. Got %s, want %s", extractedTx.Method, MethodSubmitProposal)
	}

	var args SubmitProposalArgs
	if err := json.Unmarshal(extractedTx.Args, &args); err != nil {
		t.Fatalf("decode args: %v", err)
	}
	if args.Target != 1200 || args.Description != "mangrove restoration" {
		t.Errorf("unexpected args after round trip: %+v", args)
	}
}

func TestTamperedTransactionFailsVerification(t *testing.T) {
	id, err := identity.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	other, err := identity.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	tx, _ := NewTransaction(MethodPlaceBid, PlaceBidArgs{AuctionID: "a", Amount: 60})
	stx, err := tx.Sign(id)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	// Claim another identity while keeping the original signature.
	forged := *stx
	forged.PublicKey = []byte(other.PublicKey())
	if forged.Verify() {
		t.Error("forged signer verified")
	}

	// Alter the payload after signing.
	altered := *stx
	altered.Tx = append([]byte(nil), stx.Tx...)
	altered.Tx[len(altered.Tx)-2] ^= 0x01
	if altered.Verify() {
		t.Error("altered payload verified")
	}

	truncated := *stx
	truncated.PublicKey = truncated.PublicKey[:8]
	if truncated.Verify() {
		t.Error("short public key verified")
	}
}

func TestMethodClassification(t *testing.T) {
	testCases := []struct {
		method Method
		query  bool
		known  bool
	}{
		{MethodInitialize, false, true},
		{MethodBuyCredits, false, true},
		{MethodEndAuction, false, true},
		{MethodGetCreditBalance, true, true},
		{MethodGetSale, true, true},
		{Method("Transfer"), false, false},
	}

	for _, tc := range testCases {
		t.Run(string(tc.method), func(t *testing.T) {
			if got := tc.method.IsQuery(); got != tc.query {
				t.Errorf("IsQuery = %v, want %v", got, tc.query)
			}
			if got := tc.method.IsKnown(); got != tc.known {
				t.Errorf("IsKnown = %v, want %v", got, tc.known)
			}
		})
	}
}

func TestNewTransactionNonceIsUnique(t *testing.T) {
	a, err := NewTransaction(MethodEndAuction, AuctionRef{AuctionID: "x"})
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}
	b, err := NewTransaction(MethodEndAuction, AuctionRef{AuctionID: "x"})
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}
	if a.Nonce == "" || a.Nonce == b.Nonce {
		t.Fatalf("expected distinct non-empty nonces, got %q and %q", a.Nonce, b.Nonce)
	}
}
