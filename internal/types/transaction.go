package types

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Method names a marketplace operation on the invocation surface.
type Method string

const (
	MethodInitialize         Method = "Initialize"
	MethodSubmitProposal     Method = "SubmitProposal"
	MethodApproveProject     Method = "ApproveProject"
	MethodIssueCarbonCredits Method = "IssueCarbonCredits"
	MethodCreateAuction      Method = "CreateAuction"
	MethodPlaceBid           Method = "PlaceBid"
	MethodEndAuction         Method = "EndAuction"
	MethodCreateSale         Method = "CreateSale"
	MethodBuyCredits         Method = "BuyCredits"

	MethodGetCreditBalance Method = "GetCreditBalance"
	MethodGetProceeds      Method = "GetProceeds"
	MethodGetGovernment    Method = "GetGovernment"
	MethodGetProposal      Method = "GetProposal"
	MethodGetAuction       Method = "GetAuction"
	MethodGetSale          Method = "GetSale"
)

var queryMethods = map[Method]bool{
	MethodGetCreditBalance: true,
	MethodGetProceeds:      true,
	MethodGetGovernment:    true,
	MethodGetProposal:      true,
	MethodGetAuction:       true,
	MethodGetSale:          true,
}

var invokeMethods = map[Method]bool{
	MethodInitialize:         true,
	MethodSubmitProposal:     true,
	MethodApproveProject:     true,
	MethodIssueCarbonCredits: true,
	MethodCreateAuction:      true,
	MethodPlaceBid:           true,
	MethodEndAuction:         true,
	MethodCreateSale:         true,
	MethodBuyCredits:         true,
}

// IsQuery reports whether the method only reads state.
func (m Method) IsQuery() bool {
	return queryMethods[m]
}

// IsKnown reports whether the method is part of the invocation surface.
func (m Method) IsKnown() bool {
	return queryMethods[m] || invokeMethods[m]
}

// Transaction is a single marketplace invocation. Args holds the
// method-specific payload (see payloads.go).
type Transaction struct {
	Method    Method          `json:"method"`
	Args      json.RawMessage `json:"args,omitempty"`
	Nonce     string          `json:"nonce"`
	Timestamp time.Time       `json:"timestamp"`
}

// SignedTransaction wraps the serialized Transaction together with the
// signer's public key and signature. The signer is the caller identity.
type SignedTransaction struct {
	Tx        []byte `json:"tx"`
	PublicKey []byte `json:"public_key"`
	Signature []byte `json:"signature"`
}

// Signer is satisfied by identity.Identity.
type Signer interface {
	Sign(message []byte) []byte
	PublicKey() ed25519.PublicKey
}

// NewTransaction builds a transaction for method with args marshaled to JSON
// and a fresh random nonce.
func NewTransaction(method Method, args interface{}) (*Transaction, error) {
	var raw json.RawMessage
	if args != nil {
		b, err := json.Marshal(args)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return &Transaction{
		Method:    method,
		Args:      raw,
		Nonce:     uuid.NewString(),
		Timestamp: time.Now().UTC(),
	}, nil
}

// Sign serializes the transaction and signs it.
func (tx *Transaction) Sign(signer Signer) (*SignedTransaction, error) {
	if signer == nil {
		return nil, errors.New("nil signer")
	}
	b, err := json.Marshal(tx)
	if err != nil {
		return nil, err
	}
	return &SignedTransaction{
		Tx:        b,
		PublicKey: []byte(signer.PublicKey()),
		Signature: signer.Sign(b),
	}, nil
}

// Verify checks the signature against the embedded public key.
func (stx *SignedTransaction) Verify() bool {
	if len(stx.PublicKey) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(stx.PublicKey), stx.Tx, stx.Signature)
}

// GetTransaction decodes the inner transaction.
func (stx *SignedTransaction) GetTransaction() (*Transaction, error) {
	var tx Transaction
	if err := json.Unmarshal(stx.Tx, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// SignerID returns the hex-encoded public key of the signer, which is the
// caller identity seen by the marketplace.
func (stx *SignedTransaction) SignerID() string {
	return hex.EncodeToString(stx.PublicKey)
}

// TxResult reports the outcome of a submitted transaction.
type TxResult struct {
	Hash   string          `json:"hash"`
	Code   uint32          `json:"code"`
	Log    string          `json:"log,omitempty"`
	Height int64           `json:"height,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// OK reports whether the transaction executed successfully.
func (r *TxResult) OK() bool {
	return r.Code == 0
}
