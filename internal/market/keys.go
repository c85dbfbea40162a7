package market

import "github.com/google/uuid"

// World state keys.
const (
	governmentKey = "governmentDetails"

	proposalPrefix = "proposal_"
	auctionPrefix  = "auction_"
	salePrefix     = "sale_"
	creditsPrefix  = "credits_"
	proceedsPrefix = "proceeds_"
	receiptPrefix  = "receipt_"
)

func proposalKey(id string) string {
	return proposalPrefix + id
}

func auctionKey(id string) string {
	return auctionPrefix + id
}

func saleKey(id string) string {
	return salePrefix + id
}

func creditsKey(owner string) string {
	return creditsPrefix + owner
}

func proceedsKey(owner string) string {
	return proceedsPrefix + owner
}

func receiptKey(txID string) string {
	return receiptPrefix + txID
}

// idNamespace scopes record ids generated by the marketplace.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:cmx:record"))

// newID derives the id of the record of the given kind created by the
// executing transaction. Every operation creates at most one record per
// kind, so the transaction id alone keeps ids unique, and every replica
// derives the same id.
func newID(ctx Context, kind string) string {
	return uuid.NewSHA1(idNamespace, []byte(kind+"/"+ctx.TxID())).String()
}
