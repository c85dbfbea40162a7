package types

// InitializeArgs is the payload for MethodInitialize.
type InitializeArgs struct {
	GovernmentName string `json:"government_name"`
	Country        string `json:"country"`
	DeptName       string `json:"dept_name"`
}

// SubmitProposalArgs is the payload for MethodSubmitProposal.
type SubmitProposalArgs struct {
	Description string `json:"description"`
	Target      uint64 `json:"target"`
}

// ApproveProjectArgs is the payload for MethodApproveProject.
type ApproveProjectArgs struct {
	ProposalID string `json:"proposal_id"`
	Credits    uint64 `json:"credits"`
}

// ProposalRef is the payload for MethodIssueCarbonCredits and MethodGetProposal.
type ProposalRef struct {
	ProposalID string `json:"proposal_id"`
}

// CreateAuctionArgs is the payload for MethodCreateAuction.
type CreateAuctionArgs struct {
	TotalCredits    uint64 `json:"total_credits"`
	StartingBid     uint64 `json:"starting_bid"`
	DurationSeconds int64  `json:"duration_seconds"`
}

// PlaceBidArgs is the payload for MethodPlaceBid.
type PlaceBidArgs struct {
	AuctionID string `json:"auction_id"`
	Amount    uint64 `json:"amount"`
}

// AuctionRef is the payload for MethodEndAuction and MethodGetAuction.
type AuctionRef struct {
	AuctionID string `json:"auction_id"`
}

// CreateSaleArgs is the payload for MethodCreateSale.
type CreateSaleArgs struct {
	CreditsForSale uint64 `json:"credits_for_sale"`
	PricePerCredit uint64 `json:"price_per_credit"`
}

// BuyCreditsArgs is the payload for MethodBuyCredits.
type BuyCreditsArgs struct {
	SaleID       string `json:"sale_id"`
	CreditsToBuy uint64 `json:"credits_to_buy"`
}

// SaleRef is the payload for MethodGetSale.
type SaleRef struct {
	SaleID string `json:"sale_id"`
}

// AccountRef is the payload for MethodGetCreditBalance and MethodGetProceeds.
// An empty Identity refers to the caller.
type AccountRef struct {
	Identity string `json:"identity,omitempty"`
}
