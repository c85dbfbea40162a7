// Package types defines the core domain models for the cmx carbon-credit
// marketplace. It contains the records persisted in the world state and the
// signed invocation envelope that carries marketplace operations from clients
// to the node.
package types

// Version is the current version of cmx
const Version = "0.3.0"

// BuildTime is set at build time via -ldflags
var BuildTime = "dev"

// GovernmentProfile is the singleton record describing the administering
// government. Admin is the identity allowed to run administrative operations.
type GovernmentProfile struct {
	Admin      string `json:"admin"`      // Hex public key of the administrator
	Name       string `json:"name"`       // Government name
	Country    string `json:"country"`    // Country of jurisdiction
	Department string `json:"department"` // Responsible department
}

// Proposal is a request for carbon-credit allocation tied to an
// emission-reduction project.
type Proposal struct {
	ID               string `json:"id"`
	Proposer         string `json:"proposer"`          // Identity credited on issuance
	Description      string `json:"description"`       // Free-form project description
	Target           uint64 `json:"target"`            // Declared emission-reduction target
	Approved         bool   `json:"approved"`          // Set once by ApproveProject
	AllocatedCredits uint64 `json:"allocated_credits"` // Nonzero only when approved
	Issued           bool   `json:"issued"`            // Set once by IssueCarbonCredits
	SubmittedAt      int64  `json:"submitted_at"`      // Unix seconds
}

// Auction is a time-bounded offer of a fixed credit pool to the highest bidder.
type Auction struct {
	ID            string `json:"id"`
	Creator       string `json:"creator"`
	TotalCredits  uint64 `json:"total_credits"`
	StartingBid   uint64 `json:"starting_bid"`
	HighestBid    uint64 `json:"highest_bid"`
	HighestBidder string `json:"highest_bidder"`
	EndTime       int64  `json:"end_time"` // Unix seconds
	Ended         bool   `json:"ended"`
}

// Sale is a standing secondary-market offer of owned credits at a fixed
// per-unit price.
type Sale struct {
	ID             string `json:"id"`
	CreditsForSale uint64 `json:"credits_for_sale"` // Remaining balance, never increases
	PricePerCredit uint64 `json:"price_per_credit"`
	Seller         string `json:"seller"`
	Sold           bool   `json:"sold"`
}
