package market

import (
	"fmt"
	"math/bits"

	"carbonex.market/cmx/internal/types"
)

// CreateSale lists creditsForSale of the caller's credits at pricePerCredit.
// The credits stay in the seller's account until a purchase settles.
func (m *Market) CreateSale(ctx Context, creditsForSale, pricePerCredit uint64) (*Result, error) {
	if creditsForSale == 0 {
		return nil, makeError(ErrInvalidArgument, "credits for sale must be positive")
	}

	seller := ctx.CallerID()
	acct, err := loadCreditAccount(ctx, seller)
	if err != nil {
		return nil, err
	}
	if acct.Balance < creditsForSale {
		return nil, errorf(ErrInsufficientCredits, "%s holds %d credits, cannot list %d",
			seller, acct.Balance, creditsForSale)
	}

	sale := types.Sale{
		ID:             newID(ctx, "sale"),
		CreditsForSale: creditsForSale,
		PricePerCredit: pricePerCredit,
		Seller:         seller,
	}
	if err := putRecord(ctx, saleKey(sale.ID), &sale); err != nil {
		return nil, err
	}
	if err := emit(ctx, EventSaleCreated, &sale); err != nil {
		return nil, err
	}

	log.Debugf("Sale %s listed by %s: %d credits at %d", sale.ID, seller, creditsForSale, pricePerCredit)
	return &Result{
		Message: fmt.Sprintf("Sale created with ID: %s", sale.ID),
		ID:      sale.ID,
	}, nil
}

// Purchase describes a settled BuyCredits call.
type Purchase struct {
	SaleID    string `json:"sale_id"`
	Buyer     string `json:"buyer"`
	Seller    string `json:"seller"`
	Credits   uint64 `json:"credits"`
	TotalCost uint64 `json:"total_cost"`
	Remaining uint64 `json:"remaining"`
	Sold      bool   `json:"sold"`
}

// BuyCredits moves creditsToBuy from the seller's account to the caller's
// and accrues the price on the seller's proceeds.
//
// The price is not added to the seller's CreditAccount. Payment is a
// separate unit from credits, so it lands in the seller's ProceedsAccount
// (see GetProceeds) and a purchase leaves the total number of credits held
// across all accounts unchanged.
func (m *Market) BuyCredits(ctx Context, saleID string, creditsToBuy uint64) (*Result, error) {
	sale, err := loadSale(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if sale.Sold {
		return nil, errorf(ErrAlreadySold, "sale %s is sold out", saleID)
	}
	if creditsToBuy == 0 {
		return nil, makeError(ErrInvalidArgument, "credits to buy must be positive")
	}
	buyer := ctx.CallerID()
	if buyer == sale.Seller {
		return nil, makeError(ErrInvalidArgument, "seller cannot buy from their own sale")
	}
	if creditsToBuy > sale.CreditsForSale {
		return nil, errorf(ErrInsufficientCredits, "sale %s has %d credits left, %d requested",
			saleID, sale.CreditsForSale, creditsToBuy)
	}
	hi, totalCost := bits.Mul64(creditsToBuy, sale.PricePerCredit)
	if hi != 0 {
		return nil, makeError(ErrInvalidArgument, "total cost overflows")
	}

	// The listing is not backed by a hold, so the seller may have moved the
	// credits since. Debit fails in that case.
	sellerAcct, err := loadCreditAccount(ctx, sale.Seller)
	if err != nil {
		return nil, err
	}
	if err := sellerAcct.Debit(creditsToBuy); err != nil {
		return nil, err
	}
	if err := saveCreditAccount(ctx, sellerAcct); err != nil {
		return nil, err
	}
	if _, err := creditAccount(ctx, buyer, creditsToBuy); err != nil {
		return nil, err
	}

	proceeds, err := loadProceedsAccount(ctx, sale.Seller)
	if err != nil {
		return nil, err
	}
	if err := proceeds.Accrue(totalCost); err != nil {
		return nil, err
	}
	if err := saveProceedsAccount(ctx, proceeds); err != nil {
		return nil, err
	}

	sale.CreditsForSale -= creditsToBuy
	if sale.CreditsForSale == 0 {
		sale.Sold = true
	}
	if err := putRecord(ctx, saleKey(saleID), sale); err != nil {
		return nil, err
	}

	purchase := Purchase{
		SaleID:    saleID,
		Buyer:     buyer,
		Seller:    sale.Seller,
		Credits:   creditsToBuy,
		TotalCost: totalCost,
		Remaining: sale.CreditsForSale,
		Sold:      sale.Sold,
	}
	if err := emit(ctx, EventCreditsPurchased, &purchase); err != nil {
		return nil, err
	}

	log.Debugf("%s bought %d credits from sale %s for %d", buyer, creditsToBuy, saleID, totalCost)
	return &Result{
		Message: fmt.Sprintf("Purchased %d credits from sale %s for %d", creditsToBuy, saleID, totalCost),
		ID:      saleID,
	}, nil
}

// GetSale returns a sale.
func (m *Market) GetSale(ctx Context, saleID string) (*Result, error) {
	sale, err := loadSale(ctx, saleID)
	if err != nil {
		return nil, err
	}
	return queryResult(sale)
}

func loadSale(ctx Context, saleID string) (*types.Sale, error) {
	if saleID == "" {
		return nil, makeError(ErrInvalidArgument, "sale id is required")
	}
	var sale types.Sale
	found, err := getRecord(ctx, saleKey(saleID), &sale)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errorf(ErrNotFound, "sale %s does not exist", saleID)
	}
	return &sale, nil
}
