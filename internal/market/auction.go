package market

import (
	"fmt"
	"math"

	"carbonex.market/cmx/internal/types"
)

// Auction status values reported by GetAuction.
const (
	StatusOpen    = "open"
	StatusClosing = "closing"
	StatusEnded   = "ended"
)

// AuctionView is an auction together with its status at query time.
type AuctionView struct {
	*types.Auction
	Status string `json:"status"`
}

// auctionStatus derives the lifecycle state of a at time t. An auction past
// its end time stays "closing" until EndAuction settles it.
func auctionStatus(a *types.Auction, t int64) string {
	switch {
	case a.Ended:
		return StatusEnded
	case t > a.EndTime:
		return StatusClosing
	default:
		return StatusOpen
	}
}

// CreateAuction offers totalCredits to the highest bidder until
// durationSeconds from now.
func (m *Market) CreateAuction(ctx Context, totalCredits, startingBid uint64, durationSeconds int64) (*Result, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	switch {
	case totalCredits == 0:
		return nil, makeError(ErrInvalidArgument, "auction must offer a positive number of credits")
	case startingBid == 0:
		return nil, makeError(ErrInvalidArgument, "starting bid must be positive")
	case durationSeconds <= 0:
		return nil, makeError(ErrInvalidArgument, "auction duration must be positive")
	}
	start := now(ctx)
	if durationSeconds > math.MaxInt64-start {
		return nil, makeError(ErrInvalidArgument, "auction duration is out of range")
	}

	auction := types.Auction{
		ID:           newID(ctx, "auction"),
		Creator:      ctx.CallerID(),
		TotalCredits: totalCredits,
		StartingBid:  startingBid,
		EndTime:      start + durationSeconds,
	}
	if err := putRecord(ctx, auctionKey(auction.ID), &auction); err != nil {
		return nil, err
	}
	if err := emit(ctx, EventAuctionCreated, &auction); err != nil {
		return nil, err
	}

	log.Debugf("Auction %s created: %d credits, starting bid %d, ends %d",
		auction.ID, totalCredits, startingBid, auction.EndTime)
	return &Result{
		Message: fmt.Sprintf("Auction created with ID: %s", auction.ID),
		ID:      auction.ID,
	}, nil
}

// PlaceBid records the caller as the highest bidder.
func (m *Market) PlaceBid(ctx Context, auctionID string, amount uint64) (*Result, error) {
	auction, err := loadAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if auction.Ended || now(ctx) > auction.EndTime {
		return nil, errorf(ErrAuctionEnded, "auction %s has ended", auctionID)
	}
	if amount <= auction.HighestBid || amount < auction.StartingBid {
		return nil, errorf(ErrBidTooLow, "bid %d does not beat highest bid %d (starting bid %d)",
			amount, auction.HighestBid, auction.StartingBid)
	}

	auction.HighestBid = amount
	auction.HighestBidder = ctx.CallerID()
	if err := putRecord(ctx, auctionKey(auctionID), auction); err != nil {
		return nil, err
	}
	if err := emit(ctx, EventBidPlaced, auction); err != nil {
		return nil, err
	}

	log.Debugf("Bid %d placed on auction %s by %s", amount, auctionID, auction.HighestBidder)
	return &Result{
		Message: fmt.Sprintf("Bid of %d placed on auction %s", amount, auctionID),
		ID:      auctionID,
	}, nil
}

// EndAuction settles an auction after its end time, crediting the offered
// credits to the highest bidder. An auction without bids is closed without
// minting anything.
func (m *Market) EndAuction(ctx Context, auctionID string) (*Result, error) {
	auction, err := loadAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if now(ctx) < auction.EndTime {
		return nil, errorf(ErrStillOngoing, "auction %s is still ongoing", auctionID)
	}
	if auction.Ended {
		return nil, errorf(ErrAlreadyEnded, "auction %s has already ended", auctionID)
	}

	auction.Ended = true
	if err := putRecord(ctx, auctionKey(auctionID), auction); err != nil {
		return nil, err
	}

	msg := fmt.Sprintf("Auction %s closed without bids", auctionID)
	if auction.HighestBidder != "" {
		if _, err := creditAccount(ctx, auction.HighestBidder, auction.TotalCredits); err != nil {
			return nil, err
		}
		msg = fmt.Sprintf("Auction %s ended, %d credits transferred to %s",
			auctionID, auction.TotalCredits, auction.HighestBidder)
	}
	if err := emit(ctx, EventAuctionEnded, auction); err != nil {
		return nil, err
	}

	log.Infof("%s", msg)
	return &Result{Message: msg, ID: auctionID}, nil
}

// GetAuction returns an auction and its current status.
func (m *Market) GetAuction(ctx Context, auctionID string) (*Result, error) {
	auction, err := loadAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	return queryResult(&AuctionView{Auction: auction, Status: auctionStatus(auction, now(ctx))})
}

func loadAuction(ctx Context, auctionID string) (*types.Auction, error) {
	if auctionID == "" {
		return nil, makeError(ErrInvalidArgument, "auction id is required")
	}
	var auction types.Auction
	found, err := getRecord(ctx, auctionKey(auctionID), &auction)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errorf(ErrNotFound, "auction %s does not exist", auctionID)
	}
	return &auction, nil
}
