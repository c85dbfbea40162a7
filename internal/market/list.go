package market

import (
	"encoding/json"

	"carbonex.market/cmx/internal/types"
)

// Scanner walks stored records by key prefix in ascending key order.
type Scanner interface {
	Scan(prefix string, fn func(key string, value []byte) error) error
}

// Listing kinds accepted by List.
const (
	ListProposals = "proposals"
	ListAuctions  = "auctions"
	ListSales     = "sales"
)

// List returns every stored record of kind. With openOnly set it keeps the
// records that still accept activity: unissued proposals, auctions that
// have not been ended and sales with credits left.
func (m *Market) List(s Scanner, kind string, openOnly bool) (*Result, error) {
	var (
		records interface{}
		err     error
	)
	switch kind {
	case ListProposals:
		records, err = scanRecords(s, proposalPrefix, func(p *types.Proposal) bool {
			return !openOnly || !p.Issued
		})
	case ListAuctions:
		records, err = scanRecords(s, auctionPrefix, func(a *types.Auction) bool {
			return !openOnly || !a.Ended
		})
	case ListSales:
		records, err = scanRecords(s, salePrefix, func(sale *types.Sale) bool {
			return !openOnly || !sale.Sold
		})
	default:
		return nil, errorf(ErrInvalidArgument, "unknown listing %q", kind)
	}
	if err != nil {
		return nil, err
	}
	return queryResult(records)
}

func scanRecords[T any](s Scanner, prefix string, keep func(*T) bool) ([]T, error) {
	out := []T{}
	err := s.Scan(prefix, func(key string, value []byte) error {
		var rec T
		if err := json.Unmarshal(value, &rec); err != nil {
			return errorf(ErrMalformedRecord, "record %s: %v", key, err)
		}
		if keep(&rec) {
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}
