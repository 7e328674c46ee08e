package bidding

import (
	"time"

	"github.com/openbid/auction-api/internal/types"
	"github.com/shopspring/decimal"
)

// Validate checks a candidate bid against an auction snapshot. It is pure
// and advisory: the snapshot may be stale by the time the write happens, so
// the acceptor re-runs these checks against the freshly read row inside its
// atomic attempt. The check order is fixed; the first failure wins so error
// messages stay predictable.
//
// Returns nil when the bid may proceed.
func Validate(snapshot *types.Auction, bidderID string, amount decimal.Decimal, now time.Time) *types.Rejection {
	// 1. amount must be a positive number
	if !amount.IsPositive() {
		return types.NewRejection(types.CodeInvalidAmount,
			"bid amount must be greater than zero, got %s", amount)
	}

	// 2. only a live auction accepts bids
	if snapshot.Status != types.StatusApproved {
		return types.NewRejection(types.CodeNotBiddable,
			"auction %s is not accepting bids (status %s)", snapshot.AuctionID, snapshot.Status)
	}

	// 3. the bidding window must still be open
	if snapshot.Expired(now) {
		return types.NewRejection(types.CodeAuctionEnded,
			"bidding on auction %s closed at %s", snapshot.AuctionID,
			snapshot.AuctionEndTime.Format(time.RFC3339))
	}

	// 4. sellers cannot bid on their own listing
	if snapshot.SellerID != nil && *snapshot.SellerID == bidderID {
		return types.NewRejection(types.CodeSelfBid,
			"seller cannot bid on own auction %s", snapshot.AuctionID)
	}

	// 5. the bid must beat the current price; include it so clients can retry
	if amount.LessThanOrEqual(snapshot.CurrentPrice) {
		return types.NewRejection(types.CodeBidTooLow,
			"bid %s does not beat the current price %s", amount, snapshot.CurrentPrice)
	}

	return nil
}
