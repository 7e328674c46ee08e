package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// AuctionView is the read projection of an auction returned to clients.
// Status carries the lazily computed ENDED state: an APPROVED auction whose
// end time has passed is reported as ENDED even before settlement persists it.
type AuctionView struct {
	AuctionID       string          `json:"auction_id"`
	SellerID        *string         `json:"seller_id"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	StartingPrice   decimal.Decimal `json:"starting_price"`
	CurrentPrice    decimal.Decimal `json:"current_price"`
	HighestBidderID *string         `json:"highest_bidder_id"`
	TotalBidCount   int64           `json:"total_bid_count"`
	Status          string          `json:"status"`
	AuctionEndTime  *time.Time      `json:"auction_end_time"`
	CreatedAt       time.Time       `json:"created_at"`
}

// WinnerResponse is the result of settling an ended auction.
type WinnerResponse struct {
	AuctionID    string           `json:"auction_id"`
	Status       string           `json:"status"` // SOLD or UNSOLD
	WinnerID     *string          `json:"winner_id,omitempty"`
	WinningPrice *decimal.Decimal `json:"winning_price,omitempty"`
	SettledAt    time.Time        `json:"settled_at"`
}
