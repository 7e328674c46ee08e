// Package notify publishes domain events to the message broker after the
// owning transaction has committed. Publishing is best-effort: the bid
// ledger and price projection are the only strictly consistent state, so
// failures here are logged and swallowed.
package notify

import "time"

// Queue names, shared with downstream consumers.
const (
	QueueBidAccepted    = "auction.bid.accepted"
	QueueAuctionSettled = "auction.settled"
)

// BidAcceptedEvent is published after a bid commit. It carries enough for
// notification and UI-refresh consumers without another database read.
type BidAcceptedEvent struct {
	AuctionID     string    `json:"auction_id"`
	BidID         string    `json:"bid_id"`
	BidderID      string    `json:"bidder_id"`
	Amount        string    `json:"amount"`
	TotalBidCount int64     `json:"total_bid_count"`
	AcceptedAt    time.Time `json:"accepted_at"`
}

// AuctionSettledEvent is published once an auction reaches SOLD or UNSOLD.
type AuctionSettledEvent struct {
	AuctionID    string    `json:"auction_id"`
	Status       string    `json:"status"`
	WinnerID     *string   `json:"winner_id,omitempty"`
	WinningPrice string    `json:"winning_price,omitempty"`
	SettledAt    time.Time `json:"settled_at"`
}
