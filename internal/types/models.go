package types

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Auction statuses. An auction starts life as PENDING and only ever moves
// forward through the state machine; SOLD, UNSOLD and REJECTED are terminal.
const (
	StatusPending  = "PENDING"
	StatusApproved = "APPROVED"
	StatusRejected = "REJECTED"
	StatusEnded    = "ENDED"
	StatusSold     = "SOLD"
	StatusUnsold   = "UNSOLD"
)

// Auction is the persisted state of one item under auction. CurrentPrice,
// HighestBidderID, TotalBidCount and Status are only ever mutated by
// writes guarded on Version; everything else is fixed at creation.
type Auction struct {
	gorm.Model      `json:"-"`
	AuctionID       string          `gorm:"uniqueIndex" json:"auction_id"`
	SellerID        *string         `json:"seller_id"` // nil denotes a marketplace-owned listing
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	StartingPrice   decimal.Decimal `gorm:"type:decimal(20,2)" json:"starting_price"`
	CurrentPrice    decimal.Decimal `gorm:"type:decimal(20,2)" json:"current_price"`
	HighestBidderID *string         `json:"highest_bidder_id"`
	TotalBidCount   int64           `json:"total_bid_count"`
	Status          string          `json:"status"` // PENDING, APPROVED, REJECTED, ENDED, SOLD, UNSOLD
	RejectionReason string          `json:"rejection_reason,omitempty"`
	DurationDays    int             `json:"duration_days"`
	AuctionEndTime  *time.Time      `json:"auction_end_time"` // stamped exactly once, on approval
	SettledAt       *time.Time      `json:"settled_at"`
	Version         int64           `json:"-"` // optimistic concurrency check, bumped on every projection write
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Expired reports whether the bidding window has closed. Every component
// that needs the "has this auction ended" answer goes through this one
// predicate so the lazy view and the settlement sweep can never disagree.
func (a *Auction) Expired(now time.Time) bool {
	return a.AuctionEndTime != nil && !now.Before(*a.AuctionEndTime)
}

// ComputedStatus is the stored status with lazy expiry applied: an APPROVED
// auction past its end time reads as ENDED before settlement persists the
// transition.
func (a *Auction) ComputedStatus(now time.Time) string {
	if a.Status == StatusApproved && a.Expired(now) {
		return StatusEnded
	}
	return a.Status
}

// Bid is one immutable entry in an auction's bid ledger. Rows are only ever
// inserted, in the same transaction that updates the auction's price
// projection, so the ledger and the projection can never diverge.
type Bid struct {
	gorm.Model `json:"-"`
	BidID      string          `gorm:"uniqueIndex" json:"bid_id"`
	AuctionID  string          `gorm:"index;not null" json:"auction_id"`
	BidderID   string          `gorm:"index" json:"bidder_id"`
	Amount     decimal.Decimal `gorm:"type:decimal(20,2)" json:"amount"`
	CreatedAt  time.Time       `json:"created_at"`
}
