package migrations

import (
	"github.com/openbid/auction-api/internal/types"
	"gorm.io/gorm"
)

// AddBidLedger creates the bid ledger table and the indexes the hot paths
// depend on: ledger reads ordered by acceptance and the settlement sweep
// over expired live auctions.
func AddBidLedger(db *gorm.DB) error {
	if err := db.AutoMigrate(&types.Bid{}); err != nil {
		return err
	}

	// Using raw SQL for index creation to have more control over index types
	indexes := []string{
		// Ledger reads: all bids for an auction in acceptance order
		`CREATE INDEX IF NOT EXISTS idx_bids_auction_created
		 ON bids(auction_id, created_at)`,

		// Settlement sweep: live auctions whose end time has passed
		`CREATE INDEX IF NOT EXISTS idx_auctions_status_end_time
		 ON auctions(status, auction_end_time)`,

		// Seller listings lookup
		`CREATE INDEX IF NOT EXISTS idx_auctions_seller
		 ON auctions(seller_id)`,
	}

	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return err
		}
	}

	return nil
}
