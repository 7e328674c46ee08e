package settlement

import (
	"errors"
	"time"

	"github.com/openbid/auction-api/internal/types"
	"gorm.io/gorm"
)

// ErrVersionConflict means the auction row changed underneath a settlement
// attempt; the resolver re-reads and retries.
var ErrVersionConflict = errors.New("auction row version conflict")

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) GetAuction(auctionID string) (*types.Auction, error) {
	var auction types.Auction
	if err := d.db.Where("auction_id = ?", auctionID).First(&auction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &auction, nil
}

// GetExpiredLiveAuctions returns auctions whose bidding window has closed
// but which have not been settled yet. The predicate is the same
// now >= auction_end_time comparison the lazy read path uses.
func (d *Database) GetExpiredLiveAuctions(now time.Time) ([]types.Auction, error) {
	var auctions []types.Auction
	if err := d.db.
		Where("status IN ? AND auction_end_time <= ?",
			[]string{types.StatusApproved, types.StatusEnded}, now).
		Find(&auctions).Error; err != nil {
		return nil, err
	}
	return auctions, nil
}

// SettleAuction writes the terminal status (SOLD or UNSOLD) and the
// settlement timestamp in one guarded update. The version check serializes
// against any in-flight bid: if a bid commits between the resolver's read
// and this write, the update matches nothing and the resolver retries with
// the newer projection.
func (d *Database) SettleAuction(snapshot *types.Auction, status string, settledAt time.Time) error {
	result := d.db.Model(&types.Auction{}).
		Where("auction_id = ? AND version = ?", snapshot.AuctionID, snapshot.Version).
		Updates(map[string]interface{}{
			"status":     status,
			"settled_at": settledAt,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrVersionConflict
	}
	return nil
}
