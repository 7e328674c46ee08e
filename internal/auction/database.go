package auction

import (
	"errors"
	"time"

	"github.com/openbid/auction-api/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateAuction(auction *types.Auction) error {
	return d.db.Create(auction).Error
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

// ListOpenAuctions returns approved auctions whose end time is still ahead,
// soonest-closing first.
func (d *Database) ListOpenAuctions(now time.Time) ([]types.Auction, error) {
	var auctions []types.Auction
	if err := d.db.Where("status = ? AND auction_end_time > ?", types.StatusApproved, now).
		Order("auction_end_time ASC").
		Find(&auctions).Error; err != nil {
		return nil, err
	}
	return auctions, nil
}

// ApproveAuction performs the pending -> approved transition and stamps the
// end time, guarded on the current status so a duplicate approval can never
// reset the clock. Returns the number of rows transitioned (0 or 1).
func (d *Database) ApproveAuction(auctionID string, durationDays int, endTime time.Time) (int64, error) {
	result := d.db.Model(&types.Auction{}).
		Where("auction_id = ? AND status = ?", auctionID, types.StatusPending).
		Updates(map[string]interface{}{
			"status":           types.StatusApproved,
			"duration_days":    durationDays,
			"auction_end_time": endTime,
			"version":          gorm.Expr("version + 1"),
			"updated_at":       time.Now(),
		})
	return result.RowsAffected, result.Error
}

// RejectAuction performs the pending -> rejected transition with the same
// status guard as ApproveAuction.
func (d *Database) RejectAuction(auctionID, reason string) (int64, error) {
	result := d.db.Model(&types.Auction{}).
		Where("auction_id = ? AND status = ?", auctionID, types.StatusPending).
		Updates(map[string]interface{}{
			"status":           types.StatusRejected,
			"rejection_reason": reason,
			"version":          gorm.Expr("version + 1"),
			"updated_at":       time.Now(),
		})
	return result.RowsAffected, result.Error
}
