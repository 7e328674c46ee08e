package bidding

import (
	"errors"
	"time"

	"github.com/openbid/auction-api/internal/types"
	"gorm.io/gorm"
)

// ErrVersionConflict means the auction row changed between the validated
// read and the guarded write. The caller re-reads and retries; after enough
// attempts it surfaces as a transient_conflict rejection.
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

// GetBidsForAuction returns the full ledger for an auction in acceptance
// order. Amounts are strictly increasing along this order by construction.
func (d *Database) GetBidsForAuction(auctionID string) ([]types.Bid, error) {
	var bids []types.Bid
	if err := d.db.Where("auction_id = ?", auctionID).
		Order("created_at ASC, id ASC").
		Find(&bids).Error; err != nil {
		return nil, err
	}
	return bids, nil
}

// AcceptBid appends the bid to the ledger and moves the auction projection
// to it in one transaction. The projection update is compare-and-swapped on
// the version observed at validation time, so a snapshot that went stale
// between read and write cannot clobber a concurrently accepted bid: the
// update matches zero rows, everything rolls back, and ErrVersionConflict
// tells the caller to re-read.
//
// On any failure no durable state changes; ledger and projection commit
// together or not at all.
func (d *Database) AcceptBid(snapshot *types.Auction, bid *types.Bid) error {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	result := tx.Model(&types.Auction{}).
		Where("auction_id = ? AND version = ?", snapshot.AuctionID, snapshot.Version).
		Updates(map[string]interface{}{
			"current_price":     bid.Amount,
			"highest_bidder_id": bid.BidderID,
			"total_bid_count":   gorm.Expr("total_bid_count + 1"),
			"version":           gorm.Expr("version + 1"),
			"updated_at":        time.Now(),
		})
	if result.Error != nil {
		tx.Rollback()
		return result.Error
	}
	if result.RowsAffected == 0 {
		tx.Rollback()
		return ErrVersionConflict
	}

	if err := tx.Create(bid).Error; err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}
