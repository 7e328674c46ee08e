package settlement

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/openbid/auction-api/internal/bidding"
	"github.com/openbid/auction-api/internal/database"
	"github.com/openbid/auction-api/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.NewDatabase(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	return db
}

func seedLiveAuction(t *testing.T, db *gorm.DB, sellerID string, startingPrice int64) *types.Auction {
	t.Helper()
	endTime := time.Now().Add(time.Hour)
	auction := &types.Auction{
		AuctionID:      "AUC_" + uuid.New().String(),
		SellerID:       &sellerID,
		Title:          "settlement test listing",
		StartingPrice:  decimal.NewFromInt(startingPrice),
		CurrentPrice:   decimal.NewFromInt(startingPrice),
		Status:         types.StatusApproved,
		DurationDays:   7,
		AuctionEndTime: &endTime,
	}
	require.NoError(t, db.Create(auction).Error)
	return auction
}

func expireAuction(t *testing.T, db *gorm.DB, auctionID string) {
	t.Helper()
	past := time.Now().Add(-time.Minute)
	require.NoError(t, db.Model(&types.Auction{}).
		Where("auction_id = ?", auctionID).
		Update("auction_end_time", past).Error)
}

func reloadAuction(t *testing.T, db *gorm.DB, auctionID string) *types.Auction {
	t.Helper()
	var auction types.Auction
	require.NoError(t, db.Where("auction_id = ?", auctionID).First(&auction).Error)
	return &auction
}

func TestResolveUnsoldWithoutBids(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db, nil)

	auction := seedLiveAuction(t, db, "seller1", 100)
	expireAuction(t, db, auction.AuctionID)

	winner, err := service.Resolve(auction.AuctionID)
	require.NoError(t, err)
	require.Equal(t, types.StatusUnsold, winner.Status)
	require.Nil(t, winner.WinnerID)
	require.Nil(t, winner.WinningPrice)
	require.False(t, winner.SettledAt.IsZero())

	stored := reloadAuction(t, db, auction.AuctionID)
	require.Equal(t, types.StatusUnsold, stored.Status)
	require.NotNil(t, stored.SettledAt)
}

func TestResolveSoldPicksHighestBidder(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db, nil)
	bidService := bidding.NewService(db, nil)

	auction := seedLiveAuction(t, db, "seller1", 100)

	_, err := bidService.PlaceBid(auction.AuctionID, "bidderA", decimal.NewFromInt(150))
	require.NoError(t, err)
	_, err = bidService.PlaceBid(auction.AuctionID, "bidderB", decimal.NewFromInt(160))
	require.NoError(t, err)

	expireAuction(t, db, auction.AuctionID)

	winner, err := service.Resolve(auction.AuctionID)
	require.NoError(t, err)
	require.Equal(t, types.StatusSold, winner.Status)
	require.NotNil(t, winner.WinnerID)
	require.Equal(t, "bidderB", *winner.WinnerID)
	require.NotNil(t, winner.WinningPrice)
	require.True(t, winner.WinningPrice.Equal(decimal.NewFromInt(160)))
}

func TestResolveIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db, nil)
	bidService := bidding.NewService(db, nil)

	auction := seedLiveAuction(t, db, "seller1", 100)
	_, err := bidService.PlaceBid(auction.AuctionID, "bidderA", decimal.NewFromInt(150))
	require.NoError(t, err)
	expireAuction(t, db, auction.AuctionID)

	first, err := service.Resolve(auction.AuctionID)
	require.NoError(t, err)

	second, err := service.Resolve(auction.AuctionID)
	require.NoError(t, err)

	require.Equal(t, first.Status, second.Status)
	require.Equal(t, *first.WinnerID, *second.WinnerID)
	require.Equal(t, first.SettledAt.Unix(), second.SettledAt.Unix())

	stored := reloadAuction(t, db, auction.AuctionID)
	require.Equal(t, int64(1), stored.TotalBidCount)
}

func TestResolveLiveAuctionRefused(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db, nil)

	auction := seedLiveAuction(t, db, "seller1", 100)

	_, err := service.Resolve(auction.AuctionID)
	rej, ok := types.AsRejection(err)
	require.True(t, ok)
	require.Equal(t, types.CodeInvalidTransition, rej.Code)

	stored := reloadAuction(t, db, auction.AuctionID)
	require.Equal(t, types.StatusApproved, stored.Status)
}

func TestResolvePendingAuctionRefused(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db, nil)

	seller := "seller1"
	auction := &types.Auction{
		AuctionID:     "AUC_" + uuid.New().String(),
		SellerID:      &seller,
		Title:         "unreviewed listing",
		StartingPrice: decimal.NewFromInt(100),
		CurrentPrice:  decimal.NewFromInt(100),
		Status:        types.StatusPending,
	}
	require.NoError(t, db.Create(auction).Error)

	_, err := service.Resolve(auction.AuctionID)
	rej, ok := types.AsRejection(err)
	require.True(t, ok)
	require.Equal(t, types.CodeInvalidTransition, rej.Code)
}

func TestResolveUnknownAuction(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db, nil)

	_, err := service.Resolve("AUC_missing")
	rej, ok := types.AsRejection(err)
	require.True(t, ok)
	require.Equal(t, types.CodeNotFound, rej.Code)
}

func TestSweepSettlesExpiredAuctions(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db, nil)
	bidService := bidding.NewService(db, nil)

	withBid := seedLiveAuction(t, db, "seller1", 100)
	_, err := bidService.PlaceBid(withBid.AuctionID, "bidderA", decimal.NewFromInt(150))
	require.NoError(t, err)
	expireAuction(t, db, withBid.AuctionID)

	noBids := seedLiveAuction(t, db, "seller2", 200)
	expireAuction(t, db, noBids.AuctionID)

	// still live, the sweep must leave it alone
	live := seedLiveAuction(t, db, "seller3", 300)

	processor := NewProcessor(service, time.Minute)
	require.NoError(t, processor.sweep())

	require.Equal(t, types.StatusSold, reloadAuction(t, db, withBid.AuctionID).Status)
	require.Equal(t, types.StatusUnsold, reloadAuction(t, db, noBids.AuctionID).Status)
	require.Equal(t, types.StatusApproved, reloadAuction(t, db, live.AuctionID).Status)
}
