package auction

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
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

func newListing(seller string, price int64) NewListing {
	return NewListing{
		SellerID:      &seller,
		Title:         "test listing",
		Description:   "something worth bidding on",
		StartingPrice: decimal.NewFromInt(price),
	}
}

func TestCreateAuction(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db, 7)

	auction, err := service.CreateAuction(newListing("seller1", 100))
	require.NoError(t, err)

	require.Equal(t, types.StatusPending, auction.Status)
	require.True(t, auction.CurrentPrice.Equal(auction.StartingPrice))
	require.Nil(t, auction.AuctionEndTime)
	require.Nil(t, auction.HighestBidderID)
	require.Zero(t, auction.TotalBidCount)
}

func TestCreateAuctionValidation(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db, 7)

	_, err := service.CreateAuction(newListing("seller1", 0))
	rej, ok := types.AsRejection(err)
	require.True(t, ok)
	require.Equal(t, types.CodeInvalidAmount, rej.Code)

	listing := newListing("seller1", 100)
	listing.Title = ""
	_, err = service.CreateAuction(listing)
	_, ok = types.AsRejection(err)
	require.True(t, ok)
}

func TestApproveStampsEndTimeOnce(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db, 7)

	created, err := service.CreateAuction(newListing("seller1", 100))
	require.NoError(t, err)

	approved, err := service.Approve(created.AuctionID, 3)
	require.NoError(t, err)
	require.Equal(t, types.StatusApproved, approved.Status)
	require.NotNil(t, approved.AuctionEndTime)
	require.Equal(t, 3, approved.DurationDays)

	// roughly now + 3 days
	expected := time.Now().Add(3 * 24 * time.Hour)
	require.WithinDuration(t, expected, *approved.AuctionEndTime, time.Minute)

	// a duplicate admin click must not reset the clock
	_, err = service.Approve(created.AuctionID, 10)
	rej, ok := types.AsRejection(err)
	require.True(t, ok)
	require.Equal(t, types.CodeInvalidTransition, rej.Code)

	again, err := service.GetAuctionView(created.AuctionID)
	require.NoError(t, err)
	require.Equal(t, approved.AuctionEndTime.Unix(), again.AuctionEndTime.Unix())
}

func TestApproveUsesDefaultDuration(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db, 14)

	created, err := service.CreateAuction(newListing("seller1", 100))
	require.NoError(t, err)

	approved, err := service.Approve(created.AuctionID, 0)
	require.NoError(t, err)
	require.Equal(t, 14, approved.DurationDays)
}

func TestRejectRequiresReason(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db, 7)

	created, err := service.CreateAuction(newListing("seller1", 100))
	require.NoError(t, err)

	_, err = service.Reject(created.AuctionID, "")
	rej, ok := types.AsRejection(err)
	require.True(t, ok)
	require.Equal(t, types.CodeInvalidTransition, rej.Code)

	rejected, err := service.Reject(created.AuctionID, "prohibited item")
	require.NoError(t, err)
	require.Equal(t, types.StatusRejected, rejected.Status)
	require.Equal(t, "prohibited item", rejected.RejectionReason)

	// rejection is terminal
	_, err = service.Approve(created.AuctionID, 7)
	rej, ok = types.AsRejection(err)
	require.True(t, ok)
	require.Equal(t, types.CodeInvalidTransition, rej.Code)
}

func TestApproveUnknownAuction(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db, 7)

	_, err := service.Approve("AUC_missing", 7)
	rej, ok := types.AsRejection(err)
	require.True(t, ok)
	require.Equal(t, types.CodeNotFound, rej.Code)
}

func TestGetAuctionViewReportsLazyEnded(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db, 7)

	created, err := service.CreateAuction(newListing("seller1", 100))
	require.NoError(t, err)
	_, err = service.Approve(created.AuctionID, 7)
	require.NoError(t, err)

	// rewind the window
	past := time.Now().Add(-time.Minute)
	require.NoError(t, db.Model(&types.Auction{}).
		Where("auction_id = ?", created.AuctionID).
		Update("auction_end_time", past).Error)

	view, err := service.GetAuctionView(created.AuctionID)
	require.NoError(t, err)
	require.Equal(t, types.StatusEnded, view.Status)

	// the stored status is untouched; persisting ENDED is settlement's job
	var stored types.Auction
	require.NoError(t, db.Where("auction_id = ?", created.AuctionID).First(&stored).Error)
	require.Equal(t, types.StatusApproved, stored.Status)
}

func TestListOpenAuctions(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db, 7)

	live, err := service.CreateAuction(newListing("seller1", 100))
	require.NoError(t, err)
	_, err = service.Approve(live.AuctionID, 7)
	require.NoError(t, err)

	// still pending, must not appear
	_, err = service.CreateAuction(newListing("seller2", 200))
	require.NoError(t, err)

	// approved but expired, must not appear
	expired, err := service.CreateAuction(newListing("seller3", 300))
	require.NoError(t, err)
	_, err = service.Approve(expired.AuctionID, 7)
	require.NoError(t, err)
	past := time.Now().Add(-time.Minute)
	require.NoError(t, db.Model(&types.Auction{}).
		Where("auction_id = ?", expired.AuctionID).
		Update("auction_end_time", past).Error)

	views, err := service.ListOpenAuctions()
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.Equal(t, live.AuctionID, views[0].AuctionID)
}
