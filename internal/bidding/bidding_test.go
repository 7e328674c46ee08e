package bidding

import (
	"fmt"
	"sync"
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

func seedLiveAuction(t *testing.T, db *gorm.DB, seller string, startingPrice int64) *types.Auction {
	t.Helper()
	end := time.Now().Add(time.Hour)
	a := &types.Auction{
		AuctionID:      "AUC_" + uuid.NewString(),
		SellerID:       &seller,
		Title:          "test listing",
		StartingPrice:  decimal.NewFromInt(startingPrice),
		CurrentPrice:   decimal.NewFromInt(startingPrice),
		Status:         types.StatusApproved,
		DurationDays:   7,
		AuctionEndTime: &end,
	}
	require.NoError(t, db.Create(a).Error)
	return a
}

func reloadAuction(t *testing.T, db *gorm.DB, auctionID string) *types.Auction {
	t.Helper()
	var a types.Auction
	require.NoError(t, db.Where("auction_id = ?", auctionID).First(&a).Error)
	return &a
}

// The ascending-auction scenario: accept, reject below the price, accept a
// higher bid, and keep the projection in step with the ledger throughout.
func TestPlaceBidScenario(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db, nil)
	auction := seedLiveAuction(t, db, "seller1", 100)

	// Bidder A takes the lead at 150
	bidA, err := service.PlaceBid(auction.AuctionID, "bidderA", decimal.NewFromInt(150))
	require.NoError(t, err)
	require.NotEmpty(t, bidA.BidID)

	state := reloadAuction(t, db, auction.AuctionID)
	require.True(t, state.CurrentPrice.Equal(decimal.NewFromInt(150)))
	require.Equal(t, "bidderA", *state.HighestBidderID)
	require.EqualValues(t, 1, state.TotalBidCount)

	// Bidder B underbids and is told the price to beat
	_, err = service.PlaceBid(auction.AuctionID, "bidderB", decimal.NewFromInt(140))
	rej, ok := types.AsRejection(err)
	require.True(t, ok)
	require.Equal(t, types.CodeBidTooLow, rej.Code)
	require.Contains(t, rej.Message, "150")

	// Bidder B comes back over the top
	_, err = service.PlaceBid(auction.AuctionID, "bidderB", decimal.NewFromInt(160))
	require.NoError(t, err)

	state = reloadAuction(t, db, auction.AuctionID)
	require.True(t, state.CurrentPrice.Equal(decimal.NewFromInt(160)))
	require.Equal(t, "bidderB", *state.HighestBidderID)
	require.EqualValues(t, 2, state.TotalBidCount)

	// Ledger is the authoritative history, strictly increasing
	bids, err := service.GetBidsForAuction(auction.AuctionID)
	require.NoError(t, err)
	require.Len(t, bids, 2)
	for i := 1; i < len(bids); i++ {
		require.True(t, bids[i].Amount.GreaterThan(bids[i-1].Amount))
	}
	require.True(t, bids[len(bids)-1].Amount.Equal(state.CurrentPrice))
}

func TestPlaceBidRejectionLeavesNoTrace(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db, nil)
	auction := seedLiveAuction(t, db, "seller1", 100)

	_, err := service.PlaceBid(auction.AuctionID, "bidder1", decimal.NewFromInt(50))
	rej, ok := types.AsRejection(err)
	require.True(t, ok)
	require.Equal(t, types.CodeBidTooLow, rej.Code)

	var count int64
	require.NoError(t, db.Model(&types.Bid{}).Where("auction_id = ?", auction.AuctionID).Count(&count).Error)
	require.Zero(t, count)

	state := reloadAuction(t, db, auction.AuctionID)
	require.True(t, state.CurrentPrice.Equal(auction.StartingPrice))
	require.Nil(t, state.HighestBidderID)
	require.Zero(t, state.TotalBidCount)
}

func TestPlaceBidSelfBidAlwaysRejected(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db, nil)
	auction := seedLiveAuction(t, db, "seller1", 100)

	_, err := service.PlaceBid(auction.AuctionID, "seller1", decimal.NewFromInt(10000))
	rej, ok := types.AsRejection(err)
	require.True(t, ok)
	require.Equal(t, types.CodeSelfBid, rej.Code)
}

func TestPlaceBidUnknownAuction(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db, nil)

	_, err := service.PlaceBid("AUC_missing", "bidder1", decimal.NewFromInt(100))
	rej, ok := types.AsRejection(err)
	require.True(t, ok)
	require.Equal(t, types.CodeNotFound, rej.Code)
}

func TestPlaceBidAfterWindowCloses(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db, nil)
	auction := seedLiveAuction(t, db, "seller1", 100)

	past := time.Now().Add(-time.Minute)
	require.NoError(t, db.Model(&types.Auction{}).
		Where("auction_id = ?", auction.AuctionID).
		Update("auction_end_time", past).Error)

	_, err := service.PlaceBid(auction.AuctionID, "bidder1", decimal.NewFromInt(200))
	rej, ok := types.AsRejection(err)
	require.True(t, ok)
	require.Equal(t, types.CodeAuctionEnded, rej.Code)
}

// N bidders race with the same amount; exactly one wins, the rest lose to
// the re-validation against the fresh row.
func TestPlaceBidNoDoubleAcceptUnderRace(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db, nil)
	auction := seedLiveAuction(t, db, "seller1", 100)

	const racers = 8
	amount := decimal.NewFromInt(200)

	var wg sync.WaitGroup
	results := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, results[n] = service.PlaceBid(auction.AuctionID, fmt.Sprintf("bidder%d", n), amount)
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, err := range results {
		if err == nil {
			accepted++
			continue
		}
		rej, ok := types.AsRejection(err)
		require.True(t, ok, "unexpected error: %v", err)
		require.Contains(t, []string{types.CodeBidTooLow, types.CodeTransientConflict}, rej.Code)
	}
	require.Equal(t, 1, accepted)

	state := reloadAuction(t, db, auction.AuctionID)
	require.True(t, state.CurrentPrice.Equal(amount))
	require.EqualValues(t, 1, state.TotalBidCount)

	var ledger int64
	require.NoError(t, db.Model(&types.Bid{}).Where("auction_id = ?", auction.AuctionID).Count(&ledger).Error)
	require.EqualValues(t, 1, ledger)
}

// Distinct racing amounts: whatever subset gets accepted must be strictly
// increasing in acceptance order, and the projection must equal the ledger
// maximum afterwards.
func TestPlaceBidConcurrentAmountsStayMonotonic(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db, nil)
	auction := seedLiveAuction(t, db, "seller1", 100)

	amounts := []int64{110, 125, 140, 155, 170, 185}

	var wg sync.WaitGroup
	for i, amt := range amounts {
		wg.Add(1)
		go func(n int, amount int64) {
			defer wg.Done()
			// rejections are expected for late-arriving low amounts
			_, _ = service.PlaceBid(auction.AuctionID, fmt.Sprintf("bidder%d", n), decimal.NewFromInt(amount))
		}(i, amt)
	}
	wg.Wait()

	bids, err := service.GetBidsForAuction(auction.AuctionID)
	require.NoError(t, err)
	require.NotEmpty(t, bids)

	for i := 1; i < len(bids); i++ {
		require.True(t, bids[i].Amount.GreaterThan(bids[i-1].Amount),
			"ledger must be strictly increasing in acceptance order")
	}

	state := reloadAuction(t, db, auction.AuctionID)
	require.True(t, state.CurrentPrice.Equal(bids[len(bids)-1].Amount))
	require.EqualValues(t, len(bids), state.TotalBidCount)
}
