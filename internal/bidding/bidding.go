package bidding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/openbid/auction-api/internal/notify"
	"github.com/openbid/auction-api/internal/types"
	"github.com/openbid/auction-api/pkg/response"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// maxBidAttempts bounds the retry loop around version conflicts. Each retry
// re-reads the row, so a loser of the race usually turns into a clean
// bid_too_low rather than a conflict.
const maxBidAttempts = 3

// Service is the bid acceptor. PlaceBid is safe for any number of
// concurrent callers; all coordination happens through the store's
// compare-and-swap on the auction row.
type Service struct {
	db        *Database
	publisher *notify.Publisher
}

// NewService creates a new bidding service. publisher may be nil when event
// publishing is disabled.
func NewService(gormDB *gorm.DB, publisher *notify.Publisher) *Service {
	return &Service{
		db:        NewDatabase(gormDB),
		publisher: publisher,
	}
}

// PlaceBid validates and records one bid. Exactly one ledger row and one
// projection update on success; zero durable side effects on any rejection.
// Accepted amounts for a single auction are strictly increasing in
// acceptance order.
func (s *Service) PlaceBid(auctionID, bidderID string, amount decimal.Decimal) (*types.Bid, error) {
	logger := log.With().
		Str("auction_id", auctionID).
		Str("bidder_id", bidderID).
		Str("amount", amount.String()).
		Str("service", "bidding").
		Logger()

	var accepted *types.Bid

	for attempt := 1; attempt <= maxBidAttempts; attempt++ {
		auction, err := s.db.GetAuction(auctionID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch auction: %w", err)
		}
		if auction == nil {
			return nil, types.NewRejection(types.CodeNotFound, "auction %s not found", auctionID)
		}

		// Authoritative check against the fresh row. A competing bid that
		// commits after this read bumps the version, which voids our write
		// below, so two bidders can never both pass on the same price.
		if rej := Validate(auction, bidderID, amount, time.Now()); rej != nil {
			logger.Debug().Str("code", rej.Code).Msg("bid rejected")
			return nil, rej
		}

		bid := &types.Bid{
			BidID:     "BID_" + uuid.New().String(),
			AuctionID: auctionID,
			BidderID:  bidderID,
			Amount:    amount,
			CreatedAt: time.Now(),
		}

		err = s.db.AcceptBid(auction, bid)
		if err == nil {
			accepted = bid
			break
		}
		if !errors.Is(err, ErrVersionConflict) {
			return nil, fmt.Errorf("failed to accept bid: %w", err)
		}

		logger.Debug().Int("attempt", attempt).Msg("lost auction row race, retrying")
	}

	if accepted == nil {
		logger.Warn().Msg("bid dropped after repeated version conflicts")
		return nil, types.NewRejection(types.CodeTransientConflict,
			"auction %s is under heavy bidding, please retry", auctionID)
	}

	logger.Info().
		Str("bid_id", accepted.BidID).
		Msg("bid accepted")

	// Observers hear about the bid only after commit
	if s.publisher != nil {
		auction, err := s.db.GetAuction(auctionID)
		count := int64(0)
		if err == nil && auction != nil {
			count = auction.TotalBidCount
		}
		s.publisher.BidAccepted(context.Background(), notify.BidAcceptedEvent{
			AuctionID:     auctionID,
			BidID:         accepted.BidID,
			BidderID:      bidderID,
			Amount:        amount.String(),
			TotalBidCount: count,
			AcceptedAt:    accepted.CreatedAt,
		})
	}

	return accepted, nil
}

// GetBidsForAuction returns the authoritative bid history for an auction.
func (s *Service) GetBidsForAuction(auctionID string) ([]types.Bid, error) {
	auction, err := s.db.GetAuction(auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch auction: %w", err)
	}
	if auction == nil {
		return nil, types.NewRejection(types.CodeNotFound, "auction %s not found", auctionID)
	}

	return s.db.GetBidsForAuction(auctionID)
}

// GinHandlers contains HTTP handlers for bidding endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for bidding endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// PlaceBidHandler handles POST requests to place a bid on an auction.
// The bidder identity comes from the JWT claims; the request body carries
// only the amount.
// URL parameter: auction_id
func (h *GinHandlers) PlaceBidHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		bidderID := c.GetString("bidderID")
		if bidderID == "" {
			response.Unauthorized(c, "Missing bidder identity")
			return
		}

		auctionID := c.Param("auction_id")

		var request struct {
			Amount decimal.Decimal `json:"amount"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		bid, err := h.service.PlaceBid(auctionID, bidderID, request.Amount)
		response.Handle(c, bid, err)
	}
}

// GetBidsHandler handles GET requests for an auction's bid ledger
// URL parameter: auction_id
func (h *GinHandlers) GetBidsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		auctionID := c.Param("auction_id")

		bids, err := h.service.GetBidsForAuction(auctionID)
		response.Handle(c, bids, err)
	}
}
