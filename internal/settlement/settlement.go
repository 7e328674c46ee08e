package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/openbid/auction-api/internal/notify"
	"github.com/openbid/auction-api/internal/types"
	"github.com/openbid/auction-api/pkg/response"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// maxResolveAttempts bounds retries when a late bid races the settlement
// write.
const maxResolveAttempts = 3

// Service is the winner resolver: it takes auctions whose bidding window
// has closed and fixes the outcome as SOLD (winner recorded) or UNSOLD.
type Service struct {
	db        *Database
	publisher *notify.Publisher
}

// NewService creates a new settlement service. publisher may be nil when
// event publishing is disabled.
func NewService(gormDB *gorm.DB, publisher *notify.Publisher) *Service {
	return &Service{
		db:        NewDatabase(gormDB),
		publisher: publisher,
	}
}

// Resolve settles an ended auction. The winner is read off the auction's
// price projection, which the bid acceptor keeps consistent with the
// ledger, so no ledger scan is needed. Resolve is idempotent: settling an
// already-settled auction returns the recorded outcome without mutating
// anything.
func (s *Service) Resolve(auctionID string) (*types.WinnerResponse, error) {
	logger := log.With().
		Str("auction_id", auctionID).
		Str("service", "settlement").
		Logger()

	for attempt := 1; attempt <= maxResolveAttempts; attempt++ {
		auction, err := s.db.GetAuction(auctionID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch auction: %w", err)
		}
		if auction == nil {
			return nil, types.NewRejection(types.CodeNotFound, "auction %s not found", auctionID)
		}

		now := time.Now()

		switch auction.ComputedStatus(now) {
		case types.StatusSold, types.StatusUnsold:
			// Already settled; same answer every time
			return winnerOf(auction), nil

		case types.StatusEnded:
			// Fall through to the settlement write below

		default:
			// PENDING, REJECTED, or still-live APPROVED
			logger.Warn().
				Str("status", auction.Status).
				Msg("resolve refused: auction has not ended")
			return nil, types.NewRejection(types.CodeInvalidTransition,
				"auction %s cannot be settled from status %s", auctionID, auction.ComputedStatus(now))
		}

		outcome := types.StatusUnsold
		if auction.TotalBidCount > 0 {
			outcome = types.StatusSold
		}

		err = s.db.SettleAuction(auction, outcome, now)
		if errors.Is(err, ErrVersionConflict) {
			logger.Debug().Int("attempt", attempt).Msg("settlement raced a bid, retrying")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to settle auction: %w", err)
		}

		auction.Status = outcome
		auction.SettledAt = &now
		result := winnerOf(auction)

		logger.Info().
			Str("outcome", outcome).
			Int64("total_bids", auction.TotalBidCount).
			Msg("auction settled")

		if s.publisher != nil {
			event := notify.AuctionSettledEvent{
				AuctionID: auctionID,
				Status:    outcome,
				WinnerID:  result.WinnerID,
				SettledAt: now,
			}
			if result.WinningPrice != nil {
				event.WinningPrice = result.WinningPrice.String()
			}
			s.publisher.AuctionSettled(context.Background(), event)
		}

		return result, nil
	}

	return nil, types.NewRejection(types.CodeTransientConflict,
		"auction %s is still receiving writes, please retry", auctionID)
}

func winnerOf(a *types.Auction) *types.WinnerResponse {
	resp := &types.WinnerResponse{
		AuctionID: a.AuctionID,
		Status:    a.Status,
	}
	if a.SettledAt != nil {
		resp.SettledAt = *a.SettledAt
	}
	if a.Status == types.StatusSold {
		resp.WinnerID = a.HighestBidderID
		price := a.CurrentPrice
		resp.WinningPrice = &price
	}
	return resp
}

// GinHandlers contains HTTP handlers for settlement endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// ResolveAuctionHandler handles POST requests to settle an ended auction
// Requires admin authentication
// URL parameter: auction_id
func (h *GinHandlers) ResolveAuctionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		auctionID := c.Param("auction_id")

		winner, err := h.service.Resolve(auctionID)
		response.Handle(c, winner, err)
	}
}

// GetDB exposes the settlement database for the background processor
func (s *Service) GetDB() *Database {
	return s.db
}
