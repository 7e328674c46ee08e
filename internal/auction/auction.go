package auction

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/openbid/auction-api/internal/types"
	"github.com/openbid/auction-api/pkg/response"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service drives auction listings through their lifecycle:
// pending -> approved/rejected, with expiry computed lazily on reads.
// The ended -> sold/unsold leg belongs to the settlement service.
type Service struct {
	db                  *Database
	defaultDurationDays int
}

// NewService creates a new auction lifecycle service. defaultDurationDays is
// used when a listing did not choose its own duration.
func NewService(gormDB *gorm.DB, defaultDurationDays int) *Service {
	return &Service{
		db:                  NewDatabase(gormDB),
		defaultDurationDays: defaultDurationDays,
	}
}

// NewListing describes a seller submission.
type NewListing struct {
	SellerID      *string         `json:"seller_id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	StartingPrice decimal.Decimal `json:"starting_price"`
	DurationDays  int             `json:"duration_days"`
}

// CreateAuction records a seller submission as a PENDING auction. The end
// time is not stamped here; it is derived from the approval instant.
func (s *Service) CreateAuction(listing NewListing) (*types.Auction, error) {
	if !listing.StartingPrice.IsPositive() {
		return nil, types.NewRejection(types.CodeInvalidAmount,
			"starting price must be greater than zero, got %s", listing.StartingPrice)
	}
	if listing.Title == "" {
		return nil, types.NewRejection(types.CodeInvalidAmount, "listing title is required")
	}

	auction := &types.Auction{
		AuctionID:     "AUC_" + uuid.New().String(),
		SellerID:      listing.SellerID,
		Title:         listing.Title,
		Description:   listing.Description,
		StartingPrice: listing.StartingPrice,
		CurrentPrice:  listing.StartingPrice,
		DurationDays:  listing.DurationDays,
		Status:        types.StatusPending,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}

	if err := s.db.CreateAuction(auction); err != nil {
		return nil, fmt.Errorf("failed to create auction: %w", err)
	}

	log.Info().
		Str("auction_id", auction.AuctionID).
		Str("starting_price", auction.StartingPrice.String()).
		Str("service", "auction").
		Msg("auction submitted for review")

	return auction, nil
}

// Approve transitions a PENDING auction to APPROVED and stamps the end time
// from the approval instant plus the chosen duration. Approving anything but
// a PENDING auction fails with invalid_transition; in particular a duplicate
// approval never resets the end time.
func (s *Service) Approve(auctionID string, durationDays int) (*types.Auction, error) {
	logger := log.With().
		Str("auction_id", auctionID).
		Str("service", "auction").
		Logger()

	auction, err := s.db.GetAuction(auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch auction: %w", err)
	}
	if auction == nil {
		return nil, types.NewRejection(types.CodeNotFound, "auction %s not found", auctionID)
	}

	if durationDays <= 0 {
		durationDays = auction.DurationDays
	}
	if durationDays <= 0 {
		durationDays = s.defaultDurationDays
	}
	endTime := time.Now().Add(time.Duration(durationDays) * 24 * time.Hour)

	rows, err := s.db.ApproveAuction(auctionID, durationDays, endTime)
	if err != nil {
		return nil, fmt.Errorf("failed to approve auction: %w", err)
	}
	if rows == 0 {
		// Raced or repeated admin action; log distinctly from user rejections
		logger.Warn().
			Str("status", auction.Status).
			Msg("approve refused: auction is not pending")
		return nil, types.NewRejection(types.CodeInvalidTransition,
			"auction %s cannot be approved from status %s", auctionID, auction.Status)
	}

	logger.Info().
		Int("duration_days", durationDays).
		Time("auction_end_time", endTime).
		Msg("auction approved and live")

	return s.db.GetAuction(auctionID)
}

// Reject transitions a PENDING auction to REJECTED with a required reason.
// Terminal.
func (s *Service) Reject(auctionID, reason string) (*types.Auction, error) {
	logger := log.With().
		Str("auction_id", auctionID).
		Str("service", "auction").
		Logger()

	if reason == "" {
		return nil, types.NewRejection(types.CodeInvalidTransition,
			"a rejection reason is required")
	}

	auction, err := s.db.GetAuction(auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch auction: %w", err)
	}
	if auction == nil {
		return nil, types.NewRejection(types.CodeNotFound, "auction %s not found", auctionID)
	}

	rows, err := s.db.RejectAuction(auctionID, reason)
	if err != nil {
		return nil, fmt.Errorf("failed to reject auction: %w", err)
	}
	if rows == 0 {
		logger.Warn().
			Str("status", auction.Status).
			Msg("reject refused: auction is not pending")
		return nil, types.NewRejection(types.CodeInvalidTransition,
			"auction %s cannot be rejected from status %s", auctionID, auction.Status)
	}

	logger.Info().Str("reason", reason).Msg("auction rejected")

	return s.db.GetAuction(auctionID)
}

// GetAuctionView returns the read projection with lazy expiry applied. The
// stored row is not mutated; persisting the ENDED state is settlement's job.
func (s *Service) GetAuctionView(auctionID string) (*types.AuctionView, error) {
	auction, err := s.db.GetAuction(auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch auction: %w", err)
	}
	if auction == nil {
		return nil, types.NewRejection(types.CodeNotFound, "auction %s not found", auctionID)
	}

	return viewOf(auction, time.Now()), nil
}

// ListOpenAuctions returns every auction currently accepting bids.
func (s *Service) ListOpenAuctions() ([]types.AuctionView, error) {
	now := time.Now()
	auctions, err := s.db.ListOpenAuctions(now)
	if err != nil {
		return nil, fmt.Errorf("failed to list open auctions: %w", err)
	}

	views := make([]types.AuctionView, 0, len(auctions))
	for i := range auctions {
		views = append(views, *viewOf(&auctions[i], now))
	}
	return views, nil
}

func viewOf(a *types.Auction, now time.Time) *types.AuctionView {
	return &types.AuctionView{
		AuctionID:       a.AuctionID,
		SellerID:        a.SellerID,
		Title:           a.Title,
		Description:     a.Description,
		StartingPrice:   a.StartingPrice,
		CurrentPrice:    a.CurrentPrice,
		HighestBidderID: a.HighestBidderID,
		TotalBidCount:   a.TotalBidCount,
		Status:          a.ComputedStatus(now),
		AuctionEndTime:  a.AuctionEndTime,
		CreatedAt:       a.CreatedAt,
	}
}

// GinHandlers contains HTTP handlers for auction lifecycle endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for auction endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// CreateAuctionHandler handles POST requests to submit new listings.
// The authenticated identity becomes the seller.
func (h *GinHandlers) CreateAuctionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var listing NewListing
		if err := c.ShouldBindJSON(&listing); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		if sellerID := c.GetString("bidderID"); sellerID != "" {
			listing.SellerID = &sellerID
		}

		auction, err := h.service.CreateAuction(listing)
		response.Handle(c, auction, err)
	}
}

// GetAuctionHandler handles GET requests for a single auction view
// URL parameter: auction_id
func (h *GinHandlers) GetAuctionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		auctionID := c.Param("auction_id")

		view, err := h.service.GetAuctionView(auctionID)
		response.Handle(c, view, err)
	}
}

// ListOpenAuctionsHandler handles GET requests for the open-auction listing
func (h *GinHandlers) ListOpenAuctionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		views, err := h.service.ListOpenAuctions()
		response.Handle(c, views, err)
	}
}

// ApproveAuctionHandler handles POST requests to approve pending listings
// Requires admin authentication
// URL parameter: auction_id
func (h *GinHandlers) ApproveAuctionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		auctionID := c.Param("auction_id")

		var request struct {
			DurationDays int `json:"duration_days"`
		}
		// Body is optional; the listing or server default supplies the duration
		_ = c.ShouldBindJSON(&request)

		auction, err := h.service.Approve(auctionID, request.DurationDays)
		response.Handle(c, auction, err)
	}
}

// RejectAuctionHandler handles POST requests to reject pending listings
// Requires admin authentication
// URL parameter: auction_id
func (h *GinHandlers) RejectAuctionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		auctionID := c.Param("auction_id")

		var request struct {
			Reason string `json:"reason" binding:"required"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, "a rejection reason is required")
			return
		}

		auction, err := h.service.Reject(auctionID, request.Reason)
		response.Handle(c, auction, err)
	}
}
