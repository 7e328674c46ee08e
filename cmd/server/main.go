package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/openbid/auction-api/internal/auction"
	"github.com/openbid/auction-api/internal/auth"
	"github.com/openbid/auction-api/internal/bidding"
	"github.com/openbid/auction-api/internal/config"
	"github.com/openbid/auction-api/internal/database"
	"github.com/openbid/auction-api/internal/notify"
	"github.com/openbid/auction-api/internal/settlement"
	"github.com/openbid/auction-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the auction API server with graceful shutdown
// support. It wires the stores, the lifecycle and bidding services, the
// settlement sweep, and the API routes.
func main() {
	cfg := config.Load()

	// Initialize database
	db, err := database.NewDatabase(cfg.DatabasePath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// Initialize router
	router := gin.Default()

	// Post-commit event publisher; a no-op when AMQP_URL is unset
	publisher := notify.NewPublisher(cfg.AMQPURL)

	// Initialize services and handlers
	authService := auth.NewService(cfg.JWTSecret)
	authHandlers := auth.NewGinHandlers(authService)
	if cfg.Env != "production" {
		// Register test credentials
		if err := authService.RegisterCredentials(auth.TestBidderKey, auth.TestBidderSecret, auth.RoleBidder); err != nil {
			zlog.Fatal().Err(err).Msg("Failed to register test bidder credentials")
		}
		if err := authService.RegisterCredentials(auth.TestAdminKey, auth.TestAdminSecret, auth.RoleAdmin); err != nil {
			zlog.Fatal().Err(err).Msg("Failed to register test admin credentials")
		}
	}

	auctionService := auction.NewService(db, cfg.DefaultDurationDays)
	auctionHandlers := auction.NewGinHandlers(auctionService)

	biddingService := bidding.NewService(db, publisher)
	biddingHandlers := bidding.NewGinHandlers(biddingService)

	settlementService := settlement.NewService(db, publisher)
	settlementHandlers := settlement.NewGinHandlers(settlementService)

	// Create and start the settlement sweep
	processorCtx, processorCancel := context.WithCancel(context.Background())
	defer processorCancel()

	if cfg.SweepInterval > 0 {
		processor := settlement.NewProcessor(settlementService, time.Duration(cfg.SweepInterval)*time.Second)
		go processor.Start(processorCtx)
	}

	// Setup middleware
	router.Use(middleware.RateLimit())

	// Setup API routes
	setupRoutes(router, cfg.JWTSecret, authHandlers, auctionHandlers, biddingHandlers, settlementHandlers)

	// Create server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers
// It groups routes by functionality and applies appropriate middleware:
// - Auth routes: Public endpoints for authentication
// - Public auction routes: Browse listings without a token
// - Bidder routes: Protected by JWT authentication
// - Admin routes: Lifecycle moderation and settlement, role-gated
func setupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authHandlers *auth.GinHandlers,
	auctionHandlers *auction.GinHandlers,
	biddingHandlers *bidding.GinHandlers,
	settlementHandlers *settlement.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authRoutes := v1.Group("/auth")
		{
			authRoutes.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Public browse routes
		auctions := v1.Group("/auctions")
		{
			auctions.GET("", auctionHandlers.ListOpenAuctionsHandler())
			auctions.GET("/:auction_id", auctionHandlers.GetAuctionHandler())
			auctions.GET("/:auction_id/bids", biddingHandlers.GetBidsHandler())
		}

		// Bidder routes
		bidders := v1.Group("/auctions")
		bidders.Use(middleware.JWTAuth(jwtSecret))
		{
			bidders.POST("", auctionHandlers.CreateAuctionHandler())
			bidders.POST("/:auction_id/bids", biddingHandlers.PlaceBidHandler())
		}

		// Admin routes for moderation and settlement
		admin := v1.Group("/admin")
		admin.Use(middleware.AdminAuth(jwtSecret))
		{
			admin.POST("/auctions/:auction_id/approve", auctionHandlers.ApproveAuctionHandler())
			admin.POST("/auctions/:auction_id/reject", auctionHandlers.RejectAuctionHandler())
			admin.POST("/auctions/:auction_id/resolve", settlementHandlers.ResolveAuctionHandler())
		}
	}
}
