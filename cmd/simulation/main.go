package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/openbid/auction-api/internal/auction"
	"github.com/openbid/auction-api/internal/auth"
	"github.com/openbid/auction-api/internal/bidding"
	"github.com/openbid/auction-api/internal/database"
	"github.com/openbid/auction-api/internal/settlement"
	"github.com/openbid/auction-api/internal/types"
	"github.com/openbid/auction-api/pkg/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const (
	numAuctions    = 8
	numBidders     = 5
	bidsPerBidder  = 10
	serverAddress  = "http://localhost:8080"
	jwtSecret      = "openbid-secret-key"
	defaultDays    = 7
	simulationDB   = "simulation.db"
)

var itemTitles = []string{
	"Vintage Camera", "Signed Vinyl", "Mechanical Watch", "Oil Painting",
	"First Edition Novel", "Retro Console", "Antique Lamp", "Road Bike",
}

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	// Configure pretty logging
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

// addDuration records a new duration measurement for the route
func (rs *routeStats) addDuration(d time.Duration) {
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

// calculate computes performance statistics from recorded durations
// Returns min, max, mean, median, 95th percentile, and 99th percentile durations
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	// Sort durations for percentile calculations
	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	// Calculate mean
	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))

	// Calculate median
	median = rs.durations[len(rs.durations)/2]

	// Calculate percentiles
	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p99idx := int(math.Ceil(float64(len(rs.durations))*0.99)) - 1
	p95 = rs.durations[p95idx]
	p99 = rs.durations[p99idx]

	return
}

// simulationClient handles HTTP communication with the auction API on
// behalf of one identity (a bidder or the admin)
type simulationClient struct {
	baseURL   string
	authToken string
	client    *http.Client
	stats     map[string]*routeStats
	statsMu   sync.Mutex
}

// newSimulationClient authenticates the given credentials and prepares
// performance tracking
func newSimulationClient(apiKey, apiSecret string) (*simulationClient, error) {
	client := &http.Client{
		Timeout: 10 * time.Second,
	}

	sc := &simulationClient{
		baseURL: serverAddress,
		client:  client,
		stats: map[string]*routeStats{
			"auth":    {name: "Authentication"},
			"create":  {name: "Create Auction"},
			"approve": {name: "Approve Auction"},
			"bid":     {name: "Place Bid"},
			"get":     {name: "Get Auction"},
			"resolve": {name: "Resolve Auction"},
		},
	}

	token, err := sc.authenticate(apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}
	sc.authToken = token

	return sc, nil
}

func (sc *simulationClient) track(route string, start time.Time, failed bool) {
	sc.statsMu.Lock()
	defer sc.statsMu.Unlock()
	sc.stats[route].addDuration(time.Since(start))
	if failed {
		sc.stats[route].failures++
	}
}

// authenticate performs API authentication and returns a JWT token
func (sc *simulationClient) authenticate(apiKey, apiSecret string) (string, error) {
	start := time.Now()

	credentials := map[string]string{
		"api_key":    apiKey,
		"api_secret": apiSecret,
	}

	body, err := json.Marshal(credentials)
	if err != nil {
		return "", err
	}

	resp, err := sc.client.Post(
		fmt.Sprintf("%s/api/v1/auth/token", sc.baseURL),
		"application/json",
		bytes.NewBuffer(body),
	)
	if err != nil {
		sc.track("auth", start, true)
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		sc.track("auth", start, true)
		return "", fmt.Errorf("authentication failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Data struct {
			Token string `json:"jwt_token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		sc.track("auth", start, true)
		return "", err
	}

	sc.track("auth", start, false)
	return result.Data.Token, nil
}

// doJSON sends an authenticated request and decodes the standard response
// envelope into out (which may be nil).
func (sc *simulationClient) doJSON(method, path string, payload interface{}, out interface{}) (int, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, err
		}
		body = bytes.NewBuffer(raw)
	}

	req, err := http.NewRequest(method, sc.baseURL+path, body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", sc.authToken))
	req.Header.Set("Content-Type", "application/json")

	resp, err := sc.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug().Str("path", path).Str("response", string(respBody)).Msg("API response")

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
		}
	}

	return resp.StatusCode, nil
}

// createAuction submits a new listing and returns its ID
func (sc *simulationClient) createAuction(title string, startingPrice float64) (string, error) {
	start := time.Now()

	payload := map[string]interface{}{
		"title":          title,
		"description":    "simulation listing",
		"starting_price": startingPrice,
		"duration_days":  defaultDays,
	}

	var result struct {
		Data struct {
			AuctionID string `json:"auction_id"`
		} `json:"data"`
	}
	status, err := sc.doJSON("POST", "/api/v1/auctions", payload, &result)
	failed := err != nil || (status != http.StatusOK && status != http.StatusCreated)
	sc.track("create", start, failed)
	if err != nil {
		return "", err
	}
	if failed {
		return "", fmt.Errorf("create auction failed with status %d", status)
	}
	if result.Data.AuctionID == "" {
		return "", fmt.Errorf("no auction ID in response")
	}

	return result.Data.AuctionID, nil
}

// approveAuction moves a pending listing live
func (sc *simulationClient) approveAuction(auctionID string) error {
	start := time.Now()

	status, err := sc.doJSON("POST", "/api/v1/admin/auctions/"+auctionID+"/approve", nil, nil)
	failed := err != nil || (status != http.StatusOK && status != http.StatusCreated)
	sc.track("approve", start, failed)
	if err != nil {
		return err
	}
	if failed {
		return fmt.Errorf("approve failed with status %d", status)
	}
	return nil
}

// placeBid submits one bid; accepted=false with nil error means the API
// rejected the bid with a reason code (too low, ended, conflict).
func (sc *simulationClient) placeBid(auctionID string, amount float64) (accepted bool, code string, err error) {
	start := time.Now()

	payload := map[string]interface{}{"amount": amount}

	var result struct {
		Data  json.RawMessage `json:"data"`
		Error *struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	status, err := sc.doJSON("POST", "/api/v1/auctions/"+auctionID+"/bids", payload, &result)
	if err != nil {
		sc.track("bid", start, true)
		return false, "", err
	}

	if status == http.StatusOK || status == http.StatusCreated {
		sc.track("bid", start, false)
		return true, "", nil
	}

	sc.track("bid", start, false) // rejections are expected traffic, not failures
	if result.Error != nil {
		return false, result.Error.Code, nil
	}
	return false, fmt.Sprintf("http_%d", status), nil
}

// getAuction retrieves the current view of an auction
func (sc *simulationClient) getAuction(auctionID string) (*types.AuctionView, error) {
	start := time.Now()

	var result struct {
		Data types.AuctionView `json:"data"`
	}
	status, err := sc.doJSON("GET", "/api/v1/auctions/"+auctionID, nil, &result)
	failed := err != nil || status != http.StatusOK
	sc.track("get", start, failed)
	if err != nil {
		return nil, err
	}
	if failed {
		return nil, fmt.Errorf("get auction failed with status %d", status)
	}

	return &result.Data, nil
}

// resolveAuction settles an ended auction and returns the outcome
func (sc *simulationClient) resolveAuction(auctionID string) (*types.WinnerResponse, error) {
	start := time.Now()

	var result struct {
		Data types.WinnerResponse `json:"data"`
	}
	status, err := sc.doJSON("POST", "/api/v1/admin/auctions/"+auctionID+"/resolve", nil, &result)
	failed := err != nil || (status != http.StatusOK && status != http.StatusCreated)
	sc.track("resolve", start, failed)
	if err != nil {
		return nil, err
	}
	if failed {
		return nil, fmt.Errorf("resolve failed with status %d", status)
	}

	return &result.Data, nil
}

// printPerformanceStats outputs formatted performance statistics for all API endpoints
func (sc *simulationClient) printPerformanceStats() {
	fmt.Println("\nAPI Performance Statistics")
	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("%-20s %10s %10s %10s %10s %10s %10s %10s %10s\n",
		"Endpoint", "Calls", "Errors", "Min", "Max", "Mean", "Median", "P95", "P99")
	fmt.Println(strings.Repeat("-", 100))

	for _, stats := range sc.stats {
		min, max, mean, median, p95, p99 := stats.calculate()
		fmt.Printf("%-20s %10d %10d %10s %10s %10s %10s %10s %10s\n",
			stats.name,
			stats.totalCalls,
			stats.failures,
			min.Round(time.Millisecond),
			max.Round(time.Millisecond),
			mean.Round(time.Millisecond),
			median.Round(time.Millisecond),
			p95.Round(time.Millisecond),
			p99.Round(time.Millisecond))
	}
	fmt.Println(strings.Repeat("-", 100))
}

// main runs the auction simulation: listings are created and approved, a
// fleet of concurrent bidders floods them with overlapping bids, and once
// the windows are collapsed every auction is settled and checked.
func main() {
	db, err := startServer()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start server")
	}

	// Wait for server to start
	time.Sleep(2 * time.Second)

	adminClient, err := newSimulationClient(auth.TestAdminKey, auth.TestAdminSecret)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize admin client")
	}

	// One authenticated client per bidder identity
	bidders := make([]*simulationClient, numBidders)
	for i := range bidders {
		bidders[i], err = newSimulationClient(fmt.Sprintf("sim-bidder-%d", i), "sim-secret")
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize bidder client")
		}
	}

	// Phase 1: sellers list, admin approves
	sellerClient, err := newSimulationClient("sim-seller", "sim-secret")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize seller client")
	}

	var auctionIDs []string
	for i := 0; i < numAuctions; i++ {
		auctionID, err := sellerClient.createAuction(itemTitles[i%len(itemTitles)], float64(rand.Intn(400)+100))
		if err != nil {
			log.Error().Err(err).Msg("Failed to create auction")
			continue
		}
		if err := adminClient.approveAuction(auctionID); err != nil {
			log.Error().Err(err).Str("auction_id", auctionID).Msg("Failed to approve auction")
			continue
		}
		auctionIDs = append(auctionIDs, auctionID)
		log.Info().Str("auction_id", auctionID).Msg("Auction live")
	}

	// Phase 2: concurrent bidding across all live auctions
	stats := struct {
		mu        sync.Mutex
		accepted  int
		rejected  map[string]int
		startTime time.Time
	}{
		rejected:  make(map[string]int),
		startTime: time.Now(),
	}

	var wg sync.WaitGroup
	for w := 0; w < numBidders; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			client := bidders[workerID]
			for i := 0; i < bidsPerBidder; i++ {
				auctionID := auctionIDs[rand.Intn(len(auctionIDs))]

				view, err := client.getAuction(auctionID)
				if err != nil {
					log.Error().Err(err).Msg("Failed to fetch auction view")
					continue
				}

				// Bid a little over the observed price; under concurrency
				// some of these land behind a competitor and get rejected
				current, _ := view.CurrentPrice.Float64()
				amount := current + float64(rand.Intn(50)+1)

				accepted, code, err := client.placeBid(auctionID, amount)
				if err != nil {
					log.Error().Err(err).Msg("Bid request failed")
					continue
				}

				stats.mu.Lock()
				if accepted {
					stats.accepted++
				} else {
					stats.rejected[code]++
				}
				stats.mu.Unlock()

				time.Sleep(time.Duration(rand.Intn(50)) * time.Millisecond)
			}
		}(w)
	}
	wg.Wait()

	// Phase 3: collapse the bidding windows so settlement can run now
	// instead of in defaultDays days
	if err := forceExpire(db, auctionIDs); err != nil {
		log.Fatal().Err(err).Msg("Failed to expire auctions")
	}

	sold, unsold := 0, 0
	for _, auctionID := range auctionIDs {
		winner, err := adminClient.resolveAuction(auctionID)
		if err != nil {
			log.Error().Err(err).Str("auction_id", auctionID).Msg("Failed to resolve auction")
			continue
		}
		if winner.Status == types.StatusSold {
			sold++
			log.Info().
				Str("auction_id", auctionID).
				Str("winner", deref(winner.WinnerID)).
				Str("price", winner.WinningPrice.String()).
				Msg("Auction sold")
		} else {
			unsold++
			log.Info().Str("auction_id", auctionID).Msg("Auction unsold")
		}
	}

	// Summary
	duration := time.Since(stats.startTime)
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("AUCTION SIMULATION SUMMARY")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf(`
Auctions:       %d
Accepted bids:  %d
Sold:           %d
Unsold:         %d
Duration:       %v

Rejections by reason
--------------------
`, len(auctionIDs), stats.accepted, sold, unsold, duration.Round(time.Millisecond))

	for code, count := range stats.rejected {
		fmt.Printf("%-20s: %d\n", code, count)
	}
	fmt.Println("\n" + strings.Repeat("=", 80))

	log.Info().
		Int("accepted_bids", stats.accepted).
		Int("sold", sold).
		Int("unsold", unsold).
		Dur("duration", duration).
		Msg("Simulation completed")

	adminClient.printPerformanceStats()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// forceExpire rewinds every auction's end time so the settlement phase does
// not have to wait out the real bidding window.
func forceExpire(db *gorm.DB, auctionIDs []string) error {
	past := time.Now().Add(-time.Minute)
	return db.Model(&types.Auction{}).
		Where("auction_id IN ?", auctionIDs).
		Update("auction_end_time", past).Error
}

// startServer initializes and starts the auction API server in-process,
// returning the shared database handle for the expiry shortcut.
func startServer() (*gorm.DB, error) {
	db, err := database.NewDatabase(simulationDB)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Initialize services
	authService := auth.NewService(jwtSecret)
	auctionService := auction.NewService(db, defaultDays)
	biddingService := bidding.NewService(db, nil)
	settlementService := settlement.NewService(db, nil)

	// Register simulation credentials
	if err := authService.RegisterCredentials(auth.TestAdminKey, auth.TestAdminSecret, auth.RoleAdmin); err != nil {
		return nil, err
	}
	if err := authService.RegisterCredentials("sim-seller", "sim-secret", auth.RoleBidder); err != nil {
		return nil, err
	}
	for i := 0; i < numBidders; i++ {
		if err := authService.RegisterCredentials(fmt.Sprintf("sim-bidder-%d", i), "sim-secret", auth.RoleBidder); err != nil {
			return nil, err
		}
	}

	// Initialize router
	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()
	authHandlers := auth.NewGinHandlers(authService)
	auctionHandlers := auction.NewGinHandlers(auctionService)
	biddingHandlers := bidding.NewGinHandlers(biddingService)
	settlementHandlers := settlement.NewGinHandlers(settlementService)

	// Setup routes
	setupRoutes(router, authHandlers, auctionHandlers, biddingHandlers, settlementHandlers)

	// Start the server
	go func() {
		if err := router.Run(":8080"); err != nil {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	return db, nil
}

// setupRoutes configures all API endpoints and their handlers
// Groups routes by functionality; the simulation reuses the production
// middleware for auth-sensitive groups
func setupRoutes(
	router *gin.Engine,
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
		bidderRoutes := v1.Group("/auctions")
		bidderRoutes.Use(middleware.JWTAuth(jwtSecret))
		{
			bidderRoutes.POST("", auctionHandlers.CreateAuctionHandler())
			bidderRoutes.POST("/:auction_id/bids", biddingHandlers.PlaceBidHandler())
		}

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(middleware.AdminAuth(jwtSecret))
		{
			admin.POST("/auctions/:auction_id/approve", auctionHandlers.ApproveAuctionHandler())
			admin.POST("/auctions/:auction_id/reject", auctionHandlers.RejectAuctionHandler())
			admin.POST("/auctions/:auction_id/resolve", settlementHandlers.ResolveAuctionHandler())
		}
	}
}
