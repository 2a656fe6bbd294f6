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
	"sync/atomic"
	"time"

	"github.com/cardex/market-api/internal/access"
	"github.com/cardex/market-api/internal/auth"
	"github.com/cardex/market-api/internal/config"
	"github.com/cardex/market-api/internal/database"
	"github.com/cardex/market-api/internal/fees"
	"github.com/cardex/market-api/internal/ledger"
	"github.com/cardex/market-api/internal/listings"
	"github.com/cardex/market-api/internal/market"
	"github.com/cardex/market-api/internal/types"
	"github.com/cardex/market-api/internal/upgrade"
	"github.com/cardex/market-api/pkg/middleware"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	minListings   = 10
	maxListings   = 60
	numWorkers    = 5
	serverAddress = "http://localhost:8080"
	operator      = "market-operator"
	jwtSecret     = "market-secret-key"

	// Generous funding so random prices never bounce off balance checks
	sellerCredits  = 1_000_000
	buyerCredits   = 1_000_000
	buyerFunds     = 100_000_000
	buyerAllowance = 100_000_000
)

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

// simulationClient handles HTTP communication with the marketplace API
type simulationClient struct {
	baseURL string
	client  *http.Client

	statsMu sync.Mutex
	stats   map[string]*routeStats

	tokenMu sync.Mutex
	tokens  map[string]string // principal -> JWT
}

// newSimulationClient creates and initializes a new simulation client
func newSimulationClient() *simulationClient {
	return &simulationClient{
		baseURL: serverAddress,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		stats: map[string]*routeStats{
			"auth":     {name: "Authentication"},
			"mint":     {name: "Mint Asset"},
			"approve":  {name: "Approve Asset"},
			"fund":     {name: "Fund Wallet"},
			"list":     {name: "Create Listing"},
			"quote":    {name: "Get Quote"},
			"purchase": {name: "Purchase"},
		},
		tokens: make(map[string]string),
	}
}

func (sc *simulationClient) record(route string, start time.Time, failed bool) {
	sc.statsMu.Lock()
	defer sc.statsMu.Unlock()
	sc.stats[route].addDuration(time.Since(start))
	if failed {
		sc.stats[route].failures++
	}
}

// authenticate fetches and caches a JWT for the given principal. The
// simulation registers every principal's secret as "<principal>-secret".
func (sc *simulationClient) authenticate(principal string) (string, error) {
	sc.tokenMu.Lock()
	if token, ok := sc.tokens[principal]; ok {
		sc.tokenMu.Unlock()
		return token, nil
	}
	sc.tokenMu.Unlock()

	start := time.Now()
	var failed bool
	defer func() { sc.record("auth", start, failed) }()

	credentials := map[string]string{
		"api_key":    principal,
		"api_secret": principal + "-secret",
	}

	body, err := json.Marshal(credentials)
	if err != nil {
		failed = true
		return "", err
	}

	resp, err := sc.client.Post(
		fmt.Sprintf("%s/api/v1/auth/token", sc.baseURL),
		"application/json",
		bytes.NewBuffer(body),
	)
	if err != nil {
		failed = true
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		failed = true
		return "", fmt.Errorf("authentication failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Data struct {
			Token string `json:"jwt_token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		failed = true
		return "", err
	}

	sc.tokenMu.Lock()
	sc.tokens[principal] = result.Data.Token
	sc.tokenMu.Unlock()

	return result.Data.Token, nil
}

// doJSON issues an authenticated request and decodes the data envelope into
// out (when out is non-nil)
func (sc *simulationClient) doJSON(method, path, principal string, payload, out interface{}) error {
	token, err := sc.authenticate(principal)
	if err != nil {
		return err
	}

	var reqBody io.Reader
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(body)
	}

	req, err := http.NewRequest(method, sc.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	req.Header.Set("Content-Type", "application/json")

	resp, err := sc.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug().Str("path", path).Str("response", string(respBody)).Msg("API response")

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("%s %s failed with status %d: %s", method, path, resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}
	return json.Unmarshal(envelope.Data, out)
}

// fundSeller mints an asset to the seller, approves the market to move it
// and tops up service credits
func (sc *simulationClient) fundSeller(seller string, assetID int64) error {
	start := time.Now()
	var failed bool

	err := sc.doJSON("POST", "/api/v1/ledger/assets", seller,
		map[string]int64{"asset_id": assetID}, nil)
	failed = err != nil
	sc.record("mint", start, failed)
	if err != nil {
		return err
	}

	start = time.Now()
	err = sc.doJSON("POST", fmt.Sprintf("/api/v1/ledger/assets/%d/approve", assetID), seller, nil, nil)
	sc.record("approve", start, err != nil)
	if err != nil {
		return err
	}

	start = time.Now()
	err = sc.doJSON("POST", "/api/v1/ledger/service-credits", seller,
		map[string]int64{"amount": sellerCredits}, nil)
	sc.record("fund", start, err != nil)
	return err
}

// fundBuyer deposits trade currency and service credits and grants the
// market its spending allowance
func (sc *simulationClient) fundBuyer(buyer string) error {
	start := time.Now()
	err := sc.doJSON("POST", "/api/v1/ledger/deposit", buyer,
		map[string]int64{"amount": buyerFunds}, nil)
	sc.record("fund", start, err != nil)
	if err != nil {
		return err
	}

	start = time.Now()
	err = sc.doJSON("POST", "/api/v1/ledger/service-credits", buyer,
		map[string]int64{"amount": buyerCredits}, nil)
	sc.record("fund", start, err != nil)
	if err != nil {
		return err
	}

	start = time.Now()
	err = sc.doJSON("POST", "/api/v1/ledger/allowance", buyer,
		map[string]int64{"amount": buyerAllowance}, nil)
	sc.record("fund", start, err != nil)
	return err
}

// createListing lists an asset for sale and returns the stored listing
func (sc *simulationClient) createListing(seller string, req types.CreateOfferRequest) (*types.MarketListing, error) {
	start := time.Now()
	var listing types.MarketListing
	err := sc.doJSON("POST", "/api/v1/listings", seller, req, &listing)
	sc.record("list", start, err != nil)
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

// getQuote fetches the exact total a buyer must send
func (sc *simulationClient) getQuote(buyer string, assetID int64) (*types.QuoteResponse, error) {
	start := time.Now()
	var quote types.QuoteResponse
	err := sc.doJSON("GET", fmt.Sprintf("/api/v1/listings/%d/quote", assetID), buyer, nil, &quote)
	sc.record("quote", start, err != nil)
	if err != nil {
		return nil, err
	}
	return &quote, nil
}

// purchase buys a listing at the exact quoted total
func (sc *simulationClient) purchase(buyer string, assetID, total, servicePayment int64) (*types.MarketListing, error) {
	start := time.Now()
	var listing types.MarketListing
	err := sc.doJSON("POST", fmt.Sprintf("/api/v1/listings/%d/purchase", assetID), buyer,
		types.PurchaseRequest{AmountSent: total, ServicePayment: servicePayment}, &listing)
	sc.record("purchase", start, err != nil)
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

// printPerformanceStats outputs formatted performance statistics for all API endpoints
func (sc *simulationClient) printPerformanceStats() {
	fmt.Println("\n📊 API Performance Statistics")
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

// main runs the marketplace simulation
// It starts a local API server and simulates concurrent sellers and buyers
func main() {
	// Start the server in a goroutine
	go func() {
		if err := startServer(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for server to start
	time.Sleep(2 * time.Second)

	simClient := newSimulationClient()

	// Generate random number of listings to process
	targetListings := rand.Intn(maxListings-minListings) + minListings
	log.Info().Int("target_listings", targetListings).Msg("Starting simulation")

	// Fund the buyers up front
	for i := 0; i < numWorkers; i++ {
		buyer := fmt.Sprintf("BUYER_%d", i)
		if err := simClient.fundBuyer(buyer); err != nil {
			log.Fatal().Err(err).Str("buyer", buyer).Msg("Failed to fund buyer")
		}
	}

	// Channel to collect listed asset ids
	var nextAssetID int64
	listedChan := make(chan int64, targetListings)
	var wg sync.WaitGroup

	// Start worker goroutines, one seller each
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			createListingsHTTP(workerID, targetListings/numWorkers, simClient, &nextAssetID, listedChan)
		}(i)
	}

	// Wait for all listings to be created
	wg.Wait()
	close(listedChan)

	// Collect all listed asset ids
	var assetIDs []int64
	for assetID := range listedChan {
		assetIDs = append(assetIDs, assetID)
	}

	log.Info().Int("listings_created", len(assetIDs)).Msg("All listings created")

	// Collect statistics during processing
	stats := struct {
		TotalListings   int
		SoldListings    int
		FailedPurchases int
		TotalValue      int64
		TotalFees       int64
		StartTime       time.Time
		Sellers         map[string]int
	}{
		StartTime: time.Now(),
		Sellers:   make(map[string]int),
	}
	stats.TotalListings = len(assetIDs)

	// Buy every listing at its exact quoted total
	for i, assetID := range assetIDs {
		buyer := fmt.Sprintf("BUYER_%d", i%numWorkers)

		quote, err := simClient.getQuote(buyer, assetID)
		if err != nil {
			log.Error().Err(err).Int64("asset_id", assetID).Msg("Failed to get quote")
			stats.FailedPurchases++
			continue
		}

		listing, err := simClient.purchase(buyer, assetID, quote.Total, flatServiceFee)
		if err != nil {
			log.Error().Err(err).Int64("asset_id", assetID).Msg("Failed to purchase listing")
			stats.FailedPurchases++
			continue
		}

		stats.SoldListings++
		stats.TotalValue += quote.Price
		stats.TotalFees += quote.FeeAmount
		stats.Sellers[listing.Seller]++

		log.Info().
			Int64("asset_id", assetID).
			Str("buyer", buyer).
			Str("seller", listing.Seller).
			Int64("price", quote.Price).
			Int64("fee", quote.FeeAmount).
			Msg("Listing purchased")
	}

	// Print summary
	duration := time.Since(stats.StartTime)
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("🚀 MARKETPLACE SIMULATION SUMMARY")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Printf(`
📊 Listing Statistics
--------------------
Total Listings:   %d
Sold:             %d
Failed Purchases: %d
Total Value:      %d
Total Fees:       %d
Duration:         %v

📈 Seller Distribution
--------------------
`, stats.TotalListings, stats.SoldListings, stats.FailedPurchases,
		stats.TotalValue, stats.TotalFees, duration.Round(time.Millisecond))

	// Print seller distribution with simple ASCII bar chart
	maxSellerCount := 0
	for _, count := range stats.Sellers {
		if count > maxSellerCount {
			maxSellerCount = count
		}
	}

	for seller, count := range stats.Sellers {
		barLength := int(float64(count) / float64(maxSellerCount) * 20)
		bar := strings.Repeat("█", barLength)
		fmt.Printf("%-10s: %s (%d)\n", seller, bar, count)
	}

	fmt.Println("\n" + strings.Repeat("=", 80))

	// Success rate calculation
	successRate := float64(stats.SoldListings) / float64(stats.TotalListings) * 100
	log.Info().
		Float64("success_rate", successRate).
		Int("total_listings", stats.TotalListings).
		Int("sold_listings", stats.SoldListings).
		Int64("total_value", stats.TotalValue).
		Dur("duration", duration).
		Msg("Simulation completed")

	simClient.printPerformanceStats()
}

const flatServiceFee = 1200 // must match the server's seeded market state

// createListingsHTTP mints, approves and lists random-priced assets
// Runs as a worker goroutine, sending listed asset ids to listedChan
func createListingsHTTP(workerID, numListings int, simClient *simulationClient, nextAssetID *int64, listedChan chan<- int64) {
	seller := fmt.Sprintf("SELLER_%d", workerID)

	for i := 0; i < numListings; i++ {
		assetID := atomic.AddInt64(nextAssetID, 1)

		if err := simClient.fundSeller(seller, assetID); err != nil {
			log.Error().Err(err).
				Str("seller", seller).
				Int64("asset_id", assetID).
				Msg("Failed to fund seller")
			continue
		}

		price := int64(rand.Intn(100_000) + 100)
		listing, err := simClient.createListing(seller, types.CreateOfferRequest{
			AssetID:        assetID,
			Price:          price,
			Expiry:         time.Now().Add(time.Hour).Unix(),
			ServicePayment: flatServiceFee,
		})
		if err != nil {
			log.Error().Err(err).
				Str("seller", seller).
				Int64("asset_id", assetID).
				Msg("Failed to create listing")
			continue
		}

		listedChan <- listing.AssetID
		log.Info().
			Str("seller", seller).
			Int64("asset_id", listing.AssetID).
			Int64("price", listing.Price).
			Msg("Listing created")

		// Random sleep between listings
		time.Sleep(time.Duration(rand.Intn(500)) * time.Millisecond)
	}
}

// startServer initializes and starts the marketplace API server
// Sets up all required services, handlers and routes
func startServer() error {
	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize database
	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	state, err := database.SeedMarketState(db, cfg.Market, "v1")
	if err != nil {
		return fmt.Errorf("failed to seed market state: %w", err)
	}

	// Initialize services
	authService := auth.NewService(jwtSecret)
	accessService := access.NewService(db)
	if err := accessService.Bootstrap(cfg.Market.SeedAdmin); err != nil {
		return fmt.Errorf("failed to bootstrap role registry: %w", err)
	}
	feesService := fees.NewService(db, accessService)
	registry := ledger.NewRegistry(db)
	currency := ledger.NewCurrency(db, operator)
	store := listings.NewStore(db)

	// Register simulated principals
	for i := 0; i < numWorkers; i++ {
		seller := fmt.Sprintf("SELLER_%d", i)
		buyer := fmt.Sprintf("BUYER_%d", i)
		authService.RegisterAPICredentials(seller, seller+"-secret")
		authService.RegisterAPICredentials(buyer, buyer+"-secret")
	}

	engineDeps := market.Deps{
		DB:       db,
		Store:    store,
		Fees:     feesService,
		Access:   accessService,
		Assets:   registry,
		Currency: currency,
		Operator: operator,
	}
	upgradeService := upgrade.NewService(db, accessService)
	upgradeService.Register("v1", func() market.Engine { return market.NewService(engineDeps, "v1") })
	if err := upgradeService.Activate(state.EngineVersion); err != nil {
		return fmt.Errorf("failed to activate engine: %w", err)
	}

	// Initialize router
	router := gin.Default()
	authHandlers := auth.NewGinHandlers(authService)
	marketHandlers := market.NewGinHandlers(upgradeService)
	ledgerHandlers := ledger.NewGinHandlers(registry, currency)

	// Setup routes
	setupRoutes(router, authHandlers, marketHandlers, ledgerHandlers)

	// Start the server
	return router.Run(":8080")
}

// setupRoutes configures the endpoints the simulation exercises
func setupRoutes(
	router *gin.Engine,
	authHandlers *auth.GinHandlers,
	marketHandlers *market.GinHandlers,
	ledgerHandlers *ledger.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Public listing reads
		v1.GET("/listings", marketHandlers.ListAllHandler())
		v1.GET("/listings/active", marketHandlers.ListActiveHandler())
		v1.GET("/listings/:asset_id/quote", marketHandlers.QuoteHandler())

		// Listing mutations
		listingsGroup := v1.Group("/listings")
		listingsGroup.Use(middleware.JWTAuth(jwtSecret))
		{
			listingsGroup.POST("", marketHandlers.CreateOfferHandler())
			listingsGroup.POST("/:asset_id/purchase", marketHandlers.SellOfferHandler())
		}

		// Ledger routes
		ledgerGroup := v1.Group("/ledger")
		ledgerGroup.Use(middleware.JWTAuth(jwtSecret))
		{
			ledgerGroup.POST("/assets", ledgerHandlers.MintHandler())
			ledgerGroup.POST("/assets/:asset_id/approve", ledgerHandlers.ApproveAssetHandler(operator))
			ledgerGroup.POST("/deposit", ledgerHandlers.DepositHandler())
			ledgerGroup.POST("/allowance", ledgerHandlers.SetAllowanceHandler())
			ledgerGroup.POST("/service-credits", ledgerHandlers.DepositServiceCreditsHandler())
		}
	}
}
