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

	"github.com/cardex/market-api/internal/access"
	"github.com/cardex/market-api/internal/auth"
	"github.com/cardex/market-api/internal/config"
	"github.com/cardex/market-api/internal/database"
	"github.com/cardex/market-api/internal/fees"
	"github.com/cardex/market-api/internal/ledger"
	"github.com/cardex/market-api/internal/listings"
	"github.com/cardex/market-api/internal/market"
	"github.com/cardex/market-api/internal/upgrade"
	"github.com/cardex/market-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// OperatorPrincipal identifies the marketplace itself on the asset registry
// and currency ledger. Sellers approve this identity; buyers grant it a
// spending allowance.
const OperatorPrincipal = "market-operator"

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

// main initializes and runs the marketplace API server with graceful shutdown
// support. It sets up all required services, database connections, and API
// routes.
func main() {
	cfg, err := config.Load(os.Getenv("MARKET_CONFIG"))
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize database
	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	state, err := database.SeedMarketState(db, cfg.Market, "v1")
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to seed market state")
	}

	// Initialize router
	router := gin.Default()

	// Initialize services and handlers
	authService := auth.NewService(cfg.Auth.JWTSecret)
	authHandlers := auth.NewGinHandlers(authService)
	// Register test credentials
	authService.RegisterAPICredentials(auth.TestAPIKey, auth.TestAPISecret)
	authService.RegisterAPICredentials(cfg.Market.SeedAdmin, cfg.Market.SeedAdmin+"-secret")

	accessService := access.NewService(db)
	if err := accessService.Bootstrap(cfg.Market.SeedAdmin); err != nil {
		zlog.Fatal().Err(err).Msg("Failed to bootstrap role registry")
	}
	accessHandlers := access.NewGinHandlers(accessService)

	feesService := fees.NewService(db, accessService)
	feesHandlers := fees.NewGinHandlers(feesService)

	registry := ledger.NewRegistry(db)
	currency := ledger.NewCurrency(db, OperatorPrincipal)
	ledgerHandlers := ledger.NewGinHandlers(registry, currency)

	store := listings.NewStore(db)

	engineDeps := market.Deps{
		DB:       db,
		Store:    store,
		Fees:     feesService,
		Access:   accessService,
		Assets:   registry,
		Currency: currency,
		Operator: OperatorPrincipal,
	}

	// Both engine versions run the same logic today; v2 exists so the
	// switch path is exercised end to end before a behavioral revision
	// ships.
	upgradeService := upgrade.NewService(db, accessService)
	upgradeService.Register("v1", func() market.Engine { return market.NewService(engineDeps, "v1") })
	upgradeService.Register("v2", func() market.Engine { return market.NewService(engineDeps, "v2") })
	if err := upgradeService.Activate(state.EngineVersion); err != nil {
		zlog.Fatal().Err(err).Str("version", state.EngineVersion).Msg("Failed to activate engine")
	}
	upgradeHandlers := upgrade.NewGinHandlers(upgradeService)

	marketHandlers := market.NewGinHandlers(upgradeService)

	// Create and start expiry sweeper
	sweepInterval, err := time.ParseDuration(cfg.Market.SweepInterval)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Invalid sweep interval")
	}
	sweeper := market.NewSweeper(store, sweepInterval)
	sweeperCtx, sweeperCancel := context.WithCancel(context.Background())
	defer sweeperCancel()

	go sweeper.Start(sweeperCtx)

	// Setup middleware
	router.Use(middleware.RateLimit())

	// Setup API routes
	setupRoutes(router, cfg.Auth.JWTSecret,
		authHandlers, marketHandlers, accessHandlers,
		feesHandlers, ledgerHandlers, upgradeHandlers)

	// Create server
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
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
// - Listing routes: Reads are public, mutations require JWT
// - Ledger routes: JWT-protected balance and approval management
// - Admin routes: JWT-protected, role checks happen in the services
func setupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authHandlers *auth.GinHandlers,
	marketHandlers *market.GinHandlers,
	accessHandlers *access.GinHandlers,
	feesHandlers *fees.GinHandlers,
	ledgerHandlers *ledger.GinHandlers,
	upgradeHandlers *upgrade.GinHandlers,
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
		v1.GET("/listings/:asset_id", marketHandlers.GetListingHandler())
		v1.GET("/listings/:asset_id/quote", marketHandlers.QuoteHandler())
		v1.GET("/events", marketHandlers.EventsHandler())

		// Listing mutations
		listingsGroup := v1.Group("/listings")
		listingsGroup.Use(middleware.JWTAuth(jwtSecret))
		{
			listingsGroup.POST("", marketHandlers.CreateOfferHandler())
			listingsGroup.PUT("/:asset_id", marketHandlers.ChangeOfferHandler())
			listingsGroup.DELETE("/:asset_id", marketHandlers.RetireOfferHandler())
			listingsGroup.POST("/:asset_id/relist", marketHandlers.ReOfferHandler())
			listingsGroup.POST("/:asset_id/purchase", marketHandlers.SellOfferHandler())
		}

		// Ledger routes for seeding assets and balances
		ledgerGroup := v1.Group("/ledger")
		ledgerGroup.Use(middleware.JWTAuth(jwtSecret))
		{
			ledgerGroup.POST("/assets", ledgerHandlers.MintHandler())
			ledgerGroup.GET("/assets/:asset_id", ledgerHandlers.GetAssetHandler())
			ledgerGroup.POST("/assets/:asset_id/approve", ledgerHandlers.ApproveAssetHandler(OperatorPrincipal))
			ledgerGroup.POST("/deposit", ledgerHandlers.DepositHandler())
			ledgerGroup.POST("/allowance", ledgerHandlers.SetAllowanceHandler())
			ledgerGroup.POST("/service-credits", ledgerHandlers.DepositServiceCreditsHandler())
			ledgerGroup.GET("/wallet", ledgerHandlers.WalletHandler())
		}

		// Admin routes; authorization is role-based inside the services
		admin := v1.Group("/admin")
		admin.Use(middleware.JWTAuth(jwtSecret))
		{
			admin.POST("/pause", accessHandlers.PauseHandler())
			admin.POST("/unpause", accessHandlers.UnpauseHandler())
			admin.GET("/fees", feesHandlers.GetPolicyHandler())
			admin.PUT("/fees", feesHandlers.SetPercentageHandler())
			admin.POST("/roles", accessHandlers.GrantRoleHandler())
			admin.DELETE("/roles", accessHandlers.RevokeRoleHandler())
			admin.POST("/listings/:asset_id/return", marketHandlers.ReturnCardHandler())
			admin.POST("/upgrade", upgradeHandlers.SwitchHandler())
			admin.GET("/version", upgradeHandlers.VersionHandler())
		}
	}
}
