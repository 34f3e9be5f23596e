// internal/app.go
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	router "propshare-wallet/internal/api"
	"propshare-wallet/internal/api/handler"
	"propshare-wallet/internal/broadcast"
	"propshare-wallet/internal/cache"
	"propshare-wallet/internal/cleanup"
	"propshare-wallet/internal/config"
	"propshare-wallet/internal/engine"
	"propshare-wallet/internal/pricefeed"
	"propshare-wallet/internal/repository"
	"propshare-wallet/internal/repository/postgres"
	"propshare-wallet/internal/util"
	"propshare-wallet/pkg/db"
)

// Application holds all the initialized components of the application.
type Application struct {
	Config *config.AppConfig
	Logger *slog.Logger
	DB     *sqlx.DB
	Cache  *cache.SQLiteCache
	Feed   *pricefeed.HTTPFeed

	Engines *engine.Registry

	// HTTP API
	HTTPHandler http.Handler
}

// NewApplication creates a new Application instance.
func NewApplication() *Application {
	return &Application{}
}

// Initialize initializes all application components.
func (app *Application) Initialize(ctx context.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	app.Config = cfg

	util.InitLogger(cfg.LogLevel)
	app.Logger = util.GetLogger()

	database, err := db.NewPostgresDB(cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	app.DB = database
	if err := postgres.EnsureSchema(ctx, database); err != nil {
		return fmt.Errorf("failed to ensure database schema: %w", err)
	}
	app.Logger.Info("durable store ready")

	scratch, err := cache.NewSQLiteCache(cfg.Cache.Path)
	if err != nil {
		return fmt.Errorf("failed to open scratch cache: %w", err)
	}
	app.Cache = scratch

	defaultPrice, err := decimal.NewFromString(cfg.PriceFeed.DefaultPriceUSD)
	if err != nil {
		return fmt.Errorf("invalid default feed price %q: %w", cfg.PriceFeed.DefaultPriceUSD, err)
	}
	var feed pricefeed.Feed
	if cfg.PriceFeed.URL != "" {
		httpFeed := pricefeed.NewHTTPFeed(cfg.PriceFeed.URL, defaultPrice, app.Logger)
		httpFeed.StartPolling(cfg.PriceFeed.Interval())
		app.Feed = httpFeed
		feed = httpFeed
	} else {
		// Without an endpoint, every quote is the configured default and
		// is flagged stale so callers can see it.
		feed = pricefeed.Fixed{PriceUSD: defaultPrice, Stale: true}
		app.Logger.Warn("no price feed endpoint configured, serving fixed default quote")
	}

	walletRepo := postgres.NewWalletRepository(database)
	interactions := postgres.NewInteractionRepository(database)

	collections := []repository.OwnerCollection{
		postgres.NewOwnerScopedTable(database, postgres.TableWalletRecords),
		postgres.NewOwnerScopedTable(database, postgres.TableInvestmentRecords),
		postgres.NewOwnerScopedTable(database, postgres.TableTransactionRecords),
		postgres.NewOwnerScopedTable(database, postgres.TableWatchlistEntries),
		postgres.NewOwnerScopedTable(database, postgres.TableInteractionEvents),
	}
	critical := collections[:3]
	cleaner := cleanup.New(collections, critical, app.Logger)

	app.Engines = engine.NewRegistry(engine.Deps{
		Repo:         walletRepo,
		Interactions: interactions,
		Cache:        scratch,
		Feed:         feed,
		Broadcaster:  broadcast.New(),
		Cleaner:      cleaner,
		Logger:       app.Logger,
	})

	walletHandler := handler.NewWalletHandler(app.Engines, app.Logger)
	app.HTTPHandler = router.NewRouter(walletHandler, app.Logger)
	app.Logger.Info("application initialized", "port", cfg.ServerPort)

	return nil
}

// Shutdown gracefully shuts down application resources.
func (app *Application) Shutdown(ctx context.Context) error {
	if app.Engines != nil {
		app.Engines.Close()
	}
	if app.Feed != nil {
		app.Feed.Close()
	}
	if app.Cache != nil {
		if err := app.Cache.Close(); err != nil {
			app.Logger.Error("failed to close scratch cache", "error", err)
		}
	}
	if app.DB != nil {
		if err := app.DB.Close(); err != nil {
			app.Logger.Error("failed to close database connection", "error", err)
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}
	app.Logger.Info("application shut down")
	return nil
}
