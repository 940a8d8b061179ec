package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/classbridge-erp/classbridge-erp/internal/ap"
	"github.com/classbridge-erp/classbridge-erp/internal/app"
	"github.com/classbridge-erp/classbridge-erp/internal/ar"
	"github.com/classbridge-erp/classbridge-erp/internal/assets"
	"github.com/classbridge-erp/classbridge-erp/internal/audit"
	"github.com/classbridge-erp/classbridge-erp/internal/inventory"
	"github.com/classbridge-erp/classbridge-erp/internal/ledger"
	"github.com/classbridge-erp/classbridge-erp/internal/masterdata"
	"github.com/classbridge-erp/classbridge-erp/internal/masterdata/accounts"
	"github.com/classbridge-erp/classbridge-erp/internal/masterdata/costcenters"
	"github.com/classbridge-erp/classbridge-erp/internal/masterdata/items"
	"github.com/classbridge-erp/classbridge-erp/internal/masterdata/parties"
	"github.com/classbridge-erp/classbridge-erp/internal/masterdata/periods"
	"github.com/classbridge-erp/classbridge-erp/internal/masterdata/taxes"
	"github.com/classbridge-erp/classbridge-erp/internal/masterdata/warehouses"
	"github.com/classbridge-erp/classbridge-erp/internal/observability"
	"github.com/classbridge-erp/classbridge-erp/internal/payroll"
	"github.com/classbridge-erp/classbridge-erp/internal/platform/cache"
	"github.com/classbridge-erp/classbridge-erp/internal/platform/db"
	"github.com/classbridge-erp/classbridge-erp/internal/posting"
	"github.com/classbridge-erp/classbridge-erp/internal/recon"
	"github.com/classbridge-erp/classbridge-erp/internal/reports"
	"github.com/classbridge-erp/classbridge-erp/internal/shared"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	slog.SetDefault(logger)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	// Redis only backs the report cache. When it is down the reports are
	// built on every request instead of failing.
	var reportCache *reports.Cache
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, report caching disabled", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
		reportCache = reports.NewCache(redisClient, cfg.ReportCacheTTL)
	}

	auditLogger := shared.NewAuditLogger(dbpool)
	metrics := observability.NewMetrics()

	accountService := accounts.NewService(accounts.NewRepository(dbpool))
	partyService := parties.NewService(parties.NewRepository(dbpool))
	periodService := periods.NewService(periods.NewRepository(dbpool), auditLogger)
	taxService := taxes.NewService(taxes.NewRepository(dbpool))
	itemRepo := items.NewRepository(dbpool)
	warehouseRepo := warehouses.NewRepository(dbpool)
	costCenterRepo := costcenters.NewRepository(dbpool)
	masterDataHandler := masterdata.NewHandler(logger, accountService, partyService, periodService, taxService, itemRepo, warehouseRepo, costCenterRepo)

	ledgerService := ledger.NewService(ledger.NewRepository(dbpool), auditLogger)
	ledgerHandler := ledger.NewHandler(logger, ledgerService)

	engine := posting.NewEngine(posting.NewRepository(dbpool), auditLogger, metrics)
	postingHandler := posting.NewHandler(logger, engine)

	arService := ar.NewService(ar.NewRepository(dbpool), partyService, accountService, engine, auditLogger, ar.DefaultConfig())
	arHandler := ar.NewHandler(logger, arService)

	apService := ap.NewService(ap.NewRepository(dbpool), partyService, accountService, engine, auditLogger, ap.DefaultConfig())
	apHandler := ap.NewHandler(logger, apService)

	inventoryCfg := inventory.DefaultConfig()
	inventoryCfg.AllowNegative = cfg.AllowNegativeStock
	inventoryService := inventory.NewService(inventory.NewRepository(dbpool), itemRepo, warehouseRepo, accountService, engine, auditLogger, inventoryCfg)
	inventoryHandler := inventory.NewHandler(logger, inventoryService)

	assetService := assets.NewService(assets.NewRepository(dbpool), accountService, engine, auditLogger, assets.DefaultConfig())
	assetsHandler := assets.NewHandler(logger, assetService)

	payrollService := payroll.NewService(payroll.NewRepository(dbpool), partyService, accountService, engine, auditLogger, payroll.DefaultConfig())
	payrollHandler := payroll.NewHandler(logger, payrollService)

	reportRepo := reports.NewRepository(dbpool)
	reportService := reports.NewService(reportRepo, reportCache)
	reportsHandler := reports.NewHandler(logger, reportService)

	checker := recon.NewChecker(arService, apService, inventoryService, reportRepo, recon.DefaultConfig())
	reconHandler := recon.NewHandler(logger, checker)

	auditHandler := audit.NewHandler(logger, audit.NewRepository(dbpool))

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		MasterDataHandler: masterDataHandler,
		LedgerHandler:     ledgerHandler,
		PostingHandler:    postingHandler,
		ARHandler:         arHandler,
		APHandler:         apHandler,
		InventoryHandler:  inventoryHandler,
		AssetsHandler:     assetsHandler,
		PayrollHandler:    payrollHandler,
		ReportsHandler:    reportsHandler,
		ReconHandler:      reconHandler,
		AuditHandler:      auditHandler,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
