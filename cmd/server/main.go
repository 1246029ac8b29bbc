package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mamadbah2/argan/internal/config"
	"github.com/mamadbah2/argan/internal/identity"
	"github.com/mamadbah2/argan/internal/repository"
	"github.com/mamadbah2/argan/internal/repository/memory"
	"github.com/mamadbah2/argan/internal/repository/mongodb"
	"github.com/mamadbah2/argan/internal/repository/redisstore"
	"github.com/mamadbah2/argan/internal/repository/sheets"
	"github.com/mamadbah2/argan/internal/scheduler"
	"github.com/mamadbah2/argan/internal/server/handlers"
	"github.com/mamadbah2/argan/internal/server/live"
	"github.com/mamadbah2/argan/internal/server/router"
	commandsvc "github.com/mamadbah2/argan/internal/service/commands"
	"github.com/mamadbah2/argan/internal/service/ledger"
	reportingsvc "github.com/mamadbah2/argan/internal/service/reporting"
	whatsappsvc "github.com/mamadbah2/argan/internal/service/whatsapp"
	whatsappclient "github.com/mamadbah2/argan/pkg/clients/whatsapp"
	"github.com/mamadbah2/argan/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	baseLogger := logger.Must(logger.New(cfg.Log.Level))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	user := identity.Resolve(cfg.App)
	baseLogger.Info("identity resolved", zap.String("user_id", user.UserID), zap.String("mode", string(user.Mode)))
	if user.Mode == identity.ModeAnonymous && cfg.Store.Backend != config.BackendMemory {
		baseLogger.Warn("anonymous identity changes on every restart, set USER_ID or AUTH_TOKEN to keep records")
	}

	store, err := openStore(ctx, cfg, baseLogger)
	if err != nil {
		baseLogger.Fatal("failed to open record store", zap.String("backend", cfg.Store.Backend), zap.Error(err))
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			baseLogger.Error("failed to close record store", zap.Error(err))
		}
	}()

	ns := repository.Namespace{AppID: cfg.App.ID, UserID: user.UserID}
	engine := ledger.NewEngine(store, ns, baseLogger.Named("svc.ledger"))
	if err := engine.Start(ctx); err != nil {
		baseLogger.Fatal("failed to load ledger", zap.Error(err))
	}
	defer engine.Close()

	hub := live.NewHub(engine, baseLogger.Named("live"))
	engine.OnChange(hub.Notify)
	go hub.Run(ctx)

	reportingSvc := reportingsvc.NewService(engine, cfg.App.Currency, baseLogger.Named("svc.reporting"))
	ledgerHandler := handlers.NewLedgerHandler(engine, reportingSvc, reportingsvc.SalesFileName, baseLogger.Named("handlers.ledger"))

	loc, err := time.LoadLocation(cfg.Reporting.Timezone)
	if err != nil {
		baseLogger.Fatal("invalid timezone", zap.Error(err))
	}

	var messenger scheduler.Messenger
	var webhookHandler *handlers.WebhookHandler
	if cfg.WhatsApp.Enabled() {
		commandDispatcher := commandsvc.NewService(engine, reportingSvc, loc, baseLogger.Named("svc.commands"))
		whatsClient := whatsappclient.NewClient(cfg.WhatsApp)
		messagingSvc := whatsappsvc.NewMetaWhatsAppService(cfg.WhatsApp, whatsClient, commandDispatcher, baseLogger.Named("svc.whatsapp"))
		webhookHandler = handlers.NewWebhookHandler(messagingSvc, cfg.WhatsApp.AppSecret, baseLogger.Named("handlers.whatsapp"))
		messenger = messagingSvc
		baseLogger.Info("whatsapp chat enabled")
	} else {
		baseLogger.Warn("whatsapp token missing, chat commands and report delivery disabled")
	}

	var mirror sheets.Repository
	if cfg.Sheets.Enabled() {
		sheetsRepo, err := sheets.NewGoogleSheetRepository(ctx, cfg.Sheets, baseLogger.Named("repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets repository", zap.Error(err))
		}
		mirror = sheetsRepo
	}

	sched, err := scheduler.NewScheduler(*cfg, reportingSvc, engine, messenger, mirror, baseLogger.Named("scheduler"))
	if err != nil {
		baseLogger.Fatal("failed to init scheduler", zap.Error(err))
	}
	if err := sched.Start(); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	srv := &http.Server{
		Addr: ":" + cfg.Server.Port,
		Handler: router.New(router.Options{
			Ledger:     ledgerHandler,
			Webhook:    webhookHandler,
			Live:       hub,
			RateLimit:  cfg.Server.RateLimit,
			RateWindow: cfg.Server.RateWindow,
		}, baseLogger.Named("router")),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func openStore(ctx context.Context, cfg *config.Config, baseLogger *zap.Logger) (repository.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		baseLogger.Warn("using in-memory store, records are lost on restart")
		return memory.NewStore(), nil
	case config.BackendRedis:
		return redisstore.New(ctx, &redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, baseLogger.Named("repo.redis"))
	case config.BackendMongo:
		return mongodb.NewMongoDBStore(ctx, cfg.MongoDB.URI, cfg.MongoDB.DBName, baseLogger.Named("repo.mongodb"))
	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.Store.Backend)
	}
}
