package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"

	"github.com/dcespedes8/avicontrol/internal/config"
	"github.com/dcespedes8/avicontrol/internal/repository/sheets"
	"github.com/dcespedes8/avicontrol/internal/scheduler"
	"github.com/dcespedes8/avicontrol/internal/server/handlers"
	"github.com/dcespedes8/avicontrol/internal/server/router"
	ordersvc "github.com/dcespedes8/avicontrol/internal/service/orders"
	reportingsvc "github.com/dcespedes8/avicontrol/internal/service/reporting"
	settingssvc "github.com/dcespedes8/avicontrol/internal/service/settings"
	usersvc "github.com/dcespedes8/avicontrol/internal/service/users"
	"github.com/dcespedes8/avicontrol/internal/store"
	syncpkg "github.com/dcespedes8/avicontrol/internal/sync"
	"github.com/dcespedes8/avicontrol/pkg/clients/alerts"
	"github.com/dcespedes8/avicontrol/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New())
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	kv, err := store.OpenKV(cfg.Storage.DataDir)
	if err != nil {
		baseLogger.Fatal("failed to open local store", zap.Error(err))
	}
	defer func() {
		if err := kv.Close(); err != nil {
			baseLogger.Error("failed to close local store", zap.Error(err))
		}
	}()

	st := store.New(kv, baseLogger.Named("store"))
	if err := st.EnsureSeed(); err != nil {
		baseLogger.Fatal("failed to seed local store", zap.Error(err))
	}

	var sheetsRepo sheets.Repository
	if cfg.SheetsEnabled() {
		sheetsRepo, err = sheets.NewGoogleSheetRepository(context.Background(), cfg.Sheets, baseLogger.Named("repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets repository", zap.Error(err))
		}
	} else {
		baseLogger.Info("sheets export disabled, credentials not configured")
	}

	alertClient := alerts.NewClient(cfg.Alerts.WebhookURL, cfg.Alerts.DeviceName, baseLogger.Named("clients.alerts"))

	session := syncpkg.NewSession(st, alertClient, baseLogger.Named("sync"))
	defer session.Stop()

	usersSvc := usersvc.NewService(st, baseLogger.Named("svc.users"))
	ordersSvc := ordersvc.NewService(st, baseLogger.Named("svc.orders"))
	reportingSvc := reportingsvc.NewService(st, sheetsRepo, baseLogger.Named("svc.reporting"))
	settingsSvc := settingssvc.NewService(st, session, baseLogger.Named("svc.settings"))

	if err := settingsSvc.StartFromStored(context.Background()); err != nil {
		// The device keeps operating on local data when the remote side is
		// unreachable at boot.
		baseLogger.Warn("remote sync not started", zap.Error(err))
	}

	authHandler := handlers.NewAuthHandler(usersSvc, baseLogger.Named("handlers.auth"))
	orderHandler := handlers.NewOrderHandler(ordersSvc, st, authHandler, baseLogger.Named("handlers.orders"))
	adminHandler := handlers.NewAdminHandler(usersSvc, settingsSvc, reportingSvc, st, session, authHandler, baseLogger.Named("handlers.admin"))
	eventsHandler := handlers.NewEventsHandler(st, baseLogger.Named("handlers.events"))
	engine := router.New(authHandler, orderHandler, adminHandler, eventsHandler, baseLogger.Named("router"))

	sched := scheduler.NewScheduler(*cfg, st, reportingSvc, baseLogger.Named("scheduler"))
	sched.Start()
	defer sched.Stop()

	srv := &http.Server{
		Addr:        ":" + cfg.Server.Port,
		Handler:     engine,
		ReadTimeout: 15 * time.Second,
		// No write timeout: /events holds its response open for the life of
		// the client connection.
		IdleTimeout: 60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

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
