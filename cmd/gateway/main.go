// Package main runs the verification data gateway.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	app "github.com/soni0021/apiservices-backend/internal/app"
	"github.com/soni0021/apiservices-backend/internal/app/httpapi"
	"github.com/soni0021/apiservices-backend/internal/app/storage/postgres"
	"github.com/soni0021/apiservices-backend/internal/config"
	"github.com/soni0021/apiservices-backend/internal/middleware"
	"github.com/soni0021/apiservices-backend/pkg/logger"
)

func main() {
	addr := flag.String("addr", "", "HTTP listen address (overrides HTTP_ADDR)")
	catalogPath := flag.String("catalog", "", "service catalog file (overrides CATALOG_PATH)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.NewDefault("gateway").WithError(err).Fatal("load configuration")
	}
	if *addr != "" {
		cfg.HTTPAddr = *addr
	}
	if *catalogPath != "" {
		cfg.CatalogPath = *catalogPath
	}

	log := logger.New("gateway", cfg.LogLevel, os.Stderr)

	catalog, err := config.LoadCatalogOrDefault(cfg.CatalogPath)
	if err != nil {
		log.WithError(err).Fatal("load service catalog")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var stores app.Stores
	if cfg.DatabaseURL != "" {
		pg, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Fatal("connect to postgres")
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			log.WithError(err).Fatal("ensure database schema")
		}
		stores = app.Stores{
			Grants: pg, Services: pg, Credits: pg,
			Records: pg, Usage: pg, Users: pg,
		}
		log.Info("using postgres storage")
	} else {
		log.Warn("DATABASE_URL not set; using in-memory storage")
	}

	application, err := app.New(ctx, stores, app.Options{
		Catalog:         catalog,
		Providers:       cfg.Providers,
		JWTSecret:       cfg.JWTSecret,
		JWTTTL:          cfg.JWTTTL,
		RefreshInterval: cfg.RefreshInterval,
	}, log)
	if err != nil {
		log.WithError(err).Fatal("build application")
	}

	if err := application.Auth.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		log.WithError(err).Fatal("bootstrap admin user")
	}

	if err := application.Start(ctx); err != nil {
		log.WithError(err).Fatal("start background services")
	}

	rl := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, log)
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.Cleanup()
			}
		}
	}()

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewHandler(application, rl, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("gateway listening")
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.WithField("signal", sig.String()).Info("shutting down")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("http server failed")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("http shutdown failed")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Error("service shutdown failed")
	}
	log.Info("gateway stopped")
}
