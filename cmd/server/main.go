// Command server runs the studio back-office API.
//
// @title          Studio Back Office API
// @version        1.0
// @description    Service lifecycle, client directory, documents and archive of a notarial practice.
// @BasePath       /api/v1
//
// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the access token.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog/log"

	_ "github.com/tbourn/go-studio-backend/docs"
	"github.com/tbourn/go-studio-backend/internal/auth"
	"github.com/tbourn/go-studio-backend/internal/cleanup"
	"github.com/tbourn/go-studio-backend/internal/config"
	httpapi "github.com/tbourn/go-studio-backend/internal/http"
	"github.com/tbourn/go-studio-backend/internal/observability"
	"github.com/tbourn/go-studio-backend/internal/repo"
	"github.com/tbourn/go-studio-backend/internal/storage"
	"github.com/tbourn/go-studio-backend/internal/sysutil"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.MustLoad()

	sysutil.SetupLogging(cfg.LogLevel, cfg.LogPretty || sysutil.IsTruthy(os.Getenv("LOG_CONSOLE")), os.Stderr)
	version := sysutil.FirstNonEmpty(sysutil.Getenv("APP_VERSION", "VERSION"), "dev")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.Open(cfg.DBDriver, cfg.DSN())
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("open database")
	}
	if err := observability.InstrumentDB(db, cfg.OTEL); err != nil {
		log.Fatal().Err(err).Msg("gorm tracing plugin")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("open document storage")
	}

	tokens := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL, nil)
	sweeper := cleanup.New(db, nil, log.Logger)
	if cfg.Cleanup.Enabled {
		sweeper.Start(ctx, cfg.Cleanup.Interval, cleanup.Options{Soft: cfg.Cleanup.Soft, DryRun: cfg.Cleanup.DryRun})
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{DB: db, Store: store, Tokens: tokens, Sweeper: sweeper}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("db", cfg.DBDriver).
			Str("storage", store.Driver()).
			Str("version", version).
			Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	sweeper.Stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
