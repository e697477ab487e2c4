// Command server runs the campus marketplace HTTP API.
//
//	@title						Campus Market API
//	@version					1.0
//	@description				Peer-to-peer marketplace for students: listings, transactions, reviews, messaging and moderation.
//	@BasePath					/api/v1
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Type "Bearer" followed by a space and the JWT.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/campus-market/internal/auth"
	"github.com/tbourn/campus-market/internal/config"
	httpapi "github.com/tbourn/campus-market/internal/http"
	"github.com/tbourn/campus-market/internal/observability"
	"github.com/tbourn/campus-market/internal/repo"
	"github.com/tbourn/campus-market/internal/services"
	"github.com/tbourn/campus-market/internal/sysutil"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = ""

const (
	shutdownTimeout = 10 * time.Second
	purgeInterval   = time.Hour
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	sysutil.SetLogLevel(cfg.LogLevel)
	log.Logger = sysutil.NewLogger(os.Stdout, cfg.LogPretty, cfg.OTEL.ServiceName)
	zerolog.DefaultContextLogger = &log.Logger
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, sysutil.FirstNonEmpty(version, os.Getenv("APP_VERSION")))
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("database setup failed")
	}
	if err := os.MkdirAll(cfg.Upload.Dir, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.Upload.Dir).Msg("cannot create upload dir")
	}

	idem := &services.IdempotencyService{DB: db, TTL: cfg.IdempotencyTTL}
	go purgeLoop(ctx, idem)

	r := gin.New()
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics", "/uploads"})))
	httpapi.RegisterRoutes(r, db, cfg)

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
		log.Info().Str("addr", srv.Addr).Str("base_path", cfg.APIBasePath).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	if err := shutdownOTel(sctx); err != nil {
		log.Warn().Err(err).Msg("otel shutdown")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("server stopped")
}

// openDatabase opens SQLite, migrates the schema and seeds the configured
// admin account.
func openDatabase(ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if cfg.OTEL.Enabled {
		if err := repo.EnableTracing(db); err != nil {
			return nil, err
		}
	}
	if err := repo.AutoMigrate(db); err != nil {
		return nil, err
	}

	authSvc := services.NewAuthService(db, auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL))
	if err := authSvc.BootstrapAdmin(log.Logger.WithContext(ctx), cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
		return nil, err
	}
	log.Info().Str("path", cfg.DBPath).Msg("database ready")
	return db, nil
}

// purgeLoop drops expired idempotency records until ctx is done.
func purgeLoop(ctx context.Context, idem *services.IdempotencyService) {
	t := time.NewTicker(purgeInterval)
	defer t.Stop()
	for {
		n, err := idem.Purge(ctx, time.Now().UTC())
		switch {
		case err != nil && ctx.Err() == nil:
			log.Warn().Err(err).Msg("idempotency purge failed")
		case n > 0:
			log.Debug().Int64("purged", n).Msg("expired idempotency records removed")
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
