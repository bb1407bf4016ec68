// Command server is the file-hosting backend entrypoint. It wires the
// metadata database, the schema manager, both blob backends, the webhook
// conversation engine, and the HTTP API, then runs until SIGINT/SIGTERM
// with a graceful drain.
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
	tg "github.com/go-telegram/bot"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/filedock/go-file-backend/internal/bot"
	"github.com/filedock/go-file-backend/internal/config"
	httpapi "github.com/filedock/go-file-backend/internal/http"
	"github.com/filedock/go-file-backend/internal/http/handlers"
	"github.com/filedock/go-file-backend/internal/observability"
	"github.com/filedock/go-file-backend/internal/repo"
	"github.com/filedock/go-file-backend/internal/schema"
	"github.com/filedock/go-file-backend/internal/services"
	"github.com/filedock/go-file-backend/internal/storage"
	"github.com/filedock/go-file-backend/internal/sysutil"
)

// version is stamped at build time via -ldflags.
var version = "dev"

// shutdownGrace bounds the drain of in-flight requests on termination.
const shutdownGrace = 10 * time.Second

func main() {
	// .env is a dev convenience; absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("configuration invalid")
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open metadata database")
	}

	// Self-healing schema pass. A failure here means the metadata store is
	// unusable and the process must not serve traffic.
	if err := schema.New(db, log.Logger).Ensure(ctx); err != nil {
		log.Fatal().Err(err).Msg("schema ensure failed")
	}

	var objects storage.ObjectStore
	if cfg.S3.Enabled() {
		s3, err := storage.NewS3Store(ctx, cfg.S3)
		if err != nil {
			log.Fatal().Err(err).Msg("object backend init failed")
		}
		objects = s3
		log.Info().Str("bucket", cfg.S3.Bucket).Msg("object backend bound")
	} else {
		log.Info().Msg("no object backend configured, running relay-only")
	}

	b, err := tg.New(cfg.Bot.Token)
	if err != nil {
		log.Fatal().Err(err).Msg("bot client init failed")
	}
	relay := storage.NewTelegramRelay(b, cfg.Bot.StorageChatID)

	categorySvc := &services.CategoryService{DB: db}
	uploadSvc := &services.UploadService{
		DB: db,
		Router: &storage.Router{
			Objects: objects,
			Relay:   relay,
			BaseURL: cfg.BaseURL,
			Log:     log.Logger,
		},
		Categories:     categorySvc,
		DefaultStorage: cfg.DefaultStorage,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Log:            log.Logger,
	}

	var engine handlers.UpdateEngine
	if cfg.Bot.WebhookURL != "" {
		engine = &bot.Engine{
			DB:             db,
			Sender:         &bot.TelegramSender{B: b},
			Uploads:        uploadSvc,
			Categories:     categorySvc,
			DefaultStorage: cfg.DefaultStorage,
			MaxUploadBytes: cfg.MaxUploadBytes,
			ObjectEnabled:  objects != nil,
			Log:            log.Logger,
		}
		if err := bot.RegisterWebhook(ctx, b, cfg.Bot.WebhookURL, log.Logger); err != nil {
			log.Fatal().Err(err).Str("url", cfg.Bot.WebhookURL).Msg("webhook registration failed")
		}
	} else {
		log.Warn().Msg("BOT_WEBHOOK_URL not set, webhook endpoint disabled")
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, httpapi.Dependencies{
		Objects: objects,
		Relay:   relay,
		Engine:  engine,
		Log:     log.Logger,
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server failed")
		}
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(drainCtx); err != nil {
		log.Error().Err(err).Msg("http server drain failed")
	}
	if err := shutdownOTel(drainCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown failed")
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("bye")
}
