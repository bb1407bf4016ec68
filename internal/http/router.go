// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns:
// tracing, correlation IDs, logging, panic recovery, metrics, compression,
// CORS, security headers, and rate limiting.
//
// One deliberate quirk: file retrieval is not a registered route. Locators
// put the file key directly under the root path, and a root wildcard would
// collide with /health and /metrics, so unrouted GETs fall through NoRoute
// into the resolver instead.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/filedock/go-file-backend/internal/config"
	"github.com/filedock/go-file-backend/internal/domain"
	"github.com/filedock/go-file-backend/internal/http/handlers"
	"github.com/filedock/go-file-backend/internal/http/middleware"
	"github.com/filedock/go-file-backend/internal/repo"
	"github.com/filedock/go-file-backend/internal/services"
	"github.com/filedock/go-file-backend/internal/storage"
)

// Dependencies carries the externally constructed collaborators the router
// cannot build itself: backend clients and the conversation engine.
type Dependencies struct {
	Objects storage.ObjectStore // nil when the deployment runs relay-only
	Relay   storage.Relay
	Engine  handlers.UpdateEngine // nil disables the webhook endpoint
	Log     zerolog.Logger
}

// fileFinderShim adapts the repository free functions to the resolver's
// FileFinder interface, keeping storage decoupled from the repo package.
type fileFinderShim struct{ db *gorm.DB }

func (f fileFinderShim) ByURL(ctx context.Context, url string) (*domain.FileRecord, error) {
	return repo.GetFileByURL(ctx, f.db, url)
}

func (f fileFinderShim) ByBlobRef(ctx context.Context, ref string) (*domain.FileRecord, error) {
	return repo.GetFileByBlobRef(ctx, f.db, ref)
}

func (f fileFinderShim) ByFileName(ctx context.Context, name string) (*domain.FileRecord, error) {
	return repo.GetFileByName(ctx, f.db, name)
}

// RegisterRoutes attaches all middleware and endpoints to the Gin engine.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured access logs
//  4. Recovery: capture panics after logger
//  5. Body size limiter (upload cap plus multipart overhead)
//  6. Metrics
//  7. Rate limiter per client IP
//  8. Compression (JSON only; stored files are already compressed formats)
//  9. CORS and security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, deps Dependencies, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())

	// Multipart framing adds overhead on top of the file bytes.
	r.Use(limitBody(cfg.MaxUploadBytes + 1<<20))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst)
	r.Use(rl.Handler())

	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedExtensions([]string{
		".jpg", ".jpeg", ".png", ".gif", ".webp", ".mp4", ".mp3", ".zip", ".pdf", ".bin",
	})))

	if len(cfg.CORS.AllowedOrigins) == 0 {
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	} else {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
	}))

	// Liveness
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Dependency injection: services ← repo/db/backends
	categorySvc := &services.CategoryService{DB: db}
	router := &storage.Router{
		Objects: deps.Objects,
		Relay:   deps.Relay,
		BaseURL: cfg.BaseURL,
		Log:     deps.Log,
	}
	uploadSvc := &services.UploadService{
		DB:             db,
		Router:         router,
		Categories:     categorySvc,
		DefaultStorage: cfg.DefaultStorage,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Log:            deps.Log,
	}
	fileSvc := &services.FileService{
		DB:      db,
		Objects: deps.Objects,
		Relay:   deps.Relay,
		BaseURL: cfg.BaseURL,
		Log:     deps.Log,
	}
	resolver := &storage.Resolver{
		Objects: deps.Objects,
		Relay:   deps.Relay,
		Files:   fileFinderShim{db: db},
		BaseURL: cfg.BaseURL,
		Log:     deps.Log,
	}

	h := handlers.New(uploadSvc, fileSvc, categorySvc, resolver, deps.Engine, cfg.MaxUploadBytes)

	r.POST("/upload", h.Upload)
	r.GET("/files", h.ListFiles)
	r.POST("/update-suffix", h.UpdateSuffix)
	r.POST("/delete", h.Delete)
	r.POST("/delete-multiple", h.DeleteMultiple)

	r.GET("/categories", h.ListCategories)
	r.POST("/create-category", h.CreateCategory)
	r.POST("/delete-category", h.DeleteCategory)

	if deps.Engine != nil {
		r.POST("/webhook", h.Webhook)
	}

	// File retrieval: every unrouted GET is treated as a locator path.
	r.NoRoute(func(c *gin.Context) {
		if c.Request.Method == http.MethodGet {
			h.Serve(c)
			return
		}
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})
}

// limitBody caps the request body for all endpoints via http.MaxBytesReader.
// Oversized bodies error on read rather than at the TCP layer.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
