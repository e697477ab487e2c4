// Package httpapi wires the HTTP transport (Gin) to the marketplace services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, authentication, idempotency, and rate limiting.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/tbourn/campus-market/docs" // registers the swagger doc
	"github.com/tbourn/campus-market/internal/auth"
	"github.com/tbourn/campus-market/internal/config"
	"github.com/tbourn/campus-market/internal/http/handlers"
	"github.com/tbourn/campus-market/internal/http/middleware"
	"github.com/tbourn/campus-market/internal/imaging"
	"github.com/tbourn/campus-market/internal/repo"
	"github.com/tbourn/campus-market/internal/services"
)

const (
	// defaultBodyLimit caps JSON bodies on every route but the upload.
	defaultBodyLimit = 1 << 20
	// multipartOverhead leaves room for boundaries and part headers.
	multipartOverhead = 64 << 10
)

// listingRepoShim adapts the repository free functions to the
// services.ListingDeleter interface used by the account cascade.
type listingRepoShim struct{}

// ListingIDsBySeller proxies repo.ListingIDsBySeller.
func (listingRepoShim) ListingIDsBySeller(ctx context.Context, db *gorm.DB, sellerID string) ([]string, error) {
	return repo.ListingIDsBySeller(ctx, db, sellerID)
}

// DeleteListing proxies repo.DeleteListing.
func (listingRepoShim) DeleteListing(ctx context.Context, db *gorm.DB, id string) error {
	return repo.DeleteListing(ctx, db, id)
}

// tokenResolver turns AuthService.Resolve into the middleware contract.
// Suspended accounts map to middleware.ErrForbidden (403); every other
// failure is a 401.
func tokenResolver(svc *services.AuthService) middleware.TokenResolver {
	return func(ctx context.Context, tok string) (string, string, error) {
		a, err := svc.Resolve(ctx, tok)
		if errors.Is(err, services.ErrForbidden) {
			return "", "", middleware.ErrForbidden
		}
		if err != nil {
			return "", "", err
		}
		return a.ID, a.Role, nil
	}
}

// idempotencyLookup reads stored outcomes through the IdempotencyService.
func idempotencyLookup(svc *services.IdempotencyService) middleware.IdempotencyLookup {
	return func(ctx context.Context, userID, scope, key string, now time.Time) (*middleware.IdempotencyRecord, error) {
		rec, err := svc.Lookup(ctx, userID, scope, key, now)
		if err != nil || rec == nil {
			return nil, err
		}
		return &middleware.IdempotencyRecord{ResourceID: rec.ResourceID, Status: rec.Status}, nil
	}
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), CORS and security
// headers, health, metrics, uploads and docs endpoints, and then mounts the
// versioned marketplace API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID + ContextLogger: correlation id and request-scoped logger
//  3. RedactingLogger: structured access logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter (the upload route carries its own, larger cap)
//  6. Metrics
//  7. CORS and Security headers
//
// Authentication, idempotency and rate limiting run per route, in that
// order, so buckets are keyed by user once one is known and replays of a
// keyed create do not spend tokens.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID(), middleware.ContextLogger())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{middleware.HeaderIdempotencyKey},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit
	uploadPath := joinPath(cfg.APIBasePath, "/upload")
	r.Use(limitBody(defaultBodyLimit, uploadPath))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) CORS posture (safe defaults: allow all if none configured)
	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match", middleware.HeaderIdempotencyKey},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag", "Location", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.CORS.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:    cfg.Security.EnableHSTS,
		HSTSMaxAge:    cfg.Security.HSTSMaxAge,
		EnablePolicy:  true,
		ExposeHeaders: []string{"ETag"},
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Stored images
	r.Static("/uploads", cfg.Upload.Dir)

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db
	authSvc := services.NewAuthService(db, auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL))
	idemSvc := &services.IdempotencyService{DB: db, TTL: cfg.IdempotencyTTL}
	h := handlers.New(handlers.Deps{
		Auth:         authSvc,
		Listings:     services.NewListingService(db),
		Transactions: &services.TransactionService{DB: db},
		Reviews:      &services.ReviewService{DB: db},
		Messages:     &services.MessageService{DB: db},
		Moderation:   &services.ModerationService{DB: db, Listings: listingRepoShim{}},
		Reports:      &services.ReportService{DB: db},
		Idempotency:  idemSvc,
		Images:       &imaging.Store{Dir: cfg.Upload.Dir, URLBase: "/uploads", MaxBytes: cfg.Upload.MaxBytes},
	})

	resolve := tokenResolver(authSvc)
	authn := middleware.Authenticate(resolve)
	idem := middleware.Idempotency(middleware.IdempotencyOptions{}, idempotencyLookup(idemSvc))
	limit := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP()).Handler()

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		// Accounts
		api.POST("/auth/signup", limit, h.Signup)
		api.POST("/auth/signin", limit, h.Signin)
		api.GET("/auth/me", authn, limit, h.Me)
		api.PUT("/auth/profile", authn, limit, h.UpdateProfile)
		api.GET("/users/:id", limit, h.GetUser)

		// Listings
		api.GET("/items", limit, h.ListItems)
		api.GET("/items/user/my-items", authn, limit, h.MyItems)
		api.GET("/items/:id", middleware.OptionalAuth(resolve), limit, h.GetItem)
		api.GET("/items/:id/similar", limit, h.SimilarItems)
		api.POST("/items", authn, limit, h.CreateItem)
		api.PUT("/items/:id", authn, limit, h.UpdateItem)
		api.DELETE("/items/:id", authn, limit, h.DeleteItem)

		// Transactions
		api.POST("/transactions", authn, idem, limit, h.CreateTransaction)
		api.GET("/transactions", authn, middleware.RequireAdmin(), limit, h.ListTransactions)
		api.GET("/transactions/my-transactions", authn, limit, h.MyTransactions)
		api.GET("/transactions/:id", authn, limit, h.GetTransaction)
		api.PUT("/transactions/:id/complete", authn, limit, h.CompleteTransaction)
		api.PUT("/transactions/:id/cancel", authn, limit, h.CancelTransaction)

		// Reviews
		api.POST("/reviews", authn, idem, limit, h.CreateReview)
		api.GET("/reviews/user/:id", limit, h.UserReviews)
		api.GET("/reviews/user/:id/stats", limit, h.UserReviewStats)

		// Messages
		api.POST("/messages", authn, limit, h.SendMessage)
		api.GET("/messages/conversations", authn, limit, h.Conversations)
		api.GET("/messages/conversation/:id", authn, limit, h.Conversation)
		api.PUT("/messages/conversation/:id/read", authn, limit, h.MarkConversationRead)
		api.GET("/messages/unread/count", authn, limit, h.UnreadCount)

		// Reports and uploads
		api.POST("/reports", authn, limit, h.CreateReport)
		api.POST("/upload", limitBody(cfg.Upload.MaxBytes+multipartOverhead), authn, limit, h.Upload)
	}

	adm := api.Group("/admin", authn, middleware.RequireAdmin(), limit)
	{
		adm.GET("/stats", h.AdminStats)
		adm.GET("/users", h.AdminListUsers)
		adm.PUT("/users/:id/suspend", h.SuspendUser)
		adm.PUT("/users/:id/verify", h.VerifyUser)
		adm.DELETE("/users/:id", h.DeleteUser)
		adm.GET("/items", h.AdminListItems)
		adm.PUT("/items/:id/hide", h.HideItem)
		adm.PUT("/items/:id/availability", h.SetItemAvailability)
		adm.DELETE("/items/:id", h.AdminDeleteItem)
		adm.GET("/reports", h.ListReports)
		adm.PUT("/reports/:id", h.ResolveReport)
	}
}

// limitBody returns a Gin middleware that caps the request body size to
// maxBytes using http.MaxBytesReader. Routes whose full path is listed in
// except are left alone so they can apply their own cap. Requests exceeding
// the cap cause downstream body reads to error.
func limitBody(maxBytes int64, except ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(except))
	for _, p := range except {
		skip[p] = struct{}{}
	}
	return func(c *gin.Context) {
		if _, ok := skip[c.FullPath()]; !ok && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

// joinPath appends a route to a normalized base path.
func joinPath(base, route string) string {
	if base == "" || base == "/" {
		return route
	}
	return base + route
}
