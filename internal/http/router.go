// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// authentication, CORS, security headers, idempotency, and rate limiting.
package httpapi

import (
	"context"
	"net/http"
	"path"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-studio-backend/internal/auth"
	"github.com/tbourn/go-studio-backend/internal/cleanup"
	"github.com/tbourn/go-studio-backend/internal/config"
	"github.com/tbourn/go-studio-backend/internal/http/handlers"
	"github.com/tbourn/go-studio-backend/internal/http/middleware"
	"github.com/tbourn/go-studio-backend/internal/repo"
	"github.com/tbourn/go-studio-backend/internal/services"
	"github.com/tbourn/go-studio-backend/internal/storage"
)

// Deps are the long-lived collaborators the router needs. Sweeper may be
// nil, in which case one is built over DB with the wall clock.
type Deps struct {
	DB      *gorm.DB
	Store   storage.Store
	Tokens  *auth.Tokens
	Sweeper *cleanup.Sweeper
}

// multipartOverhead is added to the upload cap to size the body limit.
const multipartOverhead = 64 << 10

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and mounts the API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter and gzip
//  6. Metrics
//  7. Authenticate: resolve the bearer token (parse only)
//  8. ScopedLogger: request logger carrying user and employee ids
//  9. Idempotency validator (before rate limiter to allow bypass on replay)
//  10. Rate limiter (per user/IP, tighter per-IP budget on credential routes)
//  11. CORS and security headers
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true
	db := deps.DB

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{middleware.HeaderIdempotencyKey},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Body size limit large enough for one document upload, then gzip
	r.Use(limitBody(bodyLimit(cfg.Storage.MaxUpload)))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPathsRegexs([]string{`/documents/\d+/content$`})))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Bearer tokens
	var verifier middleware.TokenVerifier
	if deps.Tokens != nil {
		verifier = deps.Tokens
	}
	r.Use(middleware.Authenticate(verifier))

	// 8) Request-scoped logger
	r.Use(middleware.ScopedLogger())

	// 9) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: 200},
		func(ctx context.Context, userID, scope, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, userID, scope, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	// 10) Token-bucket rate limiter per user/IP; credential routes per IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP(), nil)
	if cfg.AuthRateBurst > 0 {
		for _, p := range []string{"/auth/login", "/auth/password"} {
			rl.Route(http.MethodPost, path.Join(cfg.APIBasePath, p), cfg.AuthRateRPS, cfg.AuthRateBurst, middleware.KeyByIP())
		}
	}
	r.Use(rl.Handler())

	// 11) CORS posture (allow all if none configured)
	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      true,
		EnablePolicy: true,
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

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := newHandlers(deps, cfg)

	api := groupWithPrefix(r, cfg.APIBasePath)
	protected := api.Group("", middleware.RequireAuth(cfg.Auth.Required))
	h.Mount(api, protected)
}

// newHandlers builds the application services and binds them to handlers.
func newHandlers(deps Deps, cfg config.Config) *handlers.Handlers {
	db := deps.DB
	lg := log.Logger

	studio := services.NewStudioService(db, services.NewCodeGenerator(db, nil, lg), nil, lg)
	if cfg.DeliveryMonths > 0 {
		studio.DeliveryMonths = cfg.DeliveryMonths
	}

	sweeper := deps.Sweeper
	if sweeper == nil {
		sweeper = cleanup.New(db, nil, lg)
	}

	h := handlers.New(
		studio,
		studio.Archive,
		services.NewDirectoryService(db),
		services.NewAuthService(db, deps.Tokens),
		services.NewDocumentService(db, deps.Store, int64(cfg.Storage.MaxUpload), lg),
		sweeper,
	)
	if cfg.IdempotencyTTL > 0 {
		h.IdempotencyTTL = cfg.IdempotencyTTL
	}
	h.SweepOptions = cleanup.Options{Soft: cfg.Cleanup.Soft, DryRun: cfg.Cleanup.DryRun}
	return h
}

func corsMiddleware(origins []string) []gin.HandlerFunc {
	methods := []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	headers := []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderIdempotencyKey}
	expose := []string{"X-Request-ID", "ETag", "Content-Disposition", middleware.HeaderIdempotencyReplayed}

	if len(origins) == 0 {
		return []gin.HandlerFunc{
			// Force ACAO: * even for requests without an Origin header.
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(cors.Config{
				AllowAllOrigins:  true,
				AllowMethods:     methods,
				AllowHeaders:     headers,
				ExposeHeaders:    expose,
				AllowCredentials: false, // must remain false with AllowAllOrigins
				MaxAge:           12 * time.Hour,
			}),
		}
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     methods,
			AllowHeaders:     headers,
			ExposeHeaders:    expose,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}),
	}
}

// bodyLimit returns the request body cap: the upload limit plus multipart
// framing, never below 1 MiB.
func bodyLimit(maxUpload int) int64 {
	n := int64(maxUpload) + multipartOverhead
	if n < 1<<20 {
		n = 1 << 20
	}
	return n
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
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
