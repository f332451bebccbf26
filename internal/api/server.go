// Package api exposes the reservation and cashier pages and their JSON endpoints.
package api

import (
	"context"
	"embed"
	"io/fs"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"cafeteria/internal/importer"
	"cafeteria/internal/metrics"
	"cafeteria/internal/ratelimit"
	"cafeteria/internal/repository"
	"cafeteria/internal/service"
)

//go:embed web
var webFS embed.FS

// Deps are the collaborators of the HTTP layer.
type Deps struct {
	Catalog      *service.Catalog
	Reservations *service.ReservationService
	DailyClose   *service.DailyClose
	Till         *service.TillService
	Importer     *importer.Importer
	Store        repository.Store
	Rules        service.Rules
	// Redis is pinged by /readyz when set.
	Redis *redis.Client
	// Limiter throttles reservation changes per client IP when set.
	Limiter ratelimit.Limiter
}

// Options tune the router.
type Options struct {
	AllowedOrigins []string
	RateLimit      int
	RateWindow     time.Duration
	Debug          bool
}

type Handler struct {
	deps   Deps
	opts   Options
	logger *zerolog.Logger
	pages  fs.FS
}

// NewRouter wires every route on a new gin engine.
func NewRouter(deps Deps, opts Options, logger *zerolog.Logger) *gin.Engine {
	if opts.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	pages, err := fs.Sub(webFS, "web")
	if err != nil {
		panic(err)
	}
	h := &Handler{deps: deps, opts: opts, logger: logger, pages: pages}

	r := gin.New()
	r.Use(requestLogger(logger), gin.Recovery())
	_ = r.SetTrustedProxies(nil)
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:  opts.AllowedOrigins,
			AllowHeaders:  []string{"Origin", "Content-Type", "X-Request-ID"},
			ExposeHeaders: []string{"Content-Length", "X-Request-ID", "Content-Disposition"},
			AllowMethods:  []string{"GET", "POST", "OPTIONS"},
			MaxAge:        12 * time.Hour,
		}))
	}

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/readyz", h.Ready)

	r.GET("/", h.Home)
	r.GET("/caisse", h.CashierPage)
	r.GET("/closed", h.page("closed.html"))
	r.GET("/admin", h.page("admin.html"))
	r.GET("/static/style.css", h.asset("style.css", "text/css; charset=utf-8"))

	api := r.Group("/api")
	api.GET("/initial", h.Initial)
	api.GET("/reservations", h.ListReservations)
	api.POST("/reserve", h.rateLimit(), h.Reserve)
	api.POST("/unreserve", h.rateLimit(), h.Unreserve)
	api.POST("/send-list", h.SendList)

	api.GET("/caisse", h.Queue)
	api.GET("/caisse/export", h.Export)
	api.POST("/checkout", h.Checkout)
	api.POST("/add/:kind", h.AddProduct)
	api.POST("/close", h.CloseTill)

	r.POST("/admin/import", h.Import)
	return r
}

// requestLogger tags each request with an id and writes one access log line.
func requestLogger(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Header("X-Request-ID", id)
		c.Set("request_id", id)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		metrics.IncHTTPRequest(route, status)

		ev := logger.Info()
		if status >= http.StatusInternalServerError {
			ev = logger.Error()
		}
		ev.Str("request_id", id).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("http request")
	}
}

func (h *Handler) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.deps.Limiter == nil || h.opts.RateLimit <= 0 {
			c.Next()
			return
		}
		ok, err := h.deps.Limiter.Allow(c.Request.Context(), c.ClientIP(), h.opts.RateLimit, h.opts.RateWindow)
		if err != nil {
			h.logger.Warn().Err(err).Msg("rate limiter unavailable")
			c.Next()
			return
		}
		if !ok {
			c.String(http.StatusTooManyRequests, "Trop de requêtes, réessayez dans un instant.")
			c.Abort()
			return
		}
		c.Next()
	}
}

// Ready checks the store and Redis.
func (h *Handler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if h.deps.Store != nil {
		if err := h.deps.Store.Ping(ctx); err != nil {
			c.String(http.StatusServiceUnavailable, "store not ready")
			return
		}
	}
	if h.deps.Redis != nil {
		if err := h.deps.Redis.Ping(ctx).Err(); err != nil {
			c.String(http.StatusServiceUnavailable, "redis not ready")
			return
		}
	}
	c.String(http.StatusOK, "ready")
}
