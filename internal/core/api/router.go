// Package api provides the shelfkeeper REST API.
package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// RouterConfig carries the router's dependencies.
type RouterConfig struct {
	Shelves ShelfService

	// Auth authenticates /api/v1 requests, e.g. auth.Authenticator.Middleware().
	Auth gin.HandlerFunc

	DB             Pinger
	Logger         *slog.Logger
	RequestTimeout time.Duration
	Version        string
}

// NewRouter builds the gin engine serving the REST API.
func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "api")

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))
	if cfg.RequestTimeout > 0 {
		router.Use(requestTimeout(cfg.RequestTimeout))
	}

	health := &healthHandler{db: cfg.DB, version: cfg.Version}
	router.GET("/healthz", health.status)

	v1 := router.Group("/api/v1")
	if cfg.Auth != nil {
		v1.Use(cfg.Auth)
	}

	h := &shelfHandler{svc: cfg.Shelves, logger: logger}
	v1.GET("/shelves", h.list)
	v1.POST("/shelves", h.create)
	v1.POST("/shelves/preview", h.preview)
	v1.GET("/shelves/:id", h.get)
	v1.PUT("/shelves/:id", h.update)
	v1.DELETE("/shelves/:id", h.delete)
	v1.GET("/shelves/:id/books", h.books)
	v1.GET("/books/:id/shelves", h.shelvesForBook)
	v1.PUT("/books/:id/progress", h.setProgress)
	v1.DELETE("/books/:id", h.deleteBook)

	return router
}

// requestLogger logs one line per request.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

// requestTimeout bounds each request's context.
func requestTimeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
