// Package api exposes the docrag pipeline as a JSON REST API on gin.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dshills/docrag/internal/app"
)

const shutdownTimeout = 10 * time.Second

// NewRouter builds the gin engine with every route registered
func NewRouter(a *app.App) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(a.Logger), CorsMiddleware(a.Config.HTTP.CORSOrigins))

	h := NewHandler(a)
	router.GET("/", h.HandleRoot)
	router.GET("/health", h.HandleHealth)

	api := router.Group("/api")
	{
		api.POST("/vectorize", h.HandleVectorize)
		api.POST("/search", h.HandleSearch)
		api.POST("/query", h.HandleQuery)
		api.GET("/documents", h.HandleDocuments)
		api.POST("/reset", h.HandleReset)
		api.GET("/status", h.HandleStatus)
	}

	return router
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully
func Serve(ctx context.Context, a *app.App, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(a),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("HTTP server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	a.Logger.Info("HTTP server shutting down")
	return srv.Shutdown(shutdownCtx)
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
