// Package server exposes ISBN validation and metadata lookup over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/larkwiot/shelf/internal/isbn"
	"github.com/larkwiot/shelf/internal/resolver"
)

type Resolver interface {
	Resolve(ctx context.Context, raw string) (resolver.Result, error)
}

type Server struct {
	resolver Resolver
	logger   *slog.Logger
	engine   *gin.Engine
}

func New(r Resolver, logger *slog.Logger) *Server {
	s := &Server{
		resolver: r,
		logger:   logger,
		engine:   gin.New(),
	}
	s.engine.Use(gin.Recovery(), s.requestLogger())

	s.engine.GET("/healthz", s.health)
	api := s.engine.Group("/api")
	api.GET("/isbn/:isbn/validate", s.validate)
	api.GET("/books/search-isbn/:isbn", s.searchIsbn)

	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is done, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errs; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "error", c.Errors.String())
		}
		s.logger.Info("request", attrs...)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type validateResponse struct {
	Input     string         `json:"input"`
	Canonical isbn.Canonical `json:"canonical"`
	Valid     bool           `json:"valid"`
	Kind      isbn.Kind      `json:"kind"`
	Reason    string         `json:"reason,omitempty"`
	Formatted string         `json:"formatted,omitempty"`
	Variants  []string       `json:"variants"`
}

func (s *Server) validate(c *gin.Context) {
	raw := c.Param("isbn")
	canonical := isbn.Normalize(raw)
	validation := isbn.Validate(canonical)

	response := validateResponse{
		Input:     raw,
		Canonical: canonical,
		Valid:     validation.Valid,
		Kind:      validation.Kind,
		Reason:    validation.Reason,
		Variants:  isbn.Variants(raw),
	}
	if validation.Valid {
		response.Formatted = isbn.Format(canonical)
	}
	c.JSON(http.StatusOK, response)
}

func (s *Server) searchIsbn(c *gin.Context) {
	result, err := s.resolver.Resolve(c.Request.Context(), c.Param("isbn"))
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "lookup cancelled"})
		return
	}

	status := http.StatusOK
	if result.Outcome == resolver.InvalidISBN {
		status = http.StatusBadRequest
	}
	c.JSON(status, result)
}
