// Package server exposes keyword scoring over a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/elonfeng/asoradar/pkg/aso"
	"github.com/elonfeng/asoradar/pkg/opportunity"
	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Analyzer is the session surface the API serves.
type Analyzer interface {
	aso.KeywordAnalyzer
	Store() aso.Store
	MarketOpportunity(ctx context.Context, kw string) (*aso.MarketReport, error)
	Suggest(ctx context.Context, opts aso.SuggestOptions) ([]string, error)
	AppKeywords(ctx context.Context, appID string) ([]string, error)
	CompareApps(ctx context.Context, appID, competitorID string) (opportunity.Gap, error)
}

// Options configure a Server.
type Options struct {
	Port           int
	AllowedOrigins []string
	// RateLimit caps requests per second across all clients; 0 disables it.
	RateLimit float64
	Batch     aso.BatchOptions
	Logger    logrus.FieldLogger
}

// Server provides the HTTP API.
type Server struct {
	svc     Analyzer
	opts    Options
	log     logrus.FieldLogger
	handler http.Handler
}

// New creates a new HTTP server.
func New(svc Analyzer, opts Options) *Server {
	if opts.Port == 0 {
		opts.Port = 8080
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	if opts.Batch.Logger == nil {
		opts.Batch.Logger = log
	}

	s := &Server{svc: svc, opts: opts, log: log}
	s.handler = cors.New(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}).Handler(s.routes())
	return s
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestTiming(), requestLogger(s.log))
	if s.opts.RateLimit > 0 {
		r.Use(rateLimit(rate.NewLimiter(rate.Limit(s.opts.RateLimit), int(s.opts.RateLimit)+1)))
	}

	r.GET("/health", s.handleHealth)

	v1 := r.Group("/api/v1")
	v1.GET("/keywords/:keyword/score", s.handleScore)
	v1.GET("/keywords/:keyword/opportunity", s.handleOpportunity)
	v1.POST("/keywords/batch", s.handleBatch)
	v1.POST("/suggestions", s.handleSuggestions)
	v1.POST("/combinations", s.handleCombinations)
	v1.GET("/apps/compare", s.handleCompare)
	v1.GET("/apps/:id/keywords", s.handleAppKeywords)
	return r
}

// Handler returns the HTTP handler, CORS included.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.opts.Port),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.WithField("addr", srv.Addr).Info("asoradar server listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
