package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/elonfeng/moodradar/internal/store"
	"github.com/elonfeng/moodradar/pkg/mood"
	"github.com/elonfeng/moodradar/pkg/source"
)

// Analyzer runs one topic analysis.
type Analyzer interface {
	Analyze(ctx context.Context, topic string, limit int) (*mood.TopicResult, error)
}

// Trender lists trending topics.
type Trender interface {
	Trending(ctx context.Context, limit int) []string
}

// Options configures the HTTP server. Zero values select defaults.
type Options struct {
	Port           int
	AllowedOrigins []string
	RateRPS        float64
	RateBurst      int
	DefaultLimit   int
}

// Server provides the HTTP API.
type Server struct {
	analyzer Analyzer
	trending Trender
	store    store.Store // optional, nil = history disabled
	sources  []source.Source
	limiter  *IPRateLimiter
	opts     Options
	router   *gin.Engine
}

type analyzeRequest struct {
	Topic string `json:"topic" binding:"required"`
	Limit *int   `json:"limit"`
}

// New creates a new HTTP server.
func New(analyzer Analyzer, trending Trender, s store.Store, sources []source.Source, opts Options) *Server {
	if opts.Port == 0 {
		opts.Port = 8000
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173"}
	}
	if opts.RateRPS <= 0 {
		opts.RateRPS = 1
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 5
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = mood.DefaultLimit
	}

	srv := &Server{
		analyzer: analyzer,
		trending: trending,
		store:    s,
		sources:  sources,
		limiter:  NewIPRateLimiter(opts.RateRPS, opts.RateBurst),
		opts:     opts,
	}
	srv.router = srv.routes()
	return srv
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger())
	router.Use(PrometheusMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     s.opts.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", s.handleHealth)
	router.POST("/analyze", RateLimitMiddleware(s.limiter), s.handleAnalyze)
	router.GET("/trending", s.handleTrending)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	{
		api.GET("/history", s.handleHistory)
		api.GET("/sources", s.handleSources)
	}

	return router
}

// ListenAndServe starts the HTTP server and shuts it down gracefully when
// ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.opts.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.limiter.Cleanup(10 * time.Minute)
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("moodradar server listening", "addr", httpSrv.Addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		slog.Info("moodradar server stopped")
		return nil
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "OK"})
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request: " + err.Error()})
		return
	}
	if strings.TrimSpace(req.Topic) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "topic is required"})
		return
	}

	limit := s.opts.DefaultLimit
	if req.Limit != nil {
		if *req.Limit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "limit must be non-negative"})
			return
		}
		if *req.Limit > 0 {
			limit = *req.Limit
		}
	}

	res, err := s.analyzer.Analyze(c.Request.Context(), req.Topic, limit)
	switch {
	case errors.Is(err, mood.ErrNoPosts):
		c.JSON(http.StatusNotFound, gin.H{"detail": "No posts found for topic."})
		return
	case errors.Is(err, mood.ErrEmptyTopic):
		c.JSON(http.StatusBadRequest, gin.H{"detail": "topic is required"})
		return
	case err != nil:
		slog.Error("analyze failed", "topic", req.Topic, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "analysis failed: " + err.Error()})
		return
	}

	if s.store != nil {
		if err := s.store.RecordAnalysis(c.Request.Context(), store.FromResult(res, store.OriginAPI)); err != nil {
			slog.Warn("history record failed", "topic", res.Topic, "error", err)
		}
	}

	c.JSON(http.StatusOK, res)
}

func (s *Server) handleTrending(c *gin.Context) {
	limit := queryInt(c, "limit", mood.DefaultTrendingLimit)
	topics := s.trending.Trending(c.Request.Context(), limit)
	if topics == nil {
		topics = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"trending": topics})
}

func (s *Server) handleHistory(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "history is disabled"})
		return
	}

	opts := store.ListOpts{
		Topic: c.Query("topic"),
		Limit: queryInt(c, "limit", 50),
	}
	if since := c.Query("since"); since != "" {
		if t, err := time.Parse(time.RFC3339, since); err == nil {
			opts.Since = t
		}
	}

	analyses, err := s.store.ListAnalyses(c.Request.Context(), opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	if analyses == nil {
		analyses = []store.Analysis{}
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  analyses,
		"count": len(analyses),
	})
}

func (s *Server) handleSources(c *gin.Context) {
	type sourceInfo struct {
		Name    string  `json:"name"`
		Timeout float64 `json:"timeout_seconds"`
	}

	infos := make([]sourceInfo, 0, len(s.sources))
	for _, src := range s.sources {
		infos = append(infos, sourceInfo{
			Name:    string(src.Name()),
			Timeout: src.Timeout().Seconds(),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  infos,
		"count": len(infos),
	})
}

func queryInt(c *gin.Context, key string, fallback int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
