package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/phishguard/internal/database"
	"github.com/nao1215/phishguard/internal/model"
)

// defaultVerdictLimit caps /api/verdicts when no limit is given.
const defaultVerdictLimit = 50

var ginModeOnce sync.Once

// HistorySource lists stored verdicts.
type HistorySource interface {
	ListVerdicts(ctx context.Context, f database.Filter) ([]model.VerdictRecord, error)
}

// Server serves /healthz, /metrics and /api/verdicts.
type Server struct {
	addr    string
	metrics *Metrics
	history HistorySource
	logger  *slog.Logger
	router  *gin.Engine
	started time.Time
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithHistory enables /api/verdicts backed by h.
func WithHistory(h HistorySource) ServerOption {
	return func(s *Server) {
		s.history = h
	}
}

// WithServerLogger sets the logger.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a Server listening on addr.
func NewServer(addr string, m *Metrics, opts ...ServerOption) *Server {
	s := &Server{addr: addr, metrics: m, started: time.Now()}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	ginModeOnce.Do(func() { gin.SetMode(gin.ReleaseMode) })
	router := gin.New()
	router.Use(gin.Recovery(), s.logRequests())

	router.GET("/healthz", s.handleHealth)
	router.GET("/metrics", gin.WrapH(m.Handler()))
	router.GET("/api/verdicts", s.handleVerdicts)

	s.router = router
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("status server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	body := gin.H{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	}
	if snap, ok := s.metrics.LastSweepSnapshot(); ok {
		body["last_sweep"] = snap
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleVerdicts(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "verdict history is disabled"})
		return
	}

	filter := database.Filter{
		URL:   c.Query("url"),
		Limit: defaultVerdictLimit,
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		filter.Limit = n
	}
	if v := c.Query("phishing"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "phishing must be a boolean"})
			return
		}
		filter.PhishingOnly = b
	}

	records, err := s.history.ListVerdicts(c.Request.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list verdicts", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list verdicts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(records), "verdicts": records})
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("status request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"elapsed", time.Since(start),
		)
	}
}
