package api

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/zainbaq/medical-ml/config"
	"github.com/zainbaq/medical-ml/errors"
	"github.com/zainbaq/medical-ml/health"
	"github.com/zainbaq/medical-ml/metric"
	"github.com/zainbaq/medical-ml/registry"
)

// Dependency reports the health of something the registry relies on but
// can run without, such as the NATS connection.
type Dependency struct {
	Name  string
	Check func() health.Status
}

// Server exposes a registry.Store over HTTP
type Server struct {
	store   *registry.Store
	checker registry.HealthChecker
	cfg     *config.Config
	logger  *slog.Logger

	metricsRegistry *metric.MetricsRegistry
	metrics         *metric.Metrics
	broadcaster     *registry.Broadcaster
	dependencies    []Dependency
	upgrader        websocket.Upgrader

	handlerOnce sync.Once
	handler     http.Handler

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	done       chan struct{}
	closeOnce  sync.Once
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetricsRegistry enables request metrics and, when metrics are
// enabled in config, the exposition endpoint.
func WithMetricsRegistry(r *metric.MetricsRegistry) Option {
	return func(s *Server) {
		s.metricsRegistry = r
		if r != nil {
			s.metrics = r.CoreMetrics()
		}
	}
}

// WithBroadcaster enables the websocket event stream
func WithBroadcaster(b *registry.Broadcaster) Option {
	return func(s *Server) {
		s.broadcaster = b
	}
}

// WithDependency adds a dependency to the self health report
func WithDependency(name string, check func() health.Status) Option {
	return func(s *Server) {
		s.dependencies = append(s.dependencies, Dependency{Name: name, Check: check})
	}
}

// NewServer creates the API server. A nil checker falls back to passive
// heartbeat classification.
func NewServer(store *registry.Store, checker registry.HealthChecker, cfg *config.Config, opts ...Option) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	if checker == nil {
		checker = registry.NewPassiveChecker(store, cfg.Registry.HeartbeatTimeout.Duration())
	}

	s := &Server{
		store:   store,
		checker: checker,
		cfg:     cfg,
		logger:  slog.Default().With("component", "registry-api"),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	allowed := cfg.CORS.AllowedOrigins
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || originAllowed(allowed, origin)
		},
	}
	return s
}

// Handler returns the complete HTTP handler including middleware
func (s *Server) Handler() http.Handler {
	s.handlerOnce.Do(func() {
		var h http.Handler = s.routes()
		if rl := s.cfg.RateLimit; rl.RequestsPerSecond > 0 {
			burst := rl.Burst
			if burst <= 0 {
				burst = int(rl.RequestsPerSecond) + 1
			}
			h = s.withRateLimit(rate.NewLimiter(rate.Limit(rl.RequestsPerSecond), burst), h)
		}
		h = s.withCORS(h)
		h = s.withInstrumentation(h)
		h = withRequestID(h)
		h = s.withRecovery(h)
		s.handler = h
	})
	return s.handler
}

// Start binds the configured address and serves in the background.
// Request contexts derive from ctx.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.httpServer != nil {
		return errors.WrapFatal(errors.ErrAlreadyStarted, "Server", "Start", "start HTTP server")
	}

	ln, err := net.Listen("tcp", s.cfg.Server.Addr())
	if err != nil {
		return errors.WrapFatal(err, "Server", "Start", "listen on "+s.cfg.Server.Addr())
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       s.cfg.Server.ReadTimeout.Duration(),
		ReadHeaderTimeout: s.cfg.Server.ReadTimeout.Duration(),
		WriteTimeout:      s.cfg.Server.WriteTimeout.Duration(),
		IdleTimeout:       s.cfg.Server.IdleTimeout.Duration(),
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.httpServer = srv
	s.listener = ln

	go func() {
		if err := srv.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", "error", err)
		}
	}()

	s.logger.Info("Registry API listening", "addr", ln.Addr().String(), "api_prefix", s.cfg.Server.APIPrefix)
	return nil
}

// Addr returns the bound address once started
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop ends websocket streams and shuts the HTTP server down gracefully
func (s *Server) Stop(timeout time.Duration) error {
	s.closeOnce.Do(func() { close(s.done) })

	s.mu.Lock()
	srv := s.httpServer
	s.httpServer = nil
	s.listener = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown failed",
			"duration_ms", time.Since(start).Milliseconds(), "error", err)
		return errors.WrapTransient(err, "Server", "Stop", "shutdown HTTP server")
	}
	s.logger.Debug("HTTP server shutdown completed", "duration_ms", time.Since(start).Milliseconds())
	return nil
}
