// Package dashboard serves the HTTP status API, a small HTML page, a live
// WebSocket event stream and the Prometheus metrics endpoint.
package dashboard

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rileyhilliard/ramwatch/internal/errors"
	"github.com/rileyhilliard/ramwatch/internal/escalation"
	"github.com/rileyhilliard/ramwatch/internal/events"
	"github.com/rileyhilliard/ramwatch/internal/logger"
	"github.com/rileyhilliard/ramwatch/internal/responder"
)

// Name labels the dashboard subscriptions.
const Name = "dashboard"

// StatusFunc reports the current policy state.
type StatusFunc func() escalation.Status

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	RAMPercent       float64          `json:"ram_percent"`
	TopProcesses     []events.Process `json:"top_processes"`
	Status           string           `json:"status"`
	HighSince        *time.Time       `json:"high_since,omitempty"`
	EmailSent        bool             `json:"email_sent"`
	RestartTriggered bool             `json:"restart_triggered"`
	Threshold        float64          `json:"threshold"`
	UpdatedAt        *time.Time       `json:"updated_at,omitempty"`
}

// Server is the dashboard HTTP server.
type Server struct {
	addr      string
	threshold float64
	status    StatusFunc
	metrics   http.Handler
	log       logger.Logger

	router *gin.Engine
	hub    *hub

	mu       sync.Mutex
	httpSrv  *http.Server
	listener net.Listener
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithMetrics mounts h at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithThreshold is shown on the page and in /api/status.
func WithThreshold(pct float64) Option {
	return func(s *Server) { s.threshold = pct }
}

// New builds the server and its routes. Nothing listens until Start.
func New(addr string, status StatusFunc, opts ...Option) *Server {
	s := &Server{
		addr:   addr,
		status: status,
		log:    logger.Noop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.hub = newHub(s.log)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())
	s.router = router
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.GET("/", s.handleIndex)
	s.router.GET("/api/status", s.handleStatus)
	s.router.GET("/ws", s.handleWebSocket)
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics))
	}
}

// requestLogger logs each request at debug, and failures louder.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		latency := time.Since(start)
		switch {
		case status >= 500:
			s.log.Error("%s %s %d %s", c.Request.Method, c.Request.URL.Path, status, latency)
		case status >= 400:
			s.log.Warn("%s %s %d %s", c.Request.Method, c.Request.URL.Path, status, latency)
		default:
			s.log.Debug("%s %s %d %s", c.Request.Method, c.Request.URL.Path, status, latency)
		}
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Attach subscribes the live stream to every escalation event.
func (s *Server) Attach(sub responder.Subscriber) {
	responder.Attach(sub, Name, s.Handle, events.EscalationTypes...)
}

// Handle forwards ev to connected WebSocket clients.
func (s *Server) Handle(_ context.Context, ev events.Event) error {
	s.hub.broadcast(newStreamMessage(ev))
	return nil
}

// Start binds addr and serves in the background. Bind errors are returned
// here rather than from the serving goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrResponder,
			"Couldn't start the dashboard on "+s.addr,
			"Pick a free address in dashboard.addr or disable the dashboard.")
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.mu.Lock()
	s.httpSrv = srv
	s.listener = ln
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error("dashboard stopped: %v", err)
		}
	}()
	s.log.Info("dashboard listening on http://%s", ln.Addr())
	return nil
}

// Addr is the bound address once started, or the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stop closes WebSocket clients and shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	s.hub.close()

	s.mu.Lock()
	srv := s.httpSrv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.statusResponse())
}

func (s *Server) statusResponse() StatusResponse {
	st := s.status()
	resp := StatusResponse{
		RAMPercent:       st.Latest.RAMPercent,
		TopProcesses:     st.Latest.TopProcesses,
		Status:           "normal",
		EmailSent:        st.EmailSent,
		RestartTriggered: st.RestartTriggered,
		Threshold:        s.threshold,
	}
	if resp.TopProcesses == nil {
		resp.TopProcesses = []events.Process{}
	}
	if st.High {
		resp.Status = "high"
		since := st.Since
		resp.HighSince = &since
	}
	if !st.LatestAt.IsZero() {
		at := st.LatestAt
		resp.UpdatedAt = &at
	}
	return resp
}

func (s *Server) handleIndex(c *gin.Context) {
	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(c.Writer, pageData{Threshold: s.threshold}); err != nil {
		s.log.Error("rendering dashboard page: %v", err)
	}
}

func (s *Server) handleWebSocket(c *gin.Context) {
	s.hub.serve(c.Writer, c.Request)
}
