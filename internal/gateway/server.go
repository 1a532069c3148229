// Package gateway is the HTTP and WebSocket front door. It carries the same
// JSON-RPC messages as the stdio transport and adds read-only REST views.
package gateway

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/soyeahso/witness/internal/capture"
	"github.com/soyeahso/witness/internal/config"
	"github.com/soyeahso/witness/internal/domain"
	"github.com/soyeahso/witness/internal/hooks"
	"github.com/soyeahso/witness/internal/logging"
	"github.com/soyeahso/witness/internal/version"
)

var ErrClientClosed = errors.New("client connection closed")

const (
	// maxMessageBytes bounds one JSON-RPC message on /rpc and /ws.
	maxMessageBytes = 4 * 1024 * 1024 // 4MB

	// EventNotification is the JSON-RPC method pushed to WebSocket clients
	// for interaction events.
	EventNotification = "notifications/witness/event"
)

// Dispatcher handles one JSON-RPC message. *mcp.Server satisfies it.
type Dispatcher interface {
	Handle(ctx context.Context, msg []byte) []byte
}

// Queries backs the REST views. *capture.Service satisfies it.
type Queries interface {
	Inspect(ctx context.Context, witnessID, sessionID string) (domain.Interaction, error)
	List(ctx context.Context, in capture.ListInput) (capture.ListResult, error)
}

// Server is the witness HTTP + WebSocket server.
type Server struct {
	cfg     config.ServerConfig
	rpc     Dispatcher
	queries Queries
	log     *logging.Logger
	clients *ClientRegistry
	version string

	// Hook manager (optional; nil if not configured)
	hooks *hooks.Manager

	// Prometheus handler (optional; /metrics is not mounted without it)
	metrics http.Handler

	mu          sync.Mutex
	addr        string
	ready       chan struct{}
	startedAt   time.Time
	httpServer  *http.Server
	upgrader    websocket.Upgrader
	authLimiter *authRateLimiter
}

// ServerOption configures the gateway server.
type ServerOption func(*Server)

// WithHooks sets the hook manager for lifecycle events. Interaction events
// are also pushed to WebSocket clients.
func WithHooks(hm *hooks.Manager) ServerOption {
	return func(s *Server) {
		s.hooks = hm
	}
}

// WithMetrics mounts h at /metrics.
func WithMetrics(h http.Handler) ServerOption {
	return func(s *Server) {
		s.metrics = h
	}
}

// New creates a new gateway server.
func New(cfg config.ServerConfig, rpc Dispatcher, queries Queries, log *logging.Logger, opts ...ServerOption) *Server {
	s := &Server{
		cfg:         cfg,
		rpc:         rpc,
		queries:     queries,
		log:         log.Sub("gateway"),
		clients:     NewClientRegistry(log.Sub("clients")),
		version:     version.Version,
		ready:       make(chan struct{}),
		authLimiter: newAuthRateLimiter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkWebSocketOrigin(cfg.AllowedOrigins),
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.hooks != nil {
		s.hooks.On(hooks.EventInteractionRecorded, "gateway", s.pushEvent)
		s.hooks.On(hooks.EventInteractionReplayed, "gateway", s.pushEvent)
	}
	return s
}

// checkWebSocketOrigin returns a function that validates WebSocket Origin headers.
// If no origins are configured, only same-origin (no Origin header) or non-browser
// clients are allowed. If origins are configured, the Origin must match one of them.
func checkWebSocketOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // Same-origin or non-browser clients
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

// resolveBindAddr computes the listen address from config.
func resolveBindAddr(cfg config.ServerConfig) string {
	switch cfg.Bind {
	case "loopback":
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	case "lan":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	case "custom":
		host := cfg.CustomBindHost
		if host == "" {
			host = "0.0.0.0"
		}
		return net.JoinHostPort(host, fmt.Sprint(cfg.Port))
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// Start begins listening for HTTP and WebSocket connections.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(l net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	// Enable TLS if configured
	if s.cfg.TLS.Enabled {
		cert, err := tls.LoadX509KeyPair(s.cfg.TLS.CertPath, s.cfg.TLS.KeyPath)
		if err != nil {
			ln.Close()
			return fmt.Errorf("loading TLS certificate: %w", err)
		}
		tlsCfg := &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
		ln = tls.NewListener(ln, tlsCfg)
		s.log.Info().Msg("TLS enabled")
	} else if s.cfg.Bind != "loopback" && s.cfg.Token != "" {
		s.log.Warn().Msg("TLS is not enabled, the server token will be transmitted in cleartext")
	}
	if s.cfg.Bind != "loopback" && s.cfg.Token == "" {
		s.log.Warn().Msg("listening beyond loopback without a server token")
	}

	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.startedAt = time.Now()
	s.mu.Unlock()
	close(s.ready)

	s.log.Info().
		Str("addr", s.Addr()).
		Str("bind", s.cfg.Bind).
		Bool("auth", s.cfg.Token != "").
		Msg("gateway server ready")

	if s.hooks != nil {
		s.hooks.Emit(ctx, hooks.EventServerStart, map[string]any{
			"addr": s.Addr(),
		})
	}

	// Shutdown when context is cancelled
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		s.log.Info().Msg("shutting down gateway server")
		if s.hooks != nil {
			s.hooks.Emit(context.Background(), hooks.EventServerStop, nil)
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.clients.CloseAll()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.log.Warn().Err(err).Msg("graceful shutdown incomplete")
		}
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-done
	return nil
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Addr returns the bound listen address, or empty string if not started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// handleWebSocket upgrades HTTP to WebSocket and runs the connection loop.
// Every message is one JSON-RPC request answered on the same socket.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	// Enforce the advertised max payload size
	conn.SetReadLimit(maxMessageBytes)

	client := NewClient(conn, r.RemoteAddr, s.log.Sub("ws"))
	s.clients.Add(client)
	defer func() {
		s.clients.Remove(client.ConnID)
		client.Close()
	}()

	s.readLoop(r.Context(), client)
}

// readLoop answers messages from one client in order.
func (s *Server) readLoop(ctx context.Context, client *Client) {
	for {
		msg, err := client.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Str("connId", client.ConnID).Msg("client closed connection")
			} else {
				s.log.Warn().Err(err).Str("connId", client.ConnID).Msg("read error")
			}
			return
		}

		resp := s.rpc.Handle(ctx, msg)
		if resp == nil {
			continue
		}
		if err := client.Send(resp); err != nil {
			s.log.Warn().Err(err).Str("connId", client.ConnID).Msg("failed to send response")
			return
		}
	}
}

type eventParams struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data,omitempty"`
}

// pushEvent forwards an interaction event to every WebSocket client as a
// JSON-RPC notification.
func (s *Server) pushEvent(_ context.Context, p hooks.Payload) error {
	if s.clients.Count() == 0 {
		return nil
	}
	msg, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"method":  EventNotification,
		"params":  eventParams{Event: p.Event, Data: p.Data},
	})
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	s.clients.Broadcast(msg)
	return nil
}
