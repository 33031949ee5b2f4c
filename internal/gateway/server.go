package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tutorhall/livehelp/internal/config"
	"github.com/tutorhall/livehelp/internal/help"
	"github.com/tutorhall/livehelp/internal/logging"
	"github.com/tutorhall/livehelp/internal/version"
)

// maxFrameBytes bounds one inbound text frame.
const maxFrameBytes = 512 * 1024

// Server terminates duplex connections for the help core: it upgrades
// websocket clients into Endpoints and exposes the HTTP API the external
// matcher uses to create and remove sessions.
type Server struct {
	cfg       config.Config
	log       *logging.Logger
	registry  *help.Registry
	validator help.Validator
	upgrader  websocket.Upgrader

	epMu      sync.Mutex
	endpoints map[*Endpoint]struct{}

	startedAt  time.Time
	httpServer *http.Server
}

// New creates a gateway server over an injected registry and validator.
func New(cfg config.Config, registry *help.Registry, validator help.Validator, log *logging.Logger) *Server {
	return &Server{
		cfg:       cfg,
		log:       log.Sub("gateway"),
		registry:  registry,
		validator: validator,
		endpoints: make(map[*Endpoint]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkWebSocketOrigin(cfg.Server.AllowedOrigins),
		},
	}
}

// checkWebSocketOrigin returns a function that validates websocket Origin
// headers. Requests without an Origin header (non-browser clients) are
// always allowed; otherwise the Origin must match a configured entry.
func checkWebSocketOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
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
	case "lan":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	case "custom":
		host := cfg.CustomBindHost
		if host == "" {
			host = "0.0.0.0"
		}
		return fmt.Sprintf("%s:%d", host, cfg.Port)
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// Start begins listening for HTTP and websocket connections. It blocks
// until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg.Server)

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	handler := withMiddleware(mux, s.log, s.cfg.Server.AllowedOrigins)

	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     handler,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
		BaseContext: func(l net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	if s.cfg.Server.Bind != "loopback" {
		s.log.Warn().Msg("serving beyond loopback without TLS — put a terminating proxy in front")
	}

	s.startedAt = time.Now()
	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("bind", s.cfg.Server.Bind).
		Msg("livehelp server ready")

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down livehelp server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.closeAllEndpoints()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the server's listen address, or empty string if not started.
func (s *Server) Addr() string {
	if s.httpServer != nil {
		return s.httpServer.Addr
	}
	return ""
}

// handleWebSocket upgrades HTTP to websocket and runs the read loop. One
// Endpoint exists per connection; the external transport drives it frame
// by frame.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxFrameBytes)

	writeTimeout := time.Duration(s.cfg.Help.WriteTimeoutSeconds) * time.Second
	ep := NewEndpoint(newWSTransport(conn, writeTimeout), s.registry, s.validator, s.cfg.Help.OutboundQueue, s.log.Sub("endpoint"))
	s.trackEndpoint(ep)
	defer s.untrackEndpoint(ep)
	defer ep.Close()

	s.log.Debug().Str("conn", ep.ID()).Str("remote", r.RemoteAddr).Msg("websocket connection opened")

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Str("conn", ep.ID()).Msg("client closed connection")
			} else {
				s.log.Debug().Err(err).Str("conn", ep.ID()).Msg("read error")
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		ep.HandleMessage(string(data))
	}
}

func (s *Server) trackEndpoint(ep *Endpoint) {
	s.epMu.Lock()
	s.endpoints[ep] = struct{}{}
	s.epMu.Unlock()
}

func (s *Server) untrackEndpoint(ep *Endpoint) {
	s.epMu.Lock()
	delete(s.endpoints, ep)
	s.epMu.Unlock()
}

func (s *Server) closeAllEndpoints() {
	s.epMu.Lock()
	eps := make([]*Endpoint, 0, len(s.endpoints))
	for ep := range s.endpoints {
		eps = append(eps, ep)
	}
	s.epMu.Unlock()
	for _, ep := range eps {
		ep.Close()
	}
}

// EndpointCount returns the number of live connections.
func (s *Server) EndpointCount() int {
	s.epMu.Lock()
	defer s.epMu.Unlock()
	return len(s.endpoints)
}

// Version returns the build version the server reports.
func (s *Server) Version() string {
	return version.Version
}
