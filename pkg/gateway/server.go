package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"quantra-hq/hermes/pkg/audit"
	"quantra-hq/hermes/pkg/auth"
	"quantra-hq/hermes/pkg/config"
	"quantra-hq/hermes/pkg/protocol"
	"quantra-hq/hermes/pkg/telemetry/logging"
	"quantra-hq/hermes/pkg/telemetry/metrics"
)

// wsChannel adapts a gorilla websocket connection to the Channel
// interface. The per-connection write mutex lives in Connection; this
// type only carries the transport.
type wsChannel struct {
	conn *websocket.Conn
}

func (w *wsChannel) Write(deadline time.Time, data []byte) error {
	w.conn.SetWriteDeadline(deadline)
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

func (w *wsChannel) Close() error {
	return w.conn.Close()
}

// Server is the HTTP front of the gateway: the /ws upgrade endpoint,
// health and stats queries, and the metrics exposition.
type Server struct {
	httpServer    *http.Server
	upgrader      websocket.Upgrader
	registry      *Registry
	coordinator   *Coordinator
	authenticator auth.Authenticator
	gatewayCfg    config.GatewayConfig
	serverCfg     config.ServerConfig
	logger        *logging.Logger
	metrics       *metrics.Collector
	recorder      *audit.Recorder
}

// NewServer wires the gateway's HTTP surface.
func NewServer(
	serverCfg config.ServerConfig,
	gatewayCfg config.GatewayConfig,
	registry *Registry,
	coordinator *Coordinator,
	authenticator auth.Authenticator,
	logger *logging.Logger,
	collector *metrics.Collector,
	recorder *audit.Recorder,
) *Server {
	s := &Server{
		registry:      registry,
		coordinator:   coordinator,
		authenticator: authenticator,
		gatewayCfg:    gatewayCfg,
		serverCfg:     serverCfg,
		logger:        logger,
		metrics:       collector,
		recorder:      recorder,
	}

	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/stats", s.handleStats)
	if collector != nil {
		mux.Handle("/metrics", collector.Handler())
	}

	s.httpServer = &http.Server{
		Addr:         serverCfg.ListenAddress,
		Handler:      mux,
		ReadTimeout:  serverCfg.ReadTimeout,
		WriteTimeout: serverCfg.WriteTimeout,
	}
	return s
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe runs the HTTP server until Shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.Info("gateway listening", "address", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting upgrades and drains within the configured
// shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	timeout := s.serverCfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		// Non-browser clients carry no Origin header.
		return true
	}
	if len(s.serverCfg.AllowedOrigins) == 0 {
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Host, r.Host)
	}
	for _, allowed := range s.serverCfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// handleWebSocket upgrades the request and runs the connection's read
// loop. Each connection has exactly one reader goroutine, so inbound
// frames are handled strictly in arrival order.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	conn, err := s.registry.Register(&wsChannel{conn: ws}, "", "")
	if err != nil {
		ws.Close()
		return
	}

	s.readLoop(r.Context(), conn, ws)
}

// inboundHandler handles one decoded frame type.
type inboundHandler func(ctx context.Context, conn *Connection, frame protocol.Inbound)

// dispatcher returns the closed frame-type to handler map.
func (s *Server) dispatcher() map[protocol.FrameType]inboundHandler {
	return map[protocol.FrameType]inboundHandler{
		protocol.TypeAuthenticate:  s.handleAuthenticate,
		protocol.TypeAIChat:        s.handleChat,
		protocol.TypeCancelRequest: s.handleCancel,
		protocol.TypePing:          s.handlePing,
	}
}

func (s *Server) readLoop(ctx context.Context, conn *Connection, ws *websocket.Conn) {
	handlers := s.dispatcher()

	var limiter *rate.Limiter
	if s.gatewayCfg.RateLimitPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.gatewayCfg.RateLimitPerSecond), s.gatewayCfg.RateLimitBurst)
	}

	ctx = logging.WithConnectionID(ctx, conn.ID)

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			s.registry.Unregister(conn.ID, "client disconnected")
			return
		}

		conn.Touch(len(data))

		if limiter != nil && !limiter.Allow() {
			s.registry.Send(conn.ID, protocol.Error("rate limit exceeded", "rate_limited"))
			continue
		}

		frame, err := protocol.Decode(data)
		if err != nil {
			// Malformed frames never close the connection.
			s.metrics.FrameReceived("invalid")
			s.registry.Send(conn.ID, protocol.Error(err, "malformed frame"))
			continue
		}

		s.metrics.FrameReceived(string(frame.FrameType()))
		handlers[frame.FrameType()](ctx, conn, frame)
	}
}

func (s *Server) handleAuthenticate(ctx context.Context, conn *Connection, frame protocol.Inbound) {
	authFrame := frame.(*protocol.AuthenticateFrame)

	conn.Transition(StateAuthenticating)

	userID, err := s.authenticator.Authenticate(ctx, authFrame.Token)
	if err != nil {
		s.logger.WarnContext(ctx, "authentication failed", "error", err)
		s.recorder.Record(audit.EventAuthFailed, audit.WithConnection(conn.ID))
		conn.Transition(StateConnected)
		s.registry.Send(conn.ID, protocol.AuthError(err))
		return
	}

	if err := s.registry.Authenticate(conn.ID, userID, authFrame.SessionID); err != nil {
		s.registry.Send(conn.ID, protocol.AuthError(err))
		return
	}

	s.recorder.Record(audit.EventAuthSucceeded,
		audit.WithConnection(conn.ID),
		audit.WithUser(userID),
		audit.WithSession(authFrame.SessionID),
	)
	s.logger.InfoContext(ctx, "connection authenticated", "user", userID)
	s.registry.Send(conn.ID, protocol.AuthSuccess(userID))
}

func (s *Server) handleChat(ctx context.Context, conn *Connection, frame protocol.Inbound) {
	chatFrame := frame.(*protocol.ChatFrame)

	if conn.State() != StateAuthenticated {
		s.registry.Send(conn.ID, protocol.Error("authentication required", "unauthenticated"))
		return
	}

	s.coordinator.Submit(conn.ID, conn.UserID(), chatFrame)
}

func (s *Server) handleCancel(ctx context.Context, conn *Connection, frame protocol.Inbound) {
	cancelFrame := frame.(*protocol.CancelFrame)
	s.coordinator.Cancel(conn.ID, cancelFrame.RequestID)
}

func (s *Server) handlePing(ctx context.Context, conn *Connection, frame protocol.Inbound) {
	conn.PingReceived()
	s.registry.Send(conn.ID, protocol.Pong())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.registry.Stats())
}
