package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harun/jiya/internal/observability"
	"github.com/harun/jiya/internal/tracing"
	"github.com/harun/jiya/pkg/call"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// Server exposes the call orchestrator over HTTP and streams live
// transcripts to websocket observers.
type Server struct {
	host           string
	port           int
	sharedSecret   string
	orchestrator   *call.Orchestrator
	observers      *ObserverRegistry
	broadcaster    *TranscriptBroadcaster
	limiter        *RequestLimiter
	upgrader       websocket.Upgrader
	mux            *http.ServeMux
	server         *http.Server
	listener       net.Listener
	logger         zerolog.Logger
	isShuttingDown bool
	shutdownMu     sync.RWMutex
	inFlightReqs   sync.WaitGroup
}

// Config holds server configuration. Observers and Broadcaster are
// optional; when both are given the broadcaster must be built over the
// same registry.
type Config struct {
	Host              string
	Port              int
	SharedSecret      string
	Orchestrator      *call.Orchestrator
	Observers         *ObserverRegistry
	Broadcaster       *TranscriptBroadcaster
	RequestsPerMinute int
	MaxConcurrent     int
	Logger            zerolog.Logger
}

// NewServer creates a gateway server around a call orchestrator. Port 0
// binds an ephemeral port.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Port < 0 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.Orchestrator == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}
	if cfg.Observers == nil {
		cfg.Observers = NewObserverRegistry()
	}
	if cfg.Broadcaster == nil {
		cfg.Broadcaster = NewTranscriptBroadcaster(cfg.Observers, cfg.Logger)
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 60
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 10
	}

	s := &Server{
		host:         cfg.Host,
		port:         cfg.Port,
		sharedSecret: cfg.SharedSecret,
		orchestrator: cfg.Orchestrator,
		observers:    cfg.Observers,
		broadcaster:  cfg.Broadcaster,
		limiter:      NewRequestLimiter(cfg.RequestsPerMinute, cfg.MaxConcurrent),
		logger:       cfg.Logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for now
			},
		},
	}
	s.mux = s.buildMux()

	return s, nil
}

// Broadcaster returns the transcript sink to wire into the orchestrator.
func (s *Server) Broadcaster() *TranscriptBroadcaster {
	return s.broadcaster
}

// Handler returns the HTTP handler, exposed for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) buildMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/chat", s.handleChat)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.Handle("/metrics", observability.MetricsHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return mux
}

// Start binds the listener and begins serving. It returns once the
// listener is bound, so callers can rely on the port being open.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener
	s.server = &http.Server{Handler: s.mux}

	s.logger.Info().Str("addr", listener.Addr().String()).Msg("Starting Gateway Server")

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Gateway server error")
		}
	}()

	return nil
}

// Addr returns the bound listen address, empty before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop gracefully stops the server. New requests are refused, in-flight
// requests drain, and observers receive a shutdown event before their
// connections close.
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down Gateway Server")

	s.broadcaster.BroadcastShutdown()

	// Wait for in-flight requests with timeout
	done := make(chan struct{})
	go func() {
		s.inFlightReqs.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("All in-flight requests completed")
	case <-time.After(30 * time.Second):
		s.logger.Warn().Msg("Shutdown timeout reached, forcing close")
	}

	for _, observer := range s.observers.GetAll() {
		observer.Conn.Close()
	}

	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info().Msg("Gateway Server stopped")
	return nil
}

// handleRoot answers a plain status probe on GET /.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "Finance Loan Chatbot API is running",
	})
}

// handleChat serves one conversational exchange.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	s.shutdownMu.RLock()
	if s.isShuttingDown {
		s.shutdownMu.RUnlock()
		writeError(w, http.StatusServiceUnavailable, "server is shutting down")
		return
	}
	s.shutdownMu.RUnlock()

	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	callerKey := remoteHost(r)
	allowed, reason := s.limiter.Begin(callerKey)
	if !allowed {
		writeError(w, http.StatusTooManyRequests, reason)
		return
	}
	defer s.limiter.End(callerKey)

	s.inFlightReqs.Add(1)
	defer s.inFlightReqs.Done()

	var chatReq ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&chatReq); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	traceID := r.Header.Get("X-Trace-Id")
	if traceID == "" {
		traceID = tracing.NewTraceID()
	}
	ctx := tracing.WithTraceID(r.Context(), traceID)
	logger := tracing.LoggerFromContext(ctx, s.logger)
	logger.Info().
		Str("session_id", chatReq.SessionID).
		Bool("new_call", chatReq.NewCall).
		Msg("Gateway received chat request")

	resp, err := s.orchestrator.Handle(ctx, call.Request{
		SessionID:  chatReq.SessionID,
		CustomerID: chatReq.CustomerID,
		Message:    chatReq.Message,
		NewCall:    chatReq.NewCall,
	})
	if err != nil {
		var invalid *call.InvalidRequestError
		if errors.As(err, &invalid) {
			writeError(w, http.StatusBadRequest, invalid.Detail)
			return
		}
		logger.Error().Err(err).Msg("Chat request failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{SessionID: resp.SessionID, Reply: resp.Reply})
}

// handleWebSocket upgrades transcript observers.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.shutdownMu.RLock()
	if s.isShuttingDown {
		s.shutdownMu.RUnlock()
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	}
	s.shutdownMu.RUnlock()

	if !s.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	observerID, _ := gonanoid.New()
	observer := &Observer{
		ID:          observerID,
		Conn:        conn,
		ConnectedAt: time.Now(),
		IPAddress:   r.RemoteAddr,
	}
	s.observers.Add(observer)

	s.logger.Info().
		Str("observerId", observerID).
		Str("ip", r.RemoteAddr).
		Msg("Observer connected")

	go s.drainObserver(observer)
}

// drainObserver reads until the peer goes away. Observers only listen;
// inbound frames are discarded.
func (s *Server) drainObserver(observer *Observer) {
	defer func() {
		observer.Conn.Close()
		s.observers.Remove(observer.ID)
		s.logger.Info().Str("observerId", observer.ID).Msg("Observer disconnected")
	}()

	for {
		if _, _, err := observer.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Error().Err(err).Str("observerId", observer.ID).Msg("WebSocket error")
			}
			return
		}
	}
}

// authorized checks the shared secret when one is configured.
func (s *Server) authorized(r *http.Request) bool {
	if s.sharedSecret == "" {
		return true
	}
	return r.Header.Get("X-Jiya-Secret") == s.sharedSecret
}

// ObserverCount returns the number of connected observers.
func (s *Server) ObserverCount() int {
	return s.observers.Count()
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
