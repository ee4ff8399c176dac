package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// RequestObserver is told about every dispatched request.
type RequestObserver interface {
	ObserveRPCRequest(method string, err error)
}

// ServerConfig holds configuration for the RPC server.
type ServerConfig struct {
	// Address to listen on (e.g., ":8899" or "127.0.0.1:8899")
	Address string

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes.
	WriteTimeout time.Duration

	// MaxRequestSize is the maximum size of a request body in bytes.
	MaxRequestSize int64

	// AllowedOrigins for CORS (empty means allow all).
	AllowedOrigins []string

	// EnableRateLimit enables rate limiting.
	EnableRateLimit bool

	// RateLimitRPS is the requests per second limit per IP.
	RateLimitRPS float64

	// RateLimitBurst is the burst capacity for rate limiting.
	RateLimitBurst int

	// TrustForwardedFor keys rate limits on X-Forwarded-For. Set it only
	// behind a proxy that appends the client address to that header.
	TrustForwardedFor bool

	// Logger for request logging; nil uses the standard logger.
	Logger *logrus.Entry

	// Observer receives per-method outcomes, typically metrics.
	Observer RequestObserver
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Address:         ":8899",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		MaxRequestSize:  1 * 1024 * 1024, // 1MB
		AllowedOrigins:  []string{"*"},
		EnableRateLimit: true,
		RateLimitRPS:    50,
		RateLimitBurst:  100,
	}
}

// Server is a JSON-RPC 2.0 server over a bank.
type Server struct {
	config   *ServerConfig
	handlers *Handlers
	log      *logrus.Entry
	server   *http.Server
	listener net.Listener
	mu       sync.RWMutex
	running  bool
}

// NewServer creates a new RPC server.
func NewServer(config *ServerConfig, bank Bank) *Server {
	if config == nil {
		config = DefaultServerConfig()
	}
	log := config.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	return &Server{
		config:   config,
		handlers: NewHandlers(bank),
		log:      log.WithField("component", "rpc"),
	}
}

// Handlers returns the method table.
func (s *Server) Handlers() *Handlers {
	return s.handlers
}

// Handler returns the server's HTTP handler with its middleware applied.
func (s *Server) Handler() http.Handler {
	middlewares := []Middleware{
		RecoveryMiddleware(s.log),
		LoggingMiddleware(s.log),
		CORSMiddleware(s.config.AllowedOrigins),
	}
	if s.config.EnableRateLimit {
		limiter := NewRateLimiter(s.config.RateLimitRPS, s.config.RateLimitBurst)
		middlewares = append(middlewares, RateLimitMiddleware(limiter, s.config.TrustForwardedFor))
	}
	return Chain(http.HandlerFunc(s.handleRequest), middlewares...)
}

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}

	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.config.Address, err)
	}

	s.listener = listener
	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	s.running = true
	server := s.server
	s.mu.Unlock()

	s.log.WithField("addr", listener.Addr().String()).Info("rpc server listening")

	errCh := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	select {
	case err := <-errCh:
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return err
	case <-ctx.Done():
		return s.Stop()
	}
}

// Stop gracefully stops the RPC server.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.running = false

	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(ctx)
	}

	return nil
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the address the server is listening on.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.Address
}

// handleRequest processes incoming JSON-RPC requests.
func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, nil, NewRPCError(InvalidRequest, "only POST method is allowed"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxRequestSize)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, nil, NewRPCError(ParseError, "failed to read request body"))
		return
	}

	// Check for batch request
	if len(body) > 0 && body[0] == '[' {
		s.handleBatchRequest(w, body)
		return
	}

	s.writeResponse(w, s.processRequest(body))
}

// handleBatchRequest processes a batch of JSON-RPC requests.
func (s *Server) handleBatchRequest(w http.ResponseWriter, body []byte) {
	var requests []json.RawMessage
	if err := json.Unmarshal(body, &requests); err != nil {
		s.writeError(w, nil, NewRPCError(ParseError, "invalid JSON"))
		return
	}

	if len(requests) == 0 {
		s.writeError(w, nil, NewRPCError(InvalidRequest, "empty batch"))
		return
	}

	responses := make([]RPCResponse, 0, len(requests))
	for _, reqBody := range requests {
		response := s.processRequest(reqBody)
		// Only include responses for requests with IDs (not notifications)
		if response.ID != nil {
			responses = append(responses, response)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(responses); err != nil {
		s.log.WithError(err).Warn("failed to write batch response")
	}
}

// processRequest processes a single JSON-RPC request.
func (s *Server) processRequest(body []byte) RPCResponse {
	var request RPCRequest
	if err := json.Unmarshal(body, &request); err != nil {
		return RPCResponse{
			JSONRPC: JSONRPCVersion,
			Error:   NewRPCError(ParseError, "invalid JSON"),
		}
	}

	if request.JSONRPC != JSONRPCVersion {
		return RPCResponse{
			JSONRPC: JSONRPCVersion,
			Error:   NewRPCError(InvalidRequest, "invalid jsonrpc version"),
			ID:      request.ID,
		}
	}

	handler := s.handlers.GetHandler(request.Method)
	if handler == nil {
		return RPCResponse{
			JSONRPC: JSONRPCVersion,
			Error:   NewRPCError(MethodNotFound, fmt.Sprintf("method not found: %s", request.Method)),
			ID:      request.ID,
		}
	}

	result, rpcErr := handler(request.Params)
	if s.config.Observer != nil {
		var err error
		if rpcErr != nil {
			err = rpcErr
		}
		s.config.Observer.ObserveRPCRequest(request.Method, err)
	}
	if rpcErr != nil {
		s.log.WithFields(logrus.Fields{
			"method": request.Method,
			"code":   rpcErr.Code,
		}).Debug(rpcErr.Message)
		return RPCResponse{
			JSONRPC: JSONRPCVersion,
			Error:   rpcErr,
			ID:      request.ID,
		}
	}

	return RPCResponse{
		JSONRPC: JSONRPCVersion,
		Result:  result,
		ID:      request.ID,
	}
}

// writeResponse writes a JSON-RPC response.
func (s *Server) writeResponse(w http.ResponseWriter, response RPCResponse) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.log.WithError(err).Warn("failed to write response")
	}
}

// writeError writes a JSON-RPC error response.
func (s *Server) writeError(w http.ResponseWriter, id interface{}, rpcErr *RPCError) {
	s.writeResponse(w, RPCResponse{
		JSONRPC: JSONRPCVersion,
		Error:   rpcErr,
		ID:      id,
	})
}
