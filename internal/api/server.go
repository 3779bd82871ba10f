// Package api provides the read-only HTTP API over stored snapshots.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wallet-snapshots/internal/logging"
	"github.com/wallet-snapshots/internal/models"
)

// ProtocolReader serves stored protocol snapshot rows.
type ProtocolReader interface {
	ListByAddress(ctx context.Context, address string, limit int) ([]models.ProtocolSnapshot, error)
	LatestByAddress(ctx context.Context, address string) ([]models.ProtocolSnapshot, error)
}

// AccountReader serves stored account snapshot rows.
type AccountReader interface {
	ListByAddress(ctx context.Context, address string, limit int) ([]models.AccountSnapshot, error)
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DefaultServerConfig returns server defaults suitable for local use.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:            "0.0.0.0",
		Port:            "8080",
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Server is the HTTP API server.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	protocols  ProtocolReader
	accounts   AccountReader
	logger     *logging.Logger
	config     *ServerConfig
}

// NewServer creates an API server over the given snapshot readers.
func NewServer(config *ServerConfig, protocols ProtocolReader, accounts AccountReader, logger *logging.Logger) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		protocols: protocols,
		accounts:  accounts,
		logger:    logger,
		config:    config,
	}

	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.recoveryMiddleware)
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", config.Host, config.Port),
		Handler:      s.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/snapshots/{address}", s.handleListSnapshots).Methods(http.MethodGet)
	v1.HandleFunc("/snapshots/{address}/latest", s.handleLatestSnapshots).Methods(http.MethodGet)
}

// Router exposes the configured router, mainly for tests.
func (s *Server) Router() http.Handler { return s.router }

// Start begins serving and blocks until the listener fails or closes.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("api server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
