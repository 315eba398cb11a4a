// Package api exposes the pipeline state over HTTP, WebSocket and gRPC health.
package api

import (
	"NetSentinel/internal/alerter"
	"NetSentinel/internal/config"
	"NetSentinel/internal/engine/stats"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
)

// MetricsReader provides traffic statistics snapshots.
type MetricsReader interface {
	Snapshot() stats.Snapshot
}

// AlertReader provides alert snapshots and push registration.
type AlertReader interface {
	Snapshot() alerter.Snapshot
	AddListener(l alerter.Listener) alerter.ListenerID
	RemoveListener(id alerter.ListenerID)
}

// Liveness reports whether a pipeline stage is running.
type Liveness interface {
	IsAlive() bool
}

// CaptureStatus is the capture stage as seen by the health endpoint.
type CaptureStatus interface {
	Liveness
	Dropped() uint64
}

// Deps are the pipeline components the API reads from.
type Deps struct {
	Metrics   MetricsReader
	Alerts    AlertReader
	Capture   CaptureStatus
	Processor Liveness
}

// Server serves the REST and WebSocket API and, optionally, gRPC health.
type Server struct {
	cfg    config.APIConfig
	deps   Deps
	logger *zap.Logger
	router *mux.Router

	httpServer *http.Server
	grpcServer *grpc.Server
	health     *health.Server

	// ctx ends every WebSocket session on shutdown.
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	clients sync.Map
}

// NewServer creates the API server and its routes.
func NewServer(cfg config.APIConfig, deps Deps, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PushInterval <= 0 {
		cfg.PushInterval = time.Second
	}
	if cfg.ClientBuffer <= 0 {
		cfg.ClientBuffer = 256
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
		router: mux.NewRouter(),
		health: health.NewServer(),
		ctx:    ctx,
		cancel: cancel,
	}

	// Define API routes
	s.router.Use(corsMiddleware(cfg.AllowedOrigins))
	s.router.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet, http.MethodOptions)
	s.router.HandleFunc("/metrics", s.metricsHandler).Methods(http.MethodGet, http.MethodOptions)
	s.router.HandleFunc("/alerts", s.alertsHandler).Methods(http.MethodGet, http.MethodOptions)
	s.router.HandleFunc("/ws", s.wsHandler).Methods(http.MethodGet)

	return s
}

// Handler returns the HTTP handler with all routes.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start binds the listeners and serves in the background. Bind errors are
// returned immediately.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("could not listen on %s: %w", s.cfg.ListenAddr, err)
	}

	var grpcLn net.Listener
	if s.cfg.GRPCListenAddr != "" {
		grpcLn, err = net.Listen("tcp", s.cfg.GRPCListenAddr)
		if err != nil {
			ln.Close()
			return fmt.Errorf("could not listen on %s: %w", s.cfg.GRPCListenAddr, err)
		}
	}

	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Info("API server starting", zap.String("addr", ln.Addr().String()))
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server failed", zap.Error(err))
		}
	}()

	if grpcLn != nil {
		s.grpcServer = newGRPCServer(s.health)
		s.wg.Add(2)
		go func() {
			defer s.wg.Done()
			s.logger.Info("gRPC health server starting", zap.String("addr", grpcLn.Addr().String()))
			if err := s.grpcServer.Serve(grpcLn); err != nil {
				s.logger.Error("gRPC health server failed", zap.Error(err))
			}
		}()
		go func() {
			defer s.wg.Done()
			s.watchHealth()
		}()
	}
	return nil
}

// Shutdown closes all WebSocket sessions and stops the listeners.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	if s.grpcServer != nil {
		s.health.Shutdown()
		stopped := make(chan struct{})
		go func() {
			s.grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-ctx.Done():
			// Open Watch streams keep GracefulStop waiting.
			s.grpcServer.Stop()
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	s.logger.Info("API server exited")
	return err
}
