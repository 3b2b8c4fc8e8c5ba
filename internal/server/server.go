// Package server provides HTTP server lifecycle management with graceful
// shutdown and supervised background workers.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// ShutdownFunc shuts down a component gracefully.
type ShutdownFunc func(ctx context.Context) error

// WorkerFunc runs until ctx is cancelled.
type WorkerFunc func(ctx context.Context) error

// Server wraps http.Server with background workers and graceful shutdown.
type Server struct {
	httpServer      *http.Server
	shutdownTimeout time.Duration
	logger          *slog.Logger

	mu            sync.Mutex
	shutdownFuncs []ShutdownFunc
	workers       []namedWorker
}

type namedWorker struct {
	name string
	fn   WorkerFunc
}

// New creates a new Server instance.
func New(handler http.Handler, port int, readTimeout, writeTimeout, shutdownTimeout time.Duration, logger *slog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadTimeout:       readTimeout,
			ReadHeaderTimeout: readTimeout,
			WriteTimeout:      writeTimeout,
		},
		shutdownTimeout: shutdownTimeout,
		logger:          logger,
	}
}

// OnShutdown registers fn to run after the HTTP server and workers stop.
// Functions run in reverse registration order.
func (s *Server) OnShutdown(name string, fn ShutdownFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdownFuncs = append(s.shutdownFuncs, func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			s.logger.Error("component_shutdown_failed", "name", name, "error", err)
			return err
		}
		s.logger.Info("component_stopped", "name", name)
		return nil
	})
}

// Go registers a background worker started by Run. Workers are cancelled
// once the HTTP server has drained.
func (s *Server) Go(name string, fn WorkerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workers = append(s.workers, namedWorker{name: name, fn: fn})
}

// Run serves until SIGINT/SIGTERM, then shuts down gracefully.
func (s *Server) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.RunContext(ctx)
}

// RunContext serves until ctx is done or the listener fails.
func (s *Server) RunContext(ctx context.Context) error {
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	var wg sync.WaitGroup
	s.mu.Lock()
	workers := append([]namedWorker(nil), s.workers...)
	s.mu.Unlock()
	for _, w := range workers {
		wg.Add(1)
		go func(w namedWorker) {
			defer wg.Done()
			s.logger.Info("worker_started", "name", w.name)
			if err := w.fn(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("worker_stopped", "name", w.name, "error", err)
				return
			}
			s.logger.Info("worker_stopped", "name", w.name)
		}(w)
	}

	serverErr := make(chan error, 1)
	go func() {
		s.logger.Info("server_starting", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var runErr error
	select {
	case err := <-serverErr:
		runErr = fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown_signal_received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	s.httpServer.SetKeepAlivesEnabled(false)
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("http_shutdown_failed", "error", err)
	}

	cancelWorkers()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		s.logger.Warn("workers_did_not_stop", "timeout", s.shutdownTimeout)
	}

	if err := s.runShutdownFuncs(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	if runErr == nil {
		s.logger.Info("server_stopped")
	}
	return runErr
}

func (s *Server) runShutdownFuncs(ctx context.Context) error {
	s.mu.Lock()
	funcs := append([]ShutdownFunc(nil), s.shutdownFuncs...)
	s.mu.Unlock()

	var errs []error
	for i := len(funcs) - 1; i >= 0; i-- {
		if err := funcs[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Addr returns the server address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}
