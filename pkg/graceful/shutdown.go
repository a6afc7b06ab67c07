package graceful

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rail-service/deposit_monitor/pkg/logger"
)

type Shutdowner interface {
	Shutdown(timeout time.Duration) error
}

// ShutdownFunc adapts a plain function to Shutdowner
type ShutdownFunc func(timeout time.Duration) error

func (f ShutdownFunc) Shutdown(timeout time.Duration) error { return f(timeout) }

// ShutdownManager stops registered components in registration order, then
// the HTTP server, then closes the database.
type ShutdownManager struct {
	server      *http.Server
	db          io.Closer
	shutdowners []Shutdowner
	timeout     time.Duration
	logger      *logger.Logger
}

func NewShutdownManager(server *http.Server, db io.Closer, timeout time.Duration, logger *logger.Logger) *ShutdownManager {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ShutdownManager{
		server:      server,
		db:          db,
		shutdowners: make([]Shutdowner, 0),
		timeout:     timeout,
		logger:      logger,
	}
}

func (sm *ShutdownManager) Register(s Shutdowner) {
	sm.shutdowners = append(sm.shutdowners, s)
}

// WaitForShutdown blocks until SIGINT or SIGTERM and then calls Shutdown
func (sm *ShutdownManager) WaitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	sm.Shutdown()
}

func (sm *ShutdownManager) Shutdown() {
	sm.logger.Info("Shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), sm.timeout)
	defer cancel()

	for _, s := range sm.shutdowners {
		if err := s.Shutdown(sm.timeout); err != nil {
			sm.logger.Warn("Component shutdown error", "error", err)
		}
	}

	if sm.server != nil {
		if err := sm.server.Shutdown(ctx); err != nil {
			sm.logger.Error("Server forced shutdown", "error", err)
		}
	}

	if sm.db != nil {
		if err := sm.db.Close(); err != nil {
			sm.logger.Warn("Database close error", "error", err)
		}
	}

	sm.logger.Info("Shutdown complete")
}
