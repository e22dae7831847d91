// Package shutdown coordinates graceful teardown of the daemon. Components
// register cleanup functions as they start; on SIGTERM or SIGINT they run
// in reverse order under a shared deadline.
package shutdown

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/custodian-sh/custodian/internal/logging"
)

// Manager handles graceful shutdown.
type Manager struct {
	mu      sync.Mutex
	funcs   []namedFunc
	timeout time.Duration
	logger  *logging.Logger
}

type namedFunc struct {
	name string
	fn   func(context.Context) error
}

// New creates a shutdown manager.
func New(timeout time.Duration, logger *logging.Logger) *Manager {
	return &Manager{
		timeout: timeout,
		logger:  logger,
	}
}

// Register adds a named cleanup function. Functions run LIFO, so register
// in startup order.
func (m *Manager) Register(name string, fn func(context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.funcs = append(m.funcs, namedFunc{name: name, fn: fn})
}

// Wait blocks until SIGTERM or SIGINT arrives.
func (m *Manager) Wait() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigChan
	m.logger.Info("Received signal, shutting down", map[string]interface{}{"signal": sig.String()})
}

// Shutdown runs all registered cleanup functions in reverse order.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	for i := len(m.funcs) - 1; i >= 0; i-- {
		nf := m.funcs[i]
		if err := nf.fn(ctx); err != nil {
			m.logger.Error("Shutdown step failed", map[string]interface{}{"step": nf.name, "error": err.Error()})
		} else {
			m.logger.Debug("Shutdown step complete", map[string]interface{}{"step": nf.name})
		}
	}
	m.logger.Info("Graceful shutdown complete")
}

// StopHTTPServer adapts an http.Server for Register.
func StopHTTPServer(server interface{ Shutdown(context.Context) error }, name string) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to stop %s server: %w", name, err)
		}
		return nil
	}
}

// CloseResource adapts an io.Closer for Register.
func CloseResource(closer interface{ Close() error }, name string) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("failed to close %s: %w", name, err)
		}
		return nil
	}
}
