package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DaemonFunc represents the work a daemon does.
type DaemonFunc func(ctx context.Context, name string) error

// DaemonManager supervises multiple daemons.
type DaemonManager struct {
	logger       *slog.Logger
	daemons      map[string]DaemonFunc
	restartDelay time.Duration
	wg           sync.WaitGroup
}

func NewDaemonManager(logger *slog.Logger) *DaemonManager {
	return &DaemonManager{
		logger:       logger.With("component", "daemon_manager"),
		daemons:      make(map[string]DaemonFunc),
		restartDelay: 2 * time.Second,
	}
}

// Add registers a daemon by name.
func (m *DaemonManager) Add(name string, fn DaemonFunc) {
	m.daemons[name] = fn
}

// Start runs all daemons and restarts them if they crash.
func (m *DaemonManager) Start(ctx context.Context) {
	for name, fn := range m.daemons {
		m.wg.Add(1)
		go m.runDaemon(ctx, name, fn)
	}
}

// Wait blocks until all daemons have stopped.
func (m *DaemonManager) Wait() {
	m.wg.Wait()
}

func (m *DaemonManager) runDaemon(ctx context.Context, name string, fn DaemonFunc) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("daemon received shutdown signal", "daemon", name)
			return
		default:
			err := m.call(ctx, name, fn)
			if err != nil {
				m.logger.Error("daemon crashed, restarting", "daemon", name, "error", err, "delay", m.restartDelay)
				select {
				case <-ctx.Done():
					return
				case <-time.After(m.restartDelay):
				}
				continue
			}
			m.logger.Info("daemon exited cleanly", "daemon", name)
			return
		}
	}
}

// call turns a panic into an error so the daemon is restarted instead of taking the process down.
func (m *DaemonManager) call(ctx context.Context, name string, fn DaemonFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, name)
}
