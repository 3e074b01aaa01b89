package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"microstatus/internal/config"
	"microstatus/internal/logging"
	"microstatus/internal/notifications"
	"microstatus/internal/store"
	"microstatus/internal/workflow"
)

var (
	// ErrAlreadyRunning is returned when another process holds the daemon lock.
	ErrAlreadyRunning = errors.New("another microstatus instance is already running")
	errLoopActive     = errors.New("scan loop already active in this process")
)

// Daemon coordinates the scan loop and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	workflow *workflow.Manager
	notifier notifications.Service

	lockPath string
	lock     *flock.Flock

	mu      sync.Mutex
	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Workflow     workflow.StatusSummary
	DatabasePath string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger, wf *workflow.Manager, notifier notifications.Service) (*Daemon, error) {
	if cfg == nil || st == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, and workflow manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    st,
		workflow: wf,
		notifier: notifier,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

func (d *Daemon) acquire() error {
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}
	return nil
}

func (d *Daemon) release() {
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
}

// Start acquires the daemon lock and launches the scan loop.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errLoopActive
	}
	if err := d.acquire(); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		d.release()
		return fmt.Errorf("start workflow: %w", err)
	}
	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("microstatus daemon started",
		logging.String("lock", d.lockPath),
		logging.Duration("interval", d.cfg.Pipeline.Interval()),
	)
	return nil
}

// RunOnce performs a single tick under the daemon lock. It fails when a
// daemon, in this or another process, already owns the lock.
func (d *Daemon) RunOnce(ctx context.Context) (workflow.TickStats, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return workflow.TickStats{}, errLoopActive
	}
	if err := d.acquire(); err != nil {
		return workflow.TickStats{}, err
	}
	defer d.release()
	return d.workflow.Tick(ctx)
}

// Stop stops the scan loop and releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Stop()
	d.release()
	d.running.Store(false)
	d.logger.Info("microstatus daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		Workflow:     d.workflow.Status(ctx),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
	}
}

// Warnings lists the persisted storage warning records.
func (d *Daemon) Warnings(ctx context.Context) ([]store.Warning, error) {
	return d.store.ListWarnings(ctx)
}

// TestNotification sends a test message through every configured channel.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if !channelConfigured(d.cfg.Notifications) {
		return false, "no notification channel configured", nil
	}
	if err := d.notifier.Publish(ctx, notifications.EventTest, notifications.Payload{}); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// channelConfigured mirrors the transports notifications.NewService builds.
func channelConfigured(n config.Notifications) bool {
	if strings.TrimSpace(n.NtfyTopic) != "" {
		return true
	}
	return strings.TrimSpace(n.SlackToken) != "" && strings.TrimSpace(n.SlackChannel) != ""
}
