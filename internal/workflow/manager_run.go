package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"microstatus/internal/logging"
	"microstatus/internal/pipeline"
	"microstatus/internal/services"
	"microstatus/internal/store"
)

// TickStats summarizes one tick.
type TickStats struct {
	Discovered int
	Evaluated  int
	Failed     int
	Duration   time.Duration
}

// Start begins the scan loop in the background.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	go m.loop(runCtx)
	return nil
}

// Stop terminates the scan loop and waits for the current tick to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Manager) loop(ctx context.Context) {
	defer m.wg.Done()
	for {
		if _, err := m.Tick(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			logging.ErrorWithContext(m.logger, "tick failed", "tick_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the state database and fast-tier mount"),
			)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(m.interval):
		}
	}
}

// Tick runs one full scan. Per-dataset failures are logged and counted; the
// returned error is reserved for failures that prevented the scan itself.
func (m *Manager) Tick(ctx context.Context) (stats TickStats, err error) {
	start := time.Now()
	tickID := uuid.NewString()
	ctx = services.WithTickID(ctx, tickID)
	logger := logging.WithContext(ctx, m.logger)

	defer func() {
		stats.Duration = time.Since(start)
		m.recordTick(tickID, start, stats, err)
	}()

	if m.storage != nil {
		if err := m.storage.Check(ctx); err != nil {
			logging.WarnWithContext(logger, "storage check failed", "storage_check_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "storage warnings may be stale"),
			)
		}
	}

	discovered, err := m.discover(ctx, logger)
	stats.Discovered = discovered
	if err != nil {
		if !services.IsTransient(err) {
			return stats, err
		}
		logging.WarnWithContext(logger, "discovery skipped", "discovery_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the fast-tier mount"),
		)
	}

	datasets, err := m.store.List(ctx, store.Filter{Open: true})
	if err != nil {
		return stats, fmt.Errorf("list open datasets: %w", err)
	}

	scan := m.machine.Begin()
	for _, ds := range datasets {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Evaluated++
		if err := m.evaluate(ctx, scan, ds); err != nil {
			stats.Failed++
			m.logEvaluateError(logger, ds, err)
		}
	}

	logger.Debug("tick complete",
		logging.Int("datasets", stats.Evaluated),
		logging.Int("failed", stats.Failed),
		logging.Int("discovered", stats.Discovered),
		logging.Duration("elapsed", time.Since(start)),
	)
	return stats, nil
}

// evaluate isolates one dataset: its evaluation gets its own deadline and a
// panic is converted into an error.
func (m *Manager) evaluate(ctx context.Context, scan *pipeline.Scan, ds *store.Dataset) (err error) {
	budget := m.cfg.Pipeline.CallBudget()
	if budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 3*budget)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("evaluate %s: panic: %v", ds.Label(), r)
		}
	}()
	return scan.Evaluate(ctx, ds)
}

func (m *Manager) logEvaluateError(logger *slog.Logger, ds *store.Dataset, err error) {
	attrs := []logging.Attr{
		logging.Int64(logging.FieldDatasetID, ds.ID),
		logging.String(logging.FieldDataset, ds.Label()),
		logging.Error(err),
	}
	if services.IsTransient(err) {
		attrs = append(attrs, logging.String(logging.FieldImpact, "dataset check skipped this tick"))
		logging.WarnWithContext(logger, "dataset check skipped", "dataset_skipped", attrs...)
		return
	}
	attrs = append(attrs, logging.String(logging.FieldErrorHint, "inspect the dataset directory and its tickets"))
	logging.ErrorWithContext(logger, "dataset evaluation failed", "dataset_failed", attrs...)
}

func (m *Manager) recordTick(id string, at time.Time, stats TickStats, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastTick = at
	m.lastTickID = id
	m.lastStats = stats
	m.lastErr = err
}
