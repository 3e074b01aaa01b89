package workflow

import (
	"context"
	"time"

	"microstatus/internal/logging"
	"microstatus/internal/store"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running     bool
	LastError   string
	LastTick    time.Time
	LastTickID  string
	LastStats   TickStats
	PhaseCounts map[store.ProcessingPhase]int
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{
		Running:    m.running,
		LastTick:   m.lastTick,
		LastTickID: m.lastTickID,
		LastStats:  m.lastStats,
	}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	m.mu.RUnlock()

	counts, err := m.store.PhaseCounts(ctx)
	if err != nil {
		m.logger.Warn("failed to read phase counts", logging.Error(err))
	}
	summary.PhaseCounts = counts
	return summary
}
