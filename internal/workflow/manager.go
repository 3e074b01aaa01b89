package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"microstatus/internal/config"
	"microstatus/internal/logging"
	"microstatus/internal/modality"
	"microstatus/internal/notifications"
	"microstatus/internal/pipeline"
	"microstatus/internal/store"
)

// DatasetStore is the slice of the record store the manager needs.
type DatasetStore interface {
	pipeline.Recorder
	Create(ctx context.Context, d *store.Dataset) error
	KnownRelPaths(ctx context.Context) (map[string]struct{}, error)
	List(ctx context.Context, filter store.Filter) ([]*store.Dataset, error)
	PhaseCounts(ctx context.Context) (map[store.ProcessingPhase]int, error)
}

// StorageChecker applies storage warnings for one tick.
type StorageChecker interface {
	Check(ctx context.Context) error
}

// Manager coordinates discovery, storage checks, and dataset evaluation.
type Manager struct {
	cfg        *config.Config
	store      DatasetStore
	machine    *pipeline.Machine
	modalities *modality.Registry
	storage    StorageChecker
	notifier   notifications.Service
	logger     *slog.Logger
	interval   time.Duration

	mu         sync.RWMutex
	running    bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	lastErr    error
	lastTick   time.Time
	lastTickID string
	lastStats  TickStats
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithStorageChecker enables storage warnings on every tick.
func WithStorageChecker(checker StorageChecker) ManagerOption {
	return func(m *Manager) {
		m.storage = checker
	}
}

// WithInterval overrides the sleep between ticks.
func WithInterval(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.interval = d
		}
	}
}

// NewManager constructs a workflow manager.
func NewManager(
	cfg *config.Config,
	st DatasetStore,
	machine *pipeline.Machine,
	modalities *modality.Registry,
	notifier notifications.Service,
	logger *slog.Logger,
	opts ...ManagerOption,
) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	m := &Manager{
		cfg:        cfg,
		store:      st,
		machine:    machine,
		modalities: modalities,
		notifier:   notifier,
		logger:     logging.NewComponentLogger(logger, "workflow"),
		interval:   cfg.Pipeline.Interval(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}
