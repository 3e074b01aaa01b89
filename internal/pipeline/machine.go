package pipeline

import (
	"context"
	"log/slog"
	"reflect"
	"time"

	"microstatus/internal/config"
	"microstatus/internal/logging"
	"microstatus/internal/modality"
	"microstatus/internal/notifications"
	"microstatus/internal/progress"
	"microstatus/internal/services"
	"microstatus/internal/store"
	"microstatus/internal/ticket"
	"microstatus/internal/validator"
)

// Recorder persists dataset records.
type Recorder interface {
	Save(ctx context.Context, d *store.Dataset) error
}

// RosterSource reports in-flight tasks per stitching worker.
type RosterSource interface {
	Roster(ctx context.Context) (map[string]int, error)
}

// Machine holds the collaborators shared by every scan.
type Machine struct {
	cfg        *config.Config
	store      Recorder
	gateway    *ticket.Gateway
	modalities *modality.Registry
	validator  validator.Validator
	notifier   notifications.Service
	roster     RosterSource
	layout     Layout
	logger     *slog.Logger
	now        func() time.Time
}

// Option customises a Machine.
type Option func(*Machine)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

// WithRoster supplies the stitching dashboard.
func WithRoster(src RosterSource) Option {
	return func(m *Machine) {
		m.roster = src
	}
}

// New builds a Machine.
func New(
	cfg *config.Config,
	st Recorder,
	gw *ticket.Gateway,
	reg *modality.Registry,
	val validator.Validator,
	notifier notifications.Service,
	logger *slog.Logger,
	opts ...Option,
) *Machine {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Machine{
		cfg:        cfg,
		store:      st,
		gateway:    gw,
		modalities: reg,
		validator:  val,
		notifier:   notifier,
		layout:     NewLayout(cfg),
		logger:     logging.NewComponentLogger(logger, "pipeline"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Layout exposes the path layout used by the machine.
func (m *Machine) Layout() Layout {
	return m.layout
}

// Scan is the state for one tick. It caches the shared-pool observations and
// remembers which artifacts were already quarantined during the tick.
type Scan struct {
	m       *Machine
	now     time.Time
	tracker progress.Tracker

	rosterLoaded bool
	roster       map[string]int

	pools       map[ticket.Stage]map[string]int
	quarantined map[string]string
}

// Begin starts a scan at the current instant.
func (m *Machine) Begin() *Scan {
	now := m.now()
	return &Scan{
		m:           m,
		now:         now,
		tracker:     progress.NewTracker(m.cfg.Pipeline.Stall(), func() time.Time { return now }),
		pools:       make(map[ticket.Stage]map[string]int),
		quarantined: make(map[string]string),
	}
}

// Now is the instant the scan observes.
func (s *Scan) Now() time.Time {
	return s.now
}

type pendingEvent struct {
	event   notifications.Event
	payload notifications.Payload
}

type evaluation struct {
	scan   *Scan
	m      *Machine
	ds     *store.Dataset
	mod    modality.Modality
	logger *slog.Logger
	events []pendingEvent
}

// Evaluate advances one dataset by at most one step per phase. Changes are
// persisted only when the record differs from what was loaded, and
// notifications are published after the record is saved. Transient failures
// are returned after any partial progress has been saved.
func (s *Scan) Evaluate(ctx context.Context, ds *store.Dataset) error {
	ctx = services.WithDatasetID(ctx, ds.ID)
	logger := logging.WithContext(ctx, s.m.logger).With(logging.String(logging.FieldDataset, ds.Label()))

	mod, err := s.m.modalities.Lookup(ds.Modality)
	if err != nil {
		return err
	}
	ev := &evaluation{scan: s, m: s.m, ds: ds, mod: mod, logger: logger}
	before := ds.Clone()

	switch ds.ImagingPhase {
	case store.ImagingInProgress, store.ImagingPaused:
		err = ev.imaging(services.WithStage(ctx, "imaging"))
	}
	if err == nil && ds.ImagingPhase == store.ImagingFinished && ds.Delete405 {
		err = ev.dropChannel()
	}
	if err == nil && ds.ImagingPhase == store.ImagingFinished && !ds.SkipProcessing {
		err = ev.processing(ctx)
	}

	if !reflect.DeepEqual(before, ds) {
		if saveErr := s.m.store.Save(ctx, ds); saveErr != nil {
			return services.Wrap(services.ErrTransient, "", "save dataset", ds.Label(), saveErr)
		}
	}
	ev.flush(ctx)
	return err
}

func (ev *evaluation) emit(event notifications.Event, extra notifications.Payload) {
	payload := notifications.Payload{
		notifications.KeyOwner:   ev.ds.Owner,
		notifications.KeyProject: ev.ds.Project,
		notifications.KeyDataset: ev.ds.Name,
	}
	for k, v := range extra {
		payload[k] = v
	}
	ev.events = append(ev.events, pendingEvent{event: event, payload: payload})
}

func (ev *evaluation) flush(ctx context.Context) {
	if ev.m.notifier == nil {
		return
	}
	for _, pe := range ev.events {
		if err := ev.m.notifier.Publish(ctx, pe.event, pe.payload); err != nil {
			ev.logger.Debug("notification failed",
				logging.String(logging.FieldEventType, string(pe.event)),
				logging.Error(err),
			)
		}
	}
	ev.events = nil
}
