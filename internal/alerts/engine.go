package alerts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"

	"microstatus/internal/config"
	"microstatus/internal/logging"
	"microstatus/internal/notifications"
	"microstatus/internal/services"
	"microstatus/internal/storage"
	"microstatus/internal/store"
)

// Tier names, least strict first.
const (
	TierThreshold0 = "thr0"
	TierThreshold1 = "thr1"
	TierCritical   = "critical"
)

// WarningStore persists warning channels.
type WarningStore interface {
	GetWarning(ctx context.Context, resource, tier string) (store.Warning, error)
	UpsertWarning(ctx context.Context, w store.Warning) error
}

// Prober samples one resource.
type Prober interface {
	Probe(ctx context.Context, res config.Resource) (storage.Usage, error)
}

type level struct {
	tier  string
	limit float64
}

// Engine applies the warning ladder to every configured resource.
type Engine struct {
	resources []config.Resource
	levels    []level
	store     WarningStore
	prober    Prober
	notifier  notifications.Service
	logger    *slog.Logger
}

// NewEngine builds an Engine from the storage configuration.
func NewEngine(cfg config.Storage, st WarningStore, prober Prober, notifier notifications.Service, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{
		resources: cfg.Resources,
		levels: []level{
			{tier: TierThreshold0, limit: cfg.Threshold0},
			{tier: TierThreshold1, limit: cfg.Threshold1},
			{tier: TierCritical, limit: cfg.Critical},
		},
		store:    st,
		prober:   prober,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "alerts"),
	}
}

// Check samples every resource and applies the ladder. A resource that
// cannot be sampled is skipped for this tick; the returned error joins the
// failures that were not transient.
func (e *Engine) Check(ctx context.Context) error {
	var errs []error
	for _, res := range e.resources {
		usage, err := e.prober.Probe(ctx, res)
		if err != nil {
			if services.IsTransient(err) {
				logging.WarnWithContext(e.logger, "storage probe failed", "storage_probe_failed",
					logging.String(logging.FieldResource, res.Name),
					logging.String(logging.FieldImpact, "storage warnings skipped this tick"),
					logging.Error(err),
				)
				continue
			}
			errs = append(errs, err)
			continue
		}
		if err := e.Apply(ctx, usage); err != nil {
			errs = append(errs, fmt.Errorf("apply warnings for %s: %w", res.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Apply moves the warning channels of usage.Resource to match the sampled
// utilization. Deactivating a channel clears message_sent so the next
// activation alerts again; message_sent is only set after delivery succeeds.
func (e *Engine) Apply(ctx context.Context, usage storage.Usage) error {
	active := e.activeTier(usage.UsedPercent)
	for _, lvl := range e.levels {
		w, err := e.store.GetWarning(ctx, usage.Resource, lvl.tier)
		if err != nil {
			return err
		}
		next := w
		if lvl.tier == active {
			next.Active = true
			next.UsedPercent = usage.UsedPercent
			if !next.MessageSent {
				next.MessageSent = e.send(ctx, usage, lvl)
			}
		} else {
			next.Active = false
			next.MessageSent = false
		}
		if next.Active == w.Active && next.MessageSent == w.MessageSent && next.UsedPercent == w.UsedPercent {
			continue
		}
		if err := e.store.UpsertWarning(ctx, next); err != nil {
			return err
		}
		if w.Active != next.Active {
			e.logger.Info("storage warning changed",
				logging.String(logging.FieldResource, usage.Resource),
				logging.String("tier", lvl.tier),
				logging.Bool("active", next.Active),
				logging.Float64("used_percent", usage.UsedPercent),
			)
		}
	}
	return nil
}

// activeTier returns the strictest tier whose limit is reached, or "".
func (e *Engine) activeTier(used float64) string {
	for i := len(e.levels) - 1; i >= 0; i-- {
		if used >= e.levels[i].limit {
			return e.levels[i].tier
		}
	}
	return ""
}

func (e *Engine) send(ctx context.Context, usage storage.Usage, lvl level) bool {
	if e.notifier == nil {
		return false
	}
	payload := notifications.Payload{
		notifications.KeyResource: usage.Resource,
		notifications.KeyTier:     lvl.tier,
		notifications.KeyUsed:     humanize.FtoaWithDigits(usage.UsedPercent, 1) + "%",
		notifications.KeyLimit:    humanize.FtoaWithDigits(lvl.limit, 1) + "%",
	}
	if usage.Total > 0 {
		payload[notifications.KeyDetail] = fmt.Sprintf("%s free of %s", humanize.IBytes(usage.Avail), humanize.IBytes(usage.Total))
	}
	if err := e.notifier.Publish(ctx, notifications.EventStorageWarning, payload); err != nil {
		e.logger.Warn("storage warning not delivered",
			logging.String(logging.FieldResource, usage.Resource),
			logging.String("tier", lvl.tier),
			logging.Error(err),
		)
		return false
	}
	return true
}
