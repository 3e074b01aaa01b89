package alerts_test

import (
	"context"
	"errors"
	"testing"

	"microstatus/internal/alerts"
	"microstatus/internal/config"
	"microstatus/internal/notifications"
	"microstatus/internal/services"
	"microstatus/internal/storage"
	"microstatus/internal/testsupport"
)

type sent struct {
	tier string
	used string
}

type notifier struct {
	sent []sent
	fail bool
}

func (n *notifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	if event != notifications.EventStorageWarning {
		return nil
	}
	if n.fail {
		return errors.New("ntfy unreachable")
	}
	n.sent = append(n.sent, sent{tier: payload[notifications.KeyTier].(string), used: payload[notifications.KeyUsed].(string)})
	return nil
}

type fixedProber struct {
	used map[string]float64
	err  error
}

func (p *fixedProber) Probe(_ context.Context, res config.Resource) (storage.Usage, error) {
	if p.err != nil {
		return storage.Usage{}, p.err
	}
	return storage.Usage{Resource: res.Name, UsedPercent: p.used[res.Name], Total: 1 << 40, Avail: 1 << 38}, nil
}

func storageConfig() config.Storage {
	return config.Storage{
		Threshold0: 85,
		Threshold1: 90,
		Critical:   94,
		Resources:  []config.Resource{{Name: "fast", Path: "/data"}},
	}
}

func activeTiers(t *testing.T, st alerts.WarningStore) []string {
	t.Helper()
	var out []string
	for _, tier := range []string{alerts.TierThreshold0, alerts.TierThreshold1, alerts.TierCritical} {
		w, err := st.GetWarning(context.Background(), "fast", tier)
		if err != nil {
			t.Fatal(err)
		}
		if w.Active {
			out = append(out, tier)
		}
	}
	return out
}

func TestLadderFollowsUtilization(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	n := &notifier{}
	engine := alerts.NewEngine(storageConfig(), st, nil, n, nil)

	steps := []struct {
		used   float64
		active []string
	}{
		{80, nil},
		{87, []string{alerts.TierThreshold0}},
		{92, []string{alerts.TierThreshold1}},
		{96, []string{alerts.TierCritical}},
		{91, []string{alerts.TierThreshold1}},
		{84, nil},
	}
	for _, step := range steps {
		if err := engine.Apply(context.Background(), storage.Usage{Resource: "fast", UsedPercent: step.used}); err != nil {
			t.Fatalf("Apply(%v) returned error: %v", step.used, err)
		}
		got := activeTiers(t, st)
		if len(got) != len(step.active) || (len(got) == 1 && got[0] != step.active[0]) {
			t.Fatalf("at %v%%: active %v, want %v", step.used, got, step.active)
		}
	}

	want := []string{alerts.TierThreshold0, alerts.TierThreshold1, alerts.TierCritical, alerts.TierThreshold1}
	if len(n.sent) != len(want) {
		t.Fatalf("expected %d alerts, got %+v", len(want), n.sent)
	}
	for i, tier := range want {
		if n.sent[i].tier != tier {
			t.Fatalf("alert %d: got %s, want %s", i, n.sent[i].tier, tier)
		}
	}
	if n.sent[0].used != "87%" {
		t.Fatalf("unexpected used text %q", n.sent[0].used)
	}

	for _, tier := range []string{alerts.TierThreshold0, alerts.TierThreshold1, alerts.TierCritical} {
		w, err := st.GetWarning(context.Background(), "fast", tier)
		if err != nil {
			t.Fatal(err)
		}
		if w.MessageSent {
			t.Fatalf("expected %s message_sent to reset on deactivation", tier)
		}
	}
}

func TestActiveTierAlertsOnce(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	n := &notifier{}
	engine := alerts.NewEngine(storageConfig(), st, nil, n, nil)

	for _, used := range []float64{86, 88, 87.5} {
		if err := engine.Apply(context.Background(), storage.Usage{Resource: "fast", UsedPercent: used}); err != nil {
			t.Fatal(err)
		}
	}
	if len(n.sent) != 1 {
		t.Fatalf("expected one alert while continuously active, got %+v", n.sent)
	}
}

func TestFailedDeliveryRetriesNextTick(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	n := &notifier{fail: true}
	engine := alerts.NewEngine(storageConfig(), st, nil, n, nil)
	usage := storage.Usage{Resource: "fast", UsedPercent: 95}

	if err := engine.Apply(context.Background(), usage); err != nil {
		t.Fatal(err)
	}
	w, err := st.GetWarning(context.Background(), "fast", alerts.TierCritical)
	if err != nil {
		t.Fatal(err)
	}
	if !w.Active || w.MessageSent {
		t.Fatalf("expected active without message_sent, got %+v", w)
	}

	n.fail = false
	if err := engine.Apply(context.Background(), usage); err != nil {
		t.Fatal(err)
	}
	if len(n.sent) != 1 || n.sent[0].tier != alerts.TierCritical {
		t.Fatalf("expected the retry to deliver, got %+v", n.sent)
	}
}

func TestCheckSkipsUnreachableResource(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	n := &notifier{}
	prober := &fixedProber{used: map[string]float64{"fast": 91}}
	engine := alerts.NewEngine(storageConfig(), st, prober, n, nil)

	if err := engine.Check(context.Background()); err != nil {
		t.Fatalf("Check returned error: %v", err)
	}
	if got := activeTiers(t, st); len(got) != 1 || got[0] != alerts.TierThreshold1 {
		t.Fatalf("unexpected active tiers %v", got)
	}

	prober.err = services.Wrap(services.ErrTimeout, "storage", "probe", "fast", nil)
	if err := engine.Check(context.Background()); err != nil {
		t.Fatalf("expected transient probe failure to be skipped, got %v", err)
	}
	if got := activeTiers(t, st); len(got) != 1 {
		t.Fatalf("expected warnings untouched by a failed probe, got %v", got)
	}
}
