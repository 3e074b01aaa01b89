package daemon_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"microstatus/internal/config"
	"microstatus/internal/daemon"
	"microstatus/internal/modality"
	"microstatus/internal/notifications"
	"microstatus/internal/pipeline"
	"microstatus/internal/store"
	"microstatus/internal/testsupport"
	"microstatus/internal/ticket"
	"microstatus/internal/validator"
	"microstatus/internal/workflow"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (n *recordingNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func newDaemon(t *testing.T, cfg *config.Config, n notifications.Service) *daemon.Daemon {
	t.Helper()
	st := testsupport.MustOpenStore(t, cfg)
	machine := pipeline.New(cfg, st, ticket.NewGateway(cfg), modality.Default(), validator.New(), n, nil)
	mgr := workflow.NewManager(cfg, st, machine, modality.Default(), n, nil)
	d, err := daemon.New(cfg, st, nil, mgr, n)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Stop)
	return d
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg, &recordingNotifier{})
	ctx := context.Background()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := d.Status(ctx)
	if !status.Running || !status.Workflow.Running {
		t.Fatalf("expected daemon and workflow running, got %+v", status)
	}
	if status.LockFilePath != cfg.LockPath() {
		t.Fatalf("unexpected lock path %q", status.LockFilePath)
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestSecondInstanceIsRejected(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first := newDaemon(t, cfg, &recordingNotifier{})
	second := newDaemon(t, cfg, &recordingNotifier{})
	ctx := context.Background()

	if err := first.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := second.Start(ctx); !errors.Is(err, daemon.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
	if _, err := second.RunOnce(ctx); !errors.Is(err, daemon.ErrAlreadyRunning) {
		t.Fatalf("expected RunOnce to be refused, got %v", err)
	}

	first.Stop()
	if _, err := second.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce after release: %v", err)
	}
}

func TestRunOnceRecordsTick(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg, &recordingNotifier{})
	ctx := context.Background()

	if _, err := d.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	status := d.Status(ctx)
	if status.Running {
		t.Fatal("RunOnce must not leave the daemon running")
	}
	if status.Workflow.LastTickID == "" {
		t.Fatal("expected the tick to be recorded")
	}
	if status.Workflow.PhaseCounts[store.ProcessingNotStarted] != 0 {
		t.Fatalf("expected empty phase counts, got %v", status.Workflow.PhaseCounts)
	}
}

func TestTestNotification(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	n := &recordingNotifier{}
	d := newDaemon(t, cfg, n)

	sent, msg, err := d.TestNotification(context.Background())
	if err != nil || sent {
		t.Fatalf("expected unconfigured result, got sent=%v msg=%q err=%v", sent, msg, err)
	}

	cfg.Notifications.NtfyTopic = "https://ntfy.example/microstatus"
	sent, _, err = d.TestNotification(context.Background())
	if err != nil || !sent {
		t.Fatalf("expected test notification to be sent, err=%v", err)
	}
	if len(n.events) != 1 || n.events[0] != notifications.EventTest {
		t.Fatalf("unexpected events %v", n.events)
	}
}
