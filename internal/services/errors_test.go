package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"microstatus/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrCorruptArtifact, "build_volume", "validate", "volume unreadable", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrCorruptArtifact) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"build_volume", "validate", "volume unreadable"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transient", services.Wrap(services.ErrTransient, "dashboard", "fetch", "", nil), true},
		{"timeout", services.Wrap(services.ErrTimeout, "storage", "probe", "", nil), true},
		{"deadline", fmt.Errorf("probe: %w", context.DeadlineExceeded), true},
		{"corrupt", services.Wrap(services.ErrCorruptArtifact, "", "", "", nil), false},
		{"plain", errors.New("other"), false},
	}
	for _, tt := range tests {
		if got := services.IsTransient(tt.err); got != tt.want {
			t.Errorf("%s: IsTransient = %v, want %v", tt.name, got, tt.want)
		}
	}
}
