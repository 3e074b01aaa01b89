package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTransient         = errors.New("transient failure")
	ErrTimeout           = errors.New("timeout")
	ErrCorruptArtifact   = errors.New("corrupt artifact")
	ErrUnreadable        = errors.New("unreadable artifact")
	ErrProtocolViolation = errors.New("protocol violation")
	ErrValidation        = errors.New("validation error")
	ErrConfiguration     = errors.New("configuration error")
	ErrNotFound          = errors.New("not found")
)

// Wrap tags err with marker so callers can classify it with errors.Is while
// the message keeps the stage and operation that failed. A nil marker
// defaults to ErrTransient.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	detail := joinDetail(stage, operation, message)
	if err == nil {
		return fmt.Errorf("%w: %s", marker, detail)
	}
	return fmt.Errorf("%w: %s: %w", marker, detail, err)
}

// IsTransient reports whether err should only skip the current check.
// Context deadlines count as transient so a slow share never aborts a
// whole tick.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	for _, target := range []error{ErrTransient, ErrTimeout, context.DeadlineExceeded} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func joinDetail(fields ...string) string {
	kept := fields[:0:0]
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			kept = append(kept, f)
		}
	}
	if len(kept) == 0 {
		return "service failure"
	}
	return strings.Join(kept, ": ")
}
