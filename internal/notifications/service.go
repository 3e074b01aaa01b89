package notifications

import (
	"context"
	"errors"
	"strings"
	"time"

	"microstatus/internal/config"
)

const userAgent = "microstatus/0.1"

// Service publishes pipeline events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

type transport interface {
	send(ctx context.Context, msg message) error
}

// NewService builds a notification service over every configured transport.
// When none is configured a no-op implementation is returned.
func NewService(cfg *config.Config) Service {
	n := cfg.Notifications
	timeout := time.Duration(n.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var transports []transport
	if topic := strings.TrimSpace(n.NtfyTopic); topic != "" {
		transports = append(transports, newNtfy(topic, timeout))
	}
	if token := strings.TrimSpace(n.SlackToken); token != "" && strings.TrimSpace(n.SlackChannel) != "" {
		transports = append(transports, newSlack(n.SlackURL, token, n.SlackChannel, timeout))
	}
	if len(transports) == 0 {
		return noopService{}
	}
	return &service{transports: transports}
}

type service struct {
	transports []transport
}

func (s *service) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := render(event, payload)
	if !ok {
		return nil
	}
	var errs []error
	for _, t := range s.transports {
		if err := t.send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
