package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ntfy posts plain-text bodies to a topic URL. Title, tags and priority
// travel as headers.
type ntfy struct {
	topic  string
	client *resty.Client
}

func newNtfy(topic string, timeout time.Duration) *ntfy {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("Content-Type", "text/plain; charset=utf-8")
	return &ntfy{topic: topic, client: client}
}

func (n *ntfy) headers(data message) map[string]string {
	h := map[string]string{}
	if data.title != "" {
		h["Title"] = "microstatus - " + data.title
	}
	if len(data.tags) > 0 {
		h["Tags"] = strings.Join(append([]string{"microstatus"}, data.tags...), ",")
	}
	if p := data.priority; p != "" && p != "default" {
		h["Priority"] = p
	}
	return h
}

func (n *ntfy) send(ctx context.Context, data message) error {
	resp, err := n.client.R().
		SetContext(ctx).
		SetHeaders(n.headers(data)).
		SetBody(data.body).
		Post(n.topic)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	if resp.IsError() || resp.StatusCode() >= 300 {
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return nil
}
