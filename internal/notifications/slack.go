package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

type slack struct {
	endpoint string
	channel  string
	client   *resty.Client
}

func newSlack(endpoint, token, channel string, timeout time.Duration) *slack {
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetAuthToken(token)
	client.SetHeader("Content-Type", "application/json; charset=utf-8")
	client.SetHeader("User-Agent", userAgent)
	return &slack{endpoint: endpoint, channel: channel, client: client}
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackBlock struct {
	Type string    `json:"type"`
	Text slackText `json:"text"`
}

type slackRequest struct {
	Channel string       `json:"channel"`
	Text    string       `json:"text"`
	Blocks  []slackBlock `json:"blocks"`
}

type slackResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func (s *slack) send(ctx context.Context, data message) error {
	text := data.body
	if strings.HasPrefix(text, "WARNING") {
		text = ":exclamation: *" + text + "*"
	}
	var result slackResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(slackRequest{
			Channel: s.channel,
			Text:    data.body,
			Blocks:  []slackBlock{{Type: "section", Text: slackText{Type: "mrkdwn", Text: text}}},
		}).
		SetResult(&result).
		Post(s.endpoint)
	if err != nil {
		return fmt.Errorf("send slack notification: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("slack returned %s", resp.Status())
	}
	if !result.OK {
		return fmt.Errorf("slack rejected message: %s", result.Error)
	}
	return nil
}
