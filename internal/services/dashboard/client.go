package dashboard

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"microstatus/internal/config"
	"microstatus/internal/services"
)

const workersPage = "info/main/workers.html"

// Client fetches worker rosters from the scheduler dashboard.
type Client struct {
	base   *url.URL
	client *resty.Client
}

// New builds a dashboard client. It returns nil when no dashboard URL is
// configured so callers can treat the roster as unavailable.
func New(cfg config.Dashboard) (*Client, error) {
	raw := strings.TrimSpace(cfg.URL)
	if raw == "" {
		return nil, nil
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "dashboard", "parse url", raw, err)
	}
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("Accept", "text/html")
	return &Client{base: base, client: client}, nil
}

// Roster returns the number of tasks each worker currently holds.
func (c *Client) Roster(ctx context.Context) (map[string]int, error) {
	if c == nil {
		return nil, services.Wrap(services.ErrTransient, "dashboard", "roster", "dashboard not configured", nil)
	}
	index := c.base.ResolveReference(&url.URL{Path: workersPage})
	body, err := c.get(ctx, index.String())
	if err != nil {
		return nil, err
	}
	links, err := parseWorkerLinks(body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "dashboard", "parse workers", index.String(), err)
	}

	roster := make(map[string]int, len(links))
	for _, link := range links {
		ref, err := url.Parse(link.Href)
		if err != nil {
			return nil, services.Wrap(services.ErrTransient, "dashboard", "parse worker link", link.Href, err)
		}
		target := index.ResolveReference(ref).String()
		page, err := c.get(ctx, target)
		if err != nil {
			return nil, err
		}
		tasks, err := countTasks(page)
		if err != nil {
			return nil, services.Wrap(services.ErrTransient, "dashboard", "parse worker", target, err)
		}
		roster[link.Name] = tasks
	}
	return roster, nil
}

func (c *Client) get(ctx context.Context, target string) ([]byte, error) {
	resp, err := c.client.R().SetContext(ctx).Get(target)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "dashboard", "fetch", target, err)
	}
	if resp.IsError() {
		return nil, services.Wrap(services.ErrTransient, "dashboard", "fetch",
			fmt.Sprintf("%s returned %s", target, resp.Status()), nil)
	}
	return resp.Body(), nil
}
