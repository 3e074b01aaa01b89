package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeQueues(); err != nil {
		return err
	}
	c.normalizePipeline()
	if err := c.normalizeStorage(); err != nil {
		return err
	}
	c.normalizeDashboard()
	c.normalizeNotifications()
	c.normalizeAnalysis()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		name  string
		value *string
	}{
		{"paths.state_dir", &c.Paths.StateDir},
		{"paths.log_dir", &c.Paths.LogDir},
		{"paths.fast_root", &c.Paths.FastRoot},
		{"paths.archive_root", &c.Paths.ArchiveRoot},
		{"paths.fast_trash", &c.Paths.FastTrash},
		{"paths.archive_trash", &c.Paths.ArchiveTrash},
		{"paths.analysis_dir", &c.Paths.AnalysisDir},
	}
	for _, field := range fields {
		expanded, err := expandPath(strings.TrimSpace(*field.value))
		if err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
		*field.value = expanded
	}
	return nil
}

func (c *Config) normalizeQueues() error {
	if strings.TrimSpace(c.Queues.Move.Root) == "" {
		c.Queues.Move.Root = c.Queues.Stitch.Root
	}
	queues := []struct {
		name  string
		queue *Queue
	}{
		{"queues.stitch", &c.Queues.Stitch},
		{"queues.denoise", &c.Queues.Denoise},
		{"queues.build", &c.Queues.Build},
		{"queues.move", &c.Queues.Move},
	}
	for _, q := range queues {
		root, err := expandPath(strings.TrimSpace(q.queue.Root))
		if err != nil {
			return fmt.Errorf("%s.root: %w", q.name, err)
		}
		q.queue.Root = root
		q.queue.Queued = defaultString(q.queue.Queued, defaultQueuedDir)
		q.queue.Processing = defaultString(q.queue.Processing, defaultProcessingDir)
		q.queue.Complete = defaultString(q.queue.Complete, defaultCompleteDir)
		q.queue.Error = defaultString(q.queue.Error, defaultErrorDir)
	}
	return nil
}

func (c *Config) normalizePipeline() {
	c.Pipeline.CompositesDir = defaultString(c.Pipeline.CompositesDir, defaultCompositesDir)
	c.Pipeline.VolumeExtension = defaultString(c.Pipeline.VolumeExtension, defaultVolumeExtension)
	if !strings.HasPrefix(c.Pipeline.VolumeExtension, ".") {
		c.Pipeline.VolumeExtension = "." + c.Pipeline.VolumeExtension
	}
	c.Pipeline.DefaultProject = defaultString(c.Pipeline.DefaultProject, defaultProject)
	c.Pipeline.IgnoreMarkers = compactStrings(c.Pipeline.IgnoreMarkers, true)
	c.Pipeline.SkipProcessingMarkers = compactStrings(c.Pipeline.SkipProcessingMarkers, false)
	c.Pipeline.Delete405Markers = compactStrings(c.Pipeline.Delete405Markers, false)
}

func (c *Config) normalizeStorage() error {
	if len(c.Storage.Resources) == 0 {
		if c.Paths.FastRoot != "" {
			c.Storage.Resources = append(c.Storage.Resources, Resource{Name: "fast", Path: c.Paths.FastRoot})
		}
		if c.Paths.ArchiveRoot != "" {
			c.Storage.Resources = append(c.Storage.Resources, Resource{Name: "archive", Path: c.Paths.ArchiveRoot})
		}
	}
	for i := range c.Storage.Resources {
		res := &c.Storage.Resources[i]
		res.Name = strings.ToLower(strings.TrimSpace(res.Name))
		expanded, err := expandPath(strings.TrimSpace(res.Path))
		if err != nil {
			return fmt.Errorf("storage.resources[%d].path: %w", i, err)
		}
		res.Path = expanded
	}
	return nil
}

func (c *Config) normalizeDashboard() {
	if strings.TrimSpace(c.Dashboard.URL) == "" {
		if value, ok := os.LookupEnv("DASHBOARD_URL"); ok {
			c.Dashboard.URL = value
		}
	}
	c.Dashboard.URL = strings.TrimSpace(c.Dashboard.URL)
	if c.Dashboard.URL != "" && !strings.HasSuffix(c.Dashboard.URL, "/") {
		c.Dashboard.URL += "/"
	}
}

func (c *Config) normalizeNotifications() {
	envFallback(&c.Notifications.NtfyTopic, "NTFY_TOPIC")
	envFallback(&c.Notifications.SlackToken, "SLACK_TOKEN")
	envFallback(&c.Notifications.SlackChannel, "SLACK_CHANNEL")
	c.Notifications.SlackURL = defaultString(c.Notifications.SlackURL, defaultSlackURL)
}

func (c *Config) normalizeAnalysis() {
	c.Analysis.Owners = compactStrings(c.Analysis.Owners, false)
	c.Analysis.Actions = compactStrings(c.Analysis.Actions, false)
	c.Analysis.OutputDir = strings.TrimSpace(c.Analysis.OutputDir)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(defaultString(c.Logging.Format, defaultLogFormat))
	c.Logging.Level = strings.ToLower(defaultString(c.Logging.Level, defaultLogLevel))
}

func envFallback(target *string, key string) {
	if strings.TrimSpace(*target) == "" {
		if value, ok := os.LookupEnv(key); ok {
			*target = value
		}
	}
	*target = strings.TrimSpace(*target)
}

func defaultString(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	return value
}

func compactStrings(values []string, lower bool) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if lower {
			v = strings.ToLower(v)
		}
		out = append(out, v)
	}
	return out
}
