package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateQueues(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateMoveWindow(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateAnalysis(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.StateDir == "" {
		return errors.New("paths.state_dir must be set")
	}
	if c.Paths.FastRoot == "" {
		return errors.New("paths.fast_root must be set")
	}
	if c.Paths.FastTrash == "" {
		return errors.New("paths.fast_trash must be set")
	}
	if c.Paths.ArchiveRoot != "" && c.Paths.ArchiveTrash == "" {
		return errors.New("paths.archive_trash must be set when paths.archive_root is configured")
	}
	return nil
}

func (c *Config) validateQueues() error {
	queues := map[string]Queue{
		"stitch":  c.Queues.Stitch,
		"denoise": c.Queues.Denoise,
		"build":   c.Queues.Build,
		"move":    c.Queues.Move,
	}
	for name, q := range queues {
		if q.Root == "" && name != "move" {
			return fmt.Errorf("queues.%s.root must be set", name)
		}
		dirs := map[string]struct{}{q.Queued: {}, q.Processing: {}, q.Complete: {}, q.Error: {}}
		if len(dirs) != 4 {
			return fmt.Errorf("queues.%s directory names must be distinct", name)
		}
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.ScanInterval <= 0 {
		return errors.New("pipeline.scan_interval must be positive")
	}
	if c.Pipeline.StallTimeout <= 0 {
		return errors.New("pipeline.stall_timeout must be positive")
	}
	if c.Pipeline.CallTimeout <= 0 {
		return errors.New("pipeline.call_timeout must be positive")
	}
	return nil
}

func (c *Config) validateMoveWindow() error {
	if c.MoveWindow.StartHour < 0 || c.MoveWindow.StartHour > 23 {
		return errors.New("move_window.start_hour must be between 0 and 23")
	}
	if c.MoveWindow.StopHour < 0 || c.MoveWindow.StopHour > 23 {
		return errors.New("move_window.stop_hour must be between 0 and 23")
	}
	return nil
}

func (c *Config) validateStorage() error {
	s := c.Storage
	if s.Threshold0 <= 0 || s.Critical > 100 {
		return errors.New("storage thresholds must be within (0, 100]")
	}
	if !(s.Threshold0 < s.Threshold1 && s.Threshold1 < s.Critical) {
		return errors.New("storage thresholds must satisfy threshold0 < threshold1 < critical")
	}
	if s.ProbeTimeout <= 0 {
		return errors.New("storage.probe_timeout must be positive")
	}
	seen := make(map[string]struct{}, len(s.Resources))
	for i, res := range s.Resources {
		if res.Name == "" {
			return fmt.Errorf("storage.resources[%d].name must be set", i)
		}
		if res.Path == "" {
			return fmt.Errorf("storage.resources[%d].path must be set", i)
		}
		if _, ok := seen[res.Name]; ok {
			return fmt.Errorf("storage.resources name %q is duplicated", res.Name)
		}
		seen[res.Name] = struct{}{}
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	if c.Notifications.SlackToken != "" && c.Notifications.SlackChannel == "" {
		return errors.New("notifications.slack_channel must be set when a Slack token is configured")
	}
	if c.Dashboard.RequestTimeout <= 0 {
		return errors.New("dashboard.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateAnalysis() error {
	if len(c.Analysis.Owners) > 0 && c.Paths.AnalysisDir == "" {
		return errors.New("paths.analysis_dir must be set when analysis.owners is configured")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
