package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths groups filesystem locations owned or observed by the daemon.
type Paths struct {
	StateDir     string `toml:"state_dir"`
	LogDir       string `toml:"log_dir"`
	FastRoot     string `toml:"fast_root"`
	ArchiveRoot  string `toml:"archive_root"`
	FastTrash    string `toml:"fast_trash"`
	ArchiveTrash string `toml:"archive_trash"`
	AnalysisDir  string `toml:"analysis_dir"`
}

// Queue describes the four well-known directories of one external stage.
type Queue struct {
	Root       string `toml:"root"`
	Queued     string `toml:"queued_dir"`
	Processing string `toml:"processing_dir"`
	Complete   string `toml:"complete_dir"`
	Error      string `toml:"error_dir"`
}

type Queues struct {
	Stitch  Queue `toml:"stitch"`
	Denoise Queue `toml:"denoise"`
	Build   Queue `toml:"build"`
	Move    Queue `toml:"move"`
}

type Pipeline struct {
	ScanInterval          int      `toml:"scan_interval"`
	StallTimeout          int      `toml:"stall_timeout"`
	CallTimeout           int      `toml:"call_timeout"`
	CompositesDir         string   `toml:"composites_dir"`
	VolumeExtension       string   `toml:"volume_extension"`
	CheckUnits            bool     `toml:"check_units"`
	RetainIntermediates   bool     `toml:"retain_intermediates"`
	DefaultProject        string   `toml:"default_project"`
	IgnoreMarkers         []string `toml:"ignore_markers"`
	SkipProcessingMarkers []string `toml:"skip_processing_markers"`
	// Delete405Markers flag acquisitions whose 405 nm channel is deleted
	// once imaging finishes.
	Delete405Markers      []string `toml:"delete_405_markers"`
}

// MoveWindow restricts when archival move tickets may be written.
type MoveWindow struct {
	Restrict      bool `toml:"restrict"`
	StartHour     int  `toml:"start_hour"`
	StopHour      int  `toml:"stop_hour"`
	AllowWeekends bool `toml:"allow_weekends"`
}

type Resource struct {
	Name string `toml:"name"`
	Path string `toml:"path"`
}

type Storage struct {
	Threshold0   float64    `toml:"threshold0"`
	Threshold1   float64    `toml:"threshold1"`
	Critical     float64    `toml:"critical"`
	ProbeTimeout int        `toml:"probe_timeout"`
	Resources    []Resource `toml:"resources"`
}

type Dashboard struct {
	URL            string `toml:"url"`
	RequestTimeout int    `toml:"request_timeout"`
}

type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	SlackToken     string `toml:"slack_token"`
	SlackChannel   string `toml:"slack_channel"`
	SlackURL       string `toml:"slack_url"`
	RequestTimeout int    `toml:"request_timeout"`
}

type Analysis struct {
	Owners    []string `toml:"owners"`
	Actions   []string `toml:"actions"`
	OutputDir string   `toml:"output_dir"`
}

type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all daemon configuration values.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Queues        Queues        `toml:"queues"`
	Pipeline      Pipeline      `toml:"pipeline"`
	MoveWindow    MoveWindow    `toml:"move_window"`
	Storage       Storage       `toml:"storage"`
	Dashboard     Dashboard     `toml:"dashboard"`
	Notifications Notifications `toml:"notifications"`
	Analysis      Analysis      `toml:"analysis"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the user-level configuration location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/microstatus/config.toml")
}

// Load reads configuration from disk, applies defaults, and validates the result.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if err := loadDotEnv(resolvedPath); err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("microstatus.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// loadDotEnv sources .env files beside the config and in the working
// directory. Variables already present in the environment are kept.
func loadDotEnv(configPath string) error {
	candidates := []string{filepath.Join(filepath.Dir(configPath), ".env")}
	if wd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(wd, ".env"))
	}
	seen := make(map[string]struct{}, len(candidates))
	var files []string
	for _, candidate := range candidates {
		if _, ok := seen[candidate]; ok {
			continue
		}
		seen[candidate] = struct{}{}
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			files = append(files, candidate)
		}
	}
	if len(files) == 0 {
		return nil
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// EnsureDirectories creates the directories the daemon writes to.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath is the location of the SQLite record store.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.StateDir, "microstatus.db")
}

// LockPath is the single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "microstatus.lock")
}

// HasArchiveTier reports whether datasets migrate to an archive tier.
func (c *Config) HasArchiveTier() bool {
	return strings.TrimSpace(c.Paths.ArchiveRoot) != ""
}

// Interval is the sleep between scan ticks.
func (p Pipeline) Interval() time.Duration {
	return time.Duration(p.ScanInterval) * time.Second
}

// Stall is the duration without progress after which a stage pauses.
func (p Pipeline) Stall() time.Duration {
	return time.Duration(p.StallTimeout) * time.Second
}

// CallBudget bounds one dataset evaluation, including its network calls.
func (p Pipeline) CallBudget() time.Duration {
	return time.Duration(p.CallTimeout) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
