package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPollInterval  = 2 * time.Second
	MinPollInterval      = 200 * time.Millisecond
	DefaultHistoryCap    = 20
	DefaultHistoryWindow = 24 * time.Hour
	DefaultSource        = "squeue"
	DefaultSSHCommand    = "ssh"
	DefaultLogLevel      = "warn"
)

// Config holds sqwatch configuration
type Config struct {
	Source         string        `yaml:"source"`
	User           string        `yaml:"user"`
	Partition      string        `yaml:"partition"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	HistoryCap     int           `yaml:"history_cap"`
	HistoryWindow  time.Duration `yaml:"history_window"`
	ShowScheduled  bool          `yaml:"show_scheduled"`
	ShowHistorical bool          `yaml:"show_historical"`
	AttachInTmux   bool          `yaml:"attach_in_tmux"`
	SSHCommand     string        `yaml:"ssh_command"`
	LogLevel       string        `yaml:"log_level"`
	LogFile        string        `yaml:"log_file"`
	LogFormat      string        `yaml:"log_format"`
}

type fileConfig struct {
	Source         string `yaml:"source"`
	User           string `yaml:"user"`
	Partition      string `yaml:"partition"`
	PollInterval   string `yaml:"poll_interval"`
	HistoryCap     *int   `yaml:"history_cap"`
	HistoryWindow  string `yaml:"history_window"`
	ShowScheduled  *bool  `yaml:"show_scheduled"`
	ShowHistorical *bool  `yaml:"show_historical"`
	AttachInTmux   *bool  `yaml:"attach_in_tmux"`
	SSHCommand     string `yaml:"ssh_command"`
	LogLevel       string `yaml:"log_level"`
	LogFile        string `yaml:"log_file"`
	LogFormat      string `yaml:"log_format"`
}

// configFile is the name of the config file
const configFile = "config.yaml"

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{
		Source:        DefaultSource,
		PollInterval:  DefaultPollInterval,
		HistoryCap:    DefaultHistoryCap,
		HistoryWindow: DefaultHistoryWindow,
		SSHCommand:    DefaultSSHCommand,
		LogLevel:      DefaultLogLevel,
		LogFormat:     "console",
	}
	if home, err := os.UserHomeDir(); err == nil {
		cfg.LogFile = filepath.Join(home, ".cache", "sqwatch", "sqwatch.log")
	}
	return cfg
}

// Load loads configuration with the following precedence (highest first):
// 1. The explicit file, when non-empty
// 2. Repo-local .sqwatch/config.yaml in the current directory
// 3. Parent .sqwatch/config.yaml files (searched upward from cwd)
// 4. Environment variables
// 5. Global ~/.config/sqwatch/config.yaml
// 6. Built-in defaults
func Load(explicit string) (*Config, error) {
	cfg := Default()

	// Load global config first (lowest precedence)
	globalPath := globalConfigPath()
	if globalPath != "" {
		if err := loadFromFile(globalPath, cfg); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}

	// Apply environment variables (higher precedence than global config)
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	// Load repo-local config files
	repoPaths, err := findRepoConfigs()
	if err != nil {
		return nil, err
	}
	for _, repoPath := range repoPaths {
		if err := loadFromFile(repoPath, cfg); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}

	if explicit != "" {
		if err := loadFromFile(ExpandPath(explicit, ""), cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Validate rejects values the rest of sqwatch cannot run with.
func (c *Config) Validate() error {
	if c.PollInterval < MinPollInterval {
		return fmt.Errorf("poll_interval %s is below the minimum of %s", c.PollInterval, MinPollInterval)
	}
	if c.HistoryCap < 0 {
		return fmt.Errorf("history_cap must be >= 0, got %d", c.HistoryCap)
	}
	if c.HistoryWindow < 0 {
		return fmt.Errorf("history_window must be >= 0, got %s", c.HistoryWindow)
	}
	switch c.LogFormat {
	case "", "console", "json":
	default:
		return fmt.Errorf("invalid log_format %q (valid: console, json)", c.LogFormat)
	}
	return nil
}

// findRepoConfigs searches upward from cwd for .sqwatch/config.yaml files.
// Returned paths are ordered from furthest ancestor to closest (highest precedence last).
func findRepoConfigs() ([]string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	dir := cwd
	var paths []string
	for {
		configPath := filepath.Join(dir, ".sqwatch", configFile)
		if _, err := os.Stat(configPath); err == nil {
			paths = append(paths, configPath)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			break
		}
		dir = parent
	}

	for i, j := 0, len(paths)-1; i < j; i, j = i+1, j-1 {
		paths[i], paths[j] = paths[j], paths[i]
	}

	return paths, nil
}

// globalConfigPath returns the path to global config
func globalConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "sqwatch", configFile)
}

// loadFromFile loads config from a YAML file, merging into existing cfg.
// Relative log_file and file: source paths are resolved against the
// directory holding .sqwatch (or the config file's own directory).
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	// Parse into a temporary struct to merge non-empty values
	var fileCfg fileConfig
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	configDir := filepath.Dir(path)
	baseDir := configDir
	if filepath.Base(configDir) == ".sqwatch" {
		baseDir = filepath.Dir(configDir)
	}

	if fileCfg.Source != "" {
		cfg.Source = resolveSource(fileCfg.Source, baseDir)
	}
	if fileCfg.User != "" {
		cfg.User = fileCfg.User
	}
	if fileCfg.Partition != "" {
		cfg.Partition = fileCfg.Partition
	}
	if fileCfg.PollInterval != "" {
		d, err := time.ParseDuration(fileCfg.PollInterval)
		if err != nil {
			return fmt.Errorf("%s: poll_interval: %w", path, err)
		}
		cfg.PollInterval = d
	}
	if fileCfg.HistoryCap != nil {
		cfg.HistoryCap = *fileCfg.HistoryCap
	}
	if fileCfg.HistoryWindow != "" {
		d, err := parseWindow(fileCfg.HistoryWindow)
		if err != nil {
			return fmt.Errorf("%s: history_window: %w", path, err)
		}
		cfg.HistoryWindow = d
	}
	if fileCfg.ShowScheduled != nil {
		cfg.ShowScheduled = *fileCfg.ShowScheduled
	}
	if fileCfg.ShowHistorical != nil {
		cfg.ShowHistorical = *fileCfg.ShowHistorical
	}
	if fileCfg.AttachInTmux != nil {
		cfg.AttachInTmux = *fileCfg.AttachInTmux
	}
	if fileCfg.SSHCommand != "" {
		cfg.SSHCommand = fileCfg.SSHCommand
	}
	if fileCfg.LogLevel != "" {
		cfg.LogLevel = fileCfg.LogLevel
	}
	if fileCfg.LogFile != "" {
		cfg.LogFile = resolvePathFromConfig(fileCfg.LogFile, baseDir)
	}
	if fileCfg.LogFormat != "" {
		cfg.LogFormat = fileCfg.LogFormat
	}

	return nil
}

// resolveSource resolves the path of a file: source.
func resolveSource(source, baseDir string) string {
	if path, ok := strings.CutPrefix(source, "file:"); ok && path != "" {
		return "file:" + resolvePathFromConfig(path, baseDir)
	}
	return source
}

// resolvePathFromConfig resolves a path from a config file
// - Expands ~ to home directory
// - Makes relative paths absolute relative to baseDir
// - Returns absolute paths unchanged
func resolvePathFromConfig(path, baseDir string) string {
	if path == "" {
		return ""
	}

	// Expand ~
	if len(path) > 0 && path[0] == '~' {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path[1:])
	}

	// Make relative paths absolute
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}

	return path
}

// parseWindow accepts Go durations plus a trailing "d" for days.
func parseWindow(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "0" {
		return 0, nil
	}
	if days, ok := strings.CutSuffix(raw, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", raw)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(raw)
}

func parseBool(v string) bool {
	return v == "true" || v == "1" || v == "yes"
}

// applyEnv applies environment variables to config
func applyEnv(cfg *Config) error {
	if v := os.Getenv("SQWATCH_SOURCE"); v != "" {
		cfg.Source = v
	}
	if v := os.Getenv("SQWATCH_USER"); v != "" {
		cfg.User = v
	}
	if v := os.Getenv("SQWATCH_PARTITION"); v != "" {
		cfg.Partition = v
	}
	if v := os.Getenv("SQWATCH_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SQWATCH_POLL_INTERVAL: %w", err)
		}
		cfg.PollInterval = d
	}
	if v := os.Getenv("SQWATCH_HISTORY_CAP"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SQWATCH_HISTORY_CAP: %w", err)
		}
		cfg.HistoryCap = n
	}
	if v := os.Getenv("SQWATCH_HISTORY_WINDOW"); v != "" {
		d, err := parseWindow(v)
		if err != nil {
			return fmt.Errorf("SQWATCH_HISTORY_WINDOW: %w", err)
		}
		cfg.HistoryWindow = d
	}
	if v := os.Getenv("SQWATCH_SHOW_SCHEDULED"); v != "" {
		cfg.ShowScheduled = parseBool(v)
	}
	if v := os.Getenv("SQWATCH_SHOW_HISTORICAL"); v != "" {
		cfg.ShowHistorical = parseBool(v)
	}
	if v := os.Getenv("SQWATCH_ATTACH_IN_TMUX"); v != "" {
		cfg.AttachInTmux = parseBool(v)
	}
	if v := os.Getenv("SQWATCH_SSH_COMMAND"); v != "" {
		cfg.SSHCommand = v
	}
	if v := os.Getenv("SQWATCH_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("SQWATCH_LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	if v := os.Getenv("SQWATCH_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	return nil
}

// ExpandPath expands ~ and makes path absolute relative to base
func ExpandPath(path, base string) string {
	if path == "" {
		return ""
	}

	// Expand ~
	if len(path) > 0 && path[0] == '~' {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path[1:])
	}

	// Make absolute if relative
	if !filepath.IsAbs(path) && base != "" {
		path = filepath.Join(base, path)
	}

	return path
}
