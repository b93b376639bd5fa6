package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// SupportedVersions is the config schema range this client understands.
const SupportedVersions = ">= 1.0.0, < 2.0.0"

type APIConfig struct {
	BaseURL           string `json:"base_url" yaml:"base_url"`
	RequestTimeoutSec int    `json:"request_timeout_sec" yaml:"request_timeout_sec"`
	LoginPath         string `json:"login_path" yaml:"login_path"`
	LogoutPath        string `json:"logout_path" yaml:"logout_path"`
	UploadPath        string `json:"upload_path" yaml:"upload_path"`
	HistoryPath       string `json:"history_path" yaml:"history_path"`
	ReportPath        string `json:"report_path" yaml:"report_path"`
}

type SessionConfig struct {
	DatabasePath         string `json:"database_path" yaml:"database_path"`
	CredentialKey        string `json:"credential_key" yaml:"credential_key"`
	LogoutOnUnauthorized bool   `json:"logout_on_unauthorized" yaml:"logout_on_unauthorized"`
}

type ReportConfig struct {
	OutputDir string `json:"output_dir" yaml:"output_dir"`
}

type HistoryConfig struct {
	TableLimit int `json:"table_limit" yaml:"table_limit"`
}

type ChartConfig struct {
	Width     int `json:"width" yaml:"width"`
	Height    int `json:"height" yaml:"height"`
	CacheSize int `json:"cache_size" yaml:"cache_size"`
}

type MetricsConfig struct {
	ListenAddr string `json:"listen_addr" yaml:"listen_addr"`
}

type LogConfig struct {
	Path  string `json:"path" yaml:"path"`
	Level string `json:"level" yaml:"level"`
}

type ClientConfig struct {
	Version string        `json:"version" yaml:"version"`
	API     APIConfig     `json:"api" yaml:"api"`
	Session SessionConfig `json:"session" yaml:"session"`
	Report  ReportConfig  `json:"report" yaml:"report"`
	History HistoryConfig `json:"history" yaml:"history"`
	Chart   ChartConfig   `json:"chart" yaml:"chart"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
	Log     LogConfig     `json:"log" yaml:"log"`
}

const (
	defaultConfigVersion     = "1.0.0"
	defaultRequestTimeoutSec = 30
	defaultLoginPath         = "/api/login/"
	defaultUploadPath        = "/api/upload/"
	defaultHistoryPath       = "/api/history/"
	defaultReportPath        = "/api/report/"
	defaultDatabasePath      = "./cheminsight.db"
	defaultCredentialKey     = "access_token"
	defaultReportOutputDir   = "."
	defaultHistoryTableLimit = 5
	defaultChartWidth        = 800
	defaultChartHeight       = 480
	defaultChartCacheSize    = 32
	defaultLogPath           = "./cheminsight.log"
	defaultLogLevel          = "info"

	// EnvAPIURL overrides api.base_url when set.
	EnvAPIURL = "CHEMINSIGHT_API_URL"
)

// DefaultClientConfig returns a config with every default applied.
func DefaultClientConfig() *ClientConfig {
	cfg := &ClientConfig{}
	cfg.API.BaseURL = "http://localhost:8000"
	cfg.applyDefaults()
	return cfg
}

// LoadClientConfig reads a JSON or YAML config file (chosen by extension),
// applies environment overrides and validates it.
func LoadClientConfig(path string) (*ClientConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg ClientConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if v := strings.TrimSpace(os.Getenv(EnvAPIURL)); v != "" {
		cfg.API.BaseURL = v
	}

	if err := validateClientConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// DefaultClientConfigFromEnv is the config used when no file exists: all
// defaults plus environment overrides.
func DefaultClientConfigFromEnv() (*ClientConfig, error) {
	cfg := DefaultClientConfig()
	if v := strings.TrimSpace(os.Getenv(EnvAPIURL)); v != "" {
		cfg.API.BaseURL = v
	}
	if err := validateClientConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateClientConfig(cfg *ClientConfig) error {
	cfg.applyDefaults()

	v, err := semver.NewVersion(cfg.Version)
	if err != nil {
		return fmt.Errorf("validation error: version %q is not a semantic version", cfg.Version)
	}
	c, err := semver.NewConstraint(SupportedVersions)
	if err != nil {
		return fmt.Errorf("validation error: invalid version constraint: %w", err)
	}
	if !c.Check(v) {
		return fmt.Errorf("validation error: config version %s is not supported (want %s)", cfg.Version, SupportedVersions)
	}

	if cfg.API.BaseURL == "" {
		return fmt.Errorf("validation error: api.base_url is required")
	}
	u, err := url.Parse(cfg.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("validation error: api.base_url must be an http(s) URL, got %q", cfg.API.BaseURL)
	}
	cfg.API.BaseURL = strings.TrimRight(cfg.API.BaseURL, "/")

	for name, p := range map[string]string{
		"api.login_path":   cfg.API.LoginPath,
		"api.upload_path":  cfg.API.UploadPath,
		"api.history_path": cfg.API.HistoryPath,
		"api.report_path":  cfg.API.ReportPath,
	} {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("validation error: %s must start with '/', got %q", name, p)
		}
	}
	if cfg.API.LogoutPath != "" && !strings.HasPrefix(cfg.API.LogoutPath, "/") {
		return fmt.Errorf("validation error: api.logout_path must start with '/', got %q", cfg.API.LogoutPath)
	}

	if cfg.History.TableLimit > 100 {
		return fmt.Errorf("validation error: history.table_limit must be at most 100, got %d", cfg.History.TableLimit)
	}

	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("validation error: log.level must be one of debug, info, warn, error, got %q", cfg.Log.Level)
	}

	return nil
}

func (cfg *ClientConfig) applyDefaults() {
	if cfg.Version == "" {
		cfg.Version = defaultConfigVersion
	}
	if cfg.API.RequestTimeoutSec <= 0 {
		cfg.API.RequestTimeoutSec = defaultRequestTimeoutSec
	}
	if cfg.API.LoginPath == "" {
		cfg.API.LoginPath = defaultLoginPath
	}
	if cfg.API.UploadPath == "" {
		cfg.API.UploadPath = defaultUploadPath
	}
	if cfg.API.HistoryPath == "" {
		cfg.API.HistoryPath = defaultHistoryPath
	}
	if cfg.API.ReportPath == "" {
		cfg.API.ReportPath = defaultReportPath
	}
	if cfg.Session.DatabasePath == "" {
		cfg.Session.DatabasePath = defaultDatabasePath
	}
	if cfg.Session.CredentialKey == "" {
		cfg.Session.CredentialKey = defaultCredentialKey
	}
	if cfg.Report.OutputDir == "" {
		cfg.Report.OutputDir = defaultReportOutputDir
	}
	if cfg.History.TableLimit <= 0 {
		cfg.History.TableLimit = defaultHistoryTableLimit
	}
	if cfg.Chart.Width <= 0 {
		cfg.Chart.Width = defaultChartWidth
	}
	if cfg.Chart.Height <= 0 {
		cfg.Chart.Height = defaultChartHeight
	}
	if cfg.Chart.CacheSize <= 0 {
		cfg.Chart.CacheSize = defaultChartCacheSize
	}
	if cfg.Log.Path == "" {
		cfg.Log.Path = defaultLogPath
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaultLogLevel
	}
}
