package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/envfriend/internal/dom"
	"github.com/eugenenazirov/envfriend/internal/fetcher"
)

const (
	defaultPort             = "8080"
	defaultRateLimitRPS     = 25.0
	defaultRateLimitBurst   = 50
	defaultFetchTimeout     = 10 * time.Second
	defaultDiagnosticsLimit = 1000
)

// Config aggregates runtime configuration resolved from multiple sources.
// Precedence: CLI flags > Environment variables > YAML config > Defaults
type Config struct {
	Port                 string
	ConfigHost           string
	GlobalEnvironment    string
	FetchTimeout         time.Duration
	DiagnosticsLimit     int
	LogLevel             string
	ShutdownGracePeriod  time.Duration
	ReadHeaderTimeout    time.Duration
	WriteTimeout         time.Duration
	IdleTimeout          time.Duration
	EnableRequestLogging bool
	RateLimitRPS         float64
	RateLimitBurst       int
	// CORSOrigins lists origins allowed credentialed cross-origin access.
	CORSOrigins []string
	// EnablePageMutations exposes the API calls that change state shared by
	// every visitor. Off by default.
	EnablePageMutations bool
	Site                SiteConfig
}

// SiteConfig describes an optional directory of HTML pages served with
// environment-specific elements injected.
type SiteConfig struct {
	Dir      string        `yaml:"dir"`
	Project  string        `yaml:"project"`
	Host     string        `yaml:"host"`
	Elements []dom.Element `yaml:"elements"`
}

// Enabled reports whether a site directory is configured.
func (s SiteConfig) Enabled() bool {
	return s.Dir != ""
}

// yamlConfig represents the YAML configuration file structure.
type yamlConfig struct {
	Port                 string        `yaml:"port"`
	ConfigHost           string        `yaml:"config_host"`
	GlobalEnvironment    string        `yaml:"global_environment"`
	FetchTimeout         string        `yaml:"fetch_timeout"`
	DiagnosticsLimit     int           `yaml:"diagnostics_limit"`
	LogLevel             string        `yaml:"log_level"`
	ShutdownGracePeriod  string        `yaml:"shutdown_grace_period"`
	ReadHeaderTimeout    string        `yaml:"read_header_timeout"`
	WriteTimeout         string        `yaml:"write_timeout"`
	IdleTimeout          string        `yaml:"idle_timeout"`
	EnableRequestLogging *bool         `yaml:"enable_request_logging"`
	EnablePageMutations  *bool         `yaml:"enable_page_mutations"`
	CORSOrigins          []string      `yaml:"cors_origins"`
	RateLimit            yamlRateLimit `yaml:"rate_limit"`
	Site                 SiteConfig    `yaml:"site"`
}

// yamlRateLimit represents the rate limit section in YAML.
type yamlRateLimit struct {
	RPS   *float64 `yaml:"rps"`
	Burst *int     `yaml:"burst"`
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	ConfigFile        string
	Port              *string
	ConfigHost        *string
	GlobalEnvironment *string
	LogLevel          *string
	SiteDir           *string
	SiteProject       *string
	RateLimitRPS      *float64
	RateLimitBurst    *int
}

// Load extracts configuration from multiple sources with precedence:
// CLI flags > Environment variables > YAML config > Defaults
func Load(overrides *CLIOverrides) (Config, error) {
	cfg := defaultConfig()

	// Load from YAML file if specified
	if overrides != nil && overrides.ConfigFile != "" {
		yamlCfg, err := loadFromFile(overrides.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
		if err := applyYAMLConfig(&cfg, yamlCfg); err != nil {
			return Config{}, fmt.Errorf("apply YAML config: %w", err)
		}
	}

	// Apply environment variables (override YAML)
	applyEnvConfig(&cfg)

	// Apply CLI overrides (highest precedence)
	if overrides != nil {
		applyCLIOverrides(&cfg, overrides)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with default values.
func defaultConfig() Config {
	return Config{
		Port:                 defaultPort,
		ConfigHost:           fetcher.DefaultHost,
		FetchTimeout:         defaultFetchTimeout,
		DiagnosticsLimit:     defaultDiagnosticsLimit,
		LogLevel:             "info",
		ShutdownGracePeriod:  10 * time.Second,
		ReadHeaderTimeout:    5 * time.Second,
		WriteTimeout:         15 * time.Second,
		IdleTimeout:          60 * time.Second,
		EnableRequestLogging: true,
		RateLimitRPS:         defaultRateLimitRPS,
		RateLimitBurst:       defaultRateLimitBurst,
	}
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(path string) (*yamlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	return &yamlCfg, nil
}

// applyYAMLConfig applies YAML configuration to the Config struct.
func applyYAMLConfig(cfg *Config, yamlCfg *yamlConfig) error {
	if yamlCfg.Port != "" {
		cfg.Port = yamlCfg.Port
	}
	if yamlCfg.ConfigHost != "" {
		cfg.ConfigHost = yamlCfg.ConfigHost
	}
	if yamlCfg.GlobalEnvironment != "" {
		cfg.GlobalEnvironment = yamlCfg.GlobalEnvironment
	}
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}
	if yamlCfg.DiagnosticsLimit > 0 {
		cfg.DiagnosticsLimit = yamlCfg.DiagnosticsLimit
	}

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"fetch_timeout", yamlCfg.FetchTimeout, &cfg.FetchTimeout},
		{"shutdown_grace_period", yamlCfg.ShutdownGracePeriod, &cfg.ShutdownGracePeriod},
		{"read_header_timeout", yamlCfg.ReadHeaderTimeout, &cfg.ReadHeaderTimeout},
		{"write_timeout", yamlCfg.WriteTimeout, &cfg.WriteTimeout},
		{"idle_timeout", yamlCfg.IdleTimeout, &cfg.IdleTimeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
		*d.dst = parsed
	}

	if yamlCfg.EnableRequestLogging != nil {
		cfg.EnableRequestLogging = *yamlCfg.EnableRequestLogging
	}
	if yamlCfg.EnablePageMutations != nil {
		cfg.EnablePageMutations = *yamlCfg.EnablePageMutations
	}
	if len(yamlCfg.CORSOrigins) > 0 {
		cfg.CORSOrigins = yamlCfg.CORSOrigins
	}
	if yamlCfg.RateLimit.RPS != nil && *yamlCfg.RateLimit.RPS >= 0 {
		cfg.RateLimitRPS = *yamlCfg.RateLimit.RPS
	}
	if yamlCfg.RateLimit.Burst != nil && *yamlCfg.RateLimit.Burst >= 0 {
		cfg.RateLimitBurst = *yamlCfg.RateLimit.Burst
	}

	cfg.Site = yamlCfg.Site
	return nil
}

// applyEnvConfig applies environment variable configuration.
func applyEnvConfig(cfg *Config) {
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		cfg.Port = port
	}

	if host := strings.TrimSpace(os.Getenv("ENVFRIEND_CONFIG_HOST")); host != "" {
		cfg.ConfigHost = host
	}

	if env := strings.TrimSpace(os.Getenv("ENVFRIEND_GLOBAL_ENVIRONMENT")); env != "" {
		cfg.GlobalEnvironment = env
	}

	if timeout := strings.TrimSpace(os.Getenv("ENVFRIEND_FETCH_TIMEOUT")); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil && d > 0 {
			cfg.FetchTimeout = d
		}
	}

	if level := strings.TrimSpace(os.Getenv("LOG_LEVEL")); level != "" {
		cfg.LogLevel = level
	}

	if origins := strings.TrimSpace(os.Getenv("CORS_ORIGINS")); origins != "" {
		cfg.CORSOrigins = splitList(origins)
	}

	if mutations := strings.TrimSpace(os.Getenv("ENABLE_PAGE_MUTATIONS")); mutations != "" {
		if value, err := strconv.ParseBool(mutations); err == nil {
			cfg.EnablePageMutations = value
		}
	}

	if rps := strings.TrimSpace(os.Getenv("RATE_LIMIT_RPS")); rps != "" {
		if value, err := strconv.ParseFloat(rps, 64); err == nil && value >= 0 {
			cfg.RateLimitRPS = value
		}
	}

	if burst := strings.TrimSpace(os.Getenv("RATE_LIMIT_BURST")); burst != "" {
		if value, err := strconv.Atoi(burst); err == nil && value >= 0 {
			cfg.RateLimitBurst = value
		}
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) {
	if overrides.Port != nil && *overrides.Port != "" {
		cfg.Port = *overrides.Port
	}
	if overrides.ConfigHost != nil && *overrides.ConfigHost != "" {
		cfg.ConfigHost = *overrides.ConfigHost
	}
	if overrides.GlobalEnvironment != nil && *overrides.GlobalEnvironment != "" {
		cfg.GlobalEnvironment = *overrides.GlobalEnvironment
	}
	if overrides.LogLevel != nil && *overrides.LogLevel != "" {
		cfg.LogLevel = *overrides.LogLevel
	}
	if overrides.SiteDir != nil && *overrides.SiteDir != "" {
		cfg.Site.Dir = *overrides.SiteDir
	}
	if overrides.SiteProject != nil && *overrides.SiteProject != "" {
		cfg.Site.Project = *overrides.SiteProject
	}
	if overrides.RateLimitRPS != nil && *overrides.RateLimitRPS >= 0 {
		cfg.RateLimitRPS = *overrides.RateLimitRPS
	}
	if overrides.RateLimitBurst != nil && *overrides.RateLimitBurst >= 0 {
		cfg.RateLimitBurst = *overrides.RateLimitBurst
	}
}

// validateConfig validates the final configuration.
func validateConfig(cfg Config) error {
	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be >= 0")
	}
	if cfg.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be >= 0")
	}
	if cfg.FetchTimeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive")
	}
	if err := validateHost(cfg.ConfigHost); err != nil {
		return fmt.Errorf("config host: %w", err)
	}
	if cfg.Site.Enabled() && cfg.Site.Project == "" {
		return fmt.Errorf("site project is required when site dir is set")
	}
	return nil
}

func validateHost(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%q must be an absolute http(s) URL", raw)
	}
	return nil
}
