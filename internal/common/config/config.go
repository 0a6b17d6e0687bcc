// Package config provides configuration management for Maestro.
// It supports loading configuration from environment variables, config files, and defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration sections for Maestro.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Workspace WorkspaceConfig `mapstructure:"workspace"`
	Policy    PolicyConfig    `mapstructure:"policy"`
	Live      LiveConfig      `mapstructure:"live"`
	Claims    ClaimsConfig    `mapstructure:"claims"`
	Adapters  AdaptersConfig  `mapstructure:"adapters"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"readTimeout"`  // in seconds
	WriteTimeout int    `mapstructure:"writeTimeout"` // in seconds
}

// NATSConfig holds NATS messaging configuration.
// An empty URL selects the in-memory event bus.
type NATSConfig struct {
	URL           string `mapstructure:"url"`
	ClientID      string `mapstructure:"clientId"`
	MaxReconnects int    `mapstructure:"maxReconnects"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"outputPath"`
}

// WorkspaceConfig holds workspace provider configuration.
type WorkspaceConfig struct {
	// Root is the directory per-session workspaces are allocated under.
	// Empty means the OS temp directory.
	Root string `mapstructure:"root"`

	// CleanupOnTeardown removes provider-created workspaces when the
	// owning session is torn down.
	CleanupOnTeardown bool `mapstructure:"cleanupOnTeardown"`
}

// PolicyConfig holds policy profile configuration.
type PolicyConfig struct {
	// ProfilesFile is an optional yaml file with named policy profiles.
	ProfilesFile string `mapstructure:"profilesFile"`

	// DefaultProfile names the profile applied to sessions that do not
	// carry one.
	DefaultProfile string `mapstructure:"defaultProfile"`

	// GlobalCallsPerMinute / GlobalBurst configure the process-wide
	// rate-limit bucket. Zero values disable the global bucket.
	GlobalCallsPerMinute int `mapstructure:"globalCallsPerMinute"`
	GlobalBurst          int `mapstructure:"globalBurst"`
}

// LiveConfig gates real-world side effects of adapters.
type LiveConfig struct {
	DryRun    bool `mapstructure:"dryRun"`
	AllowPush bool `mapstructure:"allowPush"`
}

// ClaimsConfig holds work-item claim manager configuration.
type ClaimsConfig struct {
	DefaultClaimTimeout           int  `mapstructure:"defaultClaimTimeout"` // in seconds
	MaxConcurrentClaimsPerAgent   int  `mapstructure:"maxConcurrentClaimsPerAgent"`
	MaxConcurrentClaimsPerSession int  `mapstructure:"maxConcurrentClaimsPerSession"`
	RenewalWindow                 int  `mapstructure:"renewalWindow"` // in seconds
	AutoReleaseOnInactivity       bool `mapstructure:"autoReleaseOnInactivity"`
}

// AdaptersConfig selects the adapter set by registry name; registration
// order defines dispatch priority.
type AdaptersConfig struct {
	VCSAdapter       string `mapstructure:"vcsAdapter"`
	WorkItemsAdapter string `mapstructure:"workItemsAdapter"`
	BuildAdapter     string `mapstructure:"buildAdapter"`
	TerminalAdapter  string `mapstructure:"terminalAdapter"`
}

// PipelineConfig holds command pipeline configuration.
type PipelineConfig struct {
	// CommandTimeout is the wall-clock ceiling for a dispatched command,
	// in seconds. A command without a terminal completion within it is
	// failed with "timeout".
	CommandTimeout int `mapstructure:"commandTimeout"`

	// SubscriberBuffer is the bounded per-subscriber event queue size.
	SubscriberBuffer int `mapstructure:"subscriberBuffer"`
}

// ArchiveConfig holds the transcript archive configuration.
type ArchiveConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"` // sqlite database file
}

// ReadTimeoutDuration returns the read timeout as a time.Duration.
func (s *ServerConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// WriteTimeoutDuration returns the write timeout as a time.Duration.
func (s *ServerConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

// DefaultClaimTimeoutDuration returns the default claim timeout as a time.Duration.
func (c *ClaimsConfig) DefaultClaimTimeoutDuration() time.Duration {
	return time.Duration(c.DefaultClaimTimeout) * time.Second
}

// RenewalWindowDuration returns the renewal window as a time.Duration.
func (c *ClaimsConfig) RenewalWindowDuration() time.Duration {
	return time.Duration(c.RenewalWindow) * time.Second
}

// CommandTimeoutDuration returns the command wall-clock ceiling as a time.Duration.
func (p *PipelineConfig) CommandTimeoutDuration() time.Duration {
	return time.Duration(p.CommandTimeout) * time.Second
}

// detectDefaultLogFormat returns the appropriate log format based on environment.
// Returns "json" if running in Kubernetes or other production environments.
// Returns "text" for terminal/development use (human-readable console format).
func detectDefaultLogFormat() string {
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return "json"
	}
	if env := os.Getenv("MAESTRO_ENV"); env == "production" || env == "prod" {
		return "json"
	}
	return "text"
}

// setDefaults configures default values for all configuration options.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8084)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)

	// NATS defaults - empty URL means use in-memory event bus
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.clientId", "maestro-orchestrator")
	v.SetDefault("nats.maxReconnects", 10)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", detectDefaultLogFormat())
	v.SetDefault("logging.outputPath", "stdout")

	// Workspace defaults - empty root means OS temp
	v.SetDefault("workspace.root", "")
	v.SetDefault("workspace.cleanupOnTeardown", true)

	// Policy defaults - no global bucket unless configured
	v.SetDefault("policy.profilesFile", "")
	v.SetDefault("policy.defaultProfile", "default")
	v.SetDefault("policy.globalCallsPerMinute", 0)
	v.SetDefault("policy.globalBurst", 0)

	// Live policy defaults: simulate everything, push nothing
	v.SetDefault("live.dryRun", true)
	v.SetDefault("live.allowPush", false)

	// Claim manager defaults
	v.SetDefault("claims.defaultClaimTimeout", 7200) // 2h
	v.SetDefault("claims.maxConcurrentClaimsPerAgent", 3)
	v.SetDefault("claims.maxConcurrentClaimsPerSession", 5)
	v.SetDefault("claims.renewalWindow", 1800) // 30m
	v.SetDefault("claims.autoReleaseOnInactivity", true)

	// Adapter registry defaults
	v.SetDefault("adapters.vcsAdapter", "vcs")
	v.SetDefault("adapters.workItemsAdapter", "tracker")
	v.SetDefault("adapters.buildAdapter", "build")
	v.SetDefault("adapters.terminalAdapter", "")

	// Pipeline defaults
	v.SetDefault("pipeline.commandTimeout", 120)
	v.SetDefault("pipeline.subscriberBuffer", 256)

	// Archive defaults
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.path", "maestro-archive.db")
}

// Load reads configuration from environment variables, config file, and defaults.
// Environment variables use the prefix MAESTRO_ with snake_case naming.
// Config file should be named config.yaml and placed in the current directory or /etc/maestro/.
func Load() (*Config, error) {
	return LoadWithPath("")
}

// LoadWithPath reads configuration from the specified path or default locations.
func LoadWithPath(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("MAESTRO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/maestro/")

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// validate checks that all required configuration fields are set.
func validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, "logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(cfg.Logging.Format)] {
		errs = append(errs, "logging.format must be one of: json, text")
	}

	if cfg.Claims.MaxConcurrentClaimsPerAgent <= 0 {
		errs = append(errs, "claims.maxConcurrentClaimsPerAgent must be positive")
	}
	if cfg.Claims.MaxConcurrentClaimsPerSession <= 0 {
		errs = append(errs, "claims.maxConcurrentClaimsPerSession must be positive")
	}
	if cfg.Claims.DefaultClaimTimeout <= 0 {
		errs = append(errs, "claims.defaultClaimTimeout must be positive")
	}

	if cfg.Pipeline.CommandTimeout <= 0 {
		errs = append(errs, "pipeline.commandTimeout must be positive")
	}
	if cfg.Pipeline.SubscriberBuffer <= 0 {
		errs = append(errs, "pipeline.subscriberBuffer must be positive")
	}

	if cfg.Policy.GlobalCallsPerMinute < 0 || cfg.Policy.GlobalBurst < 0 {
		errs = append(errs, "policy global limits must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}

	return nil
}
