// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Network  NetworkConfig  `mapstructure:"network" yaml:"network"`
	Agent    AgentConfig    `mapstructure:"agent" yaml:"agent"`
	Resolver ResolverConfig `mapstructure:"resolver" yaml:"resolver"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the controlled Chrome instance.
type BrowserConfig struct {
	Headless    bool           `mapstructure:"headless" yaml:"headless"`
	DisableGPU  bool           `mapstructure:"disable_gpu" yaml:"disable_gpu"`
	ExecPath    string         `mapstructure:"exec_path" yaml:"exec_path"`
	UserDataDir string         `mapstructure:"user_data_dir" yaml:"user_data_dir"`
	Args        []string       `mapstructure:"args" yaml:"args"`
	Viewport    map[string]int `mapstructure:"viewport" yaml:"viewport"`
	Debug       bool           `mapstructure:"debug" yaml:"debug"`
}

// NetworkConfig tunes page loading and per-action timeouts.
type NetworkConfig struct {
	NavigationTimeout time.Duration     `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	ActionTimeout     time.Duration     `mapstructure:"action_timeout" yaml:"action_timeout"`
	PostLoadWait      time.Duration     `mapstructure:"post_load_wait" yaml:"post_load_wait"`
	Headers           map[string]string `mapstructure:"headers" yaml:"headers"`
}

// AgentConfig holds settings for the orchestrator and its oracle.
type AgentConfig struct {
	// MaxAttempts bounds the oracle round-trips spent on a single goal.
	MaxAttempts int `mapstructure:"max_attempts" yaml:"max_attempts"`
	// HumanWaitTimeout bounds a human handoff. Zero waits forever.
	HumanWaitTimeout time.Duration   `mapstructure:"human_wait_timeout" yaml:"human_wait_timeout"`
	LLM              LLMRouterConfig `mapstructure:"llm" yaml:"llm"`
}

// ResolverConfig tunes the selector search.
type ResolverConfig struct {
	MaxIterations int      `mapstructure:"max_iterations" yaml:"max_iterations"`
	MaxDepth      int      `mapstructure:"max_depth" yaml:"max_depth"`
	TextLimit     int      `mapstructure:"text_limit" yaml:"text_limit"`
	RootSelector  string   `mapstructure:"root_selector" yaml:"root_selector"`
	ExcludedTags  []string `mapstructure:"excluded_tags" yaml:"excluded_tags"`
}

// LLMProvider defines the supported LLM providers.
type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
)

// LLMRouterConfig configures the model routing logic.
type LLMRouterConfig struct {
	DefaultFastModel     string        `mapstructure:"default_fast_model" yaml:"default_fast_model"`
	DefaultPowerfulModel string        `mapstructure:"default_powerful_model" yaml:"default_powerful_model"`
	APIKey               string        `mapstructure:"api_key" yaml:"-"`
	PacingDelay          time.Duration `mapstructure:"pacing_delay" yaml:"pacing_delay"`
	RequestsPerMinute    int           `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	// Models is keyed by Name. Model names contain dots, which viper treats
	// as key separators, so this cannot be a map.
	Models []LLMModelConfig `mapstructure:"models" yaml:"models"`
}

// LLMModelConfig defines the configuration for a single LLM. Name is what
// default_fast_model and default_powerful_model refer to.
type LLMModelConfig struct {
	Name          string            `mapstructure:"name" yaml:"name"`
	Provider      LLMProvider       `mapstructure:"provider" yaml:"provider"`
	Model         string            `mapstructure:"model" yaml:"model"`
	APIKey        string            `mapstructure:"api_key" yaml:"-"`
	APITimeout    time.Duration     `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature   float32           `mapstructure:"temperature" yaml:"temperature"`
	TopP          float32           `mapstructure:"top_p" yaml:"top_p"`
	TopK          int               `mapstructure:"top_k" yaml:"top_k"`
	MaxTokens     int               `mapstructure:"max_tokens" yaml:"max_tokens"`
	SafetyFilters map[string]string `mapstructure:"safety_filters" yaml:"safety_filters"`
}

// ModelFor resolves the settings for a named model. Models without an explicit
// entry get Gemini defaults. The router-level API key fills any blank key.
func (c LLMRouterConfig) ModelFor(name string) LLMModelConfig {
	mc := LLMModelConfig{Name: name, Provider: ProviderGemini}
	for _, m := range c.Models {
		if m.Name == name {
			mc = m
			break
		}
	}
	if mc.Model == "" {
		mc.Model = name
	}
	if mc.Provider == "" {
		mc.Provider = ProviderGemini
	}
	if mc.APIKey == "" {
		mc.APIKey = c.APIKey
	}
	return mc
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "pilot")
	v.SetDefault("logger.log_file", "~/.pilot/pilot.log")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- Browser --
	// The operator watches the page during handoffs, so a visible window is the default.
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.disable_gpu", false)
	v.SetDefault("browser.viewport", map[string]int{"width": 1366, "height": 900})

	// -- Network --
	v.SetDefault("network.navigation_timeout", "60s")
	v.SetDefault("network.action_timeout", "30s")
	v.SetDefault("network.post_load_wait", "1s")

	// -- Agent --
	v.SetDefault("agent.max_attempts", 4)
	v.SetDefault("agent.human_wait_timeout", "0s")
	v.SetDefault("agent.llm.default_fast_model", "gemini-2.5-flash")
	v.SetDefault("agent.llm.default_powerful_model", "gemini-2.5-flash")
	v.SetDefault("agent.llm.pacing_delay", "2s")
	v.SetDefault("agent.llm.requests_per_minute", 0)

	// -- Resolver --
	v.SetDefault("resolver.max_iterations", 60)
	v.SetDefault("resolver.max_depth", 5)
	v.SetDefault("resolver.text_limit", 80)
	v.SetDefault("resolver.root_selector", "html")
	v.SetDefault("resolver.excluded_tags", []string{
		"script", "style", "noscript", "template", "link", "meta", "svg", "path",
		"iframe", "next-route-announcer", "grammarly-desktop-integration",
	})
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data
	if err := v.BindEnv("agent.llm.api_key", "PILOT_GEMINI_API_KEY", "GEMINI_API_KEY"); err != nil {
		return nil, fmt.Errorf("error binding api key env: %w", err)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// expandPaths resolves a leading ~ in file system settings.
func (c *Config) expandPaths() error {
	var err error
	if c.Logger.LogFile, err = homedir.Expand(c.Logger.LogFile); err != nil {
		return fmt.Errorf("invalid logger.log_file: %w", err)
	}
	if c.Browser.UserDataDir, err = homedir.Expand(c.Browser.UserDataDir); err != nil {
		return fmt.Errorf("invalid browser.user_data_dir: %w", err)
	}
	if c.Browser.ExecPath, err = homedir.Expand(c.Browser.ExecPath); err != nil {
		return fmt.Errorf("invalid browser.exec_path: %w", err)
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Agent.MaxAttempts <= 0 {
		return fmt.Errorf("agent.max_attempts must be a positive integer")
	}
	if c.Agent.HumanWaitTimeout < 0 {
		return fmt.Errorf("agent.human_wait_timeout must not be negative")
	}
	if err := c.Agent.LLM.Validate(); err != nil {
		return fmt.Errorf("agent.llm configuration invalid: %w", err)
	}
	if err := c.Resolver.Validate(); err != nil {
		return fmt.Errorf("resolver configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the router settings.
func (l *LLMRouterConfig) Validate() error {
	if l.DefaultFastModel == "" || l.DefaultPowerfulModel == "" {
		return fmt.Errorf("default_fast_model and default_powerful_model are required")
	}
	if l.PacingDelay < 0 {
		return fmt.Errorf("pacing_delay must not be negative")
	}
	if l.RequestsPerMinute < 0 {
		return fmt.Errorf("requests_per_minute must not be negative")
	}
	seen := make(map[string]bool, len(l.Models))
	for i, m := range l.Models {
		if m.Name == "" {
			return fmt.Errorf("models[%d]: name is required", i)
		}
		if seen[m.Name] {
			return fmt.Errorf("model %q is configured more than once", m.Name)
		}
		seen[m.Name] = true
		if m.Provider != "" && m.Provider != ProviderGemini {
			return fmt.Errorf("model %q: unsupported provider %q", m.Name, m.Provider)
		}
	}
	return nil
}

// Validate checks the ResolverConfig settings.
func (r *ResolverConfig) Validate() error {
	if r.MaxIterations <= 0 {
		return fmt.Errorf("max_iterations must be greater than 0")
	}
	if r.MaxDepth <= 0 {
		return fmt.Errorf("max_depth must be greater than 0")
	}
	if r.TextLimit <= 0 {
		return fmt.Errorf("text_limit must be greater than 0")
	}
	if r.RootSelector == "" {
		return fmt.Errorf("root_selector is required")
	}
	return nil
}
