// File: internal/config/config_test.go
package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 60*time.Second, cfg.Network.NavigationTimeout)
	assert.Equal(t, 4, cfg.Agent.MaxAttempts)
	assert.Equal(t, time.Duration(0), cfg.Agent.HumanWaitTimeout)
	assert.Equal(t, "gemini-2.5-flash", cfg.Agent.LLM.DefaultFastModel)
	assert.Equal(t, 2*time.Second, cfg.Agent.LLM.PacingDelay)
	assert.Equal(t, 60, cfg.Resolver.MaxIterations)
	assert.Equal(t, 5, cfg.Resolver.MaxDepth)
	assert.Equal(t, "html", cfg.Resolver.RootSelector)
	assert.Contains(t, cfg.Resolver.ExcludedTags, "script")

	assert.NoError(t, cfg.Validate(), "defaults must validate")
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	t.Run("Core Validation", func(t *testing.T) {
		cfg := NewDefaultConfig()

		invalidAttempts := *cfg
		invalidAttempts.Agent.MaxAttempts = 0
		err := invalidAttempts.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "agent.max_attempts must be a positive integer")

		negativeWait := *cfg
		negativeWait.Agent.HumanWaitTimeout = -time.Second
		err = negativeWait.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "agent.human_wait_timeout must not be negative")
	})

	t.Run("LLM Validation", func(t *testing.T) {
		valid := LLMRouterConfig{
			DefaultFastModel:     "fast",
			DefaultPowerfulModel: "slow",
			PacingDelay:          time.Second,
		}
		assert.NoError(t, valid.Validate())

		missingModel := valid
		missingModel.DefaultFastModel = ""
		assert.ErrorContains(t, missingModel.Validate(), "default_fast_model and default_powerful_model are required")

		negativePacing := valid
		negativePacing.PacingDelay = -time.Second
		assert.ErrorContains(t, negativePacing.Validate(), "pacing_delay must not be negative")

		badProvider := valid
		badProvider.Models = []LLMModelConfig{{Name: "x", Provider: "openai"}}
		assert.ErrorContains(t, badProvider.Validate(), "unsupported provider")

		unnamed := valid
		unnamed.Models = []LLMModelConfig{{Model: "gemini-2.5-pro"}}
		assert.ErrorContains(t, unnamed.Validate(), "models[0]: name is required")

		duplicate := valid
		duplicate.Models = []LLMModelConfig{{Name: "gemini-2.5-flash"}, {Name: "gemini-2.5-flash"}}
		assert.ErrorContains(t, duplicate.Validate(), `model "gemini-2.5-flash" is configured more than once`)
	})

	t.Run("Resolver Validation", func(t *testing.T) {
		valid := ResolverConfig{MaxIterations: 60, MaxDepth: 5, TextLimit: 80, RootSelector: "html"}
		assert.NoError(t, valid.Validate())

		noIterations := valid
		noIterations.MaxIterations = 0
		assert.ErrorContains(t, noIterations.Validate(), "max_iterations must be greater than 0")

		noDepth := valid
		noDepth.MaxDepth = -1
		assert.ErrorContains(t, noDepth.Validate(), "max_depth must be greater than 0")

		noRoot := valid
		noRoot.RootSelector = ""
		assert.ErrorContains(t, noRoot.Validate(), "root_selector is required")
	})
}

func TestModelFor(t *testing.T) {
	r := LLMRouterConfig{
		APIKey: "router-key",
		Models: []LLMModelConfig{
			{Name: "tuned", Model: "gemini-2.5-pro", Temperature: 0.2, APIKey: "own-key"},
		},
	}

	implicit := r.ModelFor("gemini-2.5-flash")
	assert.Equal(t, ProviderGemini, implicit.Provider)
	assert.Equal(t, "gemini-2.5-flash", implicit.Model)
	assert.Equal(t, "router-key", implicit.APIKey)

	explicit := r.ModelFor("tuned")
	assert.Equal(t, "gemini-2.5-pro", explicit.Model)
	assert.Equal(t, "own-key", explicit.APIKey)
	assert.InDelta(t, 0.2, explicit.Temperature, 1e-6)
}

// -- Factory Function Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("Successful Load from YAML", func(t *testing.T) {
		yamlBytes := []byte(`
agent:
  max_attempts: 6
resolver:
  max_iterations: 30
`)
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlBytes)))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, 6, cfg.Agent.MaxAttempts)
		assert.Equal(t, 30, cfg.Resolver.MaxIterations)
		// Defaults survive alongside file values.
		assert.Equal(t, 5, cfg.Resolver.MaxDepth)
	})

	t.Run("Validation Failure", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("resolver.max_iterations", 0)

		cfg, err := NewConfigFromViper(v)
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "invalid configuration")
		assert.Contains(t, err.Error(), "max_iterations must be greater than 0")
	})

	t.Run("Environment Variable Binding", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		t.Setenv("PILOT_GEMINI_API_KEY", "")
		t.Setenv("GEMINI_API_KEY", "env-key-123")

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "env-key-123", cfg.Agent.LLM.APIKey)
	})

	t.Run("Home Directory Expansion", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("browser.user_data_dir", "~/profiles/pilot")

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		home, err := homedir.Dir()
		require.NoError(t, err)
		assert.Equal(t, home+"/profiles/pilot", cfg.Browser.UserDataDir)
		assert.NotContains(t, cfg.Logger.LogFile, "~")
	})
}

// -- Struct and Mapping Tests --

func TestConfigStructureMapping(t *testing.T) {
	yamlInput := `
logger:
  level: debug
  log_file: /var/log/pilot.log
network:
  navigation_timeout: 5s
agent:
  llm:
    models:
      - name: gemini-2.5-flash
        temperature: 0.4
resolver:
  excluded_tags: ["script", "canvas"]
`
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewBufferString(yamlInput)))

	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))

	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "/var/log/pilot.log", cfg.Logger.LogFile)
	assert.Equal(t, 5*time.Second, cfg.Network.NavigationTimeout)
	assert.Equal(t, []string{"script", "canvas"}, cfg.Resolver.ExcludedTags)
	require.Len(t, cfg.Agent.LLM.Models, 1)
	assert.InDelta(t, 0.4, cfg.Agent.LLM.ModelFor("gemini-2.5-flash").Temperature, 1e-6)
}

func TestConfigStructureMapping_DottedModelNames(t *testing.T) {
	yamlInput := `
agent:
  llm:
    api_key: shared
    default_fast_model: gemini-2.5-flash
    models:
      - name: gemini-2.5-flash
        temperature: 0.4
        top_k: 8
      - name: gemini-2.5-pro
        model: gemini-2.5-pro-preview
`
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewBufferString(yamlInput)))

	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))
	require.NoError(t, cfg.Agent.LLM.Validate())

	flash := cfg.Agent.LLM.ModelFor(cfg.Agent.LLM.DefaultFastModel)
	assert.Equal(t, "gemini-2.5-flash", flash.Model)
	assert.InDelta(t, 0.4, flash.Temperature, 1e-6)
	assert.Equal(t, 8, flash.TopK)
	assert.Equal(t, "shared", flash.APIKey)

	pro := cfg.Agent.LLM.ModelFor("gemini-2.5-pro")
	assert.Equal(t, "gemini-2.5-pro-preview", pro.Model)

	// "gemini-2" would appear here if the name had been split on its dot.
	assert.NotContains(t, v.AllKeys(), "agent.llm.models.gemini-2")
}
