// File: cmd/root_test.go
package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot-cli/api/schemas"
	"github.com/xkilldash9x/pilot-cli/internal/config"
)

// writeConfig writes a config file whose log file lives in the test's temp dir.
func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	content := "logger:\n  level: error\n  log_file: " + filepath.Join(dir, "pilot.log") + "\n" + extra
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// executeCommand runs a fresh command tree and returns its combined output.
func executeCommand(t *testing.T, root *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(bytes.NewReader(nil))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// withProbe adds a subcommand that captures the loaded config.
func withProbe(root *cobra.Command, got **config.Config) *cobra.Command {
	probe := &cobra.Command{
		Use: "probe",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFromContext(cmd.Context())
			*got = cfg
			return err
		},
	}
	probe.Flags().Int("max-attempts", 0, "")
	root.AddCommand(probe)
	return root
}

func TestRootCmd_VersionFlag(t *testing.T) {
	out, err := executeCommand(t, NewRootCommand(), "--version")
	require.NoError(t, err)
	assert.Equal(t, Version+"\n", out)
}

func TestVersionCmd(t *testing.T) {
	out, err := executeCommand(t, NewRootCommand(), "version", "--config", "/does/not/exist.yaml")
	require.NoError(t, err, "version must not need a config")
	assert.Contains(t, out, "pilot "+Version)
}

func TestConfigLayering(t *testing.T) {
	path := writeConfig(t, "agent:\n  max_attempts: 6\nresolver:\n  max_iterations: 12\n")
	t.Setenv("PILOT_RESOLVER_MAX_DEPTH", "3")

	var cfg *config.Config
	_, err := executeCommand(t, withProbe(NewRootCommand(), &cfg), "probe", "--config", path)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 6, cfg.Agent.MaxAttempts, "file")
	assert.Equal(t, 12, cfg.Resolver.MaxIterations, "file")
	assert.Equal(t, 3, cfg.Resolver.MaxDepth, "environment")
	assert.Equal(t, 80, cfg.Resolver.TextLimit, "default")
}

func TestConfigLayering_FlagWins(t *testing.T) {
	path := writeConfig(t, "agent:\n  max_attempts: 6\n")
	t.Setenv("PILOT_AGENT_MAX_ATTEMPTS", "5")

	var cfg *config.Config
	_, err := executeCommand(t, withProbe(NewRootCommand(), &cfg), "probe", "--config", path, "--max-attempts", "2")
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Agent.MaxAttempts)
}

func TestConfigErrors(t *testing.T) {
	t.Run("missing explicit file", func(t *testing.T) {
		var cfg *config.Config
		_, err := executeCommand(t, withProbe(NewRootCommand(), &cfg), "probe", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorContains(t, err, "error reading config file")
		assert.Nil(t, cfg)
	})

	t.Run("invalid values", func(t *testing.T) {
		path := writeConfig(t, "agent:\n  max_attempts: 0\n")
		var cfg *config.Config
		_, err := executeCommand(t, withProbe(NewRootCommand(), &cfg), "probe", "--config", path)
		assert.ErrorContains(t, err, "agent.max_attempts must be a positive integer")
	})
}

func TestConfigFromContext_NotLoaded(t *testing.T) {
	_, err := configFromContext(context.Background())
	assert.EqualError(t, err, "configuration not loaded")
}

func TestInitializeConfig_UnchangedFlagsAreNotBound(t *testing.T) {
	c := &cobra.Command{Use: "x", Run: func(*cobra.Command, []string) {}}
	c.Flags().Bool("headless", false, "")
	require.NoError(t, c.ParseFlags(nil))

	v := viper.New()
	config.SetDefaults(v)
	require.NoError(t, initializeConfig(c, v, writeConfig(t, "browser:\n  headless: true\n")))
	assert.True(t, v.GetBool("browser.headless"))
}

func TestCapabilitiesCmd(t *testing.T) {
	path := writeConfig(t, "")

	t.Run("json", func(t *testing.T) {
		out, err := executeCommand(t, NewRootCommand(), "capabilities", "--config", path)
		require.NoError(t, err)
		assert.Contains(t, out, `"name": "open_url"`)
		assert.Contains(t, out, `"name": "find_element"`)
		assert.NotContains(t, out, "current_url")
	})

	t.Run("yaml", func(t *testing.T) {
		out, err := executeCommand(t, NewRootCommand(), "capabilities", "--config", path, "--format", "yaml")
		require.NoError(t, err)
		assert.Contains(t, out, "- name: click")
		assert.Contains(t, out, "required: true")
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := executeCommand(t, NewRootCommand(), "capabilities", "--config", path, "--format", "xml")
		assert.ErrorContains(t, err, `unsupported format "xml"`)
	})
}

func TestRunSession_OracleFailure(t *testing.T) {
	orig := newOracle
	t.Cleanup(func() { newOracle = orig })
	newOracle = func(ctx context.Context, cfg config.LLMRouterConfig, logger *zap.Logger) (schemas.LLMClient, error) {
		return nil, assert.AnError
	}

	err := runSession(context.Background(), *config.NewDefaultConfig(), bytes.NewReader(nil), &bytes.Buffer{})
	assert.ErrorIs(t, err, assert.AnError)
	assert.ErrorContains(t, err, "failed to create LLM client")
}
