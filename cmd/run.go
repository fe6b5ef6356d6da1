// File: cmd/run.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot-cli/internal/agent"
	"github.com/xkilldash9x/pilot-cli/internal/browser"
	"github.com/xkilldash9x/pilot-cli/internal/capability"
	"github.com/xkilldash9x/pilot-cli/internal/config"
	"github.com/xkilldash9x/pilot-cli/internal/console"
	"github.com/xkilldash9x/pilot-cli/internal/llmclient"
	"github.com/xkilldash9x/pilot-cli/internal/observability"
	"github.com/xkilldash9x/pilot-cli/internal/resolver"
)

const shutdownTimeout = 10 * time.Second

// newOracle is replaced in tests.
var newOracle = llmclient.NewClient

func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Starts an interactive session: describe a task and watch the browser carry it out",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFromContext(cmd.Context())
			if err != nil {
				return err
			}
			return runSession(cmd.Context(), *cfg, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	runCmd.Flags().Bool("headless", false, "run Chrome without a window")
	runCmd.Flags().Int("max-attempts", 0, "override agent.max_attempts")
	return runCmd
}

// runSession wires the oracle, one browser tab, the capability registry and
// the console into an agent and runs it until the operator quits or ctx ends.
func runSession(ctx context.Context, cfg config.Config, in io.Reader, out io.Writer) (err error) {
	logger := observability.GetLogger()
	defer observability.Sync()

	oracle, err := newOracle(ctx, cfg.Agent.LLM, logger)
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}
	defer func() {
		if cerr := oracle.Close(); cerr != nil {
			logger.Warn("Failed to close LLM client", zap.Error(cerr))
		}
	}()

	manager := browser.NewManager(cfg, logger)
	defer func() {
		// The run context may already be canceled; shutdown gets its own budget.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if serr := manager.Shutdown(shutdownCtx); serr != nil {
			logger.Warn("Browser shutdown incomplete", zap.Error(serr))
		}
	}()

	session, err := manager.NewSession(ctx)
	if err != nil {
		return fmt.Errorf("failed to start browser session: %w", err)
	}

	res := resolver.New(oracle, session, resolver.OptionsFromConfig(cfg.Resolver), logger)
	registry, err := newRegistry(session, res)
	if err != nil {
		return err
	}

	con := console.New(in, out)
	defer con.Close()

	logger.Info("Session ready",
		zap.String("session_id", session.ID()),
		zap.Strings("capabilities", registry.Names()))

	err = agent.New(oracle, registry, con, cfg.Agent, logger).Run(ctx)
	if errors.Is(err, context.Canceled) {
		con.Warn("Interrupted, shutting down.")
	}
	return err
}

// newRegistry builds the closed capability set: the browser table bound to
// page plus find_element backed by res.
func newRegistry(page browser.Page, res *resolver.Resolver) (*capability.Registry, error) {
	specs := append(browser.Capabilities(page), resolver.FindElementSpec(res))
	registry, err := capability.NewRegistry(specs...)
	if err != nil {
		return nil, fmt.Errorf("failed to build capability registry: %w", err)
	}
	return registry, nil
}
