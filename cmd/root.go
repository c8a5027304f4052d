// File: cmd/root.go
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/mqsim/internal/config"
	"github.com/xkilldash9x/mqsim/internal/observability"
)

type contextKey string

// configKey carries the loaded configuration through the command context.
const configKey contextKey = "config"

// NewRootCommand builds the base command with all subcommands attached. A
// fresh instance per execution keeps flag state from leaking between runs.
func NewRootCommand() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "mqsim",
		Short: "Preview responsive breakpoints without resizing a browser",
		Long: `mqsim fetches a page and its stylesheets, parses the @media blocks into
breakpoint rules, and re-applies the rules that match a simulated viewport
width as inline styles, so responsive behavior can be previewed or audited
headlessly.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				// Fall back to a usable logger so the error is visible.
				observability.InitializeLogger(config.LoggerConfig{
					Level: "info", Format: "console", ServiceName: "mqsim",
				})
				return err
			}
			observability.InitializeLogger(cfg.Logger())
			observability.GetLogger().Debug("Starting mqsim", zap.String("version", Version))

			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default mqsim.yaml in . or $HOME)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(newSimulateCmd())
	rootCmd.AddCommand(newRulesCmd())
	return rootCmd
}

// Execute runs the CLI with the given signal-aware context.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if logger := observability.GetLogger(); logger != nil {
			logger.Error("Command execution failed", zap.Error(err))
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		return err
	}
	return nil
}

// getConfigFromContext retrieves the configuration stored by the root
// command's PersistentPreRunE.
func getConfigFromContext(ctx context.Context) (config.Interface, error) {
	cfg, ok := ctx.Value(configKey).(config.Interface)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("configuration not found in command context")
	}
	return cfg, nil
}
