// File: cmd/rules.go
package cmd

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/mqsim/internal/config"
	"github.com/xkilldash9x/mqsim/internal/css"
	"github.com/xkilldash9x/mqsim/internal/fetch"
	"github.com/xkilldash9x/mqsim/internal/observability"
)

// newFetchClient builds the stylesheet HTTP client from configuration.
func newFetchClient(cfg config.Interface, logger *zap.Logger) *fetch.Client {
	clientCfg := fetch.NewClientConfig()
	fc := cfg.Fetch()
	if fc.Timeout > 0 {
		clientCfg.RequestTimeout = fc.Timeout
	}
	if fc.MaxBodySize > 0 {
		clientCfg.MaxBodySize = fc.MaxBodySize
	}
	clientCfg.InsecureSkipVerify = fc.InsecureTLS
	clientCfg.RatePerSecond = fc.RatePerSecond
	clientCfg.UserAgent = fc.UserAgent
	return fetch.NewClient(clientCfg, logger)
}

// newRulesCmd creates and configures the `rules` command.
func newRulesCmd() *cobra.Command {
	var media string

	rulesCmd := &cobra.Command{
		Use:   "rules <stylesheet-url-or-file>",
		Short: "Parse one stylesheet and dump its breakpoint rules",
		Long: `Parses a single stylesheet (fetched over HTTP, or read from a local file)
and prints the extracted breakpoint rules and unconditional style as JSON.
Useful for checking which @media branches survive the supported-condition
filter.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}

			source := args[0]
			var text, srcURL string
			if u, uerr := url.Parse(source); uerr == nil && (u.Scheme == "http" || u.Scheme == "https") {
				client := newFetchClient(cfg, logger)
				text, err = client.FetchText(ctx, source)
				if err != nil {
					return err
				}
				srcURL = source
			} else {
				raw, rerr := os.ReadFile(source)
				if rerr != nil {
					return fmt.Errorf("reading %s: %w", source, rerr)
				}
				text = string(raw)
				if abs, aerr := filepath.Abs(source); aerr == nil {
					srcURL = "file://" + abs
				}
			}

			sheet := css.Parse(text, media, srcURL)
			logger.Debug("Stylesheet parsed",
				zap.String("source", source),
				zap.Int("rules", len(sheet.Rules)),
			)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(sheet)
		},
	}

	rulesCmd.Flags().StringVar(&media, "media", "", "declared media attribute of the owning link element")
	return rulesCmd
}
