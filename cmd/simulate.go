// File: cmd/simulate.go
package cmd

import (
	"fmt"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/mqsim/internal/dom"
	"github.com/xkilldash9x/mqsim/internal/observability"
	"github.com/xkilldash9x/mqsim/internal/simulate"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// widthReport is one entry of the --json output: what a single simulated
// width did to the page.
type widthReport struct {
	Width          int    `json:"width"`
	PassID         string `json:"pass_id"`
	SheetsCached   int    `json:"sheets_cached"`
	StylesInjected int    `json:"styles_injected"`
	RulesMatched   int    `json:"rules_matched"`
}

// newSimulateCmd creates and configures the `simulate` command.
func newSimulateCmd() *cobra.Command {
	var (
		width      int
		outPath    string
		asJSON     bool
		ignore     []string
		reparse    []string
		insecure   bool
		userAgent  string
	)

	simulateCmd := &cobra.Command{
		Use:   "simulate <page-url>",
		Short: "Fetch a page and apply its breakpoint rules at a simulated width",
		Long: `Fetches the page, discovers its stylesheet links, parses their @media
blocks and rewrites the document so the rules matching the simulated width
are applied inline. With --json a per-width report is emitted instead of the
rewritten document. Without --width, every width from the configured sweep is
simulated in turn and the document reflects the last one.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			if insecure {
				cfg.SetFetchInsecureTLS(true)
			}
			if userAgent != "" {
				cfg.SetFetchUserAgent(userAgent)
			}

			pageURL := args[0]
			client := newFetchClient(cfg, logger)

			pageHTML, err := client.FetchText(ctx, pageURL)
			if err != nil {
				return fmt.Errorf("fetching page: %w", err)
			}
			doc, err := dom.Parse(strings.NewReader(pageHTML), pageURL)
			if err != nil {
				return err
			}

			sim := simulate.New(doc, client, cfg.Simulate(), logger)
			sim.Ignore(ignore...)
			sim.Reparse(reparse...)

			var reports []widthReport
			var current int
			sim.SetOnApplied(func(p simulate.Pass) {
				if !p.Active {
					return
				}
				reports = append(reports, widthReport{
					Width:          current,
					PassID:         p.ID,
					SheetsCached:   p.SheetsCached,
					StylesInjected: p.StylesInjected,
					RulesMatched:   p.RulesMatched,
				})
			})

			widths := cfg.Simulate().Widths
			if width > 0 {
				widths = []int{width}
			}
			if len(widths) == 0 {
				return fmt.Errorf("no widths to simulate; pass --width or configure simulate.widths")
			}

			for _, w := range widths {
				current = w
				if err := sim.Update(ctx, w); err != nil {
					return fmt.Errorf("simulating width %d: %w", w, err)
				}
				logger.Debug("Width simulated", zap.Int("width", w))
			}

			out := cmd.OutOrStdout()
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(reports)
			}
			return doc.Render(out)
		},
	}

	simulateCmd.Flags().IntVarP(&width, "width", "w", 0, "viewport width in px to simulate (0 = configured sweep)")
	simulateCmd.Flags().StringVarP(&outPath, "out", "o", "", "write output to file instead of stdout")
	simulateCmd.Flags().BoolVar(&asJSON, "json", false, "emit a per-width JSON report instead of the document")
	simulateCmd.Flags().StringSliceVar(&ignore, "ignore", nil, "URL substrings of stylesheets to leave untouched")
	simulateCmd.Flags().StringSliceVar(&reparse, "reparse", nil, "URL substrings of stylesheets to refetch on every pass")
	simulateCmd.Flags().BoolVar(&insecure, "insecure", false, "skip TLS certificate verification")
	simulateCmd.Flags().StringVar(&userAgent, "user-agent", "", "override the request User-Agent")

	return simulateCmd
}
