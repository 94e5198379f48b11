package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

// addHelpCommands adds help and documentation commands.
func addHelpCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newCommandsCmd(app))
	rootCmd.AddCommand(newExamplesCmd(app))
	rootCmd.AddCommand(newQuickstartCmd(app))
}

type helpEntry struct {
	cmd  string
	desc string
}

func newCommandsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "commands",
		Short: "List all commands by category",
		Long:  "Display all available commands organized by category.",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			output.Bold("Basket Index Commands")
			output.Println()

			categories := []struct {
				name     string
				commands []helpEntry
			}{
				{
					name: "Index",
					commands: []helpEntry{
						{"baskets", "List configured baskets"},
						{"chart <basket>", "Base-100 index series vs benchmark"},
						{"chart --tickers A,B,C", "Index over an ad-hoc basket"},
						{"composition <basket>", "Constituent weights and valuation"},
						{"risk <basket>", "Annualized volatility and max drawdown"},
					},
				},
				{
					name: "Fundamentals",
					commands: []helpEntry{
						{"fundamentals sync <basket...>", "Refresh the static table from Yahoo"},
						{"fundamentals list", "Show stored share counts"},
						{"fundamentals import <file>", "Load a YAML seed file"},
						{"fundamentals invalidate <basket>", "Drop cached fundamentals"},
					},
				},
				{
					name: "Server",
					commands: []helpEntry{
						{"serve", "JSON API for the dashboard"},
					},
				},
				{
					name: "Utilities",
					commands: []helpEntry{
						{"config show/path/validate", "Configuration"},
						{"version", "Version information"},
					},
				},
				{
					name: "Help",
					commands: []helpEntry{
						{"help <command>", "Detailed help"},
						{"commands", "List all commands"},
						{"examples", "Common workflows"},
						{"quickstart", "New user guide"},
					},
				},
			}

			for _, cat := range categories {
				output.Bold("%s", cat.name)
				for _, c := range cat.commands {
					output.Printf("  %-34s %s\n", output.Cyan(c.cmd), c.desc)
				}
				output.Println()
			}

			output.Dim("Use 'basketindex help <command>' for detailed help on any command")

			return nil
		},
	}
}

func newExamplesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "examples",
		Short: "Show common workflow examples",
		Long:  "Display examples of common index workflows.",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			output.Bold("Common Workflow Examples")
			output.Println()

			examples := []struct {
				title    string
				commands []string
			}{
				{
					title: "Track a Basket",
					commands: []string{
						"basketindex baskets                       # What is configured",
						"basketindex chart startup                 # Full range vs NIFTY 50",
						"basketindex chart startup --timeframe 1M  # Last month, rebased to 100",
						"basketindex composition startup           # Who drives the index",
					},
				},
				{
					title: "Compare Benchmarks",
					commands: []string{
						"basketindex chart green --benchmark ^BSESN",
						"basketindex chart green --benchmark none  # Index only",
					},
				},
				{
					title: "Ad-hoc Basket",
					commands: []string{
						"basketindex chart --tickers SWIGGY.NS,ZOMATO.NS --start 2025-01-01",
						"basketindex risk --tickers SWIGGY.NS,ZOMATO.NS --json",
					},
				},
				{
					title: "Offline Share Counts",
					commands: []string{
						"basketindex fundamentals import seed.yaml # Load known share counts",
						"basketindex fundamentals sync --all       # Refresh from Yahoo",
						"basketindex fundamentals list --missing   # Tickers still without shares",
					},
				},
				{
					title: "Run the API",
					commands: []string{
						"basketindex serve --addr :8080",
						"curl localhost:8080/api/baskets/startup/chart?timeframe=YTD",
						"curl localhost:8080/metrics",
					},
				},
			}

			for _, ex := range examples {
				output.Bold("%s", ex.title)
				for _, c := range ex.commands {
					parts := strings.SplitN(c, "#", 2)
					if len(parts) == 2 {
						output.Printf("  %s %s\n", output.Cyan(strings.TrimSpace(parts[0])), output.DimText(strings.TrimSpace(parts[1])))
					} else {
						output.Printf("  %s\n", output.Cyan(c))
					}
				}
				output.Println()
			}

			return nil
		},
	}
}

func newQuickstartCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "quickstart",
		Short: "New user guide",
		Long:  "Step-by-step guide for new users.",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			output.Bold("Basket Index - Quick Start Guide")
			output.Println()

			steps := []struct {
				step  int
				title string
				desc  string
				cmd   string
			}{
				{
					step:  1,
					title: "Locate the Configuration",
					desc:  "Baskets and providers live in config.toml in the config directory.",
					cmd:   "basketindex config path",
				},
				{
					step:  2,
					title: "Define a Basket",
					desc:  "Add a [baskets.<name>] table with a tickers list and an optional benchmark.",
					cmd:   "basketindex config validate",
				},
				{
					step:  3,
					title: "Chart It",
					desc:  "Compute the index from the default start date to today.",
					cmd:   "basketindex chart <name>",
				},
				{
					step:  4,
					title: "Keep Share Counts Offline",
					desc:  "Set provider.fundamentals = \"static\" after syncing to avoid live lookups.",
					cmd:   "basketindex fundamentals sync <name>",
				},
				{
					step:  5,
					title: "Serve the Dashboard API",
					desc:  "Expose charts, composition and risk over HTTP.",
					cmd:   "basketindex serve",
				},
			}

			for _, s := range steps {
				output.Printf("%s Step %d: %s\n", output.Cyan("→"), s.step, output.BoldText(s.title))
				output.Printf("  %s\n", s.desc)
				output.Printf("  %s\n\n", output.DimText(s.cmd))
			}

			output.Bold("Configuration Files")
			output.Println()
			output.Printf("  %s - Baskets, providers, cache and server settings\n", output.Cyan("config.toml"))
			output.Printf("  %s - Kite Connect API key and access token\n", output.Cyan("credentials.toml"))
			output.Printf("  %s - Static fundamentals table\n", output.Cyan("fundamentals.db"))
			output.Println()

			output.Dim("Use 'basketindex examples' for common workflows")
			return nil
		},
	}
}
