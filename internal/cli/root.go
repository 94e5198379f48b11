// Package cli provides the command-line interface for the basket index.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"basket-index/internal/config"
	"basket-index/internal/logging"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2026-02-15"
)

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	app := &App{Logger: zerolog.Nop()}
	rootCmd := newRootCmd(app, app.setup)
	defer app.Close()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

// NewRootCmd creates the root command around an already configured app.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{Config: cfg, Logger: logger}
	return newRootCmd(app, nil)
}

func newRootCmd(app *App, setup func(cmd *cobra.Command) error) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "basketindex",
		Short: "Market-cap weighted basket index engine",
		Long: `basketindex builds market-capitalization weighted indices over baskets
of NSE/BSE tickers, normalized to 100 at the first date of the range and
plotted against a benchmark such as NIFTY 50.

Baskets are defined in config.toml. Use 'basketindex baskets' to list them
and 'basketindex examples' to see common workflows.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if setup != nil {
				if err := setup(cmd); err != nil {
					return err
				}
			}

			// Handle debug flag
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/basket-index)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	addCoreCommands(rootCmd, app)
	addIndexCommands(rootCmd, app)
	addFundamentalsCommands(rootCmd, app)
	addServeCommand(rootCmd, app)
	addHelpCommands(rootCmd, app)

	return rootCmd
}

// setup loads configuration and the logger for a CLI run.
func (a *App) setup(cmd *cobra.Command) error {
	configDir, _ := cmd.Flags().GetString("config")
	if configDir == "" {
		configDir = config.DefaultConfigDir()
	}
	a.ConfigDir = configDir

	cfg, err := config.Load(configDir)
	if err != nil {
		return err
	}
	a.Config = cfg

	logCfg := logging.DefaultLogConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.File = cfg.Logging.File
	logCfg.FilePath = filepath.Join(configDir, "logs", "basketindex.log")
	a.Logger = logging.NewLoggerWithConfig(logCfg)
	return nil
}

// addCoreCommands adds core utility commands.
func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("basketindex v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate the basket and provider configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			return showConfig(output, app.Config)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			dir := app.ConfigDir
			if dir == "" {
				dir = config.DefaultConfigDir()
			}
			if output.IsJSON() {
				output.JSON(map[string]string{"path": dir})
			} else {
				output.Println(dir)
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("✓ Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) error {
	output.Bold("Index")
	output.Printf("  Default Start:     %s\n", orDefault(cfg.Index.DefaultStart, "one year back"))
	output.Printf("  Default Benchmark: %s\n", cfg.Index.DefaultBenchmark)
	output.Println()

	output.Bold("Providers")
	output.Printf("  Prices:            %s\n", cfg.Provider.Prices)
	output.Printf("  Fundamentals:      %s\n", cfg.Provider.Fundamentals)
	output.Printf("  Rate Limit:        %.1f req/s\n", cfg.Provider.RateLimit)
	output.Printf("  Concurrency:       %d\n", cfg.Provider.Concurrency)
	output.Printf("  Circuit Breaker:   %d failures, %s cooldown\n", cfg.Provider.BreakerThreshold, cfg.Provider.BreakerCooldown)
	output.Println()

	output.Bold("Fundamentals Cache")
	output.Printf("  Backend:           %s\n", cfg.Cache.Backend)
	output.Printf("  TTL:               %s\n", cfg.Cache.TTL)
	if cfg.Cache.Backend == "redis" {
		output.Printf("  Redis:             %s (db %d)\n", cfg.Cache.RedisAddr, cfg.Cache.RedisDB)
	}
	output.Printf("  Static Table:      %s\n", cfg.Store.Path)
	output.Println()

	output.Bold("Server")
	output.Printf("  Address:           %s\n", cfg.Server.Addr)
	output.Printf("  Request Timeout:   %s\n", cfg.Server.RequestLimit)
	output.Println()

	output.Bold("Baskets")
	for _, name := range basketNames(cfg) {
		b := cfg.Baskets[name]
		output.Printf("  %-18s %d tickers, benchmark %s\n", name, len(b.Tickers), cfg.BenchmarkFor(b))
	}

	return nil
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
