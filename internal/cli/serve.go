package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"basket-index/internal/api"
	"basket-index/internal/fundamentals"
	"basket-index/internal/marketdata"
)

// addServeCommand adds the HTTP API server command.
func addServeCommand(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newServeCmd(app))
}

func newServeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve index charts over HTTP",
		Long: `Start the JSON API consumed by the dashboard. Charts, composition and
risk metrics are computed on request; Prometheus metrics are exposed at
/metrics.`,
		Example: `  basketindex serve
  basketindex serve --addr :8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				app.Config.Server.Addr = addr
			}
			if err := app.ensureEngine(); err != nil {
				return err
			}

			opts := []api.Option{api.WithInvalidator(app.Fundamentals)}
			if redis, ok := app.Cache.(*fundamentals.RedisCache); ok {
				opts = append(opts, api.WithHealthCheck("redis", redis))
			}
			for _, upstream := range []interface{}{app.Prices, app.Live} {
				if guarded, ok := upstream.(*marketdata.GuardedProvider); ok {
					opts = append(opts, api.WithHealthCheck(guarded.Breaker().Name(), guarded.Breaker()))
				}
			}
			server := api.NewServer(app.Config, app.Engine, app.Logger, opts...)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if !output.IsJSON() {
				output.Success("✓ Serving %d baskets on %s", len(app.Config.Baskets), app.Config.Server.Addr)
				output.Dim("Press Ctrl+C to stop")
			}
			if err := server.Run(ctx); err != nil {
				output.Error("Server failed: %v", err)
				return err
			}
			app.Logger.Info().Msg("Server stopped")
			return nil
		},
	}

	cmd.Flags().String("addr", "", "Listen address (default: server.addr from config)")
	return cmd
}
