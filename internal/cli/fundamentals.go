package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	apperrors "basket-index/internal/errors"
	"basket-index/internal/store"
)

// addFundamentalsCommands adds commands that maintain the static
// fundamentals table and the fundamentals cache.
func addFundamentalsCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:     "fundamentals",
		Aliases: []string{"fund"},
		Short:   "Manage share counts and valuation data",
		Long: `Manage the static fundamentals table used when live lookups are disabled
or fail, and the cache in front of live lookups.`,
	}

	cmd.AddCommand(newFundamentalsSyncCmd(app))
	cmd.AddCommand(newFundamentalsListCmd(app))
	cmd.AddCommand(newFundamentalsImportCmd(app))
	cmd.AddCommand(newFundamentalsInvalidateCmd(app))

	rootCmd.AddCommand(cmd)
}

// resolveTickers collects the tickers of the named baskets, or of every
// basket when all is set, deduplicated and sorted.
func resolveTickers(app *App, names []string, all bool) ([]string, error) {
	if all {
		names = basketNames(app.Config)
	}
	seen := make(map[string]bool)
	for _, name := range names {
		b, ok := app.Config.Basket(name)
		if !ok {
			return nil, apperrors.Wrapf(apperrors.ErrUnknownBasket, "basket %q", name)
		}
		for _, t := range b.Tickers {
			seen[t] = true
		}
	}
	tickers := make([]string, 0, len(seen))
	for t := range seen {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	return tickers, nil
}

func newFundamentalsSyncCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync [basket...]",
		Short: "Refresh the static table from the live source",
		Example: `  basketindex fundamentals sync startup
  basketindex fundamentals sync --all`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			all, _ := cmd.Flags().GetBool("all")
			if len(args) == 0 && !all {
				return apperrors.NewInputError("basket", nil, "give one or more basket names or --all")
			}
			tickers, err := resolveTickers(app, args, all)
			if err != nil {
				return err
			}

			if err := app.ensureStatic(); err != nil {
				return err
			}
			live, err := app.ensureLive()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()

			if !output.IsJSON() {
				output.Info("Looking up %d tickers via %s...", len(tickers), live.Name())
			}
			sync := store.NewFundamentalsSync(app.Static, live, app.Config.Store.StaleAfter, app.Logger)
			result, err := sync.Sync(ctx, tickers)
			if err != nil {
				output.Error("Sync failed: %v", err)
				return err
			}

			if output.IsJSON() {
				failed := make(map[string]string, len(result.Failed))
				for t, e := range result.Failed {
					failed[t] = e.Error()
				}
				return output.JSON(map[string]interface{}{
					"requested": result.Requested,
					"saved":     result.Saved,
					"missing":   result.Missing,
					"failed":    failed,
					"synced_at": result.SyncedAt,
				})
			}

			lines := []string{
				fmt.Sprintf("Requested:  %d", result.Requested),
				fmt.Sprintf("Saved:      %s", output.Green(fmt.Sprintf("%d", result.Saved))),
				fmt.Sprintf("No shares:  %d", len(result.Missing)),
				fmt.Sprintf("Failed:     %d", len(result.Failed)),
			}
			output.Box("Fundamentals Sync", lines)

			if len(result.Missing) > 0 {
				output.Warning("No share count: %s", strings.Join(result.Missing, ", "))
			}
			for _, t := range sortedKeys(result.Failed) {
				output.Error("  %s: %v", t, result.Failed[t])
			}
			return nil
		},
	}

	cmd.Flags().Bool("all", false, "Sync the tickers of every configured basket")
	return cmd
}

func newFundamentalsListCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List rows of the static table",
		Example: `  basketindex fundamentals list
  basketindex fundamentals list --basket green --missing`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			basket, _ := cmd.Flags().GetString("basket")
			missing, _ := cmd.Flags().GetBool("missing")
			limit, _ := cmd.Flags().GetInt("limit")

			filter := store.FundamentalsFilter{MissingOnly: missing, Limit: limit}
			if basket != "" {
				tickers, err := resolveTickers(app, []string{basket}, false)
				if err != nil {
					return err
				}
				filter.Tickers = tickers
			}

			if err := app.ensureStatic(); err != nil {
				return err
			}
			rows, err := app.Static.ListFundamentals(context.Background(), filter)
			if err != nil {
				return err
			}
			fresh := store.NewFundamentalsSync(app.Static, nil, app.Config.Store.StaleAfter, app.Logger).Freshness(store.SyncFundamentals)

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"last_sync":    fresh.LastUpdated,
					"fresh":        fresh.IsFresh,
					"fundamentals": rows,
				})
			}

			if len(rows) == 0 {
				output.Warning("No fundamentals stored. Run 'basketindex fundamentals sync' or 'fundamentals import'.")
				return nil
			}

			table := NewTable(output, "Ticker", "Name", "Shares", "P/E", "EPS", "Updated")
			for _, r := range rows {
				shares := "-"
				if r.Record.HasShares() {
					shares = FormatShares(r.Record.Shares())
					shares = strings.TrimPrefix(shares, "₹")
				}
				table.AddRow(
					r.Record.Ticker,
					TruncateString(r.Record.Name, 28),
					shares,
					FormatOptional(r.Record.TrailingPE, FormatRatio),
					FormatOptional(r.Record.TrailingEPS, FormatRatio),
					FormatDuration(time.Since(r.UpdatedAt))+" ago",
				)
			}
			table.Render()

			output.Println()
			status := output.Green("fresh")
			if !fresh.IsFresh {
				status = output.Yellow("stale")
			}
			output.Printf("Last sync: %s (%s)\n", store.FormatFreshness(fresh), status)
			return nil
		},
	}

	cmd.Flags().String("basket", "", "Only rows for this basket's tickers")
	cmd.Flags().Bool("missing", false, "Only rows without a share count")
	cmd.Flags().IntP("limit", "l", 0, "Maximum number of rows (0 for all)")
	return cmd
}

func newFundamentalsImportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "import <seed.yaml>",
		Short: "Load the static table from a YAML seed file",
		Long: `Load fundamentals rows from a YAML seed file into the static table.
Rows already present are overwritten.`,
		Example: "  basketindex fundamentals import seed/fundamentals.yaml",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			if err := app.ensureStatic(); err != nil {
				return err
			}
			n, err := store.ImportSeed(context.Background(), app.Static, args[0])
			if err != nil {
				output.Error("Import failed: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"imported": n, "path": args[0]})
			}
			output.Success("✓ Imported %d fundamentals rows from %s", n, args[0])
			return nil
		},
	}
}

func newFundamentalsInvalidateCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate <basket>",
		Short: "Drop cached fundamentals for a basket",
		Long: `Drop cached fundamentals for a basket's tickers so the next computation
looks them up again. Only meaningful with the redis cache backend, which is
shared with running servers.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			tickers, err := resolveTickers(app, args, false)
			if err != nil {
				return err
			}
			if err := app.ensureEngine(); err != nil {
				return err
			}
			if err := app.Fundamentals.Invalidate(context.Background(), tickers); err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"invalidated": args[0], "tickers": len(tickers)})
			}
			output.Success("✓ Invalidated %d cached entries for %s", len(tickers), args[0])
			if app.Config.Cache.Backend != "redis" {
				output.Dim("Cache backend is %s; entries only lived in this process.", app.Config.Cache.Backend)
			}
			return nil
		},
	}
}

func sortedKeys(m map[string]error) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
