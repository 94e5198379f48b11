package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"basket-index/internal/api"
	apperrors "basket-index/internal/errors"
	"basket-index/internal/index"
	"basket-index/internal/models"
	"basket-index/pkg/utils"
)

// addIndexCommands adds the index computation commands.
func addIndexCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newBasketsCmd(app))
	rootCmd.AddCommand(newChartCmd(app))
	rootCmd.AddCommand(newCompositionCmd(app))
	rootCmd.AddCommand(newRiskCmd(app))
}

// addRangeFlags adds the flags shared by every computation command.
func addRangeFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("start", "s", "", "Start date YYYY-MM-DD (default: index.default_start or one year back)")
	cmd.Flags().StringP("end", "e", "", "End date YYYY-MM-DD, inclusive (default: today)")
	cmd.Flags().StringP("tickers", "t", "", "Comma-separated tickers for an ad-hoc basket")
	cmd.Flags().StringP("benchmark", "b", "", "Benchmark ticker, or 'none' (default: the basket's benchmark)")
}

// buildRequest resolves a basket argument or --tickers plus the date flags.
func buildRequest(app *App, cmd *cobra.Command, args []string) (index.Request, error) {
	startFlag, _ := cmd.Flags().GetString("start")
	endFlag, _ := cmd.Flags().GetString("end")
	tickersFlag, _ := cmd.Flags().GetString("tickers")
	benchFlag, _ := cmd.Flags().GetString("benchmark")

	start, end, err := utils.DateRange(startFlag, endFlag, app.Config.Index.DefaultStart, time.Now())
	if err != nil {
		return index.Request{}, err
	}
	req := index.Request{Start: start, End: end, Benchmark: app.Config.Index.DefaultBenchmark}

	switch {
	case len(args) == 1:
		b, ok := app.Config.Basket(args[0])
		if !ok {
			return index.Request{}, apperrors.Wrapf(apperrors.ErrUnknownBasket, "basket %q (see 'basketindex baskets')", args[0])
		}
		req.Name = args[0]
		req.Tickers = b.Tickers
		req.Info = b.Info()
		req.Benchmark = app.Config.BenchmarkFor(b)
	case tickersFlag != "":
		for _, t := range strings.Split(tickersFlag, ",") {
			if t = strings.TrimSpace(t); t != "" {
				req.Tickers = append(req.Tickers, strings.ToUpper(t))
			}
		}
	default:
		return index.Request{}, apperrors.NewInputError("basket", nil, "give a basket name or --tickers")
	}

	if benchFlag != "" {
		req.Benchmark = benchFlag
	}
	if strings.EqualFold(req.Benchmark, "none") {
		req.Benchmark = ""
	}
	return req, nil
}

func newBasketsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "baskets",
		Short: "List configured baskets",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			summaries := make([]api.BasketSummary, 0, len(app.Config.Baskets))
			for _, name := range basketNames(app.Config) {
				b := app.Config.Baskets[name]
				summaries = append(summaries, api.BasketSummary{
					Name:      name,
					Title:     b.Title,
					Benchmark: app.Config.BenchmarkFor(b),
					Tickers:   b.Tickers,
				})
			}

			if output.IsJSON() {
				return output.JSON(summaries)
			}

			if len(summaries) == 0 {
				output.Warning("No baskets configured. Add a [baskets.<name>] table to config.toml.")
				return nil
			}
			table := NewTable(output, "Name", "Title", "Tickers", "Benchmark")
			for _, s := range summaries {
				table.AddRow(s.Name, s.Title, fmt.Sprintf("%d", len(s.Tickers)), s.Benchmark)
			}
			table.Render()
			return nil
		},
	}
}

func newChartCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chart [basket]",
		Short: "Compute the base-100 index series",
		Long: `Compute the market-cap weighted index of a basket, normalized to 100 at
the first trading date of the range, next to its benchmark.

Missing prices are forward filled, then back filled for tickers that list
after the start date. Tickers without a share count use the basket median.`,
		Example: `  basketindex chart startup
  basketindex chart green --start 2026-01-01 --timeframe 1M
  basketindex chart --tickers SWIGGY.NS,IXIGO.NS --benchmark none --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			req, err := buildRequest(app, cmd, args)
			if err != nil {
				return err
			}
			tfFlag, _ := cmd.Flags().GetString("timeframe")
			tf, err := index.ParseTimeframe(tfFlag)
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt("limit")

			if err := app.ensureEngine(); err != nil {
				return err
			}
			ctx, cancel := commandContext(app)
			defer cancel()

			chart, err := app.Engine.Chart(ctx, req)
			if err != nil {
				output.Error("Index computation failed: %v", err)
				return err
			}

			resp := api.NewChartResponse(chart, tf, req.End)
			resp.Basket = req.Name
			resp.Benchmark = req.Benchmark

			if output.IsJSON() {
				return output.JSON(resp)
			}
			return displayChart(output, req, resp, limit)
		},
	}

	addRangeFlags(cmd)
	cmd.Flags().String("timeframe", "ALL", "Display window: 1W, 1M, 3M, YTD, 1Y, ALL")
	cmd.Flags().IntP("limit", "l", 15, "Number of most recent rows to display (0 for all)")

	return cmd
}

func displayChart(output *Output, req index.Request, resp api.ChartResponse, limit int) error {
	title := req.Name
	if title == "" {
		title = "Ad-hoc basket"
	}
	output.Bold("%s  [%s]", title, resp.Timeframe)
	output.Printf("  %s → %s, %d constituents\n\n", FormatDate(req.Start), FormatDate(req.End), len(resp.Constituents))

	output.Printf("  Latest:     %s", FormatIndexValue(resp.LatestValue))
	if resp.Change != nil {
		output.Printf("  %s", output.FormatChange(*resp.Change, *resp.ChangePct))
	}
	output.Println()
	if n := len(resp.BenchmarkValues); n > 0 {
		output.Printf("  %-11s %s\n", resp.Benchmark+":", FormatOptional(resp.BenchmarkValues[n-1], FormatIndexValue))
	}
	output.Printf("  Volatility: %s   Max drawdown: %s\n\n",
		FormatOptional(resp.Risk.AnnualizedVolatilityPct, FormatPlainPercent),
		FormatOptional(resp.Risk.MaxDrawdownPct, FormatPlainPercent))

	headers := []string{"Date", "Index"}
	if resp.BenchmarkValues != nil {
		headers = append(headers, resp.Benchmark)
	}
	table := NewTable(output, headers...)

	from := 0
	if limit > 0 && len(resp.Dates) > limit {
		from = len(resp.Dates) - limit
	}
	for i := from; i < len(resp.Dates); i++ {
		row := []string{resp.Dates[i], FormatIndexValue(resp.IndexValues[i])}
		if resp.BenchmarkValues != nil {
			row = append(row, FormatOptional(resp.BenchmarkValues[i], FormatIndexValue))
		}
		table.AddRow(row...)
	}
	table.Render()

	for _, w := range resp.Warnings {
		output.Warning("⚠ %s", w)
	}
	return nil
}

func newCompositionCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "composition [basket]",
		Short: "Show constituent weights at the latest prices",
		Example: `  basketindex composition startup
  basketindex composition green --end 2026-02-13 --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			req, err := buildRequest(app, cmd, args)
			if err != nil {
				return err
			}
			if err := app.ensureEngine(); err != nil {
				return err
			}
			ctx, cancel := commandContext(app)
			defer cancel()

			rows, err := app.Engine.Composition(ctx, req)
			if err != nil {
				output.Error("Composition failed: %v", err)
				return err
			}

			if output.IsJSON() {
				if rows == nil {
					rows = []models.CompositionRow{}
				}
				return output.JSON(rows)
			}
			return displayComposition(output, req, rows)
		},
	}

	addRangeFlags(cmd)
	return cmd
}

func displayComposition(output *Output, req index.Request, rows []models.CompositionRow) error {
	total := 0.0
	for _, r := range rows {
		total += r.MarketCap
	}
	output.Bold("%s composition as of %s", orDefault(req.Name, "Ad-hoc basket"), FormatDate(req.End))
	output.Printf("  Total market cap: %s\n\n", FormatMarketCap(total))

	table := NewTable(output, "Ticker", "Name", "Sector", "Price", "Mkt Cap", "Weight", "P/E", "52W High", "52W Low", "30D")
	for _, r := range rows {
		change := "-"
		if r.Change30DPct != nil {
			change = output.FormatPercent(*r.Change30DPct)
		}
		table.AddRow(
			r.Ticker,
			TruncateString(r.DisplayName, 24),
			TruncateString(r.Sector, 16),
			FormatPrice(r.Price),
			FormatMarketCap(r.MarketCap),
			utils.FormatWeight(r.WeightPct),
			FormatOptional(r.PE, FormatRatio),
			FormatOptional(r.High52W, FormatPrice),
			FormatOptional(r.Low52W, FormatPrice),
			change,
		)
	}
	table.Render()

	if excluded := len(req.Tickers) - len(rows); excluded > 0 {
		output.Dim("%d tickers without a usable price were left out", excluded)
	}
	return nil
}

func newRiskCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "risk [basket]",
		Short: "Show annualized volatility and maximum drawdown",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			req, err := buildRequest(app, cmd, args)
			if err != nil {
				return err
			}
			if err := app.ensureEngine(); err != nil {
				return err
			}
			ctx, cancel := commandContext(app)
			defer cancel()

			resp := api.RiskResponse{}
			risk, err := app.Engine.Risk(ctx, req)
			switch {
			case apperrors.Is(err, apperrors.ErrInsufficientData):
				if !output.IsJSON() {
					output.Warning("Not enough observations between %s and %s", FormatDate(req.Start), FormatDate(req.End))
				}
			case err != nil:
				output.Error("Risk computation failed: %v", err)
				return err
			default:
				resp = api.NewRiskResponse(&risk)
			}

			if output.IsJSON() {
				return output.JSON(resp)
			}
			output.Bold("%s risk, %s → %s", orDefault(req.Name, "Ad-hoc basket"), FormatDate(req.Start), FormatDate(req.End))
			output.Printf("  Annualized volatility: %s\n", FormatOptional(resp.AnnualizedVolatilityPct, FormatPlainPercent))
			output.Printf("  Maximum drawdown:      %s\n", FormatOptional(resp.MaxDrawdownPct, FormatPlainPercent))
			return nil
		},
	}

	addRangeFlags(cmd)
	return cmd
}

// commandContext bounds a computation by the configured request timeout.
func commandContext(app *App) (context.Context, context.CancelFunc) {
	limit := app.Config.Server.RequestLimit
	if limit <= 0 {
		limit = 2 * time.Minute
	}
	return context.WithTimeout(context.Background(), limit)
}
