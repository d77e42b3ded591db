package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/polyinsider/pulse/internal/ingest"
	"github.com/polyinsider/pulse/internal/store"
)

const queryTimeout = 30 * time.Second

var marketsFlags struct {
	category     string
	limit        int
	offset       int
	minVolume    float64
	minLiquidity float64
	all          bool
}

// marketsCmd prints one page of markets.
var marketsCmd = &cobra.Command{
	Use:   "markets",
	Short: "List markets once and exit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		q := cfg.MarketQuery()
		if cmd.Flags().Changed("category") {
			q.Category = marketsFlags.category
		}
		if cmd.Flags().Changed("limit") {
			q.Limit = marketsFlags.limit
		}
		if cmd.Flags().Changed("min-volume") {
			q.MinVolume = marketsFlags.minVolume
		}
		if cmd.Flags().Changed("min-liquidity") {
			q.MinLiquidity = marketsFlags.minLiquidity
		}
		q.Offset = marketsFlags.offset
		q.Active = !marketsFlags.all

		ctx, cancel := context.WithTimeout(cmd.Context(), queryTimeout)
		defer cancel()

		client := ingest.NewClient(cfg.APIURL, cfg.APIKey, 0)
		markets, err := client.FetchMarkets(ctx, q)
		if err != nil {
			return err
		}
		return printMarkets(cmd.OutOrStdout(), markets)
	},
}

// marketCmd prints one market.
var marketCmd = &cobra.Command{
	Use:   "market <id>",
	Short: "Show one market and exit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), queryTimeout)
		defer cancel()

		client := ingest.NewClient(cfg.APIURL, cfg.APIKey, 0)
		m, err := client.FetchMarket(ctx, args[0])
		if errors.Is(err, ingest.ErrNotFound) {
			return fmt.Errorf("market %s not found", args[0])
		}
		if err != nil {
			return err
		}
		return printMarkets(cmd.OutOrStdout(), []store.Market{m})
	},
}

var breakingFlags struct {
	minChange float64
	timeRange string
	trend     string
	limit     int
}

// breakingCmd prints the breaking feed.
var breakingCmd = &cobra.Command{
	Use:   "breaking",
	Short: "List markets with large recent price moves once and exit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		q := cfg.BreakingQuery()
		if cmd.Flags().Changed("min-change") {
			q.MinChange = breakingFlags.minChange
		}
		if cmd.Flags().Changed("range") {
			q.TimeRange = breakingFlags.timeRange
		}
		q.Trend = store.Trend(breakingFlags.trend)
		q.Limit = breakingFlags.limit

		ctx, cancel := context.WithTimeout(cmd.Context(), queryTimeout)
		defer cancel()

		client := ingest.NewClient(cfg.APIURL, cfg.APIKey, 0)
		markets, err := client.FetchBreaking(ctx, q)
		if err != nil {
			return err
		}
		return printBreaking(cmd.OutOrStdout(), markets)
	},
}

func init() {
	f := marketsCmd.Flags()
	f.StringVar(&marketsFlags.category, "category", "", "category filter")
	f.IntVar(&marketsFlags.limit, "limit", store.DefaultMarketLimit, "page size")
	f.IntVar(&marketsFlags.offset, "offset", 0, "page offset")
	f.Float64Var(&marketsFlags.minVolume, "min-volume", 0, "minimum volume in USD")
	f.Float64Var(&marketsFlags.minLiquidity, "min-liquidity", 0, "minimum liquidity in USD")
	f.BoolVar(&marketsFlags.all, "all", false, "include inactive markets")

	f = breakingCmd.Flags()
	f.Float64Var(&breakingFlags.minChange, "min-change", 0, "minimum absolute price change in percent")
	f.StringVar(&breakingFlags.timeRange, "range", store.Range24h, "time range (1h, 6h, 24h, 7d)")
	f.StringVar(&breakingFlags.trend, "trend", string(store.TrendAny), "trend filter (up, down, any)")
	f.IntVar(&breakingFlags.limit, "limit", store.DefaultBreakingLimit, "maximum results")

	rootCmd.AddCommand(marketsCmd, marketCmd, breakingCmd)
}

func printMarkets(w io.Writer, markets []store.Market) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tQUESTION\tCATEGORY\tPRICE\tVOLUME\tLIQUIDITY")
	for _, m := range markets {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(m.ID),
			m.Question,
			m.Category,
			m.Price.StringFixed(3),
			m.Volume.StringFixed(0),
			m.Liquidity.StringFixed(0),
		)
	}
	return tw.Flush()
}

func printBreaking(w io.Writer, markets []store.BreakingMarket) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tQUESTION\tCHANGE\tFROM\tPRICE\tTREND")
	for _, m := range markets {
		fmt.Fprintf(tw, "%s\t%s\t%s%%\t%s\t%s\t%s\n",
			truncateID(m.ID),
			m.Question,
			m.PriceChange.StringFixed(2),
			m.PreviousPrice.StringFixed(3),
			m.Price.StringFixed(3),
			m.Trend,
		)
	}
	return tw.Flush()
}
