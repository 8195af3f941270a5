package main

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vadiminshakov/somtrade/internal"
	"github.com/vadiminshakov/somtrade/internal/render"
	"github.com/vadiminshakov/somtrade/internal/services/marketdata"
)

func (c *cli) marketsCmd() *cobra.Command {
	var all int
	cmd := &cobra.Command{
		Use:   "markets",
		Short: "Show prices of the tracked coins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withSession(cmd, func(ctx context.Context, e *internal.Exchange) error {
				if all > 0 {
					markets, err := e.Markets.FetchAllMarkets(ctx, all)
					if err != nil {
						return err
					}
					writeln(cmd, render.Markets(markets, c.conf.QuoteAsset))
					return nil
				}

				markets := e.MarketList(ctx)
				if markets == nil {
					writeln(cmd, render.Warning(marketdata.StaleBanner))
					return nil
				}
				writeln(cmd, render.Markets(markets, c.conf.QuoteAsset))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&all, "all", 0, "show the top N coins by market cap instead of the tracked ones")
	return cmd
}

func (c *cli) priceCmd() *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "price <coin-id>",
		Short: "Show the current price, indicators and order book of a coin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.ToLower(strings.TrimSpace(args[0]))
			return c.withSession(cmd, func(ctx context.Context, e *internal.Exchange) error {
				w := marketdata.NewPriceWatcher(e.Markets, id, c.conf.PriceInterval, c.logger.Named("price"))
				if !watch {
					if err := w.Load(ctx); err != nil {
						return err
					}
					c.printQuote(cmd, w)
					return nil
				}

				if err := w.Start(ctx); err != nil {
					return err
				}
				defer w.Stop()
				c.printQuote(cmd, w)

				ticker := time.NewTicker(c.conf.PriceInterval)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return nil
					case <-ticker.C:
						c.printQuote(cmd, w)
					}
				}
			})
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep polling until interrupted")
	return cmd
}

func (c *cli) printQuote(cmd *cobra.Command, w *marketdata.PriceWatcher) {
	summary := marketdata.Indicators(w.Series())
	printf(cmd, "price %s  sma20 %s  ema20 %s  rsi14 %s  trend %s\n",
		render.Money(w.Price(), c.conf.QuoteAsset),
		summary.SMA20.StringFixed(2),
		summary.EMA20.StringFixed(2),
		summary.RSI14.StringFixed(2),
		summary.Trend)
	writeln(cmd, render.OrderBook(w.OrderBook(), w.Price(), c.conf.QuoteAsset))
}
