package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/vadiminshakov/somtrade/internal"
	"github.com/vadiminshakov/somtrade/internal/domain"
	"github.com/vadiminshakov/somtrade/internal/render"
	"github.com/vadiminshakov/somtrade/internal/valuation"
)

func (c *cli) portfolioCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "portfolio",
		Short: "Show balances, staked positions and total value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withSession(cmd, func(ctx context.Context, e *internal.Exchange) error {
				writeln(cmd, render.Portfolio(e.Ledger.Snapshot(), e.MarketList(ctx), c.conf.QuoteAsset))
				if err := e.Ledger.PersistErr(); err != nil {
					writeln(cmd, render.Warning("last save failed: "+err.Error()))
				}
				return nil
			})
		},
	}
}

func (c *cli) historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List transactions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withSession(cmd, func(_ context.Context, e *internal.Exchange) error {
				txs := e.Ledger.History()
				if limit > 0 && len(txs) > limit {
					txs = txs[:limit]
				}
				writeln(cmd, render.History(txs))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of transactions, 0 for all")
	return cmd
}

func (c *cli) tradeCmd() *cobra.Command {
	var price string
	cmd := &cobra.Command{
		Use:   "trade <buy|sell> <asset> <amount>",
		Short: "Buy or sell an asset against the quote currency",
		Long:  "Fills at --price when given, otherwise at the current market price of the asset.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			side, err := domain.ParseSide(args[0])
			if err != nil {
				return err
			}
			asset := domain.NormalizeSymbol(args[1])
			amount, err := parseAmount(args[2])
			if err != nil {
				return err
			}

			return c.withSession(cmd, func(ctx context.Context, e *internal.Exchange) error {
				fill, err := c.tradePrice(ctx, e, asset, price)
				if err != nil {
					return err
				}
				tx, err := e.Ledger.ExecuteTrade(ctx, side, amount, fill, asset, c.conf.QuoteAsset)
				if err != nil {
					return err
				}
				return reportTx(cmd, tx)
			})
		},
	}
	cmd.Flags().StringVar(&price, "price", "", "fill price in the quote currency")
	return cmd
}

func (c *cli) tradePrice(ctx context.Context, e *internal.Exchange, asset, flag string) (decimal.Decimal, error) {
	if flag != "" {
		return parseAmount(flag)
	}
	price, ok := valuation.Prices(e.MarketList(ctx))[asset]
	if !ok || !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("no market price for %s, pass --price", strings.ToUpper(asset))
	}
	return price, nil
}

type assetOp func(ctx context.Context, e *internal.Exchange, asset string, amount decimal.Decimal) (domain.Transaction, error)

func (c *cli) assetCmd(use, short string, op assetOp) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <asset> <amount>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			return c.withSession(cmd, func(ctx context.Context, e *internal.Exchange) error {
				tx, err := op(ctx, e, args[0], amount)
				if err != nil {
					return err
				}
				return reportTx(cmd, tx)
			})
		},
	}
}

func (c *cli) stakeCmd() *cobra.Command {
	return c.assetCmd("stake", "Move liquid balance into a staked position",
		func(ctx context.Context, e *internal.Exchange, asset string, amount decimal.Decimal) (domain.Transaction, error) {
			return e.Ledger.Stake(ctx, asset, amount)
		})
}

func (c *cli) unstakeCmd() *cobra.Command {
	return c.assetCmd("unstake", "Return staked principal to the liquid balance",
		func(ctx context.Context, e *internal.Exchange, asset string, amount decimal.Decimal) (domain.Transaction, error) {
			return e.Ledger.Unstake(ctx, asset, amount)
		})
}

func (c *cli) rewardCmd() *cobra.Command {
	return c.assetCmd("reward", "Credit staking yield to a staked position",
		func(ctx context.Context, e *internal.Exchange, asset string, amount decimal.Decimal) (domain.Transaction, error) {
			return e.Ledger.CreditReward(ctx, asset, amount)
		})
}

func (c *cli) depositCmd() *cobra.Command {
	return c.assetCmd("deposit", "Credit funds to the liquid balance",
		func(ctx context.Context, e *internal.Exchange, asset string, amount decimal.Decimal) (domain.Transaction, error) {
			return e.Ledger.Deposit(ctx, asset, amount)
		})
}

func (c *cli) withdrawCmd() *cobra.Command {
	return c.assetCmd("withdraw", "Debit funds from the liquid balance",
		func(ctx context.Context, e *internal.Exchange, asset string, amount decimal.Decimal) (domain.Transaction, error) {
			return e.Ledger.Withdraw(ctx, asset, amount)
		})
}

func (c *cli) poolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pools",
		Short: "List staking pools and your positions in them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withSession(cmd, func(_ context.Context, e *internal.Exchange) error {
				writeln(cmd, render.Pools(domain.DefaultStakingPools(), e.Ledger.StakedPositions()))
				return nil
			})
		},
	}
}

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "invalid number %q", s)
	}
	return d, nil
}

func reportTx(cmd *cobra.Command, tx domain.Transaction) error {
	desc, err := domain.Describe(tx)
	if err != nil {
		return err
	}
	writeln(cmd, render.Success(desc))
	return nil
}
