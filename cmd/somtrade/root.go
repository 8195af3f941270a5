package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vadiminshakov/somtrade/config"
	"github.com/vadiminshakov/somtrade/internal"
)

var errNotSignedIn = errors.New("not signed in, run `somtrade login` first")

type openFunc func(ctx context.Context, opts ...internal.Option) (*internal.Exchange, func(), error)

// cli holds state shared by the commands.
type cli struct {
	configPath string
	debug      bool

	conf   config.Config
	logger *zap.Logger

	// open builds the exchange for one command; tests replace it.
	open openFunc
}

func newRootCmd() *cobra.Command {
	return (&cli{}).command()
}

func (c *cli) command() *cobra.Command {
	if c.open == nil {
		c.open = c.openExchange
	}

	root := &cobra.Command{
		Use:          "somtrade",
		Short:        "Paper-trading crypto exchange",
		Long:         "somtrade simulates a crypto exchange account: trade, stake and track a demo portfolio at live market prices.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "config.yaml", "path to the yaml config, missing file means defaults")
	root.PersistentFlags().BoolVar(&c.debug, "debug", false, "development logging")

	root.AddCommand(
		c.serveCmd(),
		c.setupCmd(),
		c.loginCmd(),
		c.logoutCmd(),
		c.settingsCmd(),
		c.portfolioCmd(),
		c.historyCmd(),
		c.tradeCmd(),
		c.stakeCmd(),
		c.unstakeCmd(),
		c.rewardCmd(),
		c.depositCmd(),
		c.withdrawCmd(),
		c.poolsCmd(),
		c.marketsCmd(),
		c.priceCmd(),
		c.insightCmd(),
		c.analyzeCmd(),
		c.chatCmd(),
	)
	return root
}

func (c *cli) init() error {
	if c.logger == nil {
		var err error
		if c.debug {
			c.logger, err = zap.NewDevelopment()
		} else {
			c.logger, err = zap.NewProduction()
		}
		if err != nil {
			return errors.Wrap(err, "failed to create logger")
		}
	}

	conf, err := config.Load(c.configPath)
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}
	c.conf = conf
	return nil
}

func (c *cli) openExchange(ctx context.Context, opts ...internal.Option) (*internal.Exchange, func(), error) {
	e, err := internal.NewExchange(ctx, c.conf, c.logger, opts...)
	if err != nil {
		return nil, nil, err
	}
	release := func() {
		if err := e.Close(); err != nil {
			c.logger.Warn("failed to close exchange", zap.Error(err))
		}
	}
	return e, release, nil
}

// withSession opens the exchange and runs fn if a session is active.
func (c *cli) withSession(cmd *cobra.Command, fn func(ctx context.Context, e *internal.Exchange) error) error {
	ctx := cmd.Context()
	e, release, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer release()

	ok, err := e.Sessions.Authenticated(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return errNotSignedIn
	}
	return fn(ctx, e)
}

func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}

func writeln(cmd *cobra.Command, s string) {
	fmt.Fprintln(cmd.OutOrStdout(), s)
}
