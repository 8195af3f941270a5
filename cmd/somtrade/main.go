// Command somtrade runs the paper-trading exchange: the HTTP API for the browser
// front end and a terminal client over the same portfolio.
//
// Usage:
//
//	somtrade serve --config config.yaml
//	somtrade login
//	somtrade trade buy btc 0.1
//
// Environment variables:
//
//	GEMINI_API_KEY or LLM_API_KEY   AI key when none is saved in settings
//	COINGECKO_API_KEY               optional CoinGecko demo key
//	SOMTRADE_*                      overrides of config file values
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
