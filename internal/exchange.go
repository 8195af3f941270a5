package internal

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/vadiminshakov/somtrade/config"
	"github.com/vadiminshakov/somtrade/internal/domain"
	"github.com/vadiminshakov/somtrade/internal/events"
	"github.com/vadiminshakov/somtrade/internal/ledger"
	"github.com/vadiminshakov/somtrade/internal/services/advisor"
	"github.com/vadiminshakov/somtrade/internal/services/marketdata"
	"github.com/vadiminshakov/somtrade/internal/session"
	"github.com/vadiminshakov/somtrade/internal/storage"
	"github.com/vadiminshakov/somtrade/internal/storage/balancesnapshots"
	"github.com/vadiminshakov/somtrade/internal/web"
	"github.com/vadiminshakov/somtrade/pkg/tracing"
)

const broadcastBuffer = 16

// Exchange wires the ledger, the session and both gateways around one store.
type Exchange struct {
	Config   config.Config
	Store    storage.Store
	Ledger   *ledger.Ledger
	Sessions *session.Manager
	Markets  *marketdata.CoinGecko
	Advisor  *advisor.Advisor
	Tracer   trace.Tracer

	snapshots   *balancesnapshots.WALStore
	broadcaster *events.BalanceBroadcaster
	provider    *sdktrace.TracerProvider
	closeStore  func() error
	l           *zap.Logger
}

type options struct {
	balanceLog bool
}

// Option configures NewExchange.
type Option func(*options)

// WithBalanceLog records every ledger change in the snapshot WAL and publishes it
// to stream subscribers. Only one process may hold the log.
func WithBalanceLog() Option {
	return func(o *options) { o.balanceLog = true }
}

// NewExchange opens the store and builds every component from conf.
func NewExchange(ctx context.Context, conf config.Config, logger *zap.Logger, opts ...Option) (*Exchange, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	provider, tracer, err := tracing.Init(ctx, tracing.Config{
		Enabled:     conf.TracingEnabled,
		Endpoint:    conf.TracingEndpoint,
		ServiceName: conf.ServiceName,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to init tracing")
	}

	e := &Exchange{Config: conf, Tracer: tracer, provider: provider, l: logger}

	store, closeStore, err := newStore(ctx, conf)
	if err != nil {
		_ = e.Close()
		return nil, err
	}
	e.Store, e.closeStore = store, closeStore

	ledgerOpts := []ledger.Option{
		ledger.WithLogger(logger.Named("ledger")),
		ledger.WithSeed(conf.SeedBalances),
	}
	if o.balanceLog {
		e.snapshots, err = balancesnapshots.NewWALStore(conf.WALDir)
		if err != nil {
			_ = e.Close()
			return nil, errors.Wrap(err, "failed to open balance log")
		}
		e.broadcaster = events.NewBalanceBroadcaster(broadcastBuffer)
		recorder := events.NewRecorder(e.snapshots, e.broadcaster, logger.Named("events"))
		ledgerOpts = append(ledgerOpts, ledger.WithObserver(recorder))
	}
	e.Ledger = ledger.New(ctx, store, ledgerOpts...)
	e.Sessions = session.New(store, e.Ledger, logger.Named("session"))

	e.Markets, err = newMarketGateway(conf, tracer, logger.Named("marketdata"))
	if err != nil {
		_ = e.Close()
		return nil, errors.Wrap(err, "failed to create market gateway")
	}

	model, err := newAdvisorModel(conf, store)
	if err != nil {
		_ = e.Close()
		return nil, err
	}
	e.Advisor = advisor.New(model,
		advisor.WithTracer(tracer),
		advisor.WithLogger(logger.Named("advisor")),
		advisor.WithQuoteAsset(conf.QuoteAsset),
	)

	return e, nil
}

// MarketList fetches the configured coins once. A failure is logged and yields nil,
// which values everything but the quote asset at zero.
func (e *Exchange) MarketList(ctx context.Context) []domain.MarketSnapshot {
	markets, err := e.Markets.FetchMarkets(ctx, e.Config.CoinIDs)
	if err != nil {
		e.l.Warn("market data unavailable", zap.Error(err))
		return nil
	}
	return markets
}

// Serve runs the market feed and the HTTP API until ctx is cancelled.
func (e *Exchange) Serve(ctx context.Context) error {
	feed := marketdata.NewFeed(e.Markets, e.Config.CoinIDs, e.Config.MarketsInterval, e.l.Named("feed"))
	if err := feed.Start(ctx); err != nil {
		return errors.Wrap(err, "failed to start market feed")
	}
	defer feed.Stop()

	deps := web.Deps{
		Portfolio:   e.Ledger,
		Sessions:    e.Sessions,
		Feed:        feed,
		Markets:     e.Markets,
		Advisor:     e.Advisor,
		Broadcaster: e.broadcaster,
		QuoteAsset:  e.Config.QuoteAsset,
	}
	if e.snapshots != nil {
		deps.Snapshots = e.snapshots
	}

	srv := web.NewServer(e.Config.HTTPAddr, deps, e.Tracer, e.l.Named("web"))
	srv.ServiceName = e.Config.ServiceName

	e.l.Info("exchange started",
		zap.String("storage", e.Config.Storage),
		zap.Strings("coins", e.Config.CoinIDs),
		zap.String("ai_provider", e.Config.AIProvider))

	if e.Config.AutocertDomain != "" {
		return srv.StartWithAutoTLS(ctx, strings.Split(e.Config.AutocertDomain, ","), e.Config.CertCacheDir)
	}
	return srv.Start(ctx)
}

// Close releases the store, the balance log and the tracer provider.
func (e *Exchange) Close() error {
	var errs []error
	if e.Markets != nil {
		e.Markets.Close()
	}
	if e.snapshots != nil {
		if err := e.snapshots.Close(); err != nil {
			errs = append(errs, errors.Wrap(err, "close balance log"))
		}
	}
	if e.closeStore != nil {
		if err := e.closeStore(); err != nil {
			errs = append(errs, errors.Wrap(err, "close store"))
		}
	}
	if e.provider != nil {
		if err := e.provider.Shutdown(context.Background()); err != nil {
			errs = append(errs, errors.Wrap(err, "shutdown tracer provider"))
		}
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}
