package internal

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/vadiminshakov/somtrade/config"
	"github.com/vadiminshakov/somtrade/internal/services/advisor"
	"github.com/vadiminshakov/somtrade/internal/services/marketdata"
	"github.com/vadiminshakov/somtrade/internal/services/pricer"
	"github.com/vadiminshakov/somtrade/internal/storage"
	"github.com/vadiminshakov/somtrade/internal/storage/localstore"
	"github.com/vadiminshakov/somtrade/internal/storage/memstore"
	"github.com/vadiminshakov/somtrade/internal/storage/redisstore"
)

// newStore opens the key-value backend selected in conf. The returned func releases it.
func newStore(ctx context.Context, conf config.Config) (storage.Store, func() error, error) {
	noop := func() error { return nil }

	switch conf.Storage {
	case config.StorageFile:
		s, err := localstore.Open(conf.Path)
		if err != nil {
			return nil, nil, errors.Wrap(err, "open file store")
		}
		return s, noop, nil
	case config.StorageMemory:
		return memstore.New(), noop, nil
	case config.StorageRedis:
		s, client, err := redisstore.Dial(ctx, conf.RedisURL)
		if err != nil {
			return nil, nil, errors.Wrap(err, "connect redis store")
		}
		return s, client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage backend: %s", conf.Storage)
	}
}

// newMarketGateway builds the CoinGecko gateway with retrying transport, chart cache
// and the optional exchange ticker.
func newMarketGateway(conf config.Config, tracer trace.Tracer, logger *zap.Logger) (*marketdata.CoinGecko, error) {
	fetcherOpts := []marketdata.FetcherOption{
		marketdata.WithRetry(conf.FetchRetries, conf.FetchRetryDelay),
		marketdata.WithFetcherLogger(logger),
	}
	if conf.CoinGeckoURL != "" {
		fetcherOpts = append(fetcherOpts, marketdata.WithBaseURL(conf.CoinGeckoURL))
	}
	if conf.CoinGeckoAPIKey != "" {
		fetcherOpts = append(fetcherOpts, marketdata.WithAPIKey(conf.CoinGeckoAPIKey))
	}

	ticker, err := pricer.New(conf.PriceSource)
	if err != nil {
		return nil, err
	}

	opts := []marketdata.Option{
		marketdata.WithTracer(tracer),
		marketdata.WithLogger(logger),
		marketdata.WithChartCache(conf.ChartCacheTTL),
	}
	if ticker != nil {
		opts = append(opts, marketdata.WithTickerPricer(ticker))
	}

	return marketdata.NewCoinGecko(marketdata.NewHTTPFetcher(fetcherOpts...), opts...)
}

// newAdvisorModel creates the AI backend for the configured provider. The key is
// resolved per request from settings, then from the provider's environment variable.
func newAdvisorModel(conf config.Config, store storage.Store) (advisor.Model, error) {
	switch conf.AIProvider {
	case config.ProviderGemini:
		creds := advisor.NewStoreCredentials(store, advisor.EnvGeminiAPIKey)
		return advisor.NewGeminiModel(creds, conf.AIModel), nil
	case config.ProviderOpenAI:
		creds := advisor.NewStoreCredentials(store, advisor.EnvLLMAPIKey)
		return advisor.NewOpenAIModel(creds, conf.AIModel, conf.AIBaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", conf.AIProvider)
	}
}
