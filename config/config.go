package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/somtrade/internal/domain"
	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	StorageFile   = "file"
	StorageMemory = "memory"
	StorageRedis  = "redis"
)

// AI providers.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

const (
	defaultStorePath       = "./data/somtrade.json"
	defaultWALDir          = "./data/wal"
	defaultHTTPAddr        = ":8080"
	defaultMarketsInterval = 45 * time.Second
	defaultPriceInterval   = 30 * time.Second
	defaultRetries         = 3
	defaultRetryDelay      = time.Second
	defaultChartCacheTTL   = 5 * time.Minute
	defaultServiceName     = "somtrade"
)

var loadEnvFunc = godotenv.Load

type Config struct {
	QuoteAsset   string
	SeedBalances domain.Balances

	Storage  string
	Path     string
	RedisURL string

	CoinIDs         []string
	MarketsInterval time.Duration
	PriceInterval   time.Duration
	CoinGeckoURL    string
	CoinGeckoAPIKey string
	FetchRetries    int
	FetchRetryDelay time.Duration
	ChartCacheTTL   time.Duration
	PriceSource     string

	AIProvider string
	AIModel    string
	AIBaseURL  string

	HTTPAddr       string
	AutocertDomain string
	CertCacheDir   string
	WALDir         string

	TracingEnabled  bool
	TracingEndpoint string
	ServiceName     string
}

type ConfigTmp struct {
	QuoteAsset   string            `yaml:"quote_asset"`
	SeedBalances map[string]string `yaml:"seed_balances,omitempty"`
	Storage      struct {
		Backend  string `yaml:"backend"`
		Path     string `yaml:"path"`
		RedisURL string `yaml:"redis_url"`
	} `yaml:"storage"`
	Market struct {
		CoinIDs         []string      `yaml:"coin_ids"`
		MarketsInterval time.Duration `yaml:"markets_interval"`
		PriceInterval   time.Duration `yaml:"price_interval"`
		CoinGeckoURL    string        `yaml:"coingecko_url"`
		CoinGeckoAPIKey string        `yaml:"coingecko_api_key"`
		Retries         int           `yaml:"retries"`
		RetryDelay      time.Duration `yaml:"retry_delay"`
		ChartCacheTTL   time.Duration `yaml:"chart_cache_ttl"`
		PriceSource     string        `yaml:"price_source"`
	} `yaml:"market"`
	AI struct {
		Provider string `yaml:"provider"`
		Model    string `yaml:"model"`
		BaseURL  string `yaml:"base_url"`
	} `yaml:"ai"`
	HTTP struct {
		Addr           string `yaml:"addr"`
		AutocertDomain string `yaml:"autocert_domain"`
		CertCacheDir   string `yaml:"cert_cache_dir"`
	} `yaml:"http"`
	WALDir  string `yaml:"wal_dir"`
	Tracing struct {
		Enabled     bool   `yaml:"enabled"`
		Endpoint    string `yaml:"endpoint"`
		ServiceName string `yaml:"service_name"`
	} `yaml:"tracing"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		QuoteAsset:      domain.QuoteAsset,
		SeedBalances:    domain.SeedBalances(),
		Storage:         StorageFile,
		Path:            defaultStorePath,
		CoinIDs:         append([]string(nil), domain.DefaultCoinIDs...),
		MarketsInterval: defaultMarketsInterval,
		PriceInterval:   defaultPriceInterval,
		FetchRetries:    defaultRetries,
		FetchRetryDelay: defaultRetryDelay,
		ChartCacheTTL:   defaultChartCacheTTL,
		AIProvider:      ProviderGemini,
		HTTPAddr:        defaultHTTPAddr,
		WALDir:          defaultWALDir,
		ServiceName:     defaultServiceName,
	}
}

// Load reads .env, then the yaml file at path (a missing file means defaults),
// then applies environment overrides and validates the result.
func Load(path string) (Config, error) {
	if err := loadEnvFunc(); err != nil && !os.IsNotExist(err) {
		return Config{}, errors.Wrap(err, "load .env")
	}

	cfg := Default()
	if path != "" {
		f, err := os.ReadFile(path)
		switch {
		case err == nil:
			if cfg, err = parse(f); err != nil {
				return Config{}, err
			}
		case os.IsNotExist(err):
		default:
			return Config{}, errors.Wrapf(err, "read config %s", path)
		}
	}

	applyEnv(&cfg, os.Getenv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func parse(data []byte) (Config, error) {
	var c ConfigTmp
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, errors.Wrap(err, "parse yaml config")
	}

	cfg := Default()
	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	setDuration := func(dst *time.Duration, v time.Duration) {
		if v != 0 {
			*dst = v
		}
	}

	set(&cfg.QuoteAsset, c.QuoteAsset)
	cfg.QuoteAsset = domain.NormalizeSymbol(cfg.QuoteAsset)

	if len(c.SeedBalances) > 0 {
		seed := make(domain.Balances, len(c.SeedBalances))
		for asset, raw := range c.SeedBalances {
			amount, err := decimal.NewFromString(raw)
			if err != nil {
				return Config{}, fmt.Errorf("incorrect 'seed_balances.%s' param in yaml config (must be a decimal), error: %w", asset, err)
			}
			seed[domain.NormalizeSymbol(asset)] = amount
		}
		cfg.SeedBalances = seed
	}

	set(&cfg.Storage, c.Storage.Backend)
	set(&cfg.Path, c.Storage.Path)
	set(&cfg.RedisURL, c.Storage.RedisURL)

	if len(c.Market.CoinIDs) > 0 {
		cfg.CoinIDs = c.Market.CoinIDs
	}
	setDuration(&cfg.MarketsInterval, c.Market.MarketsInterval)
	setDuration(&cfg.PriceInterval, c.Market.PriceInterval)
	set(&cfg.CoinGeckoURL, c.Market.CoinGeckoURL)
	set(&cfg.CoinGeckoAPIKey, c.Market.CoinGeckoAPIKey)
	if c.Market.Retries != 0 {
		cfg.FetchRetries = c.Market.Retries
	}
	setDuration(&cfg.FetchRetryDelay, c.Market.RetryDelay)
	setDuration(&cfg.ChartCacheTTL, c.Market.ChartCacheTTL)
	set(&cfg.PriceSource, c.Market.PriceSource)

	set(&cfg.AIProvider, c.AI.Provider)
	set(&cfg.AIModel, c.AI.Model)
	set(&cfg.AIBaseURL, c.AI.BaseURL)

	set(&cfg.HTTPAddr, c.HTTP.Addr)
	set(&cfg.AutocertDomain, c.HTTP.AutocertDomain)
	set(&cfg.CertCacheDir, c.HTTP.CertCacheDir)
	set(&cfg.WALDir, c.WALDir)

	cfg.TracingEnabled = c.Tracing.Enabled
	set(&cfg.TracingEndpoint, c.Tracing.Endpoint)
	set(&cfg.ServiceName, c.Tracing.ServiceName)

	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) {
	overrides := []struct {
		name string
		dst  *string
	}{
		{"SOMTRADE_STORAGE", &cfg.Storage},
		{"SOMTRADE_STORE_PATH", &cfg.Path},
		{"SOMTRADE_REDIS_URL", &cfg.RedisURL},
		{"SOMTRADE_PRICE_SOURCE", &cfg.PriceSource},
		{"SOMTRADE_AI_PROVIDER", &cfg.AIProvider},
		{"SOMTRADE_AI_MODEL", &cfg.AIModel},
		{"SOMTRADE_AI_URL", &cfg.AIBaseURL},
		{"SOMTRADE_HTTP_ADDR", &cfg.HTTPAddr},
		{"SOMTRADE_WAL_DIR", &cfg.WALDir},
		{"SOMTRADE_OTLP_ENDPOINT", &cfg.TracingEndpoint},
		{"COINGECKO_API_KEY", &cfg.CoinGeckoAPIKey},
	}
	for _, o := range overrides {
		if v := strings.TrimSpace(getenv(o.name)); v != "" {
			*o.dst = v
		}
	}
	if v := strings.TrimSpace(getenv("SOMTRADE_COINS")); v != "" {
		cfg.CoinIDs = strings.Split(v, ",")
	}
	if strings.EqualFold(strings.TrimSpace(getenv("SOMTRADE_TRACING")), "true") {
		cfg.TracingEnabled = true
	}
}

// Validate checks cross-field constraints and normalises lists.
func (c *Config) Validate() error {
	if c.QuoteAsset == "" {
		return errors.New("quote asset is required")
	}
	for asset, amount := range c.SeedBalances {
		if amount.IsNegative() {
			return fmt.Errorf("seed balance of %s must not be negative", asset)
		}
	}

	switch c.Storage {
	case StorageFile:
		if c.Path == "" {
			return errors.New("storage path is required for the file backend")
		}
	case StorageMemory:
	case StorageRedis:
		if c.RedisURL == "" {
			return errors.New("redis_url is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage)
	}

	ids := make([]string, 0, len(c.CoinIDs))
	for _, id := range c.CoinIDs {
		if id = strings.ToLower(strings.TrimSpace(id)); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return errors.New("at least one coin id is required")
	}
	c.CoinIDs = ids

	if c.MarketsInterval <= 0 || c.PriceInterval <= 0 {
		return errors.New("poll intervals must be positive")
	}
	if c.FetchRetries < 1 {
		return fmt.Errorf("retries must be at least 1, got %d", c.FetchRetries)
	}
	if c.FetchRetryDelay < 0 || c.ChartCacheTTL < 0 {
		return errors.New("retry delay and chart cache ttl must not be negative")
	}

	switch c.PriceSource {
	case "", "binance", "bybit":
	default:
		return fmt.Errorf("unknown price source %q", c.PriceSource)
	}
	switch c.AIProvider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown ai provider %q", c.AIProvider)
	}
	return nil
}
