package marketdata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/somtrade/pkg/retrier"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://api.coingecko.com/api/v3"

	defaultAttempts     = 3
	defaultInitialDelay = time.Second
	defaultHTTPTimeout  = 30 * time.Second
	maxErrorBody        = 512
	apiKeyParam         = "x_cg_demo_api_key"
)

// ErrFetch matches every *FetchError.
var ErrFetch = errors.New("market data fetch failed")

// FetchError is returned once an endpoint could not be fetched. Status is zero for transport failures.
type FetchError struct {
	Endpoint string
	Status   int
	Err      error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.Endpoint, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.Endpoint, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrFetch) hold for any FetchError.
func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// Temporary reports whether the failure was server-class and could succeed later.
func (e *FetchError) Temporary() bool { return e.Status == 0 || e.Status >= 500 }

// Fetcher retrieves the raw body of a market data endpoint, e.g. "/simple/price?ids=bitcoin".
type Fetcher interface {
	Fetch(ctx context.Context, endpoint string) ([]byte, error)
}

// HTTPFetcher issues GET requests against a REST base URL with retry and exponential backoff.
// Server errors and transport failures are retried; client errors are returned at once.
type HTTPFetcher struct {
	baseURL  string
	apiKey   string
	client   *http.Client
	l        *zap.Logger
	attempts int
	delay    time.Duration
}

// FetcherOption configures an HTTPFetcher.
type FetcherOption func(*HTTPFetcher)

// WithBaseURL overrides the API root.
func WithBaseURL(u string) FetcherOption {
	return func(f *HTTPFetcher) { f.baseURL = strings.TrimRight(u, "/") }
}

// WithAPIKey sets the demo API key appended to every request.
func WithAPIKey(key string) FetcherOption {
	return func(f *HTTPFetcher) { f.apiKey = key }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *HTTPFetcher) { f.client = c }
}

// WithRetry sets the total attempt count and the delay before the first retry.
func WithRetry(attempts int, initialDelay time.Duration) FetcherOption {
	return func(f *HTTPFetcher) {
		if attempts > 0 {
			f.attempts = attempts
		}
		f.delay = initialDelay
	}
}

// WithFetcherLogger sets the logger.
func WithFetcherLogger(l *zap.Logger) FetcherOption {
	return func(f *HTTPFetcher) {
		if l != nil {
			f.l = l
		}
	}
}

// NewHTTPFetcher creates a fetcher for the CoinGecko API unless overridden.
func NewHTTPFetcher(opts ...FetcherOption) *HTTPFetcher {
	f := &HTTPFetcher{
		baseURL:  DefaultBaseURL,
		client:   &http.Client{Timeout: defaultHTTPTimeout},
		l:        zap.NewNop(),
		attempts: defaultAttempts,
		delay:    defaultInitialDelay,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	if e.status >= 400 && e.status < 500 {
		return fmt.Sprintf("request failed: %d. Message: %s", e.status, e.body)
	}
	return fmt.Sprintf("server error: %d. Message: %s", e.status, e.body)
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, endpoint string) ([]byte, error) {
	target, err := f.url(endpoint)
	if err != nil {
		return nil, &FetchError{Endpoint: endpoint, Err: err}
	}

	r := retrier.New(
		retrier.WithAttempts(f.attempts),
		retrier.WithInitialDelay(f.delay),
		retrier.WithOnRetry(func(attempt int, err error) {
			f.l.Warn("market data request failed, retrying",
				zap.String("endpoint", endpoint),
				zap.Int("attempt", attempt),
				zap.Error(err))
		}),
	)

	body, err := retrier.DoWithData(r, ctx, func(ctx context.Context) ([]byte, error) {
		return f.get(ctx, target)
	})
	if err != nil {
		fe := &FetchError{Endpoint: endpoint, Err: err}
		var se *statusError
		if errors.As(err, &se) {
			fe.Status = se.status
		}
		return nil, fe
	}

	return body, nil
}

func (f *HTTPFetcher) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, retrier.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return io.ReadAll(resp.Body)
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	se := &statusError{status: resp.StatusCode, body: strings.TrimSpace(string(body))}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return nil, retrier.Permanent(se)
	}
	return nil, se
}

func (f *HTTPFetcher) url(endpoint string) (string, error) {
	u, err := url.Parse(f.baseURL + endpoint)
	if err != nil {
		return "", errors.Wrap(err, "parse endpoint")
	}
	if f.apiKey != "" {
		q := u.Query()
		q.Set(apiKeyParam, f.apiKey)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
