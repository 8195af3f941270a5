package marketdata

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func response(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
		Header:     make(http.Header),
	}
}

func newTestFetcher(rt roundTripFunc, opts ...FetcherOption) *HTTPFetcher {
	opts = append([]FetcherOption{
		WithBaseURL("http://example/api/v3"),
		WithHTTPClient(&http.Client{Transport: rt}),
		WithRetry(3, time.Millisecond),
	}, opts...)
	return NewHTTPFetcher(opts...)
}

func TestHTTPFetcher_Success(t *testing.T) {
	var got *http.Request
	f := newTestFetcher(func(req *http.Request) (*http.Response, error) {
		got = req
		return response(http.StatusOK, `{"ok":true}`), nil
	}, WithAPIKey("demo-key"))

	body, err := f.Fetch(context.Background(), "/simple/price?ids=bitcoin&vs_currencies=usd")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))

	assert.Equal(t, "/api/v3/simple/price", got.URL.Path)
	assert.Equal(t, "bitcoin", got.URL.Query().Get("ids"))
	assert.Equal(t, "demo-key", got.URL.Query().Get("x_cg_demo_api_key"))
}

func TestHTTPFetcher_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	f := newTestFetcher(func(*http.Request) (*http.Response, error) {
		calls.Add(1)
		return response(http.StatusNotFound, "coin not found"), nil
	})

	_, err := f.Fetch(context.Background(), "/coins/nope/market_chart")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetch)
	assert.Equal(t, int32(1), calls.Load())

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusNotFound, fe.Status)
	assert.False(t, fe.Temporary())
	assert.Contains(t, fe.Error(), "coin not found")
}

func TestHTTPFetcher_ServerErrorIsRetried(t *testing.T) {
	t.Run("exhausts attempts", func(t *testing.T) {
		var calls atomic.Int32
		f := newTestFetcher(func(*http.Request) (*http.Response, error) {
			calls.Add(1)
			return response(http.StatusBadGateway, "upstream"), nil
		})

		_, err := f.Fetch(context.Background(), "/coins/markets")
		assert.ErrorIs(t, err, ErrFetch)
		assert.Equal(t, int32(3), calls.Load())

		var fe *FetchError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, http.StatusBadGateway, fe.Status)
		assert.True(t, fe.Temporary())
	})

	t.Run("recovers", func(t *testing.T) {
		var calls atomic.Int32
		f := newTestFetcher(func(*http.Request) (*http.Response, error) {
			if calls.Add(1) < 3 {
				return response(http.StatusServiceUnavailable, ""), nil
			}
			return response(http.StatusOK, `[]`), nil
		})

		body, err := f.Fetch(context.Background(), "/coins/markets")
		require.NoError(t, err)
		assert.Equal(t, "[]", string(body))
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("transport error", func(t *testing.T) {
		var calls atomic.Int32
		f := newTestFetcher(func(*http.Request) (*http.Response, error) {
			calls.Add(1)
			return nil, errors.New("connection reset")
		})

		_, err := f.Fetch(context.Background(), "/coins/markets")
		var fe *FetchError
		require.ErrorAs(t, err, &fe)
		assert.Zero(t, fe.Status)
		assert.Equal(t, int32(3), calls.Load())
	})
}
