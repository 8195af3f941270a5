package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/somtrade/internal/domain"
	"github.com/vadiminshakov/somtrade/internal/events"
	"github.com/vadiminshakov/somtrade/internal/ledger"
	"github.com/vadiminshakov/somtrade/internal/services/advisor"
	"github.com/vadiminshakov/somtrade/internal/services/marketdata"
	"github.com/vadiminshakov/somtrade/internal/session"
	"github.com/vadiminshakov/somtrade/internal/storage/memstore"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeFeed struct {
	markets   []domain.MarketSnapshot
	banner    string
	dismissed bool
}

func (f *fakeFeed) Markets() []domain.MarketSnapshot { return f.markets }
func (f *fakeFeed) UpdatedAt() time.Time              { return time.UnixMilli(1000) }
func (f *fakeFeed) Banner() (string, bool)            { return f.banner, f.banner != "" }
func (f *fakeFeed) DismissBanner()                    { f.dismissed = true; f.banner = "" }

type fakeGateway struct {
	series []domain.ChartPoint
	price  decimal.Decimal
	err    error
}

func (g *fakeGateway) FetchMarkets(context.Context, []string) ([]domain.MarketSnapshot, error) {
	return nil, g.err
}

func (g *fakeGateway) FetchAllMarkets(_ context.Context, count int) ([]domain.MarketSnapshot, error) {
	if g.err != nil {
		return nil, g.err
	}
	return make([]domain.MarketSnapshot, count), nil
}

func (g *fakeGateway) FetchChartSeries(context.Context, string) ([]domain.ChartPoint, error) {
	return g.series, g.err
}

func (g *fakeGateway) FetchCurrentPrice(context.Context, string) (decimal.Decimal, error) {
	return g.price, g.err
}

type fakeAdvisor struct {
	text string
	err  error
}

func (a *fakeAdvisor) Insights(context.Context, string) (string, error) { return a.text, a.err }

func (a *fakeAdvisor) PortfolioAnalysis(context.Context, domain.Portfolio, []domain.MarketSnapshot) (string, error) {
	return a.text, a.err
}

func (a *fakeAdvisor) ChatReply(context.Context, []domain.ChatMessage, string) (string, error) {
	return a.text, a.err
}

type fakeSnapshots struct {
	records []domain.BalanceSnapshotRecord
}

func (f *fakeSnapshots) SnapshotsAfter(index uint64) ([]domain.BalanceSnapshotRecord, error) {
	var out []domain.BalanceSnapshotRecord
	for _, r := range f.records {
		if r.Index > index {
			out = append(out, r)
		}
	}
	return out, nil
}

type harness struct {
	router  *gin.Engine
	ledger  *ledger.Ledger
	feed    *fakeFeed
	gateway *fakeGateway
	advisor *fakeAdvisor
	token   string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	lg := ledger.New(ctx, store)
	sessions := session.New(store, lg, nil)

	h := &harness{
		ledger: lg,
		feed: &fakeFeed{markets: []domain.MarketSnapshot{
			{ID: "bitcoin", Symbol: "btc", CurrentPrice: decimal.NewFromInt(60000), MarketCapRank: 1},
		}},
		gateway: &fakeGateway{price: decimal.NewFromInt(61000)},
		advisor: &fakeAdvisor{text: "analysis"},
	}
	srv := NewServer(":0", Deps{
		Portfolio:   lg,
		Sessions:    sessions,
		Feed:        h.feed,
		Markets:     h.gateway,
		Advisor:     h.advisor,
		Snapshots:   &fakeSnapshots{},
		Broadcaster: events.NewBalanceBroadcaster(8),
	}, nil, nil)
	h.router = srv.Handler()

	w := h.do(t, http.MethodPost, "/api/login", `{"username":"alice","password":"pw"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotEmpty(t, body.Token)
	h.token = body.Token
	return h
}

func (h *harness) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestRequiresSession(t *testing.T) {
	h := newHarness(t)
	h.token = ""

	w := h.do(t, http.MethodGet, "/api/portfolio", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	h.token = "forged"
	w = h.do(t, http.MethodGet, "/api/portfolio", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do(t, http.MethodPost, "/api/login", `{"username":"","password":"x"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPortfolio(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodGet, "/api/portfolio", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)

	balances := body["balances"].(map[string]any)
	assert.Equal(t, "10000", balances["usdt"])
	assert.Equal(t, "0.5", balances["btc"])
	// only btc is priced: 10000 usdt + 0.5 * 60000
	assert.Equal(t, "40000.00", body["total_value"])
}

func TestTrade(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodPost, "/api/trade", `{"side":"buy","base":"btc","amount":"0.1"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	tx := decode(t, w)["transaction"].(map[string]any)
	assert.Equal(t, "trade", tx["kind"])
	assert.EqualValues(t, 60000, tx["price"])
	assert.True(t, h.ledger.Balance("usdt").Equal(decimal.NewFromInt(4000)))

	w = h.do(t, http.MethodPost, "/api/trade", `{"side":"buy","base":"btc","amount":"1","price":"60000"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := decode(t, w)
	assert.Equal(t, "insufficient_balance", body["code"])
	assert.Equal(t, "USDT", body["asset"])
	assert.True(t, h.ledger.Balance("usdt").Equal(decimal.NewFromInt(4000)))

	w = h.do(t, http.MethodPost, "/api/trade", `{"side":"hold","base":"btc","amount":"1","price":"1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(t, http.MethodPost, "/api/trade", `{"side":"buy","base":"doge","amount":"1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStakeAndHistory(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodPost, "/api/stake", `{"asset":"eth","amount":"5"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = h.do(t, http.MethodPost, "/api/unstake", `{"asset":"eth","amount":"7"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = h.do(t, http.MethodPost, "/api/staking/reward", `{"asset":"sol","amount":"1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(t, http.MethodPost, "/api/staking/reward", `{"asset":"eth","amount":"0.25"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = h.do(t, http.MethodPost, "/api/deposit", `{"asset":"usdt","amount":"0"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(t, http.MethodPost, "/api/withdraw", `{"asset":"usdt","amount":"100"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = h.do(t, http.MethodGet, "/api/transactions", "")
	require.Equal(t, http.StatusOK, w.Code)
	txs := decode(t, w)["transactions"].([]any)
	require.Len(t, txs, 3)
	assert.Equal(t, "withdraw", txs[0].(map[string]any)["kind"])
	assert.Equal(t, "reward", txs[1].(map[string]any)["kind"])
	assert.Equal(t, "stake", txs[2].(map[string]any)["kind"])

	w = h.do(t, http.MethodGet, "/api/staking/pools", "")
	require.Equal(t, http.StatusOK, w.Code)
	pools := decode(t, w)["pools"].([]any)
	require.NotEmpty(t, pools)
	eth := pools[0].(map[string]any)
	assert.Equal(t, "eth", eth["symbol"])
	assert.Equal(t, "5.25", eth["staked"])
	assert.Equal(t, "5", eth["available"])
}

func TestMarkets(t *testing.T) {
	h := newHarness(t)
	h.feed.banner = marketdata.StaleBanner

	w := h.do(t, http.MethodGet, "/api/markets", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, marketdata.StaleBanner, decode(t, w)["banner"])

	w = h.do(t, http.MethodDelete, "/api/markets/banner", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, h.feed.dismissed)

	w = h.do(t, http.MethodGet, "/api/markets/all?count=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["markets"], 5)

	w = h.do(t, http.MethodGet, "/api/markets/bitcoin/price", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "61000", body["price"])
	assert.Equal(t, "btc", body["symbol"])
	book := body["order_book"].(map[string]any)
	assert.Len(t, book["bids"], 15)

	h.gateway.series = []domain.ChartPoint{
		{Time: time.UnixMilli(1), Price: decimal.NewFromInt(100)},
		{Time: time.UnixMilli(2), Price: decimal.NewFromInt(101)},
	}
	w = h.do(t, http.MethodGet, "/api/markets/bitcoin/chart", "")
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.Len(t, body["series"], 2)
	assert.Equal(t, false, body["indicators"].(map[string]any)["complete"])

	h.gateway.err = &marketdata.FetchError{Endpoint: "/coins/markets", Status: 500, Err: errors.New("boom")}
	w = h.do(t, http.MethodGet, "/api/markets/all", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "market_unavailable", decode(t, w)["code"])
}

func TestAIErrors(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodPost, "/api/ai/analysis", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "analysis", decode(t, w)["text"])

	cases := []struct {
		err    error
		status int
		code   string
	}{
		{advisor.ErrMissingCredential, http.StatusPreconditionFailed, "credential_missing"},
		{advisor.ErrInvalidCredential, http.StatusPreconditionFailed, "credential_invalid"},
		{errors.New("quota exceeded"), http.StatusBadGateway, "ai_unavailable"},
		{advisor.ErrEmptyMessage, http.StatusBadRequest, "invalid_request"},
	}
	for _, tc := range cases {
		h.advisor.err = tc.err
		w := h.do(t, http.MethodPost, "/api/ai/chat", `{"history":[],"message":"hi"}`)
		assert.Equal(t, tc.status, w.Code, tc.code)
		assert.Equal(t, tc.code, decode(t, w)["code"])
	}

	h.advisor.err = nil
	h.advisor.text = "hello"
	w = h.do(t, http.MethodPost, "/api/ai/insights", `{"topic":"Bitcoin"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hello", decode(t, w)["text"])
}

func TestSettingsAndLogout(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodGet, "/api/settings", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "dark", body["settings"].(map[string]any)["theme"])
	assert.Equal(t, advisor.WelcomeMessage, body["chat_welcome"].(map[string]any)["text"])

	w = h.do(t, http.MethodPut, "/api/settings", `{"theme":"sepia"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(t, http.MethodPut, "/api/settings", `{"theme":"light","api_key":"k"}`)
	require.Equal(t, http.StatusOK, w.Code)
	settings := decode(t, w)["settings"].(map[string]any)
	assert.Equal(t, "light", settings["theme"])
	assert.Equal(t, true, settings["has_api_key"])

	_, err := h.ledger.Deposit(context.Background(), "usdt", decimal.NewFromInt(1))
	require.NoError(t, err)

	w = h.do(t, http.MethodPost, "/api/logout", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, h.ledger.History())

	w = h.do(t, http.MethodGet, "/api/portfolio", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBalanceStream(t *testing.T) {
	snapshots := &fakeSnapshots{records: []domain.BalanceSnapshotRecord{
		{Index: 1, Snapshot: domain.BalanceSnapshot{TxID: "a", Balances: map[string]string{"usdt": "1"}}},
		{Index: 2, Snapshot: domain.BalanceSnapshot{TxID: "b", Balances: map[string]string{"usdt": "2"}}},
	}}
	srv := NewServer(":0", Deps{Snapshots: snapshots}, nil, nil)

	run := func(lastEventID string) string {
		router := gin.New()
		router.GET("/balance/stream", srv.BalanceStream)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		req := httptest.NewRequest(http.MethodGet, "/balance/stream", nil).WithContext(ctx)
		if lastEventID != "" {
			req.Header.Set("Last-Event-ID", lastEventID)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
		return w.Body.String()
	}

	out := run("")
	assert.Contains(t, out, "id: 1\nevent: balance\n")
	assert.Contains(t, out, "id: 2\nevent: balance\n")
	assert.Contains(t, out, `"tx_id":"b"`)

	out = run("1")
	assert.NotContains(t, out, "id: 1\n")
	assert.Contains(t, out, "id: 2\n")

	out = run("2")
	assert.Contains(t, out, "event: no_data")
}

func TestThinRecords(t *testing.T) {
	records := make([]domain.BalanceSnapshotRecord, 300)
	for i := range records {
		records[i].Index = uint64(i + 1)
	}

	thinned := thinRecords(records)
	assert.Less(t, len(thinned), len(records))
	assert.Equal(t, records[200:], thinned[len(thinned)-100:])
	assert.Equal(t, uint64(200), thinned[len(thinned)-101].Index)
	for i := 1; i < len(thinned); i++ {
		assert.Less(t, thinned[i-1].Index, thinned[i].Index)
	}

	short := records[:10]
	assert.Equal(t, short, thinRecords(short))
}
