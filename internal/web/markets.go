package web

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/somtrade/internal/domain"
	"github.com/vadiminshakov/somtrade/internal/services/marketdata"
	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultAllMarkets = 100
	maxAllMarkets     = 250
)

// GetMarkets returns the polled market list and the stale-data banner if raised.
func (s *Server) GetMarkets(c *gin.Context) {
	if s.deps.Feed == nil {
		abortError(c, http.StatusServiceUnavailable, codeMarketUnavailable, "market feed is not running")
		return
	}
	resp := gin.H{"markets": s.deps.Feed.Markets()}
	if updated := s.deps.Feed.UpdatedAt(); !updated.IsZero() {
		resp["updated_at"] = updated.UnixMilli()
	}
	if banner, ok := s.deps.Feed.Banner(); ok {
		resp["banner"] = banner
	}
	c.JSON(http.StatusOK, resp)
}

// DismissBanner hides the stale-data banner until the next failed refresh.
func (s *Server) DismissBanner(c *gin.Context) {
	if s.deps.Feed != nil {
		s.deps.Feed.DismissBanner()
	}
	c.Status(http.StatusNoContent)
}

// GetAllMarkets returns the top coins by market cap.
func (s *Server) GetAllMarkets(c *gin.Context) {
	ctx, span := s.tracer.Start(c.Request.Context(), "handler.get-all-markets")
	defer span.End()

	count := defaultAllMarkets
	if v := c.Query("count"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= maxAllMarkets {
			count = n
		}
	}
	span.SetAttributes(attribute.Int("count", count))

	markets, err := s.deps.Markets.FetchAllMarkets(ctx, count)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"markets": markets})
}

type indicatorsView struct {
	Last     string `json:"last"`
	SMA20    string `json:"sma20"`
	EMA20    string `json:"ema20"`
	RSI14    string `json:"rsi14"`
	MACD     string `json:"macd"`
	Trend    string `json:"trend"`
	Complete bool   `json:"complete"`
}

// GetChart returns the price series of a coin with indicators and a synthetic order book.
func (s *Server) GetChart(c *gin.Context) {
	ctx, span := s.tracer.Start(c.Request.Context(), "handler.get-chart")
	defer span.End()

	id := strings.ToLower(c.Param("id"))
	span.SetAttributes(attribute.String("coin.id", id))

	series, err := s.deps.Markets.FetchChartSeries(ctx, id)
	if err != nil {
		s.fail(c, err)
		return
	}

	summary := marketdata.Indicators(series)
	resp := gin.H{
		"id":     id,
		"series": series,
		"indicators": indicatorsView{
			Last:     summary.Last.String(),
			SMA20:    summary.SMA20.StringFixed(2),
			EMA20:    summary.EMA20.StringFixed(2),
			RSI14:    summary.RSI14.StringFixed(2),
			MACD:     summary.MACD.StringFixed(4),
			Trend:    string(summary.Trend),
			Complete: summary.Complete,
		},
	}
	if len(series) > 0 {
		resp["order_book"] = s.orderBook(series[len(series)-1].Price)
	}
	c.JSON(http.StatusOK, resp)
}

// GetPrice returns the current price of a coin and a fresh order book around it.
func (s *Server) GetPrice(c *gin.Context) {
	ctx, span := s.tracer.Start(c.Request.Context(), "handler.get-price")
	defer span.End()

	id := strings.ToLower(c.Param("id"))
	span.SetAttributes(attribute.String("coin.id", id))

	price, err := s.deps.Markets.FetchCurrentPrice(ctx, id)
	if err != nil {
		s.fail(c, err)
		return
	}

	resp := gin.H{"id": id, "price": price, "order_book": s.orderBook(price)}
	if symbol, ok := domain.SymbolForCoin(id); ok {
		resp["symbol"] = symbol
		resp["balance"] = s.balance(symbol)
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) balance(asset string) decimal.Decimal {
	return s.deps.Portfolio.Snapshot().Balances.Get(asset)
}
