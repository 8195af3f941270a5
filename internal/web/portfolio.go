package web

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/somtrade/internal/domain"
	"github.com/vadiminshakov/somtrade/internal/valuation"
	"go.opentelemetry.io/otel/attribute"
)

type stakedView struct {
	Amount  string `json:"amount"`
	Rewards string `json:"rewards"`
}

type lineView struct {
	Asset  string `json:"asset"`
	Liquid string `json:"liquid"`
	Staked string `json:"staked"`
	Price  string `json:"price,omitempty"`
	Value  string `json:"value"`
	Share  string `json:"share"`
}

type portfolioView struct {
	Quote        string                `json:"quote"`
	Balances     map[string]string     `json:"balances"`
	Staked       map[string]stakedView `json:"staked"`
	TotalValue   string                `json:"total_value"`
	Breakdown    []lineView            `json:"breakdown"`
	PersistError string                `json:"persist_error,omitempty"`
}

// GetPortfolio returns balances, staked positions and the valuation against the latest markets.
func (s *Server) GetPortfolio(c *gin.Context) {
	_, span := s.tracer.Start(c.Request.Context(), "handler.get-portfolio")
	defer span.End()

	snapshot := s.deps.Portfolio.Snapshot()
	markets := s.markets()
	holdings := valuation.FromPortfolio(snapshot)

	view := portfolioView{
		Quote:      s.deps.QuoteAsset,
		Balances:   make(map[string]string, len(snapshot.Balances)),
		Staked:     make(map[string]stakedView, len(snapshot.Staked)),
		TotalValue: valuation.TotalValue(holdings, markets, s.deps.QuoteAsset).StringFixed(2),
	}
	for asset, amount := range snapshot.Balances {
		view.Balances[asset] = amount.String()
	}
	for asset, pos := range snapshot.Staked {
		view.Staked[asset] = stakedView{Amount: pos.Amount.String(), Rewards: pos.Rewards.String()}
	}
	for _, l := range valuation.Breakdown(holdings, markets, s.deps.QuoteAsset) {
		lv := lineView{
			Asset:  l.Asset,
			Liquid: l.Liquid.String(),
			Staked: l.Staked.String(),
			Value:  l.Value.StringFixed(2),
			Share:  l.Share.StringFixed(2),
		}
		if l.Priced {
			lv.Price = l.Price.String()
		}
		view.Breakdown = append(view.Breakdown, lv)
	}
	if err := s.deps.Portfolio.PersistErr(); err != nil {
		view.PersistError = err.Error()
	}
	span.SetAttributes(attribute.Int("portfolio.assets", len(view.Balances)))

	c.JSON(http.StatusOK, view)
}

// GetTransactions returns the history newest first.
func (s *Server) GetTransactions(c *gin.Context) {
	history := s.deps.Portfolio.Snapshot().History
	payload, err := domain.MarshalTransactions(history)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": json.RawMessage(payload)})
}

type tradeRequest struct {
	Side   string          `json:"side"`
	Base   string          `json:"base"`
	Quote  string          `json:"quote"`
	Amount decimal.Decimal `json:"amount"`
	// Price is optional; the latest market price of Base is used when omitted.
	Price decimal.Decimal `json:"price"`
}

// Trade executes a buy or sell.
func (s *Server) Trade(c *gin.Context) {
	ctx, span := s.tracer.Start(c.Request.Context(), "handler.trade")
	defer span.End()

	var req tradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, codeInvalidRequest, "invalid request body")
		return
	}
	side, err := domain.ParseSide(req.Side)
	if err != nil {
		s.fail(c, err)
		return
	}
	if req.Quote == "" {
		req.Quote = s.deps.QuoteAsset
	}
	span.SetAttributes(
		attribute.String("side", side.String()),
		attribute.String("base", req.Base),
		attribute.String("amount", req.Amount.String()),
	)

	price := req.Price
	if price.IsZero() {
		var ok bool
		if price, ok = s.marketPrice(req.Base); !ok {
			abortError(c, http.StatusBadRequest, codeInvalidRequest, "no market price for "+strings.ToUpper(req.Base))
			return
		}
	}

	trade, err := s.deps.Portfolio.ExecuteTrade(ctx, side, req.Amount, price, req.Base, req.Quote)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.respondTx(c, trade)
}

type assetAmountRequest struct {
	Asset  string          `json:"asset"`
	Amount decimal.Decimal `json:"amount"`
}

func (s *Server) assetOperation(name string, op func(c *gin.Context, asset string, amount decimal.Decimal) (domain.Transaction, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := s.tracer.Start(c.Request.Context(), "handler."+name)
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		var req assetAmountRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			abortError(c, http.StatusBadRequest, codeInvalidRequest, "invalid request body")
			return
		}
		span.SetAttributes(attribute.String("asset", req.Asset), attribute.String("amount", req.Amount.String()))

		tx, err := op(c, req.Asset, req.Amount)
		if err != nil {
			s.fail(c, err)
			return
		}
		s.respondTx(c, tx)
	}
}

// Stake moves liquid balance into a staked position.
func (s *Server) Stake(c *gin.Context) {
	s.assetOperation("stake", func(c *gin.Context, asset string, amount decimal.Decimal) (domain.Transaction, error) {
		return s.deps.Portfolio.Stake(c.Request.Context(), asset, amount)
	})(c)
}

// Unstake moves staked principal back to the liquid balance.
func (s *Server) Unstake(c *gin.Context) {
	s.assetOperation("unstake", func(c *gin.Context, asset string, amount decimal.Decimal) (domain.Transaction, error) {
		return s.deps.Portfolio.Unstake(c.Request.Context(), asset, amount)
	})(c)
}

// ClaimReward credits staking yield to an existing staked position.
func (s *Server) ClaimReward(c *gin.Context) {
	s.assetOperation("reward", func(c *gin.Context, asset string, amount decimal.Decimal) (domain.Transaction, error) {
		return s.deps.Portfolio.CreditReward(c.Request.Context(), asset, amount)
	})(c)
}

// Deposit credits the liquid balance.
func (s *Server) Deposit(c *gin.Context) {
	s.assetOperation("deposit", func(c *gin.Context, asset string, amount decimal.Decimal) (domain.Transaction, error) {
		return s.deps.Portfolio.Deposit(c.Request.Context(), asset, amount)
	})(c)
}

// Withdraw debits the liquid balance.
func (s *Server) Withdraw(c *gin.Context) {
	s.assetOperation("withdraw", func(c *gin.Context, asset string, amount decimal.Decimal) (domain.Transaction, error) {
		return s.deps.Portfolio.Withdraw(c.Request.Context(), asset, amount)
	})(c)
}

func (s *Server) respondTx(c *gin.Context, tx domain.Transaction) {
	payload, err := domain.MarshalTransactions([]domain.Transaction{tx})
	if err != nil {
		s.fail(c, err)
		return
	}
	var records []json.RawMessage
	if err := json.Unmarshal(payload, &records); err != nil {
		s.fail(c, err)
		return
	}
	desc, _ := domain.Describe(tx)
	c.JSON(http.StatusOK, gin.H{"transaction": records[0], "description": desc})
}

type poolView struct {
	ID          string `json:"id"`
	Asset       string `json:"asset"`
	Symbol      string `json:"symbol"`
	Image       string `json:"image,omitempty"`
	APY         string `json:"apy"`
	LockupDays  int    `json:"lockup_days"`
	Flexible    bool   `json:"flexible"`
	TotalStaked string `json:"total_staked"`
	Staked      string `json:"staked"`
	Available   string `json:"available"`
}

// GetStakingPools lists the pools with the user's position in each.
func (s *Server) GetStakingPools(c *gin.Context) {
	snapshot := s.deps.Portfolio.Snapshot()
	pools := make([]poolView, 0, len(s.deps.Pools))
	for _, p := range s.deps.Pools {
		pools = append(pools, poolView{
			ID:          p.ID,
			Asset:       p.Asset,
			Symbol:      p.Symbol,
			Image:       p.Image,
			APY:         p.APY.String(),
			LockupDays:  p.LockupDays,
			Flexible:    p.Flexible(),
			TotalStaked: p.TotalStaked.String(),
			Staked:      snapshot.Staked[p.Symbol].Total().String(),
			Available:   snapshot.Balances.Get(p.Symbol).String(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"pools": pools})
}

func (s *Server) markets() []domain.MarketSnapshot {
	if s.deps.Feed == nil {
		return nil
	}
	return s.deps.Feed.Markets()
}

// marketPrice looks asset up in the feed by symbol.
func (s *Server) marketPrice(asset string) (decimal.Decimal, bool) {
	price, ok := valuation.Prices(s.markets())[domain.NormalizeSymbol(asset)]
	if !ok || !price.IsPositive() {
		return decimal.Zero, false
	}
	return price, true
}
