// Package web serves the JSON API and the balance event stream consumed by the
// browser front end.
package web

import (
	"context"
	"crypto/tls"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/somtrade/internal/domain"
	"github.com/vadiminshakov/somtrade/internal/events"
	"github.com/vadiminshakov/somtrade/internal/services/advisor"
	"github.com/vadiminshakov/somtrade/internal/services/marketdata"
	"github.com/vadiminshakov/somtrade/internal/session"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"
)

// Portfolio is the ledger surface used by the API.
type Portfolio interface {
	ExecuteTrade(ctx context.Context, side domain.Side, amount, price decimal.Decimal, base, quote string) (domain.Trade, error)
	Stake(ctx context.Context, asset string, amount decimal.Decimal) (domain.Stake, error)
	Unstake(ctx context.Context, asset string, amount decimal.Decimal) (domain.Unstake, error)
	Deposit(ctx context.Context, asset string, amount decimal.Decimal) (domain.Deposit, error)
	Withdraw(ctx context.Context, asset string, amount decimal.Decimal) (domain.Withdraw, error)
	CreditReward(ctx context.Context, asset string, amount decimal.Decimal) (domain.Reward, error)
	Snapshot() domain.Portfolio
	PersistErr() error
}

// Sessions handles sign-in and preferences.
type Sessions interface {
	Login(ctx context.Context, username, password string) (string, error)
	Logout(ctx context.Context) error
	Validate(ctx context.Context, token string) bool
	Settings(ctx context.Context) (session.Settings, error)
	SetTheme(ctx context.Context, t session.Theme) error
	SetAPIKey(ctx context.Context, key string) error
}

// MarketFeed is the polled market list.
type MarketFeed interface {
	Markets() []domain.MarketSnapshot
	UpdatedAt() time.Time
	Banner() (string, bool)
	DismissBanner()
}

type balanceSnapshotReader interface {
	SnapshotsAfter(index uint64) ([]domain.BalanceSnapshotRecord, error)
}

// Deps are the collaborators of the API. Snapshots and Broadcaster are optional;
// without Snapshots the balance stream answers 503.
type Deps struct {
	Portfolio   Portfolio
	Sessions    Sessions
	Feed        MarketFeed
	Markets     marketdata.Gateway
	Advisor     advisor.Gateway
	Snapshots   balanceSnapshotReader
	Broadcaster *events.BalanceBroadcaster
	Pools       []domain.StakingPool
	QuoteAsset  string
}

// Server exposes HTTP endpoints for the API and the SSE stream.
type Server struct {
	Addr        string
	ServiceName string

	deps   Deps
	tracer trace.Tracer
	l      *zap.Logger

	rndMu sync.Mutex
	rnd   *rand.Rand
}

// NewServer creates a new web server instance.
func NewServer(addr string, deps Deps, tracer trace.Tracer, l *zap.Logger) *Server {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("web")
	}
	if l == nil {
		l = zap.NewNop()
	}
	if deps.QuoteAsset == "" {
		deps.QuoteAsset = domain.QuoteAsset
	}
	if deps.Pools == nil {
		deps.Pools = domain.DefaultStakingPools()
	}
	return &Server{
		Addr:        addr,
		ServiceName: "somtrade",
		deps:        deps,
		tracer:      tracer,
		l:           l,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Handler builds the gin engine with every route registered.
func (s *Server) Handler() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(s.ServiceName))
	s.RegisterRoutes(r)
	return r
}

// RegisterRoutes mounts the API on r.
func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.Health)
	r.POST("/api/login", s.Login)
	r.GET("/balance/stream", s.requireSession(), s.BalanceStream)

	api := r.Group("/api", s.requireSession())
	api.POST("/logout", s.Logout)

	api.GET("/portfolio", s.GetPortfolio)
	api.GET("/transactions", s.GetTransactions)
	api.POST("/trade", s.Trade)
	api.POST("/stake", s.Stake)
	api.POST("/unstake", s.Unstake)
	api.POST("/deposit", s.Deposit)
	api.POST("/withdraw", s.Withdraw)
	api.GET("/staking/pools", s.GetStakingPools)
	api.POST("/staking/reward", s.ClaimReward)

	api.GET("/markets", s.GetMarkets)
	api.DELETE("/markets/banner", s.DismissBanner)
	api.GET("/markets/all", s.GetAllMarkets)
	api.GET("/markets/:id/chart", s.GetChart)
	api.GET("/markets/:id/price", s.GetPrice)

	api.POST("/ai/insights", s.Insights)
	api.POST("/ai/analysis", s.Analysis)
	api.POST("/ai/chat", s.Chat)

	api.GET("/settings", s.GetSettings)
	api.PUT("/settings", s.PutSettings)
}

// Health reports liveness.
func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) httpServer(handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              s.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := s.httpServer(s.Handler())

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.l.Info("http api listening", zap.String("addr", s.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StartWithAutoTLS runs an HTTPS server with automatic TLS certificates via ACME.
// It also starts an HTTP server on port 80 to handle ACME HTTP-01 challenges.
func (s *Server) StartWithAutoTLS(ctx context.Context, domains []string, cacheDir string) error {
	if len(domains) == 0 {
		return errors.New("no domains provided for automatic TLS")
	}
	if cacheDir == "" {
		cacheDir = "cert-cache"
	}

	manager := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(domains...),
		Cache:      autocert.DirCache(cacheDir),
	}

	httpSrv := &http.Server{
		Addr:              ":80",
		Handler:           manager.HTTPHandler(nil),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	tlsConfig := manager.TLSConfig()
	tlsConfig.MinVersion = tls.VersionTLS12
	httpsSrv := s.httpServer(s.Handler())
	httpsSrv.TLSConfig = tlsConfig

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.l.Warn("acme server shutdown", zap.Error(err))
		}
		if err := httpsSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.l.Warn("https server shutdown", zap.Error(err))
		}
	}()

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.l.Error("acme server", zap.Error(err))
		}
	}()

	s.l.Info("https api listening", zap.String("addr", s.Addr), zap.Strings("domains", domains))
	if err := httpsSrv.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) orderBook(price decimal.Decimal) domain.OrderBook {
	s.rndMu.Lock()
	defer s.rndMu.Unlock()
	return marketdata.GenerateOrderBook(price, s.rnd)
}
