// Package advisor is the AI advisory gateway: it turns coin topics, portfolio
// snapshots and chat turns into prompts and hands them to a Model backend.
package advisor

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/somtrade/internal/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

var (
	// ErrMissingCredential no API key is configured for the backend.
	ErrMissingCredential = errors.New("ai credential is not configured")
	// ErrInvalidCredential the provider rejected the configured API key.
	ErrInvalidCredential = errors.New("ai credential was rejected")
	// ErrEmptyResponse the provider answered without any text.
	ErrEmptyResponse = errors.New("ai returned an empty response")
	// ErrEmptyMessage chat message or topic is blank.
	ErrEmptyMessage = errors.New("message is empty")
)

// IsCredentialError reports whether err means the user has to fix the API key.
func IsCredentialError(err error) bool {
	return errors.Is(err, ErrMissingCredential) || errors.Is(err, ErrInvalidCredential)
}

// Request is a single generation call.
type Request struct {
	// System instruction, may be empty.
	System string
	// History earlier chat turns, oldest first.
	History []domain.ChatMessage
	Prompt  string
}

// Model generates text for a request.
type Model interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Gateway is the advisory surface used by the views.
type Gateway interface {
	Insights(ctx context.Context, topic string) (string, error)
	PortfolioAnalysis(ctx context.Context, snapshot domain.Portfolio, markets []domain.MarketSnapshot) (string, error)
	ChatReply(ctx context.Context, history []domain.ChatMessage, message string) (string, error)
}

// Advisor implements Gateway over a Model.
type Advisor struct {
	model  Model
	quote  string
	tracer trace.Tracer
	l      *zap.Logger
}

// Option configures Advisor.
type Option func(*Advisor)

// WithTracer sets the tracer used for per-call spans.
func WithTracer(t trace.Tracer) Option {
	return func(a *Advisor) {
		if t != nil {
			a.tracer = t
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Advisor) {
		if l != nil {
			a.l = l
		}
	}
}

// WithQuoteAsset sets the asset portfolio values are expressed in.
func WithQuoteAsset(quote string) Option {
	return func(a *Advisor) {
		if quote != "" {
			a.quote = domain.NormalizeSymbol(quote)
		}
	}
}

// New creates an Advisor.
func New(model Model, opts ...Option) *Advisor {
	a := &Advisor{
		model:  model,
		quote:  domain.QuoteAsset,
		tracer: noop.NewTracerProvider().Tracer("advisor"),
		l:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Insights returns a short expert overview of topic, usually a coin name.
func (a *Advisor) Insights(ctx context.Context, topic string) (string, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return "", ErrEmptyMessage
	}
	ctx, span := a.tracer.Start(ctx, "advisor.insights")
	defer span.End()
	span.SetAttributes(attribute.String("topic", topic))

	return a.generate(ctx, span, "insights", Request{Prompt: InsightsPrompt(topic)})
}

// PortfolioAnalysis comments on the diversification and risk of snapshot.
func (a *Advisor) PortfolioAnalysis(ctx context.Context, snapshot domain.Portfolio, markets []domain.MarketSnapshot) (string, error) {
	ctx, span := a.tracer.Start(ctx, "advisor.portfolio-analysis")
	defer span.End()
	span.SetAttributes(
		attribute.Int("portfolio.assets", len(snapshot.Balances)),
		attribute.Int("markets", len(markets)),
	)

	return a.generate(ctx, span, "portfolio analysis", Request{
		System: AnalystInstruction,
		Prompt: PortfolioPrompt(snapshot, markets, a.quote),
	})
}

// ChatReply answers message in the context of history. Error notices in
// history are not sent to the model.
func (a *Advisor) ChatReply(ctx context.Context, history []domain.ChatMessage, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", ErrEmptyMessage
	}
	ctx, span := a.tracer.Start(ctx, "advisor.chat")
	defer span.End()

	turns := make([]domain.ChatMessage, 0, len(history))
	for _, m := range history {
		if m.IsError || strings.TrimSpace(m.Text) == "" {
			continue
		}
		turns = append(turns, m)
	}
	span.SetAttributes(attribute.Int("chat.turns", len(turns)))

	return a.generate(ctx, span, "chat", Request{
		System:  ChatInstruction,
		History: turns,
		Prompt:  message,
	})
}

func (a *Advisor) generate(ctx context.Context, span trace.Span, op string, req Request) (string, error) {
	text, err := a.model.Generate(ctx, req)
	if err == nil && strings.TrimSpace(text) == "" {
		err = ErrEmptyResponse
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if IsCredentialError(err) {
			a.l.Warn("ai credential problem", zap.String("op", op), zap.Error(err))
			return "", err
		}
		a.l.Error("ai request failed", zap.String("op", op), zap.Error(err))
		return "", errors.Wrapf(err, "ai %s", op)
	}
	return strings.TrimSpace(text), nil
}
