package advisor

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vadiminshakov/somtrade/internal/domain"
	"github.com/vadiminshakov/somtrade/internal/valuation"
)

// WelcomeMessage opens every chat session. It is shown locally and never sent to the model.
const WelcomeMessage = "Hello! I am the SomTrade AI Trading Assistant. How can I help you today? " +
	"You can ask me about market trends, specific assets, or general trading knowledge."

// ChatInstruction is the system instruction of the chat assistant.
const ChatInstruction = `You are the SomTrade AI Trading Assistant, embedded in a paper-trading crypto exchange.
Users trade with simulated funds, so never claim that real money is at stake.

Answer questions about market trends, specific crypto assets and general trading knowledge.
Be concise and concrete. Prefer short paragraphs and bullet points.
When asked for a prediction, explain the drivers and the uncertainty instead of giving a price target.
Do not give personalised financial advice and remind the user to do their own research when it matters.`

// AnalystInstruction is the system instruction of the portfolio analysis.
const AnalystInstruction = `You are a crypto portfolio analyst reviewing a paper-trading account.
Respond in markdown with these sections: Overview, Diversification, Risk, Suggestions.
Keep the whole response under 250 words and reference the actual holdings.`

// InsightsPrompt asks for a short overview of coinName.
func InsightsPrompt(coinName string) string {
	return fmt.Sprintf(`Provide a concise, expert overview for a crypto trader about %s. Cover these key points in bullet points:
- Core Purpose: What is its main function or use case?
- Key Differentiator: What makes it unique compared to competitors?
- Recent Performance Quick-Look: Briefly mention its recent price trend (e.g., bullish, bearish, consolidating).
- Potential Catalysts: What are 1-2 upcoming events or factors that could impact its price?

Keep the entire response under 150 words.`, coinName)
}

// PortfolioPrompt describes the holdings of snapshot priced with markets.
func PortfolioPrompt(snapshot domain.Portfolio, markets []domain.MarketSnapshot, quote string) string {
	holdings := valuation.FromPortfolio(snapshot)
	lines := valuation.Breakdown(holdings, markets, quote)
	total := valuation.TotalValue(holdings, markets, quote)
	q := strings.ToUpper(quote)

	var sb strings.Builder
	sb.WriteString("Analyze this crypto portfolio.\n\n")
	fmt.Fprintf(&sb, "TOTAL VALUE: %s %s\n\n", total.StringFixed(2), q)

	sb.WriteString("HOLDINGS (asset | liquid | staked | price | value | share):\n")
	if len(lines) == 0 {
		sb.WriteString("- none\n")
	}
	for _, l := range lines {
		price := "unknown"
		if l.Priced {
			price = l.Price.String()
		}
		fmt.Fprintf(&sb, "- %s | %s | %s | %s | %s %s | %s%%\n",
			strings.ToUpper(l.Asset), l.Liquid.String(), l.Staked.String(), price,
			l.Value.StringFixed(2), q, l.Share.StringFixed(2))
	}

	if len(markets) > 0 {
		sorted := make([]domain.MarketSnapshot, len(markets))
		copy(sorted, markets)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].MarketCapRank < sorted[j].MarketCapRank })

		sb.WriteString("\nMARKET (symbol | price | 24h change):\n")
		for _, m := range sorted {
			fmt.Fprintf(&sb, "- %s | %s | %.2f%%\n", strings.ToUpper(m.Symbol), m.CurrentPrice.String(), m.PriceChangePct24h)
		}
	}

	if len(snapshot.History) > 0 {
		sb.WriteString("\nRECENT ACTIVITY (newest first):\n")
		for i, tx := range snapshot.History {
			if i == recentActivity {
				break
			}
			desc, err := domain.Describe(tx)
			if err != nil {
				continue
			}
			fmt.Fprintf(&sb, "- %s\n", desc)
		}
	}

	return sb.String()
}

const recentActivity = 10
