// Package render formats ledger and market data for the terminal.
package render

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Rhymond/go-money"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/somtrade/internal/domain"
	"github.com/vadiminshakov/somtrade/internal/valuation"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	warning   = lipgloss.AdaptiveColor{Light: "#D7263D", Dark: "#FF5F87"}

	titleStyle  = lipgloss.NewStyle().Foreground(highlight).Bold(true)
	headerStyle = lipgloss.NewStyle().Foreground(highlight).Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	numberStyle = cellStyle.Align(lipgloss.Right)
	upStyle     = numberStyle.Foreground(special)
	downStyle   = numberStyle.Foreground(warning)
	noteStyle   = lipgloss.NewStyle().Foreground(subtle).Italic(true)
)

// Warning styles an error or banner line.
func Warning(s string) string {
	return lipgloss.NewStyle().Foreground(warning).Render(s)
}

// Success styles a confirmation line.
func Success(s string) string {
	return lipgloss.NewStyle().Foreground(special).Render(s)
}

var currencyMu sync.Mutex

// Money formats amount in the currency named by code with two fraction digits
// and thousands separators. Codes unknown to go-money, such as USDT, are
// registered on first use with the code as a suffix.
func Money(amount decimal.Decimal, code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))

	currencyMu.Lock()
	defer currencyMu.Unlock()

	cur := money.GetCurrency(code)
	if cur == nil {
		cur = money.AddCurrency(code, code, "1 $", ".", ",", 2)
	}
	minor := amount.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(minor, code).Display()
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(subtle)).
		Headers(headers...)
}

// Portfolio renders the holdings table with the total value underneath.
func Portfolio(snapshot domain.Portfolio, markets []domain.MarketSnapshot, quote string) string {
	holdings := valuation.FromPortfolio(snapshot)
	lines := valuation.Breakdown(holdings, markets, quote)

	rows := make([][]string, 0, len(lines))
	for _, l := range lines {
		price := "n/a"
		if l.Priced {
			price = l.Price.String()
		}
		rows = append(rows, []string{
			strings.ToUpper(l.Asset),
			l.Liquid.String(),
			l.Staked.String(),
			price,
			Money(l.Value, quote),
			l.Share.StringFixed(2) + "%",
		})
	}

	t := newTable("ASSET", "LIQUID", "STAKED", "PRICE", "VALUE", "SHARE").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 0 {
				return cellStyle
			}
			return numberStyle
		})

	total := valuation.TotalValue(holdings, markets, quote)
	var b strings.Builder
	b.WriteString(t.String())
	b.WriteString("\n")
	b.WriteString(titleStyle.Render("Total value: " + Money(total, quote)))
	if len(markets) == 0 {
		b.WriteString("\n")
		b.WriteString(noteStyle.Render("no market data: only the quote asset is valued"))
	}
	return b.String()
}

// History renders transactions in the order given, newest first as kept by the ledger.
func History(txs []domain.Transaction) string {
	if len(txs) == 0 {
		return noteStyle.Render("no transactions yet")
	}
	rows := make([][]string, 0, len(txs))
	for _, tx := range txs {
		desc, err := domain.Describe(tx)
		if err != nil {
			desc = err.Error()
		}
		rows = append(rows, []string{
			tx.When().Local().Format("2006-01-02 15:04:05"),
			string(tx.Kind()),
			desc,
		})
	}
	return newTable("TIME", "KIND", "DETAILS").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		String()
}

// Markets renders market snapshots ordered by market cap rank.
func Markets(markets []domain.MarketSnapshot, quote string) string {
	sorted := append([]domain.MarketSnapshot(nil), markets...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return rank(sorted[i].MarketCapRank) < rank(sorted[j].MarketCapRank)
	})

	rows := make([][]string, 0, len(sorted))
	changes := make([]float64, 0, len(sorted))
	for _, m := range sorted {
		rows = append(rows, []string{
			fmt.Sprintf("%d", m.MarketCapRank),
			m.Name,
			strings.ToUpper(m.Symbol),
			Money(m.CurrentPrice, quote),
			fmt.Sprintf("%+.2f%%", m.PriceChangePct24h),
			Money(m.MarketCap, quote),
		})
		changes = append(changes, m.PriceChangePct24h)
	}

	return newTable("#", "NAME", "SYMBOL", "PRICE", "24H", "MARKET CAP").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 4 && changes[row] < 0:
				return downStyle
			case col == 4:
				return upStyle
			case col >= 3:
				return numberStyle
			}
			return cellStyle
		}).
		String()
}

// Pools renders the staking pools with the amount the session has staked in each.
func Pools(pools []domain.StakingPool, staked domain.StakedPositions) string {
	rows := make([][]string, 0, len(pools))
	for _, p := range pools {
		lockup := "flexible"
		if !p.Flexible() {
			lockup = fmt.Sprintf("%d days", p.LockupDays)
		}
		rows = append(rows, []string{
			p.Asset,
			strings.ToUpper(p.Symbol),
			p.APY.StringFixed(1) + "%",
			lockup,
			staked[p.Symbol].Total().String(),
		})
	}
	return newTable("POOL", "ASSET", "APY", "LOCK-UP", "STAKED").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col >= 2 {
				return numberStyle
			}
			return cellStyle
		}).
		String()
}

// Markdown renders AI text for the terminal in the glamour style matching theme.
// Rendering failures fall back to the raw text.
func Markdown(text, theme string) string {
	style := "dark"
	if theme == "light" {
		style = "light"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return out
}

func rank(r int) int {
	if r <= 0 {
		return int(^uint(0) >> 1)
	}
	return r
}

// OrderBook renders asks above bids around the spread.
func OrderBook(book domain.OrderBook, price decimal.Decimal, quote string) string {
	rows := make([][]string, 0, len(book.Asks)+len(book.Bids)+1)
	for _, l := range book.Asks {
		rows = append(rows, []string{"ask", l.Price.String(), l.Amount.String(), l.Total.StringFixed(2)})
	}
	spread := len(rows)
	rows = append(rows, []string{"", price.String(), "", strings.ToUpper(quote)})
	for _, l := range book.Bids {
		rows = append(rows, []string{"bid", l.Price.String(), l.Amount.String(), l.Total.StringFixed(2)})
	}

	return newTable("SIDE", "PRICE", "AMOUNT", "TOTAL").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row == spread:
				return titleStyle.Padding(0, 1).Align(lipgloss.Right)
			case col == 0:
				return cellStyle
			case row < spread:
				return downStyle
			}
			return upStyle
		}).
		String()
}
