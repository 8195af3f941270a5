package domain

import "fmt"

// Side is the direction of a trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// ParseSide parses a side string case-insensitively.
func ParseSide(s string) (Side, error) {
	switch Side(NormalizeSymbol(s)) {
	case SideBuy:
		return SideBuy, nil
	case SideSell:
		return SideSell, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSide, s)
	}
}

// String returns the string representation of the side.
func (s Side) String() string {
	return string(s)
}
