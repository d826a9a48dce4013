package duty

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PAY TABLE - hourly rate by position
// =============================================================================

// DefaultRate is the hourly rate applied when a position is unknown.
var DefaultRate = decimal.NewFromInt(10714)

var positionRates = map[string]decimal.Decimal{
	"Director":        decimal.NewFromInt(50000),
	"Deputy Director": decimal.NewFromInt(50000),
	"Assistant":       decimal.NewFromInt(25000),
	"Secretary":       decimal.NewFromInt(21500),
	"Department Head": decimal.NewFromInt(18000),
	"Deputy Head":     decimal.NewFromInt(14500),
	"Officer":         decimal.NewFromInt(10714),
	"Reserve Officer": decimal.NewFromInt(10714),
}

// Ranks is the selectable rank ladder, junior to senior. Rank is a display
// title and does not drive pay; position does.
var Ranks = []string{
	"Cadet", "Deputy", "Corporal", "Sergeant",
	"Lieutenant", "Captain", "Commander", "Chief",
}

// RateFor returns the hourly rate for a position, falling back to
// DefaultRate for unknown or empty positions.
func RateFor(position string) decimal.Decimal {
	if rate, ok := positionRates[strings.TrimSpace(position)]; ok {
		return rate
	}
	return DefaultRate
}

// Positions lists the known positions for admin forms.
func Positions() []string {
	out := make([]string, 0, len(positionRates))
	for p := range positionRates {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
