package util

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	reWon    = regexp.MustCompile(`[^0-9\-]`)
	reNumber = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
)

// ParseWon turns "862,120원" into 862120.
func ParseWon(s string) (int64, bool) {
	digits := reWon.ReplaceAllString(s, "")
	if digits == "" || digits == "-" {
		return 0, false
	}
	v, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseDecimal reads spreadsheet money cells: "$1,234.50", "1,234", " 12 ".
func ParseDecimal(s string) (decimal.Decimal, bool) {
	clean := strings.NewReplacer(",", "", "$", "", "₩", "", "원", "", " ", "").Replace(strings.TrimSpace(s))
	if clean == "" {
		return decimal.Zero, false
	}
	m := reNumber.FindString(clean)
	if m == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(m)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// IntString renders an integer-valued cell without decimals or separators,
// e.g. "12,345.0" -> "12345". Non-numeric input yields "".
func IntString(s string) string {
	d, ok := ParseDecimal(s)
	if !ok {
		return ""
	}
	return d.Round(0).String()
}
