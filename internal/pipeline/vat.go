package pipeline

import "github.com/shopspring/decimal"

var (
	vatFactor = decimal.RequireFromString("1.1")
	vatRate   = decimal.RequireFromString("0.1")
)

// SplitVAT returns the supply amount of a VAT-inclusive bill total. The
// one-won rounding error is folded back into the supply amount so that
// round(net*1.1) reproduces the billed total.
func SplitVAT(total int64) int64 {
	t := decimal.NewFromInt(total)
	net := t.Div(vatFactor).Round(0)
	diff := t.Sub(net.Mul(vatFactor).Round(0))
	return net.Add(diff).IntPart()
}

// VATOf is round(net*0.1).
func VATOf(net int64) int64 {
	return decimal.NewFromInt(net).Mul(vatRate).Round(0).IntPart()
}
