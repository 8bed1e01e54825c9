package payments

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// SplitTotal decomposes a tax-inclusive total into a tax-exclusive base and the tax
// amount. The base is computed first and rounded to 2 decimal places half-up; the
// tax is derived by subtraction so base + tax equals the total exactly even after
// rounding. Unregistered workspaces charge no tax.
func SplitTotal(total, taxRate decimal.Decimal, taxRegistered bool) (base, tax decimal.Decimal) {
	if !taxRegistered || taxRate.IsZero() {
		return total, decimal.Zero
	}
	// base = total / (1 + rate/100), DivRound rounds half away from zero.
	divisor := decimal.NewFromInt(1).Add(taxRate.Div(hundred))
	base = total.DivRound(divisor, 2)
	tax = total.Sub(base)
	return base, tax
}
