package payments

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestSplitTotal_StandardVAT(t *testing.T) {
	total := decimal.RequireFromString("150.00")
	rate := decimal.RequireFromString("17")

	base, tax := SplitTotal(total, rate, true)
	if base.StringFixed(2) != "128.21" {
		t.Fatalf("expected base 128.21, got %s", base.StringFixed(2))
	}
	if tax.StringFixed(2) != "21.79" {
		t.Fatalf("expected tax 21.79, got %s", tax.StringFixed(2))
	}
}

func TestSplitTotal_SumIsExact(t *testing.T) {
	cases := []struct {
		total string
		rate  string
	}{
		{"150.00", "17"},
		{"99.99", "17"},
		{"0.01", "17"},
		{"1234.56", "18"},
		{"10.00", "7.5"},
	}
	for _, c := range cases {
		total := decimal.RequireFromString(c.total)
		rate := decimal.RequireFromString(c.rate)
		base, tax := SplitTotal(total, rate, true)
		if !base.Add(tax).Equal(total) {
			t.Fatalf("total=%s rate=%s: base %s + tax %s != total", c.total, c.rate, base, tax)
		}
		if tax.IsNegative() {
			t.Fatalf("total=%s rate=%s: negative tax %s", c.total, c.rate, tax)
		}
	}
}

func TestSplitTotal_Unregistered(t *testing.T) {
	total := decimal.RequireFromString("150.00")
	base, tax := SplitTotal(total, decimal.RequireFromString("17"), false)
	if !base.Equal(total) {
		t.Fatalf("unregistered workspace should keep full amount as base, got %s", base)
	}
	if !tax.IsZero() {
		t.Fatalf("unregistered workspace should have zero tax, got %s", tax)
	}
}

func TestSplitTotal_ZeroRate(t *testing.T) {
	total := decimal.RequireFromString("42.00")
	base, tax := SplitTotal(total, decimal.Zero, true)
	if !base.Equal(total) || !tax.IsZero() {
		t.Fatalf("zero rate should pass total through, got base %s tax %s", base, tax)
	}
}
