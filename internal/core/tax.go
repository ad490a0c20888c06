package core

import "github.com/shopspring/decimal"

// TaxBreakdown is the GST applied to one payment amount.
type TaxBreakdown struct {
	Rate      decimal.Decimal `json:"rate"` // percent
	TaxAmount decimal.Decimal `json:"tax_amount"`
	Total     decimal.Decimal `json:"total"`
}

var gstRates = map[ServiceCategory]int64{
	ServiceSelfDrive: 18,
	ServiceTaxi:      5,
	ServiceTour:      5,
}

// GSTRate returns the GST percentage for a service category. Categories
// outside the closed set are untaxed.
func GSTRate(category ServiceCategory) decimal.Decimal {
	rate, ok := gstRates[category]
	if !ok {
		return decimal.Zero
	}
	return decimal.NewFromInt(rate)
}

// TaxAmount returns amount * rate / 100 without rounding.
func TaxAmount(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).Shift(-2)
}

// ComputeTax returns the GST rate, tax and tax-inclusive total for amount.
func ComputeTax(amount decimal.Decimal, category ServiceCategory) TaxBreakdown {
	rate := GSTRate(category)
	tax := TaxAmount(amount, rate)
	return TaxBreakdown{
		Rate:      rate,
		TaxAmount: tax,
		Total:     amount.Add(tax),
	}
}
