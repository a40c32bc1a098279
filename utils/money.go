package utils

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Round2 rounds x half away from zero to 2 decimal places.
func Round2(x float64) float64 {
	f, _ := decimal.NewFromFloat(x).Round(2).Float64()
	return f
}

// Line is the money-relevant part of a document line. TaxRate is a percentage.
type Line struct {
	Quantity  float64
	UnitPrice float64
	TaxRate   float64
}

// SumLines returns each line's net amount and the rounded document totals.
// Tax is computed per line on the rounded net amount, then summed.
func SumLines(lines []Line) (amounts []float64, subtotal, tax, total float64) {
	amounts = make([]float64, len(lines))
	sub := decimal.Zero
	vat := decimal.Zero
	for i, l := range lines {
		net := decimal.NewFromFloat(l.Quantity).Mul(decimal.NewFromFloat(l.UnitPrice)).Round(2)
		lineTax := net.Mul(decimal.NewFromFloat(l.TaxRate)).Div(hundred).Round(2)
		amounts[i], _ = net.Float64()
		sub = sub.Add(net)
		vat = vat.Add(lineTax)
	}
	subtotal, _ = sub.Float64()
	tax, _ = vat.Float64()
	total, _ = sub.Add(vat).Float64()
	return amounts, subtotal, tax, total
}

// Sum adds rounded amounts without float drift.
func Sum(values ...float64) float64 {
	acc := decimal.Zero
	for _, v := range values {
		acc = acc.Add(decimal.NewFromFloat(v))
	}
	f, _ := acc.Round(2).Float64()
	return f
}
