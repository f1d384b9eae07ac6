package ledger

import "github.com/shopspring/decimal"

// RealizedPnL returns (exit - entry) * size - fees using decimal arithmetic.
func RealizedPnL(entry, exit, size, fees float64) float64 {
	pnl := decimal.NewFromFloat(exit).
		Sub(decimal.NewFromFloat(entry)).
		Mul(decimal.NewFromFloat(size)).
		Sub(decimal.NewFromFloat(fees))
	f, _ := pnl.Float64()
	return f
}

func addDecimal(acc, v float64) float64 {
	f, _ := decimal.NewFromFloat(acc).Add(decimal.NewFromFloat(v)).Float64()
	return f
}
