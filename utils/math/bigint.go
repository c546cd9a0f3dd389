package math

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// BpsDenominator is 100% expressed in basis points.
const BpsDenominator = 10000

var (
	bigBps     = big.NewInt(BpsDenominator)
	bigHundred = big.NewInt(100)
)

// ApplyBps scales x by bps/10000 rounding down. 12000 bps is a +20% buffer.
func ApplyBps(x *big.Int, bps uint64) *big.Int {
	if x == nil {
		return new(big.Int)
	}
	out := new(big.Int).Mul(x, new(big.Int).SetUint64(bps))
	return out.Quo(out, bigBps)
}

// ProfitPercent returns profit/amountIn*100 as an exact rational.
func ProfitPercent(profit, amountIn *big.Int) (*big.Rat, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, fmt.Errorf("amount in must be positive")
	}
	num := new(big.Int).Mul(profit, bigHundred)
	return new(big.Rat).SetFrac(num, amountIn), nil
}

// RatToFloat converts for display. Precision loss is acceptable here only.
func RatToFloat(r *big.Rat) float64 {
	if r == nil {
		return 0
	}
	f, _ := r.Float64()
	return f
}

// ParseRat parses a decimal string such as "0.5" into an exact rational.
func ParseRat(s string) (*big.Rat, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	return d.Rat(), nil
}

// ParseUnits converts a human amount like "10.5" into base units for the
// given number of decimals. Fractions below one base unit are rejected.
func ParseUnits(amount string, decimals uint8) (*big.Int, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("amount %q has more than %d decimals", amount, decimals)
	}
	return scaled.BigInt(), nil
}

// FormatUnits renders base units as a human amount.
func FormatUnits(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -int32(decimals)).String()
}

// Gwei converts a gwei decimal string into wei.
func Gwei(s string) (*big.Int, error) {
	return ParseUnits(s, 9)
}
