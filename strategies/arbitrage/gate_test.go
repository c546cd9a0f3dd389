package arbitrage

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate_Decide(t *testing.T) {
	gate, err := NewGate("0.5")
	require.NoError(t, err)

	tests := []struct {
		name    string
		in, out int64
		cost    *big.Int
		execute bool
		profit  int64
	}{
		{name: "above threshold", in: 1_000_000, out: 1_006_000, execute: true, profit: 6_000},
		{name: "below threshold", in: 1_000_000, out: 1_004_000, profit: 4_000},
		{name: "exactly at threshold", in: 1_000_000, out: 1_005_000, profit: 5_000},
		{name: "just above threshold", in: 1_000_000, out: 1_005_001, execute: true, profit: 5_001},
		{name: "loss", in: 1_000_000, out: 990_000, profit: -10_000},
		{name: "break even", in: 1_000_000, out: 1_000_000},
		{name: "cost pushes below", in: 1_000_000, out: 1_006_000, cost: big.NewInt(2_000), profit: 4_000},
		{name: "cost leaves margin", in: 1_000_000, out: 1_010_000, cost: big.NewInt(2_000), execute: true, profit: 8_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := gate.Decide(big.NewInt(tt.in), big.NewInt(tt.out), tt.cost)
			require.NoError(t, err)
			assert.Equal(t, tt.execute, d.Execute)
			assert.Equal(t, tt.profit, d.ProfitAbsolute.Int64())
		})
	}
}

func TestGate_ExactArithmetic(t *testing.T) {
	// 0.1 has no exact float64 representation.
	gate, err := NewGate("0.1")
	require.NoError(t, err)

	d, err := gate.Decide(big.NewInt(1000), big.NewInt(1001), nil)
	require.NoError(t, err)
	assert.False(t, d.Execute)
	assert.Equal(t, 0, d.ProfitPercent.Cmp(big.NewRat(1, 10)))
	assert.InDelta(t, 0.1, d.Display, 1e-12)
}

func TestGate_NegativeThresholdStillNeedsProfit(t *testing.T) {
	gate, err := NewGate("-5")
	require.NoError(t, err)

	d, err := gate.Decide(big.NewInt(100), big.NewInt(99), nil)
	require.NoError(t, err)
	assert.False(t, d.Execute)

	d, err = gate.Decide(big.NewInt(100), big.NewInt(100), nil)
	require.NoError(t, err)
	assert.False(t, d.Execute)
}

func TestGate_Errors(t *testing.T) {
	_, err := NewGate("half")
	assert.Error(t, err)

	gate, err := NewGate("1")
	require.NoError(t, err)
	_, err = gate.Decide(big.NewInt(0), big.NewInt(10), nil)
	assert.Error(t, err)
	_, err = gate.Decide(big.NewInt(10), nil, nil)
	assert.Error(t, err)
}

func TestGate_ThresholdIsCopied(t *testing.T) {
	gate, err := NewGate("0.5")
	require.NoError(t, err)
	gate.Threshold().SetInt64(100)
	assert.Equal(t, "1/2", gate.Threshold().String())
}
