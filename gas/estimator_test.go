package gas

import (
	"context"
	"errors"
	"math/big"
	"testing"

	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/michaelpento.lv/arbbot/types"
)

type mockBackend struct {
	baseFee  *big.Int
	tip      *big.Int
	price    *big.Int
	headErr  error
	headCall int
}

func (m *mockBackend) HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error) {
	m.headCall++
	if m.headErr != nil {
		return nil, m.headErr
	}
	return &ethtypes.Header{BaseFee: m.baseFee}, nil
}

func (m *mockBackend) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return m.tip, nil
}

func (m *mockBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return m.price, nil
}

func gwei(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000))
}

func TestGasPrice(t *testing.T) {
	ctx := context.Background()

	t.Run("Fixed", func(t *testing.T) {
		b := &mockBackend{}
		e := NewEstimator(b, gwei(50), nil, zaptest.NewLogger(t))
		price, err := e.GasPrice(ctx)
		require.NoError(t, err)
		assert.Equal(t, gwei(50), price)
		assert.Equal(t, 0, b.headCall)
	})

	t.Run("BaseFeePlusTip", func(t *testing.T) {
		e := NewEstimator(&mockBackend{baseFee: gwei(30), tip: gwei(2)}, nil, nil, zaptest.NewLogger(t))
		price, err := e.GasPrice(ctx)
		require.NoError(t, err)
		assert.Equal(t, gwei(32), price)
	})

	t.Run("Legacy", func(t *testing.T) {
		e := NewEstimator(&mockBackend{price: gwei(7)}, nil, nil, zaptest.NewLogger(t))
		price, err := e.GasPrice(ctx)
		require.NoError(t, err)
		assert.Equal(t, gwei(7), price)
	})

	t.Run("Capped", func(t *testing.T) {
		e := NewEstimator(&mockBackend{baseFee: gwei(900), tip: gwei(2)}, nil, gwei(500), zaptest.NewLogger(t))
		price, err := e.GasPrice(ctx)
		require.NoError(t, err)
		assert.Equal(t, gwei(500), price)
	})

	t.Run("HeaderError", func(t *testing.T) {
		e := NewEstimator(&mockBackend{headErr: errors.New("timeout")}, nil, nil, zaptest.NewLogger(t))
		_, err := e.GasPrice(ctx)
		assert.ErrorContains(t, err, "timeout")
	})
}

func TestEstimateArbitrageGas(t *testing.T) {
	e := NewEstimator(&mockBackend{}, gwei(1), nil, zaptest.NewLogger(t))
	assert.Equal(t, uint64(21000), e.EstimateArbitrageGas(0))
	assert.Equal(t, uint64(325000), e.EstimateArbitrageGas(2))
	assert.Equal(t, uint64(477000), e.EstimateArbitrageGas(3))
}

func TestEstimateCost(t *testing.T) {
	e := NewEstimator(&mockBackend{}, gwei(50), nil, zaptest.NewLogger(t))
	path := types.SwapPath{Venues: []string{"uniswap", "sushiswap"}}

	cost, err := e.EstimateCost(context.Background(), path)
	require.NoError(t, err)
	// 325000 gas at 50 gwei
	assert.Equal(t, "16250000000000000", cost.String())
}
