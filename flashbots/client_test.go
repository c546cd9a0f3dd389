package flashbots

import (
	"context"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedTx(t *testing.T) *types.Transaction {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	to := common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   big.NewInt(1),
		Nonce:     3,
		GasTipCap: big.NewInt(2),
		GasFeeCap: big.NewInt(100),
		Gas:       300_000,
		To:        &to,
		Data:      []byte{0xde, 0xad},
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(big.NewInt(1)), key)
	require.NoError(t, err)
	return signed
}

// relay decodes each request, checks the signature header and replies with
// the given result.
func relay(t *testing.T, authAddr common.Address, handle func(req rpcRequest) string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		parts := strings.SplitN(r.Header.Get(flashbotsXHeader), ":", 2)
		require.Len(t, parts, 2)
		assert.Equal(t, authAddr.Hex(), parts[0])

		sig, err := hexutil.Decode(parts[1])
		require.NoError(t, err)
		pub, err := crypto.SigToPub(accounts.TextHash([]byte(hexutil.Encode(crypto.Keccak256(body)))), sig)
		require.NoError(t, err)
		assert.Equal(t, authAddr, crypto.PubkeyToAddress(*pub))

		var req rpcRequest
		require.NoError(t, json.Unmarshal(body, &req))
		w.Header().Set("Content-Type", contentTypeJSON)
		_, _ = io.WriteString(w, handle(req))
	}))
}

func TestFlashbotsClient(t *testing.T) {
	authKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	authAddr := crypto.PubkeyToAddress(authKey.PublicKey)
	tx := signedTx(t)

	t.Run("SendPrivateTransaction", func(t *testing.T) {
		var method string
		var params []interface{}
		srv := relay(t, authAddr, func(req rpcRequest) string {
			method = req.Method
			params = req.Params
			return `{"jsonrpc":"2.0","id":1,"result":"` + tx.Hash().Hex() + `"}`
		})
		defer srv.Close()

		maxBlock := uint64(19_000_025)
		hash, err := NewClient(srv.URL, authKey).SendPrivateTransaction(context.Background(), tx, &maxBlock)
		require.NoError(t, err)
		assert.Equal(t, tx.Hash(), hash)
		assert.Equal(t, methodSendPrivateTx, method)

		require.Len(t, params, 1)
		p := params[0].(map[string]interface{})
		raw, err := tx.MarshalBinary()
		require.NoError(t, err)
		assert.Equal(t, hexutil.Encode(raw), p["tx"])
		assert.Equal(t, "0x121ead9", p["maxBlockNumber"])
	})

	t.Run("SendTransaction", func(t *testing.T) {
		srv := relay(t, authAddr, func(req rpcRequest) string {
			return `{"jsonrpc":"2.0","id":1,"result":"` + tx.Hash().Hex() + `"}`
		})
		defer srv.Close()

		require.NoError(t, NewClient(srv.URL, authKey).SendTransaction(context.Background(), tx))
	})

	t.Run("RelayError", func(t *testing.T) {
		srv := relay(t, authAddr, func(req rpcRequest) string {
			return `{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"nonce too low"}}`
		})
		defer srv.Close()

		err := NewClient(srv.URL, authKey).SendTransaction(context.Background(), tx)
		assert.ErrorIs(t, err, ErrRelay)
		assert.ErrorContains(t, err, "nonce too low")
	})

	t.Run("HTTPError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "unauthorized", http.StatusForbidden)
		}))
		defer srv.Close()

		_, err := NewClient(srv.URL, authKey).GetStats(context.Background(), 1)
		assert.ErrorIs(t, err, ErrRelay)
	})

	t.Run("CancelPrivateTransaction", func(t *testing.T) {
		srv := relay(t, authAddr, func(req rpcRequest) string {
			assert.Equal(t, methodCancelPrivateTx, req.Method)
			return `{"jsonrpc":"2.0","id":1,"result":true}`
		})
		defer srv.Close()

		ok, err := NewClient(srv.URL, authKey).CancelPrivateTransaction(context.Background(), tx.Hash())
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("GetStats", func(t *testing.T) {
		srv := relay(t, authAddr, func(req rpcRequest) string {
			assert.Equal(t, methodGetUserStats, req.Method)
			return `{"jsonrpc":"2.0","id":1,"result":{"isHighPriority":false}}`
		})
		defer srv.Close()

		stats, err := NewClient(srv.URL, authKey).GetStats(context.Background(), 19_000_000)
		require.NoError(t, err)
		assert.Equal(t, false, stats["isHighPriority"])
	})
}
