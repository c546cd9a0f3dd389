package flashbots

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	DefaultRelayURL = "https://relay.flashbots.net"

	contentTypeJSON       = "application/json"
	flashbotsXHeader      = "X-Flashbots-Signature"
	methodGetUserStats    = "flashbots_getUserStatsV2"
	methodSendPrivateTx   = "eth_sendPrivateTransaction"
	methodCancelPrivateTx = "eth_cancelPrivateTransaction"
)

// ErrRelay is returned when the relay answers with a JSON-RPC error.
var ErrRelay = errors.New("flashbots relay error")

// Client represents a Flashbots RPC client
type Client struct {
	httpClient *http.Client
	relayURL   string
	authSigner *ecdsa.PrivateKey
	id         atomic.Uint64
}

// NewClient creates a new Flashbots client. authKey only signs relay
// requests; it never holds funds.
func NewClient(relayURL string, authKey *ecdsa.PrivateKey) *Client {
	if relayURL == "" {
		relayURL = DefaultRelayURL
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Second * 3,
		},
		relayURL:   relayURL,
		authSigner: authKey,
	}
}

// PrivateTxRequest is the eth_sendPrivateTransaction payload.
type PrivateTxRequest struct {
	Tx             string       `json:"tx"`
	MaxBlockNumber string       `json:"maxBlockNumber,omitempty"`
	Preferences    *Preferences `json:"preferences,omitempty"`
}

// Preferences selects relay behaviour for a private transaction.
type Preferences struct {
	Fast bool `json:"fast"`
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SendPrivateTransaction submits a signed transaction to the relay so it is
// only included by builders and never broadcast to the public mempool.
// maxBlock may be nil to let the relay apply its default horizon.
func (c *Client) SendPrivateTransaction(ctx context.Context, tx *types.Transaction, maxBlock *uint64) (common.Hash, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to encode transaction: %w", err)
	}

	req := PrivateTxRequest{
		Tx:          hexutil.Encode(raw),
		Preferences: &Preferences{Fast: true},
	}
	if maxBlock != nil {
		req.MaxBlockNumber = hexutil.EncodeUint64(*maxBlock)
	}

	var hash common.Hash
	if err := c.call(ctx, methodSendPrivateTx, []interface{}{req}, &hash); err != nil {
		return common.Hash{}, err
	}
	return hash, nil
}

// SendTransaction lets the client stand in for a public RPC sender.
func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	hash, err := c.SendPrivateTransaction(ctx, tx, nil)
	if err != nil {
		return err
	}
	if hash != tx.Hash() {
		return fmt.Errorf("relay returned hash %s for transaction %s", hash.Hex(), tx.Hash().Hex())
	}
	return nil
}

// CancelPrivateTransaction asks the relay to stop submitting txHash.
func (c *Client) CancelPrivateTransaction(ctx context.Context, txHash common.Hash) (bool, error) {
	var ok bool
	params := []interface{}{map[string]string{"txHash": txHash.Hex()}}
	if err := c.call(ctx, methodCancelPrivateTx, params, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

// GetStats retrieves user stats from Flashbots
func (c *Client) GetStats(ctx context.Context, blockNumber uint64) (map[string]interface{}, error) {
	var result map[string]interface{}
	params := []interface{}{map[string]string{"blockNumber": hexutil.EncodeUint64(blockNumber)}}
	if err := c.call(ctx, methodGetUserStats, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.id.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.relayURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	header, err := c.signature(payload)
	if err != nil {
		return err
	}
	req.Header.Add("Content-Type", contentTypeJSON)
	req.Header.Add("Accept", contentTypeJSON)
	req.Header.Add(flashbotsXHeader, header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s: status %d: %s", ErrRelay, method, resp.StatusCode, string(body))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("%w: %s: %d %s", ErrRelay, method, rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return nil
}

// signature builds the X-Flashbots-Signature header value: the signer
// address and an EIP-191 signature over the hex keccak of the body.
func (c *Client) signature(payload []byte) (string, error) {
	sig, err := crypto.Sign(
		accounts.TextHash([]byte(hexutil.Encode(crypto.Keccak256(payload)))),
		c.authSigner,
	)
	if err != nil {
		return "", fmt.Errorf("failed to sign request: %w", err)
	}
	return fmt.Sprintf("%s:%s",
		crypto.PubkeyToAddress(c.authSigner.PublicKey).Hex(),
		hexutil.Encode(sig),
	), nil
}
