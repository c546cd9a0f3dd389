package config

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	sol "github.com/gagliardetto/solana-go"

	"github.com/michaelpento.lv/arbbot/dex/sushiswap"
	"github.com/michaelpento.lv/arbbot/dex/uniswap"
	"github.com/michaelpento.lv/arbbot/types"
)

// PairFactory locates V2 pairs by CREATE2.
type PairFactory struct {
	Factory      string
	InitCodeHash string
}

// Network is a built-in deployment: its tokens and well known venues.
type Network struct {
	Chain         string
	Name          string
	ChainID       int64
	WrappedNative string
	Tokens        []types.Token
	Routers       map[string]string
	Factories     map[string]PairFactory
}

var networks = []Network{
	{
		Chain:         ChainEVM,
		Name:          "ethereum",
		ChainID:       1,
		WrappedNative: uniswap.WETHAddress.Hex(),
		Tokens: []types.Token{
			{Symbol: "WETH", Address: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", Decimals: 18},
			{Symbol: "USDC", Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Decimals: 6},
			{Symbol: "DAI", Address: "0x6B175474E89094C44Da98b954EedeAC495271d0F", Decimals: 18},
			{Symbol: "WBTC", Address: "0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599", Decimals: 8},
		},
		Routers: map[string]string{
			"uniswap":   uniswap.MainnetRouter.Hex(),
			"sushiswap": sushiswap.MainnetRouter.Hex(),
		},
		Factories: map[string]PairFactory{
			"uniswap": {
				Factory:      uniswap.MainnetFactory.Hex(),
				InitCodeHash: hexutil.Encode(uniswap.MainnetInitCodeHash),
			},
			"sushiswap": {
				Factory:      sushiswap.MainnetFactory.Hex(),
				InitCodeHash: hexutil.Encode(sushiswap.MainnetInitCodeHash),
			},
		},
	},
	{
		Chain:         ChainEVM,
		Name:          "polygon",
		ChainID:       137,
		WrappedNative: "0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270",
		Tokens: []types.Token{
			{Symbol: "WMATIC", Address: "0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270", Decimals: 18},
			{Symbol: "USDC", Address: "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174", Decimals: 6},
			{Symbol: "WETH", Address: "0x7ceB23fD6bC0adD59E62ac25578270cFf1b9f619", Decimals: 18},
			{Symbol: "DAI", Address: "0x8f3Cf7ad23Cd3CaDbD9735AFf958023239c6A063", Decimals: 18},
		},
		Routers: map[string]string{
			"quickswap": "0xa5E0829CaCEd8fFDD4De3c43696c57F7D7A678ff",
			"sushiswap": "0x1b02dA8Cb0d097eB8D57A175b88c7D8b47997506",
		},
	},
	{
		Chain:         ChainEVM,
		Name:          "arbitrum",
		ChainID:       42161,
		WrappedNative: "0x82aF49447D8a07e3bd95BD0d56f35241523fBab1",
		Tokens: []types.Token{
			{Symbol: "WETH", Address: "0x82aF49447D8a07e3bd95BD0d56f35241523fBab1", Decimals: 18},
			{Symbol: "USDC", Address: "0xaf88d065e77c8cC2239327C5EDb3A432268e5831", Decimals: 6},
			{Symbol: "DAI", Address: "0xDA10009cBd5D07dd0CeCc66161FC93D7c9000da1", Decimals: 18},
			{Symbol: "WBTC", Address: "0x2f2a2543B76A4166549F7aaB2e75Bef0aefC5B0f", Decimals: 8},
		},
		Routers: map[string]string{
			"sushiswap": "0x1b02dA8Cb0d097eB8D57A175b88c7D8b47997506",
			"camelot":   "0xc873fEcbd354f5A56E00E710B90EF4201db2448d",
		},
	},
	{
		Chain: ChainSolana,
		Name:  "mainnet",
		Tokens: []types.Token{
			{Symbol: "SOL", Address: "So11111111111111111111111111111111111111112", Decimals: 9},
			{Symbol: "USDC", Address: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", Decimals: 6},
			{Symbol: "USDT", Address: "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB", Decimals: 6},
			{Symbol: "RAY", Address: "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R", Decimals: 6},
			{Symbol: "SRM", Address: "SRMuApVNdxXokk5GT7XD5cUUgXMBCoAz2LHeuAoKWRt", Decimals: 6},
		},
	},
	{
		Chain: ChainSolana,
		Name:  "devnet",
		Tokens: []types.Token{
			{Symbol: "SOL", Address: "So11111111111111111111111111111111111111112", Decimals: 9},
			{Symbol: "USDC", Address: "4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU", Decimals: 6},
		},
	},
}

// LookupNetwork returns the built-in network for chain and name.
func LookupNetwork(chain, name string) (Network, bool) {
	for _, n := range networks {
		if n.Chain == chain && strings.EqualFold(n.Name, name) {
			return n, true
		}
	}
	return Network{}, false
}

// TokenRegistry resolves tokens by symbol, case-insensitively.
type TokenRegistry struct {
	bySymbol map[string]types.Token
	order    []string
}

// NewTokenRegistry merges extra over builtin. A configured token replaces a
// built-in one with the same symbol.
func NewTokenRegistry(chain string, builtin []types.Token, extra []TokenConfig) (*TokenRegistry, error) {
	r := &TokenRegistry{bySymbol: make(map[string]types.Token)}
	for _, t := range builtin {
		r.put(t)
	}

	var errs []string
	for _, tc := range extra {
		t := types.Token{Symbol: tc.Symbol, Address: tc.Address, Decimals: tc.Decimals}
		if err := ValidateToken(chain, t); err != nil {
			errs = append(errs, err.Error())
			continue
		}
		r.put(t)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	if len(r.order) == 0 {
		return nil, errNoTokens
	}
	return r, nil
}

func (r *TokenRegistry) put(t types.Token) {
	key := strings.ToUpper(t.Symbol)
	if _, ok := r.bySymbol[key]; !ok {
		r.order = append(r.order, key)
	}
	r.bySymbol[key] = t
}

func (r *TokenRegistry) Lookup(symbol string) (types.Token, bool) {
	t, ok := r.bySymbol[strings.ToUpper(symbol)]
	return t, ok
}

// Tokens lists the registry in insertion order.
func (r *TokenRegistry) Tokens() []types.Token {
	out := make([]types.Token, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.bySymbol[key])
	}
	return out
}

// ValidateToken checks the symbol and the address format for chain.
func ValidateToken(chain string, t types.Token) error {
	if t.Symbol == "" {
		return fmt.Errorf("token %s: symbol must be specified", t.Address)
	}
	switch chain {
	case ChainSolana:
		if _, err := sol.PublicKeyFromBase58(t.Address); err != nil {
			return fmt.Errorf("token %s: invalid mint %q", t.Symbol, t.Address)
		}
		if t.Decimals > 18 {
			return fmt.Errorf("token %s: decimals out of range", t.Symbol)
		}
	default:
		if !common.IsHexAddress(t.Address) {
			return fmt.Errorf("token %s: invalid address %q", t.Symbol, t.Address)
		}
		if t.Decimals > 36 {
			return fmt.Errorf("token %s: decimals out of range", t.Symbol)
		}
	}
	return nil
}
