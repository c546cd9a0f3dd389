// Package sushiswap holds the Sushiswap V2 mainnet deployment. Sushiswap
// shares the V2 router and pair ABIs, so it is quoted by the uniswap
// package's RouterQuoter and PairQuoter under its own venue id.
package sushiswap

import (
	"github.com/ethereum/go-ethereum/common"
)

// Mainnet deployment
var (
	MainnetFactory      = common.HexToAddress("0xC0AEe478e3658e2610c5F7A4A2E1777cE9e4f2Ac")
	MainnetRouter       = common.HexToAddress("0xd9e1cE17f2641f24aE83637ab66a2cca9C378B9F")
	MainnetInitCodeHash = common.FromHex("0xe18a34eb0e04b04f7a0ac29a6e80748dca96319b42c54d679cb821dca90c6303")
)
