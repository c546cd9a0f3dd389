package bot

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/arbbot/config"
	"github.com/michaelpento.lv/arbbot/dex"
	"github.com/michaelpento.lv/arbbot/dex/jupiter"
	"github.com/michaelpento.lv/arbbot/dex/uniswap"
)

// BuildQuoters creates one quoter per configured venue. caller backs the
// on-chain venues and may be nil on Solana.
func BuildQuoters(cfg *config.Config, caller uniswap.Caller, logger *zap.Logger) ([]dex.Quoter, error) {
	network, _ := config.LookupNetwork(cfg.Network.Chain, cfg.Network.Name)

	quoters := make([]dex.Quoter, 0, len(cfg.Venues))
	for _, v := range cfg.Venues {
		q, err := buildQuoter(cfg, network, v, caller, logger)
		if err != nil {
			return nil, fmt.Errorf("venue %s: %w", v.ID, err)
		}
		if rl := v.RateLimit; rl != nil {
			q = dex.NewRateLimited(q, rl.RequestsPerSecond, rl.BurstSize, rl.WaitTimeout)
		}
		quoters = append(quoters, q)
	}
	return quoters, nil
}

func buildQuoter(cfg *config.Config, network config.Network, v config.VenueConfig, caller uniswap.Caller, logger *zap.Logger) (dex.Quoter, error) {
	switch v.Kind {
	case config.VenueV2Router:
		if caller == nil {
			return nil, fmt.Errorf("no contract caller")
		}
		router := v.Router
		if router == "" {
			router = network.Routers[v.ID]
		}
		return uniswap.NewRouterQuoter(v.ID, common.HexToAddress(router), caller), nil

	case config.VenueV2Pair:
		if caller == nil {
			return nil, fmt.Errorf("no contract caller")
		}
		factory, initCodeHash := v.Factory, v.InitCodeHash
		if factory == "" || initCodeHash == "" {
			known := network.Factories[v.ID]
			factory, initCodeHash = known.Factory, known.InitCodeHash
		}
		fee := v.FeeBps
		if fee == 0 {
			fee = uniswap.DefaultFeeBps
		}
		return uniswap.NewPairQuoter(v.ID, caller, common.HexToAddress(factory), common.FromHex(initCodeHash), fee), nil

	case config.VenueJupiter:
		return jupiter.NewQuoter(jupiter.Config{
			ID:          v.ID,
			BaseURL:     v.BaseURL,
			APIKey:      cfg.Secrets.JupiterAPIKey,
			SlippageBps: v.SlippageBps,
		}, logger), nil
	}
	return nil, fmt.Errorf("unknown kind %q", v.Kind)
}
