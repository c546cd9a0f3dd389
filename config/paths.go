package config

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/michaelpento.lv/arbbot/types"
	bmath "github.com/michaelpento.lv/arbbot/utils/math"
)

// resolvePaths turns the configured paths into SwapPaths. Without explicit
// paths every other token is paired with the base token as
// base -> token -> base over the first two venues. With include_gas_cost set
// every explicit path must also start at the wrapped native token.
func (c *Config) resolvePaths(registry *TokenRegistry, base types.Token, network Network) ([]types.SwapPath, []string) {
	if len(c.Paths) == 0 {
		return c.defaultPaths(registry, base)
	}

	var (
		paths []types.SwapPath
		errs  []string
		names = make(map[string]bool, len(c.Paths))
	)
	for i, pc := range c.Paths {
		p, err := c.resolvePath(registry, pc)
		if err != nil {
			errs = append(errs, fmt.Sprintf("paths[%d]: %v", i, err))
			continue
		}
		if c.Trade.IncludeGasCost && !strings.EqualFold(p.Base().Address, network.WrappedNative) {
			errs = append(errs, fmt.Sprintf("paths[%d]: path %q must start with the wrapped native token when include_gas_cost is set", i, p.Name))
			continue
		}
		if names[p.Name] {
			errs = append(errs, fmt.Sprintf("paths[%d]: duplicate name %q", i, p.Name))
			continue
		}
		names[p.Name] = true
		paths = append(paths, p)
	}
	return paths, errs
}

func (c *Config) resolvePath(registry *TokenRegistry, pc PathConfig) (types.SwapPath, error) {
	tokens := make([]types.Token, 0, len(pc.Tokens))
	for _, sym := range pc.Tokens {
		t, ok := registry.Lookup(sym)
		if !ok {
			return types.SwapPath{}, fmt.Errorf("unknown token %q", sym)
		}
		tokens = append(tokens, t)
	}
	for _, id := range pc.Venues {
		if _, ok := c.Venue(id); !ok {
			return types.SwapPath{}, fmt.Errorf("unknown venue %q", id)
		}
	}

	name := pc.Name
	if name == "" {
		name = strings.ToLower(strings.Join(pc.Tokens, "-"))
	}
	p := types.SwapPath{Name: name, Tokens: tokens, Venues: pc.Venues}
	if len(tokens) == 0 {
		return p, fmt.Errorf("path %q has no tokens", name)
	}

	amount := pc.AmountIn
	if amount == "" {
		amount = c.Trade.AmountIn
	}
	amt, err := bmath.ParseUnits(amount, tokens[0].Decimals)
	if err != nil {
		return p, fmt.Errorf("path %q: %w", name, err)
	}
	p.AmountIn = amt

	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

func (c *Config) defaultPaths(registry *TokenRegistry, base types.Token) ([]types.SwapPath, []string) {
	if len(c.Venues) == 0 {
		return nil, nil
	}
	first := c.Venues[0].ID
	second := first
	if len(c.Venues) > 1 {
		second = c.Venues[1].ID
	}

	candidates := registry.Tokens()
	if len(c.Tokens) > 0 {
		candidates = candidates[:0:0]
		for _, tc := range c.Tokens {
			if t, ok := registry.Lookup(tc.Symbol); ok {
				candidates = append(candidates, t)
			}
		}
	}

	amt, err := bmath.ParseUnits(c.Trade.AmountIn, base.Decimals)
	if err != nil {
		// Already reported by the trade.amount_in check.
		return nil, nil
	}

	var paths []types.SwapPath
	for _, t := range candidates {
		if t.Equal(base) {
			continue
		}
		paths = append(paths, types.SwapPath{
			Name:     strings.ToLower(base.Symbol + "-" + t.Symbol),
			Tokens:   []types.Token{base, t, base},
			Venues:   []string{first, second},
			AmountIn: new(big.Int).Set(amt),
		})
	}
	if len(paths) == 0 {
		return nil, []string{"no paths could be generated from the token list"}
	}
	return paths, nil
}
