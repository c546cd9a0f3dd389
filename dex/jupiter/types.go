package jupiter

// QuoteParams are the query parameters of GET /quote.
type QuoteParams struct {
	InputMint   string
	OutputMint  string
	Amount      string // raw integer as string (u64)
	SlippageBps int
	SwapMode    string
	// OnlyDirectRoutes restricts the aggregator to single-market routes.
	OnlyDirectRoutes bool
}

// QuoteResponse is the subset of the Jupiter quote payload we consume.
type QuoteResponse struct {
	InputMint            string          `json:"inputMint"`
	InAmount             string          `json:"inAmount"`
	OutputMint           string          `json:"outputMint"`
	OutAmount            string          `json:"outAmount"`
	OtherAmountThreshold string          `json:"otherAmountThreshold"`
	SwapMode             string          `json:"swapMode"`
	SlippageBps          int             `json:"slippageBps"`
	PriceImpactPct       string          `json:"priceImpactPct"`
	RoutePlan            []RoutePlanStep `json:"routePlan"`
	ContextSlot          uint64          `json:"contextSlot,omitempty"`
}

// RoutePlanStep is one leg of the aggregator's route.
type RoutePlanStep struct {
	SwapInfo SwapInfo `json:"swapInfo"`
	Percent  int      `json:"percent"`
}

// SwapInfo describes the AMM used by a route leg.
type SwapInfo struct {
	AmmKey     string `json:"ammKey"`
	Label      string `json:"label,omitempty"`
	InputMint  string `json:"inputMint"`
	OutputMint string `json:"outputMint"`
	InAmount   string `json:"inAmount"`
	OutAmount  string `json:"outAmount"`
}

// apiError is the JSON error body returned on 4xx responses.
type apiError struct {
	Error     string `json:"error"`
	ErrorCode string `json:"errorCode"`
}
