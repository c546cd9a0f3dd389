package reporter

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru"

	"github.com/michaelpento.lv/arbbot/types"
)

const DefaultHistorySize = 256

// History keeps the most recent execution outcomes keyed by attempt ID.
// It backs the /attempts endpoint.
type History struct {
	cache *lru.Cache
}

func NewHistory(size int) (*History, error) {
	if size <= 0 {
		size = DefaultHistorySize
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create history cache: %w", err)
	}
	return &History{cache: cache}, nil
}

func (h *History) Report(_ context.Context, report *types.CycleReport) error {
	for _, res := range report.Results {
		if res.Execution != nil {
			h.Add(res.Execution)
		}
	}
	return nil
}

func (h *History) Add(o *types.ExecutionOutcome) {
	h.cache.Add(o.AttemptID, o)
}

// Get returns the outcome recorded for attemptID.
func (h *History) Get(attemptID string) (*types.ExecutionOutcome, bool) {
	v, ok := h.cache.Peek(attemptID)
	if !ok {
		return nil, false
	}
	return v.(*types.ExecutionOutcome), true
}

// Recent lists outcomes newest first.
func (h *History) Recent() []*types.ExecutionOutcome {
	return h.filter(func(*types.ExecutionOutcome) bool { return true })
}

// Unknown lists outcomes whose on-chain result is indeterminate, newest first.
func (h *History) Unknown() []*types.ExecutionOutcome {
	return h.filter(func(o *types.ExecutionOutcome) bool { return o.Unknown })
}

func (h *History) Len() int {
	return h.cache.Len()
}

func (h *History) filter(keep func(*types.ExecutionOutcome) bool) []*types.ExecutionOutcome {
	keys := h.cache.Keys()
	out := make([]*types.ExecutionOutcome, 0, len(keys))
	for i := len(keys) - 1; i >= 0; i-- {
		v, ok := h.cache.Peek(keys[i])
		if !ok {
			continue
		}
		if o := v.(*types.ExecutionOutcome); keep(o) {
			out = append(out, o)
		}
	}
	return out
}
