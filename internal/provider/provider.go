package provider

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"wavescope/pkg/model"
)

// Provider defines the interface for candle data strategies
type Provider interface {
	// Name returns the strategy name
	Name() string

	// FetchDaily fetches daily OHLCV candles for a symbol over an explicit
	// two-sided time range, ordered ascending by date
	FetchDaily(ctx context.Context, symbol string, from, to time.Time) ([]model.Candle, error)

	// IsAvailable checks if the strategy can be used at all
	IsAvailable() bool

	// RateLimit returns the rate limit per minute (0 = unlimited)
	RateLimit() int
}

// ErrFetchFailed is the single opaque failure reported once every strategy
// has been tried. Callers may retry by reissuing the same request; transient
// versus permanent is not distinguished at this level.
var ErrFetchFailed = errors.New("fetch failed: all data strategies exhausted")

// ProviderError represents a strategy-specific error
type ProviderError struct {
	Provider  string
	Err       error
	Retryable bool
}

func (e *ProviderError) Error() string {
	return e.Provider + ": " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Chain tries an ordered list of fetch strategies until one returns a
// well-formed, non-empty batch. Order matters and there are no retries
// within a single strategy; a strategy that cleanly reports "no data for
// this range" lets the whole chain answer empty instead of failing.
type Chain struct {
	strategies []Provider
}

// NewChain creates a chain from the available strategies, preserving order.
func NewChain(strategies ...Provider) *Chain {
	available := make([]Provider, 0, len(strategies))
	for _, s := range strategies {
		if s.IsAvailable() {
			available = append(available, s)
		}
	}
	return &Chain{strategies: available}
}

// Name returns the combined strategy name
func (c *Chain) Name() string {
	return "chain"
}

// FetchDaily tries each strategy in order until one yields candles. All
// failures collapse into ErrFetchFailed; a clean empty answer from any
// strategy short-circuits into "no data" without an error.
func (c *Chain) FetchDaily(ctx context.Context, symbol string, from, to time.Time) ([]model.Candle, error) {
	var lastErr error
	sawEmpty := false

	for _, s := range c.strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		batch, err := s.FetchDaily(ctx, symbol, from, to)
		if err != nil {
			lastErr = err
			log.Printf("[FEED] strategy %s failed for %s: %v", s.Name(), symbol, err)
			continue
		}
		if len(batch) == 0 {
			sawEmpty = true
			continue
		}
		return batch, nil
	}

	if sawEmpty {
		return nil, nil
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w (last: %v)", ErrFetchFailed, lastErr)
	}
	return nil, ErrFetchFailed
}

// IsAvailable returns true if any strategy is available
func (c *Chain) IsAvailable() bool {
	return len(c.strategies) > 0
}

// RateLimit returns the highest rate limit among strategies
func (c *Chain) RateLimit() int {
	maxRate := 0
	for _, s := range c.strategies {
		if s.RateLimit() > maxRate {
			maxRate = s.RateLimit()
		}
	}
	return maxRate
}

// Strategies returns the underlying strategy list
func (c *Chain) Strategies() []Provider {
	return c.strategies
}
