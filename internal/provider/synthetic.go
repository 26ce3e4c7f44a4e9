package provider

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"wavescope/pkg/model"
)

// syntheticEpoch anchors every synthetic walk. Requests reaching back past it
// answer empty, which downstream treats as "no more history".
var syntheticEpoch = time.Date(2000, 1, 3, 0, 0, 0, 0, time.UTC)

// SyntheticProvider deterministically synthesizes a daily random walk so the
// chart stays usable offline and tests get stable fixtures. The walk is
// derived only from the symbol and the calendar, so overlapping range
// requests line up bar for bar.
type SyntheticProvider struct{}

// NewSyntheticProvider creates the offline strategy.
func NewSyntheticProvider() *SyntheticProvider {
	return &SyntheticProvider{}
}

// Name returns the strategy name
func (p *SyntheticProvider) Name() string {
	return "synthetic"
}

// IsAvailable always returns true
func (p *SyntheticProvider) IsAvailable() bool {
	return true
}

// RateLimit returns 0 (unlimited, no network)
func (p *SyntheticProvider) RateLimit() int {
	return 0
}

// FetchDaily replays the symbol's walk from the epoch and returns the bars
// falling inside [from, to]. Weekends are skipped like real sessions.
func (p *SyntheticProvider) FetchDaily(ctx context.Context, symbol string, from, to time.Time) ([]model.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if to.Before(syntheticEpoch) {
		return nil, nil
	}

	h := fnv.New64a()
	h.Write([]byte(symbol))
	seed := int64(h.Sum64() & math.MaxInt64)
	price := 30 + float64(seed%190)

	fromDay := from.UTC().Format("2006-01-02")
	toDay := to.UTC().Format("2006-01-02")

	var candles []model.Candle
	for d, ord := syntheticEpoch, int64(0); ; d, ord = d.AddDate(0, 0, 1), ord+1 {
		day := d.Format("2006-01-02")
		if day > toDay {
			break
		}
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}

		rng := rand.New(rand.NewSource(seed*31 + ord))
		ret := (rng.Float64() - 0.48) * 0.044
		open := price
		price = open * (1 + ret)
		hi := math.Max(open, price) * (1 + rng.Float64()*0.012)
		lo := math.Min(open, price) * (1 - rng.Float64()*0.012)
		vol := int64((0.5 + 4.5*rng.Float64()) * 1e6 * (1 + 10*math.Abs(ret)))

		if day < fromDay {
			continue
		}
		candles = append(candles, model.Candle{
			Time:   d,
			Open:   open,
			High:   hi,
			Low:    lo,
			Close:  price,
			Volume: vol,
		})
	}
	return candles, nil
}
