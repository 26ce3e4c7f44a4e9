package wave

import (
	"wavescope/pkg/model"
)

// DetectImpulse locates an upward impulse candidate in a daily series: the
// lowest low is taken as the wave start, the highest high after it as the
// wave-1 top and the deepest pullback after that as the wave-2 bottom.
// Indices come back in confirmation order, p0 < p1 < p2. ok is false when
// the series is too short or the high sits on the final bar, leaving no bar
// for a retracement.
//
// Detection only proposes a shape; Compute still applies the structural
// rules, so a flat or broken candidate is rejected there.
func DetectImpulse(candles []model.Candle) (p0, p1, p2 int, ok bool) {
	n := len(candles)
	if n < 3 {
		return 0, 0, 0, false
	}

	for i := 1; i < n; i++ {
		if candles[i].Low < candles[p0].Low {
			p0 = i
		}
	}
	if p0 > n-3 {
		return 0, 0, 0, false
	}

	p1 = p0 + 1
	for i := p0 + 2; i < n; i++ {
		if candles[i].High > candles[p1].High {
			p1 = i
		}
	}
	if p1 > n-2 {
		return 0, 0, 0, false
	}

	p2 = p1 + 1
	for i := p1 + 2; i < n; i++ {
		if candles[i].Low < candles[p2].Low {
			p2 = i
		}
	}
	return p0, p1, p2, true
}
