package chart

import (
	"sort"

	"wavescope/pkg/model"
)

// DefaultMaxCandles bounds how much history a series retains. Older bars are
// discarded first once the cap is reached.
const DefaultMaxCandles = 5000

// Series owns an ordered daily candle sequence. Candles are kept strictly
// ascending by calendar day with no duplicates; the sequence grows by
// appending newer bars or prepending older history, and only ever discards
// bars from the oldest end to honor the retention cap.
//
// Every mutation bumps a version counter so derived views can key their
// caches on it. Series does no locking; the owning session serializes access.
type Series struct {
	candles []model.Candle
	maxLen  int
	version uint64
}

// NewSeries returns an empty series retaining at most maxLen candles.
// Non-positive maxLen selects DefaultMaxCandles.
func NewSeries(maxLen int) *Series {
	if maxLen <= 0 {
		maxLen = DefaultMaxCandles
	}
	return &Series{maxLen: maxLen}
}

// Len returns the number of candles held.
func (s *Series) Len() int { return len(s.candles) }

// Version returns the mutation counter. It changes on every Replace, Append
// and Prepend, including in-place updates of the forming bar.
func (s *Series) Version() uint64 { return s.version }

// At returns the candle at index i. The caller guarantees bounds.
func (s *Series) At(i int) model.Candle { return s.candles[i] }

// Candles exposes the backing slice for read-only scans. Callers must not
// mutate or retain it across series mutations.
func (s *Series) Candles() []model.Candle { return s.candles }

// First returns the oldest candle.
func (s *Series) First() (model.Candle, bool) {
	if len(s.candles) == 0 {
		return model.Candle{}, false
	}
	return s.candles[0], true
}

// Last returns the newest candle.
func (s *Series) Last() (model.Candle, bool) {
	if len(s.candles) == 0 {
		return model.Candle{}, false
	}
	return s.candles[len(s.candles)-1], true
}

// IndexByDay locates a candle by its calendar-day key.
func (s *Series) IndexByDay(day string) (int, bool) {
	i := sort.Search(len(s.candles), func(i int) bool {
		return s.candles[i].Day() >= day
	})
	if i < len(s.candles) && s.candles[i].Day() == day {
		return i, true
	}
	return 0, false
}

// Replace swaps in a whole new sequence, normalizing order and duplicates.
// Used for the initial load and for symbol switches.
func (s *Series) Replace(batch []model.Candle) {
	s.candles = Normalize(batch)
	if len(s.candles) > s.maxLen {
		s.candles = s.candles[len(s.candles)-s.maxLen:]
	}
	s.version++
}

// Append adds one newer candle, or refreshes the forming bar in place when
// the day matches the newest held candle. Returns how many old candles were
// trimmed to stay within the retention cap; the caller shifts its viewport
// and pivots by that amount.
func (s *Series) Append(c model.Candle) int {
	if c.Validate() != nil {
		return 0
	}
	switch {
	case len(s.candles) == 0:
		s.candles = append(s.candles, c)
	case c.Day() == s.candles[len(s.candles)-1].Day():
		s.candles[len(s.candles)-1] = c
	case c.Day() > s.candles[len(s.candles)-1].Day():
		s.candles = append(s.candles, c)
	default:
		// Out-of-order bar; the feed already delivered this day.
		return 0
	}
	s.version++

	trimmed := 0
	if len(s.candles) > s.maxLen {
		trimmed = len(s.candles) - s.maxLen
		s.candles = append(s.candles[:0], s.candles[trimmed:]...)
	}
	return trimmed
}

// Prepend inserts older history in front of the sequence, keeping only bars
// strictly older than the current first day. Returns how many candles were
// actually added; the caller shifts its viewport and pivots by that amount.
func (s *Series) Prepend(batch []model.Candle) int {
	older := Normalize(batch)
	if len(older) == 0 {
		return 0
	}
	if len(s.candles) > 0 {
		firstDay := s.candles[0].Day()
		cut := sort.Search(len(older), func(i int) bool {
			return older[i].Day() >= firstDay
		})
		older = older[:cut]
	}
	if len(older) == 0 {
		return 0
	}

	merged := make([]model.Candle, 0, len(older)+len(s.candles))
	merged = append(merged, older...)
	merged = append(merged, s.candles...)
	if len(merged) > s.maxLen {
		merged = merged[len(merged)-s.maxLen:]
	}
	added := len(merged) - len(s.candles)
	s.candles = merged
	s.version++
	return added
}

// Normalize sorts a batch by time, drops candles that fail validation and
// collapses duplicate days keeping the later entry. The input is not mutated.
func Normalize(batch []model.Candle) []model.Candle {
	clean := make([]model.Candle, 0, len(batch))
	for _, c := range batch {
		if c.Validate() == nil {
			clean = append(clean, c)
		}
	}
	sort.SliceStable(clean, func(i, j int) bool {
		return clean[i].Time.Before(clean[j].Time)
	})

	out := clean[:0]
	for _, c := range clean {
		if len(out) > 0 && out[len(out)-1].Day() == c.Day() {
			out[len(out)-1] = c
			continue
		}
		out = append(out, c)
	}
	return out
}
