package wave

import (
	"fmt"
)

// GoldenExtension is the canonical wave-3 extension multiple applied to the
// wave-1 height.
const GoldenExtension = 1.618

// Ratio is a wave-4 retracement ratio. Only the three canonical Fibonacci
// retracements are accepted; arbitrary floats never enter the engine because
// every boundary (CLI flag, HTTP parameter, session setter) goes through
// ParseRatio first.
type Ratio float64

const (
	RatioShallow Ratio = 0.382
	RatioHalf    Ratio = 0.5
	RatioGolden  Ratio = 0.618
)

// ErrInvalidRatio rejects retracement values outside the canonical set.
var ErrInvalidRatio = fmt.Errorf("retracement ratio must be 0.382, 0.5 or 0.618")

// ParseRatio maps a raw float onto the canonical ratio set.
func ParseRatio(v float64) (Ratio, error) {
	switch Ratio(v) {
	case RatioShallow, RatioHalf, RatioGolden:
		return Ratio(v), nil
	}
	return 0, fmt.Errorf("%w: got %v", ErrInvalidRatio, v)
}

// Valid reports whether r is one of the canonical ratios.
func (r Ratio) Valid() bool {
	switch r {
	case RatioShallow, RatioHalf, RatioGolden:
		return true
	}
	return false
}

// Structure-validation failure reasons. Every invalid Result carries exactly
// one of these, chosen by the first rule the pivots violate.
const (
	ReasonWave1NotAbove = "wave-1 high must exceed the start price"
	ReasonFullRetrace   = "wave-2 cannot break below the wave-1 start — the 100%-retracement rule"
	ReasonNoRetrace     = "wave-2 must be a retracement, not a new high"
	ReasonWave3NotAbove = "wave-3 high must exceed wave-2 low"
)

// Input holds the pivot prices for one projection. P0 is the wave start,
// P1 the wave-1 top and P2 the wave-2 bottom; all three are required.
// P3 is an observed wave-3 peak and only consulted when HasP3 is set.
// Price is the current market price; it is carried through for display and
// never participates in the math.
type Input struct {
	P0    float64
	P1    float64
	P2    float64
	P3    float64
	HasP3 bool
	Ratio Ratio
	Price float64
}

// Result is the full projection derived from an Input, or the reason the
// pivot structure was rejected. Compute is pure: the same Input always yields
// the same Result, so results can be cached or recomputed freely.
type Result struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`

	Wave1Height     float64 `json:"wave1_height"`
	Wave2RetracePct float64 `json:"wave2_retrace_pct"`
	Wave3Min        float64 `json:"wave3_min"`
	Wave3Gold       float64 `json:"wave3_gold"`
	Wave3Peak       float64 `json:"wave3_peak"`
	Wave4Target     float64 `json:"wave4_target"`
	Wave5Target     float64 `json:"wave5_target"`
	Ratio           Ratio   `json:"ratio"`
	ManualWave3     bool    `json:"manual_wave3"`
	Price           float64 `json:"price,omitempty"`
}

// Compute derives the wave-3/4/5 targets for an upward five-wave impulse.
//
// Validation short-circuits on the first violated rule, so callers always see
// the most fundamental problem with their pivots. A rejected structure is not
// an error: it is reported through Valid and Reason, and the numeric fields
// stay zero.
//
// For a valid structure:
//
//	wave1Height = P1 - P0
//	wave3Min    = P2 + wave1Height
//	wave3Gold   = P2 + wave1Height * 1.618
//	wave4       = peak - (peak - P2) * ratio   (peak is P3 when given, else wave3Gold)
//	wave5       = wave4 + wave1Height
func Compute(in Input) Result {
	res := Result{Ratio: in.Ratio, Price: in.Price}

	switch {
	case in.P1 <= in.P0:
		res.Reason = ReasonWave1NotAbove
	case in.P2 <= in.P0:
		res.Reason = ReasonFullRetrace
	case in.P2 >= in.P1:
		res.Reason = ReasonNoRetrace
	case in.HasP3 && in.P3 <= in.P2:
		res.Reason = ReasonWave3NotAbove
	}
	if res.Reason != "" {
		return res
	}

	res.Valid = true
	res.Wave1Height = in.P1 - in.P0
	res.Wave2RetracePct = (in.P1 - in.P2) / res.Wave1Height * 100
	res.Wave3Min = in.P2 + res.Wave1Height
	res.Wave3Gold = in.P2 + res.Wave1Height*GoldenExtension

	res.Wave3Peak = res.Wave3Gold
	if in.HasP3 {
		res.Wave3Peak = in.P3
		res.ManualWave3 = true
	}

	res.Wave4Target = res.Wave3Peak - (res.Wave3Peak-in.P2)*float64(in.Ratio)
	res.Wave5Target = res.Wave4Target + res.Wave1Height
	return res
}

// TargetLevel is one labeled horizontal price line derived from a projection.
type TargetLevel struct {
	Label string  `json:"label"`
	Price float64 `json:"price"`
}

// Levels flattens a valid Result into the price lines a chart draws. The
// wave-3 entry shows the observed peak when one was supplied and the golden
// extension otherwise; the minimum target is always included for reference.
func Levels(res Result) []TargetLevel {
	if !res.Valid {
		return nil
	}
	levels := []TargetLevel{
		{Label: "W3 x1.0", Price: res.Wave3Min},
	}
	if res.ManualWave3 {
		levels = append(levels, TargetLevel{Label: "W3 actual", Price: res.Wave3Peak})
	} else {
		levels = append(levels, TargetLevel{Label: "W3 x1.618", Price: res.Wave3Gold})
	}
	levels = append(levels,
		TargetLevel{Label: fmt.Sprintf("W4 %.1f%%", float64(res.Ratio)*100), Price: res.Wave4Target},
		TargetLevel{Label: "W5", Price: res.Wave5Target},
	)
	return levels
}
