package chart

import (
	"math"

	"github.com/thrasher-corp/gct-ta/indicators"

	"wavescope/pkg/model"
)

// Moving-average window bounds. Values outside are clamped, zero selects the
// default.
const (
	DefaultMAWindow  = 60
	MinMAWindow      = 2
	MaxMAWindow      = 240
	DefaultVolWindow = 5
	MinVolWindow     = 2
	MaxVolWindow     = 60
)

// biasThreshold is the close-to-average divergence treated as stretched.
const biasThreshold = 0.20

// SignalKind classifies a Granville-style trend event on a single bar.
type SignalKind string

const (
	SignalNone       SignalKind = ""
	SignalBreakout   SignalKind = "breakout"
	SignalBreakdown  SignalKind = "breakdown"
	SignalOversold   SignalKind = "oversold"
	SignalOverbought SignalKind = "overbought"
)

// OverlayConfig holds the derived-series knobs a user can tune.
type OverlayConfig struct {
	MAWindow  int `json:"ma_window"`
	VolWindow int `json:"vol_window"`
}

// Normalize clamps both windows into their supported ranges, mapping zero to
// the defaults.
func (c OverlayConfig) Normalize() OverlayConfig {
	if c.MAWindow == 0 {
		c.MAWindow = DefaultMAWindow
	}
	if c.MAWindow < MinMAWindow {
		c.MAWindow = MinMAWindow
	}
	if c.MAWindow > MaxMAWindow {
		c.MAWindow = MaxMAWindow
	}
	if c.VolWindow == 0 {
		c.VolWindow = DefaultVolWindow
	}
	if c.VolWindow < MinVolWindow {
		c.VolWindow = MinVolWindow
	}
	if c.VolWindow > MaxVolWindow {
		c.VolWindow = MaxVolWindow
	}
	return c
}

// Overlays are the per-bar derived series aligned index-for-index with the
// candle sequence they were computed from.
//
// MA[i] is meaningful only for i >= MAStart. VolMA[i] is the mean volume of
// the window ending at bar i-1, so the bar itself never influences its own
// anomaly flag; it is meaningful only for i >= VolStart.
type Overlays struct {
	Config OverlayConfig

	MA      []float64
	MAStart int

	VolMA    []float64
	VolStart int
	Anomaly  []bool

	Signals []SignalKind
}

// HasMA reports whether the moving average is defined at index i.
func (o *Overlays) HasMA(i int) bool {
	return i >= o.MAStart && i < len(o.MA)
}

// ComputeOverlays derives the full overlay set for a candle sequence. Bars
// before a window fills carry zero values and are marked undefined through
// the start indices.
func ComputeOverlays(candles []model.Candle, cfg OverlayConfig) *Overlays {
	cfg = cfg.Normalize()
	n := len(candles)
	o := &Overlays{
		Config:   cfg,
		MA:       make([]float64, n),
		MAStart:  n,
		VolMA:    make([]float64, n),
		VolStart: n,
		Anomaly:  make([]bool, n),
		Signals:  make([]SignalKind, n),
	}
	if n == 0 {
		return o
	}

	closes := make([]float64, n)
	vols := make([]float64, n)
	for i, c := range candles {
		closes[i] = c.Close
		vols[i] = float64(c.Volume)
	}

	if n >= cfg.MAWindow {
		o.MA = indicators.SMA(closes, cfg.MAWindow)
		o.MAStart = cfg.MAWindow - 1
	}

	// The trailing volume average at bar i is the plain average of the
	// window ending at i-1, so shift the rolling mean right by one.
	if n >= cfg.VolWindow+1 {
		volSMA := indicators.SMA(vols, cfg.VolWindow)
		for i := cfg.VolWindow; i < n; i++ {
			o.VolMA[i] = volSMA[i-1]
			o.Anomaly[i] = vols[i] >= volSMA[i-1]
		}
		o.VolStart = cfg.VolWindow
	}

	// Granville signals need the average at both the bar and its
	// predecessor.
	for i := o.MAStart + 1; i < n; i++ {
		o.Signals[i] = classifySignal(closes[i-1], closes[i], o.MA[i-1], o.MA[i])
	}
	return o
}

// classifySignal applies the four Granville categories in fixed priority
// order; the first match wins and at most one signal fires per bar.
func classifySignal(prevClose, close, prevMA, ma float64) SignalKind {
	if ma <= 0 {
		return SignalNone
	}
	crossAbove := close > ma && prevClose <= prevMA
	crossBelow := close < ma && prevClose >= prevMA
	bias := (close - ma) / ma

	switch {
	case crossAbove && ma >= prevMA:
		return SignalBreakout
	case crossBelow && ma <= prevMA:
		return SignalBreakdown
	case bias < -biasThreshold:
		return SignalOversold
	case bias > biasThreshold:
		return SignalOverbought
	}
	return SignalNone
}

// RangeExtremes scans [start, end] of a candle sequence for the highest high
// and lowest low. ok is false when the range is empty.
func RangeExtremes(candles []model.Candle, start, end int) (hiIdx int, hi float64, loIdx int, lo float64, ok bool) {
	if start < 0 {
		start = 0
	}
	if end > len(candles)-1 {
		end = len(candles) - 1
	}
	if start > end {
		return 0, 0, 0, 0, false
	}
	hi, lo = math.Inf(-1), math.Inf(1)
	for i := start; i <= end; i++ {
		if candles[i].High > hi {
			hi, hiIdx = candles[i].High, i
		}
		if candles[i].Low < lo {
			lo, loIdx = candles[i].Low, i
		}
	}
	return hiIdx, hi, loIdx, lo, true
}
