package chart

import "math"

const (
	// MinZoom and MaxZoom bound how many candles the window spans.
	MinZoom     = 15
	MaxZoom     = 300
	DefaultZoom = 60

	// Right-side canvas slack in candles. Widened once a full pivot set
	// exists so the wave-5 projection has room to land on screen.
	futureBarsIdle       = 5
	futureBarsProjection = 30

	// Dragging the window this far past index 0 raises the needs-history
	// signal.
	historyTriggerOffset = -5

	// Panning left always keeps at least this many of the newest candles
	// inside the window.
	rightEdgeGuard = 5
)

// Viewport maps a pan offset and zoom level onto a candle sequence.
//
// Offset is the fractional candle index sitting at the left window edge;
// Zoom is the number of candles the window spans. Offset may go negative
// while the user drags into not-yet-loaded history.
type Viewport struct {
	Offset float64
	Zoom   int
}

// NewViewport returns a viewport showing the most recent DefaultZoom candles
// of an n-candle sequence.
func NewViewport(n int) Viewport {
	v := Viewport{Zoom: DefaultZoom}
	v.Reset(n)
	return v
}

// Reset pans the window to the most recent Zoom candles.
func (v *Viewport) Reset(n int) {
	if v.Zoom == 0 {
		v.Zoom = DefaultZoom
	}
	v.Offset = float64(n - v.Zoom)
	v.Clamp(n)
}

// Clamp bounds the offset so the window always overlaps the data: at least
// one candle remains visible on the left, and the newest candles can never
// scroll further left than the right-edge guard.
func (v *Viewport) Clamp(n int) {
	if n == 0 {
		v.Offset = 0
		return
	}
	lo := float64(-(v.Zoom - 1))
	hi := float64(n - rightEdgeGuard)
	if hi < lo {
		hi = lo
	}
	v.Offset = math.Max(lo, math.Min(v.Offset, hi))
}

// SetZoom clamps the zoom level into [MinZoom, MaxZoom], keeping the left
// edge anchored.
func (v *Viewport) SetZoom(zoom int) {
	if zoom < MinZoom {
		zoom = MinZoom
	}
	if zoom > MaxZoom {
		zoom = MaxZoom
	}
	v.Zoom = zoom
}

// ZoomBy adjusts the zoom by delta candles (wheel steps), clamped.
func (v *Viewport) ZoomBy(delta int) {
	v.SetZoom(v.Zoom + delta)
}

// VisibleRange returns the inclusive index window [start, end] clipped to a
// sequence of n candles. end < start signals nothing visible.
func (v Viewport) VisibleRange(n int) (start, end int) {
	start = int(math.Floor(v.Offset))
	end = start + v.Zoom - 1
	if start < 0 {
		start = 0
	}
	if end > n-1 {
		end = n - 1
	}
	return start, end
}

// EffectiveZoom is the candle count the x-axis actually spreads across the
// canvas: the zoom plus proportional slack for future bars. The slack grows
// once a projection needs room to draw wave-5 ahead of the data.
func (v Viewport) EffectiveZoom(projection bool) float64 {
	fb := futureBarsIdle
	if projection {
		fb = futureBarsProjection
	}
	return float64(v.Zoom) + float64(fb)*float64(v.Zoom)/60.0
}

// XAt maps a (possibly fractional or beyond-data) candle index to a
// horizontal pixel position.
func (v Viewport) XAt(i, width float64, projection bool) float64 {
	return (i - v.Offset) / v.EffectiveZoom(projection) * width
}

// IndexAt inverts XAt, returning the nearest candle index under a pixel
// x-position. The result is not clamped to the data.
func (v Viewport) IndexAt(x, width float64, projection bool) int {
	if width <= 0 {
		return 0
	}
	return int(math.Round(v.Offset + x/width*v.EffectiveZoom(projection)))
}

// Drag pans the window by a horizontal pixel delta. Dragging the chart right
// (positive dx) reveals older candles. The pixel-to-candle conversion uses
// the plain zoom, not the widened projection zoom, so a full-width drag
// always moves exactly one window regardless of projection state.
func (v *Viewport) Drag(dx, width float64, n int) {
	if width <= 0 {
		return
	}
	v.Offset -= dx / width * float64(v.Zoom)
	v.Clamp(n)
}

// ShiftForPrepend keeps the same calendar dates anchored after k older
// candles were inserted in front of the sequence.
func (v *Viewport) ShiftForPrepend(k int) {
	v.Offset += float64(k)
}

// NeedsHistory reports that the window has been dragged past the left data
// edge far enough to want older candles fetched.
func (v Viewport) NeedsHistory() bool {
	return v.Offset < historyTriggerOffset
}

// PriceScale maps prices to vertical pixel positions over a visible range,
// inverted so higher prices sit higher on screen, with symmetric padding
// above and below.
type PriceScale struct {
	Top, Bottom float64
	Height      float64
}

// pricePadFraction is the share of the visible price span padded on each side.
const pricePadFraction = 0.15

// NewPriceScale builds the scale for a visible [minLow, maxHigh] price span
// on a canvas of the given pixel height.
func NewPriceScale(minLow, maxHigh, height float64) PriceScale {
	pad := (maxHigh - minLow) * pricePadFraction
	if pad == 0 {
		// Flat range; give the single price line some breathing room.
		pad = math.Max(maxHigh*pricePadFraction, 1)
	}
	return PriceScale{Top: maxHigh + pad, Bottom: minLow - pad, Height: height}
}

// Y maps a price to a vertical pixel position.
func (s PriceScale) Y(price float64) float64 {
	span := s.Top - s.Bottom
	if span <= 0 {
		return s.Height / 2
	}
	return (s.Top - price) / span * s.Height
}
