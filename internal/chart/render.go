package chart

import (
	"fmt"

	"wavescope/internal/wave"
)

// Line kinds carried in a View.
const (
	LineWave     = "wave"
	LineTarget   = "target"
	LineTimeMark = "timemark"
)

// CandleRender is the pixel-space geometry plus overlay flags of one visible
// candle. All coordinates are canvas pixels with the origin at the top left.
type CandleRender struct {
	Index   int     `json:"index"`
	Day     string  `json:"day"`
	X       float64 `json:"x"`
	YOpen   float64 `json:"y_open"`
	YHigh   float64 `json:"y_high"`
	YLow    float64 `json:"y_low"`
	YClose  float64 `json:"y_close"`
	Bullish bool    `json:"bullish"`

	// MAY is the moving-average pixel position at this bar, valid only
	// when HasMA is set.
	MAY   float64 `json:"ma_y"`
	HasMA bool    `json:"has_ma"`

	// VolFrac scales the volume bar against the largest visible volume.
	VolFrac float64    `json:"vol_frac"`
	Anomaly bool       `json:"anomaly"`
	Signal  SignalKind `json:"signal,omitempty"`
}

// Line is a straight segment in canvas pixels: a wave leg, a horizontal
// target level or a vertical Fibonacci time mark.
type Line struct {
	Kind  string  `json:"kind"`
	Label string  `json:"label,omitempty"`
	X1    float64 `json:"x1"`
	Y1    float64 `json:"y1"`
	X2    float64 `json:"x2"`
	Y2    float64 `json:"y2"`
	Price float64 `json:"price,omitempty"`
}

// PivotMark is a confirmed pivot placed in canvas pixels.
type PivotMark struct {
	Label string  `json:"label"`
	Index int     `json:"index"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Price float64 `json:"price"`
}

// AxisMark annotates a price extreme inside the visible range.
type AxisMark struct {
	Label string  `json:"label"`
	Index int     `json:"index"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Price float64 `json:"price"`
}

// View is the flat render payload produced by one snapshot. The rendering
// surface draws it without knowing any of the underlying arithmetic; an
// empty sequence is reported through Empty rather than by crashing or
// omitting fields.
type View struct {
	Symbol  string  `json:"symbol"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	Start   int     `json:"start"`
	End     int     `json:"end"`
	Total   int     `json:"total"`
	Version uint64  `json:"version"`

	Empty     bool `json:"empty"`
	Loading   bool `json:"loading"`
	Exhausted bool `json:"exhausted"`

	Zoom      int     `json:"zoom"`
	Offset    float64 `json:"offset"`
	BarWidth  float64 `json:"bar_width"`
	Selected  int     `json:"selected"`
	RoleNext  string  `json:"role_next,omitempty"`
	Ratio     float64 `json:"ratio"`
	MAWindow  int     `json:"ma_window"`
	VolWindow int     `json:"vol_window"`

	Candles    []CandleRender `json:"candles"`
	Pivots     []PivotMark    `json:"pivots"`
	Lines      []Line         `json:"lines"`
	HighMark   *AxisMark      `json:"high_mark,omitempty"`
	LowMark    *AxisMark      `json:"low_mark,omitempty"`
	Projection *wave.Result   `json:"projection,omitempty"`
}

// renderCandles builds the visible candle records for [start, end].
func renderCandles(s *Series, o *Overlays, vp Viewport, scale PriceScale, start, end int, width float64, projection bool) []CandleRender {
	if start > end {
		return nil
	}

	var maxVol int64
	for i := start; i <= end; i++ {
		if v := s.At(i).Volume; v > maxVol {
			maxVol = v
		}
	}

	out := make([]CandleRender, 0, end-start+1)
	for i := start; i <= end; i++ {
		c := s.At(i)
		r := CandleRender{
			Index:   i,
			Day:     c.Day(),
			X:       vp.XAt(float64(i), width, projection),
			YOpen:   scale.Y(c.Open),
			YHigh:   scale.Y(c.High),
			YLow:    scale.Y(c.Low),
			YClose:  scale.Y(c.Close),
			Bullish: c.Bullish(),
			Anomaly: o.Anomaly[i],
			Signal:  o.Signals[i],
		}
		if o.HasMA(i) {
			r.MAY = scale.Y(o.MA[i])
			r.HasMA = true
		}
		if maxVol > 0 {
			r.VolFrac = float64(c.Volume) / float64(maxVol)
		}
		out = append(out, r)
	}
	return out
}

// renderProjection lays out the wave polyline, the horizontal target levels
// and the vertical Fibonacci time marks for a complete pivot set.
//
// Target legs are drawn forward of P2 using the wave-1 leg duration as the
// horizontal yardstick, the usual charting convention when the future bars
// have no real dates yet.
func renderProjection(points wave.Points, res wave.Result, vp Viewport, scale PriceScale, width float64) []Line {
	if !res.Valid || !points.Complete() {
		return nil
	}
	proj := true

	lines := make([]Line, 0, 16)

	// Confirmed legs P0-P1 and P1-P2.
	for i := 1; i < len(points); i++ {
		a, b := points[i-1], points[i]
		lines = append(lines, Line{
			Kind: LineWave,
			X1:   vp.XAt(float64(a.Index), width, proj),
			Y1:   scale.Y(a.Price),
			X2:   vp.XAt(float64(b.Index), width, proj),
			Y2:   scale.Y(b.Price),
		})
	}

	// Forecast legs: wave-3 up to the active peak, then wave-4 down and
	// wave-5 up at the projected targets.
	leg1 := points[1].Index - points[0].Index
	if leg1 < 2 {
		leg1 = 2
	}
	p2 := points[2]
	xPeak := float64(p2.Index + leg1)
	xW4 := xPeak + float64(leg1)/2
	xW5 := xW4 + float64(leg1)

	forecast := []struct {
		x1, y1, x2, y2 float64
		label          string
	}{
		{float64(p2.Index), p2.Price, xPeak, res.Wave3Peak, "W3"},
		{xPeak, res.Wave3Peak, xW4, res.Wave4Target, "W4"},
		{xW4, res.Wave4Target, xW5, res.Wave5Target, "W5"},
	}
	for _, f := range forecast {
		lines = append(lines, Line{
			Kind:  LineWave,
			Label: f.label,
			X1:    vp.XAt(f.x1, width, proj),
			Y1:    scale.Y(f.y1),
			X2:    vp.XAt(f.x2, width, proj),
			Y2:    scale.Y(f.y2),
		})
	}

	// Horizontal target levels from P2 to the right edge.
	xFrom := vp.XAt(float64(p2.Index), width, proj)
	for _, lv := range wave.Levels(res) {
		y := scale.Y(lv.Price)
		lines = append(lines, Line{
			Kind:  LineTarget,
			Label: lv.Label,
			X1:    xFrom,
			Y1:    y,
			X2:    width,
			Y2:    y,
			Price: lv.Price,
		})
	}

	// Vertical Fibonacci time marks from P0, only those on canvas.
	for _, idx := range wave.TimeMarks(points[0].Index) {
		x := vp.XAt(float64(idx), width, proj)
		if x < 0 || x > width {
			continue
		}
		lines = append(lines, Line{
			Kind:  LineTimeMark,
			Label: fmt.Sprintf("+%d", idx-points[0].Index),
			X1:    x,
			Y1:    0,
			X2:    x,
			Y2:    scale.Height,
		})
	}
	return lines
}

// renderPivots places the confirmed pivot markers.
func renderPivots(points wave.Points, vp Viewport, scale PriceScale, width float64, projection bool) []PivotMark {
	if len(points) == 0 {
		return nil
	}
	out := make([]PivotMark, 0, len(points))
	for _, p := range points {
		out = append(out, PivotMark{
			Label: p.Role.String(),
			Index: p.Index,
			X:     vp.XAt(float64(p.Index), width, projection),
			Y:     scale.Y(p.Price),
			Price: p.Price,
		})
	}
	return out
}
