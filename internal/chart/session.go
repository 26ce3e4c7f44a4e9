package chart

import (
	"sync"
	"time"

	"wavescope/internal/wave"
	"wavescope/pkg/model"
)

// Session is one interactive chart: a candle sequence, a viewport over it,
// the confirmed wave pivots and the projection/overlay state derived from
// them.
//
// The original interaction model is single-threaded call order from an event
// loop. A mutex serializes the web layer's concurrent requests into exactly
// that: each operation runs alone and sees the state the previous one left.
type Session struct {
	mu sync.Mutex

	id     string
	symbol string

	series *Series
	vp     Viewport
	points wave.Points
	cache  overlayCache

	overlayCfg OverlayConfig
	ratio      wave.Ratio
	manualP3   float64
	hasP3      bool

	selected int

	// History pagination. At most one request may be outstanding; a failed
	// request re-arms the signal, an empty batch after a successful initial
	// load marks the upstream exhausted.
	loading   bool
	exhausted bool
	loaded    bool
	pageSpan  time.Duration
}

// DefaultHistoryPage is how much older history one pagination request asks
// for.
const DefaultHistoryPage = 365 * 24 * time.Hour

// NewSession creates an empty session for a symbol.
func NewSession(id, symbol string) *Session {
	return &Session{
		id:         id,
		symbol:     symbol,
		series:     NewSeries(0),
		vp:         NewViewport(0),
		overlayCfg: OverlayConfig{}.Normalize(),
		ratio:      wave.RatioGolden,
		selected:   -1,
		pageSpan:   DefaultHistoryPage,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Symbol returns the charted symbol.
func (s *Session) Symbol() string { return s.symbol }

// SetHistoryPage sets how much older history one pagination request covers.
func (s *Session) SetHistoryPage(span time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if span > 0 {
		s.pageSpan = span
	}
}

// SetCandles replaces the whole sequence, resetting the viewport to the most
// recent window and rebinding pivots by date where possible.
func (s *Session) SetCandles(batch []model.Candle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prevLen := s.series.Len()
	s.series.Replace(batch)
	s.vp.Reset(s.series.Len())
	s.points = wave.Reindex(s.points, s.series.Candles(), prevLen)
	s.selected = -1
	if s.series.Len() > 0 {
		s.loaded = true
		s.exhausted = false
	}
}

// AppendLatest folds a fresh bar into the sequence, either extending it or
// refreshing today's forming candle. Pivots and viewport stay anchored when
// the retention cap trims old bars.
func (s *Session) AppendLatest(c model.Candle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prevLen := s.series.Len()
	trimmed := s.series.Append(c)
	if trimmed > 0 {
		s.vp.ShiftForPrepend(-trimmed)
		s.vp.Clamp(s.series.Len())
		s.points = wave.Reindex(s.points, s.series.Candles(), prevLen)
		if s.selected >= 0 {
			s.selected -= trimmed
			if s.selected < 0 {
				s.selected = -1
			}
		}
	}
}

// Drag pans the chart by a pixel delta measured on a canvas of the given
// width.
func (s *Session) Drag(dx, width float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vp.Drag(dx, width, s.series.Len())
}

// Zoom applies a wheel delta in candles.
func (s *Session) Zoom(delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vp.ZoomBy(delta)
	s.vp.Clamp(s.series.Len())
}

// SetZoom sets an absolute zoom level.
func (s *Session) SetZoom(zoom int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vp.SetZoom(zoom)
	s.vp.Clamp(s.series.Len())
}

// Select marks the candle nearest to a click x-position as the confirmation
// candidate. Clicks outside the data clear the selection.
func (s *Session) Select(x, width float64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.vp.IndexAt(x, width, s.points.Complete())
	if idx < 0 || idx >= s.series.Len() {
		s.selected = -1
	} else {
		s.selected = idx
	}
	return s.selected
}

// ConfirmPivot appends the selected candle as the next pivot in role order.
// It reports false when nothing is selected or the pivot list is already
// full.
func (s *Session) ConfirmPivot() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.selected < 0 || s.selected >= s.series.Len() {
		return false
	}
	next, ok := s.points.Confirm(s.selected, s.series.At(s.selected))
	if !ok {
		return false
	}
	s.points = next
	s.selected = -1
	return true
}

// ClearPivots drops all confirmed pivots and the manual wave-3 peak.
func (s *Session) ClearPivots() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points = nil
	s.hasP3 = false
	s.manualP3 = 0
	s.selected = -1
}

// SetRatio switches the wave-4 retracement ratio.
func (s *Session) SetRatio(r wave.Ratio) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.Valid() {
		s.ratio = r
	}
}

// SetOverlayConfig applies new moving-average windows, clamped to their
// bounds.
func (s *Session) SetOverlayConfig(cfg OverlayConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overlayCfg = cfg.Normalize()
}

// OverlayConfig returns the active moving-average windows.
func (s *Session) OverlayConfig() OverlayConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overlayCfg
}

// SetManualWave3 records an observed wave-3 peak price; on=false reverts to
// the golden-extension forecast.
func (s *Session) SetManualWave3(price float64, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hasP3 = on && price > 0
	s.manualP3 = price
}

// Projection computes the wave targets for the current pivot set. ok is
// false while pivots are incomplete.
func (s *Session) Projection() (wave.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projectionLocked()
}

func (s *Session) projectionLocked() (wave.Result, bool) {
	in, ok := s.points.Input(s.ratio)
	if !ok {
		return wave.Result{}, false
	}
	if s.hasP3 {
		in.P3 = s.manualP3
		in.HasP3 = true
	}
	if last, ok := s.series.Last(); ok {
		in.Price = last.Close
	}
	return wave.Compute(in), true
}

// BeginHistoryRequest arms a pagination request when the viewport has been
// dragged past the left edge. It returns the time range to fetch and flips
// the loading flag; ok is false while a request is already outstanding, the
// upstream is exhausted, or no request is needed.
func (s *Session) BeginHistoryRequest() (from, to time.Time, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loading || s.exhausted || !s.loaded {
		return time.Time{}, time.Time{}, false
	}
	if !s.vp.NeedsHistory() {
		return time.Time{}, time.Time{}, false
	}
	first, ok := s.series.First()
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	s.loading = true
	to = first.Time.AddDate(0, 0, -1)
	return to.Add(-s.pageSpan), to, true
}

// CompleteHistoryRequest folds the outcome of a pagination request back in.
// A batch prepends and shifts the viewport and pivots in one step so the
// visible dates do not jump. An empty batch means the upstream has nothing
// older and further requests stop. An error simply re-arms the signal; the
// next drag past the edge may retry.
func (s *Session) CompleteHistoryRequest(batch []model.Candle, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loading = false
	if err != nil {
		return
	}
	if len(batch) == 0 {
		s.exhausted = true
		return
	}

	prevLen := s.series.Len()
	added := s.series.Prepend(batch)
	if added == 0 {
		s.exhausted = true
		return
	}
	s.vp.ShiftForPrepend(added)
	s.vp.Clamp(s.series.Len())
	s.points = wave.Reindex(s.points, s.series.Candles(), prevLen)
	if s.selected >= 0 {
		s.selected += added
	}
}

// Loading reports whether a history request is outstanding.
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Snapshot assembles the flat render payload for a canvas of the given pixel
// size. All arithmetic lives here and in the helpers it calls; the rendering
// surface just draws records.
func (s *Session) Snapshot(width, height float64) *View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := &View{
		Symbol:    s.symbol,
		Width:     width,
		Height:    height,
		Total:     s.series.Len(),
		Version:   s.series.Version(),
		Loading:   s.loading,
		Exhausted: s.exhausted,
		Zoom:      s.vp.Zoom,
		Offset:    s.vp.Offset,
		Selected:  s.selected,
		Ratio:     float64(s.ratio),
		MAWindow:  s.overlayCfg.MAWindow,
		VolWindow: s.overlayCfg.VolWindow,
	}
	if len(s.points) < wave.MaxPoints {
		v.RoleNext = wave.Role(len(s.points)).String()
	}

	if s.series.Len() == 0 {
		v.Empty = true
		v.Start, v.End = 0, -1
		return v
	}

	start, end := s.vp.VisibleRange(s.series.Len())
	v.Start, v.End = start, end
	if start > end {
		v.Empty = true
		return v
	}

	overlays, ok := s.cache.get(s.series.Version(), s.overlayCfg)
	if !ok {
		overlays = ComputeOverlays(s.series.Candles(), s.overlayCfg)
		s.cache.put(s.series.Version(), s.overlayCfg, overlays)
	}

	// Canvas slack widens as soon as all pivots exist, valid or not, so
	// the projection has room the moment it appears.
	projecting := s.points.Complete()
	res, hasProj := s.projectionLocked()

	hiIdx, hi, loIdx, lo, ok := RangeExtremes(s.series.Candles(), start, end)
	if !ok {
		v.Empty = true
		return v
	}
	scale := NewPriceScale(lo, hi, height)
	v.BarWidth = width / s.vp.EffectiveZoom(projecting) * 0.7

	v.Candles = renderCandles(s.series, overlays, s.vp, scale, start, end, width, projecting)
	v.Pivots = renderPivots(s.points, s.vp, scale, width, projecting)
	v.HighMark = &AxisMark{
		Label: "H",
		Index: hiIdx,
		X:     s.vp.XAt(float64(hiIdx), width, projecting),
		Y:     scale.Y(hi),
		Price: hi,
	}
	v.LowMark = &AxisMark{
		Label: "L",
		Index: loIdx,
		X:     s.vp.XAt(float64(loIdx), width, projecting),
		Y:     scale.Y(lo),
		Price: lo,
	}

	if hasProj {
		r := res
		v.Projection = &r
		if res.Valid {
			v.Lines = renderProjection(s.points, res, s.vp, scale, width)
		}
	}
	return v
}
