package chart

import (
	"math"
	"testing"
)

func TestVisibleRangeScenarios(t *testing.T) {
	// zoom=60 over 200 candles: offset 0 shows [0,59]; offset 150 would
	// reach 209 and clips to the last valid index 199, not to the pan
	// guard.
	v := Viewport{Offset: 0, Zoom: 60}
	start, end := v.VisibleRange(200)
	if start != 0 || end != 59 {
		t.Errorf("range = [%d,%d], want [0,59]", start, end)
	}

	v.Offset = 150
	start, end = v.VisibleRange(200)
	if start != 150 || end != 199 {
		t.Errorf("range = [%d,%d], want [150,199]", start, end)
	}
}

func TestVisibleRangeFractionalAndNegative(t *testing.T) {
	v := Viewport{Offset: 10.7, Zoom: 20}
	start, end := v.VisibleRange(100)
	if start != 10 || end != 29 {
		t.Errorf("range = [%d,%d], want [10,29]", start, end)
	}

	v.Offset = -3.2
	start, end = v.VisibleRange(100)
	if start != 0 || end != 15 {
		t.Errorf("range = [%d,%d], want [0,15]", start, end)
	}

	start, end = v.VisibleRange(0)
	if end >= start {
		t.Errorf("empty sequence should yield an empty range, got [%d,%d]", start, end)
	}
}

func TestZoomClamps(t *testing.T) {
	v := Viewport{Zoom: 60}
	v.SetZoom(5)
	if v.Zoom != MinZoom {
		t.Errorf("zoom = %d, want clamp to %d", v.Zoom, MinZoom)
	}
	v.SetZoom(1000)
	if v.Zoom != MaxZoom {
		t.Errorf("zoom = %d, want clamp to %d", v.Zoom, MaxZoom)
	}
	v.SetZoom(60)
	v.ZoomBy(-10)
	if v.Zoom != 50 {
		t.Errorf("zoom = %d, want 50", v.Zoom)
	}
}

func TestOffsetClampRightEdge(t *testing.T) {
	v := Viewport{Offset: 1e9, Zoom: 60}
	v.Clamp(200)
	if v.Offset != 195 {
		t.Errorf("offset = %v, want 195 (len-5 guard)", v.Offset)
	}
}

func TestDragConvertsPixelsWithPlainZoom(t *testing.T) {
	v := Viewport{Offset: 100, Zoom: 60}
	// A full-width drag right moves exactly one window into the past,
	// regardless of the projection slack.
	v.Drag(800, 800, 1000)
	if v.Offset != 40 {
		t.Errorf("offset = %v, want 40", v.Offset)
	}
	// Half-width drag left moves half a window forward.
	v.Drag(-400, 800, 1000)
	if v.Offset != 70 {
		t.Errorf("offset = %v, want 70", v.Offset)
	}
}

func TestNeedsHistory(t *testing.T) {
	v := Viewport{Offset: -4.9, Zoom: 60}
	if v.NeedsHistory() {
		t.Error("offset -4.9 should not trigger history")
	}
	v.Offset = -5.1
	if !v.NeedsHistory() {
		t.Error("offset -5.1 should trigger history")
	}
}

func TestShiftForPrepend(t *testing.T) {
	v := Viewport{Offset: 12.5, Zoom: 60}
	v.ShiftForPrepend(30)
	if v.Offset != 42.5 {
		t.Errorf("offset = %v, want 42.5", v.Offset)
	}
}

func TestResetShowsNewestWindow(t *testing.T) {
	v := Viewport{Zoom: 60}
	v.Reset(200)
	if v.Offset != 140 {
		t.Errorf("offset = %v, want 140", v.Offset)
	}
	start, end := v.VisibleRange(200)
	if start != 140 || end != 199 {
		t.Errorf("range = [%d,%d], want [140,199]", start, end)
	}

	// Fewer candles than the window: the offset goes negative so the data
	// hugs the right edge, which is also what arms history pagination.
	v.Reset(20)
	if v.Offset != -40 {
		t.Errorf("offset = %v, want -40", v.Offset)
	}
}

func TestEffectiveZoomWidensForProjection(t *testing.T) {
	v := Viewport{Zoom: 60}
	if got := v.EffectiveZoom(false); got != 65 {
		t.Errorf("idle effective zoom = %v, want 65", got)
	}
	if got := v.EffectiveZoom(true); got != 90 {
		t.Errorf("projection effective zoom = %v, want 90", got)
	}

	// Slack scales with zoom: zoom 120 doubles it.
	v.Zoom = 120
	if got := v.EffectiveZoom(false); got != 130 {
		t.Errorf("idle effective zoom = %v, want 130", got)
	}
}

func TestXTransformRoundTrip(t *testing.T) {
	v := Viewport{Offset: 37.25, Zoom: 90}
	const width = 960.0
	for _, idx := range []int{38, 60, 99, 126} {
		x := v.XAt(float64(idx), width, false)
		if got := v.IndexAt(x, width, false); got != idx {
			t.Errorf("round trip %d -> %.2fpx -> %d", idx, x, got)
		}
	}
	// Projection slack changes the transform but stays invertible.
	for _, idx := range []int{40, 80, 120} {
		x := v.XAt(float64(idx), width, true)
		if got := v.IndexAt(x, width, true); got != idx {
			t.Errorf("projection round trip %d -> %.2fpx -> %d", idx, x, got)
		}
	}
}

func TestXTransformFormula(t *testing.T) {
	v := Viewport{Offset: 10, Zoom: 60}
	const width = 600.0
	// x(i) = (i - offset) / effZoom * width with effZoom = 65.
	want := (25.0 - 10.0) / 65.0 * width
	if got := v.XAt(25, width, false); math.Abs(got-want) > 1e-9 {
		t.Errorf("x(25) = %v, want %v", got, want)
	}
}

func TestPriceScale(t *testing.T) {
	s := NewPriceScale(100, 200, 500)
	// 15% padding each side: top=215, bottom=85.
	if y := s.Y(215); math.Abs(y) > 1e-9 {
		t.Errorf("top price y = %v, want 0", y)
	}
	if y := s.Y(85); math.Abs(y-500) > 1e-9 {
		t.Errorf("bottom price y = %v, want 500", y)
	}
	mid := s.Y(150)
	if mid <= 0 || mid >= 500 {
		t.Errorf("mid price y = %v, want inside canvas", mid)
	}
	// Inverted: higher price, smaller y.
	if s.Y(200) >= s.Y(100) {
		t.Error("scale should invert prices")
	}

	// Flat range still yields a usable scale.
	flat := NewPriceScale(100, 100, 500)
	y := flat.Y(100)
	if math.IsNaN(y) || y < 0 || y > 500 {
		t.Errorf("flat scale y = %v", y)
	}
}
