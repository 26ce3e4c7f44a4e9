package chart

import (
	"math"
	"testing"

	"wavescope/pkg/model"
)

// naiveMean is the reference mean of candles[from..to] closes.
func naiveMean(vals []float64, from, to int) float64 {
	sum := 0.0
	for i := from; i <= to; i++ {
		sum += vals[i]
	}
	return sum / float64(to-from+1)
}

func TestOverlayConfigNormalize(t *testing.T) {
	got := OverlayConfig{}.Normalize()
	if got.MAWindow != DefaultMAWindow || got.VolWindow != DefaultVolWindow {
		t.Errorf("zero config normalized to %+v", got)
	}
	got = OverlayConfig{MAWindow: 1, VolWindow: 500}.Normalize()
	if got.MAWindow != MinMAWindow || got.VolWindow != MaxVolWindow {
		t.Errorf("out-of-range config normalized to %+v", got)
	}
	got = OverlayConfig{MAWindow: 500, VolWindow: 1}.Normalize()
	if got.MAWindow != MaxMAWindow || got.VolWindow != MinVolWindow {
		t.Errorf("out-of-range config normalized to %+v", got)
	}
}

func TestMovingAverageWindow(t *testing.T) {
	candles := genCandles(seriesStart, 40)
	o := ComputeOverlays(candles, OverlayConfig{MAWindow: 10, VolWindow: 5})

	if o.MAStart != 9 {
		t.Fatalf("MAStart = %d, want 9", o.MAStart)
	}
	if o.HasMA(8) {
		t.Error("MA should be undefined before the window fills")
	}
	if !o.HasMA(9) || !o.HasMA(39) {
		t.Error("MA should be defined from index 9 on")
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	for _, i := range []int{9, 20, 39} {
		want := naiveMean(closes, i-9, i)
		if math.Abs(o.MA[i]-want) > 1e-9 {
			t.Errorf("MA[%d] = %v, want %v", i, o.MA[i], want)
		}
	}
}

func TestMovingAverageShortSeries(t *testing.T) {
	candles := genCandles(seriesStart, 5)
	o := ComputeOverlays(candles, OverlayConfig{MAWindow: 10, VolWindow: 3})
	for i := range candles {
		if o.HasMA(i) {
			t.Fatalf("MA defined at %d on a series shorter than the window", i)
		}
	}
}

func TestVolumeAverageExcludesCurrentBar(t *testing.T) {
	// Flat volume of 100 except one spike at index 6.
	candles := genCandles(seriesStart, 12)
	for i := range candles {
		candles[i].Volume = 100
	}
	candles[6].Volume = 1000

	o := ComputeOverlays(candles, OverlayConfig{MAWindow: 60, VolWindow: 5})
	if o.VolStart != 5 {
		t.Fatalf("VolStart = %d, want 5", o.VolStart)
	}

	// At the spike, the trailing average is the untouched 100, so the spike
	// itself cannot dilute the window it is judged against.
	if o.VolMA[6] != 100 {
		t.Errorf("VolMA[6] = %v, want 100", o.VolMA[6])
	}
	if !o.Anomaly[6] {
		t.Error("spike should flag an anomaly")
	}

	// The bar after the spike carries it in the trailing window: mean of
	// {100,100,100,100,1000} = 280, so a 100-volume bar is quiet.
	if o.VolMA[7] != 280 {
		t.Errorf("VolMA[7] = %v, want 280", o.VolMA[7])
	}
	if o.Anomaly[7] {
		t.Error("bar after the spike should not flag")
	}

	// Flat volume ties the average exactly; >= makes that an anomaly.
	if !o.Anomaly[5] {
		t.Error("volume equal to its trailing average should flag")
	}

	// Undefined before N prior bars exist.
	for i := 0; i < 5; i++ {
		if o.Anomaly[i] {
			t.Errorf("Anomaly[%d] set before the window fills", i)
		}
	}
}

func TestGranvilleSignalPriority(t *testing.T) {
	mk := func(close float64) model.Candle {
		return model.Candle{
			Open: close, High: close * 1.6, Low: close * 0.4, Close: close, Volume: 100,
		}
	}

	// Window 3. Closes chosen so the MA stays computable and each case
	// isolates one classification.
	closes := []float64{100, 100, 100, 100, 130, 60, 100, 100}
	candles := make([]model.Candle, len(closes))
	for i, cl := range closes {
		candles[i] = mk(cl)
		candles[i].Time = seriesStart.AddDate(0, 0, i)
	}

	o := ComputeOverlays(candles, OverlayConfig{MAWindow: 3, VolWindow: 2})

	// Index 4: close 130 crosses above the rising MA (100 -> 110), breakout.
	if got := o.Signals[4]; got != SignalBreakout {
		t.Errorf("Signals[4] = %q, want breakout", got)
	}

	// Index 5: close 60 crosses below the falling MA (110 -> 96.67); the
	// bias is also under -20% but breakdown wins the priority order.
	if got := o.Signals[5]; got != SignalBreakdown {
		t.Errorf("Signals[5] = %q, want breakdown", got)
	}

	// Index 3: flat closes on a flat MA, no crossing, no stretch.
	if got := o.Signals[3]; got != SignalNone {
		t.Errorf("Signals[3] = %q, want none", got)
	}
}

func TestGranvilleBiasRules(t *testing.T) {
	mk := func(day int, cl float64) model.Candle {
		return model.Candle{
			Time: seriesStart.AddDate(0, 0, day),
			Open: cl, High: cl * 2, Low: cl * 0.3, Close: cl, Volume: 100,
		}
	}

	// Downside: the cross happens at index 3; index 4 stays below without a
	// fresh cross and its bias of -19.2% is inside the band; index 5
	// stretches to -28.6% and flags oversold.
	down := []float64{100, 100, 100, 90, 70, 50}
	candles := make([]model.Candle, len(down))
	for i, cl := range down {
		candles[i] = mk(i, cl)
	}
	o := ComputeOverlays(candles, OverlayConfig{MAWindow: 3, VolWindow: 2})
	if got := o.Signals[3]; got != SignalBreakdown {
		t.Errorf("Signals[3] = %q, want breakdown", got)
	}
	if got := o.Signals[4]; got != SignalNone {
		t.Errorf("Signals[4] = %q, want none inside the bias band", got)
	}
	if got := o.Signals[5]; got != SignalOversold {
		t.Errorf("Signals[5] = %q, want oversold", got)
	}

	// Upside: index 4 sits 27.5% above the MA with no fresh cross.
	up := []float64{100, 100, 100, 130, 170}
	candles = candles[:0]
	for i, cl := range up {
		candles = append(candles, mk(i, cl))
	}
	o = ComputeOverlays(candles, OverlayConfig{MAWindow: 3, VolWindow: 2})
	if got := o.Signals[4]; got != SignalOverbought {
		t.Errorf("Signals[4] = %q, want overbought", got)
	}
}

func TestRangeExtremes(t *testing.T) {
	candles := genCandles(seriesStart, 30)
	candles[12].High = 500
	candles[18].Low = 1

	hiIdx, hi, loIdx, lo, ok := RangeExtremes(candles, 5, 25)
	if !ok {
		t.Fatal("expected a non-empty range")
	}
	if hiIdx != 12 || hi != 500 {
		t.Errorf("high = %v at %d", hi, hiIdx)
	}
	if loIdx != 18 || lo != 1 {
		t.Errorf("low = %v at %d", lo, loIdx)
	}

	// Extremes outside the window don't count.
	hiIdx, _, _, _, _ = RangeExtremes(candles, 0, 10)
	if hiIdx == 12 {
		t.Error("extreme outside the range leaked in")
	}

	if _, _, _, _, ok := RangeExtremes(candles, 20, 10); ok {
		t.Error("inverted range should report not ok")
	}
	if _, _, _, _, ok := RangeExtremes(nil, 0, 5); ok {
		t.Error("empty sequence should report not ok")
	}
}

func TestOverlaysEmptySequence(t *testing.T) {
	o := ComputeOverlays(nil, OverlayConfig{})
	if len(o.MA) != 0 || len(o.Anomaly) != 0 || len(o.Signals) != 0 {
		t.Errorf("empty input should produce empty overlays: %+v", o)
	}
	if o.HasMA(0) {
		t.Error("HasMA on empty overlays")
	}
}
