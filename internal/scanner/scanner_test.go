package scanner

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"wavescope/internal/chart"
	"wavescope/internal/wave"
	"wavescope/pkg/model"
)

func day(i int) time.Time {
	return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
}

func bar(i int, close float64, vol int64) model.Candle {
	return model.Candle{
		Time: day(i), Open: close - 0.5, High: close + 1, Low: close - 1,
		Close: close, Volume: vol,
	}
}

// fourBars ends on a volume spike that crosses above a rising 2-bar average.
func fourBars() []model.Candle {
	return []model.Candle{
		bar(0, 10, 100),
		bar(1, 12, 100),
		bar(2, 11, 100),
		bar(3, 14, 300),
	}
}

type fakeFeed struct {
	mu      sync.Mutex
	batches map[string][]model.Candle
	fail    map[string]error
	calls   int
}

func (f *fakeFeed) Name() string      { return "fake" }
func (f *fakeFeed) IsAvailable() bool { return true }
func (f *fakeFeed) RateLimit() int    { return 0 }

func (f *fakeFeed) FetchDaily(ctx context.Context, symbol string, from, to time.Time) ([]model.Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.fail[symbol]; err != nil {
		return nil, err
	}
	return f.batches[symbol], nil
}

func smallOverlay() chart.OverlayConfig {
	return chart.OverlayConfig{MAWindow: 2, VolWindow: 2}
}

func almost(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestScanComputesOverlayFields(t *testing.T) {
	feed := &fakeFeed{batches: map[string][]model.Candle{"AAPL": fourBars()}}
	s := NewScanner(feed, smallOverlay(), 30, 2, 5*time.Second)

	sum, err := s.Scan(context.Background(), []string{"AAPL"})
	if err != nil {
		t.Fatal(err)
	}
	if len(sum.Reports) != 1 {
		t.Fatalf("reports = %d, want 1", len(sum.Reports))
	}

	r := sum.Reports[0]
	if r.Symbol != "AAPL" || r.Candles != 4 {
		t.Errorf("report header = %s/%d", r.Symbol, r.Candles)
	}
	if r.Close != 14 {
		t.Errorf("close = %v, want 14", r.Close)
	}
	if !almost(r.ChangePct, (14.0-11.0)/11.0*100) {
		t.Errorf("change pct = %v", r.ChangePct)
	}
	if !r.HasMA || !almost(r.MA, 12.5) {
		t.Errorf("ma = %v (has=%v), want 12.5", r.MA, r.HasMA)
	}
	if !almost(r.BiasPct, 12.0) {
		t.Errorf("bias = %v, want 12", r.BiasPct)
	}
	if !almost(r.VolRatio, 3.0) || !r.Anomaly {
		t.Errorf("vol ratio = %v anomaly = %v, want 3.0 and true", r.VolRatio, r.Anomaly)
	}
	if r.Signal != string(chart.SignalBreakout) || r.SignalAge != 0 {
		t.Errorf("signal = %q age %d, want fresh breakout", r.Signal, r.SignalAge)
	}
	if r.RangeLow != 9 || r.RangeHigh != 15 {
		t.Errorf("range = [%v, %v], want [9, 15]", r.RangeLow, r.RangeHigh)
	}
}

func TestScanCoversEverySymbol(t *testing.T) {
	feed := &fakeFeed{batches: map[string][]model.Candle{
		"AAPL": fourBars(),
		"MSFT": fourBars(),
		"NVDA": fourBars(),
	}}
	s := NewScanner(feed, smallOverlay(), 30, 2, 5*time.Second)

	sum, err := s.Scan(context.Background(), []string{"AAPL", "MSFT", "NVDA"})
	if err != nil {
		t.Fatal(err)
	}
	if sum.TotalScanned != 3 {
		t.Errorf("total = %d, want 3", sum.TotalScanned)
	}
	if len(sum.Failures) != 0 {
		t.Fatalf("failures = %v", sum.Failures)
	}

	seen := map[string]bool{}
	for _, r := range sum.Reports {
		seen[r.Symbol] = true
	}
	for _, sym := range []string{"AAPL", "MSFT", "NVDA"} {
		if !seen[sym] {
			t.Errorf("no report for %s", sym)
		}
	}
}

func TestScanRecordsFailures(t *testing.T) {
	feed := &fakeFeed{
		batches: map[string][]model.Candle{
			"AAPL": fourBars(),
			"MSFT": fourBars(),
			"NONE": nil, // clean empty answer
		},
		fail: map[string]error{"BAD": fmt.Errorf("boom")},
	}
	s := NewScanner(feed, smallOverlay(), 30, 3, 5*time.Second)

	sum, err := s.Scan(context.Background(), []string{"AAPL", "BAD", "NONE", "MSFT"})
	if err != nil {
		t.Fatal(err)
	}
	if sum.TotalScanned != 4 {
		t.Errorf("total = %d, want 4", sum.TotalScanned)
	}
	if len(sum.Reports) != 2 {
		t.Errorf("reports = %d, want 2", len(sum.Reports))
	}
	if len(sum.Failures) != 2 {
		t.Fatalf("failures = %d, want 2", len(sum.Failures))
	}
	for _, f := range sum.Failures {
		if f.Symbol != "BAD" && f.Symbol != "NONE" {
			t.Errorf("unexpected failed symbol %s", f.Symbol)
		}
	}
}

func TestScanReportsProgress(t *testing.T) {
	feed := &fakeFeed{batches: map[string][]model.Candle{}}
	symbols := make([]string, 5)
	for i := range symbols {
		sym := fmt.Sprintf("S%d", i)
		symbols[i] = sym
		feed.batches[sym] = fourBars()
	}

	s := NewScanner(feed, smallOverlay(), 30, 2, 5*time.Second)

	var mu sync.Mutex
	var ticks, last int
	s.SetProgressCallback(func(scanned, total int) {
		mu.Lock()
		defer mu.Unlock()
		ticks++
		if scanned > last {
			last = scanned
		}
		if total != 5 {
			t.Errorf("total = %d, want 5", total)
		}
	})

	if _, err := s.Scan(context.Background(), symbols); err != nil {
		t.Fatal(err)
	}
	if ticks != 5 || last != 5 {
		t.Errorf("progress ticks = %d, last = %d, want 5 and 5", ticks, last)
	}
}

func TestScanEmptySymbolList(t *testing.T) {
	s := NewScanner(&fakeFeed{}, smallOverlay(), 30, 2, 5*time.Second)
	sum, err := s.Scan(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if sum.TotalScanned != 0 || len(sum.Reports) != 0 {
		t.Errorf("empty scan produced %+v", sum)
	}
}

func TestScanStopsOnCancelledContext(t *testing.T) {
	feed := &fakeFeed{batches: map[string][]model.Candle{"AAPL": fourBars()}}
	s := NewScanner(feed, smallOverlay(), 30, 2, 5*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum, err := s.Scan(ctx, []string{"AAPL", "MSFT", "NVDA"})
	if err != nil {
		t.Fatal(err)
	}
	if len(sum.Reports) != 0 {
		t.Errorf("cancelled scan still produced %d reports", len(sum.Reports))
	}
}

func TestScanAutoPivot(t *testing.T) {
	// Low at bar 0, top at bar 1, pullback at bar 2: a clean upward impulse.
	batch := []model.Candle{
		bar(0, 10, 100),
		bar(1, 15, 100),
		bar(2, 12, 100),
		bar(3, 13, 100),
	}
	feed := &fakeFeed{batches: map[string][]model.Candle{"AAPL": batch}}

	s := NewScanner(feed, smallOverlay(), 30, 1, 5*time.Second)
	s.EnableAutoPivot(wave.RatioGolden)

	sum, err := s.Scan(context.Background(), []string{"AAPL"})
	if err != nil {
		t.Fatal(err)
	}
	if len(sum.Reports) != 1 {
		t.Fatalf("reports = %d, want 1", len(sum.Reports))
	}

	p := sum.Reports[0].Projection
	if p == nil {
		t.Fatal("expected a projection from the detected pivots")
	}
	if !p.Valid {
		t.Fatalf("projection rejected: %s", p.Reason)
	}
	// Pivot prices: P0 = 9 (low of bar 0), P1 = 16 (high of bar 1),
	// P2 = 11 (low of bar 2).
	if !almost(p.Wave1Height, 7) {
		t.Errorf("wave1 height = %v, want 7", p.Wave1Height)
	}
	if !almost(p.Wave3Min, 18) {
		t.Errorf("wave3 min = %v, want 18", p.Wave3Min)
	}
	if !almost(p.Wave3Gold, 11+7*wave.GoldenExtension) {
		t.Errorf("wave3 gold = %v", p.Wave3Gold)
	}
	if !almost(p.Price, 13) {
		t.Errorf("carried price = %v, want the last close 13", p.Price)
	}

	wantDates := []string{"2024-03-01", "2024-03-02", "2024-03-03"}
	got := sum.Reports[0].PivotDates
	if len(got) != len(wantDates) {
		t.Fatalf("pivot dates = %v", got)
	}
	for i := range wantDates {
		if got[i] != wantDates[i] {
			t.Errorf("pivot date %d = %s, want %s", i, got[i], wantDates[i])
		}
	}
}

func TestScanAutoPivotSkipsBrokenShape(t *testing.T) {
	// A straight climb has its high on the last bar, so no impulse is found.
	climb := []model.Candle{
		bar(0, 10, 100),
		bar(1, 11, 100),
		bar(2, 12, 100),
		bar(3, 13, 100),
	}
	feed := &fakeFeed{batches: map[string][]model.Candle{"AAPL": climb}}

	s := NewScanner(feed, smallOverlay(), 30, 1, 5*time.Second)
	s.EnableAutoPivot(wave.RatioGolden)

	sum, err := s.Scan(context.Background(), []string{"AAPL"})
	if err != nil {
		t.Fatal(err)
	}
	if len(sum.Reports) != 1 {
		t.Fatalf("reports = %d, want 1", len(sum.Reports))
	}
	if sum.Reports[0].Projection != nil {
		t.Error("climb without a pullback should not project")
	}
}

func TestScanWithoutAutoPivot(t *testing.T) {
	batch := []model.Candle{
		bar(0, 10, 100),
		bar(1, 15, 100),
		bar(2, 12, 100),
		bar(3, 13, 100),
	}
	feed := &fakeFeed{batches: map[string][]model.Candle{"AAPL": batch}}

	s := NewScanner(feed, smallOverlay(), 30, 1, 5*time.Second)
	sum, err := s.Scan(context.Background(), []string{"AAPL"})
	if err != nil {
		t.Fatal(err)
	}
	if sum.Reports[0].Projection != nil {
		t.Error("projection should stay nil unless auto-pivot is enabled")
	}
}
