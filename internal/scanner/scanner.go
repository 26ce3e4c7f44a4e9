package scanner

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"wavescope/internal/chart"
	"wavescope/internal/provider"
	"wavescope/internal/wave"
	"wavescope/pkg/model"
)

// ProgressCallback is called with progress updates
type ProgressCallback func(scanned, total int)

// Report summarizes the overlay state of one symbol's recent candles.
type Report struct {
	Symbol    string  `json:"symbol"`
	Candles   int     `json:"candles"`
	Close     float64 `json:"close"`
	ChangePct float64 `json:"change_pct"`

	HasMA   bool    `json:"has_ma"`
	MA      float64 `json:"ma"`
	BiasPct float64 `json:"bias_pct"`

	VolRatio float64 `json:"vol_ratio"`
	Anomaly  bool    `json:"anomaly"`

	// Signal is the most recent trend event within the last trading week;
	// SignalAge counts bars back from the newest candle.
	Signal    string `json:"signal,omitempty"`
	SignalAge int    `json:"signal_age,omitempty"`

	RangeLow  float64 `json:"range_low"`
	RangeHigh float64 `json:"range_high"`

	// Projection and PivotDates are set only in auto-pivot mode, and only
	// when the detected swing shape passes the wave structure rules.
	Projection *wave.Result `json:"projection,omitempty"`
	PivotDates []string     `json:"pivot_dates,omitempty"`
}

// Failure records a symbol that could not be analyzed.
type Failure struct {
	Symbol string `json:"symbol"`
	Err    string `json:"error"`
}

// Summary is the outcome of one scan pass.
type Summary struct {
	TotalScanned int           `json:"total_scanned"`
	Reports      []Report      `json:"reports"`
	Failures     []Failure     `json:"failures,omitempty"`
	ScanTime     time.Duration `json:"scan_time"`
}

// Scanner fans per-symbol overlay analysis out over a worker pool
type Scanner struct {
	feed         provider.Provider
	overlay      chart.OverlayConfig
	spanDays     int
	workers      int
	timeout      time.Duration
	progressFunc ProgressCallback

	autoPivot bool
	ratio     wave.Ratio
}

// NewScanner creates a new scanner
func NewScanner(feed provider.Provider, overlay chart.OverlayConfig, spanDays, workers int, timeout time.Duration) *Scanner {
	if workers < 1 {
		workers = 1
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Scanner{
		feed:     feed,
		overlay:  overlay,
		spanDays: spanDays,
		workers:  workers,
		timeout:  timeout,
	}
}

// SetProgressCallback sets the progress callback function
func (s *Scanner) SetProgressCallback(fn ProgressCallback) {
	s.progressFunc = fn
}

// EnableAutoPivot turns on swing detection: each report then carries a wave
// projection derived from the detected pivots, when the shape validates.
func (s *Scanner) EnableAutoPivot(ratio wave.Ratio) {
	s.autoPivot = true
	s.ratio = ratio
}

// Scan analyzes all symbols in parallel. An expired context ends the scan
// early with whatever was collected; per-symbol failures never abort it.
func (s *Scanner) Scan(ctx context.Context, symbols []string) (*Summary, error) {
	startTime := time.Now()

	if len(symbols) == 0 {
		return &Summary{Reports: []Report{}, ScanTime: time.Since(startTime)}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	jobChan := make(chan string, len(symbols))
	reportChan := make(chan Report, len(symbols))
	failureChan := make(chan Failure, len(symbols))

	for _, sym := range symbols {
		jobChan <- sym
	}
	close(jobChan)

	to := time.Now()
	from := to.AddDate(0, 0, -s.spanDays)

	var scannedCount int64

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sym := range jobChan {
				select {
				case <-ctx.Done():
					return
				default:
				}

				rep, err := s.analyze(ctx, sym, from, to)
				if err != nil {
					failureChan <- Failure{Symbol: sym, Err: err.Error()}
				} else {
					reportChan <- rep
				}

				count := atomic.AddInt64(&scannedCount, 1)
				if s.progressFunc != nil {
					s.progressFunc(int(count), len(symbols))
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(reportChan)
		close(failureChan)
	}()

	summary := &Summary{TotalScanned: len(symbols)}
	for rep := range reportChan {
		summary.Reports = append(summary.Reports, rep)
	}
	for f := range failureChan {
		summary.Failures = append(summary.Failures, f)
	}
	summary.ScanTime = time.Since(startTime)
	return summary, nil
}

// analyze fetches one symbol's candles and condenses the overlay series into
// a report on the newest bar.
func (s *Scanner) analyze(ctx context.Context, symbol string, from, to time.Time) (Report, error) {
	candles, err := s.feed.FetchDaily(ctx, symbol, from, to)
	if err != nil {
		return Report{}, err
	}
	if len(candles) == 0 {
		return Report{}, fmt.Errorf("no data")
	}

	o := chart.ComputeOverlays(candles, s.overlay)
	last := len(candles) - 1

	rep := Report{
		Symbol:  symbol,
		Candles: len(candles),
		Close:   candles[last].Close,
	}
	if last > 0 {
		rep.ChangePct = model.NewQuote(symbol, candles[last], candles[last-1]).ChangePct
	}
	if o.HasMA(last) {
		rep.HasMA = true
		rep.MA = o.MA[last]
		if rep.MA > 0 {
			rep.BiasPct = (rep.Close - rep.MA) / rep.MA * 100
		}
	}
	if last >= o.VolStart && o.VolMA[last] > 0 {
		rep.VolRatio = float64(candles[last].Volume) / o.VolMA[last]
		rep.Anomaly = o.Anomaly[last]
	}

	for age := 0; age <= 5 && last-age >= 0; age++ {
		if sig := o.Signals[last-age]; sig != chart.SignalNone {
			rep.Signal = string(sig)
			rep.SignalAge = age
			break
		}
	}

	if _, hi, _, lo, ok := chart.RangeExtremes(candles, 0, last); ok {
		rep.RangeHigh = hi
		rep.RangeLow = lo
	}

	if s.autoPivot {
		if i0, i1, i2, ok := wave.DetectImpulse(candles); ok {
			res := wave.Compute(wave.Input{
				P0:    candles[i0].Low,
				P1:    candles[i1].High,
				P2:    candles[i2].Low,
				Ratio: s.ratio,
				Price: candles[last].Close,
			})
			if res.Valid {
				rep.Projection = &res
				rep.PivotDates = []string{candles[i0].Day(), candles[i1].Day(), candles[i2].Day()}
			}
		}
	}
	return rep, nil
}
