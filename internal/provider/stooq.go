package provider

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"wavescope/internal/ratelimit"
	"wavescope/pkg/model"
)

// StooqProvider fetches daily candles from the Stooq CSV endpoint. Keyless,
// generous limits, but US symbols need a ".us" suffix and the data trails the
// primary source by a session, so it sits late in the chain.
type StooqProvider struct {
	client    *http.Client
	limiter   *ratelimit.Limiter
	rateLimit int
}

// NewStooqProvider creates the Stooq CSV strategy.
func NewStooqProvider() *StooqProvider {
	return &StooqProvider{
		client:    &http.Client{Timeout: 30 * time.Second},
		limiter:   ratelimit.NewLimiter("stooq", 60),
		rateLimit: 60,
	}
}

// Name returns the strategy name
func (p *StooqProvider) Name() string {
	return "stooq"
}

// IsAvailable always returns true (no API key needed)
func (p *StooqProvider) IsAvailable() bool {
	return true
}

// RateLimit returns the rate limit per minute
func (p *StooqProvider) RateLimit() int {
	return p.rateLimit
}

// stooqSymbol maps a plain US ticker onto Stooq's naming scheme. Symbols that
// already carry a market suffix pass through unchanged.
func stooqSymbol(symbol string) string {
	s := strings.ToLower(symbol)
	if strings.Contains(s, ".") {
		return s
	}
	return s + ".us"
}

// FetchDaily fetches daily candles for [from, to].
func (p *StooqProvider) FetchDaily(ctx context.Context, symbol string, from, to time.Time) ([]model.Candle, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("https://stooq.com/q/d/l/?s=%s&d1=%s&d2=%s&i=d",
		stooqSymbol(symbol), from.Format("20060102"), to.Format("20060102"))

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: err, Retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		p.limiter.SignalRateLimited()
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("rate limited"), Retryable: true}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("status %d", resp.StatusCode), Retryable: false}
	}

	p.limiter.ResetBackoff()

	return parseStooqCSV(resp.Body)
}

// parseStooqCSV reads the Date,Open,High,Low,Close,Volume daily export.
// An unknown symbol or an empty range answers with a "No data" body, which
// maps to a clean empty batch.
func parseStooqCSV(r io.Reader) ([]model.Candle, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}
	if len(header) > 0 && strings.HasPrefix(strings.ToLower(header[0]), "no data") {
		return nil, nil
	}

	var candles []model.Candle
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv row: %w", err)
		}
		if len(rec) < 6 {
			continue
		}

		day, err := time.Parse("2006-01-02", rec[0])
		if err != nil {
			continue
		}
		open, err1 := strconv.ParseFloat(rec[1], 64)
		high, err2 := strconv.ParseFloat(rec[2], 64)
		low, err3 := strconv.ParseFloat(rec[3], 64)
		closeP, err4 := strconv.ParseFloat(rec[4], 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			continue
		}
		volume, _ := strconv.ParseFloat(rec[5], 64)

		candles = append(candles, model.Candle{
			Time:   day.UTC(),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closeP,
			Volume: int64(volume),
		})
	}
	return candles, nil
}
