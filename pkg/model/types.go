package model

import (
	"fmt"
	"time"
)

// Candle represents a single daily candlestick (OHLCV data)
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Day returns the calendar-day key of the candle. Two candles with the same
// key describe the same trading day regardless of the intraday timestamp the
// data source attached.
func (c Candle) Day() string {
	return c.Time.UTC().Format("2006-01-02")
}

// Bullish reports whether the candle closed at or above its open.
func (c Candle) Bullish() bool {
	return c.Close >= c.Open
}

// Validate checks OHLCV sanity: positive prices, a high/low envelope that
// contains the open and close, and non-negative volume.
func (c Candle) Validate() error {
	if c.Time.IsZero() {
		return fmt.Errorf("candle has no timestamp")
	}
	if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
		return fmt.Errorf("candle %s has non-positive price", c.Day())
	}
	if c.High < c.Open || c.High < c.Close {
		return fmt.Errorf("candle %s high %.4f below open/close", c.Day(), c.High)
	}
	if c.Low > c.Open || c.Low > c.Close {
		return fmt.Errorf("candle %s low %.4f above open/close", c.Day(), c.Low)
	}
	if c.Volume < 0 {
		return fmt.Errorf("candle %s has negative volume", c.Day())
	}
	return nil
}

// Stock represents a watchlist entry
type Stock struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// Quote is a lightweight last-bar snapshot pushed to stream subscribers when
// a tracked symbol refreshes.
type Quote struct {
	Symbol    string    `json:"symbol"`
	Close     float64   `json:"close"`
	ChangePct float64   `json:"change_pct"`
	Volume    int64     `json:"volume"`
	Time      time.Time `json:"time"`
}

// NewQuote derives a Quote from the two most recent candles of a symbol.
// prev may be the zero Candle when only one bar exists.
func NewQuote(symbol string, last, prev Candle) Quote {
	q := Quote{
		Symbol: symbol,
		Close:  last.Close,
		Volume: last.Volume,
		Time:   last.Time,
	}
	if prev.Close > 0 {
		q.ChangePct = (last.Close - prev.Close) / prev.Close * 100
	}
	return q
}
