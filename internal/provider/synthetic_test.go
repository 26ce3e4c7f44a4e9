package provider

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestSyntheticDeterministic(t *testing.T) {
	p := NewSyntheticProvider()
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	a, err := p.FetchDaily(context.Background(), "ACME", from, to)
	if err != nil {
		t.Fatal(err)
	}
	b, err := p.FetchDaily(context.Background(), "ACME", from, to)
	if err != nil {
		t.Fatal(err)
	}
	if len(a) == 0 || len(a) != len(b) {
		t.Fatalf("lens %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("bar %d differs between identical requests", i)
		}
	}

	// Different symbols walk different paths.
	c, _ := p.FetchDaily(context.Background(), "OTHER", from, to)
	if len(c) > 0 && len(a) > 0 && c[0].Close == a[0].Close && c[len(c)-1].Close == a[len(a)-1].Close {
		t.Error("two symbols should not share a walk")
	}
}

func TestSyntheticOverlappingRangesAgree(t *testing.T) {
	p := NewSyntheticProvider()
	wideFrom := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	narrowFrom := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	wide, _ := p.FetchDaily(context.Background(), "ACME", wideFrom, to)
	narrow, _ := p.FetchDaily(context.Background(), "ACME", narrowFrom, to)

	byDay := make(map[string]float64, len(wide))
	for _, c := range wide {
		byDay[c.Day()] = c.Close
	}
	if len(narrow) == 0 {
		t.Fatal("narrow range came back empty")
	}
	for _, c := range narrow {
		want, ok := byDay[c.Day()]
		if !ok {
			t.Fatalf("day %s missing from the wide range", c.Day())
		}
		if c.Close != want {
			t.Fatalf("day %s close %v vs %v: ranges disagree", c.Day(), c.Close, want)
		}
	}
}

func TestSyntheticBarsAreWellFormed(t *testing.T) {
	p := NewSyntheticProvider()
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	batch, err := p.FetchDaily(context.Background(), "WELLFORMED", from, to)
	if err != nil {
		t.Fatal(err)
	}
	if len(batch) == 0 {
		t.Fatal("no bars")
	}
	for i, c := range batch {
		if err := c.Validate(); err != nil {
			t.Fatalf("bar %d invalid: %v", i, err)
		}
		if wd := c.Time.Weekday(); wd == time.Saturday || wd == time.Sunday {
			t.Fatalf("bar %d lands on a weekend", i)
		}
		if i > 0 && !batch[i-1].Time.Before(c.Time) {
			t.Fatalf("bars out of order at %d", i)
		}
	}
}

func TestSyntheticExhaustsBeforeEpoch(t *testing.T) {
	p := NewSyntheticProvider()
	from := time.Date(1998, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(1999, 12, 31, 0, 0, 0, 0, time.UTC)

	batch, err := p.FetchDaily(context.Background(), "ACME", from, to)
	if err != nil {
		t.Fatal(err)
	}
	if len(batch) != 0 {
		t.Fatalf("pre-epoch range should be empty, got %d bars", len(batch))
	}
}

func TestParseStooqCSV(t *testing.T) {
	body := "Date,Open,High,Low,Close,Volume\n" +
		"2024-01-02,100.5,102.0,99.8,101.2,1200000\n" +
		"2024-01-03,101.2,103.4,100.9,103.0,1350000\n" +
		"bogus row\n" +
		"2024-01-04,103.0,103.5,101.1,101.9,900000\n"

	candles, err := parseStooqCSV(strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if len(candles) != 3 {
		t.Fatalf("got %d candles, want 3", len(candles))
	}
	if candles[0].Day() != "2024-01-02" || candles[0].Close != 101.2 {
		t.Errorf("first candle = %+v", candles[0])
	}
	if candles[2].Volume != 900000 {
		t.Errorf("volume = %d", candles[2].Volume)
	}
}

func TestParseStooqCSVNoData(t *testing.T) {
	candles, err := parseStooqCSV(strings.NewReader("No data\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(candles) != 0 {
		t.Errorf("got %d candles from a no-data body", len(candles))
	}

	candles, err = parseStooqCSV(strings.NewReader(""))
	if err != nil {
		t.Fatal(err)
	}
	if len(candles) != 0 {
		t.Errorf("got %d candles from an empty body", len(candles))
	}
}

func TestStooqSymbolMapping(t *testing.T) {
	if got := stooqSymbol("AAPL"); got != "aapl.us" {
		t.Errorf("AAPL -> %q", got)
	}
	if got := stooqSymbol("^SPX"); got != "^spx.us" {
		t.Errorf("^SPX -> %q", got)
	}
	if got := stooqSymbol("CDR.PL"); got != "cdr.pl" {
		t.Errorf("CDR.PL -> %q", got)
	}
}
