package provider

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"wavescope/pkg/model"
)

// fakeStrategy scripts one FetchDaily outcome and counts calls.
type fakeStrategy struct {
	name      string
	batch     []model.Candle
	err       error
	available bool
	calls     int
}

func (f *fakeStrategy) Name() string { return f.name }

func (f *fakeStrategy) IsAvailable() bool { return f.available }

func (f *fakeStrategy) RateLimit() int { return 0 }

func (f *fakeStrategy) FetchDaily(ctx context.Context, symbol string, from, to time.Time) ([]model.Candle, error) {
	f.calls++
	return f.batch, f.err
}

func someBatch() []model.Candle {
	return []model.Candle{{
		Time: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 100,
	}}
}

var testRange = struct{ from, to time.Time }{
	from: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	to:   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
}

func TestChainFirstSuccessWins(t *testing.T) {
	first := &fakeStrategy{name: "a", batch: someBatch(), available: true}
	second := &fakeStrategy{name: "b", batch: someBatch(), available: true}
	chain := NewChain(first, second)

	batch, err := chain.FetchDaily(context.Background(), "ACME", testRange.from, testRange.to)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch) != 1 {
		t.Fatalf("got %d candles", len(batch))
	}
	if first.calls != 1 {
		t.Errorf("first strategy called %d times, want 1", first.calls)
	}
	if second.calls != 0 {
		t.Errorf("later strategy should never run after a success, ran %d times", second.calls)
	}
}

func TestChainFallsThroughInOrder(t *testing.T) {
	first := &fakeStrategy{name: "a", err: errors.New("down"), available: true}
	second := &fakeStrategy{name: "b", err: errors.New("also down"), available: true}
	third := &fakeStrategy{name: "c", batch: someBatch(), available: true}
	chain := NewChain(first, second, third)

	batch, err := chain.FetchDaily(context.Background(), "ACME", testRange.from, testRange.to)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch) != 1 {
		t.Fatalf("got %d candles", len(batch))
	}
	// Exactly one attempt per strategy, in order.
	for _, f := range []*fakeStrategy{first, second, third} {
		if f.calls != 1 {
			t.Errorf("strategy %s called %d times, want 1", f.name, f.calls)
		}
	}
}

func TestChainSkipsUnavailable(t *testing.T) {
	off := &fakeStrategy{name: "off", batch: someBatch(), available: false}
	on := &fakeStrategy{name: "on", batch: someBatch(), available: true}
	chain := NewChain(off, on)

	if _, err := chain.FetchDaily(context.Background(), "ACME", testRange.from, testRange.to); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if off.calls != 0 {
		t.Error("unavailable strategy was called")
	}
	if on.calls != 1 {
		t.Error("available strategy was not called")
	}
}

func TestChainAllFail(t *testing.T) {
	first := &fakeStrategy{name: "a", err: errors.New("down"), available: true}
	second := &fakeStrategy{name: "b", err: &ProviderError{Provider: "b", Err: errors.New("bad gateway")}, available: true}
	chain := NewChain(first, second)

	_, err := chain.FetchDaily(context.Background(), "ACME", testRange.from, testRange.to)
	if !errors.Is(err, ErrFetchFailed) {
		t.Fatalf("error = %v, want ErrFetchFailed", err)
	}
}

func TestChainCleanEmptyBeatsFailure(t *testing.T) {
	// One strategy cleanly reports no data for the range; a later failure
	// must not turn that into an error.
	empty := &fakeStrategy{name: "a", available: true}
	broken := &fakeStrategy{name: "b", err: errors.New("down"), available: true}
	chain := NewChain(empty, broken)

	batch, err := chain.FetchDaily(context.Background(), "ACME", testRange.from, testRange.to)
	if err != nil {
		t.Fatalf("clean empty should not error: %v", err)
	}
	if len(batch) != 0 {
		t.Fatalf("got %d candles, want none", len(batch))
	}
}

func TestChainEmptyChain(t *testing.T) {
	chain := NewChain()
	if chain.IsAvailable() {
		t.Error("empty chain should be unavailable")
	}
	_, err := chain.FetchDaily(context.Background(), "ACME", testRange.from, testRange.to)
	if !errors.Is(err, ErrFetchFailed) {
		t.Fatalf("error = %v, want ErrFetchFailed", err)
	}
}

func TestChainContextCancellation(t *testing.T) {
	strategy := &fakeStrategy{name: "a", batch: someBatch(), available: true}
	chain := NewChain(strategy)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := chain.FetchDaily(ctx, "ACME", testRange.from, testRange.to); err == nil {
		t.Fatal("expected error from cancelled context")
	}
	if strategy.calls != 0 {
		t.Error("strategy ran despite cancelled context")
	}
}

func TestProviderErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	pe := &ProviderError{Provider: "test", Err: inner, Retryable: true}
	if !errors.Is(pe, inner) {
		t.Error("ProviderError should unwrap to the inner error")
	}
	if !strings.Contains(pe.Error(), "test") || !strings.Contains(pe.Error(), "boom") {
		t.Errorf("error text = %q", pe.Error())
	}
}

func TestCachingProviderServesRepeatRange(t *testing.T) {
	inner := &fakeStrategy{name: "a", batch: someBatch(), available: true}
	cached := NewCachingProvider(inner, time.Minute)

	for i := 0; i < 3; i++ {
		batch, err := cached.FetchDaily(context.Background(), "ACME", testRange.from, testRange.to)
		if err != nil || len(batch) != 1 {
			t.Fatalf("call %d: batch=%d err=%v", i, len(batch), err)
		}
	}
	if inner.calls != 1 {
		t.Errorf("upstream called %d times, want 1", inner.calls)
	}

	// A different range is its own entry.
	if _, err := cached.FetchDaily(context.Background(), "ACME", testRange.from.AddDate(0, -1, 0), testRange.to); err != nil {
		t.Fatal(err)
	}
	if inner.calls != 2 {
		t.Errorf("upstream called %d times, want 2", inner.calls)
	}
}

func TestCachingProviderDoesNotCacheFailures(t *testing.T) {
	inner := &fakeStrategy{name: "a", err: errors.New("down"), available: true}
	cached := NewCachingProvider(inner, time.Minute)

	for i := 0; i < 2; i++ {
		if _, err := cached.FetchDaily(context.Background(), "ACME", testRange.from, testRange.to); err == nil {
			t.Fatal("expected error")
		}
	}
	if inner.calls != 2 {
		t.Errorf("failures must pass through every time, upstream called %d times", inner.calls)
	}
}
