// Package refresh keeps watchlist symbols current: on a cron schedule it
// pulls the newest daily bar for every tracked symbol through the feed chain
// and pushes the result into open chart sessions and the websocket stream.
package refresh

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"wavescope/internal/metrics"
	"wavescope/internal/provider"
	"wavescope/pkg/model"
)

// Broadcaster fans refreshed bars out to stream subscribers.
type Broadcaster interface {
	BroadcastQuote(q model.Quote)
	BroadcastCandle(symbol string, c model.Candle)
}

// SessionUpdater folds refreshed bars into open chart sessions.
type SessionUpdater interface {
	AppendLatest(symbol string, c model.Candle)
}

// SymbolSource lists the symbols to refresh.
type SymbolSource interface {
	Symbols() []string
}

// Refresher manages the scheduled refresh task.
type Refresher struct {
	cron        *cron.Cron
	feed        provider.Provider
	list        SymbolSource
	hub         Broadcaster
	sessions    SessionUpdater
	metrics     *metrics.Metrics
	ctx         context.Context
	marketHours bool
}

// New creates a Refresher; Register and Start arm it.
func New(ctx context.Context, feed provider.Provider, list SymbolSource, hub Broadcaster, sessions SessionUpdater, m *metrics.Metrics) *Refresher {
	return &Refresher{
		cron:     cron.New(cron.WithSeconds()),
		feed:     feed,
		list:     list,
		hub:      hub,
		sessions: sessions,
		metrics:  m,
		ctx:      ctx,
	}
}

// Register schedules the refresh task under a cron expression (with seconds
// field).
func (r *Refresher) Register(spec string) error {
	if _, err := r.cron.AddFunc(spec, r.run); err != nil {
		return fmt.Errorf("register refresh task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (r *Refresher) Start() {
	r.cron.Start()
	log.Printf("[REFRESH] scheduler started")
}

// Stop stops the cron scheduler.
func (r *Refresher) Stop() {
	r.cron.Stop()
	log.Printf("[REFRESH] scheduler stopped")
}

// LimitToMarketHours makes scheduled runs no-ops while the US regular
// session is closed. Manual runs are never gated.
func (r *Refresher) LimitToMarketHours() {
	r.marketHours = true
}

// RunNow executes one refresh pass immediately.
func (r *Refresher) RunNow() {
	r.refreshAll()
}

func (r *Refresher) run() {
	if r.marketHours && !marketOpen(time.Now()) {
		log.Printf("[REFRESH] market closed, skipping run")
		return
	}
	r.refreshAll()
}

func (r *Refresher) refreshAll() {
	symbols := r.list.Symbols()
	if len(symbols) == 0 {
		return
	}
	r.metrics.RefreshRuns.Inc()

	failed := 0
	for _, symbol := range symbols {
		if err := r.refreshSymbol(symbol); err != nil {
			log.Printf("[REFRESH] %s: %v", symbol, err)
			failed++
		}
	}
	if failed > 0 {
		r.metrics.RefreshErrors.Inc()
	}
	log.Printf("[REFRESH] refreshed %d/%d symbols", len(symbols)-failed, len(symbols))
}

// refreshSymbol fetches the last few days of one symbol and publishes its
// newest bar. A short window keeps the upstream cost of each tick small.
func (r *Refresher) refreshSymbol(symbol string) error {
	ctx, cancel := context.WithTimeout(r.ctx, 20*time.Second)
	defer cancel()

	to := time.Now().UTC()
	start := time.Now()
	batch, err := r.feed.FetchDaily(ctx, symbol, to.AddDate(0, 0, -7), to)
	outcome := metrics.OutcomeOK
	switch {
	case err != nil:
		outcome = metrics.OutcomeError
	case len(batch) == 0:
		outcome = metrics.OutcomeEmpty
	}
	r.metrics.ObserveFetch(outcome, time.Since(start).Seconds())
	if err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}

	last := batch[len(batch)-1]
	r.sessions.AppendLatest(symbol, last)

	var prev model.Candle
	if len(batch) > 1 {
		prev = batch[len(batch)-2]
	}
	r.hub.BroadcastQuote(model.NewQuote(symbol, last, prev))
	r.hub.BroadcastCandle(symbol, last)
	return nil
}
