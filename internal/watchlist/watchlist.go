package watchlist

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"wavescope/pkg/model"
)

// Store persists the tracked symbol list. The contract is deliberately
// blunt: load once at startup, rewrite the whole list on every change. No
// schema versioning, no migration.
type Store interface {
	Load() ([]model.Stock, error)
	Save(stocks []model.Stock) error
	Close() error
}

// ErrDuplicate reports an Add of a symbol already on the list.
var ErrDuplicate = fmt.Errorf("symbol already on the watchlist")

// Watchlist keeps the tracked symbols in memory and mirrors every change to
// its backing store in full.
type Watchlist struct {
	mu     sync.RWMutex
	store  Store
	stocks []model.Stock
}

// Open loads the list from a store.
func Open(store Store) (*Watchlist, error) {
	stocks, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("loading watchlist: %w", err)
	}
	return &Watchlist{store: store, stocks: stocks}, nil
}

// All returns the tracked stocks in list order.
func (w *Watchlist) All() []model.Stock {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]model.Stock, len(w.stocks))
	copy(out, w.stocks)
	return out
}

// Symbols returns just the ticker strings, in list order.
func (w *Watchlist) Symbols() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]string, len(w.stocks))
	for i, s := range w.stocks {
		out[i] = s.Symbol
	}
	return out
}

// Len returns the number of tracked symbols.
func (w *Watchlist) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.stocks)
}

// Contains reports whether a symbol is tracked.
func (w *Watchlist) Contains(symbol string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.indexOf(symbol) >= 0
}

// Add appends a stock and rewrites the store. Symbols are upper-cased and
// must be unique.
func (w *Watchlist) Add(stock model.Stock) error {
	stock.Symbol = normalize(stock.Symbol)
	if stock.Symbol == "" {
		return fmt.Errorf("empty symbol")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.indexOf(stock.Symbol) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicate, stock.Symbol)
	}
	w.stocks = append(w.stocks, stock)
	return w.store.Save(w.stocks)
}

// Remove drops a symbol and rewrites the store. Removing an unknown symbol
// is a no-op.
func (w *Watchlist) Remove(symbol string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	i := w.indexOf(normalize(symbol))
	if i < 0 {
		return nil
	}
	w.stocks = append(w.stocks[:i], w.stocks[i+1:]...)
	return w.store.Save(w.stocks)
}

// Sort orders the list alphabetically by symbol and rewrites the store.
func (w *Watchlist) Sort() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	sort.Slice(w.stocks, func(i, j int) bool {
		return w.stocks[i].Symbol < w.stocks[j].Symbol
	})
	return w.store.Save(w.stocks)
}

func (w *Watchlist) indexOf(symbol string) int {
	for i, s := range w.stocks {
		if s.Symbol == symbol {
			return i
		}
	}
	return -1
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
