package web

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"sync"
	"time"

	"wavescope/internal/chart"
	"wavescope/internal/config"
	"wavescope/internal/metrics"
	"wavescope/internal/provider"
	"wavescope/internal/watchlist"
	"wavescope/pkg/model"
)

//go:embed static
var staticFiles embed.FS

// Server represents the web server
type Server struct {
	config  *config.Config
	feed    provider.Provider
	list    *watchlist.Watchlist
	metrics *metrics.Metrics
	hub     *Hub

	mu       sync.RWMutex
	sessions map[string]*chart.Session

	started time.Time
	srv     *http.Server
}

// NewServer creates a new web server
func NewServer(cfg *config.Config, feed provider.Provider, list *watchlist.Watchlist, m *metrics.Metrics) *Server {
	return &Server{
		config:   cfg,
		feed:     feed,
		list:     list,
		metrics:  m,
		hub:      NewHub(m),
		sessions: make(map[string]*chart.Session),
		started:  time.Now(),
	}
}

// Hub returns the websocket hub for broadcast wiring.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start starts the web server on the specified port
func (s *Server) Start(port int) error {
	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("[WEB] wavescope listening at http://localhost:%d", port)

	return s.srv.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv != nil {
		return s.srv.Shutdown(ctx)
	}
	return nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// API routes
	mux.HandleFunc("/api/session", s.handleSessionOpen)
	mux.HandleFunc("/api/session/", s.handleSessionOp)
	mux.HandleFunc("/api/calc", s.handleCalc)
	mux.HandleFunc("/api/watchlist", s.handleWatchlist)
	mux.HandleFunc("/api/watchlist/", s.handleWatchlistItem)
	mux.HandleFunc("/api/symbols/", s.handleSymbolCandles)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", s.metrics.Handler())
	mux.HandleFunc("/ws", s.hub.HandleWS)

	// Static files
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		// The static tree is compiled in; a bad sub-path cannot happen at runtime.
		panic(fmt.Sprintf("static file system: %v", err))
	}
	mux.Handle("/", http.FileServer(http.FS(staticFS)))

	return corsMiddleware(mux)
}

// session looks up a chart session by id.
func (s *Server) session(id string) (*chart.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// register stores a new session and updates the gauge.
func (s *Server) register(sess *chart.Session) {
	s.mu.Lock()
	s.sessions[sess.ID()] = sess
	n := len(s.sessions)
	s.mu.Unlock()
	s.metrics.SessionsOpen.Set(float64(n))
}

// sessionsFor returns every open session charting the given symbol.
func (s *Server) sessionsFor(symbol string) []*chart.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*chart.Session
	for _, sess := range s.sessions {
		if sess.Symbol() == symbol {
			out = append(out, sess)
		}
	}
	return out
}

// AppendLatest folds a refreshed bar into every session charting the symbol.
// The refresh scheduler calls this on its cron ticks.
func (s *Server) AppendLatest(symbol string, c model.Candle) {
	for _, sess := range s.sessionsFor(symbol) {
		sess.AppendLatest(c)
	}
}

// fetchDaily runs one feed round trip with metrics attached.
func (s *Server) fetchDaily(ctx context.Context, symbol string, from, to time.Time) ([]model.Candle, error) {
	start := time.Now()
	batch, err := s.feed.FetchDaily(ctx, symbol, from, to)
	outcome := metrics.OutcomeOK
	switch {
	case err != nil:
		outcome = metrics.OutcomeError
	case len(batch) == 0:
		outcome = metrics.OutcomeEmpty
	}
	s.metrics.ObserveFetch(outcome, time.Since(start).Seconds())
	return batch, err
}

// maybeFetchHistory arms and runs one older-history page fetch when the
// session signals for it. The session itself guarantees a single outstanding
// request; a failure re-arms the signal.
func (s *Server) maybeFetchHistory(sess *chart.Session) {
	from, to, ok := sess.BeginHistoryRequest()
	if !ok {
		return
	}
	s.metrics.HistoryPages.Inc()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		batch, err := s.fetchDaily(ctx, sess.Symbol(), from, to)
		if err != nil {
			log.Printf("[WEB] history page %s: %v", sess.Symbol(), err)
		}
		sess.CompleteHistoryRequest(batch, err)
	}()
}

// corsMiddleware adds CORS headers for local development
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
