package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"wavescope/internal/chart"
	"wavescope/internal/watchlist"
	"wavescope/internal/wave"
	"wavescope/pkg/model"
)

// Snapshot size used when a request does not carry canvas dimensions.
const (
	defaultCanvasWidth  = 1200
	defaultCanvasHeight = 600
)

// OpenRequest asks for a new chart session
type OpenRequest struct {
	Symbol string `json:"symbol"`
}

// OpenResponse returns the created session
type OpenResponse struct {
	ID      string `json:"id"`
	Symbol  string `json:"symbol"`
	Candles int    `json:"candles"`
}

// DragRequest pans the viewport by a pixel delta
type DragRequest struct {
	DX     float64 `json:"dx"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ZoomRequest changes the zoom level, by wheel delta or absolutely
type ZoomRequest struct {
	Delta  int     `json:"delta"`
	Zoom   int     `json:"zoom"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ClickRequest selects the candle nearest to a canvas x position
type ClickRequest struct {
	X      float64 `json:"x"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// SizeRequest carries just the canvas dimensions for parameterless operations
type SizeRequest struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ConfigRequest applies overlay and ratio settings; zero fields are left
// unchanged
type ConfigRequest struct {
	Ratio     float64 `json:"ratio"`
	MAWindow  int     `json:"ma_window"`
	VolWindow int     `json:"vol_window"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
}

// Wave3Request sets or clears the manually observed wave-3 peak
type Wave3Request struct {
	Price  float64 `json:"price"`
	On     bool    `json:"on"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// WatchRequest adds a symbol to the watchlist
type WatchRequest struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// handleSessionOpen creates a chart session and loads its initial history
func (s *Server) handleSessionOpen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// The body is optional; an empty or absent symbol falls back to the
	// configured default.
	var req OpenRequest
	json.NewDecoder(r.Body).Decode(&req)
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		symbol = s.config.Chart.Symbol
	}

	sess := chart.NewSession(uuid.NewString(), symbol)
	sess.SetHistoryPage(time.Duration(s.config.Feed.HistoryDays) * 24 * time.Hour)
	sess.SetOverlayConfig(chart.OverlayConfig{
		MAWindow:  s.config.Chart.MAWindow,
		VolWindow: s.config.Chart.VolWindow,
	})
	if ratio, err := wave.ParseRatio(s.config.Chart.Ratio); err == nil {
		sess.SetRatio(ratio)
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	now := time.Now().UTC()
	candles, err := s.fetchDaily(ctx, symbol, now.AddDate(0, 0, -s.config.Feed.HistoryDays), now)
	if err != nil {
		// The chart opens in its explicit empty state instead of failing.
		log.Printf("[WEB] initial load %s: %v", symbol, err)
	}
	sess.SetCandles(candles)
	s.register(sess)

	log.Printf("[WEB] session %s opened for %s (%d candles)", sess.ID(), symbol, len(candles))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(OpenResponse{
		ID:      sess.ID(),
		Symbol:  symbol,
		Candles: len(candles),
	})
}

// handleSessionOp routes /api/session/{id}/{op}
func (s *Server) handleSessionOp(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/session/")
	id, op, ok := strings.Cut(path, "/")
	if !ok || id == "" {
		http.Error(w, "Session id and operation required", http.StatusBadRequest)
		return
	}

	sess, found := s.session(id)
	if !found {
		http.Error(w, "Unknown session", http.StatusNotFound)
		return
	}

	if op == "view" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		width, _ := strconv.ParseFloat(r.URL.Query().Get("w"), 64)
		height, _ := strconv.ParseFloat(r.URL.Query().Get("h"), 64)
		s.writeView(w, sess, width, height)
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch op {
	case "drag":
		var req DragRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		width, _ := canvasSize(req.Width, req.Height)
		sess.Drag(req.DX, width)
		s.writeView(w, sess, req.Width, req.Height)

	case "zoom":
		var req ZoomRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		if req.Zoom > 0 {
			sess.SetZoom(req.Zoom)
		} else {
			sess.Zoom(req.Delta)
		}
		s.writeView(w, sess, req.Width, req.Height)

	case "click":
		var req ClickRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		width, _ := canvasSize(req.Width, req.Height)
		sess.Select(req.X, width)
		s.writeView(w, sess, req.Width, req.Height)

	case "confirm":
		var req SizeRequest
		json.NewDecoder(r.Body).Decode(&req)
		sess.ConfirmPivot()
		s.writeView(w, sess, req.Width, req.Height)

	case "clear":
		var req SizeRequest
		json.NewDecoder(r.Body).Decode(&req)
		sess.ClearPivots()
		s.writeView(w, sess, req.Width, req.Height)

	case "config":
		var req ConfigRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		if req.Ratio != 0 {
			ratio, err := wave.ParseRatio(req.Ratio)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			sess.SetRatio(ratio)
		}
		if req.MAWindow > 0 || req.VolWindow > 0 {
			cfg := sess.OverlayConfig()
			if req.MAWindow > 0 {
				cfg.MAWindow = req.MAWindow
			}
			if req.VolWindow > 0 {
				cfg.VolWindow = req.VolWindow
			}
			sess.SetOverlayConfig(cfg)
		}
		s.writeView(w, sess, req.Width, req.Height)

	case "wave3":
		var req Wave3Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		sess.SetManualWave3(req.Price, req.On)
		s.writeView(w, sess, req.Width, req.Height)

	default:
		http.Error(w, "Unknown operation: "+op, http.StatusNotFound)
	}
}

// writeView arms any pending history fetch, then snapshots and encodes the
// session.
func (s *Server) writeView(w http.ResponseWriter, sess *chart.Session, width, height float64) {
	s.maybeFetchHistory(sess)

	width, height = canvasSize(width, height)
	start := time.Now()
	view := sess.Snapshot(width, height)
	s.metrics.SnapshotDur.Observe(time.Since(start).Seconds())

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(view)
}

func canvasSize(width, height float64) (float64, float64) {
	if width < 100 {
		width = defaultCanvasWidth
	}
	if height < 100 {
		height = defaultCanvasHeight
	}
	return width, height
}

// handleCalc computes wave targets from manually entered prices
func (s *Server) handleCalc(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var in wave.Input
	var err error
	if in.P0, err = requiredFloat(r, "p0"); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if in.P1, err = requiredFloat(r, "p1"); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if in.P2, err = requiredFloat(r, "p2"); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if in.P3, in.HasP3, err = optionalFloat(r, "p3"); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	price, _, err := optionalFloat(r, "price")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	in.Price = price

	in.Ratio = wave.RatioGolden
	if v, set, err := optionalFloat(r, "ratio"); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	} else if set {
		in.Ratio, err = wave.ParseRatio(v)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	// Structural failures are data, not errors: the response carries
	// valid=false plus the reason.
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(wave.Compute(in))
}

func requiredFloat(r *http.Request, key string) (float64, error) {
	v, set, err := optionalFloat(r, key)
	if err != nil {
		return 0, err
	}
	if !set {
		return 0, fmt.Errorf("missing parameter %s", key)
	}
	return v, nil
}

func optionalFloat(r *http.Request, key string) (float64, bool, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, fmt.Errorf("invalid parameter %s: %q", key, raw)
	}
	return v, true, nil
}

// handleWatchlist lists (GET) or adds to (POST) the watchlist
func (s *Server) handleWatchlist(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		stocks := s.list.All()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"stocks": stocks,
			"count":  len(stocks),
		})

	case http.MethodPost:
		var req WatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		err := s.list.Add(model.Stock{Symbol: req.Symbol, Name: req.Name})
		switch {
		case errors.Is(err, watchlist.ErrDuplicate):
			http.Error(w, err.Error(), http.StatusConflict)
			return
		case err != nil:
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Printf("[WEB] watchlist add %s", strings.ToUpper(strings.TrimSpace(req.Symbol)))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"stocks": s.list.All(),
		})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleWatchlistItem removes a symbol: DELETE /api/watchlist/{symbol}
func (s *Server) handleWatchlistItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	symbol := strings.TrimPrefix(r.URL.Path, "/api/watchlist/")
	if symbol == "" {
		http.Error(w, "Symbol required", http.StatusBadRequest)
		return
	}
	if err := s.list.Remove(symbol); err != nil {
		http.Error(w, "Failed to update watchlist: "+err.Error(), http.StatusInternalServerError)
		return
	}
	log.Printf("[WEB] watchlist remove %s", strings.ToUpper(symbol))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"stocks": s.list.All(),
	})
}

// handleSymbolCandles returns a raw recent batch: GET /api/symbols/{sym}/candles
func (s *Server) handleSymbolCandles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/symbols/")
	symbol, rest, _ := strings.Cut(path, "/")
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" || rest != "candles" {
		http.Error(w, "Use /api/symbols/{symbol}/candles", http.StatusBadRequest)
		return
	}

	days := 120
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 2000 {
			http.Error(w, "days must be between 1 and 2000", http.StatusBadRequest)
			return
		}
		days = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	now := time.Now().UTC()
	candles, err := s.fetchDaily(ctx, symbol, now.AddDate(0, 0, -days), now)
	if err != nil {
		http.Error(w, "Failed to get candle data: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"symbol":  symbol,
		"count":   len(candles),
		"candles": candles,
	})
}

// handleHealth reports liveness plus a few cheap gauges
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	sessions := len(s.sessions)
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":     "ok",
		"uptime":     time.Since(s.started).Round(time.Second).String(),
		"sessions":   sessions,
		"ws_clients": s.hub.ClientCount(),
		"watchlist":  s.list.Len(),
		"feed":       s.feed.Name(),
	})
}
