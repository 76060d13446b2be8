package main

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"time"

	"github.com/alim08/coin_ticker/pkg/logger"
	"github.com/alim08/coin_ticker/pkg/models"
	"github.com/alim08/coin_ticker/pkg/ticker"
	"github.com/alim08/coin_ticker/pkg/validation"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// renderWait bounds how long a request waits for another process's fetch.
const renderWait = 5 * time.Second

// Response represents a standard API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

// Meta describes the snapshot set a response was served from
type Meta struct {
	Total     int       `json:"total"`
	FetchedAt time.Time `json:"fetched_at"`
	Stale     bool      `json:"stale"`
	Duration  int64     `json:"duration_ms"`
}

// RenderRequest is the widget attribute pair of /api/v1/render.
type RenderRequest struct {
	Coin string `validate:"required,ticker"`
	Show string
}

// RenderResult is the payload of /api/v1/render.
type RenderResult struct {
	Coin      string     `json:"coin"`
	Show      string     `json:"show"`
	Text      string     `json:"text"`
	Outcome   string     `json:"outcome"`
	FetchedAt *time.Time `json:"fetched_at,omitempty"`
}

// writeJSON writes a JSON response with proper headers
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Log.Error("JSON encoding error", zap.Error(err))
	}
}

// writeError writes an error response
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, Response{
		Success: false,
		Error:   message,
	})
}

// healthHandler reports whether data has been loaded and Redis is reachable
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if s.redis != nil {
		if err := s.redis.Ping(ctx); err != nil {
			s.writeError(w, http.StatusServiceUnavailable, "Redis connection failed")
			return
		}
	}

	_, fetchedAt, ok := s.provider.Snapshot()
	data := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"uptime_s":  int64(time.Since(s.started).Seconds()),
		"has_data":  ok,
	}
	if ok {
		data["fetched_at"] = fetchedAt
	}
	s.writeJSON(w, http.StatusOK, Response{Success: true, Data: data})
}

// attach creates a widget for one request and runs its fetch decision. A
// widget that found another fetch in flight waits for its broadcast.
func (s *Server) attach(ctx context.Context, coin, show string) *ticker.Widget {
	wdg := ticker.NewWidget(s.provider, coin, show)
	if err := wdg.Activate(ctx); err != nil {
		return wdg
	}
	if wdg.State().Snapshots != nil {
		// Text already reflects the set; drop its pending update
		select {
		case <-wdg.Updates():
		default:
		}
		return wdg
	}

	wait, cancel := context.WithTimeout(ctx, renderWait)
	defer cancel()
	select {
	case <-wdg.Updates():
	case <-wait.Done():
	}
	return wdg
}

// widgetHandler renders the embeddable HTML element
func (s *Server) widgetHandler(w http.ResponseWriter, r *http.Request) {
	coin := r.URL.Query().Get("coin")
	show := r.URL.Query().Get("show")

	wdg := s.attach(r.Context(), coin, show)
	defer wdg.Detach()
	st := wdg.State()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `<span class="coin-ticker" data-coin="%s" data-show="%s">%s</span>`,
		html.EscapeString(st.Coin), html.EscapeString(st.Show), html.EscapeString(wdg.Text()))
}

// renderHandler returns the widget text as JSON
func (s *Server) renderHandler(w http.ResponseWriter, r *http.Request) {
	req := RenderRequest{
		Coin: validation.NormalizeSymbol(r.URL.Query().Get("coin")),
		Show: validation.SanitizeString(r.URL.Query().Get("show")),
	}
	if errs := validation.ValidateStruct(req); errs != nil {
		s.writeError(w, http.StatusBadRequest, errs.Error())
		return
	}

	wdg := s.attach(r.Context(), req.Coin, req.Show)
	defer wdg.Detach()

	text, outcome := wdg.Render()
	result := RenderResult{
		Coin:    req.Coin,
		Show:    req.Show,
		Text:    text,
		Outcome: string(outcome),
	}
	if st := wdg.State(); st.Snapshots != nil {
		result.FetchedAt = &st.LastFetch
	}
	s.writeJSON(w, http.StatusOK, Response{Success: true, Data: result})
}

// current returns a fresh set, or the last good one when the fetch fails.
func (s *Server) current(ctx context.Context) (*models.SnapshotSet, bool, error) {
	set, err := s.provider.GetOrFetch(ctx)
	if err == nil {
		return set, false, nil
	}
	if cached, _, ok := s.provider.Snapshot(); ok {
		logger.Log.Warn("serving stale snapshots", zap.Error(err))
		return cached, true, nil
	}
	return nil, false, err
}

// snapshotsHandler returns every tracked coin
func (s *Server) snapshotsHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	set, stale, err := s.current(r.Context())
	if err != nil {
		logger.Log.Error("failed to get snapshots", zap.Error(err))
		s.writeError(w, http.StatusServiceUnavailable, "Market data unavailable")
		return
	}

	s.writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    set.Coins,
		Meta: &Meta{
			Total:     set.Len(),
			FetchedAt: set.FetchedAt,
			Stale:     stale,
			Duration:  time.Since(start).Milliseconds(),
		},
	})
}

// coinHandler returns one coin by symbol
func (s *Server) coinHandler(w http.ResponseWriter, r *http.Request) {
	symbol := validation.NormalizeSymbol(mux.Vars(r)["symbol"])
	if !validation.IsTicker(symbol) {
		s.writeError(w, http.StatusBadRequest, "Symbol must be a valid ticker symbol")
		return
	}

	set, stale, err := s.current(r.Context())
	if err != nil {
		logger.Log.Error("failed to get snapshots", zap.Error(err), zap.String("symbol", symbol))
		s.writeError(w, http.StatusServiceUnavailable, "Market data unavailable")
		return
	}

	coin, ok := set.Lookup(symbol)
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("No data for coin: %s", symbol))
		return
	}
	s.writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    coin,
		Meta:    &Meta{Total: 1, FetchedAt: set.FetchedAt, Stale: stale},
	})
}
