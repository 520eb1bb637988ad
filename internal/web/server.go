// Package web serves the dashboard API: the live strip, the span table and
// toggles for mocked signals.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/scheerer/pslight/internal/color"
	"github.com/scheerer/pslight/internal/logging"
	"github.com/scheerer/pslight/internal/signal"
	"github.com/scheerer/pslight/internal/sink"
	"github.com/scheerer/pslight/internal/strip"
)

var logger = logging.New("web")

// Dimmer is the physical strip's brightness control.
type Dimmer interface {
	Brightness() float64
	SetBrightness(brightness float64) error
}

type Server struct {
	registry *strip.Registry
	frames   *sink.Broadcast
	mocks    map[string]*signal.Cell
	faults   *signal.Faults
	dimmer   Dimmer
	router   chi.Router
}

// New builds the API. mocks maps a name to the cell PUT /api/mock/{name}
// writes to. dimmer may be nil when no physical strip is configured.
func New(registry *strip.Registry, frames *sink.Broadcast, mocks map[string]*signal.Cell, faults *signal.Faults, dimmer Dimmer) *Server {
	s := &Server{
		registry: registry,
		frames:   frames,
		mocks:    mocks,
		faults:   faults,
		dimmer:   dimmer,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/api/strip", s.handleStrip)
	r.Get("/api/spans", s.handleSpans)
	r.Get("/api/mock", s.handleMocks)
	r.Put("/api/mock/{name}", s.handleSetMock)
	r.Get("/api/brightness", s.handleBrightness)
	r.Put("/api/brightness", s.handleSetBrightness)
	r.Put("/api/faults/forced", s.handleForceFault)
	r.Get("/ws", s.handleStream)
	s.router = r

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on addr until ctx is done.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.With(zap.String("address", addr)).Info("Dashboard listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logger.With(
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("requestID", middleware.GetReqID(r.Context()))).
			Debug("Request")
	})
}

type stripResponse struct {
	Leds []string `json:"leds"`
}

func (s *Server) handleStrip(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, stripResponse{Leds: hexes(s.frames.Last())})
}

// group renders ±Inf as strings, which JSON numbers cannot carry.
type group float64

func (g group) MarshalJSON() ([]byte, error) {
	switch {
	case math.IsInf(float64(g), 1):
		return []byte(`"inf"`), nil
	case math.IsInf(float64(g), -1):
		return []byte(`"-inf"`), nil
	}
	return []byte(strconv.FormatFloat(float64(g), 'g', -1, 64)), nil
}

type spanView struct {
	ID     int         `json:"id"`
	Name   string      `json:"name"`
	Color  color.Color `json:"color"`
	Group  group       `json:"group"`
	Active bool        `json:"active"`
}

type snapshotView struct {
	Group  group         `json:"group"`
	Colors []color.Color `json:"colors"`
}

type spansResponse struct {
	Spans    []spanView     `json:"spans"`
	Snapshot snapshotView   `json:"snapshot"`
	Faults   []signal.Fault `json:"faults"`
}

func (s *Server) handleSpans(w http.ResponseWriter, _ *http.Request) {
	states := s.registry.Spans()
	resp := spansResponse{Spans: make([]spanView, len(states))}
	for i, st := range states {
		resp.Spans[i] = spanView{ID: st.ID, Name: st.Name, Color: st.Color, Group: group(st.Group), Active: st.Active}
	}
	snap := s.registry.Snapshot()
	resp.Snapshot = snapshotView{Group: group(snap.Group), Colors: snap.Colors}
	resp.Faults = s.faults.List()
	if resp.Faults == nil {
		resp.Faults = []signal.Fault{}
	}
	writeJSON(w, http.StatusOK, resp)
}

type mockState struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

func (s *Server) handleMocks(w http.ResponseWriter, _ *http.Request) {
	states := make([]mockState, 0, len(s.mocks))
	for name, cell := range s.mocks {
		states = append(states, mockState{Name: name, Enabled: cell.Get()})
	}
	sort.Slice(states, func(i, j int) bool { return states[i].Name < states[j].Name })
	writeJSON(w, http.StatusOK, states)
}

func (s *Server) handleSetMock(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	cell, ok := s.mocks[name]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown mock "+strconv.Quote(name))
		return
	}

	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Enabled == nil {
		writeError(w, http.StatusBadRequest, `body must be {"enabled": bool}`)
		return
	}

	cell.Set(*body.Enabled)
	logger.With(zap.String("mock", name), zap.Bool("enabled", *body.Enabled)).Info("Mock toggled")
	writeJSON(w, http.StatusOK, mockState{Name: name, Enabled: *body.Enabled})
}

type brightnessState struct {
	Brightness *float64 `json:"brightness"`
}

func (s *Server) handleBrightness(w http.ResponseWriter, _ *http.Request) {
	if s.dimmer == nil {
		writeError(w, http.StatusNotFound, "no strip to dim")
		return
	}
	b := s.dimmer.Brightness()
	writeJSON(w, http.StatusOK, brightnessState{Brightness: &b})
}

func (s *Server) handleSetBrightness(w http.ResponseWriter, r *http.Request) {
	if s.dimmer == nil {
		writeError(w, http.StatusNotFound, "no strip to dim")
		return
	}

	var body brightnessState
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Brightness == nil {
		writeError(w, http.StatusBadRequest, `body must be {"brightness": number}`)
		return
	}
	b := *body.Brightness
	if math.IsNaN(b) || b < 0 || b > 1 {
		writeError(w, http.StatusBadRequest, "brightness must be between 0 and 1")
		return
	}

	// a failed repaint only means the strip is offline; the level still applies
	if err := s.dimmer.SetBrightness(b); err != nil {
		logger.With(zap.Error(err)).Debug("Repaint after brightness change failed")
	}
	logger.With(zap.Float64("brightness", b)).Info("Brightness changed")
	writeJSON(w, http.StatusOK, brightnessState{Brightness: &b})
}

func (s *Server) handleForceFault(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Enabled == nil {
		writeError(w, http.StatusBadRequest, `body must be {"enabled": bool}`)
		return
	}

	if *body.Enabled {
		s.faults.Set(signal.FaultForced)
	} else {
		s.faults.Clear(signal.FaultForced)
	}
	writeJSON(w, http.StatusOK, mockState{Name: string(signal.FaultForced), Enabled: *body.Enabled})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.With(zap.Error(err)).Warn("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": map[string]string{"message": message}})
}

func hexes(frame []color.Color) []string {
	out := make([]string, len(frame))
	for i, c := range frame {
		out[i] = c.Hex()
	}
	return out
}
