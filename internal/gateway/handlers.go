// Package gateway serves charts to browsers: REST endpoints for periods,
// preferences and PNG export, and a WebSocket endpoint where every
// connection drives its own chart orchestrator.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"chartdesk/internal/chart"
	"chartdesk/internal/indicator"
	"chartdesk/internal/metrics"
	"chartdesk/internal/model"
	"chartdesk/internal/prefs"
)

// maxExportSide bounds the pixel size of a REST export.
const maxExportSide = 4096

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// ChartSettings sizes the charts the gateway creates.
type ChartSettings struct {
	Width            int
	Height           int
	PaneHeight       int
	FullscreenWidth  int
	FullscreenHeight int
	LayoutRetryDelay time.Duration
}

// Deps are the collaborators shared by every chart the gateway creates.
type Deps struct {
	Fetcher  model.CandleFetcher
	Engine   *indicator.Engine
	Prefs    *prefs.Service        // nil disables /api/prefs and persistence
	Observer chart.Observer        // optional
	Health   *metrics.HealthStatus // optional
	Chart    ChartSettings
	Log      *slog.Logger
	Now      func() time.Time
}

// Server owns the hub and the HTTP routes.
type Server struct {
	deps    Deps
	hub     *Hub
	latency *LatencyTracker
	start   time.Time
}

// NewServer creates a gateway server.
func NewServer(deps Deps) *Server {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Server{
		deps:    deps,
		hub:     NewHub(),
		latency: NewLatencyTracker(1000),
		start:   deps.Now(),
	}
}

// Hub returns the client registry.
func (s *Server) Hub() *Hub { return s.hub }

// Shutdown disconnects every WebSocket client.
func (s *Server) Shutdown() {
	s.hub.CloseAll()
}

func (s *Server) newOrchestrator(box chart.Container) *chart.Orchestrator {
	return chart.New(chart.Options{
		Fetcher:          s.deps.Fetcher,
		Container:        box,
		Engine:           s.deps.Engine,
		Prefs:            s.deps.Prefs,
		Observer:         s.deps.Observer,
		Log:              s.deps.Log,
		LayoutRetryDelay: s.deps.Chart.LayoutRetryDelay,
		PaneHeight:       s.deps.Chart.PaneHeight,
		FullscreenWidth:  s.deps.Chart.FullscreenWidth,
		FullscreenHeight: s.deps.Chart.FullscreenHeight,
		Now:              s.deps.Now,
	})
}

func (s *Server) recordLoad(d time.Duration, err error) {
	if err == nil {
		s.latency.Record(float64(d.Microseconds()) / 1000)
	}
	if s.deps.Health != nil {
		s.deps.Health.RecordLoad(err)
	}
}

// Router registers every route.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/ws", s.serveWS)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(corsMiddleware)
	api.HandleFunc("/timeframes", s.handleTimeframes).Methods(http.MethodGet)
	api.HandleFunc("/periods", s.handlePeriods).Methods(http.MethodGet)
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/charts/{symbol}/export.png", s.handleExport).Methods(http.MethodGet)
	api.HandleFunc("/prefs/{symbol}", s.handleGetPrefs).Methods(http.MethodGet)
	api.HandleFunc("/prefs/{symbol}", s.handlePutPrefs).Methods(http.MethodPut)
	api.PathPrefix("/").Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[gateway] ws upgrade error: %v", err)
		return
	}
	conn.EnableWriteCompression(true)
	c := newClient(s, conn)
	c.start()

	if sym := r.URL.Query().Get("symbol"); sym != "" {
		c.handle(ClientMsg{Type: MsgMount, Symbol: sym})
	}
}

func (s *Server) handleTimeframes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.Timeframes)
}

func (s *Server) handlePeriods(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("timeframe")
	tf, err := model.ParseTimeframe(raw)
	if raw == "" {
		tf, err = model.TF1Y, nil
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, PeriodsOut{Timeframe: tf, Periods: indicator.AvailablePeriods(tf)})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := CollectStatus(s.start, s.deps.Now(), s.hub.ClientCount(), s.latency)
	if s.deps.Health != nil {
		st.Health, _ = s.deps.Health.Status()
	}
	writeJSON(w, http.StatusOK, st)
}

// handleExport renders a chart headlessly with the symbol's stored
// preferences, optionally overridden by timeframe, type, from, to, width
// and height query parameters.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	symbol := strings.ToUpper(mux.Vars(r)["symbol"])
	q := r.URL.Query()

	p := s.preferencesFor(ctx, symbol)
	if raw := q.Get("timeframe"); raw != "" {
		tf, err := model.ParseTimeframe(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		p.Timeframe = tf
	}
	if raw := q.Get("type"); raw != "" {
		ct, err := model.ParseChartType(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		p.ChartType = ct
	}
	req := chart.Request{Symbol: symbol, Timeframe: p.Timeframe, ChartType: p.ChartType}
	if p.Timeframe == model.TFCustom {
		from, errFrom := strconv.ParseInt(q.Get("from"), 10, 64)
		to, errTo := strconv.ParseInt(q.Get("to"), 10, 64)
		if errFrom != nil || errTo != nil {
			writeError(w, http.StatusBadRequest, errors.New("from and to (unix seconds) are required for CUSTOM"))
			return
		}
		req.From, req.To = time.Unix(from, 0), time.Unix(to, 0)
	}

	width := queryInt(q.Get("width"), s.deps.Chart.Width)
	height := queryInt(q.Get("height"), s.deps.Chart.Height)
	if width <= 0 || height <= 0 || width > maxExportSide || height > maxExportSide {
		writeError(w, http.StatusBadRequest, fmt.Errorf("width and height must be in 1..%d", maxExportSide))
		return
	}

	o := s.newOrchestrator(chart.NewFixedContainer(width, height))
	defer o.Dispose()
	if err := o.UsePreferences(p); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	start := time.Now()
	err := o.Load(ctx, req)
	s.recordLoad(time.Since(start), err)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	img, err := o.Export()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", img.Name))
	w.Header().Set("Content-Length", strconv.Itoa(len(img.PNG)))
	w.WriteHeader(http.StatusOK)
	w.Write(img.PNG)
}

func (s *Server) handleGetPrefs(w http.ResponseWriter, r *http.Request) {
	if s.deps.Prefs == nil {
		writeError(w, http.StatusNotFound, errors.New("preferences are disabled"))
		return
	}
	p := s.deps.Prefs.Load(r.Context(), mux.Vars(r)["symbol"])
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handlePutPrefs(w http.ResponseWriter, r *http.Request) {
	if s.deps.Prefs == nil {
		writeError(w, http.StatusNotFound, errors.New("preferences are disabled"))
		return
	}
	var p model.ChartPreferences
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
		return
	}
	p.Symbol = mux.Vars(r)["symbol"]
	if err := s.deps.Prefs.Save(r.Context(), &p); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	log.Printf("[gateway] preferences updated: %s", p.Symbol)
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) preferencesFor(ctx context.Context, symbol string) model.ChartPreferences {
	if s.deps.Prefs != nil {
		return s.deps.Prefs.Load(ctx, symbol)
	}
	return prefs.BuiltinDefaults(symbol)
}

// statusFor maps load errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrDataUnavailable):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInvalidRange), errors.Is(err, model.ErrUnknownTimeframe), errors.Is(err, model.ErrLayoutUnready):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func queryInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return n
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
