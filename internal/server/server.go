// Package server exposes the chart engine over HTTP and websocket
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/mrcode/loopchart/internal/chart"
	"github.com/mrcode/loopchart/internal/models"
	"github.com/mrcode/loopchart/internal/obvy"
	"github.com/mrcode/loopchart/internal/render"
)

// Version is reported by /api/version
var Version = "dev"

const maxBodyBytes = 8 << 20

// Engine is the part of the coordinator the server drives
type Engine interface {
	Snapshot() *chart.Geometry
	Subscribe() (<-chan *chart.Geometry, func())
	Update(ctx context.Context, src *models.Snapshot, streams ...chart.Stream) error
	Refresh(ctx context.Context, now time.Time) error
	Flush(ctx context.Context) error
}

// Server serves geometry, PNG renders, stream pushes and metrics
type Server struct {
	engine   Engine
	settings *models.Settings
	stats    *obvy.StatsInternal
	renderer *render.Renderer
	clock    func() time.Time
	log      *slog.Logger

	server *http.Server
}

// NewServer wires the handlers. stats and renderer are required.
func NewServer(engine Engine, settings *models.Settings, stats *obvy.StatsInternal, renderer *render.Renderer) *Server {
	return &Server{
		engine:   engine,
		settings: settings,
		stats:    stats,
		renderer: renderer,
		clock:    time.Now,
		log:      slog.Default(),
	}
}

// SetLogger replaces the request logger
func (s *Server) SetLogger(l *slog.Logger) {
	if l != nil {
		s.log = l
	}
}

// SetClock replaces the time source used by POST /api/recompute
func (s *Server) SetClock(clock func() time.Time) {
	if clock != nil {
		s.clock = clock
	}
}

// SetupMux handles all data serving:
// - Prometheus metric endpoint
// - Websocket geometry push
// - Version for programmatic use
// - Stream pushes, recompute trigger, geometry and PNG renders
func (s *Server) SetupMux() *mux.Router {
	r := mux.NewRouter()
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	r.Handle("/metrics", s.stats.Handler())
	r.HandleFunc("/ws", s.WebsocketHandler)

	api := r.PathPrefix("/api").Subrouter()
	api.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)
	api.Use(s.stats.Middleware(routeName))
	api.HandleFunc("/version", s.VersionHandler).Methods(http.MethodGet)
	api.HandleFunc("/streams", s.StreamsHandler).Methods(http.MethodGet)
	api.HandleFunc("/streams/{stream}", s.PutStreamHandler).Methods(http.MethodPut)
	api.HandleFunc("/recompute", s.RecomputeHandler).Methods(http.MethodPost)
	api.HandleFunc("/geometry", s.GeometryHandler).Methods(http.MethodGet)
	api.HandleFunc("/chart.png", s.ChartHandler).Methods(http.MethodGet)

	return r
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}

func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.SetupMux(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Starting loopchart endpoint", slog.String("addr", addr))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// VersionHandler reports the build version
func (s *Server) VersionHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": Version})
}

// StreamsHandler lists the stream names accepted by PUT /api/streams/{stream}
func (s *Server) StreamsHandler(w http.ResponseWriter, _ *http.Request) {
	names := make([]string, 0, len(chart.Streams()))
	for _, st := range chart.Streams() {
		names = append(names, st.String())
	}
	writeJSON(w, http.StatusOK, names)
}

// PutStreamHandler replaces one stream with the request body and waits for
// the recompute to publish
func (s *Server) PutStreamHandler(w http.ResponseWriter, r *http.Request) {
	stream, err := chart.ParseStream(mux.Vars(r)["stream"])
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	var snap models.Snapshot
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(chart.StreamField(&snap, stream)); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decoding %s: %w", stream, err))
		return
	}

	if err := s.engine.Update(r.Context(), &snap, stream); err != nil {
		s.engineError(w, err)
		return
	}
	if err := s.engine.Flush(r.Context()); err != nil {
		s.engineError(w, err)
		return
	}

	s.log.Debug("Stream replaced", slog.String("stream", stream.String()))
	writeJSON(w, http.StatusOK, map[string]string{"stream": stream.String()})
}

type recomputeRequest struct {
	Now *time.Time `json:"now,omitempty"`
}

// RecomputeHandler moves the clock to the requested time, or the current
// time, and rebuilds every series
func (s *Server) RecomputeHandler(w http.ResponseWriter, r *http.Request) {
	var req recomputeRequest
	if r.ContentLength != 0 {
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("decoding recompute request: %w", err))
			return
		}
	}

	now := s.clock()
	if req.Now != nil {
		now = *req.Now
	}
	if err := s.engine.Refresh(r.Context(), now); err != nil {
		s.engineError(w, err)
		return
	}
	if err := s.engine.Flush(r.Context()); err != nil {
		s.engineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]time.Time{"now": now})
}

func (s *Server) engineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chart.ErrStopped):
		writeError(w, http.StatusServiceUnavailable, err)
	case errors.Is(err, chart.ErrUnknownStream):
		writeError(w, http.StatusNotFound, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

// screenHours reads ?screenHours=N, defaulting to the configured window
func (s *Server) screenHours(r *http.Request) (int, error) {
	settings := s.settings.Clone()
	raw := r.URL.Query().Get("screenHours")
	if raw == "" {
		return settings.ScreenHours, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > settings.Hours {
		return 0, fmt.Errorf("screenHours must be between 1 and %d", settings.Hours)
	}
	return n, nil
}

func (s *Server) view(g *chart.Geometry, screenHours int) *chart.View {
	return chart.Zoom(g, screenHours, chart.AxesConfigFromSettings(s.settings))
}

// GeometryHandler returns the latest geometry zoomed to ?screenHours=N
func (s *Server) GeometryHandler(w http.ResponseWriter, r *http.Request) {
	hours, err := s.screenHours(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view(s.engine.Snapshot(), hours))
}

// ChartHandler renders the latest geometry zoomed to ?screenHours=N as PNG
func (s *Server) ChartHandler(w http.ResponseWriter, r *http.Request) {
	hours, err := s.screenHours(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := s.renderer.EncodePNG(w, s.view(s.engine.Snapshot(), hours)); err != nil {
		s.log.Error("Could not render chart", slog.Any("error", err))
	}
}
