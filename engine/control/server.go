// Package control exposes the viewer over HTTP: model listing, loads, scene and camera selection, rendering
// parameters, status and a websocket status stream.
package control

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-viewer/engine/catalog"
	"github.com/Carmen-Shannon/oxy-viewer/engine/config"
	"github.com/Carmen-Shannon/oxy-viewer/engine/loader"
	"github.com/Carmen-Shannon/oxy-viewer/engine/scene"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
)

const maxBodySize = 1 << 16

var (
	errNoScene      = errors.New("control server has no scene")
	errUnknownModel = errors.New("unknown model")
	errEmptyLoad    = errors.New("load request needs a model or a path")
)

// ModelEntry is one row of the model listing.
type ModelEntry struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// LoadRequest is the body of POST /api/load. Model is a catalog display name; Path is used when Model is empty.
type LoadRequest struct {
	Model string `json:"model,omitempty"`
	Path  string `json:"path,omitempty"`
}

// StatusResponse is the scene status plus the last measured frame rate.
type StatusResponse struct {
	scene.Status
	FPS float64 `json:"fps"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server is the HTTP control surface.
type Server interface {
	// Handler returns the routed handler wrapped with recovery and access logging.
	Handler() http.Handler

	// Hub returns the websocket status hub. Wire Hub().Publish into scene.WithStatusObserver.
	Hub() *Hub

	// SetModels replaces the model catalog served by GET /api/models and used to resolve load requests.
	SetModels(models map[string]string)

	// ListenAndServe serves on the configured address until ctx is cancelled, then shuts down gracefully.
	//
	// Parameters:
	//   - ctx: stops the server when done
	//
	// Returns:
	//   - error: a listen error; nil after a clean shutdown
	ListenAndServe(ctx context.Context) error

	// Close cancels loads started through the API and disconnects websocket clients.
	Close()
}

type server struct {
	scene    scene.Scene
	hub      *Hub
	logger   *slog.Logger
	address  string
	basePath string
	fps      func() float64

	models *modelSet

	// loads started over HTTP outlive the request; they are bound to this context instead.
	ctx    context.Context
	cancel context.CancelFunc

	router *mux.Router
}

var _ Server = &server{}

// NewServer creates a Server with the provided options.
//
// Parameters:
//   - options: functional options (scene, hub, models, address, ...)
//
// Returns:
//   - Server: the configured server, not yet listening
func NewServer(options ...ServerBuilderOption) Server {
	s := &server{
		logger:  slog.Default(),
		address: "127.0.0.1:8089",
		fps:     func() float64 { return 0 },
		models:  newModelSet(nil),
	}
	for _, opt := range options {
		opt(s)
	}
	if s.hub == nil {
		s.hub = NewHub(s.logger)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.router = s.routes()
	return s
}

func (s *server) routes() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/models", s.handleModels).Methods(http.MethodGet)
	api.HandleFunc("/load", s.handleLoad).Methods(http.MethodPost)
	api.HandleFunc("/scene/{direction:next|prev}", s.handleScene).Methods(http.MethodPost)
	api.HandleFunc("/camera/{index}", s.handleCamera).Methods(http.MethodPut)
	api.HandleFunc("/params", s.handleGetParams).Methods(http.MethodGet)
	api.HandleFunc("/params", s.handlePutParams).Methods(http.MethodPut)
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.hub.ServeWS).Methods(http.MethodGet)
	return r
}

func (s *server) Handler() http.Handler {
	h := handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{s.logger}),
		handlers.PrintRecoveryStack(true),
	)(s.router)
	return handlers.LoggingHandler(logWriter{s.logger}, h)
}

func (s *server) Hub() *Hub {
	return s.hub
}

func (s *server) SetModels(models map[string]string) {
	s.models.set(models)
}

func (s *server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("[control] shutdown failed", "error", err)
		}
	}()

	s.logger.Info("[control] starting server", "address", s.address)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrapf(err, "control server on %s", s.address)
	}
	<-done
	return nil
}

func (s *server) Close() {
	s.cancel()
	s.hub.Close()
}

func (s *server) handleModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.models.entries())
}

func (s *server) handleLoad(w http.ResponseWriter, r *http.Request) {
	if s.scene == nil {
		writeError(w, http.StatusServiceUnavailable, errNoScene)
		return
	}
	var req LoadRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var modelPath string
	switch {
	case req.Model != "":
		p, ok := s.models.lookup(req.Model)
		if !ok {
			writeError(w, http.StatusNotFound, errors.Wrapf(errUnknownModel, "%q", req.Model))
			return
		}
		modelPath = p
	case req.Path != "":
		modelPath = req.Path
	default:
		writeError(w, http.StatusBadRequest, errEmptyLoad)
		return
	}

	ref := loader.PathReference(modelPath, s.basePath)
	s.logger.Info("[control] load requested", "model", ref.Name())
	result := s.scene.LoadAsync(s.ctx, ref)
	go func() {
		if err := <-result; err != nil {
			s.logger.Warn("[control] load failed", "model", ref.Name(), "error", err)
		}
	}()

	st := s.scene.Status()
	st.Model = ref.Name()
	writeJSON(w, http.StatusAccepted, st)
}

func (s *server) handleScene(w http.ResponseWriter, r *http.Request) {
	if s.scene == nil {
		writeError(w, http.StatusServiceUnavailable, errNoScene)
		return
	}
	delta := 1
	if mux.Vars(r)["direction"] == "prev" {
		delta = -1
	}
	s.scene.NavigateScene(delta)
	writeJSON(w, http.StatusOK, s.scene.Status())
}

func (s *server) handleCamera(w http.ResponseWriter, r *http.Request) {
	if s.scene == nil {
		writeError(w, http.StatusServiceUnavailable, errNoScene)
		return
	}
	raw := mux.Vars(r)["index"]
	index := -1
	if raw != "user" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.Errorf("camera index %q is not an integer", raw))
			return
		}
		index = v
	}
	s.scene.SetCameraIndex(index)
	writeJSON(w, http.StatusOK, s.scene.Status())
}

func (s *server) handleGetParams(w http.ResponseWriter, r *http.Request) {
	p := s.parameters()
	if p == nil {
		writeError(w, http.StatusServiceUnavailable, errNoScene)
		return
	}
	writeJSON(w, http.StatusOK, p.Get())
}

// handlePutParams applies a partial update: fields missing from the body keep their values.
// Environment changes take effect on the next load.
func (s *server) handlePutParams(w http.ResponseWriter, r *http.Request) {
	p := s.parameters()
	if p == nil {
		writeError(w, http.StatusServiceUnavailable, errNoScene)
		return
	}
	var patch struct {
		Environment *string     `json:"environment"`
		UseHDR      *bool       `json:"useHdr"`
		ClearColor  *[4]float32 `json:"clearColor"`
	}
	if err := readJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if patch.Environment != nil && strings.TrimSpace(*patch.Environment) == "" {
		writeError(w, http.StatusBadRequest, errors.New("environment must not be empty"))
		return
	}
	updated := p.Update(func(v *config.Params) {
		if patch.Environment != nil {
			v.Environment = *patch.Environment
		}
		if patch.UseHDR != nil {
			v.UseHDR = *patch.UseHDR
		}
		if patch.ClearColor != nil {
			v.ClearColor = *patch.ClearColor
		}
	})
	s.logger.Info("[control] parameters updated", "environment", updated.Environment, "use_hdr", updated.UseHDR)
	writeJSON(w, http.StatusOK, updated)
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.scene == nil {
		writeError(w, http.StatusServiceUnavailable, errNoScene)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: s.scene.Status(), FPS: s.fps()})
}

func (s *server) parameters() *config.Parameters {
	if s.scene == nil {
		return nil
	}
	return s.scene.Parameters()
}

func readJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(err, "invalid request body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(data)
}

func writeError(w http.ResponseWriter, code int, err error) {
	data, _ := json.Marshal(errorResponse{Error: err.Error()})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(data)
}

// logWriter adapts slog to the io.Writer handlers.LoggingHandler writes access lines to.
type logWriter struct {
	logger *slog.Logger
}

func (l logWriter) Write(p []byte) (int, error) {
	l.logger.Info("[control] " + strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

type recoveryLogger struct {
	logger *slog.Logger
}

func (l recoveryLogger) Println(v ...any) {
	l.logger.Error("[control] handler panic", "panic", strings.TrimRight(fmt.Sprintln(v...), "\n"))
}

// modelSet is the catalog guarded for concurrent handler access.
type modelSet struct {
	mu     *sync.RWMutex
	models map[string]string
}

func newModelSet(models map[string]string) *modelSet {
	m := &modelSet{mu: &sync.RWMutex{}}
	m.set(models)
	return m
}

func (m *modelSet) set(models map[string]string) {
	cp := make(map[string]string, len(models))
	for k, v := range models {
		cp[k] = v
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.models = cp
}

func (m *modelSet) lookup(name string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.models[name]
	return p, ok
}

func (m *modelSet) entries() []ModelEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := catalog.Names(m.models)
	out := make([]ModelEntry, 0, len(names))
	for _, n := range names {
		out = append(out, ModelEntry{Name: n, Path: m.models[n]})
	}
	return out
}
