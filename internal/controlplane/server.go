// Package controlplane implements the loopback-only HTTP control API:
// proxy lifecycle, configuration, the capture store, and an SSE event
// stream, all routed with go-chi/chi.
package controlplane

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/go-hclog"

	"github.com/kanti-proxy/kanti/internal/capture"
	"github.com/kanti-proxy/kanti/internal/config"
	"github.com/kanti-proxy/kanti/internal/eventbus"
	"github.com/kanti-proxy/kanti/internal/metrics"
)

// ProxyController is the lifecycle surface the control plane drives. A
// positive Start port overrides the configured port for this start.
type ProxyController interface {
	Start(port int) error
	Stop() error
	Status() config.ProxyStatus
}

// ConfigController is the configuration surface the control plane drives.
type ConfigController interface {
	GetConfig() config.ProxyConfig
	UpdateConfig(partial map[string]interface{}) (config.ProxyConfig, error)
}

// RequestsController is the capture-store surface the control plane drives.
type RequestsController interface {
	Requests() []capture.RequestDetails
	Clear()
}

// EventSubscriber is the event-bus surface the SSE route drives.
type EventSubscriber interface {
	Subscribe() (string, <-chan eventbus.Batch)
	Unsubscribe(id string)
}

// Server is the chi-routed control-plane HTTP handler.
type Server struct {
	logger   hclog.Logger
	proxy    ProxyController
	cfg      ConfigController
	requests RequestsController
	events   EventSubscriber
	router   chi.Router
}

func NewServer(logger hclog.Logger, proxy ProxyController, cfg ConfigController, requests RequestsController, events EventSubscriber) *Server {
	s := &Server{
		logger:   logger.Named("controlplane"),
		proxy:    proxy,
		cfg:      cfg,
		requests: requests,
		events:   events,
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/metrics", metrics.Handler().ServeHTTP)

	r.Route("/api/proxy", func(r chi.Router) {
		r.Post("/start", s.handleStart)
		r.Post("/stop", s.handleStop)
		r.Get("/status", s.handleStatus)
		r.Get("/config", s.handleGetConfig)
		r.Post("/config", s.handleUpdateConfig)
		r.Get("/requests", s.handleRequests)
		r.Post("/clear", s.handleClear)
	})

	r.Get("/api/events", s.handleEvents)

	return r
}

// corsMiddleware applies a permissive CORS policy. This API is loopback-only
// and never reachable from outside the host, so a permissive policy does not
// widen the actual attack surface.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Port int `json:"port"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.proxy.Start(body.Port); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.proxy.Status())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.proxy.Stop(); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.proxy.Status())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.proxy.Status())
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.GetConfig())
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var partial map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&partial); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	updated, err := s.cfg.UpdateConfig(partial)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleRequests(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.requests.Requests())
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.requests.Clear()
	writeJSON(w, http.StatusOK, nil)
}
