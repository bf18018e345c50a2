package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/raycarroll/pod-ip-watcher/pkg/logger"
	"github.com/raycarroll/pod-ip-watcher/pkg/models"
)

// PodIndex is the read-only query surface the API serves from.
type PodIndex interface {
	ByIP(ip string) (*models.PodRecord, bool)
	All(namespace string) map[string]*models.PodRecord
	Count() int
}

// Server exposes the pod index over HTTP.
type Server struct {
	index  PodIndex
	router *mux.Router
	http   *http.Server
}

// NewServer builds the HTTP server and its routes.
func NewServer(addr string, index PodIndex) *Server {
	s := &Server{index: index}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ready", s.handleReady).Methods(http.MethodGet)
	r.HandleFunc("/pod", s.handlePodByIP).Methods(http.MethodGet)
	r.HandleFunc("/pods", s.handlePods).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	s.router = r
	s.http = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the route handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until the listener fails or Shutdown is called.
func (s *Server) ListenAndServe() error {
	logger.Info("Starting API server on %s", s.http.Addr)
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests and closes the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// handleHealth reports liveness; it is healthy whenever the process is up.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.HealthStatus{
		Status:   "healthy",
		PodCount: s.index.Count(),
	})
}

// handleReady reports readiness: the index must hold at least one pod.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	count := s.index.Count()
	if count > 0 {
		writeJSON(w, http.StatusOK, models.HealthStatus{Status: "ready", PodCount: count})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, models.HealthStatus{Status: "not ready", PodCount: 0})
}

// handlePodByIP looks up a single pod record by IP.
func (s *Server) handlePodByIP(w http.ResponseWriter, r *http.Request) {
	ip := r.URL.Query().Get("ip")
	if ip == "" {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "IP parameter is required"})
		return
	}

	rec, ok := s.index.ByIP(ip)
	if !ok {
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: fmt.Sprintf("No pod found with IP %s", ip)})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handlePods returns all tracked records, optionally filtered by namespace.
func (s *Server) handlePods(w http.ResponseWriter, r *http.Request) {
	namespace := r.URL.Query().Get("namespace")
	pods := s.index.All(namespace)
	writeJSON(w, http.StatusOK, models.PodListResponse{Pods: pods, Count: len(pods)})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Failed to encode response: %v", err)
	}
}
