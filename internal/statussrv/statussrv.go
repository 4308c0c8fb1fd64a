// Package statussrv exposes the daemon's health, status, and Prometheus
// endpoints over HTTP, grounded on the teacher's internal/api.APIServer
// (gorilla/mux router, one handler per JSON endpoint).
package statussrv

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/samettonyali/gross/internal/registry"
)

// Server exposes /metrics, /status, and /healthz.
type Server struct {
	Registry  *registry.Registry
	StartedAt time.Time
	logger    *log.Logger
}

// New builds a status server over reg.
func New(reg *registry.Registry, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "[status] ", log.LstdFlags)
	}
	return &Server{Registry: reg, StartedAt: time.Now(), logger: logger}
}

// Router builds the mux.Router serving this status server's endpoints.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/status", s.handleStatus).Methods("GET")
	r.HandleFunc("/healthz", s.handleHealthz).Methods("GET")
	return r
}

// ListenAndServe starts the status server on addr, blocking until it
// fails or is shut down.
func (s *Server) ListenAndServe(addr string) error {
	s.logger.Printf("status server listening on %s", addr)
	return http.ListenAndServe(addr, s.Router())
}

type poolStatus struct {
	Name       string `json:"name"`
	Definitive bool   `json:"definitive"`
	Threads    int    `json:"threads"`
	Idle       int    `json:"idle"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	pools := make([]poolStatus, 0, s.Registry.Len())
	for _, e := range s.Registry.Entries() {
		stats := e.Pool.Stats()
		pools = append(pools, poolStatus{
			Name:       e.Name,
			Definitive: e.Definitive,
			Threads:    stats.Threads,
			Idle:       stats.Idle,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"uptime_seconds": time.Since(s.StartedAt).Seconds(),
		"pools":          pools,
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintln(w, "ok")
}
