package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/turbofish-org/orga/pkg/driver"
	"github.com/turbofish-org/orga/pkg/metrics"
)

// HealthServer provides HTTP health check endpoints. The /health, /ready,
// /metrics surface carries over unchanged from its original cluster-manager
// form, polling a *driver.Driver instead for readiness.
type HealthServer struct {
	drv *driver.Driver
	mux *http.ServeMux
}

// NewHealthServer creates a new health check HTTP server.
func NewHealthServer(drv *driver.Driver) *HealthServer {
	mux := http.NewServeMux()
	hs := &HealthServer{
		drv: drv,
		mux: mux,
	}

	mux.HandleFunc("/health", hs.healthHandler)
	mux.HandleFunc("/ready", hs.readyHandler)
	mux.Handle("/metrics", metrics.Handler())

	return hs
}

// Start starts the health check HTTP server.
func (hs *HealthServer) Start(addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      hs.mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Height    uint64    `json:"height"`
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
	Message   string            `json:"message,omitempty"`
}

// healthHandler implements the /health endpoint: a liveness check that
// returns 200 if the process is alive.
func (hs *HealthServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
	}
	if hs.drv != nil {
		response.Height = hs.drv.Height()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

// readyHandler implements the /ready endpoint: whether the node has a
// raft leader and can serve Query/CheckTx.
func (hs *HealthServer) readyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	checks := make(map[string]string)
	ready := true
	var message string

	if hs.drv != nil {
		if hs.drv.IsLeader() {
			checks["raft"] = "leader"
		} else {
			stats := hs.drv.RaftStats()
			if leader := stats["leader"]; leader != "" {
				checks["raft"] = fmt.Sprintf("follower (leader: %s)", leader)
			} else {
				checks["raft"] = "no leader elected"
				ready = false
				message = "waiting for leader election"
			}
		}
		checks["engine"] = fmt.Sprintf("height=%d cache=%d", hs.drv.Height(), hs.drv.CacheLen())
	} else {
		checks["raft"] = "not initialized"
		ready = false
		message = "driver not initialized"
	}

	status := "ready"
	statusCode := http.StatusOK
	if !ready {
		status = "not ready"
		statusCode = http.StatusServiceUnavailable
	}

	response := ReadyResponse{
		Status:    status,
		Timestamp: time.Now(),
		Checks:    checks,
		Message:   message,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

// GetHandler returns the HTTP handler for embedding in other servers.
func (hs *HealthServer) GetHandler() http.Handler {
	return hs.mux
}
