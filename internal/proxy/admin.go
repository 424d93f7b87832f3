package proxy

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
)

// healthResponse is the body of GET /health.
type healthResponse struct {
	Status string `json:"status"`
}

// metricsResponse is the body of GET /metrics, the agent-local admin
// surface (distinct from the orchestrator's Prometheus /metrics).
type metricsResponse struct {
	TotalRequests     uint64 `json:"total_requests"`
	ActiveConnections int64  `json:"active_connections"`
}

// AdminRouter builds the agent-local admin HTTP surface: GET /health,
// GET /metrics (reporting this Engine's live counters) and
// POST /attack/dispatch (see dispatch.go).
func (e *Engine) AdminRouter() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", e.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/metrics", e.handleAdminMetrics).Methods(http.MethodGet)
	r.HandleFunc("/attack/dispatch", e.handleDispatch).Methods(http.MethodPost)
	return r
}

func (e *Engine) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

func (e *Engine) handleAdminMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, metricsResponse{
		TotalRequests:     e.TotalRequests(),
		ActiveConnections: e.ActiveConnections(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
