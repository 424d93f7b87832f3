// Package control implements the orchestrator's operator-facing HTTP API:
// agent listing, attack start/stop/statistics, live policy pushes and
// intercept-decision resumption, grounded on the teacher's gateway-style
// mux.Router admin surfaces (the same shape internal/proxy's AdminRouter
// follows on the agent side).
package control

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/regaipserdar/proxxy-sub001/internal/attack"
	"github.com/regaipserdar/proxxy-sub001/internal/errors"
	"github.com/regaipserdar/proxxy-sub001/internal/intercept"
	"github.com/regaipserdar/proxxy-sub001/internal/logging"
	"github.com/regaipserdar/proxxy-sub001/internal/metrics"
	"github.com/regaipserdar/proxxy-sub001/internal/payload"
	"github.com/regaipserdar/proxxy-sub001/internal/policy"
	"github.com/regaipserdar/proxxy-sub001/internal/registry"
	"github.com/regaipserdar/proxxy-sub001/internal/transport"
)

const commandKindInterceptResume = "intercept_resume"
const commandKindPolicyUpdate = "policy_update"

// API is the orchestrator's control-plane HTTP handler.
type API struct {
	registry   *registry.Registry
	controller *intercept.Controller
	agents     attack.AgentManager
	resources  attack.ResourceManager
	results    *attack.InMemoryResultProcessor
	logger     *logging.Logger
	metrics    *metrics.Metrics

	mu     sync.Mutex
	active map[uuid.UUID]*attackRun
}

type attackRun struct {
	engine *attack.Engine
	cancel context.CancelFunc
}

// New builds an API.
func New(reg *registry.Registry, controller *intercept.Controller, agents attack.AgentManager, resources attack.ResourceManager, logger *logging.Logger, m *metrics.Metrics) *API {
	return &API{
		registry:   reg,
		controller: controller,
		agents:     agents,
		resources:  resources,
		results:    attack.NewInMemoryResultProcessor(),
		logger:     logger,
		metrics:    m,
		active:     make(map[uuid.UUID]*attackRun),
	}
}

// Router builds the mux.Router serving this API.
func (a *API) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/agents", a.handleListAgents).Methods(http.MethodGet)
	r.HandleFunc("/attacks", a.handleStartAttack).Methods(http.MethodPost)
	r.HandleFunc("/attacks/{id}", a.handleStopAttack).Methods(http.MethodDelete)
	r.HandleFunc("/attacks/{id}/statistics", a.handleAttackStatistics).Methods(http.MethodGet)
	r.HandleFunc("/policy", a.handlePushPolicy).Methods(http.MethodPost)
	r.HandleFunc("/intercepts/pending", a.handlePendingIntercepts).Methods(http.MethodGet)
	r.HandleFunc("/intercepts/{requestID}/resume", a.handleInterceptResume).Methods(http.MethodPost)
	return r
}

// AgentView is the JSON shape one registered agent is reported as.
type AgentView struct {
	AgentID    string    `json:"agent_id"`
	Name       string    `json:"name"`
	RemoteAddr string    `json:"remote_addr"`
	AdminAddr  string    `json:"admin_addr"`
	Status     string    `json:"status"`
	ConnectedAt time.Time `json:"connected_at"`
}

func statusString(s registry.Status) string {
	switch s {
	case registry.StatusOnline:
		return "online"
	case registry.StatusStale:
		return "stale"
	default:
		return "offline"
	}
}

func (a *API) handleListAgents(w http.ResponseWriter, r *http.Request) {
	records := a.registry.List()
	out := make([]AgentView, 0, len(records))
	for _, rec := range records {
		out = append(out, AgentView{
			AgentID:     rec.AgentID,
			Name:        rec.Name,
			RemoteAddr:  rec.RemoteAddr,
			AdminAddr:   rec.AgentAdminAddr,
			Status:      statusString(rec.Status()),
			ConnectedAt: rec.ConnectedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// StartAttackRequest is the body of POST /attacks. Either Requests is a
// fully-specified, pre-expanded request list, or — when it is empty and
// TemplateURL is set — the request list is expanded server-side from a
// template, payload sets and an attack mode via attack.GenerateRequests
// (Sniper/Battering Ram/Pitchfork/Cluster Bomb), per §4.5.
type StartAttackRequest struct {
	ModuleType string                 `json:"module_type"`
	Requests   []attack.AttackRequest `json:"requests,omitempty"`

	TemplateMethod  string               `json:"template_method,omitempty"`
	TemplateURL     string               `json:"template_url,omitempty"`
	TemplateHeaders map[string]string    `json:"template_headers,omitempty"`
	TemplateBody    string               `json:"template_body,omitempty"`
	PayloadSets     []TemplatePayloadSet `json:"payload_sets,omitempty"`
	Mode            string               `json:"mode,omitempty"`
	TargetAgents    []string             `json:"target_agents,omitempty"`
	Distribution    string               `json:"distribution,omitempty"`
	BatchSize       int                  `json:"batch_size,omitempty"`
}

// TemplatePayloadSet is one marker's payload values in a
// template-expansion StartAttackRequest.
type TemplatePayloadSet struct {
	MarkerID string   `json:"marker_id"`
	Values   []string `json:"values"`
}

// StartAttackResponse acknowledges an accepted attack.
type StartAttackResponse struct {
	AttackID uuid.UUID `json:"attack_id"`
}

func (a *API) handleStartAttack(w http.ResponseWriter, r *http.Request) {
	var req StartAttackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	requests := req.Requests
	if len(requests) == 0 && req.TemplateURL != "" {
		expanded, err := expandTemplateRequests(req)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		requests = expanded
	}
	if len(requests) == 0 {
		http.Error(w, "requests cannot be empty", http.StatusBadRequest)
		return
	}

	attackID := uuid.New()
	scoped := &attack.ScopedResultProcessor{AttackID: attackID, Parent: a.results}
	engine := attack.NewEngine(a.agents, scoped, attack.DefaultPayloadDistributor{}, a.resources, a.logger, a.metrics)

	ctx, cancel := context.WithCancel(context.Background())
	a.mu.Lock()
	a.active[attackID] = &attackRun{engine: engine, cancel: cancel}
	a.mu.Unlock()

	attackCtx := attack.AttackContext{AttackID: attackID, ModuleType: req.ModuleType, StartedAt: time.Now()}
	go func() {
		defer func() {
			a.mu.Lock()
			delete(a.active, attackID)
			a.mu.Unlock()
			cancel()
		}()
		if err := engine.StartAttack(ctx, attackCtx, requests); err != nil && a.logger != nil {
			a.logger.WithError(err).Error("attack execution failed")
		}
	}()

	writeJSON(w, http.StatusAccepted, StartAttackResponse{AttackID: attackID})
}

func (a *API) handleStopAttack(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid attack id", http.StatusBadRequest)
		return
	}
	a.mu.Lock()
	run, ok := a.active[id]
	a.mu.Unlock()
	if !ok {
		http.Error(w, "unknown or already-finished attack", http.StatusNotFound)
		return
	}
	run.cancel()
	run.engine.StopAttack(id)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleAttackStatistics(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid attack id", http.StatusBadRequest)
		return
	}
	stats, err := a.results.Statistics(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// PushPolicyRequest is the body of POST /policy.
type PushPolicyRequest struct {
	AgentID string     `json:"agent_id"`
	Policy  policy.DTO `json:"policy"`
}

func (a *API) handlePushPolicy(w http.ResponseWriter, r *http.Request) {
	var req PushPolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := a.registry.SendCommand(req.AgentID, registry.Command{Kind: commandKindPolicyUpdate, Payload: req.Policy}); err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// pendingInterceptsResponse is the body of GET /intercepts/pending.
type pendingInterceptsResponse struct {
	PendingCount int `json:"pending_count"`
}

func (a *API) handlePendingIntercepts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, pendingInterceptsResponse{PendingCount: a.controller.PendingCount()})
}

// InterceptResumeRequest is the body of POST /intercepts/{requestID}/resume.
type InterceptResumeRequest struct {
	AgentID         string            `json:"agent_id"`
	Action          string            `json:"action"` // "forward" | "drop" | "modify"
	ModifiedMethod  string            `json:"modified_method,omitempty"`
	ModifiedURL     string            `json:"modified_url,omitempty"`
	ModifiedHeaders map[string]string `json:"modified_headers,omitempty"`
	ModifiedBody    []byte            `json:"modified_body,omitempty"`
}

func (a *API) handleInterceptResume(w http.ResponseWriter, r *http.Request) {
	requestID := mux.Vars(r)["requestID"]
	var req InterceptResumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	resume := transport.InterceptResume{
		RequestID:       requestID,
		Action:          req.Action,
		ModifiedMethod:  req.ModifiedMethod,
		ModifiedURL:     req.ModifiedURL,
		ModifiedHeaders: req.ModifiedHeaders,
		ModifiedBody:    req.ModifiedBody,
	}
	if err := a.registry.SendCommand(req.AgentID, registry.Command{Kind: commandKindInterceptResume, Payload: resume}); err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// expandTemplateRequests turns a template + payload sets + attack mode
// into a fully-specified request list via attack.GenerateRequests — the
// four attack modes (Sniper/Battering Ram/Pitchfork/Cluster Bomb) are
// otherwise unreachable from any production path, since nothing else in
// this repo expands a template client-side before calling POST /attacks.
func expandTemplateRequests(req StartAttackRequest) ([]attack.AttackRequest, error) {
	mode, err := parseMode(req.Mode)
	if err != nil {
		return nil, err
	}

	var combined strings.Builder
	combined.WriteString(req.TemplateURL)
	combined.WriteByte('\n')
	combined.WriteString(req.TemplateBody)
	for _, v := range req.TemplateHeaders {
		combined.WriteByte('\n')
		combined.WriteString(v)
	}
	parsed, err := payload.ParseTemplate(combined.String())
	if err != nil {
		return nil, err
	}

	sets := make([]attack.PayloadSet, len(req.PayloadSets))
	for i, s := range req.PayloadSets {
		sets[i] = attack.PayloadSet{MarkerID: s.MarkerID, Values: s.Values}
	}

	valueMaps, err := attack.GenerateRequests(parsed, sets, mode)
	if err != nil {
		return nil, err
	}

	template := attack.RequestTemplate{
		Method:  req.TemplateMethod,
		URL:     req.TemplateURL,
		Headers: req.TemplateHeaders,
		Body:    req.TemplateBody,
	}
	distribution := parseDistribution(req.Distribution, req.BatchSize)

	requests := make([]attack.AttackRequest, len(valueMaps))
	for i, values := range valueMaps {
		requests[i] = attack.AttackRequest{
			ID:            uuid.New(),
			Template:      template,
			PayloadValues: values,
			TargetAgents:  req.TargetAgents,
			Distribution:  distribution,
		}
	}
	return requests, nil
}

func parseMode(mode string) (attack.Mode, error) {
	switch mode {
	case "", "sniper":
		return attack.ModeSniper, nil
	case "battering_ram":
		return attack.ModeBatteringRam, nil
	case "pitchfork":
		return attack.ModePitchfork, nil
	case "cluster_bomb":
		return attack.ModeClusterBomb, nil
	default:
		return 0, errors.InvalidAttackConfig("unknown attack mode: " + mode)
	}
}

func parseDistribution(kind string, batchSize int) attack.DistributionStrategy {
	switch kind {
	case "batch":
		return attack.DistributionStrategy{Kind: attack.DistributionBatch, BatchSize: batchSize}
	case "load_balanced":
		return attack.DistributionStrategy{Kind: attack.DistributionLoadBalanced}
	default:
		return attack.DistributionStrategy{Kind: attack.DistributionRoundRobin}
	}
}
