package attack

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/regaipserdar/proxxy-sub001/internal/errors"
	"github.com/regaipserdar/proxxy-sub001/internal/payload"
	"github.com/regaipserdar/proxxy-sub001/internal/proxy"
	"github.com/regaipserdar/proxxy-sub001/internal/registry"
)

// HTTPAgentManager is the orchestrator-side AgentManager: it selects a
// candidate by consulting the shared Registry's online status and
// dispatches by POSTing to the target agent's own admin HTTP surface
// (POST /attack/dispatch), since the agent — not the orchestrator — holds
// the network vantage point the attack is meant to run from.
type HTTPAgentManager struct {
	registry *registry.Registry
	client   *http.Client
}

// NewHTTPAgentManager builds an HTTPAgentManager. timeout bounds each
// dispatch round-trip; zero or negative falls back to 30s.
func NewHTTPAgentManager(reg *registry.Registry, timeout time.Duration) *HTTPAgentManager {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPAgentManager{registry: reg, client: &http.Client{Timeout: timeout}}
}

// SelectAgent returns the first candidate the Registry reports online.
func (m *HTTPAgentManager) SelectAgent(candidates []string) (string, error) {
	for _, id := range candidates {
		if m.registry.IsAvailable(id) {
			return id, nil
		}
	}
	if len(candidates) == 0 {
		return "", errors.AgentUnavailable("no target agents specified")
	}
	return "", errors.AgentUnavailable(candidates[0])
}

// IsAgentAvailable delegates to the Registry's online-status predicate.
func (m *HTTPAgentManager) IsAgentAvailable(agentID string) bool {
	return m.registry.IsAvailable(agentID)
}

// Dispatch substitutes req's payload values into its template and POSTs
// the resulting request to agentID's advertised admin address.
func (m *HTTPAgentManager) Dispatch(ctx context.Context, agentID string, req AttackRequest) (*HTTPResponseData, error) {
	rec, ok := m.registry.Get(agentID)
	if !ok || rec.AgentAdminAddr == "" {
		return nil, errors.AgentUnavailable(agentID)
	}

	headers := make(map[string]string, len(req.Template.Headers))
	for k, v := range req.Template.Headers {
		headers[k] = substituteField(v, req.PayloadValues)
	}

	dispatchReq := proxy.DispatchRequest{
		Method:  req.Template.Method,
		URL:     substituteField(req.Template.URL, req.PayloadValues),
		Headers: headers,
		Body:    []byte(substituteField(req.Template.Body, req.PayloadValues)),
	}

	body, err := json.Marshal(dispatchReq)
	if err != nil {
		return nil, errors.InvalidAttackConfig("marshal dispatch request: " + err.Error())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://"+rec.AgentAdminAddr+"/attack/dispatch", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Network("build dispatch request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(httpReq)
	if err != nil {
		return nil, errors.AgentUnavailable(agentID)
	}
	defer resp.Body.Close()

	var dispatchResp proxy.DispatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&dispatchResp); err != nil {
		return nil, errors.Network("decode dispatch response", err)
	}

	respHeaders := make(HTTPHeaders, len(dispatchResp.Headers))
	for k, v := range dispatchResp.Headers {
		respHeaders[k] = v
	}
	return &HTTPResponseData{StatusCode: dispatchResp.StatusCode, Headers: respHeaders, Body: dispatchResp.Body}, nil
}

// substituteField injects values into raw's own §marker§ occurrences,
// parsed independently of whatever combined template produced
// RequestTemplate.Parsed — URL, each header value and the body all carry
// their markers locally, so each is parsed and injected on its own.
func substituteField(raw string, values map[string]string) string {
	parsed, err := payload.ParseTemplate(raw)
	if err != nil || len(parsed.Markers) == 0 {
		return raw
	}
	out, err := payload.InjectPayloads(parsed, values)
	if err != nil {
		return raw
	}
	return out
}
