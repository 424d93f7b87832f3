package proxy

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"
)

// DispatchRequest is a fully-specified request the orchestrator's attack
// engine asks this agent to execute from its own network vantage point.
type DispatchRequest struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    []byte            `json:"body,omitempty"`
}

// DispatchResponse is the observed result of executing a DispatchRequest.
type DispatchResponse struct {
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       []byte            `json:"body,omitempty"`
}

var dispatchClient = &http.Client{Timeout: 30 * time.Second}

// handleDispatch executes an attack engine request directly (bypassing
// the MITM transaction pipeline, since this traffic originates from the
// agent itself rather than from an intercepted client connection) and
// returns the raw response.
func (e *Engine) handleDispatch(w http.ResponseWriter, r *http.Request) {
	var dispatchReq DispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&dispatchReq); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	outReq, err := http.NewRequestWithContext(r.Context(), dispatchReq.Method, dispatchReq.URL, bytes.NewReader(dispatchReq.Body))
	if err != nil {
		http.Error(w, "invalid target request", http.StatusBadRequest)
		return
	}
	for k, v := range dispatchReq.Headers {
		outReq.Header.Set(k, v)
	}

	resp, err := dispatchClient.Do(outReq)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, DispatchResponse{
		StatusCode: resp.StatusCode,
		Headers:    flattenHeader(resp.Header),
		Body:       body,
	})
}
