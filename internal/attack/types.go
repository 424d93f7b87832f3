// Package attack implements the attack modes, payload distribution and
// execution engine (C10), grounded on
// original_source/attack-engine/src/execution.rs and lib.rs.
package attack

import (
	"time"

	"github.com/google/uuid"

	"github.com/regaipserdar/proxxy-sub001/internal/payload"
)

// Mode is one of the four attack request-generation strategies.
type Mode int

const (
	ModeSniper Mode = iota
	ModeBatteringRam
	ModePitchfork
	ModeClusterBomb
)

// HTTPHeaders is a simple case-preserving header bag used by attack
// requests and results.
type HTTPHeaders map[string]string

// RequestTemplate is the parsed template plus the marker metadata needed
// to inject one payload combination into it.
type RequestTemplate struct {
	Method  string
	URL     string
	Headers HTTPHeaders
	Body    string
	Parsed  *payload.ParsedTemplate
}

// AttackRequest is one fully-specified request ready for dispatch: the
// template and the payload values chosen for each of its markers.
type AttackRequest struct {
	ID            uuid.UUID
	Template      RequestTemplate
	PayloadValues map[string]string // marker ID -> chosen value
	TargetAgents  []string
	Distribution  DistributionStrategy
	SessionID     string
}

// HTTPResponseData is the observed result of dispatching an AttackRequest.
type HTTPResponseData struct {
	StatusCode int
	Headers    HTTPHeaders
	Body       []byte
}

// AttackResultData pairs a dispatched request with its outcome.
type AttackResultData struct {
	RequestID  uuid.UUID
	AgentID    string
	Request    RequestTemplate
	Response   *HTTPResponseData
	DurationMS int64
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// AttackContext identifies one running attack and its scope.
type AttackContext struct {
	AttackID   uuid.UUID
	ModuleType string
	StartedAt  time.Time
}

// AttackStatistics aggregates the outcomes observed for one attack.
// Every counter is monotone except via an explicit Reset.
type AttackStatistics struct {
	TotalRequests      int
	CompletedRequests  int
	FailedRequests     int
	BytesReceived      int64
	TotalDurationMS    int64
	StatusCodeCounts   map[int]int
}

// Reset zeroes every counter.
func (s *AttackStatistics) Reset() {
	s.TotalRequests = 0
	s.CompletedRequests = 0
	s.FailedRequests = 0
	s.BytesReceived = 0
	s.TotalDurationMS = 0
	s.StatusCodeCounts = nil
}

// Record folds one result into the statistics.
func (s *AttackStatistics) Record(result AttackResultData) {
	s.TotalRequests++
	if s.StatusCodeCounts == nil {
		s.StatusCodeCounts = make(map[int]int)
	}
	if result.Err != nil {
		s.FailedRequests++
		return
	}
	s.CompletedRequests++
	s.TotalDurationMS += result.DurationMS
	if result.Response != nil {
		s.StatusCodeCounts[result.Response.StatusCode]++
		s.BytesReceived += int64(len(result.Response.Body))
	}
}
