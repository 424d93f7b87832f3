package proxy

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regaipserdar/proxxy-sub001/internal/intercept"
	"github.com/regaipserdar/proxxy-sub001/internal/policy"
	"github.com/regaipserdar/proxxy-sub001/internal/scope"
)

type fakeReporter struct {
	events []TrafficEvent
	pauses []string
}

func (f *fakeReporter) SendTrafficEvent(event TrafficEvent) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeReporter) SendInterceptPause(requestID string) error {
	f.pauses = append(f.pauses, requestID)
	return nil
}

func newTestEngine(pol *policy.Policy, reporter Reporter) *Engine {
	return NewEngine(Config{
		AgentID:    "agent-1",
		Policy:     pol,
		Controller: intercept.New(),
		Reporter:   reporter,
	})
}

func proxyRequest(t *testing.T, upstream *httptest.Server, method, path string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, upstream.URL+path, nil)
	req.RequestURI = ""
	return req
}

func TestEngine_ForwardsInScopeRequestAndReportsEvents(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("hello"))
	}))
	defer upstream.Close()

	reporter := &fakeReporter{}
	engine := newTestEngine(&policy.Policy{}, reporter)

	req := proxyRequest(t, upstream, http.MethodGet, "/hello")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello", rec.Body.String())
	assert.Equal(t, uint64(1), engine.TotalRequests())
	require.Len(t, reporter.events, 2)
	assert.Equal(t, reporter.events[0].RequestID, reporter.events[1].RequestID)
	assert.Equal(t, http.StatusOK, reporter.events[1].StatusCode)
}

func TestEngine_OutOfScopeDropNeverReachesUpstream(t *testing.T) {
	hit := false
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = true
	}))
	defer upstream.Close()

	matcher := scope.New(nil, []scope.Pattern{scope.NewGlobPattern("*/blocked*")}, scope.ActionDrop)
	pol := &policy.Policy{Scope: matcher}
	engine := newTestEngine(pol, &fakeReporter{})

	req := proxyRequest(t, upstream, http.MethodGet, "/blocked")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.False(t, hit)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestEngine_BlockRuleReturns403WithReasonAndSkipsUpstream(t *testing.T) {
	hit := false
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = true
	}))
	defer upstream.Close()

	pol := &policy.Policy{
		InterceptionRules: []policy.Rule{
			{
				ID:      "block-admin-post",
				Enabled: true,
				Conditions: []policy.Condition{
					{Kind: policy.ConditionURLContains, Value: "/admin"},
					{Kind: policy.ConditionMethod, Value: http.MethodPost},
				},
				Action: policy.Action{Kind: policy.ActionBlock, BlockReason: "nope"},
			},
		},
	}
	engine := newTestEngine(pol, &fakeReporter{})

	req := proxyRequest(t, upstream, http.MethodPost, "/admin/users")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.False(t, hit)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "nope")
}

func TestEngine_PauseRuleAwaitsControllerDecision(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	controller := intercept.New()
	reporter := &fakeReporter{}
	pol := &policy.Policy{
		InterceptionRules: []policy.Rule{
			{
				ID:      "pause-all",
				Enabled: true,
				Conditions: []policy.Condition{
					{Kind: policy.ConditionURLContains, Value: "/"},
				},
				Action: policy.Action{Kind: policy.ActionPause},
			},
		},
	}
	engine := NewEngine(Config{AgentID: "agent-1", Policy: pol, Controller: controller, Reporter: reporter})

	done := make(chan *httptest.ResponseRecorder, 1)
	req := proxyRequest(t, upstream, http.MethodGet, "/hello")
	go func() {
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)
		done <- rec
	}()

	require.Eventually(t, func() bool { return controller.PendingCount() == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return len(reporter.pauses) == 1 }, time.Second, 5*time.Millisecond)

	requestID := reporter.pauses[0]
	require.True(t, controller.ResumeRequest(requestID, intercept.Command{Kind: intercept.CommandForward}))

	select {
	case rec := <-done:
		assert.Equal(t, http.StatusOK, rec.Code)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for paused request to resume")
	}
}

func TestEngine_MatchReplaceRewritesResponseBody(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("secret-token-123"))
	}))
	defer upstream.Close()

	pol := &policy.Policy{
		MatchReplaceRules: []policy.MatchReplaceRule{
			{ID: "redact", Enabled: true, Target: "body", Find: regexp.MustCompile(`secret-token-\d+`), ReplaceWith: "REDACTED"},
		},
	}
	engine := newTestEngine(pol, &fakeReporter{})

	req := proxyRequest(t, upstream, http.MethodGet, "/")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, "REDACTED", rec.Body.String())
}

func TestAdminRouter_HealthAndMetrics(t *testing.T) {
	engine := newTestEngine(&policy.Policy{}, &fakeReporter{})
	router := engine.AdminRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "total_requests")
	assert.Contains(t, rec.Body.String(), "active_connections")
}
