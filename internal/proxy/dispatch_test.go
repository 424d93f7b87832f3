package proxy

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regaipserdar/proxxy-sub001/internal/policy"
)

func TestHandleDispatch_ExecutesRequestAndReturnsResponse(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("created"))
	}))
	defer target.Close()

	engine := newTestEngine(&policy.Policy{}, &fakeReporter{})
	router := engine.AdminRouter()

	body, _ := json.Marshal(DispatchRequest{
		Method:  http.MethodPost,
		URL:     target.URL,
		Headers: map[string]string{"X-Api-Key": "secret"},
	})

	req := httptest.NewRequest(http.MethodPost, "/attack/dispatch", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp DispatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "created", string(resp.Body))
}

func TestHandleDispatch_RejectsMalformedBody(t *testing.T) {
	engine := newTestEngine(&policy.Policy{}, &fakeReporter{})
	router := engine.AdminRouter()

	req := httptest.NewRequest(http.MethodPost, "/attack/dispatch", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
