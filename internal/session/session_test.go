package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_StartsInValidatingStatus(t *testing.T) {
	s := New("Test Session", nil)
	assert.Equal(t, "Test Session", s.Name)
	assert.Equal(t, StatusValidating, s.Status)
	assert.Equal(t, uint64(0), s.Metadata.UsageCount)
}

func TestIsExpired(t *testing.T) {
	s := New("Test Session", nil)
	past := time.Now().Add(-time.Hour)
	s.ExpiresAt = &past
	assert.True(t, s.IsExpired())
}

func TestHTTPHeaders_SynthesizesCookieHeader(t *testing.T) {
	s := New("Test Session", nil)
	s.Headers["Authorization"] = "Bearer token123"
	s.Cookies = append(s.Cookies, Cookie{Name: "sessionid", Value: "abc123"})

	headers := s.HTTPHeaders()
	assert.Equal(t, "Bearer token123", headers["Authorization"])
	assert.Equal(t, "sessionid=abc123", headers["Cookie"])
}

func TestHTTPHeaders_DoesNotOverwriteExistingCookieHeader(t *testing.T) {
	s := New("Test Session", nil)
	s.Headers["Cookie"] = "explicit=value"
	s.Cookies = append(s.Cookies, Cookie{Name: "sessionid", Value: "abc123"})

	headers := s.HTTPHeaders()
	assert.Equal(t, "explicit=value", headers["Cookie"])
}

func TestApply_MergesWithOtherWinningOnCollision(t *testing.T) {
	base := New("base", nil)
	base.Headers["X-A"] = "base-a"
	base.Headers["X-B"] = "base-b"

	other := New("other", nil)
	other.Headers["X-B"] = "other-b"
	other.Headers["X-C"] = "other-c"

	merged := Apply(base, other)
	assert.Equal(t, "base-a", merged.Headers["X-A"])
	assert.Equal(t, "other-b", merged.Headers["X-B"])
	assert.Equal(t, "other-c", merged.Headers["X-C"])
}

func TestValidate_ExpiredSession(t *testing.T) {
	s := New("Test Session", nil)
	past := time.Now().Add(-time.Minute)
	s.ExpiresAt = &past

	err := s.Validate()
	require.Error(t, err)
}

func TestValidate_InvalidSession(t *testing.T) {
	s := New("Test Session", nil)
	s.MarkInvalid()

	err := s.Validate()
	require.Error(t, err)
}

func TestIncrementUsage(t *testing.T) {
	s := New("Test Session", nil)
	s.IncrementUsage()
	s.IncrementUsage()
	assert.Equal(t, uint64(2), s.Metadata.UsageCount)
}
