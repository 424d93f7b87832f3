package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcher_ExcludeWinsOverInclude(t *testing.T) {
	m := New(
		[]Pattern{NewGlobPattern("https://example.com/*")},
		[]Pattern{NewGlobPattern("https://example.com/admin/*")},
		ActionDrop,
	)

	assert.True(t, m.InScope("https://example.com/home"))
	assert.False(t, m.InScope("https://example.com/admin/users"))
}

func TestMatcher_EmptyIncludeMeansEverythingInScope(t *testing.T) {
	m := New(nil, []Pattern{NewGlobPattern("https://blocked.example.com/*")}, ActionPass)

	assert.True(t, m.InScope("https://anything.example.com/path"))
	assert.False(t, m.InScope("https://blocked.example.com/x"))
}

func TestMatcher_NonEmptyIncludeExcludesUnlisted(t *testing.T) {
	m := New([]Pattern{NewGlobPattern("https://example.com/*")}, nil, ActionLogOnly)

	assert.True(t, m.InScope("https://example.com/a"))
	assert.False(t, m.InScope("https://other.example.com/a"))
}

func TestMatcher_RegexPattern(t *testing.T) {
	p, err := NewRegexPattern(`^https://.*\.internal\.example\.com/.*$`)
	require.NoError(t, err)

	m := New([]Pattern{p}, nil, ActionDrop)
	assert.True(t, m.InScope("https://api.internal.example.com/v1"))
	assert.False(t, m.InScope("https://public.example.com/v1"))
}

func TestGlobContains(t *testing.T) {
	assert.True(t, globContains("https://example.com/*", "https://example.com/foo/bar"))
	assert.True(t, globContains("*/admin/*", "https://example.com/admin/users"))
	assert.False(t, globContains("https://example.com/*", "https://other.com/foo"))
	assert.True(t, globContains("exact", "exact"))
	assert.False(t, globContains("exact", "not-exact"))
}
