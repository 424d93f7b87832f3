package attack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regaipserdar/proxxy-sub001/internal/payload"
)

func mustParse(t *testing.T, tmpl string) *payload.ParsedTemplate {
	t.Helper()
	p, err := payload.ParseTemplate(tmpl)
	require.NoError(t, err)
	return p
}

func TestGenerateRequests_Sniper(t *testing.T) {
	parsed := mustParse(t, "user=§user§&pass=§pass§")
	sets := []PayloadSet{
		{MarkerID: "user", Values: []string{"admin", "root"}},
		{MarkerID: "pass", Values: []string{"123", "456"}},
	}
	reqs, err := GenerateRequests(parsed, sets, ModeSniper)
	require.NoError(t, err)
	// 2 values for "user" + 2 values for "pass" = 4 total requests
	assert.Len(t, reqs, 4)
	assert.Equal(t, "admin", reqs[0]["user"])
	assert.Equal(t, "§pass§", reqs[0]["pass"]) // other marker left as its literal marker
}

func TestGenerateRequests_BatteringRam_RequiresEqualLength(t *testing.T) {
	parsed := mustParse(t, "a=§a§&b=§b§")
	sets := []PayloadSet{
		{MarkerID: "a", Values: []string{"1", "2"}},
		{MarkerID: "b", Values: []string{"1"}},
	}
	_, err := GenerateRequests(parsed, sets, ModeBatteringRam)
	assert.Error(t, err)
}

func TestGenerateRequests_BatteringRam_LockstepSameValueAcrossMarkers(t *testing.T) {
	parsed := mustParse(t, "a=§a§&b=§b§")
	sets := []PayloadSet{
		{MarkerID: "a", Values: []string{"x", "y"}},
		{MarkerID: "b", Values: []string{"x", "y"}},
	}
	reqs, err := GenerateRequests(parsed, sets, ModeBatteringRam)
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, reqs[0]["a"], reqs[0]["b"])
	assert.Equal(t, reqs[1]["a"], reqs[1]["b"])
}

func TestGenerateRequests_Pitchfork_StopsAtShortestSet(t *testing.T) {
	parsed := mustParse(t, "a=§a§&b=§b§")
	sets := []PayloadSet{
		{MarkerID: "a", Values: []string{"1", "2", "3"}},
		{MarkerID: "b", Values: []string{"x", "y"}},
	}
	reqs, err := GenerateRequests(parsed, sets, ModePitchfork)
	require.NoError(t, err)
	assert.Len(t, reqs, 2)
}

func TestGenerateRequests_ClusterBomb_FullCartesianProduct(t *testing.T) {
	parsed := mustParse(t, "a=§a§&b=§b§")
	sets := []PayloadSet{
		{MarkerID: "a", Values: []string{"1", "2"}},
		{MarkerID: "b", Values: []string{"x", "y", "z"}},
	}
	reqs, err := GenerateRequests(parsed, sets, ModeClusterBomb)
	require.NoError(t, err)
	assert.Len(t, reqs, 6)

	seen := make(map[string]bool)
	for _, r := range reqs {
		seen[r["a"]+r["b"]] = true
	}
	assert.Len(t, seen, 6)
}

func TestGenerateRequests_MissingPayloadSet(t *testing.T) {
	parsed := mustParse(t, "a=§a§")
	_, err := GenerateRequests(parsed, nil, ModeSniper)
	assert.Error(t, err)
}
