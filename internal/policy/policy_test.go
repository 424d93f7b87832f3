package policy

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/regaipserdar/proxxy-sub001/internal/scope"
)

func TestPolicy_ScopeTakesPrecedenceOverRules(t *testing.T) {
	p := &Policy{
		Scope: scope.New(nil, []scope.Pattern{scope.NewGlobPattern("https://excluded.example.com/*")}, scope.ActionDrop),
		InterceptionRules: []Rule{
			{ID: "r1", Enabled: true, Conditions: []Condition{{Kind: ConditionURLContains, Value: "excluded"}}, Action: Action{Kind: ActionPause}},
		},
	}

	d := p.Evaluate(RequestContext{URL: "https://excluded.example.com/x"})
	assert.True(t, d.OutOfScope)
	assert.Equal(t, scope.ActionDrop, d.OutOfScopeAction)
	assert.False(t, d.Matched)
}

func TestPolicy_FirstMatchingRuleWins(t *testing.T) {
	p := &Policy{
		InterceptionRules: []Rule{
			{ID: "r1", Enabled: true, Conditions: []Condition{{Kind: ConditionMethod, Value: "POST"}}, Action: Action{Kind: ActionPause}},
			{ID: "r2", Enabled: true, Conditions: []Condition{{Kind: ConditionMethod, Value: "POST"}}, Action: Action{Kind: ActionBlock}},
		},
	}

	d := p.Evaluate(RequestContext{URL: "https://example.com", Method: "POST"})
	assert.True(t, d.Matched)
	assert.Equal(t, "r1", d.Rule.ID)
}

func TestPolicy_AllConditionsMustMatch(t *testing.T) {
	re := regexp.MustCompile(`^application/json`)
	p := &Policy{
		InterceptionRules: []Rule{
			{
				ID:      "json-post",
				Enabled: true,
				Conditions: []Condition{
					{Kind: ConditionMethod, Value: "POST"},
					{Kind: ConditionHeaderValueRegex, HeaderName: "Content-Type", Regex: re},
				},
				Action: Action{Kind: ActionPause},
			},
		},
	}

	matched := p.Evaluate(RequestContext{
		Method:  "POST",
		Headers: map[string]string{"Content-Type": "application/json; charset=utf-8"},
	})
	assert.True(t, matched.Matched)

	unmatched := p.Evaluate(RequestContext{
		Method:  "POST",
		Headers: map[string]string{"Content-Type": "text/plain"},
	})
	assert.False(t, unmatched.Matched)
}

func TestPolicy_DisabledRuleNeverMatches(t *testing.T) {
	p := &Policy{
		InterceptionRules: []Rule{
			{ID: "r1", Enabled: false, Conditions: nil, Action: Action{Kind: ActionBlock}},
		},
	}
	d := p.Evaluate(RequestContext{URL: "https://example.com"})
	assert.False(t, d.Matched)
}

func TestPolicy_ApplyMatchReplaceBody(t *testing.T) {
	p := &Policy{
		MatchReplaceRules: []MatchReplaceRule{
			{ID: "mr1", Enabled: true, Target: "body", Find: regexp.MustCompile(`secret`), ReplaceWith: "REDACTED"},
		},
	}
	out := p.ApplyMatchReplace([]byte("the secret value"))
	assert.Equal(t, "the REDACTED value", string(out))
}

func TestPolicy_ApplyMatchReplaceHeaders(t *testing.T) {
	p := &Policy{
		MatchReplaceRules: []MatchReplaceRule{
			{ID: "mr1", Enabled: true, Target: "header", HeaderName: "X-Env", Find: regexp.MustCompile(`staging`), ReplaceWith: "production"},
		},
	}
	headers := map[string]string{"X-Env": "staging-east"}
	p.ApplyMatchReplaceHeaders(headers)
	assert.Equal(t, "production-east", headers["X-Env"])
}

func TestCondition_Port(t *testing.T) {
	c := Condition{Kind: ConditionPort, Value: "8443"}
	assert.True(t, c.matches(RequestContext{Port: 8443}))
	assert.False(t, c.matches(RequestContext{Port: 443}))
}
