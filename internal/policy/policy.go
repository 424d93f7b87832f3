// Package policy implements the Traffic Policy (C3): scope, ordered
// interception rules and match/replace rules evaluated against each
// observed transaction, grounded on original_source/proxy-core/src/policy.rs.
package policy

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/regaipserdar/proxxy-sub001/internal/scope"
)

// RequestContext is the subset of an observed transaction that rule
// conditions are evaluated against.
type RequestContext struct {
	URL     string
	Method  string
	Headers map[string]string // case-preserving
	Body    []byte
	Port    int
}

// ConditionKind enumerates the condition types a rule can AND together.
type ConditionKind int

const (
	ConditionURLContains ConditionKind = iota
	ConditionURLRegex
	ConditionMethod
	ConditionHasHeader
	ConditionHeaderValueRegex
	ConditionBodyRegex
	ConditionPort
)

// Condition is one clause of a rule; all conditions in a rule must match.
type Condition struct {
	Kind       ConditionKind
	Value      string         // literal to match (URLContains, Method, HasHeader name, Port as string)
	HeaderName string         // for HeaderValueRegex
	Regex      *regexp.Regexp // for URLRegex, HeaderValueRegex, BodyRegex
}

func (c Condition) matches(ctx RequestContext) bool {
	switch c.Kind {
	case ConditionURLContains:
		return strings.Contains(ctx.URL, c.Value)
	case ConditionURLRegex:
		return c.Regex != nil && c.Regex.MatchString(ctx.URL)
	case ConditionMethod:
		return strings.EqualFold(ctx.Method, c.Value)
	case ConditionHasHeader:
		_, ok := lookupHeader(ctx.Headers, c.Value)
		return ok
	case ConditionHeaderValueRegex:
		v, ok := lookupHeader(ctx.Headers, c.HeaderName)
		return ok && c.Regex != nil && c.Regex.MatchString(v)
	case ConditionBodyRegex:
		return c.Regex != nil && c.Regex.Match(ctx.Body)
	case ConditionPort:
		port, err := strconv.Atoi(c.Value)
		return err == nil && port == ctx.Port
	default:
		return false
	}
}

func lookupHeader(headers map[string]string, name string) (string, bool) {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

// ActionKind enumerates the one action a matching rule applies.
type ActionKind int

const (
	ActionPause ActionKind = iota
	ActionBlock
	ActionDrop
	ActionDelay
	ActionInjectHeader
	ActionModifyBody
)

// Action describes the controller outcome for a matched rule.
type Action struct {
	Kind ActionKind

	BlockReason string // ActionBlock
	DelayMS     int    // ActionDelay

	HeaderName  string // ActionInjectHeader
	HeaderValue string // ActionInjectHeader

	FindRegex   *regexp.Regexp // ActionModifyBody
	ReplaceWith string         // ActionModifyBody
}

// Rule is an ordered, enabled/disabled interception rule: every condition
// must match for the action to apply.
type Rule struct {
	ID         string
	Enabled    bool
	Conditions []Condition
	Action     Action
}

func (r Rule) matches(ctx RequestContext) bool {
	if !r.Enabled {
		return false
	}
	for _, c := range r.Conditions {
		if !c.matches(ctx) {
			return false
		}
	}
	return true
}

// MatchReplaceRule rewrites a request/response header or body via regex,
// independent of the Pause/Block/Drop rule list.
type MatchReplaceRule struct {
	ID          string
	Enabled     bool
	Target      string // "header" or "body"
	HeaderName  string // when Target == "header"
	Find        *regexp.Regexp
	ReplaceWith string
}

// Policy bundles scope, ordered interception rules and match/replace
// rules. Scope takes precedence over rules (testable property 12).
type Policy struct {
	Scope             *scope.Matcher
	InterceptionRules []Rule
	MatchReplaceRules []MatchReplaceRule
}

// Decision is the outcome of evaluating a Policy against a request: either
// scope decided it (OutOfScope==true) or the first matching rule's action
// applies (Action set), or neither matched and the request passes through.
type Decision struct {
	OutOfScope       bool
	OutOfScopeAction scope.OutOfScopeAction
	Matched          bool
	Rule             Rule
}

// Evaluate runs scope first, then the ordered rule list, returning the
// first applicable decision. If nothing matches, the request passes
// through untouched.
func (p *Policy) Evaluate(ctx RequestContext) Decision {
	if p.Scope != nil && !p.Scope.InScope(ctx.URL) {
		return Decision{OutOfScope: true, OutOfScopeAction: p.Scope.OutOfScopeAction}
	}
	for _, rule := range p.InterceptionRules {
		if rule.matches(ctx) {
			return Decision{Matched: true, Rule: rule}
		}
	}
	return Decision{}
}

// ApplyMatchReplace applies every enabled match/replace rule targeting
// "body" to body, in declared order, and returns the rewritten bytes.
func (p *Policy) ApplyMatchReplace(body []byte) []byte {
	out := body
	for _, r := range p.MatchReplaceRules {
		if !r.Enabled || r.Target != "body" || r.Find == nil {
			continue
		}
		out = r.Find.ReplaceAll(out, []byte(r.ReplaceWith))
	}
	return out
}

// ApplyMatchReplaceHeaders applies every enabled match/replace rule
// targeting "header" to headers, overwriting in place.
func (p *Policy) ApplyMatchReplaceHeaders(headers map[string]string) {
	for _, r := range p.MatchReplaceRules {
		if !r.Enabled || r.Target != "header" || r.Find == nil {
			continue
		}
		if v, ok := lookupHeader(headers, r.HeaderName); ok {
			headers[r.HeaderName] = r.Find.ReplaceAllString(v, r.ReplaceWith)
		}
	}
}
