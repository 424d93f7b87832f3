// Package scope implements the Scope Matcher (C2): deciding per-URL
// whether traffic is in scope, grounded on
// original_source/orchestrator/src/scope.rs.
package scope

import (
	"path/filepath"
	"regexp"
	"strings"
)

// OutOfScopeAction is the behavior applied to traffic that falls outside
// scope, consulted before any interception rule.
type OutOfScopeAction int

const (
	ActionLogOnly OutOfScopeAction = iota
	ActionDrop
	ActionPass
)

// Pattern is either a glob (matched with filepath.Match semantics against
// the URL) or a compiled regex.
type Pattern struct {
	Raw   string
	Regex *regexp.Regexp // non-nil if this pattern is a regex
}

// NewGlobPattern builds a glob-matched Pattern.
func NewGlobPattern(glob string) Pattern {
	return Pattern{Raw: glob}
}

// NewRegexPattern compiles a regex-matched Pattern.
func NewRegexPattern(expr string) (Pattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return Pattern{}, err
	}
	return Pattern{Raw: expr, Regex: re}, nil
}

func (p Pattern) matches(url string) bool {
	if p.Regex != nil {
		return p.Regex.MatchString(url)
	}
	ok, err := filepath.Match(p.Raw, url)
	if err == nil && ok {
		return true
	}
	// Glob patterns over URLs commonly use "*" as "anything", which
	// filepath.Match treats as "no path separator" — fall back to a
	// substring match on the literal prefix/suffix around the wildcard.
	return globContains(p.Raw, url)
}

func globContains(glob, url string) bool {
	if !strings.Contains(glob, "*") {
		return glob == url
	}
	parts := strings.Split(glob, "*")
	idx := 0
	for i, part := range parts {
		if part == "" {
			continue
		}
		pos := strings.Index(url[idx:], part)
		if pos < 0 {
			return false
		}
		if i == 0 && pos != 0 {
			return false
		}
		idx += pos + len(part)
	}
	if last := parts[len(parts)-1]; last != "" && !strings.HasSuffix(url, last) {
		return false
	}
	return true
}

// Matcher holds include/exclude pattern lists and the action to take on
// out-of-scope traffic. Exclude always wins over include (testable
// property 12).
type Matcher struct {
	Include          []Pattern
	Exclude          []Pattern
	OutOfScopeAction OutOfScopeAction
}

// New creates a Matcher. An empty Include list means "everything is
// in scope unless excluded".
func New(include, exclude []Pattern, action OutOfScopeAction) *Matcher {
	return &Matcher{Include: include, Exclude: exclude, OutOfScopeAction: action}
}

// InScope reports whether url is in scope under this matcher.
func (m *Matcher) InScope(url string) bool {
	for _, p := range m.Exclude {
		if p.matches(url) {
			return false
		}
	}
	if len(m.Include) == 0 {
		return true
	}
	for _, p := range m.Include {
		if p.matches(url) {
			return true
		}
	}
	return false
}
