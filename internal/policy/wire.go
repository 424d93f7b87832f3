package policy

import (
	"regexp"

	"github.com/regaipserdar/proxxy-sub001/internal/errors"
	"github.com/regaipserdar/proxxy-sub001/internal/scope"
)

// DTO is a JSON-marshalable form of Policy: *regexp.Regexp fields become
// plain pattern strings, compiled back by FromDTO. Scope patterns travel
// as their raw strings and are rebuilt as glob patterns. This is what travels
// over the orchestrator->agent command channel as a "policy_update"
// command's payload.
type DTO struct {
	ScopeInclude      []string           `json:"scope_include"`
	ScopeExclude      []string           `json:"scope_exclude"`
	ScopeOutOfAction  int                `json:"scope_out_of_action"`
	InterceptionRules []RuleDTO          `json:"interception_rules"`
	MatchReplaceRules []MatchReplaceDTO  `json:"match_replace_rules"`
}

type ConditionDTO struct {
	Kind       int    `json:"kind"`
	Value      string `json:"value,omitempty"`
	HeaderName string `json:"header_name,omitempty"`
	Regex      string `json:"regex,omitempty"`
}

type ActionDTO struct {
	Kind        int    `json:"kind"`
	BlockReason string `json:"block_reason,omitempty"`
	DelayMS     int    `json:"delay_ms,omitempty"`
	HeaderName  string `json:"header_name,omitempty"`
	HeaderValue string `json:"header_value,omitempty"`
	FindRegex   string `json:"find_regex,omitempty"`
	ReplaceWith string `json:"replace_with,omitempty"`
}

type RuleDTO struct {
	ID         string         `json:"id"`
	Enabled    bool           `json:"enabled"`
	Conditions []ConditionDTO `json:"conditions"`
	Action     ActionDTO      `json:"action"`
}

type MatchReplaceDTO struct {
	ID          string `json:"id"`
	Enabled     bool   `json:"enabled"`
	Target      string `json:"target"`
	HeaderName  string `json:"header_name,omitempty"`
	Find        string `json:"find"`
	ReplaceWith string `json:"replace_with"`
}

// ToDTO converts p into its wire form.
func ToDTO(p *Policy) DTO {
	dto := DTO{}
	if p.Scope != nil {
		dto.ScopeOutOfAction = int(p.Scope.OutOfScopeAction)
		for _, pat := range p.Scope.Include {
			dto.ScopeInclude = append(dto.ScopeInclude, pat.Raw)
		}
		for _, pat := range p.Scope.Exclude {
			dto.ScopeExclude = append(dto.ScopeExclude, pat.Raw)
		}
	}
	for _, rule := range p.InterceptionRules {
		rd := RuleDTO{ID: rule.ID, Enabled: rule.Enabled, Action: ActionDTO{
			Kind:        int(rule.Action.Kind),
			BlockReason: rule.Action.BlockReason,
			DelayMS:     rule.Action.DelayMS,
			HeaderName:  rule.Action.HeaderName,
			HeaderValue: rule.Action.HeaderValue,
			ReplaceWith: rule.Action.ReplaceWith,
		}}
		if rule.Action.FindRegex != nil {
			rd.Action.FindRegex = rule.Action.FindRegex.String()
		}
		for _, c := range rule.Conditions {
			cd := ConditionDTO{Kind: int(c.Kind), Value: c.Value, HeaderName: c.HeaderName}
			if c.Regex != nil {
				cd.Regex = c.Regex.String()
			}
			rd.Conditions = append(rd.Conditions, cd)
		}
		dto.InterceptionRules = append(dto.InterceptionRules, rd)
	}
	for _, mr := range p.MatchReplaceRules {
		mrd := MatchReplaceDTO{ID: mr.ID, Enabled: mr.Enabled, Target: mr.Target, HeaderName: mr.HeaderName, ReplaceWith: mr.ReplaceWith}
		if mr.Find != nil {
			mrd.Find = mr.Find.String()
		}
		dto.MatchReplaceRules = append(dto.MatchReplaceRules, mrd)
	}
	return dto
}

// FromDTO compiles dto's regex strings and reconstructs a live Policy.
func FromDTO(dto DTO) (*Policy, error) {
	var includes, excludes []scope.Pattern
	for _, raw := range dto.ScopeInclude {
		includes = append(includes, scope.NewGlobPattern(raw))
	}
	for _, raw := range dto.ScopeExclude {
		excludes = append(excludes, scope.NewGlobPattern(raw))
	}
	matcher := scope.New(includes, excludes, scope.OutOfScopeAction(dto.ScopeOutOfAction))

	p := &Policy{Scope: matcher}
	for _, rd := range dto.InterceptionRules {
		rule := Rule{ID: rd.ID, Enabled: rd.Enabled, Action: Action{
			Kind:        ActionKind(rd.Action.Kind),
			BlockReason: rd.Action.BlockReason,
			DelayMS:     rd.Action.DelayMS,
			HeaderName:  rd.Action.HeaderName,
			HeaderValue: rd.Action.HeaderValue,
			ReplaceWith: rd.Action.ReplaceWith,
		}}
		if rd.Action.FindRegex != "" {
			re, err := regexp.Compile(rd.Action.FindRegex)
			if err != nil {
				return nil, errors.InvalidAttackConfig("invalid action regex: " + err.Error())
			}
			rule.Action.FindRegex = re
		}
		for _, cd := range rd.Conditions {
			cond := Condition{Kind: ConditionKind(cd.Kind), Value: cd.Value, HeaderName: cd.HeaderName}
			if cd.Regex != "" {
				re, err := regexp.Compile(cd.Regex)
				if err != nil {
					return nil, errors.InvalidAttackConfig("invalid condition regex: " + err.Error())
				}
				cond.Regex = re
			}
			rule.Conditions = append(rule.Conditions, cond)
		}
		p.InterceptionRules = append(p.InterceptionRules, rule)
	}
	for _, mrd := range dto.MatchReplaceRules {
		mr := MatchReplaceRule{ID: mrd.ID, Enabled: mrd.Enabled, Target: mrd.Target, HeaderName: mrd.HeaderName, ReplaceWith: mrd.ReplaceWith}
		if mrd.Find != "" {
			re, err := regexp.Compile(mrd.Find)
			if err != nil {
				return nil, errors.InvalidAttackConfig("invalid match/replace regex: " + err.Error())
			}
			mr.Find = re
		}
		p.MatchReplaceRules = append(p.MatchReplaceRules, mr)
	}
	return p, nil
}
