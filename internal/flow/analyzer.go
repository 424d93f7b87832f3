package flow

import (
	"regexp"
	"strings"
)

// AnalyzerConfig tunes SmartSelector generation.
type AnalyzerConfig struct {
	MaxDepth       int
	MinPriority    uint8
	MaxAlternatives int
}

// DefaultAnalyzerConfig matches the original's defaults.
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{MaxDepth: 5, MinPriority: 30, MaxAlternatives: 3}
}

// ElementInfo describes a DOM element the analyzer ranks selectors for.
type ElementInfo struct {
	TagName     string
	ID          string
	ClassList   []string
	Name        string
	InputType   string
	Placeholder string
	AriaLabel   string
	DataTestID  string
	DataCy      string
	TextContent string
	Href        string
}

type candidate struct {
	value        string
	selectorType SelectorType
	priority     uint8
}

// SelectorAnalyzer ranks candidate selectors for an element and picks the
// most stable one, with blacklist filtering and dynamic-value detection.
type SelectorAnalyzer struct {
	config    AnalyzerConfig
	blacklist *SelectorBlacklist
}

// NewSelectorAnalyzer builds an analyzer with cfg.
func NewSelectorAnalyzer(cfg AnalyzerConfig) *SelectorAnalyzer {
	return &SelectorAnalyzer{config: cfg, blacklist: NewSelectorBlacklist()}
}

// DefaultSelectorAnalyzer builds an analyzer with DefaultAnalyzerConfig.
func DefaultSelectorAnalyzer() *SelectorAnalyzer {
	return NewSelectorAnalyzer(DefaultAnalyzerConfig())
}

var dynamicValuePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^[a-f0-9]{8,}$`),
	regexp.MustCompile(`^\d{10,}$`),
	regexp.MustCompile(`^[a-z]{1,3}\d{4,}$`),
	regexp.MustCompile(`__\w+__`),
	regexp.MustCompile(`^css-[a-z0-9]+$`),
	regexp.MustCompile(`^sc-[a-zA-Z]+$`),
	regexp.MustCompile(`^emotion-\d+$`),
	regexp.MustCompile(`^MuiBox-root-\d+$`),
	regexp.MustCompile(`^v-[a-f0-9]+$`),
	regexp.MustCompile(`^_[A-Z][a-zA-Z]+_[a-z0-9]+$`),
}

// looksDynamic reports whether value matches one of the common
// generated-class/id patterns that make poor, unstable selectors.
func looksDynamic(value string) bool {
	for _, p := range dynamicValuePatterns {
		if p.MatchString(value) {
			return true
		}
	}
	return false
}

// AnalyzeElement ranks candidate selectors for element and returns the
// highest-priority one, with up to MaxAlternatives fallbacks attached.
func (a *SelectorAnalyzer) AnalyzeElement(element ElementInfo) (SmartSelector, error) {
	var candidates []candidate

	if element.DataTestID != "" && !a.blacklist.IsBlacklisted(element.DataTestID) {
		candidates = append(candidates, candidate{"[data-testid='" + element.DataTestID + "']", SelectorCSS, 95})
	}
	if element.DataCy != "" && !a.blacklist.IsBlacklisted(element.DataCy) {
		candidates = append(candidates, candidate{"[data-cy='" + element.DataCy + "']", SelectorCSS, 95})
	}
	if element.ID != "" && !a.blacklist.IsBlacklisted(element.ID) && !looksDynamic(element.ID) {
		candidates = append(candidates, candidate{"#" + element.ID, SelectorCSS, 90})
	}
	if element.Name != "" && !a.blacklist.IsBlacklisted(element.Name) {
		candidates = append(candidates, candidate{"[name='" + element.Name + "']", SelectorCSS, 85})
	}
	if element.AriaLabel != "" {
		candidates = append(candidates, candidate{element.AriaLabel, SelectorAriaLabel, 80})
	}
	if element.Placeholder != "" {
		candidates = append(candidates, candidate{element.Placeholder, SelectorPlaceholder, 75})
	}
	if element.TextContent != "" && len(element.TextContent) < 50 {
		candidates = append(candidates, candidate{element.TextContent, SelectorText, 70})
	}
	if len(element.ClassList) > 0 {
		var stable []string
		for _, c := range element.ClassList {
			if !a.blacklist.IsBlacklisted(c) && !looksDynamic(c) {
				stable = append(stable, c)
			}
		}
		if len(stable) > 0 {
			if len(stable) > 2 {
				stable = stable[:2]
			}
			sel := strings.ToLower(element.TagName)
			for _, c := range stable {
				sel += "." + c
			}
			candidates = append(candidates, candidate{sel, SelectorCSS, 50})
		}
	}
	if strings.EqualFold(element.TagName, "input") && element.InputType != "" {
		candidates = append(candidates, candidate{"input[type='" + element.InputType + "']", SelectorCSS, 40})
	}

	var valid []candidate
	for _, c := range candidates {
		if c.priority >= a.config.MinPriority {
			valid = append(valid, c)
		}
	}
	if len(valid) == 0 {
		return SmartSelector{}, flowEngineSelectorGenerationError()
	}

	// Stable sort by descending priority, preserving discovery order among ties.
	for i := 1; i < len(valid); i++ {
		for j := i; j > 0 && valid[j].priority > valid[j-1].priority; j-- {
			valid[j], valid[j-1] = valid[j-1], valid[j]
		}
	}

	primary := valid[0]
	var alternatives []AlternativeSelector
	for _, c := range valid[1:] {
		if len(alternatives) >= a.config.MaxAlternatives {
			break
		}
		alternatives = append(alternatives, AlternativeSelector{Value: c.value, SelectorType: c.selectorType, Priority: c.priority})
	}

	return SmartSelector{
		Value:        primary.value,
		SelectorType: primary.selectorType,
		Priority:     primary.priority,
		Alternatives: alternatives,
	}, nil
}

// SelectorBlacklist filters out common utility-framework class names that
// make unstable selectors: Tailwind/Bootstrap utilities and their
// numbered variants.
type SelectorBlacklist struct {
	exact  map[string]struct{}
	prefix []string
	regex  []*regexp.Regexp
}

// NewSelectorBlacklist builds the blacklist with its fixed pattern set.
func NewSelectorBlacklist() *SelectorBlacklist {
	exactClasses := []string{
		"flex", "hidden", "block", "inline", "grid",
		"rounded", "shadow",
		"container", "row", "col", "btn", "form-control",
		"d-flex", "d-none", "d-block",
		"text-center", "text-left", "text-right",
	}
	prefixes := []string{
		"p-", "m-", "px-", "py-", "mx-", "my-", "pt-", "pb-", "pl-", "pr-",
		"w-", "h-", "min-w-", "min-h-", "max-w-", "max-h-",
		"text-", "font-", "leading-", "tracking-",
		"bg-", "border-",
		"hover:", "focus:", "active:", "disabled:",
		"sm:", "md:", "lg:", "xl:", "2xl:",
		"justify-content-", "align-items-",
	}
	exact := make(map[string]struct{}, len(exactClasses))
	for _, c := range exactClasses {
		exact[c] = struct{}{}
	}
	regexes := []*regexp.Regexp{
		regexp.MustCompile(`^col-\d+$`),
		regexp.MustCompile(`^col-(sm|md|lg|xl)-\d+$`),
		regexp.MustCompile(`^mb?-\d+$`),
		regexp.MustCompile(`^pb?-\d+$`),
	}
	return &SelectorBlacklist{exact: exact, prefix: prefixes, regex: regexes}
}

// IsBlacklisted reports whether value is a known-unstable class/attribute
// value that should never anchor a selector.
func (b *SelectorBlacklist) IsBlacklisted(value string) bool {
	if _, ok := b.exact[value]; ok {
		return true
	}
	for _, p := range b.prefix {
		if strings.HasPrefix(value, p) {
			return true
		}
	}
	for _, r := range b.regex {
		if r.MatchString(value) {
			return true
		}
	}
	return false
}

// CreateValidationResult builds a ValidationResult, deriving
// IsInteractable from IsVisible && IsValid as the original does.
func CreateValidationResult(isValid bool, matchCount int, isVisible bool) ValidationResult {
	return ValidationResult{
		IsValid:        isValid,
		MatchCount:     matchCount,
		IsVisible:      isVisible,
		IsInteractable: isVisible && isValid,
		ValidatedAt:    nowUTC(),
	}
}
