package payload

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/regaipserdar/proxxy-sub001/internal/errors"
)

// Marker is one §name§ payload marker found in a template, located by
// UTF-8 character index (not byte offset), numbered by the order in
// which it appears.
type Marker struct {
	ID         string
	Index      int // positional order among markers in this template (0-based)
	StartIndex int // character index of the opening §
	EndIndex   int // character index of the closing §, inclusive
}

// ParsedTemplate is a template with its markers located and rewritten
// into {PAYLOAD_<index>} placeholders, ready for InjectPayloads.
type ParsedTemplate struct {
	Template          string
	Markers           []Marker
	ProcessedTemplate string
}

// ParseTemplate scans template for §name§ markers and returns them in
// the order encountered, along with a processed_template in which each
// marker has been replaced by its {PAYLOAD_<index>} placeholder. It
// reports the exact error strings the attack engine's original parser
// produced.
func ParseTemplate(template string) (*ParsedTemplate, error) {
	runes := []rune(template)
	var markers []Marker

	open := -1
	index := 0
	for i, r := range runes {
		if r != '§' {
			continue
		}
		if open < 0 {
			open = i
			continue
		}

		name := string(runes[open+1 : i])
		if err := validateMarkerName(name); err != nil {
			return nil, err
		}
		markers = append(markers, Marker{ID: name, Index: index, StartIndex: open, EndIndex: i})
		index++
		open = -1
	}

	if open >= 0 {
		return nil, errors.InvalidPayloadConfig(fmt.Sprintf("unmatched § at position %d", open))
	}

	return &ParsedTemplate{
		Template:          template,
		Markers:           markers,
		ProcessedTemplate: renderPlaceholders(runes, markers),
	}, nil
}

func validateMarkerName(name string) error {
	if name == "" {
		return errors.InvalidPayloadConfig("empty payload marker")
	}
	if strings.Contains(name, "§") {
		return errors.InvalidPayloadConfig("payload marker cannot contain § symbol")
	}
	for _, c := range name {
		if !unicode.IsLetter(c) && !unicode.IsDigit(c) && c != '_' && c != '-' {
			return errors.InvalidPayloadConfig(fmt.Sprintf("invalid characters in payload marker: %s", name))
		}
	}
	return nil
}

func renderPlaceholders(runes []rune, markers []Marker) string {
	if len(markers) == 0 {
		return string(runes)
	}
	var b strings.Builder
	last := 0
	for _, m := range markers {
		b.WriteString(string(runes[last:m.StartIndex]))
		b.WriteString(fmt.Sprintf("{PAYLOAD_%d}", m.Index))
		last = m.EndIndex + 1
	}
	b.WriteString(string(runes[last:]))
	return b.String()
}

// InjectPayloads replaces every {PAYLOAD_<index>} placeholder in the
// parsed template's processed form with the value keyed by that
// placeholder's marker ID in values.
func InjectPayloads(parsed *ParsedTemplate, values map[string]string) (string, error) {
	result := parsed.ProcessedTemplate
	for _, m := range parsed.Markers {
		v, ok := values[m.ID]
		if !ok {
			return "", errors.InvalidPayloadConfig(fmt.Sprintf("no payload value provided for marker: %s", m.ID))
		}
		placeholder := fmt.Sprintf("{PAYLOAD_%d}", m.Index)
		result = strings.ReplaceAll(result, placeholder, v)
	}
	return result, nil
}

// GetPayloadSetIDs returns the sorted, de-duplicated set of marker IDs
// found in markers.
func GetPayloadSetIDs(markers []Marker) []string {
	seen := make(map[string]struct{}, len(markers))
	for _, m := range markers {
		seen[m.ID] = struct{}{}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ValidatePayloadSets checks that every marker ID found in markers has a
// corresponding entry in available, reporting the first missing one.
func ValidatePayloadSets(markers []Marker, available map[string][]string) error {
	for _, id := range GetPayloadSetIDs(markers) {
		if _, ok := available[id]; !ok {
			return errors.InvalidPayloadConfig(fmt.Sprintf("no payload value provided for marker: %s", id))
		}
	}
	return nil
}

// TemplateUtils bundles the small template-introspection helpers the
// original parser exposed as free functions, grouped here for discovery.
type TemplateUtils struct{}

// HasPayloadMarkers reports whether template contains at least one
// well-formed §name§ marker.
func (TemplateUtils) HasPayloadMarkers(template string) bool {
	parsed, err := ParseTemplate(template)
	return err == nil && len(parsed.Markers) > 0
}

// CountPayloadPositions returns the number of marker occurrences in
// template (not the number of distinct marker IDs).
func (TemplateUtils) CountPayloadPositions(template string) (int, error) {
	parsed, err := ParseTemplate(template)
	if err != nil {
		return 0, err
	}
	return len(parsed.Markers), nil
}

// ExtractPayloadSetIDs parses template and returns its sorted, de-duplicated
// marker IDs.
func (TemplateUtils) ExtractPayloadSetIDs(template string) ([]string, error) {
	parsed, err := ParseTemplate(template)
	if err != nil {
		return nil, err
	}
	return GetPayloadSetIDs(parsed.Markers), nil
}

// ValidateTemplateSyntax parses template purely for its side effect of
// surfacing a syntax error, if any.
func (TemplateUtils) ValidateTemplateSyntax(template string) error {
	_, err := ParseTemplate(template)
	return err
}
