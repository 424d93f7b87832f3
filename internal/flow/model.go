// Package flow implements the recorder/selector-analyzer (C12) and
// replayer/page-controller (C13) halves of the flow engine, grounded on
// original_source/flow-engine/src/flow/*.rs. Browser automation itself
// (chromiumoxide in the original) has no idiomatic Go counterpart in the
// example pack; Page is an interface so any driver can be plugged in, and
// ExecuteScript's reference path runs through dop251/goja against an
// in-memory DOM snapshot rather than a real browser.
package flow

import (
	"time"

	"github.com/google/uuid"
)

// FlowType classifies what a recorded profile is for.
type FlowType string

const (
	FlowLogin          FlowType = "login"
	FlowCheckout       FlowType = "checkout"
	FlowFormSubmission FlowType = "form_submission"
	FlowNavigation     FlowType = "navigation"
	FlowCustom         FlowType = "custom"
)

// ProfileStatus is the lifecycle state of a FlowProfile.
type ProfileStatus string

const (
	ProfileActive    ProfileStatus = "active"
	ProfileArchived  ProfileStatus = "archived"
	ProfileFailed    ProfileStatus = "failed"
	ProfileRecording ProfileStatus = "recording"
)

// FlowMeta is free-form bookkeeping attached to a profile.
type FlowMeta struct {
	Description        string
	Tags                []string
	ExpectedDurationMS  *uint64
	SuccessCount        uint32
	FailureCount        uint32
	LastSuccess         *time.Time
	SuccessIndicators   []string
	Custom              map[string]interface{}
}

// FlowProfile is a recorded sequence of steps, replayable against a Page.
type FlowProfile struct {
	ID        uuid.UUID
	Name      string
	FlowType  FlowType
	StartURL  string
	Steps     []FlowStep
	Meta      FlowMeta
	CreatedAt time.Time
	UpdatedAt time.Time
	AgentID   string
	Status    ProfileStatus
}

// NewFlowProfile creates an empty profile with an initial Navigate step
// absent; callers (the recorder) add it explicitly, matching the
// original's two-phase construction.
func NewFlowProfile(name, startURL string) *FlowProfile {
	now := time.Now()
	return &FlowProfile{
		ID:        uuid.New(),
		Name:      name,
		FlowType:  FlowCustom,
		StartURL:  startURL,
		CreatedAt: now,
		UpdatedAt: now,
		Status:    ProfileActive,
	}
}

// AddStep appends step and bumps UpdatedAt.
func (p *FlowProfile) AddStep(step FlowStep) {
	p.Steps = append(p.Steps, step)
	p.UpdatedAt = time.Now()
}

// StepCount returns the number of recorded steps.
func (p *FlowProfile) StepCount() int {
	return len(p.Steps)
}

// StepKind discriminates FlowStep's one-of payload.
type StepKind int

const (
	StepNavigate StepKind = iota
	StepClick
	StepType
	StepWait
	StepCheckSession
	StepSubmit
	StepSelect
	StepHover
	StepKeyPress
	StepScreenshot
	StepExtract
	StepExecuteScript
	StepCustom
)

// FlowStep is one recorded action. Exactly one group of fields is
// meaningful, selected by Kind, mirroring the original's Rust enum.
type FlowStep struct {
	Kind StepKind

	// Navigate
	URL     string
	WaitFor string

	// Click / Submit / Select / Hover / Type / Extract share Selector
	Selector SmartSelector

	// Type
	Value      string
	IsMasked   bool
	ClearFirst bool

	// Wait
	DurationMS uint64
	Condition  *WaitCondition

	// CheckSession
	ValidationURL     string
	SuccessIndicators []string

	// Submit
	WaitForNavigation bool

	// Select
	SelectValue string

	// KeyPress
	Key       string
	Modifiers []string

	// Screenshot
	Filename string

	// Extract
	ExtractType  ExtractType
	ExtractAttr  string // for ExtractAttribute
	VariableName string

	// ExecuteScript
	Script         string
	ResultVariable string

	// Custom
	ActionType string
	Parameters map[string]interface{}
}

// ExtractType is what an Extract step pulls from the matched element.
type ExtractType int

const (
	ExtractText ExtractType = iota
	ExtractInnerHTML
	ExtractOuterHTML
	ExtractAttribute
	ExtractValue
)

// WaitConditionKind discriminates WaitCondition's payload.
type WaitConditionKind int

const (
	WaitElementVisible WaitConditionKind = iota
	WaitElementHidden
	WaitURLMatches
	WaitNetworkIdle
	WaitPageLoaded
	WaitTextPresent
)

// WaitCondition is the condition a Wait step (or Submit's post-navigation
// wait) blocks on.
type WaitCondition struct {
	Kind    WaitConditionKind
	Pattern string // selector, URL substring, or text, depending on Kind
}

// SelectorType is the strategy a SmartSelector resolves through.
type SelectorType int

const (
	SelectorCSS SelectorType = iota
	SelectorXPath
	SelectorText
	SelectorAriaLabel
	SelectorPlaceholder
)

// AlternativeSelector is a fallback tried when the primary selector can't
// find an element.
type AlternativeSelector struct {
	Value        string
	SelectorType SelectorType
	Priority     uint8
}

// ValidationResult is attached to a SmartSelector after it successfully
// resolves against a live page.
type ValidationResult struct {
	IsValid        bool
	MatchCount     int
	IsVisible      bool
	IsInteractable bool
	ValidatedAt    time.Time
}

// SmartSelector is a self-describing element locator with ranked
// fallbacks, generated by the SelectorAnalyzer.
type SmartSelector struct {
	Value            string
	SelectorType     SelectorType
	Priority         uint8
	Alternatives     []AlternativeSelector
	ValidationResult *ValidationResult
}

// CSSSelector builds a plain CSS-selector SmartSelector with no alternatives.
func CSSSelector(value string) SmartSelector {
	return SmartSelector{Value: value, SelectorType: SelectorCSS, Priority: 50}
}

// IDSelector builds an id-based SmartSelector.
func IDSelector(id string) SmartSelector {
	return SmartSelector{Value: "#" + id, SelectorType: SelectorCSS, Priority: 90}
}
