package flow

import (
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/regaipserdar/proxxy-sub001/internal/errors"
)

// RecordingState is the lifecycle state of a FlowRecorder.
type RecordingState int

const (
	RecordingIdle RecordingState = iota
	RecordingActive
	RecordingPaused
	RecordingCompleted
	RecordingFailed
)

func (s RecordingState) String() string {
	switch s {
	case RecordingIdle:
		return "Idle"
	case RecordingActive:
		return "Recording"
	case RecordingPaused:
		return "Paused"
	case RecordingCompleted:
		return "Completed"
	case RecordingFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// RecordedEvent is a raw captured interaction, kept alongside the
// synthesized FlowStep for debugging/replay-tuning purposes.
type RecordedEvent struct {
	Kind       string
	Element    ElementInfo
	X, Y       float64
	Value      string
	IsPassword bool
	URL        string
	Key        string
	Modifiers  []string
	EventType  string
	Data       map[string]interface{}
}

// RecordingConfig tunes what a FlowRecorder captures.
type RecordingConfig struct {
	DetectPasswords bool
	MaskSensitive   bool
	RecordMouseMoves bool
	RecordScroll    bool
	DebounceMS      uint64
}

// DefaultRecordingConfig matches the original's defaults.
func DefaultRecordingConfig() RecordingConfig {
	return RecordingConfig{
		DetectPasswords:  true,
		MaskSensitive:    true,
		RecordMouseMoves: false,
		RecordScroll:     false,
		DebounceMS:       100,
	}
}

// FlowRecorder captures browser interactions into a FlowProfile.
type FlowRecorder struct {
	config   RecordingConfig
	analyzer *SelectorAnalyzer

	mu      sync.Mutex
	state   RecordingState
	events  []RecordedEvent
	profile *FlowProfile
}

// NewFlowRecorder builds a recorder with default config.
func NewFlowRecorder() *FlowRecorder {
	return NewFlowRecorderWithConfig(DefaultRecordingConfig())
}

// NewFlowRecorderWithConfig builds a recorder with a custom config.
func NewFlowRecorderWithConfig(config RecordingConfig) *FlowRecorder {
	return &FlowRecorder{
		config:   config,
		analyzer: DefaultSelectorAnalyzer(),
		state:    RecordingIdle,
	}
}

// StartRecording begins a new session, returning the new profile's ID.
func (r *FlowRecorder) StartRecording(name, startURL string, flowType FlowType) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == RecordingActive {
		return uuid.UUID{}, errors.Recording("already recording")
	}

	profile := NewFlowProfile(name, startURL)
	profile.FlowType = flowType
	profile.Status = ProfileRecording

	profile.AddStep(FlowStep{Kind: StepNavigate, URL: startURL})

	r.profile = profile
	r.events = nil
	r.state = RecordingActive

	return profile.ID, nil
}

// Pause suspends recording without losing captured state.
func (r *FlowRecorder) Pause() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != RecordingActive {
		return errors.Recording("not currently recording")
	}
	r.state = RecordingPaused
	return nil
}

// Resume continues a paused recording.
func (r *FlowRecorder) Resume() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != RecordingPaused {
		return errors.Recording("recording not paused")
	}
	r.state = RecordingActive
	return nil
}

// StopRecording finalizes and returns the recorded profile.
func (r *FlowRecorder) StopRecording() (*FlowProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != RecordingActive && r.state != RecordingPaused {
		return nil, errors.Recording("no active recording")
	}
	r.state = RecordingCompleted

	if r.profile == nil {
		return nil, errors.Recording("no profile found")
	}
	profile := r.profile
	r.profile = nil
	return profile, nil
}

// RecordClick synthesizes a selector for element and appends a click step.
func (r *FlowRecorder) RecordClick(element ElementInfo, x, y float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != RecordingActive {
		return nil
	}

	selector, err := r.analyzer.AnalyzeElement(element)
	if err != nil {
		return err
	}

	if r.profile != nil {
		r.profile.AddStep(FlowStep{Kind: StepClick, Selector: selector})
	}
	r.events = append(r.events, RecordedEvent{Kind: "click", Element: element, X: x, Y: y})
	return nil
}

// RecordInput synthesizes a selector for element and appends a type step,
// masking the value when it looks like a password field.
func (r *FlowRecorder) RecordInput(element ElementInfo, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != RecordingActive {
		return nil
	}

	isPassword := r.isPasswordField(element)
	selector, err := r.analyzer.AnalyzeElement(element)
	if err != nil {
		return err
	}

	stored := value
	if isPassword && r.config.MaskSensitive {
		stored = "***MASKED***"
	}

	if r.profile != nil {
		r.profile.AddStep(FlowStep{
			Kind:       StepType,
			Selector:   selector,
			Value:      stored,
			IsMasked:   isPassword,
			ClearFirst: true,
		})
	}
	r.events = append(r.events, RecordedEvent{Kind: "input", Element: element, Value: stored, IsPassword: isPassword})
	return nil
}

// RecordSubmit synthesizes a selector for element and appends a submit step.
func (r *FlowRecorder) RecordSubmit(element ElementInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != RecordingActive {
		return nil
	}

	selector, err := r.analyzer.AnalyzeElement(element)
	if err != nil {
		return err
	}

	if r.profile != nil {
		r.profile.AddStep(FlowStep{Kind: StepSubmit, Selector: selector, WaitForNavigation: true})
	}
	r.events = append(r.events, RecordedEvent{Kind: "submit", Element: element})
	return nil
}

// RecordNavigation appends a navigate step, skipping consecutive duplicates.
func (r *FlowRecorder) RecordNavigation(url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != RecordingActive {
		return nil
	}

	if r.profile != nil {
		if n := len(r.profile.Steps); n > 0 {
			last := r.profile.Steps[n-1]
			if last.Kind == StepNavigate && last.URL == url {
				return nil
			}
		}
		r.profile.AddStep(FlowStep{Kind: StepNavigate, URL: url})
	}
	r.events = append(r.events, RecordedEvent{Kind: "navigation", URL: url})
	return nil
}

// AddWait appends a fixed-duration wait step.
func (r *FlowRecorder) AddWait(durationMS uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.profile != nil {
		r.profile.AddStep(FlowStep{Kind: StepWait, DurationMS: durationMS})
	}
	return nil
}

// GetState returns the recorder's current lifecycle state.
func (r *FlowRecorder) GetState() RecordingState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// EventCount returns the number of raw events captured so far.
func (r *FlowRecorder) EventCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func (r *FlowRecorder) isPasswordField(element ElementInfo) bool {
	if element.InputType != "" {
		return strings.EqualFold(element.InputType, "password")
	}
	if element.Name != "" {
		lower := strings.ToLower(element.Name)
		if strings.Contains(lower, "password") || strings.Contains(lower, "passwd") || strings.Contains(lower, "pwd") {
			return true
		}
	}
	if element.ID != "" {
		lower := strings.ToLower(element.ID)
		if strings.Contains(lower, "password") || strings.Contains(lower, "passwd") || strings.Contains(lower, "pwd") {
			return true
		}
	}
	return false
}

// flowRecorderCaptureScript is injected into the page to capture click,
// input and submit events into a window-level buffer.
const flowRecorderCaptureScript = `
(function() {
    if (window.__flowRecorderInjected) return;
    window.__flowRecorderInjected = true;

    const getElementInfo = (el) => {
        if (!el || !el.tagName) return null;
        return {
            tagName: el.tagName,
            id: el.id || null,
            classList: Array.from(el.classList || []),
            name: el.getAttribute('name'),
            inputType: el.getAttribute('type'),
            placeholder: el.getAttribute('placeholder'),
            ariaLabel: el.getAttribute('aria-label'),
            dataTestid: el.getAttribute('data-testid'),
            dataCy: el.getAttribute('data-cy'),
            textContent: el.textContent ? el.textContent.substring(0, 100) : null,
            href: el.getAttribute('href')
        };
    };

    document.addEventListener('click', (e) => {
        const info = getElementInfo(e.target);
        if (info) {
            window.__flowEvents = window.__flowEvents || [];
            window.__flowEvents.push({ type: 'click', element: info, x: e.clientX, y: e.clientY, timestamp: Date.now() });
        }
    }, true);

    document.addEventListener('input', (e) => {
        if (e.target.tagName === 'INPUT' || e.target.tagName === 'TEXTAREA') {
            const info = getElementInfo(e.target);
            if (info) {
                window.__flowEvents = window.__flowEvents || [];
                window.__flowEvents.push({ type: 'input', element: info, value: e.target.value, timestamp: Date.now() });
            }
        }
    }, true);

    document.addEventListener('submit', (e) => {
        const info = getElementInfo(e.target);
        if (info) {
            window.__flowEvents = window.__flowEvents || [];
            window.__flowEvents.push({ type: 'submit', element: info, timestamp: Date.now() });
        }
    }, true);
})();
`

// flowRecorderDrainScript returns and clears the captured event buffer.
const flowRecorderDrainScript = `
(function() {
    const events = window.__flowEvents || [];
    window.__flowEvents = [];
    return events;
})();
`

// CaptureScript returns the JS injected into the page to start capturing events.
func (r *FlowRecorder) CaptureScript() string {
	return flowRecorderCaptureScript
}

// DrainEventsScript returns the JS that drains the page's captured-event buffer.
func (r *FlowRecorder) DrainEventsScript() string {
	return flowRecorderDrainScript
}
