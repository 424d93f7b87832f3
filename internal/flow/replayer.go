package flow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/regaipserdar/proxxy-sub001/internal/errors"
)

// ReplayResult is the outcome of executing a FlowProfile.
type ReplayResult struct {
	Success        bool
	Error          string
	StepsCompleted int
	TotalSteps     int
	SessionCookies string
	ExtractedData  map[string]string
	FinalURL       string
	DurationMS     uint64
}

// ReplayOptions configures a FlowReplayer.
type ReplayOptions struct {
	StepByStep          bool
	StepDelayMS         uint64
	ScreenshotOnFailure bool
	Variables           map[string]string
}

// DefaultReplayOptions matches the original's defaults.
func DefaultReplayOptions() ReplayOptions {
	return ReplayOptions{
		StepDelayMS:         500,
		ScreenshotOnFailure: true,
		Variables:           make(map[string]string),
	}
}

// FlowReplayer executes a recorded FlowProfile against a Page.
type FlowReplayer struct {
	options ReplayOptions
}

// NewFlowReplayer builds a replayer with default options.
func NewFlowReplayer() *FlowReplayer {
	return NewFlowReplayerWithOptions(DefaultReplayOptions())
}

// NewFlowReplayerWithOptions builds a replayer with custom options.
func NewFlowReplayerWithOptions(options ReplayOptions) *FlowReplayer {
	if options.Variables == nil {
		options.Variables = make(map[string]string)
	}
	return &FlowReplayer{options: options}
}

// Execute drives page through every step of profile, bailing out on the
// first step failure and reporting however much completed.
func (r *FlowReplayer) Execute(ctx context.Context, page Page, profile *FlowProfile) (*ReplayResult, error) {
	start := time.Now()
	totalSteps := len(profile.Steps)

	controller := NewPageController(page)
	extracted := make(map[string]string)
	stepsCompleted := 0

	for i, step := range profile.Steps {
		if err := r.executeStep(ctx, controller, step, extracted); err != nil {
			durationMS := uint64(time.Since(start).Milliseconds())
			finalURL, _ := controller.GetURL(ctx)

			return &ReplayResult{
				Success:        false,
				Error:          err.Error(),
				StepsCompleted: stepsCompleted,
				TotalSteps:     totalSteps,
				ExtractedData:  extracted,
				FinalURL:       finalURL,
				DurationMS:     durationMS,
			}, nil
		}

		stepsCompleted++
		_ = i

		if r.options.StepByStep {
			select {
			case <-time.After(time.Duration(r.options.StepDelayMS) * time.Millisecond):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	cookies, _ := r.extractCookies(ctx, controller)
	finalURL, _ := controller.GetURL(ctx)
	durationMS := uint64(time.Since(start).Milliseconds())

	return &ReplayResult{
		Success:        true,
		StepsCompleted: stepsCompleted,
		TotalSteps:     totalSteps,
		SessionCookies: cookies,
		ExtractedData:  extracted,
		FinalURL:       finalURL,
		DurationMS:     durationMS,
	}, nil
}

func (r *FlowReplayer) executeStep(ctx context.Context, controller *PageController, step FlowStep, extracted map[string]string) error {
	switch step.Kind {
	case StepNavigate:
		url := r.substituteVariables(step.URL)
		if err := controller.Navigate(ctx, url); err != nil {
			return err
		}
		if step.WaitFor != "" {
			return controller.WaitForSelector(ctx, step.WaitFor)
		}
		return nil

	case StepClick:
		return controller.Click(ctx, step.Selector)

	case StepType:
		text := r.substituteVariables(step.Value)
		return controller.TypeText(ctx, step.Selector, text, step.ClearFirst)

	case StepWait:
		if step.Condition != nil {
			return controller.WaitForCondition(ctx, *step.Condition)
		}
		select {
		case <-time.After(time.Duration(step.DurationMS) * time.Millisecond):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}

	case StepCheckSession:
		if err := controller.Navigate(ctx, step.ValidationURL); err != nil {
			return err
		}
		content, err := controller.GetContent(ctx)
		if err != nil {
			return err
		}
		valid := false
		for _, indicator := range step.SuccessIndicators {
			if strings.Contains(content, indicator) {
				valid = true
				break
			}
		}
		if !valid {
			return errors.SessionValidation("session validation failed: no success indicators found")
		}
		return nil

	case StepSubmit:
		if err := controller.Click(ctx, step.Selector); err != nil {
			return err
		}
		if step.WaitForNavigation {
			select {
			case <-time.After(1 * time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			return controller.WaitForCondition(ctx, WaitCondition{Kind: WaitPageLoaded})
		}
		return nil

	case StepSelect:
		script := fmt.Sprintf("document.querySelector('%s').value = '%s'", step.Selector.Value, step.SelectValue)
		_, err := controller.ExecuteScript(ctx, script)
		return err

	case StepHover:
		return controller.Hover(ctx, step.Selector)

	case StepKeyPress:
		mods := strings.Join(step.Modifiers, "+")
		modFields := ""
		if mods != "" {
			modFields = fmt.Sprintf("ctrlKey: %v, altKey: %v, shiftKey: %v, metaKey: %v",
				containsMod(step.Modifiers, "ctrl"), containsMod(step.Modifiers, "alt"),
				containsMod(step.Modifiers, "shift"), containsMod(step.Modifiers, "meta"))
		}
		script := fmt.Sprintf("document.dispatchEvent(new KeyboardEvent('keydown', { key: '%s', %s }))", step.Key, modFields)
		_, err := controller.ExecuteScript(ctx, script)
		return err

	case StepScreenshot:
		_, err := controller.Screenshot(ctx)
		return err

	case StepExtract:
		value, err := r.extractValue(ctx, controller, step)
		if err != nil {
			return err
		}
		extracted[step.VariableName] = value
		return nil

	case StepExecuteScript:
		result, err := controller.ExecuteScript(ctx, step.Script)
		if err != nil {
			return err
		}
		if step.ResultVariable != "" {
			extracted[step.ResultVariable] = fmt.Sprintf("%v", result)
		}
		return nil

	case StepCustom:
		// Extension point: custom actions have no built-in behavior and
		// are handled entirely by caller-registered hooks elsewhere.
		return nil

	default:
		return nil
	}
}

func (r *FlowReplayer) extractValue(ctx context.Context, controller *PageController, step FlowStep) (string, error) {
	switch step.ExtractType {
	case ExtractText:
		return controller.ExtractText(ctx, step.Selector)
	case ExtractValue:
		script := fmt.Sprintf("document.querySelector('%s').value", step.Selector.Value)
		result, err := controller.ExecuteScript(ctx, script)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%v", result), nil
	case ExtractAttribute:
		script := fmt.Sprintf("document.querySelector('%s').getAttribute('%s')", step.Selector.Value, step.ExtractAttr)
		result, err := controller.ExecuteScript(ctx, script)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%v", result), nil
	case ExtractInnerHTML, ExtractOuterHTML:
		method := "innerHTML"
		if step.ExtractType == ExtractOuterHTML {
			method = "outerHTML"
		}
		script := fmt.Sprintf("document.querySelector('%s').%s", step.Selector.Value, method)
		result, err := controller.ExecuteScript(ctx, script)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%v", result), nil
	default:
		return "", nil
	}
}

func (r *FlowReplayer) extractCookies(ctx context.Context, controller *PageController) (string, error) {
	const script = `document.cookie.split(';').map(c => { const [name, value] = c.trim().split('='); return { name, value }; })`
	result, err := controller.ExecuteScript(ctx, script)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%v", result), nil
}

func (r *FlowReplayer) substituteVariables(input string) string {
	result := input
	for key, value := range r.options.Variables {
		result = strings.ReplaceAll(result, "{{"+key+"}}", value)
	}
	return result
}

func containsMod(modifiers []string, mod string) bool {
	for _, m := range modifiers {
		if m == mod {
			return true
		}
	}
	return false
}
