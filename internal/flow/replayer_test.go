package flow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlowReplayer_SubstituteVariables(t *testing.T) {
	options := DefaultReplayOptions()
	options.Variables["username"] = "testuser"
	options.Variables["password"] = "secret123"
	replayer := NewFlowReplayerWithOptions(options)

	result := replayer.substituteVariables("User: {{username}}, Pass: {{password}}")
	assert.Equal(t, "User: testuser, Pass: secret123", result)
}

func TestDefaultReplayOptions(t *testing.T) {
	opts := DefaultReplayOptions()
	assert.False(t, opts.StepByStep)
	assert.True(t, opts.ScreenshotOnFailure)
	assert.Equal(t, uint64(500), opts.StepDelayMS)
}

func TestFlowReplayer_ExecuteRunsAllStepsSuccessfully(t *testing.T) {
	page := NewMemoryPage()
	page.SetNode("#submit-btn", "Submit")

	profile := NewFlowProfile("Login", "https://example.com/login")
	profile.AddStep(FlowStep{Kind: StepNavigate, URL: "https://example.com/login"})
	profile.AddStep(FlowStep{Kind: StepClick, Selector: CSSSelector("#submit-btn")})
	profile.AddStep(FlowStep{Kind: StepWait, DurationMS: 1})

	replayer := NewFlowReplayer()
	result, err := replayer.Execute(context.Background(), page, profile)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, result.TotalSteps, result.StepsCompleted)
	assert.Equal(t, "https://example.com/login", result.FinalURL)
}

func TestFlowReplayer_ExecuteBailsOnFirstFailingStep(t *testing.T) {
	page := NewMemoryPage()

	profile := NewFlowProfile("Broken", "https://example.com")
	profile.AddStep(FlowStep{Kind: StepClick, Selector: CSSSelector("#missing")})
	profile.AddStep(FlowStep{Kind: StepClick, Selector: CSSSelector("#never-reached")})

	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()

	replayer := NewFlowReplayer()
	result, err := replayer.Execute(ctx, page, profile)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
	// the click on #missing is the first step; its lookup retries until the
	// context deadline, so no step completes
	assert.Equal(t, 0, result.StepsCompleted)
	assert.Equal(t, 2, result.TotalSteps)
}

func TestFlowReplayer_ExtractTextStoresExtractedValue(t *testing.T) {
	page := NewMemoryPage()
	page.SetNode("#balance", "$42.00")

	profile := NewFlowProfile("Extract", "https://example.com")
	profile.AddStep(FlowStep{
		Kind:         StepExtract,
		Selector:     CSSSelector("#balance"),
		ExtractType:  ExtractText,
		VariableName: "balance",
	})

	replayer := NewFlowReplayer()
	result, err := replayer.Execute(context.Background(), page, profile)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "$42.00", result.ExtractedData["balance"])
}

func TestFlowReplayer_CheckSessionFailsWithoutSuccessIndicator(t *testing.T) {
	page := NewMemoryPage()
	page.SetContent("<html><body>Login failed</body></html>")

	profile := NewFlowProfile("Session", "https://example.com")
	profile.AddStep(FlowStep{
		Kind:              StepCheckSession,
		ValidationURL:     "https://example.com/account",
		SuccessIndicators: []string{"Welcome back"},
	})

	replayer := NewFlowReplayer()
	result, err := replayer.Execute(context.Background(), page, profile)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "SessionValidation")
}

func TestFlowReplayer_CheckSessionSucceedsWithIndicatorPresent(t *testing.T) {
	page := NewMemoryPage()
	page.SetContent("<html><body>Welcome back, friend</body></html>")

	profile := NewFlowProfile("Session", "https://example.com")
	profile.AddStep(FlowStep{
		Kind:              StepCheckSession,
		ValidationURL:     "https://example.com/account",
		SuccessIndicators: []string{"Welcome back"},
	})

	replayer := NewFlowReplayer()
	result, err := replayer.Execute(context.Background(), page, profile)
	require.NoError(t, err)
	assert.True(t, result.Success)
}
