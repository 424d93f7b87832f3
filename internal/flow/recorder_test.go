package flow

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlowRecorder_Lifecycle(t *testing.T) {
	recorder := NewFlowRecorder()

	profileID, err := recorder.StartRecording("Test Flow", "https://example.com", FlowLogin)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.UUID{}, profileID)
	assert.Equal(t, RecordingActive, recorder.GetState())

	require.NoError(t, recorder.Pause())
	assert.Equal(t, RecordingPaused, recorder.GetState())

	require.NoError(t, recorder.Resume())
	assert.Equal(t, RecordingActive, recorder.GetState())

	profile, err := recorder.StopRecording()
	require.NoError(t, err)
	assert.Equal(t, "Test Flow", profile.Name)
	assert.GreaterOrEqual(t, profile.StepCount(), 1)
}

func TestFlowRecorder_StartTwiceFails(t *testing.T) {
	recorder := NewFlowRecorder()
	_, err := recorder.StartRecording("A", "https://a.test", FlowCustom)
	require.NoError(t, err)

	_, err = recorder.StartRecording("B", "https://b.test", FlowCustom)
	require.Error(t, err)
}

func TestFlowRecorder_PauseWithoutRecordingFails(t *testing.T) {
	recorder := NewFlowRecorder()
	require.Error(t, recorder.Pause())
}

func TestFlowRecorder_RecordClickAddsStepAndEvent(t *testing.T) {
	recorder := NewFlowRecorder()
	_, err := recorder.StartRecording("Test", "https://example.com", FlowLogin)
	require.NoError(t, err)

	element := ElementInfo{TagName: "BUTTON", ID: "submit-btn"}
	require.NoError(t, recorder.RecordClick(element, 100, 200))

	assert.Equal(t, 1, recorder.EventCount())

	profile, err := recorder.StopRecording()
	require.NoError(t, err)
	assert.Equal(t, 2, profile.StepCount()) // navigation + click
	assert.Equal(t, StepClick, profile.Steps[1].Kind)
}

func TestFlowRecorder_RecordInputMasksPasswordValue(t *testing.T) {
	recorder := NewFlowRecorder()
	_, err := recorder.StartRecording("Test", "https://example.com", FlowLogin)
	require.NoError(t, err)

	element := ElementInfo{TagName: "INPUT", InputType: "password", Name: "password"}
	require.NoError(t, recorder.RecordInput(element, "hunter2"))

	profile, err := recorder.StopRecording()
	require.NoError(t, err)
	require.Len(t, profile.Steps, 2)
	assert.Equal(t, "***MASKED***", profile.Steps[1].Value)
	assert.True(t, profile.Steps[1].IsMasked)
}

func TestFlowRecorder_RecordNavigationSkipsConsecutiveDuplicate(t *testing.T) {
	recorder := NewFlowRecorder()
	_, err := recorder.StartRecording("Test", "https://example.com", FlowCustom)
	require.NoError(t, err)

	require.NoError(t, recorder.RecordNavigation("https://example.com"))
	require.NoError(t, recorder.RecordNavigation("https://example.com/page2"))

	profile, err := recorder.StopRecording()
	require.NoError(t, err)
	// initial navigate + dedup-skipped duplicate + page2 navigate
	assert.Equal(t, 2, profile.StepCount())
}

func TestFlowRecorder_IsPasswordFieldDetection(t *testing.T) {
	recorder := NewFlowRecorder()

	assert.True(t, recorder.isPasswordField(ElementInfo{TagName: "INPUT", InputType: "password"}))
	assert.False(t, recorder.isPasswordField(ElementInfo{TagName: "INPUT", InputType: "text"}))
	assert.True(t, recorder.isPasswordField(ElementInfo{TagName: "INPUT", Name: "user_password"}))
	assert.True(t, recorder.isPasswordField(ElementInfo{TagName: "INPUT", ID: "pwd-confirm"}))
}

func TestFlowRecorder_NoOpWhenNotRecording(t *testing.T) {
	recorder := NewFlowRecorder()
	require.NoError(t, recorder.RecordClick(ElementInfo{TagName: "div"}, 0, 0))
	assert.Equal(t, 0, recorder.EventCount())
}
