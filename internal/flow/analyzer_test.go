package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regaipserdar/proxxy-sub001/internal/errors"
)

func TestAnalyzeElement_PrefersDataTestIDOverEverything(t *testing.T) {
	analyzer := DefaultSelectorAnalyzer()
	selector, err := analyzer.AnalyzeElement(ElementInfo{
		TagName:    "button",
		ID:         "submit",
		DataTestID: "login-submit",
		ClassList:  []string{"btn", "btn-primary"},
	})
	require.NoError(t, err)
	assert.Equal(t, "[data-testid='login-submit']", selector.Value)
	assert.Equal(t, uint8(95), selector.Priority)
}

func TestAnalyzeElement_SkipsBlacklistedIDAndFallsBackToName(t *testing.T) {
	analyzer := DefaultSelectorAnalyzer()
	selector, err := analyzer.AnalyzeElement(ElementInfo{
		TagName: "input",
		ID:      "form-control",
		Name:    "email",
	})
	require.NoError(t, err)
	assert.Equal(t, "[name='email']", selector.Value)
}

func TestAnalyzeElement_DynamicIDIsRejected(t *testing.T) {
	analyzer := DefaultSelectorAnalyzer()
	selector, err := analyzer.AnalyzeElement(ElementInfo{
		TagName: "div",
		ID:      "a1b2c3d4e5f6",
		Name:    "stable-name",
	})
	require.NoError(t, err)
	assert.Equal(t, "[name='stable-name']", selector.Value)
}

func TestAnalyzeElement_NoViableCandidateReturnsSelectorGenerationError(t *testing.T) {
	analyzer := DefaultSelectorAnalyzer()
	_, err := analyzer.AnalyzeElement(ElementInfo{TagName: "div"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.KindSelectorGeneration))
}

func TestAnalyzeElement_ClassListFiltersUtilityClassesAndCapsAtTwo(t *testing.T) {
	analyzer := DefaultSelectorAnalyzer()
	selector, err := analyzer.AnalyzeElement(ElementInfo{
		TagName:   "div",
		ClassList: []string{"flex", "p-4", "card", "highlighted", "md:flex"},
	})
	require.NoError(t, err)
	assert.Equal(t, "div.card.highlighted", selector.Value)
}

func TestAnalyzeElement_AlternativesAreCappedAndOrderedByPriority(t *testing.T) {
	analyzer := DefaultSelectorAnalyzer()
	selector, err := analyzer.AnalyzeElement(ElementInfo{
		TagName:     "input",
		DataTestID:  "email-field",
		Name:        "email",
		AriaLabel:   "Email address",
		Placeholder: "you@example.com",
		InputType:   "email",
	})
	require.NoError(t, err)
	assert.Equal(t, "[data-testid='email-field']", selector.Value)
	require.LessOrEqual(t, len(selector.Alternatives), 3)
	for i := 1; i < len(selector.Alternatives); i++ {
		assert.GreaterOrEqual(t, selector.Alternatives[i-1].Priority, selector.Alternatives[i].Priority)
	}
}

func TestSelectorBlacklist_MatchesExactPrefixAndRegexForms(t *testing.T) {
	bl := NewSelectorBlacklist()
	assert.True(t, bl.IsBlacklisted("flex"))
	assert.True(t, bl.IsBlacklisted("hover:bg-blue-500"))
	assert.True(t, bl.IsBlacklisted("col-6"))
	assert.True(t, bl.IsBlacklisted("col-md-4"))
	assert.False(t, bl.IsBlacklisted("login-button"))
}

func TestLooksDynamic_MatchesGeneratedClassPatterns(t *testing.T) {
	assert.True(t, looksDynamic("css-1a2b3c4"))
	assert.True(t, looksDynamic("sc-bdVaJa"))
	assert.True(t, looksDynamic("emotion-123"))
	assert.True(t, looksDynamic("v-deadbeef"))
	assert.False(t, looksDynamic("login-form"))
}

func TestCreateValidationResult_DerivesInteractableFromVisibleAndValid(t *testing.T) {
	valid := CreateValidationResult(true, 1, true)
	assert.True(t, valid.IsInteractable)

	hidden := CreateValidationResult(true, 1, false)
	assert.False(t, hidden.IsInteractable)

	invalid := CreateValidationResult(false, 0, true)
	assert.False(t, invalid.IsInteractable)
}
