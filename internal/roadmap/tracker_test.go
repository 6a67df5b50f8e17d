package roadmap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealscout/investor-portal/portal-backend/internal/apperr"
)

var toggleTime = time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

// twoPhasePlan has 3 steps in phase 0 (one done) and 1 step in phase 1.
func twoPhasePlan() *Plan {
	return &Plan{
		UserID: "user-1",
		Title:  "Side income roadmap",
		Phases: []Phase{
			{
				Index: 0, Name: "Foundations", DurationWeeks: 4,
				Steps: []Step{
					{Description: "Define thesis", Priority: PriorityHigh, Completed: true},
					{Description: "Pick sectors", Priority: PriorityMedium},
					{Description: "Set budget", Priority: PriorityLow},
				},
			},
			{
				Index: 1, Name: "First deals", DurationWeeks: 8,
				Steps: []Step{{Description: "Review three deals", Priority: PriorityHigh}},
			},
		},
	}
}

func TestProgressAcrossAllPhases(t *testing.T) {
	assert.Equal(t, 25, Progress(twoPhasePlan()))
	assert.Equal(t, 0, Progress(&Plan{}))
	assert.Equal(t, 0, Progress(&Plan{Phases: []Phase{{Name: "empty"}}}))
}

func TestToggleStepRecomputesWholePlan(t *testing.T) {
	plan := twoPhasePlan()

	out, err := ToggleStep(plan, 1, 0, true, toggleTime)
	require.NoError(t, err)

	assert.Equal(t, 50, out.ProgressPercentage)
	assert.True(t, out.Phases[1].Steps[0].Completed)
	assert.Equal(t, toggleTime, *out.Phases[1].Steps[0].CompletedAt)

	// The input is untouched.
	assert.False(t, plan.Phases[1].Steps[0].Completed)
	assert.Equal(t, 0, plan.ProgressPercentage)
}

func TestToggleStepIsIdempotent(t *testing.T) {
	once, err := ToggleStep(twoPhasePlan(), 0, 1, true, toggleTime)
	require.NoError(t, err)
	twice, err := ToggleStep(once, 0, 1, true, toggleTime.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, once.ProgressPercentage, twice.ProgressPercentage)
	assert.Equal(t, once, twice)
}

func TestToggleStepUncomplete(t *testing.T) {
	out, err := ToggleStep(twoPhasePlan(), 0, 0, false, toggleTime)
	require.NoError(t, err)
	assert.Equal(t, 0, out.ProgressPercentage)
	assert.Nil(t, out.Phases[0].Steps[0].CompletedAt)
}

func TestToggleStepAnyOrder(t *testing.T) {
	plan := twoPhasePlan()
	var err error
	for _, pos := range [][2]int{{1, 0}, {0, 2}, {0, 1}} {
		plan, err = ToggleStep(plan, pos[0], pos[1], true, toggleTime)
		require.NoError(t, err)
	}
	assert.Equal(t, 100, plan.ProgressPercentage)
}

func TestToggleStepRounds(t *testing.T) {
	plan := &Plan{Phases: []Phase{{Steps: make([]Step, 3)}}}
	out, err := ToggleStep(plan, 0, 0, true, toggleTime)
	require.NoError(t, err)
	assert.Equal(t, 33, out.ProgressPercentage)

	out, err = ToggleStep(out, 0, 1, true, toggleTime)
	require.NoError(t, err)
	assert.Equal(t, 67, out.ProgressPercentage)
}

func TestToggleStepOutOfRange(t *testing.T) {
	for _, pos := range [][2]int{{-1, 0}, {2, 0}, {0, 3}, {1, -1}} {
		_, err := ToggleStep(twoPhasePlan(), pos[0], pos[1], true, toggleTime)
		assert.True(t, apperr.Is(err, apperr.CodeValidation), "%v", pos)
	}
	_, err := ToggleStep(nil, 0, 0, true, toggleTime)
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
}

func TestNormalize(t *testing.T) {
	in := &Plan{
		Title: "  Plan ",
		Phases: []Phase{
			{Index: 7, Name: " Learn ", DurationWeeks: -2, Steps: []Step{{Priority: "URGENT", Completed: true, EstimatedHours: -1}}},
			{Index: 3, Steps: []Step{{Priority: "High"}}},
		},
	}
	out := Normalize(in)

	assert.Equal(t, "Plan", out.Title)
	assert.Equal(t, 0, out.Phases[0].Index)
	assert.Equal(t, 1, out.Phases[1].Index)
	assert.Equal(t, "Learn", out.Phases[0].Name)
	assert.Equal(t, 0, out.Phases[0].DurationWeeks)
	assert.Equal(t, PriorityMedium, out.Phases[0].Steps[0].Priority)
	assert.Equal(t, PriorityHigh, out.Phases[1].Steps[0].Priority)
	assert.False(t, out.Phases[0].Steps[0].Completed)
	assert.Equal(t, 0.0, out.Phases[0].Steps[0].EstimatedHours)
	assert.Equal(t, 0, out.ProgressPercentage)
	assert.True(t, in.Phases[0].Steps[0].Completed)
	assert.Nil(t, Normalize(nil))
}
