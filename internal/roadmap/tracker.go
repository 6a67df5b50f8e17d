package roadmap

import (
	"math"
	"strings"
	"time"

	"dealscout/investor-portal/portal-backend/internal/apperr"
)

// Progress is round(100 * completed / total) over every phase. An empty plan is 0.
func Progress(p *Plan) int {
	completed, total := p.StepCounts()
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(completed) / float64(total)))
}

// ToggleStep returns a copy of plan with one step's completed flag set and the
// progress recomputed over the whole plan. The input plan is not modified.
// Setting a step to the state it already has yields an identical plan.
func ToggleStep(plan *Plan, phaseIndex, stepIndex int, completed bool, now time.Time) (*Plan, error) {
	if plan == nil {
		return nil, apperr.Validation("plan is required")
	}
	if phaseIndex < 0 || phaseIndex >= len(plan.Phases) {
		return nil, apperr.Validation("phase %d out of range", phaseIndex)
	}
	if stepIndex < 0 || stepIndex >= len(plan.Phases[phaseIndex].Steps) {
		return nil, apperr.Validation("step %d out of range in phase %d", stepIndex, phaseIndex)
	}

	out := plan.Clone()
	step := &out.Phases[phaseIndex].Steps[stepIndex]
	if step.Completed != completed {
		step.Completed = completed
		if completed {
			at := now.UTC()
			step.CompletedAt = &at
		} else {
			step.CompletedAt = nil
		}
		out.UpdatedAt = now.UTC()
	}
	out.ProgressPercentage = Progress(out)
	return out, nil
}

// Normalize prepares a freshly generated plan: phases are renumbered in order,
// unknown priorities become medium, completion is cleared and progress reset.
func Normalize(plan *Plan) *Plan {
	out := plan.Clone()
	if out == nil {
		return nil
	}
	out.Title = strings.TrimSpace(out.Title)
	for i := range out.Phases {
		ph := &out.Phases[i]
		ph.Index = i
		ph.Name = strings.TrimSpace(ph.Name)
		if ph.DurationWeeks < 0 {
			ph.DurationWeeks = 0
		}
		for j := range ph.Steps {
			st := &ph.Steps[j]
			st.Priority = ParsePriority(string(st.Priority))
			st.Completed = false
			st.CompletedAt = nil
			if st.EstimatedHours < 0 {
				st.EstimatedHours = 0
			}
			if st.CostEstimate < 0 {
				st.CostEstimate = 0
			}
		}
	}
	out.ProgressPercentage = Progress(out)
	return out
}
