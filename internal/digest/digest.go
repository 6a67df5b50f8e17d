package digest

import (
	"time"

	"github.com/google/uuid"

	"dealscout/investor-portal/portal-backend/internal/preferences"
	"dealscout/investor-portal/portal-backend/internal/roadmap"
)

// Digest is the periodic summary pushed to users who asked for batched updates.
type Digest struct {
	Frequency              preferences.NotificationFrequency `json:"frequency"`
	Incomplete             preferences.Categories            `json:"incomplete"`
	HasCompletedOnboarding bool                              `json:"has_completed_onboarding"`
	Roadmap                *RoadmapSummary                   `json:"roadmap,omitempty"`
	GeneratedAt            time.Time                         `json:"generated_at"`
}

// RoadmapSummary is the digest's view of the current plan.
type RoadmapSummary struct {
	PlanID             uuid.UUID `json:"plan_id"`
	Title              string    `json:"title"`
	ProgressPercentage int       `json:"progress_percentage"`
	CompletedSteps     int       `json:"completed_steps"`
	TotalSteps         int       `json:"total_steps"`
	NextStep           string    `json:"next_step,omitempty"`
}

// Build assembles a digest. plan may be nil. The second result is false when
// there is nothing worth sending: setup is complete and no plan is in progress.
func Build(rec *preferences.PreferenceRecord, plan *roadmap.Plan, now time.Time) (Digest, bool) {
	d := Digest{
		Incomplete:  preferences.Evaluate(rec),
		GeneratedAt: now.UTC(),
	}
	if rec != nil {
		d.Frequency = rec.NotificationFrequency
		d.HasCompletedOnboarding = rec.HasCompletedOnboarding
	}
	if plan != nil {
		done, total := plan.StepCounts()
		d.Roadmap = &RoadmapSummary{
			PlanID:             plan.ID,
			Title:              plan.Title,
			ProgressPercentage: roadmap.Progress(plan),
			CompletedSteps:     done,
			TotalSteps:         total,
			NextStep:           nextStep(plan),
		}
	}

	planOpen := d.Roadmap != nil && d.Roadmap.CompletedSteps < d.Roadmap.TotalSteps
	return d, len(d.Incomplete) > 0 || planOpen
}

func nextStep(plan *roadmap.Plan) string {
	for _, ph := range plan.Phases {
		for _, st := range ph.Steps {
			if !st.Completed {
				return st.Description
			}
		}
	}
	return ""
}
