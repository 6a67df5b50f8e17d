package roadmap

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Priority of a plan step.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority falls back to medium for anything it does not recognise.
func ParsePriority(s string) Priority {
	switch Priority(strings.ToLower(strings.TrimSpace(s))) {
	case PriorityLow:
		return PriorityLow
	case PriorityHigh:
		return PriorityHigh
	}
	return PriorityMedium
}

// Step is one actionable item within a phase.
type Step struct {
	Description    string     `json:"description"`
	EstimatedHours float64    `json:"estimated_hours"`
	CostEstimate   float64    `json:"cost_estimate"`
	Priority       Priority   `json:"priority"`
	Completed      bool       `json:"completed"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// Phase is an ordered group of steps. Index is the phase's position in the plan.
type Phase struct {
	Index         int      `json:"index"`
	Name          string   `json:"name"`
	DurationWeeks int      `json:"duration_weeks"`
	Objectives    []string `json:"objectives"`
	Steps         []Step   `json:"steps"`
}

// Action is a suggested first move shown after onboarding.
type Action struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	EstimatedTime string `json:"estimated_time"`
	Route         string `json:"route"`
}

// Plan is a generated multi-phase roadmap.
type Plan struct {
	ID                 uuid.UUID `json:"id"`
	UserID             string    `json:"user_id"`
	Title              string    `json:"title"`
	Summary            string    `json:"summary,omitempty"`
	Phases             []Phase   `json:"phases"`
	ProgressPercentage int       `json:"progress_percentage"`
	SuggestedActions   []Action  `json:"suggested_actions,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// SuggestionContext is what the action generator is told about the user.
type SuggestionContext struct {
	UserID             string   `json:"user_id"`
	InvestmentGoal     string   `json:"investment_goal,omitempty"`
	RiskTolerance      string   `json:"risk_tolerance,omitempty"`
	TargetIndustries   []string `json:"target_industries,omitempty"`
	PlanTitle          string   `json:"plan_title,omitempty"`
	FirstPhase         string   `json:"first_phase,omitempty"`
	ProgressPercentage int      `json:"progress_percentage"`
}

// Clone returns a deep copy of p.
func (p *Plan) Clone() *Plan {
	if p == nil {
		return nil
	}
	out := *p
	out.Phases = make([]Phase, len(p.Phases))
	for i, ph := range p.Phases {
		ph.Objectives = append([]string(nil), ph.Objectives...)
		steps := make([]Step, len(ph.Steps))
		for j, st := range ph.Steps {
			if st.CompletedAt != nil {
				at := *st.CompletedAt
				st.CompletedAt = &at
			}
			steps[j] = st
		}
		ph.Steps = steps
		out.Phases[i] = ph
	}
	out.SuggestedActions = append([]Action(nil), p.SuggestedActions...)
	return &out
}

// StepCounts returns the completed and total step counts across all phases.
func (p *Plan) StepCounts() (completed, total int) {
	for _, ph := range p.Phases {
		for _, st := range ph.Steps {
			total++
			if st.Completed {
				completed++
			}
		}
	}
	return completed, total
}
