package onboarding

import (
	"strings"

	"github.com/google/uuid"

	"dealscout/investor-portal/portal-backend/internal/apperr"
	"dealscout/investor-portal/portal-backend/internal/preferences"
	"dealscout/investor-portal/portal-backend/internal/roadmap"
)

// Step is the wizard's position.
type Step int

const (
	StepWelcome Step = iota
	StepGoals
	StepInvestmentPreferences
	StepReview
	StepGeneratedPlan
)

// LastStep is the terminal step.
const LastStep = StepGeneratedPlan

func (s Step) String() string {
	switch s {
	case StepWelcome:
		return "welcome"
	case StepGoals:
		return "goals"
	case StepInvestmentPreferences:
		return "investment_preferences"
	case StepReview:
		return "review"
	case StepGeneratedPlan:
		return "generated_plan"
	}
	return "unknown"
}

// AsyncPhase tracks the Review -> GeneratedPlan chain.
type AsyncPhase string

const (
	PhaseIdle              AsyncPhase = "idle"
	PhasePersisting        AsyncPhase = "persisting"
	PhaseGeneratingPlan    AsyncPhase = "generating_plan"
	PhaseGeneratingActions AsyncPhase = "generating_actions"
	PhaseReady             AsyncPhase = "ready"
	PhaseFailed            AsyncPhase = "failed"
)

// InFlight reports whether a remote call of the chain is running.
func (p AsyncPhase) InFlight() bool {
	switch p {
	case PhasePersisting, PhaseGeneratingPlan, PhaseGeneratingActions:
		return true
	}
	return false
}

// Answers are the wizard's collected form values.
type Answers struct {
	InvestmentGoal          string   `json:"investment_goal,omitempty"`
	RiskTolerance           string   `json:"risk_tolerance,omitempty"`
	TimeCommitment          string   `json:"time_commitment,omitempty"`
	BudgetRange             string   `json:"budget_range,omitempty"`
	TargetIndustries        []string `json:"target_industries,omitempty"`
	PreferredDealStructures []string `json:"preferred_deal_structures,omitempty"`
	GeoPreferences          []string `json:"geo_preferences,omitempty"`
	NotificationFrequency   string   `json:"notification_frequency,omitempty"`
}

// AnswersUpdate changes the supplied answers only; nil means unchanged.
type AnswersUpdate struct {
	InvestmentGoal          *string  `json:"investment_goal"`
	RiskTolerance           *string  `json:"risk_tolerance"`
	TimeCommitment          *string  `json:"time_commitment"`
	BudgetRange             *string  `json:"budget_range"`
	TargetIndustries        []string `json:"target_industries"`
	PreferredDealStructures []string `json:"preferred_deal_structures"`
	GeoPreferences          []string `json:"geo_preferences"`
	NotificationFrequency   *string  `json:"notification_frequency"`
}

func (u AnswersUpdate) apply(a Answers) (Answers, error) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&a.InvestmentGoal, u.InvestmentGoal)
	set(&a.RiskTolerance, u.RiskTolerance)
	set(&a.TimeCommitment, u.TimeCommitment)
	set(&a.BudgetRange, u.BudgetRange)
	if u.TargetIndustries != nil {
		a.TargetIndustries = cleanSet(u.TargetIndustries)
	}
	if u.PreferredDealStructures != nil {
		a.PreferredDealStructures = cleanSet(u.PreferredDealStructures)
	}
	if u.GeoPreferences != nil {
		a.GeoPreferences = cleanSet(u.GeoPreferences)
	}
	if u.NotificationFrequency != nil {
		raw := strings.TrimSpace(*u.NotificationFrequency)
		if raw == "" {
			a.NotificationFrequency = ""
		} else {
			f, ok := preferences.ParseFrequency(raw)
			if !ok {
				return a, apperr.Validation("unknown notification frequency %q", raw)
			}
			a.NotificationFrequency = string(f)
		}
	}
	return a, nil
}

func (a Answers) validateGoals() error {
	if a.InvestmentGoal == "" {
		return apperr.Validation("choose an investment goal")
	}
	if a.RiskTolerance == "" {
		return apperr.Validation("choose a risk tolerance")
	}
	return nil
}

func (a Answers) validatePreferences() error {
	if len(a.TargetIndustries) == 0 {
		return apperr.Validation("select at least one industry")
	}
	return nil
}

// Patch is the merge-write the wizard persists. Blank answers are left out so
// values set earlier through setup modals survive.
func (a Answers) Patch() preferences.Patch {
	done := true
	p := preferences.Patch{HasCompletedOnboarding: &done}
	str := func(s string) *string {
		if s == "" {
			return nil
		}
		return &s
	}
	p.InvestmentGoal = str(a.InvestmentGoal)
	p.RiskTolerance = str(a.RiskTolerance)
	p.TimeCommitment = str(a.TimeCommitment)
	p.BudgetRange = str(a.BudgetRange)
	if len(a.TargetIndustries) > 0 {
		p.TargetIndustries = append([]string(nil), a.TargetIndustries...)
	}
	if len(a.PreferredDealStructures) > 0 {
		p.PreferredDealStructures = append([]string(nil), a.PreferredDealStructures...)
	}
	if len(a.GeoPreferences) > 0 {
		p.GeoPreferences = append([]string(nil), a.GeoPreferences...)
	}
	if a.NotificationFrequency != "" {
		f := preferences.NotificationFrequency(a.NotificationFrequency)
		p.NotificationFrequency = &f
	}
	return p
}

// answersFromRecord prefills a run with values the user already has.
func answersFromRecord(rec *preferences.PreferenceRecord) Answers {
	if rec == nil {
		return Answers{}
	}
	return Answers{
		InvestmentGoal:          rec.InvestmentGoal,
		RiskTolerance:           rec.RiskTolerance,
		TimeCommitment:          rec.TimeCommitment,
		BudgetRange:             rec.BudgetRange,
		TargetIndustries:        append([]string(nil), rec.TargetIndustries...),
		PreferredDealStructures: append([]string(nil), rec.PreferredDealStructures...),
		GeoPreferences:          append([]string(nil), rec.GeoPreferences...),
		NotificationFrequency:   string(rec.NotificationFrequency),
	}
}

func (a Answers) clone() Answers {
	a.TargetIndustries = append([]string(nil), a.TargetIndustries...)
	a.PreferredDealStructures = append([]string(nil), a.PreferredDealStructures...)
	a.GeoPreferences = append([]string(nil), a.GeoPreferences...)
	return a
}

func cleanSet(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// State is a snapshot of a wizard run.
type State struct {
	RunID                  uuid.UUID        `json:"run_id"`
	UserID                 string           `json:"user_id"`
	StepIndex              Step             `json:"step_index"`
	StepName               string           `json:"step_name"`
	Answers                Answers          `json:"answers"`
	AsyncPhase             AsyncPhase       `json:"async_phase"`
	FailedPhase            AsyncPhase       `json:"failed_phase,omitempty"`
	LastError              string           `json:"last_error,omitempty"`
	GeneratedPlan          *roadmap.Plan    `json:"generated_plan,omitempty"`
	SuggestedActions       []roadmap.Action `json:"suggested_actions"`
	HasCompletedOnboarding bool             `json:"has_completed_onboarding"`
	CanGoBack              bool             `json:"can_go_back"`
	Terminal               bool             `json:"terminal"`
	Closed                 bool             `json:"closed"`
}
