package onboarding

import (
	"context"
	"reflect"
	"sync"

	"github.com/google/uuid"

	"dealscout/investor-portal/portal-backend/internal/apperr"
	"dealscout/investor-portal/portal-backend/internal/preferences"
	"dealscout/investor-portal/portal-backend/internal/roadmap"
	"dealscout/investor-portal/portal-backend/pkg/workflows"
)

// PreferenceWriter merge-writes a user's preference record.
type PreferenceWriter interface {
	Merge(ctx context.Context, userID string, patch preferences.Patch) (*preferences.PreferenceRecord, error)
}

// Generator produces plans and suggested actions.
type Generator interface {
	GeneratePlan(ctx context.Context, rec *preferences.PreferenceRecord) (*roadmap.Plan, error)
	SuggestActions(ctx context.Context, sc roadmap.SuggestionContext) ([]roadmap.Action, error)
}

// PlanStore persists generated plans.
type PlanStore interface {
	Save(ctx context.Context, plan *roadmap.Plan) (*roadmap.Plan, error)
}

// Deps are the collaborators the Review -> GeneratedPlan chain calls.
type Deps struct {
	Preferences PreferenceWriter
	Generator   Generator
	Plans       PlanStore
}

var steps = workflows.NewStateMachine(map[Step][]Step{
	StepWelcome:               {StepGoals},
	StepGoals:                 {StepWelcome, StepInvestmentPreferences},
	StepInvestmentPreferences: {StepGoals, StepReview},
	StepReview:                {StepInvestmentPreferences, StepGeneratedPlan},
	StepGeneratedPlan:         {},
})

// Wizard is one onboarding run. Remote calls are made without holding the
// lock; the async phase is what keeps a second submit out.
type Wizard struct {
	mu sync.Mutex

	runID   uuid.UUID
	userID  string
	step    Step
	answers Answers

	phase       AsyncPhase
	failedPhase AsyncPhase
	lastErr     string

	// Results of the current attempt. Each is only set once its phase succeeded.
	persisted *preferences.PreferenceRecord
	plan      *roadmap.Plan
	actions   []roadmap.Action

	closed  bool
	onPhase func(State)
}

// NewWizard starts a run at Welcome with the given prefilled answers. onPhase,
// when set, is called after every async phase change.
func NewWizard(userID string, prefill Answers, onPhase func(State)) *Wizard {
	return &Wizard{
		runID:   uuid.New(),
		userID:  userID,
		step:    StepWelcome,
		answers: prefill.clone(),
		phase:   PhaseIdle,
		onPhase: onPhase,
	}
}

// ResumeWizard rebuilds a run whose preferences were persisted but whose plan
// was never generated. It sits on Review in the failed phase so Retry goes
// straight to plan generation.
func ResumeWizard(userID string, rec *preferences.PreferenceRecord, onPhase func(State)) *Wizard {
	return &Wizard{
		runID:       uuid.New(),
		userID:      userID,
		step:        StepReview,
		answers:     answersFromRecord(rec),
		phase:       PhaseFailed,
		failedPhase: PhaseGeneratingPlan,
		lastErr:     "plan generation did not complete",
		persisted:   rec,
		onPhase:     onPhase,
	}
}

// State returns a snapshot of the run.
func (w *Wizard) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stateLocked()
}

func (w *Wizard) stateLocked() State {
	st := State{
		RunID:            w.runID,
		UserID:           w.userID,
		StepIndex:        w.step,
		StepName:         w.step.String(),
		Answers:          w.answers.clone(),
		AsyncPhase:       w.phase,
		FailedPhase:      w.failedPhase,
		LastError:        w.lastErr,
		GeneratedPlan:    w.plan.Clone(),
		SuggestedActions: append([]roadmap.Action{}, w.actions...),
		CanGoBack:        w.canGoBackLocked(),
		Terminal:         steps.IsTerminal(w.step) && w.phase == PhaseReady,
		Closed:           w.closed,
	}
	if w.persisted != nil {
		st.HasCompletedOnboarding = w.persisted.HasCompletedOnboarding
	}
	return st
}

func (w *Wizard) canGoBackLocked() bool {
	if w.closed || w.phase.InFlight() || w.step == StepGeneratedPlan {
		return false
	}
	return steps.CanTransition(w.step, w.step-1)
}

func (w *Wizard) guardLocked() error {
	if w.closed {
		return apperr.Conflict("onboarding run is closed")
	}
	if w.phase.InFlight() {
		return apperr.Conflict("onboarding is %s", w.phase)
	}
	return nil
}

// UpdateAnswers changes form values. Changing anything after preferences were
// persisted starts a fresh attempt, so the next submit persists again.
func (w *Wizard) UpdateAnswers(u AnswersUpdate) (State, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.guardLocked(); err != nil {
		return w.stateLocked(), err
	}
	if w.step == StepGeneratedPlan {
		return w.stateLocked(), apperr.Conflict("onboarding is already complete")
	}
	next, err := u.apply(w.answers)
	if err != nil {
		return w.stateLocked(), err
	}
	if !reflect.DeepEqual(next, w.answers) {
		w.answers = next
		w.resetAttemptLocked()
	}
	return w.stateLocked(), nil
}

func (w *Wizard) resetAttemptLocked() {
	w.persisted = nil
	w.plan = nil
	w.actions = nil
	w.phase = PhaseIdle
	w.failedPhase = ""
	w.lastErr = ""
}

// Next moves forward one step after validating the current one. Review only
// advances through Submit.
func (w *Wizard) Next() (State, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.guardLocked(); err != nil {
		return w.stateLocked(), err
	}
	switch w.step {
	case StepGoals:
		if err := w.answers.validateGoals(); err != nil {
			return w.stateLocked(), err
		}
	case StepInvestmentPreferences:
		if err := w.answers.validatePreferences(); err != nil {
			return w.stateLocked(), err
		}
	case StepReview:
		return w.stateLocked(), apperr.Validation("submit the review to generate your plan")
	case StepGeneratedPlan:
		return w.stateLocked(), apperr.Conflict("onboarding is already complete")
	}

	next, err := steps.Transition(w.step, w.step+1)
	if err != nil {
		return w.stateLocked(), apperr.Conflict("%v", err)
	}
	w.step = next
	return w.stateLocked(), nil
}

// Back moves back one step. Answers are kept.
func (w *Wizard) Back() (State, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.guardLocked(); err != nil {
		return w.stateLocked(), err
	}
	if !w.canGoBackLocked() {
		return w.stateLocked(), apperr.Conflict("cannot go back from %s", w.step)
	}
	w.step, _ = steps.Transition(w.step, w.step-1)
	return w.stateLocked(), nil
}

// Submit runs Review -> GeneratedPlan: persist, then generate the plan, then
// suggest actions. A failure leaves the run on Review in the failed phase;
// calling Submit again resumes at the phase that failed. The chain is not
// cancelled when ctx is.
func (w *Wizard) Submit(ctx context.Context, deps Deps) (State, error) {
	ctx = context.WithoutCancel(ctx)

	w.mu.Lock()
	if err := w.submittableLocked(); err != nil {
		st := w.stateLocked()
		w.mu.Unlock()
		return st, err
	}
	phase := w.resumePhaseLocked()
	w.phase = phase
	w.failedPhase = ""
	w.lastErr = ""
	st := w.stateLocked()
	w.mu.Unlock()
	w.emit(st)

	for {
		var err error
		switch phase {
		case PhasePersisting:
			err = w.persist(ctx, deps)
		case PhaseGeneratingPlan:
			err = w.generatePlan(ctx, deps)
		case PhaseGeneratingActions:
			err = w.generateActions(ctx, deps)
		}
		if err != nil {
			return w.fail(phase, err), err
		}
		if phase = nextPhase(phase); phase == PhaseReady {
			break
		}
		w.setPhase(phase)
	}

	w.mu.Lock()
	w.phase = PhaseReady
	w.step, _ = steps.Transition(w.step, StepGeneratedPlan)
	st = w.stateLocked()
	w.mu.Unlock()
	w.emit(st)
	return st, nil
}

// Retry resubmits after a failure.
func (w *Wizard) Retry(ctx context.Context, deps Deps) (State, error) {
	w.mu.Lock()
	phase := w.phase
	st := w.stateLocked()
	w.mu.Unlock()
	if phase != PhaseFailed {
		return st, apperr.Conflict("nothing to retry")
	}
	return w.Submit(ctx, deps)
}

func (w *Wizard) submittableLocked() error {
	if err := w.guardLocked(); err != nil {
		return err
	}
	if w.step != StepReview {
		return apperr.Conflict("submit is only available on review, not %s", w.step)
	}
	// Answers that were already persisted unchanged are not checked again.
	if w.persisted != nil {
		return nil
	}
	if err := w.answers.validateGoals(); err != nil {
		return err
	}
	return w.answers.validatePreferences()
}

// resumePhaseLocked is the first phase whose result this attempt lacks.
func (w *Wizard) resumePhaseLocked() AsyncPhase {
	switch {
	case w.persisted == nil:
		return PhasePersisting
	case w.plan == nil:
		return PhaseGeneratingPlan
	}
	return PhaseGeneratingActions
}

func nextPhase(p AsyncPhase) AsyncPhase {
	switch p {
	case PhasePersisting:
		return PhaseGeneratingPlan
	case PhaseGeneratingPlan:
		return PhaseGeneratingActions
	}
	return PhaseReady
}

func (w *Wizard) setPhase(p AsyncPhase) {
	w.mu.Lock()
	w.phase = p
	st := w.stateLocked()
	w.mu.Unlock()
	w.emit(st)
}

func (w *Wizard) fail(p AsyncPhase, err error) State {
	w.mu.Lock()
	w.phase = PhaseFailed
	w.failedPhase = p
	w.lastErr = err.Error()
	st := w.stateLocked()
	w.mu.Unlock()
	w.emit(st)
	return st
}

func (w *Wizard) persist(ctx context.Context, deps Deps) error {
	w.mu.Lock()
	patch := w.answers.Patch()
	w.mu.Unlock()

	rec, err := deps.Preferences.Merge(ctx, w.userID, patch)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.persisted = rec
	w.mu.Unlock()
	return nil
}

func (w *Wizard) generatePlan(ctx context.Context, deps Deps) error {
	w.mu.Lock()
	rec := w.persisted
	w.mu.Unlock()

	plan, err := deps.Generator.GeneratePlan(ctx, rec)
	if err != nil {
		return err
	}
	plan.UserID = w.userID
	saved, err := deps.Plans.Save(ctx, plan)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.plan = saved
	w.mu.Unlock()
	return nil
}

func (w *Wizard) generateActions(ctx context.Context, deps Deps) error {
	w.mu.Lock()
	plan := w.plan.Clone()
	sc := roadmap.SuggestionContext{
		UserID:             w.userID,
		InvestmentGoal:     w.answers.InvestmentGoal,
		RiskTolerance:      w.answers.RiskTolerance,
		TargetIndustries:   append([]string(nil), w.answers.TargetIndustries...),
		PlanTitle:          plan.Title,
		ProgressPercentage: plan.ProgressPercentage,
	}
	if len(plan.Phases) > 0 {
		sc.FirstPhase = plan.Phases[0].Name
	}
	w.mu.Unlock()

	actions, err := deps.Generator.SuggestActions(ctx, sc)
	if err != nil {
		return err
	}
	plan.SuggestedActions = actions
	saved, err := deps.Plans.Save(ctx, plan)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.plan = saved
	w.actions = append([]roadmap.Action(nil), actions...)
	w.mu.Unlock()
	return nil
}

func (w *Wizard) emit(st State) {
	if w.onPhase != nil {
		w.onPhase(st)
	}
}

// Finish closes a completed run.
func (w *Wizard) Finish() (State, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return w.stateLocked(), apperr.Conflict("onboarding run is closed")
	}
	if w.step != LastStep || w.phase != PhaseReady {
		return w.stateLocked(), apperr.Conflict("onboarding is not complete")
	}
	w.closed = true
	return w.stateLocked(), nil
}

// Close abandons the run and discards its answers. Anything already persisted
// by a submit stays persisted.
func (w *Wizard) Close() (State, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.phase.InFlight() {
		return w.stateLocked(), apperr.Conflict("onboarding is %s", w.phase)
	}
	w.closed = true
	w.answers = Answers{}
	return w.stateLocked(), nil
}
