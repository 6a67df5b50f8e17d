package onboarding

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dealscout/investor-portal/portal-backend/internal/apperr"
	"dealscout/investor-portal/portal-backend/internal/preferences"
	"dealscout/investor-portal/portal-backend/internal/realtime"
	"dealscout/investor-portal/portal-backend/internal/roadmap"
	"dealscout/investor-portal/portal-backend/internal/session"
)

// PreferenceStore reads and merge-writes preference records.
type PreferenceStore interface {
	PreferenceWriter
	Get(ctx context.Context, userID string) (*preferences.PreferenceRecord, error)
}

// PlanRepository persists plans and finds a user's latest one.
type PlanRepository interface {
	PlanStore
	Current(ctx context.Context, userID string) (*roadmap.Plan, error)
}

// SetupSessions drops cached setup state by key prefix.
type SetupSessions interface {
	DeleteByPrefix(prefix string)
}

// Notifier pushes an event to a user's live connections.
type Notifier interface {
	NotifyUser(userID, eventType string, payload any)
}

// PhaseEvent is published whenever a run's async phase changes.
type PhaseEvent struct {
	RunID       uuid.UUID  `json:"run_id"`
	StepName    string     `json:"step_name"`
	AsyncPhase  AsyncPhase `json:"async_phase"`
	FailedPhase AsyncPhase `json:"failed_phase,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
}

// Service keeps one wizard run per user.
type Service struct {
	prefs     PreferenceStore
	generator Generator
	plans     PlanRepository
	notifier  Notifier
	runs      *session.Cache[*Wizard]
	setup     SetupSessions
	logger    *zap.Logger
}

// NewService creates a new onboarding service
func NewService(prefs PreferenceStore, generator Generator, plans PlanRepository, notifier Notifier, runs *session.Cache[*Wizard], setup SetupSessions, logger *zap.Logger) *Service {
	return &Service{
		prefs:     prefs,
		generator: generator,
		plans:     plans,
		notifier:  notifier,
		runs:      runs,
		setup:     setup,
		logger:    logger,
	}
}

// Start returns the user's open run or begins a new one prefilled from their
// record. Users who already finished onboarding cannot start again, unless
// their plan was never generated; they get a run that retries generation.
func (s *Service) Start(ctx context.Context, userID string) (State, error) {
	if w, ok := s.runs.Get(userID); ok && !w.State().Closed {
		return w.State(), nil
	}
	rec, err := s.prefs.Get(ctx, userID)
	if err != nil {
		return State{}, err
	}
	if rec != nil && rec.HasCompletedOnboarding {
		return s.resume(ctx, userID, rec)
	}

	w := NewWizard(userID, answersFromRecord(rec), s.publish)
	s.runs.Set(userID, w)
	st := w.State()
	s.logger.Info("Onboarding started", zap.String("user_id", userID), zap.String("run_id", st.RunID.String()))
	return st, nil
}

func (s *Service) resume(ctx context.Context, userID string, rec *preferences.PreferenceRecord) (State, error) {
	_, err := s.plans.Current(ctx, userID)
	if err == nil {
		return State{}, apperr.Conflict("onboarding already completed")
	}
	if !apperr.Is(err, apperr.CodeNotFound) {
		return State{}, err
	}

	w := ResumeWizard(userID, rec, s.publish)
	s.runs.Set(userID, w)
	st := w.State()
	s.logger.Info("Onboarding resumed without plan", zap.String("user_id", userID), zap.String("run_id", st.RunID.String()))
	return st, nil
}

// State returns the user's current run.
func (s *Service) State(userID string) (State, error) {
	w, err := s.run(userID)
	if err != nil {
		return State{}, err
	}
	return w.State(), nil
}

// SetAnswers updates the run's answers.
func (s *Service) SetAnswers(userID string, u AnswersUpdate) (State, error) {
	w, err := s.run(userID)
	if err != nil {
		return State{}, err
	}
	return w.UpdateAnswers(u)
}

// Next advances the run one step.
func (s *Service) Next(userID string) (State, error) {
	w, err := s.run(userID)
	if err != nil {
		return State{}, err
	}
	return w.Next()
}

// Back moves the run back one step.
func (s *Service) Back(userID string) (State, error) {
	w, err := s.run(userID)
	if err != nil {
		return State{}, err
	}
	return w.Back()
}

// Submit runs the persist and generate chain from Review.
func (s *Service) Submit(ctx context.Context, userID string) (State, error) {
	w, err := s.run(userID)
	if err != nil {
		return State{}, err
	}
	st, err := w.Submit(ctx, s.deps())
	s.logResult(st, err)
	return st, err
}

// Retry resumes a failed chain at the phase that failed.
func (s *Service) Retry(ctx context.Context, userID string) (State, error) {
	w, err := s.run(userID)
	if err != nil {
		return State{}, err
	}
	st, err := w.Retry(ctx, s.deps())
	s.logResult(st, err)
	return st, err
}

// Finish closes a completed run and forgets it. The user's setup sessions
// are dropped so their next view is built from the fresh record.
func (s *Service) Finish(userID string) (State, error) {
	w, err := s.run(userID)
	if err != nil {
		return State{}, err
	}
	st, err := w.Finish()
	if err != nil {
		return st, err
	}
	s.runs.Delete(userID)
	if s.setup != nil {
		s.setup.DeleteByPrefix(session.Key(userID, ""))
	}
	return st, nil
}

// Close abandons the run.
func (s *Service) Close(userID string) (State, error) {
	w, err := s.run(userID)
	if err != nil {
		return State{}, err
	}
	st, err := w.Close()
	if err == nil {
		s.runs.Delete(userID)
		s.logger.Info("Onboarding closed", zap.String("user_id", userID), zap.String("step", st.StepName))
	}
	return st, err
}

func (s *Service) run(userID string) (*Wizard, error) {
	w, ok := s.runs.Get(userID)
	if !ok {
		return nil, apperr.NotFound("no onboarding run for user")
	}
	return w, nil
}

func (s *Service) deps() Deps {
	return Deps{Preferences: s.prefs, Generator: s.generator, Plans: s.plans}
}

func (s *Service) publish(st State) {
	if s.notifier == nil {
		return
	}
	s.notifier.NotifyUser(st.UserID, realtime.EventWizardPhase, PhaseEvent{
		RunID:       st.RunID,
		StepName:    st.StepName,
		AsyncPhase:  st.AsyncPhase,
		FailedPhase: st.FailedPhase,
		LastError:   st.LastError,
	})
}

func (s *Service) logResult(st State, err error) {
	if err == nil {
		s.logger.Info("Onboarding completed",
			zap.String("user_id", st.UserID),
			zap.Int("actions", len(st.SuggestedActions)))
		return
	}
	if st.AsyncPhase == PhaseFailed {
		s.logger.Warn("Onboarding submit failed",
			zap.String("user_id", st.UserID),
			zap.String("phase", string(st.FailedPhase)),
			zap.Error(err))
	}
}
