package setup

import (
	"context"

	"go.uber.org/zap"

	"dealscout/investor-portal/portal-backend/internal/apperr"
	"dealscout/investor-portal/portal-backend/internal/auth"
	"dealscout/investor-portal/portal-backend/internal/preferences"
	"dealscout/investor-portal/portal-backend/internal/session"
)

// PreferenceStore is the slice of preferences.Service the setup flow needs.
type PreferenceStore interface {
	Get(ctx context.Context, userID string) (*preferences.PreferenceRecord, error)
	Merge(ctx context.Context, userID string, patch preferences.Patch) (*preferences.PreferenceRecord, error)
}

// View is a session's setup state plus the categories still incomplete.
type View struct {
	Snapshot
	Incomplete     preferences.Categories `json:"incomplete"`
	WizardRequired bool                   `json:"wizard_required"`
}

// Service resolves a coordinator per session and performs modal writes.
type Service struct {
	prefs    PreferenceStore
	sessions *session.Cache[*Coordinator]
	logger   *zap.Logger
}

// NewService creates a new setup service
func NewService(prefs PreferenceStore, sessions *session.Cache[*Coordinator], logger *zap.Logger) *Service {
	return &Service{
		prefs:    prefs,
		sessions: sessions,
		logger:   logger,
	}
}

// Coordinator returns the session's coordinator. An unseen session id gets a
// fresh one, which is how suppression is cleared for a new session.
func (s *Service) Coordinator(id auth.Identity) *Coordinator {
	return s.sessions.GetOrCreate(session.Key(id.UserID, id.SessionID), NewCoordinator)
}

// State returns the session's state with a fresh completeness evaluation.
func (s *Service) State(ctx context.Context, id auth.Identity) (View, error) {
	return s.view(ctx, id, s.Coordinator(id).Snapshot())
}

// Trigger runs the prompt scheduler for the feature the user just entered.
func (s *Service) Trigger(ctx context.Context, id auth.Identity, feature string) (View, error) {
	if !KnownFeature(feature) {
		return View{}, apperr.Validation("unknown feature %q", feature)
	}
	rec, err := s.prefs.Get(ctx, id.UserID)
	if err != nil {
		return View{}, err
	}
	incomplete := preferences.Evaluate(rec)
	coord := s.Coordinator(id)
	prompt := coord.MaybeTrigger(feature, incomplete)
	if prompt.Status == PromptShowing {
		s.logger.Debug("Setup prompt shown",
			zap.String("user_id", id.UserID),
			zap.String("feature", NormalizeFeature(feature)),
			zap.String("category", string(prompt.Category)))
	}
	return viewOf(coord.Snapshot(), rec, incomplete), nil
}

// Dismiss handles "Later" on the showing prompt.
func (s *Service) Dismiss(id auth.Identity) Snapshot {
	coord := s.Coordinator(id)
	coord.Dismiss()
	return coord.Snapshot()
}

// Accept handles "Set up now" on the showing prompt.
func (s *Service) Accept(id auth.Identity) (Snapshot, error) {
	coord := s.Coordinator(id)
	_, err := coord.Accept()
	return coord.Snapshot(), err
}

// Open opens a modal directly, e.g. from a settings link.
func (s *Service) Open(id auth.Identity, cat preferences.SetupCategory) (Snapshot, error) {
	coord := s.Coordinator(id)
	_, err := coord.Open(cat)
	return coord.Snapshot(), err
}

// Draft stores the open modal's unsaved input.
func (s *Service) Draft(id auth.Identity, cat preferences.SetupCategory, values []string) (Snapshot, error) {
	coord := s.Coordinator(id)
	_, err := coord.SetDraft(cat, values)
	return coord.Snapshot(), err
}

// Skip closes the modal without writing.
func (s *Service) Skip(id auth.Identity) Snapshot {
	coord := s.Coordinator(id)
	coord.Close()
	return coord.Snapshot()
}

// Complete merge-writes the modal's category, closes the modal and returns the
// re-evaluated completeness. On failure the modal stays open with its input.
func (s *Service) Complete(ctx context.Context, id auth.Identity, cat preferences.SetupCategory, values []string) (View, error) {
	coord := s.Coordinator(id)
	patch, err := coord.beginComplete(cat, values)
	if err != nil {
		snap := coord.Snapshot()
		return View{Snapshot: snap}, err
	}

	rec, err := s.prefs.Merge(ctx, id.UserID, patch)
	coord.finishComplete(err)
	if err != nil {
		s.logger.Warn("Setup modal write failed",
			zap.String("user_id", id.UserID),
			zap.String("category", string(cat)),
			zap.Error(err))
		return View{Snapshot: coord.Snapshot()}, err
	}

	s.logger.Info("Setup category completed", zap.String("user_id", id.UserID), zap.String("category", string(cat)))
	return viewOf(coord.Snapshot(), rec, preferences.Evaluate(rec)), nil
}

func (s *Service) view(ctx context.Context, id auth.Identity, snap Snapshot) (View, error) {
	rec, err := s.prefs.Get(ctx, id.UserID)
	if err != nil {
		return View{}, err
	}
	return viewOf(snap, rec, preferences.Evaluate(rec)), nil
}

func viewOf(snap Snapshot, rec *preferences.PreferenceRecord, incomplete preferences.Categories) View {
	return View{
		Snapshot:       snap,
		Incomplete:     incomplete,
		WizardRequired: rec == nil || !rec.HasCompletedOnboarding,
	}
}
