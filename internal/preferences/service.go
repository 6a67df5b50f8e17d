package preferences

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dealscout/investor-portal/portal-backend/internal/apperr"
	"dealscout/investor-portal/portal-backend/internal/realtime"
)

// Notifier pushes an event to a user's live connections.
type Notifier interface {
	NotifyUser(userID, eventType string, payload any)
}

// CompletenessEvent is published after every successful preference write.
type CompletenessEvent struct {
	Incomplete             Categories `json:"incomplete"`
	HasCompletedOnboarding bool       `json:"has_completed_onboarding"`
}

// Service provides preference reads and merge-writes.
type Service struct {
	repo     Repository
	notifier Notifier
	logger   *zap.Logger
}

// NewService creates a new preferences service
func NewService(repo Repository, notifier Notifier, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		notifier: notifier,
		logger:   logger,
	}
}

// Get returns the user's record, or nil when none exists yet.
func (s *Service) Get(ctx context.Context, userID string) (*PreferenceRecord, error) {
	rec, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, apperr.Persistence("load preferences", err)
	}
	return rec, nil
}

// Completeness returns the user's incomplete setup categories.
func (s *Service) Completeness(ctx context.Context, userID string) (Categories, error) {
	rec, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return Evaluate(rec), nil
}

// Merge writes the supplied fields into the user's record, creating the
// record on first write. Fields absent from the patch are left untouched.
func (s *Service) Merge(ctx context.Context, userID string, patch Patch) (*PreferenceRecord, error) {
	if userID == "" {
		return nil, apperr.Validation("user id is required")
	}
	patch, err := patch.Normalize()
	if err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return nil, apperr.Validation("no preference fields supplied")
	}

	existing, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, apperr.Persistence("load preferences", err)
	}

	var rec *PreferenceRecord
	if existing == nil {
		rec, err = s.create(ctx, userID, patch)
		if errors.Is(err, ErrAlreadyExists) {
			// Lost a create race with another writer; merge into theirs.
			existing, err = s.repo.Get(ctx, userID)
			if err == nil && existing == nil {
				err = errors.New("record vanished after conflicting create")
			}
			if err == nil {
				rec, err = s.repo.Update(ctx, userID, patch)
			}
		}
	} else {
		rec, err = s.repo.Update(ctx, userID, patch)
	}
	if err != nil {
		s.logger.Warn("Preference write failed", zap.String("user_id", userID), zap.Error(err))
		return nil, apperr.Persistence("save preferences", err)
	}

	incomplete := Evaluate(rec)
	s.logger.Info("Preferences updated",
		zap.String("user_id", userID),
		zap.Strings("incomplete", categoryNames(incomplete)),
		zap.Bool("onboarded", rec.HasCompletedOnboarding))

	if s.notifier != nil {
		s.notifier.NotifyUser(userID, realtime.EventCompleteness, CompletenessEvent{
			Incomplete:             incomplete,
			HasCompletedOnboarding: rec.HasCompletedOnboarding,
		})
	}
	return rec, nil
}

func (s *Service) create(ctx context.Context, userID string, patch Patch) (*PreferenceRecord, error) {
	now := time.Now().UTC()
	rec := &PreferenceRecord{
		ID:        uuid.New(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	patch.Apply(rec)
	return s.repo.Create(ctx, rec)
}

// ListByFrequency returns all records with the given notification frequency.
func (s *Service) ListByFrequency(ctx context.Context, freq NotificationFrequency) ([]*PreferenceRecord, error) {
	recs, err := s.repo.ListByFrequency(ctx, freq)
	if err != nil {
		return nil, apperr.Persistence("list preferences", err)
	}
	return recs, nil
}

func categoryNames(c Categories) []string {
	out := make([]string, len(c))
	for i, cat := range c {
		out[i] = string(cat)
	}
	return out
}
