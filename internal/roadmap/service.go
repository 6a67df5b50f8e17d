package roadmap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dealscout/investor-portal/portal-backend/internal/apperr"
	"dealscout/investor-portal/portal-backend/internal/realtime"
	"dealscout/investor-portal/portal-backend/internal/roadmap/export"
)

// Notifier pushes an event to a user's live connections.
type Notifier interface {
	NotifyUser(userID, eventType string, payload any)
}

// ProgressEvent is published after a step toggle changes a plan.
type ProgressEvent struct {
	PlanID             uuid.UUID `json:"plan_id"`
	PhaseIndex         int       `json:"phase_index"`
	StepIndex          int       `json:"step_index"`
	Completed          bool      `json:"completed"`
	ProgressPercentage int       `json:"progress_percentage"`
}

// Service persists plans and tracks step completion.
type Service struct {
	repo     Repository
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time

	// toggles serialises read-modify-write cycles on plans in this process.
	toggles sync.Mutex
}

// NewService creates a new roadmap service
func NewService(repo Repository, notifier Notifier, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Save persists plan, assigning an id and timestamps when missing.
func (s *Service) Save(ctx context.Context, plan *Plan) (*Plan, error) {
	if plan == nil || plan.UserID == "" {
		return nil, apperr.Validation("plan owner is required")
	}
	out := plan.Clone()
	now := s.now().UTC()
	if out.ID == uuid.Nil {
		out.ID = uuid.New()
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = now
	}
	out.UpdatedAt = now
	out.ProgressPercentage = Progress(out)

	if err := s.repo.Save(ctx, out); err != nil {
		s.logger.Warn("Plan write failed", zap.String("plan_id", out.ID.String()), zap.Error(err))
		return nil, apperr.Persistence("save plan", err)
	}
	s.logger.Info("Plan saved",
		zap.String("plan_id", out.ID.String()),
		zap.String("user_id", out.UserID),
		zap.Int("phases", len(out.Phases)))
	return out, nil
}

// Current returns the user's latest plan.
func (s *Service) Current(ctx context.Context, userID string) (*Plan, error) {
	plan, err := s.repo.GetCurrent(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFound("no roadmap for user")
	}
	if err != nil {
		return nil, apperr.Persistence("load plan", err)
	}
	return plan, nil
}

// Get returns a plan owned by userID.
func (s *Service) Get(ctx context.Context, userID string, planID uuid.UUID) (*Plan, error) {
	plan, err := s.repo.Get(ctx, planID)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFound("plan %s not found", planID)
	}
	if err != nil {
		return nil, apperr.Persistence("load plan", err)
	}
	if plan.UserID != userID {
		return nil, apperr.NotFound("plan %s not found", planID)
	}
	return plan, nil
}

// ToggleStep sets one step's completed flag and persists the plan. A toggle
// that changes nothing is not written.
func (s *Service) ToggleStep(ctx context.Context, userID string, planID uuid.UUID, phaseIndex, stepIndex int, completed bool) (*Plan, error) {
	s.toggles.Lock()
	defer s.toggles.Unlock()

	plan, err := s.Get(ctx, userID, planID)
	if err != nil {
		return nil, err
	}
	updated, err := ToggleStep(plan, phaseIndex, stepIndex, completed, s.now())
	if err != nil {
		return nil, err
	}
	if plan.Phases[phaseIndex].Steps[stepIndex].Completed == completed && updated.ProgressPercentage == plan.ProgressPercentage {
		return updated, nil
	}

	if err := s.repo.Save(ctx, updated); err != nil {
		s.logger.Warn("Plan write failed", zap.String("plan_id", planID.String()), zap.Error(err))
		return nil, apperr.Persistence("save plan", err)
	}

	s.logger.Info("Roadmap step toggled",
		zap.String("plan_id", planID.String()),
		zap.Int("phase", phaseIndex),
		zap.Int("step", stepIndex),
		zap.Bool("completed", completed),
		zap.Int("progress", updated.ProgressPercentage))

	if s.notifier != nil {
		s.notifier.NotifyUser(userID, realtime.EventRoadmapProgress, ProgressEvent{
			PlanID:             planID,
			PhaseIndex:         phaseIndex,
			StepIndex:          stepIndex,
			Completed:          completed,
			ProgressPercentage: updated.ProgressPercentage,
		})
	}
	return updated, nil
}

// Export renders the plan in the requested format.
func (s *Service) Export(ctx context.Context, userID string, planID uuid.UUID, format export.Format) ([]byte, error) {
	plan, err := s.Get(ctx, userID, planID)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := export.Write(&buf, format, PlanTable(plan, s.now())); err != nil {
		return nil, fmt.Errorf("export plan %s: %w", planID, err)
	}
	return buf.Bytes(), nil
}

// PlanTable flattens a plan into one row per step.
func PlanTable(plan *Plan, generatedAt time.Time) export.Table {
	completed, total := plan.StepCounts()
	t := export.Table{
		Title:    plan.Title,
		Subtitle: fmt.Sprintf("%d%% complete (%d of %d steps)", plan.ProgressPercentage, completed, total),
		Columns: []export.Column{
			{Key: "phase", Label: "Phase"},
			{Key: "weeks", Label: "Weeks"},
			{Key: "step", Label: "Step"},
			{Key: "priority", Label: "Priority"},
			{Key: "hours", Label: "Est. hours"},
			{Key: "cost", Label: "Est. cost"},
			{Key: "completed", Label: "Done"},
			{Key: "completed_at", Label: "Completed on"},
		},
		Summary: []export.SummaryItem{
			{Label: "Progress", Value: fmt.Sprintf("%d%%", plan.ProgressPercentage)},
			{Label: "Phases", Value: len(plan.Phases)},
		},
		GeneratedAt: generatedAt,
	}
	if t.Title == "" {
		t.Title = "Investment roadmap"
	}
	for _, ph := range plan.Phases {
		for _, st := range ph.Steps {
			t.Rows = append(t.Rows, map[string]interface{}{
				"phase":        ph.Name,
				"weeks":        ph.DurationWeeks,
				"step":         st.Description,
				"priority":     string(st.Priority),
				"hours":        st.EstimatedHours,
				"cost":         st.CostEstimate,
				"completed":    st.Completed,
				"completed_at": st.CompletedAt,
			})
		}
	}
	return t
}
