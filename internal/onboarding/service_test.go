package onboarding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dealscout/investor-portal/portal-backend/internal/apperr"
	"dealscout/investor-portal/portal-backend/internal/preferences"
	"dealscout/investor-portal/portal-backend/internal/realtime"
	"dealscout/investor-portal/portal-backend/internal/roadmap"
	"dealscout/investor-portal/portal-backend/internal/session"
)

// MockNotifier is a mock implementation of Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyUser(userID, eventType string, payload any) {
	m.Called(userID, eventType, payload)
}

func newTestService(t *testing.T, f *fixture, notifier Notifier) *Service {
	t.Helper()
	runs := session.NewCache[*Wizard](time.Hour, time.Hour)
	t.Cleanup(runs.Stop)
	return NewService(f.prefs, f.gen, f.plans, notifier, runs, nil, zap.NewNop())
}

// MockSetupSessions is a mock implementation of SetupSessions
type MockSetupSessions struct {
	mock.Mock
}

func (m *MockSetupSessions) DeleteByPrefix(prefix string) {
	m.Called(prefix)
}

// driveToReview walks a started run to Review with valid answers.
func driveToReview(t *testing.T, svc *Service) {
	t.Helper()
	_, err := svc.Next("user-1")
	require.NoError(t, err)
	_, err = svc.SetAnswers("user-1", AnswersUpdate{InvestmentGoal: strPtr("side_income"), RiskTolerance: strPtr("moderate")})
	require.NoError(t, err)
	_, err = svc.Next("user-1")
	require.NoError(t, err)
	_, err = svc.SetAnswers("user-1", AnswersUpdate{TargetIndustries: []string{"Technology"}})
	require.NoError(t, err)
	_, err = svc.Next("user-1")
	require.NoError(t, err)
}

func TestServiceStartPrefillsFromRecord(t *testing.T) {
	f := newFixture()
	svc := newTestService(t, f, nil)
	ctx := context.Background()

	f.prefs.On("Get", ctx, "user-1").Return(&preferences.PreferenceRecord{
		UserID:           "user-1",
		TargetIndustries: []string{"Healthcare"},
		GeoPreferences:   []string{"EU"},
	}, nil).Once()

	st, err := svc.Start(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, StepWelcome, st.StepIndex)
	assert.Equal(t, []string{"Healthcare"}, st.Answers.TargetIndustries)
	assert.Equal(t, []string{"EU"}, st.Answers.GeoPreferences)

	again, err := svc.Start(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, st.RunID, again.RunID, "an open run is resumed")
	f.prefs.AssertNumberOfCalls(t, "Get", 1)
}

func TestServiceStartRejectsOnboardedUser(t *testing.T) {
	f := newFixture()
	svc := newTestService(t, f, nil)
	ctx := context.Background()

	f.prefs.On("Get", ctx, "user-1").Return(onboardedRecord(), nil)
	f.plans.On("Current", ctx, "user-1").Return(samplePlan(), nil)

	_, err := svc.Start(ctx, "user-1")
	assert.True(t, apperr.Is(err, apperr.CodeConflict))
}

func TestServiceStartSurfacesPlanLookupFailure(t *testing.T) {
	f := newFixture()
	svc := newTestService(t, f, nil)
	ctx := context.Background()

	f.prefs.On("Get", ctx, "user-1").Return(onboardedRecord(), nil)
	f.plans.On("Current", ctx, "user-1").Return(nil, apperr.Persistence("load plan", errors.New("connection reset")))

	_, err := svc.Start(ctx, "user-1")
	assert.True(t, apperr.Is(err, apperr.CodePersistence))
	_, err = svc.State("user-1")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestServiceRestartAfterLostRunRegeneratesPlan(t *testing.T) {
	f := newFixture()
	svc := newTestService(t, f, nil)
	ctx := context.Background()

	f.prefs.On("Get", ctx, "user-1").Return(nil, nil).Once()
	f.prefs.On("Merge", mock.Anything, "user-1", mock.Anything).Return(onboardedRecord(), nil).Once()
	f.gen.On("GeneratePlan", mock.Anything, mock.Anything).
		Return(nil, apperr.Generation("generate plan", errors.New("provider down"))).Once()

	_, err := svc.Start(ctx, "user-1")
	require.NoError(t, err)
	driveToReview(t, svc)
	_, err = svc.Submit(ctx, "user-1")
	require.Error(t, err)
	_, err = svc.Close("user-1")
	require.NoError(t, err)

	// The record now says onboarded but no plan was ever saved.
	f.prefs.On("Get", ctx, "user-1").Return(onboardedRecord(), nil).Once()
	f.plans.On("Current", ctx, "user-1").Return(nil, apperr.NotFound("no roadmap for user")).Once()
	f.gen.On("GeneratePlan", mock.Anything, mock.Anything).Return(samplePlan(), nil).Once()
	f.gen.On("SuggestActions", mock.Anything, mock.Anything).Return([]roadmap.Action{{Title: "Browse listings"}}, nil).Once()
	f.plans.On("Save", mock.Anything, mock.Anything).Return(samplePlan(), nil)

	st, err := svc.Start(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, StepReview, st.StepIndex)
	assert.Equal(t, PhaseFailed, st.AsyncPhase)
	assert.Equal(t, PhaseGeneratingPlan, st.FailedPhase)
	assert.Equal(t, "side_income", st.Answers.InvestmentGoal)

	st, err = svc.Retry(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, st.Terminal)
	assert.NotNil(t, st.GeneratedPlan)
	f.prefs.AssertNumberOfCalls(t, "Merge", 1)
}

func TestServiceWithoutRunIsNotFound(t *testing.T) {
	svc := newTestService(t, newFixture(), nil)

	_, err := svc.State("user-1")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
	_, err = svc.Submit(context.Background(), "user-1")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestServiceFullRunPublishesPhases(t *testing.T) {
	f := newFixture()
	notifier := new(MockNotifier)
	svc := newTestService(t, f, notifier)
	ctx := context.Background()

	f.prefs.On("Get", ctx, "user-1").Return(nil, nil)
	f.prefs.On("Merge", mock.Anything, "user-1", mock.Anything).Return(onboardedRecord(), nil)
	f.gen.On("GeneratePlan", mock.Anything, mock.Anything).Return(samplePlan(), nil)
	f.gen.On("SuggestActions", mock.Anything, mock.Anything).Return([]roadmap.Action{{Title: "Browse listings"}}, nil)
	f.plans.On("Save", mock.Anything, mock.Anything).Return(samplePlan(), nil)
	notifier.On("NotifyUser", "user-1", realtime.EventWizardPhase, mock.AnythingOfType("onboarding.PhaseEvent")).Return()

	_, err := svc.Start(ctx, "user-1")
	require.NoError(t, err)
	driveToReview(t, svc)

	st, err := svc.Submit(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, st.Terminal)
	notifier.AssertNumberOfCalls(t, "NotifyUser", 4)

	_, err = svc.Finish("user-1")
	require.NoError(t, err)
	_, err = svc.State("user-1")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound), "finished runs are forgotten")
}

func TestServiceCloseDiscardsRun(t *testing.T) {
	f := newFixture()
	svc := newTestService(t, f, nil)
	ctx := context.Background()

	f.prefs.On("Get", ctx, "user-1").Return(nil, nil)

	first, err := svc.Start(ctx, "user-1")
	require.NoError(t, err)
	_, err = svc.Close("user-1")
	require.NoError(t, err)

	second, err := svc.Start(ctx, "user-1")
	require.NoError(t, err)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestServiceFinishDropsSetupSessions(t *testing.T) {
	f := newFixture()
	sessions := new(MockSetupSessions)
	runs := session.NewCache[*Wizard](time.Hour, time.Hour)
	t.Cleanup(runs.Stop)
	svc := NewService(f.prefs, f.gen, f.plans, nil, runs, sessions, zap.NewNop())
	ctx := context.Background()

	f.prefs.On("Get", ctx, "user-1").Return(nil, nil)
	f.prefs.On("Merge", mock.Anything, "user-1", mock.Anything).Return(onboardedRecord(), nil)
	f.gen.On("GeneratePlan", mock.Anything, mock.Anything).Return(samplePlan(), nil)
	f.gen.On("SuggestActions", mock.Anything, mock.Anything).Return([]roadmap.Action{}, nil)
	f.plans.On("Save", mock.Anything, mock.Anything).Return(samplePlan(), nil)
	sessions.On("DeleteByPrefix", "user-1:").Return().Once()

	_, err := svc.Start(ctx, "user-1")
	require.NoError(t, err)
	_, err = svc.Finish("user-1")
	assert.True(t, apperr.Is(err, apperr.CodeConflict))
	sessions.AssertNotCalled(t, "DeleteByPrefix", mock.Anything)

	driveToReview(t, svc)
	_, err = svc.Submit(ctx, "user-1")
	require.NoError(t, err)
	_, err = svc.Finish("user-1")
	require.NoError(t, err)
	sessions.AssertExpectations(t)
}
