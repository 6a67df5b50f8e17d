package preferences

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dealscout/investor-portal/portal-backend/internal/auth"
)

func newTestRouter(repo Repository) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api/v1", auth.WithIdentity(auth.Identity{UserID: "user-1", SessionID: "s"}))
	NewHandler(NewService(repo, nil, zap.NewNop()), zap.NewNop()).RegisterRoutes(api)
	return r
}

func doRequest(r http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandlerPatchMergesCoercedBody(t *testing.T) {
	repo := new(MockRepository)
	r := newTestRouter(repo)
	existing := &PreferenceRecord{UserID: "user-1", TargetIndustries: []string{"fintech"}}

	repo.On("Get", mock.Anything, "user-1").Return(existing, nil)
	repo.On("Update", mock.Anything, "user-1", mock.MatchedBy(func(p Patch) bool {
		return p.HasCompletedOnboarding == nil &&
			assert.ObjectsAreEqual([]string{"EU"}, p.GeoPreferences) &&
			p.NotificationFrequency != nil && *p.NotificationFrequency == FrequencyWeekly &&
			p.TargetIndustries == nil
	})).Return(&PreferenceRecord{
		UserID:                "user-1",
		TargetIndustries:      []string{"fintech"},
		GeoPreferences:        []string{"EU"},
		NotificationFrequency: FrequencyWeekly,
	}, nil).Once()

	rec := doRequest(r, http.MethodPatch, "/api/v1/preferences",
		[]byte(`{"geoPreferences":["EU"],"notification_frequency":"weekly","has_completed_onboarding":true}`))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp preferencesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"EU"}, resp.Record.GeoPreferences)
	assert.False(t, resp.Record.HasCompletedOnboarding)
	assert.Equal(t, Categories{CategoryDealStructures}, resp.Incomplete)
	repo.AssertExpectations(t)
}

func TestHandlerPatchRejectsBadInput(t *testing.T) {
	repo := new(MockRepository)
	r := newTestRouter(repo)

	rec := doRequest(r, http.MethodPatch, "/api/v1/preferences", []byte(`{"notificationFrequency":"hourly"}`))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = doRequest(r, http.MethodPatch, "/api/v1/preferences", []byte(`{"has_completed_onboarding":true}`))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "the onboarding flag alone is an empty patch")

	rec = doRequest(r, http.MethodPatch, "/api/v1/preferences", []byte(`{"geo_preferences":`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	repo.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestHandlerCompleteness(t *testing.T) {
	repo := new(MockRepository)
	r := newTestRouter(repo)

	repo.On("Get", mock.Anything, "user-1").Return(nil, nil).Once()
	rec := doRequest(r, http.MethodGet, "/api/v1/preferences/completeness", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Incomplete Categories `json:"incomplete"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, AllCategories, []SetupCategory(body.Incomplete))

	repo.On("Get", mock.Anything, "user-1").Return(nil, errors.New("connection refused")).Once()
	rec = doRequest(r, http.MethodGet, "/api/v1/preferences/completeness", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
