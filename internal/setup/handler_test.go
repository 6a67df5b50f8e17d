package setup

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dealscout/investor-portal/portal-backend/internal/auth"
	"dealscout/investor-portal/portal-backend/internal/preferences"
)

func newTestRouter(t *testing.T, store PreferenceStore, id auth.Identity) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api/v1", auth.WithIdentity(id))
	NewHandler(newTestService(t, store), zap.NewNop()).RegisterRoutes(api)
	return r
}

func doJSON(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandlerPromptToModalFlow(t *testing.T) {
	store := new(MockPreferenceStore)
	store.On("Get", mock.Anything, "user-1").Return(nil, nil)
	r := newTestRouter(t, store, auth.Identity{UserID: "user-1", SessionID: "s"})

	rec := doJSON(r, http.MethodPost, "/api/v1/setup/trigger", gin.H{"feature": "market-map"})
	require.Equal(t, http.StatusOK, rec.Code)
	var view View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, preferences.CategoryGeoPreferences, view.Prompt.Category)
	assert.True(t, view.WizardRequired)

	rec = doJSON(r, http.MethodPost, "/api/v1/setup/prompt/accept", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var snap Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, ModalOpen, snap.Modal.Status)
	assert.Equal(t, PromptClosed, snap.Prompt.Status)

	rec = doJSON(r, http.MethodPut, "/api/v1/setup/modal/draft", gin.H{"category": "geo_preferences", "values": []string{"EU"}})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(r, http.MethodPost, "/api/v1/setup/modal/open", gin.H{"category": "industries"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandlerRejectsUnknownCategory(t *testing.T) {
	r := newTestRouter(t, new(MockPreferenceStore), auth.Identity{UserID: "user-1", SessionID: "s"})

	rec := doJSON(r, http.MethodPost, "/api/v1/setup/modal/open", gin.H{"category": "budget"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = doJSON(r, http.MethodPost, "/api/v1/setup/trigger", gin.H{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerRejectsUnknownFeature(t *testing.T) {
	store := new(MockPreferenceStore)
	r := newTestRouter(t, store, auth.Identity{UserID: "user-1", SessionID: "s"})

	rec := doJSON(r, http.MethodPost, "/api/v1/setup/trigger", gin.H{"feature": "portfolio"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "portfolio")
	store.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestHandlerCompleteValidation(t *testing.T) {
	r := newTestRouter(t, new(MockPreferenceStore), auth.Identity{UserID: "user-1", SessionID: "s"})

	rec := doJSON(r, http.MethodPost, "/api/v1/setup/modal/open", gin.H{"category": "industries"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(r, http.MethodPost, "/api/v1/setup/modal/complete", gin.H{"category": "industries", "values": []string{}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_FAILED")
}
