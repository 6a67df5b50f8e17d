// Package generation calls the hosted plan and suggested-action generators.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"dealscout/investor-portal/portal-backend/internal/apperr"
	"dealscout/investor-portal/portal-backend/internal/preferences"
	"dealscout/investor-portal/portal-backend/internal/roadmap"
)

const (
	planPath    = "/functions/generateRoadmap"
	actionsPath = "/functions/suggestActions"

	maxResponseBytes = 4 << 20
)

// Config configures the generation client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client is an HTTP JSON client for the generation functions. Calls are not
// retried; a failed call is reported once as a GenerationError.
type Client struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new generation client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type planRequest struct {
	UserID                  string   `json:"user_id"`
	InvestmentGoal          string   `json:"investment_goal,omitempty"`
	RiskTolerance           string   `json:"risk_tolerance,omitempty"`
	TimeCommitment          string   `json:"time_commitment,omitempty"`
	BudgetRange             string   `json:"budget_range,omitempty"`
	TargetIndustries        []string `json:"target_industries"`
	PreferredDealStructures []string `json:"preferred_deal_structures"`
	GeoPreferences          []string `json:"geo_preferences"`
}

type planResponse struct {
	Title   string          `json:"title"`
	Summary string          `json:"summary"`
	Phases  []roadmap.Phase `json:"phases"`
}

type actionsResponse struct {
	Actions []roadmap.Action `json:"actions"`
}

// GeneratePlan requests a roadmap for the persisted preferences. The returned
// plan is normalised and owned by rec.UserID but not yet saved.
func (c *Client) GeneratePlan(ctx context.Context, rec *preferences.PreferenceRecord) (*roadmap.Plan, error) {
	if rec == nil {
		return nil, apperr.Validation("preferences are required to generate a plan")
	}
	req := planRequest{
		UserID:                  rec.UserID,
		InvestmentGoal:          rec.InvestmentGoal,
		RiskTolerance:           rec.RiskTolerance,
		TimeCommitment:          rec.TimeCommitment,
		BudgetRange:             rec.BudgetRange,
		TargetIndustries:        rec.TargetIndustries,
		PreferredDealStructures: rec.PreferredDealStructures,
		GeoPreferences:          rec.GeoPreferences,
	}

	var resp planResponse
	if err := c.call(ctx, planPath, req, &resp); err != nil {
		return nil, apperr.Generation("generate plan", err)
	}
	if len(resp.Phases) == 0 {
		return nil, apperr.Generation("generate plan", errors.New("generator returned no phases"))
	}

	plan := roadmap.Normalize(&roadmap.Plan{
		UserID:  rec.UserID,
		Title:   resp.Title,
		Summary: resp.Summary,
		Phases:  resp.Phases,
	})
	return plan, nil
}

// SuggestActions requests suggested first actions for the user.
func (c *Client) SuggestActions(ctx context.Context, sc roadmap.SuggestionContext) ([]roadmap.Action, error) {
	var resp actionsResponse
	if err := c.call(ctx, actionsPath, sc, &resp); err != nil {
		return nil, apperr.Generation("suggest actions", err)
	}
	actions := make([]roadmap.Action, 0, len(resp.Actions))
	for _, a := range resp.Actions {
		if strings.TrimSpace(a.Title) == "" {
			continue
		}
		actions = append(actions, a)
	}
	return actions, nil
}

// call posts payload to path and decodes the JSON reply into out. Replies may
// be bare or wrapped as {"data": ...}.
func (c *Client) call(ctx context.Context, path string, payload, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Generation request failed", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("Generation returned non-success status",
			zap.String("path", path),
			zap.Int("status_code", resp.StatusCode))
		return fmt.Errorf("%s returned status %d", path, resp.StatusCode)
	}

	var envelope struct {
		Data  json.RawMessage `json:"data"`
		Error string          `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	if envelope.Error != "" {
		return fmt.Errorf("%s: %s", path, envelope.Error)
	}
	if len(envelope.Data) > 0 && string(envelope.Data) != "null" {
		raw = envelope.Data
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}

	c.logger.Debug("Generation call completed",
		zap.String("path", path),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}
