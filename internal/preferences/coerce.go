package preferences

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Coerce converts a loosely-typed document (a decoded JSON body or a raw store
// document) into a typed record. Keys may be snake_case or camelCase. Missing,
// unknown or mistyped fields are left unset, which makes their category
// incomplete rather than an error.
func Coerce(doc map[string]any) *PreferenceRecord {
	if doc == nil {
		return nil
	}
	rec := &PreferenceRecord{
		UserID:                  stringField(doc, "user_id", "userId"),
		TargetIndustries:        setField(doc, "target_industries", "targetIndustries"),
		PreferredDealStructures: setField(doc, "preferred_deal_structures", "preferredDealStructures"),
		GeoPreferences:          setField(doc, "geo_preferences", "geoPreferences"),
		InvestmentGoal:          stringField(doc, "investment_goal", "investmentGoal"),
		RiskTolerance:           stringField(doc, "risk_tolerance", "riskTolerance"),
		TimeCommitment:          stringField(doc, "time_commitment", "timeCommitment"),
		BudgetRange:             stringField(doc, "budget_range", "budgetRange"),
	}
	if id, err := uuid.Parse(stringField(doc, "id", "_id")); err == nil {
		rec.ID = id
	}
	if f, ok := ParseFrequency(stringField(doc, "notification_frequency", "notificationFrequency")); ok {
		rec.NotificationFrequency = f
	}
	if b, ok := lookup(doc, "has_completed_onboarding", "hasCompletedOnboarding").(bool); ok {
		rec.HasCompletedOnboarding = b
	}
	rec.CreatedAt = timeField(doc, "created_at", "createdAt")
	rec.UpdatedAt = timeField(doc, "updated_at", "updatedAt")
	return rec
}

func lookup(doc map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := doc[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func stringField(doc map[string]any, keys ...string) string {
	s, _ := lookup(doc, keys...).(string)
	return strings.TrimSpace(s)
}

func setField(doc map[string]any, keys ...string) []string {
	switch v := lookup(doc, keys...).(type) {
	case []string:
		return normalizeSet(v)
	case []any:
		items := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				items = append(items, s)
			}
		}
		return normalizeSet(items)
	case string:
		return normalizeSet([]string{v})
	}
	return nil
}

func timeField(doc map[string]any, keys ...string) time.Time {
	switch v := lookup(doc, keys...).(type) {
	case time.Time:
		return v
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

// CoercePatch builds a merge-write from a loosely-typed body. Only keys that
// are present with a usable type become supplied fields; the frequency string
// is kept verbatim so Patch.Normalize can reject unknown values. The
// onboarding flag is never taken from a body; only a completed onboarding
// submit sets it.
func CoercePatch(doc map[string]any) Patch {
	var p Patch
	if v := lookup(doc, "target_industries", "targetIndustries"); v != nil {
		p.TargetIndustries = setOrNil(v)
	}
	if v := lookup(doc, "preferred_deal_structures", "preferredDealStructures"); v != nil {
		p.PreferredDealStructures = setOrNil(v)
	}
	if v := lookup(doc, "geo_preferences", "geoPreferences"); v != nil {
		p.GeoPreferences = setOrNil(v)
	}
	if s, ok := lookup(doc, "notification_frequency", "notificationFrequency").(string); ok {
		f := NotificationFrequency(strings.TrimSpace(s))
		p.NotificationFrequency = &f
	}
	p.InvestmentGoal = stringPtr(doc, "investment_goal", "investmentGoal")
	p.RiskTolerance = stringPtr(doc, "risk_tolerance", "riskTolerance")
	p.TimeCommitment = stringPtr(doc, "time_commitment", "timeCommitment")
	p.BudgetRange = stringPtr(doc, "budget_range", "budgetRange")
	return p
}

func setOrNil(v any) []string {
	switch v.(type) {
	case []string, []any, string:
		return setField(map[string]any{"v": v}, "v")
	}
	return nil
}

func stringPtr(doc map[string]any, keys ...string) *string {
	s, ok := lookup(doc, keys...).(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	return &s
}
