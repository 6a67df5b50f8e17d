package preferences

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"dealscout/investor-portal/portal-backend/internal/apperr"
)

// SetupCategory is one independently completable slice of a preference record.
type SetupCategory string

const (
	CategoryIndustries     SetupCategory = "industries"
	CategoryDealStructures SetupCategory = "dealStructures"
	CategoryGeoPreferences SetupCategory = "geoPreferences"
	CategoryNotifications  SetupCategory = "notifications"
)

// AllCategories lists every setup category in canonical order.
var AllCategories = []SetupCategory{
	CategoryIndustries,
	CategoryDealStructures,
	CategoryGeoPreferences,
	CategoryNotifications,
}

// ParseCategory accepts the canonical name or its snake_case spelling.
func ParseCategory(s string) (SetupCategory, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", "")) {
	case "industries":
		return CategoryIndustries, nil
	case "dealstructures":
		return CategoryDealStructures, nil
	case "geopreferences":
		return CategoryGeoPreferences, nil
	case "notifications":
		return CategoryNotifications, nil
	}
	return "", apperr.Validation("unknown setup category %q", s)
}

// Categories is an ordered set of setup categories.
type Categories []SetupCategory

// Has reports whether cat is in the set.
func (c Categories) Has(cat SetupCategory) bool {
	for _, have := range c {
		if have == cat {
			return true
		}
	}
	return false
}

// NotificationFrequency is how often a user wants to hear from the portal.
type NotificationFrequency string

const (
	FrequencyUnset    NotificationFrequency = ""
	FrequencyRealTime NotificationFrequency = "realTime"
	FrequencyDaily    NotificationFrequency = "daily"
	FrequencyWeekly   NotificationFrequency = "weekly"
	FrequencyMonthly  NotificationFrequency = "monthly"
)

// DefaultNotificationFrequency is preselected in the notifications modal.
const DefaultNotificationFrequency = FrequencyWeekly

// Valid reports whether f is one of the set values.
func (f NotificationFrequency) Valid() bool {
	switch f {
	case FrequencyRealTime, FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// ParseFrequency normalises spellings such as "real_time" or "Real-Time".
// Unrecognised input yields FrequencyUnset and false.
func ParseFrequency(s string) (NotificationFrequency, bool) {
	norm := strings.ToLower(strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.TrimSpace(s)))
	switch norm {
	case "realtime":
		return FrequencyRealTime, true
	case "daily":
		return FrequencyDaily, true
	case "weekly":
		return FrequencyWeekly, true
	case "monthly":
		return FrequencyMonthly, true
	}
	return FrequencyUnset, false
}

// PreferenceRecord is the per-user preference profile.
type PreferenceRecord struct {
	ID                      uuid.UUID             `json:"id"`
	UserID                  string                `json:"user_id"`
	TargetIndustries        []string              `json:"target_industries"`
	PreferredDealStructures []string              `json:"preferred_deal_structures"`
	GeoPreferences          []string              `json:"geo_preferences"`
	NotificationFrequency   NotificationFrequency `json:"notification_frequency,omitempty"`
	HasCompletedOnboarding  bool                  `json:"has_completed_onboarding"`
	InvestmentGoal          string                `json:"investment_goal,omitempty"`
	RiskTolerance           string                `json:"risk_tolerance,omitempty"`
	TimeCommitment          string                `json:"time_commitment,omitempty"`
	BudgetRange             string                `json:"budget_range,omitempty"`
	CreatedAt               time.Time             `json:"created_at"`
	UpdatedAt               time.Time             `json:"updated_at"`
}

// Patch is a merge-write: only supplied fields are written. A nil slice or
// pointer means "not supplied"; a non-nil empty slice clears the field.
type Patch struct {
	TargetIndustries        []string               `json:"target_industries,omitempty"`
	PreferredDealStructures []string               `json:"preferred_deal_structures,omitempty"`
	GeoPreferences          []string               `json:"geo_preferences,omitempty"`
	NotificationFrequency   *NotificationFrequency `json:"notification_frequency,omitempty"`
	HasCompletedOnboarding  *bool                  `json:"has_completed_onboarding,omitempty"`
	InvestmentGoal          *string                `json:"investment_goal,omitempty"`
	RiskTolerance           *string                `json:"risk_tolerance,omitempty"`
	TimeCommitment          *string                `json:"time_commitment,omitempty"`
	BudgetRange             *string                `json:"budget_range,omitempty"`
}

// IsEmpty reports whether the patch supplies no fields.
func (p Patch) IsEmpty() bool {
	return p.TargetIndustries == nil &&
		p.PreferredDealStructures == nil &&
		p.GeoPreferences == nil &&
		p.NotificationFrequency == nil &&
		p.HasCompletedOnboarding == nil &&
		p.InvestmentGoal == nil &&
		p.RiskTolerance == nil &&
		p.TimeCommitment == nil &&
		p.BudgetRange == nil
}

// Normalize trims and de-duplicates set fields and rejects unknown frequencies.
func (p Patch) Normalize() (Patch, error) {
	if p.TargetIndustries != nil {
		p.TargetIndustries = normalizeSet(p.TargetIndustries)
	}
	if p.PreferredDealStructures != nil {
		p.PreferredDealStructures = normalizeSet(p.PreferredDealStructures)
	}
	if p.GeoPreferences != nil {
		p.GeoPreferences = normalizeSet(p.GeoPreferences)
	}
	if p.NotificationFrequency != nil && *p.NotificationFrequency != FrequencyUnset {
		f, ok := ParseFrequency(string(*p.NotificationFrequency))
		if !ok {
			return p, apperr.Validation("unknown notification frequency %q", *p.NotificationFrequency)
		}
		p.NotificationFrequency = &f
	}
	return p, nil
}

// Apply merges the supplied fields into rec.
func (p Patch) Apply(rec *PreferenceRecord) {
	if p.TargetIndustries != nil {
		rec.TargetIndustries = append([]string{}, p.TargetIndustries...)
	}
	if p.PreferredDealStructures != nil {
		rec.PreferredDealStructures = append([]string{}, p.PreferredDealStructures...)
	}
	if p.GeoPreferences != nil {
		rec.GeoPreferences = append([]string{}, p.GeoPreferences...)
	}
	if p.NotificationFrequency != nil {
		rec.NotificationFrequency = *p.NotificationFrequency
	}
	if p.HasCompletedOnboarding != nil {
		rec.HasCompletedOnboarding = *p.HasCompletedOnboarding
	}
	if p.InvestmentGoal != nil {
		rec.InvestmentGoal = *p.InvestmentGoal
	}
	if p.RiskTolerance != nil {
		rec.RiskTolerance = *p.RiskTolerance
	}
	if p.TimeCommitment != nil {
		rec.TimeCommitment = *p.TimeCommitment
	}
	if p.BudgetRange != nil {
		rec.BudgetRange = *p.BudgetRange
	}
}

// CategoryPatch builds the patch a setup modal writes for its one category.
// Set categories need at least one selection; notifications fall back to
// DefaultNotificationFrequency when nothing was chosen.
func CategoryPatch(cat SetupCategory, values []string) (Patch, error) {
	set := normalizeSet(values)
	switch cat {
	case CategoryIndustries:
		if len(set) == 0 {
			return Patch{}, apperr.Validation("select at least one industry")
		}
		return Patch{TargetIndustries: set}, nil
	case CategoryDealStructures:
		if len(set) == 0 {
			return Patch{}, apperr.Validation("select at least one deal structure")
		}
		return Patch{PreferredDealStructures: set}, nil
	case CategoryGeoPreferences:
		if len(set) == 0 {
			return Patch{}, apperr.Validation("select at least one region")
		}
		return Patch{GeoPreferences: set}, nil
	case CategoryNotifications:
		freq := DefaultNotificationFrequency
		if len(set) > 0 {
			parsed, ok := ParseFrequency(set[0])
			if !ok {
				return Patch{}, apperr.Validation("unknown notification frequency %q", set[0])
			}
			freq = parsed
		}
		return Patch{NotificationFrequency: &freq}, nil
	}
	return Patch{}, apperr.Validation("unknown setup category %q", cat)
}

func normalizeSet(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
