package setup

import (
	"strings"

	"dealscout/investor-portal/portal-backend/internal/preferences"
)

// featureCategories lists, per dashboard feature, the setup categories that
// sharpen it, most important first.
var featureCategories = map[string][]preferences.SetupCategory{
	"deal_matching":   {preferences.CategoryIndustries, preferences.CategoryDealStructures},
	"deal_flow":       {preferences.CategoryIndustries, preferences.CategoryDealStructures},
	"deal_pipeline":   {preferences.CategoryDealStructures},
	"market_insights": {preferences.CategoryIndustries},
	"industry_trends": {preferences.CategoryIndustries},
	"market_map":      {preferences.CategoryGeoPreferences},
	"geo_explorer":    {preferences.CategoryGeoPreferences},
	"local_deals":     {preferences.CategoryGeoPreferences},
	"alerts":          {preferences.CategoryNotifications},
	"notifications":   {preferences.CategoryNotifications},
	"watchlist":       {preferences.CategoryNotifications},
}

// NormalizeFeature lowercases a feature name and folds "-" and spaces to "_".
func NormalizeFeature(feature string) string {
	f := strings.ToLower(strings.TrimSpace(feature))
	return strings.NewReplacer("-", "_", " ", "_").Replace(f)
}

// RelevantCategory picks the one category a feature should prompt for: the
// first of its candidates that is still incomplete.
func RelevantCategory(feature string, incomplete preferences.Categories) (preferences.SetupCategory, bool) {
	for _, cat := range featureCategories[NormalizeFeature(feature)] {
		if incomplete.Has(cat) {
			return cat, true
		}
	}
	return "", false
}

// KnownFeature reports whether feature maps to any category.
func KnownFeature(feature string) bool {
	_, ok := featureCategories[NormalizeFeature(feature)]
	return ok
}
