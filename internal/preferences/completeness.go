package preferences

import "strings"

// Evaluate returns the setup categories whose backing field in rec is unset
// or empty, in canonical order. A nil record has every category incomplete.
func Evaluate(rec *PreferenceRecord) Categories {
	incomplete := make(Categories, 0, len(AllCategories))
	for _, cat := range AllCategories {
		if rec == nil || !rec.complete(cat) {
			incomplete = append(incomplete, cat)
		}
	}
	return incomplete
}

func (r *PreferenceRecord) complete(cat SetupCategory) bool {
	switch cat {
	case CategoryIndustries:
		return hasValue(r.TargetIndustries)
	case CategoryDealStructures:
		return hasValue(r.PreferredDealStructures)
	case CategoryGeoPreferences:
		return hasValue(r.GeoPreferences)
	case CategoryNotifications:
		return r.NotificationFrequency.Valid()
	}
	return false
}

func hasValue(set []string) bool {
	for _, v := range set {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}
