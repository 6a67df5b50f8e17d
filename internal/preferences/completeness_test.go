package preferences

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"dealscout/investor-portal/portal-backend/internal/apperr"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name string
		rec  *PreferenceRecord
		want Categories
	}{
		{
			name: "no record",
			rec:  nil,
			want: Categories{CategoryIndustries, CategoryDealStructures, CategoryGeoPreferences, CategoryNotifications},
		},
		{
			name: "empty industries with weekly frequency",
			rec:  &PreferenceRecord{TargetIndustries: []string{}, NotificationFrequency: FrequencyWeekly},
			want: Categories{CategoryIndustries, CategoryDealStructures, CategoryGeoPreferences},
		},
		{
			name: "blank strings do not count",
			rec: &PreferenceRecord{
				TargetIndustries:        []string{"  "},
				PreferredDealStructures: []string{"equity"},
				GeoPreferences:          []string{"EU"},
				NotificationFrequency:   "hourly",
			},
			want: Categories{CategoryIndustries, CategoryNotifications},
		},
		{
			name: "fully set",
			rec: &PreferenceRecord{
				TargetIndustries:        []string{"fintech"},
				PreferredDealStructures: []string{"equity"},
				GeoPreferences:          []string{"US"},
				NotificationFrequency:   FrequencyRealTime,
			},
			want: Categories{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.rec))
		})
	}
}

func TestEvaluateIsIdempotent(t *testing.T) {
	rec := &PreferenceRecord{GeoPreferences: []string{"APAC"}}
	first := Evaluate(rec)
	assert.Equal(t, first, Evaluate(rec))
	assert.Equal(t, []string{"APAC"}, rec.GeoPreferences)
}

func TestParseFrequency(t *testing.T) {
	for in, want := range map[string]NotificationFrequency{
		"realTime":  FrequencyRealTime,
		"real_time": FrequencyRealTime,
		"Real-Time": FrequencyRealTime,
		" Weekly ":  FrequencyWeekly,
		"monthly":   FrequencyMonthly,
	} {
		got, ok := ParseFrequency(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	got, ok := ParseFrequency("hourly")
	assert.False(t, ok)
	assert.Equal(t, FrequencyUnset, got)
}

func TestParseCategory(t *testing.T) {
	cat, err := ParseCategory("deal_structures")
	assert.NoError(t, err)
	assert.Equal(t, CategoryDealStructures, cat)

	_, err = ParseCategory("budget")
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
}

func TestCategoryPatch(t *testing.T) {
	p, err := CategoryPatch(CategoryIndustries, []string{"fintech", " fintech ", "", "health"})
	assert.NoError(t, err)
	assert.Equal(t, []string{"fintech", "health"}, p.TargetIndustries)
	assert.Nil(t, p.GeoPreferences)

	_, err = CategoryPatch(CategoryGeoPreferences, []string{" "})
	assert.True(t, apperr.Is(err, apperr.CodeValidation))

	p, err = CategoryPatch(CategoryNotifications, nil)
	assert.NoError(t, err)
	assert.Equal(t, FrequencyWeekly, *p.NotificationFrequency)

	p, err = CategoryPatch(CategoryNotifications, []string{"daily"})
	assert.NoError(t, err)
	assert.Equal(t, FrequencyDaily, *p.NotificationFrequency)

	_, err = CategoryPatch(CategoryNotifications, []string{"hourly"})
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
}

func TestPatchApplyLeavesUnsuppliedFields(t *testing.T) {
	rec := &PreferenceRecord{
		TargetIndustries: []string{"fintech"},
		GeoPreferences:   []string{"EU"},
	}
	freq := FrequencyDaily
	Patch{GeoPreferences: []string{}, NotificationFrequency: &freq}.Apply(rec)

	assert.Equal(t, []string{"fintech"}, rec.TargetIndustries)
	assert.Empty(t, rec.GeoPreferences)
	assert.Equal(t, FrequencyDaily, rec.NotificationFrequency)
	assert.Equal(t, Categories{CategoryDealStructures, CategoryGeoPreferences}, Evaluate(rec))
}

func TestPatchNormalizeRejectsUnknownFrequency(t *testing.T) {
	bad := NotificationFrequency("hourly")
	_, err := Patch{NotificationFrequency: &bad}.Normalize()
	assert.True(t, apperr.Is(err, apperr.CodeValidation))

	ok := NotificationFrequency("real_time")
	p, err := Patch{NotificationFrequency: &ok}.Normalize()
	assert.NoError(t, err)
	assert.Equal(t, FrequencyRealTime, *p.NotificationFrequency)
}
