package preferences

import (
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
)

func TestUpdateQueryKeysOnUserID(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	goal := "side_income"
	query, args := updateQuery("user-1", Patch{GeoPreferences: []string{"EU"}, InvestmentGoal: &goal}, now)

	assert.Equal(t,
		"UPDATE preference_records SET geo_preferences = $1, investment_goal = $2, updated_at = $3 WHERE user_id = $4 RETURNING *",
		query)
	assert.Equal(t, []interface{}{pq.StringArray{"EU"}, "side_income", now, "user-1"}, args)
}

func TestMongoUpdateFilterMatchesBothKeyStyles(t *testing.T) {
	assert.Equal(t, bson.M{"$or": bson.A{
		bson.M{"user_id": "user-1"},
		bson.M{"userId": "user-1"},
	}}, userFilter("user-1"))
}
