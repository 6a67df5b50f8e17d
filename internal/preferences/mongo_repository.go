package preferences

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName is the Mongo collection holding preference documents.
const CollectionName = "preference_records"

type preferenceDocument struct {
	ID                      string    `bson:"_id"`
	UserID                  string    `bson:"user_id"`
	TargetIndustries        []string  `bson:"target_industries"`
	PreferredDealStructures []string  `bson:"preferred_deal_structures"`
	GeoPreferences          []string  `bson:"geo_preferences"`
	NotificationFrequency   string    `bson:"notification_frequency"`
	HasCompletedOnboarding  bool      `bson:"has_completed_onboarding"`
	InvestmentGoal          string    `bson:"investment_goal"`
	RiskTolerance           string    `bson:"risk_tolerance"`
	TimeCommitment          string    `bson:"time_commitment"`
	BudgetRange             string    `bson:"budget_range"`
	CreatedAt               time.Time `bson:"created_at"`
	UpdatedAt               time.Time `bson:"updated_at"`
}

// plain converts driver container types into the map/slice shapes Coerce reads.
func plain(v any) any {
	switch t := v.(type) {
	case bson.M:
		out := make(map[string]any, len(t))
		for k, x := range t {
			out[k] = plain(x)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = plain(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = plain(x)
		}
		return out
	case primitive.DateTime:
		return t.Time().UTC()
	}
	return v
}

func decodeRecord(doc bson.M) *PreferenceRecord {
	m, _ := plain(doc).(map[string]any)
	return Coerce(m)
}

// MongoRepository implements Repository on a document store. Reads go through
// Coerce because documents written by older clients may use camelCase keys or
// loose types. Updates are $set operations over the supplied fields, so
// concurrent writers that own different categories never clobber each other.
type MongoRepository struct {
	coll *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{coll: db.Collection(CollectionName)}
}

// EnsureIndexes creates the unique user_id index.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "notification_frequency", Value: 1}}},
	})
	return err
}

func (r *MongoRepository) Get(ctx context.Context, userID string) (*PreferenceRecord, error) {
	var doc bson.M
	err := r.coll.FindOne(ctx, userFilter(userID)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get preference document: %w", err)
	}
	return decodeRecord(doc), nil
}

func (r *MongoRepository) Create(ctx context.Context, rec *PreferenceRecord) (*PreferenceRecord, error) {
	doc := preferenceDocument{
		ID:                      rec.ID.String(),
		UserID:                  rec.UserID,
		TargetIndustries:        nonNil(rec.TargetIndustries),
		PreferredDealStructures: nonNil(rec.PreferredDealStructures),
		GeoPreferences:          nonNil(rec.GeoPreferences),
		NotificationFrequency:   string(rec.NotificationFrequency),
		HasCompletedOnboarding:  rec.HasCompletedOnboarding,
		InvestmentGoal:          rec.InvestmentGoal,
		RiskTolerance:           rec.RiskTolerance,
		TimeCommitment:          rec.TimeCommitment,
		BudgetRange:             rec.BudgetRange,
		CreatedAt:               rec.CreatedAt,
		UpdatedAt:               rec.UpdatedAt,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrAlreadyExists
		}
		return nil, fmt.Errorf("create preference document: %w", err)
	}
	return rec, nil
}

func (r *MongoRepository) Update(ctx context.Context, userID string, patch Patch) (*PreferenceRecord, error) {
	set := patchFields(patch)
	set["updated_at"] = time.Now().UTC()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc bson.M
	err := r.coll.FindOneAndUpdate(ctx, userFilter(userID), bson.M{"$set": set}, opts).Decode(&doc)
	if err != nil {
		return nil, fmt.Errorf("update preference document for %s: %w", userID, err)
	}
	return decodeRecord(doc), nil
}

func (r *MongoRepository) ListByFrequency(ctx context.Context, freq NotificationFrequency) ([]*PreferenceRecord, error) {
	cur, err := r.coll.Find(ctx, bson.M{"notification_frequency": string(freq)})
	if err != nil {
		return nil, fmt.Errorf("list preference documents: %w", err)
	}
	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode preference documents: %w", err)
	}
	out := make([]*PreferenceRecord, 0, len(docs))
	for _, d := range docs {
		out = append(out, decodeRecord(d))
	}
	return out, nil
}

func userFilter(userID string) bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"user_id": userID},
		bson.M{"userId": userID},
	}}
}

func patchFields(p Patch) bson.M {
	set := bson.M{}
	if p.TargetIndustries != nil {
		set["target_industries"] = p.TargetIndustries
	}
	if p.PreferredDealStructures != nil {
		set["preferred_deal_structures"] = p.PreferredDealStructures
	}
	if p.GeoPreferences != nil {
		set["geo_preferences"] = p.GeoPreferences
	}
	if p.NotificationFrequency != nil {
		set["notification_frequency"] = string(*p.NotificationFrequency)
	}
	if p.HasCompletedOnboarding != nil {
		set["has_completed_onboarding"] = *p.HasCompletedOnboarding
	}
	if p.InvestmentGoal != nil {
		set["investment_goal"] = *p.InvestmentGoal
	}
	if p.RiskTolerance != nil {
		set["risk_tolerance"] = *p.RiskTolerance
	}
	if p.TimeCommitment != nil {
		set["time_commitment"] = *p.TimeCommitment
	}
	if p.BudgetRange != nil {
		set["budget_range"] = *p.BudgetRange
	}
	return set
}
