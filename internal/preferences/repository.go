package preferences

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ErrAlreadyExists is returned by Create when the user already has a record.
var ErrAlreadyExists = errors.New("preference record already exists")

// Repository is the preference persistence port. Get returns (nil, nil) when
// the user has no record. Update merges the supplied fields only into the
// user's record; records are keyed by user id because stored ids may not be
// UUIDs.
type Repository interface {
	Get(ctx context.Context, userID string) (*PreferenceRecord, error)
	Create(ctx context.Context, rec *PreferenceRecord) (*PreferenceRecord, error)
	Update(ctx context.Context, userID string, patch Patch) (*PreferenceRecord, error)
	ListByFrequency(ctx context.Context, freq NotificationFrequency) ([]*PreferenceRecord, error)
}

// Schema creates the preference_records table.
const Schema = `
CREATE TABLE IF NOT EXISTS preference_records (
	id                        UUID PRIMARY KEY,
	user_id                   TEXT NOT NULL UNIQUE,
	target_industries         TEXT[] NOT NULL DEFAULT '{}',
	preferred_deal_structures TEXT[] NOT NULL DEFAULT '{}',
	geo_preferences           TEXT[] NOT NULL DEFAULT '{}',
	notification_frequency    TEXT NOT NULL DEFAULT '',
	has_completed_onboarding  BOOLEAN NOT NULL DEFAULT FALSE,
	investment_goal           TEXT NOT NULL DEFAULT '',
	risk_tolerance            TEXT NOT NULL DEFAULT '',
	time_commitment           TEXT NOT NULL DEFAULT '',
	budget_range              TEXT NOT NULL DEFAULT '',
	created_at                TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at                TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_preference_records_frequency ON preference_records (notification_frequency);`

type preferenceRow struct {
	ID                      uuid.UUID      `db:"id"`
	UserID                  string         `db:"user_id"`
	TargetIndustries        pq.StringArray `db:"target_industries"`
	PreferredDealStructures pq.StringArray `db:"preferred_deal_structures"`
	GeoPreferences          pq.StringArray `db:"geo_preferences"`
	NotificationFrequency   string         `db:"notification_frequency"`
	HasCompletedOnboarding  bool           `db:"has_completed_onboarding"`
	InvestmentGoal          string         `db:"investment_goal"`
	RiskTolerance           string         `db:"risk_tolerance"`
	TimeCommitment          string         `db:"time_commitment"`
	BudgetRange             string         `db:"budget_range"`
	CreatedAt               time.Time      `db:"created_at"`
	UpdatedAt               time.Time      `db:"updated_at"`
}

func rowFromRecord(rec *PreferenceRecord) preferenceRow {
	return preferenceRow{
		ID:                      rec.ID,
		UserID:                  rec.UserID,
		TargetIndustries:        pq.StringArray(nonNil(rec.TargetIndustries)),
		PreferredDealStructures: pq.StringArray(nonNil(rec.PreferredDealStructures)),
		GeoPreferences:          pq.StringArray(nonNil(rec.GeoPreferences)),
		NotificationFrequency:   string(rec.NotificationFrequency),
		HasCompletedOnboarding:  rec.HasCompletedOnboarding,
		InvestmentGoal:          rec.InvestmentGoal,
		RiskTolerance:           rec.RiskTolerance,
		TimeCommitment:          rec.TimeCommitment,
		BudgetRange:             rec.BudgetRange,
		CreatedAt:               rec.CreatedAt,
		UpdatedAt:               rec.UpdatedAt,
	}
}

func (r preferenceRow) record() *PreferenceRecord {
	freq, _ := ParseFrequency(r.NotificationFrequency)
	return &PreferenceRecord{
		ID:                      r.ID,
		UserID:                  r.UserID,
		TargetIndustries:        []string(r.TargetIndustries),
		PreferredDealStructures: []string(r.PreferredDealStructures),
		GeoPreferences:          []string(r.GeoPreferences),
		NotificationFrequency:   freq,
		HasCompletedOnboarding:  r.HasCompletedOnboarding,
		InvestmentGoal:          r.InvestmentGoal,
		RiskTolerance:           r.RiskTolerance,
		TimeCommitment:          r.TimeCommitment,
		BudgetRange:             r.BudgetRange,
		CreatedAt:               r.CreatedAt,
		UpdatedAt:               r.UpdatedAt,
	}
}

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// EnsureSchema creates the table and indexes if they are missing.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, Schema)
	return err
}

func (r *PostgresRepository) Get(ctx context.Context, userID string) (*PreferenceRecord, error) {
	var row preferenceRow
	err := r.db.GetContext(ctx, &row, "SELECT * FROM preference_records WHERE user_id = $1", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get preference record: %w", err)
	}
	return row.record(), nil
}

func (r *PostgresRepository) Create(ctx context.Context, rec *PreferenceRecord) (*PreferenceRecord, error) {
	row := rowFromRecord(rec)
	query := `
		INSERT INTO preference_records (
			id, user_id, target_industries, preferred_deal_structures, geo_preferences,
			notification_frequency, has_completed_onboarding, investment_goal,
			risk_tolerance, time_commitment, budget_range, created_at, updated_at
		) VALUES (
			:id, :user_id, :target_industries, :preferred_deal_structures, :geo_preferences,
			:notification_frequency, :has_completed_onboarding, :investment_goal,
			:risk_tolerance, :time_commitment, :budget_range, :created_at, :updated_at
		)`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrAlreadyExists
		}
		return nil, fmt.Errorf("create preference record: %w", err)
	}
	return row.record(), nil
}

// Update writes only the columns the patch supplies.
func (r *PostgresRepository) Update(ctx context.Context, userID string, patch Patch) (*PreferenceRecord, error) {
	query, args := updateQuery(userID, patch, time.Now().UTC())

	var row preferenceRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("update preference record for %s: %w", userID, err)
		}
		return nil, fmt.Errorf("update preference record: %w", err)
	}
	return row.record(), nil
}

func updateQuery(userID string, patch Patch, now time.Time) (string, []interface{}) {
	var sets []string
	var args []interface{}
	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.TargetIndustries != nil {
		add("target_industries", pq.StringArray(patch.TargetIndustries))
	}
	if patch.PreferredDealStructures != nil {
		add("preferred_deal_structures", pq.StringArray(patch.PreferredDealStructures))
	}
	if patch.GeoPreferences != nil {
		add("geo_preferences", pq.StringArray(patch.GeoPreferences))
	}
	if patch.NotificationFrequency != nil {
		add("notification_frequency", string(*patch.NotificationFrequency))
	}
	if patch.HasCompletedOnboarding != nil {
		add("has_completed_onboarding", *patch.HasCompletedOnboarding)
	}
	if patch.InvestmentGoal != nil {
		add("investment_goal", *patch.InvestmentGoal)
	}
	if patch.RiskTolerance != nil {
		add("risk_tolerance", *patch.RiskTolerance)
	}
	if patch.TimeCommitment != nil {
		add("time_commitment", *patch.TimeCommitment)
	}
	if patch.BudgetRange != nil {
		add("budget_range", *patch.BudgetRange)
	}
	add("updated_at", now)

	args = append(args, userID)
	query := fmt.Sprintf("UPDATE preference_records SET %s WHERE user_id = $%d RETURNING *",
		strings.Join(sets, ", "), len(args))
	return query, args
}

func (r *PostgresRepository) ListByFrequency(ctx context.Context, freq NotificationFrequency) ([]*PreferenceRecord, error) {
	var rows []preferenceRow
	if err := r.db.SelectContext(ctx, &rows,
		"SELECT * FROM preference_records WHERE notification_frequency = $1 ORDER BY created_at", string(freq)); err != nil {
		return nil, fmt.Errorf("list preference records: %w", err)
	}
	out := make([]*PreferenceRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.record())
	}
	return out, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
