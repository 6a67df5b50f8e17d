package roadmap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrNotFound is returned when no plan matches.
var ErrNotFound = errors.New("plan not found")

// Repository persists plans.
type Repository interface {
	Save(ctx context.Context, plan *Plan) error
	Get(ctx context.Context, id uuid.UUID) (*Plan, error)
	GetCurrent(ctx context.Context, userID string) (*Plan, error)
}

// planRow is the roadmap_plans table. Phases and actions are stored as jsonb.
type planRow struct {
	ID                 uuid.UUID                    `gorm:"type:uuid;primaryKey"`
	UserID             string                       `gorm:"index;not null"`
	Title              string                       `gorm:"not null"`
	Summary            string
	Phases             datatypes.JSONType[[]Phase]  `gorm:"type:jsonb"`
	SuggestedActions   datatypes.JSONType[[]Action] `gorm:"type:jsonb"`
	ProgressPercentage int                          `gorm:"not null;default:0"`
	CreatedAt          time.Time                    `gorm:"index"`
	UpdatedAt          time.Time
}

func (planRow) TableName() string {
	return "roadmap_plans"
}

func rowFromPlan(p *Plan) planRow {
	return planRow{
		ID:                 p.ID,
		UserID:             p.UserID,
		Title:              p.Title,
		Summary:            p.Summary,
		Phases:             datatypes.NewJSONType(p.Phases),
		SuggestedActions:   datatypes.NewJSONType(p.SuggestedActions),
		ProgressPercentage: p.ProgressPercentage,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
}

func (r planRow) plan() *Plan {
	return &Plan{
		ID:                 r.ID,
		UserID:             r.UserID,
		Title:              r.Title,
		Summary:            r.Summary,
		Phases:             r.Phases.Data(),
		SuggestedActions:   r.SuggestedActions.Data(),
		ProgressPercentage: r.ProgressPercentage,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

// GormRepository implements Repository on PostgreSQL through gorm.
type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// AutoMigrate creates or updates the roadmap_plans table.
func (r *GormRepository) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&planRow{})
}

// Save inserts the plan or overwrites it by id.
func (r *GormRepository) Save(ctx context.Context, plan *Plan) error {
	row := rowFromPlan(plan)
	if err := r.db.WithContext(ctx).Save(&row).Error; err != nil {
		return fmt.Errorf("save plan %s: %w", plan.ID, err)
	}
	return nil
}

func (r *GormRepository) Get(ctx context.Context, id uuid.UUID) (*Plan, error) {
	var row planRow
	err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get plan %s: %w", id, err)
	}
	return row.plan(), nil
}

// GetCurrent returns the user's most recently created plan.
func (r *GormRepository) GetCurrent(ctx context.Context, userID string) (*Plan, error) {
	var row planRow
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get current plan: %w", err)
	}
	return row.plan(), nil
}
