package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"nudge-planner/internal/model"
)

// AwardRepository keeps per-day celebration records.
type AwardRepository struct {
	db *gorm.DB
}

func NewAwardRepository(db *gorm.DB) *AwardRepository {
	return &AwardRepository{db: db}
}

// Record inserts the award unless one already exists for (user, kind, date).
// It returns true only for the caller that created the row.
func (r *AwardRepository) Record(ctx context.Context, userID uint, kind model.AwardKind, date string, value int, at time.Time) (bool, error) {
	award := model.Award{
		UserID:    userID,
		Kind:      kind,
		AwardDate: date,
		Value:     value,
		SentAt:    at.UTC(),
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&award)
	if res.Error != nil {
		return false, fmt.Errorf("record %s award: %w", kind, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *AwardRepository) Exists(ctx context.Context, userID uint, kind model.AwardKind, date string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Award{}).
		Where("user_id = ? AND kind = ? AND award_date = ?", userID, kind, date).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("find %s award: %w", kind, err)
	}
	return count > 0, nil
}
