package repository

import (
	"context"

	"github.com/damoang/angple-moderation/internal/domain"
	"gorm.io/gorm"
)

// PointRepository reputation points ledger access interface
type PointRepository interface {
	Add(ctx context.Context, entry *domain.PointEntry) error
	Balance(ctx context.Context, userID string) (int, error)
	FindByUserID(ctx context.Context, userID string, limit int) ([]domain.PointEntry, error)
}

type pointRepository struct {
	db *gorm.DB
}

// NewPointRepository creates a new PointRepository
func NewPointRepository(db *gorm.DB) PointRepository {
	return &pointRepository{db: db}
}

// Add appends one ledger row
func (r *pointRepository) Add(ctx context.Context, entry *domain.PointEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// Balance sums every delta recorded for the user
func (r *pointRepository) Balance(ctx context.Context, userID string) (int, error) {
	var sum int
	err := r.db.WithContext(ctx).Model(&domain.PointEntry{}).
		Select("COALESCE(SUM(delta), 0)").
		Where("user_id = ?", userID).
		Scan(&sum).Error
	return sum, err
}

// FindByUserID returns recent ledger rows for a user
func (r *pointRepository) FindByUserID(ctx context.Context, userID string, limit int) ([]domain.PointEntry, error) {
	var entries []domain.PointEntry
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
