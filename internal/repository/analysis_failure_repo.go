package repository

import (
	"context"
	"time"

	"github.com/damoang/angple-moderation/internal/domain"
	"gorm.io/gorm"
)

// AnalysisFailureRepository 분석 실패 건 (재분석 대기열)
type AnalysisFailureRepository struct {
	db *gorm.DB
}

// NewAnalysisFailureRepository creates a new AnalysisFailureRepository
func NewAnalysisFailureRepository(db *gorm.DB) *AnalysisFailureRepository {
	return &AnalysisFailureRepository{db: db}
}

// Create records a failed analysis
func (r *AnalysisFailureRepository) Create(ctx context.Context, failure *domain.AnalysisFailure) error {
	return r.db.WithContext(ctx).Create(failure).Error
}

// ListRetryable returns unresolved failures that still have attempts left,
// oldest first
func (r *AnalysisFailureRepository) ListRetryable(ctx context.Context, limit int) ([]domain.AnalysisFailure, error) {
	if limit < 1 {
		limit = 50
	}
	var failures []domain.AnalysisFailure
	err := r.db.WithContext(ctx).
		Where("resolved = ? AND attempts < ?", false, domain.MaxAnalysisAttempts).
		Order("id ASC").
		Limit(limit).
		Find(&failures).Error
	if err != nil {
		return nil, err
	}
	return failures, nil
}

// MarkResolved closes a failure after a successful re-analysis
func (r *AnalysisFailureRepository) MarkResolved(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Model(&domain.AnalysisFailure{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"resolved":   true,
			"updated_at": time.Now(),
		}).Error
}

// RecordAttempt increments the attempt counter and stores the latest error
func (r *AnalysisFailureRepository) RecordAttempt(ctx context.Context, id int64, lastErr string) error {
	return r.db.WithContext(ctx).Model(&domain.AnalysisFailure{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": lastErr,
			"updated_at": time.Now(),
		}).Error
}

// Get returns a single failure row
func (r *AnalysisFailureRepository) Get(ctx context.Context, id int64) (*domain.AnalysisFailure, error) {
	var failure domain.AnalysisFailure
	if err := r.db.WithContext(ctx).First(&failure, id).Error; err != nil {
		return nil, err
	}
	return &failure, nil
}
