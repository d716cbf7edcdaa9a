package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/damoang/angple-moderation/internal/common"
	"github.com/damoang/angple-moderation/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ContentSnapshotRepository stores the latest moderated text per content reference
type ContentSnapshotRepository struct {
	db *gorm.DB
}

// NewContentSnapshotRepository creates a new ContentSnapshotRepository
func NewContentSnapshotRepository(db *gorm.DB) *ContentSnapshotRepository {
	return &ContentSnapshotRepository{db: db}
}

// Save inserts or replaces the snapshot for ref
func (r *ContentSnapshotRepository) Save(ctx context.Context, ref domain.ContentReference, text string, authorID *string) error {
	snapshot := domain.ContentSnapshot{
		ContentID:   ref.ContentID,
		ContentType: ref.ContentType,
		AuthorID:    authorID,
		Text:        text,
		UpdatedAt:   time.Now(),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "content_id"}, {Name: "content_type"}},
		DoUpdates: clause.AssignmentColumns([]string{"text", "author_id", "updated_at"}),
	}).Create(&snapshot).Error
}

// Get returns the snapshot for ref or ErrNotFound
func (r *ContentSnapshotRepository) Get(ctx context.Context, ref domain.ContentReference) (*domain.ContentSnapshot, error) {
	var snapshot domain.ContentSnapshot
	err := r.db.WithContext(ctx).
		Where("content_id = ? AND content_type = ?", ref.ContentID, ref.ContentType).
		First(&snapshot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("content %s/%d: %w", ref.ContentType, ref.ContentID, common.ErrNotFound)
		}
		return nil, err
	}
	return &snapshot, nil
}

// LoadText returns the stored text for ref
func (r *ContentSnapshotRepository) LoadText(ctx context.Context, ref domain.ContentReference) (string, error) {
	snapshot, err := r.Get(ctx, ref)
	if err != nil {
		return "", err
	}
	return snapshot.Text, nil
}
