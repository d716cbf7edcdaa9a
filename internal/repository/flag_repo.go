package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/damoang/angple-moderation/internal/common"
	"github.com/damoang/angple-moderation/internal/domain"
	"gorm.io/gorm"
)

// AppealUpdate fields written when an appeal is resolved
type AppealUpdate struct {
	Status     domain.AppealStatus
	ReviewedBy *string
	ReviewedAt *time.Time
}

// FlagStore persistence for flags, decisions and appeals.
// Nothing is ever deleted. Status writes are compare-and-swap on version.
type FlagStore interface {
	CreateFlag(ctx context.Context, flag *domain.ModerationFlag) error
	GetFlag(ctx context.Context, id int64) (*domain.ModerationFlag, error)
	ListFlagsByStatus(ctx context.Context, page, limit int, statuses ...domain.FlagStatus) ([]domain.ModerationFlag, int64, error)
	UpdateFlagStatus(ctx context.Context, id int64, status domain.FlagStatus, expectedVersion uint) (*domain.ModerationFlag, error)

	CreateDecision(ctx context.Context, decision *domain.ModerationDecision) error
	ListDecisions(ctx context.Context, flagID int64) ([]domain.ModerationDecision, error)

	CreateAppeal(ctx context.Context, appeal *domain.ModerationAppeal) error
	GetAppeal(ctx context.Context, id int64) (*domain.ModerationAppeal, error)
	FindPendingAppeal(ctx context.Context, flagID int64) (*domain.ModerationAppeal, error)
	CountAppeals(ctx context.Context, flagID int64) (int64, error)
	UpdateAppeal(ctx context.Context, id int64, update AppealUpdate, expectedVersion uint) (*domain.ModerationAppeal, error)

	// Transaction runs fn against a store bound to one database transaction.
	// Returning an error from fn rolls everything back.
	Transaction(ctx context.Context, fn func(tx FlagStore) error) error
}

type flagRepository struct {
	db *gorm.DB
}

// NewFlagRepository creates a gorm-backed FlagStore
func NewFlagRepository(db *gorm.DB) FlagStore {
	return &flagRepository{db: db}
}

// WithTx returns a FlagStore bound to the given transaction
func (r *flagRepository) WithTx(tx *gorm.DB) FlagStore {
	return &flagRepository{db: tx}
}

func (r *flagRepository) Transaction(ctx context.Context, fn func(tx FlagStore) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}

func (r *flagRepository) CreateFlag(ctx context.Context, flag *domain.ModerationFlag) error {
	if flag.ID != 0 {
		return fmt.Errorf("create flag: id must be unset: %w", common.ErrInvalidInput)
	}
	flag.Version = 1
	return r.db.WithContext(ctx).Create(flag).Error
}

func (r *flagRepository) GetFlag(ctx context.Context, id int64) (*domain.ModerationFlag, error) {
	var flag domain.ModerationFlag
	if err := r.db.WithContext(ctx).First(&flag, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("flag %d: %w", id, common.ErrNotFound)
		}
		return nil, err
	}
	return &flag, nil
}

// ListFlagsByStatus returns newest-first flags in any of statuses (all flags
// when none are given) and the total count
func (r *flagRepository) ListFlagsByStatus(ctx context.Context, page, limit int, statuses ...domain.FlagStatus) ([]domain.ModerationFlag, int64, error) {
	page, limit = normalizePage(page, limit)

	query := r.db.WithContext(ctx).Model(&domain.ModerationFlag{})
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var flags []domain.ModerationFlag
	err := query.Order("created_at DESC, id DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&flags).Error
	if err != nil {
		return nil, 0, err
	}
	return flags, total, nil
}

// UpdateFlagStatus sets status only if the stored version still equals
// expectedVersion. On mismatch nothing is written and ErrConflict is returned.
func (r *flagRepository) UpdateFlagStatus(ctx context.Context, id int64, status domain.FlagStatus, expectedVersion uint) (*domain.ModerationFlag, error) {
	db := r.db.WithContext(ctx)

	result := db.Model(&domain.ModerationFlag{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
			"version":    gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		// 없는 flag인지, 버전 충돌인지 구분
		if _, err := r.GetFlag(ctx, id); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("flag %d at version %d: %w", id, expectedVersion, common.ErrConflict)
	}
	return r.GetFlag(ctx, id)
}

func (r *flagRepository) CreateDecision(ctx context.Context, decision *domain.ModerationDecision) error {
	if decision.Reasoning == "" {
		return fmt.Errorf("decision reasoning is required: %w", common.ErrInvalidInput)
	}
	return r.db.WithContext(ctx).Create(decision).Error
}

// ListDecisions returns the decisions recorded for a flag, newest first
func (r *flagRepository) ListDecisions(ctx context.Context, flagID int64) ([]domain.ModerationDecision, error) {
	var decisions []domain.ModerationDecision
	err := r.db.WithContext(ctx).
		Where("flag_id = ?", flagID).
		Order("created_at DESC, id DESC").
		Find(&decisions).Error
	if err != nil {
		return nil, err
	}
	return decisions, nil
}

func (r *flagRepository) CreateAppeal(ctx context.Context, appeal *domain.ModerationAppeal) error {
	if appeal.Reasoning == "" {
		return fmt.Errorf("appeal reasoning is required: %w", common.ErrInvalidInput)
	}
	appeal.Version = 1
	return r.db.WithContext(ctx).Create(appeal).Error
}

func (r *flagRepository) GetAppeal(ctx context.Context, id int64) (*domain.ModerationAppeal, error) {
	var appeal domain.ModerationAppeal
	if err := r.db.WithContext(ctx).First(&appeal, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("appeal %d: %w", id, common.ErrNotFound)
		}
		return nil, err
	}
	return &appeal, nil
}

// FindPendingAppeal returns the flag's pending appeal or ErrNotFound
func (r *flagRepository) FindPendingAppeal(ctx context.Context, flagID int64) (*domain.ModerationAppeal, error) {
	var appeal domain.ModerationAppeal
	err := r.db.WithContext(ctx).
		Where("flag_id = ? AND status = ?", flagID, domain.AppealStatusPending).
		Order("id DESC").
		First(&appeal).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("pending appeal for flag %d: %w", flagID, common.ErrNotFound)
		}
		return nil, err
	}
	return &appeal, nil
}

func (r *flagRepository) CountAppeals(ctx context.Context, flagID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.ModerationAppeal{}).
		Where("flag_id = ?", flagID).
		Count(&count).Error
	return count, err
}

// UpdateAppeal applies update when the stored version equals expectedVersion
func (r *flagRepository) UpdateAppeal(ctx context.Context, id int64, update AppealUpdate, expectedVersion uint) (*domain.ModerationAppeal, error) {
	db := r.db.WithContext(ctx)

	result := db.Model(&domain.ModerationAppeal{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(map[string]interface{}{
			"status":      update.Status,
			"reviewed_by": update.ReviewedBy,
			"reviewed_at": update.ReviewedAt,
			"version":     gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetAppeal(ctx, id); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("appeal %d at version %d: %w", id, expectedVersion, common.ErrConflict)
	}
	return r.GetAppeal(ctx, id)
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}
