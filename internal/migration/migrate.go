package migration

import (
	"fmt"

	"github.com/damoang/angple-moderation/internal/domain"
	"gorm.io/gorm"
)

// Models returns every table owned by the moderation engine, in creation order
func Models() []interface{} {
	return []interface{}{
		&domain.ModerationFlag{},
		&domain.ModerationDecision{},
		&domain.ModerationAppeal{},
		&domain.ContentSnapshot{},
		&domain.AnalysisFailure{},
		&domain.PointEntry{},
	}
}

// Run executes AutoMigrate for the moderation tables.
// 테이블 없으면 생성, 있으면 누락된 컬럼/인덱스만 추가
func Run(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("moderation automigrate: %w", err)
	}
	return nil
}

// TableStatus reports whether a moderation table exists
type TableStatus struct {
	Table  string `json:"table"`
	Exists bool   `json:"exists"`
}

// Verify lists each moderation table and whether it is present
func Verify(db *gorm.DB) ([]TableStatus, error) {
	stmt := &gorm.Statement{DB: db}
	result := make([]TableStatus, 0, len(Models()))
	for _, model := range Models() {
		if err := stmt.Parse(model); err != nil {
			return nil, err
		}
		result = append(result, TableStatus{
			Table:  stmt.Schema.Table,
			Exists: db.Migrator().HasTable(model),
		})
	}
	return result, nil
}
