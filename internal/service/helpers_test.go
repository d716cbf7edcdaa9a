package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/damoang/angple-moderation/internal/domain"
	"github.com/damoang/angple-moderation/internal/events"
	"github.com/damoang/angple-moderation/internal/migration"
	"github.com/damoang/angple-moderation/internal/repository"
	"github.com/damoang/angple-moderation/pkg/cache"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// :memory: DB는 커넥션마다 별개이므로 하나로 고정
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, migration.Run(db))
	return db
}

// MockAnalyzer is a mock implementation of ContentAnalyzer
type MockAnalyzer struct {
	mock.Mock
}

func (m *MockAnalyzer) Analyze(ctx context.Context, text string) (domain.Analysis, error) {
	args := m.Called(ctx, text)
	return args.Get(0).(domain.Analysis), args.Error(1)
}

func (m *MockAnalyzer) Explain(ctx context.Context, text string) (domain.Recommendation, error) {
	args := m.Called(ctx, text)
	return args.Get(0).(domain.Recommendation), args.Error(1)
}

// memoryCache is an in-process cache.Service
type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (c *memoryCache) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[key]
	if !ok {
		return cache.ErrMiss
	}
	return json.Unmarshal(b, dest)
}

func (c *memoryCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = b
	c.ttls[key] = ttl
	return nil
}

func (c *memoryCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func (c *memoryCache) IsAvailable() bool { return true }

func (c *memoryCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

// fixture wires the moderation services over one sqlite database
type fixture struct {
	db        *gorm.DB
	store     repository.FlagStore
	points    repository.PointRepository
	snapshots *repository.ContentSnapshotRepository
	failures  *repository.AnalysisFailureRepository
	bus       *events.Bus
	analyzer  *MockAnalyzer
	lifecycle *FlagLifecycle
	appeals   *AppealProcessor
	service   *ModerationService
}

const testPointsPerRejection = 10

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := setupTestDB(t)
	log := zerolog.Nop()

	f := &fixture{
		db:        db,
		store:     repository.NewFlagRepository(db),
		points:    repository.NewPointRepository(db),
		snapshots: repository.NewContentSnapshotRepository(db),
		failures:  repository.NewAnalysisFailureRepository(db),
		bus:       events.NewBus(log),
		analyzer:  new(MockAnalyzer),
	}
	effects := NewOutcomeEffects(f.bus, f.points, testPointsPerRejection, log)
	f.lifecycle = NewFlagLifecycle(f.store, effects, log)
	f.appeals = NewAppealProcessor(f.store, f.lifecycle, 0, log)
	f.service = NewModerationService(f.analyzer, NewAutoModerationPolicy(domain.AutoRejectThreshold), f.lifecycle, ModerationServiceOptions{
		Snapshots: f.snapshots,
		Failures:  f.failures,
	}, log)
	return f
}

func ref(id int64) domain.ContentReference {
	return domain.ContentReference{ContentID: id, ContentType: domain.ContentTypeComment}
}

func strPtr(s string) *string { return &s }

// reportedFlag creates a pending flag through a human report
func (f *fixture) reportedFlag(t *testing.T, contentID int64, authorID string) *domain.ModerationFlag {
	t.Helper()
	flag, err := f.lifecycle.CreateFromReport(context.Background(), ref(contentID), domain.Human("reporter-1"), "harassment", strPtr(authorID))
	require.NoError(t, err)
	return flag
}

// decidedFlag creates a flag and resolves it with outcome
func (f *fixture) decidedFlag(t *testing.T, contentID int64, outcome domain.Outcome) *domain.ModerationFlag {
	t.Helper()
	flag := f.reportedFlag(t, contentID, "author-1")
	decided, _, err := f.lifecycle.Decide(context.Background(), DecideInput{
		FlagID:    flag.ID,
		Moderator: domain.Human("mod-1"),
		Decision:  outcome,
		Reasoning: "reviewed",
	})
	require.NoError(t, err)
	return decided
}
