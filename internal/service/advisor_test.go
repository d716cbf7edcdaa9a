package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/damoang/angple-moderation/internal/common"
	"github.com/damoang/angple-moderation/internal/domain"
	"github.com/damoang/angple-moderation/pkg/cache"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newAdvisor(f *fixture, c cache.Service) *AIAssistAdvisor {
	return NewAIAssistAdvisor(f.store, f.snapshots, f.analyzer, c, time.Minute, time.Second, zerolog.Nop())
}

func TestAIAssistAdvisor_Recommend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := newMemoryCache()
	advisor := newAdvisor(f, c)

	require.NoError(t, f.snapshots.Save(ctx, ref(1), "you are all idiots", nil))
	flag := f.reportedFlag(t, 1, "author-1")

	want := domain.Recommendation{Recommendation: domain.RecommendReject, Reasoning: "insult", Confidence: 88}
	f.analyzer.On("Explain", mock.Anything, "you are all idiots").Return(want, nil).Once()

	got, err := advisor.Recommend(ctx, flag.ID)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.True(t, c.has(cache.RecommendationKey(flag.ID)))
	assert.Equal(t, time.Minute, c.ttls[cache.RecommendationKey(flag.ID)])

	// 두 번째 호출은 캐시에서
	got, err = advisor.Recommend(ctx, flag.ID)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	f.analyzer.AssertNumberOfCalls(t, "Explain", 1)

	// 추천은 결정이 아님
	stored, err := f.store.GetFlag(ctx, flag.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.FlagStatusPending, stored.Status)
	decisions, err := f.store.ListDecisions(ctx, flag.ID)
	require.NoError(t, err)
	assert.Empty(t, decisions)
}

func TestAIAssistAdvisor_FallbackOnAnalyzerFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := newMemoryCache()
	advisor := newAdvisor(f, c)

	require.NoError(t, f.snapshots.Save(ctx, ref(1), "text", nil))
	flag := f.reportedFlag(t, 1, "author-1")

	f.analyzer.On("Explain", mock.Anything, "text").
		Return(domain.Recommendation{}, fmt.Errorf("provider down: %w", common.ErrAnalyzerUnavailable))

	got, err := advisor.Recommend(ctx, flag.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.FallbackRecommendation(), got)
	assert.Equal(t, domain.RecommendReview, got.Recommendation)
	assert.Equal(t, 0, got.Confidence)
	assert.False(t, c.has(cache.RecommendationKey(flag.ID)))

	decisions, err := f.store.ListDecisions(ctx, flag.ID)
	require.NoError(t, err)
	assert.Empty(t, decisions)
}

func TestAIAssistAdvisor_FallbackWithoutContent(t *testing.T) {
	f := newFixture(t)
	advisor := newAdvisor(f, nil)
	flag := f.reportedFlag(t, 1, "author-1")

	got, err := advisor.Recommend(context.Background(), flag.ID)
	require.NoError(t, err)
	assert.True(t, got.Fallback)
	f.analyzer.AssertNotCalled(t, "Explain", mock.Anything, mock.Anything)
}

func TestAIAssistAdvisor_MissingFlag(t *testing.T) {
	f := newFixture(t)
	advisor := newAdvisor(f, nil)

	_, err := advisor.Recommend(context.Background(), 9999)
	assert.True(t, errors.Is(err, common.ErrNotFound))
}
