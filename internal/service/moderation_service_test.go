package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/damoang/angple-moderation/internal/common"
	"github.com/damoang/angple-moderation/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestModerationService_AutoModerate(t *testing.T) {
	tests := []struct {
		name       string
		analysis   domain.Analysis
		action     domain.ModerationAction
		status     string
		wantFlag   bool
		wantSystem bool
	}{
		{
			name:     "benign content is approved",
			analysis: domain.Analysis{Flagged: false, FlagScore: 2},
			action:   domain.ActionAutoApprove,
			status:   domain.AutoApprovedStatus,
		},
		{
			name:     "borderline content is queued",
			analysis: domain.Analysis{Flagged: true, FlagScore: 55, Reasoning: "mild insult"},
			action:   domain.ActionAutoFlag,
			status:   string(domain.FlagStatusAutoFlagged),
			wantFlag: true,
		},
		{
			name:       "severe content is rejected",
			analysis:   domain.Analysis{Flagged: true, FlagScore: 91, Reasoning: "explicit threat"},
			action:     domain.ActionAutoReject,
			status:     string(domain.FlagStatusRejected),
			wantFlag:   true,
			wantSystem: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			f.analyzer.On("Analyze", mock.Anything, "some text").Return(tt.analysis, nil)

			result, err := f.service.AutoModerate(ctx, ModerateInput{Content: ref(1), Text: "some text", AuthorID: strPtr("author-1")})
			require.NoError(t, err)

			assert.Equal(t, tt.action, result.Action)
			assert.Equal(t, tt.status, result.Status)
			assert.Equal(t, tt.analysis.Flagged, result.Flagged)
			assert.False(t, result.AnalyzerFailed)

			all, err := f.lifecycle.List(ctx, "", 1, 20)
			require.NoError(t, err)
			if !tt.wantFlag {
				assert.Nil(t, result.Flag)
				assert.Equal(t, int64(0), all.Total)
				return
			}
			require.NotNil(t, result.Flag)
			assert.Equal(t, int64(1), all.Total)
			require.NotNil(t, result.Flag.AIScore)
			assert.Equal(t, tt.analysis.FlagScore, *result.Flag.AIScore)

			if tt.wantSystem {
				require.NotNil(t, result.Decision)
				assert.True(t, result.Decision.Moderator.IsSystem())
				assert.True(t, result.Decision.AIAssisted)
				assert.Equal(t, tt.analysis.Reasoning, result.Decision.Reasoning)
			} else {
				assert.Nil(t, result.Decision)
			}

			text, err := f.snapshots.LoadText(ctx, ref(1))
			require.NoError(t, err)
			assert.Equal(t, "some text", text)
		})
	}
}

func TestModerationService_AutoModerateFailsOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.analyzer.On("Analyze", mock.Anything, "text").
		Return(domain.Analysis{}, fmt.Errorf("timeout: %w", common.ErrAnalyzerUnavailable))

	result, err := f.service.AutoModerate(ctx, ModerateInput{Content: ref(1), Text: "text", AuthorID: strPtr("author-1")})
	require.NoError(t, err)
	assert.False(t, result.Flagged)
	assert.Equal(t, domain.AutoApprovedStatus, result.Status)
	assert.Equal(t, 0, result.Analysis.FlagScore)
	assert.True(t, result.AnalyzerFailed)
	assert.Nil(t, result.Flag)

	all, err := f.lifecycle.List(ctx, "", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(0), all.Total)

	queued, err := f.failures.ListRetryable(ctx, 10)
	require.NoError(t, err)
	require.Len(t, queued, 1)
	assert.Equal(t, "text", queued[0].Text)
	assert.Equal(t, 1, queued[0].Attempts)
}

func TestModerationService_AutoModerateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.AutoModerate(ctx, ModerateInput{Content: ref(1), Text: "  "})
	assert.True(t, errors.Is(err, common.ErrInvalidInput))

	_, err = f.service.AutoModerate(ctx, ModerateInput{Content: domain.ContentReference{ContentID: 1, ContentType: "tweet"}, Text: "x"})
	assert.True(t, errors.Is(err, common.ErrInvalidInput))

	f.analyzer.AssertNotCalled(t, "Analyze", mock.Anything, mock.Anything)
}

func TestModerationService_ReportContent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	flag, err := f.service.ReportContent(ctx, ReportInput{
		Content:  ref(5),
		Reporter: domain.Human("user-9"),
		Reason:   "spam link",
		Text:     "buy now",
		AuthorID: strPtr("author-5"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.FlagStatusPending, flag.Status)

	text, err := f.snapshots.LoadText(ctx, ref(5))
	require.NoError(t, err)
	assert.Equal(t, "buy now", text)

	_, err = f.service.ReportContent(ctx, ReportInput{Content: ref(6), Reporter: domain.Human("user-9")})
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
}

func TestModerationService_ReanalyzePending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.analyzer.On("Analyze", mock.Anything, "first").
		Return(domain.Analysis{}, common.ErrAnalyzerUnavailable).Once()
	f.analyzer.On("Analyze", mock.Anything, "second").
		Return(domain.Analysis{}, common.ErrAnalyzerUnavailable).Once()

	_, err := f.service.AutoModerate(ctx, ModerateInput{Content: ref(1), Text: "first"})
	require.NoError(t, err)
	_, err = f.service.AutoModerate(ctx, ModerateInput{Content: ref(2), Text: "second"})
	require.NoError(t, err)

	// 재분석: 첫 건은 성공, 둘째 건은 다시 실패
	f.analyzer.On("Analyze", mock.Anything, "first").
		Return(domain.Analysis{Flagged: true, FlagScore: 60}, nil).Once()
	f.analyzer.On("Analyze", mock.Anything, "second").
		Return(domain.Analysis{}, common.ErrAnalyzerUnavailable).Once()

	resolved, err := f.service.ReanalyzePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, resolved)

	queue, err := f.lifecycle.Queue(ctx, 1, 20)
	require.NoError(t, err)
	require.Equal(t, int64(1), queue.Total)
	assert.Equal(t, int64(1), queue.Flags[0].Content.ContentID)
	assert.Equal(t, domain.FlagStatusAutoFlagged, queue.Flags[0].Status)

	remaining, err := f.failures.ListRetryable(ctx, 10)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "second", remaining[0].Text)
	assert.Equal(t, 2, remaining[0].Attempts)
}

func TestModerationService_ReanalyzeStopsAfterMaxAttempts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.analyzer.On("Analyze", mock.Anything, "stuck").Return(domain.Analysis{}, common.ErrAnalyzerUnavailable)

	_, err := f.service.AutoModerate(ctx, ModerateInput{Content: ref(1), Text: "stuck"})
	require.NoError(t, err)

	for i := 0; i < domain.MaxAnalysisAttempts+2; i++ {
		_, err := f.service.ReanalyzePending(ctx)
		require.NoError(t, err)
	}

	remaining, err := f.failures.ListRetryable(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, remaining)
	// 최초 1회 + 재시도 4회
	f.analyzer.AssertNumberOfCalls(t, "Analyze", domain.MaxAnalysisAttempts)
}
