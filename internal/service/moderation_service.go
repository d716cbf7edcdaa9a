package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/damoang/angple-moderation/internal/common"
	"github.com/damoang/angple-moderation/internal/domain"
	"github.com/rs/zerolog"
)

// ContentAnalyzer scores and explains content. Implementations wrap every
// failure in common.ErrAnalyzerUnavailable.
type ContentAnalyzer interface {
	Analyze(ctx context.Context, text string) (domain.Analysis, error)
	Explain(ctx context.Context, text string) (domain.Recommendation, error)
}

// SnapshotStore keeps the moderated text per content reference
type SnapshotStore interface {
	Save(ctx context.Context, ref domain.ContentReference, text string, authorID *string) error
}

// FailureQueue holds analyses that must be retried
type FailureQueue interface {
	Create(ctx context.Context, failure *domain.AnalysisFailure) error
	ListRetryable(ctx context.Context, limit int) ([]domain.AnalysisFailure, error)
	MarkResolved(ctx context.Context, id int64) error
	RecordAttempt(ctx context.Context, id int64, lastErr string) error
}

// ModerateInput content submitted for automatic moderation
type ModerateInput struct {
	Content  domain.ContentReference
	Text     string
	AuthorID *string
}

// ReportInput a user's report against content
type ReportInput struct {
	Content  domain.ContentReference
	Reporter domain.Actor
	Reason   string
	Text     string // optional snapshot of the reported text
	AuthorID *string
}

// ModerationService runs content through the analyzer and the automatic
// policy and accepts human reports
type ModerationService struct {
	analyzer  ContentAnalyzer
	policy    AutoModerationPolicy
	lifecycle *FlagLifecycle
	snapshots SnapshotStore
	failures  FailureQueue
	timeout   time.Duration
	batch     int
	logger    zerolog.Logger
}

// ModerationServiceOptions optional collaborators and limits
type ModerationServiceOptions struct {
	Snapshots       SnapshotStore
	Failures        FailureQueue
	AnalyzerTimeout time.Duration
	ReanalysisBatch int
}

// NewModerationService creates a new ModerationService
func NewModerationService(analyzer ContentAnalyzer, policy AutoModerationPolicy, lifecycle *FlagLifecycle, opts ModerationServiceOptions, logger zerolog.Logger) *ModerationService {
	if opts.ReanalysisBatch < 1 {
		opts.ReanalysisBatch = 50
	}
	return &ModerationService{
		analyzer:  analyzer,
		policy:    policy,
		lifecycle: lifecycle,
		snapshots: opts.Snapshots,
		failures:  opts.Failures,
		timeout:   opts.AnalyzerTimeout,
		batch:     opts.ReanalysisBatch,
		logger:    logger,
	}
}

// AutoModerate analyzes the text and applies the automatic policy. An
// analyzer failure never blocks the content: it is approved, logged and
// queued for re-analysis.
func (s *ModerationService) AutoModerate(ctx context.Context, in ModerateInput) (*domain.AutoModerationResult, error) {
	if !in.Content.ContentType.Valid() {
		return nil, fmt.Errorf("content type %q: %w", in.Content.ContentType, common.ErrInvalidInput)
	}
	if strings.TrimSpace(in.Text) == "" {
		return nil, fmt.Errorf("text is required: %w", common.ErrInvalidInput)
	}

	s.saveSnapshot(ctx, in.Content, in.Text, in.AuthorID)

	analysis, err := s.analyze(ctx, in.Text)
	if err != nil {
		analyzerFailuresTotal.WithLabelValues("analyze").Inc()
		s.logger.Warn().Err(err).
			Str("content_type", string(in.Content.ContentType)).
			Int64("content_id", in.Content.ContentID).
			Msg("content analysis failed, approving and queueing re-analysis")
		s.queueFailure(ctx, in, err)

		autoModerationTotal.WithLabelValues(string(domain.ActionAutoApprove)).Inc()
		return &domain.AutoModerationResult{
			Flagged:        false,
			Action:         domain.ActionAutoApprove,
			Status:         domain.AutoApprovedStatus,
			Analysis:       domain.NotFlagged(),
			AnalyzerFailed: true,
		}, nil
	}

	return s.apply(ctx, in.Content, in.AuthorID, analysis)
}

// ReportContent opens a pending flag for a human report
func (s *ModerationService) ReportContent(ctx context.Context, in ReportInput) (*domain.ModerationFlag, error) {
	flag, err := s.lifecycle.CreateFromReport(ctx, in.Content, in.Reporter, in.Reason, in.AuthorID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Text) != "" {
		s.saveSnapshot(ctx, in.Content, in.Text, in.AuthorID)
	}
	s.logger.Info().Int64("flag_id", flag.ID).Str("reporter", in.Reporter.ID).Msg("content reported")
	return flag, nil
}

// ReanalyzePending retries queued analyses. Successful ones go through the
// automatic policy and are resolved; failures count an attempt. It returns
// the number of rows resolved.
func (s *ModerationService) ReanalyzePending(ctx context.Context) (int, error) {
	if s.failures == nil {
		return 0, nil
	}
	pending, err := s.failures.ListRetryable(ctx, s.batch)
	if err != nil {
		return 0, fmt.Errorf("list analysis failures: %w", err)
	}

	resolved := 0
	for i := range pending {
		if err := ctx.Err(); err != nil {
			return resolved, err
		}
		f := &pending[i]

		analysis, err := s.analyze(ctx, f.Text)
		if err != nil {
			analyzerFailuresTotal.WithLabelValues("reanalyze").Inc()
			if rerr := s.failures.RecordAttempt(ctx, f.ID, err.Error()); rerr != nil {
				s.logger.Warn().Err(rerr).Int64("failure_id", f.ID).Msg("failed to record re-analysis attempt")
			}
			continue
		}

		result, err := s.apply(ctx, f.Reference(), f.AuthorID, analysis)
		if err != nil {
			s.logger.Warn().Err(err).Int64("failure_id", f.ID).Msg("re-analysis could not be applied")
			if rerr := s.failures.RecordAttempt(ctx, f.ID, err.Error()); rerr != nil {
				s.logger.Warn().Err(rerr).Int64("failure_id", f.ID).Msg("failed to record re-analysis attempt")
			}
			continue
		}
		if err := s.failures.MarkResolved(ctx, f.ID); err != nil {
			s.logger.Warn().Err(err).Int64("failure_id", f.ID).Msg("failed to resolve analysis failure")
			continue
		}
		resolved++
		s.logger.Info().Int64("failure_id", f.ID).Str("action", string(result.Action)).Msg("content re-analyzed")
	}
	return resolved, nil
}

// apply classifies analysis and creates the flag the policy asks for
func (s *ModerationService) apply(ctx context.Context, ref domain.ContentReference, authorID *string, analysis domain.Analysis) (*domain.AutoModerationResult, error) {
	decision := s.policy.Classify(analysis)
	result := &domain.AutoModerationResult{
		Flagged:  analysis.Flagged,
		Action:   decision.Action,
		Analysis: analysis,
	}

	switch decision.Action {
	case domain.ActionAutoApprove:
		result.Status = domain.AutoApprovedStatus
	case domain.ActionAutoFlag:
		flag, err := s.lifecycle.CreateAutoFlagged(ctx, ref, analysis, authorID)
		if err != nil {
			return nil, err
		}
		result.Flag = flag
		result.Status = string(flag.Status)
	case domain.ActionAutoReject:
		flag, d, err := s.lifecycle.CreateAutoRejected(ctx, ref, analysis, authorID)
		if err != nil {
			return nil, err
		}
		result.Flag, result.Decision = flag, d
		result.Status = string(flag.Status)
	}

	autoModerationTotal.WithLabelValues(string(decision.Action)).Inc()
	return result, nil
}

func (s *ModerationService) analyze(ctx context.Context, text string) (domain.Analysis, error) {
	if s.analyzer == nil {
		return domain.Analysis{}, fmt.Errorf("no analyzer configured: %w", common.ErrAnalyzerUnavailable)
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.analyzer.Analyze(ctx, text)
}

func (s *ModerationService) saveSnapshot(ctx context.Context, ref domain.ContentReference, text string, authorID *string) {
	if s.snapshots == nil {
		return
	}
	if err := s.snapshots.Save(ctx, ref, text, authorID); err != nil {
		s.logger.Warn().Err(err).Int64("content_id", ref.ContentID).Msg("failed to save content snapshot")
	}
}

func (s *ModerationService) queueFailure(ctx context.Context, in ModerateInput, cause error) {
	if s.failures == nil {
		return
	}
	failure := &domain.AnalysisFailure{
		ContentID:   in.Content.ContentID,
		ContentType: in.Content.ContentType,
		AuthorID:    in.AuthorID,
		Text:        in.Text,
		LastError:   cause.Error(),
		Attempts:    1,
	}
	if err := s.failures.Create(context.WithoutCancel(ctx), failure); err != nil {
		s.logger.Warn().Err(err).Int64("content_id", in.Content.ContentID).Msg("failed to queue re-analysis")
	}
}
