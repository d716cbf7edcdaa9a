package service

import (
	"context"

	"github.com/damoang/angple-moderation/internal/domain"
	"github.com/damoang/angple-moderation/internal/events"
	"github.com/damoang/angple-moderation/internal/repository"
	"github.com/rs/zerolog"
)

// 포인트 원장 사유
const (
	pointReasonRejected = "moderation_rejected"
	pointReasonRestored = "moderation_restored"
)

// OutcomeEffects runs the best-effort side effects of a resolved flag after
// its transaction commits. Failures are logged, never returned.
type OutcomeEffects struct {
	bus                *events.Bus
	points             repository.PointRepository
	pointsPerRejection int
	logger             zerolog.Logger
}

// NewOutcomeEffects creates OutcomeEffects. bus and points may be nil.
func NewOutcomeEffects(bus *events.Bus, points repository.PointRepository, pointsPerRejection int, logger zerolog.Logger) *OutcomeEffects {
	return &OutcomeEffects{
		bus:                bus,
		points:             points,
		pointsPerRejection: pointsPerRejection,
		logger:             logger,
	}
}

// Apply reacts to flag having just reached its current status. previous is
// the outcome the flag held before (empty if it was never resolved).
func (e *OutcomeEffects) Apply(ctx context.Context, flag *domain.ModerationFlag, previous domain.Outcome) {
	if e == nil || flag == nil {
		return
	}

	switch flag.Status {
	case domain.FlagStatusRejected:
		e.publishRejected(flag)
		if previous != domain.OutcomeRejected {
			e.adjustPoints(ctx, flag, -e.pointsPerRejection, pointReasonRejected)
		}
	case domain.FlagStatusApproved:
		if previous == domain.OutcomeRejected {
			e.adjustPoints(ctx, flag, e.pointsPerRejection, pointReasonRestored)
		}
	}
}

func (e *OutcomeEffects) publishRejected(flag *domain.ModerationFlag) {
	if e.bus == nil {
		return
	}
	e.bus.PublishAsync("moderation", events.TopicFlagRejected, domain.FlagRejectedEvent{
		FlagID:      flag.ID,
		ContentType: flag.Content.ContentType,
		ContentID:   flag.Content.ContentID,
		Status:      flag.Status,
	})
}

func (e *OutcomeEffects) adjustPoints(ctx context.Context, flag *domain.ModerationFlag, delta int, reason string) {
	if e.points == nil || delta == 0 || flag.AuthorID == nil || *flag.AuthorID == "" {
		return
	}
	entry := &domain.PointEntry{
		UserID: *flag.AuthorID,
		FlagID: flag.ID,
		Delta:  delta,
		Reason: reason,
	}
	if err := e.points.Add(context.WithoutCancel(ctx), entry); err != nil {
		e.logger.Warn().Err(err).
			Int64("flag_id", flag.ID).
			Str("user_id", *flag.AuthorID).
			Int("delta", delta).
			Msg("failed to record point adjustment")
	}
}
