package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/damoang/angple-moderation/internal/common"
	"github.com/damoang/angple-moderation/internal/domain"
	"github.com/damoang/angple-moderation/internal/repository"
	"github.com/rs/zerolog"
)

// Transition returns the status a flag moves to when action is applied in
// status from. Creation actions take an empty from. outcome is only read by
// decide and appeal_resolve.
func Transition(from domain.FlagStatus, action domain.LifecycleAction, outcome domain.Outcome) (domain.FlagStatus, error) {
	invalid := &common.InvalidTransitionError{From: string(from), Action: string(action)}

	switch action {
	case domain.ActionCreateReport:
		if from == "" {
			return domain.FlagStatusPending, nil
		}
	case domain.ActionCreateAutoFlag:
		if from == "" {
			return domain.FlagStatusAutoFlagged, nil
		}
	case domain.ActionCreateAutoReject:
		if from == "" {
			return domain.FlagStatusRejected, nil
		}
	case domain.ActionDecide:
		if from.AwaitingReview() {
			if !outcome.Valid() {
				return "", fmt.Errorf("decision %q: %w", outcome, common.ErrInvalidInput)
			}
			return outcome.FlagStatus(), nil
		}
	case domain.ActionAppealOpen:
		if from.IsResolved() {
			return domain.FlagStatusAppealed, nil
		}
	case domain.ActionAppealResolve:
		if from == domain.FlagStatusAppealed {
			if !outcome.Valid() {
				return "", fmt.Errorf("appeal outcome %q: %w", outcome, common.ErrInvalidInput)
			}
			return outcome.FlagStatus(), nil
		}
	}
	return "", invalid
}

// DecideInput a human moderator's judgement on a flag awaiting review
type DecideInput struct {
	FlagID     int64
	Moderator  domain.Actor
	Decision   domain.Outcome
	Reasoning  string
	AIAssisted bool
}

// FlagLifecycle is the only writer of flag status
type FlagLifecycle struct {
	store   repository.FlagStore
	effects *OutcomeEffects
	logger  zerolog.Logger
}

// NewFlagLifecycle creates a new FlagLifecycle. effects may be nil.
func NewFlagLifecycle(store repository.FlagStore, effects *OutcomeEffects, logger zerolog.Logger) *FlagLifecycle {
	return &FlagLifecycle{store: store, effects: effects, logger: logger}
}

// CreateFromReport opens a pending flag for a human report
func (l *FlagLifecycle) CreateFromReport(ctx context.Context, ref domain.ContentReference, reporter domain.Actor, reason string, authorID *string) (*domain.ModerationFlag, error) {
	if reporter.Kind != domain.ActorHuman || !reporter.Valid() {
		return nil, fmt.Errorf("reporter must be a human user: %w", common.ErrInvalidInput)
	}
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("report reason is required: %w", common.ErrInvalidInput)
	}

	status, err := Transition("", domain.ActionCreateReport, "")
	if err != nil {
		return nil, err
	}
	flag, err := l.newFlag(ref, reporter, reason, authorID, status, nil)
	if err != nil {
		return nil, err
	}
	if err := l.store.CreateFlag(ctx, flag); err != nil {
		return nil, fmt.Errorf("create flag: %w", err)
	}
	transitionsTotal.WithLabelValues(string(domain.ActionCreateReport), string(status)).Inc()
	return flag, nil
}

// CreateAutoFlagged opens an auto_flagged flag carrying the analyzer verdict
func (l *FlagLifecycle) CreateAutoFlagged(ctx context.Context, ref domain.ContentReference, analysis domain.Analysis, authorID *string) (*domain.ModerationFlag, error) {
	status, err := Transition("", domain.ActionCreateAutoFlag, "")
	if err != nil {
		return nil, err
	}
	flag, err := l.newFlag(ref, domain.System(), autoReason(domain.ActionAutoFlag, analysis), authorID, status, &analysis)
	if err != nil {
		return nil, err
	}
	if err := l.store.CreateFlag(ctx, flag); err != nil {
		return nil, fmt.Errorf("create flag: %w", err)
	}
	transitionsTotal.WithLabelValues(string(domain.ActionCreateAutoFlag), string(status)).Inc()
	return flag, nil
}

// CreateAutoRejected creates a rejected flag and its system decision in one
// transaction. The decision carries the analyzer's reasoning.
func (l *FlagLifecycle) CreateAutoRejected(ctx context.Context, ref domain.ContentReference, analysis domain.Analysis, authorID *string) (*domain.ModerationFlag, *domain.ModerationDecision, error) {
	status, err := Transition("", domain.ActionCreateAutoReject, "")
	if err != nil {
		return nil, nil, err
	}
	flag, err := l.newFlag(ref, domain.System(), autoReason(domain.ActionAutoReject, analysis), authorID, status, &analysis)
	if err != nil {
		return nil, nil, err
	}

	reasoning := analysis.Reasoning
	if strings.TrimSpace(reasoning) == "" {
		reasoning = fmt.Sprintf("Automatically rejected: risk score %d exceeds threshold.", analysis.FlagScore)
	}

	var decision *domain.ModerationDecision
	err = l.store.Transaction(ctx, func(tx repository.FlagStore) error {
		if err := tx.CreateFlag(ctx, flag); err != nil {
			return fmt.Errorf("create flag: %w", err)
		}
		decision = &domain.ModerationDecision{
			FlagID:     flag.ID,
			Moderator:  domain.System(),
			Decision:   domain.OutcomeRejected,
			Reasoning:  reasoning,
			AIAssisted: true,
		}
		if err := tx.CreateDecision(ctx, decision); err != nil {
			return fmt.Errorf("create system decision: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	transitionsTotal.WithLabelValues(string(domain.ActionCreateAutoReject), string(status)).Inc()
	l.effects.Apply(ctx, flag, "")
	return flag, decision, nil
}

// Decide records a human decision on a pending or auto_flagged flag.
// A version conflict is retried once against a fresh read.
func (l *FlagLifecycle) Decide(ctx context.Context, in DecideInput) (*domain.ModerationFlag, *domain.ModerationDecision, error) {
	if in.Moderator.Kind != domain.ActorHuman || !in.Moderator.Valid() {
		return nil, nil, fmt.Errorf("decisions must be made by a human moderator: %w", common.ErrInvalidInput)
	}
	if !in.Decision.Valid() {
		return nil, nil, fmt.Errorf("decision %q: %w", in.Decision, common.ErrInvalidInput)
	}
	if strings.TrimSpace(in.Reasoning) == "" {
		return nil, nil, fmt.Errorf("decision reasoning is required: %w", common.ErrInvalidInput)
	}

	var (
		flag     *domain.ModerationFlag
		decision *domain.ModerationDecision
	)
	err := retryOnConflict("decide", l.logger, func() error {
		return l.store.Transaction(ctx, func(tx repository.FlagStore) error {
			current, err := tx.GetFlag(ctx, in.FlagID)
			if err != nil {
				return err
			}
			next, err := Transition(current.Status, domain.ActionDecide, in.Decision)
			if err != nil {
				return err
			}
			updated, err := tx.UpdateFlagStatus(ctx, current.ID, next, current.Version)
			if err != nil {
				return err
			}
			d := &domain.ModerationDecision{
				FlagID:     current.ID,
				Moderator:  in.Moderator,
				Decision:   in.Decision,
				Reasoning:  in.Reasoning,
				AIAssisted: in.AIAssisted || in.Moderator.IsSystem(),
			}
			if err := tx.CreateDecision(ctx, d); err != nil {
				return fmt.Errorf("create decision: %w", err)
			}
			flag, decision = updated, d
			return nil
		})
	})
	if err != nil {
		return nil, nil, err
	}

	transitionsTotal.WithLabelValues(string(domain.ActionDecide), string(flag.Status)).Inc()
	l.effects.Apply(ctx, flag, "")
	return flag, decision, nil
}

// openAppeal moves a resolved flag to appealed inside tx
func (l *FlagLifecycle) openAppeal(ctx context.Context, tx repository.FlagStore, flag *domain.ModerationFlag) (*domain.ModerationFlag, error) {
	next, err := Transition(flag.Status, domain.ActionAppealOpen, "")
	if err != nil {
		return nil, err
	}
	updated, err := tx.UpdateFlagStatus(ctx, flag.ID, next, flag.Version)
	if err != nil {
		return nil, err
	}
	transitionsTotal.WithLabelValues(string(domain.ActionAppealOpen), string(next)).Inc()
	return updated, nil
}

// resolveAppeal moves an appealed flag to the appeal outcome inside tx and
// records the reviewer's decision. It returns the outcome the flag held
// before the appeal was opened.
func (l *FlagLifecycle) resolveAppeal(ctx context.Context, tx repository.FlagStore, flag *domain.ModerationFlag, reviewer domain.Actor, outcome domain.Outcome, reasoning string) (*domain.ModerationFlag, domain.Outcome, error) {
	next, err := Transition(flag.Status, domain.ActionAppealResolve, outcome)
	if err != nil {
		return nil, "", err
	}

	var previous domain.Outcome
	decisions, err := tx.ListDecisions(ctx, flag.ID)
	if err != nil {
		return nil, "", err
	}
	if len(decisions) > 0 {
		previous = decisions[0].Decision
	}

	updated, err := tx.UpdateFlagStatus(ctx, flag.ID, next, flag.Version)
	if err != nil {
		return nil, "", err
	}
	if err := tx.CreateDecision(ctx, &domain.ModerationDecision{
		FlagID:    flag.ID,
		Moderator: reviewer,
		Decision:  outcome,
		Reasoning: reasoning,
	}); err != nil {
		return nil, "", fmt.Errorf("create appeal decision: %w", err)
	}
	return updated, previous, nil
}

// Get returns one flag
func (l *FlagLifecycle) Get(ctx context.Context, id int64) (*domain.ModerationFlag, error) {
	return l.store.GetFlag(ctx, id)
}

// List returns flags filtered by status (all when status is empty)
func (l *FlagLifecycle) List(ctx context.Context, status domain.FlagStatus, page, limit int) (*domain.FlagListResponse, error) {
	var statuses []domain.FlagStatus
	if status != "" {
		if !status.Valid() {
			return nil, fmt.Errorf("status %q: %w", status, common.ErrInvalidInput)
		}
		statuses = append(statuses, status)
	}
	return l.list(ctx, page, limit, statuses...)
}

// Queue returns flags awaiting a human decision
func (l *FlagLifecycle) Queue(ctx context.Context, page, limit int) (*domain.FlagListResponse, error) {
	return l.list(ctx, page, limit, domain.FlagStatusPending, domain.FlagStatusAutoFlagged)
}

// Decisions returns the decision history of a flag, newest first
func (l *FlagLifecycle) Decisions(ctx context.Context, flagID int64) ([]domain.ModerationDecision, error) {
	if _, err := l.store.GetFlag(ctx, flagID); err != nil {
		return nil, err
	}
	return l.store.ListDecisions(ctx, flagID)
}

func (l *FlagLifecycle) list(ctx context.Context, page, limit int, statuses ...domain.FlagStatus) (*domain.FlagListResponse, error) {
	flags, total, err := l.store.ListFlagsByStatus(ctx, page, limit, statuses...)
	if err != nil {
		return nil, err
	}
	if flags == nil {
		flags = []domain.ModerationFlag{}
	}
	if page < 1 {
		page = 1
	}
	return &domain.FlagListResponse{Flags: flags, Total: total, Page: page, Limit: limit}, nil
}

func (l *FlagLifecycle) newFlag(ref domain.ContentReference, reporter domain.Actor, reason string, authorID *string, status domain.FlagStatus, analysis *domain.Analysis) (*domain.ModerationFlag, error) {
	if !ref.ContentType.Valid() {
		return nil, fmt.Errorf("content type %q: %w", ref.ContentType, common.ErrInvalidInput)
	}
	flag := &domain.ModerationFlag{
		Content:    ref,
		AuthorID:   authorID,
		ReportedBy: reporter,
		Reason:     reason,
		Status:     status,
	}
	if analysis != nil {
		if analysis.FlagScore < 0 || analysis.FlagScore > 100 {
			return nil, fmt.Errorf("ai score %d: %w", analysis.FlagScore, common.ErrInvalidInput)
		}
		score := analysis.FlagScore
		flag.AIScore = &score
		if analysis.Reasoning != "" {
			reasoning := analysis.Reasoning
			flag.AIReasoning = &reasoning
		}
		if len(analysis.CategoryScores) > 0 {
			if b, err := json.Marshal(analysis.CategoryScores); err == nil {
				flag.CategoryScores = string(b)
			}
		}
	}
	return flag, nil
}

func autoReason(action domain.ModerationAction, analysis domain.Analysis) string {
	return fmt.Sprintf("%s: risk score %d", action, analysis.FlagScore)
}

// retryOnConflict runs fn and, on a version conflict, runs it exactly once
// more. A second conflict is returned to the caller.
func retryOnConflict(operation string, logger zerolog.Logger, fn func() error) error {
	err := fn()
	if !errors.Is(err, common.ErrConflict) {
		return err
	}
	conflictsTotal.WithLabelValues(operation).Inc()
	logger.Warn().Err(err).Str("operation", operation).Msg("version conflict, retrying once")

	err = fn()
	if errors.Is(err, common.ErrConflict) {
		conflictsTotal.WithLabelValues(operation).Inc()
	}
	return err
}
