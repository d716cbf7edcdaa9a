package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/damoang/angple-moderation/internal/common"
	"github.com/damoang/angple-moderation/internal/domain"
	"github.com/damoang/angple-moderation/internal/repository"
	"github.com/rs/zerolog"
)

// AppealProcessor files and resolves appeals. It is the only writer of
// appeal status and drives the flag through FlagLifecycle.
type AppealProcessor struct {
	store      repository.FlagStore
	lifecycle  *FlagLifecycle
	maxAppeals int // 0 = unlimited
	logger     zerolog.Logger
}

// NewAppealProcessor creates a new AppealProcessor
func NewAppealProcessor(store repository.FlagStore, lifecycle *FlagLifecycle, maxAppeals int, logger zerolog.Logger) *AppealProcessor {
	return &AppealProcessor{
		store:      store,
		lifecycle:  lifecycle,
		maxAppeals: maxAppeals,
		logger:     logger,
	}
}

// FileAppeal opens an appeal against a resolved flag. The appeal row and the
// flag's move to appealed commit together.
func (p *AppealProcessor) FileAppeal(ctx context.Context, flagID int64, userID, reasoning string) (*domain.ModerationAppeal, error) {
	if strings.TrimSpace(userID) == "" || userID == domain.SystemActorID {
		return nil, fmt.Errorf("appellant is required: %w", common.ErrInvalidInput)
	}
	if strings.TrimSpace(reasoning) == "" {
		return nil, fmt.Errorf("appeal reasoning is required: %w", common.ErrInvalidInput)
	}

	var appeal *domain.ModerationAppeal
	err := retryOnConflict("appeal_open", p.logger, func() error {
		return p.store.Transaction(ctx, func(tx repository.FlagStore) error {
			flag, err := tx.GetFlag(ctx, flagID)
			if err != nil {
				return err
			}
			if !flag.Status.IsResolved() {
				return &common.AppealNotAllowedError{FlagID: flagID, Reason: fmt.Sprintf("flag is %s", flag.Status)}
			}

			_, err = tx.FindPendingAppeal(ctx, flagID)
			switch {
			case err == nil:
				return &common.AppealNotAllowedError{FlagID: flagID, Reason: "a pending appeal already exists"}
			case !errors.Is(err, common.ErrNotFound):
				return err
			}

			if p.maxAppeals > 0 {
				count, err := tx.CountAppeals(ctx, flagID)
				if err != nil {
					return err
				}
				if count >= int64(p.maxAppeals) {
					return &common.AppealNotAllowedError{FlagID: flagID, Reason: "appeal limit reached"}
				}
			}

			a := &domain.ModerationAppeal{
				FlagID:    flagID,
				UserID:    userID,
				Reasoning: reasoning,
				Status:    domain.AppealStatusPending,
			}
			if err := tx.CreateAppeal(ctx, a); err != nil {
				return fmt.Errorf("create appeal: %w", err)
			}
			if _, err := p.lifecycle.openAppeal(ctx, tx, flag); err != nil {
				return err
			}
			appeal = a
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info().Int64("flag_id", flagID).Int64("appeal_id", appeal.ID).Msg("appeal filed")
	return appeal, nil
}

// ResolveAppealInput a reviewer's ruling on a pending appeal
type ResolveAppealInput struct {
	AppealID  int64
	Reviewer  domain.Actor
	Outcome   domain.Outcome
	Reasoning string // optional; recorded on the reviewer's decision
}

// ResolveAppeal closes a pending appeal and moves its flag to the same
// outcome in one transaction, so a resolved appeal is never observed next to
// an appealed flag.
func (p *AppealProcessor) ResolveAppeal(ctx context.Context, in ResolveAppealInput) (*domain.ModerationAppeal, *domain.ModerationFlag, error) {
	if in.Reviewer.Kind != domain.ActorHuman || !in.Reviewer.Valid() {
		return nil, nil, fmt.Errorf("appeals must be resolved by a human reviewer: %w", common.ErrInvalidInput)
	}
	if !in.Outcome.Valid() {
		return nil, nil, fmt.Errorf("appeal outcome %q: %w", in.Outcome, common.ErrInvalidInput)
	}
	reasoning := strings.TrimSpace(in.Reasoning)
	if reasoning == "" {
		reasoning = fmt.Sprintf("Appeal %s on review.", in.Outcome)
	}

	var (
		appeal   *domain.ModerationAppeal
		flag     *domain.ModerationFlag
		previous domain.Outcome
	)
	err := retryOnConflict("appeal_resolve", p.logger, func() error {
		return p.store.Transaction(ctx, func(tx repository.FlagStore) error {
			current, err := tx.GetAppeal(ctx, in.AppealID)
			if err != nil {
				return err
			}
			if current.Status.IsResolved() {
				return fmt.Errorf("appeal %d is %s: %w", current.ID, current.Status, common.ErrAppealAlreadyResolved)
			}

			f, err := tx.GetFlag(ctx, current.FlagID)
			if err != nil {
				return err
			}

			reviewerID := in.Reviewer.ID
			now := time.Now()
			updatedAppeal, err := tx.UpdateAppeal(ctx, current.ID, repository.AppealUpdate{
				Status:     appealStatusFor(in.Outcome),
				ReviewedBy: &reviewerID,
				ReviewedAt: &now,
			}, current.Version)
			if err != nil {
				return err
			}

			updatedFlag, prev, err := p.lifecycle.resolveAppeal(ctx, tx, f, in.Reviewer, in.Outcome, reasoning)
			if err != nil {
				return err
			}
			appeal, flag, previous = updatedAppeal, updatedFlag, prev
			return nil
		})
	})
	if err != nil {
		return nil, nil, err
	}

	transitionsTotal.WithLabelValues(string(domain.ActionAppealResolve), string(flag.Status)).Inc()
	p.lifecycle.effects.Apply(ctx, flag, previous)
	return appeal, flag, nil
}

// GetAppeal returns one appeal
func (p *AppealProcessor) GetAppeal(ctx context.Context, id int64) (*domain.ModerationAppeal, error) {
	return p.store.GetAppeal(ctx, id)
}

func appealStatusFor(outcome domain.Outcome) domain.AppealStatus {
	if outcome == domain.OutcomeRejected {
		return domain.AppealStatusRejected
	}
	return domain.AppealStatusApproved
}
