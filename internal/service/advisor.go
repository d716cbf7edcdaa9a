package service

import (
	"context"
	"errors"
	"time"

	"github.com/damoang/angple-moderation/internal/domain"
	"github.com/damoang/angple-moderation/internal/repository"
	"github.com/damoang/angple-moderation/pkg/cache"
	"github.com/rs/zerolog"
)

// ContentSource resolves a content reference to the text that was moderated
type ContentSource interface {
	LoadText(ctx context.Context, ref domain.ContentReference) (string, error)
}

// Explainer produces an advisory recommendation for a piece of text
type Explainer interface {
	Explain(ctx context.Context, text string) (domain.Recommendation, error)
}

// AIAssistAdvisor offers human moderators an AI recommendation for a flag.
// It only reads the flag store.
type AIAssistAdvisor struct {
	store     repository.FlagStore
	content   ContentSource
	explainer Explainer
	cache     cache.Service
	ttl       time.Duration
	timeout   time.Duration
	logger    zerolog.Logger
}

// NewAIAssistAdvisor creates a new AIAssistAdvisor. cacheSvc may be nil.
func NewAIAssistAdvisor(store repository.FlagStore, content ContentSource, explainer Explainer, cacheSvc cache.Service, ttl, timeout time.Duration, logger zerolog.Logger) *AIAssistAdvisor {
	if ttl <= 0 {
		ttl = cache.TTLRecommendation
	}
	return &AIAssistAdvisor{
		store:     store,
		content:   content,
		explainer: explainer,
		cache:     cacheSvc,
		ttl:       ttl,
		timeout:   timeout,
		logger:    logger,
	}
}

// Recommend returns the analyzer's recommendation for the flag, or the
// manual-review fallback when it cannot be obtained. Only a missing flag
// is an error.
func (a *AIAssistAdvisor) Recommend(ctx context.Context, flagID int64) (domain.Recommendation, error) {
	flag, err := a.store.GetFlag(ctx, flagID)
	if err != nil {
		return domain.Recommendation{}, err
	}

	key := cache.RecommendationKey(flag.ID)
	if a.cache != nil {
		var cached domain.Recommendation
		if err := a.cache.Get(ctx, key, &cached); err == nil {
			recommendationsTotal.WithLabelValues("cache").Inc()
			return cached, nil
		} else if !errors.Is(err, cache.ErrMiss) {
			a.logger.Debug().Err(err).Str("key", key).Msg("recommendation cache read failed")
		}
	}

	if a.explainer == nil || a.content == nil {
		return a.fallback(flag.ID, nil), nil
	}

	text, err := a.content.LoadText(ctx, flag.Content)
	if err != nil {
		return a.fallback(flag.ID, err), nil
	}

	callCtx := ctx
	if a.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	rec, err := a.explainer.Explain(callCtx, text)
	if err != nil {
		analyzerFailuresTotal.WithLabelValues("explain").Inc()
		return a.fallback(flag.ID, err), nil
	}
	rec.Fallback = false

	if a.cache != nil {
		if err := a.cache.Set(ctx, key, rec, a.ttl); err != nil {
			a.logger.Debug().Err(err).Str("key", key).Msg("recommendation cache write failed")
		}
	}
	recommendationsTotal.WithLabelValues("analyzer").Inc()
	return rec, nil
}

func (a *AIAssistAdvisor) fallback(flagID int64, cause error) domain.Recommendation {
	recommendationsTotal.WithLabelValues("fallback").Inc()
	if cause != nil {
		a.logger.Warn().Err(cause).Int64("flag_id", flagID).Msg("AI assistance unavailable, returning manual review")
	}
	return domain.FallbackRecommendation()
}
