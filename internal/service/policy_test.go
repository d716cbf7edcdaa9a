package service

import (
	"testing"

	"github.com/damoang/angple-moderation/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestAutoModerationPolicy_Classify(t *testing.T) {
	policy := NewAutoModerationPolicy(domain.AutoRejectThreshold)

	tests := []struct {
		name       string
		analysis   domain.Analysis
		action     domain.ModerationAction
		createFlag bool
		status     domain.FlagStatus
	}{
		{"not flagged", domain.Analysis{Flagged: false, FlagScore: 2}, domain.ActionAutoApprove, false, ""},
		{"not flagged ignores score", domain.Analysis{Flagged: false, FlagScore: 95}, domain.ActionAutoApprove, false, ""},
		{"flagged low", domain.Analysis{Flagged: true, FlagScore: 0}, domain.ActionAutoFlag, true, domain.FlagStatusAutoFlagged},
		{"flagged mid", domain.Analysis{Flagged: true, FlagScore: 55}, domain.ActionAutoFlag, true, domain.FlagStatusAutoFlagged},
		{"flagged at threshold", domain.Analysis{Flagged: true, FlagScore: 80}, domain.ActionAutoFlag, true, domain.FlagStatusAutoFlagged},
		{"flagged above threshold", domain.Analysis{Flagged: true, FlagScore: 81}, domain.ActionAutoReject, true, domain.FlagStatusRejected},
		{"flagged high", domain.Analysis{Flagged: true, FlagScore: 91}, domain.ActionAutoReject, true, domain.FlagStatusRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := policy.Classify(tt.analysis)
			assert.Equal(t, tt.action, got.Action)
			assert.Equal(t, tt.createFlag, got.ShouldCreateFlag)
			assert.Equal(t, tt.status, got.FlagStatus)
		})
	}
}

func TestAutoModerationPolicy_Monotonic(t *testing.T) {
	policy := NewAutoModerationPolicy(domain.AutoRejectThreshold)

	prev := 0
	for score := 0; score <= 100; score++ {
		sev := policy.Classify(domain.Analysis{Flagged: true, FlagScore: score}).Action.Severity()
		assert.GreaterOrEqual(t, sev, prev, "score %d lowered severity", score)
		prev = sev
	}
}

func TestNewAutoModerationPolicy_Threshold(t *testing.T) {
	assert.Equal(t, 60, NewAutoModerationPolicy(60).RejectAbove)
	assert.Equal(t, domain.AutoRejectThreshold, NewAutoModerationPolicy(-1).RejectAbove)
	assert.Equal(t, domain.AutoRejectThreshold, NewAutoModerationPolicy(101).RejectAbove)

	lowered := NewAutoModerationPolicy(60)
	assert.Equal(t, domain.ActionAutoReject, lowered.Classify(domain.Analysis{Flagged: true, FlagScore: 61}).Action)
}
