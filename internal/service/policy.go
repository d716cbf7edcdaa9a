package service

import "github.com/damoang/angple-moderation/internal/domain"

// PolicyDecision is the automatic disposition for one analysis
type PolicyDecision struct {
	Action           domain.ModerationAction
	ShouldCreateFlag bool
	FlagStatus       domain.FlagStatus // empty when no flag is created
}

// AutoModerationPolicy maps an analysis to an automatic action.
//
//   - not flagged                      -> auto_approve, no flag
//   - flagged, score <= RejectAbove    -> auto_flag, flag in auto_flagged
//   - flagged, score >  RejectAbove    -> auto_reject, flag in rejected
type AutoModerationPolicy struct {
	RejectAbove int
}

// NewAutoModerationPolicy creates a policy; a threshold outside 0..100 falls
// back to domain.AutoRejectThreshold
func NewAutoModerationPolicy(threshold int) AutoModerationPolicy {
	if threshold < 0 || threshold > 100 {
		threshold = domain.AutoRejectThreshold
	}
	return AutoModerationPolicy{RejectAbove: threshold}
}

// Classify is pure: the same analysis always yields the same decision
func (p AutoModerationPolicy) Classify(a domain.Analysis) PolicyDecision {
	switch {
	case !a.Flagged:
		return PolicyDecision{Action: domain.ActionAutoApprove}
	case a.FlagScore > p.RejectAbove:
		return PolicyDecision{
			Action:           domain.ActionAutoReject,
			ShouldCreateFlag: true,
			FlagStatus:       domain.FlagStatusRejected,
		}
	default:
		return PolicyDecision{
			Action:           domain.ActionAutoFlag,
			ShouldCreateFlag: true,
			FlagStatus:       domain.FlagStatusAutoFlagged,
		}
	}
}
