package domain

import "time"

// ModerationAction is the automatic disposition chosen for analyzed content
type ModerationAction string

const (
	ActionAutoApprove ModerationAction = "auto_approve"
	ActionAutoFlag    ModerationAction = "auto_flag"
	ActionAutoReject  ModerationAction = "auto_reject"
)

// Severity orders actions so that a higher score never maps to a lower value
func (a ModerationAction) Severity() int {
	switch a {
	case ActionAutoFlag:
		return 1
	case ActionAutoReject:
		return 2
	}
	return 0
}

// AutoRejectThreshold flagged content scoring above this is rejected without
// human review. Configuration may override it.
const AutoRejectThreshold = 80

// AutoApprovedStatus is reported for content that passed without a flag
const AutoApprovedStatus = "auto_approved"

// Analysis is the analyzer's verdict on a piece of text
type Analysis struct {
	Flagged        bool           `json:"flagged"`
	CategoryScores map[string]int `json:"category_scores"`
	FlagScore      int            `json:"flag_score"`
	Reasoning      string         `json:"reasoning"`
}

// NotFlagged is the fail-open analysis used when the analyzer is unavailable
func NotFlagged() Analysis {
	return Analysis{Flagged: false, CategoryScores: map[string]int{}, FlagScore: 0}
}

// RecommendationKind is the advisory verdict offered to a human moderator
type RecommendationKind string

const (
	RecommendApprove RecommendationKind = "approve"
	RecommendReject  RecommendationKind = "reject"
	RecommendReview  RecommendationKind = "review"
)

// Valid reports whether k is a known recommendation
func (k RecommendationKind) Valid() bool {
	return k == RecommendApprove || k == RecommendReject || k == RecommendReview
}

// FallbackReasoning is returned when AI assistance could not be obtained
const FallbackReasoning = "AI assistance unavailable; manual review required."

// Recommendation is advisory only and never recorded as a decision
type Recommendation struct {
	Recommendation RecommendationKind `json:"recommendation"`
	Reasoning      string             `json:"reasoning"`
	Confidence     int                `json:"confidence"`
	Fallback       bool               `json:"fallback"`
}

// FallbackRecommendation returns the manual-review recommendation
func FallbackRecommendation() Recommendation {
	return Recommendation{
		Recommendation: RecommendReview,
		Reasoning:      FallbackReasoning,
		Confidence:     0,
		Fallback:       true,
	}
}

// AutoModerationResult is the outcome of running content through the policy
type AutoModerationResult struct {
	Flagged        bool                `json:"flagged"`
	Action         ModerationAction    `json:"action"`
	Status         string              `json:"status"`
	Analysis       Analysis            `json:"analysis"`
	Flag           *ModerationFlag     `json:"flag,omitempty"`
	Decision       *ModerationDecision `json:"decision,omitempty"`
	AnalyzerFailed bool                `json:"analyzer_failed"`
}

// ContentSnapshot keeps the text that was moderated so reviewers and the
// advisor can read it later
type ContentSnapshot struct {
	ID          int64       `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ContentID   int64       `gorm:"column:content_id;not null;uniqueIndex:uq_snapshot_ref" json:"content_id"`
	ContentType ContentType `gorm:"column:content_type;size:20;not null;uniqueIndex:uq_snapshot_ref" json:"content_type"`
	AuthorID    *string     `gorm:"column:author_id;size:64" json:"author_id,omitempty"`
	Text        string      `gorm:"column:text;type:text;not null" json:"text"`
	UpdatedAt   time.Time   `gorm:"column:updated_at" json:"updated_at"`
}

// TableName returns the table name
func (ContentSnapshot) TableName() string {
	return "moderation_content_snapshots"
}

// MaxAnalysisAttempts bounds re-analysis retries per failure row
const MaxAnalysisAttempts = 5

// AnalysisFailure records content whose analysis failed and must be retried
type AnalysisFailure struct {
	ID          int64       `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ContentID   int64       `gorm:"column:content_id;not null" json:"content_id"`
	ContentType ContentType `gorm:"column:content_type;size:20;not null" json:"content_type"`
	AuthorID    *string     `gorm:"column:author_id;size:64" json:"author_id,omitempty"`
	Text        string      `gorm:"column:text;type:text;not null" json:"text"`
	LastError   string      `gorm:"column:last_error;type:text" json:"last_error"`
	Attempts    int         `gorm:"column:attempts;not null;default:0" json:"attempts"`
	Resolved    bool        `gorm:"column:resolved;not null;default:false;index" json:"resolved"`
	CreatedAt   time.Time   `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time   `gorm:"column:updated_at" json:"updated_at"`
}

// TableName returns the table name
func (AnalysisFailure) TableName() string {
	return "moderation_analysis_failures"
}

// Reference returns the content the failure belongs to
func (f *AnalysisFailure) Reference() ContentReference {
	return ContentReference{ContentID: f.ContentID, ContentType: f.ContentType}
}

// PointEntry is one row of the reputation points ledger
type PointEntry struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserID    string    `gorm:"column:user_id;size:64;not null;index" json:"user_id"`
	FlagID    int64     `gorm:"column:flag_id;not null;index" json:"flag_id"`
	Delta     int       `gorm:"column:delta;not null" json:"delta"`
	Reason    string    `gorm:"column:reason;size:100" json:"reason"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

// TableName returns the table name
func (PointEntry) TableName() string {
	return "moderation_point_ledger"
}

// FlagRejectedEvent is emitted whenever a flag enters the rejected status
type FlagRejectedEvent struct {
	FlagID      int64       `json:"flagId"`
	ContentType ContentType `json:"contentType"`
	ContentID   int64       `json:"contentId"`
	Status      FlagStatus  `json:"status"`
}
