package domain

import "time"

// ContentType identifies the kind of content a flag points at
type ContentType string

const (
	ContentTypeDiscussion ContentType = "discussion"
	ContentTypeComment    ContentType = "comment"
	ContentTypeProposal   ContentType = "proposal"
	ContentTypeAmendment  ContentType = "amendment"
	ContentTypeProfile    ContentType = "profile"
	ContentTypeEvent      ContentType = "event"
)

// Valid reports whether t is one of the known content types
func (t ContentType) Valid() bool {
	switch t {
	case ContentTypeDiscussion, ContentTypeComment, ContentTypeProposal,
		ContentTypeAmendment, ContentTypeProfile, ContentTypeEvent:
		return true
	}
	return false
}

// ContentReference is the (type, id) pair identifying moderated content.
// It is set once when the flag is created and never updated.
type ContentReference struct {
	ContentID   int64       `gorm:"column:content_id;not null;index:idx_content_ref" json:"content_id"`
	ContentType ContentType `gorm:"column:content_type;size:20;not null;index:idx_content_ref" json:"content_type"`
}

// FlagStatus is the lifecycle state of a ModerationFlag
type FlagStatus string

const (
	FlagStatusPending     FlagStatus = "pending"
	FlagStatusAutoFlagged FlagStatus = "auto_flagged"
	FlagStatusApproved    FlagStatus = "approved"
	FlagStatusRejected    FlagStatus = "rejected"
	FlagStatusAppealed    FlagStatus = "appealed"
)

// Valid reports whether s is a known flag status
func (s FlagStatus) Valid() bool {
	switch s {
	case FlagStatusPending, FlagStatusAutoFlagged, FlagStatusApproved,
		FlagStatusRejected, FlagStatusAppealed:
		return true
	}
	return false
}

// IsResolved reports whether s is approved or rejected
func (s FlagStatus) IsResolved() bool {
	return s == FlagStatusApproved || s == FlagStatusRejected
}

// AwaitingReview reports whether a human decision may be recorded in s
func (s FlagStatus) AwaitingReview() bool {
	return s == FlagStatusPending || s == FlagStatusAutoFlagged
}

// Outcome is the result of a human/system judgement or an appeal review
type Outcome string

const (
	OutcomeApproved Outcome = "approved"
	OutcomeRejected Outcome = "rejected"
)

// Valid reports whether o is approved or rejected
func (o Outcome) Valid() bool {
	return o == OutcomeApproved || o == OutcomeRejected
}

// FlagStatus maps the outcome to the resolved flag status it produces
func (o Outcome) FlagStatus() FlagStatus {
	if o == OutcomeRejected {
		return FlagStatusRejected
	}
	return FlagStatusApproved
}

// AppealStatus is the state of a ModerationAppeal
type AppealStatus string

const (
	AppealStatusPending  AppealStatus = "pending"
	AppealStatusApproved AppealStatus = "approved"
	AppealStatusRejected AppealStatus = "rejected"
)

// IsResolved reports whether the appeal has reached its terminal status
func (s AppealStatus) IsResolved() bool {
	return s == AppealStatusApproved || s == AppealStatusRejected
}

// LifecycleAction names an operation that may move a flag between statuses
type LifecycleAction string

const (
	ActionCreateReport     LifecycleAction = "create_report"
	ActionCreateAutoFlag   LifecycleAction = "create_auto_flag"
	ActionCreateAutoReject LifecycleAction = "create_auto_reject"
	ActionDecide           LifecycleAction = "decide"
	ActionAppealOpen       LifecycleAction = "appeal_open"
	ActionAppealResolve    LifecycleAction = "appeal_resolve"
)

// ModerationFlag represents content that requires moderation attention
type ModerationFlag struct {
	ID             int64            `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Content        ContentReference `gorm:"embedded" json:"content"`
	AuthorID       *string          `gorm:"column:author_id;size:64;index" json:"author_id,omitempty"`
	ReportedBy     Actor            `gorm:"column:reported_by;size:64;not null" json:"reported_by"`
	Reason         string           `gorm:"column:reason;type:text" json:"reason"`
	AIScore        *int             `gorm:"column:ai_score" json:"ai_score,omitempty"`
	AIReasoning    *string          `gorm:"column:ai_reasoning;type:text" json:"ai_reasoning,omitempty"`
	CategoryScores string           `gorm:"column:category_scores;type:text" json:"category_scores,omitempty"`
	Status         FlagStatus       `gorm:"column:status;size:20;not null;index" json:"status"`
	Version        uint             `gorm:"column:version;not null" json:"version"`
	CreatedAt      time.Time        `gorm:"column:created_at" json:"created_at"`
	UpdatedAt      time.Time        `gorm:"column:updated_at" json:"updated_at"`
}

// TableName returns the table name
func (ModerationFlag) TableName() string {
	return "moderation_flags"
}

// ModerationDecision is an append-only judgement recorded against a flag
type ModerationDecision struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	FlagID     int64     `gorm:"column:flag_id;not null;index" json:"flag_id"`
	Moderator  Actor     `gorm:"column:moderator_id;size:64;not null" json:"moderator"`
	Decision   Outcome   `gorm:"column:decision;size:20;not null" json:"decision"`
	Reasoning  string    `gorm:"column:reasoning;type:text;not null" json:"reasoning"`
	AIAssisted bool      `gorm:"column:ai_assisted" json:"ai_assisted"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"created_at"`
}

// TableName returns the table name
func (ModerationDecision) TableName() string {
	return "moderation_decisions"
}

// ModerationAppeal is a request to reopen a resolved flag
type ModerationAppeal struct {
	ID         int64        `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	FlagID     int64        `gorm:"column:flag_id;not null;index" json:"flag_id"`
	UserID     string       `gorm:"column:user_id;size:64;not null" json:"user_id"`
	Reasoning  string       `gorm:"column:reasoning;type:text;not null" json:"reasoning"`
	Status     AppealStatus `gorm:"column:status;size:20;not null;index" json:"status"`
	ReviewedBy *string      `gorm:"column:reviewed_by;size:64" json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time   `gorm:"column:reviewed_at" json:"reviewed_at,omitempty"`
	Version    uint         `gorm:"column:version;not null" json:"version"`
	CreatedAt  time.Time    `gorm:"column:created_at" json:"created_at"`
}

// TableName returns the table name
func (ModerationAppeal) TableName() string {
	return "moderation_appeals"
}

// FlagListResponse is the paginated list payload for flags
type FlagListResponse struct {
	Flags []ModerationFlag `json:"flags"`
	Total int64            `json:"total"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
}
