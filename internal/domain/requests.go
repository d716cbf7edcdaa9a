package domain

// AnalyzeRequest POST /analyze body
type AnalyzeRequest struct {
	ContentType string `json:"content_type" binding:"required,content_type"`
	ContentID   int64  `json:"content_id" binding:"required,gt=0"`
	Text        string `json:"text" binding:"required,max=20000"`
	AuthorID    string `json:"author_id" binding:"omitempty,max=64"`
}

// ReportRequest POST /flags body
type ReportRequest struct {
	ContentType string `json:"content_type" binding:"required,content_type"`
	ContentID   int64  `json:"content_id" binding:"required,gt=0"`
	Reason      string `json:"reason" binding:"required,max=2000"`
	Text        string `json:"text" binding:"omitempty,max=20000"`
	AuthorID    string `json:"author_id" binding:"omitempty,max=64"`
}

// Reference returns the content the request points at
func (r *ReportRequest) Reference() ContentReference {
	return ContentReference{ContentID: r.ContentID, ContentType: ContentType(r.ContentType)}
}

// Reference returns the content the request points at
func (r *AnalyzeRequest) Reference() ContentReference {
	return ContentReference{ContentID: r.ContentID, ContentType: ContentType(r.ContentType)}
}

// DecisionRequest POST /flags/:id/decision body
type DecisionRequest struct {
	Decision   string `json:"decision" binding:"required,outcome"`
	Reasoning  string `json:"reasoning" binding:"required,max=2000"`
	AIAssisted bool   `json:"ai_assisted"`
}

// AppealRequest POST /flags/:id/appeals body
type AppealRequest struct {
	Reasoning string `json:"reasoning" binding:"required,max=2000"`
}

// ResolveAppealRequest POST /appeals/:id/resolve body
type ResolveAppealRequest struct {
	Outcome   string `json:"outcome" binding:"required,outcome"`
	Reasoning string `json:"reasoning" binding:"omitempty,max=2000"`
}

// DecisionResponse flag and the decision just recorded
type DecisionResponse struct {
	Flag     *ModerationFlag     `json:"flag"`
	Decision *ModerationDecision `json:"decision"`
}

// AppealResolutionResponse appeal and its flag after resolution
type AppealResolutionResponse struct {
	Appeal *ModerationAppeal `json:"appeal"`
	Flag   *ModerationFlag   `json:"flag"`
}
