package handler

import (
	"net/http"
	"strconv"

	"github.com/damoang/angple-moderation/internal/common"
	"github.com/damoang/angple-moderation/internal/domain"
	"github.com/damoang/angple-moderation/internal/middleware"
	"github.com/damoang/angple-moderation/internal/service"
	"github.com/gin-gonic/gin"
)

// ModerationHandler handles flag and auto-moderation requests
type ModerationHandler struct {
	moderation *service.ModerationService
	lifecycle  *service.FlagLifecycle
	advisor    *service.AIAssistAdvisor
}

// NewModerationHandler creates a new ModerationHandler
func NewModerationHandler(moderation *service.ModerationService, lifecycle *service.FlagLifecycle, advisor *service.AIAssistAdvisor) *ModerationHandler {
	return &ModerationHandler{
		moderation: moderation,
		lifecycle:  lifecycle,
		advisor:    advisor,
	}
}

// Analyze handles POST /api/v1/moderation/analyze
func (h *ModerationHandler) Analyze(c *gin.Context) {
	var req domain.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.moderation.AutoModerate(c.Request.Context(), service.ModerateInput{
		Content:  req.Reference(),
		Text:     req.Text,
		AuthorID: optional(req.AuthorID),
	})
	if err != nil {
		common.HandleError(c, "Failed to moderate content", err)
		return
	}
	common.SuccessResponse(c, result, nil)
}

// Report handles POST /api/v1/moderation/flags
func (h *ModerationHandler) Report(c *gin.Context) {
	var req domain.ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	flag, err := h.moderation.ReportContent(c.Request.Context(), service.ReportInput{
		Content:  req.Reference(),
		Reporter: middleware.GetActor(c),
		Reason:   req.Reason,
		Text:     req.Text,
		AuthorID: optional(req.AuthorID),
	})
	if err != nil {
		common.HandleError(c, "Failed to report content", err)
		return
	}
	common.CreatedResponse(c, flag)
}

// ListFlags handles GET /api/v1/moderation/flags?status=&page=&limit=
func (h *ModerationHandler) ListFlags(c *gin.Context) {
	page, limit := pagination(c)
	result, err := h.lifecycle.List(c.Request.Context(), domain.FlagStatus(c.Query("status")), page, limit)
	if err != nil {
		common.HandleError(c, "Failed to list flags", err)
		return
	}
	common.SuccessResponse(c, result.Flags, &common.Meta{Page: result.Page, Limit: result.Limit, Total: result.Total})
}

// Queue handles GET /api/v1/moderation/flags/queue
func (h *ModerationHandler) Queue(c *gin.Context) {
	page, limit := pagination(c)
	result, err := h.lifecycle.Queue(c.Request.Context(), page, limit)
	if err != nil {
		common.HandleError(c, "Failed to load moderation queue", err)
		return
	}
	common.SuccessResponse(c, result.Flags, &common.Meta{Page: result.Page, Limit: result.Limit, Total: result.Total})
}

// GetFlag handles GET /api/v1/moderation/flags/:id
func (h *ModerationHandler) GetFlag(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	flag, err := h.lifecycle.Get(c.Request.Context(), id)
	if err != nil {
		common.HandleError(c, "Failed to get flag", err)
		return
	}
	common.SuccessResponse(c, flag, nil)
}

// ListDecisions handles GET /api/v1/moderation/flags/:id/decisions
func (h *ModerationHandler) ListDecisions(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	decisions, err := h.lifecycle.Decisions(c.Request.Context(), id)
	if err != nil {
		common.HandleError(c, "Failed to list decisions", err)
		return
	}
	common.SuccessResponse(c, decisions, nil)
}

// Decide handles POST /api/v1/moderation/flags/:id/decision
func (h *ModerationHandler) Decide(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req domain.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	flag, decision, err := h.lifecycle.Decide(c.Request.Context(), service.DecideInput{
		FlagID:     id,
		Moderator:  middleware.GetActor(c),
		Decision:   domain.Outcome(req.Decision),
		Reasoning:  req.Reasoning,
		AIAssisted: req.AIAssisted,
	})
	if err != nil {
		common.HandleError(c, "Failed to record decision", err)
		return
	}
	common.SuccessResponse(c, domain.DecisionResponse{Flag: flag, Decision: decision}, nil)
}

// Recommend handles GET /api/v1/moderation/flags/:id/recommendation
func (h *ModerationHandler) Recommend(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	rec, err := h.advisor.Recommend(c.Request.Context(), id)
	if err != nil {
		common.HandleError(c, "Failed to get recommendation", err)
		return
	}
	common.SuccessResponse(c, rec, nil)
}

// idParam parses :id; writes a 400 and returns false when it is not a positive integer
func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid id", err)
		return 0, false
	}
	return id, true
}

func pagination(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
