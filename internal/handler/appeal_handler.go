package handler

import (
	"net/http"

	"github.com/damoang/angple-moderation/internal/common"
	"github.com/damoang/angple-moderation/internal/domain"
	"github.com/damoang/angple-moderation/internal/middleware"
	"github.com/damoang/angple-moderation/internal/service"
	"github.com/gin-gonic/gin"
)

// AppealHandler handles appeal requests
type AppealHandler struct {
	appeals *service.AppealProcessor
}

// NewAppealHandler creates a new AppealHandler
func NewAppealHandler(appeals *service.AppealProcessor) *AppealHandler {
	return &AppealHandler{appeals: appeals}
}

// FileAppeal handles POST /api/v1/moderation/flags/:id/appeals
func (h *AppealHandler) FileAppeal(c *gin.Context) {
	flagID, ok := idParam(c)
	if !ok {
		return
	}
	var req domain.AppealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	appeal, err := h.appeals.FileAppeal(c.Request.Context(), flagID, middleware.GetActorID(c), req.Reasoning)
	if err != nil {
		common.HandleError(c, "Failed to file appeal", err)
		return
	}
	common.CreatedResponse(c, appeal)
}

// GetAppeal handles GET /api/v1/moderation/appeals/:id
func (h *AppealHandler) GetAppeal(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	appeal, err := h.appeals.GetAppeal(c.Request.Context(), id)
	if err != nil {
		common.HandleError(c, "Failed to get appeal", err)
		return
	}
	common.SuccessResponse(c, appeal, nil)
}

// ResolveAppeal handles POST /api/v1/moderation/appeals/:id/resolve
func (h *AppealHandler) ResolveAppeal(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req domain.ResolveAppealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	appeal, flag, err := h.appeals.ResolveAppeal(c.Request.Context(), service.ResolveAppealInput{
		AppealID:  id,
		Reviewer:  middleware.GetActor(c),
		Outcome:   domain.Outcome(req.Outcome),
		Reasoning: req.Reasoning,
	})
	if err != nil {
		common.HandleError(c, "Failed to resolve appeal", err)
		return
	}
	common.SuccessResponse(c, domain.AppealResolutionResponse{Appeal: appeal, Flag: flag}, nil)
}
