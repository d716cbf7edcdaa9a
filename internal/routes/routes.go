package routes

import (
	"github.com/damoang/angple-moderation/internal/handler"
	"github.com/damoang/angple-moderation/internal/middleware"
	"github.com/gin-gonic/gin"
)

// Setup configures the moderation API under /api/v1/moderation.
// writeLimit guards the endpoints that create flags, decisions and appeals.
func Setup(
	router *gin.Engine,
	moderationHandler *handler.ModerationHandler,
	appealHandler *handler.AppealHandler,
	writeLimit gin.HandlerFunc,
) {
	if writeLimit == nil {
		writeLimit = func(c *gin.Context) { c.Next() }
	}

	api := router.Group("/api/v1/moderation", middleware.ActorIdentity())

	// 자동 분석 (콘텐츠 작성 서비스에서 호출)
	api.POST("/analyze", writeLimit, moderationHandler.Analyze)

	// Flags
	flags := api.Group("/flags")
	flags.GET("", moderationHandler.ListFlags)
	flags.GET("/queue", moderationHandler.Queue)
	flags.GET("/:id", moderationHandler.GetFlag)
	flags.GET("/:id/decisions", moderationHandler.ListDecisions)
	flags.GET("/:id/recommendation", moderationHandler.Recommend)
	flags.POST("", middleware.RequireActor(), writeLimit, moderationHandler.Report)
	flags.POST("/:id/decision", middleware.RequireActor(), moderationHandler.Decide)
	flags.POST("/:id/appeals", middleware.RequireActor(), writeLimit, appealHandler.FileAppeal)

	// Appeals
	appeals := api.Group("/appeals")
	appeals.GET("/:id", appealHandler.GetAppeal)
	appeals.POST("/:id/resolve", middleware.RequireActor(), appealHandler.ResolveAppeal)
}
