package api

import (
	"github.com/gin-gonic/gin"

	"github.com/agentware/maestro/internal/common/logger"
	"github.com/agentware/maestro/internal/orchestrator/claims"
	"github.com/agentware/maestro/internal/orchestrator/session"
)

// SetupRoutes configures the orchestrator API routes.
// router should be the /api/v1 group.
func SetupRoutes(
	router *gin.RouterGroup,
	manager *session.Manager,
	claimsMgr *claims.Manager,
	log *logger.Logger,
) *Handler {
	handler := NewHandler(manager, claimsMgr, log)

	sessions := router.Group("/sessions")
	{
		sessions.POST("", handler.CreateSession)
		sessions.GET("", handler.ListSessions)
		sessions.GET("/:sessionId", handler.GetSession)
		sessions.GET("/:sessionId/events", handler.GetSessionEvents)

		// Lifecycle operations
		sessions.POST("/:sessionId/pause", handler.PauseSession)
		sessions.POST("/:sessionId/resume", handler.ResumeSession)
		sessions.POST("/:sessionId/abort", handler.AbortSession)
		sessions.POST("/:sessionId/complete", handler.CompleteSession)
		sessions.POST("/:sessionId/approve", handler.ApproveSession)
	}

	router.POST("/commands", handler.PublishCommand)
	router.GET("/claims", handler.ListClaims)

	return handler
}
