package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/agentware/maestro/internal/common/errors"
	"github.com/agentware/maestro/internal/common/logger"
	"github.com/agentware/maestro/internal/orchestrator/claims"
	"github.com/agentware/maestro/internal/orchestrator/session"
	"github.com/agentware/maestro/pkg/contract"
)

// Handler contains the HTTP handlers of the orchestrator API.
type Handler struct {
	manager *session.Manager
	claims  *claims.Manager
	logger  *logger.Logger
}

// NewHandler creates a new API handler.
func NewHandler(manager *session.Manager, claimsMgr *claims.Manager, log *logger.Logger) *Handler {
	return &Handler{
		manager: manager,
		claims:  claimsMgr,
		logger:  log,
	}
}

// SessionResponse is the API view of a session.
type SessionResponse struct {
	SessionID contract.SessionID     `json:"sessionId"`
	Status    contract.SessionStatus `json:"status"`
	Workspace string                 `json:"workspace"`
	CreatedAt time.Time              `json:"createdAt"`
	Events    int                    `json:"events"`
}

func sessionToResponse(s *session.Session) SessionResponse {
	return SessionResponse{
		SessionID: s.Config().SessionID,
		Status:    s.Status(),
		Workspace: s.WorkspacePath(),
		CreatedAt: s.CreatedAt(),
		Events:    len(s.Events()),
	}
}

// CreateSession creates a new session
// POST /api/v1/sessions
func (h *Handler) CreateSession(c *gin.Context) {
	var cfg contract.SessionConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		appErr := errors.BadRequest(err.Error())
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	s, err := h.manager.CreateSession(cfg)
	if err != nil {
		h.logger.Error("failed to create session", zap.Error(err))
		c.JSON(errors.GetHTTPStatus(err), err)
		return
	}

	c.JSON(http.StatusCreated, sessionToResponse(s))
}

// ListSessions lists all sessions
// GET /api/v1/sessions
func (h *Handler) ListSessions(c *gin.Context) {
	sessions := h.manager.ListSessions()
	out := make([]SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, sessionToResponse(s))
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out})
}

// GetSession retrieves a session by ID
// GET /api/v1/sessions/:sessionId
func (h *Handler) GetSession(c *gin.Context) {
	s, ok := h.sessionFromPath(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sessionToResponse(s))
}

// GetSessionEvents returns a session's event log
// GET /api/v1/sessions/:sessionId/events
func (h *Handler) GetSessionEvents(c *gin.Context) {
	s, ok := h.sessionFromPath(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": s.Events()})
}

// PublishCommand submits a command to its session's pipeline. The outcome
// arrives on the session's event log, never in this response.
// POST /api/v1/commands
func (h *Handler) PublishCommand(c *gin.Context) {
	var cmd contract.Command
	if err := c.ShouldBindJSON(&cmd); err != nil {
		appErr := errors.BadRequest(err.Error())
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}
	if cmd.Kind == "" || cmd.Correlation.SessionID == "" {
		appErr := errors.BadRequest("kind and correlation.sessionId are required")
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}
	if cmd.ID == "" {
		cmd.ID = contract.NewCommandID()
	}
	cmd.Correlation.CommandID = cmd.ID

	if _, err := h.manager.GetSession(cmd.Correlation.SessionID); err != nil {
		c.JSON(errors.GetHTTPStatus(err), err)
		return
	}

	h.manager.PublishCommand(&cmd)
	c.JSON(http.StatusAccepted, gin.H{"commandId": cmd.ID})
}

// PauseSession pauses a running session
// POST /api/v1/sessions/:sessionId/pause
func (h *Handler) PauseSession(c *gin.Context) {
	h.lifecycle(c, h.manager.PauseSession)
}

// ResumeSession resumes a paused session
// POST /api/v1/sessions/:sessionId/resume
func (h *Handler) ResumeSession(c *gin.Context) {
	h.lifecycle(c, h.manager.ResumeSession)
}

// AbortSession aborts a session
// POST /api/v1/sessions/:sessionId/abort
func (h *Handler) AbortSession(c *gin.Context) {
	h.lifecycle(c, h.manager.AbortSession)
}

// CompleteSession completes a session
// POST /api/v1/sessions/:sessionId/complete
func (h *Handler) CompleteSession(c *gin.Context) {
	h.lifecycle(c, h.manager.CompleteSession)
}

// ApproveSession grants the pending approval
// POST /api/v1/sessions/:sessionId/approve
func (h *Handler) ApproveSession(c *gin.Context) {
	h.lifecycle(c, h.manager.ApproveSession)
}

// ClaimResponse is the API view of an active claim.
type ClaimResponse struct {
	WorkItemID string             `json:"workItemId"`
	Assignee   string             `json:"assignee"`
	SessionID  contract.SessionID `json:"sessionId,omitempty"`
	ClaimedAt  time.Time          `json:"claimedAt"`
	ExpiresAt  time.Time          `json:"expiresAt"`
}

// ListClaims lists all active claims
// GET /api/v1/claims
func (h *Handler) ListClaims(c *gin.Context) {
	active := h.claims.GetActiveClaims()
	out := make([]ClaimResponse, 0, len(active))
	for _, claim := range active {
		out = append(out, ClaimResponse{
			WorkItemID: claim.WorkItem.ID,
			Assignee:   claim.Assignee,
			SessionID:  claim.SessionID,
			ClaimedAt:  claim.ClaimedAt,
			ExpiresAt:  claim.ExpiresAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"claims": out})
}

// Health returns service health
// GET /health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"sessions": len(h.manager.ListSessions()),
	})
}

func (h *Handler) sessionFromPath(c *gin.Context) (*session.Session, bool) {
	sessionID := c.Param("sessionId")
	if sessionID == "" {
		appErr := errors.BadRequest("sessionId is required")
		c.JSON(appErr.HTTPStatus, appErr)
		return nil, false
	}
	s, err := h.manager.GetSession(contract.SessionID(sessionID))
	if err != nil {
		c.JSON(errors.GetHTTPStatus(err), err)
		return nil, false
	}
	return s, true
}

func (h *Handler) lifecycle(c *gin.Context, op func(contract.SessionID) error) {
	s, ok := h.sessionFromPath(c)
	if !ok {
		return
	}
	if err := op(s.Config().SessionID); err != nil {
		c.JSON(errors.GetHTTPStatus(err), err)
		return
	}
	c.JSON(http.StatusOK, sessionToResponse(s))
}
