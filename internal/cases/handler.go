package cases

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"caseflow/casework-backend/internal/auth"
	"caseflow/casework-backend/internal/statemachine"
)

// Handler exposes the case workflow API.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// triggerEventRequest is the body of a trigger call. The acting user comes
// from the auth token; everything else is explicit.
type triggerEventRequest struct {
	ActingTeamID uuid.UUID      `json:"acting_team_id" binding:"required"`
	TargetUserID *uuid.UUID     `json:"target_user_id"`
	TargetTeamID *uuid.UUID     `json:"target_team_id"`
	Metadata     map[string]any `json:"metadata"`
}

func (h *Handler) createCase(c *gin.Context) {
	var req CreateCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	kase, err := h.service.CreateCase(c.Request.Context(), req)
	if err != nil {
		h.logger.Error("Failed to create case", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, kase)
}

func (h *Handler) getCase(c *gin.Context) {
	caseID, ok := h.caseID(c)
	if !ok {
		return
	}
	kase, err := h.service.GetCase(c.Request.Context(), caseID)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, kase)
}

func (h *Handler) listTransitions(c *gin.Context) {
	caseID, ok := h.caseID(c)
	if !ok {
		return
	}
	transitions, err := h.service.ListTransitions(c.Request.Context(), caseID)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transitions": transitions})
}

func (h *Handler) triggerEvent(c *gin.Context) {
	caseID, ok := h.caseID(c)
	if !ok {
		return
	}
	var req triggerEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	md := &statemachine.Metadata{
		ActingUserID: auth.UserID(c),
		ActingTeamID: req.ActingTeamID,
		Extra:        req.Metadata,
	}
	if req.TargetUserID != nil {
		md.TargetUser = &statemachine.User{ID: *req.TargetUserID}
	}
	if req.TargetTeamID != nil {
		md.TargetTeam = &statemachine.Team{ID: *req.TargetTeamID}
	}
	kase, err := h.service.TriggerEvent(c.Request.Context(), caseID, c.Param("event"), md)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, kase)
}

func (h *Handler) canTrigger(c *gin.Context) {
	caseID, ok := h.caseID(c)
	if !ok {
		return
	}
	md := &statemachine.Metadata{ActingUserID: auth.UserID(c)}
	if teamID := c.Query("acting_team_id"); teamID != "" {
		id, err := uuid.Parse(teamID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid acting_team_id"})
			return
		}
		md.ActingTeamID = id
	}
	if roles := c.Query("roles"); roles != "" {
		md.Roles = strings.Split(roles, ",")
	}
	permitted, err := h.service.CanTrigger(c.Request.Context(), caseID, c.Param("event"), md)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"event": c.Param("event"), "permitted": permitted})
}

func (h *Handler) permittedEvents(c *gin.Context) {
	caseID, ok := h.caseID(c)
	if !ok {
		return
	}
	events, err := h.service.PermittedEvents(c.Request.Context(), caseID, auth.UserID(c))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (h *Handler) caseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid case id"})
		return uuid.Nil, false
	}
	return id, true
}

// renderError translates the engine's error taxonomy for API consumers:
// invalid-event errors mean "action not available", argument errors are
// caller bugs, anything else is a system failure.
func (h *Handler) renderError(c *gin.Context, err error) {
	var invalidEvent *statemachine.InvalidEventError
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "case not found"})
	case errors.Is(err, statemachine.ErrInvalidArguments):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &invalidEvent):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": "action not available",
			"event": invalidEvent.Event,
			"state": invalidEvent.State,
		})
	default:
		h.logger.Error("case operation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
