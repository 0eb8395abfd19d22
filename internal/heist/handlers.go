package heist

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/vaultbreak/internal/matchmaking"
	"github.com/mbd888/vaultbreak/internal/vault"
)

// Handler provides HTTP endpoints for attack sessions and heist mode
type Handler struct {
	service *Service
}

// NewHandler creates a new heist handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up heist routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/players/:id/heist/mode", h.ActivateMode)
	r.POST("/players/:id/heist/start", h.StartAttack)
	r.POST("/players/:id/heist/result", h.RecordResult)
	r.POST("/players/:id/heist/next", h.NextModule)
	r.POST("/players/:id/heist/complete", h.CompleteAttack)
	r.POST("/players/:id/heist/cancel", h.CancelAttack)
	r.GET("/players/:id/heist/session", h.GetSession)
	r.GET("/players/:id/history", h.GetHistory)
}

// ActivateMode handles POST /players/:id/heist/mode
func (h *Handler) ActivateMode(c *gin.Context) {
	expiresAt := h.service.ActivateHeistMode(c.Param("id"))
	c.JSON(http.StatusOK, gin.H{
		"active":    true,
		"expiresAt": expiresAt,
	})
}

// StartAttackRequest opens an attack session against a target
type StartAttackRequest struct {
	TargetID string `json:"targetId" binding:"required"`
}

// StartAttack handles POST /players/:id/heist/start
func (h *Handler) StartAttack(c *gin.Context) {
	var req StartAttackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	session, err := h.service.StartAttack(c.Request.Context(), c.Param("id"), req.TargetID)
	if err != nil {
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, ErrHeistModeInactive):
			status = http.StatusForbidden
		case errors.Is(err, ErrSessionActive):
			status = http.StatusConflict
		case errors.Is(err, matchmaking.ErrTargetNotFound):
			status = http.StatusNotFound
		case errors.Is(err, matchmaking.ErrTargetOnCooldown),
			errors.Is(err, matchmaking.ErrTargetCapped):
			status = http.StatusConflict
		case errors.Is(err, vault.ErrCannotAfford):
			status = http.StatusPaymentRequired
		}
		c.JSON(status, gin.H{
			"error":   "start_failed",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"session": session,
	})
}

// ResultRequest is one mini-game's normalized outcome
type ResultRequest struct {
	Score       float64 `json:"score"`
	Passed      bool    `json:"passed"`
	TimeSpentMs int64   `json:"timeSpentMs"`
}

// RecordResult handles POST /players/:id/heist/result
func (h *Handler) RecordResult(c *gin.Context) {
	var req ResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	session, err := h.service.RecordModuleResult(c.Param("id"), ModuleResult{
		Score:       req.Score,
		Passed:      req.Passed,
		TimeSpentMs: req.TimeSpentMs,
	})
	if err != nil {
		c.JSON(sessionErrorStatus(err), gin.H{
			"error":   "result_rejected",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session": session,
	})
}

// NextModule handles POST /players/:id/heist/next
func (h *Handler) NextModule(c *gin.Context) {
	more, err := h.service.NextModule(c.Param("id"))
	if err != nil {
		c.JSON(sessionErrorStatus(err), gin.H{
			"error":   "advance_rejected",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"moreModules": more,
	})
}

// CompleteAttack handles POST /players/:id/heist/complete
func (h *Handler) CompleteAttack(c *gin.Context) {
	result, err := h.service.CompleteAttack(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(sessionErrorStatus(err), gin.H{
			"error":   "complete_rejected",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"result": result,
	})
}

// CancelAttack handles POST /players/:id/heist/cancel
func (h *Handler) CancelAttack(c *gin.Context) {
	h.service.CancelAttack(c.Param("id"))
	c.JSON(http.StatusOK, gin.H{
		"cancelled": true,
	})
}

// GetSession handles GET /players/:id/heist/session
func (h *Handler) GetSession(c *gin.Context) {
	session, ok := h.service.ActiveSession(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "no_session",
			"message": "No active attack session",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session": session,
	})
}

// GetHistory handles GET /players/:id/history
func (h *Handler) GetHistory(c *gin.Context) {
	limit := 20
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	attacks, defenses, err := h.service.History(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "history_failed",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"attacks":  attacks,
		"defenses": defenses,
	})
}

// sessionErrorStatus maps session state-machine errors onto HTTP statuses.
func sessionErrorStatus(err error) int {
	switch {
	case errors.Is(err, ErrNoSession):
		return http.StatusNotFound
	case errors.Is(err, ErrResultOutOfOrder),
		errors.Is(err, ErrResultsIncomplete),
		errors.Is(err, ErrSessionNotRunning):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidResult):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
