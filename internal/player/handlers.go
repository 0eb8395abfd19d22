package player

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/vaultbreak/internal/security"
	"github.com/mbd888/vaultbreak/internal/vault"
)

// Handler provides HTTP endpoints for player profiles: loadout and balance.
type Handler struct {
	registry *Registry
	vault    *vault.Vault
}

// NewHandler creates a new player handler
func NewHandler(registry *Registry, v *vault.Vault) *Handler {
	return &Handler{registry: registry, vault: v}
}

// RegisterRoutes sets up player routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/players/:id/loadout", h.GetLoadout)
	r.PUT("/players/:id/loadout/:slot", h.UpdateLoadoutSlot)
	r.GET("/players/:id/balance", h.GetBalance)
}

// loadoutView is the wire shape of a loadout: modules plus derived score.
type loadoutView struct {
	Modules        []security.Module `json:"modules"`
	EffectiveScore float64           `json:"effectiveScore"`
}

// GetLoadout handles GET /players/:id/loadout
func (h *Handler) GetLoadout(c *gin.Context) {
	p, err := h.registry.GetOrCreate(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "loadout_failed",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"loadout": loadoutView{
			Modules:        p.Loadout.Modules(),
			EffectiveScore: p.Loadout.EffectiveScore(),
		},
		"rating": p.Rating,
	})
}

// UpdateSlotRequest reconfigures one loadout slot
type UpdateSlotRequest struct {
	Type       string  `json:"type" binding:"required"`
	Difficulty float64 `json:"difficulty" binding:"required"`
}

// UpdateLoadoutSlot handles PUT /players/:id/loadout/:slot
func (h *Handler) UpdateLoadoutSlot(c *gin.Context) {
	slot, err := strconv.Atoi(c.Param("slot"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_slot",
			"message": "slot must be an integer",
		})
		return
	}

	var req UpdateSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	p, err := h.registry.UpdateModule(c.Param("id"), slot, security.ModuleType(req.Type), req.Difficulty)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, security.ErrInvalidLoadout) {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, gin.H{
			"error":   "update_failed",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"loadout": loadoutView{
			Modules:        p.Loadout.Modules(),
			EffectiveScore: p.Loadout.EffectiveScore(),
		},
	})
}

// GetBalance handles GET /players/:id/balance
func (h *Handler) GetBalance(c *gin.Context) {
	ctx := c.Request.Context()
	playerID := c.Param("id")

	balance, err := h.vault.GetBalance(ctx, playerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "balance_failed",
			"message": err.Error(),
		})
		return
	}

	limit := 20
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	entries, err := h.vault.History(ctx, playerID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "history_failed",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"balance": balance,
		"entries": entries,
	})
}
