package insurance

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/vaultbreak/internal/metrics"
	"github.com/mbd888/vaultbreak/internal/vault"
)

// ScoreSource resolves a player's effective security score for premium
// pricing. Satisfied by the player registry.
type ScoreSource interface {
	SecurityScore(ctx context.Context, playerID string) (float64, error)
}

// Handler provides HTTP endpoints for insurance
type Handler struct {
	service *Service
	vault   *vault.Vault
	scores  ScoreSource
}

// NewHandler creates a new insurance handler
func NewHandler(service *Service, v *vault.Vault, scores ScoreSource) *Handler {
	return &Handler{service: service, vault: v, scores: scores}
}

// RegisterRoutes sets up insurance routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/players/:id/insurance/quote", h.Quote)
	r.POST("/players/:id/insurance/purchase", h.Purchase)
	r.POST("/players/:id/insurance/claim", h.Claim)
	r.GET("/players/:id/insurance/policy", h.GetPolicy)
}

// QuoteRequest prices or purchases coverage
type QuoteRequest struct {
	Coverage float64 `json:"coverage" binding:"required"`
	Duration string  `json:"duration"` // e.g. "24h"; default policy duration if empty
}

func (h *Handler) pricingInputs(c *gin.Context) (safeBalance int64, score float64, ok bool) {
	ctx := c.Request.Context()
	playerID := c.Param("id")

	bal, err := h.vault.GetBalance(ctx, playerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "balance_failed",
			"message": err.Error(),
		})
		return 0, 0, false
	}
	score, err = h.scores.SecurityScore(ctx, playerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "score_failed",
			"message": err.Error(),
		})
		return 0, 0, false
	}
	return bal.Available, score, true
}

func parsePolicyDuration(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil // service substitutes the default
	}
	return time.ParseDuration(raw)
}

// Quote handles POST /players/:id/insurance/quote
func (h *Handler) Quote(c *gin.Context) {
	var req QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	duration, err := parsePolicyDuration(req.Duration)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_duration",
			"message": "Invalid duration format. Use: 1h, 24h, etc.",
		})
		return
	}

	balance, score, ok := h.pricingInputs(c)
	if !ok {
		return
	}

	premium, err := h.service.Quote(balance, score, req.Coverage, duration)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "quote_failed",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"premium":  premium,
		"coverage": req.Coverage,
	})
}

// Purchase handles POST /players/:id/insurance/purchase
func (h *Handler) Purchase(c *gin.Context) {
	var req QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	duration, err := parsePolicyDuration(req.Duration)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_duration",
			"message": "Invalid duration format. Use: 1h, 24h, etc.",
		})
		return
	}

	balance, score, ok := h.pricingInputs(c)
	if !ok {
		return
	}

	policy, err := h.service.Purchase(c.Request.Context(), c.Param("id"), balance, score, req.Coverage, duration)
	if err != nil {
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, ErrPolicyExists):
			status = http.StatusConflict
		case errors.Is(err, vault.ErrCannotAfford):
			status = http.StatusPaymentRequired
		}
		c.JSON(status, gin.H{
			"error":   "purchase_failed",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"policy": policy,
	})
}

// ClaimRequest reports a breach loss to claim against
type ClaimRequest struct {
	LootLost int64 `json:"lootLost" binding:"required"`
}

// Claim handles POST /players/:id/insurance/claim
func (h *Handler) Claim(c *gin.Context) {
	var req ClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.LootLost <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "lootLost must be a positive integer",
		})
		return
	}

	result, err := h.service.Claim(c.Request.Context(), c.Param("id"), req.LootLost)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrNoPolicy) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{
			"error":   "claim_failed",
			"message": err.Error(),
		})
		return
	}

	outcome := "denied"
	if result.Payout > 0 {
		outcome = "paid"
	}
	metrics.InsuranceClaimsTotal.WithLabelValues(outcome).Inc()

	c.JSON(http.StatusOK, gin.H{
		"claim": result,
	})
}

// GetPolicy handles GET /players/:id/insurance/policy
func (h *Handler) GetPolicy(c *gin.Context) {
	policy, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "no_policy",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"policy": policy,
		"valid":  policy.ValidAt(time.Now()),
	})
}
