package economy

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Handler provides HTTP endpoints for economy queries
type Handler struct {
	engine *Engine
}

// NewHandler creates a new economy handler
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

// RegisterRoutes sets up economy routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/economy/stats", h.GetStats)
	r.GET("/economy/fee", h.GetFee)
	r.GET("/economy/loot", h.GetLoot)
	r.GET("/economy/probability", h.GetProbability)
}

// GetStats handles GET /economy/stats?value=&score=&rating=
func (h *Handler) GetStats(c *gin.Context) {
	value, ok := queryInt64(c, "value")
	if !ok {
		return
	}
	score, ok := queryFloat(c, "score")
	if !ok {
		return
	}
	rating := optionalFloat(c, "rating", 5000)

	c.JSON(http.StatusOK, gin.H{
		"stats": h.engine.Stats(value, score, rating),
	})
}

// GetFee handles GET /economy/fee?value=&score=&balance=
func (h *Handler) GetFee(c *gin.Context) {
	value, ok := queryInt64(c, "value")
	if !ok {
		return
	}
	score, ok := queryFloat(c, "score")
	if !ok {
		return
	}
	balance, ok := queryInt64(c, "balance")
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"fee": h.engine.AttackFee(value, score, balance),
	})
}

// GetLoot handles GET /economy/loot?value=
func (h *Handler) GetLoot(c *gin.Context) {
	value, ok := queryInt64(c, "value")
	if !ok {
		return
	}

	loot := h.engine.Loot(value)
	c.JSON(http.StatusOK, gin.H{
		"loot":  loot,
		"split": h.engine.SplitLoot(loot),
	})
}

// GetProbability handles GET /economy/probability?rating=&score=
func (h *Handler) GetProbability(c *gin.Context) {
	rating, ok := queryFloat(c, "rating")
	if !ok {
		return
	}
	score, ok := queryFloat(c, "score")
	if !ok {
		return
	}

	p := h.engine.calc.SuccessProbability(rating, score)
	c.JSON(http.StatusOK, gin.H{
		"probability": p,
		"chance":      h.engine.calc.ChanceLabel(p),
	})
}

// Query parsing helpers. Missing or malformed parameters abort with 400.

func queryInt64(c *gin.Context, name string) (int64, bool) {
	raw := c.Query(name)
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_parameter",
			"message": name + " must be a non-negative integer",
		})
		return 0, false
	}
	return v, true
}

func queryFloat(c *gin.Context, name string) (float64, bool) {
	raw := c.Query(name)
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_parameter",
			"message": name + " must be a non-negative number",
		})
		return 0, false
	}
	return v, true
}

func optionalFloat(c *gin.Context, name string, fallback float64) float64 {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	if v, err := strconv.ParseFloat(raw, 64); err == nil && v >= 0 {
		return v
	}
	return fallback
}
