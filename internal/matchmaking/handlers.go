package matchmaking

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/vaultbreak/internal/metrics"
)

// Handler provides HTTP endpoints for the target feed
type Handler struct {
	service *Service
}

// NewHandler creates a new matchmaking handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up matchmaking routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/matchmaking/feed", h.GetFeed)
	r.GET("/matchmaking/practice", h.GetPracticeTarget)
}

// GetFeed handles GET /matchmaking/feed?rating=&count=
func (h *Handler) GetFeed(c *gin.Context) {
	rating := 1000.0
	if raw := c.Query("rating"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_parameter",
				"message": "rating must be a non-negative number",
			})
			return
		}
		rating = parsed
	}

	count := h.service.params.FeedSize
	if raw := c.Query("count"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 50 {
			count = parsed
		}
	}

	feed, err := h.service.RefreshFeed(rating, count)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "feed_failed",
			"message": err.Error(),
		})
		return
	}
	metrics.FeedRefreshesTotal.Inc()

	c.JSON(http.StatusOK, gin.H{
		"targets": feed,
	})
}

// GetPracticeTarget handles GET /matchmaking/practice
func (h *Handler) GetPracticeTarget(c *gin.Context) {
	target, err := h.service.PracticeTarget()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "practice_failed",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"target": target,
	})
}
