package affinity

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-discovery/internal/app/middleware"
)

type Handler struct {
	logger     *zap.Logger
	calculator Calculator
}

func NewHandler(calculator Calculator, logger *zap.Logger) *Handler {
	return &Handler{
		logger:     logger,
		calculator: calculator,
	}
}

// GetAffinity exposes the computed taste profile for the current identity.
// GET /api/v1/affinity
func (h *Handler) GetAffinity(c *gin.Context) {
	profile, err := h.calculator.ComputeAffinity(c.Request.Context(), middleware.GetUserID(c), middleware.GetSessionID(c))
	if err != nil {
		h.logger.Error("Failed to compute affinity profile", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute affinity"})
		return
	}

	c.JSON(http.StatusOK, profile)
}
