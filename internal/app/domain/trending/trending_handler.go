package trending

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-discovery/internal/app/domain/catalog"
	"github.com/FACorreiaa/loci-discovery/internal/app/models"
	"github.com/FACorreiaa/loci-discovery/internal/app/observability/metrics"
)

const defaultTrendingLimit = 20

type Handler struct {
	logger  *zap.Logger
	service Service
	catalog catalog.Repository
}

func NewHandler(service Service, catalogRepo catalog.Repository, logger *zap.Logger) *Handler {
	return &Handler{
		logger:  logger,
		service: service,
		catalog: catalogRepo,
	}
}

// GetTrending lists destinations by descending trending score.
// GET /api/v1/trending?limit=20&city=lisbon
func (h *Handler) GetTrending(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultTrendingLimit)))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}

	ctx := c.Request.Context()
	destinations, err := h.catalog.ListDestinations(ctx, c.Query("city"))
	if err != nil {
		h.logger.Error("Failed to load destination catalog", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load destinations"})
		return
	}

	trending, err := h.service.GetTrending(ctx, limit, destinations)
	if err != nil {
		h.logger.Error("Failed to fetch trending destinations", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch trending destinations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": trending})
}

type destinationEventRequest struct {
	Action models.StatsAction `json:"action" binding:"required"`
}

// RecordDestinationEvent folds a view or save into the destination's
// trending stats.
// POST /api/v1/destinations/:slug/events
func (h *Handler) RecordDestinationEvent(c *gin.Context) {
	slug := c.Param("slug")

	var req destinationEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.service.RecordEvent(c.Request.Context(), slug, req.Action); err != nil {
		if errors.Is(err, models.ErrBadRequest) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Failed to record destination event", zap.String("slug", slug), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record event"})
		return
	}

	if m := metrics.GetAppMetrics(); m != nil {
		m.TrendingEventsTotal.Add(c.Request.Context(), 1, metric.WithAttributes(attribute.String("action", string(req.Action))))
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "Event recorded"})
}
