package feed

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-discovery/internal/app/domain/catalog"
	"github.com/FACorreiaa/loci-discovery/internal/app/middleware"
	"github.com/FACorreiaa/loci-discovery/internal/app/models"
	"github.com/FACorreiaa/loci-discovery/internal/app/observability/metrics"
)

const (
	defaultFeedLimit = 20
	maxFeedLimit     = 100
)

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

// GetFeed serves one page of a discovery feed.
// GET /api/v1/feed?type=for-you&limit=20&offset=0&city=lisbon
func (h *Handler) GetFeed(c *gin.Context) {
	feedType := models.FeedType(c.DefaultQuery("type", string(models.FeedForYou)))

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultFeedLimit)))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}
	if limit > maxFeedLimit {
		limit = maxFeedLimit
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be a non-negative integer"})
		return
	}

	ctx := c.Request.Context()
	destinations, err := h.catalog.ListDestinations(ctx, c.Query("city"))
	if err != nil {
		h.logger.Error("Failed to load destination catalog", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load destinations"})
		return
	}

	result, err := h.service.GetFeed(ctx, middleware.GetUserID(c), middleware.GetSessionID(c), feedType, limit, offset, destinations)
	if err != nil {
		if errors.Is(err, models.ErrBadRequest) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Failed to build feed", zap.String("feedType", string(feedType)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build feed"})
		return
	}

	if m := metrics.GetAppMetrics(); m != nil {
		m.FeedRequestsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("feed_type", string(feedType))))
	}

	c.JSON(http.StatusOK, result)
}
