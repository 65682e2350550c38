package itinerary

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-discovery/internal/app/domain/catalog"
	"github.com/FACorreiaa/loci-discovery/internal/app/domain/favorites"
	"github.com/FACorreiaa/loci-discovery/internal/app/middleware"
	"github.com/FACorreiaa/loci-discovery/internal/app/models"
	"github.com/FACorreiaa/loci-discovery/internal/app/observability/metrics"
)

type Handler struct {
	logger    *zap.Logger
	optimizer Optimizer
	catalog   catalog.Repository
	favorites favorites.Repository
}

func NewHandler(optimizer Optimizer, catalogRepo catalog.Repository, favoritesRepo favorites.Repository, logger *zap.Logger) *Handler {
	return &Handler{
		logger:    logger,
		optimizer: optimizer,
		catalog:   catalogRepo,
		favorites: favoritesRepo,
	}
}

type optimizeRequest struct {
	City             string    `json:"city" binding:"required"`
	StartTime        time.Time `json:"startTime"`
	DestinationSlugs []string  `json:"destinationSlugs" binding:"required,min=1"`
}

type optimizeResponse struct {
	City  string                 `json:"city"`
	Stops []models.OptimizedStop `json:"stops"`
}

// OptimizeRoute turns a destination selection into a scheduled day itinerary.
// POST /api/v1/itinerary/optimize
func (h *Handler) OptimizeRoute(c *gin.Context) {
	var req optimizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.StartTime.IsZero() {
		req.StartTime = time.Now()
	}

	ctx := c.Request.Context()
	selected, err := h.catalog.GetDestinationsBySlugs(ctx, req.DestinationSlugs)
	if err != nil {
		h.logger.Error("Failed to resolve itinerary destinations", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve destinations"})
		return
	}
	if len(selected) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No known destinations in selection"})
		return
	}

	// Meal candidates come from the user's saved dining places in the city,
	// not just the selection. Anonymous users plan without them.
	var savedDining []models.Destination
	if userID := middleware.GetUserID(c); userID != nil {
		savedDining, err = h.favorites.GetSavedDiningInCity(ctx, *userID, req.City)
		if err != nil {
			h.logger.Warn("Failed to fetch saved dining places for itinerary", zap.Error(err))
			savedDining = nil
		}
	}

	stops := h.optimizer.OptimizeRoute(ctx, selected, req.StartTime, req.City, savedDining)

	if m := metrics.GetAppMetrics(); m != nil {
		m.ItineraryRequestsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("city", req.City)))
	}

	c.JSON(http.StatusOK, optimizeResponse{
		City:  req.City,
		Stops: stops,
	})
}
