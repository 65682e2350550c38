package interaction

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-discovery/internal/app/middleware"
	"github.com/FACorreiaa/loci-discovery/internal/app/models"
	"github.com/FACorreiaa/loci-discovery/internal/app/observability/metrics"
)

// StatsRecorder mirrors view/save interactions into the trending tracker so
// one call from the client updates both stores.
type StatsRecorder interface {
	RecordEvent(ctx context.Context, destinationSlug string, action models.StatsAction) error
}

type Handler struct {
	logger *zap.Logger
	repo   Repository
	stats  StatsRecorder
}

func NewHandler(repo Repository, stats StatsRecorder, logger *zap.Logger) *Handler {
	return &Handler{
		logger: logger,
		repo:   repo,
		stats:  stats,
	}
}

// RecordInteraction appends one behavioral event to the interaction log.
// POST /api/v1/interactions
func (h *Handler) RecordInteraction(c *gin.Context) {
	var event models.InteractionEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	// Identity comes from the middleware, never the body.
	event.SessionID = middleware.GetSessionID(c)
	event.UserID = middleware.GetUserID(c)
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	ctx := c.Request.Context()
	if err := h.repo.RecordInteraction(ctx, &event); err != nil {
		if errors.Is(err, models.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Failed to record interaction", zap.String("type", string(event.Type)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record interaction"})
		return
	}

	// Views and saves also count toward trending. Best effort: the
	// behavioral log is the system of record for the event itself.
	if h.stats != nil && event.DestinationSlug != nil {
		var action models.StatsAction
		switch event.Type {
		case models.InteractionView:
			action = models.StatsActionView
		case models.InteractionSave:
			action = models.StatsActionSave
		}
		if action != "" {
			if err := h.stats.RecordEvent(ctx, *event.DestinationSlug, action); err != nil {
				h.logger.Warn("Failed to mirror interaction into trending stats",
					zap.String("slug", *event.DestinationSlug), zap.Error(err))
			}
		}
	}

	if m := metrics.GetAppMetrics(); m != nil {
		m.InteractionEventsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("type", string(event.Type))))
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "Interaction recorded"})
}
