package interaction

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-discovery/internal/app/models"
)

// historyLimit bounds how much of the behavioral log a single affinity
// computation reads. The log is append-only and unbounded; scoring only
// cares about recent behavior.
const historyLimit = 500

var _ Repository = (*RepositoryImpl)(nil)

// Repository defines the contract for the append-only interaction log.
// Writes validate strictly at this boundary; reads return newest first.
type Repository interface {
	RecordInteraction(ctx context.Context, event *models.InteractionEvent) error
	GetBySession(ctx context.Context, sessionID string) ([]models.InteractionEvent, error)
	GetByUser(ctx context.Context, userID string) ([]models.InteractionEvent, error)
}

type RepositoryImpl struct {
	logger *zap.Logger
	pgpool *pgxpool.Pool
}

func NewRepositoryImpl(pgpool *pgxpool.Pool, logger *zap.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		logger: logger,
		pgpool: pgpool,
	}
}

// RecordInteraction appends one event to the log. Rows are immutable once
// written.
func (r *RepositoryImpl) RecordInteraction(ctx context.Context, event *models.InteractionEvent) error {
	ctx, span := otel.Tracer("InteractionRepo").Start(ctx, "RecordInteraction", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "interactions"),
		attribute.String("interaction.type", string(event.Type)),
	))
	defer span.End()

	l := r.logger.With(zap.String("method", "RecordInteraction"), zap.String("type", string(event.Type)))

	if err := event.Validate(); err != nil {
		l.Warn("Rejected invalid interaction event", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid interaction event")
		return err
	}

	var metadata []byte
	if len(event.Metadata) > 0 {
		var err error
		metadata, err = json.Marshal(event.Metadata)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Metadata marshal failed")
			return fmt.Errorf("failed to encode interaction metadata: %w", err)
		}
	}

	query := `
        INSERT INTO interactions
            (session_id, user_id, interaction_type, destination_slug, city, category, duration_seconds, metadata, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())`

	_, err := r.pgpool.Exec(ctx, query,
		event.SessionID,
		event.UserID,
		string(event.Type),
		event.DestinationSlug,
		event.City,
		event.Category,
		event.DurationSeconds,
		metadata,
	)
	if err != nil {
		l.Error("Failed to insert interaction event", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB INSERT failed")
		return fmt.Errorf("database error recording interaction: %w", err)
	}

	span.SetStatus(codes.Ok, "Interaction recorded")
	return nil
}

// GetBySession returns the session's events, newest first.
func (r *RepositoryImpl) GetBySession(ctx context.Context, sessionID string) ([]models.InteractionEvent, error) {
	ctx, span := otel.Tracer("InteractionRepo").Start(ctx, "GetBySession", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "interactions"),
		attribute.String("session.id", sessionID),
	))
	defer span.End()

	query := `
        SELECT session_id, user_id, interaction_type, destination_slug, city, category, duration_seconds, created_at
        FROM interactions
        WHERE session_id = $1
        ORDER BY created_at DESC
        LIMIT $2`

	return r.queryEvents(ctx, span, "GetBySession", query, sessionID, historyLimit)
}

// GetByUser returns the user's events across all sessions, newest first.
func (r *RepositoryImpl) GetByUser(ctx context.Context, userID string) ([]models.InteractionEvent, error) {
	ctx, span := otel.Tracer("InteractionRepo").Start(ctx, "GetByUser", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "interactions"),
		attribute.String("user.id", userID),
	))
	defer span.End()

	query := `
        SELECT session_id, user_id, interaction_type, destination_slug, city, category, duration_seconds, created_at
        FROM interactions
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT $2`

	return r.queryEvents(ctx, span, "GetByUser", query, userID, historyLimit)
}

func (r *RepositoryImpl) queryEvents(ctx context.Context, span trace.Span, method, query string, args ...any) ([]models.InteractionEvent, error) {
	l := r.logger.With(zap.String("method", method))

	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		l.Error("Failed to query interactions", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error fetching interactions: %w", err)
	}
	defer rows.Close()

	var events []models.InteractionEvent
	for rows.Next() {
		var (
			e         models.InteractionEvent
			eventType string
		)
		err := rows.Scan(
			&e.SessionID, &e.UserID, &eventType, &e.DestinationSlug,
			&e.City, &e.Category, &e.DurationSeconds, &e.Timestamp,
		)
		if err != nil {
			l.Error("Failed to scan interaction row", zap.Error(err))
			span.RecordError(err)
			return nil, fmt.Errorf("database error scanning interaction: %w", err)
		}
		e.Type = models.InteractionType(eventType)
		events = append(events, e)
	}

	if err = rows.Err(); err != nil {
		l.Error("Error iterating interaction rows", zap.Error(err))
		span.RecordError(err)
		return nil, fmt.Errorf("database error reading interactions: %w", err)
	}

	l.Debug("Fetched interactions", zap.Int("count", len(events)))
	span.SetStatus(codes.Ok, "Interactions fetched")
	return events, nil
}
