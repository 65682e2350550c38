package distance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-discovery/internal/pkg/config"
)

const defaultTimeout = 3 * time.Second

// Client calls the external travel-time service. One request per estimate,
// no retries; callers are expected to have their own fallback.
type Client struct {
	logger     *zap.Logger
	httpClient *http.Client
	baseURL    string
}

func NewClient(cfg config.DistanceConfig, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		logger:     logger,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
	}
}

type durationResponse struct {
	DurationSeconds float64 `json:"duration_seconds"`
}

// EstimateTravel returns the estimated travel time between two coordinate
// pairs for the given mode.
func (c *Client) EstimateTravel(ctx context.Context, fromLat, fromLng, toLat, toLng float64, mode string) (time.Duration, error) {
	ctx, span := otel.Tracer("DistanceClient").Start(ctx, "EstimateTravel", trace.WithAttributes(
		attribute.String("travel.mode", mode),
	))
	defer span.End()

	if c.baseURL == "" {
		err := fmt.Errorf("distance service not configured")
		span.SetStatus(codes.Error, "Not configured")
		return 0, err
	}

	endpoint, err := url.Parse(c.baseURL + "/route/duration")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Bad base URL")
		return 0, fmt.Errorf("invalid distance service URL: %w", err)
	}
	q := endpoint.Query()
	q.Set("origin_lat", strconv.FormatFloat(fromLat, 'f', -1, 64))
	q.Set("origin_lng", strconv.FormatFloat(fromLng, 'f', -1, 64))
	q.Set("dest_lat", strconv.FormatFloat(toLat, 'f', -1, 64))
	q.Set("dest_lng", strconv.FormatFloat(toLng, 'f', -1, 64))
	q.Set("mode", mode)
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("error building distance request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Distance service request failed", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Request failed")
		return 0, fmt.Errorf("distance service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("distance service returned status %d", resp.StatusCode)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Non-200 response")
		return 0, err
	}

	var body durationResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Bad response body")
		return 0, fmt.Errorf("error decoding distance response: %w", err)
	}
	if body.DurationSeconds <= 0 {
		err := fmt.Errorf("distance service returned non-positive duration")
		span.RecordError(err)
		return 0, err
	}

	duration := time.Duration(body.DurationSeconds * float64(time.Second))
	span.SetAttributes(attribute.Float64("travel.duration_seconds", body.DurationSeconds))
	span.SetStatus(codes.Ok, "Travel time estimated")
	return duration, nil
}
