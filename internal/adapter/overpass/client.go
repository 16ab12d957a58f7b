// Package overpass fetches points of interest from an Overpass API endpoint.
package overpass

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/region-sentinel/internal/domain"
	"github.com/couchcryptid/region-sentinel/internal/geo"
	"github.com/couchcryptid/region-sentinel/internal/observability"
	"golang.org/x/time/rate"
)

// DefaultURL is the public Overpass interpreter.
const DefaultURL = "https://overpass-api.de/api/interpreter"

// maxErrorBody bounds how much of a failed response is echoed into errors.
const maxErrorBody = 512

// Config controls the client's endpoint and request budget.
type Config struct {
	URL     string
	Timeout time.Duration
	// RatePerSecond <= 0 disables client-side rate limiting.
	RatePerSecond float64
	Burst         int
}

// Client implements domain.FeatureSource against the Overpass API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	timeout    time.Duration
	limiter    *rate.Limiter
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates an Overpass client.
func NewClient(cfg Config, logger *slog.Logger, metrics *observability.Metrics) *Client {
	baseURL := cfg.URL
	if baseURL == "" {
		baseURL = DefaultURL
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    baseURL,
		timeout:    cfg.Timeout,
		limiter:    limiter,
		logger:     logger,
		metrics:    metrics,
	}
}

// FetchFeatures returns every tracked point of interest inside bbox, which
// must be in "south,west,north,east" order.
func (c *Client) FetchFeatures(ctx context.Context, bbox string) ([]domain.RawPoint, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		c.metrics.SourceRequests.WithLabelValues("rate_limited").Inc()
		return nil, fmt.Errorf("overpass rate limit: %w", err)
	}

	start := time.Now()
	points, err := c.query(ctx, BuildQuery(bbox, c.timeout))
	c.metrics.SourceRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.SourceRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	c.metrics.SourceRequests.WithLabelValues("success").Inc()
	c.logger.Debug("overpass query complete", "bbox", bbox, "elements", len(points))
	return points, nil
}

func (c *Client) query(ctx context.Context, ql string) ([]domain.RawPoint, error) {
	form := url.Values{"data": {ql}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("overpass request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("overpass API error: status %d: %s", resp.StatusCode, body)
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if isRuntimeFailure(out.Remark) {
		// The server aborted the query; elements, if any, are incomplete.
		return nil, fmt.Errorf("overpass query aborted: %s", out.Remark)
	}
	if out.Remark != "" {
		c.logger.Warn("overpass remark", "remark", out.Remark)
	}

	points := make([]domain.RawPoint, 0, len(out.Elements))
	for _, el := range out.Elements {
		points = append(points, el.toRawPoint())
	}
	return points, nil
}

// BuildQuery renders the Overpass QL for all tracked feature classes in one
// round trip.
func BuildQuery(bbox string, timeout time.Duration) string {
	var b strings.Builder
	b.WriteString("[out:json]")
	if secs := int(timeout / time.Second); secs > 0 {
		fmt.Fprintf(&b, "[timeout:%d]", secs)
	}
	b.WriteString(";(")
	for _, f := range selectors {
		fmt.Fprintf(&b, "node%s(%s);", f, bbox)
	}
	b.WriteString(");out body;")
	return b.String()
}

var selectors = []string{
	`["amenity"~"^(police|hospital|fire_station)$"]`,
	`["tourism"~"^(hotel|hostel)$"]`,
	`["government"]`,
	`["highway"="traffic_signals"]`,
}

// isRuntimeFailure reports whether an Overpass remark signals a timeout or
// memory abort. Such responses arrive as HTTP 200.
func isRuntimeFailure(remark string) bool {
	r := strings.TrimSpace(remark)
	return strings.HasPrefix(r, "runtime error") || strings.HasPrefix(r, "runtime remark")
}

// Overpass API response types.

type response struct {
	Remark   string    `json:"remark"`
	Elements []element `json:"elements"`
}

type element struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    *float64          `json:"lat"`
	Lon    *float64          `json:"lon"`
	Center *latLon           `json:"center"`
	Tags   map[string]string `json:"tags"`
}

type latLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (e element) toRawPoint() domain.RawPoint {
	p := domain.RawPoint{ID: e.ID, Type: e.Type, Tags: e.Tags}
	switch {
	case e.Lat != nil && e.Lon != nil:
		p.Location = &geo.Coordinate{Lat: *e.Lat, Lng: *e.Lon}
	case e.Center != nil:
		p.Location = &geo.Coordinate{Lat: e.Center.Lat, Lng: e.Center.Lon}
	}
	return p
}
