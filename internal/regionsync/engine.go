// Package regionsync keeps a local copy of each region's points of interest
// fresh by periodically re-fetching and overwriting them.
package regionsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/region-sentinel/internal/domain"
	"github.com/couchcryptid/region-sentinel/internal/geo"
	"github.com/couchcryptid/region-sentinel/internal/observability"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/couchcryptid/region-sentinel/internal/regionsync"

// Progress percentages reported at the start of each phase.
const (
	PercentBounds    = 5
	PercentHandshake = 15
	PercentFetch     = 30
	PercentIngest    = 60
	PercentDone      = 100
)

// ProgressFunc receives phase progress as (percent, human-readable status).
type ProgressFunc func(percent int, status string)

// Options tunes an Engine. The zero value is usable.
type Options struct {
	// Clock stamps UpdatedAt and derives versions. Defaults to the real clock.
	Clock clockwork.Clock

	// HandshakeDelay is slept during the handshake phase.
	HandshakeDelay time.Duration

	// PruneStale deletes stored features missing from the latest fetch. It
	// requires a store implementing domain.RecordPruner.
	PruneStale bool

	// CellResolution is the H3 resolution stamped on each feature; 0 disables.
	CellResolution int

	// Notifier, when set, is told about every successful sync.
	Notifier domain.SyncNotifier

	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

// Engine runs sync passes for regions. It does not serialize concurrent
// passes for the same region; callers must.
type Engine struct {
	source  domain.FeatureSource
	store   domain.FeatureStore
	logger  *slog.Logger
	metrics *observability.Metrics
	opts    Options
	clock   clockwork.Clock
	tracer  trace.Tracer
}

// New creates an Engine reading from source and persisting into store.
func New(source domain.FeatureSource, store domain.FeatureStore, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Engine {
	if opts.PruneStale {
		if _, ok := store.(domain.RecordPruner); !ok {
			logger.Warn("stale pruning requested but store cannot delete records; pruning disabled")
			opts.PruneStale = false
		}
	}
	tp := opts.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Engine{
		source:  source,
		store:   store,
		logger:  logger,
		metrics: metrics,
		opts:    opts,
		clock:   domain.NewClock(opts.Clock),
		tracer:  tp.Tracer(tracerName),
	}
}

// SyncRegion fetches every feature inside the region's bounding box,
// classifies it, and overwrites the local copy. It returns true only when the
// fetch, the feature write and the version write all succeeded. On failure
// the previous RegionVersion is left untouched and no further progress is
// reported.
func (e *Engine) SyncRegion(ctx context.Context, regionID string, center geo.Coordinate, radiusMiles float64, onProgress ProgressFunc) bool {
	report := onProgress
	if report == nil {
		report = func(int, string) {}
	}

	syncID := uuid.NewString()
	logger := e.logger.With("region_id", regionID, "sync_id", syncID)

	ctx, span := e.tracer.Start(ctx, "regionsync.SyncRegion", trace.WithAttributes(
		attribute.String("region.id", regionID),
		attribute.String("sync.id", syncID),
		attribute.Float64("region.radius_miles", radiusMiles),
	))
	defer span.End()

	start := e.clock.Now()
	e.metrics.SyncRunning.Inc()
	defer e.metrics.SyncRunning.Dec()

	report(PercentBounds, "Calculating region bounds")
	box := geo.ComputeBoundingBox(center, radiusMiles)
	bbox := geo.FormatForQuery(box)
	logger.Debug("region bounds computed", "bbox", bbox)

	report(PercentHandshake, "Handshaking with sync server")
	e.handshake()

	report(PercentFetch, "Fetching features")
	points, err := e.source.FetchFeatures(ctx, bbox)
	if err != nil {
		e.fail(span, logger, "source_error", "fetch features failed", err)
		return false
	}

	syncedAt := e.clock.Now().UTC()
	features := e.normalize(points, regionID, syncedAt, logger)
	report(PercentIngest, fmt.Sprintf("Ingesting %d features", len(features)))

	version := domain.RegionVersion{
		RegionID:     regionID,
		Version:      e.nextVersion(ctx, regionID, syncedAt, logger),
		LastCheck:    syncedAt,
		FeatureCount: len(features),
		BoundingBox:  box,
	}
	if err := e.persist(ctx, regionID, features, version); err != nil {
		e.fail(span, logger, "store_error", "persist sync failed", err)
		return false
	}

	if e.opts.PruneStale {
		e.prune(ctx, regionID, features, logger)
	}
	e.notify(ctx, version, logger)

	e.metrics.Syncs.WithLabelValues("success").Inc()
	e.metrics.FeaturesIngested.Add(float64(len(features)))
	e.metrics.SyncDuration.Observe(e.clock.Since(start).Seconds())
	span.SetAttributes(attribute.Int("sync.feature_count", len(features)), attribute.Int64("sync.version", version.Version))

	logger.Info("region synced",
		"features", len(features),
		"raw_points", len(points),
		"version", version.Version,
		"bbox", bbox,
	)
	report(PercentDone, fmt.Sprintf("Sync complete: %d features", len(features)))
	return true
}

// GetRegionStatus returns the region's current version record, or nil if the
// region has never synced successfully.
func (e *Engine) GetRegionStatus(ctx context.Context, regionID string) (*domain.RegionVersion, error) {
	raw, ok, err := e.store.GetNamedSetting(ctx, domain.VersionKey(regionID))
	if err != nil {
		return nil, fmt.Errorf("read region version: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var v domain.RegionVersion
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode region version: %w", err)
	}
	return &v, nil
}

// handshake stands in for a future negotiation with a stateful sync server.
func (e *Engine) handshake() {
	if e.opts.HandshakeDelay > 0 {
		e.clock.Sleep(e.opts.HandshakeDelay)
	}
}

// normalize drops points without a usable coordinate, classifies the rest,
// and collapses repeated ids so the count matches what the store keeps. The
// last occurrence of an id wins, as it would in the store.
func (e *Engine) normalize(points []domain.RawPoint, regionID string, syncedAt time.Time, logger *slog.Logger) []domain.NormalizedFeature {
	features := make([]domain.NormalizedFeature, 0, len(points))
	index := make(map[string]int, len(points))
	var skipped, duplicates int
	for _, p := range points {
		if p.Location == nil {
			skipped++
			continue
		}
		f, err := domain.Normalize(p, regionID, syncedAt, e.opts.CellResolution)
		if err != nil {
			logger.Warn("skipping point", "point", p.Key(), "error", err)
			skipped++
			continue
		}
		if i, seen := index[f.ID]; seen {
			features[i] = f
			duplicates++
			continue
		}
		index[f.ID] = len(features)
		features = append(features, f)
	}
	if skipped > 0 {
		logger.Warn("points without usable coordinates skipped", "skipped", skipped)
	}
	if duplicates > 0 {
		logger.Warn("duplicate feature ids collapsed", "duplicates", duplicates)
	}
	return features
}

// nextVersion derives the version from wall-clock milliseconds, bumping past
// the previous version when the clock has not advanced.
func (e *Engine) nextVersion(ctx context.Context, regionID string, syncedAt time.Time, logger *slog.Logger) int64 {
	v := syncedAt.UnixMilli()
	prev, err := e.GetRegionStatus(ctx, regionID)
	if err != nil {
		logger.Warn("previous version unreadable, using clock only", "error", err)
		return v
	}
	if prev != nil && v <= prev.Version {
		return prev.Version + 1
	}
	return v
}

// persist writes the features and then the version record. Stores that
// support it get both writes in a single transaction; otherwise a crash
// between the two leaves new features paired with the old version.
func (e *Engine) persist(ctx context.Context, regionID string, features []domain.NormalizedFeature, version domain.RegionVersion) error {
	data, err := json.Marshal(version)
	if err != nil {
		return fmt.Errorf("encode region version: %w", err)
	}
	collection := domain.FeatureCollection(regionID)

	if c, ok := e.store.(domain.SyncCommitter); ok {
		if err := c.CommitSync(ctx, collection, features, domain.VersionKey(regionID), data); err != nil {
			return fmt.Errorf("commit sync: %w", err)
		}
		return nil
	}

	if len(features) > 0 {
		if err := e.store.BatchUpsertRecords(ctx, collection, features); err != nil {
			return fmt.Errorf("upsert features: %w", err)
		}
	}
	if err := e.store.SetNamedSetting(ctx, domain.VersionKey(regionID), data); err != nil {
		return fmt.Errorf("write region version: %w", err)
	}
	return nil
}

// prune deletes stored features that the latest fetch no longer returned.
// Failures are logged; the sync has already committed.
func (e *Engine) prune(ctx context.Context, regionID string, features []domain.NormalizedFeature, logger *slog.Logger) {
	collection := domain.FeatureCollection(regionID)
	stored, err := e.store.GetAllRecords(ctx, collection)
	if err != nil {
		logger.Warn("prune skipped: list stored features failed", "error", err)
		return
	}

	current := make(map[string]struct{}, len(features))
	for _, f := range features {
		current[f.ID] = struct{}{}
	}
	var stale []string
	for _, f := range stored {
		if _, ok := current[f.ID]; !ok {
			stale = append(stale, f.ID)
		}
	}
	if len(stale) == 0 {
		return
	}

	if err := e.store.(domain.RecordPruner).DeleteRecords(ctx, collection, stale); err != nil {
		logger.Warn("prune stale features failed", "stale", len(stale), "error", err)
		return
	}
	e.metrics.FeaturesPruned.Add(float64(len(stale)))
	logger.Info("stale features pruned", "pruned", len(stale))
}

func (e *Engine) notify(ctx context.Context, v domain.RegionVersion, logger *slog.Logger) {
	if e.opts.Notifier == nil {
		return
	}
	err := e.opts.Notifier.NotifySynced(ctx, domain.RegionSynced{
		RegionID:     v.RegionID,
		Version:      v.Version,
		FeatureCount: v.FeatureCount,
		BoundingBox:  v.BoundingBox,
		SyncedAt:     v.LastCheck,
	})
	if err != nil {
		logger.Warn("sync notification failed", "error", err)
	}
}

func (e *Engine) fail(span trace.Span, logger *slog.Logger, outcome, msg string, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	e.metrics.Syncs.WithLabelValues(outcome).Inc()
	if errors.Is(err, context.Canceled) {
		logger.Info(msg, "error", err)
		return
	}
	logger.Error(msg, "error", err)
}
