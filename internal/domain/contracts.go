package domain

import (
	"context"
	"errors"
)

var (
	// ErrUnknownRegion is returned when a region id is not configured.
	ErrUnknownRegion = errors.New("unknown region")

	// ErrSyncInProgress is returned when a region is already being synced.
	ErrSyncInProgress = errors.New("sync already in progress")
)

// FeatureSource supplies raw points inside a bounding box.
type FeatureSource interface {
	// FetchFeatures returns the points inside bbox, formatted as
	// "south,west,north,east". An empty result is not an error.
	FetchFeatures(ctx context.Context, bbox string) ([]RawPoint, error)
}

// FeatureStore persists normalized features and named settings.
type FeatureStore interface {
	GetAllRecords(ctx context.Context, collection string) ([]NormalizedFeature, error)

	// BatchUpsertRecords inserts or replaces records keyed by their ID.
	BatchUpsertRecords(ctx context.Context, collection string, records []NormalizedFeature) error

	// GetNamedSetting returns the stored value and whether it exists.
	GetNamedSetting(ctx context.Context, key string) ([]byte, bool, error)
	SetNamedSetting(ctx context.Context, key string, value []byte) error
}

// SyncCommitter is implemented by stores that can write a feature batch and
// a version record atomically.
type SyncCommitter interface {
	CommitSync(ctx context.Context, collection string, records []NormalizedFeature, versionKey string, version []byte) error
}

// RecordPruner is implemented by stores that can delete records by id.
type RecordPruner interface {
	DeleteRecords(ctx context.Context, collection string, ids []string) error
}

// SyncNotifier is told about every successful sync.
type SyncNotifier interface {
	NotifySynced(ctx context.Context, event RegionSynced) error
}
