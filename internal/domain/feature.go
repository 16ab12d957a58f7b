package domain

import (
	"strconv"
	"time"

	"github.com/couchcryptid/region-sentinel/internal/geo"
)

// Tags is an OSM tag bag. Keys are open-ended; only a few are interpreted.
type Tags map[string]string

// Clone returns an independent copy of t; nil stays nil.
func (t Tags) Clone() Tags {
	if t == nil {
		return nil
	}
	out := make(Tags, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// RawPoint is a point of interest as returned by the remote source.
type RawPoint struct {
	ID       int64
	Type     string // "node", "way", "relation"
	Location *geo.Coordinate
	Tags     Tags
}

// Key returns the feature id used for storage, e.g. "node/42".
func (p RawPoint) Key() string {
	return p.Type + "/" + strconv.FormatInt(p.ID, 10)
}

// NormalizedFeature is the persisted, classified form of a RawPoint.
type NormalizedFeature struct {
	ID         string         `json:"id"`
	SourceType string         `json:"source_type"`
	Category   Category       `json:"category"`
	Tags       Tags           `json:"tags,omitempty"`
	Location   geo.Coordinate `json:"location"`
	Cell       string         `json:"cell,omitempty"` // H3 index, empty when indexing is disabled
	UpdatedAt  time.Time      `json:"updated_at"`
	Region     string         `json:"region"`
}

// RegionVersion describes the freshness of a region's local feature set.
type RegionVersion struct {
	RegionID     string          `json:"region_id"`
	Version      int64           `json:"version"` // unix milliseconds, strictly increasing per region
	LastCheck    time.Time       `json:"last_check"`
	FeatureCount int             `json:"feature_count"`
	BoundingBox  geo.BoundingBox `json:"bounding_box"`
}

// RegionSynced is the notification emitted after a successful sync.
type RegionSynced struct {
	RegionID     string          `json:"region_id"`
	Version      int64           `json:"version"`
	FeatureCount int             `json:"feature_count"`
	BoundingBox  geo.BoundingBox `json:"bounding_box"`
	SyncedAt     time.Time       `json:"synced_at"`
}

// Region is a named area of interest.
type Region struct {
	ID          string
	Center      geo.Coordinate
	RadiusMiles float64
}

// FeatureCollection returns the store collection holding a region's features.
func FeatureCollection(regionID string) string {
	return "features:" + regionID
}

// VersionKey returns the named-setting key holding a region's version record.
func VersionKey(regionID string) string {
	return "region_version:" + regionID
}
