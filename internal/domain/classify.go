package domain

import (
	"fmt"
	"time"

	"github.com/uber/h3-go/v4"
)

// Category is the semantic class a feature is displayed under.
type Category string

const (
	CategoryInfra   Category = "infra"
	CategoryHotel   Category = "hotel"
	CategoryGov     Category = "gov"
	CategoryTraffic Category = "traffic"
)

var (
	infraAmenities = map[string]bool{"police": true, "hospital": true, "fire_station": true}
	lodgingTypes   = map[string]bool{"hotel": true, "hostel": true}
)

// Classify maps a tag bag to a Category. Rules are checked in priority order
// and the first match wins; unmatched or empty tags fall back to infra.
func Classify(tags Tags) Category {
	if len(tags) == 0 {
		return CategoryInfra
	}
	if infraAmenities[tags["amenity"]] {
		return CategoryInfra
	}
	if lodgingTypes[tags["tourism"]] {
		return CategoryHotel
	}
	if _, ok := tags["government"]; ok {
		return CategoryGov
	}
	if tags["highway"] == "traffic_signals" {
		return CategoryTraffic
	}
	return CategoryInfra
}

// Normalize classifies a raw point and stamps it with its region and sync
// time. The caller must ensure p.Location is set. A cellRes of zero disables
// H3 indexing.
func Normalize(p RawPoint, regionID string, syncedAt time.Time, cellRes int) (NormalizedFeature, error) {
	f := NormalizedFeature{
		ID:         p.Key(),
		SourceType: p.Type,
		Category:   Classify(p.Tags),
		Tags:       p.Tags.Clone(),
		Location:   *p.Location,
		UpdatedAt:  syncedAt,
		Region:     regionID,
	}
	if cellRes > 0 {
		cell, err := h3.LatLngToCell(h3.NewLatLng(p.Location.Lat, p.Location.Lng), cellRes)
		if err != nil {
			return NormalizedFeature{}, fmt.Errorf("h3 cell for %s at res %d: %w", f.ID, cellRes, err)
		}
		f.Cell = cell.String()
	}
	return f, nil
}
