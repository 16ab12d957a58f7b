// Package geo computes the axis-aligned bounding boxes used to constrain
// spatial feature queries around a region center.
//
// # Boundary conditions
//
// The longitude span is divided by cos(latitude), so it grows without bound as
// the center approaches either pole and is undefined at exactly ±90°. Regions
// are expected to sit well inside the inhabited latitudes. Boxes that would
// cross the antimeridian are not wrapped: east may exceed 180 or west may drop
// below -180.
package geo

import (
	"math"
	"strconv"
	"strings"
)

const (
	// kmPerMile converts statute miles to kilometers.
	kmPerMile = 1.60934

	// kmPerDegreeLat is the fixed length of one degree of latitude.
	kmPerDegreeLat = 111.32
)

// Coordinate is a WGS-84 latitude/longitude pair in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// BoundingBox is an axis-aligned rectangle in degrees.
type BoundingBox struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// Valid reports whether the box is non-degenerate.
func (b BoundingBox) Valid() bool {
	return b.North > b.South && b.East > b.West
}

// ComputeBoundingBox returns the box spanning radiusMiles in each cardinal
// direction from center. Longitude extent widens with latitude because a
// degree of longitude shrinks by cos(lat). radiusMiles must be positive.
func ComputeBoundingBox(center Coordinate, radiusMiles float64) BoundingBox {
	radiusKm := radiusMiles * kmPerMile
	latDelta := radiusKm / kmPerDegreeLat
	lngDelta := radiusKm / (kmPerDegreeLat * math.Cos(center.Lat*math.Pi/180))

	return BoundingBox{
		North: center.Lat + latDelta,
		South: center.Lat - latDelta,
		East:  center.Lng + lngDelta,
		West:  center.Lng - lngDelta,
	}
}

// IsInsideBoundingBox reports whether p lies within b, edges included.
func IsInsideBoundingBox(p Coordinate, b BoundingBox) bool {
	return p.Lat <= b.North && p.Lat >= b.South &&
		p.Lng <= b.East && p.Lng >= b.West
}

// FormatForQuery serializes b as "south,west,north,east", the order the
// Overpass bbox filter expects.
func FormatForQuery(b BoundingBox) string {
	parts := []string{
		formatDegrees(b.South),
		formatDegrees(b.West),
		formatDegrees(b.North),
		formatDegrees(b.East),
	}
	return strings.Join(parts, ",")
}

func formatDegrees(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
