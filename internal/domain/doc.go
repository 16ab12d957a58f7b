// Package domain models the points of interest that Region Sentinel keeps in
// its offline copy of a region.
//
// # Data Source
//
// Raw points come from an OpenStreetMap Overpass query over a region's
// bounding box. Each point carries the OSM element type ("node", "way"), its
// numeric OSM id, an optional coordinate, and the element's free-form tag bag.
// The adapter that talks to Overpass lives in internal/adapter/overpass; this
// package only sees [RawPoint] values.
//
// # Classification
//
// [Classify] maps a tag bag onto one of four categories. Rules are evaluated
// in order and the first match wins:
//
//	amenity=police|hospital|fire_station  →  infra
//	tourism=hotel|hostel                  →  hotel
//	government=*                          →  gov
//	highway=traffic_signals               →  traffic
//	anything else                         →  infra
//
// Falling back to infra is policy, not an error: a point the rules do not
// recognize is still kept and displayed as generic infrastructure.
//
// # Identity
//
// A [NormalizedFeature] is keyed by "<type>/<osm id>", e.g. "node/240109189".
// OSM ids are only unique per element type, so the type prefix is required.
// Re-syncing the same region yields the same ids, which makes every sync an
// overwrite-in-place rather than an append.
//
// # Versions
//
// A [RegionVersion] is the single record describing how fresh a region's
// local copy is. Its FeatureCount always equals the number of features written
// by the sync pass that produced it, including zero for an empty region.
package domain
