// Package region restricts flood polygons to urban extent and partitions
// them across administrative boundaries, producing per-region flooded
// geometry and areas in a projected CRS.
package region

import (
	"github.com/ctessum/geom"

	"github.com/floodsight/sar-flood-mapping/internal/config"
)

// BoundaryProj is the CRS of boundary inputs. GeoJSON is WGS84 geographic
// coordinates by RFC 7946.
const BoundaryProj = "+proj=longlat +datum=WGS84 +no_defs"

// Region is an administrative or urban-extent boundary, read-only input to
// the intersector.
type Region struct {
	ID   string
	Name string
	// Boundary in BoundaryProj coordinates.
	Boundary geom.Polygonal
	// TotalAreaM2 is the region's reference area from boundary metadata;
	// 0 means derive it from the geometry in the output CRS.
	TotalAreaM2 float64
}

// ValidateUnique rejects duplicate region identifiers. Duplicates are a
// boundary-file configuration error, surfaced before any raster work, never
// silently merged.
func ValidateUnique(regions []Region) error {
	seen := make(map[string]struct{}, len(regions))
	for _, r := range regions {
		if r.ID == "" {
			return &config.ConfigurationError{Option: "regions", Value: r.Name,
				Reason: "feature is missing an id property"}
		}
		if _, dup := seen[r.ID]; dup {
			return &config.ConfigurationError{Option: "regions", Value: r.ID,
				Reason: "duplicate region identifier"}
		}
		seen[r.ID] = struct{}{}
	}
	return nil
}
