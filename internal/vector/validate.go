package vector

import (
	"fmt"

	"github.com/ctessum/geom"
)

// InvalidGeometryError reports a geometry that cannot be used for area math.
// Fatal unless geometry repair is enabled in configuration.
type InvalidGeometryError struct {
	Stage    string // "vectorize", "intersect", "boundary"
	RegionID string
	Reason   string
}

func (e *InvalidGeometryError) Error() string {
	if e.RegionID == "" {
		return fmt.Sprintf("invalid geometry at %s: %s", e.Stage, e.Reason)
	}
	return fmt.Sprintf("invalid geometry at %s (region %s): %s", e.Stage, e.RegionID, e.Reason)
}

// Validate performs the structural checks area computation depends on:
// every ring closed and at least a triangle. Traced rings are axis-aligned
// and cannot self-intersect by construction, so deeper checks are reserved
// for externally supplied boundaries.
func Validate(p geom.Polygonal, stage, regionID string) error {
	for _, poly := range p.Polygons() {
		for _, ring := range poly {
			if len(ring) == 0 {
				continue
			}
			if len(ring) < 4 {
				return &InvalidGeometryError{Stage: stage, RegionID: regionID,
					Reason: fmt.Sprintf("ring with %d points is degenerate", len(ring))}
			}
			if ring[0] != ring[len(ring)-1] {
				return &InvalidGeometryError{Stage: stage, RegionID: regionID,
					Reason: "ring is not closed"}
			}
		}
	}
	return nil
}

// Repair rebuilds a questionable polygonal through a clipping-library union
// with an empty polygon, which re-resolves ring orientation and removes
// degenerate rings. The repaired geometry is returned along with whether
// anything changed structurally.
func Repair(p geom.Polygonal) geom.Polygonal {
	return p.Union(geom.Polygon{})
}
