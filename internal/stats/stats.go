// Package stats turns per-region flood geometry into the flat records the
// dashboard and tabular exports consume.
package stats

import (
	"encoding/json"
	"math"
	"time"

	"github.com/floodsight/sar-flood-mapping/internal/region"
)

// TotalID is the region identifier of the aggregate record over the full AOI.
const TotalID = "total"

// StatRecord is one row of flood statistics for a region, or the aggregate
// row when RegionID is TotalID. Areas are square meters in the output CRS.
type StatRecord struct {
	RegionID        string    `json:"region_id"`
	RegionName      string    `json:"region_name,omitempty"`
	FloodedAreaM2   float64   `json:"flooded_area_m2"`
	RegionAreaM2    float64   `json:"region_area_m2"`
	FloodedFraction float64   `json:"flooded_fraction"` // NaN when RegionAreaM2 is 0
	Parts           int       `json:"parts"`
	ProcessedAt     time.Time `json:"processed_at"`
}

// MarshalJSON drops the flooded_fraction key when the fraction is NaN,
// which JSON cannot represent.
func (r StatRecord) MarshalJSON() ([]byte, error) {
	type alias StatRecord
	if !math.IsNaN(r.FloodedFraction) {
		return json.Marshal(alias(r))
	}
	return json.Marshal(struct {
		alias
		FloodedFraction *float64 `json:"flooded_fraction,omitempty"`
	}{alias: alias(r)})
}

// Aggregate produces one record per region, in the order the regions were
// supplied, followed by the aggregate record. Fractions are clamped to
// [0,1]; a region with zero reference area reports NaN rather than dividing
// by zero. Regions without any flooding still get a record with area 0 so
// consumers can tell "no flooding" from "region missing".
func Aggregate(res *region.Result) []StatRecord {
	now := clock.Now().UTC()
	records := make([]StatRecord, 0, len(res.PerRegion)+1)
	for _, rf := range res.PerRegion {
		records = append(records, StatRecord{
			RegionID:        rf.Region.ID,
			RegionName:      rf.Region.Name,
			FloodedAreaM2:   rf.AreaM2,
			RegionAreaM2:    rf.RegionAreaM2,
			FloodedFraction: fraction(rf.AreaM2, rf.RegionAreaM2),
			Parts:           rf.Parts,
			ProcessedAt:     now,
		})
	}

	totalRef := res.UrbanAreaM2
	records = append(records, StatRecord{
		RegionID:        TotalID,
		FloodedAreaM2:   res.TotalAreaM2,
		RegionAreaM2:    totalRef,
		FloodedFraction: fraction(res.TotalAreaM2, totalRef),
		Parts:           len(res.FloodProjected),
		ProcessedAt:     now,
	})
	return records
}

func fraction(flooded, total float64) float64 {
	if total == 0 {
		return math.NaN()
	}
	f := flooded / total
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
