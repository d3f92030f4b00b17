package region

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/ctessum/geom/proj"

	"github.com/floodsight/sar-flood-mapping/internal/config"
	"github.com/floodsight/sar-flood-mapping/internal/vector"
)

// RegionFlood is the flood geometry clipped to one region, with areas in
// square meters of the output CRS.
type RegionFlood struct {
	Region       Region
	Geom         geom.Polygonal // may be an empty polygon when nothing intersects
	AreaM2       float64
	RegionAreaM2 float64
	Parts        int // flood polygons contributing to this region
}

// Result carries everything downstream stages need: the per-region clips in
// input order and the aggregate flood set against the urban extent alone.
type Result struct {
	PerRegion []RegionFlood
	// Flood polygons reprojected to the output CRS, mask order.
	FloodProjected []geom.Polygonal
	// TotalGeom is the flood set clipped to urban extent (or the whole
	// flood set when no urban boundary was supplied).
	TotalGeom   geom.Polygonal
	TotalAreaM2 float64
	UrbanAreaM2 float64 // reference area of the urban extent, 0 when absent
}

// Intersector reprojects flood and boundary geometry into a common projected
// CRS and computes per-region intersections. Safe for a single run; build a
// new one per scene pair.
type Intersector struct {
	rasterToOut   proj.Transformer
	boundaryToOut proj.Transformer
	repair        bool
	workers       int
	logger        *slog.Logger
	onRepair      func()
}

// NewIntersector builds the CRS transformers from configuration. onRepair,
// if non-nil, is invoked once per repaired geometry (metrics hook).
func NewIntersector(cfg *config.Config, logger *slog.Logger, onRepair func()) (*Intersector, error) {
	rasterSR, err := proj.Parse(cfg.RasterProj)
	if err != nil {
		return nil, &config.ConfigurationError{Option: "RASTER_PROJ", Value: cfg.RasterProj, Reason: err.Error()}
	}
	boundarySR, err := proj.Parse(BoundaryProj)
	if err != nil {
		return nil, fmt.Errorf("parse boundary proj: %w", err)
	}
	outSR, err := proj.Parse(cfg.OutputProj)
	if err != nil {
		return nil, &config.ConfigurationError{Option: "OUTPUT_PROJ", Value: cfg.OutputProj, Reason: err.Error()}
	}

	rasterToOut, err := rasterSR.NewTransform(outSR)
	if err != nil {
		return nil, fmt.Errorf("raster->output transform: %w", err)
	}
	boundaryToOut, err := boundarySR.NewTransform(outSR)
	if err != nil {
		return nil, fmt.Errorf("boundary->output transform: %w", err)
	}

	return &Intersector{
		rasterToOut:   rasterToOut,
		boundaryToOut: boundaryToOut,
		repair:        cfg.GeometryRepair,
		workers:       cfg.RegionWorkers,
		logger:        logger,
		onRepair:      onRepair,
	}, nil
}

// floodItem makes a projected flood polygon indexable by the rtree while
// remembering its mask order for deterministic iteration.
type floodItem struct {
	geom.Polygonal
	index int
}

// Intersect clips the flood set to each region. urban may be nil. Regions
// with no overlap still appear in the result with zero area. Per-region work
// runs on the configured number of goroutines; each region writes only its
// own slot, and candidate ordering is fixed by mask order, so the result is
// identical to a sequential run.
func (ix *Intersector) Intersect(polys []vector.FloodPolygon, regions []Region, urban geom.Polygonal) (*Result, error) {
	flood, tree, err := ix.projectFlood(polys)
	if err != nil {
		return nil, err
	}

	res := &Result{
		PerRegion:      make([]RegionFlood, len(regions)),
		FloodProjected: flood,
	}

	if err := ix.computeTotal(res, flood, urban); err != nil {
		return nil, err
	}

	errs := make([]error, len(regions))
	var wg sync.WaitGroup
	sem := make(chan struct{}, max(ix.workers, 1))
	for i := range regions {
		wg.Add(1)
		sem <- struct{}{}
		go func(slot int) {
			defer wg.Done()
			defer func() { <-sem }()
			res.PerRegion[slot], errs[slot] = ix.clipRegion(regions[slot], tree)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

// projectFlood reprojects every flood polygon into the output CRS and
// indexes it spatially.
func (ix *Intersector) projectFlood(polys []vector.FloodPolygon) ([]geom.Polygonal, *rtree.Rtree, error) {
	flood := make([]geom.Polygonal, len(polys))
	tree := rtree.NewTree(25, 50)
	for i, p := range polys {
		g, err := p.Geom.Transform(ix.rasterToOut)
		if err != nil {
			return nil, nil, fmt.Errorf("reproject flood polygon %d: %w", p.Region, err)
		}
		pg, ok := g.(geom.Polygonal)
		if !ok {
			return nil, nil, &vector.InvalidGeometryError{Stage: "intersect",
				Reason: fmt.Sprintf("flood polygon %d is not polygonal after reprojection", p.Region)}
		}
		flood[i] = pg
		tree.Insert(floodItem{Polygonal: pg, index: i})
	}
	return flood, tree, nil
}

// computeTotal fills the aggregate fields: the flood set against the urban
// extent alone (all flood polygons when no urban boundary is given).
func (ix *Intersector) computeTotal(res *Result, flood []geom.Polygonal, urban geom.Polygonal) error {
	if urban == nil {
		total := 0.0
		var g geom.Polygonal = geom.Polygon{}
		for _, p := range flood {
			total += p.Area()
			g = g.Union(p)
		}
		res.TotalGeom = g
		res.TotalAreaM2 = total
		return nil
	}

	urbanOut, err := ix.projectBoundary(urban, "urban")
	if err != nil {
		return err
	}
	res.UrbanAreaM2 = urbanOut.Area()

	var g geom.Polygonal = geom.Polygon{}
	for _, p := range flood {
		g = g.Union(urbanOut.Intersection(p))
	}
	res.TotalGeom = g
	res.TotalAreaM2 = g.Area()
	return nil
}

// clipRegion intersects the flood set with one region boundary.
func (ix *Intersector) clipRegion(r Region, tree *rtree.Rtree) (RegionFlood, error) {
	boundary, err := ix.projectBoundary(r.Boundary, r.ID)
	if err != nil {
		return RegionFlood{}, err
	}

	regionArea := r.TotalAreaM2
	if regionArea == 0 {
		regionArea = boundary.Area()
	}

	// Candidates in mask order keeps union order, and therefore output
	// geometry, independent of worker scheduling.
	hits := tree.SearchIntersect(boundary.Bounds())
	candidates := make([]floodItem, 0, len(hits))
	for _, h := range hits {
		candidates = append(candidates, h.(floodItem))
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].index < candidates[j].index })

	var clipped geom.Polygonal = geom.Polygon{}
	parts := 0
	for _, c := range candidates {
		section := boundary.Intersection(c.Polygonal)
		a := section.Area()
		if math.IsNaN(a) || math.IsInf(a, 0) {
			return RegionFlood{}, &vector.InvalidGeometryError{Stage: "intersect",
				RegionID: r.ID, Reason: "intersection produced a non-finite area"}
		}
		if a == 0 {
			continue
		}
		clipped = clipped.Union(section)
		parts++
	}

	return RegionFlood{
		Region:       r,
		Geom:         clipped,
		AreaM2:       clipped.Area(),
		RegionAreaM2: regionArea,
		Parts:        parts,
	}, nil
}

// projectBoundary validates, optionally repairs, and reprojects a boundary
// polygon into the output CRS.
func (ix *Intersector) projectBoundary(b geom.Polygonal, id string) (geom.Polygonal, error) {
	if err := vector.Validate(b, "boundary", id); err != nil {
		if !ix.repair {
			return nil, err
		}
		b = vector.Repair(b)
		ix.logger.Warn("repaired invalid boundary geometry", "region_id", id)
		if ix.onRepair != nil {
			ix.onRepair()
		}
	}
	g, err := b.Transform(ix.boundaryToOut)
	if err != nil {
		return nil, fmt.Errorf("reproject boundary %q: %w", id, err)
	}
	pg, ok := g.(geom.Polygonal)
	if !ok {
		return nil, &vector.InvalidGeometryError{Stage: "boundary", RegionID: id,
			Reason: "boundary is not polygonal after reprojection"}
	}
	return pg, nil
}
