// Package vector converts cleaned flood masks into polygon geometries in the
// raster's coordinate reference system.
package vector

import (
	"github.com/ctessum/geom"

	"github.com/floodsight/sar-flood-mapping/internal/detect"
)

// FloodPolygon is one connected flooded region as a geometry. Rings include
// holes left by gaps larger than the configured fill size.
type FloodPolygon struct {
	Region int // 1-based label from the mask, stable across a run
	Geom   geom.Polygon
}

// grid directions, indexed for turn preference
var dirs = [4][2]int{{1, 0}, {0, 1}, {-1, 0}, {0, -1}} // +x, +y, -x, -y

// Trace converts a cleaned mask into one polygon per 8-connected flooded
// region. Boundary edges are collected with the region interior on the left
// of the walking direction, then chained into closed rings; exterior rings
// come out counterclockwise in grid axes and holes clockwise. Pinch points
// where pixels of one region touch diagonally are resolved by always taking
// the sharpest left turn, so rings never cross themselves.
//
// An all-zero mask yields an empty slice. Staircase edges are preserved;
// smoothing, if any, is an export concern.
func Trace(m *detect.Mask) []FloodPolygon {
	labels, count := detect.LabelFlooded(m)
	if count == 0 {
		return nil
	}

	edges := collectBoundaryEdges(m, labels)

	out := make([]FloodPolygon, 0, count)
	for region := 1; region <= count; region++ {
		rings := chainRings(edges[region], m.Width)
		poly := make(geom.Polygon, 0, len(rings))
		for _, ring := range rings {
			poly = append(poly, ringToWorld(ring, m.Width, m.Transform))
		}
		out = append(out, FloodPolygon{Region: region, Geom: poly})
	}
	return out
}

// TotalArea sums the polygon areas. Holes subtract, so for any mask this
// equals flooded-pixel count times pixel area (in grid units).
func TotalArea(polys []FloodPolygon) float64 {
	total := 0.0
	for _, p := range polys {
		total += p.Geom.Area()
	}
	return total
}

// edge is a directed segment between grid vertices. Vertices are encoded as
// row*(width+1)+col over the (width+1)x(height+1) corner lattice.
type edge struct {
	from, to int
	dir      int // index into dirs
	used     bool
}

// collectBoundaryEdges walks the mask once and emits, per region, every pixel
// side whose neighbor lies outside the region. Scan order is row-major, so
// edge order — and therefore ring orientation and starting vertex — is
// deterministic.
func collectBoundaryEdges(m *detect.Mask, labels []int32) map[int][]*edge {
	vw := m.Width + 1 // vertex lattice width
	edges := make(map[int][]*edge)

	add := func(region, fromR, fromC, dir int) {
		from := fromR*vw + fromC
		to := (fromR+dirs[dir][1])*vw + (fromC + dirs[dir][0])
		edges[region] = append(edges[region], &edge{from: from, to: to, dir: dir})
	}

	labelAt := func(r, c int) int32 {
		if r < 0 || r >= m.Height || c < 0 || c >= m.Width {
			return 0
		}
		return labels[r*m.Width+c]
	}

	for r := 0; r < m.Height; r++ {
		for c := 0; c < m.Width; c++ {
			l := labels[r*m.Width+c]
			if l == 0 {
				continue
			}
			region := int(l)
			if labelAt(r-1, c) != l { // top side, walk +x
				add(region, r, c, 0)
			}
			if labelAt(r, c+1) != l { // right side, walk +y
				add(region, r, c+1, 1)
			}
			if labelAt(r+1, c) != l { // bottom side, walk -x
				add(region, r+1, c+1, 2)
			}
			if labelAt(r, c-1) != l { // left side, walk -y
				add(region, r+1, c, 3)
			}
		}
	}
	return edges
}

// chainRings links directed edges into closed rings. At a vertex where more
// than one unused edge starts (a diagonal pinch), the sharpest left turn
// relative to the incoming direction is taken.
func chainRings(es []*edge, width int) [][]int {
	byStart := make(map[int][]*edge, len(es))
	for _, e := range es {
		byStart[e.from] = append(byStart[e.from], e)
	}

	var rings [][]int
	for _, first := range es {
		if first.used {
			continue
		}
		ring := []int{first.from}
		cur := first
		cur.used = true
		for cur.to != first.from {
			ring = append(ring, cur.to)
			next := pickNext(byStart[cur.to], cur.dir)
			if next == nil {
				break // cannot happen on a well-formed boundary
			}
			next.used = true
			cur = next
		}
		rings = append(rings, ring)
	}
	return rings
}

// pickNext chooses the unused outgoing edge turning most sharply left.
// Preference relative to incoming direction d: left (d+1 mod 4), straight
// (d), right (d+3 mod 4). The reverse direction never occurs because a side
// cannot separate a region from itself.
func pickNext(candidates []*edge, incoming int) *edge {
	for _, turn := range [3]int{(incoming + 1) % 4, incoming, (incoming + 3) % 4} {
		for _, e := range candidates {
			if !e.used && e.dir == turn {
				return e
			}
		}
	}
	return nil
}

// ringToWorld maps lattice vertices through the affine transform, dropping
// collinear intermediate vertices, and closes the ring.
func ringToWorld(ring []int, width int, t [6]float64) []geom.Point {
	vw := width + 1
	compact := compactRing(ring, vw)

	pts := make([]geom.Point, 0, len(compact)+1)
	for _, v := range compact {
		col := float64(v % vw)
		row := float64(v / vw)
		pts = append(pts, geom.Point{
			X: t[0] + col*t[1] + row*t[2],
			Y: t[3] + col*t[4] + row*t[5],
		})
	}
	pts = append(pts, pts[0])
	return pts
}

// compactRing removes vertices where the ring continues straight.
func compactRing(ring []int, vw int) []int {
	n := len(ring)
	if n < 3 {
		return ring
	}
	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		prev := ring[(i+n-1)%n]
		cur := ring[i]
		next := ring[(i+1)%n]
		d1c, d1r := (cur-prev)%vw, (cur-prev)/vw
		d2c, d2r := (next-cur)%vw, (next-cur)/vw
		if d1c == d2c && d1r == d2r {
			continue
		}
		out = append(out, cur)
	}
	return out
}
