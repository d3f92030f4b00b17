// Package geojson reads boundary inputs and writes vector products as
// GeoJSON, converting between the orb types used on the wire and the
// ctessum/geom types used for geometry math.
package geojson

import (
	"fmt"

	"github.com/ctessum/geom"
	"github.com/paulmach/orb"
)

// toGeom converts a decoded orb geometry into a clipping-capable polygonal.
func toGeom(g orb.Geometry) (geom.Polygonal, error) {
	switch v := g.(type) {
	case orb.Polygon:
		return polygonToGeom(v), nil
	case orb.MultiPolygon:
		var out geom.MultiPolygon
		for _, p := range v {
			out = append(out, polygonToGeom(p))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported geometry type %T, want Polygon or MultiPolygon", g)
	}
}

func polygonToGeom(p orb.Polygon) geom.Polygon {
	out := make(geom.Polygon, 0, len(p))
	for _, ring := range p {
		path := make([]geom.Point, 0, len(ring))
		for _, pt := range ring {
			path = append(path, geom.Point{X: pt[0], Y: pt[1]})
		}
		out = append(out, path)
	}
	return out
}

// toOrb converts computed polygonal geometry back to orb for serialization.
// Rings are regrouped into proper polygons: each counterclockwise (positive
// signed area) ring opens a polygon, each clockwise ring becomes a hole of
// the outer ring containing it.
func toOrb(p geom.Polygonal) orb.MultiPolygon {
	var outers []orb.Ring
	var holes []orb.Ring
	for _, poly := range p.Polygons() {
		for _, ring := range poly {
			if len(ring) < 3 {
				continue
			}
			r := ringToOrb(ring)
			if signedArea(r) >= 0 {
				outers = append(outers, r)
			} else {
				holes = append(holes, r)
			}
		}
	}

	mp := make(orb.MultiPolygon, 0, len(outers))
	for _, o := range outers {
		mp = append(mp, orb.Polygon{o})
	}
	for _, h := range holes {
		placed := false
		for i, o := range outers {
			if ringContains(o, h[0]) {
				mp[i] = append(mp[i], h)
				placed = true
				break
			}
		}
		if !placed && len(mp) > 0 {
			mp[0] = append(mp[0], h)
		}
	}
	return mp
}

func ringToOrb(ring []geom.Point) orb.Ring {
	out := make(orb.Ring, 0, len(ring)+1)
	for _, pt := range ring {
		out = append(out, orb.Point{pt.X, pt.Y})
	}
	if len(out) > 0 && out[0] != out[len(out)-1] {
		out = append(out, out[0])
	}
	return out
}

// signedArea is the shoelace sum over a closed ring; positive means
// counterclockwise in the coordinate axes.
func signedArea(r orb.Ring) float64 {
	sum := 0.0
	for i := 0; i < len(r)-1; i++ {
		sum += r[i][0]*r[i+1][1] - r[i+1][0]*r[i][1]
	}
	return sum / 2
}

// ringContains is an even-odd crossing test, sufficient for assigning holes
// to their enclosing outer ring.
func ringContains(r orb.Ring, pt orb.Point) bool {
	inside := false
	for i := 0; i < len(r)-1; i++ {
		a, b := r[i], r[i+1]
		if (a[1] > pt[1]) != (b[1] > pt[1]) {
			x := a[0] + (pt[1]-a[1])/(b[1]-a[1])*(b[0]-a[0])
			if pt[0] < x {
				inside = !inside
			}
		}
	}
	return inside
}
