package geometry

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// minRingCoords is the smallest valid closed ring: a triangle plus closure.
const minRingCoords = 4

// Simplify reduces the vertex count of g with Douglas-Peucker at tolerance.
// Every dropped vertex lies within tolerance of the simplified shape and kept
// vertices are a subset of the input. Rings that would collapse below a
// triangle keep their original vertices so polygons stay valid.
func Simplify(g geom.T, tolerance float64) (geom.T, error) {
	if g == nil || tolerance <= 0 {
		return g, nil
	}

	stride := g.Stride()
	flat := g.FlatCoords()

	switch t := g.(type) {
	case *geom.Point, *geom.MultiPoint:
		return g, nil
	case *geom.LineString:
		out := simplifyRange(flat, stride, tolerance, 2)
		return geom.NewLineStringFlat(t.Layout(), out).SetSRID(t.SRID()), nil
	case *geom.MultiLineString:
		out, ends := simplifyParts(flat, stride, t.Ends(), tolerance, 2)
		return geom.NewMultiLineStringFlat(t.Layout(), out, ends).SetSRID(t.SRID()), nil
	case *geom.Polygon:
		out, ends := simplifyParts(flat, stride, t.Ends(), tolerance, minRingCoords)
		return geom.NewPolygonFlat(t.Layout(), out, ends).SetSRID(t.SRID()), nil
	case *geom.MultiPolygon:
		var out []float64
		endss := make([][]int, 0, len(t.Endss()))
		start := 0
		for _, ends := range t.Endss() {
			polyEnds := make([]int, 0, len(ends))
			for _, end := range ends {
				out = append(out, simplifyRange(flat[start:end], stride, tolerance, minRingCoords)...)
				polyEnds = append(polyEnds, len(out))
				start = end
			}
			endss = append(endss, polyEnds)
		}
		return geom.NewMultiPolygonFlat(t.Layout(), out, endss).SetSRID(t.SRID()), nil
	case *geom.GeometryCollection:
		gc := geom.NewGeometryCollection()
		for _, child := range t.Geoms() {
			sc, err := Simplify(child, tolerance)
			if err != nil {
				return nil, err
			}
			if err := gc.Push(sc); err != nil {
				return nil, eris.Wrap(err, "geometry: push collection member")
			}
		}
		return gc.SetSRID(t.SRID()), nil
	default:
		return nil, eris.Errorf("geometry: cannot simplify %T", g)
	}
}

func simplifyParts(flat []float64, stride int, ends []int, tolerance float64, minCoords int) ([]float64, []int) {
	var out []float64
	newEnds := make([]int, 0, len(ends))
	start := 0
	for _, end := range ends {
		out = append(out, simplifyRange(flat[start:end], stride, tolerance, minCoords)...)
		newEnds = append(newEnds, len(out))
		start = end
	}
	return out, newEnds
}

// simplifyRange runs Douglas-Peucker over one linestring or ring. If fewer
// than minCoords vertices survive, the input is returned unchanged.
func simplifyRange(flat []float64, stride int, tolerance float64, minCoords int) []float64 {
	n := len(flat) / stride
	if n <= 2 {
		return append([]float64(nil), flat...)
	}

	keep := make([]bool, n)
	keep[0], keep[n-1] = true, true

	type span struct{ first, last int }
	stack := []span{{0, n - 1}}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		maxDist, index := -1.0, -1
		ax, ay := flat[s.first*stride], flat[s.first*stride+1]
		bx, by := flat[s.last*stride], flat[s.last*stride+1]
		for i := s.first + 1; i < s.last; i++ {
			d := segmentDistance(flat[i*stride], flat[i*stride+1], ax, ay, bx, by)
			if d > maxDist {
				maxDist, index = d, i
			}
		}
		if index >= 0 && maxDist > tolerance {
			keep[index] = true
			stack = append(stack, span{s.first, index}, span{index, s.last})
		}
	}

	kept := 0
	for _, k := range keep {
		if k {
			kept++
		}
	}
	if kept < minCoords {
		return append([]float64(nil), flat...)
	}

	out := make([]float64, 0, kept*stride)
	for i, k := range keep {
		if k {
			out = append(out, flat[i*stride:(i+1)*stride]...)
		}
	}
	return out
}

// segmentDistance is the distance from (px, py) to the segment a-b.
func segmentDistance(px, py, ax, ay, bx, by float64) float64 {
	dx, dy := bx-ax, by-ay
	if dx == 0 && dy == 0 {
		return math.Hypot(px-ax, py-ay)
	}
	u := ((px-ax)*dx + (py-ay)*dy) / (dx*dx + dy*dy)
	switch {
	case u < 0:
		u = 0
	case u > 1:
		u = 1
	}
	return math.Hypot(px-(ax+u*dx), py-(ay+u*dy))
}
