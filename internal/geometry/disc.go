package geometry

import (
	"math"

	"github.com/twpayne/go-geom"
)

// MinRadius is the smallest radius Disc renders as a polygon. Anything at or
// below it is degenerate and yields an empty polygon.
const MinRadius = 1e-9

// Disc approximates a circle of radius around (x, y) with a closed,
// counter-clockwise ring of 4*segmentsPerQuarter vertices.
func Disc(x, y, radius float64, segmentsPerQuarter, srid int) *geom.Polygon {
	if radius <= MinRadius || math.IsNaN(radius) {
		return geom.NewPolygon(geom.XY).SetSRID(srid)
	}
	if segmentsPerQuarter < 1 {
		segmentsPerQuarter = 1
	}

	n := 4 * segmentsPerQuarter
	flat := make([]float64, 0, (n+1)*2)
	for i := 0; i < n; i++ {
		a := 2 * math.Pi * float64(i) / float64(n)
		flat = append(flat, x+radius*math.Cos(a), y+radius*math.Sin(a))
	}
	flat = append(flat, flat[0], flat[1])

	return geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)}).SetSRID(srid)
}
