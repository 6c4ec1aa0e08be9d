// Package geometry holds the planar geometry operations the dashboard needs on
// top of go-geom: reprojection, simplification, buffering and WKT parsing.
package geometry

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"
)

// SRIDs for the two coordinate systems the dashboard works in.
const (
	SRIDGeographic = 4326
	SRIDPlanar     = 2263
)

// CoordFunc maps one x/y pair to another.
type CoordFunc func(x, y float64) (float64, float64)

// Transform returns a copy of g with every coordinate passed through f and
// the result tagged with srid. Coordinates beyond x/y are copied unchanged.
func Transform(g geom.T, f CoordFunc, srid int) (geom.T, error) {
	if g == nil {
		return nil, nil
	}

	if gc, ok := g.(*geom.GeometryCollection); ok {
		out := geom.NewGeometryCollection()
		for _, child := range gc.Geoms() {
			tc, err := Transform(child, f, srid)
			if err != nil {
				return nil, err
			}
			if err := out.Push(tc); err != nil {
				return nil, eris.Wrap(err, "geometry: push collection member")
			}
		}
		return out.SetSRID(srid), nil
	}

	flat := mapFlat(g.FlatCoords(), g.Stride(), f)

	switch t := g.(type) {
	case *geom.Point:
		if t.Empty() {
			return geom.NewPointEmpty(t.Layout()).SetSRID(srid), nil
		}
		return geom.NewPointFlat(t.Layout(), flat).SetSRID(srid), nil
	case *geom.MultiPoint:
		return geom.NewMultiPointFlat(t.Layout(), flat).SetSRID(srid), nil
	case *geom.LineString:
		return geom.NewLineStringFlat(t.Layout(), flat).SetSRID(srid), nil
	case *geom.MultiLineString:
		return geom.NewMultiLineStringFlat(t.Layout(), flat, copyEnds(t.Ends())).SetSRID(srid), nil
	case *geom.Polygon:
		return geom.NewPolygonFlat(t.Layout(), flat, copyEnds(t.Ends())).SetSRID(srid), nil
	case *geom.MultiPolygon:
		return geom.NewMultiPolygonFlat(t.Layout(), flat, copyEndss(t.Endss())).SetSRID(srid), nil
	default:
		return nil, eris.Errorf("geometry: unsupported type %T", g)
	}
}

// ParseWKT decodes a well-known text geometry and tags it with srid.
func ParseWKT(s string, srid int) (geom.T, error) {
	g, err := wkt.Unmarshal(s)
	if err != nil {
		return nil, eris.Wrap(err, "geometry: parse WKT")
	}
	return withSRID(g, srid), nil
}

// NumCoords returns the number of vertices in g.
func NumCoords(g geom.T) int {
	if g == nil {
		return 0
	}
	if gc, ok := g.(*geom.GeometryCollection); ok {
		var n int
		for _, child := range gc.Geoms() {
			n += NumCoords(child)
		}
		return n
	}
	if g.Stride() == 0 {
		return 0
	}
	return len(g.FlatCoords()) / g.Stride()
}

func mapFlat(in []float64, stride int, f CoordFunc) []float64 {
	out := make([]float64, len(in))
	copy(out, in)
	if stride < 2 {
		return out
	}
	for i := 0; i+1 < len(out); i += stride {
		out[i], out[i+1] = f(out[i], out[i+1])
	}
	return out
}

func withSRID(g geom.T, srid int) geom.T {
	switch t := g.(type) {
	case *geom.Point:
		return t.SetSRID(srid)
	case *geom.MultiPoint:
		return t.SetSRID(srid)
	case *geom.LineString:
		return t.SetSRID(srid)
	case *geom.MultiLineString:
		return t.SetSRID(srid)
	case *geom.Polygon:
		return t.SetSRID(srid)
	case *geom.MultiPolygon:
		return t.SetSRID(srid)
	case *geom.GeometryCollection:
		return t.SetSRID(srid)
	}
	return g
}

func copyEnds(ends []int) []int {
	out := make([]int, len(ends))
	copy(out, ends)
	return out
}

func copyEndss(endss [][]int) [][]int {
	out := make([][]int, len(endss))
	for i, ends := range endss {
		out[i] = copyEnds(ends)
	}
	return out
}
