package fetcher

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// ShapeRecord is one shapefile row: selected attributes plus its geometry.
type ShapeRecord struct {
	Attributes map[string]string
	Geometry   geom.T
}

// ShapefileOptions configures ReadShapefile.
type ShapefileOptions struct {
	// Fields lists the attributes to read (case-insensitive). All must exist.
	Fields []string
	// Keep filters rows on their attributes before geometry conversion.
	// Nil keeps every row.
	Keep func(attrs map[string]string) bool
	// SRID tags the returned geometries.
	SRID int
}

// ReadShapefile reads polygon and polyline records from a shapefile. Null
// and unsupported shapes are skipped.
func ReadShapefile(shpPath string, opts ShapefileOptions) ([]ShapeRecord, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "shapefile: open %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	// Build field name → index map.
	fieldIdx := make(map[string]int)
	for i, f := range reader.Fields() {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}
	for _, want := range opts.Fields {
		if _, ok := fieldIdx[strings.ToLower(want)]; !ok {
			return nil, eris.Errorf("shapefile: field %q not found in %s", want, shpPath)
		}
	}

	var records []ShapeRecord
	var seen, skipped, filtered int

	for reader.Next() {
		seen++
		_, shape := reader.Shape()

		attrs := make(map[string]string, len(opts.Fields))
		for _, name := range opts.Fields {
			val := reader.Attribute(fieldIdx[strings.ToLower(name)])
			attrs[name] = strings.TrimSpace(strings.TrimRight(val, "\x00"))
		}

		if opts.Keep != nil && !opts.Keep(attrs) {
			filtered++
			continue
		}

		g := ShapeToGeom(shape, opts.SRID)
		if g == nil {
			skipped++
			continue
		}
		records = append(records, ShapeRecord{Attributes: attrs, Geometry: g})
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "shapefile: read %s", shpPath)
	}
	// A .shp cut on a record boundary ends with a clean EOF; the attribute
	// table still knows how many records there should be.
	if want := reader.AttributeCount(); want > 0 && seen != want {
		return nil, eris.Errorf("shapefile: %s has %d shapes but %d attribute rows (truncated?)", shpPath, seen, want)
	}

	zap.L().Debug("shapefile: read records",
		zap.String("path", shpPath),
		zap.Int("records", len(records)),
		zap.Int("filtered", filtered),
		zap.Int("skipped", skipped),
	)

	return records, nil
}

// ShapeToGeom converts a go-shp shape to a go-geom geometry. Polygons become
// MultiPolygons; polylines become MultiLineStrings. Returns nil for null or
// unsupported shapes.
func ShapeToGeom(shape shp.Shape, srid int) geom.T {
	switch s := shape.(type) {
	case *shp.Polygon:
		if mp := polygonToMultiPolygon(s.NumParts, s.Parts, s.Points); mp != nil {
			return mp.SetSRID(srid)
		}
	case *shp.PolyLine:
		if mls := polyLineToMultiLineString(s); mls != nil {
			return mls.SetSRID(srid)
		}
	}
	return nil
}

// polygonToMultiPolygon groups shapefile rings into polygons. Shapefile outer
// rings run clockwise; counter-clockwise rings are holes of the preceding
// outer ring.
func polygonToMultiPolygon(numParts int32, parts []int32, points []shp.Point) *geom.MultiPolygon {
	if numParts == 0 || len(points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY)
	var current *geom.Polygon

	flush := func() {
		if current == nil {
			return
		}
		if err := mp.Push(current); err != nil {
			zap.L().Debug("shapefile: skipping malformed polygon part", zap.Error(err))
		}
		current = nil
	}

	for i := int32(0); i < numParts; i++ {
		flat := partFlat(i, numParts, parts, points)
		if len(flat) < 8 {
			continue
		}
		ring := geom.NewLinearRingFlat(geom.XY, flat)

		if signedArea(flat) <= 0 || current == nil {
			// Clockwise (or an orphan hole): start a new polygon.
			flush()
			current = geom.NewPolygon(geom.XY)
		}
		if err := current.Push(ring); err != nil {
			zap.L().Debug("shapefile: skipping malformed polygon ring", zap.Int32("part", i), zap.Error(err))
		}
	}
	flush()

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// polyLineToMultiLineString converts a shapefile PolyLine to a geom.MultiLineString.
func polyLineToMultiLineString(pl *shp.PolyLine) *geom.MultiLineString {
	if pl == nil || pl.NumParts == 0 || len(pl.Points) == 0 {
		return nil
	}

	mls := geom.NewMultiLineString(geom.XY)
	for i := int32(0); i < pl.NumParts; i++ {
		flat := partFlat(i, pl.NumParts, pl.Parts, pl.Points)
		if len(flat) < 4 {
			continue
		}
		if err := mls.Push(geom.NewLineStringFlat(geom.XY, flat)); err != nil {
			zap.L().Debug("shapefile: skipping malformed linestring part", zap.Int32("part", i), zap.Error(err))
		}
	}

	if mls.NumLineStrings() == 0 {
		return nil
	}
	return mls
}

func partFlat(i, numParts int32, parts []int32, points []shp.Point) []float64 {
	start := parts[i]
	end := int32(len(points))
	if i+1 < numParts {
		end = parts[i+1]
	}
	if start < 0 || end > int32(len(points)) || start >= end {
		return nil
	}

	flat := make([]float64, 0, (end-start)*2)
	for j := start; j < end; j++ {
		flat = append(flat, points[j].X, points[j].Y)
	}
	return flat
}

// signedArea is positive for counter-clockwise rings.
func signedArea(flat []float64) float64 {
	var sum float64
	for i := 0; i+3 < len(flat); i += 2 {
		sum += flat[i]*flat[i+3] - flat[i+2]*flat[i+1]
	}
	return sum / 2
}
