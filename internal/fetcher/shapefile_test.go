package fetcher

import (
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func TestReadShapefile_AttributesAndGeometry(t *testing.T) {
	path := writeTestShapefile(t, []testFeature{
		{borough: "Queens", rings: [][]shp.Point{square(0, 0, 10)}},
		{borough: "Manhattan", rings: [][]shp.Point{square(20, 0, 10)}},
	})

	records, err := ReadShapefile(path, ShapefileOptions{Fields: []string{"BoroName"}, SRID: 2263})
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "Queens", records[0].Attributes["BoroName"])
	assert.Equal(t, "Manhattan", records[1].Attributes["BoroName"])

	mp, ok := records[0].Geometry.(*geom.MultiPolygon)
	require.True(t, ok)
	assert.Equal(t, 1, mp.NumPolygons())
	assert.Equal(t, 2263, mp.SRID())
}

func TestReadShapefile_Keep(t *testing.T) {
	path := writeTestShapefile(t, []testFeature{
		{borough: "Queens", rings: [][]shp.Point{square(0, 0, 10)}},
		{borough: "Nassau", rings: [][]shp.Point{square(20, 0, 10)}},
	})

	records, err := ReadShapefile(path, ShapefileOptions{
		Fields: []string{"boroname"},
		Keep:   func(attrs map[string]string) bool { return attrs["boroname"] == "Queens" },
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Queens", records[0].Attributes["boroname"])
}

func fourBlocks() []testFeature {
	return []testFeature{
		{borough: "Queens", rings: [][]shp.Point{square(0, 0, 10)}},
		{borough: "Bronx", rings: [][]shp.Point{square(20, 0, 10)}},
		{borough: "Nassau", rings: [][]shp.Point{square(40, 0, 10)}},
		{borough: "Brooklyn", rings: [][]shp.Point{square(60, 0, 10)}},
	}
}

func TestReadShapefile_TruncatedMidRecord(t *testing.T) {
	path := writeTestShapefile(t, fourBlocks())
	truncate(t, path, 40)

	records, err := ReadShapefile(path, ShapefileOptions{Fields: []string{"BoroName"}})
	require.Error(t, err)
	assert.Nil(t, records)
	assert.Contains(t, err.Error(), path)
}

func TestReadShapefile_TruncatedOnRecordBoundary(t *testing.T) {
	path := writeTestShapefile(t, fourBlocks())
	// One square polygon record: 8 byte header + 128 byte body.
	truncate(t, path, 136)

	records, err := ReadShapefile(path, ShapefileOptions{Fields: []string{"BoroName"}})
	require.Error(t, err)
	assert.Nil(t, records)
	assert.Contains(t, err.Error(), "3 shapes but 4 attribute rows")
}

func TestReadShapefile_MissingField(t *testing.T) {
	path := writeTestShapefile(t, []testFeature{
		{borough: "Queens", rings: [][]shp.Point{square(0, 0, 10)}},
	})

	_, err := ReadShapefile(path, ShapefileOptions{Fields: []string{"BoroCode"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BoroCode")
}

func TestReadShapefile_MissingFile(t *testing.T) {
	_, err := ReadShapefile(filepath.Join(t.TempDir(), "nope.shp"), ShapefileOptions{})
	assert.Error(t, err)
}

func TestShapeToGeom_HoleJoinsOuterRing(t *testing.T) {
	outer := square(0, 0, 10)
	hole := reversed(square(2, 2, 2))
	pl := shp.NewPolyLine([][]shp.Point{outer, hole, square(50, 50, 5)})
	poly := shp.Polygon(*pl)

	g := ShapeToGeom(&poly, 2263)
	mp, ok := g.(*geom.MultiPolygon)
	require.True(t, ok)
	require.Equal(t, 2, mp.NumPolygons())
	assert.Equal(t, 2, mp.Polygon(0).NumLinearRings())
	assert.Equal(t, 1, mp.Polygon(1).NumLinearRings())
}

func TestShapeToGeom_PolyLine(t *testing.T) {
	pl := shp.NewPolyLine([][]shp.Point{
		{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 0}},
		{{X: 5, Y: 5}, {X: 6, Y: 6}},
	})

	g := ShapeToGeom(pl, 2263)
	mls, ok := g.(*geom.MultiLineString)
	require.True(t, ok)
	assert.Equal(t, 2, mls.NumLineStrings())
}

func TestShapeToGeom_Unsupported(t *testing.T) {
	assert.Nil(t, ShapeToGeom(&shp.Point{X: 1, Y: 2}, 2263))
	assert.Nil(t, ShapeToGeom(nil, 2263))
	assert.Nil(t, ShapeToGeom(&shp.Polygon{}, 2263))
}

func TestSignedArea(t *testing.T) {
	cw := []float64{0, 0, 0, 1, 1, 1, 1, 0, 0, 0}
	assert.InDelta(t, -1.0, signedArea(cw), 1e-12)

	ccw := []float64{0, 0, 1, 0, 1, 1, 0, 1, 0, 0}
	assert.InDelta(t, 1.0, signedArea(ccw), 1e-12)
}
