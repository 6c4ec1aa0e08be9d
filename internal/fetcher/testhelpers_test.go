package fetcher

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/require"
)

type testFeature struct {
	borough string
	rings   [][]shp.Point
}

// writeTestShapefile writes polygon features with a BoroName attribute.
func writeTestShapefile(t *testing.T, features []testFeature) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blocks.shp")

	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)

	require.NoError(t, w.SetFields([]shp.Field{
		shp.StringField("BoroName", 32),
		shp.StringField("BCTCB2020", 16),
	}))

	for i, f := range features {
		poly := shp.Polygon(*shp.NewPolyLine(f.rings))
		row := w.Write(&poly)
		require.NoError(t, w.WriteAttribute(int(row), 0, f.borough))
		require.NoError(t, w.WriteAttribute(int(row), 1, strconv.Itoa(i)))
	}
	closeShapefile(t, w, path)
	return path
}

// closeShapefile closes w and moves the attribute table next to the .shp.
// go-shp's Create drops the extension dot, so SetFields writes "<base>dbf".
func closeShapefile(t *testing.T, w *shp.Writer, shpPath string) {
	t.Helper()
	w.Close()

	base := strings.TrimSuffix(shpPath, ".shp")
	if _, err := os.Stat(base + "dbf"); err == nil {
		require.NoError(t, os.Rename(base+"dbf", base+".dbf"))
	}
	_, err := os.Stat(base + ".dbf")
	require.NoError(t, err, "attribute table missing")
}

// truncate shortens a file by n bytes.
func truncate(t *testing.T, path string, n int64) {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, info.Size()-n))
}

// square returns a closed clockwise ring.
func square(x, y, size float64) []shp.Point {
	return []shp.Point{
		{X: x, Y: y},
		{X: x, Y: y + size},
		{X: x + size, Y: y + size},
		{X: x + size, Y: y},
		{X: x, Y: y},
	}
}

// reversed returns the ring with opposite orientation.
func reversed(ring []shp.Point) []shp.Point {
	out := make([]shp.Point, len(ring))
	for i, p := range ring {
		out[len(ring)-1-i] = p
	}
	return out
}
