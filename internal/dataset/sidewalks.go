package dataset

import (
	"context"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/IRL-CT/robotability/internal/fetcher"
	"github.com/IRL-CT/robotability/internal/geometry"
)

// Sidewalk is one scored sidewalk geometry in planar coordinates.
// Score is normalized to [0,1].
type Sidewalk struct {
	Geometry geom.T
	Score    float64
}

// Sidewalk CSV columns.
const (
	ColumnGeometry = "geometry"
	ColumnScore    = "score"
)

// LoadSidewalksFile opens path and loads it with LoadSidewalks.
func LoadSidewalksFile(ctx context.Context, path string, tolerance float64) ([]Sidewalk, Range, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Range{}, eris.Wrapf(err, "dataset: open sidewalks %s", path)
	}
	defer f.Close() //nolint:errcheck

	return LoadSidewalks(ctx, f, tolerance)
}

// LoadSidewalks parses a sidewalk score CSV with WKT geometries in the planar
// CRS, simplifies each geometry at tolerance, and normalizes scores over the
// full file.
func LoadSidewalks(ctx context.Context, r io.Reader, tolerance float64) ([]Sidewalk, Range, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rowCh, errCh := fetcher.StreamCSV(ctx, r, fetcher.CSVOptions{
		Columns: []string{ColumnGeometry, ColumnScore},
	})

	var (
		sidewalks []Sidewalk
		scores    []float64
		parseErr  error
	)
	row := 1
	for rec := range rowCh {
		row++
		if parseErr != nil {
			cancel()
			continue
		}

		g, err := geometry.ParseWKT(rec[0], geometry.SRIDPlanar)
		if err != nil {
			parseErr = eris.Wrapf(err, "dataset: sidewalk row %d", row)
			continue
		}
		g, err = geometry.Simplify(g, tolerance)
		if err != nil {
			parseErr = eris.Wrapf(err, "dataset: simplify sidewalk row %d", row)
			continue
		}
		score, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if err != nil {
			parseErr = eris.Wrapf(err, "dataset: sidewalk row %d score %q", row, rec[1])
			continue
		}
		if math.IsNaN(score) || math.IsInf(score, 0) {
			parseErr = eris.Errorf("dataset: sidewalk row %d score %q is not finite", row, rec[1])
			continue
		}

		sidewalks = append(sidewalks, Sidewalk{Geometry: g})
		scores = append(scores, score)
	}
	var readErr error
	for err := range errCh {
		if err != nil {
			readErr = err
		}
	}
	if parseErr != nil {
		return nil, Range{}, parseErr
	}
	if readErr != nil {
		return nil, Range{}, eris.Wrap(readErr, "dataset: read sidewalks")
	}

	span, err := Normalize(scores)
	if err != nil {
		return nil, span, err
	}
	for i := range sidewalks {
		sidewalks[i].Score = scores[i]
	}
	return sidewalks, span, nil
}
