// Package dataset loads the dashboard's input files into an in-memory,
// read-only dataset owned by one session.
package dataset

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/IRL-CT/robotability/internal/beacon"
	"github.com/IRL-CT/robotability/internal/model"
	"github.com/IRL-CT/robotability/internal/projection"
)

// Data is a fully loaded dataset. Sidewalks and boundaries are in the planar
// CRS; deployments are already geographic. Data is never mutated after load.
type Data struct {
	Sidewalks   []Sidewalk
	Boundaries  []Boundary
	Deployments []*geojson.Feature
	ScoreRange  Range
	LoadTime    time.Duration
}

// Sources locates and configures the input files.
type Sources struct {
	SidewalksPath     string
	SidewalkTolerance float64
	BoundariesPath    string
	Boundary          BoundaryOptions
}

// Loader produces a Data.
type Loader func(ctx context.Context) (*Data, error)

// Dataset guards a single load of Data for one session.
type Dataset struct {
	load Loader

	mu   sync.Mutex
	data *Data
}

// New returns a dataset that loads from files on first use.
func New(src Sources, proj *projection.Projector, gen *beacon.Generator, sites model.Sites) *Dataset {
	return WithLoader(FileLoader(src, proj, gen, sites))
}

// WithLoader returns a dataset backed by a custom loader.
func WithLoader(load Loader) *Dataset {
	return &Dataset{load: load}
}

// EnsureLoaded returns the session's data, loading it on the first call.
// After a successful load later calls return the same Data without touching
// the input files. A failed load is not cached.
func (d *Dataset) EnsureLoaded(ctx context.Context) (*Data, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.data != nil {
		return d.data, nil
	}

	data, err := d.load(ctx)
	if err != nil {
		return nil, err
	}
	d.data = data
	return data, nil
}

// Loaded reports whether EnsureLoaded has succeeded.
func (d *Dataset) Loaded() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.data != nil
}

// FileLoader reads sidewalks and boundaries concurrently and builds the
// deployment beacons.
func FileLoader(src Sources, proj *projection.Projector, gen *beacon.Generator, sites model.Sites) Loader {
	return func(ctx context.Context) (*Data, error) {
		start := time.Now()
		data := &Data{}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			sidewalks, span, err := LoadSidewalksFile(gctx, src.SidewalksPath, src.SidewalkTolerance)
			if err != nil {
				return err
			}
			data.Sidewalks, data.ScoreRange = sidewalks, span
			return nil
		})
		g.Go(func() error {
			boundaries, err := LoadBoundaries(src.BoundariesPath, proj, src.Boundary)
			if err != nil {
				return err
			}
			data.Boundaries = boundaries
			return nil
		})
		g.Go(func() error {
			features, err := gen.Features(sites)
			if err != nil {
				return eris.Wrap(err, "dataset: build deployment beacons")
			}
			data.Deployments = features
			return nil
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}

		data.LoadTime = time.Since(start)
		zap.L().Info("dataset loaded",
			zap.Int("sidewalks", len(data.Sidewalks)),
			zap.Int("boundaries", len(data.Boundaries)),
			zap.Int("deployment_rings", len(data.Deployments)),
			zap.Float64("score_min", data.ScoreRange.Min),
			zap.Float64("score_max", data.ScoreRange.Max),
			zap.Duration("elapsed", data.LoadTime),
		)
		return data, nil
	}
}
