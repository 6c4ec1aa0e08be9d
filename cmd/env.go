package main

import (
	"github.com/IRL-CT/robotability/internal/beacon"
	"github.com/IRL-CT/robotability/internal/config"
	"github.com/IRL-CT/robotability/internal/dataset"
	"github.com/IRL-CT/robotability/internal/layers"
	"github.com/IRL-CT/robotability/internal/model"
	"github.com/IRL-CT/robotability/internal/projection"
)

// appEnv holds the shared, read-only components every command builds on.
type appEnv struct {
	Proj     *projection.Projector
	Sites    model.Sites
	Beacons  *beacon.Generator
	Composer *layers.Composer
	Sources  dataset.Sources
}

func newAppEnv(c *config.Config) *appEnv {
	proj := projection.NewLongIsland()
	return &appEnv{
		Proj:  proj,
		Sites: model.DefaultSites(),
		Beacons: beacon.NewGenerator(proj, beacon.Config{
			Rings:    c.Beacon.Rings,
			Radius:   c.Beacon.Radius,
			Height:   c.Beacon.Height,
			Segments: c.Beacon.Segments,
		}),
		Composer: layers.NewComposer(proj),
		Sources: dataset.Sources{
			SidewalksPath:     c.Data.SidewalksPath,
			SidewalkTolerance: c.Data.SidewalkTolerance,
			BoundariesPath:    c.Data.BoundariesPath,
			Boundary: dataset.BoundaryOptions{
				Field:     c.Data.BoroughField,
				Boroughs:  c.Data.Boroughs,
				SourceCRS: model.CRS(c.Data.BoundariesCRS),
				Tolerance: c.Data.BoundaryTolerance,
			},
		},
	}
}

// newDataset returns an unloaded dataset; each session owns one.
func (e *appEnv) newDataset() *dataset.Dataset {
	return dataset.New(e.Sources, e.Proj, e.Beacons, e.Sites)
}
