// Package beacon builds the stacked-ring "dome" drawn over each deployment
// site in the 3D map view.
package beacon

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/IRL-CT/robotability/internal/geometry"
	"github.com/IRL-CT/robotability/internal/model"
	"github.com/IRL-CT/robotability/internal/projection"
)

// Defaults match the September 2024 dashboard. Radius and height are in
// planar CRS units (US survey feet).
const (
	DefaultRings    = 15
	DefaultRadius   = 400.0
	DefaultHeight   = 150.0
	DefaultSegments = 16
)

// Ring is one disc of a beacon. Radius is R·cos(θ) and may be negative;
// rings with a non-positive radius carry an empty polygon.
type Ring struct {
	Index   int
	Angle   float64
	Radius  float64
	Height  float64
	Polygon *geom.Polygon // geographic
}

// Config sizes the beacon dome.
type Config struct {
	Rings  int
	Radius float64
	Height float64
	// Segments is the number of boundary vertices per quarter circle.
	Segments int
}

// DefaultConfig returns the stock dome dimensions.
func DefaultConfig() Config {
	return Config{
		Rings:    DefaultRings,
		Radius:   DefaultRadius,
		Height:   DefaultHeight,
		Segments: DefaultSegments,
	}
}

// Generator turns deployment sites into beacon rings.
type Generator struct {
	proj *projection.Projector
	cfg  Config
}

// NewGenerator creates a generator. Zero config fields take defaults.
func NewGenerator(proj *projection.Projector, cfg Config) *Generator {
	def := DefaultConfig()
	if cfg.Rings <= 0 {
		cfg.Rings = def.Rings
	}
	if cfg.Radius <= 0 {
		cfg.Radius = def.Radius
	}
	if cfg.Height <= 0 {
		cfg.Height = def.Height
	}
	if cfg.Segments <= 0 {
		cfg.Segments = def.Segments
	}
	return &Generator{proj: proj, cfg: cfg}
}

// Angles returns n angles evenly spaced over [0, π], endpoints included.
func Angles(n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{0}
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Pi * float64(i) / float64(n-1)
	}
	return out
}

// Generate returns the rings for site in angle order. The order is the
// stacking order the renderer draws them in.
func (g *Generator) Generate(site model.Site) ([]Ring, error) {
	center := g.proj.Project(site.Coordinate)

	angles := Angles(g.cfg.Rings)
	rings := make([]Ring, 0, len(angles))
	for i, theta := range angles {
		radius := g.cfg.Radius * math.Cos(theta)
		disc := geometry.Disc(center.X, center.Y, radius, g.cfg.Segments, geometry.SRIDPlanar)

		geo, err := geometry.Transform(disc, g.proj.Inverse, geometry.SRIDGeographic)
		if err != nil {
			return nil, eris.Wrapf(err, "beacon: unproject ring %d for %s", i, site.Name)
		}

		rings = append(rings, Ring{
			Index:   i,
			Angle:   theta,
			Radius:  radius,
			Height:  g.cfg.Height * math.Sin(theta),
			Polygon: geo.(*geom.Polygon),
		})
	}
	return rings, nil
}

// Features returns one GeoJSON feature per ring per site, sites in table
// order and rings in angle order.
func (g *Generator) Features(sites model.Sites) ([]*geojson.Feature, error) {
	features := make([]*geojson.Feature, 0, len(sites)*g.cfg.Rings)
	for _, site := range sites {
		rings, err := g.Generate(site)
		if err != nil {
			return nil, err
		}
		for _, r := range rings {
			features = append(features, &geojson.Feature{
				Geometry: r.Polygon,
				Properties: map[string]any{
					"name":        site.Name,
					"description": site.Description(),
					"id":          site.ID,
					"height":      r.Height,
					"video":       site.Video,
				},
			})
		}
	}
	return features, nil
}
