package layers

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/IRL-CT/robotability/internal/dataset"
	"github.com/IRL-CT/robotability/internal/geometry"
	"github.com/IRL-CT/robotability/internal/model"
	"github.com/IRL-CT/robotability/internal/projection"
)

// Payload is the data half of an updateLayers message. A nil field means the
// layer is off and is omitted from the JSON entirely; an empty collection
// means the layer is on but has no features.
type Payload struct {
	Sidewalks   *geojson.FeatureCollection `json:"sidewalks,omitempty"`
	Boundaries  *geojson.FeatureCollection `json:"cbs,omitempty"`
	Deployments *geojson.FeatureCollection `json:"deployments,omitempty"`
}

// Layers returns the layers present in the payload, in sidebar order.
func (p *Payload) Layers() []Layer {
	var out []Layer
	if p.Sidewalks != nil {
		out = append(out, Sidewalks)
	}
	if p.Boundaries != nil {
		out = append(out, Boundaries)
	}
	if p.Deployments != nil {
		out = append(out, Deployments)
	}
	return out
}

// FeatureCount is the total number of features across present layers.
func (p *Payload) FeatureCount() int {
	var n int
	for _, fc := range []*geojson.FeatureCollection{p.Sidewalks, p.Boundaries, p.Deployments} {
		if fc != nil {
			n += len(fc.Features)
		}
	}
	return n
}

// Composer builds payloads from a loaded dataset.
type Composer struct {
	proj *projection.Projector
}

// NewComposer returns a composer that unprojects with proj.
func NewComposer(proj *projection.Projector) *Composer {
	return &Composer{proj: proj}
}

// Compose builds a fresh payload holding only the selected layers. Planar
// layers are converted to geographic coordinates on every call; data is not
// modified.
func (c *Composer) Compose(data *dataset.Data, sel Selection) (*Payload, error) {
	if data == nil {
		return nil, eris.New("layers: dataset not loaded")
	}

	p := &Payload{}

	if sel.Has(Sidewalks) {
		features := make([]*geojson.Feature, 0, len(data.Sidewalks))
		for i, s := range data.Sidewalks {
			g, err := geometry.Transform(s.Geometry, c.proj.Inverse, geometry.SRIDGeographic)
			if err != nil {
				return nil, eris.Wrapf(err, "layers: unproject sidewalk %d", i)
			}
			features = append(features, &geojson.Feature{
				Geometry:   g,
				Properties: map[string]any{"score": s.Score, "color": model.ColorFor(s.Score)},
			})
		}
		p.Sidewalks = &geojson.FeatureCollection{Features: features}
	}

	if sel.Has(Boundaries) {
		features := make([]*geojson.Feature, 0, len(data.Boundaries))
		for i, b := range data.Boundaries {
			g, err := geometry.Transform(b.Geometry, c.proj.Inverse, geometry.SRIDGeographic)
			if err != nil {
				return nil, eris.Wrapf(err, "layers: unproject boundary %d", i)
			}
			features = append(features, &geojson.Feature{
				Geometry:   g,
				Properties: map[string]any{dataset.DefaultBoroughField: b.Borough},
			})
		}
		p.Boundaries = &geojson.FeatureCollection{Features: features}
	}

	if sel.Has(Deployments) {
		features := data.Deployments
		if features == nil {
			features = []*geojson.Feature{}
		}
		p.Deployments = &geojson.FeatureCollection{Features: features}
	}

	return p, nil
}
