package dataset

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"golang.org/x/text/cases"

	"github.com/IRL-CT/robotability/internal/fetcher"
	"github.com/IRL-CT/robotability/internal/geometry"
	"github.com/IRL-CT/robotability/internal/model"
	"github.com/IRL-CT/robotability/internal/projection"
)

// Boundary is one census block polygon in planar coordinates.
type Boundary struct {
	Geometry geom.T
	Borough  string
}

// DefaultBoroughs is the full allow-list. BoundaryOptions.Boroughs may
// narrow it but never widen it.
var DefaultBoroughs = model.Boroughs

// DefaultBoroughField is the borough attribute in the 2020 census block file.
const DefaultBoroughField = "BoroName"

// BoundaryOptions configures LoadBoundaries.
type BoundaryOptions struct {
	// Field is the attribute holding the borough name.
	Field string
	// Boroughs narrows the allow-list; matching ignores case. Names outside
	// DefaultBoroughs are rejected.
	Boroughs []string
	// SourceCRS is the CRS the shapefile is stored in. Geographic input is
	// projected to the planar CRS before simplification.
	SourceCRS model.CRS
	Tolerance float64
}

// LoadBoundaries reads the boundary shapefile, keeps allow-listed boroughs,
// projects to the planar CRS if needed, and simplifies. path may also name a
// ZIP archive holding the shapefile, as the census block files are published.
func LoadBoundaries(path string, proj *projection.Projector, opts BoundaryOptions) ([]Boundary, error) {
	if opts.Field == "" {
		opts.Field = DefaultBoroughField
	}
	if opts.Boroughs == nil {
		opts.Boroughs = DefaultBoroughs
	}
	for _, b := range opts.Boroughs {
		if !model.IsBorough(b) {
			return nil, eris.Errorf("dataset: %q is not a New York City borough", b)
		}
	}
	if opts.SourceCRS == "" {
		opts.SourceCRS = model.CRSPlanar
	}

	var sourceSRID int
	switch opts.SourceCRS {
	case model.CRSPlanar:
		sourceSRID = geometry.SRIDPlanar
	case model.CRSGeographic:
		sourceSRID = geometry.SRIDGeographic
	default:
		return nil, eris.Errorf("dataset: unsupported boundary CRS %q", opts.SourceCRS)
	}

	if fetcher.IsZIP(path) {
		dir, err := os.MkdirTemp("", "robotability-boundaries-*")
		if err != nil {
			return nil, eris.Wrap(err, "dataset: create extract dir")
		}
		defer os.RemoveAll(dir) //nolint:errcheck

		if path, err = fetcher.ExtractShapefile(path, dir); err != nil {
			return nil, eris.Wrap(err, "dataset: extract boundaries")
		}
	}

	allowed := NewBoroughFilter(opts.Boroughs)
	records, err := fetcher.ReadShapefile(path, fetcher.ShapefileOptions{
		Fields: []string{opts.Field},
		Keep: func(attrs map[string]string) bool {
			return allowed.Allows(attrs[opts.Field])
		},
		SRID: sourceSRID,
	})
	if err != nil {
		return nil, eris.Wrap(err, "dataset: read boundaries")
	}

	boundaries := make([]Boundary, 0, len(records))
	for i, rec := range records {
		g := rec.Geometry
		if sourceSRID == geometry.SRIDGeographic {
			g, err = geometry.Transform(g, proj.Forward, geometry.SRIDPlanar)
			if err != nil {
				return nil, eris.Wrapf(err, "dataset: project boundary %d", i)
			}
		}
		g, err = geometry.Simplify(g, opts.Tolerance)
		if err != nil {
			return nil, eris.Wrapf(err, "dataset: simplify boundary %d", i)
		}
		boundaries = append(boundaries, Boundary{Geometry: g, Borough: allowed.Canonical(rec.Attributes[opts.Field])})
	}
	return boundaries, nil
}

// BoroughFilter matches borough names against an allow-list ignoring case.
type BoroughFilter struct {
	canonical map[string]string
	fold      cases.Caser
}

// NewBoroughFilter builds a filter over names.
func NewBoroughFilter(names []string) *BoroughFilter {
	f := &BoroughFilter{
		canonical: make(map[string]string, len(names)),
		fold:      cases.Fold(),
	}
	for _, n := range names {
		f.canonical[f.fold.String(n)] = n
	}
	return f
}

// Allows reports whether name is on the allow-list.
func (f *BoroughFilter) Allows(name string) bool {
	_, ok := f.canonical[f.fold.String(name)]
	return ok
}

// Canonical returns the allow-list spelling of name, or name unchanged.
func (f *BoroughFilter) Canonical(name string) string {
	if c, ok := f.canonical[f.fold.String(name)]; ok {
		return c
	}
	return name
}
