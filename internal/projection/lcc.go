// Package projection converts between geographic coordinates and the New York
// Long Island state plane used for distance and area work.
package projection

import (
	"math"

	"github.com/IRL-CT/robotability/internal/model"
)

// GRS80 ellipsoid.
const (
	semiMajor     = 6378137.0
	invFlattening = 298.257222101
)

// usSurveyFoot is one US survey foot in meters.
const usSurveyFoot = 1200.0 / 3937.0

// LambertParams defines a two-standard-parallel Lambert Conformal Conic.
// Angles are in degrees; false easting and northing are in meters.
type LambertParams struct {
	Parallel1       float64
	Parallel2       float64
	OriginLat       float64
	CentralMeridian float64
	FalseEasting    float64
	FalseNorthing   float64
	// UnitMeters is the length of one output unit in meters.
	UnitMeters float64
}

// LongIsland is EPSG:2263, NAD83 / New York Long Island (ftUS).
var LongIsland = LambertParams{
	Parallel1:       41.0 + 2.0/60.0,
	Parallel2:       40.0 + 40.0/60.0,
	OriginLat:       40.0 + 10.0/60.0,
	CentralMeridian: -74.0,
	FalseEasting:    300000.0,
	FalseNorthing:   0,
	UnitMeters:      usSurveyFoot,
}

// Projector converts between EPSG:4326 and a Lambert Conformal Conic plane.
// It is immutable after construction and safe for concurrent use.
type Projector struct {
	crs    model.CRS
	e      float64
	n      float64
	aF     float64
	rho0   float64
	lon0   float64
	x0, y0 float64
	unit   float64
}

// NewLongIsland returns the EPSG:2263 projector.
func NewLongIsland() *Projector {
	return NewLambert(model.CRSPlanar, LongIsland)
}

// NewLambert precomputes the cone constants for p.
func NewLambert(crs model.CRS, p LambertParams) *Projector {
	f := 1 / invFlattening
	e := math.Sqrt(2*f - f*f)

	phi1 := radians(p.Parallel1)
	phi2 := radians(p.Parallel2)
	phi0 := radians(p.OriginLat)

	m1 := msfn(e, phi1)
	m2 := msfn(e, phi2)
	t1 := tsfn(e, phi1)
	t2 := tsfn(e, phi2)
	t0 := tsfn(e, phi0)

	var n float64
	if math.Abs(phi1-phi2) < 1e-12 {
		n = math.Sin(phi1)
	} else {
		n = (math.Log(m1) - math.Log(m2)) / (math.Log(t1) - math.Log(t2))
	}
	aF := semiMajor * m1 / (n * math.Pow(t1, n))

	unit := p.UnitMeters
	if unit == 0 {
		unit = 1
	}

	return &Projector{
		crs:  crs,
		e:    e,
		n:    n,
		aF:   aF,
		rho0: aF * math.Pow(t0, n),
		lon0: radians(p.CentralMeridian),
		x0:   p.FalseEasting,
		y0:   p.FalseNorthing,
		unit: unit,
	}
}

// CRS returns the planar CRS this projector targets.
func (p *Projector) CRS() model.CRS { return p.crs }

// Forward projects longitude/latitude degrees to planar x/y.
func (p *Projector) Forward(lon, lat float64) (x, y float64) {
	rho := p.aF * math.Pow(tsfn(p.e, radians(lat)), p.n)
	theta := p.n * (radians(lon) - p.lon0)
	x = (rho*math.Sin(theta) + p.x0) / p.unit
	y = (p.rho0 - rho*math.Cos(theta) + p.y0) / p.unit
	return x, y
}

// Inverse converts planar x/y back to longitude/latitude degrees.
func (p *Projector) Inverse(x, y float64) (lon, lat float64) {
	dx := x*p.unit - p.x0
	dy := p.rho0 - (y*p.unit - p.y0)

	rho := math.Hypot(dx, dy)
	if p.n < 0 {
		rho = -rho
		dx, dy = -dx, -dy
	}
	theta := math.Atan2(dx, dy)

	t := math.Pow(rho/p.aF, 1/p.n)
	phi := math.Pi/2 - 2*math.Atan(t)
	for i := 0; i < 15; i++ {
		es := p.e * math.Sin(phi)
		next := math.Pi/2 - 2*math.Atan(t*math.Pow((1-es)/(1+es), p.e/2))
		if math.Abs(next-phi) < 1e-12 {
			phi = next
			break
		}
		phi = next
	}

	return degrees(theta/p.n + p.lon0), degrees(phi)
}

// Project converts a geographic coordinate to a CRS-tagged planar point.
func (p *Projector) Project(c model.Coordinate) model.ProjectedPoint {
	x, y := p.Forward(c.Longitude, c.Latitude)
	return model.ProjectedPoint{X: x, Y: y, CRS: p.crs}
}

// Unproject converts a planar point back to a geographic coordinate.
func (p *Projector) Unproject(pt model.ProjectedPoint) model.Coordinate {
	lon, lat := p.Inverse(pt.X, pt.Y)
	return model.Coordinate{Latitude: lat, Longitude: lon}
}

func msfn(e, phi float64) float64 {
	s := math.Sin(phi)
	return math.Cos(phi) / math.Sqrt(1-e*e*s*s)
}

func tsfn(e, phi float64) float64 {
	s := math.Sin(phi)
	return math.Tan(math.Pi/4-phi/2) / math.Pow((1-e*s)/(1+e*s), e/2)
}

func radians(d float64) float64 { return d * math.Pi / 180 }
func degrees(r float64) float64 { return r * 180 / math.Pi }
