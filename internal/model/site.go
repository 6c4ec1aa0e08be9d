package model

// CRS identifies a coordinate reference system by its EPSG code.
type CRS string

const (
	// CRSGeographic is WGS84 longitude/latitude in degrees.
	CRSGeographic CRS = "EPSG:4326"
	// CRSPlanar is NAD83 / New York Long Island (US survey feet).
	CRSPlanar CRS = "EPSG:2263"
)

// Coordinate is a geographic position in degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

// ProjectedPoint is a planar position tagged with the CRS it was projected into.
type ProjectedPoint struct {
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	CRS CRS     `json:"crs"`
}

// Site is a fixed robot deployment location shown on the map.
type Site struct {
	ID         int        `json:"id"`
	Name       string     `json:"name"`
	Coordinate Coordinate `json:"coordinate"`
	Video      string     `json:"video"`
}

// Description is the popup text shown for the site.
func (s Site) Description() string {
	return "Deployment location: " + s.Name
}

// Sites is the ordered deployment table. A site's ID is its index in this
// table and is used by the client to correlate clicks with popups.
type Sites []Site

// DefaultSites returns the September 2024 New York City deployments.
func DefaultSites() Sites {
	return NewSites([]Site{
		{Name: "Elmhurst, Queens", Coordinate: Coordinate{Latitude: 40.738536, Longitude: -73.887267}, Video: "elmhurst_deployment.mp4"},
		{Name: "Sutton Place, Manhattan", Coordinate: Coordinate{Latitude: 40.758890, Longitude: -73.958457}, Video: "sutton_place_deployment.mp4"},
		{Name: "Herald Square, Manhattan", Coordinate: Coordinate{Latitude: 40.748422, Longitude: -73.988275}, Video: "herald_square_deployment.mp4"},
		{Name: "Jackson Heights, Queens", Coordinate: Coordinate{Latitude: 40.747379, Longitude: -73.889690}, Video: "jackson_heights_deployment.mp4"},
	})
}

// NewSites assigns ordinal IDs in table order.
func NewSites(in []Site) Sites {
	out := make(Sites, len(in))
	for i, s := range in {
		s.ID = i
		out[i] = s
	}
	return out
}

// Lookup returns the site with the given name.
func (s Sites) Lookup(name string) (Site, bool) {
	for _, site := range s {
		if site.Name == name {
			return site, true
		}
	}
	return Site{}, false
}

// Names returns site names in table order.
func (s Sites) Names() []string {
	names := make([]string, len(s))
	for i, site := range s {
		names[i] = site.Name
	}
	return names
}
