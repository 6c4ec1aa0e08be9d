// Package layers assembles the GeoJSON payload for the map's visible layers.
package layers

import (
	"strings"
)

// Layer is a payload key understood by the map client.
type Layer string

// Layers in client draw order.
const (
	Boundaries  Layer = "cbs"
	Sidewalks   Layer = "sidewalks"
	Deployments Layer = "deployments"
)

var labels = map[Layer]string{
	Sidewalks:   "Sidewalk Scores",
	Boundaries:  "Census Block Boundaries",
	Deployments: "Deployment Locations",
}

// All returns every layer in sidebar order.
func All() []Layer {
	return []Layer{Sidewalks, Boundaries, Deployments}
}

// Label is the checkbox text shown in the sidebar.
func (l Layer) Label() string { return labels[l] }

// Selection is the set of enabled layers.
type Selection map[Layer]struct{}

// DefaultSelection enables every layer, matching the initial sidebar state.
func DefaultSelection() Selection {
	return NewSelection(All()...)
}

// NewSelection builds a selection from layers.
func NewSelection(ls ...Layer) Selection {
	s := make(Selection, len(ls))
	for _, l := range ls {
		s[l] = struct{}{}
	}
	return s
}

// ParseSelection accepts sidebar labels or payload keys, ignoring case.
// Unknown names are skipped so newer clients can send layers this server
// does not know about.
func ParseSelection(names []string) Selection {
	s := make(Selection, len(names))
	for _, name := range names {
		if l, ok := Lookup(name); ok {
			s[l] = struct{}{}
		}
	}
	return s
}

// Lookup resolves a sidebar label or payload key to a layer.
func Lookup(name string) (Layer, bool) {
	name = strings.TrimSpace(name)
	for _, l := range All() {
		if strings.EqualFold(name, string(l)) || strings.EqualFold(name, l.Label()) {
			return l, true
		}
	}
	return "", false
}

// Has reports whether l is enabled.
func (s Selection) Has(l Layer) bool {
	_, ok := s[l]
	return ok
}

// Layers returns the enabled layers in sidebar order.
func (s Selection) Layers() []Layer {
	var out []Layer
	for _, l := range All() {
		if s.Has(l) {
			out = append(out, l)
		}
	}
	return out
}
