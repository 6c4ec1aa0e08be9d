package model

import "strings"

// Boroughs are the five New York City boroughs. Boundary layers never carry
// a borough outside this list.
var Boroughs = []string{"Manhattan", "Queens", "Brooklyn", "Bronx", "Staten Island"}

// IsBorough reports whether name is one of Boroughs, ignoring case.
func IsBorough(name string) bool {
	for _, b := range Boroughs {
		if strings.EqualFold(strings.TrimSpace(name), b) {
			return true
		}
	}
	return false
}
