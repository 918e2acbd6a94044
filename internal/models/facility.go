package models

// Facility is a named point of interest, such as a hospital, with a fixed location.
type Facility struct {
	Name     string     `json:"name" yaml:"name"`         // Name is the display label of the facility.
	Location Coordinate `json:"location" yaml:"location"` // Location is where the facility is.
}

// RankedFacility pairs a facility with its great-circle distance from an observer.
type RankedFacility struct {
	Facility   Facility `json:"facility" yaml:"facility"`
	DistanceKm float64  `json:"distance_km" yaml:"distance_km"`
}
