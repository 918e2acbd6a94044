package models

// Route is an ordered path of coordinates from an origin to a destination.
type Route struct {
	Points []Coordinate `json:"points" yaml:"points"`
}

// Len returns the number of waypoints in the route.
func (r Route) Len() int {
	return len(r.Points)
}

// Origin returns the first waypoint. ok is false for an empty route.
func (r Route) Origin() (Coordinate, bool) {
	if len(r.Points) == 0 {
		return Coordinate{}, false
	}

	return r.Points[0], true
}

// Destination returns the last waypoint. ok is false for an empty route.
func (r Route) Destination() (Coordinate, bool) {
	if len(r.Points) == 0 {
		return Coordinate{}, false
	}

	return r.Points[len(r.Points)-1], true
}
