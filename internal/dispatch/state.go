package dispatch

// State describes where a session is in the nearest-facility routing flow.
type State int

const (
	// NoNearestSelected means no facility has been chosen yet, either because the
	// observer location is unknown or because there are no candidates.
	NoNearestSelected State = iota
	// RouteFetchPending means a facility is selected and its route is being fetched.
	RouteFetchPending
	// RouteFetchFailed means the last route fetch failed; the selection is kept.
	RouteFetchFailed
	// RouteReady means the route to the selected facility is available.
	RouteReady
)

func (s State) String() string {
	switch s {
	case NoNearestSelected:
		return "no_nearest_selected"
	case RouteFetchPending:
		return "route_fetch_pending"
	case RouteFetchFailed:
		return "route_fetch_failed"
	case RouteReady:
		return "route_ready"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
