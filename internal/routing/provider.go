package routing

import (
	"context"

	"github.com/UnknownOlympus/asclepius/internal/models"
)

// Provider is an interface that defines a method for retrieving a driving route.
// The Route method takes a context, an origin and a destination, and returns the
// ordered waypoints between them or one of the routing errors.
type Provider interface {
	Route(ctx context.Context, origin, destination models.Coordinate) (models.Route, error)
}
