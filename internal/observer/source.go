// Package observer provides the current location of the caller (the observer)
// from a fixed coordinate or a stream of NMEA sentences from a GPS receiver.
package observer

import (
	"context"
	"errors"
	"sync"

	"github.com/UnknownOlympus/asclepius/internal/models"
)

// ErrNotYetKnown is returned while no location fix has been received.
var ErrNotYetKnown = errors.New("observer location not yet known")

// Source reports the most recent known location of the observer.
type Source interface {
	Current(ctx context.Context) (models.Coordinate, error)
}

// Static is a Source whose location is set explicitly, for example from an
// API request or a command-line flag.
type Static struct {
	mu       sync.RWMutex
	location *models.Coordinate
}

// NewStatic returns a Static source. A nil location starts it as not yet known.
func NewStatic(location *models.Coordinate) *Static {
	s := &Static{}
	if location != nil {
		loc := *location
		s.location = &loc
	}

	return s
}

// Set replaces the current location after validating it.
func (s *Static) Set(location models.Coordinate) error {
	if err := location.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	s.location = &location
	s.mu.Unlock()

	return nil
}

func (s *Static) Current(_ context.Context) (models.Coordinate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.location == nil {
		return models.Coordinate{}, ErrNotYetKnown
	}

	return *s.location, nil
}

var _ Source = (*Static)(nil)
