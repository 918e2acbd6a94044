// Package locator ranks facilities by great-circle distance from an observer.
//
// All functions are pure and safe for concurrent use; the facility slices passed in
// are never modified.
package locator

import (
	"errors"
	"sort"

	"github.com/UnknownOlympus/asclepius/internal/models"
	"github.com/golang/geo/s2"
)

// EarthRadiusKm is the mean Earth radius used for all distance calculations.
//
// This is a spherical approximation; results can differ from ellipsoidal
// distances by up to roughly 0.5%.
const EarthRadiusKm = 6371.0

// ErrEmptyCandidateSet is returned when a lookup is attempted against no facilities.
var ErrEmptyCandidateSet = errors.New("facility candidate set is empty")

// Distance returns the haversine distance between a and b in kilometers.
func Distance(a, b models.Coordinate) float64 {
	p1 := s2.LatLngFromDegrees(a.Latitude, a.Longitude)
	p2 := s2.LatLngFromDegrees(b.Latitude, b.Longitude)

	return p1.Distance(p2).Radians() * EarthRadiusKm
}

// Nearest returns the facility closest to observer.
// When several facilities are equally close, the first one in input order wins.
func Nearest(observer models.Coordinate, facilities []models.Facility) (models.Facility, error) {
	if len(facilities) == 0 {
		return models.Facility{}, ErrEmptyCandidateSet
	}

	best := 0
	bestDistance := Distance(observer, facilities[0].Location)
	for i := 1; i < len(facilities); i++ {
		// strict comparison keeps the earliest facility on ties
		if d := Distance(observer, facilities[i].Location); d < bestDistance {
			best, bestDistance = i, d
		}
	}

	return facilities[best], nil
}

// Rank returns every facility paired with its distance from observer, closest first.
// Facilities at equal distance keep their input order.
func Rank(observer models.Coordinate, facilities []models.Facility) ([]models.RankedFacility, error) {
	if len(facilities) == 0 {
		return nil, ErrEmptyCandidateSet
	}

	ranked := make([]models.RankedFacility, 0, len(facilities))
	for _, facility := range facilities {
		ranked = append(ranked, models.RankedFacility{
			Facility:   facility,
			DistanceKm: Distance(observer, facility.Location),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].DistanceKm < ranked[j].DistanceKm
	})

	return ranked, nil
}

// Within returns the ranked facilities no farther than radiusKm from observer.
// The result may be empty when nothing lies inside the radius.
func Within(
	observer models.Coordinate,
	facilities []models.Facility,
	radiusKm float64,
) ([]models.RankedFacility, error) {
	ranked, err := Rank(observer, facilities)
	if err != nil {
		return nil, err
	}

	cut := sort.Search(len(ranked), func(i int) bool {
		return ranked[i].DistanceKm > radiusKm
	})

	return ranked[:cut], nil
}
