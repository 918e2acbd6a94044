package models

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidCoordinate is returned when a latitude or longitude falls outside its valid range.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// Coordinate represents a geographical point defined by its latitude and longitude in decimal degrees.
type Coordinate struct {
	Latitude  float64 `json:"lat" yaml:"lat"` // Latitude of the geographical point.
	Longitude float64 `json:"lon" yaml:"lon"` // Longitude of the geographical point.
}

// NewCoordinate builds a Coordinate and validates its range.
func NewCoordinate(lat, lon float64) (Coordinate, error) {
	c := Coordinate{Latitude: lat, Longitude: lon}
	if err := c.Validate(); err != nil {
		return Coordinate{}, err
	}

	return c, nil
}

// ParseCoordinate parses a "lat,lon" string such as "28.6139,77.2090".
func ParseCoordinate(s string) (Coordinate, error) {
	latText, lonText, ok := strings.Cut(s, ",")
	if !ok {
		return Coordinate{}, fmt.Errorf("%w: %q is not in lat,lon form", ErrInvalidCoordinate, s)
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(latText), 64)
	if err != nil {
		return Coordinate{}, fmt.Errorf("%w: latitude %q: %w", ErrInvalidCoordinate, latText, err)
	}

	lon, err := strconv.ParseFloat(strings.TrimSpace(lonText), 64)
	if err != nil {
		return Coordinate{}, fmt.Errorf("%w: longitude %q: %w", ErrInvalidCoordinate, lonText, err)
	}

	return NewCoordinate(lat, lon)
}

// Validate reports whether latitude is within [-90, 90] and longitude within [-180, 180].
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Latitude) || c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v out of range [-90, 90]", ErrInvalidCoordinate, c.Latitude)
	}
	if math.IsNaN(c.Longitude) || c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v out of range [-180, 180]", ErrInvalidCoordinate, c.Longitude)
	}

	return nil
}

// LonLat returns the coordinate in [lon, lat] order used by GeoJSON and routing APIs.
func (c Coordinate) LonLat() [2]float64 {
	return [2]float64{c.Longitude, c.Latitude}
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Latitude, c.Longitude)
}
