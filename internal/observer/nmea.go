package observer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/UnknownOlympus/asclepius/internal/models"
	"github.com/adrianmo/go-nmea"
)

// NMEASource tracks the observer location from NMEA 0183 sentences.
// Only GGA sentences with a fix and RMC sentences with status A update the location.
type NMEASource struct {
	reader io.Reader    // Stream of newline separated sentences
	log    *slog.Logger // Logger for skipped sentences

	mu   sync.RWMutex
	last *models.Coordinate
}

// NewNMEASource creates a source reading sentences from r. Call Watch to start consuming it.
func NewNMEASource(r io.Reader, log *slog.Logger) *NMEASource {
	return &NMEASource{reader: r, log: log}
}

// Current returns the last fix, or ErrNotYetKnown before the first one.
func (n *NMEASource) Current(_ context.Context) (models.Coordinate, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.last == nil {
		return models.Coordinate{}, ErrNotYetKnown
	}

	return *n.last, nil
}

// Watch consumes the stream until it ends or ctx is cancelled, calling fn for every new fix.
// Unparsable sentences are logged and skipped. Watch returns nil at end of stream.
func (n *NMEASource) Watch(ctx context.Context, fn func(models.Coordinate)) error {
	scanner := bufio.NewScanner(n.reader)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		location, ok := n.parse(ctx, line)
		if !ok {
			continue
		}

		n.mu.Lock()
		n.last = &location
		n.mu.Unlock()

		if fn != nil {
			fn(location)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read NMEA stream: %w", err)
	}

	return ctx.Err()
}

func (n *NMEASource) parse(ctx context.Context, line string) (models.Coordinate, bool) {
	sentence, err := nmea.Parse(line)
	if err != nil {
		n.log.DebugContext(ctx, "Skipping NMEA sentence", "sentence", line, "error", err)
		return models.Coordinate{}, false
	}

	var lat, lon float64
	switch s := sentence.(type) {
	case nmea.GGA:
		if s.FixQuality == nmea.Invalid {
			return models.Coordinate{}, false
		}
		lat, lon = s.Latitude, s.Longitude
	case nmea.RMC:
		if s.Validity != nmea.ValidRMC {
			return models.Coordinate{}, false
		}
		lat, lon = s.Latitude, s.Longitude
	default:
		return models.Coordinate{}, false
	}

	location, err := models.NewCoordinate(lat, lon)
	if err != nil {
		n.log.WarnContext(ctx, "GPS fix out of range", "sentence", line, "error", err)
		return models.Coordinate{}, false
	}

	return location, true
}

var _ Source = (*NMEASource)(nil)
