package observer_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/UnknownOlympus/asclepius/internal/models"
	"github.com/UnknownOlympus/asclepius/internal/observer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	ggaFix      = "$GPGGA,123519,2836.834,N,07712.540,E,1,08,0.9,545.4,M,46.9,M,,*47"
	ggaNoFix    = "$GPGGA,123520,2836.834,N,07712.540,E,0,00,,,M,,M,,*58"
	rmcValid    = "$GNRMC,123521,A,2834.032,N,07712.600,E,022.4,084.4,230394,003.1,W*74"
	rmcVoid     = "$GPRMC,123522,V,2834.032,N,07712.600,E,022.4,084.4,230394,003.1,W*7E"
	gsa         = "$GPGSA,A,3,04,05,,09,12,,,24,,,,,2.5,1.3,2.1*39"
	badChecksum = "$GPGGA,123519,2836.834,N,07712.540,E,1,08,0.9,545.4,M,46.9,M,,*00"
)

func TestStatic(t *testing.T) {
	t.Run("unknown until set", func(t *testing.T) {
		source := observer.NewStatic(nil)

		_, err := source.Current(t.Context())
		require.ErrorIs(t, err, observer.ErrNotYetKnown)

		require.NoError(t, source.Set(models.Coordinate{Latitude: 28.6139, Longitude: 77.2090}))

		location, err := source.Current(t.Context())
		require.NoError(t, err)
		assert.InDelta(t, 28.6139, location.Latitude, 1e-9)
	})

	t.Run("rejects invalid location", func(t *testing.T) {
		start := models.Coordinate{Latitude: 28.6139, Longitude: 77.2090}
		source := observer.NewStatic(&start)

		err := source.Set(models.Coordinate{Latitude: 0, Longitude: 181})
		require.ErrorIs(t, err, models.ErrInvalidCoordinate)

		location, err := source.Current(t.Context())
		require.NoError(t, err)
		assert.Equal(t, start, location)
	})
}

func TestNMEASource_Watch(t *testing.T) {
	t.Run("only valid fixes update the location", func(t *testing.T) {
		stream := strings.Join([]string{
			"garbage",
			badChecksum,
			ggaNoFix,
			gsa,
			rmcVoid,
			"",
			ggaFix,
			rmcValid,
		}, "\r\n")

		source := observer.NewNMEASource(strings.NewReader(stream), slog.Default())

		var fixes []models.Coordinate
		err := source.Watch(t.Context(), func(c models.Coordinate) {
			fixes = append(fixes, c)
		})

		require.NoError(t, err)
		require.Len(t, fixes, 2)
		assert.InDelta(t, 28.6139, fixes[0].Latitude, 1e-4)
		assert.InDelta(t, 77.2090, fixes[0].Longitude, 1e-4)
		assert.InDelta(t, 28.5672, fixes[1].Latitude, 1e-4)
		assert.InDelta(t, 77.2100, fixes[1].Longitude, 1e-4)

		current, err := source.Current(t.Context())
		require.NoError(t, err)
		assert.Equal(t, fixes[1], current)
	})

	t.Run("no fix leaves location unknown", func(t *testing.T) {
		source := observer.NewNMEASource(strings.NewReader(ggaNoFix+"\n"+rmcVoid+"\n"), slog.Default())

		require.NoError(t, source.Watch(t.Context(), nil))

		_, err := source.Current(t.Context())
		require.ErrorIs(t, err, observer.ErrNotYetKnown)
	})

	t.Run("cancelled context stops watching", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		source := observer.NewNMEASource(strings.NewReader(ggaFix+"\n"), slog.Default())
		err := source.Watch(ctx, func(models.Coordinate) {
			t.Fatal("no fix should be reported after cancellation")
		})

		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("read error is returned", func(t *testing.T) {
		source := observer.NewNMEASource(failingReader{}, slog.Default())

		err := source.Watch(t.Context(), nil)

		require.ErrorIs(t, err, errDeviceGone)
	})
}

var errDeviceGone = errors.New("device disconnected")

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errDeviceGone
}
