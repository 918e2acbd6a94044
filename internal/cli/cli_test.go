package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"testing"

	"github.com/Flaque/filet"
	"github.com/UnknownOlympus/asclepius/internal/models"
	"github.com/UnknownOlympus/asclepius/internal/routing"
	"github.com/UnknownOlympus/asclepius/test/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const delhiHospitals = `Hospital Name,Latitude,Longitude
All India Institute of Medical Sciences,28.5672,77.2100
Safdarjung Hospital,28.5685,77.2066
Ram Manohar Lohia Hospital,28.6260,77.2010
`

const testKey = "secret-routing-key"

var (
	connaughtPlace = models.Coordinate{Latitude: 28.6139, Longitude: 77.2090}
	rml            = models.Coordinate{Latitude: 28.6260, Longitude: 77.2010}
)

type runResult struct {
	code   int
	stdout string
	stderr string
}

func run(t *testing.T, deps Dependencies, args ...string) runResult {
	t.Helper()

	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	code := Execute(t.Context(), args, deps, stdout, stderr)

	return runResult{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func testDeps(provider routing.Provider, env map[string]string) (Dependencies, *[]routing.ProviderConfig) {
	configs := &[]routing.ProviderConfig{}

	return Dependencies{
		NewProvider: func(cfg routing.ProviderConfig) (routing.Provider, error) {
			*configs = append(*configs, cfg)
			return provider, nil
		},
		Getenv:  func(key string) string { return env[key] },
		Logger:  slog.Default(),
		Version: "test",
	}, configs
}

func TestFacilitiesCommand(t *testing.T) {
	defer filet.CleanUp(t)
	path := filet.TmpFile(t, "", delhiHospitals).Name()
	deps, _ := testDeps(nil, nil)

	t.Run("json envelope", func(t *testing.T) {
		res := run(t, deps, "facilities", "--facilities", path, "--format", "json")
		require.Equal(t, 0, res.code, res.stderr)

		var payload struct {
			Meta map[string]any    `json:"meta"`
			Data []models.Facility `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(res.stdout), &payload))
		assert.Equal(t, "test", payload.Meta["version"])
		require.Len(t, payload.Data, 3)
		assert.Equal(t, "Safdarjung Hospital", payload.Data[1].Name)
	})

	t.Run("text table", func(t *testing.T) {
		res := run(t, deps, "facilities", "--facilities", path)
		require.Equal(t, 0, res.code, res.stderr)
		assert.Contains(t, res.stdout, "NAME")
		assert.Contains(t, res.stdout, "28.626000")
	})

	t.Run("path from environment", func(t *testing.T) {
		envDeps, _ := testDeps(nil, map[string]string{envFacilitiesPath: path})
		res := run(t, envDeps, "facilities")
		require.Equal(t, 0, res.code, res.stderr)
		assert.Contains(t, res.stdout, "Ram Manohar Lohia Hospital")
	})

	t.Run("missing file", func(t *testing.T) {
		res := run(t, deps, "facilities", "--facilities", "/nonexistent/facilities.csv")
		assert.Equal(t, 1, res.code)
		assert.Contains(t, res.stderr, "failed to load facilities")
	})

	t.Run("unsupported format", func(t *testing.T) {
		res := run(t, deps, "facilities", "--facilities", path, "--format", "xml")
		assert.Equal(t, 2, res.code)
		assert.Contains(t, res.stderr, `unsupported format "xml"`)
	})
}

func TestNearestCommand(t *testing.T) {
	defer filet.CleanUp(t)
	path := filet.TmpFile(t, "", delhiHospitals).Name()

	t.Run("text output names the nearest facility", func(t *testing.T) {
		deps, configs := testDeps(nil, nil)
		res := run(t, deps, "nearest", "--lat", "28.6139", "--lon", "77.2090", "--facilities", path)

		require.Equal(t, 0, res.code, res.stderr)
		assert.Contains(t, res.stdout, "Nearest: Ram Manohar Lohia Hospital")
		assert.Empty(t, *configs, "no provider is built without --route")
	})

	t.Run("limit trims candidates", func(t *testing.T) {
		deps, _ := testDeps(nil, nil)
		res := run(t, deps, "nearest", "--lat", "28.6139", "--lon", "77.2090",
			"--facilities", path, "--limit", "1", "--format", "json")
		require.Equal(t, 0, res.code, res.stderr)

		var payload struct {
			Data nearestResult `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(res.stdout), &payload))
		assert.Equal(t, "Ram Manohar Lohia Hospital", payload.Data.Nearest.Facility.Name)
		assert.Len(t, payload.Data.Candidates, 1)
		assert.Nil(t, payload.Data.Route)
	})

	t.Run("nothing inside radius", func(t *testing.T) {
		deps, _ := testDeps(nil, nil)
		res := run(t, deps, "nearest", "--lat", "28.6139", "--lon", "77.2090",
			"--facilities", path, "--radius", "0.5")
		assert.Equal(t, 1, res.code)
		assert.Contains(t, res.stderr, "no facility within 0.5 km")
	})

	t.Run("empty candidate set", func(t *testing.T) {
		empty := filet.TmpFile(t, "", "Hospital Name,Latitude,Longitude\n").Name()
		deps, _ := testDeps(nil, nil)
		res := run(t, deps, "nearest", "--lat", "28.6139", "--lon", "77.2090", "--facilities", empty)
		assert.Equal(t, 1, res.code)
		assert.Contains(t, res.stderr, "no facilities loaded")
	})

	t.Run("invalid observer", func(t *testing.T) {
		deps, _ := testDeps(nil, nil)
		res := run(t, deps, "nearest", "--lat", "95", "--lon", "77.2090", "--facilities", path)
		assert.Equal(t, 2, res.code)
		assert.Contains(t, res.stderr, "invalid --lat/--lon")
	})

	t.Run("with route", func(t *testing.T) {
		provider := mocks.NewProvider(t)
		route := models.Route{Points: []models.Coordinate{connaughtPlace, rml}}
		provider.On("Route", mock.Anything, connaughtPlace, rml).Return(route, nil).Once()

		deps, configs := testDeps(provider, map[string]string{envProviderKey: testKey})
		res := run(t, deps, "nearest", "--lat", "28.6139", "--lon", "77.2090",
			"--facilities", path, "--route", "--format", "yaml")
		require.Equal(t, 0, res.code, res.stderr)

		var payload struct {
			Data struct {
				Route routeResult `yaml:"route"`
			} `yaml:"data"`
		}
		require.NoError(t, yaml.Unmarshal([]byte(res.stdout), &payload))
		assert.Equal(t, "openrouteservice", payload.Data.Route.Provider)
		assert.Equal(t, 2, payload.Data.Route.Points)
		assert.InDelta(t, 1.55, payload.Data.Route.LengthKm, 0.1)

		require.Len(t, *configs, 1)
		assert.Equal(t, testKey, (*configs)[0].APIKey)
		assert.Equal(t, routing.ProviderTypeORS, (*configs)[0].Type)
		assert.NotContains(t, res.stdout, testKey)
	})
}

func TestRouteCommand(t *testing.T) {
	defer filet.CleanUp(t)
	path := filet.TmpFile(t, "", delhiHospitals).Name()
	route := models.Route{Points: []models.Coordinate{connaughtPlace, rml}}

	t.Run("coordinates", func(t *testing.T) {
		provider := mocks.NewProvider(t)
		provider.On("Route", mock.Anything, connaughtPlace, rml).Return(route, nil).Once()

		deps, configs := testDeps(provider, nil)
		res := run(t, deps, "route", "--from", "28.6139,77.2090", "--to", "28.6260,77.2010",
			"--key", testKey, "--provider", "google")

		require.Equal(t, 0, res.code, res.stderr)
		assert.Contains(t, res.stdout, "Route via google: 2 points")
		assert.Contains(t, res.stdout, "28.626000,77.201000")
		require.Len(t, *configs, 1)
		assert.Equal(t, routing.ProviderTypeGoogle, (*configs)[0].Type)
	})

	t.Run("facility by name", func(t *testing.T) {
		provider := mocks.NewProvider(t)
		provider.On("Route", mock.Anything, connaughtPlace, rml).Return(route, nil).Once()

		deps, _ := testDeps(provider, map[string]string{envProviderKey: testKey})
		res := run(t, deps, "route", "--from", "28.6139,77.2090",
			"--facility", "ram manohar lohia hospital", "--facilities", path)

		require.Equal(t, 0, res.code, res.stderr)
	})

	t.Run("unknown facility", func(t *testing.T) {
		deps, configs := testDeps(nil, map[string]string{envProviderKey: testKey})
		res := run(t, deps, "route", "--from", "28.6139,77.2090", "--facility", "Nowhere", "--facilities", path)

		assert.Equal(t, 1, res.code)
		assert.Contains(t, res.stderr, `no facility named "Nowhere"`)
		assert.Empty(t, *configs)
	})

	t.Run("missing key", func(t *testing.T) {
		deps, configs := testDeps(nil, nil)
		res := run(t, deps, "route", "--from", "28.6139,77.2090", "--to", "28.6260,77.2010")

		assert.Equal(t, 2, res.code)
		assert.Contains(t, res.stderr, envProviderKey)
		assert.Empty(t, *configs)
	})

	t.Run("conflicting destinations", func(t *testing.T) {
		deps, _ := testDeps(nil, nil)
		res := run(t, deps, "route", "--from", "28.6139,77.2090", "--to", "28.6260,77.2010", "--facility", "x")

		assert.Equal(t, 2, res.code)
	})

	t.Run("malformed coordinate", func(t *testing.T) {
		deps, _ := testDeps(nil, nil)
		res := run(t, deps, "route", "--from", "north", "--to", "28.6260,77.2010")

		assert.Equal(t, 2, res.code)
		assert.Contains(t, res.stderr, "invalid --from")
	})

	t.Run("upstream refusal", func(t *testing.T) {
		provider := mocks.NewProvider(t)
		provider.On("Route", mock.Anything, connaughtPlace, rml).
			Return(models.Route{}, &routing.HTTPError{Status: http.StatusForbidden, Body: "Access to this API has been disallowed"}).
			Once()

		deps, _ := testDeps(provider, nil)
		res := run(t, deps, "route", "--from", "28.6139,77.2090", "--to", "28.6260,77.2010", "--key", testKey)

		assert.Equal(t, 1, res.code)
		assert.Contains(t, res.stderr, "status 403")
		assert.NotContains(t, res.stderr, testKey)
	})

	t.Run("provider construction fails", func(t *testing.T) {
		deps := Dependencies{
			NewProvider: func(routing.ProviderConfig) (routing.Provider, error) {
				return nil, errors.New("unsupported provider type: bing")
			},
		}
		res := run(t, deps, "route", "--from", "28.6139,77.2090", "--to", "28.6260,77.2010",
			"--key", testKey, "--provider", "bing")

		assert.Equal(t, 1, res.code)
		assert.Contains(t, res.stderr, "failed to create routing provider")
	})
}

type fakeSeeder struct {
	initErr error
	seeded  []models.Facility
	closed  bool
}

func (f *fakeSeeder) InitSchema(context.Context) error { return f.initErr }

func (f *fakeSeeder) Seed(_ context.Context, list []models.Facility) error {
	f.seeded = list
	return nil
}

func TestSeedCommand(t *testing.T) {
	defer filet.CleanUp(t)
	path := filet.TmpFile(t, "", delhiHospitals).Name()

	t.Run("imports every row", func(t *testing.T) {
		seeder := &fakeSeeder{}
		deps := Dependencies{
			OpenSeeder: func(context.Context) (Seeder, func(), error) {
				return seeder, func() { seeder.closed = true }, nil
			},
		}

		res := run(t, deps, "seed", "--facilities", path)

		require.Equal(t, 0, res.code, res.stderr)
		assert.Equal(t, "Seeded 3 facilities\n", res.stdout)
		assert.Len(t, seeder.seeded, 3)
		assert.True(t, seeder.closed)
	})

	t.Run("schema failure", func(t *testing.T) {
		seeder := &fakeSeeder{initErr: errors.New("failed to create facilities table")}
		deps := Dependencies{
			OpenSeeder: func(context.Context) (Seeder, func(), error) {
				return seeder, func() {}, nil
			},
		}

		res := run(t, deps, "seed", "--facilities", path)

		assert.Equal(t, 1, res.code)
		assert.Contains(t, res.stderr, "failed to create facilities table")
		assert.Nil(t, seeder.seeded)
	})

	t.Run("no database", func(t *testing.T) {
		res := run(t, Dependencies{}, "seed", "--facilities", path)
		assert.Equal(t, 1, res.code)
	})
}

func TestRootCommand(t *testing.T) {
	t.Run("unknown command", func(t *testing.T) {
		res := run(t, Dependencies{}, "teleport")
		assert.Equal(t, 2, res.code)
		assert.Contains(t, res.stderr, "No such command 'teleport'")
	})

	t.Run("version", func(t *testing.T) {
		res := run(t, Dependencies{Version: "1.2.3"}, "--version")
		assert.Equal(t, 0, res.code)
		assert.Equal(t, "1.2.3\n", res.stdout)
	})
}

func TestParseFormat(t *testing.T) {
	for input, want := range map[string]Format{"": FormatText, "TEXT": FormatText, " json ": FormatJSON, "yaml": FormatYAML} {
		got, err := ParseFormat(input)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseFormat("table")
	assert.Error(t, err)
}
