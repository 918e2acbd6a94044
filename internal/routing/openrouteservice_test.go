package routing_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/UnknownOlympus/asclepius/internal/models"
	"github.com/UnknownOlympus/asclepius/internal/routing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
	"gopkg.in/dnaeon/go-vcr.v4/pkg/cassette"
	"gopkg.in/dnaeon/go-vcr.v4/pkg/recorder"
)

type mockHTTPClient struct {
	doFunc func(req *http.Request) (*http.Response, error)
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return m.doFunc(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
	}
}

var (
	delhi   = models.Coordinate{Latitude: 28.6139, Longitude: 77.2090}
	safdar  = models.Coordinate{Latitude: 28.5672, Longitude: 77.2100}
	testKey = "test-api-key"
)

func TestORSProvider_Route(t *testing.T) {
	ctx := t.Context()
	logger := slog.Default()
	noLimit := rate.NewLimiter(rate.Inf, 0)

	t.Run("successful route", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(req *http.Request) (*http.Response, error) {
				assert.Equal(t, http.MethodGet, req.Method)
				assert.Contains(t, req.URL.String(), routing.ORSBaseURL)
				assert.Equal(t, testKey, req.URL.Query().Get("api_key"))
				assert.Equal(t, "77.209,28.6139", req.URL.Query().Get("start"))
				assert.Equal(t, "77.21,28.5672", req.URL.Query().Get("end"))

				return jsonResponse(http.StatusOK,
					`{"features":[{"geometry":{"coordinates":[[77.2090,28.6139],[77.2100,28.5672]]}}]}`), nil
			},
		}

		provider := routing.NewORSProviderWithClient(mockClient, testKey, noLimit, logger)
		route, err := provider.Route(ctx, delhi, safdar)

		require.NoError(t, err)
		require.Equal(t, 2, route.Len())
		assert.InDelta(t, 28.6139, route.Points[0].Latitude, 1e-9)
		assert.InDelta(t, 77.2090, route.Points[0].Longitude, 1e-9)
		assert.InDelta(t, 28.5672, route.Points[1].Latitude, 1e-9)
		assert.InDelta(t, 77.2100, route.Points[1].Longitude, 1e-9)
	})

	t.Run("extra response fields are ignored", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusOK, `{"type":"FeatureCollection","bbox":[1,2,3,4],
					"features":[{"type":"Feature","properties":{"summary":{"distance":5400.1}},
					"geometry":{"type":"LineString","coordinates":[[77.2090,28.6139],[77.2095,28.6000],[77.2100,28.5672]]}}]}`), nil
			},
		}

		provider := routing.NewORSProviderWithClient(mockClient, testKey, noLimit, logger)
		route, err := provider.Route(ctx, delhi, safdar)

		require.NoError(t, err)
		assert.Equal(t, 3, route.Len())
	})

	t.Run("unauthorized is an http error", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusUnauthorized, `{"error":"Access to this API has been disallowed"}`), nil
			},
		}

		provider := routing.NewORSProviderWithClient(mockClient, testKey, noLimit, logger)
		route, err := provider.Route(ctx, delhi, safdar)

		require.Error(t, err)
		assert.Zero(t, route.Len())
		assert.NotErrorIs(t, err, routing.ErrMalformedResponse)

		var httpErr *routing.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusUnauthorized, httpErr.Status)
		assert.Contains(t, httpErr.Body, "disallowed")
	})

	malformed := []struct {
		name string
		body string
	}{
		{name: "not json", body: `<html>oops</html>`},
		{name: "missing features", body: `{"type":"FeatureCollection"}`},
		{name: "empty features", body: `{"features":[]}`},
		{name: "missing geometry", body: `{"features":[{"properties":{}}]}`},
		{name: "no coordinates", body: `{"features":[{"geometry":{"coordinates":[]}}]}`},
		{name: "short pair", body: `{"features":[{"geometry":{"coordinates":[[77.2]]}}]}`},
		{name: "long pair", body: `{"features":[{"geometry":{"coordinates":[[77.2,28.6,216.0]]}}]}`},
		{name: "null member", body: `{"features":[{"geometry":{"coordinates":[[77.2,null]]}}]}`},
		{name: "non numeric member", body: `{"features":[{"geometry":{"coordinates":[["77.2",28.6]]}}]}`},
		{name: "latitude out of range", body: `{"features":[{"geometry":{"coordinates":[[77.2,128.6]]}}]}`},
	}

	for _, tt := range malformed {
		t.Run("malformed "+tt.name, func(t *testing.T) {
			mockClient := &mockHTTPClient{
				doFunc: func(_ *http.Request) (*http.Response, error) {
					return jsonResponse(http.StatusOK, tt.body), nil
				},
			}

			provider := routing.NewORSProviderWithClient(mockClient, testKey, noLimit, logger)
			route, err := provider.Route(ctx, delhi, safdar)

			require.ErrorIs(t, err, routing.ErrMalformedResponse)
			assert.Zero(t, route.Len())
		})
	}

	t.Run("malformed oversized body", func(t *testing.T) {
		valid := `{"features":[{"geometry":{"coordinates":[[77.2090,28.6139],[77.2100,28.5672]]}}]}`
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				padding := bytes.Repeat([]byte(" "), routing.MaxRouteBody)
				return &http.Response{
					StatusCode: http.StatusOK,
					Body:       io.NopCloser(io.MultiReader(bytes.NewBufferString(valid), bytes.NewReader(padding))),
				}, nil
			},
		}

		provider := routing.NewORSProviderWithClient(mockClient, testKey, noLimit, logger)
		route, err := provider.Route(ctx, delhi, safdar)

		require.ErrorIs(t, err, routing.ErrMalformedResponse)
		assert.Zero(t, route.Len())
	})

	t.Run("body at the size limit is accepted", func(t *testing.T) {
		valid := `{"features":[{"geometry":{"coordinates":[[77.2090,28.6139],[77.2100,28.5672]]}}]}`
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				padding := bytes.Repeat([]byte(" "), routing.MaxRouteBody-len(valid))
				return &http.Response{
					StatusCode: http.StatusOK,
					Body:       io.NopCloser(io.MultiReader(bytes.NewBufferString(valid), bytes.NewReader(padding))),
				}, nil
			},
		}

		provider := routing.NewORSProviderWithClient(mockClient, testKey, noLimit, logger)
		route, err := provider.Route(ctx, delhi, safdar)

		require.NoError(t, err)
		assert.Equal(t, 2, route.Len())
	})

	t.Run("transport failure is network unavailable", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				return nil, &url.Error{Op: "Get", URL: routing.ORSBaseURL, Err: errors.New("dial tcp: no such host")}
			},
		}

		provider := routing.NewORSProviderWithClient(mockClient, testKey, noLimit, logger)
		_, err := provider.Route(ctx, delhi, safdar)

		require.ErrorIs(t, err, routing.ErrNetworkUnavailable)
		_, hasStatus := routing.StatusCode(err)
		assert.False(t, hasStatus)
	})

	t.Run("transport error does not leak the key", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(req *http.Request) (*http.Response, error) {
				return nil, &url.Error{Op: "Get", URL: req.URL.String(), Err: errors.New("connection refused")}
			},
		}

		provider := routing.NewORSProviderWithClient(mockClient, testKey, noLimit, logger)
		_, err := provider.Route(ctx, delhi, safdar)

		require.ErrorIs(t, err, routing.ErrNetworkUnavailable)
		assert.NotContains(t, err.Error(), testKey)
		assert.Contains(t, err.Error(), "REDACTED")
	})

	t.Run("timeout is network unavailable", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				return nil, context.DeadlineExceeded
			},
		}

		provider := routing.NewORSProviderWithClient(mockClient, testKey, noLimit, logger)
		_, err := provider.Route(ctx, delhi, safdar)

		require.ErrorIs(t, err, routing.ErrNetworkUnavailable)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cancelCtx, cancel := context.WithCancel(context.Background())
		mockClient := &mockHTTPClient{
			doFunc: func(req *http.Request) (*http.Response, error) {
				cancel()
				return nil, req.Context().Err()
			},
		}

		provider := routing.NewORSProviderWithClient(mockClient, testKey, noLimit, logger)
		_, err := provider.Route(cancelCtx, delhi, safdar)

		require.ErrorIs(t, err, routing.ErrCancelled)
		assert.NotErrorIs(t, err, routing.ErrNetworkUnavailable)
	})

	t.Run("rate limiter blocks cancelled caller", func(t *testing.T) {
		rateCtx, cancel := context.WithCancel(context.Background())
		cancel()
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				t.Fatal("HTTP client should not be called when rate limit blocks")
				return nil, nil
			},
		}

		limiter := rate.NewLimiter(rate.Every(time.Second), 1)
		limiter.Allow()

		provider := routing.NewORSProviderWithClient(mockClient, testKey, limiter, logger)
		_, err := provider.Route(rateCtx, delhi, safdar)

		require.ErrorIs(t, err, routing.ErrCancelled)
	})

	t.Run("invalid endpoint never reaches the network", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				t.Fatal("HTTP client should not be called for an invalid endpoint")
				return nil, nil
			},
		}

		provider := routing.NewORSProviderWithClient(mockClient, testKey, noLimit, logger)
		_, err := provider.Route(ctx, models.Coordinate{Latitude: 91, Longitude: 0}, safdar)

		require.ErrorIs(t, err, routing.ErrInvalidEndpoint)
		require.ErrorIs(t, err, models.ErrInvalidCoordinate)
	})
}

func TestORSProvider_Replay(t *testing.T) {
	rec, err := recorder.New(
		filepath.Join("testdata", "vcr", "ors_directions_delhi"),
		recorder.WithMode(recorder.ModeReplayOnly),
		recorder.WithSkipRequestLatency(true),
		recorder.WithMatcher(func(r *http.Request, i cassette.Request) bool {
			recorded, err := url.Parse(i.URL)
			if err != nil {
				return false
			}

			return r.Method == i.Method &&
				r.URL.Path == recorded.Path &&
				r.URL.Query().Get("start") == recorded.Query().Get("start") &&
				r.URL.Query().Get("end") == recorded.Query().Get("end")
		}),
	)
	require.NoError(t, err)
	defer func() { _ = rec.Stop() }()

	client := &http.Client{
		Transport: rec,
		Timeout:   10 * time.Second,
	}

	provider := routing.NewORSProviderWithClient(client, testKey, nil, slog.Default())
	route, err := provider.Route(t.Context(), delhi, safdar)

	require.NoError(t, err)
	require.Equal(t, 4, route.Len())

	origin, ok := route.Origin()
	require.True(t, ok)
	assert.InDelta(t, 28.6139, origin.Latitude, 1e-4)

	destination, ok := route.Destination()
	require.True(t, ok)
	assert.InDelta(t, 77.2100, destination.Longitude, 1e-4)
}
