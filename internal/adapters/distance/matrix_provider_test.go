package distance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"technician-dispatch-service/internal/domain"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *MatrixProvider {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := NewMatrixProvider(Config{
		BaseURL:     srv.URL,
		APIKey:      "test-key",
		Timeout:     2 * time.Second,
		MaxAttempts: 3,
	}, zerolog.Nop(), nil)
	require.NoError(t, err)
	return p
}

func matrixBody(distances, durations []float64) []byte {
	toPtrs := func(vs []float64) []*float64 {
		out := make([]*float64, len(vs))
		for i := range vs {
			v := vs[i]
			out[i] = &v
		}
		return out
	}
	b, _ := json.Marshal(matrixResponse{
		Distances: [][]*float64{toPtrs(distances)},
		Durations: [][]*float64{toPtrs(durations)},
	})
	return b
}

func TestGetDistancesRequestShape(t *testing.T) {
	var captured matrixRequest
	var auth string

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/matrix/driving-car", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write(matrixBody([]float64{1200.4, 2399.6}, []float64{300.2, 599.8}))
	})

	origin := domain.Coordinates{Lat: 33.40, Lng: -112.00}
	dests := []domain.Coordinates{
		{Lat: 33.41, Lng: -112.00},
		{Lat: 33.42, Lng: -112.01},
	}

	results, err := p.GetDistances(context.Background(), origin, dests)
	require.NoError(t, err)

	assert.Equal(t, "test-key", auth)
	// Locations are [lng, lat] with the origin first.
	require.Len(t, captured.Locations, 3)
	assert.Equal(t, []float64{-112.00, 33.40}, captured.Locations[0])
	assert.Equal(t, []int{0}, captured.Sources)
	assert.Equal(t, []int{1, 2}, captured.Destinations)
	assert.Equal(t, "now", captured.Departure)

	require.Len(t, results, 2)
	assert.Equal(t, 1200, results[0].DistanceMeters)
	assert.Equal(t, 300, results[0].DurationSeconds)
	assert.Equal(t, 2400, results[1].DistanceMeters)
	assert.Equal(t, 600, results[1].DurationSeconds)
}

func TestGetDistancesRetriesRateLimit(t *testing.T) {
	var hits atomic.Int32

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			http.Error(w, "slow down", http.StatusTooManyRequests)
			return
		}
		w.Write(matrixBody([]float64{500}, []float64{120}))
	})

	results, err := p.GetDistances(
		context.Background(),
		domain.Coordinates{Lat: 33.40, Lng: -112.00},
		[]domain.Coordinates{{Lat: 33.41, Lng: -112.00}},
	)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, 120, results[0].DurationSeconds)
}

func TestGetDistancesDoesNotRetryClientError(t *testing.T) {
	var hits atomic.Int32

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	})

	_, err := p.GetDistances(
		context.Background(),
		domain.Coordinates{Lat: 33.40, Lng: -112.00},
		[]domain.Coordinates{{Lat: 33.41, Lng: -112.00}},
	)
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestGetDistancesRejectsShortRow(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(matrixBody([]float64{500}, []float64{120}))
	})

	_, err := p.GetDistances(
		context.Background(),
		domain.Coordinates{Lat: 33.40, Lng: -112.00},
		[]domain.Coordinates{
			{Lat: 33.41, Lng: -112.00},
			{Lat: 33.42, Lng: -112.01},
		},
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row lengths do not match")
}

func TestGetDistancesRejectsNullMetric(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"distances":[[null]],"durations":[[120]]}`))
	})

	_, err := p.GetDistances(
		context.Background(),
		domain.Coordinates{Lat: 33.40, Lng: -112.00},
		[]domain.Coordinates{{Lat: 33.41, Lng: -112.00}},
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid metrics")
}

func TestGetDistancesRejectsInvalidOrigin(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	_, err := p.GetDistances(
		context.Background(),
		domain.Coordinates{},
		[]domain.Coordinates{{Lat: 33.41, Lng: -112.00}},
	)
	require.Error(t, err)
}
