package distance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"technician-dispatch-service/internal/domain"
	"technician-dispatch-service/internal/platform/obs"
	"technician-dispatch-service/internal/ports"
)

// Config for the external routing matrix API.
type Config struct {
	BaseURL     string
	APIKey      string
	Profile     string
	Timeout     time.Duration
	MaxAttempts int
}

// MatrixProvider implements DistanceProvider against an external routing
// matrix API. One origin->many destination rows are fetched in a single
// request; transient failures are retried with backoff.
//
// The provider is safe for concurrent use. It performs no caching of its
// own: callers go through the travel estimate cache.
type MatrixProvider struct {
	session     *http.Client
	apiKey      string
	baseURL     string
	profile     string
	maxAttempts int
	log         zerolog.Logger
	metrics     *obs.Metrics
}

func NewMatrixProvider(cfg Config, log zerolog.Logger, metrics *obs.Metrics) (*MatrixProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("matrix provider: api key is empty")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("matrix provider: base url is empty")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 4
	}
	profile := cfg.Profile
	if profile == "" {
		profile = "driving-car"
	}

	return &MatrixProvider{
		session:     &http.Client{Timeout: timeout},
		apiKey:      cfg.APIKey,
		baseURL:     cfg.BaseURL,
		profile:     profile,
		maxAttempts: attempts,
		log:         log,
		metrics:     metrics,
	}, nil
}

// Delegate to the batched path to reuse the matrix logic.
func (p *MatrixProvider) GetDistance(
	ctx context.Context,
	origin domain.Coordinates,
	destination domain.Coordinates,
) (ports.DistanceResult, error) {
	results, err := p.GetDistances(ctx, origin, []domain.Coordinates{destination})
	if err != nil {
		return ports.DistanceResult{}, err
	}
	if len(results) != 1 {
		return ports.DistanceResult{}, fmt.Errorf("matrix provider: expected 1 result, got %d", len(results))
	}
	return results[0], nil
}

type matrixRequest struct {
	Locations    [][]float64 `json:"locations"`
	Destinations []int       `json:"destinations"`
	Metrics      []string    `json:"metrics"`
	Sources      []int       `json:"sources"`
	Departure    string      `json:"departure,omitempty"`
}

type matrixResponse struct {
	Distances [][]*float64 `json:"distances"`
	Durations [][]*float64 `json:"durations"`
}

// GetDistances fetches one origin->many destination row from the matrix
// endpoint. Departure defaults to "now" so providers that support it return
// traffic-aware durations.
func (p *MatrixProvider) GetDistances(
	ctx context.Context,
	origin domain.Coordinates,
	destinations []domain.Coordinates,
) (_ []ports.DistanceResult, err error) {
	defer obs.Time(p.log, "matrix.GetDistances")(&err)

	if !origin.Valid() {
		return nil, errors.New("matrix provider: origin coordinates are invalid")
	}
	if len(destinations) == 0 {
		return []ports.DistanceResult{}, nil
	}

	endpoint := fmt.Sprintf("%s/v2/matrix/%s", p.baseURL, p.profile)

	locations := make([][]float64, 0, 1+len(destinations))
	locations = append(locations, origin.CoordsToList())
	for _, d := range destinations {
		if !d.Valid() {
			return nil, fmt.Errorf("matrix provider: destination coordinates %v are invalid", d)
		}
		locations = append(locations, d.CoordsToList())
	}

	destIdx := make([]int, 0, len(destinations))
	for i := 1; i < len(locations); i++ {
		destIdx = append(destIdx, i)
	}

	payload, err := json.Marshal(matrixRequest{
		Locations:    locations,
		Destinations: destIdx,
		Metrics:      []string{"distance", "duration"},
		Sources:      []int{0},
		Departure:    "now",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal matrix request: %w", err)
	}

	resp, err := p.doWithRetry(ctx, func() (*http.Request, error) {
		return p.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	})
	if err != nil {
		p.metrics.ProviderRequest("error")
		return nil, fmt.Errorf("matrix request failed: %w", err)
	}
	defer resp.Body.Close()
	p.metrics.ProviderRequest("ok")

	var mr matrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return nil, fmt.Errorf("decode matrix response: %w", err)
	}

	if len(mr.Distances) != 1 || len(mr.Durations) != 1 {
		return nil, fmt.Errorf(
			"expected 1 source row; got distances=%d durations=%d",
			len(mr.Distances), len(mr.Durations),
		)
	}

	rowDistances := mr.Distances[0]
	rowDurations := mr.Durations[0]

	if len(rowDistances) != len(destinations) || len(rowDurations) != len(destinations) {
		return nil, fmt.Errorf(
			"row lengths do not match destinations: distances=%d durations=%d destinations=%d",
			len(rowDistances), len(rowDurations), len(destinations),
		)
	}

	out := make([]ports.DistanceResult, 0, len(destinations))
	for i := range destinations {
		metersPtr := rowDistances[i]
		secondsPtr := rowDurations[i]

		if metersPtr == nil || secondsPtr == nil {
			return nil, fmt.Errorf("matrix returned invalid metrics for destination #%d", i)
		}

		// The API returns float metrics; round to nearest integer for
		// domain consistency.
		out = append(out, ports.DistanceResult{
			DistanceMeters:  int(math.Round(*metersPtr)),
			DurationSeconds: int(math.Round(*secondsPtr)),
		})
	}

	return out, nil
}
