package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"technician-dispatch-service/internal/domain"
	"technician-dispatch-service/internal/ports"
	"technician-dispatch-service/internal/services"
)

type stubEstimator struct{}

func (stubEstimator) Estimate(_ context.Context, origin, destination domain.Coordinates) domain.TravelEstimate {
	return domain.TravelEstimate{
		OriginKey:       origin.CacheKey(4),
		DestinationKey:  destination.CacheKey(4),
		DurationSeconds: 600,
		DistanceMeters:  6000,
		Source:          domain.TravelSourceLive,
		FetchedAt:       time.Date(2026, 1, 5, 7, 0, 0, 0, time.UTC),
	}
}

func (s stubEstimator) EstimateMany(ctx context.Context, origin domain.Coordinates, destinations []domain.Coordinates) []domain.TravelEstimate {
	out := make([]domain.TravelEstimate, len(destinations))
	for i, d := range destinations {
		out[i] = s.Estimate(ctx, origin, d)
	}
	return out
}

type stubRepo struct {
	data ports.ScheduleData
	err  error
}

func (r *stubRepo) LoadSchedule(context.Context, int, domain.DateRange) (ports.ScheduleData, error) {
	if r.err != nil {
		return ports.ScheduleData{}, r.err
	}
	return r.data, nil
}

func (r *stubRepo) ListUnscheduled(context.Context, int, string, int, int) ([]domain.Job, int, error) {
	if r.err != nil {
		return nil, 0, r.err
	}
	unscheduled := make([]domain.Job, 0)
	for _, j := range r.data.Jobs {
		if j.Assignment == nil {
			unscheduled = append(unscheduled, j)
		}
	}
	return unscheduled, len(unscheduled), nil
}

func newTestRouter(repo *stubRepo) http.Handler {
	log := zerolog.Nop()
	est := stubEstimator{}
	agg := services.NewAggregator(repo, log)
	opt := services.NewOptimizer(est, 3, time.UTC, log, nil)
	planner := services.NewPlanner(agg, opt, est, time.UTC, 2, log)
	return NewRouter(planner, agg, services.NewRecomputeDispatcher(), nil, log)
}

func seededRepo() *stubRepo {
	return &stubRepo{data: ports.ScheduleData{
		Jobs: []domain.Job{
			{
				ID: 1, CompanyID: 7,
				Location:        domain.Coordinates{Lat: 33.1, Lng: -112.0},
				DurationMinutes: 30,
				Assignment:      &domain.Assignment{TechnicianID: 1, ScheduledDate: "2026-01-05"},
			},
			{
				ID: 2, CompanyID: 7,
				Location:        domain.Coordinates{Lat: 33.2, Lng: -112.0},
				DurationMinutes: 20,
			},
		},
		Technicians: []domain.Technician{{
			ID: 1, CompanyID: 7,
			HomeBase: domain.Coordinates{Lat: 33.0, Lng: -112.0},
			Hours:    domain.WorkingHours{time.Monday: {Start: 8 * 60, End: 17 * 60}},
		}},
	}}
}

func TestHealthEndpoint(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(seededRepo()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBootstrapReturnsSnapshot(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/schedule?company_id=7&start=2026-01-05&end=2026-01-05", nil)
	newTestRouter(seededRepo()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var snap domain.ScheduleSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, 7, snap.CompanyID)
	require.Len(t, snap.RouteStops, 1)
	assert.Equal(t, 1, snap.RouteStops[0].JobID)
	require.Len(t, snap.UnscheduledJobs, 1)
	assert.Equal(t, 2, snap.UnscheduledJobs[0].ID)
}

func TestBootstrapValidatesParams(t *testing.T) {
	cases := []struct {
		name   string
		target string
	}{
		{"missing company", "/schedule?start=2026-01-05&end=2026-01-05"},
		{"bad company", "/schedule?company_id=abc&start=2026-01-05&end=2026-01-05"},
		{"bad start", "/schedule?company_id=7&start=Jan-5&end=2026-01-05"},
		{"missing end", "/schedule?company_id=7&start=2026-01-05"},
		{"inverted range", "/schedule?company_id=7&start=2026-01-06&end=2026-01-05"},
	}
	router := newTestRouter(seededRepo())

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.target, nil))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestBootstrapRepoFailureIsBadGateway(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/schedule?company_id=7&start=2026-01-05&end=2026-01-05", nil)
	newTestRouter(&stubRepo{err: errors.New("connection refused")}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestRecomputeAppliesEdit(t *testing.T) {
	body := `{
		"companyId": 7,
		"technicianId": 1,
		"date": "2026-01-05",
		"editKind": "assign_job",
		"payload": {"jobId": 2}
	}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/schedule/recompute", strings.NewReader(body))
	newTestRouter(seededRepo()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var snap domain.ScheduleSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Len(t, snap.RouteStops, 2)
}

func TestRecomputeRejectsBadRequests(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"unknown edit kind", `{"companyId":7,"technicianId":1,"date":"2026-01-05","editKind":"promote_job","payload":{}}`},
		{"unknown field", `{"companyId":7,"technicianId":1,"date":"2026-01-05","editKind":"reorder","payload":{},"extra":true}`},
		{"bad date", `{"companyId":7,"technicianId":1,"date":"05/01/2026","editKind":"reorder","payload":{}}`},
		{"missing technician", `{"companyId":7,"date":"2026-01-05","editKind":"reorder","payload":{}}`},
		{"trailing object", `{"companyId":7,"technicianId":1,"date":"2026-01-05","editKind":"reorder","payload":{}}{}`},
		{"not json", `reorder please`},
	}
	router := newTestRouter(seededRepo())

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/schedule/recompute", strings.NewReader(tc.body))
			router.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestBacklogList(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/jobs/unscheduled?company_id=7&limit=10", nil)
	newTestRouter(seededRepo()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var page domain.UnscheduledPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Jobs, 1)
	assert.Equal(t, 2, page.Jobs[0].ID)
	assert.False(t, page.HasMore)
}

func TestBacklogValidatesParams(t *testing.T) {
	cases := []string{
		"/jobs/unscheduled",
		"/jobs/unscheduled?company_id=0",
		"/jobs/unscheduled?company_id=7&limit=0",
		"/jobs/unscheduled?company_id=7&limit=201",
		"/jobs/unscheduled?company_id=7&offset=-1",
	}
	router := newTestRouter(seededRepo())

	for _, target := range cases {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestRequestIDHeaderIsSet(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(seededRepo()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}
