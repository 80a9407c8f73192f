package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"technician-dispatch-service/internal/api/handlers"
	"technician-dispatch-service/internal/services"
)

// NewRouter wires HTTP handlers with their dependencies and returns an
// http.Handler. This is the API composition root; handlers stay unaware of
// concrete adapters.
func NewRouter(
	planner *services.Planner,
	aggregator *services.Aggregator,
	dispatcher *services.RecomputeDispatcher,
	gatherer prometheus.Gatherer,
	log zerolog.Logger,
) http.Handler {
	r := chi.NewRouter()
	r.Use(loggingMiddleware(log), requestIDMiddleware)

	scheduleHandler := &handlers.ScheduleHandler{
		Planner:    planner,
		Dispatcher: dispatcher,
	}
	backlogHandler := &handlers.BacklogHandler{Aggregator: aggregator}

	r.Get("/health", handlers.Health)
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Get("/schedule", scheduleHandler.Bootstrap)
	r.Post("/schedule/recompute", scheduleHandler.Recompute)
	r.Get("/jobs/unscheduled", backlogHandler.List)

	return r
}
