package handlers

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"technician-dispatch-service/internal/services"
)

type BacklogHandler struct {
	Aggregator *services.Aggregator
}

// List pages through the unscheduled-job backlog matching a free-text
// search. Callers merge pages into their in-memory list keyed by job id;
// pages never contain duplicate ids but may overlap earlier pages.
func (h *BacklogHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	companyID, err := strconv.Atoi(q.Get("company_id"))
	if err != nil || companyID <= 0 {
		writeError(w, r, http.StatusBadRequest, "company_id must be a positive integer")
		return
	}

	limit := 25
	if raw := q.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > 200 {
			writeError(w, r, http.StatusBadRequest, "limit must be between 1 and 200")
			return
		}
	}

	offset := 0
	if raw := q.Get("offset"); raw != "" {
		offset, err = strconv.Atoi(raw)
		if err != nil || offset < 0 {
			writeError(w, r, http.StatusBadRequest, "offset must be non-negative")
			return
		}
	}

	page, err := h.Aggregator.LoadMoreUnscheduled(r.Context(), companyID, q.Get("search"), limit, offset)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("load unscheduled backlog failed")
		writeError(w, r, http.StatusBadGateway, "backlog load failed")
		return
	}

	writeJSON(w, r, http.StatusOK, page)
}
