package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"technician-dispatch-service/internal/api/dto"
	"technician-dispatch-service/internal/domain"
	"technician-dispatch-service/internal/services"
)

type ScheduleHandler struct {
	Planner    *services.Planner
	Dispatcher *services.RecomputeDispatcher
}

// Bootstrap serves the full schedule snapshot for a company and date range.
// The calendar UI hydrates from this and reconciles against later
// technician-day snapshots.
func (h *ScheduleHandler) Bootstrap(w http.ResponseWriter, r *http.Request) {
	companyID, err := strconv.Atoi(r.URL.Query().Get("company_id"))
	if err != nil || companyID <= 0 {
		writeError(w, r, http.StatusBadRequest, "company_id must be a positive integer")
		return
	}

	start, err := time.Parse("2006-01-02", r.URL.Query().Get("start"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "start must be YYYY-MM-DD")
		return
	}
	end, err := time.Parse("2006-01-02", r.URL.Query().Get("end"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "end must be YYYY-MM-DD")
		return
	}
	if end.Before(start) {
		writeError(w, r, http.StatusBadRequest, "end must not be before start")
		return
	}

	snap, err := h.Planner.BuildSchedule(r.Context(), companyID, domain.DateRange{Start: start, End: end})
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("build schedule failed")
		writeError(w, r, http.StatusBadGateway, "schedule data load failed")
		return
	}

	writeSnapshot(w, r, *snap)
}

// Recompute re-optimizes one technician-day after a manual edit and returns
// the authoritative replacement snapshot. A request superseded by a later
// edit to the same technician-day gets 409.
func (h *ScheduleHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	var req dto.RecomputeRequest

	dec := json.NewDecoder(r.Body)
	defer r.Body.Close()
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeError(w, r, http.StatusBadRequest, "body must contain only one JSON object")
		return
	}

	if req.CompanyID <= 0 {
		writeError(w, r, http.StatusBadRequest, "companyId must be a positive integer")
		return
	}
	if req.TechnicianID <= 0 {
		writeError(w, r, http.StatusBadRequest, "technicianId must be a positive integer")
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	edit := services.Edit{
		Kind:   services.EditKind(req.EditKind),
		JobID:  req.Payload.JobID,
		JobIDs: req.Payload.JobIDs,
	}
	switch edit.Kind {
	case services.EditReorder, services.EditAssign, services.EditUnassign, services.EditRemoveTechnician:
	default:
		writeError(w, r, http.StatusBadRequest, "unknown editKind")
		return
	}

	snap, err := h.Dispatcher.Run(r.Context(), req.TechnicianID, req.Date,
		func(ctx context.Context) (*domain.ScheduleSnapshot, error) {
			return h.Planner.RecomputeTechnicianDay(ctx, req.CompanyID, req.TechnicianID, date, edit)
		})
	if err != nil {
		if errors.Is(err, services.ErrSuperseded) {
			writeError(w, r, http.StatusConflict, "superseded by a later edit")
			return
		}
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("recompute failed")
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	writeSnapshot(w, r, *snap)
}

// writeSnapshot uses the canonical encoder so repeated requests over
// identical data are byte-identical.
func writeSnapshot(w http.ResponseWriter, r *http.Request, snap domain.ScheduleSnapshot) {
	body, err := services.EncodeSnapshot(snap)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("encode snapshot failed")
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("write snapshot failed")
	}
}
