package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"technician-dispatch-service/internal/domain"
	"technician-dispatch-service/internal/ports"
)

// Postgres-backed implementation of the ScheduleRepository port.
//
// Soft-deleted rows (archived_at set) are excluded in SQL so no other layer
// needs to re-check. The assignment join is emitted by Postgres as JSON and
// may arrive as a single object (legacy rows) or a one-element array
// (json_agg); domain.OneOrMany absorbs both shapes here, at the boundary.
type PostgresScheduleRepository struct{ DB *sql.DB }

func NewPostgresScheduleRepository(db *sql.DB) *PostgresScheduleRepository {
	return &PostgresScheduleRepository{DB: db}
}

type assignmentRow struct {
	TechnicianID  int       `json:"technician_id"`
	ScheduledDate string    `json:"scheduled_date"`
	Locked        bool      `json:"locked"`
	Sequence      int       `json:"sequence"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (r assignmentRow) toDomain() *domain.Assignment {
	// scheduled_date comes back either as a bare date or a midnight
	// timestamp depending on the JSON path; keep the date part.
	date := r.ScheduledDate
	if len(date) > 10 {
		date = date[:10]
	}
	return &domain.Assignment{
		TechnicianID:  r.TechnicianID,
		ScheduledDate: date,
		Locked:        r.Locked,
		Sequence:      r.Sequence,
		UpdatedAt:     r.UpdatedAt,
	}
}

const jobColumns = `
	j.id, j.company_id, j.description, j.lat, j.lng,
	j.duration_minutes, j.earliest_start, j.latest_start, j.priority
`

func scanJob(rows *sql.Rows, withAssignment bool) (domain.Job, error) {
	var (
		j             domain.Job
		earliest      sql.NullTime
		latest        sql.NullTime
		assignmentRaw []byte
	)

	dest := []any{
		&j.ID, &j.CompanyID, &j.Description, &j.Location.Lat, &j.Location.Lng,
		&j.DurationMinutes, &earliest, &latest, &j.Priority,
	}
	if withAssignment {
		dest = append(dest, &assignmentRaw)
	}

	if err := rows.Scan(dest...); err != nil {
		return domain.Job{}, fmt.Errorf("scan job row: %w", err)
	}

	if earliest.Valid {
		t := earliest.Time
		j.TimeWindow.EarliestStart = &t
	}
	if latest.Valid {
		t := latest.Time
		j.TimeWindow.LatestStart = &t
	}

	if len(assignmentRaw) > 0 {
		var a domain.OneOrMany[assignmentRow]
		if err := json.Unmarshal(assignmentRaw, &a); err != nil {
			return domain.Job{}, fmt.Errorf("decode assignment for job %d: %w", j.ID, err)
		}
		if a.Value != nil {
			j.Assignment = a.Value.toDomain()
		}
	}

	return j, nil
}

// LoadSchedule returns the company's technicians plus every non-archived job
// that is either unscheduled or assigned inside the range.
func (r *PostgresScheduleRepository) LoadSchedule(ctx context.Context, companyID int, rng domain.DateRange) (ports.ScheduleData, error) {
	if r.DB == nil {
		return ports.ScheduleData{}, errors.New("schedule repository: db is nil")
	}

	jobs, err := r.loadJobs(ctx, companyID, rng)
	if err != nil {
		return ports.ScheduleData{}, err
	}

	techs, err := r.loadTechnicians(ctx, companyID)
	if err != nil {
		return ports.ScheduleData{}, err
	}

	return ports.ScheduleData{Jobs: jobs, Technicians: techs}, nil
}

func (r *PostgresScheduleRepository) loadJobs(ctx context.Context, companyID int, rng domain.DateRange) ([]domain.Job, error) {
	q := `
	SELECT ` + jobColumns + `,
		COALESCE(
			json_agg(row_to_json(a.*)) FILTER (WHERE a.job_id IS NOT NULL),
			'null'
		) AS assignment
	FROM jobs j
	LEFT JOIN assignments a ON a.job_id = j.id
	WHERE j.company_id = $1
		AND j.archived_at IS NULL
		AND (a.job_id IS NULL OR a.scheduled_date BETWEEN $2 AND $3)
	GROUP BY j.id
	ORDER BY j.id;
	`

	rows, err := r.DB.QueryContext(ctx, q, companyID,
		rng.Start.Format("2006-01-02"), rng.End.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("load jobs: query: %w", err)
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		j, err := scanJob(rows, true)
		if err != nil {
			return nil, fmt.Errorf("load jobs: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load jobs: row iteration: %w", err)
	}

	return jobs, nil
}

type workingHoursRow map[string]struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func parseWorkingHours(raw []byte) (domain.WorkingHours, error) {
	if len(raw) == 0 {
		return domain.WorkingHours{}, nil
	}

	var row workingHoursRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, fmt.Errorf("decode working hours: %w", err)
	}

	hours := make(domain.WorkingHours, len(row))
	for name, span := range row {
		day, ok := weekdayNames[name]
		if !ok {
			return nil, fmt.Errorf("decode working hours: unknown weekday %q", name)
		}
		start, err := domain.ParseMinuteOfDay(span.Start)
		if err != nil {
			return nil, fmt.Errorf("decode working hours %q: %w", name, err)
		}
		end, err := domain.ParseMinuteOfDay(span.End)
		if err != nil {
			return nil, fmt.Errorf("decode working hours %q: %w", name, err)
		}
		hours[day] = domain.DayHours{Start: start, End: end}
	}
	return hours, nil
}

func (r *PostgresScheduleRepository) loadTechnicians(ctx context.Context, companyID int) ([]domain.Technician, error) {
	q := `
	SELECT id, company_id, home_lat, home_lng, working_hours, skills
	FROM technicians
	WHERE company_id = $1
		AND archived_at IS NULL
	ORDER BY id;
	`

	rows, err := r.DB.QueryContext(ctx, q, companyID)
	if err != nil {
		return nil, fmt.Errorf("load technicians: query: %w", err)
	}
	defer rows.Close()

	var techs []domain.Technician
	for rows.Next() {
		var (
			t         domain.Technician
			hoursRaw  []byte
			skillsRaw []byte
		)
		if err := rows.Scan(&t.ID, &t.CompanyID, &t.HomeBase.Lat, &t.HomeBase.Lng, &hoursRaw, &skillsRaw); err != nil {
			return nil, fmt.Errorf("load technicians: scan: %w", err)
		}

		t.Hours, err = parseWorkingHours(hoursRaw)
		if err != nil {
			return nil, fmt.Errorf("load technicians: technician %d: %w", t.ID, err)
		}

		if len(skillsRaw) > 0 {
			if err := json.Unmarshal(skillsRaw, &t.Skills); err != nil {
				return nil, fmt.Errorf("load technicians: technician %d skills: %w", t.ID, err)
			}
		}

		techs = append(techs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load technicians: row iteration: %w", err)
	}

	return techs, nil
}

// ListUnscheduled pages through non-archived jobs with no assignment,
// optionally filtered by a case-insensitive description match.
func (r *PostgresScheduleRepository) ListUnscheduled(ctx context.Context, companyID int, search string, limit, offset int) ([]domain.Job, int, error) {
	if r.DB == nil {
		return nil, 0, errors.New("schedule repository: db is nil")
	}

	countQ := `
	SELECT COUNT(*)
	FROM jobs j
	LEFT JOIN assignments a ON a.job_id = j.id
	WHERE j.company_id = $1
		AND j.archived_at IS NULL
		AND a.job_id IS NULL
		AND ($2 = '' OR j.description ILIKE '%' || $2 || '%');
	`

	var total int
	if err := r.DB.QueryRowContext(ctx, countQ, companyID, search).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("list unscheduled: count: %w", err)
	}

	q := `
	SELECT ` + jobColumns + `
	FROM jobs j
	LEFT JOIN assignments a ON a.job_id = j.id
	WHERE j.company_id = $1
		AND j.archived_at IS NULL
		AND a.job_id IS NULL
		AND ($2 = '' OR j.description ILIKE '%' || $2 || '%')
	ORDER BY j.priority DESC, j.id
	LIMIT $3 OFFSET $4;
	`

	rows, err := r.DB.QueryContext(ctx, q, companyID, search, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list unscheduled: query: %w", err)
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		j, err := scanJob(rows, false)
		if err != nil {
			return nil, 0, fmt.Errorf("list unscheduled: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list unscheduled: row iteration: %w", err)
	}

	return jobs, total, nil
}
