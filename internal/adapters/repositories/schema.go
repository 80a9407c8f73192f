package repositories

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Initialize the Postgres schema for scheduling data.
func InitSchema(db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createTechniciansQuery := `
	CREATE TABLE IF NOT EXISTS technicians (
		id INTEGER PRIMARY KEY,
		company_id INTEGER NOT NULL,
		home_lat DOUBLE PRECISION NOT NULL,
		home_lng DOUBLE PRECISION NOT NULL,
		working_hours JSONB NOT NULL DEFAULT '{}',
		skills JSONB NOT NULL DEFAULT '[]',
		archived_at TIMESTAMPTZ
	);
	`

	createJobsQuery := `
	CREATE TABLE IF NOT EXISTS jobs (
		id INTEGER PRIMARY KEY,
		company_id INTEGER NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		lat DOUBLE PRECISION NOT NULL,
		lng DOUBLE PRECISION NOT NULL,
		duration_minutes INTEGER NOT NULL,
		earliest_start TIMESTAMPTZ,
		latest_start TIMESTAMPTZ,
		priority INTEGER NOT NULL DEFAULT 0,
		archived_at TIMESTAMPTZ
	);
	`

	createAssignmentsQuery := `
	CREATE TABLE IF NOT EXISTS assignments (
		job_id INTEGER PRIMARY KEY REFERENCES jobs(id),
		technician_id INTEGER NOT NULL REFERENCES technicians(id),
		scheduled_date DATE NOT NULL,
		locked BOOLEAN NOT NULL DEFAULT FALSE,
		sequence INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	`

	createIndexQuery := `
	CREATE INDEX IF NOT EXISTS idx_assignments_technician_date
	ON assignments(technician_id, scheduled_date);
	`

	statements := []string{
		createTechniciansQuery,
		createJobsQuery,
		createAssignmentsQuery,
		createIndexQuery,
	}

	for i, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}

type TechnicianSeed struct {
	ID           int                          `json:"id"`
	CompanyID    int                          `json:"company_id"`
	HomeLat      float64                      `json:"home_lat"`
	HomeLng      float64                      `json:"home_lng"`
	WorkingHours map[string]map[string]string `json:"working_hours"`
	Skills       []string                     `json:"skills"`
}

type JobSeed struct {
	ID              int     `json:"id"`
	CompanyID       int     `json:"company_id"`
	Description     string  `json:"description"`
	Lat             float64 `json:"lat"`
	Lng             float64 `json:"lng"`
	DurationMinutes int     `json:"duration_minutes"`
	EarliestStart   *string `json:"earliest_start"`
	LatestStart     *string `json:"latest_start"`
	Priority        int     `json:"priority"`
}

type SeedFile struct {
	Technicians []TechnicianSeed `json:"technicians"`
	Jobs        []JobSeed        `json:"jobs"`
}

// Populate the database with scheduling data from a JSON file.
func SeedFromJSON(db *sql.DB, jsonPath string) error {
	raw, err := os.ReadFile(jsonPath)
	if err != nil {
		return fmt.Errorf("seed schedule: read %q: %w", jsonPath, err)
	}

	var data SeedFile
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("seed schedule: parse json: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("seed schedule: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	techStmt, err := tx.Prepare(`
	INSERT INTO technicians (id, company_id, home_lat, home_lng, working_hours, skills)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (id) DO UPDATE
	SET home_lat = EXCLUDED.home_lat,
		home_lng = EXCLUDED.home_lng,
		working_hours = EXCLUDED.working_hours,
		skills = EXCLUDED.skills;
	`)
	if err != nil {
		return fmt.Errorf("seed schedule: prepare technician insert: %w", err)
	}
	defer techStmt.Close()

	for i, t := range data.Technicians {
		if t.ID <= 0 {
			return fmt.Errorf("seed schedule: invalid technician id at index %d: %d", i, t.ID)
		}
		hoursJSON, err := json.Marshal(t.WorkingHours)
		if err != nil {
			return fmt.Errorf("seed schedule: technician %d hours: %w", t.ID, err)
		}
		skillsJSON, err := json.Marshal(t.Skills)
		if err != nil {
			return fmt.Errorf("seed schedule: technician %d skills: %w", t.ID, err)
		}
		if _, err := techStmt.Exec(t.ID, t.CompanyID, t.HomeLat, t.HomeLng, hoursJSON, skillsJSON); err != nil {
			return fmt.Errorf("seed schedule: insert technician %d: %w", t.ID, err)
		}
	}

	jobStmt, err := tx.Prepare(`
	INSERT INTO jobs (id, company_id, description, lat, lng, duration_minutes, earliest_start, latest_start, priority)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (id) DO UPDATE
	SET description = EXCLUDED.description,
		lat = EXCLUDED.lat,
		lng = EXCLUDED.lng,
		duration_minutes = EXCLUDED.duration_minutes,
		earliest_start = EXCLUDED.earliest_start,
		latest_start = EXCLUDED.latest_start,
		priority = EXCLUDED.priority;
	`)
	if err != nil {
		return fmt.Errorf("seed schedule: prepare job insert: %w", err)
	}
	defer jobStmt.Close()

	for i, j := range data.Jobs {
		if j.ID <= 0 {
			return fmt.Errorf("seed schedule: invalid job id at index %d: %d", i, j.ID)
		}
		if j.DurationMinutes <= 0 {
			return fmt.Errorf("seed schedule: job %d: duration must be positive", j.ID)
		}
		if _, err := jobStmt.Exec(j.ID, j.CompanyID, j.Description, j.Lat, j.Lng,
			j.DurationMinutes, j.EarliestStart, j.LatestStart, j.Priority); err != nil {
			return fmt.Errorf("seed schedule: insert job %d: %w", j.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed schedule: commit tx: %w", err)
	}

	return nil
}
