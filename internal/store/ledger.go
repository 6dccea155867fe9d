package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/simsweep/internal/batch"
	"github.com/banshee-data/simsweep/internal/faults"
)

// Run statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// Run is one study execution.
type Run struct {
	RunID        string
	StartedAt    time.Time
	FinishedAt   *time.Time
	Status       string
	Combinations int
	Succeeded    int
	Failed       int
	Filtered     int
}

// JobRecord is a persisted job outcome. JobID is the orchestrator's job id,
// unique within its run.
type JobRecord struct {
	JobID      string
	RunID      string
	ConfigPath string
	RouteFile  string
	Status     string
	Detail     string
	StartedAt  time.Time
	FinishedAt time.Time
}

// FaultRecord is a persisted fault.
type FaultRecord struct {
	FaultID   string
	RunID     string
	Kind      string
	Op        string
	Subject   string
	Message   string
	CreatedAt time.Time
}

// StartRun inserts a running study and returns its id.
func (s *Store) StartRun(startedAt time.Time) (string, error) {
	id := uuid.New().String()
	err := retryOnBusy(func() error {
		_, err := s.db.Exec(
			`INSERT INTO sweep_runs (run_id, started_at, status) VALUES (?, ?, ?)`,
			id, startedAt.UnixNano(), RunRunning,
		)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}
	return id, nil
}

// FinishRun stores the final counts and status of a run.
func (s *Store) FinishRun(r Run) error {
	finished := s.Clock.Now()
	if r.FinishedAt != nil {
		finished = *r.FinishedAt
	}
	var res sql.Result
	err := retryOnBusy(func() error {
		var err error
		res, err = s.db.Exec(`
			UPDATE sweep_runs
			SET finished_at = ?, status = ?, combinations = ?, succeeded = ?, failed = ?, filtered = ?
			WHERE run_id = ?`,
			finished.UnixNano(), r.Status, r.Combinations, r.Succeeded, r.Failed, r.Filtered, r.RunID,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("updating run %s: %w", r.RunID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("updating run %s: %w", r.RunID, sql.ErrNoRows)
	}
	return nil
}

// RecordOutcomes stores one row per job outcome in a single transaction.
func (s *Store) RecordOutcomes(runID string, outcomes []batch.Outcome) error {
	return retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		stmt, err := tx.Prepare(`
			INSERT INTO sweep_jobs (job_id, run_id, config_path, route_file, status, detail, started_at, finished_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, o := range outcomes {
			if _, err := stmt.Exec(
				o.Job.ID, runID, o.Job.ConfigPath, o.Job.RouteFile,
				string(o.Status), nullStr(o.Detail),
				o.Started.UnixNano(), o.Finished.UnixNano(),
			); err != nil {
				return fmt.Errorf("inserting job %s: %w", o.Job.ID, err)
			}
		}
		return tx.Commit()
	})
}

// RecordFaults stores the faults of a run in a single transaction.
func (s *Store) RecordFaults(runID string, list []*faults.Error) error {
	now := s.Clock.Now().UnixNano()
	return retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		for _, f := range list {
			if _, err := tx.Exec(`
				INSERT INTO sweep_faults (fault_id, run_id, kind, op, subject, message, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				uuid.New().String(), runID, string(f.Kind), f.Op, nullStr(f.Subject), f.Error(), now,
			); err != nil {
				return fmt.Errorf("inserting fault: %w", err)
			}
		}
		return tx.Commit()
	})
}

// GetRun returns a run by id, or sql.ErrNoRows.
func (s *Store) GetRun(runID string) (*Run, error) {
	var (
		r        Run
		started  int64
		finished sql.NullInt64
	)
	err := s.db.QueryRow(`
		SELECT run_id, started_at, finished_at, status, combinations, succeeded, failed, filtered
		FROM sweep_runs WHERE run_id = ?`, runID,
	).Scan(&r.RunID, &started, &finished, &r.Status, &r.Combinations, &r.Succeeded, &r.Failed, &r.Filtered)
	if err != nil {
		return nil, err
	}
	r.StartedAt = time.Unix(0, started)
	if finished.Valid {
		t := time.Unix(0, finished.Int64)
		r.FinishedAt = &t
	}
	return &r, nil
}

// ListJobs returns a run's jobs ordered by config path.
func (s *Store) ListJobs(runID string) ([]JobRecord, error) {
	rows, err := s.db.Query(`
		SELECT job_id, run_id, config_path, route_file, status, detail, started_at, finished_at
		FROM sweep_jobs WHERE run_id = ?
		ORDER BY config_path`, runID)
	if err != nil {
		return nil, fmt.Errorf("listing jobs for %s: %w", runID, err)
	}
	defer rows.Close()

	var out []JobRecord
	for rows.Next() {
		var (
			j                 JobRecord
			detail            sql.NullString
			started, finished int64
		)
		if err := rows.Scan(&j.JobID, &j.RunID, &j.ConfigPath, &j.RouteFile, &j.Status, &detail, &started, &finished); err != nil {
			return nil, err
		}
		j.Detail = detail.String
		j.StartedAt = time.Unix(0, started)
		j.FinishedAt = time.Unix(0, finished)
		out = append(out, j)
	}
	return out, rows.Err()
}

// ListFaults returns a run's faults in insertion order.
func (s *Store) ListFaults(runID string) ([]FaultRecord, error) {
	rows, err := s.db.Query(`
		SELECT fault_id, run_id, kind, op, subject, message, created_at
		FROM sweep_faults WHERE run_id = ?
		ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("listing faults for %s: %w", runID, err)
	}
	defer rows.Close()

	var out []FaultRecord
	for rows.Next() {
		var (
			f       FaultRecord
			subject sql.NullString
			created int64
		)
		if err := rows.Scan(&f.FaultID, &f.RunID, &f.Kind, &f.Op, &subject, &f.Message, &created); err != nil {
			return nil, err
		}
		f.Subject = subject.String
		f.CreatedAt = time.Unix(0, created)
		out = append(out, f)
	}
	return out, rows.Err()
}
