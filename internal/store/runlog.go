package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/covergrid/portfolio-cli/internal/model"
)

// StartRun records the beginning of a batch scoring pass and returns its ID.
func (s *Postgres) StartRun(ctx context.Context) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO score_runs (status, started_at) VALUES ('running', now()) RETURNING id`,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: start run")
	}
	return id, nil
}

// CompleteRun marks a batch pass as successfully completed with its counts.
func (s *Postgres) CompleteRun(ctx context.Context, runID int64, result model.BatchResult) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE score_runs SET status = 'complete', completed_at = now(),
		 users_processed = $1, alerts_created = $2, users_skipped = $3, users_failed = $4
		 WHERE id = $5`,
		result.UsersProcessed, result.AlertsCreated, result.UsersSkipped, result.UsersFailed, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %d", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %d", runID)
	}
	return nil
}

// FailRun marks a batch pass as failed with the causing error.
func (s *Postgres) FailRun(ctx context.Context, runID int64, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE score_runs SET status = 'failed', completed_at = now(), error = $1 WHERE id = $2`,
		msg, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %d", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %d", runID)
	}
	return nil
}

// RecentRuns returns the most recent batch passes, newest first.
func (s *Postgres) RecentRuns(ctx context.Context, limit int) ([]RunEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, status, started_at, completed_at, users_processed, alerts_created, users_skipped, users_failed, error
		 FROM score_runs ORDER BY started_at DESC LIMIT $1`,
		limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: recent runs")
	}
	defer rows.Close()

	var entries []RunEntry
	for rows.Next() {
		var e RunEntry
		if err := rows.Scan(&e.ID, &e.Status, &e.StartedAt, &e.CompletedAt,
			&e.UsersProcessed, &e.AlertsCreated, &e.UsersSkipped, &e.UsersFailed, &e.Error); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run entry")
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate runs")
	}
	return entries, nil
}
