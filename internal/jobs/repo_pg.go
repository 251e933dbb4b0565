package jobs

import (
	"context"
	"database/sql"
	"errors"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a job row.
func (r *PGRepo) Create(ctx context.Context, job Job) error {
	const query = `
INSERT INTO batch_jobs (
    id,
    storage_key,
    file_name,
    row_count,
    status,
    session_id,
    export_id,
    error,
    created_at,
    updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.DB.ExecContext(ctx, query,
		job.ID,
		job.StorageKey,
		job.FileName,
		job.RowCount,
		string(job.Status),
		nullString(job.SessionID),
		nullString(job.ExportID),
		nullString(job.Error),
		job.CreatedAt,
		job.UpdatedAt,
	)
	return err
}

// GetByID returns one job.
func (r *PGRepo) GetByID(ctx context.Context, id string) (Job, error) {
	const query = `
SELECT id, storage_key, file_name, row_count, status, session_id, export_id, error, created_at, updated_at
FROM batch_jobs
WHERE id = $1`
	var job Job
	var status string
	var sessionID, exportID, jobErr sql.NullString
	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&job.ID,
		&job.StorageKey,
		&job.FileName,
		&job.RowCount,
		&status,
		&sessionID,
		&exportID,
		&jobErr,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Job{}, ErrNotFound
		}
		return Job{}, err
	}
	job.Status = Status(status)
	job.SessionID = sessionID.String
	job.ExportID = exportID.String
	job.Error = jobErr.String
	return job, nil
}

// Update writes the mutable columns of job.
func (r *PGRepo) Update(ctx context.Context, job Job) error {
	const query = `
UPDATE batch_jobs
SET row_count = $2,
    status = $3,
    session_id = $4,
    export_id = $5,
    error = $6,
    updated_at = $7
WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query,
		job.ID,
		job.RowCount,
		string(job.Status),
		nullString(job.SessionID),
		nullString(job.ExportID),
		nullString(job.Error),
		job.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
