package export

import (
	"context"
	"database/sql"
	"errors"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const selectColumns = `id, session_id, lane, storage_key, size_bytes, item_count, checksum, exported_at`

// Create inserts an export record.
func (r *PGRepo) Create(ctx context.Context, rec Record) error {
	const query = `
INSERT INTO exports (
    id,
    session_id,
    lane,
    storage_key,
    size_bytes,
    item_count,
    checksum,
    exported_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.DB.ExecContext(ctx, query,
		rec.ID,
		rec.SessionID,
		rec.Lane,
		rec.StorageKey,
		rec.SizeBytes,
		rec.ItemCount,
		rec.Checksum,
		rec.ExportedAt,
	)
	return err
}

// GetByID returns one export record.
func (r *PGRepo) GetByID(ctx context.Context, id string) (Record, error) {
	query := `SELECT ` + selectColumns + ` FROM exports WHERE id = $1`
	rec, err := scanRecord(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

// List returns records newest-first.
func (r *PGRepo) List(ctx context.Context, limit, offset int) ([]Record, error) {
	limit, offset = normalizePage(limit, offset)
	query := `SELECT ` + selectColumns + ` FROM exports ORDER BY exported_at DESC, id DESC LIMIT $1 OFFSET $2`
	rows, err := r.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var rec Record
	err := row.Scan(
		&rec.ID,
		&rec.SessionID,
		&rec.Lane,
		&rec.StorageKey,
		&rec.SizeBytes,
		&rec.ItemCount,
		&rec.Checksum,
		&rec.ExportedAt,
	)
	return rec, err
}
