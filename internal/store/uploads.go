package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// UploadStore keeps the upload audit log. Rows are never updated or
// deleted; exclusions are recorded in their own append-only table.
type UploadStore struct {
	db Queryer
}

const uploadColumns = `
	u.upload_id,
	u.upload_time,
	u.file_name,
	u.category,
	u.rows_total,
	u.rows_loaded,
	u.rows_rejected,
	u.status,
	u.detail,
	EXISTS (SELECT 1 FROM upload_exclusions e WHERE e.upload_id = u.upload_id) AS excluded`

func (us *UploadStore) Append(ctx context.Context, entry *UploadLog) error {
	query := `INSERT INTO upload_log (
		upload_id,
		upload_time,
		file_name,
		category,
		rows_total,
		rows_loaded,
		rows_rejected,
		status,
		detail
	) VALUES (
		:upload_id,
		:upload_time,
		:file_name,
		:category,
		:rows_total,
		:rows_loaded,
		:rows_rejected,
		:status,
		:detail
	)`

	if _, err := us.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("append upload log %s: %w", entry.UploadID, err)
	}
	return nil
}

func (us *UploadStore) Latest(ctx context.Context, limit int, includeExcluded bool) ([]UploadLog, error) {
	query := `SELECT` + uploadColumns + `
	FROM upload_log u
	WHERE $1 OR NOT EXISTS (SELECT 1 FROM upload_exclusions e WHERE e.upload_id = u.upload_id)
	ORDER BY u.upload_time DESC, u.upload_id
	LIMIT $2`

	var uploads []UploadLog
	if err := us.db.SelectContext(ctx, &uploads, query, includeExcluded, limit); err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	return uploads, nil
}

func (us *UploadStore) Get(ctx context.Context, uploadID string) (*UploadLog, error) {
	query := `SELECT` + uploadColumns + `
	FROM upload_log u
	WHERE u.upload_id = $1`

	var upload UploadLog
	if err := us.db.GetContext(ctx, &upload, query, uploadID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get upload %s: %w", uploadID, err)
	}
	return &upload, nil
}

// Exclude removes an upload's rows from every future snapshot. Excluding an
// already excluded upload is a no-op; unknown uploads yield ErrNotFound.
func (us *UploadStore) Exclude(ctx context.Context, uploadID, reason string) error {
	query := `INSERT INTO upload_exclusions (upload_id, reason)
	SELECT u.upload_id, $2
	FROM upload_log u
	WHERE u.upload_id = $1
	  AND NOT EXISTS (SELECT 1 FROM upload_exclusions e WHERE e.upload_id = u.upload_id)`

	var affected int64
	err := writeTx(ctx, us.db, func(q Queryer) error {
		result, err := q.ExecContext(ctx, query, uploadID, reason)
		if err != nil {
			return fmt.Errorf("exclude upload %s: %w", uploadID, err)
		}
		if affected, err = result.RowsAffected(); err != nil {
			return fmt.Errorf("exclude upload %s: %w", uploadID, err)
		}
		if affected == 0 {
			return nil
		}
		return bumpRevision(ctx, q, "exclude "+uploadID)
	})
	if err != nil || affected > 0 {
		return err
	}

	var exists bool
	if err := us.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM upload_log WHERE upload_id = $1)`, uploadID); err != nil {
		return fmt.Errorf("lookup upload %s: %w", uploadID, err)
	}
	if !exists {
		return ErrNotFound
	}
	return nil
}

// ExcludeAll excludes every upload not yet excluded and returns how many
// were affected.
func (us *UploadStore) ExcludeAll(ctx context.Context, reason string) (int64, error) {
	query := `INSERT INTO upload_exclusions (upload_id, reason)
	SELECT u.upload_id, $1
	FROM upload_log u
	WHERE NOT EXISTS (SELECT 1 FROM upload_exclusions e WHERE e.upload_id = u.upload_id)`

	var affected int64
	err := writeTx(ctx, us.db, func(q Queryer) error {
		result, err := q.ExecContext(ctx, query, reason)
		if err != nil {
			return fmt.Errorf("exclude all uploads: %w", err)
		}
		if affected, err = result.RowsAffected(); err != nil {
			return fmt.Errorf("exclude all uploads: %w", err)
		}
		if affected == 0 {
			return nil
		}
		return bumpRevision(ctx, q, "exclude all")
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}
