package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/farxc/carbon_footprint/internal/emissions"
	"github.com/jmoiron/sqlx"
)

var (
	ErrNotFound = errors.New("record not found")

	// ErrBeginTx marks a write that failed before anything was sent, so it
	// is safe to run again. Failures after that, commit included, may have
	// landed.
	ErrBeginTx = errors.New("begin transaction")
)

// Queryer is satisfied by both *sqlx.DB and *sqlx.Tx so every store can run
// inside or outside a transaction.
type Queryer interface {
	sqlx.ExtContext
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

type Storage struct {
	// db is nil when the storage is bound to a transaction.
	db *sqlx.DB

	Uploads interface {
		Append(ctx context.Context, entry *UploadLog) error
		Latest(ctx context.Context, limit int, includeExcluded bool) ([]UploadLog, error)
		Get(ctx context.Context, uploadID string) (*UploadLog, error)
		Exclude(ctx context.Context, uploadID, reason string) error
		ExcludeAll(ctx context.Context, reason string) (int64, error)
	}

	Operations interface {
		InsertBatch(ctx context.Context, uploadID string, rows []emissions.OperationRecord) (int64, error)
	}

	Bills interface {
		InsertBatch(ctx context.Context, uploadID string, rows []emissions.UtilityBillRecord) ([]string, error)
	}

	Catalog interface {
		Upsert(ctx context.Context, entries []emissions.CatalogEntry) error
		List(ctx context.Context) ([]emissions.CatalogEntry, error)
	}

	Factors interface {
		Insert(ctx context.Context, f *EmissionFactor) error
		Latest(ctx context.Context, region string, activities []string) ([]EmissionFactor, error)
		List(ctx context.Context) ([]EmissionFactor, error)
	}

	Snapshots interface {
		Version(ctx context.Context) (int64, error)
		Load(ctx context.Context, rng emissions.Range) (emissions.Snapshot, error)
	}
}

func NewStorage(db *sqlx.DB) *Storage {
	s := newStorage(db)
	s.db = db
	s.Snapshots = &SnapshotStore{db: db}
	return s
}

func newStorage(q Queryer) *Storage {
	return &Storage{
		Uploads:    &UploadStore{db: q},
		Operations: &OperationStore{db: q},
		Bills:      &BillStore{db: q},
		Catalog:    &CatalogStore{db: q},
		Factors:    &FactorStore{db: q},
	}
}

// WithTx runs fn against a storage bound to one transaction, committing
// when fn returns nil. Nested calls reuse the outer transaction.
func (s *Storage) WithTx(ctx context.Context, fn func(tx *Storage) error) error {
	if s.db == nil {
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBeginTx, err)
	}

	txStorage := newStorage(tx)
	txStorage.Snapshots = s.Snapshots

	if err := fn(txStorage); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// writeTx runs fn in its own transaction when q is the pool, so a write
// and its revision bump commit together. Stores already bound to a
// transaction run fn directly.
func writeTx(ctx context.Context, q Queryer, fn func(q Queryer) error) error {
	db, ok := q.(*sqlx.DB)
	if !ok {
		return fn(q)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBeginTx, err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// bumpRevision increments the single data_version row and records why.
// Every write that changes what a snapshot would read calls it inside its
// transaction. The row lock is held until commit, so a later writer blocks
// on it and versions become visible in commit order: a snapshot that reads
// version v sees every write up to v and nothing after it.
func bumpRevision(ctx context.Context, q Queryer, reason string) error {
	var version int64
	if err := q.GetContext(ctx, &version, `UPDATE data_version SET version = version + 1 WHERE id RETURNING version`); err != nil {
		return fmt.Errorf("bump data version: %w", err)
	}
	if _, err := q.ExecContext(ctx, `INSERT INTO data_revisions (version, reason) VALUES ($1, $2)`, version, reason); err != nil {
		return fmt.Errorf("append data revision: %w", err)
	}
	return nil
}
