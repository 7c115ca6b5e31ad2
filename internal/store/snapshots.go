package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/farxc/carbon_footprint/internal/emissions"
	"github.com/jmoiron/sqlx"
)

// SnapshotStore reads a consistent view of all non-excluded records.
type SnapshotStore struct {
	db *sqlx.DB
}

func (ss *SnapshotStore) Version(ctx context.Context) (int64, error) {
	return currentVersion(ctx, ss.db)
}

func currentVersion(ctx context.Context, q Queryer) (int64, error) {
	var version int64
	if err := q.GetContext(ctx, &version, `SELECT version FROM data_version WHERE id`); err != nil {
		return 0, fmt.Errorf("read data version: %w", err)
	}
	return version, nil
}

// Load reads operations, bills and the catalogue for rng in one read-only
// REPEATABLE READ transaction, so the version and every row come from the
// same database state.
func (ss *SnapshotStore) Load(ctx context.Context, rng emissions.Range) (emissions.Snapshot, error) {
	from, to, err := rangeBounds(rng)
	if err != nil {
		return emissions.Snapshot{}, err
	}

	tx, err := ss.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return emissions.Snapshot{}, fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback()

	snap := emissions.Snapshot{TakenAt: time.Now().UTC()}

	if snap.Version, err = currentVersion(ctx, tx); err != nil {
		return emissions.Snapshot{}, err
	}

	opsQuery := `SELECT o.product_id, o.units_sold, o.energy_kwh, o.transport_km, o.record_date
	FROM operations o
	WHERE NOT EXISTS (SELECT 1 FROM upload_exclusions e WHERE e.upload_id = o.upload_id)
	  AND ($1::date IS NULL OR o.record_date >= $1::date)
	  AND ($2::date IS NULL OR o.record_date < $2::date)
	ORDER BY o.id`

	var ops []Operation
	if err := tx.SelectContext(ctx, &ops, opsQuery, from, to); err != nil {
		return emissions.Snapshot{}, fmt.Errorf("load operations: %w", err)
	}
	snap.Operations = make([]emissions.OperationRecord, len(ops))
	for i, o := range ops {
		snap.Operations[i] = emissions.OperationRecord{
			ProductID:   o.ProductID,
			UnitsSold:   o.UnitsSold,
			EnergyKWh:   o.EnergyKWh,
			TransportKM: o.TransportKM,
			RecordDate:  dateUTC(o.RecordDate),
		}
	}

	billsQuery := `SELECT b.month, b.region, b.bill_type, b.units, b.amount
	FROM utility_bills b
	WHERE NOT EXISTS (SELECT 1 FROM upload_exclusions e WHERE e.upload_id = b.upload_id)
	  AND ($1::date IS NULL OR b.month >= $1::date)
	  AND ($2::date IS NULL OR b.month < $2::date)
	ORDER BY b.month, b.bill_id`

	var bills []UtilityBill
	if err := tx.SelectContext(ctx, &bills, billsQuery, from, to); err != nil {
		return emissions.Snapshot{}, fmt.Errorf("load utility bills: %w", err)
	}
	snap.Bills = make([]emissions.UtilityBillRecord, len(bills))
	for i, b := range bills {
		snap.Bills[i] = emissions.UtilityBillRecord{
			Month:    emissions.FirstOfMonth(dateUTC(b.Month)),
			Region:   b.Region,
			BillType: b.BillType,
			Units:    b.Units,
			Amount:   b.Amount,
		}
	}

	if snap.Catalog, err = listCatalog(ctx, tx); err != nil {
		return emissions.Snapshot{}, err
	}

	if err := tx.Commit(); err != nil {
		return emissions.Snapshot{}, fmt.Errorf("end snapshot: %w", err)
	}
	return snap, nil
}

// rangeBounds converts an inclusive month range to [from, to) dates. Open
// bounds are NULL.
func rangeBounds(rng emissions.Range) (sql.NullTime, sql.NullTime, error) {
	if err := rng.Validate(); err != nil {
		return sql.NullTime{}, sql.NullTime{}, err
	}

	var from, to sql.NullTime
	if rng.From != "" {
		t, _ := time.Parse(emissions.MonthLayout, rng.From)
		from = sql.NullTime{Time: t, Valid: true}
	}
	if rng.To != "" {
		t, _ := time.Parse(emissions.MonthLayout, rng.To)
		to = sql.NullTime{Time: t.AddDate(0, 1, 0), Valid: true}
	}
	return from, to, nil
}

// dateUTC drops the driver's location from a DATE column.
func dateUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
