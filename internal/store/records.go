package store

import (
	"context"
	"fmt"

	"github.com/farxc/carbon_footprint/internal/emissions"
	"github.com/google/uuid"
)

// insertChunk keeps multi-row inserts under the Postgres bind parameter
// limit.
const insertChunk = 1000

type OperationStore struct {
	db Queryer
}

func (ops *OperationStore) InsertBatch(ctx context.Context, uploadID string, rows []emissions.OperationRecord) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	query := `INSERT INTO operations (
		upload_id,
		product_id,
		units_sold,
		energy_kwh,
		transport_km,
		record_date
	) VALUES (
		:upload_id,
		:product_id,
		:units_sold,
		:energy_kwh,
		:transport_km,
		:record_date
	)`

	var inserted int64
	for start := 0; start < len(rows); start += insertChunk {
		end := min(start+insertChunk, len(rows))

		batch := make([]Operation, 0, end-start)
		for _, r := range rows[start:end] {
			batch = append(batch, Operation{
				UploadID:    uploadID,
				ProductID:   r.ProductID,
				UnitsSold:   r.UnitsSold,
				EnergyKWh:   r.EnergyKWh,
				TransportKM: r.TransportKM,
				RecordDate:  r.RecordDate,
			})
		}

		result, err := ops.db.NamedExecContext(ctx, query, batch)
		if err != nil {
			return inserted, fmt.Errorf("insert operations for %s: %w", uploadID, err)
		}
		n, _ := result.RowsAffected()
		inserted += n
	}

	if err := bumpRevision(ctx, ops.db, "operations "+uploadID); err != nil {
		return inserted, err
	}
	return inserted, nil
}

type BillStore struct {
	db Queryer
}

// InsertBatch stores the bills and returns the generated bill ids in
// input order.
func (bs *BillStore) InsertBatch(ctx context.Context, uploadID string, rows []emissions.UtilityBillRecord) ([]string, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	query := `INSERT INTO utility_bills (
		bill_id,
		upload_id,
		month,
		region,
		bill_type,
		units,
		amount
	) VALUES (
		:bill_id,
		:upload_id,
		:month,
		:region,
		:bill_type,
		:units,
		:amount
	)`

	ids := make([]string, 0, len(rows))
	for start := 0; start < len(rows); start += insertChunk {
		end := min(start+insertChunk, len(rows))

		batch := make([]UtilityBill, 0, end-start)
		for _, r := range rows[start:end] {
			id := uuid.NewString()
			ids = append(ids, id)
			batch = append(batch, UtilityBill{
				BillID:   id,
				UploadID: uploadID,
				Month:    r.Month,
				Region:   r.Region,
				BillType: r.BillType,
				Units:    r.Units,
				Amount:   r.Amount,
			})
		}

		if _, err := bs.db.NamedExecContext(ctx, query, batch); err != nil {
			return nil, fmt.Errorf("insert utility bills for %s: %w", uploadID, err)
		}
	}

	if err := bumpRevision(ctx, bs.db, "bills "+uploadID); err != nil {
		return nil, err
	}
	return ids, nil
}
