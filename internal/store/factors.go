package store

import (
	"context"
	"fmt"

	"github.com/lib/pq"
)

type FactorStore struct {
	db Queryer
}

func (fs *FactorStore) Insert(ctx context.Context, f *EmissionFactor) error {
	query := `INSERT INTO emission_factors (
		region,
		activity_type,
		year,
		factor,
		reference
	) VALUES (
		:region,
		:activity_type,
		:year,
		:factor,
		:reference
	) ON CONFLICT (region, activity_type, year) DO UPDATE SET
		factor = EXCLUDED.factor,
		reference = EXCLUDED.reference`

	return writeTx(ctx, fs.db, func(q Queryer) error {
		if _, err := q.NamedExecContext(ctx, query, f); err != nil {
			return fmt.Errorf("insert emission factor %s/%s/%d: %w", f.Region, f.ActivityType, f.Year, err)
		}
		return bumpRevision(ctx, q, "factor "+f.Region+"/"+f.ActivityType)
	})
}

// Latest returns the most recent year's factor for each requested activity
// in region. Activities without any row are simply absent from the result.
func (fs *FactorStore) Latest(ctx context.Context, region string, activities []string) ([]EmissionFactor, error) {
	query := `SELECT DISTINCT ON (activity_type)
		id, region, activity_type, year, factor, reference
	FROM emission_factors
	WHERE lower(region) = lower($1) AND activity_type = ANY($2)
	ORDER BY activity_type, year DESC, id DESC`

	var factors []EmissionFactor
	if err := fs.db.SelectContext(ctx, &factors, query, region, pq.Array(activities)); err != nil {
		return nil, fmt.Errorf("latest emission factors for %s: %w", region, err)
	}
	return factors, nil
}

func (fs *FactorStore) List(ctx context.Context) ([]EmissionFactor, error) {
	query := `SELECT id, region, activity_type, year, factor, reference
	FROM emission_factors
	ORDER BY region, activity_type, year DESC`

	var factors []EmissionFactor
	if err := fs.db.SelectContext(ctx, &factors, query); err != nil {
		return nil, fmt.Errorf("list emission factors: %w", err)
	}
	return factors, nil
}
