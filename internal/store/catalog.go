package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/farxc/carbon_footprint/internal/emissions"
)

type CatalogStore struct {
	db Queryer
}

// Upsert inserts or replaces catalogue entries by product id. When the same
// id appears twice in one call the later entry wins.
func (cs *CatalogStore) Upsert(ctx context.Context, entries []emissions.CatalogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	query := `INSERT INTO product_catalogue (
		product_id,
		product_name,
		category
	) VALUES (
		:product_id,
		:product_name,
		:category
	) ON CONFLICT (product_id) DO UPDATE SET
		product_name = EXCLUDED.product_name,
		category = EXCLUDED.category,
		updated_at = now()`

	position := make(map[string]int, len(entries))
	rows := make([]CatalogEntry, 0, len(entries))
	for _, e := range entries {
		row := CatalogEntry{
			ProductID:   strings.TrimSpace(e.ProductID),
			ProductName: strings.TrimSpace(e.ProductName),
			Category:    strings.TrimSpace(e.Category),
		}
		if i, ok := position[row.ProductID]; ok {
			rows[i] = row
			continue
		}
		position[row.ProductID] = len(rows)
		rows = append(rows, row)
	}

	return writeTx(ctx, cs.db, func(q Queryer) error {
		for start := 0; start < len(rows); start += insertChunk {
			end := min(start+insertChunk, len(rows))
			if _, err := q.NamedExecContext(ctx, query, rows[start:end]); err != nil {
				return fmt.Errorf("upsert product catalogue: %w", err)
			}
		}
		return bumpRevision(ctx, q, "catalogue")
	})
}

func (cs *CatalogStore) List(ctx context.Context) ([]emissions.CatalogEntry, error) {
	return listCatalog(ctx, cs.db)
}

func listCatalog(ctx context.Context, q Queryer) ([]emissions.CatalogEntry, error) {
	query := `SELECT product_id, product_name, category
	FROM product_catalogue
	ORDER BY product_id`

	var rows []CatalogEntry
	if err := q.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list product catalogue: %w", err)
	}

	entries := make([]emissions.CatalogEntry, len(rows))
	for i, r := range rows {
		entries[i] = emissions.CatalogEntry{
			ProductID:   r.ProductID,
			ProductName: r.ProductName,
			Category:    r.Category,
		}
	}
	return entries, nil
}
