package emissions

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"
)

// Snapshot is the consistent view of raw records a computation runs
// against. Version changes whenever any underlying data changes.
type Snapshot struct {
	Version    int64
	TakenAt    time.Time
	Operations []OperationRecord
	Bills      []UtilityBillRecord
	Catalog    []CatalogEntry
}

// Range bounds a report to months From..To inclusive, both YYYY-MM. Empty
// bounds are open.
type Range struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

func (r Range) Contains(month string) bool {
	if r.From != "" && month < r.From {
		return false
	}
	if r.To != "" && month > r.To {
		return false
	}
	return true
}

func (r Range) Validate() error {
	for _, m := range []string{r.From, r.To} {
		if m == "" {
			continue
		}
		if _, err := time.Parse(MonthLayout, m); err != nil {
			return fmt.Errorf("invalid month %q, expected YYYY-MM", m)
		}
	}
	if r.From != "" && r.To != "" && r.From > r.To {
		return fmt.Errorf("range start %s is after end %s", r.From, r.To)
	}
	return nil
}

type Report struct {
	Version   int64                   `json:"version"`
	Range     Range                   `json:"range"`
	Factors   []FactorEntry           `json:"factors"`
	Products  []MonthlyProductMetric  `json:"products"`
	Warnings  []ReconciliationWarning `json:"warnings,omitempty"`
	Bills     []BillEmissionMetric    `json:"bills"`
	Company   []CompanyEmissionMetric `json:"company"`
	Footprint []FootprintRow          `json:"footprint"`
	Trends    []TrendRow              `json:"trends"`
	KPI       CompanyKPI              `json:"kpi"`
}

type Pipeline struct {
	calc    *Calculator
	workers int
}

func NewPipeline(calc *Calculator, workers int) *Pipeline {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pipeline{calc: calc, workers: workers}
}

const cancelCheckEvery = 1024

// Compute derives every metric family from the snapshot. Records are
// calculated on independent workers whose partial aggregates are merged as
// they arrive; the merge order does not affect the result.
func (p *Pipeline) Compute(ctx context.Context, snap Snapshot, rng Range) (*Report, error) {
	if p.calc == nil {
		return nil, &ConfigurationError{Detail: "pipeline has no calculator"}
	}
	if err := rng.Validate(); err != nil {
		return nil, err
	}

	opChunks := chunk(len(snap.Operations), p.workers)
	billChunks := chunk(len(snap.Bills), p.workers)

	partials := make(chan *Partial, len(opChunks)+len(billChunks))
	errs := make(chan error, len(opChunks)+len(billChunks))
	var wg sync.WaitGroup

	for _, c := range opChunks {
		wg.Add(1)
		go func(rows []OperationRecord) {
			defer wg.Done()
			part := NewPartial()
			for i, rec := range rows {
				if i%cancelCheckEvery == 0 && ctx.Err() != nil {
					errs <- ctx.Err()
					return
				}
				e := p.calc.Operation(rec)
				if rng.Contains(e.Month) {
					part.AddOperation(e)
				}
			}
			partials <- part
		}(snap.Operations[c[0]:c[1]])
	}

	for _, c := range billChunks {
		wg.Add(1)
		go func(rows []UtilityBillRecord) {
			defer wg.Done()
			part := NewPartial()
			for i, rec := range rows {
				if i%cancelCheckEvery == 0 && ctx.Err() != nil {
					errs <- ctx.Err()
					return
				}
				e := p.calc.Bill(rec)
				if rng.Contains(e.Month) {
					part.AddBill(e)
				}
			}
			partials <- part
		}(snap.Bills[c[0]:c[1]])
	}

	wg.Wait()
	close(partials)
	close(errs)

	if err := <-errs; err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	total := NewPartial()
	for part := range partials {
		total.Merge(part)
	}

	products, warnings := total.Products(NewCatalogIndex(snap.Catalog))
	company := total.Company()

	return &Report{
		Version:   snap.Version,
		Range:     rng,
		Factors:   p.calc.Factors().Entries(),
		Products:  products,
		Warnings:  warnings,
		Bills:     total.Bills(),
		Company:   company,
		Footprint: Footprint(company),
		Trends:    total.Trends(),
		KPI:       KPI(company),
	}, nil
}

// chunk splits n items into at most parts contiguous [start, end) ranges.
func chunk(n, parts int) [][2]int {
	if n == 0 {
		return nil
	}
	if parts > n {
		parts = n
	}
	size := (n + parts - 1) / parts
	out := make([][2]int, 0, parts)
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		out = append(out, [2]int{start, end})
	}
	return out
}
