package emissions

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot(n int) Snapshot {
	snap := Snapshot{Version: 7, Catalog: testCatalog}
	for i := 0; i < n; i++ {
		snap.Operations = append(snap.Operations, OperationRecord{
			ProductID:   []string{"p1", "p2", "ghost"}[i%3],
			UnitsSold:   int64(i%17 + 1),
			EnergyKWh:   float64(i%13) * 1.1,
			TransportKM: float64(i%7) * 10.3,
			RecordDate:  time.Date(2026, time.Month(i%4+1), i%28+1, 0, 0, 0, 0, time.UTC),
		})
		snap.Bills = append(snap.Bills, UtilityBillRecord{
			Month:    time.Date(2026, time.Month(i%4+1), 1, 0, 0, 0, 0, time.UTC),
			Region:   []string{"india", "eu"}[i%2],
			BillType: []string{"electricity", "fuel", "courier", "water"}[i%4],
			Units:    float64(i%23) * 3.7,
		})
	}
	return snap
}

func TestPipeline_ScenarioFromRawRows(t *testing.T) {
	ops := Validate(CategoryOperations, []RawRow{opRow(2, "P1", "100", "40", "120", "2026-01-10")})
	bills := Validate(CategoryUtility, []RawRow{billRow(2, "2026-01-01", "India", "electricity", "900")})

	p := NewPipeline(newTestCalculator(t), 2)
	report, err := p.Compute(context.Background(), Snapshot{
		Version:    1,
		Operations: ops.Operations,
		Bills:      bills.Bills,
		Catalog:    testCatalog,
	}, Range{})
	require.NoError(t, err)

	require.Len(t, report.Products, 1)
	assert.InDelta(t, 39.1, report.Products[0].TotalCO2, 1e-9)
	require.Len(t, report.Bills, 1)
	assert.InDelta(t, 630.0, report.Bills[0].EstimatedCO2, 1e-9)
	require.Len(t, report.Footprint, 1)
	assert.InDelta(t, 669.1, report.Footprint[0].TotalCO2, 1e-9)
	assert.InDelta(t, 669.1, report.KPI.TotalCompanyCO2, 1e-9)
	assert.Equal(t, int64(1), report.Version)
	assert.Len(t, report.Factors, len(DefaultFactors()))
}

func TestPipeline_IsIdempotent(t *testing.T) {
	snap := testSnapshot(3000)
	p := NewPipeline(newTestCalculator(t), 4)

	first, err := p.Compute(context.Background(), snap, Range{})
	require.NoError(t, err)
	second, err := p.Compute(context.Background(), snap, Range{})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestPipeline_WorkerCountDoesNotChangeResult(t *testing.T) {
	snap := testSnapshot(2500)
	calc := newTestCalculator(t)

	want, err := NewPipeline(calc, 1).Compute(context.Background(), snap, Range{})
	require.NoError(t, err)

	for _, workers := range []int{2, 3, 8, 64} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			got, err := NewPipeline(calc, workers).Compute(context.Background(), snap, Range{})
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestPipeline_MatchesSequentialAggregation(t *testing.T) {
	snap := testSnapshot(400)
	calc := newTestCalculator(t)

	var ops []OperationEmission
	for _, rec := range snap.Operations {
		ops = append(ops, calc.Operation(rec))
	}
	var bills []BillEmission
	for _, rec := range snap.Bills {
		bills = append(bills, calc.Bill(rec))
	}
	wantProducts, wantWarnings := AggregateProducts(ops, snap.Catalog)

	report, err := NewPipeline(calc, 5).Compute(context.Background(), snap, Range{})
	require.NoError(t, err)

	assert.Equal(t, wantProducts, report.Products)
	assert.Equal(t, wantWarnings, report.Warnings)
	assert.Equal(t, AggregateBills(bills), report.Bills)
	assert.Equal(t, CompanyEmissions(ops, bills), report.Company)
}

func TestPipeline_RangeFilter(t *testing.T) {
	snap := testSnapshot(200)
	report, err := NewPipeline(newTestCalculator(t), 3).Compute(context.Background(), snap, Range{From: "2026-02", To: "2026-03"})
	require.NoError(t, err)

	require.NotEmpty(t, report.Company)
	for _, c := range report.Company {
		assert.Contains(t, []string{"2026-02", "2026-03"}, c.Month)
	}
	for _, f := range report.Footprint {
		assert.Contains(t, []string{"2026-02", "2026-03"}, f.Month)
	}
}

func TestPipeline_InvalidRange(t *testing.T) {
	p := NewPipeline(newTestCalculator(t), 1)

	_, err := p.Compute(context.Background(), Snapshot{}, Range{From: "2026-05", To: "2026-01"})
	assert.Error(t, err)

	_, err = p.Compute(context.Background(), Snapshot{}, Range{From: "May"})
	assert.Error(t, err)
}

func TestPipeline_EmptySnapshot(t *testing.T) {
	report, err := NewPipeline(newTestCalculator(t), 4).Compute(context.Background(), Snapshot{}, Range{})
	require.NoError(t, err)

	assert.Empty(t, report.Products)
	assert.Empty(t, report.Bills)
	assert.Empty(t, report.Company)
	assert.Zero(t, report.KPI.TotalCompanyCO2)
}

func TestPipeline_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPipeline(newTestCalculator(t), 2).Compute(ctx, testSnapshot(100), Range{})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestPipeline_RequiresCalculator(t *testing.T) {
	_, err := NewPipeline(nil, 1).Compute(context.Background(), Snapshot{}, Range{})

	var cfgErr *ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestChunk(t *testing.T) {
	assert.Nil(t, chunk(0, 4))
	assert.Equal(t, [][2]int{{0, 1}, {1, 2}}, chunk(2, 8))
	assert.Equal(t, [][2]int{{0, 4}, {4, 8}, {8, 10}}, chunk(10, 3))
}
