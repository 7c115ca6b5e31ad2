package reporting

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/farxc/carbon_footprint/internal/cache"
	"github.com/farxc/carbon_footprint/internal/emissions"
	"github.com/farxc/carbon_footprint/internal/logger"
	"github.com/farxc/carbon_footprint/internal/store"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSnapshots struct {
	snap  emissions.Snapshot
	loads int
}

func (f *fakeSnapshots) Version(context.Context) (int64, error) { return f.snap.Version, nil }

func (f *fakeSnapshots) Load(_ context.Context, rng emissions.Range) (emissions.Snapshot, error) {
	f.loads++
	return f.snap, nil
}

func (f *fakeSnapshots) write(op emissions.OperationRecord) {
	f.snap.Operations = append(f.snap.Operations, op)
	f.snap.Version++
}

type fakeFactors struct {
	rows map[string][]store.EmissionFactor
	err  error
}

func (f *fakeFactors) Latest(_ context.Context, region string, _ []string) ([]store.EmissionFactor, error) {
	return f.rows[region], f.err
}

func seedSnapshot() *fakeSnapshots {
	return &fakeSnapshots{snap: emissions.Snapshot{
		Version: 1,
		Operations: []emissions.OperationRecord{
			{ProductID: "p1", UnitsSold: 100, EnergyKWh: 40, TransportKM: 120, RecordDate: time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)},
			{ProductID: "ghost", UnitsSold: 1, EnergyKWh: 1, RecordDate: time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)},
		},
		Bills: []emissions.UtilityBillRecord{
			{Month: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Region: "india", BillType: "electricity", Units: 900},
		},
		Catalog: []emissions.CatalogEntry{{ProductID: "P1", ProductName: "Desk Lamp", Category: "Lighting"}},
	}}
}

func newRedisCache(t *testing.T) *cache.Reports {
	t.Helper()
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return cache.New(rdb, time.Hour)
}

func TestReport_ScenarioTotals(t *testing.T) {
	snaps := seedSnapshot()
	svc, err := NewService(snaps, nil, nil, nil, logger.NewNop(), Config{Workers: 2})
	require.NoError(t, err)

	report, err := svc.Report(context.Background(), emissions.Range{})
	require.NoError(t, err)

	require.Len(t, report.Products, 1)
	assert.InDelta(t, 39.1, report.Products[0].TotalCO2, 1e-9)
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, "ghost", report.Warnings[0].ProductID)
	assert.InDelta(t, 630.0, report.Bills[0].EstimatedCO2, 1e-9)
	assert.InDelta(t, 39.1+630+0.82, report.KPI.TotalCompanyCO2, 1e-9)
}

func TestReport_CachedEqualsRecomputed(t *testing.T) {
	snaps := seedSnapshot()
	cached, err := NewService(snaps, nil, newRedisCache(t), nil, logger.NewNop(), Config{Workers: 3})
	require.NoError(t, err)
	uncached, err := NewService(snaps, nil, nil, nil, logger.NewNop(), Config{Workers: 1})
	require.NoError(t, err)

	ctx := context.Background()
	rng := emissions.Range{From: "2026-01", To: "2026-12"}

	first, err := cached.Report(ctx, rng)
	require.NoError(t, err)
	second, err := cached.Report(ctx, rng)
	require.NoError(t, err)
	assert.Equal(t, 1, snaps.loads)
	assert.Equal(t, first, second)

	fresh, err := uncached.Report(ctx, rng)
	require.NoError(t, err)
	assert.Equal(t, fresh, second)

	// a write bumps the version; the cache must not serve the old report
	snaps.write(emissions.OperationRecord{ProductID: "p1", UnitsSold: 1, EnergyKWh: 10, RecordDate: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)})

	afterWrite, err := cached.Report(ctx, rng)
	require.NoError(t, err)
	freshAfterWrite, err := uncached.Report(ctx, rng)
	require.NoError(t, err)
	assert.Equal(t, freshAfterWrite, afterWrite)
	assert.NotEqual(t, first.KPI, afterWrite.KPI)
}

func TestFactors_ReferenceTableOverridesBase(t *testing.T) {
	factors := &fakeFactors{rows: map[string][]store.EmissionFactor{
		"India":  {{Region: "India", ActivityType: "electricity", Year: 2025, Factor: 0.71, Reference: "CEA 2025"}},
		"Global": {{Region: "Global", ActivityType: "freight_truck", Year: 2024, Factor: 0}},
	}}
	svc, err := NewService(seedSnapshot(), factors, nil, nil, logger.NewNop(), Config{Region: "India"})
	require.NoError(t, err)

	table, err := svc.Factors(context.Background())
	require.NoError(t, err)

	assert.Equal(t, emissions.Factor{Value: 0.71, Reference: "CEA 2025"}, table[emissions.OperationsEnergy])
	// a zero reference factor falls back to the base value
	assert.Equal(t, emissions.Factor{Value: 0.0525, Reference: emissions.DefaultReference}, table[emissions.OperationsTransport])
}

func TestFactors_SourceError(t *testing.T) {
	svc, err := NewService(seedSnapshot(), &fakeFactors{err: errors.New("db down")}, nil, nil, logger.NewNop(), Config{Region: "India"})
	require.NoError(t, err)

	_, err = svc.Report(context.Background(), emissions.Range{})
	assert.ErrorContains(t, err, "db down")
}

func TestReport_InvalidRange(t *testing.T) {
	svc, err := NewService(seedSnapshot(), nil, nil, nil, logger.NewNop(), Config{})
	require.NoError(t, err)

	_, err = svc.Report(context.Background(), emissions.Range{From: "2026-06", To: "2026-01"})
	var rangeErr *RangeError
	assert.True(t, errors.As(err, &rangeErr))
}

func TestNewService_RejectsInvalidBase(t *testing.T) {
	base := emissions.DefaultFactors()
	delete(base, emissions.OperationsEnergy)

	_, err := NewService(seedSnapshot(), nil, nil, nil, logger.NewNop(), Config{Base: base})
	var cfgErr *emissions.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestBaseFactorsFromEnv(t *testing.T) {
	t.Setenv("FACTOR_UTILITY_FUEL", "2.8")
	t.Setenv("EMISSION_FACTORS_EXTRA", "utility.lpg=1.5")

	table, err := BaseFactorsFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 2.8, table[emissions.FactorKey{Category: emissions.CategoryUtility, Subcomponent: "fuel"}].Value)
	assert.Equal(t, 1.5, table[emissions.FactorKey{Category: emissions.CategoryUtility, Subcomponent: "lpg"}].Value)
	assert.Equal(t, 0.82, table[emissions.OperationsEnergy].Value)

	t.Setenv("FACTOR_OPERATIONS_ENERGY", "-1")
	_, err = BaseFactorsFromEnv()
	var cfgErr *emissions.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestRegionFromEnv(t *testing.T) {
	t.Setenv("REGION", "Brazil")
	assert.Equal(t, "Brazil", RegionFromEnv())

	t.Setenv("REGION", "")
	assert.Equal(t, "", RegionFromEnv())

	os.Unsetenv("REGION")
	assert.Equal(t, DefaultRegion, RegionFromEnv())
}
