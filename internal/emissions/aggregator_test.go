package emissions

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCatalog = []CatalogEntry{
	{ProductID: "P1", ProductName: "Desk Lamp", Category: "Lighting"},
	{ProductID: "p2", ProductName: "Kettle", Category: "Kitchen"},
}

func TestAggregateProducts_SameProductMonthAdds(t *testing.T) {
	rows := []OperationEmission{
		{Month: "2026-01", ProductID: "p1", UnitsSold: 100, EnergyCO2: 32.8, TransportCO2: 6.3, TotalCO2: 39.1},
		{Month: "2026-01", ProductID: "p1", UnitsSold: 20, EnergyCO2: 8.2, TransportCO2: 1.05, TotalCO2: 9.25},
	}

	metrics, warnings := AggregateProducts(rows, testCatalog)
	require.Empty(t, warnings)
	require.Len(t, metrics, 1)

	m := metrics[0]
	assert.Equal(t, "2026-01", m.Month)
	assert.Equal(t, "p1", m.ProductID)
	assert.Equal(t, "Desk Lamp", m.ProductName)
	assert.Equal(t, "Lighting", m.Category)
	assert.Equal(t, int64(120), m.TotalUnits)
	assert.InDelta(t, 41.0, m.EnergyCO2, 1e-9)
	assert.InDelta(t, 7.35, m.TransportCO2, 1e-9)
	assert.InDelta(t, 39.1+9.25, m.TotalCO2, 1e-9)
}

func TestAggregateProducts_UnmatchedProductsWarn(t *testing.T) {
	rows := []OperationEmission{
		{Month: "2026-01", ProductID: "p2", UnitsSold: 1, TotalCO2: 1},
		{Month: "2026-01", ProductID: "ghost", UnitsSold: 1, TotalCO2: 5},
		{Month: "2026-01", ProductID: "ghost", UnitsSold: 1, TotalCO2: 5},
	}

	metrics, warnings := AggregateProducts(rows, testCatalog)
	require.Len(t, metrics, 1)
	assert.Equal(t, "p2", metrics[0].ProductID)

	assert.Equal(t, []ReconciliationWarning{
		{Kind: UnmatchedProductID, Month: "2026-01", ProductID: "ghost", Rows: 2},
	}, warnings)

	// unmatched rows stay in the company product branch
	company := CompanyEmissions(rows, nil)
	assert.Equal(t, []CompanyEmissionMetric{{Month: "2026-01", Source: SourceProduct, CO2: 11}}, company)
}

func TestAggregateBills(t *testing.T) {
	rows := []BillEmission{
		{Month: "2026-02", Region: "india", BillType: "fuel", EstimatedCO2: 26},
		{Month: "2026-01", Region: "india", BillType: "electricity", EstimatedCO2: 630},
		{Month: "2026-01", Region: "india", BillType: "electricity", EstimatedCO2: 70},
		{Month: "2026-01", Region: "eu", BillType: "electricity", EstimatedCO2: 7},
	}

	assert.Equal(t, []BillEmissionMetric{
		{Month: "2026-01", Region: "eu", BillType: "electricity", EstimatedCO2: 7},
		{Month: "2026-01", Region: "india", BillType: "electricity", EstimatedCO2: 700},
		{Month: "2026-02", Region: "india", BillType: "fuel", EstimatedCO2: 26},
	}, AggregateBills(rows))
}

func TestCompanyEmissions_FootprintTrendsKPI(t *testing.T) {
	ops := []OperationEmission{
		{Month: "2026-01", ProductID: "p1", UnitsSold: 10, TotalCO2: 40},
		{Month: "2026-03", ProductID: "p1", UnitsSold: 0, TotalCO2: 2},
	}
	bills := []BillEmission{
		{Month: "2026-01", Region: "india", BillType: "electricity", EstimatedCO2: 630},
		{Month: "2026-02", Region: "india", BillType: "fuel", EstimatedCO2: 26},
	}

	company := CompanyEmissions(ops, bills)
	assert.Equal(t, []CompanyEmissionMetric{
		{Month: "2026-01", Source: SourceProduct, CO2: 40},
		{Month: "2026-01", Source: SourceUtility, CO2: 630},
		{Month: "2026-02", Source: SourceUtility, CO2: 26},
		{Month: "2026-03", Source: SourceProduct, CO2: 2},
	}, company)

	assert.Equal(t, []FootprintRow{
		{Month: "2026-01", ProductCO2: 40, UtilityCO2: 630, TotalCO2: 670},
		{Month: "2026-02", ProductCO2: 0, UtilityCO2: 26, TotalCO2: 26},
		{Month: "2026-03", ProductCO2: 2, UtilityCO2: 0, TotalCO2: 2},
	}, Footprint(company))

	assert.Equal(t, CompanyKPI{TotalCompanyCO2: 698}, KPI(company))

	p := NewPartial()
	for _, o := range ops {
		p.AddOperation(o)
	}
	assert.Equal(t, []TrendRow{
		{Month: "2026-01", TotalCO2: 40, TotalUnits: 10, CO2PerUnit: 4},
		{Month: "2026-03", TotalCO2: 2, TotalUnits: 0, CO2PerUnit: 0},
	}, p.Trends())
}

func TestAggregation_IsOrderIndependent(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	var ops []OperationEmission
	var bills []BillEmission
	for i := 0; i < 500; i++ {
		e := rng.Float64() * 1000
		tr := rng.Float64() * 3
		ops = append(ops, OperationEmission{
			Month:        []string{"2026-01", "2026-02"}[i%2],
			ProductID:    []string{"p1", "p2", "ghost"}[i%3],
			UnitsSold:    int64(i),
			EnergyCO2:    e,
			TransportCO2: tr,
			TotalCO2:     e + tr,
		})
		bills = append(bills, BillEmission{
			Month:        []string{"2026-01", "2026-02"}[i%2],
			Region:       "india",
			BillType:     []string{"electricity", "fuel"}[i%2],
			EstimatedCO2: rng.Float64() * 1e6,
		})
	}

	wantProducts, wantWarnings := AggregateProducts(ops, testCatalog)
	wantBills := AggregateBills(bills)
	wantCompany := CompanyEmissions(ops, bills)

	for round := 0; round < 5; round++ {
		rng.Shuffle(len(ops), func(i, j int) { ops[i], ops[j] = ops[j], ops[i] })
		rng.Shuffle(len(bills), func(i, j int) { bills[i], bills[j] = bills[j], bills[i] })

		gotProducts, gotWarnings := AggregateProducts(ops, testCatalog)
		assert.Equal(t, wantProducts, gotProducts)
		assert.Equal(t, wantWarnings, gotWarnings)
		assert.Equal(t, wantBills, AggregateBills(bills))
		assert.Equal(t, wantCompany, CompanyEmissions(ops, bills))
	}
}

func TestPartial_MergeMatchesSinglePass(t *testing.T) {
	ops := []OperationEmission{
		{Month: "2026-01", ProductID: "p1", UnitsSold: 1, EnergyCO2: 0.1, TransportCO2: 0.2, TotalCO2: 0.30000000000000004},
		{Month: "2026-01", ProductID: "p1", UnitsSold: 2, EnergyCO2: 1e16, TransportCO2: 0, TotalCO2: 1e16},
		{Month: "2026-01", ProductID: "p1", UnitsSold: 3, EnergyCO2: 1, TransportCO2: 0, TotalCO2: 1},
		{Month: "2026-01", ProductID: "p2", UnitsSold: 4, EnergyCO2: -0, TransportCO2: 7, TotalCO2: 7},
	}

	single := NewPartial()
	for _, o := range ops {
		single.AddOperation(o)
	}

	left, right := NewPartial(), NewPartial()
	left.AddOperation(ops[2])
	left.AddOperation(ops[3])
	right.AddOperation(ops[1])
	right.AddOperation(ops[0])
	right.Merge(left)

	idx := NewCatalogIndex(testCatalog)
	wantProducts, _ := single.Products(idx)
	gotProducts, _ := right.Products(idx)
	assert.Equal(t, wantProducts, gotProducts)
	assert.Equal(t, single.Company(), right.Company())
	assert.Equal(t, single.Trends(), right.Trends())
}

func TestNewCatalogIndex_NormalizesKeys(t *testing.T) {
	idx := NewCatalogIndex([]CatalogEntry{
		{ProductID: " p1", ProductName: "second"},
		{ProductID: "P1", ProductName: "first"},
	})

	require.Len(t, idx, 1)
	assert.Equal(t, "second", idx["p1"].ProductName)
}
