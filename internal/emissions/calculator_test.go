package emissions

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCalculator(t *testing.T) *Calculator {
	t.Helper()
	calc, err := NewCalculator(DefaultFactors())
	require.NoError(t, err)
	return calc
}

func TestCalculator_OperationScenario(t *testing.T) {
	calc := newTestCalculator(t)

	e := calc.Operation(OperationRecord{
		ProductID:   "p1",
		UnitsSold:   100,
		EnergyKWh:   40,
		TransportKM: 120,
		RecordDate:  time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
	})

	assert.Equal(t, "2026-01", e.Month)
	assert.Equal(t, "p1", e.ProductID)
	assert.Equal(t, int64(100), e.UnitsSold)
	assert.InDelta(t, 32.8, e.EnergyCO2, 1e-9)
	assert.InDelta(t, 6.3, e.TransportCO2, 1e-9)
	assert.InDelta(t, 39.1, e.TotalCO2, 1e-9)
	assert.Equal(t, e.EnergyCO2+e.TransportCO2, e.TotalCO2)
}

func TestCalculator_BillScenario(t *testing.T) {
	calc := newTestCalculator(t)

	e := calc.Bill(UtilityBillRecord{
		Month:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Region:   "india",
		BillType: "electricity",
		Units:    900,
	})

	assert.Equal(t, "2026-01", e.Month)
	assert.InDelta(t, 630.0, e.EstimatedCO2, 1e-9)
}

func TestCalculator_UnknownBillTypeContributesZero(t *testing.T) {
	calc := newTestCalculator(t)

	e := calc.Bill(UtilityBillRecord{
		Month:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Region:   "india",
		BillType: "unknown",
		Units:    12345,
	})

	assert.Equal(t, 0.0, e.EstimatedCO2)
}

func TestCalculator_Linearity(t *testing.T) {
	calc := newTestCalculator(t)
	date := time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)

	for _, energy := range []float64{0, 0.25, 1, 17.5, 1234.567} {
		for _, km := range []float64{0, 3, 99.9} {
			single := calc.Operation(OperationRecord{EnergyKWh: energy, TransportKM: km, RecordDate: date})
			double := calc.Operation(OperationRecord{EnergyKWh: 2 * energy, TransportKM: 2 * km, RecordDate: date})

			assert.Equal(t, single.EnergyCO2+single.TransportCO2, single.TotalCO2)
			assert.Equal(t, 2*single.EnergyCO2, double.EnergyCO2)
			assert.Equal(t, 2*single.TransportCO2, double.TransportCO2)
		}
	}
}

func TestNewCalculator_RejectsInvalidTables(t *testing.T) {
	missing := DefaultFactors()
	delete(missing, OperationsTransport)

	negative := DefaultFactors()
	negative[FactorKey{Category: CategoryUtility, Subcomponent: "fuel"}] = Factor{Value: -1}

	notANumber := DefaultFactors()
	notANumber[OperationsEnergy] = Factor{Value: math.NaN()}

	badCategory := DefaultFactors()
	badCategory[FactorKey{Category: "scope3", Subcomponent: "x"}] = Factor{Value: 1}

	for name, table := range map[string]FactorTable{
		"nil":          nil,
		"missing":      missing,
		"negative":     negative,
		"nan":          notANumber,
		"bad category": badCategory,
	} {
		t.Run(name, func(t *testing.T) {
			calc, err := NewCalculator(table)
			assert.Nil(t, calc)

			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr), "expected ConfigurationError, got %v", err)
		})
	}
}

func TestCalculator_IsolatedFromCallerTable(t *testing.T) {
	table := DefaultFactors()
	calc, err := NewCalculator(table)
	require.NoError(t, err)

	table[OperationsEnergy] = Factor{Value: 100}

	e := calc.Operation(OperationRecord{EnergyKWh: 1, RecordDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)})
	assert.Equal(t, 0.82, e.EnergyCO2)
}

func TestParseFactorTable(t *testing.T) {
	table, err := ParseFactorTable(" operations.energy=0.9, Utility.LPG = 1.5 ,")
	require.NoError(t, err)
	assert.Equal(t, FactorTable{
		OperationsEnergy: {Value: 0.9, Reference: DefaultReference},
		{Category: CategoryUtility, Subcomponent: "lpg"}: {Value: 1.5, Reference: DefaultReference},
	}, table)

	empty, err := ParseFactorTable("")
	require.NoError(t, err)
	assert.Empty(t, empty)

	for _, bad := range []string{"operations.energy", "energy=1", "operations.energy=abc"} {
		_, err := ParseFactorTable(bad)
		var cfgErr *ConfigurationError
		assert.True(t, errors.As(err, &cfgErr), bad)
	}
}

func TestFactorTable_FingerprintIsContentBased(t *testing.T) {
	a := DefaultFactors()
	b := DefaultFactors()
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	b[OperationsEnergy] = Factor{Value: 0.5, Reference: "Grid 2025"}
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}
