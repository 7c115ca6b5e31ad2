package emissions

// Calculator applies a validated factor table to normalized records. It has
// no error paths once constructed: bill types without a factor contribute
// zero.
type Calculator struct {
	factors FactorTable
}

func NewCalculator(factors FactorTable) (*Calculator, error) {
	if err := factors.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{factors: factors.Clone()}, nil
}

func (c *Calculator) Factors() FactorTable {
	return c.factors.Clone()
}

func (c *Calculator) Operation(rec OperationRecord) OperationEmission {
	energy := rec.EnergyKWh * c.factors.Lookup(OperationsEnergy).Value
	transport := rec.TransportKM * c.factors.Lookup(OperationsTransport).Value

	return OperationEmission{
		Month:        FormatMonth(rec.RecordDate),
		ProductID:    rec.ProductID,
		UnitsSold:    rec.UnitsSold,
		EnergyCO2:    energy,
		TransportCO2: transport,
		TotalCO2:     energy + transport,
	}
}

func (c *Calculator) Bill(rec UtilityBillRecord) BillEmission {
	factor := c.factors.Lookup(FactorKey{Category: CategoryUtility, Subcomponent: rec.BillType})

	return BillEmission{
		Month:        FormatMonth(rec.Month),
		Region:       rec.Region,
		BillType:     rec.BillType,
		EstimatedCO2: rec.Units * factor.Value,
	}
}
