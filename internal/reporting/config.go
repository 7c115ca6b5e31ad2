package reporting

import (
	"github.com/farxc/carbon_footprint/internal/emissions"
	"github.com/farxc/carbon_footprint/internal/env"
)

// DefaultRegion picks the regional electricity reference factor when REGION
// is unset. Setting REGION to an empty value disables the regional lookup.
const DefaultRegion = "India"

func RegionFromEnv() string {
	return env.GetString("REGION", DefaultRegion)
}

var factorEnv = map[string]emissions.FactorKey{
	"FACTOR_OPERATIONS_ENERGY":    emissions.OperationsEnergy,
	"FACTOR_OPERATIONS_TRANSPORT": emissions.OperationsTransport,
	"FACTOR_UTILITY_ELECTRICITY":  {Category: emissions.CategoryUtility, Subcomponent: "electricity"},
	"FACTOR_UTILITY_FUEL":         {Category: emissions.CategoryUtility, Subcomponent: "fuel"},
	"FACTOR_UTILITY_COURIER":      {Category: emissions.CategoryUtility, Subcomponent: "courier"},
}

// BaseFactorsFromEnv starts from the default table and applies the
// FACTOR_* variables, then EMISSION_FACTORS_EXTRA. The result is
// validated.
func BaseFactorsFromEnv() (emissions.FactorTable, error) {
	table := emissions.DefaultFactors()

	for name, key := range factorEnv {
		value, ok, err := env.LookupFloat(name)
		if err != nil {
			return nil, &emissions.ConfigurationError{Key: name, Detail: "not a number"}
		}
		if ok {
			table[key] = emissions.Factor{Value: value, Reference: "Config"}
		}
	}

	extra, err := emissions.ParseFactorTable(env.GetString("EMISSION_FACTORS_EXTRA", ""))
	if err != nil {
		return nil, err
	}
	table = table.Merge(extra)

	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}
