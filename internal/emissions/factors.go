package emissions

import (
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"strconv"
	"strings"
)

const (
	SubcomponentEnergy    = "energy"
	SubcomponentTransport = "transport"

	DefaultReference = "Default"
)

type FactorKey struct {
	Category     Category
	Subcomponent string
}

func (k FactorKey) String() string {
	return string(k.Category) + "." + k.Subcomponent
}

type Factor struct {
	Value     float64 `json:"value"`
	Reference string  `json:"reference"`
}

// FactorTable converts physical measures into kg CO2. Utility
// subcomponents are normalized bill types.
type FactorTable map[FactorKey]Factor

var (
	OperationsEnergy    = FactorKey{Category: CategoryOperations, Subcomponent: SubcomponentEnergy}
	OperationsTransport = FactorKey{Category: CategoryOperations, Subcomponent: SubcomponentTransport}
)

func DefaultFactors() FactorTable {
	return FactorTable{
		OperationsEnergy:    {Value: 0.82, Reference: DefaultReference},
		OperationsTransport: {Value: 0.0525, Reference: DefaultReference},
		{Category: CategoryUtility, Subcomponent: "electricity"}: {Value: 0.7, Reference: DefaultReference},
		{Category: CategoryUtility, Subcomponent: "fuel"}:        {Value: 2.6, Reference: DefaultReference},
		{Category: CategoryUtility, Subcomponent: "courier"}:     {Value: 0.05, Reference: DefaultReference},
	}
}

func (t FactorTable) Validate() error {
	if t == nil {
		return &ConfigurationError{Detail: "factor table is nil"}
	}
	for _, required := range []FactorKey{OperationsEnergy, OperationsTransport} {
		if _, ok := t[required]; !ok {
			return &ConfigurationError{Key: required.String(), Detail: "factor is missing"}
		}
	}
	for k, f := range t {
		if k.Category != CategoryOperations && k.Category != CategoryUtility {
			return &ConfigurationError{Key: k.String(), Detail: "unknown category"}
		}
		if k.Subcomponent == "" {
			return &ConfigurationError{Key: k.String(), Detail: "empty subcomponent"}
		}
		if math.IsNaN(f.Value) || math.IsInf(f.Value, 0) || f.Value < 0 {
			return &ConfigurationError{Key: k.String(), Detail: fmt.Sprintf("factor %v must be a finite non-negative number", f.Value)}
		}
	}
	return nil
}

// Lookup returns the factor for key. Unknown keys yield a zero factor.
func (t FactorTable) Lookup(key FactorKey) Factor {
	return t[key]
}

func (t FactorTable) Clone() FactorTable {
	out := make(FactorTable, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Merge returns a copy of t with every entry of override applied on top.
func (t FactorTable) Merge(override FactorTable) FactorTable {
	out := t.Clone()
	for k, v := range override {
		out[k] = v
	}
	return out
}

func (t FactorTable) Keys() []FactorKey {
	keys := make([]FactorKey, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

// Fingerprint identifies the table contents; equal tables share a
// fingerprint regardless of map iteration order.
func (t FactorTable) Fingerprint() string {
	h := fnv.New64a()
	for _, k := range t.Keys() {
		fmt.Fprintf(h, "%s=%s|%s;", k, strconv.FormatFloat(t[k].Value, 'g', -1, 64), t[k].Reference)
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

// ParseFactorTable reads the "category.subcomponent=value" comma separated
// override format, e.g. "operations.energy=0.82,utility.lpg=1.5".
func ParseFactorTable(s string) (FactorTable, error) {
	table := FactorTable{}
	if strings.TrimSpace(s) == "" {
		return table, nil
	}

	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, rawValue, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, &ConfigurationError{Key: pair, Detail: "expected category.subcomponent=value"}
		}
		category, sub, ok := strings.Cut(strings.TrimSpace(name), ".")
		if !ok || sub == "" {
			return nil, &ConfigurationError{Key: name, Detail: "expected category.subcomponent"}
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(rawValue), 64)
		if err != nil {
			return nil, &ConfigurationError{Key: name, Detail: fmt.Sprintf("%q is not a number", rawValue)}
		}
		key := FactorKey{Category: Category(NormalizeKey(category)), Subcomponent: NormalizeKey(sub)}
		table[key] = Factor{Value: value, Reference: DefaultReference}
	}

	return table, nil
}

type FactorEntry struct {
	Category     Category `json:"category"`
	Subcomponent string   `json:"subcomponent"`
	Value        float64  `json:"value"`
	Reference    string   `json:"reference"`
}

// Entries flattens the table into a stable, serializable list.
func (t FactorTable) Entries() []FactorEntry {
	keys := t.Keys()
	out := make([]FactorEntry, len(keys))
	for i, k := range keys {
		out[i] = FactorEntry{
			Category:     k.Category,
			Subcomponent: k.Subcomponent,
			Value:        t[k].Value,
			Reference:    t[k].Reference,
		}
	}
	return out
}
