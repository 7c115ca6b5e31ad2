package emissions

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

type fieldKind int

const (
	kindKey fieldKind = iota
	kindInt
	kindFloat
	kindDate
	kindMonth
)

type Field struct {
	Name     string
	Kind     fieldKind
	Optional bool
}

type Schema struct {
	Category Category
	Fields   []Field
}

var OperationsSchema = Schema{
	Category: CategoryOperations,
	Fields: []Field{
		{Name: "product_id", Kind: kindKey},
		{Name: "units_sold", Kind: kindInt},
		{Name: "energy_kwh", Kind: kindFloat, Optional: true},
		{Name: "transport_km", Kind: kindFloat, Optional: true},
		{Name: "record_date", Kind: kindDate},
	},
}

var UtilitySchema = Schema{
	Category: CategoryUtility,
	Fields: []Field{
		{Name: "month", Kind: kindMonth},
		{Name: "region", Kind: kindKey},
		{Name: "bill_type", Kind: kindKey},
		{Name: "units", Kind: kindFloat},
		{Name: "amount", Kind: kindFloat, Optional: true},
	},
}

func SchemaFor(c Category) (Schema, bool) {
	switch c {
	case CategoryOperations:
		return OperationsSchema, true
	case CategoryUtility:
		return UtilitySchema, true
	}
	return Schema{}, false
}

// Required lists the columns a batch header must contain.
func (s Schema) Required() []string {
	cols := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		if !f.Optional {
			cols = append(cols, f.Name)
		}
	}
	return cols
}

func (s Schema) Columns() []string {
	cols := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		cols[i] = f.Name
	}
	return cols
}

type Rejection struct {
	Row   RawRow           `json:"row"`
	Error *ValidationError `json:"error"`
}

type ValidationResult struct {
	Category   Category            `json:"category"`
	Operations []OperationRecord   `json:"operations,omitempty"`
	Bills      []UtilityBillRecord `json:"bills,omitempty"`
	Rejected   []Rejection         `json:"rejected,omitempty"`
}

func (r ValidationResult) Accepted() int {
	return len(r.Operations) + len(r.Bills)
}

type BatchSummary struct {
	Total    int                  `json:"total"`
	Accepted int                  `json:"accepted"`
	Rejected int                  `json:"rejected"`
	Reasons  map[RejectReason]int `json:"reasons,omitempty"`
}

// Status derives the upload status: any rejection makes the batch partial,
// and a batch with nothing accepted failed.
func (s BatchSummary) Status() UploadStatus {
	switch {
	case s.Accepted == 0:
		return UploadFailed
	case s.Rejected > 0:
		return UploadPartial
	default:
		return UploadSuccess
	}
}

func (r ValidationResult) Summary() BatchSummary {
	sum := BatchSummary{
		Accepted: r.Accepted(),
		Rejected: len(r.Rejected),
	}
	sum.Total = sum.Accepted + sum.Rejected
	if sum.Rejected > 0 {
		sum.Reasons = make(map[RejectReason]int)
		for _, rej := range r.Rejected {
			sum.Reasons[rej.Error.Reason]++
		}
	}
	return sum
}

type fieldValue struct {
	key string
	i   int64
	f   float64
	t   time.Time
}

// Validate turns raw rows of the declared category into typed records. It
// never fails as a whole: every row is either accepted or rejected with a
// reason.
func Validate(category Category, rows []RawRow) ValidationResult {
	result := ValidationResult{Category: category}

	schema, ok := SchemaFor(category)
	if !ok {
		for _, row := range rows {
			result.Rejected = append(result.Rejected, Rejection{
				Row: row,
				Error: &ValidationError{
					Line:   row.Line,
					Reason: UnknownCategory,
					Detail: fmt.Sprintf("category %q is not one of operations, utility", category),
				},
			})
		}
		return result
	}

	for _, row := range rows {
		if row.Shape != nil {
			result.Rejected = append(result.Rejected, Rejection{Row: row, Error: row.Shape})
			continue
		}
		values, verr := schema.parse(row)
		if verr != nil {
			result.Rejected = append(result.Rejected, Rejection{Row: row, Error: verr})
			continue
		}

		switch category {
		case CategoryOperations:
			result.Operations = append(result.Operations, OperationRecord{
				ProductID:   values["product_id"].key,
				UnitsSold:   values["units_sold"].i,
				EnergyKWh:   values["energy_kwh"].f,
				TransportKM: values["transport_km"].f,
				RecordDate:  values["record_date"].t,
			})
		case CategoryUtility:
			result.Bills = append(result.Bills, UtilityBillRecord{
				Month:    values["month"].t,
				Region:   values["region"].key,
				BillType: values["bill_type"].key,
				Units:    values["units"].f,
				Amount:   values["amount"].f,
			})
		}
	}

	return result
}

func (s Schema) parse(row RawRow) (map[string]fieldValue, *ValidationError) {
	values := make(map[string]fieldValue, len(s.Fields))

	for _, field := range s.Fields {
		raw, _ := row.Get(field.Name)
		raw = strings.TrimSpace(raw)

		if raw == "" {
			if field.Optional {
				values[field.Name] = fieldValue{}
				continue
			}
			return nil, &ValidationError{Line: row.Line, Field: field.Name, Reason: MissingField, Detail: "value is required"}
		}

		v, reason, detail := parseValue(field.Kind, raw)
		if reason != "" {
			return nil, &ValidationError{Line: row.Line, Field: field.Name, Reason: reason, Detail: detail}
		}
		values[field.Name] = v
	}

	return values, nil
}

func parseValue(kind fieldKind, raw string) (fieldValue, RejectReason, string) {
	switch kind {
	case kindKey:
		key := NormalizeKey(raw)
		if key == "" {
			return fieldValue{}, MissingField, "value is required"
		}
		return fieldValue{key: key}, "", ""

	case kindInt:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fieldValue{}, TypeMismatch, fmt.Sprintf("%q is not an integer", raw)
		}
		if n < 0 {
			return fieldValue{}, NegativeValue, fmt.Sprintf("%d is negative", n)
		}
		return fieldValue{i: n}, "", ""

	case kindFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return fieldValue{}, TypeMismatch, fmt.Sprintf("%q is not a number", raw)
		}
		if f < 0 {
			return fieldValue{}, NegativeValue, fmt.Sprintf("%s is negative", raw)
		}
		return fieldValue{f: f}, "", ""

	case kindDate:
		t, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return fieldValue{}, UnparsableDate, fmt.Sprintf("%q is not a YYYY-MM-DD date", raw)
		}
		return fieldValue{t: t}, "", ""

	case kindMonth:
		t, err := ParseMonth(raw)
		if err != nil {
			return fieldValue{}, UnparsableDate, err.Error()
		}
		return fieldValue{t: t}, "", ""
	}

	return fieldValue{}, TypeMismatch, "unsupported field kind"
}

// ParseMonth accepts YYYY-MM or YYYY-MM-DD and returns the first day of that
// month.
func ParseMonth(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return FirstOfMonth(t), nil
	}
	if t, err := time.Parse(MonthLayout, raw); err == nil {
		return FirstOfMonth(t), nil
	}
	return time.Time{}, fmt.Errorf("%q is not a YYYY-MM or YYYY-MM-DD month", raw)
}
