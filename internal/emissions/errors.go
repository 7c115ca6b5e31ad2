package emissions

import (
	"fmt"
)

type RejectReason string

const (
	MissingField    RejectReason = "MissingField"
	TypeMismatch    RejectReason = "TypeMismatch"
	NegativeValue   RejectReason = "NegativeValue"
	UnparsableDate  RejectReason = "UnparsableDate"
	UnknownCategory RejectReason = "UnknownCategory"
)

// ValidationError describes why a single row was rejected. It is
// recoverable: the row is excluded and the batch continues.
type ValidationError struct {
	Line   int          `json:"line"`
	Field  string       `json:"field,omitempty"`
	Reason RejectReason `json:"reason"`
	Detail string       `json:"detail,omitempty"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("line %d: %s: %s", e.Line, e.Reason, e.Detail)
	}
	return fmt.Sprintf("line %d: field %q: %s: %s", e.Line, e.Field, e.Reason, e.Detail)
}

// ConfigurationError is fatal to the calculation stage.
type ConfigurationError struct {
	Key    string
	Detail string
}

func (e *ConfigurationError) Error() string {
	if e.Key == "" {
		return "invalid emission factor configuration: " + e.Detail
	}
	return fmt.Sprintf("invalid emission factor configuration: %s: %s", e.Key, e.Detail)
}

type WarningKind string

const (
	UnmatchedProductID WarningKind = "UnmatchedProductId"
)

// ReconciliationWarning flags rows that were left out of one metric
// because a reference key did not resolve.
type ReconciliationWarning struct {
	Kind      WarningKind `json:"kind"`
	Month     string      `json:"month"`
	ProductID string      `json:"product_id"`
	Rows      int         `json:"rows"`
}

func (w ReconciliationWarning) String() string {
	return fmt.Sprintf("%s: product_id=%s month=%s rows=%d", w.Kind, w.ProductID, w.Month, w.Rows)
}
