package emissions

import (
	"time"
)

type Category string

const (
	CategoryOperations Category = "operations"
	CategoryUtility    Category = "utility"
)

// Source tags a company emission row with the branch it came from.
type Source string

const (
	SourceProduct Source = "product"
	SourceUtility Source = "utility"
)

const MonthLayout = "2006-01"

// RawRow is one parsed but untyped input row. Fields are keyed by the
// normalized column header.
type RawRow struct {
	Line   int               `json:"line"`
	Fields map[string]string `json:"fields"`
	// Shape is set by readers when the line's field count does not match
	// the header. The row is rejected with it as is.
	Shape *ValidationError `json:"shape,omitempty"`
}

func (r RawRow) Get(col string) (string, bool) {
	v, ok := r.Fields[col]
	return v, ok
}

type OperationRecord struct {
	ProductID   string    `json:"product_id"`
	UnitsSold   int64     `json:"units_sold"`
	EnergyKWh   float64   `json:"energy_kwh"`
	TransportKM float64   `json:"transport_km"`
	RecordDate  time.Time `json:"record_date"`
}

type UtilityBillRecord struct {
	Month    time.Time `json:"month"`
	Region   string    `json:"region"`
	BillType string    `json:"bill_type"`
	Units    float64   `json:"units"`
	Amount   float64   `json:"amount"`
}

type CatalogEntry struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Category    string `json:"category"`
}

type UploadStatus string

const (
	UploadSuccess UploadStatus = "success"
	UploadPartial UploadStatus = "partial"
	UploadFailed  UploadStatus = "failed"
)

type UploadLogEntry struct {
	UploadID     string       `json:"upload_id"`
	UploadTime   time.Time    `json:"upload_time"`
	FileName     string       `json:"file_name"`
	Category     Category     `json:"category"`
	RowsTotal    int          `json:"rows_total"`
	RowsLoaded   int          `json:"rows_loaded"`
	RowsRejected int          `json:"rows_rejected"`
	Status       UploadStatus `json:"status"`
}

// OperationEmission is one operation row after the factor table has been
// applied.
type OperationEmission struct {
	Month        string  `json:"month"`
	ProductID    string  `json:"product_id"`
	UnitsSold    int64   `json:"units_sold"`
	EnergyCO2    float64 `json:"energy_co2"`
	TransportCO2 float64 `json:"transport_co2"`
	TotalCO2     float64 `json:"total_co2"`
}

type BillEmission struct {
	Month        string  `json:"month"`
	Region       string  `json:"region"`
	BillType     string  `json:"bill_type"`
	EstimatedCO2 float64 `json:"estimated_co2"`
}

type MonthlyProductMetric struct {
	Month        string  `json:"month"`
	ProductID    string  `json:"product_id"`
	ProductName  string  `json:"product_name"`
	Category     string  `json:"category"`
	TotalUnits   int64   `json:"total_units"`
	EnergyCO2    float64 `json:"energy_co2"`
	TransportCO2 float64 `json:"transport_co2"`
	TotalCO2     float64 `json:"total_co2"`
}

type BillEmissionMetric struct {
	Month        string  `json:"month"`
	Region       string  `json:"region"`
	BillType     string  `json:"bill_type"`
	EstimatedCO2 float64 `json:"estimated_co2"`
}

type CompanyEmissionMetric struct {
	Month  string  `json:"month"`
	Source Source  `json:"source"`
	CO2    float64 `json:"co2"`
}

type FootprintRow struct {
	Month      string  `json:"month"`
	ProductCO2 float64 `json:"product_co2"`
	UtilityCO2 float64 `json:"utility_co2"`
	TotalCO2   float64 `json:"total_co2"`
}

type TrendRow struct {
	Month      string  `json:"month"`
	TotalCO2   float64 `json:"total_co2"`
	TotalUnits int64   `json:"total_units"`
	CO2PerUnit float64 `json:"co2_per_unit"`
}

type CompanyKPI struct {
	TotalCompanyCO2 float64 `json:"total_company_co2"`
}

// FormatMonth renders t with the YYYY-MM layout shared by every metric
// family.
func FormatMonth(t time.Time) string {
	return t.Format(MonthLayout)
}

// FirstOfMonth truncates t to midnight UTC of the first day of its month.
func FirstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
