package store

import (
	"time"

	"github.com/farxc/carbon_footprint/internal/emissions"
)

// UploadLog represents the 'upload_log' table. Excluded is derived from
// 'upload_exclusions' when listing.
type UploadLog struct {
	UploadID     string    `db:"upload_id" json:"upload_id"`
	UploadTime   time.Time `db:"upload_time" json:"upload_time"`
	FileName     string    `db:"file_name" json:"file_name"`
	Category     string    `db:"category" json:"category"`
	RowsTotal    int       `db:"rows_total" json:"rows_total"`
	RowsLoaded   int       `db:"rows_loaded" json:"rows_loaded"`
	RowsRejected int       `db:"rows_rejected" json:"rows_rejected"`
	Status       string    `db:"status" json:"status"`
	Detail       string    `db:"detail" json:"detail,omitempty"`
	Excluded     bool      `db:"excluded" json:"excluded"`
}

func (u UploadLog) Entry() emissions.UploadLogEntry {
	return emissions.UploadLogEntry{
		UploadID:     u.UploadID,
		UploadTime:   u.UploadTime,
		FileName:     u.FileName,
		Category:     emissions.Category(u.Category),
		RowsTotal:    u.RowsTotal,
		RowsLoaded:   u.RowsLoaded,
		RowsRejected: u.RowsRejected,
		Status:       emissions.UploadStatus(u.Status),
	}
}

// Operation represents the 'operations' table.
type Operation struct {
	ID          int64     `db:"id"`
	UploadID    string    `db:"upload_id"`
	ProductID   string    `db:"product_id"`
	UnitsSold   int64     `db:"units_sold"`
	EnergyKWh   float64   `db:"energy_kwh"`
	TransportKM float64   `db:"transport_km"`
	RecordDate  time.Time `db:"record_date"`
}

// UtilityBill represents the 'utility_bills' table.
type UtilityBill struct {
	BillID   string    `db:"bill_id"`
	UploadID string    `db:"upload_id"`
	Month    time.Time `db:"month"`
	Region   string    `db:"region"`
	BillType string    `db:"bill_type"`
	Units    float64   `db:"units"`
	Amount   float64   `db:"amount"`
}

// CatalogEntry represents the 'product_catalogue' table.
type CatalogEntry struct {
	ProductID   string `db:"product_id"`
	ProductName string `db:"product_name"`
	Category    string `db:"category"`
}

// EmissionFactor represents the 'emission_factors' table.
type EmissionFactor struct {
	ID           int64   `db:"id" json:"id"`
	Region       string  `db:"region" json:"region"`
	ActivityType string  `db:"activity_type" json:"activity_type"`
	Year         int     `db:"year" json:"year"`
	Factor       float64 `db:"factor" json:"factor"`
	Reference    string  `db:"reference" json:"reference"`
}
