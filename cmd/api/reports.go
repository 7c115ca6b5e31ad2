package main

import (
	"errors"
	"net/http"

	"github.com/farxc/carbon_footprint/internal/emissions"
	"github.com/farxc/carbon_footprint/internal/reporting"
	"github.com/farxc/carbon_footprint/internal/response"
)

type GetBillMetricsResponse = response.APIResponse[[]emissions.BillEmissionMetric]
type GetCompanyMetricsResponse = response.APIResponse[[]emissions.CompanyEmissionMetric]
type GetFootprintResponse = response.APIResponse[[]emissions.FootprintRow]
type GetTrendsResponse = response.APIResponse[[]emissions.TrendRow]
type GetKPIsResponse = response.APIResponse[emissions.CompanyKPI]

// ProductMetrics carries the reconciliation warnings next to the rows they
// were dropped from.
type ProductMetrics struct {
	Products []emissions.MonthlyProductMetric  `json:"products"`
	Warnings []emissions.ReconciliationWarning `json:"warnings"`
}

type GetProductMetricsWithWarningsResponse = response.APIResponse[ProductMetrics]

// serveReport runs the report for the request range and writes the part
// selected by pick.
func (app *application) serveReport(w http.ResponseWriter, r *http.Request, message string, pick func(*emissions.Report) any) {
	ctx := r.Context()
	report, err := app.reports.Report(ctx, parseRange(r))
	if err != nil {
		var rangeErr *reporting.RangeError
		if errors.As(err, &rangeErr) {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSONError(w, http.StatusInternalServerError, "failed to compute report: "+err.Error())
		return
	}

	body := &response.APIResponse[any]{
		Success: true,
		Message: message,
		Data:    pick(report),
	}
	if err := writeJSON(w, http.StatusOK, body); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to write response")
	}
}

// @Summary		Monthly product emissions
// @Description	Energy, transport and total CO2 per product and month, joined with the catalogue. Rows whose product is not in the catalogue are reported as warnings.
// @Tags			Metrics
// @Produce		json
// @Param			from	query		string									false	"First month (YYYY-MM)"
// @Param			to		query		string									false	"Last month (YYYY-MM)"
// @Success		200		{object}	GetProductMetricsWithWarningsResponse	"Successfully computed product metrics"
// @Failure		400		{object}	response.ErrorResponse					"Invalid range"
// @Failure		500		{object}	response.ErrorResponse					"Failed to compute report"
// @Router			/metrics/products [get]
func (app *application) handleGetProductMetrics(w http.ResponseWriter, r *http.Request) {
	app.serveReport(w, r, "Successfully computed product metrics", func(rep *emissions.Report) any {
		warnings := rep.Warnings
		if warnings == nil {
			warnings = []emissions.ReconciliationWarning{}
		}
		return ProductMetrics{Products: rep.Products, Warnings: warnings}
	})
}

// @Summary		Utility bill emissions
// @Description	Estimated CO2 per month, region and bill type.
// @Tags			Metrics
// @Produce		json
// @Param			from	query		string					false	"First month (YYYY-MM)"
// @Param			to		query		string					false	"Last month (YYYY-MM)"
// @Success		200		{object}	GetBillMetricsResponse	"Successfully computed bill metrics"
// @Failure		400		{object}	response.ErrorResponse	"Invalid range"
// @Failure		500		{object}	response.ErrorResponse	"Failed to compute report"
// @Router			/metrics/bills [get]
func (app *application) handleGetBillMetrics(w http.ResponseWriter, r *http.Request) {
	app.serveReport(w, r, "Successfully computed bill metrics", func(rep *emissions.Report) any {
		return rep.Bills
	})
}

// @Summary		Company emissions by source
// @Tags			Metrics
// @Produce		json
// @Param			from	query		string						false	"First month (YYYY-MM)"
// @Param			to		query		string						false	"Last month (YYYY-MM)"
// @Success		200		{object}	GetCompanyMetricsResponse	"Successfully computed company metrics"
// @Failure		400		{object}	response.ErrorResponse		"Invalid range"
// @Failure		500		{object}	response.ErrorResponse		"Failed to compute report"
// @Router			/metrics/company [get]
func (app *application) handleGetCompanyMetrics(w http.ResponseWriter, r *http.Request) {
	app.serveReport(w, r, "Successfully computed company metrics", func(rep *emissions.Report) any {
		return rep.Company
	})
}

// @Summary		Monthly footprint
// @Description	Product, utility and total CO2 per month.
// @Tags			Metrics
// @Produce		json
// @Param			from	query		string					false	"First month (YYYY-MM)"
// @Param			to		query		string					false	"Last month (YYYY-MM)"
// @Success		200		{object}	GetFootprintResponse	"Successfully computed footprint"
// @Failure		400		{object}	response.ErrorResponse	"Invalid range"
// @Failure		500		{object}	response.ErrorResponse	"Failed to compute report"
// @Router			/metrics/footprint [get]
func (app *application) handleGetFootprint(w http.ResponseWriter, r *http.Request) {
	app.serveReport(w, r, "Successfully computed footprint", func(rep *emissions.Report) any {
		return rep.Footprint
	})
}

// @Summary		Product emission trends
// @Description	Product CO2 per month with the intensity per unit sold.
// @Tags			Metrics
// @Produce		json
// @Param			from	query		string					false	"First month (YYYY-MM)"
// @Param			to		query		string					false	"Last month (YYYY-MM)"
// @Success		200		{object}	GetTrendsResponse		"Successfully computed trends"
// @Failure		400		{object}	response.ErrorResponse	"Invalid range"
// @Failure		500		{object}	response.ErrorResponse	"Failed to compute report"
// @Router			/metrics/trends [get]
func (app *application) handleGetTrends(w http.ResponseWriter, r *http.Request) {
	app.serveReport(w, r, "Successfully computed trends", func(rep *emissions.Report) any {
		return rep.Trends
	})
}

// @Summary		Company KPIs
// @Tags			Metrics
// @Produce		json
// @Param			from	query		string					false	"First month (YYYY-MM)"
// @Param			to		query		string					false	"Last month (YYYY-MM)"
// @Success		200		{object}	GetKPIsResponse			"Successfully computed KPIs"
// @Failure		400		{object}	response.ErrorResponse	"Invalid range"
// @Failure		500		{object}	response.ErrorResponse	"Failed to compute report"
// @Router			/metrics/kpis [get]
func (app *application) handleGetKPIs(w http.ResponseWriter, r *http.Request) {
	app.serveReport(w, r, "Successfully computed KPIs", func(rep *emissions.Report) any {
		return rep.KPI
	})
}
