package main

import (
	"net/http"
	"strings"

	"github.com/farxc/carbon_footprint/internal/emissions"
	"github.com/farxc/carbon_footprint/internal/response"
	"github.com/farxc/carbon_footprint/internal/store"
)

type GetCatalogResponse = response.APIResponse[[]emissions.CatalogEntry]
type GetFactorsResponse = response.APIResponse[[]emissions.FactorEntry]
type GetReferenceFactorsResponse = response.APIResponse[[]store.EmissionFactor]
type CreateReferenceFactorResponse = response.APIResponse[*store.EmissionFactor]

// @Summary		Get product catalogue
// @Tags			Catalog
// @Produce		json
// @Success		200	{object}	GetCatalogResponse		"Successfully retrieved catalogue"
// @Failure		500	{object}	response.ErrorResponse	"Failed to list catalogue"
// @Router			/catalog [get]
func (app *application) handleListCatalog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data, err := app.store.Catalog.List(ctx)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to list catalogue: "+err.Error())
		return
	}

	if err := writeJSON(w, http.StatusOK, &GetCatalogResponse{Success: true, Data: data}); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to write response")
	}
}

// @Summary		Upsert catalogue entries
// @Description	Creates or replaces catalogue entries by product id.
// @Tags			Catalog
// @Accept			json
// @Produce		json
// @Param			entries	body		[]emissions.CatalogEntry	true	"Catalogue entries"
// @Success		200		{object}	GetCatalogResponse			"Catalogue updated"
// @Failure		400		{object}	response.ErrorResponse		"Invalid request payload"
// @Failure		500		{object}	response.ErrorResponse		"Failed to update catalogue"
// @Router			/catalog [put]
func (app *application) handleUpsertCatalog(w http.ResponseWriter, r *http.Request) {
	var entries []emissions.CatalogEntry
	if err := readJSON(w, r, &entries); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if len(entries) == 0 {
		writeJSONError(w, http.StatusBadRequest, "no catalogue entries")
		return
	}
	for _, e := range entries {
		if strings.TrimSpace(e.ProductID) == "" {
			writeJSONError(w, http.StatusBadRequest, "product_id is required")
			return
		}
	}

	ctx := r.Context()
	if err := app.store.Catalog.Upsert(ctx, entries); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to update catalogue: "+err.Error())
		return
	}

	response := &GetCatalogResponse{
		Success: true,
		Data:    entries,
		Message: "Catalogue updated",
	}

	if err := writeJSON(w, http.StatusOK, response); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to write response")
	}
}

// @Summary		Get effective emission factors
// @Description	Returns the factor table used for calculations in the configured region, with the reference of every value.
// @Tags			Factors
// @Produce		json
// @Success		200	{object}	GetFactorsResponse		"Successfully resolved factors"
// @Failure		500	{object}	response.ErrorResponse	"Failed to resolve factors"
// @Router			/factors [get]
func (app *application) handleGetFactors(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	table, err := app.reports.Factors(ctx)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to resolve factors: "+err.Error())
		return
	}

	if err := writeJSON(w, http.StatusOK, &GetFactorsResponse{Success: true, Data: table.Entries()}); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to write response")
	}
}

// @Summary		List reference factors
// @Tags			Factors
// @Produce		json
// @Success		200	{object}	GetReferenceFactorsResponse	"Successfully listed reference factors"
// @Failure		500	{object}	response.ErrorResponse		"Failed to list reference factors"
// @Router			/factors/reference [get]
func (app *application) handleListReferenceFactors(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data, err := app.store.Factors.List(ctx)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to list reference factors: "+err.Error())
		return
	}

	if err := writeJSON(w, http.StatusOK, &GetReferenceFactorsResponse{Success: true, Data: data}); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to write response")
	}
}

// @Summary		Add a reference factor
// @Description	Adds or replaces the factor for a region, activity and year.
// @Tags			Factors
// @Accept			json
// @Produce		json
// @Param			factor	body		object{region:string,activity_type:string,year:int,factor:number,reference:string}	true	"Reference factor"
// @Success		201		{object}	CreateReferenceFactorResponse														"Factor stored"
// @Failure		400		{object}	response.ErrorResponse																"Invalid request payload"
// @Failure		500		{object}	response.ErrorResponse																"Failed to store factor"
// @Router			/factors/reference [post]
func (app *application) handleCreateReferenceFactor(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Region       string  `json:"region"`
		ActivityType string  `json:"activity_type"`
		Year         int     `json:"year"`
		Factor       float64 `json:"factor"`
		Reference    string  `json:"reference"`
	}

	if err := readJSON(w, r, &input); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if input.Region == "" || input.ActivityType == "" || input.Year <= 0 {
		writeJSONError(w, http.StatusBadRequest, "missing required fields")
		return
	}
	if input.Factor < 0 {
		writeJSONError(w, http.StatusBadRequest, "factor must not be negative")
		return
	}

	factor := &store.EmissionFactor{
		Region:       input.Region,
		ActivityType: input.ActivityType,
		Year:         input.Year,
		Factor:       input.Factor,
		Reference:    input.Reference,
	}

	ctx := r.Context()
	if err := app.store.Factors.Insert(ctx, factor); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to store factor: "+err.Error())
		return
	}

	if err := writeJSON(w, http.StatusCreated, &CreateReferenceFactorResponse{Success: true, Data: factor, Message: "Factor stored"}); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to write response")
	}
}
