package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/farxc/carbon_footprint/internal/emissions"
	"github.com/farxc/carbon_footprint/internal/ingestion"
	"github.com/farxc/carbon_footprint/internal/response"
	"github.com/farxc/carbon_footprint/internal/store"
	"github.com/go-chi/chi/v5"
)

type GetUploadsResponse = response.APIResponse[[]store.UploadLog]
type GetUploadResponse = response.APIResponse[*store.UploadLog]
type CreateUploadResponse = response.APIResponse[*ingestion.Result]
type ExcludeAllResponse = response.APIResponse[map[string]int64]

const excludeReasonManual = "manual delete"
const excludeReasonReset = "reset"

const (
	defaultUploadLimit = 20
	maxUploadLimit     = 500
)

// @Summary		Upload a batch
// @Description	Validates a CSV or XLSX file and stores the accepted rows. Rejected rows are reported with their line number.
// @Tags			Uploads
// @Accept			mpfd
// @Produce		json
// @Param			file		formData	file					true	"CSV or XLSX file"
// @Param			category	formData	string					true	"Batch category"	Enums(operations, utility)
// @Success		201			{object}	CreateUploadResponse	"Batch stored"
// @Failure		400			{object}	response.ErrorResponse	"File missing or unreadable"
// @Failure		422			{object}	CreateUploadResponse	"No row was accepted"
// @Failure		500			{object}	response.ErrorResponse	"Failed to store the batch"
// @Router			/uploads [post]
func (app *application) handleCreateUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	category := emissions.Category(r.FormValue("category"))

	ctx := r.Context()
	res, err := app.ingestion.Ingest(ctx, header.Filename, category, file)
	app.writeIngestion(w, res, err)
}

// @Summary		Record a utility bill
// @Description	Stores one utility bill. The bill goes through the same validation and audit log as an uploaded batch.
// @Tags			Uploads
// @Accept			json
// @Produce		json
// @Param			bill	body		object{month:string,region:string,bill_type:string,units:number,amount:number}	true	"Bill details"
// @Success		201		{object}	CreateUploadResponse															"Bill stored"
// @Failure		400		{object}	response.ErrorResponse															"Invalid request payload"
// @Failure		422		{object}	CreateUploadResponse															"Bill rejected"
// @Failure		500		{object}	response.ErrorResponse															"Failed to store the bill"
// @Router			/bills [post]
func (app *application) handleCreateBill(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Month    string      `json:"month"`
		Region   string      `json:"region"`
		BillType string      `json:"bill_type"`
		Units    json.Number `json:"units"`
		Amount   json.Number `json:"amount"`
	}

	if err := readJSON(w, r, &input); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	fields := map[string]string{
		"month":     input.Month,
		"region":    input.Region,
		"bill_type": input.BillType,
		"units":     input.Units.String(),
	}
	if input.Amount != "" {
		fields["amount"] = input.Amount.String()
	}

	ctx := r.Context()
	res, err := app.ingestion.Bill(ctx, fields)
	app.writeIngestion(w, res, err)
}

func (app *application) writeIngestion(w http.ResponseWriter, res *ingestion.Result, err error) {
	switch {
	case errors.Is(err, ingestion.ErrUnreadable):
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeJSONError(w, http.StatusInternalServerError, "failed to store batch: "+err.Error())
		return
	}

	body := &CreateUploadResponse{Data: res}
	status := http.StatusCreated
	if res.Summary.Accepted == 0 {
		status = http.StatusUnprocessableEntity
		body.Message = "No row was accepted"
	} else {
		body.Success = true
		body.Message = "Batch stored with status " + string(res.Status)
	}

	if err := writeJSON(w, status, body); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to write response")
	}
}

// @Summary		Get upload history
// @Description	Get the latest upload log entries, newest first.
// @Tags			Uploads
// @Produce		json
// @Param			limit				query		int						false	"Limit the number of results"	default(20)
// @Param			include_excluded	query		bool					false	"Include soft deleted uploads"
// @Success		200					{object}	GetUploadsResponse		"Successfully retrieved latest uploads"
// @Failure		500					{object}	response.ErrorResponse	"Failed to get upload history"
// @Router			/uploads [get]
func (app *application) handleListUploads(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, defaultUploadLimit, maxUploadLimit)
	includeExcluded := parseBool(r, "include_excluded")

	ctx := r.Context()
	data, err := app.store.Uploads.Latest(ctx, limit, includeExcluded)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to get upload history: "+err.Error())
		return
	}

	response := &GetUploadsResponse{
		Success: true,
		Data:    data,
		Message: "Successfully retrieved latest uploads",
	}

	if err := writeJSON(w, http.StatusOK, response); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to write response")
	}
}

// @Summary		Get an upload
// @Tags			Uploads
// @Produce		json
// @Param			id	path		string					true	"Upload id"
// @Success		200	{object}	GetUploadResponse		"Upload found"
// @Failure		404	{object}	response.ErrorResponse	"Unknown upload"
// @Failure		500	{object}	response.ErrorResponse	"Failed to get upload"
// @Router			/uploads/{id} [get]
func (app *application) handleGetUpload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ctx := r.Context()
	data, err := app.store.Uploads.Get(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "upload not found")
		return
	case err != nil:
		writeJSONError(w, http.StatusInternalServerError, "failed to get upload: "+err.Error())
		return
	}

	if err := writeJSON(w, http.StatusOK, &GetUploadResponse{Success: true, Data: data}); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to write response")
	}
}

// @Summary		Delete an upload
// @Description	Soft deletes an upload: its rows stop counting towards every metric while the upload log keeps the entry.
// @Tags			Uploads
// @Param			id	path	string	true	"Upload id"
// @Success		204
// @Failure		404	{object}	response.ErrorResponse	"Unknown upload"
// @Failure		500	{object}	response.ErrorResponse	"Failed to exclude upload"
// @Router			/uploads/{id} [delete]
func (app *application) handleExcludeUpload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ctx := r.Context()
	err := app.store.Uploads.Exclude(ctx, id, excludeReasonManual)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "upload not found")
		return
	case err != nil:
		writeJSONError(w, http.StatusInternalServerError, "failed to exclude upload: "+err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// @Summary		Exclude every upload
// @Description	Soft deletes every upload that is not excluded yet. Reference data is kept.
// @Tags			Uploads
// @Produce		json
// @Success		200	{object}	ExcludeAllResponse		"Uploads excluded"
// @Failure		500	{object}	response.ErrorResponse	"Failed to exclude uploads"
// @Router			/uploads/exclude-all [post]
func (app *application) handleExcludeAllUploads(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	n, err := app.store.Uploads.ExcludeAll(ctx, excludeReasonReset)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to exclude uploads: "+err.Error())
		return
	}

	response := &ExcludeAllResponse{
		Success: true,
		Data:    map[string]int64{"excluded": n},
		Message: "Uploads excluded",
	}

	if err := writeJSON(w, http.StatusOK, response); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to write response")
	}
}
