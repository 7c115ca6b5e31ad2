package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/farxc/carbon_footprint/internal/emissions"
	"github.com/farxc/carbon_footprint/internal/intake"
	"github.com/farxc/carbon_footprint/internal/logger"
	"github.com/farxc/carbon_footprint/internal/metrics"
	"github.com/farxc/carbon_footprint/internal/store"
	"github.com/google/uuid"
)

var (
	// ErrUnreadable wraps decoding and header failures; nothing was
	// validated.
	ErrUnreadable = errors.New("upload could not be read")
	// ErrPersist wraps storage failures after validation.
	ErrPersist = errors.New("upload could not be stored")
)

// Result is the outcome of one batch. It is returned for every batch that
// reached the audit log, including failed ones.
type Result struct {
	UploadID   string                 `json:"upload_id"`
	FileName   string                 `json:"file_name"`
	Category   emissions.Category     `json:"category"`
	Status     emissions.UploadStatus `json:"status"`
	Summary    emissions.BatchSummary `json:"summary"`
	Rejections []Rejection            `json:"rejections,omitempty"`
	BillIDs    []string               `json:"bill_ids,omitempty"`
	Detail     string                 `json:"detail,omitempty"`
}

type Rejection struct {
	Line   int                    `json:"line"`
	Field  string                 `json:"field"`
	Reason emissions.RejectReason `json:"reason"`
	Detail string                 `json:"detail,omitempty"`
}

type Service struct {
	storage   *store.Storage
	appLogger *logger.Logger
	metrics   *metrics.Recorder
	opts      intake.Options
	now       func() time.Time
}

func NewService(storage *store.Storage, appLogger *logger.Logger, recorder *metrics.Recorder, opts intake.Options) *Service {
	return &Service{
		storage:   storage,
		appLogger: appLogger,
		metrics:   recorder,
		opts:      opts,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// NewUploadID prefixes the client file name with a random uuid.
func NewUploadID(fileName string) string {
	return uuid.NewString() + "_" + filepath.Base(fileName)
}

// Ingest decodes, validates and stores one uploaded file. The upload log
// gets exactly one entry per call whatever the outcome.
func (s *Service) Ingest(ctx context.Context, fileName string, category emissions.Category, r io.Reader) (*Result, error) {
	const component = "Ingestion"

	res := &Result{
		UploadID: NewUploadID(fileName),
		FileName: filepath.Base(fileName),
		Category: category,
	}

	table, err := intake.Read(fileName, r, s.opts)
	if err == nil {
		err = intake.CheckHeader(category, table.Header)
	}
	if err != nil {
		s.appLogger.Warn(component, "Unreadable upload: file=%s category=%s err=%v", res.FileName, category, err)
		res.Status = emissions.UploadFailed
		res.Detail = err.Error()
		if logErr := s.appendLog(ctx, s.storage, res); logErr != nil {
			return res, fmt.Errorf("%w: %w", ErrPersist, logErr)
		}
		s.metrics.ObserveBatch(category, res.Summary, res.Status)
		return res, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}

	return s.IngestRows(ctx, res, table.Rows)
}

// IngestRows validates and stores already decoded rows under res.UploadID.
func (s *Service) IngestRows(ctx context.Context, res *Result, rows []emissions.RawRow) (*Result, error) {
	const component = "Ingestion"

	validated := emissions.Validate(res.Category, rows)
	res.Summary = validated.Summary()
	res.Status = res.Summary.Status()
	res.Rejections = make([]Rejection, 0, len(validated.Rejected))
	for _, rej := range validated.Rejected {
		res.Rejections = append(res.Rejections, Rejection{
			Line:   rej.Error.Line,
			Field:  rej.Error.Field,
			Reason: rej.Error.Reason,
			Detail: rej.Error.Detail,
		})
	}

	if res.Summary.Accepted == 0 {
		s.appLogger.Warn(component, "No rows accepted: upload=%s total=%d", res.UploadID, res.Summary.Total)
		if err := s.appendLog(ctx, s.storage, res); err != nil {
			return res, fmt.Errorf("%w: %w", ErrPersist, err)
		}
		s.metrics.ObserveBatch(res.Category, res.Summary, res.Status)
		return res, nil
	}

	err := s.storage.WithTx(ctx, func(tx *store.Storage) error {
		if err := s.appendLog(ctx, tx, res); err != nil {
			return err
		}
		switch res.Category {
		case emissions.CategoryOperations:
			_, err := tx.Operations.InsertBatch(ctx, res.UploadID, validated.Operations)
			return err
		case emissions.CategoryUtility:
			ids, err := tx.Bills.InsertBatch(ctx, res.UploadID, validated.Bills)
			res.BillIDs = ids
			return err
		}
		return nil
	})
	if err != nil {
		s.appLogger.Error(component, "Failed to store upload: upload=%s err=%v", res.UploadID, err)

		// The transaction rolled back the log entry with the rows; record
		// the failure on its own.
		res.Status = emissions.UploadFailed
		res.Detail = err.Error()
		res.BillIDs = nil
		if logErr := s.appendLog(ctx, s.storage, res); logErr != nil {
			s.appLogger.Error(component, "Failed to record failed upload: upload=%s err=%v", res.UploadID, logErr)
		}
		s.metrics.ObserveBatch(res.Category, res.Summary, res.Status)
		return res, fmt.Errorf("%w: %w", ErrPersist, err)
	}

	s.metrics.ObserveBatch(res.Category, res.Summary, res.Status)
	s.appLogger.Info(component, "Upload stored: upload=%s category=%s loaded=%d rejected=%d status=%s",
		res.UploadID, res.Category, res.Summary.Accepted, res.Summary.Rejected, res.Status)
	return res, nil
}

// Bill stores a single utility bill submitted without a file. It goes
// through the same validation and audit path as a one-row upload.
func (s *Service) Bill(ctx context.Context, fields map[string]string) (*Result, error) {
	res := &Result{
		UploadID: NewUploadID("manual-bill"),
		FileName: "manual-bill",
		Category: emissions.CategoryUtility,
	}
	return s.IngestRows(ctx, res, []emissions.RawRow{{Line: 1, Fields: fields}})
}

func (s *Service) appendLog(ctx context.Context, storage *store.Storage, res *Result) error {
	loaded := res.Summary.Accepted
	if res.Status == emissions.UploadFailed {
		loaded = 0
	}
	return storage.Uploads.Append(ctx, &store.UploadLog{
		UploadID:     res.UploadID,
		UploadTime:   s.now(),
		FileName:     res.FileName,
		Category:     string(res.Category),
		RowsTotal:    res.Summary.Total,
		RowsLoaded:   loaded,
		RowsRejected: res.Summary.Rejected,
		Status:       string(res.Status),
		Detail:       res.Detail,
	})
}
