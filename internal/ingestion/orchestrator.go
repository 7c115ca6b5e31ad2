package ingestion

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/farxc/carbon_footprint/internal/emissions"
	"github.com/farxc/carbon_footprint/internal/intake"
	"github.com/farxc/carbon_footprint/internal/logger"
	"github.com/farxc/carbon_footprint/internal/store"
)

// Ingester is the part of Service the orchestrator drives.
type Ingester interface {
	Ingest(ctx context.Context, fileName string, category emissions.Category, r io.Reader) (*Result, error)
}

// IngestionJob is one source to load: a local csv/xlsx file, a zip of
// them, or an http(s) URL to either.
type IngestionJob struct {
	Source   string
	Category emissions.Category
	Attempt  int
}

type IngestionResult struct {
	Job    IngestionJob
	Result *Result
	Error  error
}

type Orchestrator struct {
	ingester  Ingester
	appLogger *logger.Logger
	client    *http.Client

	// Settings
	maxConcurrency int
	retryLimit     int
	retryDelay     time.Duration
	workDir        string

	pending sync.WaitGroup
	workers sync.WaitGroup
	mu      sync.Mutex
	results []IngestionResult

	jobChan    chan IngestionJob
	resultChan chan IngestionResult
}

type OrchestratorOption func(*Orchestrator)

func WithRetry(limit int, delay time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		o.retryLimit = limit
		o.retryDelay = delay
	}
}

func WithHTTPClient(c *http.Client) OrchestratorOption {
	return func(o *Orchestrator) { o.client = c }
}

func WithWorkDir(dir string) OrchestratorOption {
	return func(o *Orchestrator) { o.workDir = dir }
}

func NewOrchestrator(ingester Ingester, appLogger *logger.Logger, concurrency int, opts ...OrchestratorOption) *Orchestrator {
	if concurrency <= 0 {
		concurrency = 1
	}
	o := &Orchestrator{
		ingester:       ingester,
		appLogger:      appLogger,
		client:         &http.Client{Timeout: 5 * time.Minute},
		maxConcurrency: concurrency,
		retryLimit:     3,
		retryDelay:     2 * time.Second,
		workDir:        "tmp",
		jobChan:        make(chan IngestionJob, 100),
		resultChan:     make(chan IngestionResult, 100),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run processes every job and returns one result per ingested file, in
// completion order. Transient failures are retried up to the retry limit.
func (o *Orchestrator) Run(ctx context.Context, jobs []IngestionJob) []IngestionResult {
	const component = "Orchestrator"
	o.appLogger.Info(component, "Starting orchestrator: concurrency=%d jobs=%d", o.maxConcurrency, len(jobs))

	for i := 0; i < o.maxConcurrency; i++ {
		o.workers.Add(1)
		go o.worker(ctx)
	}

	listenerDone := make(chan struct{})
	go func() {
		o.listenToResults(ctx)
		close(listenerDone)
	}()

	for _, job := range jobs {
		o.enqueue(job)
	}

	o.pending.Wait()
	close(o.jobChan)
	o.workers.Wait()
	close(o.resultChan)
	<-listenerDone

	o.appLogger.Info(component, "Orchestrator finished: results=%d", len(o.results))
	return o.results
}

func (o *Orchestrator) enqueue(job IngestionJob) {
	o.pending.Add(1)
	go func() { o.jobChan <- job }()
}

func (o *Orchestrator) worker(ctx context.Context) {
	const component = "Worker"
	defer o.workers.Done()

	for job := range o.jobChan {
		o.appLogger.Debug(component, "Processing job: source=%s attempt=%d", job.Source, job.Attempt)

		if err := ctx.Err(); err != nil {
			o.resultChan <- IngestionResult{Job: job, Error: err}
			continue
		}
		o.resultChan <- o.process(ctx, job)
	}
}

func (o *Orchestrator) process(ctx context.Context, job IngestionJob) IngestionResult {
	path := job.Source

	if isURL(job.Source) {
		downloaded, err := intake.Fetch(ctx, o.client, job.Source, filepath.Join(o.workDir, "downloads"), o.appLogger)
		if err != nil {
			return IngestionResult{Job: job, Error: err}
		}
		path = downloaded
	}

	if strings.EqualFold(filepath.Ext(path), ".zip") {
		dest := filepath.Join(o.workDir, "data", strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
		members, err := intake.Unzip(path, dest, o.appLogger)
		if err != nil {
			return IngestionResult{Job: job, Error: fmt.Errorf("%w: %w", ErrUnreadable, err)}
		}
		for _, m := range members {
			o.enqueue(IngestionJob{Source: m, Category: job.Category})
		}
		return IngestionResult{Job: job}
	}

	f, err := os.Open(path)
	if err != nil {
		return IngestionResult{Job: job, Error: fmt.Errorf("open %s: %w", path, err)}
	}
	defer f.Close()

	res, err := o.ingester.Ingest(ctx, filepath.Base(path), job.Category, f)
	return IngestionResult{Job: job, Result: res, Error: err}
}

func (o *Orchestrator) listenToResults(ctx context.Context) {
	const component = "Orchestrator-Feedback"
	for result := range o.resultChan {
		job := result.Job

		switch {
		case result.Error == nil && result.Result == nil:
			// archive expanded into member jobs
		case result.Error == nil:
			o.appLogger.Info(component, "Job completed: source=%s upload=%s status=%s", job.Source, result.Result.UploadID, result.Result.Status)
			o.record(result)
		case job.Attempt < o.retryLimit && isTransient(result.Error) && ctx.Err() == nil:
			o.appLogger.Warn(component, "Job failed, queuing for retry: source=%s attempt=%d err=%v", job.Source, job.Attempt, result.Error)
			job.Attempt++
			o.pending.Add(1)
			time.AfterFunc(o.retryDelay, func() { o.jobChan <- job })
		default:
			o.appLogger.Error(component, "Job failed: source=%s attempt=%d err=%v", job.Source, job.Attempt, result.Error)
			o.record(result)
		}

		o.pending.Done()
	}
}

func (o *Orchestrator) record(r IngestionResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results = append(o.results, r)
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// isTransient reports whether a retry could succeed. Bad input never
// becomes valid by retrying.
func isTransient(err error) bool {
	if errors.Is(err, ErrUnreadable) || errors.Is(err, context.Canceled) || errors.Is(err, os.ErrNotExist) {
		return false
	}
	if errors.Is(err, ErrPersist) {
		// A failed commit may still have landed; running the batch again
		// would store it twice under a new upload id.
		return errors.Is(err, store.ErrBeginTx) || errors.Is(err, driver.ErrBadConn)
	}
	var statusErr *intake.HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
