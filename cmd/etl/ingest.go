package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/farxc/carbon_footprint/internal/emissions"
	"github.com/farxc/carbon_footprint/internal/ingestion"
	"github.com/farxc/carbon_footprint/internal/intake"
	"github.com/farxc/carbon_footprint/internal/logger"
	"github.com/spf13/cobra"
)

type ingestOptions struct {
	category    string
	concurrency int
	retries     int
	retryDelay  time.Duration
	workDir     string
	encoding    string
	delimiter   string
}

func newIngestCmd(e *etl) *cobra.Command {
	opts := ingestOptions{}

	cmd := &cobra.Command{
		Use:   "ingest <file|dir|zip|url>...",
		Short: "Validate and load batches of operations or utility bills",
		Long: `Validate and load batch files. Directories are scanned for csv, xlsx
and zip files; zip archives are unpacked and every member becomes its own
batch. Each batch gets one upload log entry.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			category := emissions.Category(opts.category)
			if _, ok := emissions.SchemaFor(category); !ok {
				return fmt.Errorf("unknown category %q", opts.category)
			}
			return runIngest(cmd.Context(), e, cmd.OutOrStdout(), category, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.category, "category", "", "Batch category: operations or utility (required)")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 4, "Files processed in parallel")
	cmd.Flags().IntVar(&opts.retries, "retries", 3, "Retry limit for transient failures")
	cmd.Flags().DurationVar(&opts.retryDelay, "retry-delay", 2*time.Second, "Delay before a retry")
	cmd.Flags().StringVar(&opts.workDir, "workdir", "tmp", "Scratch directory for downloads and unpacked archives")
	cmd.Flags().StringVar(&opts.encoding, "encoding", intake.EncodingUTF8, "CSV encoding: utf-8, windows-1252, iso-8859-1")
	cmd.Flags().StringVar(&opts.delimiter, "delimiter", ",", "CSV field delimiter")
	_ = cmd.MarkFlagRequired("category")

	return cmd
}

func runIngest(ctx context.Context, e *etl, out io.Writer, category emissions.Category, sources []string, opts ingestOptions) error {
	const component = "Ingest"

	readOpts := intake.DefaultOptions()
	readOpts.Encoding = opts.encoding
	if d := []rune(opts.delimiter); len(d) == 1 {
		readOpts.Delimiter = d[0]
	} else {
		return fmt.Errorf("delimiter must be a single character, got %q", opts.delimiter)
	}

	jobs, err := expandSources(sources, category)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		return fmt.Errorf("no csv, xlsx or zip files found in %s", strings.Join(sources, ", "))
	}

	storage, err := e.storage()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(opts.workDir, os.ModePerm); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}

	monitor := NewMonitor()
	monitor.Start(400*time.Millisecond, e.appLogger)

	service := ingestion.NewService(storage, e.appLogger, nil, readOpts)
	orchestrator := ingestion.NewOrchestrator(service, e.appLogger, opts.concurrency,
		ingestion.WithRetry(opts.retries, opts.retryDelay),
		ingestion.WithWorkDir(opts.workDir),
	)
	results := orchestrator.Run(ctx, jobs)

	stats := monitor.Stop()
	e.appLogger.Info(component, "Batches processed: results=%d peakGoroutines=%d peakMemoryMB=%d", len(results), stats.PeakGoroutines, stats.PeakMemoryMB)

	failed := writeSummary(out, results, e.appLogger)
	if failed > 0 {
		return fmt.Errorf("%d of %d batches failed", failed, len(results))
	}
	return nil
}

// expandSources turns command line arguments into jobs. URLs and files are
// kept as they are; directories contribute their supported files sorted by
// name.
func expandSources(sources []string, category emissions.Category) ([]ingestion.IngestionJob, error) {
	var jobs []ingestion.IngestionJob
	for _, src := range sources {
		if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
			jobs = append(jobs, ingestion.IngestionJob{Source: src, Category: category})
			continue
		}

		info, err := os.Stat(src)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			jobs = append(jobs, ingestion.IngestionJob{Source: src, Category: category})
			continue
		}

		entries, err := os.ReadDir(src)
		if err != nil {
			return nil, err
		}
		var names []string
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			switch strings.ToLower(filepath.Ext(entry.Name())) {
			case ".csv", ".xlsx", ".xlsm", ".zip":
				names = append(names, entry.Name())
			}
		}
		sort.Strings(names)
		for _, name := range names {
			jobs = append(jobs, ingestion.IngestionJob{Source: filepath.Join(src, name), Category: category})
		}
	}
	return jobs, nil
}

// writeSummary prints one line per batch and returns how many failed.
func writeSummary(out io.Writer, results []ingestion.IngestionResult, appLogger *logger.Logger) int {
	const component = "Ingest"

	sort.Slice(results, func(i, j int) bool { return results[i].Job.Source < results[j].Job.Source })

	failed := 0
	for _, r := range results {
		if r.Error != nil || r.Result == nil || r.Result.Status == emissions.UploadFailed {
			failed++
		}
		if r.Result == nil {
			fmt.Fprintf(out, "%-40s %-8s %v\n", filepath.Base(r.Job.Source), "error", r.Error)
			continue
		}
		res := r.Result
		fmt.Fprintf(out, "%-40s %-8s total=%d loaded=%d rejected=%d upload=%s\n",
			res.FileName, res.Status, res.Summary.Total, res.Summary.Accepted, res.Summary.Rejected, res.UploadID)
		for _, rej := range res.Rejections {
			appLogger.Debug(component, "Rejected row: file=%s line=%d field=%s reason=%s", res.FileName, rej.Line, rej.Field, rej.Reason)
		}
	}
	return failed
}
