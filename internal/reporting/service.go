package reporting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/farxc/carbon_footprint/internal/cache"
	"github.com/farxc/carbon_footprint/internal/emissions"
	"github.com/farxc/carbon_footprint/internal/logger"
	"github.com/farxc/carbon_footprint/internal/metrics"
	"github.com/farxc/carbon_footprint/internal/store"
)

// GlobalRegion holds factors that do not vary by site.
const GlobalRegion = "Global"

type SnapshotSource interface {
	Version(ctx context.Context) (int64, error)
	Load(ctx context.Context, rng emissions.Range) (emissions.Snapshot, error)
}

type FactorSource interface {
	Latest(ctx context.Context, region string, activities []string) ([]store.EmissionFactor, error)
}

type ReportCache interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any) error
}

// binding maps a reference table activity onto a factor table key.
type binding struct {
	regional bool
	activity string
	key      emissions.FactorKey
}

var bindings = []binding{
	{regional: true, activity: "electricity", key: emissions.OperationsEnergy},
	{regional: false, activity: "freight_truck", key: emissions.OperationsTransport},
}

type Config struct {
	Region  string
	Base    emissions.FactorTable
	Workers int
}

type Service struct {
	snapshots SnapshotSource
	factors   FactorSource
	cache     ReportCache
	metrics   *metrics.Recorder
	appLogger *logger.Logger
	cfg       Config
}

// NewService wires the report path. factors and reportCache may be nil:
// without a reference table the base factors are used as is, and without
// a cache every report is computed.
func NewService(snapshots SnapshotSource, factors FactorSource, reportCache ReportCache, recorder *metrics.Recorder, appLogger *logger.Logger, cfg Config) (*Service, error) {
	if cfg.Base == nil {
		cfg.Base = emissions.DefaultFactors()
	}
	if err := cfg.Base.Validate(); err != nil {
		return nil, err
	}
	return &Service{
		snapshots: snapshots,
		factors:   factors,
		cache:     reportCache,
		metrics:   recorder,
		appLogger: appLogger,
		cfg:       cfg,
	}, nil
}

// Factors resolves the table used for the configured region: the base
// table with the latest reference table rows applied on top.
func (s *Service) Factors(ctx context.Context) (emissions.FactorTable, error) {
	const component = "Factors"

	table := s.cfg.Base.Clone()
	if s.factors == nil {
		return table, nil
	}

	byRegion := map[string][]string{}
	for _, b := range bindings {
		region := GlobalRegion
		if b.regional {
			if s.cfg.Region == "" {
				continue
			}
			region = s.cfg.Region
		}
		byRegion[region] = append(byRegion[region], b.activity)
	}

	for region, activities := range byRegion {
		rows, err := s.factors.Latest(ctx, region, activities)
		if err != nil {
			return nil, fmt.Errorf("resolve factors for %s: %w", region, err)
		}
		for _, row := range rows {
			for _, b := range bindings {
				if b.activity != row.ActivityType || row.Factor <= 0 {
					continue
				}
				table[b.key] = emissions.Factor{Value: row.Factor, Reference: row.Reference}
				s.appLogger.Debug(component, "Using reference factor: key=%s region=%s year=%d value=%g", b.key, row.Region, row.Year, row.Factor)
			}
		}
	}

	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}

// Report computes, or serves from cache, every metric family over rng.
// A cached report is keyed by data version and factor fingerprint, so it
// always equals what a fresh computation would return.
func (s *Service) Report(ctx context.Context, rng emissions.Range) (*emissions.Report, error) {
	const component = "Reporting"

	if err := rng.Validate(); err != nil {
		return nil, &RangeError{Err: err}
	}

	table, err := s.Factors(ctx)
	if err != nil {
		return nil, err
	}
	calc, err := emissions.NewCalculator(table)
	if err != nil {
		return nil, err
	}
	fingerprint := table.Fingerprint()

	if s.cache != nil {
		version, err := s.snapshots.Version(ctx)
		if err != nil {
			return nil, err
		}
		var cached emissions.Report
		switch err := s.cache.Get(ctx, cache.Key(version, fingerprint, rng.From, rng.To), &cached); {
		case err == nil:
			s.metrics.ObserveCache(metrics.CacheHit)
			return &cached, nil
		case errors.Is(err, cache.ErrMiss):
			s.metrics.ObserveCache(metrics.CacheMiss)
		default:
			s.metrics.ObserveCache(metrics.CacheError)
			s.appLogger.Warn(component, "Cache read failed, computing: err=%v", err)
		}
	}

	snap, err := s.snapshots.Load(ctx, rng)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	report, err := emissions.NewPipeline(calc, s.cfg.Workers).Compute(ctx, snap, rng)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveRecompute(time.Since(started), len(report.Warnings))

	for _, w := range report.Warnings {
		s.appLogger.Warn(component, "Reconciliation: %s", w)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cache.Key(snap.Version, fingerprint, rng.From, rng.To), report); err != nil {
			s.appLogger.Warn(component, "Cache write failed: err=%v", err)
		}
	}
	return report, nil
}

// RangeError marks a caller supplied range that is not valid.
type RangeError struct {
	Err error
}

func (e *RangeError) Error() string { return e.Err.Error() }

func (e *RangeError) Unwrap() error { return e.Err }
