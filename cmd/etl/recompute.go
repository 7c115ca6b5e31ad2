package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/farxc/carbon_footprint/internal/emissions"
	"github.com/farxc/carbon_footprint/internal/env"
	"github.com/farxc/carbon_footprint/internal/reporting"
	"github.com/farxc/carbon_footprint/internal/store"
	"github.com/spf13/cobra"
)

var reportParts = map[string]func(*emissions.Report) any{
	"footprint": func(r *emissions.Report) any { return r.Footprint },
	"products":  func(r *emissions.Report) any { return r.Products },
	"bills":     func(r *emissions.Report) any { return r.Bills },
	"company":   func(r *emissions.Report) any { return r.Company },
	"trends":    func(r *emissions.Report) any { return r.Trends },
	"kpis":      func(r *emissions.Report) any { return r.KPI },
	"warnings":  func(r *emissions.Report) any { return r.Warnings },
	"all":       func(r *emissions.Report) any { return r },
}

func newRecomputeCmd(e *etl) *cobra.Command {
	var (
		rng     emissions.Range
		part    string
		region  string
		workers int
	)

	cmd := &cobra.Command{
		Use:   "recompute",
		Short: "Recompute every metric from the stored records and print one family as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			pick, ok := reportParts[part]
			if !ok {
				return fmt.Errorf("unknown output %q", part)
			}
			storage, err := e.storage()
			if err != nil {
				return err
			}
			return runRecompute(cmd.Context(), e, storage, cmd.OutOrStdout(), rng, reporting.Config{Region: region, Workers: workers}, pick)
		},
	}

	cmd.Flags().StringVar(&rng.From, "from", "", "First month, YYYY-MM")
	cmd.Flags().StringVar(&rng.To, "to", "", "Last month, YYYY-MM")
	cmd.Flags().StringVar(&part, "output", "footprint", "Metric family: footprint, products, bills, company, trends, kpis, warnings, all")
	cmd.Flags().StringVar(&region, "region", reporting.RegionFromEnv(), "Region used to pick reference factors")
	cmd.Flags().IntVar(&workers, "workers", env.GetInt("PIPELINE_WORKERS", 0), "Calculation workers, 0 for one per CPU")

	return cmd
}

func runRecompute(ctx context.Context, e *etl, storage *store.Storage, out io.Writer, rng emissions.Range, cfg reporting.Config, pick func(*emissions.Report) any) error {
	const component = "Recompute"

	base, err := reporting.BaseFactorsFromEnv()
	if err != nil {
		return err
	}
	cfg.Base = base

	reports, err := reporting.NewService(storage.Snapshots, storage.Factors, nil, nil, e.appLogger, cfg)
	if err != nil {
		return err
	}

	report, err := reports.Report(ctx, rng)
	if err != nil {
		return err
	}
	e.appLogger.Info(component, "Report computed: version=%d products=%d bills=%d warnings=%d",
		report.Version, len(report.Products), len(report.Bills), len(report.Warnings))

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(pick(report))
}
