package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/farxc/carbon_footprint/internal/emissions"
	"github.com/farxc/carbon_footprint/internal/intake"
	"github.com/farxc/carbon_footprint/internal/store"
	"github.com/spf13/cobra"
)

func newCatalogCmd(e *etl) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog <file>",
		Short: "Load product catalogue entries from a csv or xlsx file",
		Long:  "Load product catalogue entries. The file needs a product_id column; product_name and category are optional.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			const component = "Catalog"

			table, err := readReference(args[0])
			if err != nil {
				return err
			}
			entries, err := catalogEntries(table)
			if err != nil {
				return err
			}

			storage, err := e.storage()
			if err != nil {
				return err
			}
			if err := storage.Catalog.Upsert(cmd.Context(), entries); err != nil {
				return err
			}
			e.appLogger.Info(component, "Catalogue loaded: file=%s entries=%d", args[0], len(entries))
			return nil
		},
	}
}

func newFactorsCmd(e *etl) *cobra.Command {
	return &cobra.Command{
		Use:   "factors <file>",
		Short: "Load reference emission factors from a csv or xlsx file",
		Long:  "Load reference emission factors. Columns: region, activity_type, year, factor and an optional reference.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			const component = "Factors"

			table, err := readReference(args[0])
			if err != nil {
				return err
			}
			factors, err := referenceFactors(table)
			if err != nil {
				return err
			}

			storage, err := e.storage()
			if err != nil {
				return err
			}
			for i := range factors {
				if err := storage.Factors.Insert(cmd.Context(), &factors[i]); err != nil {
					return err
				}
			}
			e.appLogger.Info(component, "Reference factors loaded: file=%s rows=%d", args[0], len(factors))
			return nil
		},
	}
}

func readReference(path string) (*intake.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return intake.Read(path, f, intake.DefaultOptions())
}

func requireColumns(table *intake.Table, columns ...string) error {
	present := make(map[string]bool, len(table.Header))
	for _, h := range table.Header {
		present[h] = true
	}
	var missing []string
	for _, c := range columns {
		if !present[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}
	return nil
}

func catalogEntries(table *intake.Table) ([]emissions.CatalogEntry, error) {
	if err := requireColumns(table, "product_id"); err != nil {
		return nil, err
	}

	var errs []error
	entries := make([]emissions.CatalogEntry, 0, len(table.Rows))
	for _, row := range table.Rows {
		id, _ := row.Get("product_id")
		if strings.TrimSpace(id) == "" {
			errs = append(errs, fmt.Errorf("line %d: product_id is empty", row.Line))
			continue
		}
		name, _ := row.Get("product_name")
		category, _ := row.Get("category")
		entries = append(entries, emissions.CatalogEntry{ProductID: id, ProductName: name, Category: category})
	}
	return entries, errors.Join(errs...)
}

func referenceFactors(table *intake.Table) ([]store.EmissionFactor, error) {
	if err := requireColumns(table, "region", "activity_type", "year", "factor"); err != nil {
		return nil, err
	}

	var errs []error
	factors := make([]store.EmissionFactor, 0, len(table.Rows))
	for _, row := range table.Rows {
		region, _ := row.Get("region")
		activity, _ := row.Get("activity_type")
		rawYear, _ := row.Get("year")
		rawFactor, _ := row.Get("factor")
		reference, _ := row.Get("reference")

		region, activity = strings.TrimSpace(region), strings.TrimSpace(activity)
		if region == "" || activity == "" {
			errs = append(errs, fmt.Errorf("line %d: region and activity_type are required", row.Line))
			continue
		}
		year, err := strconv.Atoi(strings.TrimSpace(rawYear))
		if err != nil {
			errs = append(errs, fmt.Errorf("line %d: year %q is not an integer", row.Line, rawYear))
			continue
		}
		value, err := parseDecimal(rawFactor)
		if err != nil || value < 0 {
			errs = append(errs, fmt.Errorf("line %d: factor %q must be a non-negative number", row.Line, rawFactor))
			continue
		}

		factors = append(factors, store.EmissionFactor{
			Region:       region,
			ActivityType: activity,
			Year:         year,
			Factor:       value,
			Reference:    strings.TrimSpace(reference),
		})
	}
	return factors, errors.Join(errs...)
}

// parseDecimal accepts both "0.82" and the decimal comma form "0,82".
func parseDecimal(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") && !strings.Contains(s, ".") {
		s = strings.ReplaceAll(s, ",", ".")
	}
	return strconv.ParseFloat(s, 64)
}
