// Package reports assembles monthly cost reports in a caller-selected
// display currency.
package reports

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"costbook/internal/core"
	"costbook/internal/rates"
)

// Builder joins stored costs with the current exchange rates.
type Builder struct {
	records RecordLister
	rates   RateSource
}

func NewBuilder(records RecordLister, rateSource RateSource) *Builder {
	return &Builder{records: records, rates: rateSource}
}

// Build assembles the report for one month. Records keep their original sum
// and currency; only the aggregates are converted into the display currency.
// Records and rates are fetched concurrently, and since the rate source never
// fails only record retrieval can abort the report.
func (b *Builder) Build(ctx context.Context, period core.Period, display core.Currency) (core.Report, error) {
	currency, err := core.ParseCurrency(string(display))
	if err != nil {
		return core.Report{}, &core.ValidationError{Field: "currency", Err: err}
	}
	if err := period.Validate(); err != nil {
		return core.Report{}, err
	}

	var (
		records []core.Record
		table   core.RateTable
		source  rates.Source
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		records, err = b.records.ListByPeriod(gctx, period.Year, period.Month)
		if err != nil {
			return fmt.Errorf("listing costs for %d-%02d: %w", period.Year, period.Month, err)
		}
		return nil
	})
	g.Go(func() error {
		table, source = b.rates.Fetch(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return core.Report{}, err
	}
	if records == nil {
		records = []core.Record{}
	}

	report := core.Report{
		Period:     period,
		Currency:   currency,
		Records:    records,
		ByCategory: make(map[string]float64, len(records)),
		Counts:     make(map[string]int, len(records)),
	}
	var total float64
	byCategory := make(map[string]float64, len(records))
	for _, rec := range records {
		converted := core.Convert(rec.Sum, rec.Currency, currency, table)
		total += converted
		byCategory[rec.Category] += converted
		report.Counts[rec.Category]++
	}
	// Per-record amounts are already rounded; one more pass washes out the
	// float noise the accumulation picks up.
	for category, sum := range byCategory {
		report.ByCategory[category] = core.Round2(sum)
	}
	report.Total = core.Round2(total)

	if source != rates.SourceConfigured {
		slog.InfoContext(ctx, "Report rates resolved below the configured tier",
			"source", source.String(),
			"year", period.Year,
			"month", period.Month)
	}
	return report, nil
}
