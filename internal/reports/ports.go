package reports

import (
	"context"

	"costbook/internal/core"
	"costbook/internal/rates"
)

// Ports the builder pulls its inputs through.
type (
	// RecordLister returns the costs recorded for a given month.
	RecordLister interface {
		ListByPeriod(ctx context.Context, year int, month int) ([]core.Record, error)
	}

	// RateSource resolves the exchange-rate table, never failing.
	RateSource interface {
		Fetch(ctx context.Context) (core.RateTable, rates.Source)
	}
)
