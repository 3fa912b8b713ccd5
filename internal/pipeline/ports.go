package pipeline

import (
	"context"

	"github.com/couchcryptid/spot-price-refiner/internal/domain"
)

// PriceSource reads one calendar day's hourly prices from the store.
// date is formatted as domain.DateLayout.
type PriceSource interface {
	FetchPrices(ctx context.Context, date string) (domain.PriceSeries, error)
}

// RecordSink persists a refined record.
type RecordSink interface {
	WriteRecord(ctx context.Context, rec domain.ClassificationRecord) error
}
