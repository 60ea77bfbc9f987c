package pipeline

import (
	"errors"
	"log/slog"

	"github.com/couchcryptid/traffic-count-etl/internal/domain"
)

// Reasons an observation is skipped. They name the import log entry's rule
// and label the observations_skipped_total metric.
const (
	SkipInvalidRow     = "invalid_row"
	SkipUnknownChannel = "unknown_channel"
	SkipInvalidClass   = "invalid_class"
	SkipInvalidSpeed   = "invalid_speed"
)

// Transform bins the observations of an import into the batch to persist.
// Every unreadable row and every observation the aggregation rejected comes
// back as an error-level import log entry.
func Transform(imp domain.CountImport) (domain.CountBatch, []domain.Warning) {
	recordNum := imp.Header.RecordNum
	var skipped []domain.Warning
	for _, re := range imp.RowErrors {
		skipped = append(skipped, domain.NewWarning(recordNum, slog.LevelError, SkipInvalidRow, re.Error()))
	}

	if imp.Header.Type.IsBicycle() {
		return domain.NewBicycleBatch(imp.Header, imp.Bicycles), skipped
	}

	agg := domain.Aggregate(imp.Header.Metadata, imp.Vehicles)
	for _, pe := range agg.Errors {
		skipped = append(skipped, domain.NewWarning(recordNum, slog.LevelError, skipReason(pe.Err), pe.Error()))
	}
	return domain.NewCountBatch(imp.Header, agg), skipped
}

func skipReason(err error) string {
	var (
		channelErr *domain.UnknownChannelError
		classErr   *domain.InvalidVehicleClassError
		speedErr   *domain.InvalidSpeedError
	)
	switch {
	case errors.As(err, &channelErr):
		return SkipUnknownChannel
	case errors.As(err, &classErr):
		return SkipInvalidClass
	case errors.As(err, &speedErr):
		return SkipInvalidSpeed
	}
	return SkipInvalidRow
}
