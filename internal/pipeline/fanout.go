package pipeline

import (
	"context"
	"errors"

	"github.com/couchcryptid/traffic-count-etl/internal/domain"
)

// FanoutLoader loads each batch into every loader in order and stops at the
// first failure, so later loaders never see a batch an earlier one rejected.
// Put the loader most likely to fail (a remote broker) first and the
// queryable store last.
type FanoutLoader []BatchLoader

func (f FanoutLoader) LoadBatch(ctx context.Context, batch domain.CountBatch) error {
	for _, l := range f {
		if err := l.LoadBatch(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}

// FanoutSink records warnings in every sink and joins their errors.
type FanoutSink []WarningSink

func (f FanoutSink) RecordWarnings(ctx context.Context, warnings []domain.Warning) error {
	var errs []error
	for _, s := range f {
		if err := s.RecordWarnings(ctx, warnings); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
