// Package check runs data-quality heuristics over the persisted aggregates of
// a traffic count and reports advisory warnings for human review.
package check

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/traffic-count-etl/internal/domain"
	"github.com/couchcryptid/traffic-count-etl/internal/observability"
)

// Store reads persisted aggregates for one count.
type Store interface {
	// CountType returns the header's count type. An empty type with a nil
	// error means the header exists but its type is not set.
	CountType(ctx context.Context, recordNum int) (domain.CountType, error)
	ClassCounts(ctx context.Context, recordNum int) ([]domain.ClassCountRow, error)
	VolumeCounts(ctx context.Context, recordNum int) ([]domain.VolumeCount, error)
	BicycleCounts(ctx context.Context, recordNum int) ([]domain.BicycleCount, error)
}

// UnknownCountTypeError means no rule set can be chosen for the count.
type UnknownCountTypeError struct {
	RecordNum int
	Err       error
}

func (e *UnknownCountTypeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unable to identify type of count %d: %v", e.RecordNum, e.Err)
	}
	return fmt.Sprintf("unable to identify type of count %d", e.RecordNum)
}

func (e *UnknownCountTypeError) Unwrap() error { return e.Err }

// QueryError wraps a Store failure while loading a dataset.
type QueryError struct {
	RecordNum int
	Dataset   Dataset
	Err       error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %s for count %d: %v", e.Dataset, e.RecordNum, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// Checker evaluates a rule set against one count at a time.
type Checker struct {
	store   Store
	rules   []Rule
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a Checker. A nil rules slice uses DefaultRules; metrics may be nil.
func New(store Store, rules []Rule, logger *slog.Logger, metrics *observability.Metrics) *Checker {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Checker{store: store, rules: rules, logger: logger, metrics: metrics}
}

// Check resolves the count's type, loads the datasets its rules need and
// returns every warning found. Rule findings are never errors; errors come
// only from an unresolvable count type or a failing Store.
func (c *Checker) Check(ctx context.Context, recordNum int) ([]domain.Warning, error) {
	countType, err := c.store.CountType(ctx, recordNum)
	if err != nil || countType == "" {
		return nil, &UnknownCountTypeError{RecordNum: recordNum, Err: err}
	}

	var applicable []Rule
	var needs Dataset
	for _, r := range c.rules {
		if r.AppliesTo(countType) {
			applicable = append(applicable, r)
			needs |= r.Needs()
		}
	}

	snap, err := c.load(ctx, recordNum, countType, needs)
	if err != nil {
		return nil, err
	}

	var warnings []domain.Warning
	for _, r := range applicable {
		for _, msg := range r.Evaluate(snap) {
			w := domain.NewWarning(recordNum, slog.LevelWarn, r.Name(), msg)
			c.logger.Warn(msg, "record_num", recordNum, "rule", r.Name())
			if c.metrics != nil {
				c.metrics.WarningsEmitted.WithLabelValues(r.Name()).Inc()
			}
			warnings = append(warnings, w)
		}
	}
	return warnings, nil
}

func (c *Checker) load(ctx context.Context, recordNum int, countType domain.CountType, needs Dataset) (Snapshot, error) {
	snap := Snapshot{RecordNum: recordNum, CountType: countType}
	var err error

	if needs&ClassCounts != 0 {
		if snap.ClassCounts, err = c.store.ClassCounts(ctx, recordNum); err != nil {
			return Snapshot{}, &QueryError{RecordNum: recordNum, Dataset: ClassCounts, Err: err}
		}
	}
	if needs&VolumeCounts != 0 {
		if snap.VolumeCounts, err = c.store.VolumeCounts(ctx, recordNum); err != nil {
			return Snapshot{}, &QueryError{RecordNum: recordNum, Dataset: VolumeCounts, Err: err}
		}
	}
	if needs&BicycleCounts != 0 {
		if snap.BicycleCounts, err = c.store.BicycleCounts(ctx, recordNum); err != nil {
			return Snapshot{}, &QueryError{RecordNum: recordNum, Dataset: BicycleCounts, Err: err}
		}
	}
	return snap, nil
}

// IsUnknownCountType reports whether err is an UnknownCountTypeError.
func IsUnknownCountType(err error) bool {
	var target *UnknownCountTypeError
	return errors.As(err, &target)
}
