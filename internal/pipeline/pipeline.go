package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/traffic-count-etl/internal/check"
	"github.com/couchcryptid/traffic-count-etl/internal/domain"
	"github.com/couchcryptid/traffic-count-etl/internal/observability"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Extractor lists count files and reads them.
type Extractor interface {
	List(ctx context.Context) ([]string, error)
	Extract(ctx context.Context, location string) (domain.CountImport, error)
}

// BatchLoader persists the aggregates of one count.
type BatchLoader interface {
	LoadBatch(ctx context.Context, batch domain.CountBatch) error
}

// Checker runs data-quality rules over a loaded count.
type Checker interface {
	Check(ctx context.Context, recordNum int) ([]domain.Warning, error)
}

// WarningSink appends entries to the import log.
type WarningSink interface {
	RecordWarnings(ctx context.Context, warnings []domain.Warning) error
}

// Import outcomes, used as the imports_total metric label.
const (
	OutcomeSuccess      = "success"
	OutcomeExtractError = "extract_error"
	OutcomeLoadError    = "load_error"
	OutcomeCheckError   = "check_error"
	OutcomeUnknownType  = "unknown_type"
)

// Result describes the import of one count file. On OutcomeLoadError the
// batch may already be held by loaders that precede the failing one in a
// FanoutLoader.
type Result struct {
	Location     string
	RecordNum    int
	Outcome      string
	Observations int
	Skipped      int
	Bins         int
	Warnings     []domain.Warning
	Err          error
}

// Summary totals one pipeline run.
type Summary struct {
	RunID    string
	Results  []Result
	Duration time.Duration
}

// Failed returns the results that did not import successfully.
func (s Summary) Failed() []Result {
	var out []Result
	for _, r := range s.Results {
		if r.Outcome != OutcomeSuccess {
			out = append(out, r)
		}
	}
	return out
}

// WarningCount returns the number of import log entries written in the run.
func (s Summary) WarningCount() int {
	n := 0
	for _, r := range s.Results {
		n += len(r.Warnings)
	}
	return n
}

// Pipeline orchestrates extract, aggregate, load, check and record for every
// count file of a data directory.
type Pipeline struct {
	extractor Extractor
	loader    BatchLoader
	checker   Checker
	sink      WarningSink
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
	workers   int

	// record number -> *sync.Mutex held from load through record.
	countLocks sync.Map
}

// New creates a Pipeline with the given stages and observability. workers
// bounds how many count files are imported concurrently.
func New(e Extractor, l BatchLoader, c Checker, s WarningSink, logger *slog.Logger, metrics *observability.Metrics, workers int) *Pipeline {
	return &Pipeline{
		extractor: e,
		loader:    l,
		checker:   c,
		sink:      s,
		logger:    logger,
		metrics:   metrics,
		workers:   max(workers, 1),
	}
}

// CheckReadiness returns nil once an import run has completed.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no import run has completed yet")
	}
	return nil
}

// Run imports every count file once. A failure on one file is logged and
// recorded in the summary but never stops the others. Cancelling ctx stops
// new imports from starting; Run then returns the context error.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	start := domain.Now()
	runID := uuid.NewString()
	logger := p.logger.With("run_id", runID)

	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	locations, err := p.extractor.List(ctx)
	if err != nil {
		return Summary{RunID: runID}, fmt.Errorf("list count files: %w", err)
	}
	logger.Info("import started", "files", len(locations), "workers", p.workers)

	var (
		mu      sync.Mutex
		results = make([]Result, 0, len(locations))
		g       errgroup.Group
	)
	g.SetLimit(p.workers)

	for _, loc := range locations {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res := p.Import(ctx, loc)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	summary := Summary{RunID: runID, Results: results, Duration: domain.Since(start)}
	if err := ctx.Err(); err != nil {
		logger.Info("import stopping", "reason", err, "completed", len(results))
		return summary, err
	}

	p.ready.Store(true)
	logger.Info("import finished",
		"files", len(results),
		"failed", len(summary.Failed()),
		"warnings", summary.WarningCount(),
		"duration", summary.Duration,
	)
	return summary, nil
}

// Import runs one count file through every stage.
func (p *Pipeline) Import(ctx context.Context, location string) Result {
	start := domain.Now()
	res := Result{Location: location}
	logger := p.logger.With("location", location)

	imp, err := p.extractor.Extract(ctx, location)
	if err != nil {
		logger.Error("extract failed, skipping file", "error", err)
		return p.finish(res, OutcomeExtractError, err)
	}
	res.RecordNum = imp.Header.RecordNum
	logger = logger.With("record_num", res.RecordNum)

	unlock := p.lockCount(res.RecordNum, logger)
	defer unlock()

	batch, processing := Transform(imp)
	res.Observations = len(imp.Vehicles) + len(imp.RowErrors)
	res.Skipped = len(processing)
	res.Bins = len(batch.ClassCounts) + len(batch.BicycleCounts)
	p.observe(batch, processing, res.Observations)
	for _, w := range processing {
		logger.Error(w.Message)
	}

	if err := p.loader.LoadBatch(ctx, batch); err != nil {
		logger.Error("load failed", "error", err)
		res.Warnings = p.record(ctx, logger, processing)
		return p.finish(res, OutcomeLoadError, err)
	}

	findings, err := p.checker.Check(ctx, res.RecordNum)
	res.Warnings = p.record(ctx, logger, append(processing, findings...))
	if err != nil {
		outcome := OutcomeCheckError
		if check.IsUnknownCountType(err) {
			outcome = OutcomeUnknownType
		}
		logger.Error("data check failed", "error", err)
		return p.finish(res, outcome, err)
	}

	p.metrics.ImportDuration.Observe(domain.Since(start).Seconds())
	logger.Info("count imported",
		"observations", res.Observations,
		"skipped", res.Skipped,
		"bins", res.Bins,
		"warnings", len(res.Warnings),
	)
	return p.finish(res, OutcomeSuccess, nil)
}

// lockCount serializes imports of files sharing a record number, so a check
// only ever sees the rows its own file loaded.
func (p *Pipeline) lockCount(recordNum int, logger *slog.Logger) func() {
	v, _ := p.countLocks.LoadOrStore(recordNum, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	if !mu.TryLock() {
		logger.Warn("another file with this record number is importing, waiting")
		mu.Lock()
	}
	return mu.Unlock
}

func (p *Pipeline) finish(res Result, outcome string, err error) Result {
	res.Outcome = outcome
	res.Err = err
	p.metrics.Imports.WithLabelValues(outcome).Inc()
	return res
}

// record writes entries to the import log. A sink failure is logged; the
// entries are still returned so callers can report them.
func (p *Pipeline) record(ctx context.Context, logger *slog.Logger, warnings []domain.Warning) []domain.Warning {
	if len(warnings) == 0 {
		return nil
	}
	if err := p.sink.RecordWarnings(ctx, warnings); err != nil {
		logger.Error("record warnings failed", "error", err, "count", len(warnings))
	}
	return warnings
}

func (p *Pipeline) observe(batch domain.CountBatch, processing []domain.Warning, observations int) {
	p.metrics.Observations.Add(float64(observations))
	for _, w := range processing {
		p.metrics.ObservationsSkipped.WithLabelValues(w.Rule).Inc()
	}
	p.metrics.BinsProduced.WithLabelValues("class").Add(float64(len(batch.ClassCounts)))
	p.metrics.BinsProduced.WithLabelValues("speed").Add(float64(len(batch.SpeedCounts)))
	p.metrics.BinsProduced.WithLabelValues("volume").Add(float64(len(batch.VolumeCounts)))
	p.metrics.BinsProduced.WithLabelValues("bicycle").Add(float64(len(batch.BicycleCounts)))
}
