package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/traffic-count-etl/internal/adapter/memstore"
	"github.com/couchcryptid/traffic-count-etl/internal/check"
	"github.com/couchcryptid/traffic-count-etl/internal/domain"
	"github.com/couchcryptid/traffic-count-etl/internal/observability"
	"github.com/couchcryptid/traffic-count-etl/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockExtractor struct {
	imports map[string]domain.CountImport
	errs    map[string]error
	listErr error
	delay   time.Duration

	active    atomic.Int32
	maxActive atomic.Int32
}

func (m *mockExtractor) List(context.Context) ([]string, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var locs []string
	for loc := range m.imports {
		locs = append(locs, loc)
	}
	for loc := range m.errs {
		locs = append(locs, loc)
	}
	slices.Sort(locs)
	return locs, nil
}

func (m *mockExtractor) Extract(_ context.Context, location string) (domain.CountImport, error) {
	n := m.active.Add(1)
	defer m.active.Add(-1)
	for {
		cur := m.maxActive.Load()
		if n <= cur || m.maxActive.CompareAndSwap(cur, n) {
			break
		}
	}
	time.Sleep(m.delay)

	if err, ok := m.errs[location]; ok {
		return domain.CountImport{}, err
	}
	return m.imports[location], nil
}

type mockLoader struct {
	mu      sync.Mutex
	batches []domain.CountBatch
	err     error
}

func (m *mockLoader) LoadBatch(_ context.Context, batch domain.CountBatch) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, batch)
	return nil
}

type mockChecker struct {
	findings map[int][]string
	err      error
	calls    atomic.Int32
}

func (m *mockChecker) Check(_ context.Context, recordNum int) ([]domain.Warning, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.Warning
	for _, msg := range m.findings[recordNum] {
		out = append(out, domain.NewWarning(recordNum, slog.LevelWarn, "mock_rule", msg))
	}
	return out, nil
}

type mockSink struct {
	mu       sync.Mutex
	warnings []domain.Warning
	err      error
}

func (m *mockSink) RecordWarnings(_ context.Context, warnings []domain.Warning) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warnings = append(m.warnings, warnings...)
	return m.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var day = time.Date(2023, 5, 8, 0, 0, 0, 0, time.UTC)

func vehicleImport(recordNum int, vehicles ...domain.CountedVehicle) domain.CountImport {
	return domain.CountImport{
		Location: fmt.Sprintf("vehicles/rc-%d-ew-1-35.txt", recordNum),
		Header: domain.CountHeader{
			Metadata: domain.Metadata{
				Technician: "rc",
				RecordNum:  recordNum,
				Directions: domain.TwoWay(domain.East, domain.West),
				CounterID:  1,
			},
			Type: domain.CountTypeClass,
		},
		Vehicles: vehicles,
	}
}

func car(h, m int, channel uint8) domain.CountedVehicle {
	return domain.CountedVehicle{ObservedAt: day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute), Channel: channel, Class: 2, Speed: 33}
}

func resultFor(t *testing.T, s pipeline.Summary, recordNum int) pipeline.Result {
	t.Helper()
	for _, r := range s.Results {
		if r.RecordNum == recordNum {
			return r
		}
	}
	t.Fatalf("no result for count %d", recordNum)
	return pipeline.Result{}
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	ext := &mockExtractor{imports: map[string]domain.CountImport{
		"a": vehicleImport(1, car(9, 1, 1), car(9, 2, 2), car(9, 20, 1)),
		"b": vehicleImport(2, car(10, 0, 1)),
	}}
	ldr := &mockLoader{}
	chk := &mockChecker{findings: map[int][]string{2: {"looks odd"}}}
	sink := &mockSink{}
	metrics := observability.NewMetricsForTesting()

	p := pipeline.New(ext, ldr, chk, sink, discardLogger(), metrics, 2)
	require.Error(t, p.CheckReadiness(context.Background()))

	summary, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, summary.RunID)
	assert.Len(t, summary.Results, 2)
	assert.Empty(t, summary.Failed())
	assert.Equal(t, 1, summary.WarningCount())
	require.NoError(t, p.CheckReadiness(context.Background()))

	first := resultFor(t, summary, 1)
	assert.Equal(t, pipeline.OutcomeSuccess, first.Outcome)
	assert.Equal(t, 3, first.Observations)
	assert.Equal(t, 3, first.Bins)
	assert.Len(t, ldr.batches, 2)
	assert.Len(t, sink.warnings, 1)
	assert.Equal(t, int32(2), chk.calls.Load())

	assert.InDelta(t, 2, testutil.ToFloat64(metrics.Imports.WithLabelValues(pipeline.OutcomeSuccess)), 0)
	assert.InDelta(t, 4, testutil.ToFloat64(metrics.Observations), 0)
	assert.InDelta(t, 4, testutil.ToFloat64(metrics.BinsProduced.WithLabelValues("class")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.PipelineRunning), 0)
}

func TestPipeline_Run_SkippedObservations(t *testing.T) {
	bad := vehicleImport(5,
		car(9, 0, 1),
		domain.CountedVehicle{ObservedAt: day, Channel: 3, Class: 2, Speed: 30},
		domain.CountedVehicle{ObservedAt: day, Channel: 1, Class: 16, Speed: 30},
		domain.CountedVehicle{ObservedAt: day, Channel: 1, Class: 2, Speed: -4},
	)
	bad.RowErrors = []domain.RowError{{Line: 9, Err: errors.New("channel: invalid syntax")}}

	ext := &mockExtractor{imports: map[string]domain.CountImport{"a": bad}}
	sink := &mockSink{}
	metrics := observability.NewMetricsForTesting()

	p := pipeline.New(ext, &mockLoader{}, &mockChecker{}, sink, discardLogger(), metrics, 1)
	summary, err := p.Run(context.Background())
	require.NoError(t, err)

	res := resultFor(t, summary, 5)
	assert.Equal(t, pipeline.OutcomeSuccess, res.Outcome)
	assert.Equal(t, 5, res.Observations)
	assert.Equal(t, 4, res.Skipped)
	require.Len(t, sink.warnings, 4)
	for _, w := range sink.warnings {
		assert.Equal(t, slog.LevelError, w.Level)
	}

	for _, reason := range []string{pipeline.SkipInvalidRow, pipeline.SkipUnknownChannel, pipeline.SkipInvalidClass, pipeline.SkipInvalidSpeed} {
		assert.InDelta(t, 1, testutil.ToFloat64(metrics.ObservationsSkipped.WithLabelValues(reason)), 0, reason)
	}
}

func TestPipeline_Run_FailureDoesNotStopOthers(t *testing.T) {
	ext := &mockExtractor{
		imports: map[string]domain.CountImport{"good": vehicleImport(1, car(9, 0, 1))},
		errs:    map[string]error{"bad": errors.New("filename has too few parts")},
	}
	ldr := &mockLoader{}
	metrics := observability.NewMetricsForTesting()

	p := pipeline.New(ext, ldr, &mockChecker{}, &mockSink{}, discardLogger(), metrics, 1)
	summary, err := p.Run(context.Background())
	require.NoError(t, err)

	failed := summary.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "bad", failed[0].Location)
	assert.Equal(t, pipeline.OutcomeExtractError, failed[0].Outcome)
	assert.EqualError(t, failed[0].Err, "filename has too few parts")
	assert.Len(t, ldr.batches, 1)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Imports.WithLabelValues(pipeline.OutcomeExtractError)), 0)
	require.NoError(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Import_LoadError(t *testing.T) {
	imp := vehicleImport(3, car(9, 0, 1), domain.CountedVehicle{ObservedAt: day, Channel: 9, Class: 2, Speed: 1})
	ext := &mockExtractor{imports: map[string]domain.CountImport{"a": imp}}
	chk := &mockChecker{}
	sink := &mockSink{}

	p := pipeline.New(ext, &mockLoader{err: errors.New("disk full")}, chk, sink, discardLogger(), observability.NewMetricsForTesting(), 1)
	res := p.Import(context.Background(), "a")

	assert.Equal(t, pipeline.OutcomeLoadError, res.Outcome)
	assert.EqualError(t, res.Err, "disk full")
	assert.Zero(t, chk.calls.Load())
	assert.Len(t, sink.warnings, 1, "skipped observations are still logged")
}

func TestPipeline_Import_CheckErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"unknown type", &check.UnknownCountTypeError{RecordNum: 4}, pipeline.OutcomeUnknownType},
		{"query failure", &check.QueryError{RecordNum: 4, Dataset: check.VolumeCounts, Err: errors.New("timeout")}, pipeline.OutcomeCheckError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext := &mockExtractor{imports: map[string]domain.CountImport{"a": vehicleImport(4, car(9, 0, 1))}}
			ldr := &mockLoader{}
			p := pipeline.New(ext, ldr, &mockChecker{err: tt.err}, &mockSink{}, discardLogger(), observability.NewMetricsForTesting(), 1)

			res := p.Import(context.Background(), "a")
			assert.Equal(t, tt.expected, res.Outcome)
			assert.ErrorIs(t, res.Err, tt.err)
			assert.Len(t, ldr.batches, 1)
		})
	}
}

func TestPipeline_Import_SinkErrorIsNotFatal(t *testing.T) {
	ext := &mockExtractor{imports: map[string]domain.CountImport{"a": vehicleImport(6, car(9, 0, 1))}}
	chk := &mockChecker{findings: map[int][]string{6: {"odd"}}}

	p := pipeline.New(ext, &mockLoader{}, chk, &mockSink{err: errors.New("broker down")}, discardLogger(), observability.NewMetricsForTesting(), 1)
	res := p.Import(context.Background(), "a")

	assert.Equal(t, pipeline.OutcomeSuccess, res.Outcome)
	assert.Len(t, res.Warnings, 1)
}

func TestPipeline_Run_ListError(t *testing.T) {
	ext := &mockExtractor{listErr: errors.New("permission denied")}
	p := pipeline.New(ext, &mockLoader{}, &mockChecker{}, &mockSink{}, discardLogger(), observability.NewMetricsForTesting(), 1)

	_, err := p.Run(context.Background())
	require.ErrorContains(t, err, "list count files: permission denied")
	require.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	ext := &mockExtractor{imports: map[string]domain.CountImport{"a": vehicleImport(1, car(9, 0, 1))}}
	ldr := &mockLoader{}
	p := pipeline.New(ext, ldr, &mockChecker{}, &mockSink{}, discardLogger(), observability.NewMetricsForTesting(), 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := p.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, summary.Results)
	assert.Empty(t, ldr.batches)
	require.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_BoundedWorkers(t *testing.T) {
	imports := map[string]domain.CountImport{}
	for i := 1; i <= 12; i++ {
		imports[fmt.Sprintf("loc-%02d", i)] = vehicleImport(i, car(9, 0, 1))
	}
	ext := &mockExtractor{imports: imports, delay: 10 * time.Millisecond}
	ldr := &mockLoader{}

	p := pipeline.New(ext, ldr, &mockChecker{}, &mockSink{}, discardLogger(), observability.NewMetricsForTesting(), 3)
	summary, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, summary.Results, 12)
	assert.Len(t, ldr.batches, 12)
	assert.LessOrEqual(t, ext.maxActive.Load(), int32(3))
}

func TestTransform_Bicycle(t *testing.T) {
	imp := domain.CountImport{
		Header: domain.CountHeader{
			Metadata: domain.Metadata{RecordNum: 9, Directions: domain.OneWay(domain.North)},
			Type:     domain.CountTypeBicycle,
		},
		Bicycles:  []domain.BicycleCount{{RecordNum: 9, Start: day, Direction: domain.North, Total: 4}},
		RowErrors: []domain.RowError{{Line: 12, Err: errors.New("time: bad value")}},
	}

	batch, skipped := pipeline.Transform(imp)
	assert.Equal(t, imp.Bicycles, batch.BicycleCounts)
	assert.Empty(t, batch.ClassCounts)
	require.Len(t, skipped, 1)
	assert.Equal(t, pipeline.SkipInvalidRow, skipped[0].Rule)
	assert.Equal(t, "line 12: time: bad value", skipped[0].Message)
}

func TestTransform_Vehicles(t *testing.T) {
	imp := vehicleImport(8, car(9, 0, 1), car(9, 5, 2), domain.CountedVehicle{ObservedAt: day, Channel: 1, Class: 99, Speed: 3})

	batch, skipped := pipeline.Transform(imp)
	assert.Len(t, batch.ClassCounts, 2)
	assert.Len(t, batch.SpeedCounts, 2)
	assert.Len(t, batch.VolumeCounts, 2)
	require.Len(t, skipped, 1)
	assert.Equal(t, pipeline.SkipInvalidClass, skipped[0].Rule)
	assert.Equal(t, "observation 2: no such vehicle class '99'", skipped[0].Message)
	assert.Equal(t, 8, skipped[0].RecordNum)
}

func TestFanoutLoader_StopsAtFirstFailure(t *testing.T) {
	first := &mockLoader{err: errors.New("store down")}
	second := &mockLoader{}

	err := pipeline.FanoutLoader{first, second}.LoadBatch(context.Background(), domain.CountBatch{})
	require.EqualError(t, err, "store down")
	assert.Empty(t, second.batches)
}

func TestFanoutSink_JoinsErrors(t *testing.T) {
	ok := &mockSink{}
	broken := &mockSink{err: errors.New("broker down")}
	ws := []domain.Warning{{RecordNum: 1, Message: "x"}}

	err := pipeline.FanoutSink{broken, ok}.RecordWarnings(context.Background(), ws)
	require.EqualError(t, err, "broker down")
	assert.Len(t, ok.warnings, 1)
}

// overlapStore loads and checks counts slowly and counts how often a load
// started while an earlier load of the same record number was not yet checked.
type overlapStore struct {
	mu       sync.Mutex
	inFlight map[int]bool
	overlaps int
}

func (s *overlapStore) LoadBatch(_ context.Context, batch domain.CountBatch) error {
	s.mu.Lock()
	if s.inFlight[batch.RecordNum()] {
		s.overlaps++
	}
	s.inFlight[batch.RecordNum()] = true
	s.mu.Unlock()
	time.Sleep(20 * time.Millisecond)
	return nil
}

func (s *overlapStore) Check(_ context.Context, recordNum int) ([]domain.Warning, error) {
	time.Sleep(10 * time.Millisecond)
	s.mu.Lock()
	s.inFlight[recordNum] = false
	s.mu.Unlock()
	return nil, nil
}

func TestPipeline_Run_SameRecordNumSerialized(t *testing.T) {
	ext := &mockExtractor{imports: map[string]domain.CountImport{
		"a": vehicleImport(7, car(9, 0, 1)),
		"b": vehicleImport(7, car(10, 0, 1)),
		"c": vehicleImport(7, car(11, 0, 2)),
		"d": vehicleImport(8, car(9, 0, 1)),
	}}
	store := &overlapStore{inFlight: map[int]bool{}}

	p := pipeline.New(ext, store, store, &mockSink{}, discardLogger(), observability.NewMetricsForTesting(), 4)
	summary, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, summary.Results, 4)
	assert.Empty(t, summary.Failed())
	assert.Zero(t, store.overlaps)
}

func TestPipeline_Run_RejectedBatchNotQueryable(t *testing.T) {
	ext := &mockExtractor{imports: map[string]domain.CountImport{"a": vehicleImport(3, car(9, 0, 1))}}
	broker := &mockLoader{err: errors.New("broker down")}
	store := memstore.New()

	p := pipeline.New(ext, pipeline.FanoutLoader{broker, store}, &mockChecker{}, store,
		discardLogger(), observability.NewMetricsForTesting(), 1)
	summary, err := p.Run(context.Background())
	require.NoError(t, err)

	res := resultFor(t, summary, 3)
	assert.Equal(t, pipeline.OutcomeLoadError, res.Outcome)
	_, err = store.Header(context.Background(), 3)
	assert.ErrorIs(t, err, memstore.ErrNotFound)
}
