// Package memstore keeps imported counts, their aggregates and the import log
// in process memory. It serves as both the pipeline's loader and the data
// quality checker's query collaborator.
package memstore

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/couchcryptid/traffic-count-etl/internal/domain"
)

// ErrNotFound is returned when no header exists for a record number.
var ErrNotFound = errors.New("count not found")

// DefaultPageSize is used by Headers when limit is not positive.
const DefaultPageSize = 100

type record struct {
	header   domain.CountHeader
	classes  []domain.ClassCountRow
	speeds   []domain.SpeedCountRow
	volumes  []domain.VolumeCount
	bicycles []domain.BicycleCount
}

// Store is a concurrency-safe in-memory count store.
type Store struct {
	mu       sync.RWMutex
	records  map[int]*record
	warnings map[int][]domain.Warning
	logSeq   []int
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		records:  make(map[int]*record),
		warnings: make(map[int][]domain.Warning),
	}
}

// LoadBatch replaces everything stored for the batch's count.
func (s *Store) LoadBatch(ctx context.Context, batch domain.CountBatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if batch.RecordNum() <= 0 {
		return fmt.Errorf("load count: invalid record number %d", batch.RecordNum())
	}

	rec := &record{
		header:   batch.Header,
		classes:  slices.Clone(batch.ClassCounts),
		speeds:   slices.Clone(batch.SpeedCounts),
		volumes:  slices.Clone(batch.VolumeCounts),
		bicycles: slices.Clone(batch.BicycleCounts),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[batch.RecordNum()] = rec
	return nil
}

// RecordWarnings appends entries to the import log.
func (s *Store) RecordWarnings(ctx context.Context, warnings []domain.Warning) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range warnings {
		s.warnings[w.RecordNum] = append(s.warnings[w.RecordNum], w)
		s.logSeq = append(s.logSeq, w.RecordNum)
	}
	return nil
}

// Warnings returns the import log of one count, newest first. A count with
// no entries yields an empty slice.
func (s *Store) Warnings(ctx context.Context, recordNum int) ([]domain.Warning, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Warning, len(s.warnings[recordNum]))
	copy(out, s.warnings[recordNum])
	slices.Reverse(out)
	return out, nil
}

// AllWarnings returns the import log of every count, newest first.
func (s *Store) AllWarnings(ctx context.Context) ([]domain.Warning, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	next := make(map[int]int, len(s.warnings))
	out := make([]domain.Warning, 0, len(s.logSeq))
	for _, rn := range s.logSeq {
		out = append(out, s.warnings[rn][next[rn]])
		next[rn]++
	}
	slices.Reverse(out)
	return out, nil
}

// Header returns the stored header of a count.
func (s *Store) Header(ctx context.Context, recordNum int) (domain.CountHeader, error) {
	rec, err := s.get(ctx, recordNum)
	if err != nil {
		return domain.CountHeader{}, err
	}
	return rec.header, nil
}

// Headers pages through stored headers ordered by record number, highest
// first.
func (s *Store) Headers(ctx context.Context, offset, limit int) ([]domain.CountHeader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	offset = max(offset, 0)

	s.mu.RLock()
	headers := make([]domain.CountHeader, 0, len(s.records))
	for _, rec := range s.records {
		headers = append(headers, rec.header)
	}
	s.mu.RUnlock()

	slices.SortFunc(headers, func(a, b domain.CountHeader) int {
		return cmp.Compare(b.RecordNum, a.RecordNum)
	})
	if offset >= len(headers) {
		return []domain.CountHeader{}, nil
	}
	return headers[offset:min(offset+limit, len(headers))], nil
}

// CountType returns the type from the count's header.
func (s *Store) CountType(ctx context.Context, recordNum int) (domain.CountType, error) {
	rec, err := s.get(ctx, recordNum)
	if err != nil {
		return "", err
	}
	return rec.header.Type, nil
}

// ClassCounts returns the 15-minute class rows of a count.
func (s *Store) ClassCounts(ctx context.Context, recordNum int) ([]domain.ClassCountRow, error) {
	rec, err := s.get(ctx, recordNum)
	if err != nil {
		return nil, err
	}
	return slices.Clone(rec.classes), nil
}

// SpeedCounts returns the 15-minute speed rows of a count.
func (s *Store) SpeedCounts(ctx context.Context, recordNum int) ([]domain.SpeedCountRow, error) {
	rec, err := s.get(ctx, recordNum)
	if err != nil {
		return nil, err
	}
	return slices.Clone(rec.speeds), nil
}

// VolumeCounts returns the hourly volume rows of a count.
func (s *Store) VolumeCounts(ctx context.Context, recordNum int) ([]domain.VolumeCount, error) {
	rec, err := s.get(ctx, recordNum)
	if err != nil {
		return nil, err
	}
	return slices.Clone(rec.volumes), nil
}

// BicycleCounts returns the 15-minute bicycle totals of a count.
func (s *Store) BicycleCounts(ctx context.Context, recordNum int) ([]domain.BicycleCount, error) {
	rec, err := s.get(ctx, recordNum)
	if err != nil {
		return nil, err
	}
	return slices.Clone(rec.bicycles), nil
}

func (s *Store) get(ctx context.Context, recordNum int) (*record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[recordNum]
	if !ok {
		return nil, fmt.Errorf("count %d: %w", recordNum, ErrNotFound)
	}
	return rec, nil
}
