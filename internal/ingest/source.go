// Package ingest discovers count files under a data directory and extracts
// their metadata and raw observations.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/couchcryptid/traffic-count-etl/internal/domain"
)

// LogFileName is skipped when listing a data directory.
const LogFileName = "log.txt"

// Directories that determine how a count file is read.
const (
	VehiclesDir = "vehicles"
	BicycleDir  = "15minutebicycle"
)

// ErrBadLocation means a file's parent directory names no known count type.
var ErrBadLocation = errors.New("no matching count type for directory")

// CountTypeFromLocation returns the count type implied by the directory that
// directly contains path.
func CountTypeFromLocation(path string) (domain.CountType, error) {
	dir := strings.ToLower(filepath.Base(filepath.Dir(path)))
	switch dir {
	case VehiclesDir:
		return domain.CountTypeClass, nil
	case BicycleDir:
		return domain.CountTypeBicycle, nil
	}
	return "", fmt.Errorf("%w %q", ErrBadLocation, dir)
}

// Source reads count files from a directory tree.
type Source struct {
	root   string
	loc    *time.Location
	logger *slog.Logger
}

// NewSource creates a Source rooted at dir. Counter timestamps are read as
// wall-clock times in loc (UTC when nil).
func NewSource(dir string, loc *time.Location, logger *slog.Logger) *Source {
	if loc == nil {
		loc = time.UTC
	}
	return &Source{root: dir, loc: loc, logger: logger}
}

// List returns every count file under the root, sorted, excluding the log
// file.
func (s *Source) List(ctx context.Context) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || d.Name() == LogFileName {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.root, err)
	}
	slices.Sort(paths)
	return paths, nil
}

// Extract reads one count file. Metadata comes from the filename and the
// count type from its directory; the header row must agree with both.
func (s *Source) Extract(ctx context.Context, location string) (domain.CountImport, error) {
	if err := ctx.Err(); err != nil {
		return domain.CountImport{}, err
	}

	countType, err := CountTypeFromLocation(location)
	if err != nil {
		return domain.CountImport{}, err
	}
	meta, err := ParseMetadata(location)
	if err != nil {
		return domain.CountImport{}, err
	}

	f, err := os.Open(location)
	if err != nil {
		return domain.CountImport{}, fmt.Errorf("open count file: %w", err)
	}
	defer f.Close()

	imp := domain.CountImport{
		Location: location,
		Header:   domain.CountHeader{Metadata: meta, Type: countType},
	}

	switch {
	case countType.IsBicycle():
		imp.Bicycles, imp.RowErrors, err = ReadBicycles(f, meta, s.loc)
	default:
		imp.Vehicles, imp.RowErrors, err = ReadVehicles(f, s.loc)
	}
	if err != nil {
		return domain.CountImport{}, fmt.Errorf("extract %s: %w", location, err)
	}

	s.logger.Debug("extracted count file",
		"location", location,
		"record_num", meta.RecordNum,
		"type", countType,
		"vehicles", len(imp.Vehicles),
		"bicycle_periods", len(imp.Bicycles),
		"row_errors", len(imp.RowErrors),
	)
	return imp, nil
}
