package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/traffic-count-etl/internal/domain"
)

// VehicleHeader is the column header of an individual vehicle count.
const VehicleHeader = "Veh. No.,Date,Time,Channel,Class,Speed"

// BicycleTimeColumn is the first header cell of a 15-minute bicycle count;
// the remaining cells are one total per channel.
const BicycleTimeColumn = "Time"

// Metadata rows precede the header and differ by counter vendor.
const (
	vehicleMetadataRows = 3
	bicycleMetadataRows = 8
)

const (
	vehicleLayout = "1/2/2006 3:04:05 PM"
	bicycleLayout = "1/2/2006 15:04"
)

// ErrBadHeader means the header row does not match the count type implied by
// the file's location.
var ErrBadHeader = errors.New("no matching count type for header")

func newCSVReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true
	return cr
}

// readHeader skips the metadata rows and returns the trimmed header cells.
func readHeader(cr *csv.Reader, metadataRows int) ([]string, error) {
	for range metadataRows {
		if _, err := cr.Read(); err != nil {
			return nil, fmt.Errorf("read metadata: %w", missingHeader(err))
		}
	}
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", missingHeader(err))
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	return header, nil
}

func missingHeader(err error) error {
	if errors.Is(err, io.EOF) {
		return ErrBadHeader
	}
	return err
}

// rows yields every remaining record with its line number. Malformed CSV
// records are reported through onErr and skipped.
func rows(cr *csv.Reader, fn func(line int, rec []string), onErr func(line int, err error)) error {
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				onErr(perr.Line, perr.Err)
				continue
			}
			return err
		}
		line, _ := cr.FieldPos(0)
		for i := range rec {
			rec[i] = strings.TrimSpace(rec[i])
		}
		fn(line, rec)
	}
}

// ReadVehicles reads an individual vehicle count: metadata rows, the
// VehicleHeader row, then one row per vehicle. Unreadable rows are returned
// as row errors; a missing or different header fails the whole file.
// Timestamps are wall-clock times in loc.
func ReadVehicles(r io.Reader, loc *time.Location) ([]domain.CountedVehicle, []domain.RowError, error) {
	cr := newCSVReader(r)
	header, err := readHeader(cr, vehicleMetadataRows)
	if err != nil {
		return nil, nil, err
	}
	if strings.Join(header, ",") != VehicleHeader {
		return nil, nil, ErrBadHeader
	}

	var vehicles []domain.CountedVehicle
	var rowErrs []domain.RowError
	onErr := func(line int, err error) {
		rowErrs = append(rowErrs, domain.RowError{Line: line, Err: err})
	}

	err = rows(cr, func(line int, rec []string) {
		v, err := parseVehicle(rec, loc)
		if err != nil {
			onErr(line, err)
			return
		}
		vehicles = append(vehicles, v)
	}, onErr)
	if err != nil {
		return nil, nil, err
	}
	return vehicles, rowErrs, nil
}

func parseVehicle(rec []string, loc *time.Location) (domain.CountedVehicle, error) {
	if len(rec) < 6 {
		return domain.CountedVehicle{}, fmt.Errorf("expected 6 columns, got %d", len(rec))
	}

	observed, err := time.ParseInLocation(vehicleLayout, rec[1]+" "+rec[2], loc)
	if err != nil {
		return domain.CountedVehicle{}, fmt.Errorf("date/time: %w", err)
	}
	channel, err := strconv.ParseUint(rec[3], 10, 8)
	if err != nil {
		return domain.CountedVehicle{}, fmt.Errorf("channel: %w", err)
	}
	class, err := strconv.Atoi(rec[4])
	if err != nil {
		return domain.CountedVehicle{}, fmt.Errorf("class: %w", err)
	}
	speed, err := strconv.ParseFloat(rec[5], 64)
	if err != nil {
		return domain.CountedVehicle{}, fmt.Errorf("speed: %w", err)
	}

	return domain.CountedVehicle{
		ObservedAt: observed,
		Channel:    uint8(channel),
		Class:      class,
		Speed:      speed,
	}, nil
}

// ReadBicycles reads a 15-minute bicycle count: metadata rows, a header
// starting with BicycleTimeColumn followed by one column per channel, then
// one row per period. Each non-empty cell becomes a BicycleCount in the
// direction of its channel.
func ReadBicycles(r io.Reader, meta domain.Metadata, loc *time.Location) ([]domain.BicycleCount, []domain.RowError, error) {
	cr := newCSVReader(r)
	header, err := readHeader(cr, bicycleMetadataRows)
	if err != nil {
		return nil, nil, err
	}

	channels := meta.Directions.Channels()
	if len(header) < 2 || header[0] != BicycleTimeColumn || len(header)-1 > len(channels) {
		return nil, nil, ErrBadHeader
	}

	var counts []domain.BicycleCount
	var rowErrs []domain.RowError
	onErr := func(line int, err error) {
		rowErrs = append(rowErrs, domain.RowError{Line: line, Err: err})
	}

	err = rows(cr, func(line int, rec []string) {
		start, err := time.ParseInLocation(bicycleLayout, rec[0], loc)
		if err != nil {
			onErr(line, fmt.Errorf("time: %w", err))
			return
		}
		var parsed []domain.BicycleCount
		for i := 1; i < len(header) && i < len(rec); i++ {
			if rec[i] == "" {
				continue
			}
			total, err := strconv.Atoi(rec[i])
			if err != nil || total < 0 {
				onErr(line, fmt.Errorf("total for %q: invalid value %q", header[i], rec[i]))
				return
			}
			parsed = append(parsed, domain.BicycleCount{
				RecordNum: meta.RecordNum,
				Start:     domain.TimeBin(start),
				Direction: channels[uint8(i)],
				Total:     total,
			})
		}
		counts = append(counts, parsed...)
	}, onErr)
	if err != nil {
		return nil, nil, err
	}
	return counts, rowErrs, nil
}
