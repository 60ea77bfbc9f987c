package ingest

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/couchcryptid/traffic-count-etl/internal/domain"
	"github.com/go-playground/validator/v10"
)

// FileNameProblem identifies which part of a count filename is wrong.
type FileNameProblem int

const (
	TooManyParts FileNameProblem = iota + 1
	TooFewParts
	InvalidTech
	InvalidRecordNum
	InvalidDirections
	InvalidCounterID
	InvalidSpeedLimit
)

var problemNames = map[FileNameProblem]string{
	TooManyParts:      "too many parts",
	TooFewParts:       "too few parts",
	InvalidTech:       "invalid technician",
	InvalidRecordNum:  "invalid record number",
	InvalidDirections: "invalid directions",
	InvalidCounterID:  "invalid counter id",
	InvalidSpeedLimit: "invalid speed limit",
}

func (p FileNameProblem) String() string {
	if s, ok := problemNames[p]; ok {
		return s
	}
	return fmt.Sprintf("FileNameProblem(%d)", int(p))
}

// FileNameError reports a count filename that does not follow
// technician-recordnum-directions-counterid-speedlimit.
type FileNameError struct {
	Problem FileNameProblem
	Path    string
}

func (e *FileNameError) Error() string {
	return fmt.Sprintf("filename %q: %s", e.Path, e.Problem)
}

// NoSpeedLimit is the speed limit part of a filename for roads without a
// posted limit.
const NoSpeedLimit = "na"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Technicians are recorded by initials, never by number.
	_ = v.RegisterValidation("initials", func(fl validator.FieldLevel) bool {
		_, err := strconv.Atoi(fl.Field().String())
		return err != nil
	})
	return v
}

// fieldProblems maps Metadata fields to the filename part they come from.
var fieldProblems = map[string]FileNameProblem{
	"Technician": InvalidTech,
	"RecordNum":  InvalidRecordNum,
	"CounterID":  InvalidCounterID,
	"SpeedLimit": InvalidSpeedLimit,
}

// ParseMetadata derives a count's metadata from its filename, e.g.
// rc-166905-ew-40972-35.txt.
func ParseMetadata(path string) (domain.Metadata, error) {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	parts := strings.Split(stem, "-")

	fail := func(p FileNameProblem) (domain.Metadata, error) {
		return domain.Metadata{}, &FileNameError{Problem: p, Path: path}
	}

	switch {
	case len(parts) < 5:
		return fail(TooFewParts)
	case len(parts) > 5:
		return fail(TooManyParts)
	}

	var meta domain.Metadata
	meta.Technician = parts[0]

	recordNum, err := strconv.Atoi(parts[1])
	if err != nil {
		return fail(InvalidRecordNum)
	}
	meta.RecordNum = recordNum

	dirs, err := domain.ParseDirections(parts[2])
	if err != nil {
		return fail(InvalidDirections)
	}
	meta.Directions = dirs

	counterID, err := strconv.Atoi(parts[3])
	if err != nil {
		return fail(InvalidCounterID)
	}
	meta.CounterID = counterID

	if parts[4] != NoSpeedLimit {
		limit, err := strconv.Atoi(parts[4])
		if err != nil {
			return fail(InvalidSpeedLimit)
		}
		meta.SpeedLimit = &limit
	}

	if err := validate.Struct(meta); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			if p, ok := fieldProblems[verrs[0].StructField()]; ok {
				return fail(p)
			}
		}
		return domain.Metadata{}, fmt.Errorf("validate metadata of %q: %w", path, err)
	}
	return meta, nil
}
