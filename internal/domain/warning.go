package domain

import (
	"fmt"
	"log/slog"
	"time"
)

// Warning is an advisory message about a count, kept in the import log.
// Level is slog.LevelWarn for data-quality findings and slog.LevelError for
// observations skipped during import.
type Warning struct {
	RecordNum int        `json:"record_num"`
	Level     slog.Level `json:"level"`
	Rule      string     `json:"rule,omitempty"`
	Message   string     `json:"message"`
	CreatedAt time.Time  `json:"created_at"`
}

// NewWarning stamps a warning with the package clock.
func NewWarning(recordNum int, level slog.Level, rule, msg string) Warning {
	return Warning{
		RecordNum: recordNum,
		Level:     level,
		Rule:      rule,
		Message:   msg,
		CreatedAt: clock.Now(),
	}
}

func (w Warning) String() string {
	return fmt.Sprintf("%d: %s", w.RecordNum, w.Message)
}
