package domain

import "time"

// BinMinutes is the width of an aggregation bin.
const BinMinutes = 15

// TimeBin floors t to the start of its 15-minute bin (:00, :15, :30 or :45),
// zeroing seconds and nanoseconds. The date and location are unchanged.
func TimeBin(t time.Time) time.Time {
	minute := t.Minute() / BinMinutes * BinMinutes
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), minute, 0, 0, t.Location())
}
