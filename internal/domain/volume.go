package domain

import (
	"cmp"
	"fmt"
	"slices"
	"time"
)

// VolumeCount is the hourly vehicle volume of one direction on one day.
// A nil hour had no observations at all.
type VolumeCount struct {
	RecordNum int       `json:"record_num"`
	Date      time.Time `json:"date"`
	Direction Direction `json:"direction"`
	Hours     [24]*int  `json:"hours"`
	Total     int       `json:"total"`
}

// Hour returns the volume for hour h (0-23) and whether it was observed.
func (v VolumeCount) Hour(h int) (int, bool) {
	if h < 0 || h > 23 || v.Hours[h] == nil {
		return 0, false
	}
	return *v.Hours[h], true
}

// HourColumn returns the column name of hour h: am12, am1..am11, pm12, pm1..pm11.
func HourColumn(h int) string {
	switch {
	case h == 0:
		return "am12"
	case h < 12:
		return fmt.Sprintf("am%d", h)
	case h == 12:
		return "pm12"
	default:
		return fmt.Sprintf("pm%d", h-12)
	}
}

// HourlyVolumes sums the class count bins into one VolumeCount per day and
// direction, ordered by date then direction. Partial first and last hours are
// kept as observed.
func HourlyVolumes(a *Aggregation) []VolumeCount {
	type dayKey struct {
		date time.Time
		dir  Direction
	}
	days := map[dayKey]*VolumeCount{}

	for _, k := range a.Keys() {
		cc := a.ClassCounts[k]
		date := time.Date(k.Start.Year(), k.Start.Month(), k.Start.Day(), 0, 0, 0, 0, k.Start.Location())
		dk := dayKey{date: date, dir: cc.Direction}

		vc, ok := days[dk]
		if !ok {
			vc = &VolumeCount{RecordNum: a.RecordNum, Date: date, Direction: cc.Direction}
			days[dk] = vc
		}
		h := k.Start.Hour()
		if vc.Hours[h] == nil {
			vc.Hours[h] = new(int)
		}
		*vc.Hours[h] += cc.Total
		vc.Total += cc.Total
	}

	out := make([]VolumeCount, 0, len(days))
	for _, vc := range days {
		out = append(out, *vc)
	}
	slices.SortFunc(out, func(x, y VolumeCount) int {
		if c := x.Date.Compare(y.Date); c != 0 {
			return c
		}
		return cmp.Compare(x.Direction, y.Direction)
	})
	return out
}
