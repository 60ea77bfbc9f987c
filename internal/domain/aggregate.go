package domain

import (
	"cmp"
	"fmt"
	"slices"
	"time"
)

// BinKey identifies one aggregation bin: a 15-minute period on one channel.
type BinKey struct {
	Start   time.Time
	Channel uint8
}

// UnknownChannelError reports an observation on a channel the count's
// directions do not cover.
type UnknownChannelError struct {
	Channel uint8
}

func (e *UnknownChannelError) Error() string {
	return fmt.Sprintf("unable to determine direction for channel %d", e.Channel)
}

// ProcessingError records an observation that was skipped during aggregation.
type ProcessingError struct {
	Index   int
	Vehicle CountedVehicle
	Err     error
}

func (e ProcessingError) Error() string {
	return fmt.Sprintf("observation %d: %v", e.Index, e.Err)
}

func (e ProcessingError) Unwrap() error { return e.Err }

// Aggregation holds the 15-minute class and speed counts of one import pass.
// Both maps always have the same keys.
type Aggregation struct {
	RecordNum   int
	ClassCounts map[BinKey]*VehicleClassCount
	SpeedCounts map[BinKey]*SpeedRangeCount
	Errors      []ProcessingError

	channels map[uint8]Direction
	seen     int
}

// NewAggregation starts an empty aggregation for the count.
func NewAggregation(meta Metadata) *Aggregation {
	return &Aggregation{
		RecordNum:   meta.RecordNum,
		ClassCounts: make(map[BinKey]*VehicleClassCount),
		SpeedCounts: make(map[BinKey]*SpeedRangeCount),
		channels:    meta.Directions.Channels(),
	}
}

// Add bins one observation. On an invalid channel, class or speed the
// observation is skipped, recorded in Errors and the error returned; the
// aggregation stays usable.
func (a *Aggregation) Add(v CountedVehicle) error {
	idx := a.seen
	a.seen++

	if err := a.add(v); err != nil {
		a.Errors = append(a.Errors, ProcessingError{Index: idx, Vehicle: v, Err: err})
		return err
	}
	return nil
}

func (a *Aggregation) add(v CountedVehicle) error {
	dir, ok := a.channels[v.Channel]
	if !ok {
		return &UnknownChannelError{Channel: v.Channel}
	}
	class, err := ClassifyVehicle(v.Class)
	if err != nil {
		return err
	}
	speed, err := BinSpeed(v.Speed)
	if err != nil {
		return err
	}

	key := BinKey{Start: TimeBin(v.ObservedAt), Channel: v.Channel}

	cc, ok := a.ClassCounts[key]
	if !ok {
		cc = NewVehicleClassCount(a.RecordNum, dir)
		a.ClassCounts[key] = cc
	}
	cc.Insert(class)

	sc, ok := a.SpeedCounts[key]
	if !ok {
		sc = NewSpeedRangeCount(a.RecordNum, dir)
		a.SpeedCounts[key] = sc
	}
	sc.Insert(speed)
	return nil
}

// Observations returns how many observations were offered to Add.
func (a *Aggregation) Observations() int {
	return a.seen
}

// Aggregate bins all vehicles of one count. Invalid observations never abort
// the pass; they are returned in the result's Errors.
func Aggregate(meta Metadata, vehicles []CountedVehicle) *Aggregation {
	a := NewAggregation(meta)
	for _, v := range vehicles {
		_ = a.Add(v)
	}
	return a
}

// Keys returns the bin keys ordered by start time, then channel.
func (a *Aggregation) Keys() []BinKey {
	keys := make([]BinKey, 0, len(a.ClassCounts))
	for k := range a.ClassCounts {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareBinKeys)
	return keys
}

func compareBinKeys(x, y BinKey) int {
	if c := x.Start.Compare(y.Start); c != 0 {
		return c
	}
	return cmp.Compare(x.Channel, y.Channel)
}

// ClassCountRow is a class count with the bin it belongs to, as persisted.
type ClassCountRow struct {
	Start   time.Time `json:"start"`
	Channel uint8     `json:"lane"`
	VehicleClassCount
}

// SpeedCountRow is a speed count with the bin it belongs to, as persisted.
type SpeedCountRow struct {
	Start   time.Time `json:"start"`
	Channel uint8     `json:"lane"`
	SpeedRangeCount
}

// ClassRows flattens the class counts into rows ordered by bin.
func (a *Aggregation) ClassRows() []ClassCountRow {
	keys := a.Keys()
	rows := make([]ClassCountRow, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, ClassCountRow{Start: k.Start, Channel: k.Channel, VehicleClassCount: *a.ClassCounts[k]})
	}
	return rows
}

// SpeedRows flattens the speed counts into rows ordered by bin.
func (a *Aggregation) SpeedRows() []SpeedCountRow {
	keys := a.Keys()
	rows := make([]SpeedCountRow, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, SpeedCountRow{Start: k.Start, Channel: k.Channel, SpeedRangeCount: *a.SpeedCounts[k]})
	}
	return rows
}
