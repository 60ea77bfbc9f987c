package check

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/couchcryptid/traffic-count-etl/internal/domain"
)

// Thresholds used by the rules.
const (
	// MinPassengerCarShare is the lowest expected share (%) of class 2 vehicles.
	MinPassengerCarShare = 75.0
	// MaxUnclassifiedShare is the highest expected share (%) of unclassified vehicles.
	MaxUnclassifiedShare = 10.0
	// MinDirectionShare is the lowest expected share of the smaller direction
	// of a bidirectional count.
	MinDirectionShare = 0.40
	// MaxBicyclesPerBin is an unusually high bicycle count for 15 minutes.
	MaxBicyclesPerBin = 20
)

// Dataset is a set of persisted tables a rule reads.
type Dataset uint8

const (
	ClassCounts Dataset = 1 << iota
	VolumeCounts
	BicycleCounts
)

func (d Dataset) String() string {
	switch d {
	case ClassCounts:
		return "class counts"
	case VolumeCounts:
		return "volume counts"
	case BicycleCounts:
		return "bicycle counts"
	}
	return fmt.Sprintf("datasets(%d)", uint8(d))
}

// Snapshot is a read-only view of the persisted aggregates of one count.
// Only the datasets needed by the applicable rules are loaded.
type Snapshot struct {
	RecordNum     int
	CountType     domain.CountType
	ClassCounts   []domain.ClassCountRow
	VolumeCounts  []domain.VolumeCount
	BicycleCounts []domain.BicycleCount
}

// Rule is one independent data-quality heuristic.
type Rule interface {
	// Name identifies the rule in warnings, logs and metrics.
	Name() string
	// AppliesTo reports whether the rule runs for the count type.
	AppliesTo(t domain.CountType) bool
	// Needs lists the datasets Evaluate reads.
	Needs() Dataset
	// Evaluate returns one message per finding.
	Evaluate(s Snapshot) []string
}

// DefaultRules returns the standard rule set.
func DefaultRules() []Rule {
	return []Rule{ClassMix{}, DirectionBalance{}, ConsecutiveZeros{}, BicycleOutlier{}}
}

// ClassMix warns when passenger cars are too small, or unclassified vehicles
// too large, a share of the total. Class counts only.
type ClassMix struct{}

func (ClassMix) Name() string { return "class_mix" }
func (ClassMix) AppliesTo(t domain.CountType) bool { return t == domain.CountTypeClass }
func (ClassMix) Needs() Dataset { return ClassCounts }

func (ClassMix) Evaluate(s Snapshot) []string {
	var c2, c15, total int
	for _, row := range s.ClassCounts {
		c2 += row.C2
		c15 += row.C15
		total += row.Total
	}
	if total == 0 {
		return nil
	}

	c2Pct := float64(c2) / float64(total) * 100
	c15Pct := float64(c15) / float64(total) * 100

	var msgs []string
	if c2Pct < MinPassengerCarShare {
		msgs = append(msgs, fmt.Sprintf("Class 2 vehicles are less than %g%% (%.1f%%) of total.", MinPassengerCarShare, c2Pct))
	}
	if c15Pct > MaxUnclassifiedShare {
		msgs = append(msgs, fmt.Sprintf("Unclassed vehicles are greater than %g%% (%.1f%%) of total.", MaxUnclassifiedShare, c15Pct))
	}
	return msgs
}

// DirectionBalance warns when one direction of a bidirectional motor vehicle
// count has less than 40% of the combined volume.
type DirectionBalance struct{}

func (DirectionBalance) Name() string { return "direction_balance" }
func (DirectionBalance) AppliesTo(t domain.CountType) bool { return t.IsMotorVehicle() }
func (DirectionBalance) Needs() Dataset { return VolumeCounts }

func (DirectionBalance) Evaluate(s Snapshot) []string {
	totals := map[domain.Direction]int{}
	for _, row := range s.VolumeCounts {
		totals[row.Direction] += row.Total
	}
	if len(totals) < 2 {
		return nil
	}

	type dirTotal struct {
		dir   domain.Direction
		total int
	}
	ranked := make([]dirTotal, 0, len(totals))
	for d, n := range totals {
		ranked = append(ranked, dirTotal{d, n})
	}
	slices.SortFunc(ranked, func(a, b dirTotal) int {
		if c := cmp.Compare(a.total, b.total); c != 0 {
			return c
		}
		return cmp.Compare(a.dir, b.dir)
	})
	smaller, larger := ranked[0], ranked[len(ranked)-1]

	combined := smaller.total + larger.total
	if combined == 0 {
		return nil
	}
	smallerShare := float64(smaller.total) / float64(combined)
	largerShare := float64(larger.total) / float64(combined)
	if smallerShare >= MinDirectionShare {
		return nil
	}

	return []string{fmt.Sprintf(
		"Abnormal direction proportions: %s has %.1f%% of total, %s has %.1f%%.  (Expectation is that proportions are no less/more than %g%%/%g%%.)",
		smaller.dir, smallerShare*100, larger.dir, largerShare*100,
		MinDirectionShare*100, 100-MinDirectionShare*100,
	)}
}

// CheckedHours are the hourly slots, 4am through 10pm, inspected for gaps.
var CheckedHours = func() []int {
	hours := make([]int, 0, 19)
	for h := 4; h <= 22; h++ {
		hours = append(hours, h)
	}
	return hours
}()

// ConsecutiveZeros warns on each hour, 4am to 10pm, that follows another hour
// with no vehicles. An hour with no data counts as zero.
type ConsecutiveZeros struct{}

func (ConsecutiveZeros) Name() string { return "consecutive_zeros" }
func (ConsecutiveZeros) AppliesTo(t domain.CountType) bool { return t.IsMotorVehicle() }
func (ConsecutiveZeros) Needs() Dataset { return VolumeCounts }

func (ConsecutiveZeros) Evaluate(s Snapshot) []string {
	var msgs []string
	for _, row := range s.VolumeCounts {
		zeros := 0
		for _, h := range CheckedHours {
			// Absent hours are not distinguished from observed zeros.
			n, _ := row.Hour(h)
			if n == 0 {
				zeros++
			} else {
				zeros = 0
			}
			if zeros > 1 {
				msgs = append(msgs, fmt.Sprintf(
					"Consecutive period (%s) with 0 vehicles counted on %s (%s).",
					domain.HourColumn(h), row.Date.Format("2006-01-02"), row.Direction,
				))
			}
		}
	}
	return msgs
}

// BicycleOutlier warns once when any 15-minute bicycle total exceeds 20.
type BicycleOutlier struct{}

func (BicycleOutlier) Name() string { return "bicycle_outlier" }
func (BicycleOutlier) AppliesTo(t domain.CountType) bool { return t.IsBicycle() }
func (BicycleOutlier) Needs() Dataset { return BicycleCounts }

func (BicycleOutlier) Evaluate(s Snapshot) []string {
	for _, row := range s.BicycleCounts {
		if row.Total > MaxBicyclesPerBin {
			return []string{fmt.Sprintf(
				"More than %d (%d at %s) in a 15-minute period for a bicycle count.",
				MaxBicyclesPerBin, row.Total, row.Start.Format("2006-01-02 15:04"),
			)}
		}
	}
	return nil
}
