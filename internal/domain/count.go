package domain

import (
	"fmt"
	"strings"
	"time"
)

// CountType is the kind of count recorded in the count header, e.g. "Class"
// or "15 min Volume". Bicycle types vary ("Bicycle 1", "Bicycle 2", ...).
type CountType string

const (
	CountTypeClass            CountType = "Class"
	CountTypeVolume           CountType = "Volume"
	CountTypeFifteenMinVolume CountType = "15 min Volume"
	CountTypeSpeed            CountType = "Speed"
	CountTypeBicycle          CountType = "Bicycle"
	CountTypePedestrian       CountType = "Pedestrian"
)

// IsMotorVehicle reports whether the type counts motor vehicle volumes.
func (t CountType) IsMotorVehicle() bool {
	switch t {
	case CountTypeClass, CountTypeVolume, CountTypeFifteenMinVolume:
		return true
	}
	return false
}

// IsBicycle reports whether the type is any bicycle count.
func (t CountType) IsBicycle() bool {
	return strings.Contains(string(t), "Bicycle")
}

// Metadata describes one count session. It is derived once per import and
// not modified afterwards.
type Metadata struct {
	Technician string     `json:"technician" validate:"required,initials"`
	RecordNum  int        `json:"record_num" validate:"gt=0"`
	Directions Directions `json:"-"`
	CounterID  int        `json:"counter_id" validate:"gt=0"`
	SpeedLimit *int       `json:"speed_limit,omitempty" validate:"omitempty,gt=0"`
}

// CountHeader is the persisted header row of a count.
type CountHeader struct {
	Metadata
	Type CountType `json:"type"`
}

// CountedVehicle is one raw observation, before classification or binning.
// Class is the counter's raw class code.
type CountedVehicle struct {
	ObservedAt time.Time
	Channel    uint8
	Class      int
	Speed      float64
}

// RowError is a data row of a count file that could not be read. The rest of
// the file is still imported.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e RowError) Unwrap() error { return e.Err }

// CountImport is everything extracted from one count file. Individual
// vehicle counts fill Vehicles; bicycle counts arrive pre-binned in Bicycles.
type CountImport struct {
	Location  string
	Header    CountHeader
	Vehicles  []CountedVehicle
	Bicycles  []BicycleCount
	RowErrors []RowError
}

// BicycleCount is a pre-binned 15-minute bicycle total for one direction.
type BicycleCount struct {
	RecordNum int       `json:"record_num"`
	Start     time.Time `json:"start"`
	Direction Direction `json:"direction"`
	Total     int       `json:"total"`
}
