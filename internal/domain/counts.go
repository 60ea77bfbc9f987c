package domain

// VehicleClassCount tallies vehicles by class for one bin and direction.
//
// Unclassified vehicles are counted in C15 AND in C2 (passenger cars), so a
// sum of C1 through C15 double-counts them. Total counts every vehicle once.
type VehicleClassCount struct {
	RecordNum int       `json:"record_num"`
	Direction Direction `json:"direction"`
	C1        int       `json:"c1"`
	C2        int       `json:"c2"`
	C3        int       `json:"c3"`
	C4        int       `json:"c4"`
	C5        int       `json:"c5"`
	C6        int       `json:"c6"`
	C7        int       `json:"c7"`
	C8        int       `json:"c8"`
	C9        int       `json:"c9"`
	C10       int       `json:"c10"`
	C11       int       `json:"c11"`
	C12       int       `json:"c12"`
	C13       int       `json:"c13"`
	C15       int       `json:"c15"`
	Total     int       `json:"total"`
}

// NewVehicleClassCount returns an empty count for the record and direction.
func NewVehicleClassCount(recordNum int, dir Direction) *VehicleClassCount {
	return &VehicleClassCount{RecordNum: recordNum, Direction: dir}
}

// Insert adds one vehicle of the given class. Unknown classes are ignored.
func (c *VehicleClassCount) Insert(class VehicleClass) {
	switch class {
	case Motorcycles:
		c.C1++
	case PassengerCars:
		c.C2++
	case OtherFourTireSingleUnitVehicles:
		c.C3++
	case Buses:
		c.C4++
	case TwoAxleSixTireSingleUnitTrucks:
		c.C5++
	case ThreeAxleSingleUnitTrucks:
		c.C6++
	case FourOrMoreAxleSingleUnitTrucks:
		c.C7++
	case FourOrFewerAxleSingleTrailerTrucks:
		c.C8++
	case FiveAxleSingleTrailerTrucks:
		c.C9++
	case SixOrMoreAxleSingleTrailerTrucks:
		c.C10++
	case FiveOrFewerAxleMultiTrailerTrucks:
		c.C11++
	case SixAxleMultiTrailerTrucks:
		c.C12++
	case SevenOrMoreAxleMultiTrailerTrucks:
		c.C13++
	case Unclassified:
		// Unclassified vehicles are assumed to be mostly passenger vehicles.
		c.C2++
		c.C15++
	default:
		return
	}
	c.Total++
}

// SpeedRangeCount tallies vehicles by speed range for one bin and direction.
type SpeedRangeCount struct {
	RecordNum int       `json:"record_num"`
	Direction Direction `json:"direction"`
	S1        int       `json:"s1"`
	S2        int       `json:"s2"`
	S3        int       `json:"s3"`
	S4        int       `json:"s4"`
	S5        int       `json:"s5"`
	S6        int       `json:"s6"`
	S7        int       `json:"s7"`
	S8        int       `json:"s8"`
	S9        int       `json:"s9"`
	S10       int       `json:"s10"`
	S11       int       `json:"s11"`
	S12       int       `json:"s12"`
	S13       int       `json:"s13"`
	S14       int       `json:"s14"`
	Total     int       `json:"total"`
}

// NewSpeedRangeCount returns an empty count for the record and direction.
func NewSpeedRangeCount(recordNum int, dir Direction) *SpeedRangeCount {
	return &SpeedRangeCount{RecordNum: recordNum, Direction: dir}
}

// Insert adds one vehicle in the given range. Ranges outside 1-14 are ignored.
func (c *SpeedRangeCount) Insert(r SpeedRange) {
	f := c.field(r)
	if f == nil {
		return
	}
	*f++
	c.Total++
}

func (c *SpeedRangeCount) field(r SpeedRange) *int {
	fields := [...]*int{
		&c.S1, &c.S2, &c.S3, &c.S4, &c.S5, &c.S6, &c.S7,
		&c.S8, &c.S9, &c.S10, &c.S11, &c.S12, &c.S13, &c.S14,
	}
	if r < SpeedRangeMin || r > SpeedRangeMax {
		return nil
	}
	return fields[r-1]
}
