package domain

import (
	"fmt"
	"math"
)

// SpeedRange is one of the 14 speed ranges, stored in columns s1-s14.
type SpeedRange uint8

const (
	SpeedRangeMin SpeedRange = 1
	SpeedRangeMax SpeedRange = 14
)

// speedRangeTops holds the inclusive upper bound (mph) of ranges 1-13.
// Range 14 has no upper bound.
var speedRangeTops = [...]float64{15, 20, 25, 30, 35, 40, 45, 50, 55, 60, 65, 70, 75}

func (r SpeedRange) String() string {
	switch {
	case r == SpeedRangeMin:
		return "0-15 mph"
	case r > SpeedRangeMin && r < SpeedRangeMax:
		return fmt.Sprintf(">%g-%g mph", speedRangeTops[r-2], speedRangeTops[r-1])
	case r == SpeedRangeMax:
		return ">75 mph"
	}
	return fmt.Sprintf("range(%d)", uint8(r))
}

// InvalidSpeedError reports a speed that cannot be binned.
type InvalidSpeedError struct {
	Speed float64
}

func (e *InvalidSpeedError) Error() string {
	return fmt.Sprintf("invalid speed '%g'", e.Speed)
}

// BinSpeed maps a speed in mph to its range. Each range includes its upper
// bound, so 15.0 is range 1 and 15.1 is range 2. Negative speeds (including
// -0.0) and NaN are invalid.
func BinSpeed(speed float64) (SpeedRange, error) {
	if math.Signbit(speed) || math.IsNaN(speed) {
		return 0, &InvalidSpeedError{Speed: speed}
	}
	for i, top := range speedRangeTops {
		if speed <= top {
			return SpeedRange(i + 1), nil
		}
	}
	return SpeedRangeMax, nil
}
