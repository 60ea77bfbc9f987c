package domain

import "fmt"

// VehicleClass is one of the 13 FHWA vehicle classes, or Unclassified.
// The numeric value is the class count column it is stored in (c1-c13, c15).
type VehicleClass uint8

const (
	Motorcycles                        VehicleClass = 1
	PassengerCars                      VehicleClass = 2
	OtherFourTireSingleUnitVehicles    VehicleClass = 3
	Buses                              VehicleClass = 4
	TwoAxleSixTireSingleUnitTrucks     VehicleClass = 5
	ThreeAxleSingleUnitTrucks          VehicleClass = 6
	FourOrMoreAxleSingleUnitTrucks     VehicleClass = 7
	FourOrFewerAxleSingleTrailerTrucks VehicleClass = 8
	FiveAxleSingleTrailerTrucks        VehicleClass = 9
	SixOrMoreAxleSingleTrailerTrucks   VehicleClass = 10
	FiveOrFewerAxleMultiTrailerTrucks  VehicleClass = 11
	SixAxleMultiTrailerTrucks          VehicleClass = 12
	SevenOrMoreAxleMultiTrailerTrucks  VehicleClass = 13
	// Unclassified is stored in c15; 14 is an unused FHWA class group.
	Unclassified VehicleClass = 15
)

var vehicleClassNames = map[VehicleClass]string{
	Motorcycles:                        "motorcycles",
	PassengerCars:                      "passenger cars",
	OtherFourTireSingleUnitVehicles:    "other four-tire single unit vehicles",
	Buses:                              "buses",
	TwoAxleSixTireSingleUnitTrucks:     "two-axle six-tire single unit trucks",
	ThreeAxleSingleUnitTrucks:          "three-axle single unit trucks",
	FourOrMoreAxleSingleUnitTrucks:     "four or more axle single unit trucks",
	FourOrFewerAxleSingleTrailerTrucks: "four or fewer axle single trailer trucks",
	FiveAxleSingleTrailerTrucks:        "five-axle single trailer trucks",
	SixOrMoreAxleSingleTrailerTrucks:   "six or more axle single trailer trucks",
	FiveOrFewerAxleMultiTrailerTrucks:  "five or fewer axle multi-trailer trucks",
	SixAxleMultiTrailerTrucks:          "six-axle multi-trailer trucks",
	SevenOrMoreAxleMultiTrailerTrucks:  "seven or more axle multi-trailer trucks",
	Unclassified:                       "unclassified",
}

func (c VehicleClass) String() string {
	if name, ok := vehicleClassNames[c]; ok {
		return name
	}
	return fmt.Sprintf("class(%d)", uint8(c))
}

// InvalidVehicleClassError reports a class code outside 0-14.
type InvalidVehicleClassError struct {
	Code int
}

func (e *InvalidVehicleClassError) Error() string {
	return fmt.Sprintf("no such vehicle class '%d'", e.Code)
}

// ClassifyVehicle maps a raw counter class code to a VehicleClass.
// Codes 1-13 are the FHWA classes; 0 and 14 are both Unclassified.
func ClassifyVehicle(code int) (VehicleClass, error) {
	switch {
	case code >= 1 && code <= 13:
		return VehicleClass(code), nil
	case code == 0 || code == 14:
		return Unclassified, nil
	}
	return 0, &InvalidVehicleClassError{Code: code}
}
