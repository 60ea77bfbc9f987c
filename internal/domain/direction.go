package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Direction is the direction of travel of a lane.
type Direction uint8

const (
	North Direction = iota + 1
	East
	South
	West
)

var directionNames = map[Direction]string{
	North: "north",
	East:  "east",
	South: "south",
	West:  "west",
}

func (d Direction) String() string {
	if name, ok := directionNames[d]; ok {
		return name
	}
	return fmt.Sprintf("direction(%d)", uint8(d))
}

// ParseDirection accepts full names ("north"), single letters ("n") and
// bound suffixes ("nb"), case-insensitively.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "north", "n", "nb":
		return North, nil
	case "east", "e", "eb":
		return East, nil
	case "south", "s", "sb":
		return South, nil
	case "west", "w", "wb":
		return West, nil
	}
	return 0, fmt.Errorf("unknown direction %q", s)
}

func (d Direction) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Direction) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDirection(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Directions holds the one or two directions of a count. Channel 1 is always
// First; channel 2 exists only when Second is set.
type Directions struct {
	First  Direction
	Second *Direction
}

// OneWay returns Directions for a single-direction count.
func OneWay(d Direction) Directions {
	return Directions{First: d}
}

// TwoWay returns Directions for a count with two channels.
func TwoWay(first, second Direction) Directions {
	return Directions{First: first, Second: &second}
}

// Channels returns the explicit channel-to-direction mapping for the count.
func (d Directions) Channels() map[uint8]Direction {
	m := map[uint8]Direction{1: d.First}
	if d.Second != nil {
		m[2] = *d.Second
	}
	return m
}

// ParseDirections decodes a filename directions code such as "ew" or "n".
// Valid two-channel codes are ns, sn, ew, we and the doubled forms nn, ss,
// ee, ww; valid single-channel codes are n, s, e, w.
func ParseDirections(code string) (Directions, error) {
	letters := map[byte]Direction{'n': North, 's': South, 'e': East, 'w': West}
	code = strings.ToLower(code)

	switch len(code) {
	case 1:
		if d, ok := letters[code[0]]; ok {
			return OneWay(d), nil
		}
	case 2:
		first, ok1 := letters[code[0]]
		second, ok2 := letters[code[1]]
		if ok1 && ok2 && (first == second || opposite(first) == second) {
			return TwoWay(first, second), nil
		}
	}
	return Directions{}, fmt.Errorf("invalid directions code %q", code)
}

func opposite(d Direction) Direction {
	switch d {
	case North:
		return South
	case South:
		return North
	case East:
		return West
	case West:
		return East
	}
	return 0
}
