package vehicle

import "fmt"

// Gear is the canonical gear selector position.
type Gear int

const (
	GearAutoP Gear = iota
	GearAutoR
	GearAutoN
	GearAutoD
	GearAutoS
	GearManual1
	GearManual2
	GearManual3
	GearManual4
	GearManual5
	GearManual6
	GearManual7
	GearManual8
	GearManual9
	GearManual10
)

// Valid reports whether g is one of the enumerated positions.
func (g Gear) Valid() bool {
	return g >= GearAutoP && g <= GearManual10
}

// Manual returns the manual gear number (1-10), or 0 for automatic positions.
func (g Gear) Manual() int {
	if g >= GearManual1 && g <= GearManual10 {
		return int(g-GearManual1) + 1
	}
	return 0
}

func (g Gear) String() string {
	switch g {
	case GearAutoP:
		return "P"
	case GearAutoR:
		return "R"
	case GearAutoN:
		return "N"
	case GearAutoD:
		return "D"
	case GearAutoS:
		return "S"
	}
	if n := g.Manual(); n > 0 {
		return fmt.Sprintf("M%d", n)
	}
	return "unknown"
}
