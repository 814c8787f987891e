package telemetry

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"cluster-service/vehicle"
)

// ErrShortDatagram is returned for datagrams smaller than the decoder's record.
var ErrShortDatagram = errors.New("telemetry: datagram too short")

// Format selects the inbound wire layout.
type Format int

const (
	FormatPrimary Format = iota
	FormatLegacy
)

func (f Format) String() string {
	if f == FormatLegacy {
		return "legacy"
	}
	return "primary"
}

// ParseFormat accepts "primary" or "legacy".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "primary", "custom", "":
		return FormatPrimary, nil
	case "legacy", "outgauge":
		return FormatLegacy, nil
	default:
		return FormatPrimary, fmt.Errorf("invalid telemetry format: %q (must be 'primary' or 'legacy')", s)
	}
}

// Field marks which parts of a Sample a layout actually carries.
type Field uint32

const (
	FieldTime Field = 1 << iota
	FieldSpeed
	FieldRPM
	FieldGear
	FieldIgnition
	FieldDoors
	FieldHandbrake
	FieldStability
	FieldABS
	FieldHighBeam
	FieldLights // low beam and fog
	FieldSignals
	FieldBattery
	FieldEngineLamps // oil, check engine, low fuel
	FieldOffroad
	FieldCruise
	FieldFuel
	FieldCoolant
	FieldOil
)

// Has reports whether every bit of want is set.
func (f Field) Has(want Field) bool { return f&want == want }

// Sample is one decoded datagram. Speed and RPM are raw, unfiltered values.
type Sample struct {
	Fields Field

	Time     time.Duration
	SpeedKmh float64
	RPM      float64
	Gear     vehicle.Gear

	Ignition      bool
	EngineRunning bool

	DoorOpen  bool
	Handbrake bool

	ABSActive bool
	ESCActive bool
	HasESC    bool

	HighBeam    bool
	LowBeam     bool
	Fog         bool
	SignalLeft  bool
	SignalRight bool

	BatteryLight bool
	OilLight     bool
	EngineLight  bool
	LowFuelLight bool
	OffroadLight bool

	CruiseActive bool
	CruiseTarget float64

	Fuel               float64 // ratio 0..1
	CoolantTemperature float64
	OilTemperature     float64
}

// Decoder turns one datagram into a Sample.
type Decoder interface {
	// Size is the minimum datagram length the decoder accepts.
	Size() int
	Decode(data []byte) (Sample, error)
	Format() Format
}

// NewDecoder returns the decoder for format.
func NewDecoder(format Format) (Decoder, error) {
	switch format {
	case FormatPrimary:
		return PrimaryDecoder{}, nil
	case FormatLegacy:
		return LegacyDecoder{}, nil
	default:
		return nil, fmt.Errorf("unknown telemetry format: %d", format)
	}
}
