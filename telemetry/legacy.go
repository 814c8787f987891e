package telemetry

import (
	"encoding/binary"
	"fmt"
	"time"

	"cluster-service/vehicle"
)

// LegacySize is the OutGauge datagram length.
const LegacySize = 64

const (
	legacyTime    = 0
	legacyGear    = 10
	legacySpeed   = 12 // m/s
	legacyRPM     = 16
	legacyCoolant = 24
	legacyFuel    = 28
	legacyOilTemp = 36
	legacyLights  = 44
)

// Legacy light bits.
const (
	LightHighBeam  uint32 = 0x0002
	LightHandbrake uint32 = 0x0004
	LightOffroad   uint32 = 0x0010
	LightLeft      uint32 = 0x0020
	LightRight     uint32 = 0x0040
	LightBattery   uint32 = 0x0200
	LightABS       uint32 = 0x0400
)

const legacyFields = FieldTime | FieldSpeed | FieldRPM | FieldGear | FieldIgnition | FieldHandbrake |
	FieldABS | FieldHighBeam | FieldSignals | FieldBattery | FieldOffroad | FieldFuel | FieldCoolant | FieldOil

// LegacyDecoder reads the OutGauge-style layout. The layout has no ignition
// flag; a turning engine implies ignition on.
type LegacyDecoder struct{}

func (LegacyDecoder) Size() int      { return LegacySize }
func (LegacyDecoder) Format() Format { return FormatLegacy }

func (LegacyDecoder) Decode(data []byte) (Sample, error) {
	if len(data) < LegacySize {
		return Sample{}, fmt.Errorf("%w: got %d bytes, want %d", ErrShortDatagram, len(data), LegacySize)
	}

	lights := binary.LittleEndian.Uint32(data[legacyLights:])
	bit := func(mask uint32) bool { return lights&mask != 0 }
	// No ignition field here, so ignition follows rpm. The not-started and
	// no-rpm alert groups therefore only fire for the primary layout, and a
	// stall re-arms the start burst.
	rpm := float32At(data, legacyRPM)

	return Sample{
		Fields:        legacyFields,
		Time:          time.Duration(binary.LittleEndian.Uint32(data[legacyTime:])) * time.Millisecond,
		SpeedKmh:      float32At(data, legacySpeed) * 3.6,
		RPM:           rpm,
		Gear:          gearFromCode(data[legacyGear]),
		Ignition:      rpm > 0,
		EngineRunning: rpm > 0,
		Handbrake:     bit(LightHandbrake),
		ABSActive:     bit(LightABS),
		HighBeam:      bit(LightHighBeam),
		SignalLeft:    bit(LightLeft),
		SignalRight:   bit(LightRight),
		BatteryLight:  bit(LightBattery),
		OffroadLight:  bit(LightOffroad),
		Fuel:          float32At(data, legacyFuel),

		CoolantTemperature: float32At(data, legacyCoolant),
		OilTemperature:     float32At(data, legacyOilTemp),
	}, nil
}

// gearFromCode: 0 = R, 1 = N, 2..10 = D, anything else P.
func gearFromCode(code byte) vehicle.Gear {
	switch {
	case code == 0:
		return vehicle.GearAutoR
	case code == 1:
		return vehicle.GearAutoN
	case code >= 2 && code <= 10:
		return vehicle.GearAutoD
	default:
		return vehicle.GearAutoP
	}
}
