package telemetry

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"cluster-service/vehicle"
)

// PrimarySize is the length of the packed primary record.
const PrimarySize = 64

// Primary record offsets.
const (
	primaryTime          = 0
	primarySpeed         = 4
	primaryRPM           = 8
	primaryGear          = 12
	primaryIgnition      = 14
	primaryEngineRunning = 15
	primaryDoors         = 16 // FL, FR, RL, RR
	primaryParkingBrake  = 20
	primaryABSActive     = 22
	primaryESCActive     = 24
	primaryHasESC        = 30
	primaryHighBeam      = 36
	primaryLowBeam       = 37
	primaryFog           = 38
	primarySignalLeft    = 39
	primarySignalRight   = 40
	primaryHazard        = 41
	primaryBattery       = 43
	primaryOil           = 44
	primaryCheckEngine   = 45
	primaryLowFuel       = 46
	primaryCruiseActive  = 47
	primaryCruiseTarget  = 48
	primaryFuel          = 52
	primaryWaterTemp     = 56
	primaryOilTemp       = 60
)

const primaryFields = FieldTime | FieldSpeed | FieldRPM | FieldGear | FieldIgnition | FieldDoors |
	FieldHandbrake | FieldStability | FieldABS | FieldHighBeam | FieldLights | FieldSignals |
	FieldBattery | FieldEngineLamps | FieldCruise | FieldFuel | FieldCoolant | FieldOil

// PrimaryDecoder reads the packed little-endian record sent by the simulator
// plugin.
type PrimaryDecoder struct{}

func (PrimaryDecoder) Size() int      { return PrimarySize }
func (PrimaryDecoder) Format() Format { return FormatPrimary }

func (PrimaryDecoder) Decode(data []byte) (Sample, error) {
	if len(data) < PrimarySize {
		return Sample{}, fmt.Errorf("%w: got %d bytes, want %d", ErrShortDatagram, len(data), PrimarySize)
	}

	flag := func(off int) bool { return data[off] != 0 }
	hazard := flag(primaryHazard)

	s := Sample{
		Fields:        primaryFields,
		Time:          time.Duration(binary.LittleEndian.Uint32(data[primaryTime:])) * time.Millisecond,
		SpeedKmh:      float32At(data, primarySpeed),
		RPM:           float32At(data, primaryRPM),
		Gear:          gearFromLetter(data[primaryGear]),
		Ignition:      flag(primaryIgnition),
		EngineRunning: flag(primaryEngineRunning),
		Handbrake:     flag(primaryParkingBrake),
		ABSActive:     flag(primaryABSActive),
		ESCActive:     flag(primaryESCActive),
		HasESC:        flag(primaryHasESC),
		HighBeam:      flag(primaryHighBeam),
		LowBeam:       flag(primaryLowBeam),
		Fog:           flag(primaryFog),
		SignalLeft:    flag(primarySignalLeft) || hazard,
		SignalRight:   flag(primarySignalRight) || hazard,
		BatteryLight:  flag(primaryBattery),
		OilLight:      flag(primaryOil),
		EngineLight:   flag(primaryCheckEngine),
		LowFuelLight:  flag(primaryLowFuel),
		CruiseActive:  flag(primaryCruiseActive),
		CruiseTarget:  float32At(data, primaryCruiseTarget),
		Fuel:          float32At(data, primaryFuel),

		CoolantTemperature: float32At(data, primaryWaterTemp),
		OilTemperature:     float32At(data, primaryOilTemp),
	}
	for i := 0; i < 4; i++ {
		if flag(primaryDoors + i) {
			s.DoorOpen = true
		}
	}
	return s, nil
}

// gearFromLetter maps the selector letter; anything but R, N or P is drive.
func gearFromLetter(c byte) vehicle.Gear {
	switch c {
	case 'R':
		return vehicle.GearAutoR
	case 'N':
		return vehicle.GearAutoN
	case 'P':
		return vehicle.GearAutoP
	default:
		return vehicle.GearAutoD
	}
}

func float32At(data []byte, off int) float64 {
	return float64(math.Float32frombits(binary.LittleEndian.Uint32(data[off:])))
}
