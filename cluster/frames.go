package cluster

import (
	"math"
	"time"

	"cluster-service/vehicle"
)

// Outgoing message ids.
const (
	IgnitionFrameID       = 0x12F
	SpeedFrameID          = 0x1A1
	RPMFrameID            = 0x0F3
	TransmissionFrameID   = 0x3FD
	NeutralFrameID        = 0x178
	FuelFrameID           = 0x349
	ABSFrameID            = 0x36E
	AliveSafetyFrameID    = 0x0D7
	PowerSteeringFrameID  = 0x2A7
	CruiseFrameID         = 0x289
	AirbagFrameID         = 0x19B
	SeatbeltFrameID       = 0x297
	TPMSFrameID           = 0x369
	OilFrameID            = 0x3F9
	EngineTempFrameID     = 0x2C4 // also carries the MPG bar
	OdometerBarFrameID    = 0x2BB
	ParkBrakeFrameID      = 0x36F
	BlinkersFrameID       = 0x1F6
	LightsFrameID         = 0x21A
	BacklightFrameID      = 0x202
	DriveModeFrameID      = 0x3A7
	HousekeepingFrameID   = 0x33B
	ClockFrameID          = 0x3F1
	SteeringButtonFrameID = 0x1EE
)

// CRC seeds per message, recovered from bus captures.
const (
	seedIgnition     = 0x44
	seedSpeed        = 0xA9
	seedRPM          = 0x7A
	seedTransmission = 0xD6
	seedNeutral      = 0x5A
	seedABS          = 0xD8
	seedSteering     = 0x9E
	seedCruise       = 0x82
	seedAirbag       = 0xFF
	seedSeatbelt     = 0x28
	seedTPMS         = 0xC5
	seedOil          = 0xF1
	seedEngineTemp   = 0xB2
	seedMPG          = 0xC6
	seedOdometerBar  = 0xDE
	seedParkBrake    = 0x17
	seedDriveMode    = 0x4A
	seedHousekeeping = 0x6B
	seedClock        = 0xA5
)

// Cluster gear codes: 0 = blank, 1-9 = M1-M9, 10 = P, 11 = R, 12 = N, 13 = D.
const (
	localGearBlank   = 0
	localGearPark    = 10
	localGearReverse = 11
	localGearNeutral = 12
	localGearDrive   = 13
)

const (
	rpmNeedleMaxRPM   = 6900
	rpmNeedleMaxValue = 0x2B
	speedScale        = 64.01
	distanceScale     = 2.9
	steeringMenuPress = 76
)

// LocalGear maps the canonical gear to the cluster gear code.
func LocalGear(g vehicle.Gear) uint8 {
	if n := g.Manual(); n > 0 && n <= 9 {
		return uint8(n)
	}
	switch g {
	case vehicle.GearAutoP:
		return localGearPark
	case vehicle.GearAutoR:
		return localGearReverse
	case vehicle.GearAutoN:
		return localGearNeutral
	}
	// M10, D and S all show as drive
	return localGearDrive
}

func IgnitionFrame(counter uint8, on bool) Frame {
	status := byte(0x08)
	if on {
		status = 0x8A
	}
	return Assemble(IgnitionFrameID, seedIgnition, 0x80|counter, status, 0xDD, 0xF1, 0x01, 0x30, 0x06)
}

func SpeedFrame(counter uint8, speed int) Frame {
	scaled := uint16(float64(speed) * speedScale)
	moving := byte(0x91)
	if speed == 0 {
		moving = 0x81
	}
	return Assemble(SpeedFrameID, seedSpeed, 0xC0|counter, lo8(scaled), hi8(scaled), moving)
}

// RPMFrame drives the tachometer needle and the manual gear readout.
func RPMFrame(counter uint8, rpm int, localGear uint8) Frame {
	var gear byte
	switch {
	case localGear >= 1 && localGear <= 9:
		gear = localGear + 4
	case localGear == localGearReverse:
		gear = 2
	case localGear == localGearNeutral:
		gear = 1
	}
	needle := byte(MapRange(rpm, 0, rpmNeedleMaxRPM, 0, rpmNeedleMaxValue))
	return Assemble(RPMFrameID, seedRPM, 0x60|counter, needle, 0xC0, 0xF0, gear, 0xFF, 0xFF)
}

func TransmissionFrame(counter uint8, localGear uint8) Frame {
	var selected byte
	switch {
	case localGear >= 1 && localGear <= 9:
		selected = 0x81 // DS
	case localGear == localGearPark:
		selected = 0x20
	case localGear == localGearReverse:
		selected = 0x40
	case localGear == localGearNeutral:
		selected = 0x60
	case localGear == localGearDrive:
		selected = 0x80
	}
	return Assemble(TransmissionFrameID, seedTransmission, counter, selected, 0xFC, 0xFF)
}

// NeutralFrame must repeat while the selector is in N.
func NeutralFrame(counter uint8) Frame {
	return Assemble(NeutralFrameID, seedNeutral, 0xF0|counter, 0x60, 0xFC, 0xFF)
}

// BasicDriveInfoFrames is the bundle that keeps ABS, steering, cruise,
// restraint and TPMS lamps quiet, plus the temperature readouts.
func BasicDriveInfoFrames(counter, alive uint8, cruiseActive bool, oilTemperature int) []Frame {
	cruise := byte(0xE0)
	if cruiseActive {
		cruise = 0xE3
	}
	return []Frame{
		Assemble(ABSFrameID, seedABS, 0xF0|counter, 0xFE, 0xFF, 0x14),
		Raw(AliveSafetyFrameID, alive, 0xFF),
		Assemble(PowerSteeringFrameID, seedSteering, 0xF0|counter, 0xFE, 0xFF, 0x14),
		Assemble(CruiseFrameID, seedCruise, 0xF0|counter, 0xE0, 0xE0, cruise, 0x00, 0xEC, 0x01),
		Assemble(AirbagFrameID, seedAirbag, 0x40|counter, 0x40, 0x55, 0xFD, 0xFF, 0xFF, 0xFF),
		Assemble(SeatbeltFrameID, seedSeatbelt, 0xE0|counter, 0xF1, 0xF0, 0xF2, 0xF2, 0xFE),
		Assemble(TPMSFrameID, seedTPMS, 0xF0|counter, 0xA2, 0xA0, 0xA0),
		Assemble(OilFrameID, seedOil, 0x10|counter, 0x82, 0x4E, 0x7E, byte(oilTemperature+50), 0x05, 0x89),
		// no counter in this one, the checksum still has to match
		Assemble(EngineTempFrameID, seedEngineTemp, 0x3E, byte(oilTemperature), 0x64, 0x64, 0x64, 0x01, 0xF1),
	}
}

// FuelFrame carries the gauge value twice on the F-series; the MINI only
// reads the second pair. No checksum.
func FuelFrame(level uint8, mini bool) Frame {
	value := uint16(level)
	if mini {
		return Raw(FuelFrameID, 0, 0, hi8(value), lo8(value), 0x00)
	}
	return Raw(FuelFrameID, hi8(value), lo8(value), hi8(value), lo8(value), 0x00)
}

func ParkBrakeFrame(counter uint8, active bool) Frame {
	state := byte(0x14)
	if active {
		state = 0x15
	}
	return Assemble(ParkBrakeFrameID, seedParkBrake, 0xF0|counter, 0x38, 0, state)
}

// DistanceFrames returns the MPG bar frame and the odometer bar frame that
// moves it.
func DistanceFrames(counter, alive uint8, distance uint16) [2]Frame {
	return [2]Frame{
		Assemble(EngineTempFrameID, seedMPG, alive, 0xFF, 0x64, 0x64, 0x64, 0x01, 0xF1),
		Assemble(OdometerBarFrameID, seedOdometerBar, 0xF0|counter, lo8(distance), hi8(distance), 0xF2),
	}
}

// AdvanceDistance adds speed × 2.9 to the odometer bar counter, wrapping at 16 bits.
func AdvanceDistance(distance float64, speed int) float64 {
	return math.Mod(distance+float64(speed)*distanceScale, 65536)
}

func BlinkersFrame(left, right bool) Frame {
	status := byte(0x80)
	if left || right {
		status = 0x81 | boolToByte(left)<<4 | boolToByte(right)<<5
	}
	return Raw(BlinkersFrameID, status, 0xF0)
}

// LightsFrame sets the headlight indicators. High beam requires low beam, so
// it forces the main lights on.
func LightsFrame(mainLights, highBeam, frontFog, rearFog bool) Frame {
	if highBeam {
		mainLights = true
	}
	status := boolToByte(highBeam)<<1 | boolToByte(mainLights)<<2 | boolToByte(frontFog)<<5 | boolToByte(rearFog)<<6
	return Raw(LightsFrameID, status, 0xC0, 0xF7)
}

func BacklightFrame(brightness uint8) Frame {
	level := clamp(int(brightness), 0, 100)
	return Raw(BacklightFrameID, byte(MapRange(level, 0, 100, 0, 253)), 0xFF)
}

func DriveModeFrame(counter uint8, mode uint8) Frame {
	return Assemble(DriveModeFrameID, seedDriveMode, 0xF0|counter, 0, 0, mode, 0x11, 0xC0)
}

// HousekeepingFrame is paced by the acc counter rather than the rolling one.
func HousekeepingFrame(acc uint8) Frame {
	return Assemble(HousekeepingFrameID, seedHousekeeping, 0xF0|acc, 0x5C, 0x70, 0x00, 0x00)
}

// ClockFrame shows the simulation time as HH:MM.
func ClockFrame(counter uint8, elapsed time.Duration) Frame {
	totalSeconds := int64(elapsed / time.Second)
	hours := byte((totalSeconds / 3600) % 24)
	minutes := byte((totalSeconds / 60) % 60)
	return Assemble(ClockFrameID, seedClock, 0xF0|counter, hours, minutes, 0x00, 0x00)
}

func SteeringButtonFrame(event int) Frame {
	var button byte
	if event == 1 {
		button = steeringMenuPress
	}
	return Raw(SteeringButtonFrameID, button, 0xFF)
}
