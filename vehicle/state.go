package vehicle

import "time"

// ManualAlert is a single-slot command to raise or clear one check-control
// message. A second request before the first is serviced overwrites it.
type ManualAlert struct {
	ID             uint8
	StartRequested bool
	ClearRequested bool
}

// Pending reports whether the slot holds an unserviced request.
func (m ManualAlert) Pending() bool {
	return m.StartRequested || m.ClearRequested
}

// State is the canonical snapshot of the simulated vehicle. It is owned by a
// single goroutine; see ClusterApp for the event loop that serializes access.
type State struct {
	Ignition      bool
	EngineRunning bool

	Speed int // km/h
	RPM   int
	Gear  Gear

	CoolantTemperature int // °C
	OilTemperature     int // °C
	FuelQuantity       float64

	Handbrake bool
	DoorOpen  bool

	MainLights    bool
	HighBeam      bool
	FrontFogLight bool
	RearFogLight  bool

	LeftTurningIndicator  bool
	RightTurningIndicator bool

	BacklightBrightness uint8 // 0-100
	DriveMode           uint8

	CruiseControlActive bool
	CruiseControlTarget float64

	ESCActive bool
	HasESC    bool

	ABSLight     bool
	EngineLight  bool
	BatteryLight bool
	LowFuelLight bool
	OilLight     bool
	OffroadLight bool

	// Time is the elapsed simulation time.
	Time time.Duration

	// ButtonEvent is a pending steering wheel button press, 0 when idle.
	ButtonEvent int

	ManualAlert ManualAlert

	// Stale is set when telemetry stopped arriving.
	Stale bool
}

// Drive modes understood by the cluster.
const (
	DriveModeTraction  uint8 = 1
	DriveModeComfort   uint8 = 2
	DriveModeSport     uint8 = 4
	DriveModeSportPlus uint8 = 5
	DriveModeDSCOff    uint8 = 6
	DriveModeEcoPro    uint8 = 7
)

// NewState returns the power-on snapshot.
func NewState() *State {
	return &State{
		Gear:                GearAutoP,
		HasESC:              true,
		BacklightBrightness: 100,
		DriveMode:           DriveModeComfort,
	}
}

// SetFuelQuantity stores the fuel ratio clamped to [0,1].
func (s *State) SetFuelQuantity(ratio float64) {
	switch {
	case ratio != ratio || ratio < 0: // NaN or negative
		ratio = 0
	case ratio > 1:
		ratio = 1
	}
	s.FuelQuantity = ratio
}

// SetGear stores g, falling back to park for values outside the enum.
func (s *State) SetGear(g Gear) {
	if !g.Valid() {
		g = GearAutoP
	}
	s.Gear = g
}

// RequestAlert fills the manual alert slot.
func (s *State) RequestAlert(id uint8, start bool) {
	s.ManualAlert = ManualAlert{
		ID:             id,
		StartRequested: start,
		ClearRequested: !start,
	}
}

// TakeManualAlert returns the pending request and resets the flags.
func (s *State) TakeManualAlert() ManualAlert {
	m := s.ManualAlert
	s.ManualAlert.StartRequested = false
	s.ManualAlert.ClearRequested = false
	return m
}

// TakeButtonEvent returns the pending button event and clears it.
func (s *State) TakeButtonEvent() int {
	evt := s.ButtonEvent
	s.ButtonEvent = 0
	return evt
}

// SafeDefault is what the cluster shows when telemetry went silent: ignition
// off, needles at rest, every lamp and signal off. Display preferences and
// the simulation clock are kept.
func (s *State) SafeDefault() State {
	safe := *NewState()
	safe.BacklightBrightness = s.BacklightBrightness
	safe.DriveMode = s.DriveMode
	safe.HasESC = s.HasESC
	safe.Time = s.Time
	safe.Stale = true
	return safe
}
