package cluster

import (
	"time"

	"cluster-service/vehicle"

	"golang.org/x/time/rate"
)

// Transmitter puts one frame on the bus.
type Transmitter interface {
	Transmit(frame Frame) error
}

// Clock is the monotonic time source. Sleep blocks the caller.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }

// SystemClock returns the wall clock backed by the runtime monotonic reading.
func SystemClock() Clock { return systemClock{} }

// Variant selects cluster-specific behaviour.
type Variant int

const (
	VariantFSeries Variant = iota
	VariantMini
)

func (v Variant) String() string {
	if v == VariantMini {
		return "mini"
	}
	return "f-series"
}

// Phase of the current ignition cycle.
type Phase int

const (
	PhaseOff Phase = iota
	PhaseStarting
	PhaseRunning
)

func (p Phase) String() string {
	switch p {
	case PhaseStarting:
		return "starting"
	case PhaseRunning:
		return "running"
	default:
		return "off"
	}
}

const (
	DefaultFastInterval    = 100 * time.Millisecond
	DefaultSlowInterval    = 1000 * time.Millisecond
	DefaultStartBurstDelay = 10 * time.Second
	DefaultStartBurstPause = 50 * time.Millisecond

	overspeedDoorSpeed = 220
	overspeedSpeed     = 120
)

// Config holds the engine's mapping limits and cadences.
type Config struct {
	Variant Variant

	SpeedCorrectionFactor float64
	RPMCorrectionFactor   float64
	MaximumSpeed          int
	MaximumRPM            int

	MinimumCoolantTemperature int
	MaximumCoolantTemperature int

	FastInterval    time.Duration
	SlowInterval    time.Duration
	StartBurstDelay time.Duration
	StartBurstPause time.Duration
}

func DefaultConfig() Config {
	return Config{
		Variant:                   VariantFSeries,
		SpeedCorrectionFactor:     1.0,
		RPMCorrectionFactor:       1.0,
		MaximumSpeed:              260,
		MaximumRPM:                8000,
		MinimumCoolantTemperature: 50,
		MaximumCoolantTemperature: 150,
		FastInterval:              DefaultFastInterval,
		SlowInterval:              DefaultSlowInterval,
		StartBurstDelay:           DefaultStartBurstDelay,
		StartBurstPause:           DefaultStartBurstPause,
	}
}

// Stats counts transmit outcomes.
type Stats struct {
	FramesSent       uint64
	TransmitFailures uint64
}

// Engine composes the cluster frame stream from a vehicle snapshot. It is
// not safe for concurrent use; call Update from the loop that owns the state.
type Engine struct {
	cfg     Config
	tx      Transmitter
	clock   Clock
	logger  Logger
	limiter *rate.Limiter

	counters Counters
	alerts   *AlertRegistry
	rules    []alertRule

	fuelIn  [3]int
	fuelOut [3]int

	lastFast time.Time
	lastSlow time.Time
	fastRan  bool
	slowRan  bool

	phase        Phase
	ignitionOnAt time.Time
	burstSent    bool

	distance float64
	stats    Stats
}

func NewEngine(cfg Config, tx Transmitter, clock Clock, logger Logger) *Engine {
	if clock == nil {
		clock = SystemClock()
	}
	if logger == nil {
		logger = nopLogger{}
	}

	e := &Engine{
		cfg:     cfg,
		tx:      tx,
		clock:   clock,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Every(5*time.Second), 3),
		fuelIn:  [3]int{0, 50, 100},
	}
	if cfg.Variant == VariantMini {
		e.fuelOut = [3]int{22, 7, 3}
	} else {
		e.fuelOut = [3]int{37, 18, 4}
	}
	e.alerts = NewAlertRegistry(e.send)
	e.rules = alertRules(cfg.Variant)

	e.logger.Info("Cluster engine ready: variant=%s fast=%v slow=%v", cfg.Variant, cfg.FastInterval, cfg.SlowInterval)
	return e
}

func (e *Engine) Phase() Phase           { return e.phase }
func (e *Engine) Stats() Stats           { return e.stats }
func (e *Engine) Counters() Counters     { return e.counters }
func (e *Engine) Alerts() *AlertRegistry { return e.alerts }
func (e *Engine) Distance() uint16       { return uint16(e.distance) }

// Update runs whichever cadences are due and services the manual alert slot.
// Stale snapshots are rendered as their safe default.
func (e *Engine) Update(state *vehicle.State) {
	view := *state
	if state.Stale {
		view = state.SafeDefault()
	}

	if !e.fastRan || e.clock.Now().Sub(e.lastFast) >= e.cfg.FastInterval {
		e.fastTick(view)
		e.lastFast = e.clock.Now()
		e.fastRan = true
	}

	e.serviceManualAlert(state)

	if !e.slowRan || e.clock.Now().Sub(e.lastSlow) >= e.cfg.SlowInterval {
		e.slowTick(view, state.TakeButtonEvent())
		e.lastSlow = e.clock.Now()
		e.slowRan = true
	}
}

func (e *Engine) fastTick(s vehicle.State) {
	c := e.counters.Rolling()
	alive := e.counters.Alive()

	e.send(IgnitionFrame(c, s.Ignition))
	e.updateStartPhase(s.Ignition)

	speed := e.mapSpeed(s.Speed)
	gear := LocalGear(s.Gear)

	e.send(SpeedFrame(c, speed))
	e.send(RPMFrame(c, e.mapRPM(s.RPM), gear))
	for _, frame := range BasicDriveInfoFrames(c, alive, s.CruiseControlActive, e.mapTemperature(s.OilTemperature)) {
		e.send(frame)
	}
	e.send(TransmissionFrame(c, gear))
	if s.Gear == vehicle.GearAutoN {
		e.send(NeutralFrame(c))
	}
	e.send(FuelFrame(e.fuelLevel(s.FuelQuantity), e.cfg.Variant == VariantMini))
	e.send(ParkBrakeFrame(c, s.Handbrake))

	distance := DistanceFrames(c, alive, uint16(e.distance))
	e.send(distance[0])
	e.send(distance[1])
	e.distance = AdvanceDistance(e.distance, speed)

	if s.Speed > overspeedDoorSpeed {
		s.DoorOpen = true
	}
	for _, rule := range e.rules {
		rule.apply(e.alerts, &s)
	}

	e.send(HousekeepingFrame(e.counters.Acc()))
	e.counters.AdvanceAcc()
	e.counters.Advance()
}

func (e *Engine) slowTick(s vehicle.State, buttonEvent int) {
	c := e.counters.Rolling()

	e.send(LightsFrame(s.MainLights, s.HighBeam, s.FrontFogLight, s.RearFogLight))
	e.send(BlinkersFrame(s.LeftTurningIndicator, s.RightTurningIndicator))
	e.send(BacklightFrame(s.BacklightBrightness))
	e.send(DriveModeFrame(c, s.DriveMode))
	e.send(ClockFrame(c, s.Time))
	e.send(SteeringButtonFrame(buttonEvent))
}

// updateStartPhase walks Off -> Starting -> Running. The start burst blocks
// the loop for the set/clear pauses.
func (e *Engine) updateStartPhase(ignition bool) {
	if !ignition {
		if e.phase != PhaseOff {
			e.logger.Info("Ignition off (was %s)", e.phase)
		}
		e.phase = PhaseOff
		e.ignitionOnAt = time.Time{}
		e.burstSent = false
		return
	}

	now := e.clock.Now()
	if e.phase == PhaseOff {
		e.phase = PhaseStarting
		e.ignitionOnAt = now
		e.burstSent = false
		e.logger.Info("Ignition on -> awaiting engine start burst (%.1f s)", e.cfg.StartBurstDelay.Seconds())
	}

	if e.phase == PhaseStarting && !e.burstSent && now.Sub(e.ignitionOnAt) >= e.cfg.StartBurstDelay {
		e.sendStartBurst()
		e.burstSent = true
		e.phase = PhaseRunning
	}
}

func (e *Engine) sendStartBurst() {
	e.logger.Info("Sending engine start burst")
	for _, id := range alertsEngineStart.IDs {
		e.alerts.Set(id, true)
		e.clock.Sleep(e.cfg.StartBurstPause)
		e.alerts.Set(id, false)
	}
}

func (e *Engine) serviceManualAlert(state *vehicle.State) {
	if !state.ManualAlert.Pending() {
		return
	}
	alert := state.TakeManualAlert()
	if alert.StartRequested {
		e.logger.Info("Manual alert %d: activate", alert.ID)
		e.alerts.Set(alert.ID, true)
	}
	if alert.ClearRequested {
		e.logger.Info("Manual alert %d: clear", alert.ID)
		e.alerts.Set(alert.ID, false)
	}
}

// send is fire-and-forget: failed frames are counted and dropped.
func (e *Engine) send(frame Frame) {
	DebugFrame(e.logger, "TX", frame)
	if err := e.tx.Transmit(frame); err != nil {
		e.stats.TransmitFailures++
		if e.limiter.Allow() {
			e.logger.Warn("Transmit 0x%03X failed: %v (%d failures total)", frame.ID, err, e.stats.TransmitFailures)
		}
		return
	}
	e.stats.FramesSent++
}

func (e *Engine) mapSpeed(speed int) int {
	scaled := int(float64(speed) * e.cfg.SpeedCorrectionFactor)
	return clamp(scaled, 0, e.cfg.MaximumSpeed)
}

func (e *Engine) mapRPM(rpm int) int {
	scaled := int(float64(rpm) * e.cfg.RPMCorrectionFactor)
	return clamp(scaled, 0, e.cfg.MaximumRPM)
}

func (e *Engine) mapTemperature(temperature int) int {
	return clamp(temperature, e.cfg.MinimumCoolantTemperature, e.cfg.MaximumCoolantTemperature)
}

func (e *Engine) fuelLevel(ratio float64) uint8 {
	percent := clamp(int(ratio*100), 0, 100)
	return uint8(Interpolate(percent, e.fuelIn, e.fuelOut))
}
