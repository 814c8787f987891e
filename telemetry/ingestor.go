package telemetry

import (
	"math"
	"sync/atomic"
	"time"

	"cluster-service/vehicle"
)

const (
	// DefaultSignalHold keeps a blinker lit between datagrams.
	DefaultSignalHold = 300 * time.Millisecond
	// DefaultStaleTimeout marks the snapshot stale when no datagram arrived.
	DefaultStaleTimeout = 2 * time.Second

	speedKeep = 0.80
	speedTake = 0.20
	rpmKeep   = 0.85
	rpmTake   = 0.15

	// Bounds applied to floats before they reach a filter or an int field.
	maxSpeedKmh    = 1000
	maxRPM         = 30000
	minTemperature = -100
	maxTemperature = 1000
)

// ema is an exponential moving average: keep is the share of the previous
// value, take the share of the new sample.
type ema struct {
	keep  float64
	take  float64
	value float64
}

func (f *ema) Update(sample float64) float64 {
	f.value = f.value*f.keep + sample*f.take
	return f.value
}

// Stats counts datagram outcomes. Rejected counts NaN or infinite values
// that were discarded from otherwise valid datagrams.
type Stats struct {
	Datagrams uint64
	Dropped   uint64
	Rejected  uint64
}

// IngestorConfig tunes the ingestor's timers.
type IngestorConfig struct {
	SignalHold   time.Duration
	StaleTimeout time.Duration
}

func DefaultIngestorConfig() IngestorConfig {
	return IngestorConfig{
		SignalHold:   DefaultSignalHold,
		StaleTimeout: DefaultStaleTimeout,
	}
}

// Ingestor folds decoded samples into the vehicle snapshot. All filter and
// timer state lives here so independent instances do not interfere. Only Drop
// may be called from other goroutines.
type Ingestor struct {
	decoder Decoder
	cfg     IngestorConfig
	logger  Logger

	speed ema
	rpm   ema

	leftSeen  time.Time
	rightSeen time.Time

	lastDatagram time.Time
	received     bool
	stale        bool

	stats   Stats
	dropped atomic.Uint64
}

func NewIngestor(decoder Decoder, cfg IngestorConfig, logger Logger) *Ingestor {
	if logger == nil {
		logger = nopLogger{}
	}
	if cfg.SignalHold <= 0 {
		cfg.SignalHold = DefaultSignalHold
	}
	return &Ingestor{
		decoder: decoder,
		cfg:     cfg,
		logger:  logger,
		speed:   ema{keep: speedKeep, take: speedTake},
		rpm:     ema{keep: rpmKeep, take: rpmTake},
		stale:   cfg.StaleTimeout > 0,
	}
}

func (i *Ingestor) Decoder() Decoder { return i.decoder }

// Stats returns a snapshot of the counters.
func (i *Ingestor) Stats() Stats {
	stats := i.stats
	stats.Dropped = i.dropped.Load()
	return stats
}

// HandleDatagram decodes data and applies it. Undersized or malformed
// datagrams leave state untouched.
func (i *Ingestor) HandleDatagram(state *vehicle.State, data []byte, now time.Time) error {
	sample, err := i.decoder.Decode(data)
	if err != nil {
		i.Drop()
		i.logger.Debug("Dropping datagram (%d bytes): %v", len(data), err)
		return err
	}
	i.Apply(state, sample, now)
	return nil
}

// Drop counts a datagram rejected before it reached Apply. Safe to call from
// the goroutine that receives datagrams.
func (i *Ingestor) Drop() {
	i.dropped.Add(1)
}

// Apply writes the fields carried by sample into state. Speed and RPM are
// smoothed on every sample regardless of the engine cadence.
func (i *Ingestor) Apply(state *vehicle.State, sample Sample, now time.Time) {
	i.stats.Datagrams++
	i.lastDatagram = now
	i.received = true

	f := sample.Fields
	if f.Has(FieldTime) {
		state.Time = sample.Time
	}
	if f.Has(FieldSpeed) {
		if v, ok := i.bounded(sample.SpeedKmh, 0, maxSpeedKmh); ok {
			state.Speed = int(i.speed.Update(v))
		}
	}
	if f.Has(FieldRPM) {
		if v, ok := i.bounded(sample.RPM, 0, maxRPM); ok {
			state.RPM = int(i.rpm.Update(v))
		}
	}
	if f.Has(FieldGear) {
		state.SetGear(sample.Gear)
	}
	if f.Has(FieldIgnition) {
		state.Ignition = sample.Ignition
		state.EngineRunning = sample.EngineRunning
	}
	if f.Has(FieldDoors) {
		state.DoorOpen = sample.DoorOpen
	}
	if f.Has(FieldHandbrake) {
		state.Handbrake = sample.Handbrake
	}
	if f.Has(FieldStability) {
		state.ESCActive = sample.ESCActive
		state.HasESC = sample.HasESC
	}
	if f.Has(FieldABS) {
		state.ABSLight = sample.ABSActive
	}
	if f.Has(FieldHighBeam) {
		state.HighBeam = sample.HighBeam
	}
	if f.Has(FieldLights) {
		state.MainLights = sample.LowBeam
		state.FrontFogLight = sample.Fog
	}
	if f.Has(FieldBattery) {
		state.BatteryLight = sample.BatteryLight
	}
	if f.Has(FieldEngineLamps) {
		state.OilLight = sample.OilLight
		state.EngineLight = sample.EngineLight
		state.LowFuelLight = sample.LowFuelLight
	}
	if f.Has(FieldOffroad) {
		state.OffroadLight = sample.OffroadLight
	}
	if f.Has(FieldCruise) {
		state.CruiseControlActive = sample.CruiseActive
		if v, ok := i.bounded(sample.CruiseTarget, 0, maxSpeedKmh); ok {
			state.CruiseControlTarget = v
		}
	}
	if f.Has(FieldFuel) {
		if v, ok := i.bounded(sample.Fuel, 0, 1); ok {
			state.SetFuelQuantity(v)
		}
	}
	if f.Has(FieldCoolant) {
		if v, ok := i.bounded(sample.CoolantTemperature, minTemperature, maxTemperature); ok {
			state.CoolantTemperature = int(v)
		}
	}
	if f.Has(FieldOil) {
		if v, ok := i.bounded(sample.OilTemperature, minTemperature, maxTemperature); ok {
			state.OilTemperature = int(v)
		}
	}

	if f.Has(FieldSignals) {
		if sample.SignalLeft {
			i.leftSeen = now
		}
		if sample.SignalRight {
			i.rightSeen = now
		}
	}
	i.Refresh(state, now)
}

// Refresh re-evaluates the blinker hold and the staleness timer. Call it from
// the loop even when no datagram arrived so both decay on time.
func (i *Ingestor) Refresh(state *vehicle.State, now time.Time) {
	state.LeftTurningIndicator = i.held(i.leftSeen, now)
	state.RightTurningIndicator = i.held(i.rightSeen, now)

	stale := i.isStale(now)
	if stale != i.stale {
		if stale {
			i.logger.Warn("No telemetry for %v, showing safe defaults", i.cfg.StaleTimeout)
		} else {
			i.logger.Info("Telemetry resumed")
		}
		i.stale = stale
	}
	state.Stale = stale
}

// bounded clamps v to [lo, hi]. NaN and infinities are rejected so they
// never reach a filter; the field keeps its previous value.
func (i *Ingestor) bounded(v, lo, hi float64) (float64, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		i.stats.Rejected++
		return 0, false
	}
	return math.Max(lo, math.Min(hi, v)), true
}

func (i *Ingestor) held(seen, now time.Time) bool {
	return !seen.IsZero() && now.Sub(seen) <= i.cfg.SignalHold
}

// isStale is true before the first datagram and once the timeout elapsed.
// A zero timeout disables staleness.
func (i *Ingestor) isStale(now time.Time) bool {
	if i.cfg.StaleTimeout <= 0 {
		return false
	}
	if !i.received {
		return true
	}
	return now.Sub(i.lastDatagram) > i.cfg.StaleTimeout
}
