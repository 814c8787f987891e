package cluster

import (
	"errors"
	"testing"
	"time"

	"cluster-service/vehicle"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransmitter records every frame handed to it.
type fakeTransmitter struct {
	frames []Frame
	err    error
}

func (f *fakeTransmitter) Transmit(frame Frame) error {
	f.frames = append(f.frames, frame)
	return f.err
}

func (f *fakeTransmitter) reset() { f.frames = nil }

func (f *fakeTransmitter) byID(id uint32) []Frame {
	var out []Frame
	for _, frame := range f.frames {
		if frame.ID == id {
			out = append(out, frame)
		}
	}
	return out
}

// alertCount counts check-control frames for id with the given trigger.
func (f *fakeTransmitter) alertCount(id uint8, active bool) int {
	want := AlertFrame(id, active)
	n := 0
	for _, frame := range f.frames {
		if frame == want {
			n++
		}
	}
	return n
}

// fakeClock only moves when told to; Sleep advances it.
type fakeClock struct {
	now    time.Time
	slept  time.Duration
	sleeps int
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(d time.Duration) {
	c.now = c.now.Add(d)
	c.slept += d
	c.sleeps++
}

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestEngine(t *testing.T, cfg Config) (*Engine, *fakeTransmitter, *fakeClock) {
	t.Helper()
	tx := &fakeTransmitter{}
	clock := newFakeClock()
	return NewEngine(cfg, tx, clock, nil), tx, clock
}

func TestEngine_FirstUpdateRunsBothCadences(t *testing.T) {
	e, tx, _ := newTestEngine(t, DefaultConfig())
	state := vehicle.NewState()

	e.Update(state)

	for _, id := range []uint32{IgnitionFrameID, SpeedFrameID, RPMFrameID, TransmissionFrameID, FuelFrameID,
		ABSFrameID, PowerSteeringFrameID, CruiseFrameID, AirbagFrameID, SeatbeltFrameID, TPMSFrameID, OilFrameID,
		ParkBrakeFrameID, OdometerBarFrameID, HousekeepingFrameID, LightsFrameID, BlinkersFrameID,
		BacklightFrameID, DriveModeFrameID, ClockFrameID, SteeringButtonFrameID} {
		assert.Len(t, tx.byID(id), 1, "frame 0x%03X", id)
	}
	// temperature and MPG bar share an id
	assert.Len(t, tx.byID(EngineTempFrameID), 2)
	assert.Empty(t, tx.byID(NeutralFrameID))
}

func TestEngine_Cadences(t *testing.T) {
	e, tx, clock := newTestEngine(t, DefaultConfig())
	state := vehicle.NewState()

	e.Update(state)
	tx.reset()

	clock.Advance(50 * time.Millisecond)
	e.Update(state)
	assert.Empty(t, tx.frames)

	clock.Advance(50 * time.Millisecond)
	e.Update(state)
	assert.Len(t, tx.byID(IgnitionFrameID), 1)
	assert.Empty(t, tx.byID(LightsFrameID))

	tx.reset()
	for i := 0; i < 9; i++ {
		clock.Advance(100 * time.Millisecond)
		e.Update(state)
	}
	assert.Len(t, tx.byID(IgnitionFrameID), 9)
	assert.Len(t, tx.byID(LightsFrameID), 1)
}

func TestEngine_LateTickIsNotDoubled(t *testing.T) {
	e, tx, clock := newTestEngine(t, DefaultConfig())
	state := vehicle.NewState()

	e.Update(state)
	tx.reset()

	clock.Advance(450 * time.Millisecond)
	e.Update(state)
	assert.Len(t, tx.byID(IgnitionFrameID), 1)
}

func TestEngine_RollingCounterInFrames(t *testing.T) {
	e, tx, clock := newTestEngine(t, DefaultConfig())
	state := vehicle.NewState()

	for i := 0; i < 15; i++ {
		e.Update(state)
		clock.Advance(100 * time.Millisecond)
	}

	ignition := tx.byID(IgnitionFrameID)
	require.Len(t, ignition, 15)
	for i, frame := range ignition {
		assert.Equal(t, byte(0x80|uint8(i%14)), frame.Data[1], "tick %d", i)
	}
	counters := e.Counters()
	assert.Equal(t, uint8(1), counters.Rolling())
}

func runTicks(e *Engine, clock *fakeClock, state *vehicle.State, d time.Duration) {
	end := clock.Now().Add(d)
	for clock.Now().Before(end) {
		clock.Advance(100 * time.Millisecond)
		e.Update(state)
	}
}

func TestEngine_StartBurstAfterTenSeconds(t *testing.T) {
	e, tx, clock := newTestEngine(t, DefaultConfig())
	state := vehicle.NewState()
	state.Ignition = true
	state.RPM = 800

	e.Update(state)
	assert.Equal(t, PhaseStarting, e.Phase())

	runTicks(e, clock, state, 9900*time.Millisecond)
	assert.Zero(t, tx.alertCount(181, true))
	assert.Zero(t, tx.alertCount(53, true))
	assert.Zero(t, tx.alertCount(91, true))
	assert.Equal(t, PhaseStarting, e.Phase())
	assert.Zero(t, clock.sleeps)

	tx.reset()
	clock.Advance(100 * time.Millisecond)
	e.Update(state)

	assert.Equal(t, PhaseRunning, e.Phase())
	for _, id := range []uint8{91, 53, 181} {
		assert.Equal(t, 1, tx.alertCount(id, true), "set %d", id)
		assert.Equal(t, 1, tx.alertCount(id, false), "clear %d", id)
	}
	assert.Equal(t, 3, clock.sleeps)
	assert.Equal(t, 150*time.Millisecond, clock.slept)

	// pairs go out in order, each set followed by its clear
	var burst []Frame
	for _, frame := range tx.byID(CheckControlFrameID) {
		switch frame.Data[1] {
		case 91, 53, 181:
			burst = append(burst, frame)
		}
	}
	assert.Equal(t, []Frame{
		AlertFrame(91, true), AlertFrame(91, false),
		AlertFrame(53, true), AlertFrame(53, false),
		AlertFrame(181, true), AlertFrame(181, false),
	}, burst)

	tx.reset()
	runTicks(e, clock, state, 20*time.Second)
	assert.Zero(t, tx.alertCount(181, true))
}

func TestEngine_FallingEdgeSuppressesBurst(t *testing.T) {
	e, tx, clock := newTestEngine(t, DefaultConfig())
	state := vehicle.NewState()
	state.Ignition = true
	state.RPM = 800

	e.Update(state)
	runTicks(e, clock, state, 5*time.Second)

	state.Ignition = false
	runTicks(e, clock, state, time.Second)
	assert.Equal(t, PhaseOff, e.Phase())

	// rising edge at t=6s restarts the timer
	state.Ignition = true
	runTicks(e, clock, state, 9800*time.Millisecond)
	assert.Zero(t, tx.alertCount(181, true))
	assert.Equal(t, PhaseStarting, e.Phase())

	runTicks(e, clock, state, 400*time.Millisecond)
	assert.Equal(t, 1, tx.alertCount(181, true))
	assert.Equal(t, PhaseRunning, e.Phase())
}

func TestEngine_DoorEdgeTriggered(t *testing.T) {
	e, tx, clock := newTestEngine(t, DefaultConfig())
	state := vehicle.NewState()

	e.Update(state)
	runTicks(e, clock, state, time.Second)
	assert.Zero(t, tx.alertCount(212, false), "no clear burst while the door stays closed")

	tx.reset()
	state.DoorOpen = true
	clock.Advance(100 * time.Millisecond)
	e.Update(state)
	for _, id := range alertsDoorOpen.IDs {
		assert.GreaterOrEqual(t, tx.alertCount(id, true), 1, "door id %d", id)
	}
	for _, id := range []uint8{14, 15, 16, 17} {
		assert.Equal(t, 1, tx.alertCount(id, true), "door id %d", id)
	}

	runTicks(e, clock, state, 3*time.Second)
	for _, id := range []uint8{212, 77, 229, 14, 15, 16, 17} {
		assert.Equal(t, 1, tx.alertCount(id, true), "id %d re-triggered", id)
	}

	tx.reset()
	state.DoorOpen = false
	runTicks(e, clock, state, 3*time.Second)
	for _, id := range []uint8{212, 77, 229, 14, 15, 16, 17} {
		assert.Equal(t, 1, tx.alertCount(id, false), "id %d clear", id)
		assert.Zero(t, tx.alertCount(id, true))
	}
}

func TestEngine_OverspeedForcesDoorGroup(t *testing.T) {
	e, tx, _ := newTestEngine(t, DefaultConfig())
	state := vehicle.NewState()
	state.Speed = 230

	e.Update(state)

	assert.Equal(t, 1, tx.alertCount(212, true))
	assert.Equal(t, 1, tx.alertCount(62, true))
	assert.False(t, state.DoorOpen, "snapshot must not be modified")
}

func TestEngine_OverspeedAlert(t *testing.T) {
	e, tx, _ := newTestEngine(t, DefaultConfig())
	state := vehicle.NewState()
	state.Speed = 130

	e.Update(state)
	assert.Equal(t, 1, tx.alertCount(62, true))
	assert.Zero(t, tx.alertCount(212, true))
}

func TestEngine_StabilityBranches(t *testing.T) {
	tests := []struct {
		name      string
		escActive bool
		hasESC    bool
		want      map[uint8]bool
	}{
		{"intervening", true, true, map[uint8]bool{35: true, 215: true, 36: false, 42: false}},
		{"disabled", false, false, map[uint8]bool{35: true, 215: false, 36: true, 42: true}},
		{"normal", false, true, map[uint8]bool{35: false, 215: false, 36: false, 42: false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _, _ := newTestEngine(t, DefaultConfig())
			state := vehicle.NewState()
			state.ESCActive = tt.escActive
			state.HasESC = tt.hasESC

			e.Update(state)

			for id, want := range tt.want {
				got, known := e.Alerts().State(id)
				require.True(t, known, "id %d", id)
				assert.Equal(t, want, got, "id %d", id)
			}
		})
	}
}

func TestEngine_AlertPrecedenceFollowsRuleOrder(t *testing.T) {
	e, tx, _ := newTestEngine(t, DefaultConfig())
	state := vehicle.NewState()
	state.Ignition = true
	state.RPM = 1000
	state.EngineLight = true

	e.Update(state)

	// no-rpm clears 30, the engine lamp rule later sets it
	var frames []Frame
	for _, frame := range tx.byID(CheckControlFrameID) {
		if frame.Data[1] == 30 {
			frames = append(frames, frame)
		}
	}
	assert.Equal(t, []Frame{AlertFrame(30, false), AlertFrame(30, true)}, frames)
	active, _ := e.Alerts().State(30)
	assert.True(t, active)

	order := RuleOrder(VariantFSeries)
	assert.Equal(t, "not-started", order[0])
	assert.Equal(t, "engine-lamp", order[len(order)-1])
	assert.NotContains(t, order, "mini-handbrake")
	assert.Contains(t, RuleOrder(VariantMini), "mini-handbrake")
}

func TestEngine_OffroadSurvivesStabilityBranch(t *testing.T) {
	e, tx, clock := newTestEngine(t, DefaultConfig())
	state := vehicle.NewState()
	state.OffroadLight = true

	e.Update(state)
	active, _ := e.Alerts().State(215)
	assert.True(t, active, "offroad lamp should win over the normal DSC branch")

	order := RuleOrder(VariantFSeries)
	assert.Greater(t, indexOf(order, "offroad"), indexOf(order, "stability"))

	state.OffroadLight = false
	tx.reset()
	clock.Advance(DefaultFastInterval)
	e.Update(state)
	active, _ = e.Alerts().State(215)
	assert.False(t, active)
	assert.Zero(t, tx.alertCount(215, true))

	state.ESCActive = true
	clock.Advance(DefaultFastInterval)
	e.Update(state)
	active, _ = e.Alerts().State(215)
	assert.True(t, active, "DSC intervention raises 215 without the offroad lamp")
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

func TestEngine_NotStartedGroups(t *testing.T) {
	e, _, clock := newTestEngine(t, DefaultConfig())
	state := vehicle.NewState()
	state.Ignition = true

	e.Update(state)
	for _, id := range []uint8{40, 41, 220, 21, 24, 175, 206, 255} {
		active, _ := e.Alerts().State(id)
		assert.True(t, active, "id %d", id)
	}
	// the engine lamp rule runs last and clears its shared ids
	for _, id := range []uint8{213, 30} {
		active, _ := e.Alerts().State(id)
		assert.False(t, active, "id %d", id)
	}

	state.RPM = 400
	clock.Advance(100 * time.Millisecond)
	e.Update(state)
	for _, id := range []uint8{40, 41, 213, 175, 186} {
		active, _ := e.Alerts().State(id)
		assert.Equal(t, id == 186, active, "id %d", id)
	}
}

func TestEngine_HandbrakeAlerts(t *testing.T) {
	e, _, clock := newTestEngine(t, DefaultConfig())
	state := vehicle.NewState()
	state.Handbrake = true

	e.Update(state)
	moving, _ := e.Alerts().State(48)
	parked, _ := e.Alerts().State(55)
	assert.False(t, moving)
	assert.True(t, parked)

	state.Speed = 5
	clock.Advance(100 * time.Millisecond)
	e.Update(state)
	moving, _ = e.Alerts().State(48)
	assert.True(t, moving)
}

func TestEngine_ManualAlertServicedOnce(t *testing.T) {
	e, tx, clock := newTestEngine(t, DefaultConfig())
	state := vehicle.NewState()
	e.Update(state)
	tx.reset()

	state.RequestAlert(123, true)
	clock.Advance(10 * time.Millisecond)
	e.Update(state)

	require.Len(t, tx.frames, 1)
	assert.Equal(t, []byte{0x40, 123, 0x00, 0x29, 0xFF, 0xFF, 0xFF, 0xFF}, tx.frames[0].Payload())
	assert.False(t, state.ManualAlert.Pending())

	e.Update(state)
	assert.Len(t, tx.frames, 1)

	state.RequestAlert(123, false)
	e.Update(state)
	require.Len(t, tx.frames, 2)
	assert.Equal(t, byte(0x28), tx.frames[1].Data[3])
}

func TestEngine_ManualAlertOverwrite(t *testing.T) {
	e, tx, clock := newTestEngine(t, DefaultConfig())
	state := vehicle.NewState()
	e.Update(state)
	tx.reset()

	state.RequestAlert(10, true)
	state.RequestAlert(11, true)
	clock.Advance(10 * time.Millisecond)
	e.Update(state)

	require.Len(t, tx.frames, 1)
	assert.Equal(t, AlertFrame(11, true), tx.frames[0])
}

func TestEngine_NeutralFrameOnlyInNeutral(t *testing.T) {
	e, tx, clock := newTestEngine(t, DefaultConfig())
	state := vehicle.NewState()
	state.Gear = vehicle.GearAutoN

	e.Update(state)
	assert.Len(t, tx.byID(NeutralFrameID), 1)
	assert.Equal(t, 1, tx.alertCount(169, true))

	state.Gear = vehicle.GearAutoD
	clock.Advance(100 * time.Millisecond)
	e.Update(state)
	assert.Len(t, tx.byID(NeutralFrameID), 1)
	assert.Equal(t, 1, tx.alertCount(169, false))
}

func TestEngine_FuelVariants(t *testing.T) {
	state := vehicle.NewState()
	state.SetFuelQuantity(0.25)

	e, tx, _ := newTestEngine(t, DefaultConfig())
	e.Update(state)
	fuel := tx.byID(FuelFrameID)
	require.Len(t, fuel, 1)
	assert.Equal(t, []byte{0, 28, 0, 28, 0}, fuel[0].Payload())

	cfg := DefaultConfig()
	cfg.Variant = VariantMini
	e, tx, _ = newTestEngine(t, cfg)
	e.Update(state)
	fuel = tx.byID(FuelFrameID)
	require.Len(t, fuel, 1)
	assert.Equal(t, []byte{0, 0, 0, 15, 0}, fuel[0].Payload())
}

func TestEngine_DistanceAccumulates(t *testing.T) {
	e, tx, clock := newTestEngine(t, DefaultConfig())
	state := vehicle.NewState()
	state.Speed = 100

	e.Update(state)
	assert.Equal(t, uint16(290), e.Distance())

	clock.Advance(100 * time.Millisecond)
	e.Update(state)
	assert.Equal(t, uint16(580), e.Distance())

	bars := tx.byID(OdometerBarFrameID)
	require.Len(t, bars, 2)
	assert.Equal(t, byte(0), bars[0].Data[2])
	assert.Equal(t, byte(290&0xFF), bars[1].Data[2])
	assert.Equal(t, byte(290>>8), bars[1].Data[3])
}

func TestEngine_SpeedClampedToMaximum(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaximumSpeed = 200
	e, tx, _ := newTestEngine(t, cfg)
	state := vehicle.NewState()
	state.Speed = 250

	e.Update(state)
	speed := tx.byID(SpeedFrameID)
	require.Len(t, speed, 1)
	assert.Equal(t, SpeedFrame(0, 200), speed[0])
}

func TestEngine_StaleRendersSafeDefault(t *testing.T) {
	e, tx, _ := newTestEngine(t, DefaultConfig())
	state := vehicle.NewState()
	state.Ignition = true
	state.Speed = 120
	state.LeftTurningIndicator = true
	state.Stale = true

	e.Update(state)

	assert.Equal(t, []Frame{IgnitionFrame(0, false)}, tx.byID(IgnitionFrameID))
	assert.Equal(t, []Frame{SpeedFrame(0, 0)}, tx.byID(SpeedFrameID))
	assert.Equal(t, []Frame{BlinkersFrame(false, false)}, tx.byID(BlinkersFrameID))
	assert.Equal(t, PhaseOff, e.Phase())
	assert.True(t, state.Ignition, "stored snapshot is untouched")
}

func TestEngine_SteeringButtonConsumed(t *testing.T) {
	e, tx, clock := newTestEngine(t, DefaultConfig())
	state := vehicle.NewState()
	state.ButtonEvent = 1

	e.Update(state)
	assert.Equal(t, []Frame{Raw(SteeringButtonFrameID, 76, 0xFF)}, tx.byID(SteeringButtonFrameID))
	assert.Zero(t, state.ButtonEvent)

	tx.reset()
	clock.Advance(time.Second)
	e.Update(state)
	assert.Equal(t, []Frame{Raw(SteeringButtonFrameID, 0, 0xFF)}, tx.byID(SteeringButtonFrameID))
}

func TestEngine_TransmitFailuresAreDropped(t *testing.T) {
	e, tx, clock := newTestEngine(t, DefaultConfig())
	tx.err = errors.New("bus off")
	state := vehicle.NewState()

	e.Update(state)
	sent := len(tx.frames)
	assert.NotZero(t, sent)
	assert.Equal(t, uint64(sent), e.Stats().TransmitFailures)
	assert.Zero(t, e.Stats().FramesSent)

	tx.err = nil
	clock.Advance(100 * time.Millisecond)
	e.Update(state)
	assert.Equal(t, uint64(len(tx.frames)-sent), e.Stats().FramesSent)
}
