package cluster

// Check-control carrier. Byte 1 selects the message, byte 3 sets or clears it.
const (
	CheckControlFrameID = 0x5C0

	AlertTriggerActivate = 0x29
	AlertTriggerClear    = 0x28
)

// AlertGroup is a named, ordered set of check-control ids that share one
// driving condition.
type AlertGroup struct {
	Name string
	IDs  []uint8
}

// AlertFrame builds the carrier frame that activates or clears id.
func AlertFrame(id uint8, active bool) Frame {
	trigger := byte(AlertTriggerClear)
	if active {
		trigger = AlertTriggerActivate
	}
	return Raw(CheckControlFrameID, 0x40, id, 0x00, trigger, 0xFF, 0xFF, 0xFF, 0xFF)
}

// AlertRegistry emits check-control frames for groups of ids and remembers
// the last state transmitted for every id, so the outcome of several rules
// touching the same id is observable.
type AlertRegistry struct {
	send  func(Frame)
	state map[uint8]bool
	edges map[string]bool
}

func NewAlertRegistry(send func(Frame)) *AlertRegistry {
	return &AlertRegistry{
		send:  send,
		state: make(map[uint8]bool),
		edges: make(map[string]bool),
	}
}

// Set emits a single activate or clear frame for id.
func (r *AlertRegistry) Set(id uint8, active bool) {
	r.send(AlertFrame(id, active))
	r.state[id] = active
}

// Apply emits one frame per id in group. Level-triggered: call it every tick.
func (r *AlertRegistry) Apply(group AlertGroup, active bool) {
	for _, id := range group.IDs {
		r.Set(id, active)
	}
}

// ApplyEdge emits the group only when active differs from the last value
// seen for this group name. Groups start out inactive. Reports whether
// frames were sent.
func (r *AlertRegistry) ApplyEdge(group AlertGroup, active bool) bool {
	if r.edges[group.Name] == active {
		return false
	}
	r.edges[group.Name] = active
	r.Apply(group, active)
	return true
}

// State returns the last transmitted state of id and whether id was ever sent.
func (r *AlertRegistry) State(id uint8) (active bool, known bool) {
	active, known = r.state[id]
	return active, known
}

// Active lists the ids whose last transmitted state is active.
func (r *AlertRegistry) Active() []uint8 {
	var ids []uint8
	for id := 0; id < 256; id++ {
		if r.state[uint8(id)] {
			ids = append(ids, uint8(id))
		}
	}
	return ids
}

// Check-control ids used by the rule table.
var (
	alertsNotStarted = AlertGroup{"not-started", []uint8{40, 41}}
	alertsNoRPM      = AlertGroup{"no-rpm", []uint8{213, 220, 21, 24, 30, 175, 206, 255}}
	alertsFailStart  = AlertGroup{"failed-start", []uint8{186, 22}}
	alertsNeutral    = AlertGroup{"neutral", []uint8{169, 203}}
	alertsOverheat   = AlertGroup{"overheat", []uint8{39}}

	alertsGearboxHot      = AlertGroup{"gearbox-hot", []uint8{103}}
	alertsGearboxHotFast  = AlertGroup{"gearbox-hot-fast", []uint8{104}}
	alertsGearboxCritical = AlertGroup{"gearbox-critical", []uint8{105}}

	alertsDoorFrontRight = AlertGroup{"door-front-right", []uint8{14}}
	alertsDoorFrontLeft  = AlertGroup{"door-front-left", []uint8{15}}
	alertsDoorRearLeft   = AlertGroup{"door-rear-left", []uint8{16}}
	alertsDoorRearRight  = AlertGroup{"door-rear-right", []uint8{17}}
	alertsDoorOpen       = AlertGroup{"door-open", []uint8{
		34, 212, 39, 24, 71, 77, 37, 75, 88, 91, 54, 87, 30,
		50, 63, 21, 22, 26, 28, 29, 31, 33, 41, 51, 103, 108, 255,
		97, 60, 52, 40, 85, 147, 49,
		158, 42, 76, 93, 217, 216, 209, 205, 184, 220, 229,
	}}

	alertsOffroad       = AlertGroup{"offroad", []uint8{215}}
	alertsMiniHandbrake = AlertGroup{"mini-handbrake", []uint8{71}}

	alertsStabilityActive   = AlertGroup{"dsc-intervening", []uint8{35, 215}}
	alertsStabilityOff      = AlertGroup{"dsc-off", []uint8{36, 35, 42}}
	alertsStabilityFault    = AlertGroup{"dsc-fault", []uint8{36, 42}}
	alertsStabilityTraction = AlertGroup{"dsc-traction", []uint8{215}}
	alertsStabilityAll      = AlertGroup{"dsc-all", []uint8{35, 215, 36, 42}}

	alertsHandbrakeMoving = AlertGroup{"handbrake-moving", []uint8{48}}
	alertsHandbrake       = AlertGroup{"handbrake", []uint8{55}}
	alertsOverspeed       = AlertGroup{"overspeed", []uint8{62}}
	alertsEngineLamp      = AlertGroup{"engine-lamp", []uint8{34, 30, 22, 50, 213}}

	// One-shot burst 10 s after ignition on.
	alertsEngineStart = AlertGroup{"engine-start", []uint8{91, 53, 181}}
)
