package cluster

import "cluster-service/vehicle"

// alertRule drives one or more alert groups from the snapshot. Rules run in
// table order every fast tick; when two rules touch the same id the later
// rule decides what the cluster ends up showing.
type alertRule struct {
	name  string
	apply func(r *AlertRegistry, s *vehicle.State)
}

func level(group AlertGroup, when func(s *vehicle.State) bool) alertRule {
	return alertRule{
		name: group.Name,
		apply: func(r *AlertRegistry, s *vehicle.State) {
			r.Apply(group, when(s))
		},
	}
}

func edge(group AlertGroup, when func(s *vehicle.State) bool) alertRule {
	return alertRule{
		name: group.Name,
		apply: func(r *AlertRegistry, s *vehicle.State) {
			r.ApplyEdge(group, when(s))
		},
	}
}

// StabilityMode is the DSC indicator branch. Exactly one is active per tick.
type StabilityMode int

const (
	StabilityNormal StabilityMode = iota
	StabilityIntervening
	StabilityDisabled
)

func stabilityMode(s *vehicle.State) StabilityMode {
	switch {
	case s.ESCActive:
		return StabilityIntervening
	case !s.HasESC:
		return StabilityDisabled
	default:
		return StabilityNormal
	}
}

func stabilityRule() alertRule {
	return alertRule{
		name: "stability",
		apply: func(r *AlertRegistry, s *vehicle.State) {
			switch stabilityMode(s) {
			case StabilityIntervening:
				r.Apply(alertsStabilityActive, true)
				r.Apply(alertsStabilityFault, false)
			case StabilityDisabled:
				r.Apply(alertsStabilityOff, true)
				r.Apply(alertsStabilityTraction, false)
			default:
				r.Apply(alertsStabilityAll, false)
			}
		},
	}
}

// offroadRule shares id 215 with the stability branch. It only ever raises
// the id, so 215 shows while either the offroad lamp or DSC asks for it.
func offroadRule() alertRule {
	return alertRule{
		name: alertsOffroad.Name,
		apply: func(r *AlertRegistry, s *vehicle.State) {
			if s.OffroadLight {
				r.Apply(alertsOffroad, true)
			}
		},
	}
}

func doorOpen(s *vehicle.State) bool { return s.DoorOpen }

func alertRules(variant Variant) []alertRule {
	rules := []alertRule{
		level(alertsNotStarted, func(s *vehicle.State) bool { return s.Ignition && s.RPM < 10 }),
		level(alertsNoRPM, func(s *vehicle.State) bool { return s.Ignition && s.RPM == 0 }),
		level(alertsFailStart, func(s *vehicle.State) bool { return s.Ignition && s.RPM >= 200 && s.RPM < 600 }),
		level(alertsNeutral, func(s *vehicle.State) bool { return s.Gear == vehicle.GearAutoN }),
		level(alertsOverheat, func(s *vehicle.State) bool { return s.OilTemperature > 130 || s.CoolantTemperature > 115 }),
		level(alertsGearboxHot, func(s *vehicle.State) bool { return s.OilTemperature > 120 && s.RPM > 3500 }),
		level(alertsGearboxHotFast, func(s *vehicle.State) bool { return s.OilTemperature > 130 && s.Speed > 80 }),
		level(alertsGearboxCritical, func(s *vehicle.State) bool { return s.OilTemperature > 140 }),

		edge(alertsDoorFrontRight, doorOpen),
		edge(alertsDoorFrontLeft, doorOpen),
		edge(alertsDoorRearLeft, doorOpen),
		edge(alertsDoorRearRight, doorOpen),
		edge(alertsDoorOpen, doorOpen),
	}
	if variant == VariantMini {
		rules = append(rules, level(alertsMiniHandbrake, func(s *vehicle.State) bool { return s.Handbrake }))
	}
	return append(rules,
		stabilityRule(),
		offroadRule(),
		level(alertsHandbrakeMoving, func(s *vehicle.State) bool { return s.Handbrake && s.Speed > 1 }),
		level(alertsHandbrake, func(s *vehicle.State) bool { return s.Handbrake }),
		level(alertsOverspeed, func(s *vehicle.State) bool { return s.Speed > overspeedSpeed }),
		level(alertsEngineLamp, func(s *vehicle.State) bool { return s.EngineLight }),
	)
}

// RuleOrder lists the alert rule names in evaluation order.
func RuleOrder(variant Variant) []string {
	rules := alertRules(variant)
	names := make([]string, len(rules))
	for i, rule := range rules {
		names[i] = rule.name
	}
	return names
}
