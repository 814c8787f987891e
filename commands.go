package main

import (
	"fmt"
	"strconv"
	"strings"

	"cluster-service/vehicle"
)

type CommandKind int

const (
	CommandAlertStart CommandKind = iota + 1
	CommandAlertClear
	CommandButton
	CommandBacklight
	CommandDriveMode
)

var commandNames = map[string]CommandKind{
	"alert:start": CommandAlertStart,
	"alert:clear": CommandAlertClear,
	"button":      CommandButton,
	"backlight":   CommandBacklight,
	"drive-mode":  CommandDriveMode,
}

func (k CommandKind) String() string {
	for name, kind := range commandNames {
		if kind == k {
			return name
		}
	}
	return "unknown"
}

var validDriveModes = map[int]bool{
	int(vehicle.DriveModeTraction):  true,
	int(vehicle.DriveModeComfort):   true,
	int(vehicle.DriveModeSport):     true,
	int(vehicle.DriveModeSportPlus): true,
	int(vehicle.DriveModeDSCOff):    true,
	int(vehicle.DriveModeEcoPro):    true,
}

// Command is one operator request from the "cluster" channel.
type Command struct {
	Kind  CommandKind
	Value int
}

// ParseCommand parses "<verb> <value>", e.g. "alert:start 62".
func ParseCommand(payload string) (Command, error) {
	fields := strings.Fields(payload)
	if len(fields) != 2 {
		return Command{}, fmt.Errorf("malformed command %q: want \"<verb> <value>\"", payload)
	}

	kind, ok := commandNames[strings.ToLower(fields[0])]
	if !ok {
		return Command{}, fmt.Errorf("unknown command %q", fields[0])
	}

	value, err := strconv.Atoi(fields[1])
	if err != nil {
		return Command{}, fmt.Errorf("command %s: invalid value %q", fields[0], fields[1])
	}

	switch kind {
	case CommandAlertStart, CommandAlertClear:
		if value < 0 || value > 255 {
			return Command{}, fmt.Errorf("alert id %d out of range 0-255", value)
		}
	case CommandButton:
		if value < 0 {
			return Command{}, fmt.Errorf("button event %d is negative", value)
		}
	case CommandBacklight:
		if value < 0 || value > 100 {
			return Command{}, fmt.Errorf("backlight %d out of range 0-100", value)
		}
	case CommandDriveMode:
		if !validDriveModes[value] {
			return Command{}, fmt.Errorf("unknown drive mode %d", value)
		}
	}

	return Command{Kind: kind, Value: value}, nil
}

// Apply writes the command into the snapshot. Alert requests go through the
// single manual alert slot.
func (c Command) Apply(s *vehicle.State) {
	switch c.Kind {
	case CommandAlertStart:
		s.RequestAlert(uint8(c.Value), true)
	case CommandAlertClear:
		s.RequestAlert(uint8(c.Value), false)
	case CommandButton:
		s.ButtonEvent = c.Value
	case CommandBacklight:
		s.BacklightBrightness = uint8(c.Value)
	case CommandDriveMode:
		s.DriveMode = uint8(c.Value)
	}
}

func (c Command) String() string {
	return fmt.Sprintf("%s %d", c.Kind, c.Value)
}
