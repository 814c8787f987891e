// Package canbus provides the transceivers that put cluster frames on a wire.
package canbus

import (
	"fmt"
	"io"
	"strings"

	"cluster-service/cluster"
)

// Type selects the transceiver backend.
type Type int

const (
	TypeSocketCAN Type = iota
	TypeSLCAN
	TypeDryRun
)

func (t Type) String() string {
	switch t {
	case TypeSLCAN:
		return "slcan"
	case TypeDryRun:
		return "dry-run"
	default:
		return "socketcan"
	}
}

// ParseType accepts "socketcan", "slcan" or "dry-run".
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "socketcan", "":
		return TypeSocketCAN, nil
	case "slcan", "serial":
		return TypeSLCAN, nil
	case "dry-run", "dryrun", "none":
		return TypeDryRun, nil
	default:
		return TypeSocketCAN, fmt.Errorf("invalid CAN type: %q (must be 'socketcan', 'slcan' or 'dry-run')", s)
	}
}

// Config describes how to reach the bus.
type Config struct {
	Type     Type
	Device   string // can0, /dev/ttyACM0, ...
	Bitrate  int    // SLCAN only, bit/s
	BaudRate int    // SLCAN only, serial line speed
}

// Transceiver is a cluster.Transmitter that owns an open bus handle.
type Transceiver interface {
	cluster.Transmitter
	io.Closer
}

// Open connects the transceiver selected by cfg.
func Open(cfg Config, logger cluster.Logger) (Transceiver, error) {
	switch cfg.Type {
	case TypeSocketCAN:
		return NewSocketCAN(cfg.Device, logger)
	case TypeSLCAN:
		return OpenSLCAN(cfg.Device, cfg.BaudRate, cfg.Bitrate, logger)
	case TypeDryRun:
		return NewDryRun(logger), nil
	default:
		return nil, fmt.Errorf("unknown CAN type: %d", cfg.Type)
	}
}
