package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"cluster-service/canbus"
	"cluster-service/cluster"
	"cluster-service/telemetry"
)

type LogLevel int

const (
	LogLevelNone  LogLevel = 0
	LogLevelError LogLevel = 1
	LogLevelWarn  LogLevel = 2
	LogLevelInfo  LogLevel = 3
	LogLevelDebug LogLevel = 4
)

var logLevelNames = map[string]LogLevel{
	"none":  LogLevelNone,
	"error": LogLevelError,
	"warn":  LogLevelWarn,
	"info":  LogLevelInfo,
	"debug": LogLevelDebug,
}

// ParseLogLevel accepts a number 0-4 or a level name.
func ParseLogLevel(s string) (LogLevel, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if level, ok := logLevelNames[s]; ok {
		return level, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < int(LogLevelNone) || n > int(LogLevelDebug) {
		return LogLevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return LogLevel(n), nil
}

func (l LogLevel) String() string {
	for name, level := range logLevelNames {
		if level == l {
			return name
		}
	}
	return strconv.Itoa(int(l))
}

type Options struct {
	LogLevel LogLevel

	// Bus
	CAN canbus.Config

	// Telemetry
	UDPPort      int
	Format       telemetry.Format
	StaleTimeout time.Duration
	SignalHold   time.Duration

	// Cluster
	Engine cluster.Config

	// IPC; an empty address runs without Redis
	RedisServerAddr string
	RedisServerPort uint16

	// Metrics; empty disables the HTTP endpoint
	MetricsAddr string

	LoopInterval time.Duration
}

const DefaultLoopInterval = 10 * time.Millisecond

func DefaultOptions() *Options {
	return &Options{
		LogLevel: LogLevelInfo,
		CAN: canbus.Config{
			Type:     canbus.TypeSocketCAN,
			Device:   "can0",
			Bitrate:  canbus.DefaultBitrate,
			BaudRate: canbus.DefaultSLCANBaudRate,
		},
		UDPPort:         telemetry.DefaultPort,
		Format:          telemetry.FormatPrimary,
		StaleTimeout:    telemetry.DefaultStaleTimeout,
		SignalHold:      telemetry.DefaultSignalHold,
		Engine:          cluster.DefaultConfig(),
		RedisServerAddr: "127.0.0.1",
		RedisServerPort: 6379,
		MetricsAddr:     ":9110",
		LoopInterval:    DefaultLoopInterval,
	}
}

// ParseVariant accepts "f-series" or "mini".
func ParseVariant(s string) (cluster.Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "f-series", "fseries", "bmw", "":
		return cluster.VariantFSeries, nil
	case "mini":
		return cluster.VariantMini, nil
	default:
		return cluster.VariantFSeries, fmt.Errorf("invalid cluster variant: %q (must be 'f-series' or 'mini')", s)
	}
}
