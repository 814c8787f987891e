package main

import (
	"fmt"
	"strings"
	"time"

	"cluster-service/canbus"
	"cluster-service/telemetry"

	"github.com/BurntSushi/toml"
)

// cluster-service config.toml keys.
type fileConfig struct {
	Log string `toml:"log"`

	CANType     string `toml:"can_type"`
	CANDevice   string `toml:"can_device"`
	CANBitrate  int    `toml:"can_bitrate"`
	SerialBaud  int    `toml:"serial_baud"`
	UDPPort     int    `toml:"udp_port"`
	Format      string `toml:"format"`
	StaleAfter  string `toml:"stale_timeout"`
	SignalHold  string `toml:"signal_hold"`
	RedisServer string `toml:"redis_server"`
	RedisPort   int    `toml:"redis_port"`
	MetricsAddr string `toml:"metrics_addr"`

	Cluster clusterFileConfig `toml:"cluster"`
}

type clusterFileConfig struct {
	Variant         string  `toml:"variant"`
	SpeedCorrection float64 `toml:"speed_correction"`
	RPMCorrection   float64 `toml:"rpm_correction"`
	MaximumSpeed    int     `toml:"max_speed"`
	MaximumRPM      int     `toml:"max_rpm"`
	MinimumCoolant  int     `toml:"min_coolant"`
	MaximumCoolant  int     `toml:"max_coolant"`
	StartBurstDelay string  `toml:"start_burst_delay"`
	StartBurstPause string  `toml:"start_burst_pause"`
	FastInterval    string  `toml:"fast_interval"`
	SlowInterval    string  `toml:"slow_interval"`
}

// loadConfigFile overlays the keys present in path onto opts.
func loadConfigFile(path string, opts *Options) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("load config: unknown keys %v", undecoded)
	}

	if meta.IsDefined("log") {
		if opts.LogLevel, err = ParseLogLevel(raw.Log); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}
	if meta.IsDefined("can_type") {
		if opts.CAN.Type, err = canbus.ParseType(raw.CANType); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}
	if meta.IsDefined("can_device") {
		opts.CAN.Device = strings.TrimSpace(raw.CANDevice)
	}
	if meta.IsDefined("can_bitrate") {
		opts.CAN.Bitrate = raw.CANBitrate
	}
	if meta.IsDefined("serial_baud") {
		opts.CAN.BaudRate = raw.SerialBaud
	}
	if meta.IsDefined("udp_port") {
		opts.UDPPort = raw.UDPPort
	}
	if meta.IsDefined("format") {
		if opts.Format, err = telemetry.ParseFormat(raw.Format); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}
	if err := overlayDuration(meta, "stale_timeout", raw.StaleAfter, &opts.StaleTimeout); err != nil {
		return err
	}
	if err := overlayDuration(meta, "signal_hold", raw.SignalHold, &opts.SignalHold); err != nil {
		return err
	}
	if meta.IsDefined("redis_server") {
		opts.RedisServerAddr = strings.TrimSpace(raw.RedisServer)
	}
	if meta.IsDefined("redis_port") {
		opts.RedisServerPort = uint16(raw.RedisPort)
	}
	if meta.IsDefined("metrics_addr") {
		opts.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}

	c := raw.Cluster
	engine := &opts.Engine
	if meta.IsDefined("cluster", "variant") {
		if engine.Variant, err = ParseVariant(c.Variant); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}
	if meta.IsDefined("cluster", "speed_correction") {
		engine.SpeedCorrectionFactor = c.SpeedCorrection
	}
	if meta.IsDefined("cluster", "rpm_correction") {
		engine.RPMCorrectionFactor = c.RPMCorrection
	}
	if meta.IsDefined("cluster", "max_speed") {
		engine.MaximumSpeed = c.MaximumSpeed
	}
	if meta.IsDefined("cluster", "max_rpm") {
		engine.MaximumRPM = c.MaximumRPM
	}
	if meta.IsDefined("cluster", "min_coolant") {
		engine.MinimumCoolantTemperature = c.MinimumCoolant
	}
	if meta.IsDefined("cluster", "max_coolant") {
		engine.MaximumCoolantTemperature = c.MaximumCoolant
	}
	for _, d := range []struct {
		key   string
		value string
		dst   *time.Duration
	}{
		{"start_burst_delay", c.StartBurstDelay, &engine.StartBurstDelay},
		{"start_burst_pause", c.StartBurstPause, &engine.StartBurstPause},
		{"fast_interval", c.FastInterval, &engine.FastInterval},
		{"slow_interval", c.SlowInterval, &engine.SlowInterval},
	} {
		if err := overlayDuration(meta, "cluster."+d.key, d.value, d.dst); err != nil {
			return err
		}
	}

	return validateOptions(opts)
}

func overlayDuration(meta toml.MetaData, key, value string, dst *time.Duration) error {
	if !meta.IsDefined(strings.Split(key, ".")...) {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("load config: %s: %w", key, err)
	}
	*dst = d
	return nil
}

// validateOptions rejects settings the engine cannot run with.
func validateOptions(opts *Options) error {
	e := opts.Engine
	switch {
	case opts.UDPPort <= 0 || opts.UDPPort > 65535:
		return fmt.Errorf("invalid UDP port %d", opts.UDPPort)
	case e.FastInterval <= 0 || e.SlowInterval <= 0:
		return fmt.Errorf("cadence intervals must be positive (fast=%v slow=%v)", e.FastInterval, e.SlowInterval)
	case e.MaximumSpeed <= 0 || e.MaximumRPM <= 0:
		return fmt.Errorf("maximum speed and rpm must be positive")
	case e.MinimumCoolantTemperature > e.MaximumCoolantTemperature:
		return fmt.Errorf("coolant range is inverted (%d > %d)", e.MinimumCoolantTemperature, e.MaximumCoolantTemperature)
	case e.SpeedCorrectionFactor <= 0 || e.RPMCorrectionFactor <= 0:
		return fmt.Errorf("correction factors must be positive")
	}
	return nil
}
