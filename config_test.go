package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"cluster-service/canbus"
	"cluster-service/cluster"
	"cluster-service/telemetry"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigFile_Overlay(t *testing.T) {
	path := writeConfig(t, `
log = "debug"
can_type = "slcan"
can_device = "/dev/ttyACM0"
udp_port = 5555
format = "legacy"
stale_timeout = "5s"
redis_server = ""

[cluster]
variant = "mini"
max_speed = 240
speed_correction = 1.05
start_burst_delay = "8s"
`)

	opts := DefaultOptions()
	if err := loadConfigFile(path, opts); err != nil {
		t.Fatalf("loadConfigFile: %v", err)
	}

	if opts.LogLevel != LogLevelDebug {
		t.Errorf("expected debug log level, got %v", opts.LogLevel)
	}
	if opts.CAN.Type != canbus.TypeSLCAN || opts.CAN.Device != "/dev/ttyACM0" {
		t.Errorf("unexpected CAN config %+v", opts.CAN)
	}
	if opts.UDPPort != 5555 {
		t.Errorf("expected port 5555, got %d", opts.UDPPort)
	}
	if opts.Format != telemetry.FormatLegacy {
		t.Errorf("expected legacy format, got %v", opts.Format)
	}
	if opts.StaleTimeout != 5*time.Second {
		t.Errorf("expected 5s stale timeout, got %v", opts.StaleTimeout)
	}
	if opts.RedisServerAddr != "" {
		t.Errorf("expected Redis disabled, got %q", opts.RedisServerAddr)
	}
	if opts.Engine.Variant != cluster.VariantMini {
		t.Errorf("expected mini variant, got %v", opts.Engine.Variant)
	}
	if opts.Engine.MaximumSpeed != 240 || opts.Engine.SpeedCorrectionFactor != 1.05 {
		t.Errorf("unexpected engine limits %+v", opts.Engine)
	}
	if opts.Engine.StartBurstDelay != 8*time.Second {
		t.Errorf("expected 8s start burst delay, got %v", opts.Engine.StartBurstDelay)
	}

	// untouched keys keep their defaults
	defaults := DefaultOptions()
	if opts.Engine.MaximumRPM != defaults.Engine.MaximumRPM {
		t.Errorf("max rpm changed to %d", opts.Engine.MaximumRPM)
	}
	if opts.MetricsAddr != defaults.MetricsAddr {
		t.Errorf("metrics address changed to %q", opts.MetricsAddr)
	}
	if opts.Engine.FastInterval != cluster.DefaultFastInterval {
		t.Errorf("fast interval changed to %v", opts.Engine.FastInterval)
	}
}

func TestLoadConfigFile_Errors(t *testing.T) {
	tests := map[string]string{
		"unknown key":      `colour = "blue"`,
		"bad format":       `format = "forza"`,
		"bad duration":     `stale_timeout = "soon"`,
		"bad variant":      "[cluster]\nvariant = \"e90\"",
		"inverted coolant": "[cluster]\nmin_coolant = 160",
		"zero interval":    "[cluster]\nfast_interval = \"0s\"",
		"bad syntax":       `log = `,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			if err := loadConfigFile(writeConfig(t, content), DefaultOptions()); err == nil {
				t.Errorf("expected error for %s", name)
			}
		})
	}
}

func TestLoadConfigFile_Missing(t *testing.T) {
	if err := loadConfigFile(filepath.Join(t.TempDir(), "nope.toml"), DefaultOptions()); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestBuildOptions_FlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, "udp_port = 5555\nformat = \"legacy\"\n")

	flags := rootCmd.Flags()
	defer func() {
		configPath = ""
		flags.Lookup("udp-port").Changed = false
		udpPort = telemetry.DefaultPort
	}()

	configPath = path
	if err := flags.Set("udp-port", "6000"); err != nil {
		t.Fatalf("set flag: %v", err)
	}

	opts, err := buildOptions(flags)
	if err != nil {
		t.Fatalf("buildOptions: %v", err)
	}
	if opts.UDPPort != 6000 {
		t.Errorf("flag should win: got port %d", opts.UDPPort)
	}
	if opts.Format != telemetry.FormatLegacy {
		t.Errorf("file value should survive: got %v", opts.Format)
	}
}

func TestParseLogLevel(t *testing.T) {
	for in, want := range map[string]LogLevel{
		"0": LogLevelNone, "4": LogLevelDebug, "warn": LogLevelWarn, " INFO ": LogLevelInfo,
	} {
		got, err := ParseLogLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLogLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	for _, in := range []string{"5", "-1", "verbose"} {
		if _, err := ParseLogLevel(in); err == nil {
			t.Errorf("ParseLogLevel(%q) expected error", in)
		}
	}
}
