package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"cluster-service/canbus"
	"cluster-service/telemetry"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	ProjectName    = "cluster-service"
	ProjectVersion = "1.0.0"
)

var (
	configPath  string
	logLevel    string
	canType     string
	canDevice   string
	udpPort     int
	format      string
	variant     string
	redisServer string
	redisPort   int
	metricsAddr string
)

var rootCmd = &cobra.Command{
	Use:   ProjectName,
	Short: "Drive a BMW F-series / MINI instrument cluster from simulator telemetry",
	Long: `cluster-service listens for driving-simulator telemetry over UDP and keeps a
genuine F-series or MINI instrument cluster alive over CAN: needles, gear
readout, lamps, check-control messages and the engine start sequence.

Bus backends:
  SocketCAN: --can-type socketcan --can-device can0
  SLCAN:     --can-type slcan --can-device /dev/ttyACM0
  Dry run:   --can-type dry-run --log debug

Operator commands are read from the Redis channel "cluster", e.g.
  PUBLISH cluster "alert:start 62"`,
	Version:       ProjectVersion,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "TOML config file")
	flags.StringVar(&logLevel, "log", "info", "Log level (0-4 or none, error, warn, info, debug)")
	flags.StringVar(&canType, "can-type", "socketcan", "CAN backend (socketcan, slcan, dry-run)")
	flags.StringVar(&canDevice, "can-device", "can0", "CAN interface or serial device")
	flags.IntVar(&udpPort, "udp-port", telemetry.DefaultPort, "Telemetry UDP port")
	flags.StringVar(&format, "format", "primary", "Telemetry layout (primary or legacy)")
	flags.StringVar(&variant, "variant", "f-series", "Cluster variant (f-series or mini)")
	flags.StringVar(&redisServer, "redis-server", "127.0.0.1", "Redis server address, empty to disable IPC")
	flags.IntVar(&redisPort, "redis-port", 6379, "Redis server port")
	flags.StringVar(&metricsAddr, "metrics-addr", ":9110", "Prometheus listen address, empty to disable")
}

// buildOptions layers defaults, the config file and explicitly set flags.
func buildOptions(flags *pflag.FlagSet) (*Options, error) {
	opts := DefaultOptions()

	if configPath != "" {
		if err := loadConfigFile(configPath, opts); err != nil {
			return nil, err
		}
	}

	var err error
	if flags.Changed("log") {
		if opts.LogLevel, err = ParseLogLevel(logLevel); err != nil {
			return nil, err
		}
	}
	if flags.Changed("can-type") {
		if opts.CAN.Type, err = canbus.ParseType(canType); err != nil {
			return nil, err
		}
	}
	if flags.Changed("can-device") {
		opts.CAN.Device = canDevice
	}
	if flags.Changed("udp-port") {
		opts.UDPPort = udpPort
	}
	if flags.Changed("format") {
		if opts.Format, err = telemetry.ParseFormat(format); err != nil {
			return nil, err
		}
	}
	if flags.Changed("variant") {
		if opts.Engine.Variant, err = ParseVariant(variant); err != nil {
			return nil, err
		}
	}
	if flags.Changed("redis-server") {
		opts.RedisServerAddr = redisServer
	}
	if flags.Changed("redis-port") {
		if redisPort <= 0 || redisPort > 65535 {
			return nil, fmt.Errorf("invalid redis port %d", redisPort)
		}
		opts.RedisServerPort = uint16(redisPort)
	}
	if flags.Changed("metrics-addr") {
		opts.MetricsAddr = metricsAddr
	}

	if err := validateOptions(opts); err != nil {
		return nil, err
	}
	return opts, nil
}

func run(cmd *cobra.Command, args []string) error {
	opts, err := buildOptions(cmd.Flags())
	if err != nil {
		return err
	}

	app, err := NewClusterApp(opts)
	if err != nil {
		return fmt.Errorf("failed to create cluster app: %w", err)
	}
	defer app.Destroy()

	// Handle SIGINT and SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return app.Run(ctx)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Printf("%s: %v", ProjectName, err)
		os.Exit(1)
	}
}
