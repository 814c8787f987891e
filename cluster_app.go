package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"cluster-service/canbus"
	"cluster-service/cluster"
	"cluster-service/telemetry"
	"cluster-service/vehicle"

	"github.com/go-redis/redis/v8"
	"golang.org/x/sync/errgroup"
)

const (
	ClusterAppSampleQueue  = 64
	ClusterAppCommandQueue = 16
	ClusterAppHealthCheck  = 30 * time.Second
)

type received struct {
	sample telemetry.Sample
	at     time.Time
}

// ClusterApp wires telemetry in, frames out and Redis on the side. The loop
// goroutine is the only one touching state, ingestor and engine; the UDP and
// Redis goroutines talk to it through channels.
type ClusterApp struct {
	log  *LeveledLogger
	opts *Options

	redis   *redis.Client
	ipcRx   *IPCRx
	ipcTx   *IPCTx
	diag    *Diag
	metrics *Metrics

	bus      canbus.Transceiver
	engine   *cluster.Engine
	decoder  telemetry.Decoder
	ingestor *telemetry.Ingestor
	listener *telemetry.Listener

	state    *vehicle.State
	samples  chan received
	commands chan Command

	lastStatus   time.Time
	lastSent     uint64
	lastFailures uint64
}

func NewClusterApp(opts *Options) (*ClusterApp, error) {
	root := NewLeveledLogger(log.New(log.Writer(), fmt.Sprintf("%s: ", ProjectName), log.LstdFlags), opts.LogLevel)

	app := &ClusterApp{
		log:      root.Named("app"),
		opts:     opts,
		metrics:  NewMetrics(),
		state:    vehicle.NewState(),
		samples:  make(chan received, ClusterAppSampleQueue),
		commands: make(chan Command, ClusterAppCommandQueue),
	}

	if opts.RedisServerAddr != "" {
		if err := app.connectRedis(); err != nil {
			return nil, err
		}
		app.ipcTx = NewIPCTx(root.Named("ipc"), app.redis)
		app.ipcRx = NewIPCRx(root.Named("ipc"), app.redis)
		app.log.Info("IPC components initialized")
	} else {
		app.log.Info("Redis disabled, running without IPC")
	}

	app.diag = NewDiag(root.Named("diag"), app.redis)

	bus, err := canbus.Open(opts.CAN, root.Named("can"))
	if err != nil {
		app.Destroy()
		return nil, err
	}
	app.bus = bus

	app.engine = cluster.NewEngine(opts.Engine, meteredTransmitter{next: bus, metrics: app.metrics}, cluster.SystemClock(), root.Named("cluster"))

	app.decoder, err = telemetry.NewDecoder(opts.Format)
	if err != nil {
		app.Destroy()
		return nil, err
	}
	app.ingestor = telemetry.NewIngestor(app.decoder, telemetry.IngestorConfig{
		SignalHold:   opts.SignalHold,
		StaleTimeout: opts.StaleTimeout,
	}, root.Named("telemetry"))

	app.listener, err = telemetry.Listen(fmt.Sprintf(":%d", opts.UDPPort), root.Named("udp"))
	if err != nil {
		app.Destroy()
		return nil, err
	}

	app.log.Info("Cluster app ready: can=%s(%s) format=%s variant=%s",
		opts.CAN.Type, opts.CAN.Device, opts.Format, opts.Engine.Variant)
	return app, nil
}

func (app *ClusterApp) connectRedis() error {
	addr := fmt.Sprintf("%s:%d", app.opts.RedisServerAddr, app.opts.RedisServerPort)
	app.redis = redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     "",
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	app.log.Info("Connecting to Redis at %s...", addr)
	if err := app.redis.Ping(ctx).Err(); err != nil {
		app.redis.Close()
		app.redis = nil
		return fmt.Errorf("failed to connect to Redis: %v", err)
	}
	app.log.Info("Successfully connected to Redis")
	return nil
}

// Run blocks until ctx is cancelled or a component fails.
func (app *ClusterApp) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return app.listener.Serve(gctx, app.handleDatagram)
	})
	if app.ipcRx != nil {
		g.Go(func() error {
			return app.ipcRx.Run(gctx, app.commands)
		})
		g.Go(func() error {
			app.redisHealthCheck(gctx)
			return nil
		})
	}
	if app.opts.MetricsAddr != "" {
		g.Go(func() error {
			return serveMetrics(gctx, app.opts.MetricsAddr, app.metrics, app.log)
		})
	}
	g.Go(func() error {
		return app.loop(gctx)
	})

	return g.Wait()
}

// handleDatagram runs on the listener goroutine: decode, then hand the
// complete sample to the loop.
func (app *ClusterApp) handleDatagram(data []byte, at time.Time) {
	sample, err := app.decoder.Decode(data)
	if err != nil {
		app.ingestor.Drop()
		app.metrics.RecordDrop("malformed")
		app.log.Debug("Dropping datagram: %v", err)
		return
	}
	select {
	case app.samples <- received{sample: sample, at: at}:
	default:
		app.ingestor.Drop()
		app.metrics.RecordDrop("queue-full")
	}
}

func (app *ClusterApp) loop(ctx context.Context) error {
	ticker := time.NewTicker(app.opts.LoopInterval)
	defer ticker.Stop()

	app.log.Info("Cluster loop running (tick %v)", app.opts.LoopInterval)
	for {
		select {
		case <-ctx.Done():
			return nil
		case r := <-app.samples:
			app.applySample(r)
		case cmd := <-app.commands:
			app.applyCommand(cmd)
		case now := <-ticker.C:
			app.tick(now)
		}
	}
}

func (app *ClusterApp) applySample(r received) {
	app.ingestor.Apply(app.state, r.sample, r.at)
	app.metrics.RecordDatagram()
}

func (app *ClusterApp) applyCommand(cmd Command) {
	app.log.Info("Command: %s", cmd)
	cmd.Apply(app.state)
	app.metrics.RecordCommand(cmd.Kind)
}

// drain applies everything queued so the engine sees a complete snapshot.
func (app *ClusterApp) drain() {
	for {
		select {
		case r := <-app.samples:
			app.applySample(r)
		case cmd := <-app.commands:
			app.applyCommand(cmd)
		default:
			return
		}
	}
}

func (app *ClusterApp) tick(now time.Time) {
	app.drain()
	app.ingestor.Refresh(app.state, now)
	app.engine.Update(app.state)

	if now.Sub(app.lastStatus) >= app.opts.Engine.SlowInterval {
		app.publishStatus()
		app.lastStatus = now
	}
}

func (app *ClusterApp) buildStatus() RedisClusterStatus {
	s := app.state
	stats := app.engine.Stats()
	ingest := app.ingestor.Stats()
	return RedisClusterStatus{
		Phase:            app.engine.Phase().String(),
		Variant:          app.opts.Engine.Variant.String(),
		Ignition:         s.Ignition,
		Stale:            s.Stale,
		Speed:            s.Speed,
		RPM:              s.RPM,
		Gear:             s.Gear.String(),
		Fuel:             int(s.FuelQuantity * 100),
		Coolant:          s.CoolantTemperature,
		Oil:              s.OilTemperature,
		Backlight:        s.BacklightBrightness,
		DriveMode:        s.DriveMode,
		ActiveAlerts:     app.engine.Alerts().Active(),
		FramesSent:       stats.FramesSent,
		TransmitFailures: stats.TransmitFailures,
		Datagrams:        ingest.Datagrams,
		Dropped:          ingest.Dropped,
	}
}

func (app *ClusterApp) publishStatus() {
	status := app.buildStatus()
	app.metrics.ObserveStatus(status, app.engine.Phase())
	app.updateFaults(status)

	if app.ipcTx == nil {
		return
	}
	if err := app.ipcTx.SendStatus(status); err != nil {
		app.log.Warn("%v", err)
	}
}

// updateFaults raises transmit-failing when a whole status period produced
// failures and no successful frame.
func (app *ClusterApp) updateFaults(status RedisClusterStatus) {
	app.diag.SetFaultPresence(FaultTelemetryStale, status.Stale)

	sent := status.FramesSent - app.lastSent
	failed := status.TransmitFailures - app.lastFailures
	switch {
	case failed > 0 && sent == 0:
		app.diag.SetFaultPresence(FaultTransmitFailing, true)
	case sent > 0:
		app.diag.SetFaultPresence(FaultTransmitFailing, false)
	}
	app.lastSent = status.FramesSent
	app.lastFailures = status.TransmitFailures
}

func (app *ClusterApp) redisHealthCheck(ctx context.Context) {
	ticker := time.NewTicker(ClusterAppHealthCheck)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			if err := app.redis.Ping(pingCtx).Err(); err != nil {
				app.log.Warn("Redis health check failed: %v", err)
			}
			cancel()
		}
	}
}

func (app *ClusterApp) Destroy() {
	app.log.Info("Shutting down cluster application...")

	if app.listener != nil {
		app.listener.Close()
	}

	if app.bus != nil {
		if err := app.bus.Close(); err != nil {
			app.log.Warn("Error closing CAN bus: %v", err)
		} else {
			app.log.Info("CAN bus closed")
		}
	}

	if app.diag != nil {
		app.diag.Destroy()
	}

	if app.ipcTx != nil {
		app.ipcTx.Destroy()
	}

	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.log.Warn("Error closing Redis connection: %v", err)
		} else {
			app.log.Info("Redis connection closed")
		}
	}

	app.log.Info("Cluster application shutdown complete")
}
