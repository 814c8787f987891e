package main

import (
	"context"
	"sync"

	"github.com/go-redis/redis/v8"
)

const (
	diagGroupName           = "cluster"
	diagFaultSetKey         = "cluster:fault"
	diagEventStream         = "events:faults"
	diagEventStreamMaxLen   = 1000
	diagNotificationChannel = "cluster:status"
)

type ClusterFault uint32

const (
	FaultNone ClusterFault = iota
	FaultTelemetryStale
	FaultTransmitFailing
)

type FaultSeverity int

const (
	SeverityWarning FaultSeverity = iota
	SeverityCritical
)

type FaultConfig struct {
	Code        ClusterFault
	Description string
	Severity    FaultSeverity
}

var faultConfigs = map[ClusterFault]FaultConfig{
	FaultTelemetryStale:  {FaultTelemetryStale, "Telemetry stale", SeverityWarning},
	FaultTransmitFailing: {FaultTransmitFailing, "CAN transmit failing", SeverityCritical},
}

func GetFaultConfig(fault ClusterFault) (FaultConfig, bool) {
	config, ok := faultConfigs[fault]
	return config, ok
}

// faultReporter records fault transitions outside the process.
type faultReporter interface {
	reportFaultPresent(fault ClusterFault, config FaultConfig)
	reportFaultAbsent(fault ClusterFault)
}

type Diag struct {
	log         *LeveledLogger
	reporter    faultReporter
	mu          sync.RWMutex
	faultStates map[ClusterFault]bool
}

// NewDiag reports through Redis; a nil client only logs.
func NewDiag(logger *LeveledLogger, client *redis.Client) *Diag {
	d := &Diag{
		log:         logger,
		faultStates: make(map[ClusterFault]bool),
	}
	if client != nil {
		d.reporter = &redisFaultReporter{log: logger, redis: client, ctx: context.Background()}
	}
	return d
}

func (d *Diag) Destroy() {}

// SetFaultPresence reports a fault only when its presence changes.
func (d *Diag) SetFaultPresence(fault ClusterFault, present bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if fault == FaultNone {
		return
	}

	wasPresent := d.faultStates[fault]
	if wasPresent == present {
		return
	}

	config, ok := GetFaultConfig(fault)
	if !ok {
		d.log.Warn("Unknown fault code: %d", fault)
		return
	}

	d.faultStates[fault] = present

	if present {
		d.log.Warn("Fault set: code=%d, description=%s", fault, config.Description)
		if d.reporter != nil {
			d.reporter.reportFaultPresent(fault, config)
		}
	} else {
		d.log.Info("Fault cleared: code=%d, description=%s", fault, config.Description)
		if d.reporter != nil {
			d.reporter.reportFaultAbsent(fault)
		}
	}
}

func (d *Diag) FaultPresent(fault ClusterFault) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.faultStates[fault]
}

type redisFaultReporter struct {
	log   *LeveledLogger
	redis *redis.Client
	ctx   context.Context
}

func (r *redisFaultReporter) reportFaultPresent(fault ClusterFault, config FaultConfig) {
	pipe := r.redis.Pipeline()

	pipe.SAdd(r.ctx, diagFaultSetKey, uint32(fault))

	pipe.XAdd(r.ctx, &redis.XAddArgs{
		Stream: diagEventStream,
		MaxLen: diagEventStreamMaxLen,
		Values: map[string]interface{}{
			"group":       diagGroupName,
			"code":        uint32(fault),
			"description": config.Description,
		},
	})

	pipe.Publish(r.ctx, diagNotificationChannel, "fault")

	if _, err := pipe.Exec(r.ctx); err != nil {
		r.log.Error("Failed to report fault present: %v", err)
	}
}

func (r *redisFaultReporter) reportFaultAbsent(fault ClusterFault) {
	pipe := r.redis.Pipeline()

	pipe.SRem(r.ctx, diagFaultSetKey, uint32(fault))

	pipe.XAdd(r.ctx, &redis.XAddArgs{
		Stream: diagEventStream,
		MaxLen: diagEventStreamMaxLen,
		Values: map[string]interface{}{
			"group": diagGroupName,
			"code":  -int32(fault),
		},
	})

	pipe.Publish(r.ctx, diagNotificationChannel, "fault")

	if _, err := pipe.Exec(r.ctx); err != nil {
		r.log.Error("Failed to report fault absent: %v", err)
	}
}
