package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/go-redis/redis/v8"
)

const (
	ipcStatusKey     = "cluster"
	ipcStatusChannel = "cluster:status"
)

type IPCTx struct {
	log   *LeveledLogger
	redis *redis.Client
	mu    sync.Mutex
	ctx   context.Context

	lastPhase string
	lastStale bool
	sentOnce  bool
}

func NewIPCTx(logger *LeveledLogger, redis *redis.Client) *IPCTx {
	return &IPCTx{
		log:   logger,
		redis: redis,
		ctx:   context.Background(),
	}
}

func (tx *IPCTx) Destroy() {}

// SendStatus writes the status hash. Phase and staleness changes are also
// published so listeners need not poll.
func (tx *IPCTx) SendStatus(data RedisClusterStatus) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	pipe := tx.redis.Pipeline()

	pipe.HSet(tx.ctx, ipcStatusKey, statusFields(data))

	if !tx.sentOnce || data.Phase != tx.lastPhase {
		pipe.Publish(tx.ctx, ipcStatusChannel, "phase")
	}
	if !tx.sentOnce || data.Stale != tx.lastStale {
		pipe.Publish(tx.ctx, ipcStatusChannel, "telemetry")
	}

	if _, err := pipe.Exec(tx.ctx); err != nil {
		return fmt.Errorf("failed to send cluster status: %v", err)
	}

	tx.lastPhase = data.Phase
	tx.lastStale = data.Stale
	tx.sentOnce = true
	return nil
}

func statusFields(data RedisClusterStatus) map[string]interface{} {
	return map[string]interface{}{
		"phase":             data.Phase,
		"variant":           data.Variant,
		"ignition":          onOff(data.Ignition),
		"telemetry":         map[bool]string{true: "stale", false: "live"}[data.Stale],
		"speed":             data.Speed,
		"rpm":               data.RPM,
		"gear":              data.Gear,
		"fuel":              data.Fuel,
		"coolant":           data.Coolant,
		"oil-temperature":   data.Oil,
		"backlight":         data.Backlight,
		"drive-mode":        data.DriveMode,
		"alerts":            formatAlerts(data.ActiveAlerts),
		"frames-sent":       data.FramesSent,
		"transmit-failures": data.TransmitFailures,
		"datagrams":         data.Datagrams,
		"datagrams-dropped": data.Dropped,
	}
}

func onOff(b bool) string {
	return map[bool]string{true: "on", false: "off"}[b]
}

func formatAlerts(ids []uint8) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(int(id))
	}
	return strings.Join(parts, ",")
}
