package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"
)

const (
	ipcCommandChannel = "cluster"
	ipcSettingsKey    = "cluster:settings"
)

// IPCRx turns messages on the "cluster" channel into Commands for the loop.
type IPCRx struct {
	log          *LeveledLogger
	redis        *redis.Client
	subscription *redis.PubSub
}

func NewIPCRx(logger *LeveledLogger, redis *redis.Client) *IPCRx {
	return &IPCRx{
		log:   logger,
		redis: redis,
	}
}

// Run delivers commands until ctx is cancelled. Persisted settings are sent
// first so the cluster comes up with the operator's last backlight and mode.
func (rx *IPCRx) Run(ctx context.Context, out chan<- Command) error {
	rx.subscription = rx.redis.Subscribe(ctx, ipcCommandChannel)
	defer rx.subscription.Close()

	for _, cmd := range rx.readInitialSettings(ctx) {
		if !send(ctx, out, cmd) {
			return nil
		}
	}

	rx.log.Info("Starting command subscription handler")
	for {
		msg, err := rx.subscription.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, redis.ErrClosed) {
				return fmt.Errorf("redis connection lost on command subscription: %w", err)
			}
			rx.log.Error("Command subscription error: %v", err)
			continue
		}

		switch m := msg.(type) {
		case *redis.Message:
			rx.log.Debug("Command received: channel=%s, payload=%s", m.Channel, m.Payload)

			cmd, err := ParseCommand(m.Payload)
			if err != nil {
				rx.log.Warn("Ignoring command: %v", err)
				continue
			}
			if err := rx.PersistSetting(ctx, cmd); err != nil {
				rx.log.Warn("%v", err)
			}
			if !send(ctx, out, cmd) {
				return nil
			}

		case *redis.Subscription:
			rx.log.Debug("Command subscription event: %s %s", m.Channel, m.Kind)
		}
	}
}

func (rx *IPCRx) readInitialSettings(ctx context.Context) []Command {
	settings, err := rx.redis.HGetAll(ctx, ipcSettingsKey).Result()
	if err != nil && err != redis.Nil {
		rx.log.Error("Failed to read cluster settings: %v", err)
		return nil
	}

	var cmds []Command
	for _, field := range []string{"backlight", "drive-mode"} {
		value, ok := settings[field]
		if !ok {
			continue
		}
		cmd, err := ParseCommand(field + " " + value)
		if err != nil {
			rx.log.Warn("Ignoring stored setting %s=%s: %v", field, value, err)
			continue
		}
		rx.log.Info("Initial %s: %s", field, value)
		cmds = append(cmds, cmd)
	}
	return cmds
}

// PersistSetting stores a display preference so it survives restarts.
func (rx *IPCRx) PersistSetting(ctx context.Context, cmd Command) error {
	var field string
	switch cmd.Kind {
	case CommandBacklight:
		field = "backlight"
	case CommandDriveMode:
		field = "drive-mode"
	default:
		return nil
	}
	if err := rx.redis.HSet(ctx, ipcSettingsKey, field, strconv.Itoa(cmd.Value)).Err(); err != nil {
		return fmt.Errorf("failed to persist %s: %v", field, err)
	}
	return nil
}

func send(ctx context.Context, out chan<- Command, cmd Command) bool {
	select {
	case out <- cmd:
		return true
	case <-ctx.Done():
		return false
	}
}
