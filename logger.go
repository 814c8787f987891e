package main

import (
	"fmt"
	"log"
	"strings"

	"cluster-service/cluster"
	"cluster-service/telemetry"
)

// LeveledLogger wraps a standard logger with log level filtering. Components
// get a named child so every line carries its origin.
type LeveledLogger struct {
	logger    *log.Logger
	logLevel  *LogLevel
	component string
}

// NewLeveledLogger creates a new leveled logger
func NewLeveledLogger(logger *log.Logger, level LogLevel) *LeveledLogger {
	return &LeveledLogger{
		logger:   logger,
		logLevel: &level,
	}
}

// Named returns a child logger sharing the level with l.
func (l *LeveledLogger) Named(component string) *LeveledLogger {
	return &LeveledLogger{
		logger:    l.logger,
		logLevel:  l.logLevel,
		component: component,
	}
}

func (l *LeveledLogger) output(level LogLevel, tag, format string, v ...interface{}) {
	if *l.logLevel < level {
		return
	}
	if l.component != "" {
		tag += " " + l.component + ":"
	}
	l.logger.Printf(tag+" "+format, v...)
}

// Debug logs a message at DEBUG level
func (l *LeveledLogger) Debug(format string, v ...interface{}) {
	l.output(LogLevelDebug, "[DEBUG]", format, v...)
}

// Info logs a message at INFO level
func (l *LeveledLogger) Info(format string, v ...interface{}) {
	l.output(LogLevelInfo, "[INFO]", format, v...)
}

// Warn logs a message at WARN level
func (l *LeveledLogger) Warn(format string, v ...interface{}) {
	l.output(LogLevelWarn, "[WARN]", format, v...)
}

// Error logs a message at ERROR level
func (l *LeveledLogger) Error(format string, v ...interface{}) {
	l.output(LogLevelError, "[ERROR]", format, v...)
}

// Printf provides compatibility with standard logger - logs at INFO level
func (l *LeveledLogger) Printf(format string, v ...interface{}) {
	l.Info(format, v...)
}

// Fatalf logs a fatal error and exits
func (l *LeveledLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Fatalf("[FATAL] "+format, v...)
}

// SetLevel changes the log level for l and every child.
func (l *LeveledLogger) SetLevel(level LogLevel) {
	*l.logLevel = level
}

func (l *LeveledLogger) GetLevel() LogLevel {
	return *l.logLevel
}

// DebugCAN logs CAN frame details at DEBUG level
func (l *LeveledLogger) DebugCAN(direction string, id uint32, data []byte, length uint8) {
	if *l.logLevel < LogLevelDebug {
		return
	}
	var b strings.Builder
	for i := uint8(0); i < length && int(i) < len(data) && i < 8; i++ {
		fmt.Fprintf(&b, "%02X ", data[i])
	}
	l.output(LogLevelDebug, "[DEBUG]", "CAN %s: ID=0x%03X Len=%d Data=[%s]", direction, id, length, b.String())
}

var (
	_ cluster.Logger   = (*LeveledLogger)(nil)
	_ telemetry.Logger = (*LeveledLogger)(nil)
)
