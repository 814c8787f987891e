package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestLeveledLogger_Filtering(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf, LogLevelWarn)

	l.Debug("debug line")
	l.Info("info line")
	l.Warn("warn line")
	l.Error("error line")

	out := buf.String()
	if strings.Contains(out, "debug line") || strings.Contains(out, "info line") {
		t.Errorf("lines below warn leaked: %q", out)
	}
	if !strings.Contains(out, "[WARN] warn line") || !strings.Contains(out, "[ERROR] error line") {
		t.Errorf("missing warn/error lines: %q", out)
	}
}

func TestLeveledLogger_NamedSharesLevel(t *testing.T) {
	var buf bytes.Buffer
	root := newTestLogger(&buf, LogLevelInfo)
	child := root.Named("udp")

	child.Info("listening on %d", 4444)
	if got := buf.String(); !strings.Contains(got, "[INFO] udp: listening on 4444") {
		t.Errorf("unexpected output %q", got)
	}

	buf.Reset()
	root.SetLevel(LogLevelError)
	child.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("child ignored the shared level: %q", buf.String())
	}
	if child.GetLevel() != LogLevelError {
		t.Errorf("expected error level, got %v", child.GetLevel())
	}
}

func TestLeveledLogger_DebugCAN(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf, LogLevelDebug).Named("can")

	l.DebugCAN("TX", 0x5C0, []byte{0x40, 0x3E, 0x00}, 3)
	if got := buf.String(); !strings.Contains(got, "CAN TX: ID=0x5C0 Len=3 Data=[40 3E 00") {
		t.Errorf("unexpected frame dump %q", got)
	}

	buf.Reset()
	l.SetLevel(LogLevelInfo)
	l.DebugCAN("TX", 0x5C0, []byte{0x40}, 1)
	if buf.Len() != 0 {
		t.Errorf("frame dump above debug level: %q", buf.String())
	}
}
