package main

import (
	"bytes"
	"log"
	"testing"
)

type recordingReporter struct {
	present []ClusterFault
	absent  []ClusterFault
}

func (r *recordingReporter) reportFaultPresent(fault ClusterFault, config FaultConfig) {
	r.present = append(r.present, fault)
}

func (r *recordingReporter) reportFaultAbsent(fault ClusterFault) {
	r.absent = append(r.absent, fault)
}

func newTestLogger(buf *bytes.Buffer, level LogLevel) *LeveledLogger {
	return NewLeveledLogger(log.New(buf, "", 0), level)
}

func TestDiag_ReportsTransitionsOnly(t *testing.T) {
	var buf bytes.Buffer
	d := NewDiag(newTestLogger(&buf, LogLevelInfo), nil)
	rep := &recordingReporter{}
	d.reporter = rep

	d.SetFaultPresence(FaultTelemetryStale, true)
	d.SetFaultPresence(FaultTelemetryStale, true)
	d.SetFaultPresence(FaultTelemetryStale, false)
	d.SetFaultPresence(FaultTelemetryStale, false)

	if len(rep.present) != 1 || rep.present[0] != FaultTelemetryStale {
		t.Errorf("expected one present report, got %v", rep.present)
	}
	if len(rep.absent) != 1 {
		t.Errorf("expected one absent report, got %v", rep.absent)
	}
	if d.FaultPresent(FaultTelemetryStale) {
		t.Error("fault should be cleared")
	}
}

func TestDiag_IgnoresNoneAndUnknown(t *testing.T) {
	var buf bytes.Buffer
	d := NewDiag(newTestLogger(&buf, LogLevelWarn), nil)
	rep := &recordingReporter{}
	d.reporter = rep

	d.SetFaultPresence(FaultNone, true)
	d.SetFaultPresence(ClusterFault(42), true)

	if len(rep.present) != 0 {
		t.Errorf("unexpected reports %v", rep.present)
	}
	if d.FaultPresent(ClusterFault(42)) {
		t.Error("unknown fault must not be recorded")
	}
	if !bytes.Contains(buf.Bytes(), []byte("Unknown fault code: 42")) {
		t.Errorf("expected warning, got %q", buf.String())
	}
}

func TestDiag_WithoutReporterStillTracks(t *testing.T) {
	var buf bytes.Buffer
	d := NewDiag(newTestLogger(&buf, LogLevelNone), nil)

	d.SetFaultPresence(FaultTransmitFailing, true)
	if !d.FaultPresent(FaultTransmitFailing) {
		t.Error("fault should be present")
	}
	if buf.Len() != 0 {
		t.Errorf("level none should log nothing, got %q", buf.String())
	}
}
