package canbus

import "cluster-service/cluster"

// DryRun logs frames instead of sending them. Useful on a bench without an
// adapter; pair with --log 4 to see the stream.
type DryRun struct {
	logger cluster.Logger
}

func NewDryRun(logger cluster.Logger) *DryRun {
	logger.Info("Dry-run transmitter: frames are logged, not sent")
	return &DryRun{logger: logger}
}

func (d *DryRun) Transmit(frame cluster.Frame) error {
	cluster.DebugFrame(d.logger, "DRY", frame)
	return nil
}

func (d *DryRun) Close() error { return nil }
