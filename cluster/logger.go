package cluster

// Logger is the logging surface the engine needs.
type Logger interface {
	Printf(format string, v ...interface{})
	Debug(format string, v ...interface{})
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
	DebugCAN(direction string, id uint32, data []byte, length uint8)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...interface{})          {}
func (nopLogger) Debug(string, ...interface{})           {}
func (nopLogger) Info(string, ...interface{})            {}
func (nopLogger) Warn(string, ...interface{})            {}
func (nopLogger) Error(string, ...interface{})           {}
func (nopLogger) DebugCAN(string, uint32, []byte, uint8) {}

// DebugFrame logs a frame if logger supports DebugCAN
func DebugFrame(logger Logger, direction string, frame Frame) {
	if logger != nil {
		logger.DebugCAN(direction, frame.ID, frame.Data[:], frame.Length)
	}
}
