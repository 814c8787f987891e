package canbus

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"cluster-service/cluster"

	"go.bug.st/serial"
)

const (
	DefaultSLCANBaudRate = 115200
	DefaultBitrate       = 500000

	maxStandardID = 0x7FF
)

// slcanBitrates maps bus speed to the Sn setup command.
var slcanBitrates = map[int]string{
	10000:   "S0",
	20000:   "S1",
	50000:   "S2",
	100000:  "S3",
	125000:  "S4",
	250000:  "S5",
	500000:  "S6",
	800000:  "S7",
	1000000: "S8",
}

// SLCAN drives a Lawicel-protocol USB adapter over a serial line.
type SLCAN struct {
	mu     sync.Mutex
	port   io.WriteCloser
	logger cluster.Logger
}

// OpenSLCAN opens the serial port and brings the channel up at bitrate.
func OpenSLCAN(device string, baudRate, bitrate int, logger cluster.Logger) (*SLCAN, error) {
	if baudRate <= 0 {
		baudRate = DefaultSLCANBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %v", device, err)
	}

	s, err := NewSLCAN(port, bitrate, logger)
	if err != nil {
		port.Close()
		return nil, err
	}
	logger.Info("SLCAN transmitter on %s (%d baud, %d bit/s)", device, baudRate, bitrate)
	return s, nil
}

// NewSLCAN runs the channel setup sequence on an already open line.
func NewSLCAN(port io.WriteCloser, bitrate int, logger cluster.Logger) (*SLCAN, error) {
	if bitrate <= 0 {
		bitrate = DefaultBitrate
	}
	speed, ok := slcanBitrates[bitrate]
	if !ok {
		return nil, fmt.Errorf("unsupported SLCAN bitrate: %d", bitrate)
	}

	s := &SLCAN{port: port, logger: logger}
	// close first in case the adapter was left open
	for _, cmd := range []string{"C", speed, "O"} {
		if err := s.command(cmd); err != nil {
			return nil, fmt.Errorf("SLCAN setup %q: %w", cmd, err)
		}
	}
	return s, nil
}

func (s *SLCAN) command(cmd string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.port, cmd+"\r")
	return err
}

func (s *SLCAN) Transmit(frame cluster.Frame) error {
	return s.command(EncodeSLCAN(frame))
}

func (s *SLCAN) Close() error {
	if err := s.command("C"); err != nil {
		s.logger.Warn("SLCAN close command failed: %v", err)
	}
	return s.port.Close()
}

// EncodeSLCAN renders frame as a transmit command without the trailing CR:
// t<iii><l><dd...> for standard ids, T<iiiiiiii><l><dd...> for extended ones.
func EncodeSLCAN(frame cluster.Frame) string {
	var b strings.Builder
	if frame.ID > maxStandardID {
		fmt.Fprintf(&b, "T%08X%d", frame.ID, frame.Length)
	} else {
		fmt.Fprintf(&b, "t%03X%d", frame.ID, frame.Length)
	}
	for _, v := range frame.Payload() {
		fmt.Fprintf(&b, "%02X", v)
	}
	return b.String()
}
