package canbus

import (
	"fmt"

	"cluster-service/cluster"

	"github.com/brutella/can"
)

// SocketCAN publishes frames on a Linux CAN interface.
type SocketCAN struct {
	bus    *can.Bus
	device string
	logger cluster.Logger
}

func NewSocketCAN(device string, logger cluster.Logger) (*SocketCAN, error) {
	bus, err := can.NewBusForInterfaceWithName(device)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize CAN bus: %v", err)
	}

	s := &SocketCAN{bus: bus, device: device, logger: logger}

	// ConnectAndPublish blocks reading the socket until Disconnect
	go func() {
		if err := bus.ConnectAndPublish(); err != nil {
			logger.Error("CAN bus publish error on %s: %v", device, err)
		}
	}()

	logger.Info("SocketCAN transmitter on %s", device)
	return s, nil
}

func (s *SocketCAN) Transmit(frame cluster.Frame) error {
	return s.bus.Publish(toCAN(frame))
}

func (s *SocketCAN) Close() error {
	return s.bus.Disconnect()
}

func toCAN(frame cluster.Frame) can.Frame {
	return can.Frame{
		ID:     frame.ID,
		Length: frame.Length,
		Flags:  0,
		Data:   frame.Data,
	}
}
