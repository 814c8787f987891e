package main

// RedisClusterStatus is the snapshot published to the "cluster" hash
type RedisClusterStatus struct {
	Phase    string
	Variant  string
	Ignition bool
	Stale    bool

	Speed   int // km/h, filtered
	RPM     int
	Gear    string
	Fuel    int // percent
	Coolant int // °C
	Oil     int // °C

	Backlight uint8
	DriveMode uint8

	ActiveAlerts []uint8

	FramesSent       uint64
	TransmitFailures uint64
	Datagrams        uint64
	Dropped          uint64
}
