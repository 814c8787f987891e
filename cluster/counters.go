package cluster

const (
	rollingCounterWrap = 14  // 4-bit alive counter runs 0..13
	aliveCounterWrap   = 254 // 8-bit alive counter runs 0..253
	accCounterStep     = 4
)

// Counters holds the alive counters embedded in outgoing frames. The cluster
// expects the short cycles; wrapping at 15/255 makes it flag missed messages.
type Counters struct {
	rolling uint8
	alive   uint8
	acc     uint8
}

func (c *Counters) Rolling() uint8 { return c.rolling }
func (c *Counters) Alive() uint8   { return c.alive }
func (c *Counters) Acc() uint8     { return c.acc }

// Advance moves the rolling and alive counters one fast tick forward.
func (c *Counters) Advance() {
	c.rolling++
	if c.rolling >= rollingCounterWrap {
		c.rolling = 0
	}
	c.alive++
	if c.alive >= aliveCounterWrap {
		c.alive = 0
	}
}

// AdvanceAcc steps the housekeeping counter: +4, wrapping by -15 above 14.
func (c *Counters) AdvanceAcc() {
	c.acc += accCounterStep
	if c.acc > 0x0E {
		c.acc -= 0x0F
	}
}
