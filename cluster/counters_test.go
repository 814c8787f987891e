package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCounters_RollingWrapsAt14(t *testing.T) {
	var c Counters
	for i := 0; i < 13; i++ {
		c.Advance()
		assert.NotEqual(t, uint8(14), c.Rolling())
	}
	assert.Equal(t, uint8(13), c.Rolling())

	c.Advance()
	assert.Equal(t, uint8(0), c.Rolling())
}

func TestCounters_AliveWrapsAt254(t *testing.T) {
	var c Counters
	for i := 0; i < 253; i++ {
		c.Advance()
	}
	assert.Equal(t, uint8(253), c.Alive())

	c.Advance()
	assert.Equal(t, uint8(0), c.Alive())
}

func TestCounters_AccSequence(t *testing.T) {
	var c Counters
	want := []uint8{0, 4, 8, 12, 1, 5, 9, 13, 2, 6, 10, 14, 3, 7, 11, 0}

	got := make([]uint8, 0, len(want))
	for range want {
		got = append(got, c.Acc())
		c.AdvanceAcc()
	}
	assert.Equal(t, want, got)
}
