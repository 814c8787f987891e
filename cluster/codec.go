package cluster

import "fmt"

// Frame is a single classic CAN frame.
type Frame struct {
	ID     uint32
	Length uint8
	Data   [8]byte
}

func (f Frame) String() string {
	return fmt.Sprintf("0x%03X [%d] % X", f.ID, f.Length, f.Data[:f.Length])
}

// Payload returns the used part of Data.
func (f Frame) Payload() []byte {
	return f.Data[:f.Length]
}

// Raw builds a frame without checksum. Bodies longer than 8 bytes are truncated.
func Raw(id uint32, body ...byte) Frame {
	frame := Frame{ID: id}
	frame.Length = uint8(copy(frame.Data[:], body))
	return frame
}

// Assemble builds a checksummed frame: the CRC over body goes into byte 0,
// the body follows.
func Assemble(id uint32, seed byte, body ...byte) Frame {
	frame := Frame{ID: id}
	frame.Data[0] = Checksum(body, seed)
	frame.Length = uint8(1 + copy(frame.Data[1:], body))
	return frame
}

// Interpolate maps value through three breakpoints. Inputs outside the
// breakpoint range take the outer output. Intermediate values use integer
// arithmetic truncating toward zero.
func Interpolate(value int, in [3]int, out [3]int) int {
	if value <= in[0] {
		return out[0]
	}
	if value >= in[2] {
		return out[2]
	}
	pos := 1
	for value > in[pos] {
		pos++
	}
	if value == in[pos] {
		return out[pos]
	}
	return (value-in[pos-1])*(out[pos]-out[pos-1])/(in[pos]-in[pos-1]) + out[pos-1]
}

// MapRange linearly rescales value from [inMin,inMax] to [outMin,outMax]
// without clamping.
func MapRange(value, inMin, inMax, outMin, outMax int) int {
	if inMax == inMin {
		return outMin
	}
	return (value-inMin)*(outMax-outMin)/(inMax-inMin) + outMin
}

func clamp(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func lo8(v uint16) byte { return byte(v) }
func hi8(v uint16) byte { return byte(v >> 8) }

func boolToByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
