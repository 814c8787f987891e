package cluster

// CRC-8 SAE J1850 as used by the F-series body network. Every message id
// has its own final XOR value (the seed).
const crcPolynomial = 0x1D

var crcTable = func() [256]byte {
	var table [256]byte
	for i := 0; i < 256; i++ {
		crc := byte(i)
		for bit := 0; bit < 8; bit++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ crcPolynomial
			} else {
				crc <<= 1
			}
		}
		table[i] = crc
	}
	return table
}()

// Checksum computes the CRC-8 of payload finalized with the message seed.
func Checksum(payload []byte, seed byte) byte {
	remainder := byte(0xFF)
	for _, b := range payload {
		remainder = crcTable[b^remainder]
	}
	return remainder ^ seed
}
