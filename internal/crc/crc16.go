package crc

import "github.com/mewkiz/pkg/hashutil/crc16"

// hash16 is the subset of hashutil.Hash16 this package relies on,
// declared locally so CRC16 doesn't have to name the hashutil package
// just to type its field.
type hash16 interface {
	Write(p []byte) (int, error)
	Sum16() uint16
	Reset()
}

// CRC16 is an incremental CRC-16 accumulator using the IBM polynomial
// 0x8005 (x^16 + x^15 + x^2 + 1), the polynomial FLAC frame footers
// use.
type CRC16 struct {
	h hash16
}

// NewCRC16 returns a CRC-16 accumulator initialized to 0, as required
// by §6.1.
func NewCRC16() *CRC16 {
	return &CRC16{h: crc16.NewIBM()}
}

// Write feeds p into the running checksum. It never returns an error.
func (c *CRC16) Write(p []byte) (int, error) {
	return c.h.Write(p)
}

// Sum16 returns the checksum accumulated so far.
func (c *CRC16) Sum16() uint16 {
	return c.h.Sum16()
}

// Reset clears the accumulator back to its initial state.
func (c *CRC16) Reset() {
	c.h.Reset()
}

// Checksum16 computes the CRC-16 of p in one call.
func Checksum16(p []byte) uint16 {
	return crc16.ChecksumIBM(p)
}
