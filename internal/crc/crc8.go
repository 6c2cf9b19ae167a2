// Package crc implements the two rolling checksums used by the FLAC
// bitstream: CRC-8 over frame headers and CRC-16 over whole frames.
// Both are backed by the reference decoder's own checksum library
// (github.com/mewkiz/pkg/hashutil/crc8, .../crc16) rather than a
// hand-rolled table, so the polynomials and table generation are
// exactly the ones the rest of the ecosystem already tests.
package crc

import "github.com/mewkiz/pkg/hashutil/crc8"

// hash8 is the subset of hashutil.Hash8 this package relies on,
// declared locally so CRC8 doesn't have to name the hashutil package
// just to type its field.
type hash8 interface {
	Write(p []byte) (int, error)
	Sum8() uint8
	Reset()
}

// CRC8 is an incremental CRC-8 accumulator using the ATM polynomial
// 0x07 (x^8 + x^2 + x + 1), the polynomial FLAC frame headers use.
type CRC8 struct {
	h hash8
}

// NewCRC8 returns a CRC-8 accumulator initialized to 0, as required by
// §6.1.
func NewCRC8() *CRC8 {
	return &CRC8{h: crc8.NewATM()}
}

// Write feeds p into the running checksum. It never returns an error.
func (c *CRC8) Write(p []byte) (int, error) {
	return c.h.Write(p)
}

// Sum8 returns the checksum accumulated so far.
func (c *CRC8) Sum8() byte {
	return c.h.Sum8()
}

// Reset clears the accumulator back to its initial state.
func (c *CRC8) Reset() {
	c.h.Reset()
}

// Checksum8 computes the CRC-8 of p in one call.
func Checksum8(p []byte) byte {
	return crc8.ChecksumATM(p)
}
