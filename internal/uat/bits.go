// Package uat decodes a downlink RawMessage's payload bytes into the
// semantic ADS-B/TIS-B fields defined by DO-282B, and serializes the
// result to JSON. It is a pure function of the payload bytes; it does
// no I/O and keeps no state between calls.
package uat

import "uat978/internal/uaterr"

// payload is a 1-indexed bit accessor over a decoded UAT data payload:
// byte 1 is the first data byte, bit 1 of a byte is its MSB. Indexing
// this way instead of 0-based matches DO-282B's own field tables.
type payload []byte

// bitIndex converts 1-based (byte, bit) coordinates into a 0-based bit
// offset from the start of the payload.
func (p payload) bitIndex(byteNum, bit int) int {
	if byteNum < 1 || bit < 1 || bit > 8 {
		panic(&uaterr.BitRangeError{Byte: byteNum, Bit: bit, PayloadLen: len(p)})
	}
	bi := (byteNum-1)*8 + bit - 1
	if bi < 0 || bi >= len(p)*8 {
		panic(&uaterr.BitRangeError{Byte: byteNum, Bit: bit, PayloadLen: len(p)})
	}
	return bi
}

// Bit returns the single bit at (byteNum, bit), 1-indexed, bit 1 = MSB.
func (p payload) Bit(byteNum, bit int) bool {
	bi := p.bitIndex(byteNum, bit)
	by := bi / 8
	mask := byte(1 << uint(7-(bi%8)))
	return p[by]&mask != 0
}

// Bits returns up to 32 contiguous bits spanning [firstByte,firstBit]
// through [lastByte,lastBit] inclusive, both 1-indexed, as an unsigned
// integer with the first bit in the most significant position.
func (p payload) Bits(firstByte, firstBit, lastByte, lastBit int) uint32 {
	fbi := p.bitIndex(firstByte, firstBit)
	lbi := p.bitIndex(lastByte, lastBit)
	if fbi > lbi {
		panic(&uaterr.BitRangeError{Byte: firstByte, Bit: firstBit, PayloadLen: len(p)})
	}
	nbi := lbi - fbi + 1
	if nbi > 32 {
		panic(&uaterr.BitRangeError{Byte: firstByte, Bit: firstBit, PayloadLen: len(p)})
	}

	var v uint32
	for i := fbi; i <= lbi; i++ {
		by := i / 8
		mask := byte(1 << uint(7-(i%8)))
		v <<= 1
		if p[by]&mask != 0 {
			v |= 1
		}
	}
	return v
}
