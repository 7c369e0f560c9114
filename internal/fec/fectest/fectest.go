// Package fectest builds valid Reed-Solomon codewords for the three
// UAT codes so other packages' tests can synthesize frames and inject
// errors/erasures into them. It duplicates a small amount of GF(256)
// math from internal/fec (encoding is not something the receiver
// itself ever needs, so it has no home in production code) rather than
// exporting an encoder from the production package's public API.
package fectest

import "uat978/internal/protocol"

const a0 = 255

type field struct {
	alphaTo [256]int
	indexOf [256]int
}

func newField(genPoly int) *field {
	f := &field{}
	const symsize = 8
	nn := (1 << symsize) - 1
	f.indexOf[0] = a0
	f.alphaTo[a0] = 0
	sr := 1
	for i := 0; i < nn; i++ {
		f.indexOf[sr] = i
		f.alphaTo[i] = sr
		sr <<= 1
		if sr&(1<<symsize) != 0 {
			sr ^= genPoly
		}
		sr &= nn
	}
	if sr != 1 {
		panic("fectest: generator polynomial is not primitive")
	}
	return f
}

func modnn(nn, x int) int {
	for x >= nn {
		x -= nn
		x = (x >> 8) + (x & nn)
	}
	return x
}

var sharedField = newField(protocol.RSGenPoly)

// genPoly builds the index-form generator polynomial for an nroots
// code with the shared field's (fcr, prim) = (120, 1).
func genPoly(nroots int) []int {
	nn := protocol.RSBlockSymbols
	fcr, prim := protocol.RSFirstConsecutiveRoot, protocol.RSPrimitive
	gp := make([]int, nroots+1)
	gp[0] = 1
	root := fcr * prim
	for i := 0; i < nroots; i++ {
		gp[i+1] = 1
		for j := i; j > 0; j-- {
			if gp[j] != 0 {
				gp[j] = gp[j-1] ^ sharedField.alphaTo[modnn(nn, sharedField.indexOf[gp[j]]+root)]
			} else {
				gp[j] = gp[j-1]
			}
		}
		gp[0] = sharedField.alphaTo[modnn(nn, sharedField.indexOf[gp[0]]+root)]
		root += prim
	}
	out := make([]int, nroots+1)
	for i, v := range gp {
		out[i] = sharedField.indexOf[v]
	}
	return out
}

// Encode appends nroots RS parity bytes to data and returns the full
// codeword (data || parity).
func Encode(data []byte, nroots int) []byte {
	nn := protocol.RSBlockSymbols
	gp := genPoly(nroots)
	parity := make([]int, nroots)
	for i := 0; i < len(data); i++ {
		feedback := sharedField.indexOf[int(data[i])^parity[0]]
		if feedback != a0 {
			for j := 1; j < nroots; j++ {
				parity[j] ^= sharedField.alphaTo[modnn(nn, feedback+gp[nroots-j])]
			}
		}
		copy(parity, parity[1:])
		if feedback != a0 {
			parity[nroots-1] = sharedField.alphaTo[modnn(nn, feedback+gp[0])]
		} else {
			parity[nroots-1] = 0
		}
	}
	out := make([]byte, len(data)+nroots)
	copy(out, data)
	for i, p := range parity {
		out[len(data)+i] = byte(p)
	}
	return out
}

// DownlinkLong encodes 34 data bytes into a 48-byte long downlink
// codeword with header bit payload[0]>>3 forced nonzero so it is
// accepted as long rather than falling through to the short retry.
func DownlinkLong(data [protocol.DownlinkLongDataBytes]byte) []byte {
	if data[0]>>3 == 0 {
		data[0] |= 0x08
	}
	return Encode(data[:], protocol.DownlinkLongParityBytes)
}

// DownlinkShort encodes 18 data bytes into a 30-byte short downlink
// codeword, zero-padded to the 48-byte raw frame length the long code
// would have occupied (the demodulator always slices a long frame's
// worth of bytes off the wire before the codec figures out which
// length actually applies). Header bit forced to zero (short marker).
func DownlinkShort(data [protocol.DownlinkShortDataBytes]byte) []byte {
	data[0] &^= 0x08
	short := Encode(data[:], protocol.DownlinkShortParityBytes)
	raw := make([]byte, protocol.DownlinkLongBytes)
	copy(raw, short)
	return raw
}

// UplinkBlock encodes one 72-byte uplink data block into a 92-byte
// codeword.
func UplinkBlock(data [protocol.UplinkBlockDataBytes]byte) []byte {
	return Encode(data[:], protocol.UplinkBlockParityBytes)
}

// InterleaveUplink combines six 92-byte blocks into the 552-byte
// interleaved raw uplink frame: raw[i*6+b] = block_b[i].
func InterleaveUplink(blocks [protocol.UplinkBlocks][]byte) []byte {
	raw := make([]byte, protocol.UplinkBytes)
	for b := 0; b < protocol.UplinkBlocks; b++ {
		for i := 0; i < protocol.UplinkBlockBytes; i++ {
			raw[i*protocol.UplinkBlocks+b] = blocks[b][i]
		}
	}
	return raw
}

// phaseDelta is the per-bit phase step used by the synthetic encoders
// below; it only needs to clear the demodulator's zero threshold by a
// comfortable margin.
const phaseDelta = 2000

// phaseFromBits renders bits (MSB-first per input bool) as 2
// samples/bit, applying bit i's phase step on both of its sample
// transitions: PhaseDiff(out[2i], out[2i+1]) and
// PhaseDiff(out[2i+1], out[2i+2]) both carry bit i, so the
// demodulator's pair-stepping bit slicer recovers the same bits at the
// nominal offset and at offset+1 (only the last bit's offset+1 pair
// reaches past the end of out). Each call starts at phase 0, so
// concatenating the sync word's bits with a payload's bits produces one
// pair-aligned stream.
func phaseFromBits(bits []bool) []uint16 {
	out := make([]uint16, 2*len(bits))
	cur := uint16(0)
	for i, one := range bits {
		step := uint16(phaseDelta)
		if !one {
			step = -step
		}
		out[2*i] = cur
		cur += step
		out[2*i+1] = cur
		cur += step
	}
	return out
}

// ModulatePhase differentially encodes raw bytes (big-endian bit
// order, bit 0 = MSB) into a phase buffer at 2 samples/bit.
func ModulatePhase(raw []byte) []uint16 {
	bits := make([]bool, 0, len(raw)*8)
	for _, b := range raw {
		for bit := 7; bit >= 0; bit-- {
			bits = append(bits, (b>>uint(bit))&1 != 0)
		}
	}
	return phaseFromBits(bits)
}

// SyncWordPhase renders a 36-bit sync word as 2 samples/bit. The
// result concatenates directly with a ModulatePhase'd payload with no
// samples dropped or inserted at the boundary.
func SyncWordPhase(word uint64) []uint16 {
	bits := make([]bool, protocol.SyncBits)
	for i := 0; i < protocol.SyncBits; i++ {
		bits[i] = (word>>uint(protocol.SyncBits-1-i))&1 != 0
	}
	return phaseFromBits(bits)
}
