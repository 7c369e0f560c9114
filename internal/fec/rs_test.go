package fec

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uat978/internal/protocol"
)

// encode computes the nroots parity symbols for data (length
// nn-pad-nroots) the way Karn's reference encoder does, using the
// code's shared GF(256) tables. It exists only to build test fixtures:
// the receiver never transmits, so production code has no encoder.
func (c *code) encode(data []byte) []byte {
	nn := protocol.RSBlockSymbols
	genPoly := c.genPoly()

	parity := make([]int, c.nroots)
	for i := 0; i < len(data); i++ {
		feedback := c.indexOf[int(data[i])^parity[0]]
		if feedback != a0 {
			for j := 1; j < c.nroots; j++ {
				parity[j] ^= c.alphaTo[modnn(nn, feedback+genPoly[c.nroots-j])]
			}
		}
		copy(parity, parity[1:])
		if feedback != a0 {
			parity[c.nroots-1] = c.alphaTo[modnn(nn, feedback+genPoly[0])]
		} else {
			parity[c.nroots-1] = 0
		}
	}
	out := make([]byte, c.nroots)
	for i, p := range parity {
		out[i] = byte(p)
	}
	return out
}

// genPoly builds the generator polynomial in poly form (not index
// form), following Karn's init_rs.
func (c *code) genPoly() []int {
	nn := protocol.RSBlockSymbols
	gp := make([]int, c.nroots+1)
	gp[0] = 1
	root := c.fcr * c.prim
	for i := 0; i < c.nroots; i++ {
		gp[i+1] = 1
		for j := i; j > 0; j-- {
			if gp[j] != 0 {
				gp[j] = gp[j-1] ^ c.alphaTo[modnn(nn, c.indexOf[gp[j]]+root)]
			} else {
				gp[j] = gp[j-1]
			}
		}
		gp[0] = c.alphaTo[modnn(nn, c.indexOf[gp[0]]+root)]
		root += c.prim
	}
	// index form for faster encode
	out := make([]int, c.nroots+1)
	for i := range gp {
		out[i] = c.indexOf[gp[i]]
	}
	return out
}

func TestGF256_FieldGeneratorIsPrimitive(t *testing.T) {
	require.NotPanics(t, func() { newGF256(0x187) })
}

func TestRS_RoundTripNoErrors(t *testing.T) {
	c := newCode(12, protocol.RSPad(30))
	data := make([]byte, 18)
	for i := range data {
		data[i] = byte(i * 7)
	}
	parity := c.encode(data)
	block := append(append([]byte{}, data...), parity...)

	n := c.decode(block, nil)
	assert.Equal(t, 0, n)
	assert.Equal(t, data, block[:18])
}

func TestRS_CorrectsUpToHalfRoots(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 10000; trial++ {
		c := newCode(12, protocol.RSPad(30))
		data := make([]byte, 18)
		rng.Read(data)
		parity := c.encode(data)
		block := append(append([]byte{}, data...), parity...)
		original := append([]byte{}, block...)

		nErr := 6 // nroots/2
		positions := rng.Perm(30)[:nErr]
		for _, p := range positions {
			var b byte
			for b == 0 {
				b = byte(rng.Intn(256))
			}
			block[p] ^= b
		}

		n := c.decode(block, nil)
		require.GreaterOrEqual(t, n, 0, "trial %d failed to decode", trial)
		assert.Equal(t, original, block, "trial %d: did not recover original", trial)
	}
}

func TestRS_BeyondCapacityFailureLeavesBlockUnmodified(t *testing.T) {
	c := newCode(12, protocol.RSPad(30))
	data := make([]byte, 18)
	for i := range data {
		data[i] = byte(i + 1)
	}
	parity := c.encode(data)
	block := append(append([]byte{}, data...), parity...)

	// 7 errors exceeds nroots/2 = 6 for a 12-root code: not guaranteed
	// correctable, frequently detected as uncorrectable.
	for _, p := range []int{0, 3, 7, 11, 15, 20, 25} {
		block[p] ^= 0xFF
	}
	original := append([]byte{}, block...)
	n := c.decode(block, nil)
	if n < 0 {
		assert.Equal(t, original, block, "block must be unmodified on failure")
	}
}

func TestRS_ErasuresCorrectKnownPositions(t *testing.T) {
	c := newCode(12, protocol.RSPad(30))
	data := make([]byte, 18)
	for i := range data {
		data[i] = byte(200 - i)
	}
	parity := c.encode(data)
	block := append(append([]byte{}, data...), parity...)
	original := append([]byte{}, block...)

	erasurePositions := []int{2, 9, 17}
	erasures := make([]int, len(erasurePositions))
	for i, p := range erasurePositions {
		block[p] = 0
		erasures[i] = p + c.pad
	}

	n := c.decode(block, erasures)
	require.GreaterOrEqual(t, n, 0)
	assert.Equal(t, original, block)
}

func TestRS_TooManyErasuresFailsWithoutDecoding(t *testing.T) {
	c := newCode(12, protocol.RSPad(30))
	block := make([]byte, 30)
	erasures := make([]int, 13) // nroots=12, one too many
	for i := range erasures {
		erasures[i] = i + c.pad
	}
	n := c.decode(block, erasures)
	assert.Equal(t, -1, n)
}
