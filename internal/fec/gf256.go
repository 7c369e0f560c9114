package fec

// gf256 is the field shared by all three UAT Reed-Solomon codes:
// GF(2^8) built from the generator polynomial x^8+x^7+x^2+x+1 (0x187).
type gf256 struct {
	alphaTo [256]int
	indexOf [256]int
}

// a0 is the index-form representation of log(0) (field element zero
// has no logarithm); by convention it is nn (255).
const a0 = 255

func newGF256(genPoly int) *gf256 {
	g := &gf256{}
	const symsize = 8
	nn := (1 << symsize) - 1 // 255

	g.indexOf[0] = a0
	g.alphaTo[a0] = 0

	sr := 1
	for i := 0; i < nn; i++ {
		g.indexOf[sr] = i
		g.alphaTo[i] = sr
		sr <<= 1
		if sr&(1<<symsize) != 0 {
			sr ^= genPoly
		}
		sr &= nn
	}
	if sr != 1 {
		panic("fec: generator polynomial is not primitive")
	}
	return g
}

// modnn reduces x into [0, nn) using the field's characteristic, the
// way Karn's reference decoder does for indices that can run past nn.
func modnn(nn, x int) int {
	for x >= nn {
		x -= nn
		x = (x >> 8) + (x & nn)
	}
	return x
}
