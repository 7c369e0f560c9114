// Package fec implements the shortened Reed-Solomon(255,...) codes
// over GF(256) used to correct the three UAT block types: downlink
// short, downlink long, and the six interleaved uplink blocks. The
// decoder is the classic Berlekamp-Massey + Chien search + Forney
// algorithm (Karn's reference decode_rs), parameterized per code by
// (nroots, pad); the encoder side is never needed since this receiver
// only ever corrects already-transmitted frames.
package fec

import (
	"uat978/internal/protocol"
)

// code is one parameterized RS(255,255-nroots) instance, shortened by
// pad virtual leading zero symbols.
type code struct {
	*gf256
	nroots int
	pad    int
	fcr    int
	prim   int
	iprim  int
}

func newCode(nroots, pad int) *code {
	g := sharedField()
	c := &code{
		gf256:  g,
		nroots: nroots,
		pad:    pad,
		fcr:    protocol.RSFirstConsecutiveRoot,
		prim:   protocol.RSPrimitive,
	}
	nn := protocol.RSBlockSymbols
	iprim := 1
	for (iprim % c.prim) != 0 {
		iprim += nn
	}
	c.iprim = iprim / c.prim
	return c
}

var fieldInstance *gf256

// sharedField returns the single GF(256) table set; all three UAT
// codes share the same generator polynomial, so the (alpha_to,
// index_of) tables only need to be built once.
func sharedField() *gf256 {
	if fieldInstance == nil {
		fieldInstance = newGF256(protocol.RSGenPoly)
	}
	return fieldInstance
}

// decode runs error-and-erasure correction on data in place. erasures
// holds positions in the logical 255-symbol block (i.e. already offset
// by the code's pad). It returns the number of symbols corrected, or
// -1 if the block is uncorrectable; on failure data is left unmodified.
func (c *code) decode(data []byte, erasures []int) int {
	nn := protocol.RSBlockSymbols
	nroots := c.nroots
	pad := c.pad
	fcr := c.fcr
	prim := c.prim
	iprim := c.iprim
	alphaTo := c.alphaTo
	indexOf := c.indexOf
	noEras := len(erasures)

	if noEras > nroots {
		return -1
	}

	lambda := make([]int, nroots+1)
	s := make([]int, nroots)
	b := make([]int, nroots+1)
	t := make([]int, nroots+1)
	omega := make([]int, nroots+1)
	root := make([]int, nroots)
	reg := make([]int, nroots+1)
	loc := make([]int, nroots)

	// Form the syndromes: evaluate data(x) at each root of g(x).
	for i := 0; i < nroots; i++ {
		s[i] = int(data[0])
	}
	for j := 1; j < nn-pad; j++ {
		for i := 0; i < nroots; i++ {
			if s[i] == 0 {
				s[i] = int(data[j])
			} else {
				s[i] = int(data[j]) ^ alphaTo[modnn(nn, indexOf[s[i]]+(fcr+i)*prim)]
			}
		}
	}

	// Convert syndromes to index form, checking for an all-zero (no
	// error) condition.
	synError := 0
	for i := 0; i < nroots; i++ {
		synError |= s[i]
		s[i] = indexOf[s[i]]
	}
	if synError == 0 {
		// data is already a valid codeword.
		return 0
	}

	for i := range lambda {
		lambda[i] = 0
	}
	lambda[0] = 1

	if noEras > 0 {
		lambda[1] = alphaTo[modnn(nn, prim*(nn-1-erasures[0]))]
		for i := 1; i < noEras; i++ {
			u := modnn(nn, prim*(nn-1-erasures[i]))
			for j := i + 1; j > 0; j-- {
				tmp := indexOf[lambda[j-1]]
				if tmp != a0 {
					lambda[j] ^= alphaTo[modnn(nn, u+tmp)]
				}
			}
		}
	}
	for i := 0; i < nroots+1; i++ {
		b[i] = indexOf[lambda[i]]
	}

	// Berlekamp-Massey: find the error+erasure locator polynomial.
	r := noEras
	el := noEras
	for {
		r++
		if r > nroots {
			break
		}
		discrR := 0
		for i := 0; i < r; i++ {
			if lambda[i] != 0 && s[r-i-1] != a0 {
				discrR ^= alphaTo[modnn(nn, indexOf[lambda[i]]+s[r-i-1])]
			}
		}
		discrR = indexOf[discrR]
		if discrR == a0 {
			copy(b[1:], b[:nroots])
			b[0] = a0
			continue
		}
		t[0] = lambda[0]
		for i := 0; i < nroots; i++ {
			if b[i] != a0 {
				t[i+1] = lambda[i+1] ^ alphaTo[modnn(nn, discrR+b[i])]
			} else {
				t[i+1] = lambda[i+1]
			}
		}
		if 2*el <= r+noEras-1 {
			el = r + noEras - el
			for i := 0; i <= nroots; i++ {
				if lambda[i] == 0 {
					b[i] = a0
				} else {
					b[i] = modnn(nn, indexOf[lambda[i]]-discrR+nn)
				}
			}
		} else {
			copy(b[1:], b[:nroots])
			b[0] = a0
		}
		copy(lambda, t)
	}

	// Convert lambda to index form and find its degree.
	degLambda := 0
	for i := 0; i < nroots+1; i++ {
		lambda[i] = indexOf[lambda[i]]
		if lambda[i] != a0 {
			degLambda = i
		}
	}

	// Chien search for the roots of the locator polynomial.
	copy(reg[1:], lambda[1:nroots+1])
	count := 0
	for i, k := 1, iprim-1; i <= nn; i, k = i+1, modnn(nn, k+iprim) {
		q := 1
		for j := degLambda; j > 0; j-- {
			if reg[j] != a0 {
				reg[j] = modnn(nn, reg[j]+j)
				q ^= alphaTo[reg[j]]
			}
		}
		if q != 0 {
			continue
		}
		root[count] = i
		loc[count] = k
		count++
		if count == degLambda {
			break
		}
	}
	if degLambda != count {
		// deg(lambda) != number of roots: uncorrectable.
		return -1
	}

	// Error evaluator polynomial omega(x) = s(x)*lambda(x) mod x^nroots.
	degOmega := degLambda - 1
	for i := 0; i <= degOmega; i++ {
		tmp := 0
		for j := i; j >= 0; j-- {
			if s[i-j] != a0 && lambda[j] != a0 {
				tmp ^= alphaTo[modnn(nn, s[i-j]+lambda[j])]
			}
		}
		omega[i] = indexOf[tmp]
	}

	// Forney: compute error/erasure values. Corrections are staged and
	// only applied once every one of them is known to be valid, so a
	// late failure never leaves data partially modified.
	type correction struct {
		pos int
		val byte
	}
	corrections := make([]correction, 0, count)
	for j := count - 1; j >= 0; j-- {
		num1 := 0
		for i := degOmega; i >= 0; i-- {
			if omega[i] != a0 {
				num1 ^= alphaTo[modnn(nn, omega[i]+i*root[j])]
			}
		}
		num2 := alphaTo[modnn(nn, root[j]*(fcr-1)+nn)]
		den := 0
		limit := degLambda
		if nroots-1 < limit {
			limit = nroots - 1
		}
		limit &^= 1 // round down to even, per the reference decoder
		for i := limit; i >= 0; i -= 2 {
			if lambda[i+1] != a0 {
				den ^= alphaTo[modnn(nn, lambda[i+1]+i*root[j])]
			}
		}
		if den == 0 {
			return -1
		}
		pos := loc[j] - pad
		if pos < 0 || pos >= len(data) {
			return -1
		}
		if num1 != 0 {
			corrections = append(corrections, correction{
				pos: pos,
				val: byte(alphaTo[modnn(nn, indexOf[num1]+indexOf[num2]+nn-indexOf[den])]),
			})
		}
	}

	for _, c := range corrections {
		data[c.pos] ^= c.val
	}

	// Re-run the syndrome computation over the corrected block; a
	// miscorrection (possible when the error count exceeded the code's
	// capacity but Chien still found deg(lambda) roots) leaves residual
	// nonzero syndromes. Roll the corrections back so failure never
	// modifies the caller's data.
	for i := 0; i < nroots; i++ {
		s[i] = int(data[0])
	}
	for j := 1; j < nn-pad; j++ {
		for i := 0; i < nroots; i++ {
			if s[i] == 0 {
				s[i] = int(data[j])
			} else {
				s[i] = int(data[j]) ^ alphaTo[modnn(nn, indexOf[s[i]]+(fcr+i)*prim)]
			}
		}
	}
	for i := 0; i < nroots; i++ {
		if s[i] != 0 {
			for _, c := range corrections {
				data[c.pos] ^= c.val
			}
			return -1
		}
	}

	return count
}
