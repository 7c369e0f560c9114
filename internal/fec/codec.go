package fec

import "uat978/internal/protocol"

// Codec wraps the three Reed-Solomon decoders used by UAT: downlink
// short, downlink long, and one uplink block (applied six times after
// deinterleaving).
type Codec struct {
	downlinkShort *code
	downlinkLong  *code
	uplinkBlock   *code
}

// New builds a Codec. Building is cheap: the GF(256) tables are shared
// across all three codes and cached process-wide.
func New() *Codec {
	return &Codec{
		downlinkShort: newCode(protocol.DownlinkShortParityBytes, protocol.RSPad(protocol.DownlinkShortBytes)),
		downlinkLong:  newCode(protocol.DownlinkLongParityBytes, protocol.RSPad(protocol.DownlinkLongBytes)),
		uplinkBlock:   newCode(protocol.UplinkBlockParityBytes, protocol.RSPad(protocol.UplinkBlockBytes)),
	}
}

// CorrectDownlink attempts to correct a 48-byte raw downlink frame
// (34 data + 14 parity, the long layout). It always tries the long
// code first; if that succeeds and the header indicates a short frame
// it restores the original bytes and retries with the short code,
// re-biasing any erasures that fall within the short frame's span. It
// returns the corrected data bytes (18 or 34 long), the number of
// symbols corrected, and whether decoding succeeded.
func (c *Codec) CorrectDownlink(raw []byte, erasures []int) (data []byte, corrected int, ok bool) {
	if len(raw) != protocol.DownlinkLongBytes {
		return nil, 0, false
	}
	if len(erasures) > protocol.DownlinkLongParityBytes {
		return nil, 0, false
	}

	buf := make([]byte, len(raw))
	copy(buf, raw)

	longErasures := make([]int, len(erasures))
	for i, e := range erasures {
		longErasures[i] = e + c.downlinkLong.pad
	}

	n := c.downlinkLong.decode(buf, longErasures)
	if n >= 0 && n <= protocol.DownlinkLongParityBytes && (buf[0]>>3) != 0 {
		out := make([]byte, protocol.DownlinkLongDataBytes)
		copy(out, buf[:protocol.DownlinkLongDataBytes])
		return out, n, true
	}

	// Retry as a short frame: restore the original bytes (decode never
	// modifies on failure, but a successful-but-wrongly-accepted long
	// decode above did mutate buf, so start fresh from raw).
	copy(buf, raw)
	var shortErasures []int
	shortCount := 0
	for _, e := range erasures {
		if e < protocol.DownlinkShortBytes {
			shortCount++
			if len(shortErasures) < protocol.DownlinkShortParityBytes {
				shortErasures = append(shortErasures, e+c.downlinkShort.pad)
			}
		}
	}
	if shortCount > protocol.DownlinkShortParityBytes {
		return nil, 0, false
	}

	n = c.downlinkShort.decode(buf[:protocol.DownlinkShortBytes], shortErasures)
	if n >= 0 && n <= protocol.DownlinkShortParityBytes && (buf[0]>>3) == 0 {
		out := make([]byte, protocol.DownlinkShortDataBytes)
		copy(out, buf[:protocol.DownlinkShortDataBytes])
		return out, n, true
	}

	return nil, 0, false
}

// CorrectUplink deinterleaves a 552-byte raw uplink frame into six
// 92-byte blocks, corrects each independently, and concatenates the
// 72-byte data halves in block order. Any single block failing fails
// the whole frame.
func (c *Codec) CorrectUplink(raw []byte, erasures []int) (data []byte, corrected int, ok bool) {
	if len(raw) != protocol.UplinkBytes {
		return nil, 0, false
	}

	out := make([]byte, 0, protocol.UplinkDataBytes)
	total := 0

	for block := 0; block < protocol.UplinkBlocks; block++ {
		blockData := make([]byte, protocol.UplinkBlockBytes)
		for i := 0; i < protocol.UplinkBlockBytes; i++ {
			blockData[i] = raw[i*protocol.UplinkBlocks+block]
		}

		var blockErasures []int
		numErasures := 0
		for _, idx := range erasures {
			if idx%protocol.UplinkBlocks == block {
				numErasures++
				if len(blockErasures) < protocol.UplinkBlockParityBytes {
					blockErasures = append(blockErasures, idx/protocol.UplinkBlocks+c.uplinkBlock.pad)
				}
			}
		}
		if numErasures > protocol.UplinkBlockParityBytes {
			return nil, 0, false
		}

		n := c.uplinkBlock.decode(blockData, blockErasures)
		if n < 0 || n > protocol.UplinkBlockParityBytes {
			return nil, 0, false
		}
		total += n
		out = append(out, blockData[:protocol.UplinkBlockDataBytes]...)
	}

	return out, total, true
}
