package demod

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uat978/internal/fec"
	"uat978/internal/fec/fectest"
	"uat978/internal/protocol"
)

func newDemod() *Demodulator {
	return New(fec.New())
}

func buildFrame(syncWord uint64, raw []byte) []uint16 {
	phase := fectest.SyncWordPhase(syncWord)
	payload := fectest.ModulatePhase(raw)
	return append(phase, payload...)
}

func downlinkLongRaw() []byte {
	var data [protocol.DownlinkLongDataBytes]byte
	for i := range data {
		data[i] = byte(i * 3)
	}
	return fectest.DownlinkLong(data)
}

func downlinkShortRaw() []byte {
	var data [protocol.DownlinkShortDataBytes]byte
	for i := range data {
		data[i] = byte(i*5 + 1)
	}
	return fectest.DownlinkShort(data)
}

func uplinkRaw() []byte {
	var blocks [protocol.UplinkBlocks][]byte
	for b := 0; b < protocol.UplinkBlocks; b++ {
		var data [protocol.UplinkBlockDataBytes]byte
		for i := range data {
			data[i] = byte(i + b*10)
		}
		blocks[b] = fectest.UplinkBlock(data)
	}
	return fectest.InterleaveUplink(blocks)
}

func TestDemodulate_DownlinkLong_NoErrors(t *testing.T) {
	raw := downlinkLongRaw()
	phase := buildFrame(protocol.DownlinkSyncWord, raw)
	phase = append(phase, make([]uint16, protocol.TrailingSamples)...)

	d := newDemod()
	frames := d.Demodulate(phase, 0, len(phase))

	require.Len(t, frames, 1)
	assert.False(t, frames[0].Uplink)
	assert.Equal(t, 0, frames[0].CorrectedErrors)
	assert.Equal(t, raw[:protocol.DownlinkLongDataBytes], frames[0].Payload)
}

func TestDemodulate_DownlinkShort_NoErrors(t *testing.T) {
	raw := downlinkShortRaw()
	phase := buildFrame(protocol.DownlinkSyncWord, raw)
	phase = append(phase, make([]uint16, protocol.TrailingSamples)...)

	d := newDemod()
	frames := d.Demodulate(phase, 0, len(phase))

	require.Len(t, frames, 1)
	assert.False(t, frames[0].Uplink)
	assert.Equal(t, raw[:protocol.DownlinkShortDataBytes], frames[0].Payload)
}

func TestDemodulate_Uplink_NoErrors(t *testing.T) {
	raw := uplinkRaw()
	phase := buildFrame(protocol.UplinkSyncWord, raw)
	phase = append(phase, make([]uint16, protocol.TrailingSamples)...)

	d := newDemod()
	frames := d.Demodulate(phase, 0, len(phase))

	require.Len(t, frames, 1)
	assert.True(t, frames[0].Uplink)
	assert.Len(t, frames[0].Payload, protocol.UplinkDataBytes)
}

func TestDemodulate_DownlinkLong_CorrectableErrors(t *testing.T) {
	raw := downlinkLongRaw()
	// Flip a handful of bytes, within the 7-symbol correction capacity
	// of a 14-root code.
	raw[1] ^= 0xFF
	raw[10] ^= 0x55
	raw[40] ^= 0x0F

	phase := buildFrame(protocol.DownlinkSyncWord, raw)
	phase = append(phase, make([]uint16, protocol.TrailingSamples)...)

	d := newDemod()
	frames := d.Demodulate(phase, 0, len(phase))

	require.Len(t, frames, 1)
	assert.Equal(t, 3, frames[0].CorrectedErrors)
}

func TestDemodulate_SyncWord_FourBitErrorsStillMatches(t *testing.T) {
	raw := downlinkLongRaw()
	corrupted := protocol.DownlinkSyncWord ^ 0xF // 4 low bits flipped
	phase := buildFrame(corrupted, raw)
	phase = append(phase, make([]uint16, protocol.TrailingSamples)...)

	d := newDemod()
	frames := d.Demodulate(phase, 0, len(phase))

	require.Len(t, frames, 1)
}

func TestDemodulate_SyncWord_FiveBitErrorsNoMatch(t *testing.T) {
	raw := downlinkLongRaw()
	corrupted := protocol.DownlinkSyncWord ^ 0x1F // 5 low bits flipped
	phase := buildFrame(corrupted, raw)
	phase = append(phase, make([]uint16, protocol.TrailingSamples)...)

	d := newDemod()
	frames := d.Demodulate(phase, 0, len(phase))

	assert.Len(t, frames, 0)
}

func TestDemodulate_BackToBackFrames(t *testing.T) {
	raw1 := downlinkLongRaw()
	raw2 := downlinkShortRaw()

	phase := buildFrame(protocol.DownlinkSyncWord, raw1)
	phase = append(phase, buildFrame(protocol.DownlinkSyncWord, raw2)...)
	phase = append(phase, make([]uint16, protocol.TrailingSamples)...)

	d := newDemod()
	frames := d.Demodulate(phase, 0, len(phase))

	require.Len(t, frames, 2)
	assert.Equal(t, raw1[:protocol.DownlinkLongDataBytes], frames[0].Payload)
	assert.Equal(t, raw2[:protocol.DownlinkShortDataBytes], frames[1].Payload)
}

func TestDemodulate_TailReuseAcrossChunkBoundary(t *testing.T) {
	raw := uplinkRaw()
	full := buildFrame(protocol.UplinkSyncWord, raw)
	full = append(full, make([]uint16, protocol.TrailingSamples)...)

	d := newDemod()

	// Split at every offset across the sync word and early payload and
	// confirm exactly one frame is ever found in total, by feeding the
	// trailing NumTrailingSamples() of chunk one back in as the head of
	// chunk two (the contract Demodulate places on callers).
	for split := 1; split < len(full)-protocol.TrailingSamples; split++ {
		trailing := d.NumTrailingSamples()
		first := d.Demodulate(full, 0, split)
		tailStart := split - trailing
		if tailStart < 0 {
			tailStart = 0
		}
		second := d.Demodulate(full, tailStart, len(full))
		assert.Equal(t, 1, len(first)+len(second), "split at %d produced %d frames", split, len(first)+len(second))
	}
}

func TestDemodulate_ShortBufferReturnsNoFrames(t *testing.T) {
	d := newDemod()
	phase := make([]uint16, protocol.TrailingSamples-1)
	frames := d.Demodulate(phase, 0, len(phase))
	assert.Len(t, frames, 0)
}

func TestDemodulate_AutoCenterDecodesCleanFrame(t *testing.T) {
	raw := downlinkLongRaw()
	phase := buildFrame(protocol.DownlinkSyncWord, raw)
	phase = append(phase, make([]uint16, protocol.TrailingSamples)...)

	d := NewWithPolicy(fec.New(), SliceAutoCenter)
	frames := d.Demodulate(phase, 0, len(phase))

	require.Len(t, frames, 1)
	assert.Equal(t, raw[:protocol.DownlinkLongDataBytes], frames[0].Payload)
	assert.Equal(t, 0, frames[0].CorrectedErrors)
}

// biasedSyncPhase renders the sync word with a common-mode phase-delta
// offset added to every bit: ones step by bias+swing, zeros by
// bias-swing, so the correct slicing center is bias rather than zero.
func biasedSyncPhase(word uint64, bias, swing int16) []uint16 {
	out := make([]uint16, 2*protocol.SyncBits)
	cur := uint16(0)
	for i := 0; i < protocol.SyncBits; i++ {
		out[2*i] = cur
		if (word>>uint(protocol.SyncBits-1-i))&1 != 0 {
			cur += uint16(bias + swing)
		} else {
			cur += uint16(bias - swing)
		}
		out[2*i+1] = cur
	}
	return out
}

func TestSyncCenter_RecoversCommonModeBias(t *testing.T) {
	phase := biasedSyncPhase(protocol.DownlinkSyncWord, 1000, 2000)
	center, ok := syncCenter(phase, 0, protocol.DownlinkSyncWord)
	require.True(t, ok)
	assert.InDelta(t, 1000, int(center), 2)
}

func TestSyncCenter_RejectsWrongPattern(t *testing.T) {
	phase := biasedSyncPhase(protocol.UplinkSyncWord, 0, 2000)
	_, ok := syncCenter(phase, 0, protocol.DownlinkSyncWord)
	assert.False(t, ok)
}

func TestSyncWordMatch(t *testing.T) {
	assert.True(t, syncWordMatch(protocol.DownlinkSyncWord, protocol.DownlinkSyncWord))
	assert.True(t, syncWordMatch(protocol.DownlinkSyncWord^0xF, protocol.DownlinkSyncWord))
	assert.False(t, syncWordMatch(protocol.DownlinkSyncWord^0x1F, protocol.DownlinkSyncWord))
	assert.False(t, syncWordMatch(protocol.UplinkSyncWord, protocol.DownlinkSyncWord))
}
