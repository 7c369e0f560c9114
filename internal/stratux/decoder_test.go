package stratux

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildFrameBytes(length int, rssi int8, rawTs uint32) []byte {
	out := make([]byte, headerLen+length)
	copy(out[:4], syncWord[:])
	binary.LittleEndian.PutUint16(out[4:6], uint16(length))
	out[6] = byte(rssi)
	binary.LittleEndian.PutUint32(out[7:11], rawTs)
	for i := 0; i < length; i++ {
		out[headerLen+i] = byte(i)
	}
	return out
}

func TestDecoder_SingleDownlinkFrame(t *testing.T) {
	d := NewDecoder()
	raw := buildFrameBytes(DownlinkLongPayloadLen, -20, 1000)

	frames := d.Feed(raw)
	require.Len(t, frames, 1)
	assert.False(t, frames[0].Uplink)
	assert.Equal(t, -20.0, frames[0].RSSIDbfs)
	assert.Equal(t, uint32(1000), frames[0].RawTimestamp)
	assert.Len(t, frames[0].Payload, DownlinkLongPayloadLen)
}

func TestDecoder_UplinkFrame(t *testing.T) {
	d := NewDecoder()
	raw := buildFrameBytes(UplinkPayloadLen, 5, 500)
	frames := d.Feed(raw)
	require.Len(t, frames, 1)
	assert.True(t, frames[0].Uplink)
	assert.Len(t, frames[0].Payload, UplinkPayloadLen)
}

func TestDecoder_SplitAcrossFeedCalls(t *testing.T) {
	d := NewDecoder()
	raw := buildFrameBytes(DownlinkLongPayloadLen, 0, 42)

	for split := 1; split < len(raw); split++ {
		d2 := NewDecoder()
		var got []Frame
		got = append(got, d2.Feed(raw[:split])...)
		got = append(got, d2.Feed(raw[split:])...)
		require.Lenf(t, got, 1, "split at %d", split)
		assert.Equal(t, DownlinkLongPayloadLen, len(got[0].Payload))
	}
	_ = d
}

func TestDecoder_UnrecognizedLengthIsDropped(t *testing.T) {
	d := NewDecoder()
	bogus := buildFrameBytes(99, 0, 0)
	good := buildFrameBytes(DownlinkLongPayloadLen, 0, 1)

	frames := d.Feed(append(bogus, good...))
	require.Len(t, frames, 1)
	assert.Equal(t, DownlinkLongPayloadLen, len(frames[0].Payload))
}

func TestDecoder_TwoBackToBackFrames(t *testing.T) {
	d := NewDecoder()
	f1 := buildFrameBytes(DownlinkLongPayloadLen, 0, 100)
	f2 := buildFrameBytes(UplinkPayloadLen, 0, 200)

	frames := d.Feed(append(f1, f2...))
	require.Len(t, frames, 2)
	assert.False(t, frames[0].Uplink)
	assert.True(t, frames[1].Uplink)
}

func TestDecoder_TimestampAnchorsOnFirstMessage(t *testing.T) {
	d := NewDecoder()
	f1 := d.Feed(buildFrameBytes(DownlinkLongPayloadLen, 0, 1000))
	require.Len(t, f1, 1)
	anchor := f1[0].SystemTimestampMs

	// 4000 ticks/ms: a raw delta of 40000 should be +10ms.
	f2 := d.Feed(buildFrameBytes(DownlinkLongPayloadLen, 0, 1000+40000))
	require.Len(t, f2, 1)
	assert.Equal(t, anchor+10, f2[0].SystemTimestampMs)
}
