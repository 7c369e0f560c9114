package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPhaseDiff_MatchesModularFormula(t *testing.T) {
	cases := []struct{ a, b uint16 }{
		{0, 0},
		{0, 1},
		{1, 0},
		{0, 32767},
		{0, 32768},
		{65535, 0},
		{0, 65535},
		{40000, 10000},
		{10000, 40000},
	}
	for _, tc := range cases {
		want := int16((int32(tc.b) - int32(tc.a) + 32768) % 65536 - 32768)
		assert.Equalf(t, want, PhaseDiff(tc.a, tc.b), "a=%d b=%d", tc.a, tc.b)
	}
}

func TestPhaseDiff_WraparoundIsSmallAngle(t *testing.T) {
	// A step across the 0/65535 boundary is a small angle, not a huge one.
	assert.Equal(t, int16(2), PhaseDiff(65535, 1))
	assert.Equal(t, int16(-2), PhaseDiff(1, 65535))
}

func TestLayout_BytesPerSample(t *testing.T) {
	assert.Equal(t, 2, LayoutCU8.BytesPerSample())
	assert.Equal(t, 2, LayoutCS8.BytesPerSample())
	assert.Equal(t, 4, LayoutCS16H.BytesPerSample())
	assert.Equal(t, 8, LayoutCF32H.BytesPerSample())
}

func TestParseLayout_CaseInsensitive(t *testing.T) {
	for _, s := range []string{"cu8", "CU8", "Cu8"} {
		l, ok := ParseLayout(s)
		assert.True(t, ok, s)
		assert.Equal(t, LayoutCU8, l)
	}
	_, ok := ParseLayout("cu16")
	assert.False(t, ok)
}

func TestTrailingSamples(t *testing.T) {
	assert.Equal(t, (SyncBits+UplinkBits)*2, TrailingSamples)
	assert.Equal(t, 8904, TrailingSamples)
}

func TestRSPad(t *testing.T) {
	assert.Equal(t, 225, RSPad(DownlinkShortBytes))
	assert.Equal(t, 207, RSPad(DownlinkLongBytes))
	assert.Equal(t, 163, RSPad(UplinkBlockBytes))
}
