package rawio

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uat978/internal/message"
)

func TestFormat_DownlinkShortLine(t *testing.T) {
	payload := make([]byte, 18)
	payload[0] = 0x1A
	payload[17] = 0xFF
	m, ok := message.NewDownlink(payload, 1699999999123, 2, -12.34, 0)
	require.True(t, ok)

	line, err := Format(m)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(line, "-1a"))
	assert.Contains(t, line, "rs=2;")
	assert.Contains(t, line, "rssi=-12.3;")
	assert.Contains(t, line, "t=1699999999.123;")
	assert.True(t, strings.HasSuffix(line, "\n"))
}

func TestFormat_ZeroValuedKeysSuppressed(t *testing.T) {
	payload := make([]byte, 18)
	m, ok := message.NewDownlink(payload, 0, 0, 0, 0)
	require.True(t, ok)

	line, err := Format(m)
	require.NoError(t, err)
	assert.NotContains(t, line, "rs=")
	assert.NotContains(t, line, "rssi=")
	assert.NotContains(t, line, "t=")
	assert.NotContains(t, line, "rt=")
}

func TestFormat_MetadataLine(t *testing.T) {
	m := message.NewMetadata(map[string]string{"program": "uat978"})
	line, err := Format(m)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(line, "!;"))
	assert.Contains(t, line, "program=uat978;")
}

func TestRoundTrip_AllKinds(t *testing.T) {
	tests := []struct {
		name string
		size int
		kind message.Kind
	}{
		{"downlink short", 18, message.DownlinkShort},
		{"downlink long", 34, message.DownlinkLong},
		{"uplink", 432, message.Uplink},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := make([]byte, tt.size)
			for i := range payload {
				payload[i] = byte(i * 13)
			}
			orig := message.RawMessage{
				Kind:            tt.kind,
				Payload:         payload,
				ReceivedAtMs:    1700000000042,
				CorrectedErrors: 3,
				RssiDbfs:        -20.5,
				RawTimestamp:    99,
			}

			line, err := Format(orig)
			require.NoError(t, err)
			got, err := Parse(strings.TrimSuffix(line, "\n"))
			require.NoError(t, err)

			assert.Equal(t, orig.Kind, got.Kind)
			assert.Equal(t, orig.Payload, got.Payload)
			assert.Equal(t, orig.ReceivedAtMs, got.ReceivedAtMs)
			assert.Equal(t, orig.CorrectedErrors, got.CorrectedErrors)
			assert.InDelta(t, orig.RssiDbfs, got.RssiDbfs, 0.05)
			assert.Equal(t, orig.RawTimestamp, got.RawTimestamp)
		})
	}
}

func TestRoundTrip_Metadata(t *testing.T) {
	orig := message.NewMetadata(map[string]string{"program": "uat978", "fecfix": "1"})
	line, err := Format(orig)
	require.NoError(t, err)
	got, err := Parse(strings.TrimSuffix(line, "\n"))
	require.NoError(t, err)
	assert.Equal(t, message.Metadata, got.Kind)
	assert.Equal(t, orig.Fields, got.Fields)
}

func TestParse_RejectsBadPayloadLengths(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"empty", ""},
		{"no terminator", "-0011"},
		{"downlink wrong length", "-" + strings.Repeat("00", 20) + ";"},
		{"uplink wrong length", "+" + strings.Repeat("00", 48) + ";"},
		{"odd hex", "-" + strings.Repeat("00", 17) + "0;"},
		{"bad prefix", "*0011;"},
		{"metadata with payload", "!0011;"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.line)
			assert.Error(t, err)
		})
	}
}

func TestParse_IgnoresUnknownKeys(t *testing.T) {
	line := "-" + strings.Repeat("ab", 18) + ";rs=1;bogus=zzz;"
	m, err := Parse(line)
	require.NoError(t, err)
	assert.Equal(t, 1, m.CorrectedErrors)
}

func TestReader_EOFAfterLastLine(t *testing.T) {
	line := "-" + strings.Repeat("01", 18) + ";rs=1;\n"
	r := NewReader(strings.NewReader(line))

	m, err := r.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, message.DownlinkShort, m.Kind)

	_, err = r.ReadMessage()
	assert.Equal(t, io.EOF, err)
}

func TestWriter_WritesOneLinePerMessage(t *testing.T) {
	var sb strings.Builder
	w := NewWriter(&sb)

	payload := make([]byte, 18)
	m, ok := message.NewDownlink(payload, 0, 0, 0, 0)
	require.True(t, ok)
	require.NoError(t, w.WriteMessage(m))
	require.NoError(t, w.WriteMessage(m))

	lines := strings.Split(strings.TrimSuffix(sb.String(), "\n"), "\n")
	assert.Len(t, lines, 2)
}
