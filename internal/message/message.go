// Package message defines RawMessage, the wire-agnostic unit the
// receiver pipeline produces: a demodulated/FEC-corrected UAT frame
// plus the metadata needed to log, serialize, or re-parse it.
package message

import "uat978/internal/protocol"

// Kind tags the payload length a RawMessage carries.
type Kind int

const (
	DownlinkShort Kind = iota
	DownlinkLong
	Uplink
	Metadata
)

func (k Kind) String() string {
	switch k {
	case DownlinkShort:
		return "downlink_short"
	case DownlinkLong:
		return "downlink_long"
	case Uplink:
		return "uplink"
	case Metadata:
		return "metadata"
	default:
		return "unknown"
	}
}

// KindForPayload classifies a decoded payload by its length, matching
// the three fixed data-byte sizes the FEC codec ever hands back.
func KindForPayload(n int) (Kind, bool) {
	switch n {
	case protocol.DownlinkShortDataBytes:
		return DownlinkShort, true
	case protocol.DownlinkLongDataBytes:
		return DownlinkLong, true
	case protocol.UplinkDataBytes:
		return Uplink, true
	default:
		return 0, false
	}
}

// RawMessage is either a decoded frame (Kind != Metadata, Payload set)
// or a metadata-only record (Kind == Metadata, Fields set).
type RawMessage struct {
	Kind Kind

	Payload []byte

	// ReceivedAtMs is milliseconds since the Unix epoch when the frame
	// was demodulated.
	ReceivedAtMs int64
	// CorrectedErrors is the number of RS symbols the FEC codec fixed.
	CorrectedErrors int
	// RssiDbfs is the frame's estimated signal power in dBFS.
	RssiDbfs float64
	// RawTimestamp is an optional hardware sample counter, 0 if absent.
	RawTimestamp uint64

	// Fields holds arbitrary key/value pairs for Kind == Metadata.
	Fields map[string]string
}

// NewDownlink builds a RawMessage for a downlink-short or -long frame.
func NewDownlink(payload []byte, receivedAtMs int64, corrected int, rssi float64, rawTimestamp uint64) (RawMessage, bool) {
	kind, ok := KindForPayload(len(payload))
	if !ok || kind == Uplink {
		return RawMessage{}, false
	}
	return RawMessage{
		Kind:            kind,
		Payload:         payload,
		ReceivedAtMs:    receivedAtMs,
		CorrectedErrors: corrected,
		RssiDbfs:        rssi,
		RawTimestamp:    rawTimestamp,
	}, true
}

// NewUplink builds a RawMessage for a deinterleaved 432-byte uplink
// frame.
func NewUplink(payload []byte, receivedAtMs int64, corrected int, rssi float64, rawTimestamp uint64) (RawMessage, bool) {
	if len(payload) != protocol.UplinkDataBytes {
		return RawMessage{}, false
	}
	return RawMessage{
		Kind:            Uplink,
		Payload:         payload,
		ReceivedAtMs:    receivedAtMs,
		CorrectedErrors: corrected,
		RssiDbfs:        rssi,
		RawTimestamp:    rawTimestamp,
	}, true
}

// NewMetadata builds a metadata-only RawMessage, e.g. the header line
// emitted at the start of a raw-port connection.
func NewMetadata(fields map[string]string) RawMessage {
	return RawMessage{Kind: Metadata, Fields: fields}
}

// IsDownlink reports whether m can be handed to the UAT payload
// decoder.
func (m RawMessage) IsDownlink() bool {
	return m.Kind == DownlinkShort || m.Kind == DownlinkLong
}
