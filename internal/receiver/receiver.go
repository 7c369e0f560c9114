// Package receiver owns the stateful sample-to-message pipeline: it
// buffers raw IQ bytes across chunks, converts them to phase and
// magnitude-squared samples, runs the demodulator, and turns each
// returned frame into a timestamped, RSSI-stamped message.RawMessage.
//
// A Receiver is not safe for concurrent use; callers that need
// concurrent access (e.g. the application's single sample-source
// goroutine) should serialize calls to HandleSamples themselves.
package receiver

import (
	"math"

	"uat978/internal/convert"
	"uat978/internal/demod"
	"uat978/internal/fec"
	"uat978/internal/message"
	"uat978/internal/protocol"
)

// Receiver converts sample chunks into RawMessages, preserving a tail
// of raw bytes between calls so that frames straddling a chunk
// boundary are still found, and found exactly once.
type Receiver struct {
	converter   convert.Converter
	demod       *demod.Demodulator
	bps         int
	sampleBuf   []byte
	phaseBuf    []uint16
	magsqBuf    []float64
	savedBytes  int // bytes carried over from the previous call, at the front of sampleBuf
	trailingLen int // trailing samples retained, in samples
}

// New builds a Receiver for the given IQ layout.
func New(layout protocol.Layout) *Receiver {
	return NewWithCodec(layout, fec.New())
}

// NewWithCodec builds a Receiver using a caller-supplied FEC codec,
// letting multiple receivers share one Codec's lookup tables.
func NewWithCodec(layout protocol.Layout, codec *fec.Codec) *Receiver {
	d := demod.New(codec)
	return &Receiver{
		converter:   convert.New(layout),
		demod:       d,
		bps:         layout.BytesPerSample(),
		trailingLen: d.NumTrailingSamples(),
	}
}

// HandleSamples appends a new chunk of raw IQ bytes (timestamped in
// milliseconds since the Unix epoch) to the receiver's buffer,
// demodulates, and returns the RawMessages found. The trailing samples
// needed to catch a frame straddling the end of this chunk are kept
// internally and reused on the next call.
func (r *Receiver) HandleSamples(chunkTimestampMs int64, data []byte) []message.RawMessage {
	total := r.savedBytes + len(data)
	if cap(r.sampleBuf) < total {
		grown := make([]byte, total)
		copy(grown, r.sampleBuf[:r.savedBytes])
		r.sampleBuf = grown
	} else {
		r.sampleBuf = r.sampleBuf[:total]
	}
	copy(r.sampleBuf[r.savedBytes:total], data)

	nSamples := total / r.bps
	usable := nSamples * r.bps
	r.sampleBuf = r.sampleBuf[:usable]

	if cap(r.phaseBuf) < nSamples {
		r.phaseBuf = make([]uint16, 0, nSamples)
	} else {
		r.phaseBuf = r.phaseBuf[:0]
	}
	r.phaseBuf = r.converter.ConvertPhase(r.sampleBuf, r.phaseBuf)

	frames := r.demod.Demodulate(r.phaseBuf, 0, len(r.phaseBuf))

	out := make([]message.RawMessage, 0, len(frames))
	for _, f := range frames {
		rssi := r.rssi(f.SampleBegin, f.SampleEnd)
		ts := chunkTimestampMs - msFromSamples(r.savedBytes/r.bps) + msFromSamples(f.SampleBegin)

		var rm message.RawMessage
		var ok bool
		if f.Uplink {
			rm, ok = message.NewUplink(f.Payload, ts, f.CorrectedErrors, rssi, 0)
		} else {
			rm, ok = message.NewDownlink(f.Payload, ts, f.CorrectedErrors, rssi, 0)
		}
		if ok {
			out = append(out, rm)
		}
	}

	r.retainTail(len(r.phaseBuf))
	return out
}

// msFromSamples converts a sample count at the fixed UAT sample rate
// into milliseconds without losing precision to integer truncation
// order.
func msFromSamples(samples int) int64 {
	return int64(float64(samples) * 1000.0 / protocol.SampleRate)
}

// rssi computes 10*log10(mean(magsq)) over [begin,end) in the phase
// buffer, re-converting the corresponding raw bytes to magnitude
// squared. Returns -1000 dBFS for a zero-power span.
func (r *Receiver) rssi(begin, end int) float64 {
	n := end - begin
	if n <= 0 {
		return -1000
	}
	byteBegin := begin * r.bps
	byteEnd := end * r.bps
	if byteEnd > len(r.sampleBuf) {
		byteEnd = len(r.sampleBuf)
	}
	if cap(r.magsqBuf) < n {
		r.magsqBuf = make([]float64, 0, n)
	} else {
		r.magsqBuf = r.magsqBuf[:0]
	}
	r.magsqBuf = r.converter.ConvertMagSq(r.sampleBuf[byteBegin:byteEnd], r.magsqBuf)

	var total float64
	for _, v := range r.magsqBuf {
		total += v
	}
	if total == 0 {
		return -1000
	}
	return 10 * math.Log10(total/float64(len(r.magsqBuf)))
}

// retainTail keeps the trailing NumTrailingSamples samples (or
// everything, if fewer) as the prefix for the next call.
func (r *Receiver) retainTail(nSamples int) {
	keep := r.trailingLen
	if nSamples < keep {
		keep = nSamples
	}
	keepBytes := keep * r.bps
	start := len(r.sampleBuf) - keepBytes
	copy(r.sampleBuf[:keepBytes], r.sampleBuf[start:])
	r.sampleBuf = r.sampleBuf[:keepBytes]
	r.savedBytes = keepBytes
}
