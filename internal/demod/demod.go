// Package demod implements the UAT frame synchronizer and
// demodulator: a stateless, per-call sliding correlator that finds
// downlink/uplink sync words in a phase buffer and differentially
// decodes the bits that follow, handing raw bytes off to the FEC
// codec for correction.
package demod

import (
	"uat978/internal/fec"
	"uat978/internal/protocol"
)

// Frame is one successfully demodulated and FEC-corrected message.
type Frame struct {
	// Payload is the corrected data bytes: 18 (downlink short), 34
	// (downlink long), or 432 (uplink, deinterleaved).
	Payload []byte
	// Uplink is true if this frame used the uplink sync word/codec.
	Uplink bool
	// CorrectedErrors is the number of RS symbols corrected.
	CorrectedErrors int
	// SampleBegin and SampleEnd bound the phase-sample span the frame
	// occupied, [SampleBegin, SampleEnd).
	SampleBegin, SampleEnd int
}

// SlicerPolicy selects how the bit slicer's decision thresholds are
// chosen for each candidate frame.
type SlicerPolicy int

const (
	// SliceFixedZero slices every bit against a fixed threshold of
	// zero, producing no erasures. This is the default policy.
	SliceFixedZero SlicerPolicy = iota
	// SliceAutoCenter derives a per-frame center from the matched sync
	// word (the midpoint of its mean one-bit and zero-bit phase
	// deltas) and slices against that instead, rejecting the candidate
	// if the sync word re-checked against the derived center still has
	// too many bit errors.
	SliceAutoCenter
)

// Demodulator holds only the FEC codec (itself stateless across
// calls) and the configured slicer policy; Demodulate carries no
// state between invocations beyond its own local loop variables.
type Demodulator struct {
	fec    *fec.Codec
	policy SlicerPolicy
}

func New(codec *fec.Codec) *Demodulator {
	return NewWithPolicy(codec, SliceFixedZero)
}

func NewWithPolicy(codec *fec.Codec, policy SlicerPolicy) *Demodulator {
	return &Demodulator{fec: codec, policy: policy}
}

// NumTrailingSamples is the number of trailing phase samples a caller
// must retain and re-present at the start of its next Demodulate call,
// so that a sync word or frame straddling the end of this call's
// window is found exactly once.
func (d *Demodulator) NumTrailingSamples() int {
	return protocol.TrailingSamples
}

// syncWordMatch reports whether word is within MaxSyncErrors bit flips
// of expected, short-circuiting as soon as it has seen one too many.
func syncWordMatch(word, expected uint64) bool {
	if word == expected {
		return true
	}
	diff := word ^ expected
	for i := 0; i < protocol.MaxSyncErrors; i++ {
		diff &= diff - 1
		if diff == 0 {
			return true
		}
	}
	return false
}

// Demodulate searches phase[begin:end] for UAT frames and returns them
// in the order found. It emits only frames whose sync word starts
// before end-NumTrailingSamples()-1, and every such frame ends by end.
// The caller must re-present the last NumTrailingSamples() samples at
// the start of its next call, where frames starting later are found (a
// frame starting one sample before that tail is seen there through the
// offset+1 slice), so a frame straddling the boundary is found once.
func (d *Demodulator) Demodulate(phase []uint16, begin, end int) []Frame {
	var frames []Frame

	trailing := protocol.TrailingSamples
	if end-begin < trailing {
		return frames
	}
	limit := end - trailing
	// Keep probing until the last sync word starting before limit has
	// been fully shifted in; starts at limit-1 or later are left to the
	// next call.
	searchEnd := limit + (protocol.SyncBits-1)*2

	syncBits := 0
	var sync0, sync1 uint64

	for probe := begin; probe < searchEnd; probe += 2 {
		d0 := protocol.PhaseDiff(phase[probe], phase[probe+1])
		d1 := protocol.PhaseDiff(phase[probe+1], phase[probe+2])

		sync0 = ((sync0 << 1) | boolBit(d0 > 0)) & protocol.SyncMask36
		sync1 = ((sync1 << 1) | boolBit(d1 > 0)) & protocol.SyncMask36

		syncBits++
		if syncBits < protocol.SyncBits {
			continue
		}

		if syncWordMatch(sync0, protocol.DownlinkSyncWord) && probe-protocol.SyncBits*2+2 < limit-1 {
			start := probe - protocol.SyncBits*2 + 2
			if frame, ok := d.demodBest(phase, start, false); ok {
				probe = frame.SampleEnd - 2
				syncBits = 0
				frames = append(frames, frame)
				continue
			}
		}
		if syncWordMatch(sync1, protocol.DownlinkSyncWord) && probe-protocol.SyncBits*2+3 < limit-1 {
			start := probe - protocol.SyncBits*2 + 3
			if frame, ok := d.demodBest(phase, start, false); ok {
				probe = frame.SampleEnd - 2
				syncBits = 0
				frames = append(frames, frame)
				continue
			}
		}
		if syncWordMatch(sync0, protocol.UplinkSyncWord) && probe-protocol.SyncBits*2+2 < limit-1 {
			start := probe - protocol.SyncBits*2 + 2
			if frame, ok := d.demodBest(phase, start, true); ok {
				probe = frame.SampleEnd - 2
				syncBits = 0
				frames = append(frames, frame)
				continue
			}
		}
		if syncWordMatch(sync1, protocol.UplinkSyncWord) && probe-protocol.SyncBits*2+3 < limit-1 {
			start := probe - protocol.SyncBits*2 + 3
			if frame, ok := d.demodBest(phase, start, true); ok {
				probe = frame.SampleEnd - 2
				syncBits = 0
				frames = append(frames, frame)
				continue
			}
		}
	}

	return frames
}

func boolBit(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// demodBest tries demodulating at both start and start+1 and keeps
// whichever has fewer corrected errors.
func (d *Demodulator) demodBest(phase []uint16, start int, uplink bool) (Frame, bool) {
	var f0, f1 Frame
	var ok0, ok1 bool
	if uplink {
		f0, ok0 = d.demodOneUplink(phase, start)
		f1, ok1 = d.demodOneUplink(phase, start+1)
	} else {
		f0, ok0 = d.demodOneDownlink(phase, start)
		f1, ok1 = d.demodOneDownlink(phase, start+1)
	}
	if !ok0 && !ok1 {
		return Frame{}, false
	}
	errors0, errors1 := 9999, 9999
	if ok0 {
		errors0 = f0.CorrectedErrors
	}
	if ok1 {
		errors1 = f1.CorrectedErrors
	}
	if errors0 <= errors1 {
		return f0, ok0
	}
	return f1, ok1
}

// syncCenter computes the per-frame slicing center for SliceAutoCenter:
// the midpoint between the mean phase delta of the sync word's one bits
// and that of its zero bits. It then re-checks the sync word against
// the derived center and reports false if more than MaxSyncErrors bits
// still disagree.
func syncCenter(phase []uint16, start int, pattern uint64) (int16, bool) {
	var zeroTotal, oneTotal int32
	var zeroBits, oneBits int32
	for i := 0; i < protocol.SyncBits; i++ {
		d := int32(protocol.PhaseDiff(phase[start+i*2], phase[start+i*2+1]))
		if pattern&(1<<uint(protocol.SyncBits-1-i)) != 0 {
			oneBits++
			oneTotal += d
		} else {
			zeroBits++
			zeroTotal += d
		}
	}
	center := int16((oneTotal/oneBits + zeroTotal/zeroBits) / 2)

	errorBits := 0
	for i := 0; i < protocol.SyncBits; i++ {
		d := protocol.PhaseDiff(phase[start+i*2], phase[start+i*2+1])
		if pattern&(1<<uint(protocol.SyncBits-1-i)) != 0 {
			if d < center {
				errorBits++
			}
		} else {
			if d > center {
				errorBits++
			}
		}
	}
	return center, errorBits <= protocol.MaxSyncErrors
}

// sliceThresholds resolves the policy's (zero, one) thresholds for a
// candidate whose sync word starts at phase[start].
func (d *Demodulator) sliceThresholds(phase []uint16, start int, pattern uint64) (zero, one int16, ok bool) {
	if d.policy == SliceAutoCenter {
		center, ok := syncCenter(phase, start, pattern)
		return center, center, ok
	}
	return 0, 0, true
}

// demodBits differentially decodes nbytes big-endian bytes starting at
// phase[start], using (zeroSlice, oneSlice] as the erasure band. It
// returns the decoded bytes and the ascending list of erased byte
// indices.
func demodBits(phase []uint16, start, nbytes int, zeroSlice, oneSlice int16) ([]byte, []int) {
	out := make([]byte, nbytes)
	var erasures []int
	p := start
	for i := 0; i < nbytes; i++ {
		var b byte
		erased := false
		for bit := 0; bit < 8; bit++ {
			d := protocol.PhaseDiff(phase[p], phase[p+1])
			if d > oneSlice {
				b |= 1 << (7 - bit)
			} else if d > zeroSlice {
				erased = true
			}
			p += 2
		}
		out[i] = b
		if erased {
			erasures = append(erasures, i)
		}
	}
	return out, erasures
}

func (d *Demodulator) demodOneDownlink(phase []uint16, start int) (Frame, bool) {
	if start < 0 || start+protocol.SyncBits*2+protocol.DownlinkLongBits*2 > len(phase) {
		return Frame{}, false
	}
	zero, one, ok := d.sliceThresholds(phase, start, protocol.DownlinkSyncWord)
	if !ok {
		return Frame{}, false
	}
	raw, erasures := demodBits(phase, start+protocol.SyncBits*2, protocol.DownlinkLongBytes, zero, one)
	data, corrected, ok := d.fec.CorrectDownlink(raw, erasures)
	if !ok {
		return Frame{}, false
	}
	bitLen := protocol.DownlinkLongBits
	if len(data) == protocol.DownlinkShortDataBytes {
		bitLen = protocol.DownlinkShortBits
	}
	return Frame{
		Payload:         data,
		Uplink:          false,
		CorrectedErrors: corrected,
		SampleBegin:     start,
		SampleEnd:       start + (protocol.SyncBits+bitLen)*2,
	}, true
}

func (d *Demodulator) demodOneUplink(phase []uint16, start int) (Frame, bool) {
	if start < 0 || start+protocol.SyncBits*2+protocol.UplinkBits*2 > len(phase) {
		return Frame{}, false
	}
	zero, one, ok := d.sliceThresholds(phase, start, protocol.UplinkSyncWord)
	if !ok {
		return Frame{}, false
	}
	raw, erasures := demodBits(phase, start+protocol.SyncBits*2, protocol.UplinkBytes, zero, one)
	data, corrected, ok := d.fec.CorrectUplink(raw, erasures)
	if !ok {
		return Frame{}, false
	}
	return Frame{
		Payload:         data,
		Uplink:          true,
		CorrectedErrors: corrected,
		SampleBegin:     start,
		SampleEnd:       start + (protocol.SyncBits+protocol.UplinkBits)*2,
	}, true
}
