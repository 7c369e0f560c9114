//go:build cgo

// Copyright (c) 2012-2017 Joseph D Poirier
// Distributable under the terms of The New BSD License
// that can be found in the LICENSE file.

// Package rtlsdr wraps librtlsdr (via github.com/jpoirier/gortlsdr)
// to tune an RTL2832-based dongle to the fixed 978 MHz UAT band and
// stream timestamped IQ chunks. It is a thin adapter that turns
// librtlsdr's async-callback API into the same source.Chunk channel
// the file/stdin sources use.
package rtlsdr

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	rtlsdr "github.com/jpoirier/gortlsdr"
	"github.com/sirupsen/logrus"

	"uat978/internal/protocol"
	"uat978/internal/source"
	"uat978/internal/uaterr"
)

// Frequency is fixed at the UAT channel center; the CLI surface never
// exposes a frequency flag, only gain/ppm/antenna/stream/device
// settings.
const Frequency = 978_000_000

// BufferChunkSize is the unit of the read size requested from
// librtlsdr; Run asks for 16*BufferChunkSize bytes per callback.
const BufferChunkSize = 16384

// Options captures the --sdr-* CLI flags.
type Options struct {
	Gain           int // tenths of a dB; ignored if AutoGain
	AutoGain       bool
	PPM            int
	Antenna        string
	StreamSettings string // "key=value,key=value", driver-specific
	DeviceSettings string
}

// Device wraps one open RTL-SDR dongle.
type Device struct {
	dev    *rtlsdr.Context
	logger *logrus.Logger
	opts   Options

	// OnDrop, if set, is invoked once per chunk dropped because the
	// consumer queue was full.
	OnDrop func()
}

// Open opens the device named by indexOrSerial: a bare integer is
// treated as a device index, anything else as a serial number looked
// up via librtlsdr's enumeration.
func Open(indexOrSerial string, logger *logrus.Logger) (*Device, error) {
	count := rtlsdr.GetDeviceCount()
	if count == 0 {
		return nil, uaterr.Config("rtlsdr: open", errors.New("no RTL-SDR devices found"))
	}

	index, err := resolveIndex(indexOrSerial, count)
	if err != nil {
		return nil, uaterr.Config("rtlsdr: open", err)
	}

	dev, err := rtlsdr.Open(index)
	if err != nil {
		return nil, uaterr.IO("rtlsdr: open", err)
	}
	return &Device{dev: dev, logger: logger}, nil
}

func resolveIndex(indexOrSerial string, count int) (int, error) {
	if n, err := strconv.Atoi(indexOrSerial); err == nil {
		if n < 0 || n >= count {
			return 0, fmt.Errorf("device index %d out of range (0-%d)", n, count-1)
		}
		return n, nil
	}
	for i := 0; i < count; i++ {
		_, _, serial, err := rtlsdr.GetDeviceUsbStrings(i)
		if err == nil && serial == indexOrSerial {
			return i, nil
		}
	}
	return 0, fmt.Errorf("no RTL-SDR device with serial %q", indexOrSerial)
}

// Configure tunes the device to the fixed UAT frequency/sample rate
// and applies opts.
func (d *Device) Configure(opts Options) error {
	d.opts = opts

	if err := d.dev.SetCenterFreq(Frequency); err != nil {
		return uaterr.IO("rtlsdr: set frequency", err)
	}
	if err := d.dev.SetSampleRate(protocol.SampleRate); err != nil {
		return uaterr.IO("rtlsdr: set sample rate", err)
	}
	if err := d.dev.SetFreqCorrection(opts.PPM); err != nil {
		return uaterr.IO("rtlsdr: set ppm", err)
	}

	if opts.AutoGain {
		if err := d.dev.SetTunerGainMode(false); err != nil {
			return uaterr.IO("rtlsdr: set auto gain", err)
		}
	} else {
		if err := d.dev.SetTunerGainMode(true); err != nil {
			return uaterr.IO("rtlsdr: set manual gain mode", err)
		}
		if err := d.dev.SetTunerGain(opts.Gain); err != nil {
			return uaterr.IO("rtlsdr: set gain", err)
		}
	}

	if opts.Antenna != "" {
		// Antenna port selection has no standard librtlsdr ioctl;
		// record intent for diagnostics on dongles that need a
		// driver-specific follow-up (e.g. via device settings).
		d.logger.WithField("antenna", opts.Antenna).Debug("rtlsdr: antenna selection requested, driver-specific")
	}
	for k, v := range parseSettings(opts.StreamSettings) {
		d.logger.WithFields(logrus.Fields{"key": k, "value": v}).Debug("rtlsdr: stream setting")
	}
	for k, v := range parseSettings(opts.DeviceSettings) {
		d.logger.WithFields(logrus.Fields{"key": k, "value": v}).Debug("rtlsdr: device setting")
	}

	if err := d.dev.ResetBuffer(); err != nil {
		return uaterr.IO("rtlsdr: reset buffer", err)
	}

	d.logger.WithFields(logrus.Fields{
		"frequency":   Frequency,
		"sample_rate": protocol.SampleRate,
		"gain":        opts.Gain,
		"auto_gain":   opts.AutoGain,
		"ppm":         opts.PPM,
	}).Info("rtlsdr: device configured")
	return nil
}

func parseSettings(s string) map[string]string {
	out := map[string]string{}
	for _, kv := range strings.Split(s, ",") {
		kv = strings.TrimSpace(kv)
		if kv == "" {
			continue
		}
		eq := strings.IndexByte(kv, '=')
		if eq < 0 {
			continue
		}
		out[kv[:eq]] = kv[eq+1:]
	}
	return out
}

// Run streams IQ chunks to out until ctx is done or the driver
// reports an unrecoverable error. Chunks whose send would block
// because out is full are dropped and counted rather than blocking
// the capture callback.
func (d *Device) Run(ctx context.Context, out chan<- source.Chunk) error {
	bufLen := 16 * BufferChunkSize

	dropped := 0
	callback := func(data []byte) {
		chunk := source.Chunk{TimestampMs: nowMs(), Data: append([]byte(nil), data...)}
		select {
		case out <- chunk:
		case <-ctx.Done():
		default:
			dropped++
			if d.OnDrop != nil {
				d.OnDrop()
			}
			if dropped%logEvery == 1 {
				d.logger.WithField("dropped", dropped).Warn("rtlsdr: dropping chunk, consumer queue full")
			}
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- d.dev.ReadAsync(callback, nil, 0, bufLen)
	}()

	select {
	case <-ctx.Done():
		if err := d.dev.CancelAsync(); err != nil {
			d.logger.WithError(err).Warn("rtlsdr: cancel async")
		}
		<-errCh
		return ctx.Err()
	case err := <-errCh:
		if err != nil {
			return uaterr.IO("rtlsdr: read async", err)
		}
		return nil
	}
}

func nowMs() int64 { return time.Now().UnixMilli() }

// logEvery throttles the dropped-chunk warning to roughly every 15s
// worth of full-rate chunks of 16*BufferChunkSize bytes.
const logEvery = (15 * protocol.SampleRate * 2) / (16 * BufferChunkSize)

// Close releases the device.
func (d *Device) Close() error {
	if d.dev == nil {
		return nil
	}
	if err := d.dev.Close(); err != nil {
		return uaterr.IO("rtlsdr: close", err)
	}
	return nil
}
