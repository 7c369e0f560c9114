//go:build !cgo

// Package rtlsdr: on builds without cgo (e.g. cross-compiled or
// Windows-without-toolchain builds) the gortlsdr binding is
// unavailable, so --sdr is a configuration error rather than a
// missing symbol at link time.
package rtlsdr

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"uat978/internal/source"
	"uat978/internal/uaterr"
)

const Frequency = 978_000_000

type Options struct {
	Gain           int
	AutoGain       bool
	PPM            int
	Antenna        string
	StreamSettings string
	DeviceSettings string
}

type Device struct {
	OnDrop func()
}

func Open(indexOrSerial string, logger *logrus.Logger) (*Device, error) {
	return nil, uaterr.Config("rtlsdr: open", fmt.Errorf("RTL-SDR support requires a cgo build (librtlsdr); this binary was built without cgo"))
}

func (d *Device) Configure(opts Options) error { return unsupported() }

func (d *Device) Run(ctx context.Context, out chan<- source.Chunk) error { return unsupported() }

func (d *Device) Close() error { return nil }

func unsupported() error {
	return uaterr.Config("rtlsdr", fmt.Errorf("RTL-SDR support requires a cgo build (librtlsdr)"))
}
