// Package source implements the file and stdin sample sources: thin
// adapters that read raw IQ bytes in fixed-size chunks and hand them,
// timestamped, to whatever consumes them (normally a receiver.Receiver
// via the application's pipeline goroutine), mirroring the
// channel-fed shape an async SDR capture callback delivers but over a
// blocking read loop.
package source

import (
	"context"
	"fmt"
	"io"
	"time"

	"uat978/internal/protocol"
	"uat978/internal/uaterr"
)

// Chunk is one timestamped slice of raw IQ bytes handed to a consumer.
type Chunk struct {
	TimestampMs int64
	Data        []byte
}

// chunkSamples is the number of samples read per chunk, chosen so a
// file replay produces similarly sized bursts to a live SDR capture.
const chunkSamples = 16384

// FileSource reads raw IQ bytes from an io.Reader (an open file or
// os.Stdin) in fixed-size chunks.
type FileSource struct {
	r         io.Reader
	bps       int
	realtime  bool
	chunkSize int
}

// New builds a FileSource for the given IQ layout. If realtime is
// true, each chunk is paced to take as long as it would at the fixed
// UAT sample rate, so a pre-recorded file drives downstream timing
// (and any rate-sensitive TCP consumer) the same way a live SDR would;
// if false, the file is read as fast as possible (the common case for
// batch testing against a recording).
func New(r io.Reader, layout protocol.Layout, realtime bool) *FileSource {
	bps := layout.BytesPerSample()
	return &FileSource{
		r:         r,
		bps:       bps,
		realtime:  realtime,
		chunkSize: chunkSamples * bps,
	}
}

// Run reads chunks until EOF, ctx cancellation, or a read error, and
// sends each one to out. It returns nil on a clean EOF (graceful
// shutdown, not an error), ctx.Err() if canceled, or a uaterr.IO-wrapped
// error on any other read failure.
func (s *FileSource) Run(ctx context.Context, out chan<- Chunk) error {
	buf := make([]byte, s.chunkSize)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := io.ReadFull(s.r, buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			chunk := Chunk{TimestampMs: time.Now().UnixMilli(), Data: data}
			select {
			case out <- chunk:
			case <-ctx.Done():
				return ctx.Err()
			}
			if s.realtime {
				s.sleepFor(n)
			}
		}

		if err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil
			}
			return uaterr.IO("source: read", err)
		}
	}
}

// sleepFor blocks for the wall-clock duration n raw bytes would occupy
// at the fixed UAT sample rate.
func (s *FileSource) sleepFor(n int) {
	samples := n / s.bps
	d := time.Duration(float64(samples) / protocol.SampleRate * float64(time.Second))
	time.Sleep(d)
}

// ErrUnsupportedFormat is returned when --format names a layout the
// converter doesn't implement; it is a configuration error (exit 64).
func ErrUnsupportedFormat(format string) error {
	return uaterr.Config("source: format", fmt.Errorf("unsupported sample format %q", format))
}
