package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"uat978/internal/fec"
	"uat978/internal/message"
	"uat978/internal/metrics"
	"uat978/internal/protocol"
	"uat978/internal/rawio"
	"uat978/internal/receiver"
	"uat978/internal/rtlsdr"
	"uat978/internal/source"
	"uat978/internal/stratux"
	"uat978/internal/tcpout"
	"uat978/internal/track"
	"uat978/internal/uat"
	"uat978/internal/uaterr"
)

// clientCountInterval is how often connected-client gauges are
// refreshed from each listener's live count.
const clientCountInterval = 5 * time.Second

// pruneInterval/pruneAge bound the aircraft table's growth: an
// address not heard from in pruneAge is dropped on the next tick.
const pruneInterval = 60 * time.Second
const pruneAge = 5 * time.Minute

// Application wires together exactly one sample source, the receiver
// pipeline (or, for a Stratux dongle, the FEC codec alone over an
// already-demodulated stream), the configured TCP output listeners,
// an optional metrics server, and the aircraft aggregation table, all
// under one cancellable context + errgroup: cancel on signal, wait for
// every goroutine, then close the hardware.
type Application struct {
	config Config
	logger *logrus.Logger

	codec   *fec.Codec
	tracker *track.Table
	metrics *metrics.Metrics

	listeners []*tcpout.Listener
}

// NewApplication builds an Application from a validated Config.
func NewApplication(config Config) *Application {
	logger := logrus.New()
	if config.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	return &Application{
		config:  config,
		logger:  logger,
		codec:   fec.New(),
		tracker: track.NewTable(),
		metrics: metrics.New(),
	}
}

// Start runs the application until a configuration/I-O error or
// SIGINT/SIGTERM. A clean shutdown (signal-triggered) returns nil; the
// exit-code mapping for any other error is left to the caller via
// uaterr.ExitCode.
func (app *Application) Start() error {
	app.logger.WithFields(logrus.Fields{
		"version":    Version,
		"build_time": BuildTime,
		"git_commit": GitCommit,
	}).Info("starting UAT 978 MHz receiver")

	ctx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	g, gctx := errgroup.WithContext(ctx)

	header := message.NewMetadata(map[string]string{
		"program": ProgramName,
		"version": Version,
		"fecfix":  "1",
	})

	for _, ln := range app.config.Listeners() {
		ln := ln
		format, err := tcpoutFormat(ln.Format)
		if err != nil {
			return err
		}
		listener := tcpout.New(ln.Addr, format, header, app.logger)
		app.listeners = append(app.listeners, listener)

		g.Go(func() error {
			stop := make(chan struct{})
			go func() { <-gctx.Done(); close(stop) }()
			if err := listener.Serve(stop); err != nil {
				return uaterr.IO("tcpout: "+ln.Addr, err)
			}
			return nil
		})
	}

	if app.config.MetricsPort != "" {
		g.Go(func() error { return app.metrics.Serve(gctx, app.config.MetricsPort) })
	}

	g.Go(func() error { return app.runPipeline(gctx) })
	g.Go(func() error { app.reportClientCounts(gctx); return nil })
	g.Go(func() error { app.prunePeriodically(gctx); return nil })

	waitErr := g.Wait()
	for _, l := range app.listeners {
		l.Close()
	}

	if ctx.Err() != nil {
		app.logger.Info("received shutdown signal, stopped cleanly")
		return nil
	}
	return waitErr
}

// tcpoutFormat maps a Listener.Format string to a tcpout.Format,
// rejecting anything else as a configuration error.
func tcpoutFormat(s string) (tcpout.Format, error) {
	switch s {
	case "raw":
		return tcpout.FormatRaw, nil
	case "raw-legacy":
		return tcpout.FormatRawLegacy, nil
	case "json":
		return tcpout.FormatJSON, nil
	default:
		return 0, uaterr.Config("app", fmt.Errorf("unknown listener format %q", s))
	}
}

// runPipeline dispatches to the sample-source pipeline or the Stratux
// serial pipeline depending on which input the config selected.
func (app *Application) runPipeline(ctx context.Context) error {
	if app.config.StratuxV3 != "" {
		return app.runStratux(ctx)
	}
	return app.runSampleSource(ctx)
}

// resolvedFormat returns the IQ layout name to use: explicit --format
// for file/stdin, or the fixed layout an SDR driver always delivers.
func (app *Application) resolvedFormat() string {
	if app.config.SDR != "" {
		return "cu8"
	}
	return app.config.Format
}

// runSampleSource drives a Receiver from one of the raw-byte sources
// (stdin, file, or RTL-SDR), publishing every RawMessage it decodes.
func (app *Application) runSampleSource(ctx context.Context) error {
	layout, ok := protocol.ParseLayout(app.resolvedFormat())
	if !ok {
		return uaterr.Config("app", fmt.Errorf("unsupported sample format %q", app.resolvedFormat()))
	}

	rcv := receiver.NewWithCodec(layout, app.codec)
	chunks := make(chan source.Chunk, 64)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.openSource(gctx, layout, chunks) })
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case chunk, ok := <-chunks:
				if !ok {
					return nil
				}
				for _, rm := range rcv.HandleSamples(chunk.TimestampMs, chunk.Data) {
					app.publish(rm)
				}
			}
		}
	})
	return g.Wait()
}

// openSource opens the one configured raw-byte input and runs it
// until ctx is done or it reaches EOF/an unrecoverable error, closing
// chunks on return so the consumer goroutine can exit.
func (app *Application) openSource(ctx context.Context, layout protocol.Layout, chunks chan<- source.Chunk) error {
	defer close(chunks)

	switch {
	case app.config.Stdin:
		return source.New(os.Stdin, layout, false).Run(ctx, chunks)

	case app.config.File != "":
		f, err := os.Open(app.config.File)
		if err != nil {
			return uaterr.IO("app: open file", err)
		}
		defer f.Close()
		return source.New(f, layout, false).Run(ctx, chunks)

	case app.config.SDR != "":
		dev, err := rtlsdr.Open(app.config.SDR, app.logger)
		if err != nil {
			return err
		}
		defer dev.Close()
		dev.OnDrop = app.metrics.DroppedSDRChunks.Inc
		if err := dev.Configure(rtlsdr.Options{
			Gain:           app.config.SDRGain,
			AutoGain:       app.config.SDRAutoGain,
			PPM:            app.config.SDRPPM,
			Antenna:        app.config.SDRAntenna,
			StreamSettings: app.config.SDRStreamSettings,
			DeviceSettings: app.config.SDRDeviceSettings,
		}); err != nil {
			return err
		}
		return dev.Run(ctx, chunks)

	default:
		return uaterr.Config("app", fmt.Errorf("no input source configured"))
	}
}

// runStratux reads a Stratux v3 dongle's serial framing, FEC-corrects
// each frame directly (the dongle has already demodulated bits), and
// publishes the result.
func (app *Application) runStratux(ctx context.Context) error {
	f, err := stratux.OpenSerial(app.config.StratuxV3, stratux.DefaultBaud)
	if err != nil {
		return err
	}

	dec := stratux.NewDecoder()
	buf := make([]byte, 4096)
	readDone := make(chan error, 1)

	go func() {
		for {
			n, err := f.Read(buf)
			if n > 0 {
				for _, frame := range dec.Feed(buf[:n]) {
					app.handleStratuxFrame(frame)
				}
			}
			if err != nil {
				readDone <- err
				return
			}
		}
	}()

	select {
	case <-ctx.Done():
		f.Close()
		<-readDone
		return ctx.Err()
	case err := <-readDone:
		f.Close()
		if err == io.EOF {
			return nil
		}
		return uaterr.IO("stratux: read", err)
	}
}

// handleStratuxFrame FEC-corrects one already-demodulated Stratux
// frame and publishes it on success, counting a failure otherwise.
func (app *Application) handleStratuxFrame(f stratux.Frame) {
	var data []byte
	var corrected int
	var ok bool
	if f.Uplink {
		data, corrected, ok = app.codec.CorrectUplink(f.Payload, nil)
	} else {
		data, corrected, ok = app.codec.CorrectDownlink(f.Payload, nil)
	}
	if !ok {
		app.metrics.RSFailures.Inc()
		return
	}

	var rm message.RawMessage
	if f.Uplink {
		rm, ok = message.NewUplink(data, f.SystemTimestampMs, corrected, f.RSSIDbfs, uint64(f.RawTimestamp))
	} else {
		rm, ok = message.NewDownlink(data, f.SystemTimestampMs, corrected, f.RSSIDbfs, uint64(f.RawTimestamp))
	}
	if ok {
		app.publish(rm)
	}
}

// publish decodes a downlink RawMessage's UAT payload (when possible),
// folds it into the aircraft table, updates metrics, and fans the
// message out to every configured listener and stdout duplicator.
func (app *Application) publish(rm message.RawMessage) {
	app.metrics.FramesDecoded.WithLabelValues(rm.Kind.String()).Inc()
	if rm.CorrectedErrors > 0 {
		app.metrics.RSErrorsCorrected.Add(float64(rm.CorrectedErrors))
	}

	var decoded *uat.Message
	if rm.IsDownlink() {
		m, err := uat.Decode(rm)
		if err != nil {
			app.logger.WithError(err).Debug("uat: payload decode failed")
		} else {
			decoded = m
			app.tracker.Observe(m)
		}
	}

	for _, l := range app.listeners {
		l.Publish(rm, decoded)
	}

	if app.config.RawStdout {
		if line, err := rawio.Format(rm); err == nil {
			os.Stdout.WriteString(line)
		}
	}
	if app.config.JSONStdout && decoded != nil {
		if b, err := decoded.MarshalJSON(); err == nil {
			os.Stdout.Write(b)
			os.Stdout.WriteString("\n")
		}
	}
}

// reportClientCounts periodically refreshes the connected-clients
// gauge for every listener, until ctx is done.
func (app *Application) reportClientCounts(ctx context.Context) {
	ticker := time.NewTicker(clientCountInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, l := range app.listeners {
				app.metrics.ConnectedClients.WithLabelValues(l.Addr()).Set(float64(l.ClientCount()))
			}
		}
	}
}

// prunePeriodically drops aircraft the tracker hasn't heard from in
// pruneAge, bounding the table's memory growth over a long-running
// receiver.
func (app *Application) prunePeriodically(ctx context.Context) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := app.tracker.Prune(time.Now().UnixMilli() - pruneAge.Milliseconds())
			if removed > 0 {
				app.logger.WithField("removed", removed).Debug("track: pruned stale aircraft")
			}
		}
	}
}
