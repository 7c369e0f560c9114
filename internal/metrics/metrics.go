// Package metrics exposes the receiver pipeline's Prometheus counters
// and gauges on an optional HTTP listener, grounded in
// madpsy-ka9q_ubersdr's use of github.com/prometheus/client_golang for
// receiver/session counters.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles every counter/gauge the receiver pipeline and TCP
// output layer update.
type Metrics struct {
	FramesDecoded    *prometheus.CounterVec
	RSErrorsCorrected prometheus.Counter
	RSFailures       prometheus.Counter
	DroppedSDRChunks prometheus.Counter
	ConnectedClients *prometheus.GaugeVec
	registry         *prometheus.Registry
}

// New builds a Metrics bundle registered against a fresh registry (not
// the global default, so multiple receivers in tests don't collide).
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		FramesDecoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uat978_frames_decoded_total",
			Help: "UAT frames successfully demodulated and FEC-corrected, by kind.",
		}, []string{"kind"}),
		RSErrorsCorrected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "uat978_rs_errors_corrected_total",
			Help: "Total Reed-Solomon symbols corrected across all decoded frames.",
		}),
		RSFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "uat978_rs_failures_total",
			Help: "Demodulated candidate frames that failed Reed-Solomon correction.",
		}),
		DroppedSDRChunks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "uat978_sdr_dropped_chunks_total",
			Help: "Raw IQ chunks dropped because the receiver's input queue was full.",
		}),
		ConnectedClients: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "uat978_tcp_clients",
			Help: "Currently connected TCP clients, by listener.",
		}, []string{"listener"}),
		registry: reg,
	}
	reg.MustRegister(m.FramesDecoded, m.RSErrorsCorrected, m.RSFailures, m.DroppedSDRChunks, m.ConnectedClients)
	return m
}

// Handler returns the /metrics HTTP handler, exposed separately from
// Serve so tests can exercise it without a live socket.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve runs an HTTP server exposing /metrics on addr until ctx is
// done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		return srv.Close()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
