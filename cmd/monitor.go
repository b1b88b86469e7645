package cmd

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/CraigKelly/bayesmc/sampler"
)

// monitor publishes chain progress as Prometheus metrics. It is a
// sampler.Observer shared by all chains.
type monitor struct {
	registry *prometheus.Registry
	stopped  chan struct{}
	server   *http.Server
	listener net.Listener

	Phase      *prometheus.GaugeVec
	Iteration  *prometheus.GaugeVec
	Acceptance *prometheus.GaugeVec
	Events     *prometheus.CounterVec
	Failures   prometheus.Counter
	RunTime    prometheus.Gauge
}

func newMonitor() *monitor {
	m := &monitor{
		registry: prometheus.NewRegistry(),
		Phase: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "bayesmc",
			Name:      "chain_phase",
			Help:      "Current phase of each chain (0 = seeking start .. 5 = failed)",
		}, []string{"chain"}),
		Iteration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "bayesmc",
			Name:      "chain_iteration",
			Help:      "Iteration of the last checkpoint in the current phase",
		}, []string{"chain"}),
		Acceptance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "bayesmc",
			Name:      "chain_acceptance_ratio",
			Help:      "Acceptance ratio since the previous checkpoint",
		}, []string{"chain"}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bayesmc",
			Name:      "events_total",
			Help:      "Progress events by phase",
		}, []string{"phase"}),
		Failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bayesmc",
			Name:      "chain_failures_total",
			Help:      "Chains that ended in the FAILED phase",
		}),
		RunTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bayesmc",
			Name:      "run_seconds",
			Help:      "Wall clock seconds since the run started",
		}),
	}

	m.registry.MustRegister(m.Phase, m.Iteration, m.Acceptance, m.Events, m.Failures, m.RunTime)
	return m
}

// Observe implements sampler.Observer
func (m *monitor) Observe(e sampler.Event) {
	chain := strconv.Itoa(e.Chain)
	m.Phase.WithLabelValues(chain).Set(float64(e.Phase))
	m.Iteration.WithLabelValues(chain).Set(float64(e.Iteration))
	if e.Iteration > 0 {
		m.Acceptance.WithLabelValues(chain).Set(e.Acceptance)
	}
	m.Events.WithLabelValues(e.Phase.String()).Inc()
	if e.Phase == sampler.Failed {
		m.Failures.Inc()
	}
}

// Start serves the metrics at /metrics on addr
func (m *monitor) Start(addr string) error {
	if m.server != nil {
		return errors.Errorf("BUG: You may only start the process monitor once")
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "Monitor could not listen on %s", addr)
	}
	m.listener = ln

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	// Help the user and redirect to the only thing currently available
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/metrics", http.StatusTemporaryRedirect)
	})

	m.stopped = make(chan struct{})
	m.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		defer close(m.stopped)
		m.server.Serve(ln)
	}()

	fmt.Fprintf(os.Stderr, "HTTP now available at %v (see /metrics)\n", ln.Addr())
	return nil
}

// Addr is the address the monitor listens on, once started
func (m *monitor) Addr() string {
	if m.listener == nil {
		return ""
	}
	return m.listener.Addr().String()
}

// Stop shuts down the server, if it was started
func (m *monitor) Stop() {
	if m.server == nil {
		return
	}

	m.server.Close()

	select {
	case <-m.stopped:
		fmt.Fprintf(os.Stderr, "HTTP Info Stopped\n")
	case <-time.After(2 * time.Second):
		fmt.Fprintf(os.Stderr, "HTTP would NOT stop: just continuing on\n")
	}
}
