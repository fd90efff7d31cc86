// Package telemetry wires the service's two loggers and its Prometheus
// gauges: logrus for service lifecycle, zap for the fulfiller's
// per-request hot loop.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
)

// Telemetry bundles the loggers and metrics every component accepts as a
// constructor dependency rather than reaching for package-level globals.
type Telemetry struct {
	Log  *logrus.Logger
	ZLog *zap.Logger

	QueuedRequests prometheus.Gauge
	WorkersBusy    prometheus.Gauge
	Fulfilled      prometheus.Counter
	Unfulfillable  prometheus.Counter
}

// New builds a Telemetry with a logrus logger at the given level, a
// production zap logger, and a private Prometheus registry so tests can
// construct multiple instances without colliding on the default registry.
func New(level logrus.Level) (*Telemetry, *prometheus.Registry, error) {
	log := logrus.New()
	log.SetLevel(level)
	log.SetFormatter(&logrus.JSONFormatter{})

	zlog, err := zap.NewProduction()
	if err != nil {
		return nil, nil, err
	}

	reg := prometheus.NewRegistry()
	t := &Telemetry{
		Log:  log,
		ZLog: zlog,
		QueuedRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tee_fulfiller_queued_proof_requests",
			Help: "Number of proof requests currently waiting for a worker.",
		}),
		WorkersBusy: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tee_fulfiller_workers_busy",
			Help: "Number of GPU workers currently processing a request.",
		}),
		Fulfilled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tee_fulfiller_requests_fulfilled_total",
			Help: "Total requests that reached the Fulfilled terminal state.",
		}),
		Unfulfillable: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tee_fulfiller_requests_unfulfillable_total",
			Help: "Total requests that reached the Unfulfillable terminal state.",
		}),
	}
	reg.MustRegister(t.QueuedRequests, t.WorkersBusy, t.Fulfilled, t.Unfulfillable)
	return t, reg, nil
}
