package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/liamcoop/charges/internal/logger"
)

const namespace = "charges"

// Metrics records prediction outcomes for the /metrics endpoint.
type Metrics struct {
	registry    *prometheus.Registry
	predictions *prometheus.CounterVec
	failures    prometheus.Counter
	amounts     prometheus.Histogram
}

// New registers the charges collectors, the Go runtime collectors and the
// logger's warning and error counters on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Predictions rendered, by risk band.",
		}, []string{"band"}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_failures_total",
			Help:      "Submissions that ended in the generic error message.",
		}),
		amounts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "predicted_amount_dollars",
			Help:      "Predicted yearly charges.",
			Buckets:   []float64{0, 2000, 4000, 8000, 12000, 16000, 20000, 30000, 40000, 60000},
		}),
	}

	reg.MustRegister(
		m.predictions,
		m.failures,
		m.amounts,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_warnings_total",
			Help:      "Warnings logged, including sampled-out ones.",
		}, func() float64 { return float64(logger.TotalWarnings.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_errors_total",
			Help:      "Errors logged, including sampled-out ones.",
		}, func() float64 { return float64(logger.TotalErrors.Load()) }),
	)

	return m
}

// ObservePrediction counts a successful prediction.
func (m *Metrics) ObservePrediction(band string, amount float64) {
	m.predictions.WithLabelValues(band).Inc()
	m.amounts.Observe(amount)
}

// PredictionFailed counts a submission that failed.
func (m *Metrics) PredictionFailed() {
	m.failures.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
