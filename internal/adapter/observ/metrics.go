// Package observ holds the Prometheus collectors for the order API.
package observ

import (
	domain "github.com/aq2208/gorder-store/internal/entity"
	"github.com/aq2208/gorder-store/internal/usecase"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "gorder"

// Recorder implements usecase.Recorder.
type Recorder struct {
	placed      prometheus.Counter
	orderValue  prometheus.Histogram
	failed      *prometheus.CounterVec
	compensated prometheus.Counter
	unrestored  prometheus.Counter
	transitions *prometheus.CounterVec
}

func NewRecorder(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		placed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_placed_total",
			Help:      "Orders successfully placed",
		}),
		orderValue: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_total_amount",
			Help:      "Grand total of placed orders",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500},
		}),
		failed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_placement_failures_total",
			Help:      "Rejected or failed placements by error kind",
		}, []string{"kind"}),
		compensated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_compensations_total",
			Help:      "Line items whose stock reservation was given back",
		}),
		unrestored: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_restore_failures_total",
			Help:      "Line items of cancelled orders whose stock could not be given back",
		}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_status_transitions_total",
			Help:      "Order status changes",
		}, []string{"from", "to"}),
	}
}

func (r *Recorder) OrderPlaced(total float64) {
	r.placed.Inc()
	r.orderValue.Observe(total)
}

func (r *Recorder) PlacementFailed(kind string) { r.failed.WithLabelValues(kind).Inc() }

func (r *Recorder) StockCompensated(items int) { r.compensated.Add(float64(items)) }

func (r *Recorder) RestockFailed(items int) { r.unrestored.Add(float64(items)) }

func (r *Recorder) StatusChanged(from, to domain.Status) {
	r.transitions.WithLabelValues(string(from), string(to)).Inc()
}

var _ usecase.Recorder = (*Recorder)(nil)

type HTTPMetrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	f := promauto.With(reg)
	return &HTTPMetrics{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		Duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_ms",
			Help:    "Duration of HTTP requests in ms",
			Buckets: []float64{5, 10, 25, 50, 100, 200, 400, 800, 1600},
		}, []string{"method", "path"}),
	}
}
