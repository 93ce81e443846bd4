package metrics

import (
	"net/http"
	"strconv"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dfryer1193/selfblog/blog/application"
	"github.com/dfryer1193/selfblog/blog/domain"
)

const namespace = "selfblog"

// Result labels.
const (
	ResultSuccess  = "success"
	ResultConflict = "conflict"
	ResultNotFound = "not_found"
	ResultTemplate = "template_error"
	ResultIO       = "io_error"
	ResultError    = "error"
)

var _ application.OperationObserver = (*Recorder)(nil)

// Recorder exposes lifecycle and HTTP metrics on a Prometheus registry.
type Recorder struct {
	registry      *prom.Registry
	opDuration    *prom.HistogramVec
	opResults     *prom.CounterVec
	httpRequests  *prom.CounterVec
	httpDurations *prom.HistogramVec
}

// NewRecorder registers every metric on reg, or on a fresh registry when reg
// is nil.
func NewRecorder(reg *prom.Registry) *Recorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}

	r := &Recorder{
		registry: reg,
		opDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of post lifecycle operations",
			Buckets:   prom.DefBuckets,
		}, []string{"operation"}),
		opResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "operation_results_total",
			Help:      "Post lifecycle operations by outcome",
		}, []string{"operation", "result"}),
		httpRequests: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		httpDurations: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prom.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(r.opDuration, r.opResults, r.httpRequests, r.httpDurations)
	return r
}

func (r *Recorder) ObserveOperation(op string, d time.Duration, err error) {
	if r == nil {
		return
	}
	r.opDuration.WithLabelValues(op).Observe(d.Seconds())
	r.opResults.WithLabelValues(op, Result(err)).Inc()
}

func (r *Recorder) ObserveRequest(method, route string, status int, d time.Duration) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.httpDurations.WithLabelValues(method, route).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Result maps an operation error to its result label.
func Result(err error) string {
	switch {
	case err == nil:
		return ResultSuccess
	case domain.IsConflict(err):
		return ResultConflict
	case domain.IsNotFound(err):
		return ResultNotFound
	case domain.IsTemplate(err):
		return ResultTemplate
	case domain.IsIO(err):
		return ResultIO
	default:
		return ResultError
	}
}
