package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Store interface {
	Registry() *prometheus.Registry
	RegisterCollector(c prometheus.Collector)
	Handler() http.Handler

	// Collection
	IncRequests(route, method string, status int)
	ObserveRequest(route string, d time.Duration)
	ObserveCompute(d time.Duration)
	ObserveLoad(d time.Duration, err error)
}

type metricsStore struct {
	registry    *prometheus.Registry
	Requests    *prometheus.CounterVec
	RequestTime *prometheus.HistogramVec
	ComputeTime prometheus.Histogram
	LoadTime    prometheus.Gauge
	LoadErrors  prometheus.Counter
}

var (
	RouteLabel  = "route"
	MethodLabel = "method"
	StatusLabel = "status"
)

func NewStore() Store {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(reg)
	return &metricsStore{
		registry: reg,
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "covidboard_http_requests_total",
			Help: "HTTP requests served, by route, method and status",
		}, []string{RouteLabel, MethodLabel, StatusLabel}),
		RequestTime: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "covidboard_http_request_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{RouteLabel}),
		ComputeTime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "covidboard_compute_seconds",
			Help:    "Time spent filtering and aggregating one dashboard pass",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		LoadTime: factory.NewGauge(prometheus.GaugeOpts{
			Name: "covidboard_dataset_load_seconds",
			Help: "Duration of the last successful dataset load",
		}),
		LoadErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "covidboard_dataset_load_errors_total",
			Help: "Failed dataset loads",
		}),
	}
}

func (ms *metricsStore) Registry() *prometheus.Registry {
	return ms.registry
}

func (ms *metricsStore) RegisterCollector(c prometheus.Collector) {
	ms.registry.MustRegister(c)
}

func (ms *metricsStore) Handler() http.Handler {
	return promhttp.HandlerFor(ms.Registry(), promhttp.HandlerOpts{Registry: ms.Registry()})
}

func (ms *metricsStore) IncRequests(route, method string, status int) {
	ms.Requests.With(prometheus.Labels{
		RouteLabel:  route,
		MethodLabel: method,
		StatusLabel: strconv.Itoa(status),
	}).Inc()
}

func (ms *metricsStore) ObserveRequest(route string, d time.Duration) {
	ms.RequestTime.With(prometheus.Labels{RouteLabel: route}).Observe(d.Seconds())
}

func (ms *metricsStore) ObserveCompute(d time.Duration) {
	ms.ComputeTime.Observe(d.Seconds())
}

func (ms *metricsStore) ObserveLoad(d time.Duration, err error) {
	if err != nil {
		ms.LoadErrors.Inc()
		return
	}
	ms.LoadTime.Set(d.Seconds())
}
