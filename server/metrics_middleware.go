package server

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/flintfs/flint"
)

// NewMetricsMiddleware returns a middleware that records per-operation
// request counts, latencies, and in-flight requests. The metrics are
// registered against reg as a side effect.
func NewMetricsMiddleware(reg prometheus.Registerer) Middleware {
	mm := &metricsMiddleware{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "flint",
				Name:      "requests_total",
				Help:      "Total number of FUSE requests handled.",
			},
			[]string{"op", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "flint",
				Name:      "request_duration_seconds",
				Help:      "Duration of FUSE request handling in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10), // 100us to ~26s
			},
			[]string{"op"},
		),
		inflight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "flint",
				Name:      "requests_in_flight",
				Help:      "Number of FUSE requests currently being handled.",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(mm.requestsTotal, mm.requestDuration, mm.inflight)
	}
	return mm
}

type metricsMiddleware struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	inflight        prometheus.Gauge
}

func (mm *metricsMiddleware) HandleRequest(ctx context.Context, hdr *flint.RequestHeader, req flint.Request, invoker Invoker) (flint.Response, error) {
	mm.inflight.Inc()
	start := time.Now()

	resp, err := invoker(ctx, hdr, req)

	mm.inflight.Dec()
	mm.requestDuration.WithLabelValues(hdr.Op.String()).Observe(time.Since(start).Seconds())
	mm.requestsTotal.WithLabelValues(hdr.Op.String(), statusLabel(err)).Inc()
	return resp, err
}

func statusLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return errorForResponse(err).Error()
}
