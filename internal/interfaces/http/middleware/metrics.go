package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/propledger/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// byte buckets reach into megabytes for xlsx and pdf statement downloads
var (
	requestSizeBuckets  = []float64{128, 512, 1 << 10, 4 << 10, 16 << 10, 64 << 10, 256 << 10, 1 << 20}
	responseSizeBuckets = []float64{128, 512, 1 << 10, 4 << 10, 16 << 10, 64 << 10, 256 << 10, 1 << 20, 4 << 20, 16 << 20}
)

// ledgerRoutes maps the first path segment under /api/v1 to a ledger kind label
var ledgerRoutes = map[string]string{
	"rent":       "rent",
	"services":   "services",
	"unit-bills": "unit_bill",
}

type httpInstruments struct {
	requests     *telemetry.Counter
	duration     *telemetry.Histogram
	requestSize  *telemetry.Histogram
	responseSize *telemetry.Histogram
	inFlight     metric.Int64UpDownCounter
}

func newHTTPInstruments(meter metric.Meter) (*httpInstruments, error) {
	var (
		ins httpInstruments
		err error
	)
	if ins.requests, err = telemetry.NewCounter(meter,
		"http_server_request_total", "Total number of HTTP requests", "{request}"); err != nil {
		return nil, err
	}

	histograms := []struct {
		dst  **telemetry.Histogram
		opts telemetry.HistogramOpts
	}{
		{&ins.duration, telemetry.HistogramOpts{
			Name: "http_server_request_duration_seconds", Description: "HTTP request latency in seconds",
			Unit: "s", Boundaries: telemetry.HTTPDurationBuckets,
		}},
		{&ins.requestSize, telemetry.HistogramOpts{
			Name: "http_server_request_size_bytes", Description: "HTTP request body size in bytes",
			Unit: "By", Boundaries: requestSizeBuckets,
		}},
		{&ins.responseSize, telemetry.HistogramOpts{
			Name: "http_server_response_size_bytes", Description: "HTTP response body size in bytes",
			Unit: "By", Boundaries: responseSizeBuckets,
		}},
	}
	for _, h := range histograms {
		if *h.dst, err = telemetry.NewHistogram(meter, h.opts); err != nil {
			return nil, err
		}
	}

	if ins.inFlight, err = meter.Int64UpDownCounter("http_server_active_requests",
		metric.WithDescription("HTTP requests currently being served"),
		metric.WithUnit("{request}")); err != nil {
		return nil, err
	}
	return &ins, nil
}

// HTTPMetrics records request count, latency, body sizes and in-flight
// requests by method, route pattern and ledger kind. A nil meter or failed
// instrument setup yields a pass-through middleware.
func HTTPMetrics(meter metric.Meter) gin.HandlerFunc {
	if meter == nil {
		return passThrough
	}
	ins, err := newHTTPInstruments(meter)
	if err != nil {
		return passThrough
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()

		ins.inFlight.Add(ctx, 1)
		c.Next()
		ins.inFlight.Add(ctx, -1)

		route := routePattern(c)
		attrs := []attribute.KeyValue{
			telemetry.AttrHTTPMethod.String(c.Request.Method),
			telemetry.AttrHTTPRoute.String(route),
		}
		if kind := ledgerKindOf(route); kind != "" {
			attrs = append(attrs, telemetry.AttrLedgerKind.String(kind))
		}

		ins.requests.Inc(ctx, append(attrs, telemetry.AttrHTTPStatusCode.Int(c.Writer.Status()))...)
		ins.duration.RecordDuration(ctx, time.Since(start), attrs...)
		if n := c.Request.ContentLength; n > 0 {
			ins.requestSize.Record(ctx, float64(n), attrs...)
		}
		if n := c.Writer.Size(); n > 0 {
			ins.responseSize.Record(ctx, float64(n), attrs...)
		}
	}
}

func passThrough(c *gin.Context) {
	c.Next()
}

// routePattern uses the matched route to keep label cardinality bounded
func routePattern(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unknown"
}

func ledgerKindOf(route string) string {
	rest, ok := strings.CutPrefix(route, "/api/v1/")
	if !ok {
		return ""
	}
	segment, _, _ := strings.Cut(rest, "/")
	return ledgerRoutes[segment]
}
