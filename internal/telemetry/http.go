package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	// HTTPInstrumentationName names the meter and tracer of the status server
	HTTPInstrumentationName = "github.com/seedpost/seedpost/http"

	unknownRoute = "unknown_route"
)

// HTTPInstrumentation records a server span and request metrics for every
// request to the status server, except for the paths it is told to ignore
type HTTPInstrumentation struct {
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
	duration   metric.Float64Histogram
	requests   metric.Int64Counter
	ignored    map[string]bool
}

// HTTPOption configures HTTPInstrumentation
type HTTPOption func(*HTTPInstrumentation)

// WithIgnoredPaths leaves requests to paths uninstrumented, e.g. probes and
// the metrics scrape
func WithIgnoredPaths(paths ...string) HTTPOption {
	return func(h *HTTPInstrumentation) {
		for _, p := range paths {
			h.ignored[p] = true
		}
	}
}

// NewHTTPInstrumentation builds request instrumentation. A nil provider
// disables that half: no spans without a tracer provider, no metrics
// without a meter provider.
func NewHTTPInstrumentation(
	meterProvider metric.MeterProvider,
	tracerProvider trace.TracerProvider,
	opts ...HTTPOption,
) (*HTTPInstrumentation, error) {
	h := &HTTPInstrumentation{
		propagator: otel.GetTextMapPropagator(),
		ignored:    make(map[string]bool),
	}
	for _, opt := range opts {
		opt(h)
	}

	if tracerProvider != nil {
		h.tracer = tracerProvider.Tracer(HTTPInstrumentationName)
	}

	if meterProvider != nil {
		meter := meterProvider.Meter(HTTPInstrumentationName)

		var err error
		h.duration, err = meter.Float64Histogram(
			"seedpost_http_request_duration_seconds",
			metric.WithDescription("Duration of status server requests in seconds"),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5),
		)
		if err != nil {
			return nil, err
		}

		h.requests, err = meter.Int64Counter(
			"seedpost_http_requests_total",
			metric.WithDescription("Status server requests by route and status class"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			return nil, err
		}
	}

	return h, nil
}

// Middleware instruments next
func (h *HTTPInstrumentation) Middleware(next http.Handler) http.Handler {
	if h == nil || h.tracer == nil && h.requests == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.ignored[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		ctx := r.Context()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		var span trace.Span
		if h.tracer != nil {
			ctx = h.propagator.Extract(ctx, propagation.HeaderCarrier(r.Header))
			ctx, span = h.tracer.Start(ctx, r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.URLPath(r.URL.Path),
				),
			)
			defer span.End()
			r = r.WithContext(ctx)
		}

		next.ServeHTTP(ww, r)

		route := routePattern(r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		if span != nil {
			span.SetName(r.Method + " " + route)
			span.SetAttributes(
				semconv.HTTPRouteKey.String(route),
				semconv.HTTPResponseStatusCode(status),
			)
			if status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(status))
			}
		}

		if h.requests != nil {
			attrs := metric.WithAttributes(
				attribute.String("method", r.Method),
				attribute.String("route", route),
				attribute.String("status_class", statusClass(status)),
			)
			h.duration.Record(ctx, time.Since(start).Seconds(), attrs)
			h.requests.Add(ctx, 1, attrs)
		}
	})
}

// routePattern returns the chi route pattern of a served request. Unmatched
// paths share one label value.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return unknownRoute
}

func statusClass(code int) string {
	return fmt.Sprintf("%dxx", code/100)
}
