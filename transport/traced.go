// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// NewTracedTransport instruments rt with OpenTelemetry tracing, so each
// round trip, including every redirect hop and robots.txt fetch, gets
// its own client span and propagates the trace context. If rt is nil,
// a transport made by NewRoundTripper is used.
//
// The TracerProvider and propagator are injected explicitly instead of
// being taken from the global OpenTelemetry state.
func NewTracedTransport(rt http.RoundTripper, tp trace.TracerProvider, prop propagation.TextMapPropagator) http.RoundTripper {
	if rt == nil {
		rt = NewRoundTripper()
	}
	return otelhttp.NewTransport(rt,
		otelhttp.WithTracerProvider(tp),
		otelhttp.WithPropagators(prop),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return "opener " + r.Method
		}),
	)
}
