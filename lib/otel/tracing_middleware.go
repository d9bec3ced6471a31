package otel

import (
	"net/http"

	"github.com/Simha-Reddy/SSVF-VetConnect/lib/httpserv"
	"github.com/Simha-Reddy/SSVF-VetConnect/lib/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/Simha-Reddy/SSVF-VetConnect"

func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// HandlerWithTracing starts a server span for every request handled by the given handler.
// The URL is recorded without its query, which carries subject identifiers.
func HandlerWithTracing(operationName string) func(http.HandlerFunc) http.HandlerFunc {
	return func(handler http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			ctx, span := Tracer().Start(
				r.Context(),
				operationName,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.method", r.Method),
					attribute.String("http.url", logging.SanitizeURL(r.URL).String()),
				),
			)
			defer span.End()

			recorder := httpserv.NewStatusRecorder(w)
			handler(recorder, r.WithContext(ctx))

			span.SetAttributes(attribute.Int("http.status_code", recorder.StatusCode))
			if recorder.StatusCode >= 400 {
				span.SetStatus(codes.Error, http.StatusText(recorder.StatusCode))
			} else {
				span.SetStatus(codes.Ok, "")
			}
		}
	}
}
