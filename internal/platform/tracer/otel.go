package tracer

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName is the OpenTelemetry scope credledger spans are
// reported under.
const InstrumentationName = "credledger"

// remoteSpans call out to the content store or the ledger node and are
// exported as client spans so backends draw them as dependency edges.
var remoteSpans = map[string]bool{
	SpanIssuanceUpload:  true,
	SpanIssuanceSubmit:  true,
	SpanIssuanceConfirm: true,
	SpanVerifyContent:   true,
}

// OTelTracer reports coordinator and resolver spans to OpenTelemetry.
type OTelTracer struct {
	tracer trace.Tracer
}

type OTelOption func(*OTelTracer)

func WithOTelTracer(t trace.Tracer) OTelOption {
	return func(o *OTelTracer) {
		o.tracer = t
	}
}

// NewOTel reads from the global provider installed by Setup unless a tracer
// is injected.
func NewOTel(opts ...OTelOption) *OTelTracer {
	t := &OTelTracer{}
	for _, opt := range opts {
		opt(t)
	}
	if t.tracer == nil {
		t.tracer = otel.Tracer(InstrumentationName)
	}
	return t
}

func (t *OTelTracer) Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span) {
	kind := trace.SpanKindInternal
	if remoteSpans[name] {
		kind = trace.SpanKindClient
	}
	ctx, span := t.tracer.Start(ctx, name,
		trace.WithSpanKind(kind),
		trace.WithAttributes(convert(attrs)...),
	)
	return ctx, otelSpan{span: span}
}

type otelSpan struct {
	span trace.Span
}

// End marks the span failed for real errors. A caller giving up (cancel or
// deadline) is recorded as an event: the ledger write it interrupted may
// still land, so it is not a failure of the step.
func (s otelSpan) End(err error) {
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.span.AddEvent("caller_gave_up", trace.WithAttributes(attribute.String("reason", err.Error())))
	default:
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	}
	s.span.End()
}

func (s otelSpan) SetAttributes(attrs ...Attribute) {
	s.span.SetAttributes(convert(attrs)...)
}

func (s otelSpan) AddEvent(name string, attrs ...Attribute) {
	s.span.AddEvent(name, trace.WithAttributes(convert(attrs)...))
}

// convert maps attribute values onto OTel types. Ledger and content
// addresses arrive as fmt.Stringer and are exported in their text form.
func convert(attrs []Attribute) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, a := range attrs {
		switch v := a.Value.(type) {
		case string:
			out = append(out, attribute.String(a.Key, v))
		case bool:
			out = append(out, attribute.Bool(a.Key, v))
		case int64:
			out = append(out, attribute.Int64(a.Key, v))
		case int:
			out = append(out, attribute.Int(a.Key, v))
		case uint64:
			out = append(out, attribute.Int64(a.Key, int64(min(v, math.MaxInt64))))
		case fmt.Stringer:
			out = append(out, attribute.String(a.Key, v.String()))
		}
	}
	return out
}

var (
	_ Tracer = (*OTelTracer)(nil)
	_ Span   = otelSpan{}
)
