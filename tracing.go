package mtdp

import "github.com/opentracing/opentracing-go"

// startSpan begins a span for one driver step call if a tracer is
// configured, otherwise returns nil. Every Source/Stage/Sink driver calls
// this around its user Process callback so that a configured tracer sees
// one span per buffer processed.
func startSpan(tracer opentracing.Tracer, operation string) opentracing.Span {
	if tracer == nil {
		return nil
	}
	return tracer.StartSpan(operation)
}

func finishSpan(span opentracing.Span) {
	if span == nil {
		return
	}
	span.Finish()
}
