// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

package tracer

import "github.com/twozeronine/dd-sdk-go/ddrum/ext"

// SpanContext carries the identifiers and sampling decision of the
// single client span created for an outgoing request. The tracking
// client emits exactly one span per traced request and does not build a
// span tree, so the span identifier doubles as the parent identifier
// communicated downstream. A SpanContext is immutable once created.
type SpanContext struct {
	traceID uint64
	spanID  uint64
	sampled bool
}

// NewSpanContext creates a span context from the given identifiers and
// sampling decision.
func NewSpanContext(traceID, spanID uint64, sampled bool) *SpanContext {
	return &SpanContext{traceID: traceID, spanID: spanID, sampled: sampled}
}

// TraceID returns the trace identifier.
func (c *SpanContext) TraceID() uint64 { return c.traceID }

// SpanID returns the span identifier.
func (c *SpanContext) SpanID() uint64 { return c.spanID }

// Sampled reports whether downstream collectors should keep the trace.
func (c *SpanContext) Sampled() bool { return c.sampled }

// samplingPriority returns the Datadog priority value encoding the
// sampling decision.
func (c *SpanContext) samplingPriority() int {
	if c.sampled {
		return ext.PriorityAutoKeep
	}
	return ext.PriorityAutoReject
}
