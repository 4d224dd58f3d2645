// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

// Package ext contains the Datadog-specific attribute keys and sampling
// priority values used when reporting tracked resources.
package ext

// Correlation attribute keys attached to resource reports. They allow
// the RUM intake to link a resource event to the APM trace emitted for
// the same request.
const (
	// TraceID holds the decimal string of the trace identifier injected
	// into the request, set only when the request was traced.
	TraceID = "_dd.trace_id"

	// SpanID holds the decimal string of the span identifier injected
	// into the request, set only when the request was traced.
	SpanID = "_dd.span_id"

	// RulePSR holds the tracing sample rate as a fraction in [0,1]. It
	// is reported on every instrumented request, traced or not.
	RulePSR = "_dd.rule_psr"
)

// Sampling priorities carried by the x-datadog-sampling-priority header.
const (
	// PriorityAutoReject informs the backend that a trace should be
	// rejected and not stored.
	PriorityAutoReject = 0

	// PriorityAutoKeep informs the backend that a trace should be kept.
	PriorityAutoKeep = 1
)
