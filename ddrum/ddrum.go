// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

// Package ddrum contains the interfaces that connect the tracking HTTP
// client to a Real User Monitoring collector. The SDK does not ship a
// collector of its own: resource loads are reported through the Monitor
// interface, which is typically backed by the native Datadog RUM SDK of
// the host platform. Package "mockrum" provides a recording
// implementation to be used in tests.
package ddrum

// Monitor is the collector-facing interface used to report resource
// loads observed by the tracking HTTP client. Implementations must be
// safe for concurrent use: the client reports from arbitrarily many
// in-flight requests at once.
type Monitor interface {
	// StartResource reports the start of a resource load. The key is an
	// opaque correlation string owned by the caller; it is guaranteed to
	// be passed to exactly one of StopResource or StopResourceWithError
	// afterwards.
	StartResource(key, method, url string, attributes map[string]interface{})

	// StopResource reports the successful completion of the resource
	// load started with key. size is the response size in bytes, or -1
	// when unknown.
	StopResource(key string, statusCode int, kind ResourceType, size int64, attributes map[string]interface{})

	// StopResourceWithError reports the failure of the resource load
	// started with key. errorKind names the class of failure, message
	// describes it.
	StopResourceWithError(key, message, errorKind string, attributes map[string]interface{})

	// ShouldSampleTrace reports whether a trace started now would be
	// kept by the collector's sampling rules. It determines the sampling
	// priority carried by injected headers, independently of whether
	// headers are injected at all.
	ShouldSampleTrace() bool

	// TracingSamplingRate returns the percentage (0-100) of first-party
	// requests that should have tracing headers attached.
	TracingSamplingRate() float64
}

// Logger implementations are able to log given messages that the SDK
// might emit.
type Logger interface {
	// Log prints the given message.
	Log(msg string)
}

// NoopMonitor is an implementation of Monitor that discards all reports.
// It keeps header propagation fully enabled (sampling rate 100, traces
// sampled) so that the tracking client can be used for distributed
// tracing alone, without a RUM collector.
type NoopMonitor struct{}

var _ Monitor = (*NoopMonitor)(nil)

// StartResource implements Monitor.
func (NoopMonitor) StartResource(_, _, _ string, _ map[string]interface{}) {}

// StopResource implements Monitor.
func (NoopMonitor) StopResource(_ string, _ int, _ ResourceType, _ int64, _ map[string]interface{}) {
}

// StopResourceWithError implements Monitor.
func (NoopMonitor) StopResourceWithError(_, _, _ string, _ map[string]interface{}) {}

// ShouldSampleTrace implements Monitor.
func (NoopMonitor) ShouldSampleTrace() bool { return true }

// TracingSamplingRate implements Monitor.
func (NoopMonitor) TracingSamplingRate() float64 { return 100 }
