// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

package httptrace

import (
	"net/http"

	"github.com/twozeronine/dd-sdk-go/ddrum"
	"github.com/twozeronine/dd-sdk-go/tracer"
)

type roundTripperConfig struct {
	monitor       ddrum.Monitor
	hosts         *hostSet
	headerTypes   []tracer.HeaderType
	attributes    map[string]interface{}
	ignoreRequest func(*http.Request) bool
	sampler       tracer.Sampler
	rulePSR       float64
}

// RoundTripperOption represents an option that can be passed to
// WrapRoundTripper or WrapClient.
type RoundTripperOption func(*roundTripperConfig)

func newRoundTripperConfig(opts ...RoundTripperOption) *roundTripperConfig {
	cfg := &roundTripperConfig{
		monitor:       ddrum.NoopMonitor{},
		hosts:         newHostSet(nil),
		headerTypes:   []tracer.HeaderType{tracer.HeaderTypeDatadog},
		ignoreRequest: func(_ *http.Request) bool { return false },
	}
	for _, opt := range opts {
		opt(cfg)
	}
	rate := cfg.monitor.TracingSamplingRate()
	cfg.rulePSR = clampPSR(rate / 100)
	if cfg.sampler == nil {
		cfg.sampler = tracer.NewRateSampler(rate)
	}
	return cfg
}

func clampPSR(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// WithMonitor sets the RUM monitor that resource loads are reported to.
// The monitor's tracing sampling rate is read once, when the wrapper is
// constructed.
func WithMonitor(m ddrum.Monitor) RoundTripperOption {
	return func(cfg *roundTripperConfig) {
		cfg.monitor = m
	}
}

// WithFirstPartyHosts sets the hosts the application owns and wishes to
// instrument. A request is instrumented when its host equals one of the
// entries or is a subdomain of one; all other requests are forwarded
// untouched and unobserved.
func WithFirstPartyHosts(hosts ...string) RoundTripperOption {
	return func(cfg *roundTripperConfig) {
		cfg.hosts = newHostSet(hosts)
	}
}

// WithTracingHeaderTypes sets the propagation header formats injected
// into traced requests. All given formats receive the same trace and
// span identifiers. The default is the Datadog format alone.
func WithTracingHeaderTypes(types ...tracer.HeaderType) RoundTripperOption {
	return func(cfg *roundTripperConfig) {
		cfg.headerTypes = types
	}
}

// WithAttributes sets additional attributes reported with every
// resource load started by the wrapper.
func WithAttributes(attributes map[string]interface{}) RoundTripperOption {
	return func(cfg *roundTripperConfig) {
		cfg.attributes = attributes
	}
}

// WithIgnoreRequest holds the function to use for determining if the
// outgoing HTTP request should not be instrumented, on top of the
// first-party host gate.
func WithIgnoreRequest(f func(*http.Request) bool) RoundTripperOption {
	return func(cfg *roundTripperConfig) {
		cfg.ignoreRequest = f
	}
}

// WithSampler replaces the sampler deciding whether tracing headers are
// attached to a first-party request. It overrides the monitor's tracing
// sampling rate.
func WithSampler(s tracer.Sampler) RoundTripperOption {
	return func(cfg *roundTripperConfig) {
		cfg.sampler = s
	}
}
