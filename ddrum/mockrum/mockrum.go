// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

// Package mockrum provides a mock implementation of the RUM monitor
// used in testing. It allows querying the resource loads reported at
// runtime, without having them actually be sent to a collector. It
// provides a simple way to test that instrumentation is running
// correctly in your application.
package mockrum

import (
	"sync"

	"github.com/twozeronine/dd-sdk-go/ddrum"
)

var _ ddrum.Monitor = (*Monitor)(nil)

// ResourceLoad records one resource load reported to the mock monitor.
type ResourceLoad struct {
	// Key is the correlation key the load was reported under.
	Key string
	// Method and URL describe the tracked request.
	Method string
	URL    string
	// StartAttributes are the attributes passed to StartResource.
	StartAttributes map[string]interface{}
	// StatusCode, Kind and Size are set on successful completion.
	StatusCode int
	Kind       ddrum.ResourceType
	Size       int64
	// ErrorMessage and ErrorKind are set on failed completion.
	ErrorMessage string
	ErrorKind    string
	// Failed reports whether the load finished through the error path.
	Failed bool
	// StopAttributes are the attributes passed when the load finished.
	StopAttributes map[string]interface{}
}

// Monitor is a ddrum.Monitor which records every report it receives and
// exposes them for querying. The sampling answers it gives are
// programmable through SetTracingSamplingRate and SetShouldSampleTrace.
// The zero value is not usable; call New.
type Monitor struct {
	mu          sync.RWMutex // guards below fields
	rate        float64
	sample      bool
	open        map[string]*ResourceLoad
	finished    []*ResourceLoad
	sampleCalls int
}

// New creates a mock monitor with a tracing sampling rate of 100 and
// trace sampling enabled.
func New() *Monitor {
	return &Monitor{
		rate:   100,
		sample: true,
		open:   make(map[string]*ResourceLoad),
	}
}

// SetTracingSamplingRate sets the percentage returned by
// TracingSamplingRate.
func (m *Monitor) SetTracingSamplingRate(rate float64) {
	m.mu.Lock()
	m.rate = rate
	m.mu.Unlock()
}

// SetShouldSampleTrace sets the answer returned by ShouldSampleTrace.
func (m *Monitor) SetShouldSampleTrace(sample bool) {
	m.mu.Lock()
	m.sample = sample
	m.mu.Unlock()
}

// StartResource implements ddrum.Monitor.
func (m *Monitor) StartResource(key, method, url string, attributes map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open[key] = &ResourceLoad{
		Key:             key,
		Method:          method,
		URL:             url,
		StartAttributes: attributes,
	}
}

// StopResource implements ddrum.Monitor.
func (m *Monitor) StopResource(key string, statusCode int, kind ddrum.ResourceType, size int64, attributes map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.open[key]
	if !ok {
		return
	}
	delete(m.open, key)
	r.StatusCode = statusCode
	r.Kind = kind
	r.Size = size
	r.StopAttributes = attributes
	m.finished = append(m.finished, r)
}

// StopResourceWithError implements ddrum.Monitor.
func (m *Monitor) StopResourceWithError(key, message, errorKind string, attributes map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.open[key]
	if !ok {
		return
	}
	delete(m.open, key)
	r.Failed = true
	r.ErrorMessage = message
	r.ErrorKind = errorKind
	r.StopAttributes = attributes
	m.finished = append(m.finished, r)
}

// ShouldSampleTrace implements ddrum.Monitor.
func (m *Monitor) ShouldSampleTrace() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sampleCalls++
	return m.sample
}

// TracingSamplingRate implements ddrum.Monitor.
func (m *Monitor) TracingSamplingRate() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rate
}

// OpenResources returns the loads that have been started but not yet
// finished.
func (m *Monitor) OpenResources() []*ResourceLoad {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rs := make([]*ResourceLoad, 0, len(m.open))
	for _, r := range m.open {
		rs = append(rs, r)
	}
	return rs
}

// FinishedResources returns the loads that have received their terminal
// report, in completion order.
func (m *Monitor) FinishedResources() []*ResourceLoad {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*ResourceLoad(nil), m.finished...)
}

// SampleCalls returns how many times ShouldSampleTrace was consulted.
func (m *Monitor) SampleCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sampleCalls
}

// Reset forgets all recorded loads. This is especially useful when
// running tests in a loop, where a clean start is desired for
// FinishedResources calls.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = make(map[string]*ResourceLoad)
	m.finished = nil
	m.sampleCalls = 0
}
