// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

package tracer

import "sync"

// Sampler is the generic interface of any sampler. Must be safe for
// concurrent use.
type Sampler interface {
	// Sample should return true if the next request should have tracing
	// headers attached.
	Sample() bool
}

// RateSampler is a sampler implementation which allows setting and
// getting a sample rate. A RateSampler implementation is expected to be
// safe for concurrent use.
type RateSampler interface {
	Sampler

	// Rate should return the current sample rate of the sampler, a
	// percentage between 0 and 100.
	Rate() float64

	// SetRate should set a new sample rate for the RateSampler.
	SetRate(rate float64)
}

// rateSampler samples from a sample rate.
type rateSampler struct {
	sync.RWMutex
	rate float64
}

// NewAllSampler is simply a short-hand for NewRateSampler(100).
func NewAllSampler() RateSampler { return NewRateSampler(100) }

// NewRateSampler returns an initialized RateSampler with the given
// sample rate, a percentage between 0 and 100. Out of range values are
// clamped.
func NewRateSampler(rate float64) RateSampler {
	return &rateSampler{rate: clampRate(rate)}
}

// Rate returns the current rate of the sampler.
func (r *rateSampler) Rate() float64 {
	r.RLock()
	defer r.RUnlock()
	return r.rate
}

// SetRate sets a new sampling rate.
func (r *rateSampler) SetRate(rate float64) {
	r.Lock()
	r.rate = clampRate(rate)
	r.Unlock()
}

// Sample draws an independent uniform variate against the rate. The
// decision must not be derived from the generated identifiers, so that
// the keep/drop outcome never correlates with identifier low bits.
func (r *rateSampler) Sample() bool {
	r.RLock()
	defer r.RUnlock()
	if r.rate >= 100 {
		return true
	}
	if r.rate <= 0 {
		return false
	}
	return random.Float64()*100 < r.rate
}

func clampRate(rate float64) float64 {
	if rate < 0 {
		return 0
	}
	if rate > 100 {
		return 100
	}
	return rate
}
