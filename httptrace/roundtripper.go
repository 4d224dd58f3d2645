// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

// Package httptrace provides an instrumented http.RoundTripper which
// propagates distributed-tracing headers to first-party hosts and
// reports the resulting resource loads to a RUM monitor.
package httptrace

import (
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/twozeronine/dd-sdk-go/ddrum"
	"github.com/twozeronine/dd-sdk-go/ddrum/ext"
	"github.com/twozeronine/dd-sdk-go/internal/log"
	"github.com/twozeronine/dd-sdk-go/tracer"
)

type roundTripper struct {
	base http.RoundTripper
	cfg  *roundTripperConfig
}

func (rt *roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if rt.cfg.ignoreRequest(req) || !rt.cfg.hosts.matches(req.URL) {
		return rt.base.RoundTrip(req)
	}
	traced := rt.cfg.sampler.Sample()
	attributes := make(map[string]interface{}, len(rt.cfg.attributes)+3)
	for k, v := range rt.cfg.attributes {
		attributes[k] = v
	}
	attributes[ext.RulePSR] = rt.cfg.rulePSR

	// Make a copy of the request so we don't modify the caller's headers.
	r2 := req.Clone(req.Context())
	if traced {
		sampled := rt.cfg.monitor.ShouldSampleTrace()
		// one identifier pair per request, shared by every header format
		ctx := tracer.NewSpanContext(tracer.GenerateID(), tracer.GenerateID(), sampled)
		carrier := tracer.HTTPHeadersCarrier(r2.Header)
		for _, ht := range rt.cfg.headerTypes {
			if err := ht.Propagator().Inject(ctx, carrier); err != nil {
				// this should never happen
				log.Warn("httptrace: failed to inject %s headers: %v", ht, err)
			}
		}
		attributes[ext.TraceID] = tracer.FormatDecimal(ctx.TraceID())
		attributes[ext.SpanID] = tracer.FormatDecimal(ctx.SpanID())
	}

	// Make a copy of the URL so userinfo never reaches the monitor.
	url := *req.URL
	url.User = nil
	key := uuid.NewString()
	rt.cfg.monitor.StartResource(key, req.Method, url.String(), attributes)

	res, err := rt.base.RoundTrip(r2)
	if err != nil {
		rt.cfg.monitor.StopResourceWithError(key, err.Error(), fmt.Sprintf("%T", err), attributes)
		return res, err
	}
	record := &resourceRecord{
		monitor:    rt.cfg.monitor,
		key:        key,
		statusCode: res.StatusCode,
		kind:       ddrum.ResourceTypeFromContentType(res.Header.Get("Content-Type")),
		size:       res.ContentLength,
		attributes: attributes,
	}
	if res.Body == nil || res.Body == http.NoBody {
		record.finish(nil)
		return res, nil
	}
	res.Body = &trackedBody{body: res.Body, record: record}
	return res, nil
}

// Unwrap returns the original http.RoundTripper.
func (rt *roundTripper) Unwrap() http.RoundTripper {
	return rt.base
}

// resourceRecord owns the terminal report of one tracked resource load.
// Exactly one of the success or error paths reaches the monitor, no
// matter how many times the response body is read or closed afterwards.
type resourceRecord struct {
	monitor    ddrum.Monitor
	key        string
	statusCode int
	kind       ddrum.ResourceType
	size       int64
	attributes map[string]interface{}
	once       sync.Once
}

func (r *resourceRecord) finish(err error) {
	r.once.Do(func() {
		if err != nil {
			r.monitor.StopResourceWithError(r.key, err.Error(), fmt.Sprintf("%T", err), r.attributes)
			return
		}
		r.monitor.StopResource(r.key, r.statusCode, r.kind, r.size, r.attributes)
	})
}

// trackedBody wraps a response body so that the resource record is
// closed when the stream ends: successfully on EOF or Close, through
// the error path when reading fails mid-stream. The original error is
// always returned to the caller unchanged.
type trackedBody struct {
	body   io.ReadCloser
	record *resourceRecord
}

func (b *trackedBody) Read(p []byte) (int, error) {
	n, err := b.body.Read(p)
	if err != nil {
		if err == io.EOF {
			b.record.finish(nil)
		} else {
			b.record.finish(err)
		}
	}
	return n, err
}

func (b *trackedBody) Close() error {
	err := b.body.Close()
	b.record.finish(nil)
	return err
}

// WrapRoundTripper returns a new RoundTripper which reports all
// first-party requests sent over the transport to the configured RUM
// monitor and injects tracing headers into the sampled ones.
func WrapRoundTripper(rt http.RoundTripper, opts ...RoundTripperOption) http.RoundTripper {
	if rt == nil {
		rt = http.DefaultTransport
	}
	if wrapped, ok := rt.(*roundTripper); ok {
		rt = wrapped.base
	}
	return &roundTripper{
		base: rt,
		cfg:  newRoundTripperConfig(opts...),
	}
}

// WrapClient modifies the given client's transport to augment it with
// tracking and returns it.
func WrapClient(c *http.Client, opts ...RoundTripperOption) *http.Client {
	if c == nil {
		c = &http.Client{}
	}
	c.Transport = WrapRoundTripper(c.Transport, opts...)
	return c
}
