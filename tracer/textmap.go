// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

package tracer

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/twozeronine/dd-sdk-go/internal/log"
)

// HTTPHeadersCarrier wraps an http.Header as a TextMapWriter and TextMapReader, allowing
// it to be used using the provided Propagator implementation.
type HTTPHeadersCarrier http.Header

var _ TextMapWriter = (*HTTPHeadersCarrier)(nil)
var _ TextMapReader = (*HTTPHeadersCarrier)(nil)

// Set implements TextMapWriter.
func (c HTTPHeadersCarrier) Set(key, val string) {
	http.Header(c).Set(key, val)
}

// ForeachKey implements TextMapReader.
func (c HTTPHeadersCarrier) ForeachKey(handler func(key, val string) error) error {
	for k, vals := range c {
		for _, v := range vals {
			if err := handler(k, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// TextMapCarrier allows the use of a regular map[string]string as both TextMapWriter
// and TextMapReader, making it compatible with the provided Propagator.
type TextMapCarrier map[string]string

var _ TextMapWriter = (*TextMapCarrier)(nil)
var _ TextMapReader = (*TextMapCarrier)(nil)

// Set implements TextMapWriter.
func (c TextMapCarrier) Set(key, val string) {
	c[key] = val
}

// ForeachKey conforms to the TextMapReader interface.
func (c TextMapCarrier) ForeachKey(handler func(key, val string) error) error {
	for k, v := range c {
		if err := handler(k, v); err != nil {
			return err
		}
	}
	return nil
}

const (
	// DefaultTraceIDHeader specifies the key that will be used in HTTP headers
	// or text maps to store the trace ID.
	DefaultTraceIDHeader = "x-datadog-trace-id"

	// DefaultParentIDHeader specifies the key that will be used in HTTP headers
	// or text maps to store the parent ID.
	DefaultParentIDHeader = "x-datadog-parent-id"

	// DefaultPriorityHeader specifies the key that will be used in HTTP headers
	// or text maps to store the sampling priority value.
	DefaultPriorityHeader = "x-datadog-sampling-priority"
)

const (
	b3TraceIDHeader = "x-b3-traceid"
	b3SpanIDHeader  = "x-b3-spanid"
	b3SampledHeader = "x-b3-sampled"
	b3SingleHeader  = "b3"

	traceparentHeader = "traceparent"
	tracestateHeader  = "tracestate"
)

// HeaderType selects one of the supported propagation header formats. A
// request may be instrumented with any non-empty subset of formats;
// each format uses header names disjoint from the others, so several
// can be injected into the same carrier without interfering.
type HeaderType int

const (
	// HeaderTypeDatadog propagates through the x-datadog-* headers.
	HeaderTypeDatadog HeaderType = iota

	// HeaderTypeB3Single propagates through the single "b3" header.
	// See https://github.com/openzipkin/b3-propagation
	HeaderTypeB3Single

	// HeaderTypeB3Multi propagates through the x-b3-* multiple headers.
	HeaderTypeB3Multi

	// HeaderTypeTraceContext propagates through the W3C traceparent and
	// tracestate headers.
	HeaderTypeTraceContext
)

// String returns the configuration name of the header type.
func (t HeaderType) String() string {
	switch t {
	case HeaderTypeDatadog:
		return "datadog"
	case HeaderTypeB3Single:
		return "b3"
	case HeaderTypeB3Multi:
		return "b3multi"
	case HeaderTypeTraceContext:
		return "tracecontext"
	}
	return "unknown"
}

// Propagator returns the codec implementing the header type.
func (t HeaderType) Propagator() Propagator {
	switch t {
	case HeaderTypeB3Single:
		return &propagatorB3SingleHeader{}
	case HeaderTypeB3Multi:
		return &propagatorB3{}
	case HeaderTypeTraceContext:
		return &propagatorW3c{}
	default:
		return &propagatorDatadog{}
	}
}

// ParseHeaderTypes parses a comma separated list of header type names
// into the set of types it denotes. Recognized names are "datadog",
// "b3" (single header), "b3multi" and "tracecontext". Any invalid
// values in the list will log a warning and be ignored.
func ParseHeaderTypes(ps string) []HeaderType {
	var list []HeaderType
	seen := make(map[HeaderType]bool)
	add := func(t HeaderType) {
		if !seen[t] {
			seen[t] = true
			list = append(list, t)
		}
	}
	for _, v := range strings.Split(ps, ",") {
		switch strings.TrimSpace(strings.ToLower(v)) {
		case "datadog":
			add(HeaderTypeDatadog)
		case "b3", "b3 single header":
			add(HeaderTypeB3Single)
		case "b3multi":
			add(HeaderTypeB3Multi)
		case "tracecontext":
			add(HeaderTypeTraceContext)
		case "":
		default:
			log.Warn("unrecognized propagation header type: %s", v)
		}
	}
	return list
}

// NewPropagator returns a propagator covering the given header types.
// Injection writes every format onto the carrier; extraction tries each
// format in order and returns the first successful one. With no types
// given it defaults to the Datadog format.
func NewPropagator(types ...HeaderType) Propagator {
	if len(types) == 0 {
		types = []HeaderType{HeaderTypeDatadog}
	}
	ps := make([]Propagator, len(types))
	for i, t := range types {
		ps[i] = t.Propagator()
	}
	return &chainedPropagator{propagators: ps}
}

// chainedPropagator implements Propagator and applies a list of formats.
// When injecting, all formats are written onto the carrier. When
// extracting, it tries each format, selecting the first successful one.
type chainedPropagator struct {
	propagators []Propagator
}

// Inject implements Propagator.
func (p *chainedPropagator) Inject(ctx *SpanContext, carrier interface{}) error {
	for _, v := range p.propagators {
		if err := v.Inject(ctx, carrier); err != nil {
			return err
		}
	}
	return nil
}

// Extract implements Propagator. A format that finds no usable headers,
// or finds malformed ones, is skipped; the remaining formats are tried
// independently.
func (p *chainedPropagator) Extract(carrier interface{}) (*SpanContext, error) {
	for _, v := range p.propagators {
		ctx, err := v.Extract(carrier)
		if ctx != nil {
			log.Debug("Extracted span context: %#v", ctx)
			return ctx, nil
		}
		if err == ErrSpanContextNotFound || err == ErrSpanContextCorrupted {
			continue
		}
		return nil, err
	}
	return nil, ErrSpanContextNotFound
}

// propagatorDatadog implements Propagator and injects/extracts span contexts
// using datadog headers. Only TextMap carriers are supported.
type propagatorDatadog struct{}

func (p *propagatorDatadog) Inject(ctx *SpanContext, carrier interface{}) error {
	switch c := carrier.(type) {
	case TextMapWriter:
		return p.injectTextMap(ctx, c)
	default:
		return ErrInvalidCarrier
	}
}

func (*propagatorDatadog) injectTextMap(ctx *SpanContext, writer TextMapWriter) error {
	if ctx == nil || ctx.traceID == 0 || ctx.spanID == 0 {
		return ErrInvalidSpanContext
	}
	// propagate the TraceID and the current active SpanID
	writer.Set(DefaultTraceIDHeader, FormatDecimal(ctx.traceID))
	writer.Set(DefaultParentIDHeader, FormatDecimal(ctx.spanID))
	writer.Set(DefaultPriorityHeader, strconv.Itoa(ctx.samplingPriority()))
	return nil
}

func (p *propagatorDatadog) Extract(carrier interface{}) (*SpanContext, error) {
	switch c := carrier.(type) {
	case TextMapReader:
		return p.extractTextMap(c)
	default:
		return nil, ErrInvalidCarrier
	}
}

// extractTextMap requires all three Datadog headers to be present with
// parseable values; anything less means no extraction.
func (*propagatorDatadog) extractTextMap(reader TextMapReader) (*SpanContext, error) {
	var ctx SpanContext
	var havePriority bool
	err := reader.ForeachKey(func(k, v string) error {
		var err error
		switch strings.ToLower(k) {
		case DefaultTraceIDHeader:
			ctx.traceID, err = ParseDecimal(v)
			if err != nil {
				return ErrSpanContextCorrupted
			}
		case DefaultParentIDHeader:
			ctx.spanID, err = ParseDecimal(v)
			if err != nil {
				return ErrSpanContextCorrupted
			}
		case DefaultPriorityHeader:
			priority, err := strconv.Atoi(v)
			if err != nil {
				return ErrSpanContextCorrupted
			}
			ctx.sampled = priority > 0
			havePriority = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if ctx.traceID == 0 || ctx.spanID == 0 || !havePriority {
		return nil, ErrSpanContextNotFound
	}
	return &ctx, nil
}

// propagatorB3 implements Propagator and injects/extracts span contexts
// using B3 multiple headers. Only TextMap carriers are supported.
type propagatorB3 struct{}

func (p *propagatorB3) Inject(ctx *SpanContext, carrier interface{}) error {
	switch c := carrier.(type) {
	case TextMapWriter:
		return p.injectTextMap(ctx, c)
	default:
		return ErrInvalidCarrier
	}
}

func (*propagatorB3) injectTextMap(ctx *SpanContext, writer TextMapWriter) error {
	if ctx == nil {
		return ErrInvalidSpanContext
	}
	if !ctx.sampled {
		// an explicitly unsampled trace carries only the sampled flag
		writer.Set(b3SampledHeader, "0")
		return nil
	}
	if ctx.traceID == 0 || ctx.spanID == 0 {
		return ErrInvalidSpanContext
	}
	writer.Set(b3TraceIDHeader, FormatHex(ctx.traceID))
	writer.Set(b3SpanIDHeader, FormatHex(ctx.spanID))
	writer.Set(b3SampledHeader, "1")
	return nil
}

func (p *propagatorB3) Extract(carrier interface{}) (*SpanContext, error) {
	switch c := carrier.(type) {
	case TextMapReader:
		return p.extractTextMap(c)
	default:
		return nil, ErrInvalidCarrier
	}
}

func (*propagatorB3) extractTextMap(reader TextMapReader) (*SpanContext, error) {
	var traceID, spanID string
	sampled := true
	err := reader.ForeachKey(func(k, v string) error {
		switch strings.ToLower(k) {
		case b3TraceIDHeader:
			traceID = v
		case b3SpanIDHeader:
			spanID = v
		case b3SampledHeader:
			if v == "0" {
				sampled = false
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !sampled {
		// the unsampled flag stands on its own, identifiers are ignored
		return &SpanContext{sampled: false}, nil
	}
	if traceID == "" || spanID == "" {
		return nil, ErrSpanContextNotFound
	}
	var ctx SpanContext
	ctx.sampled = true
	if len(traceID) > 16 {
		traceID = traceID[len(traceID)-16:]
	}
	ctx.traceID, err = ParseHex(traceID)
	if err != nil {
		return nil, ErrSpanContextCorrupted
	}
	ctx.spanID, err = ParseHex(spanID)
	if err != nil {
		return nil, ErrSpanContextCorrupted
	}
	if ctx.traceID == 0 || ctx.spanID == 0 {
		return nil, ErrSpanContextNotFound
	}
	return &ctx, nil
}

// propagatorB3SingleHeader implements Propagator and injects/extracts span
// contexts using the single "b3" header. Only TextMap carriers are supported.
type propagatorB3SingleHeader struct{}

func (p *propagatorB3SingleHeader) Inject(ctx *SpanContext, carrier interface{}) error {
	switch c := carrier.(type) {
	case TextMapWriter:
		return p.injectTextMap(ctx, c)
	default:
		return ErrInvalidCarrier
	}
}

func (*propagatorB3SingleHeader) injectTextMap(ctx *SpanContext, writer TextMapWriter) error {
	if ctx == nil {
		return ErrInvalidSpanContext
	}
	if !ctx.sampled {
		// canonical "deny" form, never "0-0-0"
		writer.Set(b3SingleHeader, "0")
		return nil
	}
	if ctx.traceID == 0 || ctx.spanID == 0 {
		return ErrInvalidSpanContext
	}
	writer.Set(b3SingleHeader, fmt.Sprintf("%016x-%016x-1", ctx.traceID, ctx.spanID))
	return nil
}

func (p *propagatorB3SingleHeader) Extract(carrier interface{}) (*SpanContext, error) {
	switch c := carrier.(type) {
	case TextMapReader:
		return p.extractTextMap(c)
	default:
		return nil, ErrInvalidCarrier
	}
}

func (*propagatorB3SingleHeader) extractTextMap(reader TextMapReader) (*SpanContext, error) {
	var value string
	var found bool
	err := reader.ForeachKey(func(k, v string) error {
		if strings.ToLower(k) == b3SingleHeader {
			value = v
			found = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrSpanContextNotFound
	}
	if value == "0" {
		return &SpanContext{sampled: false}, nil
	}
	b3Parts := strings.Split(value, "-")
	if len(b3Parts) < 2 {
		return nil, ErrSpanContextCorrupted
	}
	var ctx SpanContext
	if len(b3Parts[0]) > 16 {
		b3Parts[0] = b3Parts[0][len(b3Parts[0])-16:]
	}
	ctx.traceID, err = ParseHex(b3Parts[0])
	if err != nil {
		return nil, ErrSpanContextCorrupted
	}
	ctx.spanID, err = ParseHex(b3Parts[1])
	if err != nil {
		return nil, ErrSpanContextCorrupted
	}
	// presence of the header implies a sampled trace unless the flag
	// field explicitly denies it
	ctx.sampled = len(b3Parts) < 3 || b3Parts[2] != "0"
	if ctx.traceID == 0 || ctx.spanID == 0 {
		return nil, ErrSpanContextNotFound
	}
	return &ctx, nil
}

// propagatorW3c implements Propagator and injects/extracts span contexts
// using W3C tracecontext/traceparent headers. Only TextMap carriers are
// supported.
type propagatorW3c struct{}

func (p *propagatorW3c) Inject(ctx *SpanContext, carrier interface{}) error {
	switch c := carrier.(type) {
	case TextMapWriter:
		return p.injectTextMap(ctx, c)
	default:
		return ErrInvalidCarrier
	}
}

// injectTextMap propagates the span context in the format of the
// traceparentHeader and tracestateHeader. traceparentHeader encodes the
// propagation version, the 128-bit trace ID (zero-extended here, the
// SDK generates 64-bit identifiers), the span ID, and a flags field of
// which only the sampled flag is used. tracestateHeader carries the
// Datadog list-member with the sampling priority.
func (*propagatorW3c) injectTextMap(ctx *SpanContext, writer TextMapWriter) error {
	if ctx == nil || ctx.traceID == 0 || ctx.spanID == 0 {
		return ErrInvalidSpanContext
	}
	flags := "00"
	if ctx.sampled {
		flags = "01"
	}
	writer.Set(traceparentHeader, fmt.Sprintf("00-%032x-%016x-%s", ctx.traceID, ctx.spanID, flags))
	writer.Set(tracestateHeader, fmt.Sprintf("dd=s:%d", ctx.samplingPriority()))
	return nil
}

func (p *propagatorW3c) Extract(carrier interface{}) (*SpanContext, error) {
	switch c := carrier.(type) {
	case TextMapReader:
		return p.extractTextMap(c)
	default:
		return nil, ErrInvalidCarrier
	}
}

func (*propagatorW3c) extractTextMap(reader TextMapReader) (*SpanContext, error) {
	var parentHeader string
	err := reader.ForeachKey(func(k, v string) error {
		if strings.ToLower(k) == traceparentHeader {
			if parentHeader != "" {
				return ErrSpanContextCorrupted
			}
			parentHeader = v
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return parseTraceparent(parentHeader)
}

// parseTraceparent parses the traceparent header value, a `-` separated
// string of the form `version-traceID-spanID-flags` where traceID is 32
// hex digits, spanID is 16 hex digits and flags is 2 hex digits. The
// trace ID is taken from the least significant 16 hex digits, as the
// SDK works with 64-bit identifiers.
func parseTraceparent(header string) (*SpanContext, error) {
	header = strings.ToLower(strings.TrimSpace(header))
	if len(header) == 0 {
		return nil, ErrSpanContextNotFound
	}
	if len(header) != 55 {
		return nil, ErrSpanContextCorrupted
	}
	parts := strings.Split(header, "-")
	if len(parts) != 4 {
		return nil, ErrSpanContextCorrupted
	}
	if v, err := strconv.ParseUint(parts[0], 16, 8); err != nil || v == 255 {
		return nil, ErrSpanContextCorrupted
	}
	if len(parts[1]) != 32 || len(parts[2]) != 16 || len(parts[3]) != 2 {
		return nil, ErrSpanContextCorrupted
	}
	var ctx SpanContext
	var err error
	if ctx.traceID, err = ParseHex(parts[1][16:]); err != nil {
		return nil, ErrSpanContextCorrupted
	}
	if ctx.spanID, err = ParseHex(parts[2]); err != nil {
		return nil, ErrSpanContextCorrupted
	}
	flags, err := strconv.ParseUint(parts[3], 16, 8)
	if err != nil {
		return nil, ErrSpanContextCorrupted
	}
	ctx.sampled = flags&0x1 == 1
	if ctx.traceID == 0 || ctx.spanID == 0 {
		return nil, ErrSpanContextNotFound
	}
	return &ctx, nil
}
