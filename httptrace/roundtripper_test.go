// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

package httptrace

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twozeronine/dd-sdk-go/ddrum"
	"github.com/twozeronine/dd-sdk-go/ddrum/mockrum"
	"github.com/twozeronine/dd-sdk-go/tracer"
)

// fixedSampler always answers the same way, making the traced decision
// deterministic in tests.
type fixedSampler bool

func (s fixedSampler) Sample() bool { return bool(s) }

// fakeTransport returns a canned response or error and remembers the
// request it forwarded.
type fakeTransport struct {
	lastReq *http.Request
	res     *http.Response
	err     error
}

func (f *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.res, nil
}

func imageResponse(size int64) *http.Response {
	return &http.Response{
		StatusCode:    http.StatusOK,
		Header:        http.Header{"Content-Type": []string{"image/png"}},
		Body:          io.NopCloser(strings.NewReader("pretend this is a png")),
		ContentLength: size,
	}
}

func testRequest(t *testing.T, url string) *http.Request {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	return req
}

func drain(t *testing.T, res *http.Response) {
	_, err := io.Copy(io.Discard, res.Body)
	require.NoError(t, err)
	require.NoError(t, res.Body.Close())
}

func TestRoundTripperFirstParty(t *testing.T) {
	monitor := mockrum.New()
	inner := &fakeTransport{res: imageResponse(88888)}
	rt := WrapRoundTripper(inner,
		WithMonitor(monitor),
		WithFirstPartyHosts("test_url"),
		WithSampler(fixedSampler(true)),
	)

	res, err := rt.RoundTrip(testRequest(t, "https://test_url/test"))
	require.NoError(t, err)
	drain(t, res)

	assert := assert.New(t)
	assert.NotEmpty(inner.lastReq.Header.Get("x-datadog-trace-id"))
	assert.NotEmpty(inner.lastReq.Header.Get("x-datadog-parent-id"))
	assert.Equal("1", inner.lastReq.Header.Get("x-datadog-sampling-priority"))

	finished := monitor.FinishedResources()
	require.Len(t, finished, 1)
	r := finished[0]
	assert.Equal("GET", r.Method)
	assert.Equal("https://test_url/test", r.URL)
	assert.Equal(http.StatusOK, r.StatusCode)
	assert.Equal(ddrum.ResourceTypeImage, r.Kind)
	assert.Equal(int64(88888), r.Size)
	assert.False(r.Failed)
}

func TestRoundTripperThirdParty(t *testing.T) {
	monitor := mockrum.New()
	inner := &fakeTransport{res: imageResponse(10)}
	rt := WrapRoundTripper(inner,
		WithMonitor(monitor),
		WithFirstPartyHosts("test_url"),
		WithSampler(fixedSampler(true)),
	)

	res, err := rt.RoundTrip(testRequest(t, "https://non_first_party/test"))
	require.NoError(t, err)
	drain(t, res)

	assert := assert.New(t)
	// forwarded verbatim: zero added headers, no resource record
	assert.Empty(inner.lastReq.Header)
	assert.Empty(monitor.FinishedResources())
	assert.Empty(monitor.OpenResources())
	assert.Zero(monitor.SampleCalls())
}

func TestRoundTripperUntraced(t *testing.T) {
	monitor := mockrum.New()
	monitor.SetTracingSamplingRate(50)
	inner := &fakeTransport{res: imageResponse(10)}
	rt := WrapRoundTripper(inner,
		WithMonitor(monitor),
		WithFirstPartyHosts("test_url"),
		WithSampler(fixedSampler(false)),
	)

	res, err := rt.RoundTrip(testRequest(t, "https://test_url/test"))
	require.NoError(t, err)
	drain(t, res)

	assert := assert.New(t)
	// no headers when untraced, but the resource is still reported
	assert.Empty(inner.lastReq.Header)
	finished := monitor.FinishedResources()
	require.Len(t, finished, 1)
	attrs := finished[0].StartAttributes
	assert.Equal(0.5, attrs["_dd.rule_psr"])
	assert.NotContains(attrs, "_dd.trace_id")
	assert.NotContains(attrs, "_dd.span_id")
}

func TestRoundTripperRulePSRAlwaysReported(t *testing.T) {
	for _, traced := range []bool{true, false} {
		t.Run(fmt.Sprintf("traced=%t", traced), func(t *testing.T) {
			monitor := mockrum.New()
			monitor.SetTracingSamplingRate(50)
			inner := &fakeTransport{res: imageResponse(10)}
			rt := WrapRoundTripper(inner,
				WithMonitor(monitor),
				WithFirstPartyHosts("test_url"),
				WithSampler(fixedSampler(traced)),
			)
			res, err := rt.RoundTrip(testRequest(t, "https://test_url/test"))
			require.NoError(t, err)
			drain(t, res)
			finished := monitor.FinishedResources()
			require.Len(t, finished, 1)
			assert.Equal(t, 0.5, finished[0].StartAttributes["_dd.rule_psr"])
		})
	}
}

func TestRoundTripperUnsampledPriority(t *testing.T) {
	monitor := mockrum.New()
	monitor.SetShouldSampleTrace(false)
	inner := &fakeTransport{res: imageResponse(10)}
	rt := WrapRoundTripper(inner,
		WithMonitor(monitor),
		WithFirstPartyHosts("test_url"),
		WithTracingHeaderTypes(tracer.HeaderTypeDatadog, tracer.HeaderTypeB3Single),
		WithSampler(fixedSampler(true)),
	)

	res, err := rt.RoundTrip(testRequest(t, "https://test_url/test"))
	require.NoError(t, err)
	drain(t, res)

	assert := assert.New(t)
	assert.Equal("0", inner.lastReq.Header.Get("x-datadog-sampling-priority"))
	assert.Equal("0", inner.lastReq.Header.Get("b3"))
	// ids are still generated and correlated even when unsampled
	finished := monitor.FinishedResources()
	require.Len(t, finished, 1)
	assert.Contains(finished[0].StartAttributes, "_dd.trace_id")
}

func TestRoundTripperSharedIDsAcrossFormats(t *testing.T) {
	monitor := mockrum.New()
	inner := &fakeTransport{res: imageResponse(10)}
	rt := WrapRoundTripper(inner,
		WithMonitor(monitor),
		WithFirstPartyHosts("test_url"),
		WithTracingHeaderTypes(tracer.HeaderTypeDatadog, tracer.HeaderTypeB3Single, tracer.HeaderTypeB3Multi),
		WithSampler(fixedSampler(true)),
	)

	res, err := rt.RoundTrip(testRequest(t, "https://test_url/test"))
	require.NoError(t, err)
	drain(t, res)

	h := inner.lastReq.Header
	ddTrace, err := tracer.ParseDecimal(h.Get("x-datadog-trace-id"))
	require.NoError(t, err)
	ddSpan, err := tracer.ParseDecimal(h.Get("x-datadog-parent-id"))
	require.NoError(t, err)

	assert := assert.New(t)
	assert.Equal(fmt.Sprintf("%016x-%016x-1", ddTrace, ddSpan), h.Get("b3"))
	assert.Equal(tracer.FormatHex(ddTrace), h.Get("x-b3-traceid"))
	assert.Equal(tracer.FormatHex(ddSpan), h.Get("x-b3-spanid"))
	assert.Equal("1", h.Get("x-b3-sampled"))

	finished := monitor.FinishedResources()
	require.Len(t, finished, 1)
	assert.Equal(tracer.FormatDecimal(ddTrace), finished[0].StartAttributes["_dd.trace_id"])
	assert.Equal(tracer.FormatDecimal(ddSpan), finished[0].StartAttributes["_dd.span_id"])
}

func TestRoundTripperCallerHeadersUntouched(t *testing.T) {
	monitor := mockrum.New()
	inner := &fakeTransport{res: imageResponse(10)}
	rt := WrapRoundTripper(inner,
		WithMonitor(monitor),
		WithFirstPartyHosts("test_url"),
		WithSampler(fixedSampler(true)),
	)

	req := testRequest(t, "https://test_url/test")
	res, err := rt.RoundTrip(req)
	require.NoError(t, err)
	drain(t, res)

	assert.Empty(t, req.Header.Get("x-datadog-trace-id"))
	assert.NotEmpty(t, inner.lastReq.Header.Get("x-datadog-trace-id"))
}

func TestRoundTripperTransportError(t *testing.T) {
	monitor := mockrum.New()
	wantErr := errors.New("connection refused")
	inner := &fakeTransport{err: wantErr}
	rt := WrapRoundTripper(inner,
		WithMonitor(monitor),
		WithFirstPartyHosts("test_url"),
		WithSampler(fixedSampler(true)),
	)

	_, err := rt.RoundTrip(testRequest(t, "https://test_url/test"))
	// the original error must reach the caller unchanged
	require.Equal(t, wantErr, err)

	finished := monitor.FinishedResources()
	require.Len(t, finished, 1)
	assert := assert.New(t)
	assert.True(finished[0].Failed)
	assert.Equal("connection refused", finished[0].ErrorMessage)
	assert.Equal(fmt.Sprintf("%T", wantErr), finished[0].ErrorKind)
}

// errorBody yields some bytes, then fails.
type errorBody struct {
	data io.Reader
	err  error
}

func (b *errorBody) Read(p []byte) (int, error) {
	n, err := b.data.Read(p)
	if err == io.EOF {
		return n, b.err
	}
	return n, err
}

func (b *errorBody) Close() error { return nil }

func TestRoundTripperMidStreamError(t *testing.T) {
	monitor := mockrum.New()
	streamErr := errors.New("unexpected EOF")
	inner := &fakeTransport{res: &http.Response{
		StatusCode:    http.StatusOK,
		Header:        http.Header{"Content-Type": []string{"text/html"}},
		Body:          &errorBody{data: strings.NewReader("<html>"), err: streamErr},
		ContentLength: -1,
	}}
	rt := WrapRoundTripper(inner,
		WithMonitor(monitor),
		WithFirstPartyHosts("test_url"),
		WithSampler(fixedSampler(true)),
	)

	res, err := rt.RoundTrip(testRequest(t, "https://test_url/test"))
	require.NoError(t, err)
	_, err = io.Copy(io.Discard, res.Body)
	// the stream error is observed by the caller, not swallowed
	require.Equal(t, streamErr, err)
	require.NoError(t, res.Body.Close())

	finished := monitor.FinishedResources()
	// closing after the failure must not produce a second report
	require.Len(t, finished, 1)
	assert := assert.New(t)
	assert.True(finished[0].Failed)
	assert.Equal("unexpected EOF", finished[0].ErrorMessage)
}

func TestRoundTripperStopExactlyOnce(t *testing.T) {
	monitor := mockrum.New()
	inner := &fakeTransport{res: imageResponse(21)}
	rt := WrapRoundTripper(inner,
		WithMonitor(monitor),
		WithFirstPartyHosts("test_url"),
		WithSampler(fixedSampler(true)),
	)

	res, err := rt.RoundTrip(testRequest(t, "https://test_url/test"))
	require.NoError(t, err)
	_, err = io.Copy(io.Discard, res.Body)
	require.NoError(t, err)
	require.NoError(t, res.Body.Close())
	require.NoError(t, res.Body.Close())

	assert.Len(t, monitor.FinishedResources(), 1)
}

func TestRoundTripperAttributes(t *testing.T) {
	monitor := mockrum.New()
	inner := &fakeTransport{res: imageResponse(10)}
	rt := WrapRoundTripper(inner,
		WithMonitor(monitor),
		WithFirstPartyHosts("test_url"),
		WithAttributes(map[string]interface{}{"team": "mobile"}),
		WithSampler(fixedSampler(true)),
	)

	res, err := rt.RoundTrip(testRequest(t, "https://test_url/test"))
	require.NoError(t, err)
	drain(t, res)

	finished := monitor.FinishedResources()
	require.Len(t, finished, 1)
	assert.Equal(t, "mobile", finished[0].StartAttributes["team"])
}

func TestRoundTripperIgnoreRequest(t *testing.T) {
	monitor := mockrum.New()
	inner := &fakeTransport{res: imageResponse(10)}
	rt := WrapRoundTripper(inner,
		WithMonitor(monitor),
		WithFirstPartyHosts("test_url"),
		WithIgnoreRequest(func(req *http.Request) bool {
			return strings.HasSuffix(req.URL.Path, "/health")
		}),
		WithSampler(fixedSampler(true)),
	)

	res, err := rt.RoundTrip(testRequest(t, "https://test_url/health"))
	require.NoError(t, err)
	drain(t, res)

	assert.Empty(t, inner.lastReq.Header)
	assert.Empty(t, monitor.FinishedResources())
}

func TestWrapClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"trace":%q}`, r.Header.Get("x-datadog-trace-id"))
	}))
	defer srv.Close()

	monitor := mockrum.New()
	c := WrapClient(&http.Client{},
		WithMonitor(monitor),
		WithFirstPartyHosts("127.0.0.1"),
		WithSampler(fixedSampler(true)),
	)

	res, err := c.Get(srv.URL + "/data")
	require.NoError(t, err)
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.NoError(t, res.Body.Close())

	assert := assert.New(t)
	assert.Contains(string(body), `"trace":"`)
	assert.NotContains(string(body), `"trace":""`)

	finished := monitor.FinishedResources()
	require.Len(t, finished, 1)
	assert.Equal(http.StatusOK, finished[0].StatusCode)
	assert.Equal(ddrum.ResourceTypeNative, finished[0].Kind)
}

func TestWrapRoundTripper(t *testing.T) {
	t.Run("nil-base", func(t *testing.T) {
		rt := WrapRoundTripper(nil)
		require.IsType(t, &roundTripper{}, rt)
		assert.Equal(t, http.DefaultTransport, rt.(*roundTripper).Unwrap())
	})
	t.Run("no-double-wrap", func(t *testing.T) {
		inner := &fakeTransport{}
		once := WrapRoundTripper(inner)
		twice := WrapRoundTripper(once)
		assert.Equal(t, inner, twice.(*roundTripper).Unwrap())
	})
}
