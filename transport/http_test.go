// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gogama/opener"
	"github.com/gogama/opener/request"
	"github.com/gogama/opener/response"
	"github.com/gogama/opener/retry"
	"github.com/gogama/opener/timeout"
	"github.com/gogama/opener/transient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newServerDirector(server *httptest.Server, policy timeout.Policy) *opener.Director {
	d := &opener.Director{}
	d.Add(&HTTP{HTTPDoer: serverClient(server), TimeoutPolicy: policy})
	return d
}

func readAll(t *testing.T, resp *response.Response) string {
	b, err := io.ReadAll(resp)
	require.NoError(t, err)
	require.NoError(t, resp.Close())
	return string(b)
}

func TestHTTP(t *testing.T) {
	t.Run("capabilities", func(t *testing.T) {
		assert.Equal(t, opener.OpenCap("http", "https"), (&HTTP{}).Capabilities())
		assert.Equal(t, opener.OpenCap("https"), (&HTTP{Schemes: []string{"https"}}).Capabilities())
	})
	t.Run("happy path", testHTTPHappyPath)
	t.Run("no redirects", testHTTPNoRedirects)
	t.Run("header timeout", testHTTPHeaderTimeout)
	t.Run("body timeout", testHTTPBodyTimeout)
	t.Run("context cancel", testHTTPContextCancel)
	t.Run("proxy", testHTTPProxy)
	t.Run("doer error", testHTTPDoerError)
	t.Run("close idle connections", testHTTPCloseIdleConnections)
	t.Run("retry", testHTTPRetry)
}

func testHTTPHappyPath(t *testing.T) {
	for _, server := range servers {
		t.Run(serverName(server), func(t *testing.T) {
			d := newServerDirector(server, nil)
			i := serverInstruction{
				StatusCode: 203,
				Header:     map[string]string{"X-Foo": "bar"},
				Body:       []bodyChunk{{Data: []byte("hello, ")}, {Data: []byte("world")}},
			}
			resp, err := d.Open(i.toRequest(context.Background(), "POST", server.URL+"/path?q=1"))
			require.NoError(t, err)
			assert.Equal(t, 203, resp.StatusCode)
			assert.Equal(t, "Non-Authoritative Information", resp.Status)
			assert.Equal(t, "bar", resp.Header.Get("X-Foo"))
			assert.Equal(t, "/path?q=1", resp.Header.Get("X-Request-Uri"))
			assert.Equal(t, server.URL+"/path?q=1", resp.URL.String())
			assert.Equal(t, "hello, world", readAll(t, resp))
		})
	}
}

func testHTTPNoRedirects(t *testing.T) {
	d := newServerDirector(httpServer, nil)
	i := serverInstruction{StatusCode: 302, Header: map[string]string{"Location": "/elsewhere"}}
	resp, err := d.Open(i.toRequest(context.Background(), "GET", httpServer.URL))
	require.NoError(t, err)
	assert.Equal(t, 302, resp.StatusCode)
	assert.Equal(t, "/elsewhere", resp.Header.Get("Location"))
	assert.Equal(t, "", readAll(t, resp))
}

func testHTTPHeaderTimeout(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	d := &opener.Director{}
	d.Add(&HTTP{
		HTTPDoer:      serverClient(httpServer),
		TimeoutPolicy: timeout.Fixed(50 * time.Millisecond),
		Log:           zap.New(core),
	})
	i := serverInstruction{HeaderPause: 500 * time.Millisecond, StatusCode: 200}
	resp, err := d.Open(i.toRequest(context.Background(), "GET", httpServer.URL))
	assert.Nil(t, resp)
	var urlErr *url.Error
	require.ErrorAs(t, err, &urlErr)
	assert.True(t, urlErr.Timeout())
	assert.Equal(t, transient.Timeout, transient.Categorize(err))

	entries := logs.FilterMessage("fetch failed").AllUntimed()
	require.Len(t, entries, 1)
	assert.Equal(t, "Timeout", entries[0].ContextMap()["transient"])
}

func testHTTPBodyTimeout(t *testing.T) {
	d := newServerDirector(httpServer, timeout.Fixed(100*time.Millisecond))
	i := serverInstruction{
		StatusCode: 200,
		Body:       []bodyChunk{{Data: []byte("a")}, {Pause: time.Second, Data: []byte("b")}},
	}
	resp, err := d.Open(i.toRequest(context.Background(), "GET", httpServer.URL))
	require.NoError(t, err)
	_, err = io.ReadAll(resp)
	var urlErr *url.Error
	require.ErrorAs(t, err, &urlErr)
	assert.True(t, urlErr.Timeout())
	assert.NoError(t, resp.Close())
}

func testHTTPContextCancel(t *testing.T) {
	d := newServerDirector(httpServer, timeout.Infinite)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	i := serverInstruction{HeaderPause: 500 * time.Millisecond, StatusCode: 200}
	_, err := d.Open(i.toRequest(ctx, "GET", httpServer.URL))
	assert.ErrorIs(t, err, context.Canceled)
}

func testHTTPProxy(t *testing.T) {
	t.Run("plain http", func(t *testing.T) {
		d := &opener.Director{}
		d.Add(NewHTTP(nil))
		proxy, err := url.Parse(httpServer.URL)
		require.NoError(t, err)
		req := (&serverInstruction{StatusCode: 200}).toRequest(context.Background(), "GET", "http://origin.example.invalid/x")
		req.Proxy = proxy
		req.AddUnredirectedHeader("Proxy-Authorization", "Basic Zm9vOmJhcg==")
		resp, err := d.Open(req)
		require.NoError(t, err)
		assert.Equal(t, "http://origin.example.invalid/x", resp.Header.Get("X-Request-Uri"))
		assert.Equal(t, "Basic Zm9vOmJhcg==", resp.Header.Get("X-Proxy-Authorization"))
		assert.Equal(t, "", readAll(t, resp))
	})
	t.Run("https credentials moved to CONNECT", func(t *testing.T) {
		m := newMockHTTPDoer(t)
		var sent *http.Request
		m.On("Do", mock.Anything).Run(func(args mock.Arguments) {
			sent = args.Get(0).(*http.Request)
		}).Return(&http.Response{StatusCode: 200, Body: http.NoBody}, nil).Once()
		d := &opener.Director{}
		d.Add(NewHTTP(m))

		req, err := request.New("GET", "https://origin.example.com/", nil)
		require.NoError(t, err)
		req.Proxy = &url.URL{Scheme: "http", Host: "proxy.example.com:3128"}
		req.AddUnredirectedHeader("Proxy-Authorization", "Basic creds")
		resp, err := d.Open(req)
		require.NoError(t, err)
		require.NoError(t, resp.Close())

		require.NotNil(t, sent)
		assert.Empty(t, sent.Header.Get("Proxy-Authorization"))
		p, err := ProxyFromRequest(sent)
		require.NoError(t, err)
		assert.Equal(t, req.Proxy, p)
		h, err := proxyConnectHeader(sent.Context(), p, "origin.example.com:443")
		require.NoError(t, err)
		assert.Equal(t, "Basic creds", h.Get("Proxy-Authorization"))
		m.AssertExpectations(t)
	})
	t.Run("direct", func(t *testing.T) {
		hreq, err := http.NewRequest("GET", "http://example.com/", nil)
		require.NoError(t, err)
		p, err := ProxyFromRequest(hreq)
		assert.NoError(t, err)
		assert.Nil(t, p)
		h, err := proxyConnectHeader(context.Background(), nil, "example.com:443")
		assert.NoError(t, err)
		assert.Nil(t, h)
	})
}

func testHTTPDoerError(t *testing.T) {
	m := newMockHTTPDoer(t)
	m.On("Do", mock.Anything).Return(nil, syscall.ECONNREFUSED).Once()
	d := &opener.Director{}
	d.Add(NewHTTP(m))
	req, err := request.New("PUT", "http://example.com/thing", "body")
	require.NoError(t, err)
	resp, err := d.Open(req)
	assert.Nil(t, resp)
	var urlErr *url.Error
	require.ErrorAs(t, err, &urlErr)
	assert.Equal(t, "Put", urlErr.Op)
	assert.Equal(t, "http://example.com/thing", urlErr.URL)
	assert.True(t, errors.Is(err, syscall.ECONNREFUSED))
	assert.Equal(t, transient.ConnRefused, transient.Categorize(err))
	m.AssertExpectations(t)
}

type closeRecorder struct {
	io.Reader
	closed bool
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return nil
}

func testHTTPRetry(t *testing.T) {
	policy := retry.NewPolicy(retry.Times(2).And(retry.StatusCode(503).Or(retry.TransientErr)), retry.NewFixedWaiter(time.Millisecond))
	t.Run("transient error then success", func(t *testing.T) {
		m := newMockHTTPDoer(t)
		m.On("Do", mock.Anything).Return(nil, syscall.ECONNRESET).Once()
		m.On("Do", mock.Anything).Return(&http.Response{StatusCode: 200, Body: io.NopCloser(strings.NewReader("ok"))}, nil).Once()
		d := &opener.Director{}
		d.Add(&HTTP{HTTPDoer: m, RetryPolicy: policy})
		resp, err := d.Get("http://example.com/")
		require.NoError(t, err)
		assert.Equal(t, "ok", readAll(t, resp))
		m.AssertExpectations(t)
	})
	t.Run("retryable status is closed", func(t *testing.T) {
		first := &closeRecorder{Reader: strings.NewReader("busy")}
		m := newMockHTTPDoer(t)
		m.On("Do", mock.Anything).Return(&http.Response{StatusCode: 503, Body: first}, nil).Once()
		m.On("Do", mock.Anything).Return(&http.Response{StatusCode: 200, Body: io.NopCloser(strings.NewReader("ok"))}, nil).Once()
		d := &opener.Director{}
		d.Add(&HTTP{HTTPDoer: m, RetryPolicy: policy})
		resp, err := d.Get("http://example.com/")
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		assert.True(t, first.closed)
		assert.NoError(t, resp.Close())
		m.AssertExpectations(t)
	})
	t.Run("gives up", func(t *testing.T) {
		m := newMockHTTPDoer(t)
		m.On("Do", mock.Anything).Return(nil, syscall.ECONNREFUSED).Times(3)
		d := &opener.Director{}
		d.Add(&HTTP{HTTPDoer: m, RetryPolicy: policy})
		_, err := d.Get("http://example.com/")
		assert.ErrorIs(t, err, syscall.ECONNREFUSED)
		m.AssertExpectations(t)
	})
	t.Run("waits on clock", func(t *testing.T) {
		clk := clock.NewMock()
		var elapsed []time.Duration
		decider := retry.DeciderFunc(func(a *retry.Attempt) bool {
			elapsed = append(elapsed, a.Elapsed)
			return a.Index < 1 && a.Err != nil
		})
		m := newMockHTTPDoer(t)
		m.On("Do", mock.Anything).Return(nil, syscall.ECONNRESET).Once()
		m.On("Do", mock.Anything).Return(&http.Response{StatusCode: 200, Body: io.NopCloser(strings.NewReader("ok"))}, nil).Once()
		d := &opener.Director{}
		d.Add(&HTTP{HTTPDoer: m, RetryPolicy: retry.NewPolicy(decider, retry.NewFixedWaiter(10*time.Second)), Clock: clk})

		type result struct {
			resp *response.Response
			err  error
		}
		done := make(chan result, 1)
		go func() {
			resp, err := d.Get("http://example.com/")
			done <- result{resp, err}
		}()

		var r result
		require.Eventually(t, func() bool {
			select {
			case r = <-done:
				return true
			default:
				clk.Add(time.Second)
				return false
			}
		}, 5*time.Second, time.Millisecond)
		require.NoError(t, r.err)
		assert.Equal(t, "ok", readAll(t, r.resp))
		require.Len(t, elapsed, 2)
		assert.Equal(t, time.Duration(0), elapsed[0])
		assert.GreaterOrEqual(t, elapsed[1], 10*time.Second)
		m.AssertExpectations(t)
	})
	t.Run("context done while waiting", func(t *testing.T) {
		m := newMockHTTPDoer(t)
		m.On("Do", mock.Anything).Return(nil, syscall.ECONNRESET).Once()
		d := &opener.Director{}
		d.Add(&HTTP{HTTPDoer: m, RetryPolicy: retry.NewPolicy(retry.Times(1), retry.NewFixedWaiter(time.Hour))})
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		req, err := request.NewWithContext(ctx, "GET", "http://example.com/", nil)
		require.NoError(t, err)
		_, err = d.Open(req)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		m.AssertExpectations(t)
	})
}

func testHTTPCloseIdleConnections(t *testing.T) {
	t.Run("HTTPDoer is not an IdleCloser", func(t *testing.T) {
		m := newMockHTTPDoer(t)
		assert.NoError(t, NewHTTP(m).Close())
		m.AssertNotCalled(t, "CloseIdleConnections")
	})
	t.Run("HTTPDoer is an IdleCloser", func(t *testing.T) {
		m := newMockHTTPDoerWithCloseIdleConnections(t)
		m.On("CloseIdleConnections").Return().Once()
		d := &opener.Director{}
		d.Add(NewHTTP(m))
		assert.NoError(t, d.Close())
		m.AssertExpectations(t)
	})
	t.Run("zero value", func(t *testing.T) {
		assert.NoError(t, (&HTTP{}).Close())
	})
}

func TestNewClient(t *testing.T) {
	c := NewClient(nil)
	rt, ok := c.Transport.(*http.Transport)
	require.True(t, ok)
	assert.NotNil(t, rt.Proxy)
	assert.NotNil(t, rt.GetProxyConnectHeader)
	assert.Nil(t, c.Jar)
	assert.ErrorIs(t, c.CheckRedirect(nil, nil), http.ErrUseLastResponse)
}

func TestNewTracedTransport(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer func() {
		_ = tp.Shutdown(context.Background())
	}()
	rt := NewTracedTransport(httpServer.Client().Transport, tp, propagation.TraceContext{})
	d := &opener.Director{}
	d.Add(NewHTTP(NewClient(rt)))

	resp, err := d.Open((&serverInstruction{StatusCode: 200}).toRequest(context.Background(), "GET", httpServer.URL))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resp.Header.Get("X-Traceparent"), "00-"))
	assert.Equal(t, "", readAll(t, resp))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "opener GET", spans[0].Name())
}

type mockHTTPDoer struct {
	mock.Mock
}

func newMockHTTPDoer(t *testing.T) *mockHTTPDoer {
	m := &mockHTTPDoer{}
	m.Test(t)
	return m
}

func (m *mockHTTPDoer) Do(req *http.Request) (*http.Response, error) {
	args := m.Called(req)
	resp := args.Get(0)
	err := args.Error(1)
	if resp == nil {
		return nil, err
	}
	return resp.(*http.Response), err
}

type mockHTTPDoerWithCloseIdleConnections struct {
	mockHTTPDoer
}

func newMockHTTPDoerWithCloseIdleConnections(t *testing.T) *mockHTTPDoerWithCloseIdleConnections {
	m := &mockHTTPDoerWithCloseIdleConnections{}
	m.Test(t)
	return m
}

func (m *mockHTTPDoerWithCloseIdleConnections) CloseIdleConnections() {
	m.Called()
}
