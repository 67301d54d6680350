// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"context"
	"io"
	"net/http"
	"net/url"

	"github.com/benbjohnson/clock"
	"github.com/gogama/opener"
	"github.com/gogama/opener/request"
	"github.com/gogama/opener/response"
	"github.com/gogama/opener/retry"
	"github.com/gogama/opener/timeout"
	"github.com/gogama/opener/transient"
	"go.uber.org/zap"
)

// An HTTPDoer implements a Do method in the same manner as the GoLang
// standard library http.Client from the net/http package.
//
// The HTTPDoer used by HTTP must not follow redirects, so that
// redirect responses are handled by the Director's handlers.
type HTTPDoer interface {
	// Do sends an HTTP request and returns an HTTP response.
	Do(r *http.Request) (*http.Response, error)
}

// An IdleCloser closes idle connections.
type IdleCloser interface {
	CloseIdleConnections()
}

type proxyKey struct{}

type proxyAuthKey struct{}

// An HTTP is the scheme opener for http and https. Its zero value is a
// valid configuration.
//
// The zero value uses a client made by NewClient(nil), and
// timeout.DefaultPolicy as the timeout policy.
//
// The timeout covers a whole attempt, including reading the body, and
// the attempt is also bound to the request context. Both end when the
// response body is closed. Failed attempts are retried according to
// the retry policy.
//
// HTTP is not safe for concurrent use, matching the Director.
type HTTP struct {
	// Schemes lists the schemes to open. If empty, http and https are
	// opened.
	Schemes []string
	// HTTPDoer specifies the mechanics of sending HTTP requests and
	// receiving responses.
	//
	// If HTTPDoer is nil, a client made by NewClient(nil) is used.
	HTTPDoer HTTPDoer
	// TimeoutPolicy specifies how to set the timeout on a fetch
	// attempt.
	//
	// If TimeoutPolicy is nil, timeout.DefaultPolicy is used.
	TimeoutPolicy timeout.Policy
	// RetryPolicy decides whether a failed attempt is made again. A
	// response the policy retries is drained and closed first.
	//
	// If RetryPolicy is nil, retry.Never is used.
	RetryPolicy retry.Policy
	// Clock measures attempt times and waits between attempts. If nil,
	// the system clock is used.
	Clock clock.Clock
	// Log receives debug output about failed fetches. If nil, nothing
	// is logged.
	Log *zap.Logger

	defaultDoer HTTPDoer
}

// NewHTTP returns an HTTP opener sending requests with doer, or with a
// client made by NewClient(nil) if doer is nil.
func NewHTTP(doer HTTPDoer) *HTTP {
	return &HTTP{HTTPDoer: doer}
}

// Capabilities implements opener.Handler.
func (t *HTTP) Capabilities() []opener.Capability {
	if len(t.Schemes) == 0 {
		return opener.OpenCap("http", "https")
	}
	return opener.OpenCap(t.Schemes...)
}

// Open implements opener.SchemeOpener.
//
// Any returned error is of type *url.Error. The url.Error's Timeout
// method returns true if the fetch timed out.
func (t *HTTP) Open(_ *opener.Director, req *request.Request) (*response.Response, error) {
	policy := t.RetryPolicy
	if policy == nil {
		policy = retry.Never
	}
	c := t.Clock
	if c == nil {
		c = clock.New()
	}
	start := c.Now()
	for i := 0; ; i++ {
		resp, err := t.attempt(req)
		a := &retry.Attempt{
			Request:  req,
			Index:    i,
			Elapsed:  c.Since(start),
			Response: resp,
			Err:      err,
		}
		if !policy.Decide(a) {
			return resp, err
		}
		wait := policy.Wait(a)
		t.logger().Debug("retrying",
			zap.String("url", req.URL.String()),
			zap.Int("attempt", i),
			zap.Int("status", a.StatusCode()),
			zap.Duration("wait", wait),
			zap.Error(err))
		if resp != nil {
			_, _ = io.Copy(io.Discard, resp)
			_ = resp.Close()
		}
		timer := c.Timer(wait)
		select {
		case <-timer.C:
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.URLError(req.Context().Err())
		}
	}
}

func (t *HTTP) attempt(req *request.Request) (*response.Response, error) {
	policy := t.TimeoutPolicy
	if policy == nil {
		policy = timeout.DefaultPolicy
	}
	ctx, cancel := context.WithTimeout(req.Context(), policy.Timeout(req))
	hreq := req.ToHTTP(ctx)

	if req.Proxy != nil {
		ctx = context.WithValue(ctx, proxyKey{}, req.Proxy)
		if req.Scheme() == "https" {
			// Credentials for the proxy go on the CONNECT request, not
			// through the tunnel to the origin server.
			if v := hreq.Header.Get("Proxy-Authorization"); v != "" {
				ctx = context.WithValue(ctx, proxyAuthKey{}, v)
				hreq.Header.Del("Proxy-Authorization")
			}
		}
		hreq = hreq.WithContext(ctx)
	}

	hresp, err := t.doer().Do(hreq)
	if err != nil {
		cancel()
		err = req.URLError(err)
		t.logger().Debug("fetch failed",
			zap.String("url", req.URL.String()),
			zap.Stringer("transient", transient.Categorize(err)),
			zap.Error(err))
		return nil, err
	}
	hresp.Body = &cancelBody{ReadCloser: hresp.Body, req: req, cancel: cancel}
	return response.FromHTTP(hresp), nil
}

// Close closes the idle connections of the HTTPDoer, if it has a
// CloseIdleConnections method.
func (t *HTTP) Close() error {
	if ic, ok := t.doer().(IdleCloser); ok {
		ic.CloseIdleConnections()
	}
	return nil
}

func (t *HTTP) doer() HTTPDoer {
	if t.HTTPDoer != nil {
		return t.HTTPDoer
	}
	if t.defaultDoer == nil {
		t.defaultDoer = NewClient(nil)
	}
	return t.defaultDoer
}

func (t *HTTP) logger() *zap.Logger {
	if t.Log == nil {
		return zap.NewNop()
	}
	return t.Log
}

// NewClient returns an HTTP client suitable for HTTP: it never follows
// redirects and keeps no cookies. If rt is nil, a transport made by
// NewRoundTripper is used.
func NewClient(rt http.RoundTripper) *http.Client {
	if rt == nil {
		rt = NewRoundTripper()
	}
	return &http.Client{
		Transport: rt,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// NewRoundTripper returns a clone of http.DefaultTransport which takes
// its proxy from the request (see ProxyFromRequest) rather than from
// the environment.
func NewRoundTripper() *http.Transport {
	rt := http.DefaultTransport.(*http.Transport).Clone()
	rt.Proxy = ProxyFromRequest
	rt.GetProxyConnectHeader = proxyConnectHeader
	return rt
}

// ProxyFromRequest returns the proxy which HTTP chose for r from the
// request.Request's Proxy field, or nil for a direct connection. It is
// meant for use as the Proxy function of an http.Transport.
func ProxyFromRequest(r *http.Request) (*url.URL, error) {
	p, _ := r.Context().Value(proxyKey{}).(*url.URL)
	return p, nil
}

func proxyConnectHeader(ctx context.Context, _ *url.URL, _ string) (http.Header, error) {
	v, ok := ctx.Value(proxyAuthKey{}).(string)
	if !ok {
		return nil, nil
	}
	return http.Header{"Proxy-Authorization": {v}}, nil
}

// cancelBody releases the fetch context when the body is closed, and
// reports read errors as *url.Error.
type cancelBody struct {
	io.ReadCloser
	req    *request.Request
	cancel context.CancelFunc
}

func (b *cancelBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if err != nil && err != io.EOF {
		err = b.req.URLError(err)
	}
	return n, err
}

func (b *cancelBody) Close() error {
	defer b.cancel()
	return b.ReadCloser.Close()
}
