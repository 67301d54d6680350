// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"net/http"
	urlpkg "net/url"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	template, _ = http.NewRequest("GET", "", nil)
)

const (
	nilCtxMsg = "opener/request: nil context"
)

// A Request describes one logical fetch of a URL.
//
// Request handlers mutate a Request in place as it travels through a
// director. A redirect handler does not mutate the request it is
// redirecting; it creates a new request with Follow.
type Request struct {
	// Method specifies the request method (GET, POST, PUT, etc.). An
	// empty string means the method is derived from the body: GET if
	// there is no body and POST otherwise. Use GetMethod to read the
	// effective method.
	Method string

	// URL specifies the URL to access.
	URL *urlpkg.URL

	// Header contains the standard request headers. Standard headers
	// are copied onto any request synthesized from this one by a
	// redirect.
	Header http.Header

	// UnredirectedHeader contains headers which apply only to this
	// request. They are sent with the request, take precedence over a
	// standard header of the same name, and are never copied onto a
	// redirected request.
	UnredirectedHeader http.Header

	// Body is the pre-buffered request body to be sent. A nil or
	// empty body indicates no request body should be sent.
	Body []byte

	// Host optionally overrides the Host header to send. If empty, the
	// value of URL.Host will be sent.
	Host string

	// Proxy is the proxy the transport should route this request
	// through. It is normally set by a proxy handler, and nil means
	// connect directly.
	Proxy *urlpkg.URL

	// Unverifiable reports whether the user had no option to approve
	// this request, for example because it was caused by a redirect.
	// It is an input to cookie policy.
	Unverifiable bool

	// OriginHost is the host name of the request the user originally
	// initiated. It is an input to cookie policy and is preserved
	// across redirects.
	OriginHost string

	// Origin is the request the user originally initiated, or nil if
	// this request is itself the original.
	Origin *Request

	// Lineage is the record of URLs visited by this request and its
	// redirect descendants. It is shared by pointer across the chain.
	Lineage *Lineage

	// ctx allows the fetch to be cancelled. It should only be modified
	// by copying the whole Request using WithContext.
	ctx context.Context
}

// New wraps NewWithContext using the background context.
//
// Parameter body may be nil (empty body), or it may be a string,
// []byte, url.Values, io.Reader, or io.ReadCloser. It is buffered by
// BodyBytes, so an empty body of any type leaves Body nil.
func New(method, url string, body interface{}) (*Request, error) {
	return NewWithContext(context.Background(), method, url, body)
}

// NewWithContext returns a new Request given a method, URL, and
// optional body.
//
// An empty method is kept empty, so the effective method follows the
// presence of a body (see GetMethod). The new request has a fresh
// Lineage and its OriginHost is the host name of url.
func NewWithContext(ctx context.Context, method, url string, body interface{}) (*Request, error) {
	if ctx == nil {
		return nil, errors.New(nilCtxMsg)
	}
	if method != "" && !validMethod(method) {
		return nil, errors.Newf("opener/request: invalid method %q", method)
	}
	u, err := urlpkg.Parse(strings.TrimSpace(url))
	if err != nil {
		return nil, err
	}
	u.Host = removeEmptyPort(u.Host)
	b, err := BodyBytes(body)
	if err != nil {
		return nil, err
	}
	return &Request{
		ctx:                ctx,
		Method:             method,
		URL:                u,
		Header:             make(http.Header),
		UnredirectedHeader: make(http.Header),
		Body:               b,
		Host:               u.Host,
		OriginHost:         u.Hostname(),
		Lineage:            &Lineage{},
	}, nil
}

// Context returns the request's context. To change the context, use
// WithContext.
//
// The returned context is always non-nil; it defaults to the
// background context.
func (r *Request) Context() context.Context {
	if r.ctx != nil {
		return r.ctx
	}
	return context.Background()
}

// WithContext returns a shallow copy of r with its context changed to
// ctx, which must be non-nil.
func (r *Request) WithContext(ctx context.Context) *Request {
	if ctx == nil {
		panic(nilCtxMsg)
	}
	r2 := new(Request)
	*r2 = *r
	r2.ctx = ctx
	return r2
}

// GetMethod returns the effective request method. If Method is empty,
// the effective method is POST when the request has a body and GET
// otherwise.
func (r *Request) GetMethod() string {
	if r.Method != "" {
		return r.Method
	}
	if len(r.Body) > 0 {
		return "POST"
	}
	return "GET"
}

// Scheme returns the lower-cased scheme of the request URL.
func (r *Request) Scheme() string {
	if r.URL == nil {
		return ""
	}
	return strings.ToLower(r.URL.Scheme)
}

// HasHeader reports whether a header with the given name is present in
// either header group.
func (r *Request) HasHeader(name string) bool {
	return len(r.UnredirectedHeader.Values(name)) > 0 || len(r.Header.Values(name)) > 0
}

// GetHeader returns the first value of the named header, preferring the
// unredirected group, or def if the header is not present.
func (r *Request) GetHeader(name, def string) string {
	if v := r.UnredirectedHeader.Values(name); len(v) > 0 {
		return v[0]
	}
	if v := r.Header.Values(name); len(v) > 0 {
		return v[0]
	}
	return def
}

// AddUnredirectedHeader sets a header that applies to this request only
// and is dropped if the request is redirected. Any existing value of
// the same name in the unredirected group is replaced.
func (r *Request) AddUnredirectedHeader(name, value string) {
	if r.UnredirectedHeader == nil {
		r.UnredirectedHeader = make(http.Header)
	}
	r.UnredirectedHeader.Set(name, value)
}

// AllHeaders returns a new header containing both header groups, with
// unredirected headers replacing standard headers of the same name.
func (r *Request) AllHeaders() http.Header {
	h := r.Header.Clone()
	if h == nil {
		h = make(http.Header)
	}
	for k, v := range r.UnredirectedHeader {
		h[k] = append([]string(nil), v...)
	}
	return h
}

// AddCookie adds a cookie to the standard headers. Per RFC 6265 section
// 5.4, AddCookie does not attach more than one Cookie header field.
// That means all cookies, if any, are written into the same line,
// separated by semicolons.
func (r *Request) AddCookie(c *http.Cookie) {
	if r.Header == nil {
		r.Header = make(http.Header)
	}
	c2 := &http.Cookie{Name: c.Name, Value: c.Value}
	s := c2.String()
	if h := r.Header.Get("Cookie"); h != "" {
		r.Header.Set("Cookie", h+"; "+s)
	} else {
		r.Header.Set("Cookie", s)
	}
}

// SetBasicAuth sets the request's standard Authorization header to use
// HTTP Basic Authentication with the provided username and password.
func (r *Request) SetBasicAuth(username, password string) {
	if r.Header == nil {
		r.Header = make(http.Header)
	}
	r.Header.Set("Authorization", BasicAuth(username, password))
}

// Clone returns a copy of r with both header groups deep-copied. The
// copy shares r's Lineage, Origin, and context.
func (r *Request) Clone() *Request {
	r2 := new(Request)
	*r2 = *r
	r2.Header = r.Header.Clone()
	r2.UnredirectedHeader = r.UnredirectedHeader.Clone()
	if r2.Header == nil {
		r2.Header = make(http.Header)
	}
	if r2.UnredirectedHeader == nil {
		r2.UnredirectedHeader = make(http.Header)
	}
	return r2
}

// Follow returns a new body-less request for u derived from r for the
// purpose of following a redirect.
//
// The new request carries a copy of r's standard headers but none of
// its unredirected headers. It shares r's Lineage and context, keeps
// r's OriginHost, records r's origin as its own Origin, and is marked
// unverifiable. Its Method is empty, meaning GET.
func (r *Request) Follow(u *urlpkg.URL) *Request {
	origin := r.Origin
	if origin == nil {
		origin = r
	}
	lineage := r.Lineage
	if lineage == nil {
		lineage = &Lineage{}
		r.Lineage = lineage
	}
	h := r.Header.Clone()
	if h == nil {
		h = make(http.Header)
	}
	return &Request{
		ctx:                r.ctx,
		URL:                u,
		Header:             h,
		UnredirectedHeader: make(http.Header),
		Host:               removeEmptyPort(u.Host),
		Unverifiable:       true,
		OriginHost:         r.OriginHost,
		Origin:             origin,
		Lineage:            lineage,
	}
}

// ToHTTP creates an HTTP request corresponding to r. Both header
// groups are merged into the HTTP request's header. The context of the
// new request is set to ctx, which may not be nil.
func (r *Request) ToHTTP(ctx context.Context) *http.Request {
	hr := template.WithContext(ctx)
	hr.Method = r.GetMethod()
	hr.URL = r.URL
	hr.Header = r.AllHeaders()
	if len(r.Body) > 0 {
		hr.Body = io.NopCloser(bytes.NewReader(r.Body))
		hr.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(r.Body)), nil
		}
		hr.ContentLength = int64(len(r.Body))
	}
	hr.Host = r.Host
	return hr
}

// URLError wraps err in a *url.Error describing r, unless err already
// is one.
func (r *Request) URLError(err error) error {
	if _, ok := err.(*urlpkg.Error); ok {
		return err
	}
	u := ""
	if r.URL != nil {
		u = r.URL.String()
	}
	return &urlpkg.Error{
		Op:  urlErrorOp(r.GetMethod()),
		URL: u,
		Err: err,
	}
}

// BasicAuth returns the value of an Authorization or
// Proxy-Authorization header for HTTP Basic Authentication.
//
// See 2 (end of page 4) https://www.ietf.org/rfc/rfc2617.txt
// "To receive authorization, the client sends the userid and password,
// separated by a single colon (":") character, within a base64
// encoded string in the credentials."
// It is not meant to be urlencoded.
func BasicAuth(username, password string) string {
	auth := username + ":" + password
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(auth))
}

// urlErrorOp is lifted verbatim from net/http/client.go
func urlErrorOp(method string) string {
	if method == "" {
		return "Get"
	}
	return method[:1] + strings.ToLower(method[1:])
}

func validMethod(method string) bool {
	/*
	     Method         = "OPTIONS"                ; Section 9.2
	                    | "GET"                    ; Section 9.3
	                    | "HEAD"                   ; Section 9.4
	                    | "POST"                   ; Section 9.5
	                    | "PUT"                    ; Section 9.6
	                    | "DELETE"                 ; Section 9.7
	                    | "TRACE"                  ; Section 9.8
	                    | "CONNECT"                ; Section 9.9
	                    | extension-method
	   extension-method = token
	     token          = 1*<any CHAR except CTLs or separators>
	*/
	return len(method) > 0 && strings.IndexFunc(method, isNotToken) == -1
}

func isNotToken(r rune) bool {
	return !isTokenRune(r)
}

// isTokenRune classifies a rune as being valid for a token as defined
// in https://tools.ietf.org/html/rfc7230#section-3.2.6
func isTokenRune(r rune) bool {
	if r >= 127 || r <= ' ' {
		return false
	}
	return !strings.ContainsRune(`"(),/:;<=>?@[\]{}`, r)
}

// hasPort is lifted verbatim from net/http/http.go
//
// Given a string of the form "host", "host:port", or "[ipv6::address]:port",
// return true if the string includes a port.
func hasPort(s string) bool { return strings.LastIndex(s, ":") > strings.LastIndex(s, "]") }

// removeEmptyPort is lifted verbatim from net/http/http.go
//
// removeEmptyPort strips the empty port in ":port" to ""
// as mandated by RFC 3986 Section 6.2.3.
func removeEmptyPort(host string) string {
	if hasPort(host) {
		return strings.TrimSuffix(host, ":")
	}
	return host
}
