// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package handler

import (
	"net/http"
	"strings"

	"github.com/gogama/opener"
	"github.com/gogama/opener/auth"
	"github.com/gogama/opener/request"
	"github.com/gogama/opener/response"
	"go.uber.org/zap"
)

// DigestAuthOrder is the order key of DigestAuth and ProxyDigestAuth.
// It is lower than the order of the basic handlers so that digest, the
// stronger scheme, is tried first when a server offers both.
const DigestAuthOrder = 490

// authKind describes the headers and status code of one side of HTTP
// authentication: the origin server or the proxy.
type authKind struct {
	code            int
	challengeHeader string
	authHeader      string
	proxy           bool
}

var (
	originAuth = authKind{
		code:            http.StatusUnauthorized,
		challengeHeader: "WWW-Authenticate",
		authHeader:      "Authorization",
	}
	proxyAuth = authKind{
		code:            http.StatusProxyAuthRequired,
		challengeHeader: "Proxy-Authenticate",
		authHeader:      "Proxy-Authorization",
		proxy:           true,
	}
)

// authority returns the URI to look credentials up by: the full request
// URL for an origin server, and the proxy host for a proxy.
func (k authKind) authority(req *request.Request) (string, bool) {
	if !k.proxy {
		return req.URL.String(), true
	}
	if req.Proxy == nil {
		return "", false
	}
	return req.Proxy.Host, true
}

// challenge returns the first challenge in header for scheme.
func (k authKind) challenge(header http.Header, scheme string) (auth.Challenge, bool) {
	return auth.Find(auth.ParseChallenges(header.Values(k.challengeHeader)), scheme)
}

// retry reopens a copy of req carrying the given credentials, unless
// req already carries exactly those credentials.
func (k authKind) retry(d *opener.Director, req *request.Request, resp *response.Response, value string) (*response.Response, error) {
	if req.GetHeader(k.authHeader, "") == value {
		return nil, nil
	}
	next := req.Clone()
	next.AddUnredirectedHeader(k.authHeader, value)
	drainClose(resp)
	return d.Open(next)
}

type basic struct {
	kind      authKind
	passwords auth.PasswordManager
	log       *zap.Logger
}

func (b basic) handle(d *opener.Director, req *request.Request, resp *response.Response, header http.Header) (*response.Response, error) {
	if b.passwords == nil {
		return nil, nil
	}
	c, ok := b.kind.challenge(header, "basic")
	if !ok {
		return nil, nil
	}
	uri, ok := b.kind.authority(req)
	if !ok {
		return nil, nil
	}
	user, password, ok := b.passwords.FindUserPassword(c.Realm(), uri)
	if !ok {
		nopIfNil(b.log).Debug("no basic credentials",
			zap.String("realm", c.Realm()), zap.String("uri", uri))
		return nil, nil
	}
	return b.kind.retry(d, req, resp, request.BasicAuth(user, password))
}

// A BasicAuth is an error handler which answers 401 responses carrying
// a Basic WWW-Authenticate challenge with credentials looked up by the
// challenge realm and the request URL.
//
// The credentials are added as an unredirected Authorization header to
// a copy of the request, which is reopened. A request which already
// carries the same credentials is not retried, so wrong credentials end
// with the 401 rather than a loop.
type BasicAuth struct {
	// Passwords holds the credentials. If nil, no challenge is
	// answered.
	Passwords auth.PasswordManager
	// Log receives debug output. If nil, nothing is logged.
	Log *zap.Logger
}

// NewBasicAuth returns a BasicAuth using pm, or a new auth.Manager if
// pm is nil.
func NewBasicAuth(pm auth.PasswordManager) *BasicAuth {
	if pm == nil {
		pm = auth.NewManager()
	}
	return &BasicAuth{Passwords: pm}
}

// Capabilities implements opener.Handler.
func (h *BasicAuth) Capabilities() []opener.Capability {
	return opener.ErrorCap("http", http.StatusUnauthorized)
}

// HandleError implements opener.ErrorHandler.
func (h *BasicAuth) HandleError(d *opener.Director, req *request.Request, resp *response.Response, _ int, _ string, header http.Header) (*response.Response, error) {
	return basic{originAuth, h.Passwords, h.Log}.handle(d, req, resp, header)
}

// A ProxyBasicAuth is like BasicAuth but answers 407 responses carrying
// a Basic Proxy-Authenticate challenge. Credentials are looked up by
// the host of the request's proxy and sent in Proxy-Authorization.
type ProxyBasicAuth struct {
	// Passwords holds the credentials. If nil, no challenge is
	// answered.
	Passwords auth.PasswordManager
	// Log receives debug output. If nil, nothing is logged.
	Log *zap.Logger
}

// NewProxyBasicAuth returns a ProxyBasicAuth using pm, or a new
// auth.ProxyManager if pm is nil.
func NewProxyBasicAuth(pm auth.PasswordManager) *ProxyBasicAuth {
	if pm == nil {
		pm = auth.NewProxyManager()
	}
	return &ProxyBasicAuth{Passwords: pm}
}

// Capabilities implements opener.Handler.
func (h *ProxyBasicAuth) Capabilities() []opener.Capability {
	return opener.ErrorCap("http", http.StatusProxyAuthRequired)
}

// HandleError implements opener.ErrorHandler.
func (h *ProxyBasicAuth) HandleError(d *opener.Director, req *request.Request, resp *response.Response, _ int, _ string, header http.Header) (*response.Response, error) {
	return basic{proxyAuth, h.Passwords, h.Log}.handle(d, req, resp, header)
}

type digest struct {
	kind      authKind
	passwords auth.PasswordManager
	state     *auth.Digest
	log       *zap.Logger
}

func (g digest) handle(d *opener.Director, req *request.Request, resp *response.Response, header http.Header) (*response.Response, error) {
	if g.passwords == nil {
		return nil, nil
	}
	if strings.HasPrefix(req.GetHeader(g.kind.authHeader, ""), "Digest ") {
		// Already tried.
		return nil, nil
	}
	c, ok := g.kind.challenge(header, "digest")
	if !ok {
		return nil, nil
	}
	uri, ok := g.kind.authority(req)
	if !ok {
		return nil, nil
	}
	log := nopIfNil(g.log)
	user, password, ok := g.passwords.FindUserPassword(c.Realm(), uri)
	if !ok {
		log.Debug("no digest credentials",
			zap.String("realm", c.Realm()), zap.String("uri", uri))
		return nil, nil
	}
	creds, err := g.state.Authorize(c, req.GetMethod(), requestTarget(req), user, password)
	if err != nil {
		log.Debug("cannot answer digest challenge", zap.String("realm", c.Realm()), zap.Error(err))
		return nil, nil
	}
	return g.kind.retry(d, req, resp, "Digest "+creds)
}

// requestTarget returns the request target as sent on the request line,
// which is the absolute URL for a plain http request through a proxy.
func requestTarget(req *request.Request) string {
	if req.Proxy != nil && req.Scheme() == "http" {
		return req.URL.String()
	}
	return req.URL.RequestURI()
}

// A DigestAuth is an error handler which answers 401 responses carrying
// a Digest WWW-Authenticate challenge. Credentials are looked up by the
// challenge realm and the request URL.
//
// A request which already carries Digest credentials is not retried, so
// each request gets a single digest attempt.
type DigestAuth struct {
	// Passwords holds the credentials. If nil, no challenge is
	// answered.
	Passwords auth.PasswordManager
	// Log receives debug output. If nil, nothing is logged.
	Log *zap.Logger

	digest auth.Digest
}

// NewDigestAuth returns a DigestAuth using pm, or a new auth.Manager if
// pm is nil.
func NewDigestAuth(pm auth.PasswordManager) *DigestAuth {
	if pm == nil {
		pm = auth.NewManager()
	}
	return &DigestAuth{Passwords: pm}
}

// Capabilities implements opener.Handler.
func (h *DigestAuth) Capabilities() []opener.Capability {
	return opener.ErrorCap("http", http.StatusUnauthorized)
}

// Order implements opener.Orderer.
func (h *DigestAuth) Order() int {
	return DigestAuthOrder
}

// HandleError implements opener.ErrorHandler.
func (h *DigestAuth) HandleError(d *opener.Director, req *request.Request, resp *response.Response, _ int, _ string, header http.Header) (*response.Response, error) {
	return digest{originAuth, h.Passwords, &h.digest, h.Log}.handle(d, req, resp, header)
}

// A ProxyDigestAuth is like DigestAuth but answers 407 responses
// carrying a Digest Proxy-Authenticate challenge, looking credentials up
// by the host of the request's proxy.
type ProxyDigestAuth struct {
	// Passwords holds the credentials. If nil, no challenge is
	// answered.
	Passwords auth.PasswordManager
	// Log receives debug output. If nil, nothing is logged.
	Log *zap.Logger

	digest auth.Digest
}

// NewProxyDigestAuth returns a ProxyDigestAuth using pm, or a new
// auth.ProxyManager if pm is nil.
func NewProxyDigestAuth(pm auth.PasswordManager) *ProxyDigestAuth {
	if pm == nil {
		pm = auth.NewProxyManager()
	}
	return &ProxyDigestAuth{Passwords: pm}
}

// Capabilities implements opener.Handler.
func (h *ProxyDigestAuth) Capabilities() []opener.Capability {
	return opener.ErrorCap("http", http.StatusProxyAuthRequired)
}

// Order implements opener.Orderer.
func (h *ProxyDigestAuth) Order() int {
	return DigestAuthOrder
}

// HandleError implements opener.ErrorHandler.
func (h *ProxyDigestAuth) HandleError(d *opener.Director, req *request.Request, resp *response.Response, _ int, _ string, header http.Header) (*response.Response, error) {
	return digest{proxyAuth, h.Passwords, &h.digest, h.Log}.handle(d, req, resp, header)
}
