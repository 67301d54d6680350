// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package handler

import (
	"net/url"
	"strings"

	"github.com/gogama/opener"
	"github.com/gogama/opener/request"
	"go.uber.org/zap"
	"golang.org/x/net/http/httpproxy"
)

// A Proxy is a request filter which routes http and https requests
// through a proxy by setting request.Request.Proxy, which the HTTP
// transport honors.
//
// If the proxy URL carries a user name and password, they are removed
// from the URL and sent as Basic credentials in an unredirected
// Proxy-Authorization header, unless the request already has one.
type Proxy struct {
	// Func returns the proxy for a request URL, or nil for a direct
	// connection.
	Func func(u *url.URL) (*url.URL, error)
	// Log receives debug output. If nil, nothing is logged.
	Log *zap.Logger
}

// NewProxy returns a Proxy which routes requests by URL scheme. The
// keys of proxies are schemes and the values are proxy URLs. A value
// without a scheme, such as "proxy.example.com:3128", is taken to be an
// http proxy. Only the http and https keys are used.
func NewProxy(proxies map[string]string) *Proxy {
	byScheme := make(map[string]string, len(proxies))
	for scheme, p := range proxies {
		if p == "" {
			continue
		}
		if !strings.Contains(p, "://") {
			p = "http://" + p
		}
		byScheme[strings.ToLower(scheme)] = p
	}
	return &Proxy{
		Func: func(u *url.URL) (*url.URL, error) {
			p, ok := byScheme[strings.ToLower(u.Scheme)]
			if !ok {
				return nil, nil
			}
			return url.Parse(p)
		},
	}
}

// ProxyFromEnvironment returns a Proxy configured from the HTTP_PROXY,
// HTTPS_PROXY and NO_PROXY environment variables (or their lower-case
// versions).
func ProxyFromEnvironment() *Proxy {
	return &Proxy{Func: httpproxy.FromEnvironment().ProxyFunc()}
}

// Capabilities implements opener.Handler.
func (h *Proxy) Capabilities() []opener.Capability {
	return opener.RequestCap(httpSchemes...)
}

// ProcessRequest implements opener.RequestProcessor.
func (h *Proxy) ProcessRequest(_ *opener.Director, req *request.Request) (*request.Request, error) {
	if h.Func == nil {
		return req, nil
	}
	p, err := h.Func(req.URL)
	if err != nil {
		return nil, req.URLError(err)
	}
	if p == nil {
		return req, nil
	}
	proxy := *p
	if u := proxy.User; u != nil {
		proxy.User = nil
		if !req.HasHeader("Proxy-Authorization") {
			password, _ := u.Password()
			req.AddUnredirectedHeader("Proxy-Authorization", request.BasicAuth(u.Username(), password))
		}
	}
	req.Proxy = &proxy
	nopIfNil(h.Log).Debug("using proxy",
		zap.String("url", req.URL.String()), zap.String("proxy", proxy.String()))
	return req, nil
}
