// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package handler

import (
	"net/http"
	"net/http/cookiejar"
	"strings"

	"github.com/gogama/opener"
	"github.com/gogama/opener/request"
	"github.com/gogama/opener/response"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"
)

// A CookieJar stores cookies set by responses and supplies them to
// requests.
type CookieJar interface {
	// AddCookieHeader adds the cookies which apply to req as a Cookie
	// header.
	AddCookieHeader(req *request.Request) error
	// ExtractCookies stores the cookies set by resp, which answered req.
	ExtractCookies(resp *response.Response, req *request.Request) error
}

// HTTPJar adapts a standard library cookie jar to a CookieJar.
//
// The adapted jar adds cookies as an unredirected Cookie header, and
// leaves alone a request which already has a Cookie header.
func HTTPJar(jar http.CookieJar) CookieJar {
	if jar == nil {
		panic("opener/handler: nil cookie jar")
	}
	return httpJar{jar}
}

// NewJar returns an empty in-memory cookie jar which uses the public
// suffix list to refuse cookies set for public domains such as
// "co.uk".
func NewJar() http.CookieJar {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		// cookiejar.New never fails.
		panic(err)
	}
	return jar
}

type httpJar struct {
	jar http.CookieJar
}

func (j httpJar) AddCookieHeader(req *request.Request) error {
	if req.HasHeader("Cookie") {
		return nil
	}
	cookies := j.jar.Cookies(req.URL)
	if len(cookies) == 0 {
		return nil
	}
	pairs := lo.Map(cookies, func(c *http.Cookie, _ int) string {
		return (&http.Cookie{Name: c.Name, Value: c.Value}).String()
	})
	req.AddUnredirectedHeader("Cookie", strings.Join(pairs, "; "))
	return nil
}

func (j httpJar) ExtractCookies(resp *response.Response, req *request.Request) error {
	cookies := (&http.Response{Header: resp.Header}).Cookies()
	if len(cookies) == 0 {
		return nil
	}
	u := resp.URL
	if u == nil {
		u = req.URL
	}
	j.jar.SetCookies(u, cookies)
	return nil
}

// A Cookies handler sends cookies from a CookieJar with http and https
// requests, and stores the cookies set by their responses. Its zero
// value uses a jar made by NewJar.
//
// A jar error on either side ends the fetch with a *url.Error wrapping
// it, and the response, if any, is closed.
type Cookies struct {
	// Jar is the cookie jar. If nil, a jar made by NewJar is installed
	// on first use.
	Jar CookieJar
	// Log receives debug output. If nil, nothing is logged.
	Log *zap.Logger
}

// NewCookies returns a Cookies handler for jar, or for a jar made by
// NewJar if jar is nil.
func NewCookies(jar CookieJar) *Cookies {
	if jar == nil {
		jar = HTTPJar(NewJar())
	}
	return &Cookies{Jar: jar}
}

// Capabilities implements opener.Handler.
func (h *Cookies) Capabilities() []opener.Capability {
	return append(opener.RequestCap(httpSchemes...), opener.ResponseCap(httpSchemes...)...)
}

// ProcessRequest implements opener.RequestProcessor.
func (h *Cookies) ProcessRequest(_ *opener.Director, req *request.Request) (*request.Request, error) {
	if err := h.jar().AddCookieHeader(req); err != nil {
		return nil, req.URLError(err)
	}
	return req, nil
}

// ProcessResponse implements opener.ResponseProcessor.
func (h *Cookies) ProcessResponse(_ *opener.Director, req *request.Request, resp *response.Response) opener.Result {
	if err := h.jar().ExtractCookies(resp, req); err != nil {
		nopIfNil(h.Log).Debug("cannot store cookies", zap.String("url", req.URL.String()), zap.Error(err))
		drainClose(resp)
		return opener.Fail(req.URLError(err))
	}
	return opener.Continue(resp)
}

func (h *Cookies) jar() CookieJar {
	if h.Jar == nil {
		h.Jar = HTTPJar(NewJar())
	}
	return h.Jar
}
