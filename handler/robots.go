// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package handler

import (
	"net/http"
	"strings"

	"github.com/gogama/opener"
	"github.com/gogama/opener/request"
	"github.com/gogama/opener/response"
	"github.com/gogama/opener/robots"
	"go.uber.org/zap"
)

// RobotsOrder is the order key of Robots. It is late so that the
// request has its final headers, notably User-Agent, when it is checked.
const RobotsOrder = 800

const robotsPath = "/robots.txt"

// A Robots is a request filter which refuses http and https requests
// forbidden by the robots.txt file of the target site. Its zero value is
// ready to use.
//
// Robots keeps the rules of the site it saw last, and fetches the
// robots.txt of a new site through the Director before letting the
// first request to it through. Sites are told apart by scheme and
// authority, so "http://example.com" and "http://example.com:80" are
// distinct sites. Requests for /robots.txt itself, and redirects of such
// requests within the same site, are never checked.
//
// A refused request fails with an *opener.HTTPError whose code is 403
// and whose Reason is opener.ErrRobotsDisallowed.
type Robots struct {
	// Factory returns empty rules for a new site. If nil, robots.New is
	// used.
	Factory func() robots.Rules
	// Log receives debug output. If nil, nothing is logged.
	Log *zap.Logger

	site  string
	rules robots.Rules
}

// Capabilities implements opener.Handler.
func (h *Robots) Capabilities() []opener.Capability {
	return opener.RequestCap(httpSchemes...)
}

// Order implements opener.Orderer.
func (h *Robots) Order() int {
	return RobotsOrder
}

// ProcessRequest implements opener.RequestProcessor.
func (h *Robots) ProcessRequest(d *opener.Director, req *request.Request) (*request.Request, error) {
	if req.URL.EscapedPath() == robotsPath {
		return req, nil
	}
	host := req.URL.Host
	if o := req.Origin; o != nil && o.URL != nil && o.URL.EscapedPath() == robotsPath && strings.EqualFold(o.URL.Host, host) {
		return req, nil
	}

	site := req.Scheme() + "://" + host
	if site != h.site || h.rules == nil {
		rules := h.factory()()
		if p, ok := rules.(*robots.Parser); ok && p.Log == nil {
			p.Log = h.Log
		}
		rules.SetOpener(d)
		rules.SetURL(site + robotsPath)
		// Read may reenter this handler, so the new rules are only
		// installed once it returns.
		if err := rules.Read(); err != nil {
			return nil, req.URLError(err)
		}
		h.site, h.rules = site, rules
		nopIfNil(h.Log).Debug("read robots.txt", zap.String("site", site))
	}

	agent := req.GetHeader("User-Agent", "")
	if h.rules.CanFetch(agent, req.URL.String()) {
		return req, nil
	}
	const msg = "request disallowed by robots.txt"
	resp := response.FromBytes([]byte(msg), nil, req.URL, http.StatusForbidden, msg)
	e := opener.NewHTTPError(req, resp, http.StatusForbidden, msg, resp.Header)
	e.Reason = opener.ErrRobotsDisallowed
	return nil, e
}

func (h *Robots) factory() func() robots.Rules {
	if h.Factory == nil {
		return robots.New
	}
	return h.Factory
}
