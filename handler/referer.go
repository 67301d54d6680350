// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package handler

import (
	"net/url"

	"github.com/gogama/opener"
	"github.com/gogama/opener/request"
	"github.com/gogama/opener/response"
)

// A Referer remembers the URL of the last successful (2xx) http or https
// response it saw and adds it as an unredirected Referer header to the
// next request which has none. The referer of an https page is not sent
// to an http URL. The fragment of the remembered URL is dropped.
//
// Redirect responses are not remembered, so every hop of a redirect
// chain carries the page that led to the chain. Fetches of /robots.txt
// neither send nor update the referer.
//
// Referer is both a request filter and a response filter, and tracks one
// browsing history, so it fits sequential, browser-like use.
type Referer struct {
	last *url.URL
}

// Capabilities implements opener.Handler.
func (h *Referer) Capabilities() []opener.Capability {
	return append(opener.RequestCap(httpSchemes...), opener.ResponseCap(httpSchemes...)...)
}

// ProcessRequest implements opener.RequestProcessor.
func (h *Referer) ProcessRequest(_ *opener.Director, req *request.Request) (*request.Request, error) {
	if h.last == nil || req.HasHeader("Referer") || isRobotsFetch(req) {
		return req, nil
	}
	if h.last.Scheme == "https" && req.Scheme() == "http" {
		return req, nil
	}
	req.AddUnredirectedHeader("Referer", h.last.String())
	return req, nil
}

// ProcessResponse implements opener.ResponseProcessor.
func (h *Referer) ProcessResponse(_ *opener.Director, req *request.Request, resp *response.Response) opener.Result {
	if resp.StatusCode < 200 || resp.StatusCode > 299 || isRobotsFetch(req) {
		return opener.Continue(resp)
	}
	u := resp.URL
	if u == nil {
		u = req.URL
	}
	if u != nil {
		last := *u
		last.Fragment, last.RawFragment, last.User = "", "", nil
		h.last = &last
	}
	return opener.Continue(resp)
}

// Last returns the URL which will be sent as the next referer, or nil.
func (h *Referer) Last() *url.URL {
	return h.last
}

func isRobotsFetch(req *request.Request) bool {
	return req.URL != nil && req.URL.EscapedPath() == robotsPath
}
