// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package handler

import (
	"net/http"

	"github.com/gogama/opener"
	"github.com/gogama/opener/request"
)

// HeadersOrder is the order key of Headers. It is early so that later
// request filters, such as Robots, see the default headers.
const HeadersOrder = 100

// A Headers is a request filter which adds default headers, such as
// User-Agent, to http and https requests. A header is added, as an
// unredirected header, only if the request has no header of that name.
//
// Every request passes through the filter, including redirect
// follow-ups and robots.txt fetches, so they all carry the defaults.
type Headers struct {
	Header http.Header
}

// Capabilities implements opener.Handler.
func (h *Headers) Capabilities() []opener.Capability {
	return opener.RequestCap(httpSchemes...)
}

// Order implements opener.Orderer.
func (h *Headers) Order() int {
	return HeadersOrder
}

// ProcessRequest implements opener.RequestProcessor.
func (h *Headers) ProcessRequest(_ *opener.Director, req *request.Request) (*request.Request, error) {
	for name, values := range h.Header {
		if len(values) == 0 || req.HasHeader(name) {
			continue
		}
		req.AddUnredirectedHeader(name, values[0])
	}
	return req, nil
}
