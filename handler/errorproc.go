// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package handler

import (
	"github.com/gogama/opener"
	"github.com/gogama/opener/request"
	"github.com/gogama/opener/response"
)

// ErrorProcessorOrder is the order key of ErrorProcessor. It is high so
// the other response filters see error responses first.
const ErrorProcessorOrder = 1000

// An ErrorProcessor is a response filter which dispatches responses
// with an unsuccessful status code to the Director's error handlers,
// where they may be resolved (for example by Redirect or BasicAuth) or
// converted into an *opener.HTTPError. Its zero value handles http and
// https and treats 2xx codes as successful.
type ErrorProcessor struct {
	// Schemes lists the schemes to filter. If empty, http and https are
	// filtered.
	Schemes []string
	// Success reports whether a status code is successful. If nil, 2xx
	// codes are successful.
	Success func(code int) bool
}

// Capabilities implements opener.Handler.
func (h *ErrorProcessor) Capabilities() []opener.Capability {
	schemes := h.Schemes
	if len(schemes) == 0 {
		schemes = httpSchemes
	}
	return opener.ResponseCap(schemes...)
}

// Order implements opener.Orderer.
func (h *ErrorProcessor) Order() int {
	return ErrorProcessorOrder
}

// ProcessResponse implements opener.ResponseProcessor.
func (h *ErrorProcessor) ProcessResponse(_ *opener.Director, _ *request.Request, resp *response.Response) opener.Result {
	if h.success(resp.StatusCode) {
		return opener.Continue(resp)
	}
	return opener.Dispatch(resp.StatusCode, resp.Status, resp.Header)
}

func (h *ErrorProcessor) success(code int) bool {
	if h.Success != nil {
		return h.Success(code)
	}
	return code >= 200 && code <= 299
}
