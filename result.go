// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package opener

import (
	"net/http"

	"github.com/gogama/opener/response"
)

// A ResultKind says how the Director carries on after a response
// filter.
type ResultKind int

const (
	// Continued means pass Result.Response to the next filter.
	Continued ResultKind = iota
	// Finished means return Result.Response to the caller without
	// running the remaining filters.
	Finished
	// Failed means return Result.Err to the caller.
	Failed
	// Dispatched means stop filtering and dispatch Result.Code to the
	// error handlers. Whatever the error handlers yield is returned to
	// the caller.
	Dispatched
)

// A Result is the outcome of a response filter. Construct one with
// Continue, Done, Fail or Dispatch.
type Result struct {
	Kind     ResultKind
	Response *response.Response
	Err      error
	Code     int
	Msg      string
	Header   http.Header
}

// Continue carries on filtering with resp.
func Continue(resp *response.Response) Result {
	return Result{Kind: Continued, Response: resp}
}

// Done ends filtering with resp as the final response.
func Done(resp *response.Response) Result {
	return Result{Kind: Finished, Response: resp}
}

// Fail ends the fetch with err.
func Fail(err error) Result {
	if err == nil {
		panic("opener: Fail with nil error")
	}
	return Result{Kind: Failed, Err: err}
}

// Dispatch ends filtering and dispatches code, msg and header to the
// error handlers along with the response being filtered.
func Dispatch(code int, msg string, header http.Header) Result {
	return Result{Kind: Dispatched, Code: code, Msg: msg, Header: header}
}
