// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"time"

	"github.com/gogama/opener/request"
	"github.com/gogama/opener/response"
)

// An Attempt is the outcome of one attempt to fetch a request, as shown
// to a Policy.
type Attempt struct {
	// Request is the request being fetched.
	Request *request.Request
	// Index is the zero-based index of the attempt.
	Index int
	// Elapsed is the time since the first attempt started.
	Elapsed time.Duration
	// Response is the response of the attempt. It is nil if Err is not.
	Response *response.Response
	// Err is the transport error of the attempt, if any.
	Err error
}

// StatusCode returns the status code of the attempt's response, or
// zero if there is no response.
func (a *Attempt) StatusCode() int {
	if a.Response == nil {
		return 0
	}
	return a.Response.StatusCode
}
