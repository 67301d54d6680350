// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package opener

import (
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/gogama/opener/request"
	"github.com/gogama/opener/response"
)

// StatusRefresh is the pseudo status code under which a Refresh header
// is dispatched to the redirect handler.
const StatusRefresh = -1

var (
	// ErrUnknownScheme is wrapped in the error returned when no opener
	// claims a request.
	ErrUnknownScheme = errors.New("opener: unknown url type")

	// ErrRedirectLoop is wrapped in the error returned when a redirect
	// chain visits the same URL too many times.
	ErrRedirectLoop = errors.New("opener: redirect loop")

	// ErrTooManyRedirects is wrapped in the error returned when a
	// redirect chain is too long.
	ErrTooManyRedirects = errors.New("opener: too many redirects")

	// ErrResubmitRefused is wrapped in the error returned when a 307
	// redirect would resend a request body without consent.
	ErrResubmitRefused = errors.New("opener: refusing to resubmit request body on redirect")

	// ErrRobotsDisallowed is wrapped in the error returned when
	// robots.txt forbids fetching a URL.
	ErrRobotsDisallowed = errors.New("opener: request disallowed by robots.txt")
)

// An HTTPError is a protocol error: a status code that no handler could
// resolve, or a condition a handler chose to report as a status code.
//
// The response, when present, is left open so the caller can read its
// body. The caller is responsible for closing it.
type HTTPError struct {
	// Code is the status code.
	Code int
	// Msg is the status message or a description of the condition.
	Msg string
	// Header holds the response headers.
	Header http.Header
	// URL is the URL of the request that failed.
	URL string
	// Request is the request that failed.
	Request *request.Request
	// Response is the response that carried the code, if any.
	Response *response.Response
	// Reason optionally identifies why a handler raised the error, for
	// example ErrRobotsDisallowed.
	Reason error
}

// NewHTTPError returns an HTTPError for req and resp.
func NewHTTPError(req *request.Request, resp *response.Response, code int, msg string, header http.Header) *HTTPError {
	e := &HTTPError{
		Code:     code,
		Msg:      msg,
		Header:   header,
		Request:  req,
		Response: resp,
	}
	if req != nil && req.URL != nil {
		e.URL = req.URL.String()
	}
	return e
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("opener: HTTP Error %d: %s", e.Code, e.Msg)
}

// Unwrap returns the reason, if any.
func (e *HTTPError) Unwrap() error {
	return e.Reason
}

// A RedirectError reports that a redirect chain was abandoned because
// of a loop or because it was too long. It carries the HTTPError for
// the last redirect response seen, and it matches ErrRedirectLoop or
// ErrTooManyRedirects with errors.Is.
type RedirectError struct {
	// Err is ErrRedirectLoop or ErrTooManyRedirects.
	Err error
	// HTTPError describes the last request and redirect response.
	HTTPError *HTTPError
}

func (e *RedirectError) Error() string {
	return e.Err.Error() + ": " + e.HTTPError.Error()
}

// Unwrap returns both the sentinel and the HTTPError.
func (e *RedirectError) Unwrap() []error {
	return []error{e.Err, e.HTTPError}
}
