// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package handler

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/gogama/opener"
	"github.com/gogama/opener/request"
	"github.com/gogama/opener/response"
	"go.uber.org/zap"
)

const (
	// DefaultMaxRepeats is the default number of times a redirect chain
	// may visit the same URL.
	DefaultMaxRepeats = 4
	// DefaultMaxRedirections is the default length of a redirect chain.
	DefaultMaxRedirections = 10
)

const loopMsg = "The HTTP server returned a redirect error that would " +
	"lead to an infinite loop.\nThe last 30x error message was:\n"

// A Redirect is an error handler which follows HTTP redirects (301,
// 302, 303 and 307) and refreshes dispatched by Refresh under the
// pseudo code opener.StatusRefresh. Its zero value is ready to use.
//
// The target is taken from the Location header, or failing that the URI
// header, cleaned with CleanURL and resolved against the request URL.
// Only http, https and ftp targets are followed.
//
// The follow-up request is made with request.Request.Follow, so it
// keeps the standard headers, drops the unredirected ones and shares
// the lineage of the original request. Except for 307, it has no body,
// and its method is GET (HEAD stays HEAD). A 307 redirect of a request
// with a body is refused unless AllowResubmit is set.
//
// A chain may visit the same URL up to MaxRepeats times, since cookies
// set along the way can change the outcome of a repeated URL, and may be
// up to MaxRedirections long. Exceeding either limit ends the fetch with
// an *opener.RedirectError.
type Redirect struct {
	// MaxRepeats limits visits to the same URL. If zero,
	// DefaultMaxRepeats is used.
	MaxRepeats int
	// MaxRedirections limits the length of a redirect chain. If zero,
	// DefaultMaxRedirections is used.
	MaxRedirections int
	// AllowResubmit allows a 307 redirect to resend the request body.
	AllowResubmit bool
	// Log receives debug output. If nil, nothing is logged.
	Log *zap.Logger
}

// Capabilities implements opener.Handler.
func (h *Redirect) Capabilities() []opener.Capability {
	return opener.ErrorCap("http",
		http.StatusMovedPermanently,
		http.StatusFound,
		http.StatusSeeOther,
		http.StatusTemporaryRedirect,
		opener.StatusRefresh)
}

// HandleError implements opener.ErrorHandler.
func (h *Redirect) HandleError(d *opener.Director, req *request.Request, resp *response.Response, code int, msg string, header http.Header) (*response.Response, error) {
	log := nopIfNil(h.Log)

	loc := header.Get("Location")
	if loc == "" {
		loc = header.Get("URI")
	}
	if loc == "" {
		return nil, nil
	}
	target, err := CleanURL(req.URL, loc)
	if err != nil {
		log.Debug("ignoring bad redirect target", zap.String("location", loc), zap.Error(err))
		return nil, nil
	}
	switch target.Scheme {
	case "http", "https", "ftp":
	default:
		return nil, opener.NewHTTPError(req, resp, code,
			fmt.Sprintf("%s - Redirection to url '%s' is not allowed", msg, target), header)
	}

	next, err := h.follow(req, resp, code, msg, header, target)
	if err != nil {
		return nil, err
	}

	key := target.String()
	lineage := next.Lineage
	if lineage.Visits(key) >= h.maxRepeats() {
		return nil, &opener.RedirectError{
			Err:       opener.ErrRedirectLoop,
			HTTPError: opener.NewHTTPError(req, resp, code, loopMsg+msg, header),
		}
	}
	if lineage.Hops() >= h.maxRedirections() {
		return nil, &opener.RedirectError{
			Err:       opener.ErrTooManyRedirects,
			HTTPError: opener.NewHTTPError(req, resp, code, loopMsg+msg, header),
		}
	}
	lineage.Record(key)

	drainClose(resp)
	log.Debug("following redirect",
		zap.Int("code", code),
		zap.String("from", req.URL.String()),
		zap.String("to", key),
		zap.Int("hops", lineage.Hops()))
	return d.Open(next)
}

func (h *Redirect) follow(req *request.Request, resp *response.Response, code int, msg string, header http.Header, target *url.URL) (*request.Request, error) {
	next := req.Follow(target)
	method := req.GetMethod()
	if code == http.StatusTemporaryRedirect {
		if len(req.Body) > 0 && !h.AllowResubmit {
			e := opener.NewHTTPError(req, resp, code, msg+" - refusing to resubmit request body", header)
			e.Reason = opener.ErrResubmitRefused
			return nil, e
		}
		next.Method = req.Method
		next.Body = req.Body
		return next, nil
	}
	if method == http.MethodHead {
		next.Method = method
	}
	next.Header.Del("Content-Type")
	next.Header.Del("Content-Length")
	return next, nil
}

func (h *Redirect) maxRepeats() int {
	if h.MaxRepeats <= 0 {
		return DefaultMaxRepeats
	}
	return h.MaxRepeats
}

func (h *Redirect) maxRedirections() int {
	if h.MaxRedirections <= 0 {
		return DefaultMaxRedirections
	}
	return h.MaxRedirections
}
