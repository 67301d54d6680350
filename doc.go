// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package opener provides an extensible URL-opening engine in which every
feature of a fetch, from transport to redirects, cookies, and
authentication, is supplied by a pluggable handler.

Most programs use the browser-like preset from package useragent:

	ua, err := useragent.New(useragent.DefaultConfig())
	...
	resp, err := ua.Get("https://www.example.com")
	...
	resp, err := ua.PostForm("http://example.com/form",
		url.Values{"key": {"Value"}, "id": {"123"}})

To assemble a chain by hand, add handlers to a Director. Transports for
the http, https, ftp, file and s3 schemes live in package transport, and
the standard filters and error handlers live in package handler:

	d := &opener.Director{}
	d.Add(transport.NewHTTP(nil))
	d.Add(&handler.ErrorProcessor{})
	d.Add(&handler.Redirect{})
	resp, err := d.Get("http://example.com/")

A handler declares what it does through its capabilities. Each
capability names a kind (open, request, response, or error), a scheme,
and for the error kind a status code:

	func (h *myHandler) Capabilities() []opener.Capability {
		return append(opener.RequestCap("http", "https"),
			opener.ErrorCap("http", 418)...)
	}

The handler must also implement the interface matching each kind it
declares (SchemeOpener, RequestProcessor, ResponseProcessor, or
ErrorHandler). Handlers run in ascending order key, given by the Orderer
interface and DefaultOrder otherwise.

Response filters steer the fetch with a Result. Continue passes a
response on to the next filter, Done finishes the fetch, Fail aborts it,
and Dispatch hands an error status code to the error handlers through
Director.Error. An error code that no handler resolves surfaces as an
*HTTPError, which carries the response that produced it.

Package opener also provides basic interfaces for each method of an
opener (Opener, Getter, Header, Poster and FormPoster); a combined
interface that composes them all (Executor); and utility functions for
working with an Opener (Inflate, Get, Head, Post, and PostForm).
*/
package opener
