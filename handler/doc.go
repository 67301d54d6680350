// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package handler provides the protocol extension handlers which give an
opener.Director its browser-like behavior.

Each handler declares its capabilities and can be added to any
Director:

	d := &opener.Director{}
	d.Add(transport.NewHTTP(nil))
	d.Add(&handler.ErrorProcessor{})
	d.Add(&handler.Redirect{})
	d.Add(handler.NewCookies(nil))

The handlers and their order keys are:

• ErrorProcessor (1000) dispatches non-2xx responses to the error
handlers;

• Redirect (500) follows 301, 302, 303 and 307 redirects and refreshes,
guarding against loops;

• DigestAuth and ProxyDigestAuth (490), BasicAuth and ProxyBasicAuth
(500) answer 401 and 407 challenges;

• Robots (800) enforces robots.txt exclusion;

• Equiv (500) promotes HTML <meta http-equiv> tags to response headers,
and Refresh (1000) follows Refresh headers;

• Referer, Cookies, Proxy and Seek (500) add request headers, manage
cookies, route requests through proxies and make response bodies
seekable;

• RedirectLogger and BodyLogger (500 and 900) log redirects and response
bodies.

Handlers are not safe for concurrent use, matching the Director.
*/
package handler
