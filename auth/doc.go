// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package auth provides credential lookup and challenge handling for HTTP
authentication.

A PasswordManager stores credentials by realm and URI. Manager is the
default implementation for origin servers: lookups prefer an exact
realm, fall back to the default realm (the empty string), and prefer the
most specific matching URI. ProxyManager is the variant for proxies, in
which a credential registered without a URI applies to every proxy.

	pm := auth.NewManager()
	pm.AddPassword("", "https://example.com/private/", "joe", "secret")
	user, pass, ok := pm.FindUserPassword("Private Area",
		"https://example.com/private/index.html")

ParseChallenges splits WWW-Authenticate and Proxy-Authenticate header
values into challenges, and Digest computes RFC 2617 digest
credentials for a challenge.
*/
package auth
