// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package request contains the core types Request (describes one logical
fetch of a URL) and Lineage (the shared record of every URL a request
and its redirect descendants have visited).

A Request looks like a stripped-down http.Request with the server-side
fields removed and the body replaced with a pre-buffered []byte. Unlike
http.Request, its headers are split into two groups. Header holds the
standard headers, which are copied onto any request synthesized by a
redirect. UnredirectedHeader holds headers which apply to this request
only, such as credentials added by an authentication handler, and which
are dropped on redirect.

Create a request and open it through a director:

	req, err := request.New("GET", "https://example.com", nil)
	...
	resp, err := director.Open(req)
	...

A request may be assigned a context which is honored by transports and
by handlers that wait, allowing the whole fetch to be cancelled:

	req, err := request.NewWithContext(ctx, "POST", "https://example.com/upload", body)
	...

Every Request created by New carries a fresh Lineage. Requests derived
from it with Follow share the same Lineage by pointer, so loop and limit
detection spans the whole redirect chain.
*/
package request
