// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package response contains the Response type produced by transports
// and passed through response and error handlers.
//
// A Response is created with a forward-only body. Handlers that need to
// look at the body without consuming it, for example to parse the HTML
// head, call MakeSeekable and rewind afterwards.
package response
