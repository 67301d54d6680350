// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package handler

import (
	"github.com/gogama/opener"
	"github.com/gogama/opener/request"
	"github.com/gogama/opener/response"
)

// A Seek is a response filter which makes every response seekable, for
// any scheme.
type Seek struct{}

// Capabilities implements opener.Handler.
func (h *Seek) Capabilities() []opener.Capability {
	return opener.ResponseCap(opener.AnyScheme)
}

// ProcessResponse implements opener.ResponseProcessor.
func (h *Seek) ProcessResponse(_ *opener.Director, _ *request.Request, resp *response.Response) opener.Result {
	resp.MakeSeekable()
	return opener.Continue(resp)
}
