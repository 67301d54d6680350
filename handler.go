// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package opener

import (
	"net/http"

	"github.com/gogama/opener/request"
	"github.com/gogama/opener/response"
)

// DefaultOrder is the order key of a handler which does not implement
// Orderer.
const DefaultOrder = 500

// A Handler is a unit of request, response and error processing that
// can be added to a Director.
//
// Capabilities declares, once and for all, which parts of dispatch the
// handler takes part in. For every declared kind the handler must
// implement the matching interface: SchemeOpener for KindOpen,
// RequestProcessor for KindRequest, ResponseProcessor for KindResponse,
// and ErrorHandler for KindError. A handler that declares no
// capabilities is ignored by Director.Add.
//
// Handlers must be comparable, since a Director identifies them by
// equality for removal. Pointer receivers are the usual choice.
type Handler interface {
	Capabilities() []Capability
}

// An Orderer is a handler with an explicit order key. Lower keys are
// dispatched first, and handlers with equal keys are dispatched in the
// order they were added.
type Orderer interface {
	Order() int
}

// A SchemeOpener opens requests for one or more schemes.
//
// Open returns a nil response and a nil error to decline the request,
// in which case the Director offers it to the next opener. A non-nil
// error ends the whole fetch and is returned to the caller unchanged.
type SchemeOpener interface {
	Open(d *Director, req *request.Request) (*response.Response, error)
}

// A RequestProcessor filters requests before they are opened.
//
// ProcessRequest returns the request to continue with, which is usually
// req itself, possibly modified. A nil request with a nil error means
// continue with req. A non-nil error ends the fetch.
type RequestProcessor interface {
	ProcessRequest(d *Director, req *request.Request) (*request.Request, error)
}

// A ResponseProcessor filters responses returned by openers.
//
// ProcessResponse returns a Result telling the Director how to carry
// on: with a possibly different response, with a final response that
// skips the remaining filters, with an error, or by dispatching an
// error status code to the error handlers.
type ResponseProcessor interface {
	ProcessResponse(d *Director, req *request.Request, resp *response.Response) Result
}

// An ErrorHandler handles error status codes dispatched by the Director.
//
// HandleError returns a nil response and a nil error to decline, in
// which case the Director offers the code to the next error handler.
// A non-nil response resolves the error. A non-nil error ends the fetch.
type ErrorHandler interface {
	HandleError(d *Director, req *request.Request, resp *response.Response, code int, msg string, header http.Header) (*response.Response, error)
}

func orderOf(h Handler) int {
	if o, ok := h.(Orderer); ok {
		return o.Order()
	}
	return DefaultOrder
}

func implements(h Handler, k Kind) bool {
	var ok bool
	switch k {
	case KindOpen:
		_, ok = h.(SchemeOpener)
	case KindRequest:
		_, ok = h.(RequestProcessor)
	case KindResponse:
		_, ok = h.(ResponseProcessor)
	case KindError:
		_, ok = h.(ErrorHandler)
	}
	return ok
}
