// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package opener

import "strconv"

// A Kind identifies one way a handler can take part in dispatch. Each
// kind corresponds to an interface the handler must implement.
type Kind int

const (
	// KindOpen identifies a scheme-open capability. The handler must
	// implement SchemeOpener. The Director offers a request to each
	// opener for the request's scheme, in order, until one returns a
	// response.
	KindOpen Kind = iota
	// KindRequest identifies a request-filter capability. The handler must
	// implement RequestProcessor. Request filters see every request
	// before it is opened and return the request to continue with.
	KindRequest
	// KindResponse identifies a response-filter capability. The handler
	// must implement ResponseProcessor. Response filters see every
	// response returned by an opener and return a Result.
	KindResponse
	// KindError identifies an error capability for one status code. The
	// handler must implement ErrorHandler.
	KindError
	// kindSentinel provides the total number of kinds typed as a Kind.
	kindSentinel

	// numKinds provides the total number of kinds as an int.
	numKinds = int(kindSentinel)
)

var kindNames = []string{
	"Open",
	"Request",
	"Response",
	"Error",
}

// Kinds returns a slice containing all capability kinds in the order in
// which the Director consults them.
func Kinds() []Kind {
	return []Kind{
		KindRequest,
		KindOpen,
		KindResponse,
		KindError,
	}
}

// Name returns the name of the kind.
func (k Kind) Name() string {
	if k < 0 || int(k) >= numKinds {
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
	return kindNames[int(k)]
}

// String returns the name of the kind.
func (k Kind) String() string {
	return k.Name()
}

// AnyScheme is the scheme of a capability that applies to every
// scheme. Any-scheme request and response filters run before the
// scheme-specific ones. Any-scheme openers are tried alongside the
// scheme-specific ones, in order.
const AnyScheme = "*"

// AnyCode is the code of an error capability that applies to every
// status code. Such handlers are consulted after every handler for the
// specific code.
const AnyCode = 0

// A Capability declares one way in which a handler takes part in
// dispatch.
type Capability struct {
	// Kind is the kind of capability.
	Kind Kind
	// Scheme is the lower-case URL scheme the capability applies to, or
	// AnyScheme. Error capabilities for https are registered under
	// http, as the two schemes share one error table.
	Scheme string
	// Code is the status code handled by an Error capability, or
	// AnyCode. It is ignored for other kinds.
	Code int
}

// OpenCap returns an Open capability for each given scheme.
func OpenCap(schemes ...string) []Capability {
	return caps(KindOpen, schemes)
}

// RequestCap returns a Request capability for each given scheme.
func RequestCap(schemes ...string) []Capability {
	return caps(KindRequest, schemes)
}

// ResponseCap returns a Response capability for each given scheme.
func ResponseCap(schemes ...string) []Capability {
	return caps(KindResponse, schemes)
}

// ErrorCap returns an Error capability for scheme for each given code.
func ErrorCap(scheme string, codes ...int) []Capability {
	c := make([]Capability, len(codes))
	for i, code := range codes {
		c[i] = Capability{Kind: KindError, Scheme: scheme, Code: code}
	}
	return c
}

func caps(k Kind, schemes []string) []Capability {
	c := make([]Capability, len(schemes))
	for i, s := range schemes {
		c[i] = Capability{Kind: k, Scheme: s}
	}
	return c
}

// String returns a short description such as "Error(http:401)".
func (c Capability) String() string {
	s := c.Kind.Name() + "(" + c.Scheme
	if c.Kind == KindError {
		s += ":" + strconv.Itoa(c.Code)
	}
	return s + ")"
}
