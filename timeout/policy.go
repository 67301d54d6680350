// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package timeout

import (
	"strings"
	"time"

	"github.com/gogama/opener/request"
)

// A Policy defines a timeout policy which may be plugged into a
// transport to direct how long a single fetch may take, from sending
// the request until the response body is closed.
//
// Implementations of Policy must be safe for concurrent use by multiple
// goroutines.
type Policy interface {
	// Timeout returns the timeout to set on the fetch of req.
	Timeout(req *request.Request) time.Duration
}

// DefaultPolicy is the default timeout policy. It sets a fixed timeout
// of 30 seconds on each fetch.
var DefaultPolicy Policy = Fixed(30 * time.Second)

// Infinite is a built-in timeout policy which never times out.
var Infinite Policy = Fixed(1<<63 - 1)

// Fixed constructs a timeout policy that uses the same value for every
// request. The return value is a timeout policy that always returns
// the value d.
func Fixed(d time.Duration) Policy {
	return fixed(d)
}

type fixed time.Duration

func (f fixed) Timeout(_ *request.Request) time.Duration {
	return time.Duration(f)
}

// ByScheme constructs a timeout policy that chooses a policy by the
// request's URL scheme, falling back to def for schemes that have no
// entry in m. Scheme keys are matched case-insensitively.
//
// Use ByScheme when one transport serves schemes with very different
// latency profiles, for example to give ftp downloads more time than
// http requests:
//
// 	p := ByScheme(Fixed(10*time.Second), map[string]Policy{
// 		"ftp": Fixed(2*time.Minute),
// 	})
//
// If def is nil, DefaultPolicy is used.
func ByScheme(def Policy, m map[string]Policy) Policy {
	if def == nil {
		def = DefaultPolicy
	}
	p := byScheme{def: def, m: make(map[string]Policy, len(m))}
	for scheme, q := range m {
		if q == nil {
			panic("opener/timeout: nil policy for scheme " + scheme)
		}
		p.m[strings.ToLower(scheme)] = q
	}
	return p
}

type byScheme struct {
	def Policy
	m   map[string]Policy
}

func (p byScheme) Timeout(req *request.Request) time.Duration {
	if q, ok := p.m[req.Scheme()]; ok {
		return q.Timeout(req)
	}
	return p.def.Timeout(req)
}
