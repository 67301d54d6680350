// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"time"

	"github.com/gogama/opener/transient"
	"github.com/samber/lo"
)

// A Decider decides if a retry should be done.
//
// Use the built-in constructors Times, StatusCode, and Before, and the
// built-in decider TransientErr; or implement your Decider. Use
// DeciderFunc to convert an ordinary function into a Decider, and to
// compose deciders logically using DeciderFunc.And and DeciderFunc.Or.
type Decider interface {
	Decide(a *Attempt) bool
}

// The DeciderFunc type is an adapter to allow the use of ordinary
// functions as retry deciders. It implements the Decider interface, and
// also provides the logical composition methods And and Or.
type DeciderFunc func(a *Attempt) bool

// DefaultTimes is the number of times DefaultDecider will retry.
const DefaultTimes = 3

// DefaultDecider allows up to DefaultTimes retries (up to 4 attempts in
// all), and retries a transient error (TransientErr) or a response with
// one of the status codes 429 (Too Many Requests), 502 (Bad Gateway),
// 503 (Service Unavailable) or 504 (Gateway Timeout).
var DefaultDecider = Times(DefaultTimes).And(StatusCode(429, 502, 503, 504).Or(TransientErr))

// TransientErr is a decider that indicates a retry if the attempt error
// is transient according to transient.Categorize. It always returns
// false for an attempt which got a response.
var TransientErr DeciderFunc = transientErr

// Decide returns true if a retry should be done, and false otherwise.
func (f DeciderFunc) Decide(a *Attempt) bool {
	return f(a)
}

// And composes two retry deciders into a new decider which returns true
// if both sub-deciders return true, and false otherwise. The decider g
// is not evaluated if f returns false.
func (f DeciderFunc) And(g DeciderFunc) DeciderFunc {
	return func(a *Attempt) bool {
		return f(a) && g(a)
	}
}

// Or composes two retry deciders into a new decider which returns true
// if either of the two sub-deciders returns true. The decider g is not
// evaluated if f returns true.
func (f DeciderFunc) Or(g DeciderFunc) DeciderFunc {
	return func(a *Attempt) bool {
		return f(a) || g(a)
	}
}

// Times constructs a retry decider which allows up to n retries. The
// returned decider returns true while the attempt index is less than n.
func Times(n int) DeciderFunc {
	return func(a *Attempt) bool {
		return a.Index < n
	}
}

// Before constructs a retry decider allowing retries while less than d
// has elapsed since the first attempt started.
func Before(d time.Duration) DeciderFunc {
	return func(a *Attempt) bool {
		return a.Elapsed < d
	}
}

// StatusCode constructs a retry decider which returns true if the
// attempt got a response whose status code is one of ss.
func StatusCode(ss ...int) DeciderFunc {
	ss2 := append([]int(nil), ss...)
	return func(a *Attempt) bool {
		return a.Response != nil && lo.Contains(ss2, a.StatusCode())
	}
}

func transientErr(a *Attempt) bool {
	return transient.Categorize(a.Err) != transient.Not
}
