// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"math/rand"
	"sync"
	"time"
)

// A Waiter specifies how long to wait before retrying a failed attempt.
// It is only consulted after the Decider of the policy chose to retry.
type Waiter interface {
	Wait(a *Attempt) time.Duration
}

// DefaultWaiter uses a jittered exponential backoff with a base wait of
// 50 milliseconds and a maximum wait of 1 second.
var DefaultWaiter = NewExpWaiter(50*time.Millisecond, 1*time.Second, time.Now())

// NewFixedWaiter constructs a Waiter that always returns d.
func NewFixedWaiter(d time.Duration) Waiter {
	return fixedWaiter(d)
}

type fixedWaiter time.Duration

func (w fixedWaiter) Wait(_ *Attempt) time.Duration {
	return time.Duration(w)
}

// NewExpWaiter constructs a Waiter implementing the "Full Jitter"
// exponential backoff described in
// https://aws.amazon.com/blogs/architecture/exponential-backoff-and-jitter.
//
// The wait ceiling after attempt i is min(base * 2**i, max). Base must
// be positive and max must be at least base.
//
// Parameter jitter seeds the random wait between 0 and the ceiling. Pass
// nil to always wait for the ceiling, a seed (time.Time, int or int64),
// or a random source (rand.Source or *rand.Rand).
func NewExpWaiter(base, max time.Duration, jitter interface{}) Waiter {
	if base < 1 {
		panic("opener/retry: base must be positive")
	}
	if max < base {
		panic("opener/retry: max must be at least base")
	}
	return &jitterExpWaiter{
		base: base,
		max:  max,
		rand: jitterToRand(jitter),
	}
}

type jitterExpWaiter struct {
	base time.Duration
	max  time.Duration
	rand *rand.Rand
	lock sync.Mutex
}

func (w *jitterExpWaiter) Wait(a *Attempt) time.Duration {
	ceil := int64(w.max)
	if a.Index < 63 {
		exp := int64(1) << a.Index
		if c := int64(w.base) * exp; c/exp == int64(w.base) && c < ceil {
			ceil = c
		}
	}

	if w.rand == nil {
		return time.Duration(ceil)
	}
	w.lock.Lock()
	defer w.lock.Unlock()
	return time.Duration(w.rand.Int63n(ceil))
}

func jitterToRand(jitter interface{}) *rand.Rand {
	var s rand.Source
	switch j := jitter.(type) {
	case nil:
		return nil
	case time.Time:
		s = rand.NewSource(j.UnixNano())
	case int:
		s = rand.NewSource(int64(j))
	case int64:
		s = rand.NewSource(j)
	case *rand.Rand:
		if j == nil {
			panic("opener/retry: jitter may not be a typed nil")
		}
		return j
	case rand.Source:
		s = j
	default:
		panic("opener/retry: invalid jitter type")
	}
	return rand.New(s)
}
