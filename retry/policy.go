// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import "time"

// A Policy decides, after each attempt, whether to retry and how long
// to wait before retrying.
type Policy interface {
	Decider
	Waiter
}

// DefaultPolicy composes DefaultDecider and DefaultWaiter.
var DefaultPolicy Policy = policy{DefaultDecider, DefaultWaiter}

// Never is a policy that never retries. Transports use it when no
// policy is set.
var Never Policy = policy{Times(0), NewFixedWaiter(0)}

type policy struct {
	decider Decider
	waiter  Waiter
}

// NewPolicy composes a Decider and a Waiter into a retry Policy.
func NewPolicy(d Decider, w Waiter) Policy {
	if d == nil {
		panic("opener/retry: nil decider")
	}
	if w == nil {
		panic("opener/retry: nil waiter")
	}
	return policy{decider: d, waiter: w}
}

func (p policy) Decide(a *Attempt) bool {
	return p.decider.Decide(a)
}

func (p policy) Wait(a *Attempt) time.Duration {
	return p.waiter.Wait(a)
}
