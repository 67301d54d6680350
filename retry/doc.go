// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package retry provides policies deciding whether a failed fetch
// attempt is made again by a transport, and how long to wait first.
//
// A Policy is a Decider plus a Waiter. Both have constructors for
// common cases, so a policy can be put together quickly:
//
//	decider := retry.Times(3).
//		And(retry.Before(5 * time.Second)).
//		And(retry.StatusCode(503).Or(retry.TransientErr))
//	waiter := retry.NewExpWaiter(100*time.Millisecond, 2*time.Second, time.Now())
//	policy := retry.NewPolicy(decider, waiter)
//
// Retries happen inside one call to a scheme opener, so the Director
// and its handlers only ever see the final attempt.
package retry
