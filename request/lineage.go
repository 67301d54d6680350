// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import "context"

// A Lineage records the URLs visited by a logical fetch and every
// request synthesized from it by a redirect.
//
// The zero value is an empty lineage ready for use. A Lineage is not
// safe for concurrent use.
type Lineage struct {
	visits map[string]int
	hops   int
	data   context.Context
}

// Visits returns how many times the redirect chain has been sent to
// the exact URL u.
func (l *Lineage) Visits(u string) int {
	return l.visits[u]
}

// Hops returns the total number of redirects recorded in the chain.
func (l *Lineage) Hops() int {
	return l.hops
}

// Record notes one redirect hop to the exact URL u.
func (l *Lineage) Record(u string) {
	if l.visits == nil {
		l.visits = make(map[string]int)
	}
	l.visits[u]++
	l.hops++
}

// SetValue allows handlers to store arbitrary data scoped to the whole
// redirect chain.
//
// The key must follow the same rules as the key parameter in
// context.WithValue, namely it:
//
// • it may not be nil;
//
// • it must be comparable;
//
// • it should not be of type string or any other built-in type to avoid
// collisions between different handlers putting data into the same
// lineage.
func (l *Lineage) SetValue(key, value interface{}) {
	ctx := l.data
	if ctx == nil {
		ctx = context.Background()
	}

	l.data = context.WithValue(ctx, key, value)
}

// Value returns the data value associated with this lineage for key,
// or nil if there is no value associated with key.
func (l *Lineage) Value(key interface{}) interface{} {
	ctx := l.data
	if ctx == nil {
		return nil
	}

	return ctx.Value(key)
}
