// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package robots fetches and evaluates robots.txt exclusion rules.
//
// Rules is the interface the robots handler uses to consult a site's
// rules, and Parser is its default implementation, which fetches
// robots.txt through an opener.Opener and parses it with
// github.com/temoto/robotstxt.
package robots
