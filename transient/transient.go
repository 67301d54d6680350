// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transient

import (
	"net"
	"strconv"
	"syscall"

	"github.com/cockroachdb/errors"
)

// A Category is the transience category of a transport error, as
// reported by Categorize.
//
// The category Not means the error is not transient: fetching the same
// URL again is very unlikely to succeed. Every other category means a
// later fetch has some prospect of success.
type Category int

const (
	// Not indicates any non-transient error.
	Not Category = iota
	// Timeout indicates a client-side timeout, either from the
	// transport's timeout policy or from the request context deadline.
	//
	// Categorize returns Timeout if the error or any of its wrapped
	// causes has a Timeout() function that reports true.
	Timeout
	// ConnRefused indicates the remote host refused the connection, and
	// corresponds to the POSIX error code ECONNREFUSED.
	//
	// Refusal is classified as transient because it happens while a
	// server is restarting and not yet listening on its port.
	ConnRefused
	// ConnReset indicates the remote host returned an RST packet on a
	// previously active TCP connection, and corresponds to the POSIX
	// error code ECONNRESET.
	ConnReset
	// DNSTemporary indicates a name lookup failed for a reason the
	// resolver reported as temporary, such as an unreachable name
	// server.
	DNSTemporary
	// categorySentinel provides the number of categories.
	categorySentinel
)

var categoryNames = []string{
	"Not",
	"Timeout",
	"ConnRefused",
	"ConnReset",
	"DNSTemporary",
}

// String returns the name of the category, suitable for use as a log
// field or metric label.
func (c Category) String() string {
	if c < 0 || c >= categorySentinel {
		return "Category(" + strconv.Itoa(int(c)) + ")"
	}
	return categoryNames[c]
}

// Categorize returns the transience category of the given error. A nil
// error, and an error that is not transient, both produce Not.
//
// Categorize looks at wrapped cause errors contained within err, not
// just err itself. It never checks for a Temporary() function, as the
// semantics of Temporary() aren't entirely clear.
func Categorize(err error) Category {
	if err == nil {
		return Not
	}

	var hasTimeout hasTimeout
	if errors.As(err, &hasTimeout) && hasTimeout.Timeout() {
		return Timeout
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		if errno == syscall.ECONNRESET {
			return ConnReset
		} else if errno == syscall.ECONNREFUSED {
			return ConnRefused
		}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsTemporary {
		return DNSTemporary
	}

	return Not
}

type hasTimeout interface {
	Timeout() bool
}
