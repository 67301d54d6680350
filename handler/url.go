// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package handler

import (
	"net/url"
	"strings"
)

const upperHex = "0123456789ABCDEF"

// uriSafe lists the characters CleanURL leaves alone besides letters
// and digits: the RFC 3986 reserved and unreserved characters plus the
// percent sign.
const uriSafe = "-_.~!*'();:@&=+$,/?%#[]"

// CleanURL percent-encodes the characters of raw which may not appear
// in a URI, such as spaces and pipes, and resolves the result against
// base. Leading and trailing white space is removed first. Existing
// percent escapes are kept, so cleaning is idempotent.
//
// If base is nil the cleaned URL is returned unresolved.
func CleanURL(base *url.URL, raw string) (*url.URL, error) {
	ref, err := url.Parse(quoteURL(raw))
	if err != nil {
		return nil, err
	}
	if base == nil {
		return ref, nil
	}
	return base.ResolveReference(ref), nil
}

func quoteURL(raw string) string {
	raw = strings.TrimSpace(raw)
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if isURISafe(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperHex[c>>4])
		b.WriteByte(upperHex[c&15])
	}
	return b.String()
}

func isURISafe(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9' ||
		strings.IndexByte(uriSafe, c) >= 0
}
