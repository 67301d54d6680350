// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package auth

import (
	"strings"
)

// A Challenge is one authentication challenge from a WWW-Authenticate
// or Proxy-Authenticate header.
type Challenge struct {
	// Scheme is the lower-cased auth scheme, such as "basic".
	Scheme string
	// Params holds the challenge parameters, keyed by lower-cased name,
	// with quotes removed from quoted values.
	Params map[string]string
}

// Realm returns the realm parameter of the challenge.
func (c Challenge) Realm() string {
	return c.Params["realm"]
}

// ParseChallenges parses header values into challenges, in order. A
// single value may hold several comma-separated challenges. Elements
// which cannot belong to any challenge are skipped.
func ParseChallenges(values []string) []Challenge {
	var out []Challenge
	for _, v := range values {
		var cur *Challenge
		for _, item := range splitList(v) {
			scheme, rest := item, ""
			if i := strings.IndexAny(item, " \t"); i >= 0 {
				scheme, rest = item[:i], strings.TrimLeft(item[i:], " \t")
			}
			if !strings.Contains(scheme, "=") {
				out = append(out, Challenge{
					Scheme: strings.ToLower(scheme),
					Params: make(map[string]string),
				})
				cur = &out[len(out)-1]
				item = rest
			}
			if cur == nil || item == "" {
				continue
			}
			if k, v, ok := splitParam(item); ok {
				cur.Params[k] = v
			}
		}
	}
	return out
}

// Find returns the first challenge with the given lower-case scheme
// which has a realm parameter.
func Find(challenges []Challenge, scheme string) (Challenge, bool) {
	for _, c := range challenges {
		if _, ok := c.Params["realm"]; ok && c.Scheme == scheme {
			return c, true
		}
	}
	return Challenge{}, false
}

func splitParam(item string) (string, string, bool) {
	i := strings.IndexByte(item, '=')
	if i <= 0 {
		return "", "", false
	}
	k := strings.ToLower(strings.TrimSpace(item[:i]))
	v := strings.TrimSpace(item[i+1:])
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		v = unquote(v[1 : len(v)-1])
	}
	return k, v, true
}

func unquote(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	escape := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !escape && c == '\\' {
			escape = true
			continue
		}
		escape = false
		b.WriteByte(c)
	}
	return b.String()
}

// splitList splits a comma-separated header list, keeping commas inside
// quoted strings. Empty elements are dropped.
func splitList(s string) []string {
	var out []string
	var b strings.Builder
	quote := byte(0)
	escape := false
	flush := func() {
		if t := strings.TrimSpace(b.String()); t != "" {
			out = append(out, t)
		}
		b.Reset()
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escape:
			escape = false
		case quote != 0 && c == '\\':
			escape = true
		case quote != 0 && c == quote:
			quote = 0
		case quote == 0 && (c == '"' || c == '\''):
			quote = c
		case quote == 0 && c == ',':
			flush()
			continue
		}
		b.WriteByte(c)
	}
	flush()
	return out
}
