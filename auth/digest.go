// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package auth

import (
	"crypto/md5"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	// ErrUnsupportedAlgorithm is returned by Digest.Authorize for a
	// challenge naming an unknown algorithm.
	ErrUnsupportedAlgorithm = errors.New("opener/auth: unsupported digest algorithm")

	// ErrUnsupportedQOP is returned by Digest.Authorize for a challenge
	// whose qop options do not include "auth".
	ErrUnsupportedQOP = errors.New("opener/auth: unsupported digest qop")
)

// Digest computes credentials for RFC 2617 digest challenges. Its zero
// value is ready to use.
//
// A Digest counts uses of each server nonce, so a single Digest should
// be used for all the requests of one client. It is not safe for
// concurrent use.
type Digest struct {
	// CNonce returns a fresh client nonce. If nil, a random 16-byte hex
	// string is used.
	CNonce func() string

	lastNonce  string
	nonceCount int
}

// Authorize returns the credentials, without the leading "Digest ", to
// send in response to challenge c for a request with the given method
// and request URI.
//
// Supported algorithms are MD5 (the default), MD5-sess, SHA and
// SHA-256. Supported qop values are "auth" and none.
func (d *Digest) Authorize(c Challenge, method, uri, user, password string) (string, error) {
	realm := c.Params["realm"]
	nonce := c.Params["nonce"]
	algorithm := c.Params["algorithm"]
	qop, err := chooseQOP(c.Params["qop"])
	if err != nil {
		return "", err
	}

	newHash, sess, err := algorithmImpl(algorithm)
	if err != nil {
		return "", err
	}
	h := func(s string) string {
		x := newHash()
		_, _ = x.Write([]byte(s))
		return hex.EncodeToString(x.Sum(nil))
	}
	kd := func(secret, data string) string {
		return h(secret + ":" + data)
	}

	var nc, cnonce string
	if qop != "" || sess {
		cnonce = d.cnonce()
	}
	a1 := user + ":" + realm + ":" + password
	if sess {
		a1 = h(a1) + ":" + nonce + ":" + cnonce
	}
	a2 := method + ":" + uri

	var respdig string
	if qop != "" {
		nc = d.nextCount(nonce)
		respdig = kd(h(a1), nonce+":"+nc+":"+cnonce+":"+qop+":"+h(a2))
	} else {
		respdig = kd(h(a1), nonce+":"+h(a2))
	}

	var b strings.Builder
	fmt.Fprintf(&b, `username="%s", realm="%s", nonce="%s", uri="%s", response="%s"`,
		user, realm, nonce, uri, respdig)
	if opaque, ok := c.Params["opaque"]; ok {
		fmt.Fprintf(&b, `, opaque="%s"`, opaque)
	}
	if algorithm != "" {
		fmt.Fprintf(&b, `, algorithm="%s"`, algorithm)
	}
	if qop != "" {
		fmt.Fprintf(&b, `, qop=%s, nc=%s, cnonce="%s"`, qop, nc, cnonce)
	}
	return b.String(), nil
}

func (d *Digest) nextCount(nonce string) string {
	if nonce == d.lastNonce {
		d.nonceCount++
	} else {
		d.lastNonce = nonce
		d.nonceCount = 1
	}
	return fmt.Sprintf("%08x", d.nonceCount)
}

func (d *Digest) cnonce() string {
	if d.CNonce != nil {
		return d.CNonce()
	}
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic("opener/auth: cannot read random bytes: " + err.Error())
	}
	return hex.EncodeToString(b[:])
}

func chooseQOP(options string) (string, error) {
	if options == "" {
		return "", nil
	}
	for _, o := range strings.Split(options, ",") {
		if strings.EqualFold(strings.TrimSpace(o), "auth") {
			return "auth", nil
		}
	}
	return "", errors.Wrapf(ErrUnsupportedQOP, "%q", options)
}

func algorithmImpl(algorithm string) (newHash func() hash.Hash, sess bool, err error) {
	switch strings.ToUpper(algorithm) {
	case "", "MD5":
		return md5.New, false, nil
	case "MD5-SESS":
		return md5.New, true, nil
	case "SHA":
		return sha1.New, false, nil
	case "SHA-256":
		return sha256.New, false, nil
	case "SHA-256-SESS":
		return sha256.New, true, nil
	default:
		return nil, false, errors.Wrapf(ErrUnsupportedAlgorithm, "%q", algorithm)
	}
}
