// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"io"
	"net/url"

	"github.com/cockroachdb/errors"
)

const badBodyTypeMsg = "opener/request: invalid body type (use nil, " +
	"string, []byte, url.Values, io.Reader or io.ReadCloser)"

// BodyBytes buffers a body argument into the form stored in
// Request.Body.
//
// A Request has a body only when Body is non-empty, and a request with
// an empty Method is sent as POST exactly when it has a body. So that
// the two agree, BodyBytes returns nil for every empty body: nil, "",
// an empty []byte, an empty url.Values, or a reader yielding no bytes.
//
// A url.Values is form-encoded. A reader is read to the end and closed
// if it is an io.ReadCloser; the read or close error is returned
// wrapped, with a nil slice. Any other type is an error.
func BodyBytes(body interface{}) ([]byte, error) {
	var b []byte
	switch x := body.(type) {
	case nil:
	case string:
		b = []byte(x)
	case []byte:
		b = x
	case url.Values:
		b = []byte(x.Encode())
	case io.ReadCloser:
		var err error
		if b, err = io.ReadAll(x); err != nil {
			_ = x.Close()
			return nil, errors.Wrap(err, "opener/request: reading body")
		}
		if err = x.Close(); err != nil {
			return nil, errors.Wrap(err, "opener/request: closing body")
		}
	case io.Reader:
		return BodyBytes(io.NopCloser(x))
	default:
		return nil, errors.Newf("%s: got %T", badBodyTypeMsg, body)
	}
	if len(b) == 0 {
		return nil, nil
	}
	return b, nil
}
