// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package response

import (
	"bytes"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gogama/opener/seekable"
)

// ErrNotSeekable is returned by Seek when the response body has not
// been made seekable.
var ErrNotSeekable = errors.New("opener/response: body is not seekable")

// A Response pairs the status metadata of a fetched URL with a body.
//
// The body is read through the Response itself, which implements
// io.ReadCloser. After Close the status code, message, URL and headers
// remain readable, while the body behaves as if empty.
type Response struct {
	// StatusCode is the status code, for example 200. Transports for
	// schemes without status codes report 200 on success.
	StatusCode int

	// Status is the status message, for example "OK". It does not
	// repeat the status code.
	Status string

	// URL is the final URL of the response.
	URL *url.URL

	// Header maps header keys to values. Repeated headers keep all
	// their values in order.
	Header http.Header

	body io.ReadCloser
}

// New returns a new response with the given body, header, URL, status
// code and message. A nil header is replaced with an empty one, and a
// nil body with an empty body. If body is not an io.Closer, closing the
// response has no effect on it.
func New(body io.Reader, header http.Header, u *url.URL, code int, msg string) *Response {
	if header == nil {
		header = make(http.Header)
	}
	return &Response{
		StatusCode: code,
		Status:     msg,
		URL:        u,
		Header:     header,
		body:       toReadCloser(body),
	}
}

// NewSeekable is like New but the body is made seekable up front.
func NewSeekable(body io.Reader, header http.Header, u *url.URL, code int, msg string) *Response {
	r := New(body, header, u, code, msg)
	r.MakeSeekable()
	return r
}

// FromBytes returns a new seekable response whose body is data.
func FromBytes(data []byte, header http.Header, u *url.URL, code int, msg string) *Response {
	return NewSeekable(bytes.NewReader(data), header, u, code, msg)
}

// FromHTTP converts an HTTP response into a Response. The body of r
// becomes the body of the returned response, and the URL is taken from
// r.Request if present.
func FromHTTP(r *http.Response) *Response {
	var u *url.URL
	if r.Request != nil {
		u = r.Request.URL
	}
	return New(r.Body, r.Header, u, r.StatusCode, statusMessage(r))
}

// Read reads from the body.
func (r *Response) Read(p []byte) (int, error) {
	return r.delegate().Read(p)
}

// Close closes the body and swaps it for an always-empty stand-in.
// Close is idempotent.
func (r *Response) Close() error {
	b := r.delegate()
	if _, ok := b.(eofBody); ok {
		return nil
	}
	r.body = eofBody{}
	return b.Close()
}

// Closed reports whether Close has been called.
func (r *Response) Closed() bool {
	_, ok := r.delegate().(eofBody)
	return ok
}

// IsSeekable reports whether the body has been made seekable.
func (r *Response) IsSeekable() bool {
	_, ok := r.delegate().(*seekable.Reader)
	return ok
}

// MakeSeekable wraps the body in a seekable cache, unless it is already
// seekable, and returns the cache. The unread part of the body keeps
// streaming lazily from the original source.
func (r *Response) MakeSeekable() *seekable.Reader {
	switch b := r.delegate().(type) {
	case *seekable.Reader:
		return b
	case eofBody:
		s := seekable.New(b)
		_ = s.Close()
		return s
	default:
		s := seekable.New(b)
		r.body = s
		return s
	}
}

// Seek seeks within a seekable body. It returns ErrNotSeekable if the
// body has not been made seekable.
func (r *Response) Seek(offset int64, whence int) (int64, error) {
	s, ok := r.delegate().(*seekable.Reader)
	if !ok {
		return 0, ErrNotSeekable
	}
	return s.Seek(offset, whence)
}

// Copy returns a copy of r with a copied header and URL. The body of
// r is made seekable first, and the copy's body shares the cache while
// keeping its own position, initially the same as r's.
func (r *Response) Copy() *Response {
	var u *url.URL
	if r.URL != nil {
		u2 := *r.URL
		u = &u2
	}
	r2 := &Response{
		StatusCode: r.StatusCode,
		Status:     r.Status,
		URL:        u,
		Header:     r.Header.Clone(),
	}
	if r.Closed() {
		r2.body = eofBody{}
	} else {
		r2.body = r.MakeSeekable().Copy()
	}
	return r2
}

// Data returns the whole body without moving the read position. The
// body is made seekable first.
func (r *Response) Data() ([]byte, error) {
	if r.Closed() {
		return nil, nil
	}
	return r.MakeSeekable().Bytes()
}

// SetData replaces the body with data and rewinds it. Copies sharing
// the body's cache see the new data too.
func (r *Response) SetData(data []byte) error {
	if r.Closed() {
		return errors.New("opener/response: SetData on closed response")
	}
	return r.MakeSeekable().SetData(data)
}

func (r *Response) delegate() io.ReadCloser {
	if r.body == nil {
		r.body = http.NoBody
	}
	return r.body
}

func toReadCloser(body io.Reader) io.ReadCloser {
	switch b := body.(type) {
	case nil:
		return http.NoBody
	case io.ReadCloser:
		return b
	default:
		return io.NopCloser(b)
	}
}

func statusMessage(r *http.Response) string {
	code := strconv.Itoa(r.StatusCode)
	msg := strings.TrimSpace(strings.TrimPrefix(r.Status, code))
	if msg == "" {
		msg = http.StatusText(r.StatusCode)
	}
	return msg
}

type eofBody struct{}

func (eofBody) Read([]byte) (int, error) {
	return 0, io.EOF
}

func (eofBody) Close() error {
	return nil
}
