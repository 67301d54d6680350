// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package opener

import (
	"io"
	"net/url"

	"github.com/gogama/opener/request"
	"github.com/gogama/opener/response"
)

// Opener is the interface that wraps the basic Open method.
//
// Open fetches a request through a handler chain and returns the final
// response (and error, if any). Director implements the Opener
// interface, and so does useragent.UserAgent.
//
// Any Opener can be converted into an Executor via the Inflate function.
type Opener interface {
	Open(req *request.Request) (*response.Response, error)
}

// Getter is the interface that wraps the basic Get method.
//
// Get creates a request to GET the specified URL, opens it, and returns
// the final response (and error, if any).
//
// Any Opener can be used to emulate a Getter via the Get function.
type Getter interface {
	Get(url string) (*response.Response, error)
}

// Header is the interface that wraps the basic Head method.
//
// Head creates a request to HEAD the specified URL, opens it, and
// returns the final response (and error, if any).
//
// Any Opener can be used to emulate a Header via the Head function.
type Header interface {
	Head(url string) (*response.Response, error)
}

// Poster is the interface that wraps the basic Post method.
//
// The body parameter may be nil for an empty body, or may be any of the
// types supported by request.New and request.BodyBytes, namely: string;
// []byte; url.Values; io.Reader; and io.ReadCloser.
//
// Any Opener can be used to emulate a Poster via the Post function.
type Poster interface {
	Post(url, contentType string, body interface{}) (*response.Response, error)
}

// FormPoster is the interface that wraps the basic PostForm method.
//
// The request body is set to the URL-encoded keys and values from data,
// and the content type is set to application/x-www-form-urlencoded.
//
// Any Opener can be used to emulate a FormPoster via the PostForm
// function.
type FormPoster interface {
	PostForm(url string, data url.Values) (*response.Response, error)
}

// Executor is the interface that groups the basic Open, Get, Head, Post,
// PostForm, and Close methods.
//
// Any Opener can be converted into an Executor via the Inflate function.
type Executor interface {
	Opener
	Getter
	Header
	Poster
	FormPoster
	io.Closer
}

// Get uses the specified Opener to issue a GET to the specified URL.
//
// To make a request with custom headers, use request.New and o.Open.
func Get(o Opener, url string) (*response.Response, error) {
	req, err := request.New("GET", url, nil)
	if err != nil {
		return nil, err
	}
	return o.Open(req)
}

// Head uses the specified Opener to issue a HEAD to the specified URL.
//
// To make a request with custom headers, use request.New and o.Open.
func Head(o Opener, url string) (*response.Response, error) {
	req, err := request.New("HEAD", url, nil)
	if err != nil {
		return nil, err
	}
	return o.Open(req)
}

// Post uses the specified Opener to issue a POST to the specified URL.
//
// To make a request with custom headers, use request.New and o.Open.
func Post(o Opener, url, contentType string, body interface{}) (*response.Response, error) {
	b, err := request.BodyBytes(body)
	if err != nil {
		return nil, err
	}
	req, err := request.New("POST", url, b)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	return o.Open(req)
}

// PostForm uses the specified Opener to issue a POST to the specified
// URL, with data's keys and values URL-encoded as the request body.
func PostForm(o Opener, url string, data url.Values) (*response.Response, error) {
	return Post(o, url, "application/x-www-form-urlencoded", data)
}

// Inflate converts any non-nil Opener into an Executor.
//
// If o does not implement io.Closer, the Executor's Close method does
// nothing.
func Inflate(o Opener) Executor {
	if o == nil {
		panic("opener: nil opener")
	}

	if e, ok := o.(Executor); ok {
		return e
	}

	return inflated{o}
}

type inflated struct {
	opener Opener
}

func (i inflated) Open(req *request.Request) (*response.Response, error) {
	return i.opener.Open(req)
}

func (i inflated) Get(url string) (*response.Response, error) {
	return Get(i.opener, url)
}

func (i inflated) Head(url string) (*response.Response, error) {
	return Head(i.opener, url)
}

func (i inflated) Post(url, contentType string, body interface{}) (*response.Response, error) {
	return Post(i.opener, url, contentType, body)
}

func (i inflated) PostForm(url string, data url.Values) (*response.Response, error) {
	return PostForm(i.opener, url, data)
}

func (i inflated) Close() error {
	if c, ok := i.opener.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
