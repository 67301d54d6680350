// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package handler

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/gogama/opener"
	"github.com/gogama/opener/request"
	"github.com/gogama/opener/response"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// page is one canned answer of a site.
type page struct {
	code   int
	header http.Header
	body   string
}

func ok(body string) page {
	return page{code: http.StatusOK, body: body}
}

func redirect(code int, location string) page {
	return page{code: code, header: http.Header{"Location": {location}}}
}

// site is an opener serving canned pages by exact URL and recording the
// requests it receives. Unknown URLs get a 404.
type site struct {
	pages map[string]func(req *request.Request) page
	reqs  []*request.Request
}

func newSite() *site {
	return &site{pages: make(map[string]func(req *request.Request) page)}
}

func (s *site) serve(url string, p page) {
	s.pages[url] = func(*request.Request) page { return p }
}

func (s *site) serveFunc(url string, f func(req *request.Request) page) {
	s.pages[url] = f
}

func (s *site) urls() []string {
	out := make([]string, len(s.reqs))
	for i, r := range s.reqs {
		out[i] = r.URL.String()
	}
	return out
}

func (s *site) Capabilities() []opener.Capability {
	return opener.OpenCap("http", "https", "ftp")
}

func (s *site) Open(_ *opener.Director, req *request.Request) (*response.Response, error) {
	s.reqs = append(s.reqs, req)
	f, ok := s.pages[req.URL.String()]
	if !ok {
		return response.New(strings.NewReader("not found"), nil, req.URL, http.StatusNotFound, "Not Found"), nil
	}
	p := f(req)
	return response.New(strings.NewReader(p.body), p.header.Clone(), req.URL, p.code, http.StatusText(p.code)), nil
}

func newDirector(s *site, hs ...opener.Handler) *opener.Director {
	d := &opener.Director{}
	d.Add(s)
	for _, h := range hs {
		d.Add(h)
	}
	return d
}

func newRequest(t *testing.T, method, rawURL string, body interface{}) *request.Request {
	req, err := request.New(method, rawURL, body)
	require.NoError(t, err)
	return req
}

func readBody(t *testing.T, resp *response.Response) string {
	b, err := io.ReadAll(resp)
	require.NoError(t, err)
	require.NoError(t, resp.Close())
	return string(b)
}
