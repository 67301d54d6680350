// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package handler

import (
	"errors"
	"net/http"
	"testing"

	"github.com/gogama/opener"
	"github.com/gogama/opener/robots"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const robotsTxt = "User-agent: *\nDisallow: /private\n\nUser-agent: badbot\nDisallow: /\n"

func TestRobots(t *testing.T) {
	t.Run("allow and deny", func(t *testing.T) {
		s := newSite()
		s.serve("http://example.com/robots.txt", ok(robotsTxt))
		s.serve("http://example.com/public", ok("public"))
		s.serve("http://example.com/private", ok("private"))
		d := newDirector(s, &ErrorProcessor{}, &Robots{})

		resp, err := d.Open(newRequest(t, "", "http://example.com/public", nil))
		require.NoError(t, err)
		assert.Equal(t, "public", readBody(t, resp))

		resp, err = d.Open(newRequest(t, "", "http://example.com/private", nil))
		assert.Nil(t, resp)
		assert.ErrorIs(t, err, opener.ErrRobotsDisallowed)
		var httpErr *opener.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusForbidden, httpErr.Code)
		assert.Equal(t, "request disallowed by robots.txt", httpErr.Msg)
		assert.Equal(t, "http://example.com/private", httpErr.URL)

		assert.Equal(t, []string{
			"http://example.com/robots.txt",
			"http://example.com/public",
		}, s.urls())
	})
	t.Run("user agent", func(t *testing.T) {
		s := newSite()
		s.serve("http://example.com/robots.txt", ok(robotsTxt))
		s.serve("http://example.com/public", ok("public"))
		d := newDirector(s, &ErrorProcessor{}, &Robots{})
		req := newRequest(t, "", "http://example.com/public", nil)
		req.Header.Set("User-Agent", "badbot/1.0")
		_, err := d.Open(req)
		assert.ErrorIs(t, err, opener.ErrRobotsDisallowed)
	})
	t.Run("one fetch per site", func(t *testing.T) {
		s := newSite()
		s.serve("http://example.com/robots.txt", ok(robotsTxt))
		for _, u := range []string{"http://example.com/a", "http://example.com/b", "http://example.com:80/c", "https://example.org/d"} {
			s.serve(u, ok("x"))
		}
		d := newDirector(s, &ErrorProcessor{}, &Robots{})
		for _, u := range []string{"http://example.com/a", "http://example.com/b", "http://example.com:80/c", "https://example.org/d"} {
			resp, err := d.Open(newRequest(t, "", u, nil))
			require.NoError(t, err, u)
			require.NoError(t, resp.Close())
		}
		assert.Equal(t, []string{
			"http://example.com/robots.txt",
			"http://example.com/a",
			"http://example.com/b",
			"http://example.com:80/robots.txt",
			"http://example.com:80/c",
			"https://example.org/robots.txt",
			"https://example.org/d",
		}, s.urls())
	})
	t.Run("missing robots.txt allows all", func(t *testing.T) {
		s := newSite()
		s.serve("http://example.com/private", ok("private"))
		d := newDirector(s, &ErrorProcessor{}, &Robots{})
		resp, err := d.Open(newRequest(t, "", "http://example.com/private", nil))
		require.NoError(t, err)
		assert.Equal(t, "private", readBody(t, resp))
	})
	t.Run("redirected robots.txt", func(t *testing.T) {
		s := newSite()
		s.serve("http://example.com/robots.txt", redirect(302, "/robots-real.txt"))
		s.serve("http://example.com/robots-real.txt", ok(robotsTxt))
		s.serve("http://example.com/private", ok("private"))
		d := newDirector(s, &ErrorProcessor{}, &Redirect{}, &Robots{})
		_, err := d.Open(newRequest(t, "", "http://example.com/private", nil))
		assert.ErrorIs(t, err, opener.ErrRobotsDisallowed)
		assert.Equal(t, []string{
			"http://example.com/robots.txt",
			"http://example.com/robots-real.txt",
		}, s.urls())
	})
	t.Run("ftp not checked", func(t *testing.T) {
		s := newSite()
		s.serve("ftp://example.com/private", ok("file"))
		d := newDirector(s, &Robots{})
		resp, err := d.Open(newRequest(t, "", "ftp://example.com/private", nil))
		require.NoError(t, err)
		assert.Equal(t, "file", readBody(t, resp))
		assert.Len(t, s.reqs, 1)
	})
	t.Run("custom rules", func(t *testing.T) {
		s := newSite()
		s.serve("http://example.com/a", ok("a"))
		var made []*fakeRules
		h := &Robots{Factory: func() robots.Rules {
			r := &fakeRules{allow: true}
			made = append(made, r)
			return r
		}}
		d := newDirector(s, h)
		resp, err := d.Open(newRequest(t, "", "http://example.com/a", nil))
		require.NoError(t, err)
		require.NoError(t, resp.Close())
		require.Len(t, made, 1)
		assert.Same(t, d, made[0].opener)
		assert.Equal(t, "http://example.com/robots.txt", made[0].url)
		assert.Equal(t, 1, made[0].reads)
	})
	t.Run("read error", func(t *testing.T) {
		s := newSite()
		readErr := errors.New("boom")
		h := &Robots{Factory: func() robots.Rules { return &fakeRules{err: readErr} }}
		d := newDirector(s, h)
		_, err := d.Open(newRequest(t, "", "http://example.com/a", nil))
		assert.ErrorIs(t, err, readErr)
		assert.Empty(t, s.reqs)
	})
}

type fakeRules struct {
	opener opener.Opener
	url    string
	reads  int
	allow  bool
	err    error
}

func (r *fakeRules) SetOpener(o opener.Opener) { r.opener = o }
func (r *fakeRules) SetURL(url string)         { r.url = url }
func (r *fakeRules) Read() error               { r.reads++; return r.err }
func (r *fakeRules) CanFetch(string, string) bool {
	return r.allow
}
