// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package robots

import (
	"io"
	"net/url"

	"github.com/cockroachdb/errors"
	"github.com/gogama/opener"
	"github.com/gogama/opener/request"
	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
)

// Rules holds the robots.txt rules of one site.
type Rules interface {
	// SetOpener sets the opener used by Read to fetch robots.txt.
	SetOpener(o opener.Opener)
	// SetURL sets the URL of the robots.txt file to read.
	SetURL(url string)
	// Read fetches and parses the robots.txt file. A fetch which
	// fails, or which yields a status other than 2xx, results in rules
	// that allow everything.
	Read() error
	// CanFetch reports whether agent may fetch rawURL.
	CanFetch(agent, rawURL string) bool
}

// A Parser is the default Rules implementation. Until Read succeeds it
// allows everything.
type Parser struct {
	// Log receives debug output about fetch failures. If nil, nothing
	// is logged.
	Log *zap.Logger

	opener opener.Opener
	url    string
	data   *robotstxt.RobotsData
}

// New returns a new Parser. It is the default rules factory of the
// robots handler.
func New() Rules {
	return &Parser{}
}

// SetOpener implements Rules.
func (p *Parser) SetOpener(o opener.Opener) {
	p.opener = o
}

// SetURL implements Rules.
func (p *Parser) SetURL(url string) {
	p.url = url
}

// URL returns the URL set by SetURL.
func (p *Parser) URL() string {
	return p.url
}

// Read implements Rules. Errors from the fetch itself are not returned;
// the error result only reports a missing opener.
func (p *Parser) Read() error {
	if p.opener == nil {
		return errors.New("opener/robots: no opener set")
	}
	p.data = allowAll()
	req, err := request.New("GET", p.url, nil)
	if err != nil {
		p.logger().Debug("bad robots.txt URL", zap.String("url", p.url), zap.Error(err))
		return nil
	}
	resp, err := p.opener.Open(req)
	if err != nil {
		var httpErr *opener.HTTPError
		if errors.As(err, &httpErr) && httpErr.Response != nil {
			_ = httpErr.Response.Close()
		}
		p.logger().Debug("robots.txt fetch failed, allowing all",
			zap.String("url", p.url), zap.Error(err))
		return nil
	}
	defer func() {
		_ = resp.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		p.logger().Debug("robots.txt fetch returned non-success status, allowing all",
			zap.String("url", p.url), zap.Int("status", resp.StatusCode))
		return nil
	}
	body, err := io.ReadAll(resp)
	if err != nil {
		p.logger().Debug("robots.txt read failed, allowing all",
			zap.String("url", p.url), zap.Error(err))
		return nil
	}
	data, err := robotstxt.FromBytes(body)
	if err != nil {
		p.logger().Debug("robots.txt parse failed, allowing all",
			zap.String("url", p.url), zap.Error(err))
		return nil
	}
	p.data = data
	return nil
}

// CanFetch implements Rules.
func (p *Parser) CanFetch(agent, rawURL string) bool {
	if p.data == nil {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return p.data.TestAgent(path, agent)
}

func (p *Parser) logger() *zap.Logger {
	if p.Log == nil {
		return zap.NewNop()
	}
	return p.Log
}

func allowAll() *robotstxt.RobotsData {
	data, _ := robotstxt.FromBytes(nil)
	return data
}
