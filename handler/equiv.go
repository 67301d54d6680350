// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package handler

import (
	"io"
	"mime"
	"net/url"
	"path"
	"strings"

	"github.com/gogama/opener"
	"github.com/gogama/opener/request"
	"github.com/gogama/opener/response"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

var (
	htmlTypes  = []string{"text/html"}
	xhtmlTypes = []string{"text/xhtml", "text/xml", "application/xml", "application/xhtml+xml"}
	htmlExts   = []string{".htm", ".html"}
)

// headElements are the elements which may appear in an HTML head.
// Parsing stops at the first start tag of any other element.
var headElements = map[string]bool{
	"html":   true,
	"head":   true,
	"title":  true,
	"base":   true,
	"script": true,
	"style":  true,
	"meta":   true,
	"link":   true,
	"object": true,
}

// An Equiv is a response filter which treats the <meta http-equiv>
// elements in the head of an HTML document as if they were response
// headers, adding each one to the response header. Its zero value is
// ready to use.
//
// Equiv makes every response it sees seekable, and rewinds HTML
// responses after parsing their head.
type Equiv struct {
	// AllowXHTML makes XHTML documents eligible as well as HTML ones.
	AllowXHTML bool
	// Log receives debug output. If nil, nothing is logged.
	Log *zap.Logger
}

// Capabilities implements opener.Handler.
func (h *Equiv) Capabilities() []opener.Capability {
	return opener.ResponseCap(httpSchemes...)
}

// ProcessResponse implements opener.ResponseProcessor.
func (h *Equiv) ProcessResponse(_ *opener.Director, _ *request.Request, resp *response.Response) opener.Result {
	resp.MakeSeekable()
	if !isHTML(resp.Header.Values("Content-Type"), resp.URL, h.AllowXHTML) {
		return opener.Continue(resp)
	}
	equiv := parseHead(resp)
	if _, err := resp.Seek(0, io.SeekStart); err != nil {
		return opener.Fail(err)
	}
	for _, kv := range equiv {
		nopIfNil(h.Log).Debug("promoting http-equiv",
			zap.String("name", kv[0]), zap.String("value", kv[1]))
		resp.Header.Add(kv[0], kv[1])
	}
	return opener.Continue(resp)
}

// parseHead returns the http-equiv name and content of every meta
// element in the head of the HTML document r, in document order.
func parseHead(r io.Reader) [][2]string {
	var out [][2]string
	z := html.NewTokenizer(r)
	for {
		switch z.Next() {
		case html.ErrorToken:
			return out
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			tag := string(name)
			if !headElements[tag] {
				return out
			}
			if tag != "meta" || !hasAttr {
				continue
			}
			var equiv, content string
			var hasEquiv, hasContent bool
			for more := true; more; {
				var k, v []byte
				k, v, more = z.TagAttr()
				switch string(k) {
				case "http-equiv":
					equiv, hasEquiv = string(v), true
				case "content":
					content, hasContent = string(v), true
				}
			}
			if hasEquiv && hasContent && equiv != "" {
				out = append(out, [2]string{equiv, content})
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); string(name) == "head" {
				return out
			}
		}
	}
}

// isHTML reports whether a response is an HTML document, judging by
// its Content-Type header or, if it has none, by the extension of its
// URL path.
func isHTML(contentTypes []string, u *url.URL, allowXHTML bool) bool {
	if len(contentTypes) == 0 {
		if u == nil {
			return false
		}
		exts := htmlExts
		if allowXHTML {
			exts = append(exts[:len(exts):len(exts)], ".xhtml")
		}
		return lo.Contains(exts, strings.ToLower(path.Ext(u.Path)))
	}
	mt, _, err := mime.ParseMediaType(contentTypes[0])
	if err != nil {
		mt, _, _ = strings.Cut(contentTypes[0], ";")
		mt = strings.ToLower(strings.TrimSpace(mt))
	}
	if lo.Contains(htmlTypes, mt) {
		return true
	}
	return allowXHTML && lo.Contains(xhtmlTypes, mt)
}
