// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package opener

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gogama/opener/request"
	"github.com/gogama/opener/response"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// A Director owns an ordered chain of handlers and dispatches requests,
// responses and error codes through it. Its zero value is a valid,
// empty director.
//
// A Director opens a request in three stages:
//
// • every request filter for the request's scheme runs in order, the
// any-scheme filters first, each returning the request to continue
// with;
//
// • the openers for the scheme are tried in order until one returns a
// response, and no later opener is invoked;
//
// • every response filter for the scheme runs in order, the any-scheme
// filters first. A filter may replace the response, finish early, fail,
// or dispatch an error code, in which case the outcome of Error is the
// outcome of Open.
//
// Errors returned by openers, such as transport failures, end the fetch
// and are returned unchanged.
//
// Handlers are kept sorted by order key, with ties broken by the order
// in which they were added. Derived per-scheme and per-code indices are
// rebuilt lazily after an Add.
//
// A Director is not safe for concurrent use. Nested fetches made by
// handlers, such as redirect follow-ups or robots.txt fetches, run
// synchronously on the same Director.
type Director struct {
	// Log receives debug output about dispatch. If nil, nothing is
	// logged.
	Log *zap.Logger

	entries []*entry
	seq     int
	dirty   bool
	idx     index
}

type entry struct {
	h     Handler
	caps  []Capability
	order int
	seq   int
	rank  int
}

type index struct {
	sorted      []*entry
	anyOpen     []*entry
	open        map[string][]*entry
	anyRequest  []*entry
	request     map[string][]*entry
	anyResponse []*entry
	response    map[string][]*entry
	errors      map[string]map[int][]*entry
}

// Add adds a handler to the chain. Adding a handler that is already in
// the chain has no effect, and neither does adding a handler that
// declares no capabilities.
//
// Add panics if h is nil, or if h declares a capability with an empty
// scheme or a capability whose interface it does not implement.
func (d *Director) Add(h Handler) {
	if h == nil {
		panic("opener: nil handler")
	}
	if d.find(h) >= 0 {
		return
	}
	caps := h.Capabilities()
	if len(caps) == 0 {
		d.Logger().Debug("ignoring handler without capabilities",
			zap.String("handler", fmt.Sprintf("%T", h)))
		return
	}
	for _, c := range caps {
		if c.Scheme == "" {
			panic(fmt.Sprintf("opener: %T declares %s with empty scheme", h, c))
		}
		if !implements(h, c.Kind) {
			panic(fmt.Sprintf("opener: %T declares %s but does not implement it", h, c))
		}
	}
	d.entries = append(d.entries, &entry{
		h:     h,
		caps:  lo.Map(caps, func(c Capability, _ int) Capability { return normalize(c) }),
		order: orderOf(h),
		seq:   d.seq,
	})
	d.seq++
	d.dirty = true
}

// Remove removes a handler from the chain and from every derived index,
// so it receives no further calls. Removing a handler that is not in
// the chain has no effect.
func (d *Director) Remove(h Handler) {
	i := d.find(h)
	if i < 0 {
		return
	}
	d.entries = append(d.entries[:i:i], d.entries[i+1:]...)
	d.idx.purge(h)
}

// Handlers returns the handlers in the chain, in dispatch order.
func (d *Director) Handlers() []Handler {
	return lo.Map(d.index().sorted, func(e *entry, _ int) Handler { return e.h })
}

// Logger returns the director's logger, which is never nil.
func (d *Director) Logger() *zap.Logger {
	if d.Log == nil {
		return zap.NewNop()
	}
	return d.Log
}

// Open opens req through the handler chain and returns the final
// response.
//
// If no opener claims the request, the returned error is a *url.Error
// wrapping ErrUnknownScheme. An error status code which no handler
// resolves is returned as an *HTTPError.
func (d *Director) Open(req *request.Request) (*response.Response, error) {
	if req == nil {
		panic("opener: nil request")
	}

	ix := d.index()
	scheme := req.Scheme()

	for _, e := range concat(ix.anyRequest, ix.request[scheme]) {
		next, err := e.h.(RequestProcessor).ProcessRequest(d, req)
		if err != nil {
			return nil, err
		}
		if next != nil {
			req = next
		}
	}

	// Request filters may have changed the scheme.
	scheme = req.Scheme()
	var resp *response.Response
	for _, e := range mergeByRank(ix.anyOpen, ix.open[scheme]) {
		var err error
		resp, err = e.h.(SchemeOpener).Open(d, req)
		if err != nil {
			return nil, err
		}
		if resp != nil {
			break
		}
	}
	if resp == nil {
		return nil, req.URLError(errors.Wrapf(ErrUnknownScheme, "scheme %q", scheme))
	}

	for _, e := range concat(ix.anyResponse, ix.response[scheme]) {
		r := e.h.(ResponseProcessor).ProcessResponse(d, req, resp)
		switch r.Kind {
		case Continued:
			if r.Response != nil {
				resp = r.Response
			}
		case Finished:
			return r.Response, nil
		case Failed:
			return nil, r.Err
		case Dispatched:
			d.Logger().Debug("dispatching error code",
				zap.Int("code", r.Code),
				zap.String("url", urlString(req.URL)),
				zap.String("filter", fmt.Sprintf("%T", e.h)))
			return d.Error(req, resp, r.Code, r.Msg, r.Header)
		default:
			panic(fmt.Sprintf("opener: %T returned invalid result kind %d", e.h, r.Kind))
		}
	}

	return resp, nil
}

// Error dispatches an error status code to the error handlers for the
// request's scheme. The handlers for code are offered it in order,
// followed by the handlers registered for AnyCode, and the first to
// return a response wins. If none does, the returned error is an
// *HTTPError.
//
// The http and https schemes share one error table.
func (d *Director) Error(req *request.Request, resp *response.Response, code int, msg string, header http.Header) (*response.Response, error) {
	ix := d.index()
	table := ix.errors[errorScheme(req.Scheme())]
	chain := table[code]
	if code != AnyCode {
		chain = concat(chain, table[AnyCode])
	}
	for _, e := range chain {
		r, err := e.h.(ErrorHandler).HandleError(d, req, resp, code, msg, header)
		if err != nil {
			return nil, err
		}
		if r != nil {
			return r, nil
		}
	}
	return nil, NewHTTPError(req, resp, code, msg, header)
}

// Get issues a GET to the specified URL through the handler chain.
func (d *Director) Get(url string) (*response.Response, error) {
	return Get(d, url)
}

// Head issues a HEAD to the specified URL through the handler chain.
func (d *Director) Head(url string) (*response.Response, error) {
	return Head(d, url)
}

// Post issues a POST to the specified URL through the handler chain.
func (d *Director) Post(url, contentType string, body interface{}) (*response.Response, error) {
	return Post(d, url, contentType, body)
}

// PostForm issues a POST to the specified URL, with data's keys and
// values URL-encoded as the request body.
func (d *Director) PostForm(url string, data url.Values) (*response.Response, error) {
	return PostForm(d, url, data)
}

// Close closes every handler that implements io.Closer and empties the
// chain.
func (d *Director) Close() error {
	var err error
	for _, e := range d.entries {
		if c, ok := e.h.(io.Closer); ok {
			err = errors.CombineErrors(err, c.Close())
		}
	}
	d.entries = nil
	d.idx = index{}
	d.dirty = false
	return err
}

func (d *Director) find(h Handler) int {
	_, i, ok := lo.FindIndexOf(d.entries, func(e *entry) bool { return e.h == h })
	if !ok {
		return -1
	}
	return i
}

func (d *Director) index() *index {
	if d.dirty {
		d.idx = build(d.entries)
		d.dirty = false
	}
	return &d.idx
}

func build(entries []*entry) index {
	sorted := append([]*entry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].order < sorted[j].order
	})
	ix := index{
		sorted:   sorted,
		open:     make(map[string][]*entry),
		request:  make(map[string][]*entry),
		response: make(map[string][]*entry),
		errors:   make(map[string]map[int][]*entry),
	}
	for rank, e := range sorted {
		e.rank = rank
		for _, c := range e.caps {
			switch c.Kind {
			case KindOpen:
				if c.Scheme == AnyScheme {
					ix.anyOpen = append(ix.anyOpen, e)
				} else {
					ix.open[c.Scheme] = append(ix.open[c.Scheme], e)
				}
			case KindRequest:
				if c.Scheme == AnyScheme {
					ix.anyRequest = append(ix.anyRequest, e)
				} else {
					ix.request[c.Scheme] = append(ix.request[c.Scheme], e)
				}
			case KindResponse:
				if c.Scheme == AnyScheme {
					ix.anyResponse = append(ix.anyResponse, e)
				} else {
					ix.response[c.Scheme] = append(ix.response[c.Scheme], e)
				}
			case KindError:
				byCode := ix.errors[c.Scheme]
				if byCode == nil {
					byCode = make(map[int][]*entry)
					ix.errors[c.Scheme] = byCode
				}
				byCode[c.Code] = append(byCode[c.Code], e)
			}
		}
	}
	return ix
}

func (ix *index) purge(h Handler) {
	drop := func(es []*entry) []*entry {
		return lo.Reject(es, func(e *entry, _ int) bool { return e.h == h })
	}
	ix.sorted = drop(ix.sorted)
	ix.anyOpen = drop(ix.anyOpen)
	ix.anyRequest = drop(ix.anyRequest)
	ix.anyResponse = drop(ix.anyResponse)
	for _, m := range []map[string][]*entry{ix.open, ix.request, ix.response} {
		for k, es := range m {
			m[k] = drop(es)
		}
	}
	for _, byCode := range ix.errors {
		for code, es := range byCode {
			byCode[code] = drop(es)
		}
	}
}

// mergeByRank merges two chains which are each in dispatch order.
func mergeByRank(a, b []*entry) []*entry {
	out := make([]*entry, 0, len(a)+len(b))
	for len(a) > 0 && len(b) > 0 {
		if a[0].rank <= b[0].rank {
			out, a = append(out, a[0]), a[1:]
		} else {
			out, b = append(out, b[0]), b[1:]
		}
	}
	out = append(out, a...)
	return append(out, b...)
}

func concat(a, b []*entry) []*entry {
	return lo.Flatten([][]*entry{a, b})
}

func normalize(c Capability) Capability {
	c.Scheme = strings.ToLower(c.Scheme)
	if c.Kind == KindError {
		c.Scheme = errorScheme(c.Scheme)
	} else {
		c.Code = 0
	}
	return c
}

func errorScheme(scheme string) string {
	if scheme == "https" {
		return "http"
	}
	return scheme
}

func urlString(u *url.URL) string {
	if u == nil {
		return ""
	}
	return u.String()
}
