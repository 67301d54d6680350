// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package opener

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/gogama/opener/request"
	"github.com/gogama/opener/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newRequest(t *testing.T, rawURL string) *request.Request {
	req, err := request.New("", rawURL, nil)
	require.NoError(t, err)
	return req
}

func okResponse(req *request.Request, body string) *response.Response {
	return response.New(strings.NewReader(body), nil, req.URL, 200, "OK")
}

func readAll(t *testing.T, r io.Reader) string {
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(b)
}

func TestDirector_Add(t *testing.T) {
	t.Run("nil handler", func(t *testing.T) {
		d := &Director{}
		assert.PanicsWithValue(t, "opener: nil handler", func() { d.Add(nil) })
	})
	t.Run("no capabilities", func(t *testing.T) {
		d := &Director{}
		d.Add(&testHandler{})
		d.Add(&capsOnly{})
		assert.Empty(t, d.Handlers())
	})
	t.Run("missing interface", func(t *testing.T) {
		d := &Director{}
		h := &capsOnly{caps: OpenCap("http")}
		assert.PanicsWithValue(t,
			"opener: *opener.capsOnly declares Open(http) but does not implement it",
			func() { d.Add(h) })
		assert.Empty(t, d.Handlers())
	})
	t.Run("empty scheme", func(t *testing.T) {
		d := &Director{}
		assert.Panics(t, func() { d.Add(&testHandler{caps: OpenCap("")}) })
	})
	t.Run("duplicate", func(t *testing.T) {
		d := &Director{}
		h := &testHandler{caps: OpenCap("http")}
		d.Add(h)
		d.Add(h)
		assert.Equal(t, []Handler{h}, d.Handlers())
	})
	t.Run("order", func(t *testing.T) {
		d := &Director{}
		a := &testHandler{name: "a", order: 500, caps: OpenCap("http")}
		b := &testHandler{name: "b", order: 100, caps: OpenCap("http")}
		c := &testHandler{name: "c", order: 500, caps: OpenCap("http")}
		e := &testHandler{name: "e", order: 1000, caps: OpenCap("http")}
		d.Add(e)
		d.Add(a)
		d.Add(b)
		d.Add(c)
		assert.Equal(t, []Handler{b, a, c, e}, d.Handlers())
	})
}

func TestDirector_Remove(t *testing.T) {
	var log []string
	d := &Director{}
	first := &testHandler{name: "first", order: 100, log: &log,
		caps: append(OpenCap("http"), ErrorCap("http", 404)...)}
	second := &testHandler{name: "second", order: 200, log: &log, caps: OpenCap("http"),
		open: func(_ *Director, req *request.Request) (*response.Response, error) {
			return okResponse(req, "second"), nil
		}}
	d.Add(first)
	d.Add(second)

	// Build the indices before removing.
	_, err := d.Open(newRequest(t, "http://example.com/"))
	require.NoError(t, err)
	assert.Equal(t, []string{"first.Open", "second.Open"}, log)

	log = nil
	d.Remove(first)
	d.Remove(first)
	d.Remove(&testHandler{})
	assert.Equal(t, []Handler{second}, d.Handlers())

	resp, err := d.Open(newRequest(t, "http://example.com/"))
	require.NoError(t, err)
	assert.Equal(t, "second", readAll(t, resp))
	assert.Equal(t, []string{"second.Open"}, log)

	_, err = d.Error(newRequest(t, "http://example.com/"), nil, 404, "Not Found", nil)
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, []string{"second.Open"}, log, "removed error handler not called")
}

func TestDirector_Open(t *testing.T) {
	t.Run("nil request", func(t *testing.T) {
		d := &Director{}
		assert.PanicsWithValue(t, "opener: nil request", func() { _, _ = d.Open(nil) })
	})
	t.Run("unknown scheme", func(t *testing.T) {
		d := &Director{}
		d.Add(&testHandler{caps: OpenCap("http"), open: func(_ *Director, req *request.Request) (*response.Response, error) {
			return okResponse(req, ""), nil
		}})
		resp, err := d.Open(newRequest(t, "gopher://example.com/"))
		assert.Nil(t, resp)
		assert.ErrorIs(t, err, ErrUnknownScheme)
		var urlErr *url.Error
		require.ErrorAs(t, err, &urlErr)
		assert.Equal(t, "gopher://example.com/", urlErr.URL)
	})
	t.Run("first opener wins", func(t *testing.T) {
		var log []string
		d := &Director{}
		decline := &testHandler{name: "decline", order: 100, log: &log, caps: OpenCap("http")}
		anyH := &testHandler{name: "any", order: 200, log: &log, caps: OpenCap(AnyScheme),
			open: func(_ *Director, req *request.Request) (*response.Response, error) {
				return okResponse(req, "any"), nil
			}}
		late := &testHandler{name: "late", order: 300, log: &log, caps: OpenCap("http"),
			open: func(_ *Director, req *request.Request) (*response.Response, error) {
				return okResponse(req, "late"), nil
			}}
		d.Add(late)
		d.Add(anyH)
		d.Add(decline)
		resp, err := d.Open(newRequest(t, "http://example.com/"))
		require.NoError(t, err)
		assert.Equal(t, "any", readAll(t, resp))
		assert.Equal(t, []string{"decline.Open", "any.Open"}, log)
	})
	t.Run("opener error propagates", func(t *testing.T) {
		boom := errors.New("connection refused")
		var log []string
		d := &Director{}
		d.Add(&testHandler{name: "a", order: 1, log: &log, caps: OpenCap("http"),
			open: func(*Director, *request.Request) (*response.Response, error) { return nil, boom }})
		d.Add(&testHandler{name: "b", order: 2, log: &log, caps: append(OpenCap("http"), ResponseCap("http")...)})
		_, err := d.Open(newRequest(t, "http://example.com/"))
		assert.Same(t, boom, err)
		assert.Equal(t, []string{"a.Open"}, log)
	})
	t.Run("filter order", func(t *testing.T) {
		var log []string
		d := &Director{}
		scheme := &testHandler{name: "scheme", order: 100, log: &log,
			caps: append(RequestCap("http"), ResponseCap("http")...)}
		anyH := &testHandler{name: "any", order: 900, log: &log,
			caps: append(RequestCap(AnyScheme), ResponseCap(AnyScheme)...)}
		ftp := &testHandler{name: "ftp", order: 1, log: &log,
			caps: append(RequestCap("ftp"), ResponseCap("ftp")...)}
		opener := &testHandler{name: "opener", log: &log, caps: OpenCap("http"),
			open: func(_ *Director, req *request.Request) (*response.Response, error) {
				return okResponse(req, ""), nil
			}}
		d.Add(scheme)
		d.Add(anyH)
		d.Add(ftp)
		d.Add(opener)
		_, err := d.Open(newRequest(t, "http://example.com/"))
		require.NoError(t, err)
		assert.Equal(t, []string{
			"any.Request", "scheme.Request",
			"opener.Open",
			"any.Response", "scheme.Response",
		}, log)
	})
	t.Run("request filter replaces request", func(t *testing.T) {
		d := &Director{}
		replacement := newRequest(t, "http://example.com/replaced")
		d.Add(&testHandler{order: 1, caps: RequestCap("http"),
			request: func(*Director, *request.Request) (*request.Request, error) { return replacement, nil }})
		d.Add(&testHandler{order: 2, caps: RequestCap("http"),
			request: func(_ *Director, req *request.Request) (*request.Request, error) {
				assert.Same(t, replacement, req)
				req.Header.Set("X-Seen", "1")
				return nil, nil
			}})
		var opened *request.Request
		d.Add(&testHandler{order: 3, caps: OpenCap("http"),
			open: func(_ *Director, req *request.Request) (*response.Response, error) {
				opened = req
				return okResponse(req, ""), nil
			}})
		_, err := d.Open(newRequest(t, "http://example.com/"))
		require.NoError(t, err)
		assert.Same(t, replacement, opened)
		assert.Equal(t, "1", opened.Header.Get("X-Seen"))
	})
	t.Run("request filter error", func(t *testing.T) {
		boom := errors.New("denied")
		d := &Director{}
		d.Add(&testHandler{caps: RequestCap("http"),
			request: func(*Director, *request.Request) (*request.Request, error) { return nil, boom }})
		_, err := d.Open(newRequest(t, "http://example.com/"))
		assert.Same(t, boom, err)
	})
	t.Run("response results", func(t *testing.T) {
		testCases := []struct {
			name    string
			result  func(resp *response.Response) Result
			body    string
			err     string
			reached bool
		}{
			{
				name:    "Continue nil",
				result:  func(*response.Response) Result { return Continue(nil) },
				body:    "original",
				reached: true,
			},
			{
				name: "Continue replaced",
				result: func(resp *response.Response) Result {
					return Continue(response.FromBytes([]byte("replaced"), nil, resp.URL, 200, "OK"))
				},
				body:    "replaced",
				reached: true,
			},
			{
				name: "Done",
				result: func(resp *response.Response) Result {
					return Done(response.FromBytes([]byte("done"), nil, resp.URL, 200, "OK"))
				},
				body: "done",
			},
			{
				name:   "Fail",
				result: func(*response.Response) Result { return Fail(errors.New("failed")) },
				err:    "failed",
			},
			{
				name:   "Dispatch",
				result: func(*response.Response) Result { return Dispatch(500, "Internal Server Error", nil) },
				err:    "opener: HTTP Error 500: Internal Server Error",
			},
		}
		for _, testCase := range testCases {
			t.Run(testCase.name, func(t *testing.T) {
				var reached bool
				d := &Director{}
				d.Add(&testHandler{order: 1, caps: OpenCap("http"),
					open: func(_ *Director, req *request.Request) (*response.Response, error) {
						return okResponse(req, "original"), nil
					}})
				d.Add(&testHandler{order: 2, caps: ResponseCap("http"),
					resp: func(_ *Director, _ *request.Request, resp *response.Response) Result {
						return testCase.result(resp)
					}})
				d.Add(&testHandler{order: 3, caps: ResponseCap("http"),
					resp: func(_ *Director, _ *request.Request, resp *response.Response) Result {
						reached = true
						return Continue(resp)
					}})
				resp, err := d.Open(newRequest(t, "http://example.com/"))
				if testCase.err != "" {
					assert.EqualError(t, err, testCase.err)
					assert.Nil(t, resp)
				} else {
					require.NoError(t, err)
					assert.Equal(t, testCase.body, readAll(t, resp))
				}
				assert.Equal(t, testCase.reached, reached)
			})
		}
	})
	t.Run("Fail with nil error", func(t *testing.T) {
		assert.PanicsWithValue(t, "opener: Fail with nil error", func() { Fail(nil) })
	})
}

func TestDirector_Dispatch(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	d := &Director{Log: zap.New(core)}
	var log []string
	d.Add(&testHandler{name: "opener", order: 1, log: &log, caps: OpenCap("https"),
		open: func(_ *Director, req *request.Request) (*response.Response, error) {
			return response.New(strings.NewReader("not found"), nil, req.URL, 404, "Not Found"), nil
		}})
	d.Add(&testHandler{name: "filter", order: 2, log: &log, caps: ResponseCap("https"),
		resp: func(_ *Director, _ *request.Request, resp *response.Response) Result {
			return Dispatch(resp.StatusCode, resp.Status, resp.Header)
		}})
	d.Add(&testHandler{name: "later", order: 3, log: &log, caps: ResponseCap("https")})
	d.Add(&testHandler{name: "any", order: 1, log: &log, caps: ErrorCap("http", AnyCode)})
	d.Add(&testHandler{name: "decline", order: 10, log: &log, caps: ErrorCap("http", 404)})
	d.Add(&testHandler{name: "resolve", order: 20, log: &log, caps: ErrorCap("http", 404),
		err: func(_ *Director, req *request.Request, _ *response.Response, code int) (*response.Response, error) {
			assert.Equal(t, 404, code)
			return okResponse(req, "recovered"), nil
		}})

	resp, err := d.Open(newRequest(t, "https://example.com/missing"))
	require.NoError(t, err)
	assert.Equal(t, "recovered", readAll(t, resp))
	assert.Equal(t, []string{
		"opener.Open", "filter.Response",
		"decline.Error", "resolve.Error",
	}, log, "specific code handlers precede AnyCode handlers and https shares the http table")

	entries := logs.FilterMessage("dispatching error code").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(404), entries[0].ContextMap()["code"])
	assert.Equal(t, "https://example.com/missing", entries[0].ContextMap()["url"])
}

func TestDirector_Error(t *testing.T) {
	t.Run("unhandled", func(t *testing.T) {
		var log []string
		d := &Director{}
		d.Add(&testHandler{name: "any", log: &log, caps: ErrorCap("http", AnyCode)})
		req := newRequest(t, "http://example.com/x")
		orig := okResponse(req, "body")
		hdr := http.Header{"Retry-After": {"10"}}
		resp, err := d.Error(req, orig, 503, "Service Unavailable", hdr)
		assert.Nil(t, resp)
		var httpErr *HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, 503, httpErr.Code)
		assert.Equal(t, "Service Unavailable", httpErr.Msg)
		assert.Equal(t, hdr, httpErr.Header)
		assert.Equal(t, "http://example.com/x", httpErr.URL)
		assert.Same(t, req, httpErr.Request)
		assert.Same(t, orig, httpErr.Response)
		assert.Nil(t, errors.Unwrap(httpErr))
		assert.Equal(t, []string{"any.Error"}, log)
	})
	t.Run("handler error", func(t *testing.T) {
		boom := errors.New("boom")
		d := &Director{}
		d.Add(&testHandler{caps: ErrorCap("ftp", 550),
			err: func(*Director, *request.Request, *response.Response, int) (*response.Response, error) {
				return nil, boom
			}})
		_, err := d.Error(newRequest(t, "ftp://example.com/x"), nil, 550, "No such file", nil)
		assert.Same(t, boom, err)
	})
	t.Run("other scheme table", func(t *testing.T) {
		var log []string
		d := &Director{}
		d.Add(&testHandler{name: "http", log: &log, caps: ErrorCap("http", 550)})
		_, err := d.Error(newRequest(t, "ftp://example.com/x"), nil, 550, "No such file", nil)
		var httpErr *HTTPError
		assert.ErrorAs(t, err, &httpErr)
		assert.Empty(t, log)
	})
}

func TestDirector_NestedOpen(t *testing.T) {
	d := &Director{}
	d.Add(&testHandler{order: 1, caps: OpenCap("http"),
		open: func(_ *Director, req *request.Request) (*response.Response, error) {
			if req.URL.Path == "/start" {
				return response.New(nil, http.Header{"Location": {"/end"}}, req.URL, 302, "Found"), nil
			}
			return okResponse(req, "end"), nil
		}})
	d.Add(&testHandler{order: 2, caps: ResponseCap("http"),
		resp: func(_ *Director, _ *request.Request, resp *response.Response) Result {
			if resp.StatusCode != 200 {
				return Dispatch(resp.StatusCode, resp.Status, resp.Header)
			}
			return Continue(resp)
		}})
	d.Add(&testHandler{order: 3, caps: ErrorCap("http", 302),
		err: func(d *Director, req *request.Request, resp *response.Response, _ int) (*response.Response, error) {
			u, err := req.URL.Parse(resp.Header.Get("Location"))
			require.NoError(t, err)
			return d.Open(req.Follow(u))
		}})
	resp, err := d.Open(newRequest(t, "http://example.com/start"))
	require.NoError(t, err)
	assert.Equal(t, "end", readAll(t, resp))
	assert.Equal(t, "/end", resp.URL.Path)
}

func TestDirector_Close(t *testing.T) {
	d := &Director{}
	c1 := &closingHandler{testHandler: testHandler{caps: OpenCap("http")}, err: errors.New("c1")}
	c2 := &closingHandler{testHandler: testHandler{caps: OpenCap("http")}}
	d.Add(c1)
	d.Add(c2)
	d.Add(&testHandler{caps: OpenCap("http")})
	err := d.Close()
	assert.EqualError(t, err, "c1")
	assert.True(t, c1.closed)
	assert.True(t, c2.closed)
	assert.Empty(t, d.Handlers())
}

func TestDirector_Methods(t *testing.T) {
	d := &Director{}
	var got []string
	d.Add(&testHandler{caps: OpenCap("http"),
		open: func(_ *Director, req *request.Request) (*response.Response, error) {
			got = append(got, req.GetMethod()+" "+req.URL.Path+" "+string(req.Body))
			return okResponse(req, ""), nil
		}})
	_, err := d.Get("http://example.com/get")
	require.NoError(t, err)
	_, err = d.Head("http://example.com/head")
	require.NoError(t, err)
	_, err = d.Post("http://example.com/post", "text/plain", "body")
	require.NoError(t, err)
	_, err = d.PostForm("http://example.com/form", url.Values{"a": {"b"}})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"GET /get ",
		"HEAD /head ",
		"POST /post body",
		"POST /form a=b",
	}, got)
}

type closingHandler struct {
	testHandler
	err    error
	closed bool
}

func (h *closingHandler) Close() error {
	h.closed = true
	return h.err
}
