// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package useragent

import (
	"net/http"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gogama/opener"
	"github.com/gogama/opener/auth"
	"github.com/gogama/opener/handler"
	"github.com/gogama/opener/retry"
	"github.com/gogama/opener/timeout"
	"github.com/gogama/opener/transport"
	"go.uber.org/zap"
)

// Names of the features in DefaultTable. Scheme openers are named by
// their scheme, and the names of other features start with "_".
const (
	FeatureHeaders         = "_headers"
	FeatureErrors          = "_errors"
	FeatureRedirect        = "_redirect"
	FeatureCookies         = "_cookies"
	FeatureReferer         = "_referer"
	FeatureRefresh         = "_refresh"
	FeatureEquiv           = "_equiv"
	FeatureBasicAuth       = "_basicauth"
	FeatureDigestAuth      = "_digestauth"
	FeatureProxy           = "_proxy"
	FeatureProxyBasicAuth  = "_proxy_basicauth"
	FeatureProxyDigestAuth = "_proxy_digestauth"
	FeatureSeek            = "_seek"
	FeatureRobots          = "_robots"
	FeatureDebugRedirects  = "_debug_redirect"
	FeatureDebugResponses  = "_debug_response_body"
)

// Params holds the settings which constructors read. A UserAgent owns
// one Params and passes it to every constructor it calls, so a setter
// changes a setting and then rebuilds the feature using it.
type Params struct {
	// Log is the parent of every handler logger. Never nil.
	Log *zap.Logger
	// Header holds the default request headers. Never nil.
	Header http.Header

	HTTPDoer      transport.HTTPDoer
	TimeoutPolicy timeout.Policy
	RetryPolicy   retry.Policy
	FTPDial       transport.FTPDialer
	S3            transport.S3API

	// Jar is the cookie jar. If nil, the cookie handler makes its own.
	Jar handler.CookieJar
	// Proxies maps schemes to proxies. If nil, proxies come from the
	// environment.
	Proxies        map[string]string
	Passwords      auth.PasswordManager
	ProxyPasswords auth.PasswordManager

	MaxRedirections  int
	MaxRepeats       int
	RefreshMaxWait   time.Duration
	RefreshHonorTime bool
	Clock            clock.Clock
}

// A Constructor makes the handler of one feature.
type Constructor func(p *Params) opener.Handler

// A Table maps feature names to constructors.
type Table map[string]Constructor

// DefaultTable returns a new table holding a constructor for each
// scheme opener and feature of this module.
func DefaultTable() Table {
	return Table{
		"http":  httpOpener("http"),
		"https": httpOpener("https"),
		"ftp": func(p *Params) opener.Handler {
			return &transport.FTP{Dial: p.FTPDial, TimeoutPolicy: p.TimeoutPolicy, Log: p.Log.Named("ftp")}
		},
		"file": func(*Params) opener.Handler {
			return &transport.File{}
		},
		"s3": func(p *Params) opener.Handler {
			return &transport.S3{Client: p.S3, TimeoutPolicy: p.TimeoutPolicy, Log: p.Log.Named("s3")}
		},

		FeatureHeaders: func(p *Params) opener.Handler {
			return &handler.Headers{Header: p.Header}
		},
		FeatureErrors: func(*Params) opener.Handler {
			return &handler.ErrorProcessor{}
		},
		FeatureRedirect: func(p *Params) opener.Handler {
			return &handler.Redirect{
				MaxRedirections: p.MaxRedirections,
				MaxRepeats:      p.MaxRepeats,
				Log:             p.Log.Named("redirect"),
			}
		},
		FeatureCookies: func(p *Params) opener.Handler {
			h := handler.NewCookies(p.Jar)
			h.Log = p.Log.Named("cookies")
			return h
		},
		FeatureReferer: func(*Params) opener.Handler {
			return &handler.Referer{}
		},
		FeatureRefresh: func(p *Params) opener.Handler {
			return &handler.Refresh{
				MaxWait:   p.RefreshMaxWait,
				HonorTime: p.RefreshHonorTime,
				Clock:     p.Clock,
				Log:       p.Log.Named("refresh"),
			}
		},
		FeatureEquiv: func(p *Params) opener.Handler {
			return &handler.Equiv{Log: p.Log.Named("equiv")}
		},
		FeatureBasicAuth: func(p *Params) opener.Handler {
			h := handler.NewBasicAuth(p.Passwords)
			h.Log = p.Log.Named("basicauth")
			return h
		},
		FeatureDigestAuth: func(p *Params) opener.Handler {
			h := handler.NewDigestAuth(p.Passwords)
			h.Log = p.Log.Named("digestauth")
			return h
		},
		FeatureProxy: func(p *Params) opener.Handler {
			var h *handler.Proxy
			if p.Proxies == nil {
				h = handler.ProxyFromEnvironment()
			} else {
				h = handler.NewProxy(p.Proxies)
			}
			h.Log = p.Log.Named("proxy")
			return h
		},
		FeatureProxyBasicAuth: func(p *Params) opener.Handler {
			h := handler.NewProxyBasicAuth(p.ProxyPasswords)
			h.Log = p.Log.Named("proxybasicauth")
			return h
		},
		FeatureProxyDigestAuth: func(p *Params) opener.Handler {
			h := handler.NewProxyDigestAuth(p.ProxyPasswords)
			h.Log = p.Log.Named("proxydigestauth")
			return h
		},
		FeatureSeek: func(*Params) opener.Handler {
			return &handler.Seek{}
		},
		FeatureRobots: func(p *Params) opener.Handler {
			return &handler.Robots{Log: p.Log.Named("robots")}
		},
		FeatureDebugRedirects: func(p *Params) opener.Handler {
			return &handler.RedirectLogger{Log: p.Log.Named("redirects")}
		},
		FeatureDebugResponses: func(p *Params) opener.Handler {
			return &handler.BodyLogger{Log: p.Log.Named("responses")}
		},
	}
}

func httpOpener(scheme string) Constructor {
	return func(p *Params) opener.Handler {
		return &transport.HTTP{
			Schemes:       []string{scheme},
			HTTPDoer:      p.HTTPDoer,
			TimeoutPolicy: p.TimeoutPolicy,
			RetryPolicy:   p.RetryPolicy,
			Clock:         p.Clock,
			Log:           p.Log.Named(scheme),
		}
	}
}

func isScheme(name string) bool {
	return !strings.HasPrefix(name, "_")
}
