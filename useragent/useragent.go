// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package useragent

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cockroachdb/errors"
	"github.com/gogama/opener"
	"github.com/gogama/opener/auth"
	"github.com/gogama/opener/handler"
	"github.com/gogama/opener/retry"
	"github.com/gogama/opener/timeout"
	"github.com/gogama/opener/transport"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// DefaultSchemes are the schemes a new UserAgent opens.
var DefaultSchemes = []string{"http", "https", "ftp", "file"}

// DefaultFeatures are the features a new UserAgent has. FeatureRobots
// is added when Config.Robots is set.
var DefaultFeatures = []string{
	FeatureHeaders,
	FeatureErrors,
	FeatureRedirect,
	FeatureCookies,
	FeatureReferer,
	FeatureRefresh,
	FeatureEquiv,
	FeatureBasicAuth,
	FeatureDigestAuth,
	FeatureProxy,
	FeatureProxyBasicAuth,
	FeatureProxyDigestAuth,
	FeatureSeek,
}

// A UserAgent is a Director whose handler chain is built from a table
// of features, with a setter to switch each feature on or off.
//
// Do not Add a handler for something a feature already deals with.
//
// A UserAgent is not safe for concurrent use.
type UserAgent struct {
	*opener.Director

	table    Table
	params   Params
	handlers map[string]opener.Handler
}

type settings struct {
	params   Params
	table    Table
	schemes  []string
	features []string
	tp       trace.TracerProvider
	prop     propagation.TextMapPropagator
}

// An Option configures a UserAgent made by New.
type Option func(*settings)

// WithLogger sets the logger of the UserAgent and its handlers.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) { s.params.Log = l }
}

// WithHTTPDoer sets the HTTPDoer of the http and https openers. It
// must not follow redirects.
func WithHTTPDoer(doer transport.HTTPDoer) Option {
	return func(s *settings) { s.params.HTTPDoer = doer }
}

// WithTracing makes the default HTTPDoer trace each round trip with
// OpenTelemetry. It has no effect together with WithHTTPDoer.
func WithTracing(tp trace.TracerProvider, prop propagation.TextMapPropagator) Option {
	return func(s *settings) { s.tp, s.prop = tp, prop }
}

// WithTimeoutPolicy sets the timeout policy of the scheme openers,
// overriding Config.Timeout.
func WithTimeoutPolicy(p timeout.Policy) Option {
	return func(s *settings) { s.params.TimeoutPolicy = p }
}

// WithRetryPolicy sets the retry policy of the http and https openers.
// By default failed fetches are not retried.
func WithRetryPolicy(p retry.Policy) Option {
	return func(s *settings) { s.params.RetryPolicy = p }
}

// WithFTPDialer sets the dialer of the ftp opener.
func WithFTPDialer(dial transport.FTPDialer) Option {
	return func(s *settings) { s.params.FTPDial = dial }
}

// WithS3Client sets the client of the s3 opener and adds s3 to the
// opened schemes.
func WithS3Client(c transport.S3API) Option {
	return func(s *settings) {
		s.params.S3 = c
		s.schemes = lo.Uniq(append(s.schemes, "s3"))
	}
}

// WithClock sets the clock used to wait for refreshes and between
// transport retries.
func WithClock(c clock.Clock) Option {
	return func(s *settings) { s.params.Clock = c }
}

// WithTable replaces DefaultTable. The table is copied.
func WithTable(t Table) Option {
	return func(s *settings) { s.table = t }
}

// WithSchemes replaces DefaultSchemes.
func WithSchemes(schemes ...string) Option {
	return func(s *settings) { s.schemes = schemes }
}

// WithFeatures replaces DefaultFeatures, including FeatureRobots.
func WithFeatures(features ...string) Option {
	return func(s *settings) { s.features = features }
}

// New returns a UserAgent configured by cfg and opts. Schemes and
// features missing from the table are skipped.
func New(cfg Config, opts ...Option) *UserAgent {
	features := append([]string(nil), DefaultFeatures...)
	if cfg.Robots {
		features = append(features, FeatureRobots)
	}
	s := settings{
		params: Params{
			MaxRedirections:  cfg.MaxRedirections,
			MaxRepeats:       cfg.MaxRepeats,
			RefreshMaxWait:   cfg.RefreshMaxWait,
			RefreshHonorTime: cfg.RefreshHonorTime,
		},
		table:    DefaultTable(),
		schemes:  append([]string(nil), DefaultSchemes...),
		features: features,
	}
	if len(cfg.Proxies) > 0 {
		s.params.Proxies = cfg.Proxies
	}
	if cfg.Timeout > 0 {
		s.params.TimeoutPolicy = timeout.Fixed(cfg.Timeout)
	}
	for _, opt := range opts {
		opt(&s)
	}

	p := s.params
	if p.Log == nil {
		p.Log = zap.NewNop()
	}
	p.Header = make(http.Header)
	if cfg.UserAgent != "" {
		p.Header.Set("User-Agent", cfg.UserAgent)
	}
	if p.HTTPDoer == nil {
		var rt http.RoundTripper
		if s.tp != nil {
			prop := s.prop
			if prop == nil {
				prop = propagation.TraceContext{}
			}
			rt = transport.NewTracedTransport(nil, s.tp, prop)
		}
		p.HTTPDoer = transport.NewClient(rt)
	}
	p.Passwords = auth.NewManager()
	p.ProxyPasswords = auth.NewProxyManager()

	ua := &UserAgent{
		Director: &opener.Director{Log: p.Log.Named("director")},
		table:    lo.Assign(s.table),
		params:   p,
		handlers: make(map[string]opener.Handler),
	}
	for _, name := range append(s.schemes, s.features...) {
		if _, ok := ua.table[name]; ok {
			ua.set(name, true)
		}
	}
	return ua
}

// Features returns the names of the installed schemes and features,
// sorted.
func (ua *UserAgent) Features() []string {
	names := lo.Keys(ua.handlers)
	sort.Strings(names)
	return names
}

// Handler returns the installed handler of a scheme or feature.
func (ua *UserAgent) Handler(name string) (opener.Handler, bool) {
	h, ok := ua.handlers[name]
	return h, ok
}

// SetHandledSchemes sets the schemes to open. It fails, changing
// nothing, if a name is not a scheme of the table.
func (ua *UserAgent) SetHandledSchemes(schemes ...string) error {
	for _, scheme := range schemes {
		if !isScheme(scheme) {
			return errors.Newf("opener/useragent: not a scheme %q", scheme)
		}
		if _, ok := ua.table[scheme]; !ok {
			return errors.Newf("opener/useragent: unknown scheme %q", scheme)
		}
	}
	for _, name := range lo.Keys(ua.handlers) {
		if isScheme(name) && !lo.Contains(schemes, name) {
			ua.set(name, false)
		}
	}
	for _, scheme := range schemes {
		if _, ok := ua.handlers[scheme]; !ok {
			ua.set(scheme, true)
		}
	}
	return nil
}

// SetHandleRobots sets whether to obey robots.txt files.
func (ua *UserAgent) SetHandleRobots(handle bool) {
	ua.set(FeatureRobots, handle)
}

// SetHandleRedirect sets whether to follow redirects.
func (ua *UserAgent) SetHandleRedirect(handle bool) {
	ua.set(FeatureRedirect, handle)
}

// SetHandleRefresh sets whether to follow Refresh headers, the longest
// delay to follow, and whether to wait for the delay.
func (ua *UserAgent) SetHandleRefresh(handle bool, maxWait time.Duration, honorTime bool) {
	ua.params.RefreshMaxWait = maxWait
	ua.params.RefreshHonorTime = honorTime
	ua.set(FeatureRefresh, handle)
}

// SetHandleEquiv sets whether to treat HTML http-equiv meta tags as
// headers. It makes responses seekable.
func (ua *UserAgent) SetHandleEquiv(handle bool) {
	ua.set(FeatureEquiv, handle)
}

// SetHandleReferer sets whether to send Referer headers.
func (ua *UserAgent) SetHandleReferer(handle bool) {
	ua.set(FeatureReferer, handle)
}

// SetSeekableResponses sets whether to make every response seekable.
func (ua *UserAgent) SetSeekableResponses(handle bool) {
	ua.set(FeatureSeek, handle)
}

// SetCookieJar sets the cookie jar. A nil jar turns cookies off.
func (ua *UserAgent) SetCookieJar(jar handler.CookieJar) {
	ua.params.Jar = jar
	ua.set(FeatureCookies, jar != nil)
}

// SetProxies sets the proxy of each scheme, as for handler.NewProxy. A
// nil map turns proxying off.
func (ua *UserAgent) SetProxies(proxies map[string]string) {
	ua.params.Proxies = proxies
	ua.set(FeatureProxy, proxies != nil)
}

// AddPassword adds a credential for url and the URLs below it.
func (ua *UserAgent) AddPassword(url, user, password, realm string) {
	if ua.params.Passwords == nil {
		ua.SetPasswordManager(auth.NewManager())
	}
	ua.params.Passwords.AddPassword(realm, url, user, password)
}

// AddProxyPassword adds a credential for the proxy at hostport, or for
// every proxy if hostport is empty.
func (ua *UserAgent) AddProxyPassword(user, password, hostport, realm string) {
	if ua.params.ProxyPasswords == nil {
		ua.SetProxyPasswordManager(auth.NewProxyManager())
	}
	ua.params.ProxyPasswords.AddPassword(realm, hostport, user, password)
}

// SetPasswordManager sets the password manager of basic and digest
// authentication. A nil manager turns them off.
func (ua *UserAgent) SetPasswordManager(pm auth.PasswordManager) {
	ua.params.Passwords = pm
	ua.set(FeatureBasicAuth, pm != nil)
	ua.set(FeatureDigestAuth, pm != nil)
}

// SetProxyPasswordManager sets the password manager of proxy
// authentication. A nil manager turns it off.
func (ua *UserAgent) SetProxyPasswordManager(pm auth.PasswordManager) {
	ua.params.ProxyPasswords = pm
	ua.set(FeatureProxyBasicAuth, pm != nil)
	ua.set(FeatureProxyDigestAuth, pm != nil)
}

// SetDebugRedirects sets whether to log redirects.
func (ua *UserAgent) SetDebugRedirects(handle bool) {
	ua.set(FeatureDebugRedirects, handle)
}

// SetDebugResponses sets whether to log response bodies.
func (ua *UserAgent) SetDebugResponses(handle bool) {
	ua.set(FeatureDebugResponses, handle)
}

// AddHeaders adds default headers, sent with every http and https
// request which lacks a header of the same name. A default of the same
// name is replaced.
func (ua *UserAgent) AddHeaders(header http.Header) {
	for name, values := range header {
		ua.params.Header[http.CanonicalHeaderKey(name)] = append([]string(nil), values...)
	}
}

// Close closes the Director and forgets the installed handlers.
func (ua *UserAgent) Close() error {
	ua.handlers = make(map[string]opener.Handler)
	return ua.Director.Close()
}

// set replaces the handler of a feature, or removes it if handle is
// false.
func (ua *UserAgent) set(name string, handle bool) {
	if old, ok := ua.handlers[name]; ok {
		ua.Director.Remove(old)
		delete(ua.handlers, name)
	}
	if !handle {
		return
	}
	c, ok := ua.table[name]
	if !ok {
		panic(fmt.Sprintf("opener/useragent: no feature %q", name))
	}
	h := c(&ua.params)
	ua.Director.Add(h)
	ua.handlers[name] = h
}
