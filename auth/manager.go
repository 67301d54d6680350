// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package auth

import (
	"net"
	"strings"

	"github.com/samber/lo"
)

// DefaultRealm is the realm of credentials that apply to any realm.
const DefaultRealm = ""

// A PasswordManager stores and finds credentials.
type PasswordManager interface {
	// AddPassword stores a credential for realm, applying to uri and
	// every URI below it. The uri may be a full URL or an authority
	// such as "example.com:8080".
	AddPassword(realm, uri, user, password string)
	// FindUserPassword returns the credential for realm that best
	// matches authuri, or ok=false if there is none.
	FindUserPassword(realm, authuri string) (user, password string, ok bool)
}

// A Manager is the default PasswordManager for origin servers. Its zero
// value is ready to use.
//
// FindUserPassword tries realm first and then DefaultRealm. Within a
// realm, the stored URI with the longest path which is a sub-URI of
// authuri wins, and among equally specific URIs the one added last
// wins. Default ports are significant only when a scheme is
// present: "http://example.com/" matches "http://example.com:80/".
//
// A Manager is not safe for concurrent use.
type Manager struct {
	byRealm map[string][]*credential
}

type credential struct {
	// reduced holds the stored URI reduced both with and without the
	// default port.
	reduced  [2]reducedURI
	user     string
	password string
	anyHost  bool
}

type reducedURI struct {
	authority string
	path      string
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{}
}

// AddPassword implements PasswordManager.
func (m *Manager) AddPassword(realm, uri, user, password string) {
	m.add(realm, &credential{
		reduced:  [2]reducedURI{reduceURI(uri, true), reduceURI(uri, false)},
		user:     user,
		password: password,
	})
}

func (m *Manager) add(realm string, c *credential) {
	if m.byRealm == nil {
		m.byRealm = make(map[string][]*credential)
	}
	m.byRealm[realm] = append(m.byRealm[realm], c)
}

// FindUserPassword implements PasswordManager.
func (m *Manager) FindUserPassword(realm, authuri string) (string, string, bool) {
	for _, r := range lo.Uniq([]string{realm, DefaultRealm}) {
		if c := m.find(r, authuri, false); c != nil {
			return c.user, c.password, true
		}
	}
	return "", "", false
}

func (m *Manager) find(realm, authuri string, anyHost bool) *credential {
	for i, defaultPort := range []bool{true, false} {
		test := reduceURI(authuri, defaultPort)
		matches := lo.Filter(m.byRealm[realm], func(c *credential, _ int) bool {
			if c.anyHost != anyHost {
				return false
			}
			if c.anyHost {
				return true
			}
			return isSubURI(c.reduced[i], test)
		})
		if len(matches) > 0 {
			return lo.MaxBy(matches, func(a, b *credential) bool {
				return len(a.reduced[i].path) >= len(b.reduced[i].path)
			})
		}
	}
	return nil
}

// A ProxyManager is a PasswordManager for proxies. Its zero value is
// ready to use.
//
// A credential added with an empty URI is a default that applies to
// every proxy. FindUserPassword prefers a credential for the specific
// proxy authority in either realm over a default credential, and
// within each of those tiers prefers an exact realm over DefaultRealm.
//
// A ProxyManager is not safe for concurrent use.
type ProxyManager struct {
	Manager
}

// NewProxyManager returns an empty ProxyManager.
func NewProxyManager() *ProxyManager {
	return &ProxyManager{}
}

// AddPassword implements PasswordManager. The uri is normally a proxy
// authority such as "proxy.example.com:3128", or empty for a default.
func (m *ProxyManager) AddPassword(realm, uri, user, password string) {
	if uri == "" {
		m.add(realm, &credential{user: user, password: password, anyHost: true})
		return
	}
	m.Manager.AddPassword(realm, uri, user, password)
}

// FindUserPassword implements PasswordManager.
func (m *ProxyManager) FindUserPassword(realm, authuri string) (string, string, bool) {
	for _, anyHost := range []bool{false, true} {
		for _, r := range lo.Uniq([]string{realm, DefaultRealm}) {
			if c := m.find(r, authuri, anyHost); c != nil {
				return c.user, c.password, true
			}
		}
	}
	return "", "", false
}

// reduceURI splits uri into an authority and a path. If uri has no
// scheme it is taken to be an authority with path "/". With defaultPort
// set, an authority without a port gets the default port of the scheme,
// if the scheme is known.
func reduceURI(uri string, defaultPort bool) reducedURI {
	var scheme, authority, path string
	if i := strings.Index(uri, "://"); i >= 0 {
		scheme = strings.ToLower(uri[:i])
		rest := uri[i+3:]
		if j := strings.IndexAny(rest, "/?#"); j >= 0 {
			authority, path = rest[:j], rest[j:]
			if k := strings.IndexAny(path, "?#"); k >= 0 {
				path = path[:k]
			}
		} else {
			authority = rest
		}
		if k := strings.LastIndex(authority, "@"); k >= 0 {
			authority = authority[k+1:]
		}
	} else {
		authority = uri
	}
	if path == "" {
		path = "/"
	}
	authority = strings.ToLower(authority)
	if defaultPort {
		if _, _, err := net.SplitHostPort(authority); err != nil {
			switch scheme {
			case "http":
				authority = net.JoinHostPort(authority, "80")
			case "https":
				authority = net.JoinHostPort(authority, "443")
			}
		}
	}
	return reducedURI{authority: authority, path: path}
}

// isSubURI reports whether test is base or lies below it.
func isSubURI(base, test reducedURI) bool {
	if base.authority != test.authority {
		return false
	}
	if base.path == test.path {
		return true
	}
	if !strings.HasPrefix(test.path, base.path) {
		return false
	}
	return strings.HasSuffix(base.path, "/") || test.path[len(base.path)] == '/'
}
