// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gogama/opener"
	"github.com/gogama/opener/request"
	"github.com/gogama/opener/response"
)

// ErrNotLocal is wrapped in the error returned by File for a file URL
// naming a remote host.
var ErrNotLocal = errors.New("opener/transport: file not on local host")

// A File is the scheme opener for file URLs. It opens the named file
// on the local file system and reports it as a 200 response with
// Content-Type, Content-Length and Last-Modified headers. Its zero value
// is ready to use.
//
// The URL host must be empty or "localhost". Directories cannot be
// opened.
type File struct {
	// Root, if not empty, is prepended to every path, confining File to
	// one directory tree.
	Root string
}

// Capabilities implements opener.Handler.
func (t *File) Capabilities() []opener.Capability {
	return opener.OpenCap("file")
}

// Open implements opener.SchemeOpener.
func (t *File) Open(_ *opener.Director, req *request.Request) (*response.Response, error) {
	if host := req.URL.Hostname(); host != "" && !strings.EqualFold(host, "localhost") {
		return nil, req.URLError(errors.Wrapf(ErrNotLocal, "host %q", host))
	}
	p := req.URL.Path
	if p == "" {
		p = req.URL.Opaque
	}
	name := filepath.FromSlash(p)
	if t.Root != "" {
		name = filepath.Join(t.Root, filepath.FromSlash(path.Clean("/"+p)))
	}

	f, err := os.Open(name)
	if err != nil {
		return nil, req.URLError(err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, req.URLError(err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, req.URLError(errors.Newf("opener/transport: %s is a directory", p))
	}

	ctype := mime.TypeByExtension(path.Ext(p))
	if ctype == "" {
		ctype = "text/plain"
	}
	header := http.Header{
		"Content-Type":   {ctype},
		"Content-Length": {strconv.FormatInt(info.Size(), 10)},
		"Last-Modified":  {info.ModTime().UTC().Format(http.TimeFormat)},
	}
	return response.New(f, header, req.URL, http.StatusOK, http.StatusText(http.StatusOK)), nil
}
