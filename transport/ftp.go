// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"context"
	"io"
	"mime"
	"net"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gogama/opener"
	"github.com/gogama/opener/request"
	"github.com/gogama/opener/response"
	"github.com/gogama/opener/timeout"
	"github.com/jlaffaye/ftp"
	"go.uber.org/zap"
)

const (
	ftpDefaultPort     = "21"
	ftpAnonymousUser   = "anonymous"
	ftpAnonymousPasswd = "anonymous@"
)

// An FTPConn is the part of an FTP control connection used by FTP.
// DialFTP returns one backed by a github.com/jlaffaye/ftp connection.
type FTPConn interface {
	Login(user, password string) error
	Type(transferType ftp.TransferType) error
	FileSize(path string) (int64, error)
	// Retr retrieves a file. The data connection stays open until the
	// returned reader is closed.
	Retr(path string) (io.ReadCloser, error)
	NameList(path string) ([]string, error)
	Quit() error
}

// An FTPDialer opens an FTP control connection to addr, a host:port
// pair. The dial should be abandoned if ctx is done.
type FTPDialer func(ctx context.Context, addr string) (FTPConn, error)

// DialFTP is the default FTPDialer. It dials with github.com/jlaffaye/ftp.
func DialFTP(ctx context.Context, addr string) (FTPConn, error) {
	c, err := ftp.Dial(addr, ftp.DialWithContext(ctx))
	if err != nil {
		return nil, err
	}
	return serverConn{c}, nil
}

type serverConn struct {
	*ftp.ServerConn
}

func (c serverConn) Retr(path string) (io.ReadCloser, error) {
	r, err := c.ServerConn.Retr(path)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// An FTP is the scheme opener for ftp URLs. Its zero value is ready to
// use.
//
// Each fetch uses its own control connection, which is closed with QUIT
// when the response body is closed. The user name and password are
// taken from the URL, defaulting to an anonymous login. A path ending in
// "/" is listed rather than retrieved, giving one name per line. A
// ";type=a" suffix on the path selects an ASCII transfer.
//
// Successful fetches are reported as 200 responses. The Content-Length
// header is set when the server reports the file size.
type FTP struct {
	// Dial opens control connections. If nil, DialFTP is used.
	Dial FTPDialer
	// TimeoutPolicy bounds the dial and login. If nil,
	// timeout.DefaultPolicy is used.
	TimeoutPolicy timeout.Policy
	// Log receives debug output. If nil, nothing is logged.
	Log *zap.Logger
}

// Capabilities implements opener.Handler.
func (t *FTP) Capabilities() []opener.Capability {
	return opener.OpenCap("ftp")
}

// Open implements opener.SchemeOpener.
func (t *FTP) Open(_ *opener.Director, req *request.Request) (*response.Response, error) {
	u := req.URL
	host := u.Hostname()
	if host == "" {
		return nil, req.URLError(errors.New("opener/transport: ftp error: no host given"))
	}
	port := u.Port()
	if port == "" {
		port = ftpDefaultPort
	}
	user, passwd := ftpAnonymousUser, ftpAnonymousPasswd
	if u.User != nil {
		user = u.User.Username()
		passwd, _ = u.User.Password()
	}
	file, transferType := splitType(strings.TrimPrefix(u.Path, "/"))

	policy := t.TimeoutPolicy
	if policy == nil {
		policy = timeout.DefaultPolicy
	}
	ctx, cancel := context.WithTimeout(req.Context(), policy.Timeout(req))
	defer cancel()

	dial := t.Dial
	if dial == nil {
		dial = DialFTP
	}
	conn, err := dial(ctx, net.JoinHostPort(host, port))
	if err != nil {
		return nil, req.URLError(errors.Wrap(err, "ftp error"))
	}
	body, header, err := t.fetch(conn, user, passwd, file, transferType)
	if err != nil {
		_ = conn.Quit()
		return nil, req.URLError(errors.Wrap(err, "ftp error"))
	}
	return response.New(body, header, u, http.StatusOK, http.StatusText(http.StatusOK)), nil
}

func (t *FTP) fetch(conn FTPConn, user, passwd, file string, transferType ftp.TransferType) (io.ReadCloser, http.Header, error) {
	if err := conn.Login(user, passwd); err != nil {
		return nil, nil, err
	}
	header := make(http.Header)

	if file == "" || strings.HasSuffix(file, "/") {
		names, err := conn.NameList(file)
		if err != nil {
			return nil, nil, err
		}
		listing := strings.Join(names, "\r\n")
		if listing != "" {
			listing += "\r\n"
		}
		header.Set("Content-Type", "text/plain")
		header.Set("Content-Length", strconv.Itoa(len(listing)))
		return &ftpBody{ReadCloser: io.NopCloser(strings.NewReader(listing)), conn: conn}, header, nil
	}

	if transferType == ftp.TransferTypeASCII {
		if err := conn.Type(transferType); err != nil {
			return nil, nil, err
		}
	}
	if size, err := conn.FileSize(file); err == nil && size >= 0 {
		header.Set("Content-Length", strconv.FormatInt(size, 10))
	} else if err != nil {
		t.logger().Debug("ftp size unavailable", zap.String("file", file), zap.Error(err))
	}
	if ctype := mime.TypeByExtension(path.Ext(file)); ctype != "" {
		header.Set("Content-Type", ctype)
	}
	r, err := conn.Retr(file)
	if err != nil {
		return nil, nil, err
	}
	return &ftpBody{ReadCloser: r, conn: conn}, header, nil
}

func (t *FTP) logger() *zap.Logger {
	if t.Log == nil {
		return zap.NewNop()
	}
	return t.Log
}

// splitType removes a ";type=X" suffix from an ftp path.
func splitType(p string) (string, ftp.TransferType) {
	i := strings.LastIndex(p, ";type=")
	if i < 0 {
		return p, ftp.TransferTypeBinary
	}
	if strings.EqualFold(p[i+len(";type="):], "a") {
		return p[:i], ftp.TransferTypeASCII
	}
	return p[:i], ftp.TransferTypeBinary
}

// ftpBody quits the control connection when the data is closed.
type ftpBody struct {
	io.ReadCloser
	conn FTPConn
}

func (b *ftpBody) Close() error {
	err := b.ReadCloser.Close()
	return errors.CombineErrors(err, b.conn.Quit())
}
