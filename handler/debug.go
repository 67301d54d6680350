// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package handler

import (
	"github.com/gogama/opener"
	"github.com/gogama/opener/request"
	"github.com/gogama/opener/response"
	"go.uber.org/zap"
)

// BodyLoggerOrder is the order key of BodyLogger, which runs late so it
// logs the body other response filters leave behind.
const BodyLoggerOrder = 900

// A RedirectLogger is a request filter which logs every http or https
// request made to follow a redirect or refresh.
type RedirectLogger struct {
	// Log receives the output. If nil, nothing is logged.
	Log *zap.Logger
}

// Capabilities implements opener.Handler.
func (h *RedirectLogger) Capabilities() []opener.Capability {
	return opener.RequestCap(httpSchemes...)
}

// ProcessRequest implements opener.RequestProcessor.
func (h *RedirectLogger) ProcessRequest(_ *opener.Director, req *request.Request) (*request.Request, error) {
	if req.Origin != nil {
		nopIfNil(h.Log).Info("redirecting",
			zap.String("url", req.URL.String()),
			zap.String("origin", req.Origin.URL.String()),
			zap.String("method", req.GetMethod()))
	}
	return req, nil
}

// A BodyLogger is a response filter which logs the status, headers and
// body of every http or https response. It makes the response seekable
// so the body can still be read afterward.
type BodyLogger struct {
	// Log receives the output. If nil, nothing is logged.
	Log *zap.Logger
}

// Capabilities implements opener.Handler.
func (h *BodyLogger) Capabilities() []opener.Capability {
	return opener.ResponseCap(httpSchemes...)
}

// Order implements opener.Orderer.
func (h *BodyLogger) Order() int {
	return BodyLoggerOrder
}

// ProcessResponse implements opener.ResponseProcessor.
func (h *BodyLogger) ProcessResponse(_ *opener.Director, req *request.Request, resp *response.Response) opener.Result {
	log := nopIfNil(h.Log)
	body, err := resp.Data()
	if err != nil {
		log.Info("response body unreadable", zap.String("url", req.URL.String()), zap.Error(err))
		return opener.Fail(req.URLError(err))
	}
	log.Info("response",
		zap.String("url", req.URL.String()),
		zap.Int("code", resp.StatusCode),
		zap.String("status", resp.Status),
		zap.Any("header", resp.Header),
		zap.ByteString("body", body))
	return opener.Continue(resp)
}
