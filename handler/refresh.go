// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package handler

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gogama/opener"
	"github.com/gogama/opener/request"
	"github.com/gogama/opener/response"
	"go.uber.org/zap"
)

// RefreshOrder is the order key of Refresh.
const RefreshOrder = 1000

// Unlimited is a Refresh.MaxWait which allows every refresh to be
// followed, however long it asks to wait.
const Unlimited = time.Duration(math.MaxInt64)

// A Refresh is a response filter which follows the Refresh header of a
// 200 response. Its zero value follows only immediate refreshes.
//
// The header has the form "<seconds>; url=<target>", where the target
// may be quoted, or just "<seconds>", which refreshes the same URL. A
// header of any other form is ignored. A refresh is followed by
// dispatching opener.StatusRefresh with a Location header holding the
// target, so Redirect must be present to act on it.
//
// Add Equiv before Refresh to follow <meta http-equiv="refresh"> tags.
type Refresh struct {
	// MaxWait is the longest refresh delay which is followed. Refreshes
	// asking for a longer wait are ignored. Use Unlimited to follow
	// every refresh.
	MaxWait time.Duration
	// HonorTime makes the handler wait for the requested delay before
	// following a refresh. The wait ends early, with an error, if the
	// request context is done.
	HonorTime bool
	// Clock is used to wait. If nil, the system clock is used.
	Clock clock.Clock
	// Log receives debug output. If nil, nothing is logged.
	Log *zap.Logger
}

// Capabilities implements opener.Handler.
func (h *Refresh) Capabilities() []opener.Capability {
	return opener.ResponseCap(httpSchemes...)
}

// Order implements opener.Orderer.
func (h *Refresh) Order() int {
	return RefreshOrder
}

// ProcessResponse implements opener.ResponseProcessor.
func (h *Refresh) ProcessResponse(_ *opener.Director, req *request.Request, resp *response.Response) opener.Result {
	if resp.StatusCode != http.StatusOK {
		return opener.Continue(resp)
	}
	refresh := resp.Header.Get("Refresh")
	if refresh == "" {
		return opener.Continue(resp)
	}
	log := nopIfNil(h.Log)

	pause, target, ok := parseRefresh(refresh)
	if !ok {
		log.Debug("bad Refresh header", zap.String("refresh", refresh))
		return opener.Continue(resp)
	}
	if target == "" {
		target = req.URL.String()
		if resp.URL != nil {
			target = resp.URL.String()
		}
	}
	if pause > h.MaxWait {
		log.Debug("Refresh header ignored", zap.String("refresh", refresh), zap.Duration("pause", pause))
		return opener.Continue(resp)
	}

	if pause > time.Millisecond && h.HonorTime {
		c := h.Clock
		if c == nil {
			c = clock.New()
		}
		timer := c.Timer(pause)
		select {
		case <-timer.C:
		case <-req.Context().Done():
			timer.Stop()
			_ = resp.Close()
			return opener.Fail(req.URLError(req.Context().Err()))
		}
	}

	header := resp.Header.Clone()
	header.Set("Location", target)
	return opener.Dispatch(opener.StatusRefresh, resp.Status, header)
}

// parseRefresh parses a Refresh header value into a pause and a cleaned
// target, which is empty if the header names none.
func parseRefresh(refresh string) (time.Duration, string, bool) {
	secs, spec, hasTarget := strings.Cut(refresh, ";")
	f, err := strconv.ParseFloat(strings.TrimSpace(secs), 64)
	if err != nil || f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, "", false
	}
	pause := Unlimited
	if f < Unlimited.Seconds() {
		pause = time.Duration(f * float64(time.Second))
	}
	if !hasTarget {
		return pause, "", true
	}
	key, target, ok := strings.Cut(spec, "=")
	if !ok || !strings.EqualFold(strings.TrimSpace(key), "url") {
		return 0, "", false
	}
	target = strings.TrimSpace(target)
	if len(target) >= 2 && (target[0] == '"' || target[0] == '\'') && target[len(target)-1] == target[0] {
		target = target[1 : len(target)-1]
	}
	return pause, quoteURL(target), true
}
