// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package handler

import (
	"io"

	"github.com/gogama/opener/response"
	"go.uber.org/zap"
)

var httpSchemes = []string{"http", "https"}

// drainClose reads the rest of a response body that is being replaced
// and closes it, so the underlying connection can be reused.
func drainClose(resp *response.Response) {
	if resp == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp)
	_ = resp.Close()
}

func nopIfNil(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
