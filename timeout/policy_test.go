// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package timeout

import (
	"math"
	"testing"
	"time"

	"github.com/gogama/opener/request"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRequest(t *testing.T, url string) *request.Request {
	req, err := request.New("GET", url, nil)
	require.NoError(t, err)
	return req
}

func TestDefault(t *testing.T) {
	assert.Equal(t, 30*time.Second, DefaultPolicy.Timeout(newRequest(t, "http://example.com")))
	assert.Equal(t, 30*time.Second, DefaultPolicy.Timeout(newRequest(t, "ftp://example.com/file")))
}

func TestInfinite(t *testing.T) {
	assert.Equal(t, time.Duration(math.MaxInt64), Infinite.Timeout(newRequest(t, "http://example.com")))
}

func TestFixed(t *testing.T) {
	p := Fixed(33 * time.Hour)
	assert.Equal(t, 33*time.Hour, p.Timeout(newRequest(t, "https://example.com")))
	assert.Equal(t, 33*time.Hour, p.Timeout(&request.Request{}))
}

func TestByScheme(t *testing.T) {
	t.Run("nil default", func(t *testing.T) {
		p := ByScheme(nil, nil)
		assert.Equal(t, 30*time.Second, p.Timeout(newRequest(t, "http://example.com")))
	})
	t.Run("nil entry", func(t *testing.T) {
		assert.PanicsWithValue(t, "opener/timeout: nil policy for scheme ftp", func() {
			ByScheme(nil, map[string]Policy{"ftp": nil})
		})
	})
	t.Run("lookup", func(t *testing.T) {
		p := ByScheme(Fixed(10*time.Second), map[string]Policy{
			"FTP": Fixed(2 * time.Minute),
			"s3":  Infinite,
		})
		assert.Equal(t, 2*time.Minute, p.Timeout(newRequest(t, "ftp://example.com/file")))
		assert.Equal(t, 2*time.Minute, p.Timeout(newRequest(t, "FTP://example.com/file")))
		assert.Equal(t, time.Duration(math.MaxInt64), p.Timeout(newRequest(t, "s3://bucket/key")))
		assert.Equal(t, 10*time.Second, p.Timeout(newRequest(t, "http://example.com")))
	})
}
