// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package transient classifies transport errors as transient or
// non-transient. The HTTP transport uses the category as a log field
// when a fetch fails, and callers may use it to decide whether to
// fetch a URL again.
package transient
