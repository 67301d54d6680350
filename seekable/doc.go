// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package seekable turns a forward-only byte stream, such as a network
// response body, into a random-access reader by caching what it reads.
//
// The cache is shared by reference between a Reader and all of its
// copies, while each copy keeps its own read position. Bytes are pulled
// from the source lazily, only when a read needs them, except that
// seeking relative to the end drains the whole source.
package seekable
