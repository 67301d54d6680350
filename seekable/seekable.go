// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package seekable

import (
	"io"

	"github.com/cockroachdb/errors"
)

const chunkSize = 32 * 1024

// ErrNegativeOffset is returned by Seek when the resulting offset
// would be before the start of the data.
var ErrNegativeOffset = errors.New("opener/seekable: negative position")

// ErrInvalidWhence is returned by Seek for an unknown whence value.
var ErrInvalidWhence = errors.New("opener/seekable: invalid whence")

// A Reader makes a forward-only io.Reader seekable by caching every
// byte it pulls from the source.
//
// Copies made with Copy share the source and the cache but each have
// their own read position. A Reader is not safe for concurrent use, and
// neither is a group of copies sharing one cache.
type Reader struct {
	c      *cache
	pos    int64
	closed bool
}

// cache is the state shared by every copy of a Reader. The buffer is
// append-only except through SetData.
type cache struct {
	src    io.Reader
	buf    []byte
	pulled int64
	eof    bool
	err    error
	refs   int
}

// New returns a Reader positioned at the start of r.
//
// If r is an io.Closer it is closed when the last copy of the returned
// Reader is closed.
func New(r io.Reader) *Reader {
	return &Reader{c: &cache{src: r, refs: 1}}
}

// Read reads up to len(p) bytes starting at the current position. Bytes
// which are not yet cached are pulled from the source, and no more
// than needed to satisfy the request are pulled.
//
// Like a file, Read returns a short count without error when the end of
// the source is reached part way, and 0, io.EOF once positioned at or
// beyond the end.
func (r *Reader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, io.EOF
	}
	n, err := r.readAt(p, r.pos)
	r.pos += int64(n)
	if n > 0 {
		return n, nil
	}
	return 0, err
}

// ReadAt reads len(p) bytes starting at offset off without changing the
// current position. It follows the io.ReaderAt contract.
func (r *Reader) ReadAt(p []byte, off int64) (int, error) {
	if r.closed {
		return 0, io.EOF
	}
	if off < 0 {
		return 0, ErrNegativeOffset
	}
	n, err := r.readAt(p, off)
	if n < len(p) && err == nil {
		err = io.EOF
	}
	return n, err
}

func (r *Reader) readAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	err := r.c.fill(off + int64(len(p)))
	size := int64(len(r.c.buf))
	if off >= size {
		if err == nil {
			err = io.EOF
		}
		return 0, err
	}
	return copy(p, r.c.buf[off:]), nil
}

// Seek sets the position for the next Read. Seeking relative to the end
// drains the whole source into the cache. Seeking beyond the end is
// allowed and pulls nothing until the next Read.
func (r *Reader) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = r.pos + offset
	case io.SeekEnd:
		if !r.closed {
			if err := r.c.drain(); err != nil {
				return r.pos, err
			}
		}
		abs = int64(len(r.c.buf)) + offset
	default:
		return r.pos, ErrInvalidWhence
	}
	if abs < 0 {
		return r.pos, ErrNegativeOffset
	}
	r.pos = abs
	return abs, nil
}

// Copy returns a new Reader sharing r's source and cache, positioned
// where r is currently positioned. Reads through either one grow the
// shared cache, and neither affects the other's position.
//
// A copy of a closed Reader is itself closed.
func (r *Reader) Copy() *Reader {
	r2 := &Reader{c: r.c, pos: r.pos, closed: r.closed}
	if !r.closed {
		r.c.refs++
	}
	return r2
}

// Close closes this copy of the Reader. Subsequent reads through it
// return io.EOF. Once every copy sharing the cache is closed the source
// is closed, if it is an io.Closer, and the cache is released.
//
// Close is idempotent.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.c.refs--
	if r.c.refs > 0 {
		return nil
	}
	return r.c.release()
}

// Bytes returns the whole content of the source, draining it into the
// cache first. The position is unchanged. The returned slice aliases
// the cache and must not be modified.
func (r *Reader) Bytes() ([]byte, error) {
	if r.closed {
		return nil, nil
	}
	if err := r.c.drain(); err != nil {
		return nil, err
	}
	return r.c.buf, nil
}

// SetData replaces the content seen by every copy sharing the cache
// with data, which is considered to be the complete content. The source
// is closed and this copy is repositioned to the start.
func (r *Reader) SetData(data []byte) error {
	if r.closed {
		return errors.New("opener/seekable: SetData on closed reader")
	}
	err := r.c.closeSource()
	r.c.buf = append([]byte(nil), data...)
	r.c.pulled = int64(len(data))
	r.c.eof = true
	r.c.err = nil
	r.pos = 0
	return err
}

// Len returns the number of bytes currently cached.
func (r *Reader) Len() int64 {
	return int64(len(r.c.buf))
}

// Pulled returns the number of bytes taken from the source into the
// cache. It always equals Len.
func (r *Reader) Pulled() int64 {
	return r.c.pulled
}

// Pos returns the current position.
func (r *Reader) Pos() int64 {
	return r.pos
}

// Closed reports whether this copy has been closed.
func (r *Reader) Closed() bool {
	return r.closed
}

// fill pulls from the source until the cache holds at least end bytes
// or the source is exhausted.
func (c *cache) fill(end int64) error {
	for int64(len(c.buf)) < end && !c.eof {
		if c.err != nil {
			return c.err
		}
		need := end - int64(len(c.buf))
		if need > chunkSize {
			need = chunkSize
		}
		start := len(c.buf)
		c.buf = append(c.buf, make([]byte, need)...)
		n, err := io.ReadFull(c.src, c.buf[start:])
		c.buf = c.buf[:start+n]
		c.pulled += int64(n)
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			c.eof = true
		} else if err != nil {
			c.err = err
			return err
		}
	}
	return nil
}

func (c *cache) drain() error {
	if c.eof {
		return nil
	}
	if c.err != nil {
		return c.err
	}
	b, err := io.ReadAll(c.src)
	c.buf = append(c.buf, b...)
	c.pulled += int64(len(b))
	if err != nil {
		c.err = err
		return err
	}
	c.eof = true
	return nil
}

func (c *cache) closeSource() error {
	src := c.src
	c.src = eofReader{}
	if cl, ok := src.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}

func (c *cache) release() error {
	err := c.closeSource()
	c.buf = nil
	c.pulled = 0
	c.eof = true
	return err
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) {
	return 0, io.EOF
}
