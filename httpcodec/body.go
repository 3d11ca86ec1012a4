// Copyright 2019 Jigsaw Operations LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package httpcodec

import (
	"bufio"
	"errors"
	"io"
	"strconv"
	"strings"
)

var (
	// ErrInvalidBody is returned for malformed chunk framing.
	ErrInvalidBody = errors.New("httpcodec: invalid body framing")
	// ErrIncompleteBody is returned when a body ends before its declared
	// length or before chunked framing's terminator.
	ErrIncompleteBody = errors.New("httpcodec: incomplete body")
)

// Body is a pull-style HTTP body reader. Read behaves like io.Reader;
// IsComplete reports whether the body has been fully consumed.
type Body interface {
	io.Reader
	IsComplete() bool
}

// closeBody reads until the underlying reader reaches EOF.
type closeBody struct {
	r   *bufio.Reader
	eof bool
}

// NewCloseBody wraps r as a Body that reads until EOF.
func NewCloseBody(r *bufio.Reader) Body { return &closeBody{r: r} }

func (b *closeBody) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	if errors.Is(err, io.EOF) {
		b.eof = true
	}
	return n, err
}

func (b *closeBody) IsComplete() bool { return b.eof }

// contentLenBody reads exactly N bytes.
type contentLenBody struct {
	r    *bufio.Reader
	n    int
	read int
}

// NewContentLenBody wraps r as a Body reading exactly n bytes.
func NewContentLenBody(r *bufio.Reader, n int) Body { return &contentLenBody{r: r, n: n} }

func (b *contentLenBody) Read(p []byte) (int, error) {
	remaining := b.n - b.read
	if remaining <= 0 {
		return 0, io.EOF
	}
	if len(p) > remaining {
		p = p[:remaining]
	}
	n, err := b.r.Read(p)
	b.read += n
	if b.read == b.n && err == nil {
		err = io.EOF
	}
	if errors.Is(err, io.EOF) && b.read < b.n {
		err = ErrIncompleteBody
	}
	return n, err
}

func (b *contentLenBody) IsComplete() bool { return b.read == b.n }

// chunkedBody is a pull parser for RFC 7230 §4.1 chunked transfer coding.
type chunkedBody struct {
	r         *bufio.Reader
	remaining int
	done      bool
	started   bool
}

// NewChunkedBody wraps r as a Body that decodes chunked framing.
func NewChunkedBody(r *bufio.Reader) Body { return &chunkedBody{r: r} }

func (b *chunkedBody) readChunkHeader() error {
	line, err := readLine(b.r)
	if err != nil {
		return ErrIncompleteBody
	}
	sizeStr, _, _ := strings.Cut(line, ";") // discard chunk extension
	size, err := strconv.ParseInt(strings.TrimSpace(sizeStr), 16, 64)
	if err != nil || size < 0 {
		return ErrInvalidBody
	}
	b.remaining = int(size)
	if size == 0 {
		for {
			trailer, err := readLine(b.r)
			if err != nil {
				return ErrIncompleteBody
			}
			if trailer == "" {
				break
			}
		}
		b.done = true
	}
	return nil
}

func (b *chunkedBody) Read(p []byte) (int, error) {
	if b.done {
		return 0, io.EOF
	}
	if !b.started || b.remaining == 0 {
		if b.started {
			// Consume the CRLF that follows the previous chunk's data.
			if _, err := readLine(b.r); err != nil {
				return 0, ErrIncompleteBody
			}
		}
		b.started = true
		if err := b.readChunkHeader(); err != nil {
			return 0, err
		}
		if b.done {
			return 0, io.EOF
		}
	}

	if len(p) > b.remaining {
		p = p[:b.remaining]
	}
	n, err := io.ReadFull(b.r, p)
	if err != nil {
		return n, ErrIncompleteBody
	}
	b.remaining -= n
	return n, nil
}

func (b *chunkedBody) IsComplete() bool { return b.done }
