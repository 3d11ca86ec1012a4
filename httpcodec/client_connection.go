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
)

// ErrConnectionStateMismatch is returned when a ClientConnection method is
// called out of order (e.g. ReceiveResponse before InitiateRequest).
var ErrConnectionStateMismatch = errors.New("httpcodec: method called in the wrong connection state")

// clientRequestState holds what's needed to resolve the response once it
// arrives: the request's own resolved connection type is the carry-over for
// ResolveConnectionType.
type clientRequestState struct {
	connType ConnectionType
}

// clientResponseState holds what Complete needs to finish the exchange.
type clientResponseState struct {
	connType ConnectionType
	body     Body
}

// ClientConnection drives one HTTP/1.x connection from the client side: one
// request/response exchange at a time, with state tracked across calls
// instead of a typestate-per-call API, matching how this codec is used in
// practice (a caller holding a single ClientConnection across a request's
// lifetime).
type ClientConnection struct {
	conn io.ReadWriteCloser
	r    *bufio.Reader
	w    *bufio.Writer

	maxHeaders int
	state      any // nil (unbound), *clientRequestState, or *clientResponseState
}

// NewClientConnection wraps conn for client-side request/response framing.
func NewClientConnection(conn io.ReadWriteCloser, maxHeaders int) *ClientConnection {
	return &ClientConnection{
		conn:       conn,
		r:          bufio.NewReader(conn),
		w:          bufio.NewWriter(conn),
		maxHeaders: maxHeaders,
	}
}

// InitiateRequest writes rh's request line and headers, filling in
// Content-Length/Transfer-Encoding/Connection for bodyType if rh.Headers
// doesn't already declare them explicitly, and returns a SendBody for the
// request body.
func (c *ClientConnection) InitiateRequest(rh RequestHeaders, bodyType BodyType, n int) (SendBody, error) {
	if c.state != nil {
		return nil, ErrConnectionStateMismatch
	}

	connType, err := ResolveConnectionType(rh.Headers, rh.Version, 0, false, false)
	if err != nil {
		return nil, err
	}
	if _, ok := rh.Headers.Get("Connection"); !ok {
		if connType == ConnectionClose {
			rh.Headers.Set("Connection", "close")
		} else if rh.Version.Minor == 1 {
			rh.Headers.Set("Connection", "keep-alive")
		}
	}

	_, hasTE := rh.Headers.Get("Transfer-Encoding")
	_, hasCL := rh.Headers.Get("Content-Length")
	if !hasTE && !hasCL {
		switch bodyType {
		case BodyTypeChunked:
			rh.Headers.Set("Transfer-Encoding", "chunked")
		case BodyTypeContentLen:
			rh.Headers.Set("Content-Length", strconv.Itoa(n))
		}
	}

	if err := WriteRequestLine(c.w, rh); err != nil {
		return nil, err
	}
	if err := c.w.Flush(); err != nil {
		return nil, err
	}

	body, err := NewSendBody(c.w, bodyType, n)
	if err != nil {
		return nil, err
	}
	c.state = &clientRequestState{connType: connType}
	return body, nil
}

// ReceiveResponse reads the response line and headers (the preceding
// request's SendBody must already have been Finish()ed) and returns a Body
// for the response payload.
func (c *ClientConnection) ReceiveResponse() (ResponseHeaders, Body, error) {
	reqState, ok := c.state.(*clientRequestState)
	if !ok {
		return ResponseHeaders{}, nil, ErrConnectionStateMismatch
	}

	rh, err := ReceiveResponseHeaders(c.r, c.maxHeaders)
	if err != nil {
		return ResponseHeaders{}, nil, err
	}

	connType, err := ResolveConnectionType(rh.Headers, rh.Version, reqState.connType, true, true)
	if err != nil {
		return ResponseHeaders{}, nil, err
	}
	bodyType, n, err := ResolveBodyType(rh.Headers, rh.Version, true, connType, false)
	if err != nil {
		return ResponseHeaders{}, nil, err
	}
	body, err := NewBody(c.r, bodyType, n)
	if err != nil {
		return ResponseHeaders{}, nil, err
	}

	c.state = &clientResponseState{connType: connType, body: body}
	return rh, body, nil
}

// Complete finishes the current exchange: if the response was Close-framed,
// the underlying connection is closed and subsequent InitiateRequest calls
// fail; otherwise the connection is reset to accept another request.
func (c *ClientConnection) Complete() error {
	respState, ok := c.state.(*clientResponseState)
	if !ok {
		return ErrConnectionStateMismatch
	}
	if !respState.body.IsComplete() {
		return ErrIncompleteBody
	}
	if respState.connType == ConnectionClose {
		c.state = respState // stays bound; connection is spent
		return c.conn.Close()
	}
	c.state = nil
	return nil
}
