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
	"io"
	"strconv"
)

// ServerConnection drives one HTTP/1.x connection from the server side. The
// request line and headers are read synchronously in NewServerConnection,
// since a server always has a request to read before it can do anything
// else.
type ServerConnection struct {
	conn io.ReadWriteCloser
	r    *bufio.Reader
	w    *bufio.Writer

	Request     RequestHeaders
	RequestBody Body

	reqConnType ConnectionType
	responded   bool
}

// NewServerConnection wraps conn, synchronously reading the request line,
// headers, and setting up the request Body.
func NewServerConnection(conn io.ReadWriteCloser, maxHeaders int) (*ServerConnection, error) {
	return newServerConnection(conn, bufio.NewReader(conn), bufio.NewWriter(conn), maxHeaders)
}

// newServerConnection is NewServerConnection over a caller-owned bufio
// pair. Server's keep-alive loop reuses one pair across requests so bytes
// the reader buffered past one request's body aren't lost to the next.
func newServerConnection(conn io.ReadWriteCloser, r *bufio.Reader, w *bufio.Writer, maxHeaders int) (*ServerConnection, error) {
	sc := &ServerConnection{
		conn: conn,
		r:    r,
		w:    w,
	}

	rh, err := ReceiveRequestHeaders(sc.r, maxHeaders)
	if err != nil {
		return nil, err
	}
	sc.Request = rh

	connType, err := ResolveConnectionType(rh.Headers, rh.Version, 0, false, false)
	if err != nil {
		return nil, err
	}
	sc.reqConnType = connType

	bodyType, n, err := ResolveBodyType(rh.Headers, rh.Version, false, connType, false)
	if err != nil {
		return nil, err
	}
	sc.RequestBody, err = NewBody(sc.r, bodyType, n)
	if err != nil {
		return nil, err
	}

	return sc, nil
}

// InitiateResponse writes rh's status line, resolving the response's
// Connection and body framing headers the way a server must: HTTP/1.0
// cannot carry chunked framing (falls back to the connection type's
// natural default, Raw-on-Close), while HTTP/1.1 defaults an otherwise
// unspecified body to chunked so the connection can stay open.
//
// Pass BodyTypeUnknown for bodyType to let the connection choose the
// default for rh.Version and the resolved Connection type.
func (sc *ServerConnection) InitiateResponse(rh ResponseHeaders, bodyType BodyType, n int) (SendBody, error) {
	if sc.responded {
		return nil, ErrConnectionStateMismatch
	}
	sc.responded = true

	// Drain whatever the handler left of the request body so the response
	// isn't interleaved with unread request bytes and, on keep-alive, the
	// next request starts at a frame boundary.
	if sc.RequestBody != nil && !sc.RequestBody.IsComplete() {
		if _, err := io.Copy(io.Discard, sc.RequestBody); err != nil {
			return nil, err
		}
	}

	connType, err := ResolveConnectionType(rh.Headers, rh.Version, sc.reqConnType, true, true)
	if err != nil {
		return nil, err
	}
	if _, ok := rh.Headers.Get("Connection"); !ok {
		if connType == ConnectionClose {
			rh.Headers.Set("Connection", "close")
		} else {
			rh.Headers.Set("Connection", "keep-alive")
		}
	}

	if bodyType == BodyTypeUnknown {
		if _, _, err := explicitBodyType(rh.Headers); err != nil {
			return nil, err
		}
		bodyType, n, err = ResolveBodyType(rh.Headers, rh.Version, true, connType, true)
		if err != nil {
			return nil, err
		}
	}
	if _, hasTE := rh.Headers.Get("Transfer-Encoding"); !hasTE {
		if _, hasCL := rh.Headers.Get("Content-Length"); !hasCL {
			switch bodyType {
			case BodyTypeChunked:
				rh.Headers.Set("Transfer-Encoding", "chunked")
			case BodyTypeContentLen:
				rh.Headers.Set("Content-Length", strconv.Itoa(n))
			}
		}
	}

	if err := WriteResponseLine(sc.w, rh); err != nil {
		return nil, err
	}
	if err := sc.w.Flush(); err != nil {
		return nil, err
	}

	if connType == ConnectionClose {
		sc.reqConnType = ConnectionClose // remembered for Complete
	}
	return NewSendBody(sc.w, bodyType, n)
}

// NeedsClose reports whether the exchange resolved to Close framing, so a
// serving loop knows not to read another request from this connection.
func (sc *ServerConnection) NeedsClose() bool {
	return sc.reqConnType == ConnectionClose
}

// Complete finishes the exchange, sending a default 200 OK with an empty
// body if InitiateResponse was never called, and closes the underlying
// connection if the response resolved to Close framing.
func (sc *ServerConnection) Complete() error {
	if !sc.responded {
		body, err := sc.InitiateResponse(ResponseHeaders{
			Version: sc.Request.Version,
			Code:    200,
			Reason:  "OK",
		}, BodyTypeContentLen, 0)
		if err != nil {
			return err
		}
		if err := body.Finish(); err != nil {
			return err
		}
	}
	if sc.reqConnType == ConnectionClose {
		return sc.conn.Close()
	}
	return nil
}

// CompleteErr sends a 500 Internal Server Error with msg as a plain-text
// body and always closes the connection, for a handler that failed in a
// way that leaves the connection's framing state unknown.
func (sc *ServerConnection) CompleteErr(msg string) error {
	if sc.responded {
		return sc.conn.Close()
	}

	headers := Headers{
		{Name: "Connection", Value: "close"},
		{Name: "Content-Type", Value: "text/plain"},
	}
	body, err := sc.InitiateResponse(ResponseHeaders{
		Version: sc.Request.Version,
		Code:    500,
		Reason:  "Internal Server Error",
		Headers: headers,
	}, BodyTypeContentLen, len(msg))
	if err != nil {
		sc.conn.Close()
		return err
	}
	if _, err := body.Write([]byte(msg)); err != nil {
		sc.conn.Close()
		return err
	}
	if err := body.Finish(); err != nil {
		sc.conn.Close()
		return err
	}
	return sc.conn.Close()
}
