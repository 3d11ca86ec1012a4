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
	"errors"
	"strconv"
	"strings"
)

// ConnectionType is the resolved framing intent of a message: whether the
// connection stays open for another request/response after this one.
type ConnectionType int

const (
	ConnectionKeepAlive ConnectionType = iota
	ConnectionClose
)

// BodyType is the resolved body-framing mechanism for a message.
type BodyType int

const (
	BodyTypeUnknown BodyType = iota
	BodyTypeRaw              // close-delimited: read/write until connection close
	BodyTypeContentLen
	BodyTypeChunked
)

// ErrHeadersMismatchConnectionType is returned when a response declares
// KeepAlive while the carried-over request connection type was Close.
var ErrHeadersMismatchConnectionType = errors.New("httpcodec: response Connection: keep-alive conflicts with request Connection: close")

// ErrHeadersMismatchBodyType is returned when body framing cannot be
// resolved under the applicable rules (e.g. Raw body on a KeepAlive
// response, or Chunked on HTTP/1.0).
var ErrHeadersMismatchBodyType = errors.New("httpcodec: invalid body framing for this message")

func explicitConnectionType(headers Headers) (ConnectionType, bool) {
	v, ok := headers.Get("Connection")
	if !ok {
		return 0, false
	}
	if strings.EqualFold(strings.TrimSpace(v), "close") {
		return ConnectionClose, true
	}
	if strings.EqualFold(strings.TrimSpace(v), "keep-alive") {
		return ConnectionKeepAlive, true
	}
	return 0, false
}

// ResolveConnectionType implements §4.6.2's connection resolution: an
// explicit header wins (but a response may not claim KeepAlive over a Close
// carry-over from the request); otherwise the carry-over applies; failing
// that, KeepAlive on HTTP/1.1, Close on HTTP/1.0.
//
// carryOver is the request's resolved connection type when resolving a
// response, and must be passed as (_, false) when resolving a request.
func ResolveConnectionType(headers Headers, version Version, carryOver ConnectionType, haveCarryOver bool, isResponse bool) (ConnectionType, error) {
	if explicit, ok := explicitConnectionType(headers); ok {
		if isResponse && explicit == ConnectionKeepAlive && haveCarryOver && carryOver == ConnectionClose {
			return 0, ErrHeadersMismatchConnectionType
		}
		return explicit, nil
	}
	if haveCarryOver {
		return carryOver, nil
	}
	if version.Minor == 1 {
		return ConnectionKeepAlive, nil
	}
	return ConnectionClose, nil
}

func explicitBodyType(headers Headers) (BodyType, int, error) {
	if te, ok := headers.Get("Transfer-Encoding"); ok && strings.EqualFold(strings.TrimSpace(te), "chunked") {
		return BodyTypeChunked, 0, nil
	}
	if cl, ok := headers.Get("Content-Length"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(cl))
		if err != nil || n < 0 {
			return 0, 0, ErrHeadersMismatchBodyType
		}
		return BodyTypeContentLen, n, nil
	}
	return BodyTypeUnknown, 0, nil
}

// ResolveBodyType implements §4.6.2's body resolution rules.
//
// isResponse distinguishes the request/response-specific defaulting rules;
// connType is the message's own resolved ConnectionType (used for the
// response defaulting rule); chunkedIfUnspecified enables the HTTP/1.1
// "default to chunked when nothing else is specified" behavior (used by a
// server choosing how to frame its own response; a client parsing what it
// received should pass false here and rely on Content-Length/Raw).
func ResolveBodyType(headers Headers, version Version, isResponse bool, connType ConnectionType, chunkedIfUnspecified bool) (BodyType, int, error) {
	bt, n, err := explicitBodyType(headers)
	if err != nil {
		return 0, 0, err
	}

	if bt == BodyTypeChunked && version.Minor == 0 {
		return 0, 0, ErrHeadersMismatchBodyType
	}

	if bt != BodyTypeUnknown {
		return bt, n, nil
	}

	http11 := version.Minor == 1

	if !isResponse {
		if chunkedIfUnspecified && http11 {
			return BodyTypeChunked, 0, nil
		}
		return BodyTypeContentLen, 0, nil
	}

	if connType == ConnectionClose {
		return BodyTypeRaw, 0, nil
	}
	if chunkedIfUnspecified && http11 {
		return BodyTypeChunked, 0, nil
	}
	return 0, 0, ErrHeadersMismatchBodyType
}
