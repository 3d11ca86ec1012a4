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
	"strings"

	"github.com/Jigsaw-Code/edge-net/ws"
)

// ErrNotWebSocketUpgrade is returned when a message expected to carry a
// WebSocket upgrade is missing the required headers.
var ErrNotWebSocketUpgrade = errors.New("httpcodec: not a websocket upgrade")

// AddWebSocketUpgradeRequestHeaders adds the Upgrade/Connection/Sec-WebSocket-*
// headers a client must send to request a WebSocket upgrade, returning the
// Sec-WebSocket-Key nonce it generated (needed to validate the server's
// response).
func AddWebSocketUpgradeRequestHeaders(headers *Headers) string {
	nonce := ws.NewNonce()
	headers.Set("Upgrade", "websocket")
	headers.Set("Connection", "Upgrade")
	headers.Set("Sec-WebSocket-Key", nonce)
	headers.Set("Sec-WebSocket-Version", "13")
	return nonce
}

func hasUpgradeHeaders(headers Headers) bool {
	upgrade, ok := headers.Get("Upgrade")
	if !ok || !strings.EqualFold(strings.TrimSpace(upgrade), "websocket") {
		return false
	}
	conn, ok := headers.Get("Connection")
	if !ok || !strings.Contains(strings.ToLower(conn), "upgrade") {
		return false
	}
	return true
}

// IsWebSocketUpgradeRequest reports whether rh is a well-formed client
// request to upgrade the connection to WebSocket.
func IsWebSocketUpgradeRequest(rh RequestHeaders) bool {
	if !hasUpgradeHeaders(rh.Headers) {
		return false
	}
	_, ok := rh.Headers.Get("Sec-WebSocket-Key")
	return ok
}

// WebSocketAcceptResponseHeaders builds the 101 Switching Protocols response
// headers a server sends to accept the upgrade requested by rh.
func WebSocketAcceptResponseHeaders(rh RequestHeaders) (ResponseHeaders, error) {
	if !IsWebSocketUpgradeRequest(rh) {
		return ResponseHeaders{}, ErrNotWebSocketUpgrade
	}
	key, _ := rh.Headers.Get("Sec-WebSocket-Key")

	var headers Headers
	headers.Set("Upgrade", "websocket")
	headers.Set("Connection", "Upgrade")
	headers.Set("Sec-WebSocket-Accept", ws.AcceptKey(key))

	return ResponseHeaders{
		Version: rh.Version,
		Code:    101,
		Reason:  "Switching Protocols",
		Headers: headers,
	}, nil
}

// ValidateWebSocketUpgradeResponse checks a server's 101 response against
// the nonce returned by AddWebSocketUpgradeRequestHeaders.
func ValidateWebSocketUpgradeResponse(rh ResponseHeaders, nonce string) error {
	if rh.Code != 101 || !hasUpgradeHeaders(rh.Headers) {
		return ErrNotWebSocketUpgrade
	}
	accept, ok := rh.Headers.Get("Sec-WebSocket-Accept")
	if !ok || accept != ws.AcceptKey(nonce) {
		return ErrNotWebSocketUpgrade
	}
	return nil
}
