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

package httpcodec_test

import (
	"bufio"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Jigsaw-Code/edge-net/httpcodec"
	"github.com/Jigsaw-Code/edge-net/ws"
)

// TestWebSocketEchoOverConnection upgrades an HTTP/1.1 connection and then
// speaks frames over it: the client sends masked Binary frames, the server
// echoes each one unmasked, and the exchange ends with a Close frame.
func TestWebSocketEchoOverConnection(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	serverDone := make(chan error, 1)
	go func() {
		defer serverConn.Close()
		serverDone <- func() error {
			r := bufio.NewReader(serverConn)
			w := bufio.NewWriter(serverConn)

			rh, err := httpcodec.ReceiveRequestHeaders(r, 32)
			if err != nil {
				return err
			}
			if !httpcodec.IsWebSocketUpgradeRequest(rh) {
				return httpcodec.ErrNotWebSocketUpgrade
			}
			resp, err := httpcodec.WebSocketAcceptResponseHeaders(rh)
			if err != nil {
				return err
			}
			if err := httpcodec.WriteResponseLine(w, resp); err != nil {
				return err
			}
			if err := w.Flush(); err != nil {
				return err
			}

			buf := make([]byte, 128)
			for {
				h, payload, err := ws.Recv(r, buf)
				if err != nil {
					return err
				}
				if h.Type == ws.FrameTypeClose {
					return ws.Send(serverConn, ws.FrameHeader{FIN: true, Type: ws.FrameTypeClose}, nil)
				}
				echo := ws.FrameHeader{FIN: h.FIN, Type: h.Type}
				if err := ws.Send(serverConn, echo, payload); err != nil {
					return err
				}
			}
		}()
	}()

	var req httpcodec.RequestHeaders
	req.Version = httpcodec.Version{Minor: 1}
	req.Method = httpcodec.MethodGet
	req.Path = "/"
	nonce := httpcodec.AddWebSocketUpgradeRequestHeaders(&req.Headers)

	r := bufio.NewReader(clientConn)
	w := bufio.NewWriter(clientConn)
	require.NoError(t, httpcodec.WriteRequestLine(w, req))
	require.NoError(t, w.Flush())

	resp, err := httpcodec.ReceiveResponseHeaders(r, 32)
	require.NoError(t, err)
	require.NoError(t, httpcodec.ValidateWebSocketUpgradeResponse(resp, nonce))

	buf := make([]byte, 128)
	for _, payload := range []string{"a", "bb", "ccc"} {
		send := ws.FrameHeader{FIN: true, Type: ws.FrameTypeBinary, Mask: true, MaskKey: ws.NewMaskKey()}
		require.NoError(t, ws.Send(clientConn, send, []byte(payload)))

		h, got, err := ws.Recv(r, buf)
		require.NoError(t, err)
		require.Equal(t, ws.FrameTypeBinary, h.Type)
		require.True(t, h.FIN)
		require.False(t, h.Mask)
		require.Equal(t, payload, string(got))
	}

	require.NoError(t, ws.Send(clientConn, ws.FrameHeader{FIN: true, Type: ws.FrameTypeClose, Mask: true, MaskKey: ws.NewMaskKey()}, nil))
	h, _, err := ws.Recv(r, buf)
	require.NoError(t, err)
	require.Equal(t, ws.FrameTypeClose, h.Type)

	require.NoError(t, <-serverDone)
}
