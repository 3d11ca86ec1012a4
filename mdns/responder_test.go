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

package mdns_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/dns/dnsmessage"

	"github.com/Jigsaw-Code/edge-net/mdns"
)

func TestResponderRunAnswersQuery(t *testing.T) {
	serverConn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	r := &mdns.Responder{Host: testHost(), Services: testServices()}
	runDone := make(chan error, 1)
	go func() { runDone <- r.Run(ctx, serverConn) }()

	clientConn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer clientConn.Close()

	q := mustQuestion(t, "mydevice.local.", dnsmessage.TypeA)
	msg := dnsmessage.Message{
		Header:    dnsmessage.Header{ID: 55},
		Questions: []dnsmessage.Question{q},
	}
	packed, err := msg.Pack()
	require.NoError(t, err)

	_, err = clientConn.WriteTo(packed, serverConn.LocalAddr())
	require.NoError(t, err)

	require.NoError(t, clientConn.SetReadDeadline(time.Now().Add(5*time.Second)))
	buf := make([]byte, 9000)
	n, _, err := clientConn.ReadFrom(buf)
	require.NoError(t, err)

	var reply dnsmessage.Message
	require.NoError(t, reply.Unpack(buf[:n]))
	require.Equal(t, uint16(55), reply.Header.ID)
	require.NotEmpty(t, reply.Answers)

	cancel()
	require.NoError(t, <-runDone)
}
