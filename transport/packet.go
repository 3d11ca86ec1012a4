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

package transport

import (
	"context"
	"net"
)

// PacketListener provides a way to create a local, unbound packet
// connection. mdns.Responder and captivedns.Server both take one of these
// instead of calling net.ListenPacket themselves, so the socket an answer
// engine binds can be substituted (for tests, or a pre-bound multicast
// socket) without either engine knowing about it.
type PacketListener interface {
	// ListenPacket creates a PacketConn ready to receive datagrams.
	ListenPacket(ctx context.Context) (net.PacketConn, error)
}

// UDPPacketListener is a PacketListener that binds a real UDP socket via the
// standard net.ListenConfig.
type UDPPacketListener struct {
	net.ListenConfig
	// Address is the local address to bind, as accepted by net.ListenPacket.
	Address string
}

var _ PacketListener = (*UDPPacketListener)(nil)

// ListenPacket implements PacketListener.
func (l UDPPacketListener) ListenPacket(ctx context.Context) (net.PacketConn, error) {
	return l.ListenConfig.ListenPacket(ctx, "udp", l.Address)
}
