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

// StreamConn is a net.Conn that allows closing only the reader or writer
// end, supporting half-open state. It is the connection type StreamDialer
// returns, which httpcodec.DialClientConnection wraps in a ClientConnection.
type StreamConn interface {
	net.Conn
	// CloseRead closes the read side of the connection. No more reads
	// should happen.
	CloseRead() error
	// CloseWrite closes the write side of the connection. An EOF or FIN
	// signal may be sent to the connection's peer.
	CloseWrite() error
}

// StreamDialer provides a way to dial a destination and establish stream
// connections. httpcodec.DialClientConnection takes one of these instead of
// calling net.Dial directly, so the connection a request rides on can be
// substituted (for tests, or for a proxying dialer) without httpcodec
// knowing about it.
type StreamDialer interface {
	// Dial connects to raddr, which has the form host:port (host may be a
	// domain name or an IP address).
	Dial(ctx context.Context, raddr string) (StreamConn, error)
}

// TCPStreamDialer is a StreamDialer that dials a real TCP connection via the
// standard net.Dialer.
type TCPStreamDialer struct {
	Dialer net.Dialer
}

var _ StreamDialer = (*TCPStreamDialer)(nil)

// Dial implements StreamDialer.
func (d *TCPStreamDialer) Dial(ctx context.Context, addr string) (StreamConn, error) {
	conn, err := d.Dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return conn.(*net.TCPConn), nil
}
