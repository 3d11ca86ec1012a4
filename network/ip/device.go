// Copyright 2023 Jigsaw Operations LLC
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

package ip

import (
	"context"
)

// IPDevice is the raw packet source/sink ipudp.ServeDevice relays UDP
// datagrams over: a TUN device, a captured socket, or (in tests) an
// in-memory stand-in. ServeDevice only ever sees whole IPv4 packets through
// this interface, never a TCP/IP stack of its own.
type IPDevice interface {
	// Close closes this device. Any future ReadPacket or WritePacket operations
	// will return errors.
	Close() error

	// ReadPacket reads one whole IPv4 packet from this device, blocking until
	// one is available or ctx is done.
	//
	// The provided `ctx` must be non-nil. If the `ctx` expires before the
	// operation is complete, an error is returned.
	//
	// If the returned error is nil, it means that ReadPacket has completed
	// successfully and that an entire IP packet has been read and returned. It
	// won't return if only a portion of the packet is read.
	ReadPacket(ctx context.Context) ([]byte, error)

	// WritePacket writes one whole IPv4 packet b to this device, blocking
	// until it's accepted or ctx is done.
	//
	// The provided `ctx` must be non-nil. If the `ctx` expires before the
	// operation is complete, an error is returned.
	//
	// If the returned error is nil, it means that WritePacket has completed
	// successfully and that the entire packet has been written to the
	// destination. It won't return if only a portion of the packet has been
	// processed.
	WritePacket(ctx context.Context, b []byte) error
}
