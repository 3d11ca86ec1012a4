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

package ipudp

import (
	"context"
	"errors"
	"net/netip"

	"github.com/Jigsaw-Code/edge-net/network/ip"
)

// DatagramHandler answers one decoded UDP datagram received from src bound
// for dst, returning the reply payload to encode back, or (nil, false) to
// send nothing.
type DatagramHandler func(src, dst netip.AddrPort, payload []byte) ([]byte, bool)

// ServeDevice reads raw IPv4 packets from dev, decodes any that carry UDP
// addressed to port, and for each one invokes handle; a non-nil reply is
// re-encoded as an IPv4+UDP datagram (with src/dst swapped) and written
// back to dev. It runs until ctx is done or a dev.ReadPacket or
// dev.WritePacket call fails.
func ServeDevice(ctx context.Context, dev ip.IPDevice, port uint16, ttl byte, handle DatagramHandler) error {
	out := make([]byte, 65535)
	for {
		packet, err := dev.ReadPacket(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		src, dst, payload, err := DecodeUDP(packet, nil, &port)
		if err != nil || payload == nil {
			continue
		}

		reply, ok := handle(src, dst, payload)
		if !ok {
			continue
		}

		datagram, err := EncodeUDP(out, dst, src, ttl, func(buf []byte) (int, error) {
			if len(buf) < len(reply) {
				return 0, errors.New("ipudp: reply too large for buffer")
			}
			return copy(buf, reply), nil
		})
		if err != nil {
			continue
		}
		if err := dev.WritePacket(ctx, datagram); err != nil {
			return err
		}
	}
}
