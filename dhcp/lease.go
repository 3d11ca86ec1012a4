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

package dhcp

import (
	"context"
	"errors"
	"log/slog"
	"net/netip"
	"time"
)

// Conn is the transport a lease client needs: send a packet, and receive
// the next one (blocking until ctx is done or a packet arrives).
type Conn interface {
	Send(ctx context.Context, p Packet) error
	Recv(ctx context.Context) (Packet, error)
}

const (
	requestTimeout = 3 * time.Second
	requestRetries = 3
	renewSleep     = 60 * time.Second
)

// ErrNoReply is returned by exchange when requestRetries+1 attempts all time
// out without a matching reply.
var ErrNoReply = errors.New("dhcp: no reply from server")

// exchange sends req repeatedly (up to requestRetries+1 times, each with
// requestTimeout to reply) until accept returns true for a received packet,
// returning that packet.
func exchange(ctx context.Context, conn Conn, req Packet, accept func(Packet) bool) (Packet, error) {
	for attempt := 0; attempt <= requestRetries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		err := conn.Send(attemptCtx, req)
		if err != nil {
			cancel()
			return Packet{}, err
		}

		for {
			reply, err := conn.Recv(attemptCtx)
			if err != nil {
				break // timeout or cancellation: fall through to retry/give up
			}
			if accept(reply) {
				cancel()
				return reply, nil
			}
		}
		cancel()

		if ctx.Err() != nil {
			return Packet{}, ctx.Err()
		}
	}
	return Packet{}, ErrNoReply
}

// RunLease drives the DHCPv4 client state machine on conn until ctx is
// canceled: Discover, Request, then renewal once lease_duration/3 has
// elapsed (falling back to a 60s retry sleep on failure), calling onLease
// each time a new lease is acquired or renewed.
func RunLease(ctx context.Context, conn Conn, mac [6]byte, onLease func(Settings), log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}

	var requestedIP netip.Addr

	for {
		settings, err := acquireOnce(ctx, conn, mac, requestedIP)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("dhcp: lease acquisition failed, retrying", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(renewSleep):
				continue
			}
		}

		onLease(settings)
		requestedIP = settings.Addr

		renewAfter := time.Duration(settings.LeaseSecs) * time.Second / 3
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(renewAfter):
		}
	}
}

func acquireOnce(ctx context.Context, conn Conn, mac [6]byte, requestedIP netip.Addr) (Settings, error) {
	discover := Discover(mac, 0, requestedIP)
	offerPkt, err := exchange(ctx, conn, discover, func(p Packet) bool {
		return IsOffer(p, discover.Xid, mac)
	})
	if err != nil {
		return Settings{}, err
	}

	request := Request(mac, 0, offerPkt.YIAddr)
	ackPkt, err := exchange(ctx, conn, request, func(p Packet) bool {
		return IsAck(p, request.Xid, mac) || IsNak(p, request.Xid, mac)
	})
	if err != nil {
		return Settings{}, err
	}
	if IsNak(ackPkt, request.Xid, mac) {
		return Settings{}, errors.New("dhcp: server declined request (NAK)")
	}

	return SettingsFromAck(ackPkt), nil
}
