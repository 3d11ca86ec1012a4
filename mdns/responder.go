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

package mdns

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"golang.org/x/net/dns/dnsmessage"

	"github.com/Jigsaw-Code/edge-net/transport"
)

// BroadcastInterval is the default period between unsolicited
// announcements a Responder sends while running.
const BroadcastInterval = 30 * time.Second

// Responder owns a Host and its Services, answering queries and announcing
// itself on a multicast UDP connection until its context is canceled.
type Responder struct {
	Host     Host
	Services []Service
	// MulticastAddr is where Broadcast messages are sent (typically the
	// mDNS multicast group, 224.0.0.251:5353 or [ff02::fb]:5353).
	MulticastAddr net.Addr
	Interval      time.Duration
	Log           *slog.Logger
}

// Run answers unicast/multicast queries arriving on conn and periodically
// writes a Broadcast announcement to MulticastAddr, until ctx is canceled.
func (r *Responder) Run(ctx context.Context, conn net.PacketConn) error {
	log := r.Log
	if log == nil {
		log = slog.Default()
	}
	interval := r.Interval
	if interval == 0 {
		interval = BroadcastInterval
	}

	if err := r.announce(conn, log); err != nil {
		log.Warn("mdns: initial announcement failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	defer close(done)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := r.announce(conn, log); err != nil {
					log.Warn("mdns: periodic announcement failed", "error", err)
				}
			}
		}
	}()

	buf := make([]byte, 9000) // mDNS allows larger-than-512 messages over UDP
	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		var query dnsmessage.Message
		if err := query.Unpack(buf[:n]); err != nil {
			log.Debug("mdns: dropping malformed query", "from", addr, "error", err)
			continue
		}
		if query.Header.Response {
			continue
		}

		for _, q := range query.Questions {
			reply, err := Respond(query.Header.ID, r.Host, r.Services, q)
			if err != nil {
				log.Debug("mdns: failed to build reply", "question", q, "error", err)
				continue
			}
			if reply == nil {
				continue
			}
			out, err := reply.Pack()
			if err != nil {
				log.Warn("mdns: failed to pack reply", "error", err)
				continue
			}
			if _, err := conn.WriteTo(out, addr); err != nil {
				log.Warn("mdns: failed to write reply", "to", addr, "error", err)
			}
		}
	}
}

// ListenAndRun binds a packet conn via listener and runs Run on it, so a
// caller can supply any transport.PacketListener rather than wiring a
// net.PacketConn by hand.
func (r *Responder) ListenAndRun(ctx context.Context, listener transport.PacketListener) error {
	conn, err := listener.ListenPacket(ctx)
	if err != nil {
		return err
	}
	return r.Run(ctx, conn)
}

func (r *Responder) announce(conn net.PacketConn, log *slog.Logger) error {
	if r.MulticastAddr == nil {
		return nil
	}
	msg, err := Broadcast(0, r.Host, r.Services)
	if err != nil {
		return err
	}
	out, err := msg.Pack()
	if err != nil {
		return err
	}
	_, err = conn.WriteTo(out, r.MulticastAddr)
	return err
}
