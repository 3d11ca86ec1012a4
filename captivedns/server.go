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

package captivedns

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"github.com/Jigsaw-Code/edge-net/transport"
)

// Server answers every DNS query received on a net.PacketConn with a
// single A record, until its context is canceled.
type Server struct {
	IP         [4]byte
	TTLSeconds uint32
	Log        *slog.Logger
}

// Serve reads datagrams from conn and replies to each with a single A
// record, until ctx is done or conn returns a read error. It closes
// conn before returning.
func (s *Server) Serve(ctx context.Context, conn net.PacketConn) error {
	log := s.Log
	if log == nil {
		log = slog.Default()
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	buf := make([]byte, 512)
	out := make([]byte, 512)
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

		replyLen, err := Reply(buf[:n], s.IP, s.TTLSeconds, out)
		if err != nil {
			log.Debug("captivedns: dropping unanswerable query", "from", addr, "error", err)
			continue
		}

		if _, err := conn.WriteTo(out[:replyLen], addr); err != nil {
			log.Warn("captivedns: failed to write reply", "to", addr, "error", err)
		}
	}
}

// ListenAndServe binds a packet conn via listener and runs Serve on it,
// letting the caller supply any transport.PacketListener (a plain UDP
// socket, or one bound through some other transport) instead of wiring a
// net.PacketConn by hand.
func (s *Server) ListenAndServe(ctx context.Context, listener transport.PacketListener) error {
	conn, err := listener.ListenPacket(ctx)
	if err != nil {
		return err
	}
	return s.Serve(ctx, conn)
}
