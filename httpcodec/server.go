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
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
)

const (
	defaultMaxHeaders = 32
	defaultWorkers    = 4
)

// Server accepts stream connections and serves HTTP/1.x exchanges on them
// through Handler. One goroutine accepts; a fixed pool of Workers drains
// accepted connections from a bounded channel, so a burst of connects
// backpressures at the listener instead of spawning unbounded goroutines.
//
// Each connection is owned by exactly one worker at a time and served as a
// strict request/response sequence: keep-alive connections loop back to
// read the next request, Close-framed exchanges end the connection.
type Server struct {
	// Handler serves each request. ErrNoRoute falls back to NotFound; any
	// other error produces a 500 and closes the connection.
	Handler Handler
	// MaxHeaders bounds the per-request header count (default 32).
	MaxHeaders int
	// Workers is the size of the serving pool (default 4). The accept
	// backlog channel is the same size.
	Workers int
	Log     *slog.Logger
}

// Serve accepts connections from ln until ctx is done or Accept returns an
// error. It closes ln before returning and waits for all in-flight
// connections to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	log := s.Log
	if log == nil {
		log = slog.Default()
	}
	workers := s.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}

	defer ln.Close()
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	conns := make(chan net.Conn, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for conn := range conns {
				s.serveConn(conn, log)
			}
		}()
	}

	var err error
	for {
		var conn net.Conn
		conn, err = ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				err = nil
			}
			break
		}
		conns <- conn
	}
	close(conns)
	wg.Wait()
	return err
}

// serveConn runs the request/response loop for one connection. The bufio
// pair is created once and carried across keep-alive requests.
func (s *Server) serveConn(conn net.Conn, log *slog.Logger) {
	defer conn.Close()

	maxHeaders := s.MaxHeaders
	if maxHeaders <= 0 {
		maxHeaders = defaultMaxHeaders
	}
	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)

	for {
		sc, err := newServerConnection(conn, r, w, maxHeaders)
		if err != nil {
			if err != io.EOF && !errors.Is(err, io.ErrUnexpectedEOF) {
				log.Debug("httpcodec: dropping unparseable request", "from", conn.RemoteAddr(), "error", err)
			}
			return
		}

		err = s.Handler(sc)
		if err == ErrNoRoute {
			err = NotFound(sc)
		}
		if err != nil {
			log.Warn("httpcodec: handler failed", "from", conn.RemoteAddr(), "path", sc.Request.Path, "error", err)
			sc.CompleteErr(err.Error())
			return
		}
		if err := sc.Complete(); err != nil {
			log.Debug("httpcodec: failed to complete exchange", "from", conn.RemoteAddr(), "error", err)
			return
		}
		if sc.NeedsClose() {
			return
		}
	}
}
